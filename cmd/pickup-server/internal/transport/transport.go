// Package transport delivers outbound pickup messages over HTTP to the
// agents behind known connections.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/message"
)

// Registry maps connection ids to agent endpoints. A connection is ready
// once it has an endpoint.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]string
}

// NewRegistry creates a registry seeded with endpoints.
func NewRegistry(endpoints map[string]string) *Registry {
	r := &Registry{endpoints: make(map[string]string, len(endpoints))}
	for id, url := range endpoints {
		r.endpoints[id] = url
	}
	return r
}

// Register sets the endpoint of a connection.
func (r *Registry) Register(connectionID, endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[connectionID] = endpoint
}

// Endpoint returns the endpoint of a connection.
func (r *Registry) Endpoint(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	url, ok := r.endpoints[connectionID]
	return url, ok
}

// Ready reports whether connectionID is a known connection.
func (r *Registry) Ready(connectionID string) bool {
	if connectionID == "" {
		return false
	}
	_, ok := r.Endpoint(connectionID)
	return ok
}

// Len returns the number of known connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

// HTTPSender implements pickup.Sender by POSTing the JSON envelope to the
// connection's endpoint.
type HTTPSender struct {
	registry *Registry
	client   *http.Client
}

var _ pickup.Sender = (*HTTPSender)(nil)

// NewHTTPSender creates a sender resolving connections through registry.
func NewHTTPSender(registry *Registry, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		registry: registry,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send implements pickup.Sender.
func (s *HTTPSender) Send(ctx context.Context, msg message.Message, connectionID string) error {
	endpoint, ok := s.registry.Endpoint(connectionID)
	if !ok {
		return pickup.NewError(pickup.ErrCodePreconditionFailed,
			fmt.Sprintf("connection %s has no endpoint", connectionID))
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post to %s: status %d", endpoint, resp.StatusCode)
	}
	return nil
}
