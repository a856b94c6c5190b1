package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned by Decode for a @type outside the pickup protocol.
var ErrUnknownType = errors.New("unknown message type")

// New returns an empty envelope for kind, or nil for KindUnknown.
func New(kind Kind) Message {
	switch kind {
	case KindStatusRequest:
		return &StatusRequest{}
	case KindStatusResponse:
		return &StatusResponse{}
	case KindBatchPickupRequest:
		return &BatchPickupRequest{}
	case KindBatchPickupResponse:
		return &BatchPickupResponse{}
	case KindListPickupRequest:
		return &ListPickupRequest{}
	case KindListPickupResponse:
		return &ListPickupResponse{}
	case KindDeletePickupRequest:
		return &DeletePickupRequest{}
	case KindDeletePickupResponse:
		return &DeletePickupResponse{}
	}
	return nil
}

// Decode parses a JSON envelope into its concrete message type.
func Decode(raw []byte) (Message, error) {
	var probe struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	msg := New(KindOf(probe.Type))
	if msg == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, probe.Type)
	}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", msg.Kind(), err)
	}
	return msg, nil
}
