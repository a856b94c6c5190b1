// Package api provides the HTTP surface of the pickup server: the
// administrative routes and the inbound agent endpoint.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/message"
	"github.com/coregx/pickup/model"
)

// Request headers read by the inbound endpoint.
const (
	HeaderSenderKey    = "X-Sender-Key"
	HeaderConnectionID = "X-Connection-ID"
)

const maxInboundBytes = 1 << 20

// Connections reports whether a connection is established.
type Connections interface {
	Ready(connectionID string) bool
}

// StoreObserver is told the outcome of every store operation.
type StoreObserver interface {
	ObserveStore(err error)
}

type noopStoreObserver struct{}

func (noopStoreObserver) ObserveStore(error) {}

// Handler holds dependencies for API handlers.
type Handler struct {
	manager     *pickup.Manager
	dispatcher  *pickup.Dispatcher
	connections Connections
	logger      pickup.Logger
	stores      StoreObserver
	version     string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithStoreObserver sets the observer notified on every store.
func WithStoreObserver(o StoreObserver) HandlerOption {
	return func(h *Handler) {
		if o != nil {
			h.stores = o
		}
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) HandlerOption {
	return func(h *Handler) {
		h.version = v
	}
}

// NewHandler creates a new API handler.
func NewHandler(
	manager *pickup.Manager,
	dispatcher *pickup.Dispatcher,
	connections Connections,
	logger pickup.Logger,
	opts ...HandlerOption,
) *Handler {
	h := &Handler{
		manager:     manager,
		dispatcher:  dispatcher,
		connections: connections,
		logger:      logger,
		stores:      noopStoreObserver{},
		version:     "dev",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// StoreMessageRequest is the body of POST /pickup/store-message.
type StoreMessageRequest struct {
	Message   map[string]interface{} `json:"message"`
	Verkey    string                 `json:"verkey"`
	TargetDID string                 `json:"target_did"`
	Endpoint  string                 `json:"endpoint"`
}

// MessageIDListRequest is the body of the id-list routes.
type MessageIDListRequest struct {
	MessageIDList []string `json:"message_id_list"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HandleStoreMessage handles POST /pickup/store-message
func (h *Handler) HandleStoreMessage(c *gin.Context) {
	var req StoreMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}

	record, err := h.manager.Store(c.Request.Context(), pickup.StoreRequest{
		Payload:      model.Payload(req.Message),
		RecipientKey: req.Verkey,
		TargetDID:    req.TargetDID,
		Endpoint:     req.Endpoint,
	})
	h.stores.ObserveStore(err)
	if err != nil {
		h.fail(c, "Failed to store message", err)
		return
	}

	h.respondSuccess(c, http.StatusCreated, gin.H{"message_id": record.ID}, "Message stored")
}

// HandleMessagesByVerkey handles POST /pickup/messages/by-verkey?verkey=
func (h *Handler) HandleMessagesByVerkey(c *gin.Context) {
	verkey := c.Query("verkey")
	if verkey == "" {
		h.respondError(c, http.StatusBadRequest, "verkey is required", pickup.ErrCodeValidation)
		return
	}

	records, err := h.manager.FetchByRecipientKey(c.Request.Context(), verkey)
	if err != nil {
		h.fail(c, "Failed to fetch messages", err)
		return
	}

	h.respondSuccess(c, http.StatusOK, gin.H{"messages": records}, "")
}

// HandleMessagesByIDList handles POST /pickup/messages/by-idlist
//
// Unlike list pickup, a single unknown id fails the whole request.
func (h *Handler) HandleMessagesByIDList(c *gin.Context) {
	var req MessageIDListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}
	if len(req.MessageIDList) == 0 {
		h.respondError(c, http.StatusBadRequest, "message_id_list is required", pickup.ErrCodeValidation)
		return
	}

	records := make([]*model.Record, 0, len(req.MessageIDList))
	for _, id := range req.MessageIDList {
		record, err := h.manager.FetchByID(c.Request.Context(), id)
		if err != nil {
			h.fail(c, "Failed to fetch message "+id, err)
			return
		}
		records = append(records, record)
	}

	h.respondSuccess(c, http.StatusOK, gin.H{"messages": records}, "")
}

// HandleMessageByID handles POST /pickup/messages/:message_id
func (h *Handler) HandleMessageByID(c *gin.Context) {
	record, err := h.manager.FetchByID(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		h.fail(c, "Failed to fetch message", err)
		return
	}

	h.respondSuccess(c, http.StatusOK, record, "")
}

// HandleBatchPickup handles POST /pickup/:connection_id/batch_pickup?batch_size=
func (h *Handler) HandleBatchPickup(c *gin.Context) {
	connectionID, ok := h.readyConnection(c)
	if !ok {
		return
	}

	batchSize, err := strconv.Atoi(c.Query("batch_size"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "batch_size must be an integer", pickup.ErrCodeValidation)
		return
	}

	if _, err := h.manager.CreateBatchPickupRequest(c.Request.Context(), batchSize, connectionID); err != nil {
		h.fail(c, "Failed to request batch pickup", err)
		return
	}

	h.respondSuccess(c, http.StatusOK, gin.H{"batch_size": batchSize}, "")
}

// HandleStatus handles POST /pickup/:connection_id/status
func (h *Handler) HandleStatus(c *gin.Context) {
	connectionID, ok := h.readyConnection(c)
	if !ok {
		return
	}

	if _, err := h.manager.CreateStatusRequest(c.Request.Context(), connectionID); err != nil {
		h.fail(c, "Failed to request status", err)
		return
	}

	h.respondSuccess(c, http.StatusOK, gin.H{"succeed": true}, "")
}

// HandleListPickup handles POST /pickup/:connection_id/list_pickup
func (h *Handler) HandleListPickup(c *gin.Context) {
	connectionID, ok := h.readyConnection(c)
	if !ok {
		return
	}

	var req MessageIDListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}

	if _, err := h.manager.CreateListRequest(c.Request.Context(), req.MessageIDList, connectionID); err != nil {
		h.fail(c, "Failed to request list pickup", err)
		return
	}

	h.respondSuccess(c, http.StatusOK, gin.H{"message_id_list": req.MessageIDList}, "")
}

// HandleInbound handles POST /agent/inbound
//
// The body is one protocol message. A reply is written as the response
// body with status 200; messages without a reply get 204. The reply is
// written before the dispatcher marks batch records delivered.
func (h *Handler) HandleInbound(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxInboundBytes))
	if err != nil {
		h.respondError(c, http.StatusRequestEntityTooLarge, "Message too large", "INVALID_BODY")
		return
	}

	msg, err := message.Decode(raw)
	if err != nil {
		if errors.Is(err, message.ErrUnknownType) {
			h.respondError(c, http.StatusBadRequest, err.Error(), pickup.ErrCodeUnsupportedMessage)
			return
		}
		h.respondError(c, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}

	connectionID := c.GetHeader(HeaderConnectionID)
	in := pickup.InboundMessage{
		Message:         msg,
		SenderKey:       c.GetHeader(HeaderSenderKey),
		ConnectionID:    connectionID,
		ConnectionReady: h.connections.Ready(connectionID),
	}

	responder := pickup.ResponderFunc(func(_ context.Context, reply message.Message) error {
		c.JSON(http.StatusOK, reply)
		return nil
	})

	err = h.dispatcher.Dispatch(c.Request.Context(), in, responder)
	if c.Writer.Written() {
		if err != nil {
			h.logger.Errorf("Inbound %s answered but failed afterwards: %v", msg.Kind(), err)
		}
		return
	}
	if err != nil {
		h.fail(c, "Failed to handle "+msg.Kind().String(), err)
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.respondSuccess(c, http.StatusOK, health, "")
}

func (h *Handler) readyConnection(c *gin.Context) (string, bool) {
	connectionID := c.Param("connection_id")
	if !h.connections.Ready(connectionID) {
		h.respondError(c, http.StatusConflict, "Connection "+connectionID+" is not ready", pickup.ErrCodePreconditionFailed)
		return "", false
	}
	return connectionID, true
}

// fail logs err and answers with the status matching its code.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorf("%s: %v", msg, err)
	} else {
		h.logger.Debugf("%s: %v", msg, err)
	}

	code := pickup.ErrorCode(err)
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	h.respondError(c, status, msg, code)
}

func statusFor(err error) int {
	switch pickup.ErrorCode(err) {
	case pickup.ErrCodeNotFound:
		return http.StatusNotFound
	case pickup.ErrCodeValidation, pickup.ErrCodeUnsupportedMessage:
		return http.StatusBadRequest
	case pickup.ErrCodePreconditionFailed:
		return http.StatusConflict
	case pickup.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case pickup.ErrCodeDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError sends an error response.
func (h *Handler) respondError(c *gin.Context, status int, message, code string) {
	c.JSON(status, ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func (h *Handler) respondSuccess(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}
