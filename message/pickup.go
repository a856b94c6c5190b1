package message

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// StatusRequest asks the mediator how many messages are queued.
type StatusRequest struct {
	Base
}

// NewStatusRequest creates a status request in the given family.
func NewStatusRequest(family Family) *StatusRequest {
	return &StatusRequest{Base: newBase(KindStatusRequest, family)}
}

// Validate implements validation.Validatable.
func (m StatusRequest) Validate() error {
	return nil
}

// StatusResponse reports queue counts for the requesting key.
// MessageCount counts waiting messages; TotalSize counts all messages
// held for the key regardless of state.
type StatusResponse struct {
	Base
	MessageCount int `json:"message_count"`
	TotalSize    int `json:"total_size"`
}

// NewStatusResponse creates a status response.
func NewStatusResponse(family Family, messageCount, totalSize int) *StatusResponse {
	return &StatusResponse{
		Base:         newBase(KindStatusResponse, family),
		MessageCount: messageCount,
		TotalSize:    totalSize,
	}
}

// BatchPickupRequest asks for up to BatchSize queued messages, oldest first.
type BatchPickupRequest struct {
	Base
	BatchSize int `json:"batch_size"`
}

// NewBatchPickupRequest creates a batch pickup request.
func NewBatchPickupRequest(family Family, batchSize int) *BatchPickupRequest {
	return &BatchPickupRequest{
		Base:      newBase(KindBatchPickupRequest, family),
		BatchSize: batchSize,
	}
}

// Validate implements validation.Validatable.
func (m BatchPickupRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.BatchSize, validation.Required, validation.Min(1)),
	)
}

// BatchPickupResponse carries the delivered messages in FIFO order.
type BatchPickupResponse struct {
	Base
	Messages []Attachment `json:"messages~attach"`
}

// NewBatchPickupResponse creates a batch pickup response.
func NewBatchPickupResponse(family Family, messages []Attachment) *BatchPickupResponse {
	if messages == nil {
		messages = []Attachment{}
	}
	return &BatchPickupResponse{
		Base:     newBase(KindBatchPickupResponse, family),
		Messages: messages,
	}
}

// ListPickupRequest asks for specific messages by id.
type ListPickupRequest struct {
	Base
	MessageIDs []string `json:"message_ids"`
}

// NewListPickupRequest creates a list pickup request.
func NewListPickupRequest(family Family, messageIDs []string) *ListPickupRequest {
	return &ListPickupRequest{
		Base:       newBase(KindListPickupRequest, family),
		MessageIDs: messageIDs,
	}
}

// Validate implements validation.Validatable.
func (m ListPickupRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.MessageIDs, validation.Each(validation.Required)),
	)
}

// ListPickupResponse carries the requested messages the sender owns,
// in request order.
type ListPickupResponse struct {
	Base
	Messages []Attachment `json:"messages~attach"`
}

// NewListPickupResponse creates a list pickup response.
func NewListPickupResponse(family Family, messages []Attachment) *ListPickupResponse {
	if messages == nil {
		messages = []Attachment{}
	}
	return &ListPickupResponse{
		Base:     newBase(KindListPickupResponse, family),
		Messages: messages,
	}
}

// DeletePickupRequest asks the mediator to discard messages by id.
type DeletePickupRequest struct {
	Base
	MessageIDs []string `json:"message_ids"`
}

// NewDeletePickupRequest creates a delete pickup request.
func NewDeletePickupRequest(family Family, messageIDs []string) *DeletePickupRequest {
	return &DeletePickupRequest{
		Base:       newBase(KindDeletePickupRequest, family),
		MessageIDs: messageIDs,
	}
}

// Validate implements validation.Validatable.
func (m DeletePickupRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.MessageIDs, validation.Each(validation.Required)),
	)
}

// DeletePickupResponse lists the ids that were actually deleted.
type DeletePickupResponse struct {
	Base
	MessageIDs []string `json:"message_ids"`
}

// NewDeletePickupResponse creates a delete pickup response.
func NewDeletePickupResponse(family Family, messageIDs []string) *DeletePickupResponse {
	if messageIDs == nil {
		messageIDs = []string{}
	}
	return &DeletePickupResponse{
		Base:       newBase(KindDeletePickupResponse, family),
		MessageIDs: messageIDs,
	}
}
