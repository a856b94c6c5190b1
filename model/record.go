package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DeliveryState represents the delivery lifecycle state of a stored message.
type DeliveryState string

const (
	// StateWaiting indicates the message is queued and not yet handed to the recipient.
	StateWaiting DeliveryState = "message_wait"

	// StateSent indicates the message was included in a pickup reply.
	StateSent DeliveryState = "message_sent"

	// StateReceived indicates the recipient acknowledged the message.
	StateReceived DeliveryState = "message_received"
)

// IsValid reports whether s is a known delivery state.
func (s DeliveryState) IsValid() bool {
	switch s {
	case StateWaiting, StateSent, StateReceived:
		return true
	}
	return false
}

func (s DeliveryState) rank() int {
	switch s {
	case StateWaiting:
		return 0
	case StateSent:
		return 1
	case StateReceived:
		return 2
	}
	return -1
}

// Record is a message held by the mediator on behalf of an offline recipient.
//
// Records follow this lifecycle:
//  1. Created by Store with state=WAITING
//  2. Included in a batch pickup reply, then marked SENT
//  3. Optionally acknowledged by the recipient, then RECEIVED
//
// State only moves forward. RecipientKey never changes after creation,
// and a record is only visible to pickup requests authenticated with
// that same key.
type Record struct {
	ID           string        `json:"message_id" db:"id"`
	RecipientKey string        `json:"verkey" db:"recipient_key"`
	Payload      Payload       `json:"message" db:"payload"`
	TargetURL    string        `json:"target_url,omitempty" db:"target_url"`
	State        DeliveryState `json:"state" db:"state"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// TableName returns the database table name for Record.
func (r *Record) TableName() string {
	return tablePrefix + "message"
}

// NewRecord creates a WAITING record for the given recipient.
// The ID is left empty and assigned by the repository on first save.
func NewRecord(recipientKey string, payload Payload, targetURL string) Record {
	now := time.Now().UTC()
	if payload == nil {
		payload = Payload{}
	}

	return Record{
		RecipientKey: recipientKey,
		Payload:      payload,
		TargetURL:    targetURL,
		State:        StateWaiting,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsWaiting reports whether the record has not been delivered yet.
func (r *Record) IsWaiting() bool {
	return r.State == StateWaiting
}

// BelongsTo reports whether the record is addressed to key.
func (r *Record) BelongsTo(key string) bool {
	return key != "" && r.RecipientKey == key
}

// MarkSent moves a WAITING record to SENT.
// It returns false when the record was already SENT or RECEIVED, in which
// case nothing changes.
func (r *Record) MarkSent() bool {
	return r.advance(StateSent)
}

// MarkReceived moves a record to RECEIVED.
// It returns false when the record was already RECEIVED.
func (r *Record) MarkReceived() bool {
	return r.advance(StateReceived)
}

func (r *Record) advance(to DeliveryState) bool {
	if r.State.rank() >= to.rank() {
		return false
	}
	r.State = to
	r.UpdatedAt = time.Now().UTC()
	return true
}

// Validate checks the record invariants before persisting.
func (r *Record) Validate() error {
	if err := validation.Validate(r.RecipientKey, validation.Required); err != nil {
		return ErrMissingRecipientKey
	}
	if err := validation.Validate(r.State,
		validation.Required,
		validation.In(StateWaiting, StateSent, StateReceived),
	); err != nil {
		return ErrInvalidState
	}
	return nil
}

// CanReplace checks that r may overwrite stored, the persisted version of
// the same record. The recipient key is fixed at creation.
func (r *Record) CanReplace(stored *Record) error {
	if stored.RecipientKey != r.RecipientKey {
		return ErrRecipientKeyChanged
	}
	return nil
}

// Domain errors for Record.
var (
	// ErrMissingRecipientKey indicates a record without a recipient key.
	ErrMissingRecipientKey = DomainError{Code: "MISSING_RECIPIENT", Message: "Record recipient key is required"}

	// ErrInvalidState indicates an unknown delivery state.
	ErrInvalidState = DomainError{Code: "INVALID_STATE", Message: "Record delivery state is invalid"}

	// ErrRecipientKeyChanged indicates an update that reassigns a record to another key.
	ErrRecipientKeyChanged = DomainError{Code: "RECIPIENT_CHANGED", Message: "Record recipient key cannot be changed"}
)
