package message

import (
	"github.com/google/uuid"

	"github.com/coregx/pickup/model"
)

// Message is implemented by every pickup protocol envelope.
type Message interface {
	// MessageType returns the @type URI.
	MessageType() string

	// MessageID returns the @id.
	MessageID() string

	// ThreadID returns the thread identifier: ~thread.thid when present,
	// otherwise the message's own @id.
	ThreadID() string

	// Kind resolves the @type URI against the static type table.
	Kind() Kind

	envelope() *Base
}

// Thread is the ~thread decorator.
type Thread struct {
	ThreadID       string `json:"thid,omitempty"`
	ParentThreadID string `json:"pthid,omitempty"`
}

// Base carries the envelope fields shared by all pickup messages.
type Base struct {
	Type   string  `json:"@type"`
	ID     string  `json:"@id"`
	Thread *Thread `json:"~thread,omitempty"`
}

func newBase(kind Kind, family Family) Base {
	return Base{
		Type: family.Type(kind),
		ID:   uuid.NewString(),
	}
}

// MessageType implements Message.
func (b *Base) MessageType() string { return b.Type }

// MessageID implements Message.
func (b *Base) MessageID() string { return b.ID }

// ThreadID implements Message.
func (b *Base) ThreadID() string {
	if b.Thread != nil && b.Thread.ThreadID != "" {
		return b.Thread.ThreadID
	}
	return b.ID
}

// Kind implements Message.
func (b *Base) Kind() Kind { return KindOf(b.Type) }

func (b *Base) envelope() *Base { return b }

// ReplyTo threads b onto req and switches b to the URI family req was sent in.
func ReplyTo(reply, req Message) {
	b := reply.envelope()
	kind := b.Kind()
	b.Thread = &Thread{ThreadID: req.ThreadID()}
	if t := FamilyOf(req.MessageType()).Type(kind); t != "" {
		b.Type = t
	}
}

// Attachment is one stored message inside a pickup response.
// Message holds the JSON text of the stored payload.
type Attachment struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// NewAttachment wraps a stored record for delivery.
func NewAttachment(record *model.Record) (Attachment, error) {
	text, err := record.Payload.JSON()
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{ID: record.ID, Message: text}, nil
}

// NewAttachments wraps records in order.
func NewAttachments(records []model.Record) ([]Attachment, error) {
	out := make([]Attachment, 0, len(records))
	for i := range records {
		a, err := NewAttachment(&records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
