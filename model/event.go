package model

// StoredMessageTopic is the webhook topic used for stored-message events.
const StoredMessageTopic = "pickup_message"

// StoredMessageEvent is emitted when a message is stored for a recipient
// identified by a DID.
type StoredMessageEvent struct {
	TargetDID string `json:"target_did"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	State     string `json:"state"`
	Endpoint  string `json:"endpoint"`
}

// NewStoredMessageEvent creates the event announcing that record was stored.
func NewStoredMessageEvent(record *Record, targetDID, endpoint string) StoredMessageEvent {
	return StoredMessageEvent{
		TargetDID: targetDID,
		MessageID: record.ID,
		Content:   "message_stored",
		State:     "stored",
		Endpoint:  endpoint,
	}
}

// DomainError represents a domain-level business rule violation.
type DomainError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
}

func (e DomainError) Error() string {
	return e.Message
}
