package pickup

import (
	"context"

	"github.com/coregx/pickup/model"
)

// NotificationService receives stored-message events.
//
// Calls are fire-and-forget from the manager's point of view: an error is
// logged and never fails the store operation. Implementations that talk to
// the network should queue the event and return quickly.
type NotificationService interface {
	// NotifyMessageStored is called after a record addressed to a DID is saved.
	NotifyMessageStored(ctx context.Context, event model.StoredMessageEvent) error
}

// NoOpNotificationService is a no-op implementation of NotificationService.
// Use this when notifications are not needed.
type NoOpNotificationService struct{}

// NotifyMessageStored does nothing.
func (n *NoOpNotificationService) NotifyMessageStored(_ context.Context, _ model.StoredMessageEvent) error {
	return nil
}

// LoggingNotificationService is a simple implementation that logs notifications.
type LoggingNotificationService struct {
	logger Logger
}

// NewLoggingNotificationService creates a new LoggingNotificationService.
func NewLoggingNotificationService(logger Logger) *LoggingNotificationService {
	return &LoggingNotificationService{logger: logger}
}

// NotifyMessageStored logs the stored-message event.
func (n *LoggingNotificationService) NotifyMessageStored(_ context.Context, event model.StoredMessageEvent) error {
	n.logger.Infof("📬 Message stored: message_id=%s, target_did=%s, endpoint=%s",
		event.MessageID, event.TargetDID, event.Endpoint)
	return nil
}
