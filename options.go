package pickup

import (
	"fmt"

	"github.com/coregx/pickup/message"
)

// ManagerOption is a function that configures a Manager.
//
// Example:
//
//	manager, err := pickup.NewManager(
//	    pickup.WithRecordRepository(repo),
//	    pickup.WithManagerLogger(logger),
//	    pickup.WithNotifications(emitter), // optional
//	    pickup.WithSender(sender),         // optional
//	)
type ManagerOption func(*Manager) error

// WithRecordRepository sets the record store.
//
// This is a required option for NewManager.
func WithRecordRepository(repo RecordRepository) ManagerOption {
	return func(m *Manager) error {
		if repo == nil {
			return fmt.Errorf("record repository cannot be nil")
		}
		m.records = repo
		return nil
	}
}

// WithManagerLogger sets the logger instance for the manager.
//
// This is a required option for NewManager.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *Manager) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		m.logger = logger
		return nil
	}
}

// WithNotifications sets the service that receives stored-message events.
// This is an optional configuration - if not provided, NoOpNotificationService is used.
func WithNotifications(service NotificationService) ManagerOption {
	return func(m *Manager) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		m.notifications = service
		return nil
	}
}

// WithSender sets the outbound sender used by the Create* operations.
// Without a sender, Create* only build the request.
func WithSender(sender Sender) ManagerOption {
	return func(m *Manager) error {
		if sender == nil {
			return fmt.Errorf("sender cannot be nil")
		}
		m.sender = sender
		return nil
	}
}

// WithProtocolFamily selects the type URI family for outbound requests.
// Replies always follow the family of the request. Default: message.FamilyLegacy.
func WithProtocolFamily(family message.Family) ManagerOption {
	return func(m *Manager) error {
		if family != message.FamilyLegacy && family != message.FamilyDIDComm {
			return fmt.Errorf("unknown protocol family %d", family)
		}
		m.family = family
		return nil
	}
}

// WithDeliveredRecords makes batch pickup consider records in every
// delivery state, not only waiting ones. Records that were already sent
// are then returned again until deleted.
func WithDeliveredRecords(include bool) ManagerOption {
	return func(m *Manager) error {
		m.includeDelivered = include
		return nil
	}
}
