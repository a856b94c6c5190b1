// Package pickup implements a message pickup mediator for agent-to-agent
// messaging: messages addressed to a recipient key are held until the
// recipient collects them with a pickup request.
//
// Works both as a library for embedding in an agent AND as a standalone
// server (cmd/pickup-server) with an HTTP admin API.
//
// # Features
//
//   - Batch, list, status and delete pickup over both type URI families
//     (legacy did:sov and https://didcomm.org)
//   - At-least-once delivery: the reply is sent before records are marked delivered
//   - Records are only ever visible to their own recipient key
//   - Repository Pattern with memory, Relica (MySQL, PostgreSQL, SQLite) and Redis adapters
//   - Options Pattern for service construction
//   - Pluggable Logger, NotificationService and Sender
//   - Stored-message webhooks with retry (package webhook)
//   - Embedded SQL migrations
//
// # Quick Start
//
//	repo := memory.NewRecordRepository()
//
//	manager, err := pickup.NewManager(
//	    pickup.WithRecordRepository(repo),
//	    pickup.WithManagerLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dispatcher, err := pickup.NewDispatcher(manager)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Store a message for a recipient:
//
//	record, err := manager.Store(ctx, pickup.StoreRequest{
//	    Payload:      model.Payload{"content": "hello"},
//	    RecipientKey: "8HH5gYEeNc3z7PYXmd54d4x6qAfCNrqQqEB3nS7Zfu7K",
//	})
//
// Handle an inbound pickup message decoded from the wire:
//
//	msg, err := message.Decode(body)
//	err = dispatcher.Dispatch(ctx, pickup.InboundMessage{
//	    Message:         msg,
//	    SenderKey:       verifiedSenderKey,
//	    ConnectionID:    connectionID,
//	    ConnectionReady: true,
//	}, responder)
//
// # Standalone Server
//
//	PICKUP_STORAGE_BACKEND=sql PICKUP_DATABASE_DRIVER=sqlite3 PICKUP_DATABASE_NAME=pickup.db \
//	    pickup-server migrate
//	pickup-server serve
//
// # Errors
//
// All errors returned by the package are *Error values carrying a code
// (ErrCodeNotFound, ErrCodeStorageUnavailable, ErrCodePreconditionFailed, ...).
// Use ErrorCode or the Is* helpers to classify them.
package pickup
