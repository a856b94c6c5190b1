package pickup

import (
	"context"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/pickup/message"
	"github.com/coregx/pickup/model"
)

// Manager executes the pickup protocol against a record store.
//
// Every operation receives the authenticated sender key explicitly. The
// manager keeps no per-call state, so a single instance serves concurrent
// inbound messages.
//
// Record isolation: a record is only ever returned to, counted for, or
// deleted by the key it was stored for.
type Manager struct {
	records          RecordRepository
	notifications    NotificationService
	sender           Sender
	logger           Logger
	family           message.Family
	includeDelivered bool
}

// NewManager creates a new pickup manager with the provided options.
//
// Required options:
//   - WithRecordRepository: record store
//   - WithManagerLogger: logger instance
//
// Optional options:
//   - WithNotifications: stored-message events (default: no-op)
//   - WithSender: outbound transport for Create* operations
//   - WithProtocolFamily: URI family for outbound requests (default: legacy)
//   - WithDeliveredRecords: include already-sent records in batch pickup
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		notifications: &NoOpNotificationService{},
		family:        message.FamilyLegacy,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply manager option", err)
		}
	}

	if m.records == nil {
		return nil, NewError(ErrCodeConfiguration, "RecordRepository is required (use WithRecordRepository)")
	}
	if m.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithManagerLogger)")
	}

	return m, nil
}

// StoreRequest holds the input for Store.
type StoreRequest struct {
	Payload      model.Payload // Message content to hold for the recipient
	RecipientKey string        // Verification key of the recipient
	TargetDID    string        // Optional; triggers a stored-message event
	Endpoint     string        // Optional; recorded as target URL and echoed in the event
}

// Validate implements validation.Validatable.
func (r StoreRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RecipientKey, validation.Required, validation.Length(1, 255)),
	)
}

// Store persists a new WAITING record for the recipient.
//
// When TargetDID is set, a stored-message event is handed to the
// notification service. A notification failure is logged and never fails
// the store.
func (m *Manager) Store(ctx context.Context, req StoreRequest) (*model.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid store request", err)
	}

	record := model.NewRecord(req.RecipientKey, req.Payload, req.Endpoint)
	saved, err := m.records.Save(ctx, &record)
	if err != nil {
		return nil, err
	}

	m.logger.Infof("Message stored: id=%s, recipient=%s", saved.ID, saved.RecipientKey)

	if req.TargetDID != "" {
		event := model.NewStoredMessageEvent(saved, req.TargetDID, req.Endpoint)
		if err := m.notifications.NotifyMessageStored(ctx, event); err != nil {
			m.logger.Warnf("⚠️ %s: message_id=%s, target_did=%s: %v",
				ErrCodeNotificationFailed, saved.ID, req.TargetDID, err)
		}
	}

	return saved, nil
}

// FetchByID returns a single record. No ownership check is applied; this
// is an administrative lookup.
func (m *Manager) FetchByID(ctx context.Context, id string) (*model.Record, error) {
	record, err := m.records.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FetchByRecipientKey returns every record stored for key, in store-native order.
func (m *Manager) FetchByRecipientKey(ctx context.Context, key string) ([]model.Record, error) {
	if key == "" {
		return []model.Record{}, nil
	}
	records, err := m.records.Query(ctx, Filter{RecipientKey: key})
	if err != nil {
		return nil, err
	}
	return ownedBy(records, key), nil
}

// ReceiveBatchPickupRequest selects up to BatchSize of the sender's
// records, oldest first, and builds the response.
//
// The returned records are not yet marked delivered. The caller sends the
// response first and then calls MarkDelivered, so a crash in between
// re-delivers instead of losing messages.
func (m *Manager) ReceiveBatchPickupRequest(
	ctx context.Context,
	req *message.BatchPickupRequest,
	senderKey string,
) (*message.BatchPickupResponse, []model.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, NewErrorWithCause(ErrCodeValidation, "invalid batch pickup request", err)
	}
	if senderKey == "" {
		return nil, nil, NewError(ErrCodeValidation, "sender key is required")
	}

	filter := Filter{RecipientKey: senderKey}
	if !m.includeDelivered {
		filter.State = model.StateWaiting
	}
	records, err := m.records.Query(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	records = ownedBy(records, senderKey)
	if !m.includeDelivered {
		records = waiting(records)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	if len(records) > req.BatchSize {
		records = records[:req.BatchSize]
	}

	attachments, err := message.NewAttachments(records)
	if err != nil {
		return nil, nil, NewErrorWithCause(ErrCodeStorageUnavailable, "failed to encode stored message", err)
	}

	resp := message.NewBatchPickupResponse(m.family, attachments)
	message.ReplyTo(resp, req)

	m.logger.Debugf("Batch pickup: recipient=%s, requested=%d, selected=%d",
		senderKey, req.BatchSize, len(records))

	return resp, records, nil
}

// ReceiveStatusRequest reports the sender's queue: MessageCount is the
// number of waiting records, TotalSize the number of records in any state.
func (m *Manager) ReceiveStatusRequest(
	ctx context.Context,
	req *message.StatusRequest,
	senderKey string,
) (*message.StatusResponse, error) {
	records, err := m.FetchByRecipientKey(ctx, senderKey)
	if err != nil {
		return nil, err
	}

	resp := message.NewStatusResponse(m.family, len(waiting(records)), len(records))
	message.ReplyTo(resp, req)

	m.logger.Debugf("Status: recipient=%s, waiting=%d, total=%d",
		senderKey, resp.MessageCount, resp.TotalSize)

	return resp, nil
}

// ReceiveListRequest returns the requested records the sender owns, in
// request order. Unknown ids and ids owned by another key are skipped
// without error. Records are not marked delivered.
func (m *Manager) ReceiveListRequest(
	ctx context.Context,
	req *message.ListPickupRequest,
	senderKey string,
) (*message.ListPickupResponse, []model.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, NewErrorWithCause(ErrCodeValidation, "invalid list pickup request", err)
	}

	selected, err := m.loadOwned(ctx, req.MessageIDs, senderKey)
	if err != nil {
		return nil, nil, err
	}

	attachments, err := message.NewAttachments(selected)
	if err != nil {
		return nil, nil, NewErrorWithCause(ErrCodeStorageUnavailable, "failed to encode stored message", err)
	}

	resp := message.NewListPickupResponse(m.family, attachments)
	message.ReplyTo(resp, req)

	m.logger.Debugf("List pickup: recipient=%s, requested=%d, returned=%d",
		senderKey, len(req.MessageIDs), len(selected))

	return resp, selected, nil
}

// ReceiveDeletePickupRequest deletes the requested records the sender owns
// and reports the ids actually removed. Unknown and foreign ids are skipped.
func (m *Manager) ReceiveDeletePickupRequest(
	ctx context.Context,
	req *message.DeletePickupRequest,
	senderKey string,
) (*message.DeletePickupResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid delete pickup request", err)
	}

	owned, err := m.loadOwned(ctx, req.MessageIDs, senderKey)
	if err != nil {
		return nil, err
	}

	deleted := make([]string, 0, len(owned))
	for i := range owned {
		err := m.records.Delete(ctx, &owned[i])
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, owned[i].ID)
	}

	resp := message.NewDeletePickupResponse(m.family, deleted)
	message.ReplyTo(resp, req)

	m.logger.Infof("Messages deleted: recipient=%s, requested=%d, deleted=%d",
		senderKey, len(req.MessageIDs), len(deleted))

	return resp, nil
}

// ReceiveDeletePickupResponse acknowledges a delete confirmation from the
// mediator and returns the confirmed ids.
func (m *Manager) ReceiveDeletePickupResponse(_ context.Context, resp *message.DeletePickupResponse) []string {
	m.logger.Infof("Delete confirmed: thread=%s, ids=%v", resp.ThreadID(), resp.MessageIDs)
	return resp.MessageIDs
}

// MarkDelivered moves each waiting record to SENT and saves it.
// Records already SENT or RECEIVED are left untouched, so repeated calls
// are harmless. Records deleted in the meantime are skipped. Each record
// is saved separately; the first save error is returned after all records
// were attempted.
func (m *Manager) MarkDelivered(ctx context.Context, records []model.Record) error {
	var firstErr error
	for i := range records {
		record := &records[i]
		if !record.MarkSent() {
			continue
		}
		_, err := m.records.Save(ctx, record)
		if IsNotFound(err) {
			m.logger.Debugf("Message deleted before it was marked delivered: id=%s", record.ID)
			continue
		}
		if err != nil {
			m.logger.Errorf("Failed to mark message delivered: id=%s: %v", record.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// CreateBatchPickupRequest builds a batch pickup request and, when
// connectionID is set, sends it.
func (m *Manager) CreateBatchPickupRequest(
	ctx context.Context,
	batchSize int,
	connectionID string,
) (*message.BatchPickupRequest, error) {
	req := message.NewBatchPickupRequest(m.family, batchSize)
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid batch pickup request", err)
	}
	return req, m.send(ctx, req, connectionID)
}

// CreateStatusRequest builds a status request and, when connectionID is
// set, sends it.
func (m *Manager) CreateStatusRequest(ctx context.Context, connectionID string) (*message.StatusRequest, error) {
	req := message.NewStatusRequest(m.family)
	return req, m.send(ctx, req, connectionID)
}

// CreateListRequest builds a list pickup request and, when connectionID is
// set, sends it. An empty id list is rejected; there is nothing to ask for.
func (m *Manager) CreateListRequest(
	ctx context.Context,
	messageIDs []string,
	connectionID string,
) (*message.ListPickupRequest, error) {
	if len(messageIDs) == 0 {
		return nil, NewError(ErrCodeValidation, "list pickup request needs at least one message id")
	}
	req := message.NewListPickupRequest(m.family, messageIDs)
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid list pickup request", err)
	}
	return req, m.send(ctx, req, connectionID)
}

// CreateDeletePickupRequest builds a delete pickup request and, when
// connectionID is set, sends it.
func (m *Manager) CreateDeletePickupRequest(
	ctx context.Context,
	messageIDs []string,
	connectionID string,
) (*message.DeletePickupRequest, error) {
	if len(messageIDs) == 0 {
		return nil, NewError(ErrCodeValidation, "delete pickup request needs at least one message id")
	}
	req := message.NewDeletePickupRequest(m.family, messageIDs)
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid delete pickup request", err)
	}
	return req, m.send(ctx, req, connectionID)
}

func (m *Manager) send(ctx context.Context, msg message.Message, connectionID string) error {
	if connectionID == "" {
		return nil
	}
	if m.sender == nil {
		m.logger.Warnf("No sender configured, %s for connection %s not sent", msg.Kind(), connectionID)
		return nil
	}
	if err := m.sender.Send(ctx, msg, connectionID); err != nil {
		return NewErrorWithCause(ErrCodeDelivery, "failed to send "+msg.Kind().String(), err)
	}
	m.logger.Debugf("Sent %s: id=%s, connection=%s", msg.Kind(), msg.MessageID(), connectionID)
	return nil
}

// loadOwned loads ids in order, skipping missing, foreign and repeated ids.
func (m *Manager) loadOwned(ctx context.Context, ids []string, senderKey string) ([]model.Record, error) {
	out := make([]model.Record, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		record, err := m.records.Load(ctx, id)
		if IsNotFound(err) {
			m.logger.Debugf("Requested message not found: id=%s", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !record.BelongsTo(senderKey) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func ownedBy(records []model.Record, key string) []model.Record {
	out := make([]model.Record, 0, len(records))
	for i := range records {
		if records[i].BelongsTo(key) {
			out = append(out, records[i])
		}
	}
	return out
}

func waiting(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for i := range records {
		if records[i].IsWaiting() {
			out = append(out, records[i])
		}
	}
	return out
}
