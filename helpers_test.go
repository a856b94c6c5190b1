package pickup_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/adapters/memory"
	"github.com/coregx/pickup/message"
	"github.com/coregx/pickup/model"
)

// mockSender records outbound sends.
type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg message.Message, connectionID string) error {
	args := m.Called(ctx, msg, connectionID)
	return args.Error(0)
}

// mockNotifier records stored-message events.
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyMessageStored(ctx context.Context, event model.StoredMessageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// captureLogger keeps warnings and errors for assertions.
type captureLogger struct {
	pickup.NoopLogger
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (l *captureLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

// failingRepository fails every call with a storage error.
type failingRepository struct{}

var errDriver = errors.New("connection refused")

func storageErr() error {
	return pickup.NewErrorWithCause(pickup.ErrCodeStorageUnavailable, "store offline", errDriver)
}

func (failingRepository) Load(context.Context, string) (model.Record, error) {
	return model.Record{}, storageErr()
}

func (failingRepository) Save(_ context.Context, m *model.Record) (*model.Record, error) {
	return m, storageErr()
}

func (failingRepository) Delete(context.Context, *model.Record) error {
	return storageErr()
}

func (failingRepository) Query(context.Context, pickup.Filter) ([]model.Record, error) {
	return nil, storageErr()
}

// fixture holds the standard scenario: M1 and M2 for kA, M3 for kB,
// created in that order.
type fixture struct {
	repo    *memory.RecordRepository
	manager *pickup.Manager
	m1      model.Record
	m2      model.Record
	m3      model.Record
}

func newFixture(t *testing.T, opts ...pickup.ManagerOption) *fixture {
	t.Helper()

	repo := memory.NewRecordRepository()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	f := &fixture{repo: repo}
	f.m1 = seed(t, repo, "kA", base.Add(1*time.Second), model.Payload{"body": "m1"})
	f.m2 = seed(t, repo, "kA", base.Add(2*time.Second), model.Payload{"body": "m2"})
	f.m3 = seed(t, repo, "kB", base.Add(3*time.Second), model.Payload{"body": "m3"})

	all := append([]pickup.ManagerOption{
		pickup.WithRecordRepository(repo),
		pickup.WithManagerLogger(&pickup.NoopLogger{}),
	}, opts...)

	manager, err := pickup.NewManager(all...)
	require.NoError(t, err)
	f.manager = manager

	return f
}

func seed(t *testing.T, repo pickup.RecordRepository, key string, created time.Time, payload model.Payload) model.Record {
	t.Helper()

	record := model.NewRecord(key, payload, "")
	record.CreatedAt = created
	record.UpdatedAt = created

	saved, err := repo.Save(context.Background(), &record)
	require.NoError(t, err)
	return *saved
}

func (f *fixture) state(t *testing.T, id string) model.DeliveryState {
	t.Helper()

	record, err := f.repo.Load(context.Background(), id)
	require.NoError(t, err)
	return record.State
}

func attachmentIDs(attachments []message.Attachment) []string {
	ids := make([]string, 0, len(attachments))
	for _, a := range attachments {
		ids = append(ids, a.ID)
	}
	return ids
}
