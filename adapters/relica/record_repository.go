package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/relica"
	"github.com/google/uuid"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/model"
)

// RecordRepository implements pickup.RecordRepository using Relica.
type RecordRepository struct {
	db          *relica.DB
	tablePrefix string
}

var _ pickup.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository with default table prefix.
func NewRecordRepository(sqlDB *sql.DB, driverName string) *RecordRepository {
	return &RecordRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		tablePrefix: "pickup_",
	}
}

// NewRecordRepositoryWithPrefix creates a new RecordRepository with custom table prefix.
func NewRecordRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *RecordRepository {
	return &RecordRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		tablePrefix: prefix,
	}
}

func (r *RecordRepository) tableName() string {
	return r.tablePrefix + "message"
}

// Load retrieves a record by ID.
func (r *RecordRepository) Load(ctx context.Context, id string) (model.Record, error) {
	var record model.Record

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("id = ?", id).
		WithContext(ctx).
		One(&record)

	if errors.Is(err, sql.ErrNoRows) {
		return record, pickup.ErrNotFound
	}
	if err != nil {
		return record, pickup.NewErrorWithCause(pickup.ErrCodeStorageUnavailable, "failed to load record", err)
	}

	return record, nil
}

// Save creates or updates a record. A record without ID is inserted with
// a freshly generated UUID; updating an unknown ID returns ErrNotFound.
func (r *RecordRepository) Save(ctx context.Context, m *model.Record) (*model.Record, error) {
	if err := m.Validate(); err != nil {
		return m, pickup.NewErrorWithCause(pickup.ErrCodeValidation, "invalid record", err)
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
		err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Insert()
		if err != nil {
			m.ID = ""
			return m, pickup.NewErrorWithCause(pickup.ErrCodeStorageUnavailable, "failed to insert record", err)
		}
		return m, nil
	}

	stored, err := r.Load(ctx, m.ID)
	if err != nil {
		return m, err
	}
	if err := m.CanReplace(&stored); err != nil {
		return m, pickup.NewErrorWithCause(pickup.ErrCodeValidation, "invalid record update", err)
	}

	// recipient_key and created_at are fixed at insert.
	err = r.db.WithContext(ctx).Model(m).Table(r.tableName()).
		Update("payload", "target_url", "state", "updated_at")
	if err != nil {
		return m, pickup.NewErrorWithCause(pickup.ErrCodeStorageUnavailable, "failed to update record", err)
	}

	return m, nil
}

// Delete removes a record.
func (r *RecordRepository) Delete(ctx context.Context, m *model.Record) error {
	if _, err := r.Load(ctx, m.ID); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Delete()
	if err != nil {
		return pickup.NewErrorWithCause(pickup.ErrCodeStorageUnavailable, "failed to delete record", err)
	}

	return nil
}

// Query retrieves records matching the filter, oldest first.
func (r *RecordRepository) Query(ctx context.Context, filter pickup.Filter) ([]model.Record, error) {
	records := make([]model.Record, 0)

	q := r.db.WithContext(ctx).Select("*").From(r.tableName())
	if filter.RecipientKey != "" {
		q = q.Where("recipient_key = ?", filter.RecipientKey)
	}
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	q = q.OrderBy("created_at ASC")
	if filter.Limit > 0 {
		q = q.Limit(int64(filter.Limit))
	}

	err := q.WithContext(ctx).All(&records)
	if err != nil {
		return nil, pickup.NewErrorWithCause(pickup.ErrCodeStorageUnavailable, "failed to query records", err)
	}

	if records == nil {
		records = make([]model.Record, 0)
	}
	return records, nil
}
