// Package memory provides an in-process RecordRepository.
//
// It keeps records in insertion order and is intended for tests, local
// development and single-node deployments that accept losing queued
// messages on restart.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/model"
)

// RecordRepository implements pickup.RecordRepository in memory.
type RecordRepository struct {
	mu      sync.RWMutex
	records map[string]model.Record
	order   []string
}

// NewRecordRepository creates an empty repository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{
		records: make(map[string]model.Record),
	}
}

// Load retrieves a record by ID.
func (r *RecordRepository) Load(_ context.Context, id string) (model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return model.Record{}, pickup.ErrNotFound
	}
	return cloneRecord(record), nil
}

// Save creates or updates a record. A record without ID is inserted;
// updating an unknown ID returns pickup.ErrNotFound.
func (r *RecordRepository) Save(_ context.Context, m *model.Record) (*model.Record, error) {
	if err := m.Validate(); err != nil {
		return m, pickup.NewErrorWithCause(pickup.ErrCodeValidation, "invalid record", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
		r.order = append(r.order, m.ID)
	} else if stored, ok := r.records[m.ID]; ok {
		if err := m.CanReplace(&stored); err != nil {
			return m, pickup.NewErrorWithCause(pickup.ErrCodeValidation, "invalid record update", err)
		}
	} else {
		return m, pickup.ErrNotFound
	}

	r.records[m.ID] = cloneRecord(*m)
	return m, nil
}

// Delete removes a record.
func (r *RecordRepository) Delete(_ context.Context, m *model.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[m.ID]; !ok {
		return pickup.ErrNotFound
	}
	delete(r.records, m.ID)

	for i, id := range r.order {
		if id == m.ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Query returns matching records in insertion order.
func (r *RecordRepository) Query(_ context.Context, filter pickup.Filter) ([]model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Record, 0)
	for _, id := range r.order {
		record := r.records[id]
		if !filter.Matches(&record) {
			continue
		}
		out = append(out, cloneRecord(record))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (r *RecordRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// cloneRecord copies the payload map so callers cannot mutate stored state.
func cloneRecord(record model.Record) model.Record {
	if record.Payload != nil {
		payload := make(model.Payload, len(record.Payload))
		for k, v := range record.Payload {
			payload[k] = v
		}
		record.Payload = payload
	}
	return record
}
