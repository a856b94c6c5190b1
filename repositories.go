package pickup

import (
	"context"

	"github.com/coregx/pickup/model"
)

// Filter represents query filtering options for stored records.
// Used by RecordRepository.Query to filter results.
type Filter struct {
	RecipientKey string              // Filter by recipient key (empty = no filter)
	State        model.DeliveryState // Filter by delivery state (empty = any state)
	Limit        int                 // Maximum results (0 = no limit)
}

// Matches reports whether r satisfies the filter.
func (f Filter) Matches(r *model.Record) bool {
	if f.RecipientKey != "" && r.RecipientKey != f.RecipientKey {
		return false
	}
	if f.State != "" && r.State != f.State {
		return false
	}
	return true
}

// RecordRepository defines the persistence interface for stored messages.
//
// Implementations must be safe for concurrent use. Driver-level failures
// are reported as ErrCodeStorageUnavailable errors; missing records as
// ErrNotFound.
type RecordRepository interface {
	// Load retrieves a record by ID.
	// Returns ErrNotFound if not found.
	Load(ctx context.Context, id string) (model.Record, error)

	// Save creates a new record (if ID is empty) or updates an existing one.
	// Returns the saved record with populated ID. Updating an unknown ID
	// returns ErrNotFound; changing the recipient key of an existing record
	// is an ErrCodeValidation error.
	Save(ctx context.Context, m *model.Record) (*model.Record, error)

	// Delete permanently removes a record from storage.
	// Returns ErrNotFound if the record does not exist.
	Delete(ctx context.Context, m *model.Record) error

	// Query retrieves records matching the filter in store-native order.
	// Returns an empty slice if none match.
	Query(ctx context.Context, filter Filter) ([]model.Record, error)
}
