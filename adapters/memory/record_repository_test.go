package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/model"
)

func TestRecordRepository_SaveAssignsID(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository()

	record := model.NewRecord("kA", model.Payload{"n": 1}, "")
	saved, err := repo.Save(ctx, &record)

	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, 1, repo.Len())

	loaded, err := repo.Load(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "kA", loaded.RecipientKey)
	assert.Equal(t, model.StateWaiting, loaded.State)
}

func TestRecordRepository_SaveUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository()

	record := model.NewRecord("kA", nil, "")
	_, err := repo.Save(ctx, &record)
	require.NoError(t, err)

	record.MarkSent()
	_, err = repo.Save(ctx, &record)
	require.NoError(t, err)

	loaded, err := repo.Load(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateSent, loaded.State)
	assert.Equal(t, 1, repo.Len())
}

func TestRecordRepository_SaveKeepsRecipientKey(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository()

	record := model.NewRecord("kA", nil, "")
	_, err := repo.Save(ctx, &record)
	require.NoError(t, err)

	rekeyed := record
	rekeyed.RecipientKey = "kB"
	_, err = repo.Save(ctx, &rekeyed)
	assert.True(t, pickup.IsValidation(err))

	loaded, err := repo.Load(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "kA", loaded.RecipientKey)

	foreign, err := repo.Query(ctx, pickup.Filter{RecipientKey: "kB"})
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

func TestRecordRepository_SaveUnknownID(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository()

	record := model.NewRecord("kA", nil, "")
	_, err := repo.Save(ctx, &record)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, &record))

	record.MarkSent()
	_, err = repo.Save(ctx, &record)
	assert.True(t, pickup.IsNotFound(err))
	assert.Equal(t, 0, repo.Len())
}

func TestRecordRepository_SaveRejectsInvalid(t *testing.T) {
	repo := NewRecordRepository()
	record := model.NewRecord("", nil, "")

	_, err := repo.Save(context.Background(), &record)
	assert.True(t, pickup.IsValidation(err))
	assert.Equal(t, 0, repo.Len())
}

func TestRecordRepository_LoadMissing(t *testing.T) {
	repo := NewRecordRepository()

	_, err := repo.Load(context.Background(), "nope")
	assert.True(t, pickup.IsNotFound(err))
}

func TestRecordRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository()

	first := model.NewRecord("kA", nil, "")
	second := model.NewRecord("kA", nil, "")
	_, _ = repo.Save(ctx, &first)
	_, _ = repo.Save(ctx, &second)

	require.NoError(t, repo.Delete(ctx, &first))
	assert.True(t, pickup.IsNotFound(repo.Delete(ctx, &first)))

	records, err := repo.Query(ctx, pickup.Filter{RecipientKey: "kA"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second.ID, records[0].ID)
}

func TestRecordRepository_Query(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository()

	a1 := model.NewRecord("kA", nil, "")
	b1 := model.NewRecord("kB", nil, "")
	a2 := model.NewRecord("kA", nil, "")
	a2.MarkSent()
	for _, r := range []*model.Record{&a1, &b1, &a2} {
		_, err := repo.Save(ctx, r)
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		filter  pickup.Filter
		wantIDs []string
	}{
		{name: "By key keeps insertion order", filter: pickup.Filter{RecipientKey: "kA"}, wantIDs: []string{a1.ID, a2.ID}},
		{name: "By key and state", filter: pickup.Filter{RecipientKey: "kA", State: model.StateWaiting}, wantIDs: []string{a1.ID}},
		{name: "Limit", filter: pickup.Filter{Limit: 2}, wantIDs: []string{a1.ID, b1.ID}},
		{name: "No match", filter: pickup.Filter{RecipientKey: "kC"}, wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := repo.Query(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(records))
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestRecordRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository()

	record := model.NewRecord("kA", model.Payload{"k": "v"}, "")
	_, err := repo.Save(ctx, &record)
	require.NoError(t, err)

	loaded, err := repo.Load(ctx, record.ID)
	require.NoError(t, err)
	loaded.Payload["k"] = "changed"
	loaded.State = model.StateSent

	again, err := repo.Load(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "v", again.Payload["k"])
	assert.Equal(t, model.StateWaiting, again.State)
}
