// Package redis provides a RecordRepository backed by Redis.
//
// Each record is stored as a JSON string under {<prefix>}record:<id>.
// Insertion order is kept in sorted sets scored by a monotonically
// increasing sequence: {<prefix>}records holds every record and
// {<prefix>}recipient:<key> the records of one recipient key.
//
// The prefix is a hash tag, so on Redis Cluster every key of one
// repository maps to the same slot and MGET and MULTI stay valid.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/model"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "pickup:"

// Config holds the connection settings for NewClient.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// RecordRepository implements pickup.RecordRepository on Redis.
type RecordRepository struct {
	rdb    goredis.UniversalClient
	prefix string
}

// NewRecordRepository creates a repository using rdb and DefaultPrefix.
func NewRecordRepository(rdb goredis.UniversalClient) *RecordRepository {
	return &RecordRepository{rdb: rdb, prefix: DefaultPrefix}
}

// WithPrefix returns a copy of the repository using prefix for every key.
func (r *RecordRepository) WithPrefix(prefix string) *RecordRepository {
	return &RecordRepository{rdb: r.rdb, prefix: prefix}
}

func (r *RecordRepository) key(suffix string) string {
	return "{" + r.prefix + "}" + suffix
}

func (r *RecordRepository) recordKey(id string) string {
	return r.key("record:" + id)
}

func (r *RecordRepository) recipientKey(key string) string {
	return r.key("recipient:" + key)
}

func (r *RecordRepository) allKey() string {
	return r.key("records")
}

func (r *RecordRepository) seqKey() string {
	return r.key("seq")
}

// Load retrieves a record by ID.
func (r *RecordRepository) Load(ctx context.Context, id string) (model.Record, error) {
	raw, err := r.rdb.Get(ctx, r.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return model.Record{}, pickup.ErrNotFound
		}
		return model.Record{}, unavailable("load record", err)
	}
	return decodeRecord(raw)
}

// Save creates or updates a record. Updating an unknown ID returns
// pickup.ErrNotFound.
func (r *RecordRepository) Save(ctx context.Context, m *model.Record) (*model.Record, error) {
	if err := m.Validate(); err != nil {
		return m, pickup.NewErrorWithCause(pickup.ErrCodeValidation, "invalid record", err)
	}

	inserted := m.ID == ""
	if inserted {
		m.ID = uuid.NewString()
	}
	if err := r.save(ctx, m, inserted); err != nil {
		if inserted {
			m.ID = ""
		}
		return m, err
	}
	return m, nil
}

func (r *RecordRepository) save(ctx context.Context, m *model.Record, inserted bool) error {
	if !inserted {
		existing, err := r.Load(ctx, m.ID)
		if err != nil {
			return err
		}
		if err := m.CanReplace(&existing); err != nil {
			return pickup.NewErrorWithCause(pickup.ErrCodeValidation, "invalid record update", err)
		}
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return pickup.NewErrorWithCause(pickup.ErrCodeValidation, "encode record", err)
	}

	score, err := r.score(ctx, m.ID, !inserted)
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.recordKey(m.ID), raw, 0)
		pipe.ZAdd(ctx, r.allKey(), goredis.Z{Score: score, Member: m.ID})
		pipe.ZAdd(ctx, r.recipientKey(m.RecipientKey), goredis.Z{Score: score, Member: m.ID})
		return nil
	})
	if err != nil {
		return unavailable("save record", err)
	}
	return nil
}

// score keeps the insertion position of an existing record and allocates
// the next sequence number for a new one.
func (r *RecordRepository) score(ctx context.Context, id string, exists bool) (float64, error) {
	if exists {
		score, err := r.rdb.ZScore(ctx, r.allKey(), id).Result()
		if err == nil {
			return score, nil
		}
		if !errors.Is(err, goredis.Nil) {
			return 0, unavailable("read record order", err)
		}
	}

	seq, err := r.rdb.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return 0, unavailable("allocate sequence", err)
	}
	return float64(seq), nil
}

// Delete removes a record and its index entries.
func (r *RecordRepository) Delete(ctx context.Context, m *model.Record) error {
	existing, err := r.Load(ctx, m.ID)
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, r.recordKey(m.ID))
		pipe.ZRem(ctx, r.allKey(), m.ID)
		pipe.ZRem(ctx, r.recipientKey(existing.RecipientKey), m.ID)
		return nil
	})
	if err != nil {
		return unavailable("delete record", err)
	}
	return nil
}

// Query returns matching records in insertion order.
func (r *RecordRepository) Query(ctx context.Context, filter pickup.Filter) ([]model.Record, error) {
	index := r.allKey()
	if filter.RecipientKey != "" {
		index = r.recipientKey(filter.RecipientKey)
	}

	ids, err := r.rdb.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, unavailable("query record index", err)
	}

	out := make([]model.Record, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("query records", err)
	}

	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		record, err := decodeRecord([]byte(s))
		if err != nil {
			return nil, err
		}
		if !filter.Matches(&record) {
			continue
		}
		out = append(out, record)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func decodeRecord(raw []byte) (model.Record, error) {
	var record model.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return model.Record{}, unavailable("decode record", err)
	}
	return record, nil
}

func unavailable(op string, err error) error {
	return pickup.NewErrorWithCause(pickup.ErrCodeStorageUnavailable, op, err)
}
