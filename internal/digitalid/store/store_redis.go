package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"safepilgrim/internal/digitalid/models"
	"safepilgrim/pkg/platform/sentinel"
)

const (
	recordKeyPrefix = "digitalid:record:"

	// maxAnchorRetries bounds the optimistic WATCH loop when anchors on the same ID race.
	maxAnchorRetries = 10
)

// RedisStore keeps issued records as JSON values with a retention TTL.
// Anchors use WATCH/MULTI so concurrent updates to one ID never drop a hash.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed record store. A zero ttl keeps records forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func recordKey(digitalID string) string {
	return recordKeyPrefix + digitalID
}

func (s *RedisStore) Save(ctx context.Context, record models.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, recordKey(record.DigitalID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, digitalID string) (models.Record, error) {
	raw, err := s.client.Get(ctx, recordKey(digitalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Record{}, ErrNotFound
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("find record: %w", err)
	}
	return decodeRecord(raw)
}

func (s *RedisStore) Anchor(ctx context.Context, digitalID, hash string, updates models.FieldUpdates, at time.Time) (models.Record, error) {
	var updated models.Record
	err := s.mutate(ctx, digitalID, func(rec *models.Record) {
		rec.Anchor(hash, updates, at)
		updated = *rec
	})
	if err != nil {
		return models.Record{}, err
	}
	return updated, nil
}

func (s *RedisStore) SetStatus(ctx context.Context, digitalID string, status models.RecordStatus, at time.Time) error {
	return s.mutate(ctx, digitalID, func(rec *models.Record) {
		rec.Status = status
		rec.UpdatedAt = at
	})
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// mutate applies fn to the stored record inside an optimistic transaction,
// keeping the remaining TTL.
func (s *RedisStore) mutate(ctx context.Context, digitalID string, fn func(*models.Record)) error {
	key := recordKey(digitalID)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		fn(&rec)
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		return err
	}

	for range maxAnchorRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("update record: %w", err)
		}
		return err
	}
	return fmt.Errorf("update record %s: %w", digitalID, sentinel.ErrConflict)
}

func decodeRecord(raw []byte) (models.Record, error) {
	var rec models.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}
