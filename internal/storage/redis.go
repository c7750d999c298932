package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kycflow/internal/domain"
)

const (
	entryKeyPrefix = "kyc:entry:"
	listKeyPrefix  = "kyc:list:"
)

// RedisEntryStore keeps list entries in Redis so multiple instances can
// share bulk-job state. Entries are JSON documents keyed by ID with a
// per-list sorted set for enumeration. The sorted set scores entries by
// first insertion, so ListByList always returns them in a stable order;
// bulk processing relies on that order surviving a pause and resume.
type RedisEntryStore struct {
	client *redis.Client
}

func NewRedisEntryStore(client *redis.Client) *RedisEntryStore {
	return &RedisEntryStore{client: client}
}

func (s *RedisEntryStore) Save(ctx context.Context, entry domain.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, entryKeyPrefix+entry.ID, payload, 0)
	// NX keeps the original score on re-save, so updating an entry
	// never moves it within the list.
	pipe.ZAddNX(ctx, listKeyPrefix+entry.ListID, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: entry.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

func (s *RedisEntryStore) FindByID(ctx context.Context, id string) (domain.Entry, error) {
	payload, err := s.client.Get(ctx, entryKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Entry{}, ErrNotFound
	}
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	var entry domain.Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return domain.Entry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	return entry, nil
}

func (s *RedisEntryStore) ListByList(ctx context.Context, listID string) ([]domain.Entry, error) {
	ids, err := s.client.ZRange(ctx, listKeyPrefix+listID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list entry ids: %w", err)
	}
	entries := make([]domain.Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := s.FindByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
