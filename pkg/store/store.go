// Package store persists poll documents in Redis as JSON documents with a
// time-to-live. Mutations are path-scoped JSON.SET / JSON.DEL commands so
// concurrent writers touching disjoint fields never overwrite each other;
// the document is only ever read or written whole at creation time.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rankroom/rankroom/pkg/polls"
	"github.com/rankroom/rankroom/pkg/redis"
)

const keyPrefix = "polls:"

const rootPath = "."

// Store implements polls.Store on top of RedisJSON.
type Store struct {
	rdb    *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New returns a Store writing through the given client. ttl bounds every
// document's lifetime; expiry is the only teardown path.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{rdb: client.GetClient(), ttl: ttl, logger: logger}
}

// Key returns the Redis key for a poll ID.
func Key(pollID string) string {
	return keyPrefix + pollID
}

// Create writes the full document and its TTL as one transaction.
func (s *Store) Create(ctx context.Context, poll *polls.Poll) error {
	raw, err := json.Marshal(poll)
	if err != nil {
		return polls.StorageError("failed to encode poll", err)
	}

	key := Key(poll.ID)
	s.logger.Debug("creating poll document",
		zap.String("key", key),
		zap.Duration("ttl", s.ttl))

	pipe := s.rdb.TxPipeline()
	pipe.JSONSet(ctx, key, rootPath, string(raw))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return polls.StorageError("failed to create poll", err)
	}
	return nil
}

// Get returns the current document, or a not-found error once the TTL has
// elapsed or the poll never existed.
func (s *Store) Get(ctx context.Context, pollID string) (*polls.Poll, error) {
	key := Key(pollID)

	raw, err := s.rdb.JSONGet(ctx, key, rootPath).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, polls.NotFound("poll does not exist")
		}
		return nil, polls.StorageError("failed to read poll", err)
	}
	if raw == "" {
		return nil, polls.NotFound("poll does not exist")
	}

	var poll polls.Poll
	if err := json.Unmarshal([]byte(raw), &poll); err != nil {
		return nil, polls.StorageError("failed to decode poll", err)
	}
	return &poll, nil
}

// SetField writes one field of the document.
func (s *Store) SetField(ctx context.Context, pollID string, field polls.Field, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return polls.StorageError("failed to encode field value", err)
	}

	key := Key(pollID)
	if err := s.rdb.JSONSet(ctx, key, field.Path(), string(raw)).Err(); err != nil {
		// JSON.SET on a sub-path of a missing document errors; distinguish
		// an expired poll from a genuine storage fault.
		if exists, existsErr := s.rdb.Exists(ctx, key).Result(); existsErr == nil && exists == 0 {
			return polls.NotFound("poll does not exist")
		}
		return polls.StorageError("failed to write poll field", err)
	}
	return nil
}

// DeleteField removes one field. Deleting an absent field, or a field of an
// absent document, is a no-op.
func (s *Store) DeleteField(ctx context.Context, pollID string, field polls.Field) error {
	if err := s.rdb.JSONDel(ctx, Key(pollID), field.Path()).Err(); err != nil {
		return polls.StorageError("failed to delete poll field", err)
	}
	return nil
}
