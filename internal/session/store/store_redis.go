package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"apim/internal/session/models"
	"apim/pkg/platform/sentinel"
)

// RedisStore keeps sessions in Redis, one key per user. Rotate uses a
// WATCH-guarded transaction so the compare-and-swap holds under
// concurrent refreshes, matching the Postgres store's guarantee.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed session store. Keys expire with
// the refresh assertion lifetime, so abandoned sessions clean
// themselves up.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(userID string) string {
	return "apim:session:" + userID
}

func (s *RedisStore) Replace(ctx context.Context, session models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.UserID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, userID string) (models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Session{}, fmt.Errorf("session for %s: %w", userID, sentinel.ErrNotFound)
		}
		return models.Session{}, fmt.Errorf("find session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return models.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (s *RedisStore) Rotate(ctx context.Context, userID, presented, next string, now time.Time) error {
	key := sessionKey(userID)
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("session for %s: %w", userID, sentinel.ErrNotFound)
			}
			return fmt.Errorf("rotate session: %w", err)
		}
		var session models.Session
		if err := json.Unmarshal(raw, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if session.RefreshValue != presented {
			return ErrSuperseded
		}
		session.RefreshValue = next
		session.IssuedAt = now
		payload, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	// A watched-key collision means a concurrent rotation committed
	// first; that is exactly a superseded session.
	err := s.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrSuperseded
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	removed, err := s.client.Del(ctx, sessionKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("session for %s: %w", userID, sentinel.ErrNotFound)
	}
	return nil
}
