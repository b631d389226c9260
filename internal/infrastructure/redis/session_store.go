package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const (
	KeySessionToken = "session_token"
	KeyUserID       = "user_id"
)

// SessionStore keeps a device's cached credential and user id under one
// namespace. Both keys are always written and removed in one MULTI.
type SessionStore struct {
	rdb       *goredis.Client
	namespace string
}

func NewSessionStore(c *Client, namespace string) *SessionStore {
	return &SessionStore{rdb: c.rdb, namespace: namespace}
}

func (s *SessionStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

// Load returns empty strings when nothing is cached.
func (s *SessionStore) Load(ctx context.Context) (token, userID string, err error) {
	vals, err := s.rdb.MGet(ctx, s.key(KeySessionToken), s.key(KeyUserID)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return "", "", fmt.Errorf("session store load: %w", err)
	}
	if len(vals) == 2 {
		token, _ = vals[0].(string)
		userID, _ = vals[1].(string)
	}
	return token, userID, nil
}

func (s *SessionStore) Save(ctx context.Context, token, userID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, s.key(KeySessionToken), token, 0)
		p.Set(ctx, s.key(KeyUserID), userID, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session store save: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, s.key(KeySessionToken), s.key(KeyUserID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("session store clear: %w", err)
	}
	return nil
}
