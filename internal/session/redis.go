package session

import (
	"context"
	"encoding/json"
	"github.com/go-redis/redis/v9"
	"github.com/pkg/errors"
	"time"
)

const DefaultRedisPrefix = "coinmarket:"

type RedisStore struct {
	Redis  *redis.Client
	Prefix string
}

func (r RedisStore) sessionKey(id string) string {
	return r.Prefix + "session:" + id
}

func (r RedisStore) cursorKey(email string) string {
	return r.Prefix + "cursor:" + email
}

func (r RedisStore) Save(ctx context.Context, s Session, ttl time.Duration) error {
	sJSON, err := json.Marshal(s)
	if err != nil {
		return errors.Wrapf(err, "error marshalling Session ID: %s", s.ID)
	}
	if err = r.Redis.Set(ctx, r.sessionKey(s.ID), sJSON, ttl).Err(); err != nil {
		return errors.Wrapf(err, "error setting Redis key: %s", r.sessionKey(s.ID))
	}
	return nil
}

func (r RedisStore) Find(ctx context.Context, id string) (Session, error) {
	var s Session
	cached, err := r.Redis.Get(ctx, r.sessionKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return s, errors.Wrapf(ErrSessionNotFound, "ID: %s", id)
		}
		return s, errors.Wrapf(err, "error getting Redis key: %s", r.sessionKey(id))
	}
	if err = json.Unmarshal([]byte(cached), &s); err != nil {
		return s, errors.Wrapf(err, "error unmarshalling Session ID: %s", id)
	}
	return s, nil
}

func (r RedisStore) Delete(ctx context.Context, id string) error {
	n, err := r.Redis.Del(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return errors.Wrapf(err, "error deleting Redis key: %s", r.sessionKey(id))
	}
	if n == 0 {
		return errors.Wrapf(ErrSessionNotFound, "ID: %s", id)
	}
	return nil
}

func (r RedisStore) LastSeenRequest(ctx context.Context, email string) (string, error) {
	id, err := r.Redis.Get(ctx, r.cursorKey(email)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, errors.Wrapf(err, "error getting Redis key: %s", r.cursorKey(email))
}

func (r RedisStore) SetLastSeenRequest(ctx context.Context, email string, requestID string) error {
	err := r.Redis.Set(ctx, r.cursorKey(email), requestID, 0).Err()
	return errors.Wrapf(err, "error setting Redis key: %s", r.cursorKey(email))
}
