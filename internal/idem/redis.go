package idem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the part of redis.Cmdable the store uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis is a Store shared by every API instance.
type Redis struct {
	client    redisClient
	namespace string
}

var _ Store = (*Redis)(nil)

// NewRedis connects to addr. The caller closes the returned client on shutdown.
func NewRedis(addr, password string) (*Redis, *redis.Client) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	return NewRedisWithClient(client), client
}

func NewRedisWithClient(c redisClient) *Redis {
	return &Redis{client: c, namespace: "pitaka:idem"}
}

func (r *Redis) key(k string) string { return r.namespace + ":" + k }

func (r *Redis) Get(ctx context.Context, key string) (Record, bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return rec, true, nil
}

func (r *Redis) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) error {
	data, err := json.Marshal(Record{Pending: true, Fingerprint: fingerprint})
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.key(key), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrInFlight
	}
	return nil
}

func (r *Redis) Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	rec.Pending = false
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), data, ttl).Err()
}

func (r *Redis) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
