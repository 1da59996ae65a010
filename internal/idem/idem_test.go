package idem

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements redisClient over a map, ignoring TTLs.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func storeContract(t *testing.T, s Store) {
	ctx := context.Background()
	key := Key("owner-1", "abc")
	fp := Fingerprint("POST", "/v1/transactions/deposit", []byte(`{"amount":100}`))

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Reserve(ctx, key, fp, DefaultTTL))
	assert.ErrorIs(t, s.Reserve(ctx, key, fp, DefaultTTL), ErrInFlight)

	rec, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Pending)
	assert.Equal(t, fp, rec.Fingerprint)

	require.NoError(t, s.Complete(ctx, key, Record{Fingerprint: fp, Status: 201, Body: []byte(`{"ok":true}`)}, DefaultTTL))
	rec, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, rec.Pending)
	assert.Equal(t, 201, rec.Status)
	assert.JSONEq(t, `{"ok":true}`, string(rec.Body))

	other := Key("owner-2", "abc")
	require.NoError(t, s.Reserve(ctx, other, fp, DefaultTTL), "keys are scoped per owner")
	require.NoError(t, s.Release(ctx, other))
	_, ok, err = s.Get(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemory())
}

func TestRedisStore(t *testing.T) {
	fake := newFakeRedis()
	storeContract(t, NewRedisWithClient(fake))
	assert.Equal(t, DefaultTTL, fake.ttls["pitaka:idem:owner-1:abc"])
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, "k", "fp", time.Hour))
	now = now.Add(2 * time.Hour)
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, m.Reserve(ctx, "k", "fp", time.Hour))
}

func TestFingerprintDistinguishesRequests(t *testing.T) {
	a := Fingerprint("POST", "/v1/payments", []byte(`{"amount":1}`))
	b := Fingerprint("POST", "/v1/payments", []byte(`{"amount":2}`))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Fingerprint("POST", "/v1/payments", []byte(`{"amount":1}`)))
}
