package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLock guards a job so only one replica runs it at a time.
type RunLock interface {
	// TryAcquire takes the lock without waiting. When acquired is false
	// another holder owns it. release must be called after a successful
	// acquire.
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// releaseScript deletes the key only if it still holds our token, so a run
// that outlived its TTL cannot release a lock another replica now holds.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisRunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRunLock returns a Redis-backed lock, or a lock that always succeeds when
// client is nil (single-replica deployments without Redis).
func NewRunLock(client *redis.Client, key string, ttl time.Duration) RunLock {
	if client == nil {
		return noopRunLock{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &redisRunLock{client: client, key: key, ttl: ttl}
}

func (l *redisRunLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	err := l.client.SetArgs(ctx, l.key, token, redis.SetArgs{Mode: "NX", TTL: l.ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire run lock: %w", err)
	}

	release := func() {
		// The run's context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}

type noopRunLock struct{}

func (noopRunLock) TryAcquire(context.Context) (func(), bool, error) {
	return func() {}, true, nil
}
