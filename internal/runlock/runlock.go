// internal/runlock/runlock.go
// Package runlock provides a best-effort Redis lease so overlapping trigger
// invocations skip instead of running twice. Correctness does not depend on
// it: the send-log uniqueness constraint is the real dedup mechanism.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Lock struct {
	client *redis.Client
}

func New(client *redis.Client) *Lock {
	return &Lock{client: client}
}

// Acquire attempts to take the named lease for ttl. It returns false when
// another invocation already holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key(name), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lease %s: %w", name, err)
	}
	return ok, nil
}

// Release drops the lease early so the next trigger does not wait out the TTL.
func (l *Lock) Release(ctx context.Context, name string) error {
	if err := l.client.Del(ctx, key(name)).Err(); err != nil {
		return fmt.Errorf("release run lease %s: %w", name, err)
	}
	return nil
}

func key(name string) string {
	return "notifier:runlock:" + name
}
