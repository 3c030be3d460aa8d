package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "invoicer:lock:"

// Only the holder of the token may release or extend the lock.
const (
	lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`
	lockExtendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`
)

var (
	ErrLockNotConfigured = errors.New("lock_not_configured")
	ErrLockKeyEmpty      = errors.New("lock_key_empty")
	ErrLockTTLInvalid    = errors.New("lock_ttl_invalid")
)

// Locker hands out short-lived exclusive leases. It backs the scheduler's
// single-runner guarantee across replicas.
type Locker struct {
	client  *redis.Client
	release *redis.Script
	extend  *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(lockReleaseScript),
		extend:  redis.NewScript(lockExtendScript),
	}
}

// LockKey namespaces a lock name.
func LockKey(name string) string {
	return lockKeyPrefix + name
}

// TryLock acquires name for ttl. It returns the holder token and false when
// someone else holds the lease.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrLockNotConfigured
	}
	if name == "" {
		return "", false, ErrLockKeyEmpty
	}
	if ttl <= 0 {
		return "", false, ErrLockTTLInvalid
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, LockKey(name), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Extend pushes the lease expiry out while the caller still holds it.
func (l *Locker) Extend(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	if l == nil || l.client == nil {
		return false, ErrLockNotConfigured
	}
	if name == "" || token == "" {
		return false, ErrLockKeyEmpty
	}
	n, err := l.extend.Run(ctx, l.client, []string{LockKey(name)}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *Locker) Release(ctx context.Context, name, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if name == "" || token == "" {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{LockKey(name)}, token).Err()
}
