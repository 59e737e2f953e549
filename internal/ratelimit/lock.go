package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// fencedDelete removes the lock only while our fencing token is still
// stored under the key. Without the check a holder whose TTL lapsed
// could delete a lock somebody else has since acquired.
var fencedDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// sweepLock is a best-effort cross-replica mutex. Acquisition is a
// single SET NX with TTL; crash recovery rides on the TTL expiring.
type sweepLock struct {
	client *redis.Client
}

func newSweepLock(client *redis.Client) *sweepLock {
	if client == nil {
		return nil
	}
	return &sweepLock{client: client}
}

// acquire claims the key and returns the fencing token on success.
// ok is false when another replica holds the lock.
func (s *sweepLock) acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	if s == nil || s.client == nil {
		return "", false, errors.New("sweep lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("sweep lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("sweep lock ttl must be positive")
	}

	token = uuid.NewString()
	ok, err = s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (s *sweepLock) release(ctx context.Context, key, token string) error {
	if s == nil || s.client == nil || key == "" || token == "" {
		return nil
	}
	return fencedDelete.Run(ctx, s.client, []string{key}, token).Err()
}
