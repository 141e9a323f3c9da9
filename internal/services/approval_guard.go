package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// ApprovalGuard short-circuits duplicate in-flight decisions on the same
// transaction. The database status check stays authoritative; when redis is
// unavailable the guard lets the request through.
type ApprovalGuard struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewApprovalGuard(client *redis.Client, ttl time.Duration) *ApprovalGuard {
	return &ApprovalGuard{Redis: client, TTL: ttl}
}

// Acquire takes the decision lock for kind/id. The returned release func is always non-nil.
func (g *ApprovalGuard) Acquire(ctx context.Context, kind string, id int64) (func(), error) {
	noop := func() {}
	if g == nil || g.Redis == nil {
		return noop, nil
	}

	key := fmt.Sprintf("lock:approval:%s:%d", kind, id)
	token := uuid.NewString()
	ok, err := g.Redis.SetNX(ctx, key, token, g.TTL).Result()
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("approval guard unavailable")
		return noop, nil
	}
	if !ok {
		return noop, fmt.Errorf("%s %d has a decision in flight: %w", kind, id, ErrAlreadyProcessed)
	}

	return func() {
		if err := releaseScript.Run(context.Background(), g.Redis, []string{key}, token).Err(); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("approval guard release failed")
		}
	}, nil
}
