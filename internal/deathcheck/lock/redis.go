package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "mywill:lock:"

// releaseScript shortens the lock to the remaining minimum hold, or deletes it
// when none remains. The token check keeps a lease from touching a lock that
// expired and was re-acquired by another instance.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
local remaining = tonumber(ARGV[2])
if remaining > 0 then
	return redis.call("PEXPIRE", KEYS[1], remaining)
end
return redis.call("DEL", KEYS[1])
`)

// Redis implements Provider with SET NX PX.
type Redis struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (r *Redis) Acquire(ctx context.Context, name string, atMost, atLeast time.Duration) (Lease, bool, error) {
	if err := validate(atMost, atLeast); err != nil {
		return nil, false, err
	}
	token := uuid.NewString()
	key := redisKeyPrefix + name
	lockedAt := r.now()

	err := r.client.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: atMost}).Err()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("acquire redis lock %s: %w", name, err)
	}
	return &redisLease{r: r, key: key, token: token, lockedAt: lockedAt, atLeast: atLeast}, true, nil
}

type redisLease struct {
	r        *Redis
	key      string
	token    string
	lockedAt time.Time
	atLeast  time.Duration
}

func (l *redisLease) Release(ctx context.Context) error {
	remaining := releaseUntil(l.lockedAt, l.r.now(), l.atLeast).Sub(l.r.now())
	if remaining < time.Millisecond {
		remaining = 0
	}
	err := releaseScript.Run(ctx, l.r.client, []string{l.key}, l.token, remaining.Milliseconds()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release redis lock: %w", err)
	}
	return nil
}
