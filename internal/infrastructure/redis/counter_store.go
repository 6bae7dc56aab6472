package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// incrementScript bumps the counter and starts its TTL on the first hit in
// one round trip, so concurrent requests cannot observe a counter without
// an expiry.
var incrementScript = goredis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// CounterStore implements throttle.Store on Redis.
type CounterStore struct {
	client goredis.UniversalClient
	prefix string
}

func NewCounterStore(client goredis.UniversalClient, prefix string) *CounterStore {
	return &CounterStore{client: client, prefix: prefix}
}

func (s *CounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := incrementScript.Run(ctx, s.client, []string{s.prefix + key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return count, nil
}
