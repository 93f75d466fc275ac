package ratelimit

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/redis"
)

const redisKeyPrefix = "ratelimit:"

// RedisStore keeps counters in Redis so every instance shares them. Unlike
// MemoryStore it counts rejected attempts too; the window still ends at the
// first attempt's expiry, so the outcome for the client is the same.
type RedisStore struct {
	client *pkgredis.Client
}

func NewRedisStore(client *pkgredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Record, bool, error) {
	count, ttl, err := s.client.IncrWindow(ctx, redisKeyPrefix+key, window)
	if err != nil {
		return Record{}, false, err
	}
	rec := Record{
		Identifier: key,
		Count:      int(min(count, int64(limit))),
		ResetTime:  now.Add(ttl),
	}
	return rec, count <= int64(limit), nil
}

func (s *RedisStore) Get(ctx context.Context, key string, now time.Time) (Record, bool, error) {
	count, ttl, err := s.client.Counter(ctx, redisKeyPrefix+key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	if ttl <= 0 {
		return Record{}, false, nil
	}
	return Record{Identifier: key, Count: int(count), ResetTime: now.Add(ttl)}, true, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key)
}
