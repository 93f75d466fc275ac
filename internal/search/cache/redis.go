package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/search"
	pkgredis "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/redis"
)

// IndexKey is the key, before the client's namespace prefix, under which
// the JSON-encoded index is stored.
const IndexKey = "search:index"

// Redis stores the index in Redis with a TTL. Read failures are logged and
// reported as misses so search keeps working while Redis is down.
type Redis struct {
	client *pkgredis.Client
	logger *slog.Logger
}

func NewRedis(client *pkgredis.Client) *Redis {
	return &Redis{
		client: client,
		logger: slog.Default().With("component", "index-cache"),
	}
}

func (c *Redis) Get(ctx context.Context) ([]search.Entry, bool) {
	data, err := c.client.Get(ctx, IndexKey)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("index cache get failed", "error", err)
		}
		return nil, false
	}
	var entries []search.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Error("index cache unmarshal failed", "error", err)
		return nil, false
	}
	if entries == nil {
		entries = []search.Entry{}
	}
	return entries, true
}

func (c *Redis) Set(ctx context.Context, entries []search.Entry, ttl time.Duration) error {
	if entries == nil {
		entries = []search.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding search index: %w", err)
	}
	if err := c.client.Set(ctx, IndexKey, data, ttl); err != nil {
		return fmt.Errorf("storing search index: %w", err)
	}
	return nil
}

func (c *Redis) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, IndexKey); err != nil {
		return fmt.Errorf("invalidating search index: %w", err)
	}
	return nil
}
