package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// RedisKeyPrefix namespaces query cache entries in Redis.
	RedisKeyPrefix = "safespace:query:"

	// scanBatch is the COUNT hint used while deleting by prefix.
	scanBatch = 200
)

// RedisCache shares cached reads between server instances.
type RedisCache struct {
	client rueidis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a Redis-backed cache. Entries expire after ttl; zero
// keeps them until invalidated.
func NewRedisCache(client rueidis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("query_cache"),
	}
}

// Get returns the entry for key.
func (c *RedisCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(RedisKeyPrefix+key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}

	var entry Entry
	if err := sonic.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Set stores entry under key.
func (c *RedisCache) Set(ctx context.Context, key string, entry Entry) error {
	data, err := sonic.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	var cmd rueidis.Completed
	if c.ttl > 0 {
		cmd = c.client.B().Set().Key(RedisKeyPrefix + key).Value(rueidis.BinaryString(data)).Ex(c.ttl).Build()
	} else {
		cmd = c.client.B().Set().Key(RedisKeyPrefix + key).Value(rueidis.BinaryString(data)).Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set cache entry %s: %w", key, err)
	}
	return nil
}

// DeletePrefix drops every key starting with prefix using SCAN, so it never
// blocks the server on a large keyspace.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := RedisKeyPrefix + escapeGlob(prefix) + "*"

	var cursor uint64
	for {
		entry, err := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanBatch).Build()).AsScanEntry()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys %s: %w", prefix, err)
		}

		if len(entry.Elements) > 0 {
			if err := c.client.Do(ctx, c.client.B().Del().Key(entry.Elements...).Build()).Error(); err != nil {
				return fmt.Errorf("failed to delete cache keys %s: %w", prefix, err)
			}
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// escapeGlob quotes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
