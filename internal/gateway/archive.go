package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

// ArchiveEntry is a cached upstream response.
type ArchiveEntry struct {
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// Archive stores upstream responses by cache key.
type Archive interface {
	Search(ctx context.Context, key string) (ArchiveEntry, bool, error)
	Store(ctx context.Context, key string, entry ArchiveEntry) error
}

// RedisArchive keeps entries as JSON strings under "<prefix>:<key>".
type RedisArchive struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisArchive returns an archive. A zero ttl stores entries without expiry.
func NewRedisArchive(client *redis.Client, prefix string, ttl time.Duration) *RedisArchive {
	return &RedisArchive{client: client, prefix: prefix, ttl: ttl}
}

// Search looks up key. A missing key is reported as found == false with a nil error.
func (a *RedisArchive) Search(ctx context.Context, key string) (ArchiveEntry, bool, error) {
	raw, err := a.client.Get(ctx, a.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ArchiveEntry{}, false, nil
	}
	if err != nil {
		return ArchiveEntry{}, false, err
	}

	var entry ArchiveEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ArchiveEntry{}, false, fmt.Errorf("decode archive entry %q: %w", key, err)
	}
	return entry, true, nil
}

// Store writes entry under key.
func (a *RedisArchive) Store(ctx context.Context, key string, entry ArchiveEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return a.client.Set(ctx, a.redisKey(key), raw, a.ttl).Err()
}

func (a *RedisArchive) redisKey(key string) string {
	if a.prefix == "" {
		return key
	}
	return a.prefix + ":" + key
}

// CacheKey builds a canonical key from a path and its query parameters.
// Parameters are sorted by name so equivalent URLs share an entry.
func CacheKey(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
