// Package cache keeps probed media metadata in Redis so resubmissions and
// retries of the same URL skip the probe subprocess.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anilpdv/video-downloader/internal/logger"
	"github.com/anilpdv/video-downloader/internal/ytdlp"
)

// DefaultTTL bounds how long probed metadata stays valid. Titles and
// thumbnails rarely change, but they do change.
const DefaultTTL = 24 * time.Hour

type MetadataCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewMetadataCache(client *redis.Client) *MetadataCache {
	return &MetadataCache{
		client: client,
		ttl:    DefaultTTL,
		log:    logger.Default().WithComponent("cache"),
	}
}

func (c *MetadataCache) key(url string) string {
	return "metadata:" + url
}

// Get returns cached metadata for a URL, or nil on miss or error. Errors
// are logged and swallowed; the cache is never load bearing.
func (c *MetadataCache) Get(ctx context.Context, url string) *ytdlp.Metadata {
	val, err := c.client.Get(ctx, c.key(url)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.log.Warn(ctx, "cache read failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return nil
	}

	var md ytdlp.Metadata
	if err := json.Unmarshal([]byte(val), &md); err != nil {
		return nil
	}
	return &md
}

// Set stores probed metadata with the configured TTL, best effort.
func (c *MetadataCache) Set(ctx context.Context, url string, md *ytdlp.Metadata) {
	data, err := json.Marshal(md)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(url), data, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache write failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
	}
}

// WrapProbe layers the cache over a metadata probe function.
func (c *MetadataCache) WrapProbe(probe func(ctx context.Context, binPath, url string) (*ytdlp.Metadata, error)) func(ctx context.Context, binPath, url string) (*ytdlp.Metadata, error) {
	return func(ctx context.Context, binPath, url string) (*ytdlp.Metadata, error) {
		if md := c.Get(ctx, url); md != nil {
			return md, nil
		}
		md, err := probe(ctx, binPath, url)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, url, md)
		return md, nil
	}
}
