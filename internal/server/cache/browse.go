// Package cache keeps rendered browse pages in Redis for a short TTL.
// The cache is an optimization only: every operation degrades to a miss on
// Redis errors, and writers invalidate whole categories by bumping a
// per-category version counter folded into the key, so no key scanning is
// needed.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swapwithus/listing-service/internal/logging"
	"github.com/swapwithus/listing-service/internal/server/models"
)

// DefaultTTL must stay well under the signed-URL lifetime, so a cached page
// never serves URLs that expire before the page does.
const DefaultTTL = 60 * time.Second

// BrowseCache caches browse feed pages per category.
type BrowseCache struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger logging.Logger
}

func NewBrowseCache(rdb redis.UniversalClient, ttl time.Duration, logger logging.Logger) *BrowseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &BrowseCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *BrowseCache) versionKey(category string) string {
	return "browse:ver:" + category
}

func (c *BrowseCache) pageKey(category string, version int64, page, pageSize int) string {
	return fmt.Sprintf("browse:%s:v%d:p%d:s%d", category, version, page, pageSize)
}

func (c *BrowseCache) version(ctx context.Context, category string) (int64, error) {
	v, err := c.rdb.Get(ctx, c.versionKey(category)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// Get returns the cached page or (nil, false) on a miss. Redis errors count
// as misses.
func (c *BrowseCache) Get(ctx context.Context, category string, page, pageSize int) (*models.BrowsePage, bool) {
	ver, err := c.version(ctx, category)
	if err != nil {
		c.logger.Warn(ctx, "browse cache read failed", "category", category, "error", err)
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.pageKey(category, ver, page, pageSize)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn(ctx, "browse cache read failed", "category", category, "error", err)
		return nil, false
	}
	var bp models.BrowsePage
	if err := json.Unmarshal(raw, &bp); err != nil {
		return nil, false
	}
	return &bp, true
}

// Set stores one rendered page. Failures are logged and ignored.
func (c *BrowseCache) Set(ctx context.Context, category string, page, pageSize int, bp *models.BrowsePage) {
	ver, err := c.version(ctx, category)
	if err != nil {
		c.logger.Warn(ctx, "browse cache write failed", "category", category, "error", err)
		return
	}
	raw, err := json.Marshal(bp)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.pageKey(category, ver, page, pageSize), raw, c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "browse cache write failed", "category", category, "error", err)
	}
}

// Invalidate bumps the category's version counter; stale pages expire via
// their TTL.
func (c *BrowseCache) Invalidate(ctx context.Context, category string) {
	if err := c.rdb.Incr(ctx, c.versionKey(category)).Err(); err != nil {
		c.logger.Warn(ctx, "browse cache invalidate failed", "category", category, "error", err)
	}
}
