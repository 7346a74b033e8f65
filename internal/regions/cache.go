package regions

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/okayama-voice/opinion-map/internal/logger"
	"github.com/okayama-voice/opinion-map/internal/metrics"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
)

// Resolver maps a coordinate to its region. *Index and *CachedResolver both
// implement it.
type Resolver interface {
	Resolve(pt orb.Point) (Region, bool)
}

const cacheOpTimeout = 150 * time.Millisecond

// CachedResolver memoises resolutions in Redis. Keys use the exact
// coordinate, so a cached answer is always the one the index would give.
// Any cache failure falls through to the index.
type CachedResolver struct {
	Index  Resolver
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

type cachedRegion struct {
	Region   Region `json:"region"`
	Resolved bool   `json:"resolved"`
}

func (c *CachedResolver) key(pt orb.Point) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "region:"
	}
	return prefix + strconv.FormatFloat(pt.Lat(), 'g', -1, 64) + "," + strconv.FormatFloat(pt.Lon(), 'g', -1, 64)
}

func (c *CachedResolver) Resolve(pt orb.Point) (Region, bool) {
	if c.Client == nil {
		return c.Index.Resolve(pt)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	key := c.key(pt)
	s, err := c.Client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var hit cachedRegion
		if json.Unmarshal([]byte(s), &hit) == nil {
			metrics.RegionCacheTotal.WithLabelValues("hit").Inc()
			return hit.Region, hit.Resolved
		}
		metrics.RegionCacheTotal.WithLabelValues("error").Inc()
	case err == redis.Nil:
		metrics.RegionCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.RegionCacheTotal.WithLabelValues("error").Inc()
		logger.For("regions").Debug("region cache get failed", "key", key, "err", err)
	}

	region, ok := c.Index.Resolve(pt)
	if b, err := json.Marshal(cachedRegion{Region: region, Resolved: ok}); err == nil {
		if err := c.Client.Set(ctx, key, b, c.TTL).Err(); err != nil {
			logger.For("regions").Debug("region cache set failed", "key", key, "err", err)
		}
	}
	return region, ok
}

// NewRedisClientFromEnv opens a client from REDIS_HOST, REDIS_PORT,
// REDIS_PASS and REDIS_DB. It returns nil when REDIS_HOST is unset, which
// disables caching.
func NewRedisClientFromEnv() *redis.Client {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		return nil
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			db = n
		}
	}
	return redis.NewClient(&redis.Options{Addr: host + ":" + port, Password: os.Getenv("REDIS_PASS"), DB: db})
}

// CacheTTLFromEnv reads REGION_CACHE_TTL (a Go duration), defaulting to 24h.
func CacheTTLFromEnv() time.Duration {
	if v := os.Getenv("REGION_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 24 * time.Hour
}
