package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisMarketPrefix  = "atlas:market:"
	redisProfilePrefix = "atlas:profile:"
	profileCacheTTL    = 10 * time.Minute
	defaultDatasetTTL  = 15 * time.Minute
)

// CachedStore wraps a Store with a Redis read-through. Cache lifetime
// follows the per-dataset TTL table: an authoritative baseline survives
// far longer than a volatile commercial index. Redis errors fail open
// to the inner store.
type CachedStore struct {
	inner       Store
	redis       *redis.Client
	datasetTTLs map[string]time.Duration
}

func NewCachedStore(inner Store, rdb *redis.Client, datasetTTLs map[string]time.Duration) *CachedStore {
	return &CachedStore{inner: inner, redis: rdb, datasetTTLs: datasetTTLs}
}

func (s *CachedStore) ttlFor(datasetType string) time.Duration {
	if ttl, ok := s.datasetTTLs[datasetType]; ok {
		return ttl
	}
	return defaultDatasetTTL
}

func (s *CachedStore) QueryMarketData(ctx context.Context, location, datasetType string) ([]Record, error) {
	key := redisMarketPrefix + datasetType + ":" + location

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			var records []Record
			if err := json.Unmarshal(cached, &records); err == nil {
				return records, nil
			}
		}
	}

	records, err := s.inner.QueryMarketData(ctx, location, datasetType)
	if err != nil {
		return nil, err
	}

	if s.redis != nil && len(records) > 0 {
		data, err := json.Marshal(records)
		if err == nil {
			s.redis.Set(ctx, key, data, s.ttlFor(datasetType))
		}
	}

	return records, nil
}

func (s *CachedStore) GetUserContext(ctx context.Context, userID string) (*UserProfile, error) {
	key := redisProfilePrefix + userID

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			var p UserProfile
			if err := json.Unmarshal(cached, &p); err == nil {
				return &p, nil
			}
		}
	}

	profile, err := s.inner.GetUserContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}

	if s.redis != nil {
		data, err := json.Marshal(profile)
		if err == nil {
			s.redis.Set(ctx, key, data, profileCacheTTL)
		}
	}

	return profile, nil
}
