package storage

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bulatminnakhmetov/property-site/internal/media"
)

// ReuseMargin is the minimum validity a cached read URL must have left to be
// handed out again.
const ReuseMargin = 5 * time.Minute

// CachedSigner wraps an object store and reuses signed read URLs.
// All other operations pass through.
type CachedSigner struct {
	media.ObjectStore
	cache  URLCache
	logger *zap.SugaredLogger
}

func NewCachedSigner(inner media.ObjectStore, cache URLCache, logger *zap.SugaredLogger) *CachedSigner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CachedSigner{ObjectStore: inner, cache: cache, logger: logger}
}

func (s *CachedSigner) SignRead(ctx context.Context, key string, ttl time.Duration) (string, error) {
	cacheKey := "signed:" + strconv.FormatInt(int64(ttl/time.Second), 10) + ":" + key

	if url, err := s.cache.Get(ctx, cacheKey); err == nil {
		return url, nil
	} else if err != ErrCacheMiss {
		s.logger.Warnw("signed url cache read failed", "key", key, "error", err)
	}

	url, err := s.ObjectStore.SignRead(ctx, key, ttl)
	if err != nil {
		return "", err
	}

	// entries expire while the URL still has ReuseMargin left
	if keep := ttl - ReuseMargin; keep > 0 {
		if err := s.cache.Set(ctx, cacheKey, url, keep); err != nil {
			s.logger.Warnw("signed url cache write failed", "key", key, "error", err)
		}
	}
	return url, nil
}
