// Package cache wraps a Matcher with a Redis-backed result cache keyed by the
// normalized profile and the resolved category list.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/common/metrics"
	"resource-matcher/internal/matching/orchestrator"
	"resource-matcher/internal/models"
)

const (
	keyPrefix  = "match:v1:"
	DefaultTTL = 10 * time.Minute
	opTimeout  = 250 * time.Millisecond
)

// Lookup results recorded on match_cache_lookups_total.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

// CachedMatcher serves repeated matches from Redis. Cache errors are logged
// and the call falls through to the wrapped matcher. Results with a failed
// category are returned but never stored.
type CachedMatcher struct {
	next   orchestrator.Matcher
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

var _ orchestrator.Matcher = (*CachedMatcher)(nil)

func New(next orchestrator.Matcher, client redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedMatcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedMatcher{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "match-cache"}),
	}
}

func (c *CachedMatcher) ResolveCategories(requested []string) []string {
	return c.next.ResolveCategories(requested)
}

func (c *CachedMatcher) Match(ctx context.Context, profile models.UserProfile, categories []string) (*models.MatchResult, error) {
	cats := c.next.ResolveCategories(categories)
	key, err := Key(profile, cats)
	log := logger.FromContext(ctx, c.logger)
	if err != nil {
		log.Warn("cache key failed", map[string]interface{}{"error": err.Error()})
		return c.next.Match(ctx, profile, cats)
	}

	if cached, ok := c.get(ctx, key, log); ok {
		return cached, nil
	}

	result, err := c.next.Match(ctx, profile, cats)
	if err != nil {
		return nil, err
	}
	if failed := failedCategories(result); len(failed) > 0 {
		log.Debug("partial match not cached", map[string]interface{}{"failed": failed})
		return result, nil
	}
	c.set(ctx, key, result, log)
	return result, nil
}

// failedCategories lists categories whose catalog query errored. Such a
// result reflects a transient outage and must not outlive it.
func failedCategories(result *models.MatchResult) []string {
	var out []string
	for _, s := range result.Stats {
		if s.Failed {
			out = append(out, s.Category)
		}
	}
	return out
}

func (c *CachedMatcher) get(ctx context.Context, key string, log logger.Logger) (*models.MatchResult, bool) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := c.redis.Get(opCtx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues(resultMiss).Inc()
		return nil, false
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues(resultError).Inc()
		log.Warn("cache read failed", map[string]interface{}{
			"error": apperrors.NewCacheUnavailableError(err).Error(),
		})
		return nil, false
	}

	var result models.MatchResult
	if err := json.Unmarshal(val, &result); err != nil {
		metrics.CacheLookups.WithLabelValues(resultError).Inc()
		log.Warn("cached match undecodable", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	if result.Matches == nil {
		result.Matches = models.Matches{}
	}

	metrics.CacheLookups.WithLabelValues(resultHit).Inc()
	log.Debug("cache hit", map[string]interface{}{"key": key})
	return &result, true
}

func (c *CachedMatcher) set(ctx context.Context, key string, result *models.MatchResult, log logger.Logger) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Warn("match result not cacheable", map[string]interface{}{"error": err.Error()})
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.redis.Set(opCtx, key, data, c.ttl).Err(); err != nil {
		log.Warn("cache write failed", map[string]interface{}{
			"error": apperrors.NewCacheUnavailableError(err).Error(),
		})
	}
}

// Key hashes the normalized profile together with the resolved categories.
// Category order matters because it is the response's category order.
func Key(profile models.UserProfile, categories []string) (string, error) {
	payload := struct {
		Profile    models.UserProfile `json:"profile"`
		Categories []string           `json:"categories"`
	}{profile.Normalized(), categories}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return keyPrefix + hex.EncodeToString(sum[:]), nil
}
