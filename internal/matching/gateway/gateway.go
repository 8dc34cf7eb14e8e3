// Package gateway reads candidate listings from the external catalog. Every
// backend is read-only and returns all active listings of a single category
// that satisfy the query, ordered by id. Nothing is truncated here: ranking
// and the per-category limit belong to the orchestrator.
package gateway

import (
	"context"
	"strings"

	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/models"
)

// DefaultPageSize is the Elasticsearch page size when none is configured.
const DefaultPageSize = 500

// Gateway is the read-only catalog interface the orchestrator depends on.
//
// Backends report a connection-level failure as a CATALOG_UNAVAILABLE
// StandardError. Any other error is scoped to the one category queried.
type Gateway interface {
	FetchCandidates(ctx context.Context, category models.Category, strategy models.Strategy, location *models.Location) ([]models.ResourceListing, error)
	FetchFallback(ctx context.Context, category models.Category, excludeIDs []string) ([]models.ResourceListing, error)
	Ping(ctx context.Context) error
}

// filter is the backend-neutral form of one catalog query. Geography values
// are already trimmed and lower-cased.
type filter struct {
	Category   string
	City       string
	State      string
	MatchCity  bool
	MatchState bool
	Nationwide bool // OR is_nationwide with the local predicate
	Fallback   bool // is_nationwide OR is_remote OR is_featured, no geography
	ExcludeIDs []string
}

// planPrimary turns a strategy and location into a filter. ok is false when
// the strategy cannot match anything for the location, in which case the
// backend must not be queried.
func planPrimary(category models.Category, strategy models.Strategy, location *models.Location) (f filter, ok bool) {
	f = filter{Category: normalize(string(category))}

	var city, state string
	if location != nil {
		city, state = normalize(location.City), normalize(location.State)
	}
	hasLocal := city != "" && state != ""

	switch strategy {
	case models.StrategyLocalAndNationwide:
		f.Nationwide = true
		if hasLocal {
			f.City, f.State = city, state
			f.MatchCity, f.MatchState = true, true
		}
		return f, true
	case models.StrategyStateLevel:
		if state == "" {
			return f, false
		}
		f.State, f.MatchState = state, true
		return f, true
	default:
		if !hasLocal {
			return f, false
		}
		f.City, f.State = city, state
		f.MatchCity, f.MatchState = true, true
		return f, true
	}
}

func planFallback(category models.Category, excludeIDs []string) filter {
	return filter{
		Category:   normalize(string(category)),
		Fallback:   true,
		ExcludeIDs: excludeIDs,
	}
}

// matches evaluates f against a listing in memory. The SQL and Elasticsearch
// backends express the same predicate natively.
func (f filter) matches(l models.ResourceListing) bool {
	if !l.IsActive || normalize(string(l.Category)) != f.Category {
		return false
	}
	for _, id := range f.ExcludeIDs {
		if id == l.ID {
			return false
		}
	}

	if f.Fallback {
		return l.IsNationwide || l.IsRemote || l.IsFeatured
	}

	local := (f.MatchCity || f.MatchState) &&
		(!f.MatchCity || normalize(l.City) == f.City) &&
		(!f.MatchState || normalize(l.State) == f.State)

	return local || (f.Nationwide && l.IsNationwide)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func pageSizeOrDefault(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	return n
}

// keepValid drops listings whose attribute variant does not fit their
// category.
func keepValid(log logger.Logger, listings []models.ResourceListing) []models.ResourceListing {
	out := listings[:0]
	for _, l := range listings {
		if err := l.Validate(); err != nil {
			log.Warn("dropping invalid listing", map[string]interface{}{
				"listingId": l.ID,
				"error":     err.Error(),
			})
			continue
		}
		out = append(out, l)
	}
	return out
}
