// Package orchestrator runs one match: every requested category is fetched,
// scored, ranked and truncated concurrently, with a geography-relaxed
// fallback pass for categories that come back empty.
package orchestrator

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/common/metrics"
	"resource-matcher/internal/common/observability"
	"resource-matcher/internal/matching/gateway"
	"resource-matcher/internal/matching/registry"
	"resource-matcher/internal/matching/scorer"
	"resource-matcher/internal/models"
)

// DefaultCategories is matched when a request names none.
var DefaultCategories = []string{"grant", "accelerator", "sba", "coworking"}

// Matcher is implemented by Orchestrator and by decorators such as the
// response cache.
type Matcher interface {
	Match(ctx context.Context, profile models.UserProfile, categories []string) (*models.MatchResult, error)
	ResolveCategories(requested []string) []string
}

// Orchestrator fans a match out over categories against one catalog
// gateway and ranks each category with the shared scorer.
type Orchestrator struct {
	registry *registry.Registry
	gateway  gateway.Gateway
	scorer   *scorer.Scorer
	defaults []string
	obs      *observability.Observability
	logger   logger.Logger
}

type Option func(*Orchestrator)

func WithDefaultCategories(categories []string) Option {
	return func(o *Orchestrator) {
		if len(categories) > 0 {
			o.defaults = categories
		}
	}
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

// New builds an orchestrator matching DefaultCategories unless
// WithDefaultCategories says otherwise.
func New(reg *registry.Registry, gw gateway.Gateway, sc *scorer.Scorer, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		gateway:  gw,
		scorer:   sc,
		defaults: DefaultCategories,
		logger:   log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.defaults = normalizeCategories(o.defaults)

	for _, cat := range o.defaults {
		if !reg.Known(models.Category(cat)) {
			o.logger.Warn("default category has no registry entry, using default policy", map[string]interface{}{
				"category":   cat,
				"registered": reg.Categories(),
			})
		}
	}
	return o
}

// ResolveCategories trims, lower-cases and de-duplicates requested category
// names, keeping request order. An empty request yields the defaults.
func (o *Orchestrator) ResolveCategories(requested []string) []string {
	if cats := normalizeCategories(requested); len(cats) > 0 {
		return cats
	}
	return append([]string(nil), o.defaults...)
}

type categoryOutcome struct {
	stats   models.CategoryStats
	ranked  []models.ScoredListing
	primErr error
}

// Match is all-or-nothing: a cancelled context or an unreachable catalog
// fails the whole match, while a single category's query failure only
// empties that category. When every category fails and none is rescued by
// the fallback pass, the catalog is reported unavailable.
func (o *Orchestrator) Match(ctx context.Context, profile models.UserProfile, categories []string) (*models.MatchResult, error) {
	start := time.Now()
	profile = profile.Normalized()
	cats := o.ResolveCategories(categories)
	log := logger.FromContext(ctx, o.logger)

	ctx, span := o.obs.StartSpan(ctx, "match",
		attribute.StringSlice("categories", cats),
		attribute.Bool("has_location", profile.HasLocation()),
	)
	defer span.End()

	outcomes := make([]categoryOutcome, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range cats {
		g.Go(func() error {
			out, err := o.matchCategory(gctx, models.Category(cat), profile, log)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, o.abortError(ctx, err)
	}

	result := &models.MatchResult{
		Matches:    models.Matches{},
		Categories: cats,
		Stats:      make([]models.CategoryStats, 0, len(cats)),
	}

	failed, unserved := 0, 0
	var lastErr error
	for i, out := range outcomes {
		result.Stats = append(result.Stats, out.stats)
		if out.stats.Failed {
			failed++
			if out.stats.Kept == 0 {
				unserved++
				lastErr = out.primErr
			}
		}
		if len(out.ranked) > 0 {
			result.Matches[cats[i]] = out.ranked
		}
	}

	// A category rescued by its fallback still counts as served.
	if len(cats) > 0 && unserved == len(cats) {
		err := apperrors.NewCatalogUnavailableError(lastErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	log.Debug("match computed", map[string]interface{}{
		"categories": cats,
		"returned":   len(result.Matches),
		"failed":     failed,
		"duration":   time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (o *Orchestrator) matchCategory(ctx context.Context, category models.Category, profile models.UserProfile, log logger.Logger) (categoryOutcome, error) {
	cfg := o.registry.Resolve(category)
	log = log.WithFields(map[string]interface{}{
		"category": string(category),
		"strategy": string(cfg.Strategy),
	})

	ctx, span := o.obs.StartSpan(ctx, "match.category",
		attribute.String("category", string(category)),
		attribute.String("strategy", string(cfg.Strategy)),
		attribute.Int("limit", cfg.Limit),
	)
	defer span.End()

	out := categoryOutcome{stats: models.CategoryStats{Category: string(category)}}

	candidates, err := o.gateway.FetchCandidates(ctx, category, cfg.Strategy, profile.Location)
	if err != nil {
		if fatal(ctx, err) {
			return out, err
		}
		log.Warn("category query failed", map[string]interface{}{"error": err.Error()})
		span.RecordError(err)
		out.stats.Failed = true
		out.primErr = apperrors.NewCategoryQueryFailedError(string(category), err)
		candidates = nil
	}
	out.stats.Candidates = len(candidates)
	out.ranked = o.rank(candidates, profile, cfg.Limit)

	if len(out.ranked) == 0 {
		out.stats.FallbackUsed = true
		fallback, err := o.gateway.FetchFallback(ctx, category, listingIDs(candidates))
		if err != nil {
			if fatal(ctx, err) {
				return out, err
			}
			log.Warn("fallback query failed", map[string]interface{}{"error": err.Error()})
			span.RecordError(err)
		} else {
			out.ranked = o.rank(fallback, profile, cfg.Limit)
			log.Info("fallback pass used", map[string]interface{}{
				"candidates": len(fallback),
				"kept":       len(out.ranked),
			})
		}
	}
	out.stats.Kept = len(out.ranked)

	outcome := categoryOutcomeLabel(out.stats)
	span.SetAttributes(attribute.String("outcome", outcome), attribute.Int("kept", out.stats.Kept))
	metrics.CategoryResults.WithLabelValues(string(category), outcome).Inc()
	return out, nil
}

// rank scores listings, drops zero scores, orders by score, featured flag
// and id, and truncates to limit.
func (o *Orchestrator) rank(listings []models.ResourceListing, profile models.UserProfile, limit int) []models.ScoredListing {
	scored := make([]models.ScoredListing, 0, len(listings))
	for _, l := range listings {
		s := o.scorer.ScoreListing(l, profile)
		if s.MatchScore > 0 {
			scored = append(scored, s)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.IsFeatured != b.IsFeatured {
			return a.IsFeatured
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func (o *Orchestrator) abortError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperrors.NewMatchTimeoutError(ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewMatchTimeoutError(err)
	}
	var se *apperrors.StandardError
	if errors.As(err, &se) {
		return se
	}
	return apperrors.NewCatalogUnavailableError(err)
}

// fatal reports whether a gateway error must abort the whole match.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, apperrors.ErrCatalogUnavailable)
}

func categoryOutcomeLabel(s models.CategoryStats) string {
	switch {
	case s.Kept > 0 && s.FallbackUsed:
		return metrics.OutcomeFallback
	case s.Kept > 0:
		return metrics.OutcomePrimary
	case s.Failed:
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeEmpty
	}
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func listingIDs(listings []models.ResourceListing) []string {
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	return ids
}
