package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/models"
)

// MemoryGateway serves a fixed catalog from memory. It backs the CLI's
// --catalog flag and the tests, and supports per-category failure injection.
type MemoryGateway struct {
	listings []models.ResourceListing

	mu          sync.Mutex
	failures    map[models.Category]error
	unavailable error
	calls       map[string]int
}

// NewMemoryGateway copies listings and orders them by id.
func NewMemoryGateway(listings []models.ResourceListing) *MemoryGateway {
	sorted := append([]models.ResourceListing(nil), listings...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return &MemoryGateway{
		listings: sorted,
		failures: make(map[models.Category]error),
		calls:    make(map[string]int),
	}
}

// LoadMemoryGateway reads a JSON array of listings from path. Listings that
// fail validation are skipped with a warning.
func LoadMemoryGateway(path string, log logger.Logger) (*MemoryGateway, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var listings []models.ResourceListing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}

	listings = keepValid(log, listings)
	log.Info("catalog file loaded", map[string]interface{}{
		"path":     path,
		"listings": len(listings),
	})
	return NewMemoryGateway(listings), nil
}

// FailCategory makes every query for category return err.
func (g *MemoryGateway) FailCategory(category models.Category, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[models.NormalizeCategory(string(category))] = err
}

// SetUnavailable makes every call fail as if the store were unreachable.
// Pass nil to restore.
func (g *MemoryGateway) SetUnavailable(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavailable = err
}

// Calls returns how often kind ("primary" or "fallback") was queried for
// category.
func (g *MemoryGateway) Calls(category models.Category, kind string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[callKey(category, kind)]
}

func (g *MemoryGateway) FetchCandidates(ctx context.Context, category models.Category, strategy models.Strategy, location *models.Location) ([]models.ResourceListing, error) {
	if err := g.check(ctx, category, "primary"); err != nil {
		return nil, err
	}
	f, ok := planPrimary(category, strategy, location)
	if !ok {
		return []models.ResourceListing{}, nil
	}
	return g.scan(f), nil
}

func (g *MemoryGateway) FetchFallback(ctx context.Context, category models.Category, excludeIDs []string) ([]models.ResourceListing, error) {
	if err := g.check(ctx, category, "fallback"); err != nil {
		return nil, err
	}
	return g.scan(planFallback(category, excludeIDs)), nil
}

func (g *MemoryGateway) Ping(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable != nil {
		return g.unavailable
	}
	return ctx.Err()
}

func (g *MemoryGateway) check(ctx context.Context, category models.Category, kind string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[callKey(category, kind)]++
	if g.unavailable != nil {
		return g.unavailable
	}
	return g.failures[models.NormalizeCategory(string(category))]
}

func (g *MemoryGateway) scan(f filter) []models.ResourceListing {
	out := []models.ResourceListing{}
	for _, l := range g.listings {
		if f.matches(l) {
			out = append(out, l)
		}
	}
	return out
}

func callKey(category models.Category, kind string) string {
	return string(models.NormalizeCategory(string(category))) + "/" + kind
}
