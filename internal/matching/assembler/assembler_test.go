package assembler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/models"
)

type fakeNarrator struct {
	notes map[string]string
	err   error
	delay time.Duration
	seen  []string
}

func (f *fakeNarrator) Name() string { return "fake" }

func (f *fakeNarrator) Annotate(ctx context.Context, _ models.UserProfile, listings []models.ScoredListing) (map[string]string, error) {
	for _, l := range listings {
		f.seen = append(f.seen, l.ID)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.notes, f.err
}

func scored(id, description string) models.ScoredListing {
	return models.ScoredListing{
		ResourceListing: models.ResourceListing{
			ID:          id,
			Name:        id,
			Description: description,
			Category:    models.CategoryGrant,
			IsActive:    true,
			Attributes:  models.GrantAttributes{},
		},
		MatchScore:   7,
		MatchReasons: []string{"Supports education"},
	}
}

func testResult() *models.MatchResult {
	return &models.MatchResult{
		Categories: []string{"grant", "sba"},
		Matches: models.Matches{
			"grant": {scored("g1", "Stored grant text"), scored("g2", "")},
			"sba":   {scored("s1", "")},
		},
	}
}

// ==========================
// Assemble
// ==========================

func TestAssemble_WithoutNarrator(t *testing.T) {
	a := New(nil, 0, logger.NewTestLogger(t))
	req := models.MatchRequest{CauseAreas: []string{"education"}}

	resp := a.Assemble(context.Background(), testResult(), req)

	require.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, req, resp.Data.FiltersApplied)
	assert.Len(t, resp.Data.Matches["grant"], 2)
	assert.Empty(t, resp.Data.Matches["grant"][0].RelevanceNote)
}

func TestAssemble_NoteFallbackChain(t *testing.T) {
	n := &fakeNarrator{notes: map[string]string{"g2": "Narrated for g2."}}
	a := New(n, time.Second, logger.NewTestLogger(t))

	resp := a.Assemble(context.Background(), testResult(), models.MatchRequest{})

	grants := resp.Data.Matches["grant"]
	assert.Equal(t, "Stored grant text", grants[0].RelevanceNote)
	assert.Equal(t, "Narrated for g2.", grants[1].RelevanceNote)
	assert.Equal(t, PlaceholderNote, resp.Data.Matches["sba"][0].RelevanceNote)
	assert.Equal(t, []string{"g1", "g2", "s1"}, n.seen)
}

func TestAssemble_NarratorFailureDegrades(t *testing.T) {
	a := New(&fakeNarrator{err: errors.New("upstream 503")}, time.Second, logger.NewTestLogger(t))

	resp := a.Assemble(context.Background(), testResult(), models.MatchRequest{})

	require.True(t, resp.Success)
	assert.Equal(t, "Stored grant text", resp.Data.Matches["grant"][0].RelevanceNote)
	assert.Equal(t, PlaceholderNote, resp.Data.Matches["grant"][1].RelevanceNote)
}

func TestAssemble_NarratorTimeoutDegrades(t *testing.T) {
	a := New(&fakeNarrator{delay: time.Second, notes: map[string]string{"g1": "late"}}, 20*time.Millisecond, logger.NewTestLogger(t))

	start := time.Now()
	resp := a.Assemble(context.Background(), testResult(), models.MatchRequest{})

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, "Stored grant text", resp.Data.Matches["grant"][0].RelevanceNote)
}

func TestAssemble_DoesNotMutateResult(t *testing.T) {
	result := testResult()
	a := New(&fakeNarrator{notes: map[string]string{"g1": "note"}}, time.Second, logger.NewNoOpLogger())

	resp := a.Assemble(context.Background(), result, models.MatchRequest{})
	resp.Data.Matches["grant"][0].MatchReasons[0] = "changed"

	assert.Empty(t, result.Matches["grant"][0].RelevanceNote)
	assert.Equal(t, "Supports education", result.Matches["grant"][0].MatchReasons[0])
}

func TestAssemble_EmptyResultSkipsNarration(t *testing.T) {
	n := &fakeNarrator{}
	a := New(n, time.Second, logger.NewNoOpLogger())

	resp := a.Assemble(context.Background(), &models.MatchResult{Matches: models.Matches{}}, models.MatchRequest{})

	require.True(t, resp.Success)
	assert.Empty(t, resp.Data.Matches)
	assert.Empty(t, n.seen)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true, "data": {"matches": {}, "filters_applied": {"cause_areas": null}}}`, string(body))
}

func TestUniqueListings_DedupesAcrossCategories(t *testing.T) {
	matches := models.Matches{
		"grant":       {scored("x", "")},
		"accelerator": {scored("x", ""), scored("a1", "")},
	}

	got := uniqueListings([]string{"grant"}, matches)
	ids := []string{}
	for _, l := range got {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"x", "a1"}, ids)
}

// ==========================
// Failure
// ==========================

func TestFailure(t *testing.T) {
	resp := Failure(apperrors.NewCatalogUnavailableError(errors.New("dial tcp: refused")))
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.Equal(t, "Resource catalog is unavailable", resp.Error)

	resp = Failure(apperrors.NewInvalidProfileError("cause_areas: must be an array"))
	assert.Equal(t, "Invalid match request: cause_areas: must be an array", resp.Error)

	resp = Failure(apperrors.NewCategoryQueryFailedError("grant", errors.New("relation missing")))
	assert.Equal(t, "Unexpected error", resp.Error)
	assert.NotContains(t, resp.Error, "grant")

	body, err := json.Marshal(Failure(errors.New("boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": false, "error": "Unexpected error"}`, string(body))
}
