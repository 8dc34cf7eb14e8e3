// Package assembler turns an orchestrator result into the wire response,
// optionally attaching a relevance note to every match.
package assembler

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/common/metrics"
	"resource-matcher/internal/matching/narration"
	"resource-matcher/internal/models"
)

// PlaceholderNote is used when neither the narrator nor the listing has text.
const PlaceholderNote = "Relevant resource for your business goals."

const DefaultNarrationTimeout = 5 * time.Second

type Assembler struct {
	narrator narration.Narrator
	timeout  time.Duration
	logger   logger.Logger
}

// New returns an assembler. A nil narrator disables relevance notes.
func New(narrator narration.Narrator, timeout time.Duration, log logger.Logger) *Assembler {
	if timeout <= 0 {
		timeout = DefaultNarrationTimeout
	}
	return &Assembler{
		narrator: narrator,
		timeout:  timeout,
		logger:   log.WithFields(map[string]interface{}{"component": "assembler"}),
	}
}

// Assemble never fails: narration problems degrade to stored descriptions.
func (a *Assembler) Assemble(ctx context.Context, result *models.MatchResult, req models.MatchRequest) *models.MatchResponse {
	matches := copyMatches(result)

	if a.narrator != nil && len(matches) > 0 {
		notes := a.narrate(ctx, req.Profile(), result, matches)
		for cat, listings := range matches {
			for i := range listings {
				listings[i].RelevanceNote = relevanceNote(listings[i], notes)
			}
			matches[cat] = listings
		}
	}

	return &models.MatchResponse{
		Success: true,
		Data: &models.MatchData{
			Matches:        matches,
			FiltersApplied: req,
		},
	}
}

// Failure renders a user-visible error envelope.
func Failure(err error) *models.MatchResponse {
	stdErr := apperrors.AsStandardError(err)
	if !apperrors.IsUserVisible(stdErr.Code) {
		stdErr = apperrors.NewInternalError(err)
	}
	msg := stdErr.Message
	if stdErr.Code == apperrors.ErrCodeInvalidProfile && stdErr.Details != "" {
		msg = msg + ": " + stdErr.Details
	}
	return &models.MatchResponse{Success: false, Error: msg}
}

func (a *Assembler) narrate(ctx context.Context, profile models.UserProfile, result *models.MatchResult, matches models.Matches) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	listings := uniqueListings(result.Categories, matches)
	log := logger.FromContext(ctx, a.logger)

	notes, err := a.narrator.Annotate(ctx, profile, listings)
	if err != nil {
		stdErr := apperrors.NewNarrationUnavailableError(err)
		metrics.NarrationFailures.WithLabelValues(a.narrator.Name()).Inc()
		log.Warn("narration unavailable, using stored descriptions", map[string]interface{}{
			"provider": a.narrator.Name(),
			"listings": len(listings),
			"error":    stdErr.Error(),
		})
		return nil
	}

	log.Debug("narration applied", map[string]interface{}{
		"provider": a.narrator.Name(),
		"listings": len(listings),
		"notes":    len(notes),
	})
	return notes
}

func relevanceNote(l models.ScoredListing, notes map[string]string) string {
	if note := strings.TrimSpace(notes[l.ID]); note != "" {
		return note
	}
	if desc := strings.TrimSpace(l.Description); desc != "" {
		return desc
	}
	return PlaceholderNote
}

// copyMatches deep-copies the ranked lists so notes never leak into a cached
// result.
func copyMatches(result *models.MatchResult) models.Matches {
	out := models.Matches{}
	if result == nil {
		return out
	}
	for cat, listings := range result.Matches {
		if len(listings) == 0 {
			continue
		}
		cp := make([]models.ScoredListing, len(listings))
		copy(cp, listings)
		for i := range cp {
			cp[i].MatchReasons = append([]string{}, cp[i].MatchReasons...)
		}
		out[cat] = cp
	}
	return out
}

// uniqueListings flattens matches in category order, each listing once.
// Categories missing from the order list follow, sorted by name.
func uniqueListings(categories []string, matches models.Matches) []models.ScoredListing {
	order := append([]string{}, categories...)
	var extra []string
	for c := range matches {
		if !slices.Contains(categories, c) {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	var out []models.ScoredListing
	seen := map[string]struct{}{}
	for _, c := range order {
		for _, l := range matches[c] {
			if _, dup := seen[l.ID]; dup {
				continue
			}
			seen[l.ID] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}
