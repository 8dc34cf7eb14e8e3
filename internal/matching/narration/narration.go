// Package narration asks a text-generation service for one short sentence
// per matched listing explaining why it fits the profile.
package narration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"resource-matcher/internal/models"
)

// Narrator returns notes keyed by listing id. It may return a subset of the
// ids it was given.
type Narrator interface {
	Annotate(ctx context.Context, profile models.UserProfile, listings []models.ScoredListing) (map[string]string, error)
	Name() string
}

type notesResponse struct {
	Notes map[string]string `json:"notes"`
}

type promptListing struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Summary  string   `json:"summary,omitempty"`
	Reasons  []string `json:"reasons"`
}

func buildPrompt(profile models.UserProfile, listings []models.ScoredListing) string {
	var parts []string

	parts = append(parts, "You help founders understand why a business resource fits them.")
	parts = append(parts, "For each resource below write ONE sentence (max 25 words) on why it is relevant to this founder.")
	parts = append(parts, `Respond with JSON only, shaped as {"notes": {"<resource id>": "<sentence>"}}.`)

	var founder []string
	if profile.HasLocation() {
		founder = append(founder, fmt.Sprintf("location: %s", strings.Trim(profile.City()+", "+profile.State(), ", ")))
	}
	if len(profile.CauseAreas) > 0 {
		founder = append(founder, "cause areas: "+strings.Join(profile.CauseAreas, ", "))
	}
	if profile.VentureType != "" {
		founder = append(founder, "venture type: "+string(profile.VentureType))
	}
	if profile.BudgetLevel != "" {
		founder = append(founder, "budget: "+string(profile.BudgetLevel))
	}
	if profile.CommitmentLevel != "" {
		founder = append(founder, "commitment: "+string(profile.CommitmentLevel))
	}
	if len(founder) > 0 {
		parts = append(parts, "\nFounder profile:")
		for _, f := range founder {
			parts = append(parts, "- "+f)
		}
	}

	items := make([]promptListing, 0, len(listings))
	for _, l := range listings {
		items = append(items, promptListing{
			ID:       l.ID,
			Name:     l.Name,
			Category: string(l.Category),
			Summary:  l.Description,
			Reasons:  l.MatchReasons,
		})
	}
	resources, _ := json.MarshalIndent(items, "", "  ")
	parts = append(parts, "\nResources:")
	parts = append(parts, string(resources))

	return strings.Join(parts, "\n")
}

// parseNotes decodes a notes payload, tolerating markdown code fences, and
// drops blank notes and ids that were not asked about.
func parseNotes(text string, listings []models.ScoredListing) (map[string]string, error) {
	var resp notesResponse
	if err := json.Unmarshal([]byte(cleanJSONBlock(text)), &resp); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	return filterNotes(resp.Notes, listings), nil
}

func filterNotes(notes map[string]string, listings []models.ScoredListing) map[string]string {
	out := make(map[string]string, len(notes))
	for _, l := range listings {
		if note := strings.TrimSpace(notes[l.ID]); note != "" {
			out[l.ID] = note
		}
	}
	return out
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
