package models

import "strings"

type VentureType string

const (
	VentureProject   VentureType = "project"
	VentureNonprofit VentureType = "nonprofit"
	VentureBusiness  VentureType = "business"
	VentureHybrid    VentureType = "hybrid"
)

type BudgetLevel string

const (
	BudgetZero   BudgetLevel = "zero"
	BudgetLow    BudgetLevel = "low"
	BudgetMedium BudgetLevel = "medium"
	BudgetHigh   BudgetLevel = "high"
)

type CommitmentLevel string

const (
	CommitmentWeekend CommitmentLevel = "weekend"
	CommitmentSteady  CommitmentLevel = "steady"
	CommitmentAllIn   CommitmentLevel = "all_in"
)

type Location struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// UserProfile is the ephemeral matching input.
type UserProfile struct {
	Location        *Location       `json:"location,omitempty"`
	CauseAreas      []string        `json:"cause_areas"`
	VentureType     VentureType     `json:"venture_type,omitempty"`
	BudgetLevel     BudgetLevel     `json:"budget_level,omitempty"`
	CommitmentLevel CommitmentLevel `json:"commitment_level,omitempty"`
}

// Normalized returns a copy with trimmed strings, a nil location when both
// parts are blank, and cause areas de-duplicated case-insensitively in
// first-seen order.
func (p UserProfile) Normalized() UserProfile {
	out := UserProfile{
		VentureType:     VentureType(strings.ToLower(strings.TrimSpace(string(p.VentureType)))),
		BudgetLevel:     BudgetLevel(strings.ToLower(strings.TrimSpace(string(p.BudgetLevel)))),
		CommitmentLevel: CommitmentLevel(strings.ToLower(strings.TrimSpace(string(p.CommitmentLevel)))),
		CauseAreas:      []string{},
	}

	if p.Location != nil {
		loc := Location{
			City:  strings.TrimSpace(p.Location.City),
			State: strings.TrimSpace(p.Location.State),
		}
		if loc.City != "" || loc.State != "" {
			out.Location = &loc
		}
	}

	seen := make(map[string]struct{}, len(p.CauseAreas))
	for _, c := range p.CauseAreas {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.CauseAreas = append(out.CauseAreas, c)
	}

	return out
}

// HasLocation reports whether the profile carries any usable geography.
func (p UserProfile) HasLocation() bool {
	return p.Location != nil &&
		(strings.TrimSpace(p.Location.City) != "" || strings.TrimSpace(p.Location.State) != "")
}

// City returns the trimmed profile city or "".
func (p UserProfile) City() string {
	if p.Location == nil {
		return ""
	}
	return strings.TrimSpace(p.Location.City)
}

// State returns the trimmed profile state or "".
func (p UserProfile) State() string {
	if p.Location == nil {
		return ""
	}
	return strings.TrimSpace(p.Location.State)
}

// SameText compares two geography or tag values ignoring case and
// surrounding whitespace. Blank values never match.
func SameText(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
