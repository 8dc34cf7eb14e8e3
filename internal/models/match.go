package models

import "encoding/json"

// MaxMatchReasons caps the reasons attached to a scored listing.
const MaxMatchReasons = 3

// ScoredListing is a listing plus its relevance for one profile.
type ScoredListing struct {
	ResourceListing
	MatchScore    int
	MatchReasons  []string
	RelevanceNote string
}

type scoredWire struct {
	listingWire
	MatchScore    int      `json:"match_score"`
	MatchReasons  []string `json:"match_reasons"`
	RelevanceNote string   `json:"relevance_note,omitempty"`
}

func (s ScoredListing) MarshalJSON() ([]byte, error) {
	w, err := s.ResourceListing.toWire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(scoredWire{
		listingWire:   w,
		MatchScore:    s.MatchScore,
		MatchReasons:  nonNil(s.MatchReasons),
		RelevanceNote: s.RelevanceNote,
	})
}

func (s *ScoredListing) UnmarshalJSON(data []byte) error {
	var w scoredWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	listing, err := w.listingWire.toListing()
	if err != nil {
		return err
	}
	*s = ScoredListing{
		ResourceListing: listing,
		MatchScore:      w.MatchScore,
		MatchReasons:    w.MatchReasons,
		RelevanceNote:   w.RelevanceNote,
	}
	return nil
}

// MatchRequest is the body of POST /match and of the match-resources job.
type MatchRequest struct {
	CauseAreas      []string        `json:"cause_areas"`
	Location        *Location       `json:"location,omitempty"`
	CommitmentLevel CommitmentLevel `json:"commitment_level,omitempty"`
	VentureType     VentureType     `json:"venture_type,omitempty"`
	BudgetLevel     BudgetLevel     `json:"budget_level,omitempty"`
	Categories      []string        `json:"categories,omitempty"`
}

// Profile extracts the normalized matching profile from the request.
func (r MatchRequest) Profile() UserProfile {
	return UserProfile{
		Location:        r.Location,
		CauseAreas:      r.CauseAreas,
		VentureType:     r.VentureType,
		BudgetLevel:     r.BudgetLevel,
		CommitmentLevel: r.CommitmentLevel,
	}.Normalized()
}

// Matches maps category name to its ranked listings. Categories with no
// results are absent rather than empty.
type Matches map[string][]ScoredListing

// CategoryStats describes how one category's pass went. It feeds logs,
// metrics and events, not the response body.
type CategoryStats struct {
	Category     string `json:"category"`
	Candidates   int    `json:"candidates"`
	Kept         int    `json:"kept"`
	FallbackUsed bool   `json:"fallback_used"`
	Failed       bool   `json:"failed"`
}

// MatchResult is the orchestrator's output for one request.
type MatchResult struct {
	Matches    Matches         `json:"matches"`
	Categories []string        `json:"categories"`
	Stats      []CategoryStats `json:"stats"`
}

// ListingIDs returns every listing id in the result, category by category in
// the order categories were requested.
func (r MatchResult) ListingIDs() []string {
	var ids []string
	for _, c := range r.Categories {
		for _, l := range r.Matches[c] {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// MatchData is the success payload.
type MatchData struct {
	Matches        Matches      `json:"matches"`
	FiltersApplied MatchRequest `json:"filters_applied"`
}

// MatchResponse is the wire envelope for every match outcome.
type MatchResponse struct {
	Success bool       `json:"success"`
	Data    *MatchData `json:"data,omitempty"`
	Error   string     `json:"error,omitempty"`
}
