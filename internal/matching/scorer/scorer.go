// Package scorer computes how relevant a catalog listing is to a user
// profile. Scoring is additive over an ordered list of independent rules.
package scorer

import (
	"fmt"
	"strings"

	"resource-matcher/internal/models"
)

// Contribution is what a single rule adds to a listing's score.
type Contribution struct {
	Points int
	Reason string
}

// Rule is one scoring rule. Apply must be pure.
type Rule struct {
	Name  string
	Apply func(l models.ResourceListing, p models.UserProfile) Contribution
}

// Applied records a rule that fired for a listing.
type Applied struct {
	Rule string
	Contribution
}

// Scorer applies an ordered rule set to listings. It holds no mutable
// state and is safe for concurrent use.
type Scorer struct {
	rules      []Rule
	maxReasons int
}

// New returns a scorer with the default rule set. Rules run in the order
// location, cause area, venture/subcategory, category-specific, featured.
func New() *Scorer {
	return NewWithRules(DefaultRules())
}

// NewWithRules returns a scorer that runs exactly rules, in order.
func NewWithRules(rules []Rule) *Scorer {
	return &Scorer{rules: rules, maxReasons: models.MaxMatchReasons}
}

// Score returns the total score and up to three reasons in firing order.
func (s *Scorer) Score(l models.ResourceListing, p models.UserProfile) (int, []string) {
	total := 0
	reasons := make([]string, 0, s.maxReasons)
	for _, a := range s.Explain(l, p) {
		total += a.Points
		if a.Reason != "" && len(reasons) < s.maxReasons {
			reasons = append(reasons, a.Reason)
		}
	}
	if total < 0 {
		total = 0
	}
	return total, reasons
}

// Explain lists every rule that contributed points or a reason.
func (s *Scorer) Explain(l models.ResourceListing, p models.UserProfile) []Applied {
	var out []Applied
	for _, r := range s.rules {
		c := r.Apply(l, p)
		if c.Points == 0 && c.Reason == "" {
			continue
		}
		out = append(out, Applied{Rule: r.Name, Contribution: c})
	}
	return out
}

// ScoreListing scores l and wraps it as a ScoredListing.
func (s *Scorer) ScoreListing(l models.ResourceListing, p models.UserProfile) models.ScoredListing {
	score, reasons := s.Score(l, p)
	return models.ScoredListing{ResourceListing: l, MatchScore: score, MatchReasons: reasons}
}

// DefaultRules is the production rule order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "location", Apply: locationRule},
		{Name: "cause_areas", Apply: causeAreaRule},
		{Name: "nonprofit_venture", Apply: nonprofitVentureRule},
		{Name: "business_venture", Apply: businessVentureRule},
		{Name: "social_impact", Apply: socialImpactRule},
		{Name: "accelerator_no_equity", Apply: acceleratorNoEquityRule},
		{Name: "accelerator_all_in", Apply: acceleratorAllInRule},
		{Name: "accelerator_remote_weekend", Apply: acceleratorWeekendRemoteRule},
		{Name: "accelerator_funding", Apply: acceleratorFundingRule},
		{Name: "grant_amount", Apply: grantAmountRule},
		{Name: "grant_nonprofit", Apply: grantNonprofitRule},
		{Name: "grant_diverse_founder", Apply: grantDiverseFounderRule},
		{Name: "sba_base", Apply: sbaBaseRule},
		{Name: "sba_program", Apply: sbaProgramRule},
		{Name: "featured", Apply: featuredRule},
	}
}

var (
	nonprofitAlignedTags = []string{"nonprofit", "501c3", "charitable"}
	diverseFounderTags   = []string{"women-owned", "minority-owned", "veteran"}
	businessVentureTags  = []string{"tech", "small-business"}
)

func none() Contribution { return Contribution{} }

func locationRule(l models.ResourceListing, p models.UserProfile) Contribution {
	if !p.HasLocation() {
		if l.GeoIndependent() {
			return Contribution{Points: 2}
		}
		return none()
	}

	switch {
	case l.IsNationwide:
		return Contribution{Points: 3, Reason: "Available nationwide"}
	case l.IsRemote:
		return Contribution{Points: 3, Reason: "Available remotely"}
	case models.SameText(l.State, p.State()):
		if models.SameText(l.City, p.City()) {
			return Contribution{Points: 8, Reason: "Located in " + strings.TrimSpace(l.City)}
		}
		return Contribution{Points: 5, Reason: "Available in " + strings.TrimSpace(l.State)}
	}
	return none()
}

func causeAreaRule(l models.ResourceListing, p models.UserProfile) Contribution {
	if len(p.CauseAreas) == 0 || len(l.CauseAreas) == 0 {
		return none()
	}

	listed := make(map[string]struct{}, len(l.CauseAreas))
	for _, c := range l.CauseAreas {
		listed[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}

	var matched []string
	for _, c := range p.CauseAreas {
		if _, ok := listed[strings.ToLower(strings.TrimSpace(c))]; ok {
			matched = append(matched, strings.ReplaceAll(strings.TrimSpace(c), "_", " "))
		}
	}
	if len(matched) == 0 {
		return none()
	}
	return Contribution{
		Points: 4 * len(matched),
		Reason: "Supports " + strings.Join(matched, ", "),
	}
}

func nonprofitVentureRule(l models.ResourceListing, p models.UserProfile) Contribution {
	if p.VentureType == models.VentureNonprofit && l.HasSubcategory("nonprofit") {
		return Contribution{Points: 3, Reason: "Supports nonprofits"}
	}
	return none()
}

func businessVentureRule(l models.ResourceListing, p models.UserProfile) Contribution {
	if p.VentureType == models.VentureBusiness && hasAny(l, businessVentureTags) {
		return Contribution{Points: 2}
	}
	return none()
}

func socialImpactRule(l models.ResourceListing, _ models.UserProfile) Contribution {
	if l.HasSubcategory("social-impact") {
		return Contribution{Points: 3, Reason: "Social impact focus"}
	}
	return none()
}

func acceleratorNoEquityRule(l models.ResourceListing, p models.UserProfile) Contribution {
	a, ok := l.Attributes.(models.AcceleratorAttributes)
	if !ok || a.EquityTaken == nil || *a.EquityTaken != 0 {
		return none()
	}
	if p.BudgetLevel == models.BudgetZero || p.BudgetLevel == models.BudgetLow {
		return Contribution{Points: 4, Reason: "No equity required"}
	}
	return none()
}

func acceleratorAllInRule(l models.ResourceListing, p models.UserProfile) Contribution {
	a, ok := l.Attributes.(models.AcceleratorAttributes)
	if ok && p.CommitmentLevel == models.CommitmentAllIn && a.DurationWeeks != nil && *a.DurationWeeks >= 12 {
		return Contribution{Points: 2}
	}
	return none()
}

func acceleratorWeekendRemoteRule(l models.ResourceListing, p models.UserProfile) Contribution {
	if _, ok := l.Attributes.(models.AcceleratorAttributes); ok && p.CommitmentLevel == models.CommitmentWeekend && l.IsRemote {
		return Contribution{Points: 2, Reason: "Flexible remote program"}
	}
	return none()
}

func acceleratorFundingRule(l models.ResourceListing, _ models.UserProfile) Contribution {
	a, ok := l.Attributes.(models.AcceleratorAttributes)
	if !ok || a.FundingProvided <= 0 {
		return none()
	}
	return Contribution{Points: 3, Reason: formatAmount(a.FundingProvided) + " funding"}
}

func grantAmountRule(l models.ResourceListing, _ models.UserProfile) Contribution {
	g, ok := l.Attributes.(models.GrantAttributes)
	if !ok || g.AmountMax == nil {
		return none()
	}

	amount := *g.AmountMax
	points := 1
	switch {
	case amount >= 50000:
		points = 3
	case amount >= 10000:
		points = 2
	}
	return Contribution{Points: points, Reason: fmt.Sprintf("Up to %s available", formatAmount(amount))}
}

func grantNonprofitRule(l models.ResourceListing, p models.UserProfile) Contribution {
	if _, ok := l.Attributes.(models.GrantAttributes); ok && p.VentureType == models.VentureNonprofit && hasAny(l, nonprofitAlignedTags) {
		return Contribution{Points: 2}
	}
	return none()
}

func grantDiverseFounderRule(l models.ResourceListing, _ models.UserProfile) Contribution {
	if _, ok := l.Attributes.(models.GrantAttributes); ok && hasAny(l, diverseFounderTags) {
		return Contribution{Points: 1}
	}
	return none()
}

// sbaBaseRule rewards every SBA program; they are free to the user.
func sbaBaseRule(l models.ResourceListing, _ models.UserProfile) Contribution {
	if _, ok := l.Attributes.(models.SBAAttributes); ok {
		return Contribution{Points: 2}
	}
	return none()
}

func sbaProgramRule(l models.ResourceListing, _ models.UserProfile) Contribution {
	s, ok := l.Attributes.(models.SBAAttributes)
	if !ok {
		return none()
	}
	switch strings.ToUpper(strings.TrimSpace(s.SBAType)) {
	case models.SBATypeSCORE:
		return Contribution{Points: 1, Reason: "Free mentorship"}
	case models.SBATypeSBDC:
		return Contribution{Points: 1, Reason: "Free business counseling"}
	}
	return none()
}

func featuredRule(l models.ResourceListing, _ models.UserProfile) Contribution {
	if l.IsFeatured {
		return Contribution{Points: 2}
	}
	return none()
}

func hasAny(l models.ResourceListing, tags []string) bool {
	for _, t := range tags {
		if l.HasSubcategory(t) {
			return true
		}
	}
	return false
}

// formatAmount renders dollars as "$20K", or "$750" below one thousand.
func formatAmount(v int) string {
	if v >= 1000 {
		return fmt.Sprintf("$%dK", v/1000)
	}
	return fmt.Sprintf("$%d", v)
}
