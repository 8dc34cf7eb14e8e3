package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-matcher/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func austin() models.UserProfile {
	return models.UserProfile{Location: &models.Location{City: "Austin", State: "TX"}}
}

// ==========================
// Worked Scenarios
// ==========================

func TestScore_LocalGrantWithCauseAndAmount(t *testing.T) {
	p := models.UserProfile{
		Location:    &models.Location{City: "Austin", State: "TX"},
		CauseAreas:  []string{"environment"},
		VentureType: models.VentureBusiness,
	}
	grant := models.ResourceListing{
		ID:         "g1",
		Category:   models.CategoryGrant,
		City:       "Austin",
		State:      "TX",
		CauseAreas: []string{"environment"},
		Attributes: models.GrantAttributes{AmountMax: intPtr(20000)},
	}

	score, reasons := New().Score(grant, p)

	assert.Equal(t, 14, score)
	assert.Equal(t, []string{"Located in Austin", "Supports environment", "Up to $20K available"}, reasons)
}

func TestScore_NationwideAcceleratorEquityDependsOnBudget(t *testing.T) {
	acc := models.ResourceListing{
		ID:           "a1",
		Category:     models.CategoryAccelerator,
		IsNationwide: true,
		Attributes:   models.AcceleratorAttributes{EquityTaken: floatPtr(0)},
	}

	p := austin()
	p.VentureType = models.VentureBusiness
	score, reasons := New().Score(acc, p)
	assert.Equal(t, 3, score)
	assert.Equal(t, []string{"Available nationwide"}, reasons)

	p.BudgetLevel = models.BudgetZero
	score, reasons = New().Score(acc, p)
	assert.Equal(t, 7, score)
	assert.Equal(t, []string{"Available nationwide", "No equity required"}, reasons)
}

func TestScore_NoLocationNationwideSCORE(t *testing.T) {
	sba := models.ResourceListing{
		ID:           "s1",
		Category:     models.CategorySBA,
		IsNationwide: true,
		Attributes:   models.SBAAttributes{SBAType: models.SBATypeSCORE},
	}

	score, reasons := New().Score(sba, models.UserProfile{})

	assert.Equal(t, 5, score)
	assert.Contains(t, reasons, "Free mentorship")
	assert.Equal(t, []string{"Free mentorship"}, reasons)
}

// ==========================
// Location Rule
// ==========================

func TestLocationRule(t *testing.T) {
	tests := []struct {
		name    string
		listing models.ResourceListing
		profile models.UserProfile
		want    Contribution
	}{
		{"nationwide wins over stray city", models.ResourceListing{IsNationwide: true, City: "Austin", State: "TX"}, austin(), Contribution{3, "Available nationwide"}},
		{"remote", models.ResourceListing{IsRemote: true}, austin(), Contribution{3, "Available remotely"}},
		{"same city and state", models.ResourceListing{City: "austin ", State: "tx"}, austin(), Contribution{8, "Located in austin"}},
		{"same state only", models.ResourceListing{City: "Dallas", State: "TX"}, austin(), Contribution{5, "Available in TX"}},
		{"same city other state", models.ResourceListing{City: "Austin", State: "MN"}, austin(), Contribution{}},
		{"no geography", models.ResourceListing{}, austin(), Contribution{}},
		{"no location nationwide", models.ResourceListing{IsNationwide: true}, models.UserProfile{}, Contribution{Points: 2}},
		{"no location remote", models.ResourceListing{IsRemote: true}, models.UserProfile{}, Contribution{Points: 2}},
		{"no location local listing", models.ResourceListing{City: "Austin", State: "TX"}, models.UserProfile{}, Contribution{}},
		{"blank location treated as none", models.ResourceListing{IsRemote: true}, models.UserProfile{Location: &models.Location{}}, Contribution{Points: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, locationRule(tt.listing, tt.profile))
		})
	}
}

// ==========================
// Cause Area Rule
// ==========================

func TestCauseAreaRule(t *testing.T) {
	l := models.ResourceListing{CauseAreas: []string{"Clean_Energy", "education", "health"}}

	c := causeAreaRule(l, models.UserProfile{CauseAreas: []string{"education", "clean_energy", "arts"}})
	assert.Equal(t, 8, c.Points)
	assert.Equal(t, "Supports education, clean energy", c.Reason)

	assert.Equal(t, Contribution{}, causeAreaRule(l, models.UserProfile{CauseAreas: []string{"arts"}}))
	assert.Equal(t, Contribution{}, causeAreaRule(l, models.UserProfile{}))
	assert.Equal(t, Contribution{}, causeAreaRule(models.ResourceListing{}, models.UserProfile{CauseAreas: []string{"arts"}}))
}

func TestScore_AddingMatchingCauseNeverLowersScore(t *testing.T) {
	s := New()
	l := models.ResourceListing{
		Category:   models.CategoryCoworking,
		City:       "Austin",
		State:      "TX",
		CauseAreas: []string{"education", "arts"},
		Attributes: models.CoworkingAttributes{},
	}

	p := austin()
	p.CauseAreas = []string{"education"}
	before, _ := s.Score(l, p)

	p.CauseAreas = append(p.CauseAreas, "arts")
	after, _ := s.Score(l, p)

	assert.GreaterOrEqual(t, after, before)
	assert.Equal(t, before+4, after)
}

// ==========================
// Venture And Subcategory Rules
// ==========================

func TestVentureRules(t *testing.T) {
	l := models.ResourceListing{Subcategories: []string{"Nonprofit", "tech", "social-impact"}}

	assert.Equal(t, Contribution{3, "Supports nonprofits"}, nonprofitVentureRule(l, models.UserProfile{VentureType: models.VentureNonprofit}))
	assert.Equal(t, Contribution{}, nonprofitVentureRule(l, models.UserProfile{VentureType: models.VentureBusiness}))

	assert.Equal(t, Contribution{Points: 2}, businessVentureRule(l, models.UserProfile{VentureType: models.VentureBusiness}))
	assert.Equal(t, Contribution{}, businessVentureRule(l, models.UserProfile{VentureType: models.VentureHybrid}))

	assert.Equal(t, Contribution{3, "Social impact focus"}, socialImpactRule(l, models.UserProfile{}))
	assert.Equal(t, Contribution{}, socialImpactRule(models.ResourceListing{}, models.UserProfile{}))
}

// ==========================
// Category Rules
// ==========================

func TestAcceleratorRules(t *testing.T) {
	l := models.ResourceListing{
		Category: models.CategoryAccelerator,
		IsRemote: true,
		Attributes: models.AcceleratorAttributes{
			DurationWeeks:   intPtr(12),
			EquityTaken:     floatPtr(0),
			FundingProvided: 150000,
		},
	}

	assert.Equal(t, Contribution{4, "No equity required"}, acceleratorNoEquityRule(l, models.UserProfile{BudgetLevel: models.BudgetLow}))
	assert.Equal(t, Contribution{}, acceleratorNoEquityRule(l, models.UserProfile{BudgetLevel: models.BudgetHigh}))
	assert.Equal(t, Contribution{Points: 2}, acceleratorAllInRule(l, models.UserProfile{CommitmentLevel: models.CommitmentAllIn}))
	assert.Equal(t, Contribution{2, "Flexible remote program"}, acceleratorWeekendRemoteRule(l, models.UserProfile{CommitmentLevel: models.CommitmentWeekend}))
	assert.Equal(t, Contribution{3, "$150K funding"}, acceleratorFundingRule(l, models.UserProfile{}))

	unknownEquity := models.ResourceListing{Attributes: models.AcceleratorAttributes{DurationWeeks: intPtr(8)}}
	assert.Equal(t, Contribution{}, acceleratorNoEquityRule(unknownEquity, models.UserProfile{BudgetLevel: models.BudgetZero}))
	assert.Equal(t, Contribution{}, acceleratorAllInRule(unknownEquity, models.UserProfile{CommitmentLevel: models.CommitmentAllIn}))
	assert.Equal(t, Contribution{}, acceleratorFundingRule(unknownEquity, models.UserProfile{}))
}

func TestGrantAmountTiers(t *testing.T) {
	tests := []struct {
		amount int
		want   Contribution
	}{
		{75000, Contribution{3, "Up to $75K available"}},
		{50000, Contribution{3, "Up to $50K available"}},
		{10000, Contribution{2, "Up to $10K available"}},
		{9999, Contribution{1, "Up to $9K available"}},
		{500, Contribution{1, "Up to $500 available"}},
	}

	for _, tt := range tests {
		l := models.ResourceListing{Attributes: models.GrantAttributes{AmountMax: intPtr(tt.amount)}}
		assert.Equal(t, tt.want, grantAmountRule(l, models.UserProfile{}), "amount %d", tt.amount)
	}

	assert.Equal(t, Contribution{}, grantAmountRule(models.ResourceListing{Attributes: models.GrantAttributes{}}, models.UserProfile{}))
}

func TestGrantTagBoosts(t *testing.T) {
	l := models.ResourceListing{
		Subcategories: []string{"501c3", "women-owned"},
		Attributes:    models.GrantAttributes{},
	}

	assert.Equal(t, Contribution{Points: 2}, grantNonprofitRule(l, models.UserProfile{VentureType: models.VentureNonprofit}))
	assert.Equal(t, Contribution{}, grantNonprofitRule(l, models.UserProfile{VentureType: models.VentureProject}))
	assert.Equal(t, Contribution{Points: 1}, grantDiverseFounderRule(l, models.UserProfile{}))

	notGrant := models.ResourceListing{Subcategories: []string{"veteran"}, Attributes: models.ServiceAttributes{}}
	assert.Equal(t, Contribution{}, grantDiverseFounderRule(notGrant, models.UserProfile{}))
}

func TestSBARules(t *testing.T) {
	sbdc := models.ResourceListing{Attributes: models.SBAAttributes{SBAType: "sbdc"}}
	assert.Equal(t, Contribution{Points: 2}, sbaBaseRule(sbdc, models.UserProfile{}))
	assert.Equal(t, Contribution{1, "Free business counseling"}, sbaProgramRule(sbdc, models.UserProfile{}))

	other := models.ResourceListing{Attributes: models.SBAAttributes{SBAType: "WBC"}}
	assert.Equal(t, Contribution{}, sbaProgramRule(other, models.UserProfile{}))
	assert.Equal(t, Contribution{}, sbaBaseRule(models.ResourceListing{Attributes: models.GrantAttributes{}}, models.UserProfile{}))
}

// ==========================
// Folding
// ==========================

func TestScore_ReasonsCappedInFiringOrder(t *testing.T) {
	l := models.ResourceListing{
		Category:      models.CategoryAccelerator,
		IsNationwide:  true,
		IsFeatured:    true,
		CauseAreas:    []string{"education"},
		Subcategories: []string{"social-impact"},
		Attributes: models.AcceleratorAttributes{
			EquityTaken:     floatPtr(0),
			FundingProvided: 20000,
		},
	}
	p := austin()
	p.CauseAreas = []string{"education"}
	p.BudgetLevel = models.BudgetZero

	score, reasons := New().Score(l, p)

	assert.Equal(t, 3+4+3+4+3+2, score)
	require.Len(t, reasons, models.MaxMatchReasons)
	assert.Equal(t, []string{"Available nationwide", "Supports education", "Social impact focus"}, reasons)
}

func TestScore_FeaturedAddsNoReason(t *testing.T) {
	l := models.ResourceListing{IsFeatured: true, Attributes: models.ServiceAttributes{}}
	score, reasons := New().Score(l, models.UserProfile{})
	assert.Equal(t, 2, score)
	assert.Empty(t, reasons)
	assert.NotNil(t, reasons)
}

func TestScore_Deterministic(t *testing.T) {
	l := models.ResourceListing{
		Category:   models.CategoryGrant,
		State:      "TX",
		CauseAreas: []string{"health", "education"},
		Attributes: models.GrantAttributes{AmountMax: intPtr(60000)},
	}
	p := austin()
	p.CauseAreas = []string{"education", "health"}

	s := New()
	firstScore, firstReasons := s.Score(l, p)
	for i := 0; i < 20; i++ {
		score, reasons := s.Score(l, p)
		assert.Equal(t, firstScore, score)
		assert.Equal(t, firstReasons, reasons)
	}
}

func TestExplain_ListsFiredRules(t *testing.T) {
	l := models.ResourceListing{
		IsNationwide: true,
		IsFeatured:   true,
		Attributes:   models.SBAAttributes{SBAType: "SCORE"},
	}

	var names []string
	for _, a := range New().Explain(l, models.UserProfile{}) {
		names = append(names, a.Rule)
	}
	assert.Equal(t, []string{"location", "sba_base", "sba_program", "featured"}, names)
}

func TestNewWithRules_CustomRuleSet(t *testing.T) {
	s := NewWithRules([]Rule{
		{Name: "penalty", Apply: func(models.ResourceListing, models.UserProfile) Contribution { return Contribution{Points: -5} }},
	})
	score, _ := s.Score(models.ResourceListing{}, models.UserProfile{})
	assert.Equal(t, 0, score)
}
