package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

// ==========================
// Attribute Variants
// ==========================

func TestDecodeAttributes_SelectsVariantByCategory(t *testing.T) {
	tests := []struct {
		category Category
		raw      string
		want     Attributes
	}{
		{CategoryGrant, `{"amount_max": 20000, "deadline": "2025-01-01"}`, GrantAttributes{AmountMax: intPtr(20000), Deadline: "2025-01-01"}},
		{CategorySBA, `{"sba_type": "SCORE", "services": ["mentoring"]}`, SBAAttributes{SBAType: "SCORE", Services: []string{"mentoring"}}},
		{CategoryCoworking, `{"amenities": ["wifi"]}`, CoworkingAttributes{Amenities: []string{"wifi"}}},
		{CategoryBusinessAttorney, `{"specialty": "formation"}`, ServiceAttributes{Specialty: "formation"}},
		{Category("brand-new-category"), `{"focus_areas": ["x"]}`, ServiceAttributes{FocusAreas: []string{"x"}}},
		{CategoryAccelerator, ``, AcceleratorAttributes{}},
		{CategoryGrant, `null`, GrantAttributes{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			got, err := DecodeAttributes(tt.category, []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAttributes_RejectsWrongShape(t *testing.T) {
	_, err := DecodeAttributes(CategoryGrant, []byte(`{"amount_max": "lots"}`))
	assert.Error(t, err)
}

// ==========================
// Listing
// ==========================

func TestResourceListing_Validate(t *testing.T) {
	valid := ResourceListing{ID: "g1", Category: CategoryGrant, Attributes: GrantAttributes{}}
	assert.NoError(t, valid.Validate())

	mismatched := ResourceListing{ID: "g2", Category: CategoryGrant, Attributes: SBAAttributes{}}
	err := mismatched.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidListing))

	assert.Error(t, ResourceListing{Category: CategoryGrant, Attributes: GrantAttributes{}}.Validate())
	assert.Error(t, ResourceListing{ID: "x", Attributes: ServiceAttributes{}}.Validate())
	assert.Error(t, ResourceListing{ID: "x", Category: CategorySBA}.Validate())
}

func TestResourceListing_UnmarshalNormalizesCategory(t *testing.T) {
	var l ResourceListing
	err := json.Unmarshal([]byte(`{"id":"s1","category":" SBA ","attributes":{"sba_type":"SBDC"}}`), &l)
	require.NoError(t, err)

	assert.Equal(t, CategorySBA, l.Category)
	assert.Equal(t, SBAAttributes{SBAType: "SBDC"}, l.Attributes)
	assert.NoError(t, l.Validate())
}

func TestResourceListing_HasSubcategory(t *testing.T) {
	l := ResourceListing{Subcategories: []string{"Social-Impact", " tech "}}
	assert.True(t, l.HasSubcategory("social-impact"))
	assert.True(t, l.HasSubcategory("tech"))
	assert.False(t, l.HasSubcategory("nonprofit"))
}

// ==========================
// Scored Listing Encoding
// ==========================

func TestScoredListing_JSONCarriesListingAndScore(t *testing.T) {
	s := ScoredListing{
		ResourceListing: ResourceListing{
			ID:         "g1",
			Name:       "Green Fund",
			Category:   CategoryGrant,
			City:       "Austin",
			State:      "TX",
			Attributes: GrantAttributes{AmountMax: intPtr(20000)},
		},
		MatchScore:   14,
		MatchReasons: []string{"Located in Austin"},
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "g1", flat["id"])
	assert.Equal(t, float64(14), flat["match_score"])
	assert.Equal(t, []interface{}{"Located in Austin"}, flat["match_reasons"])
	assert.Equal(t, map[string]interface{}{"amount_max": float64(20000)}, flat["attributes"])
	assert.NotContains(t, flat, "relevance_note")

	var back ScoredListing
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s.MatchScore, back.MatchScore)
	assert.Equal(t, s.Attributes, back.Attributes)
}

func TestScoredListing_EmptyReasonsEncodeAsArray(t *testing.T) {
	data, err := json.Marshal(ScoredListing{ResourceListing: ResourceListing{ID: "a", Category: CategorySBA}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"match_reasons":[]`)
	assert.Contains(t, string(data), `"subcategories":[]`)
}

// ==========================
// Profile
// ==========================

func TestUserProfile_Normalized(t *testing.T) {
	p := UserProfile{
		Location:    &Location{City: "  ", State: " "},
		CauseAreas:  []string{" environment", "Environment", "", "clean_energy"},
		VentureType: " Business ",
	}.Normalized()

	assert.Nil(t, p.Location)
	assert.False(t, p.HasLocation())
	assert.Equal(t, []string{"environment", "clean_energy"}, p.CauseAreas)
	assert.Equal(t, VentureBusiness, p.VentureType)
}

func TestUserProfile_LocationAccessors(t *testing.T) {
	p := UserProfile{Location: &Location{City: " Austin ", State: "TX"}}.Normalized()
	assert.True(t, p.HasLocation())
	assert.Equal(t, "Austin", p.City())
	assert.Equal(t, "TX", p.State())

	assert.True(t, SameText("austin", " Austin"))
	assert.False(t, SameText("", ""))
}

func TestMatchResult_ListingIDs(t *testing.T) {
	r := MatchResult{
		Categories: []string{"grant", "sba", "coworking"},
		Matches: Matches{
			"sba":   {{ResourceListing: ResourceListing{ID: "s1"}}},
			"grant": {{ResourceListing: ResourceListing{ID: "g1"}}, {ResourceListing: ResourceListing{ID: "g2"}}},
		},
	}
	assert.Equal(t, []string{"g1", "g2", "s1"}, r.ListingIDs())
}
