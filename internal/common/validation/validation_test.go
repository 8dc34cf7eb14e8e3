package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/models"
)

func TestValidateMatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"full request", `{"cause_areas":["education"],"location":{"city":"Austin","state":"TX"},
			"commitment_level":"weekend","venture_type":"nonprofit","budget_level":"zero","categories":["grant"]}`, ""},
		{"empty object", `{}`, ""},
		{"null location", `{"location":null,"cause_areas":[]}`, ""},
		{"extra fields tolerated", `{"requestId":"abc"}`, ""},
		{"cause areas not array", `{"cause_areas":"education"}`, "cause_areas"},
		{"cause area not string", `{"cause_areas":[1]}`, "cause_areas.0"},
		{"bad venture type", `{"venture_type":"corporation"}`, "venture_type"},
		{"bad budget", `{"budget_level":"huge"}`, "budget_level"},
		{"location not object", `{"location":"Austin, TX"}`, "location"},
		{"unknown location field", `{"location":{"zip":"78701"}}`, "location"},
		{"empty category", `{"categories":[""]}`, "categories.0"},
		{"not an object", `[1,2]`, "(root)"},
		{"malformed json", `{"cause_areas": [`, "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMatchRequest([]byte(tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidProfile)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateMatchRequest_ReportsFields(t *testing.T) {
	err := ValidateMatchRequest([]byte(`{"cause_areas":"x","budget_level":"huge"}`))
	stdErr := apperrors.AsStandardError(err)

	fields, ok := stdErr.Metadata["fields"].([]FieldError)
	require.True(t, ok)
	assert.Len(t, fields, 2)
}

func TestDecodeMatchRequest(t *testing.T) {
	req, err := DecodeMatchRequest([]byte(`{"cause_areas":["education"],"location":{"city":"Austin","state":"TX"},"budget_level":"low"}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"education"}, req.CauseAreas)
	assert.Equal(t, &models.Location{City: "Austin", State: "TX"}, req.Location)
	assert.Equal(t, models.BudgetLow, req.BudgetLevel)

	_, err = DecodeMatchRequest([]byte(`{"cause_areas":{}}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidProfile)
}
