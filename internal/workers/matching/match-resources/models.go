package matchresources

import "resource-matcher/internal/models"

// Input is the job's variables: a match request plus an optional
// correlation id.
type Input struct {
	RequestID string `json:"requestId,omitempty"`
	Raw       []byte `json:"-"`
}

type Output struct {
	MatchResponse *models.MatchResponse `json:"matchResponse"`
}
