package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AttributeKind names the attribute variant a category carries.
type AttributeKind string

const (
	KindGrant       AttributeKind = "grant"
	KindAccelerator AttributeKind = "accelerator"
	KindSBA         AttributeKind = "sba"
	KindCoworking   AttributeKind = "coworking"
	KindService     AttributeKind = "service"
)

// Attributes is the category-specific part of a listing. Exactly one
// implementation exists per AttributeKind.
type Attributes interface {
	Kind() AttributeKind
}

// KindFor returns the attribute variant a category must carry. Categories
// without a dedicated shape use the professional-service variant.
func KindFor(c Category) AttributeKind {
	switch c {
	case CategoryGrant:
		return KindGrant
	case CategoryAccelerator:
		return KindAccelerator
	case CategorySBA:
		return KindSBA
	case CategoryCoworking:
		return KindCoworking
	default:
		return KindService
	}
}

type GrantAttributes struct {
	AmountMin   *int   `json:"amount_min,omitempty"`
	AmountMax   *int   `json:"amount_max,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	Eligibility string `json:"eligibility,omitempty"`
}

func (GrantAttributes) Kind() AttributeKind { return KindGrant }

type AcceleratorAttributes struct {
	DurationWeeks   *int     `json:"duration_weeks,omitempty"`
	EquityTaken     *float64 `json:"equity_taken,omitempty"`
	FundingProvided int      `json:"funding_provided,omitempty"`
	NextDeadline    string   `json:"next_deadline,omitempty"`
}

func (AcceleratorAttributes) Kind() AttributeKind { return KindAccelerator }

// SBA program types that earn a scoring bonus.
const (
	SBATypeSCORE = "SCORE"
	SBATypeSBDC  = "SBDC"
)

type SBAAttributes struct {
	SBAType  string   `json:"sba_type,omitempty"`
	Services []string `json:"services,omitempty"`
}

func (SBAAttributes) Kind() AttributeKind { return KindSBA }

type CoworkingAttributes struct {
	PriceMonthlyMin *int     `json:"price_monthly_min,omitempty"`
	PriceMonthlyMax *int     `json:"price_monthly_max,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	Amenities       []string `json:"amenities,omitempty"`
}

func (CoworkingAttributes) Kind() AttributeKind { return KindCoworking }

type ServiceAttributes struct {
	Specialty  string   `json:"specialty,omitempty"`
	FocusAreas []string `json:"focus_areas,omitempty"`
}

func (ServiceAttributes) Kind() AttributeKind { return KindService }

// EmptyAttributes returns the zero variant for a category.
func EmptyAttributes(c Category) Attributes {
	switch KindFor(c) {
	case KindGrant:
		return GrantAttributes{}
	case KindAccelerator:
		return AcceleratorAttributes{}
	case KindSBA:
		return SBAAttributes{}
	case KindCoworking:
		return CoworkingAttributes{}
	default:
		return ServiceAttributes{}
	}
}

// DecodeAttributes decodes raw JSON into the variant selected by category.
// Empty or null input yields the zero variant.
func DecodeAttributes(c Category, raw []byte) (Attributes, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return EmptyAttributes(c), nil
	}

	var (
		attrs Attributes
		err   error
	)
	switch KindFor(c) {
	case KindGrant:
		var a GrantAttributes
		err = json.Unmarshal(trimmed, &a)
		attrs = a
	case KindAccelerator:
		var a AcceleratorAttributes
		err = json.Unmarshal(trimmed, &a)
		attrs = a
	case KindSBA:
		var a SBAAttributes
		err = json.Unmarshal(trimmed, &a)
		attrs = a
	case KindCoworking:
		var a CoworkingAttributes
		err = json.Unmarshal(trimmed, &a)
		attrs = a
	default:
		var a ServiceAttributes
		err = json.Unmarshal(trimmed, &a)
		attrs = a
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s attributes: %w", c, err)
	}
	return attrs, nil
}
