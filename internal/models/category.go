package models

import "strings"

// Category classifies a catalog listing. The set below is what the catalog
// ships today; unknown values are still accepted and fall back to registry
// defaults.
type Category string

const (
	CategoryGrant              Category = "grant"
	CategoryAccelerator        Category = "accelerator"
	CategoryCoworking          Category = "coworking"
	CategorySBA                Category = "sba"
	CategoryIncubator          Category = "incubator"
	CategoryBusinessAttorney   Category = "business-attorney"
	CategoryAccountant         Category = "accountant"
	CategoryBusinessConsultant Category = "business-consultant"
	CategoryMarketingAgency    Category = "marketing-agency"
	CategoryInsuranceAgent     Category = "insurance-agent"
	CategoryWebDesigner        Category = "web-designer"
)

// NormalizeCategory trims and lower-cases a category name.
func NormalizeCategory(s string) Category {
	return Category(strings.ToLower(strings.TrimSpace(s)))
}

func (c Category) String() string { return string(c) }

// Strategy is the geographic filter applied when querying a category.
type Strategy string

const (
	StrategyLocalOnly          Strategy = "local-only"
	StrategyLocalAndNationwide Strategy = "local-and-nationwide"
	StrategyStateLevel         Strategy = "state-level"
)

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLocalOnly, StrategyLocalAndNationwide, StrategyStateLevel:
		return true
	}
	return false
}
