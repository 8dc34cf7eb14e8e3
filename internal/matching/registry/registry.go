// Package registry maps resource categories to their geographic query
// strategy and result limit.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"resource-matcher/internal/models"
)

var ErrInvalidOverride = errors.New("INVALID_REGISTRY_OVERRIDE")

// CategoryConfig is the static query policy for one category.
type CategoryConfig struct {
	Strategy models.Strategy `json:"strategy" yaml:"strategy"`
	Limit    int             `json:"limit" yaml:"limit"`
}

// DefaultConfig applies to any category without an explicit entry.
var DefaultConfig = CategoryConfig{Strategy: models.StrategyLocalOnly, Limit: 2}

var builtin = map[models.Category]CategoryConfig{
	models.CategoryGrant:              {models.StrategyLocalAndNationwide, 3},
	models.CategoryAccelerator:        {models.StrategyLocalAndNationwide, 3},
	models.CategorySBA:                {models.StrategyStateLevel, 2},
	models.CategoryCoworking:          {models.StrategyLocalOnly, 2},
	models.CategoryIncubator:          {models.StrategyStateLevel, 2},
	models.CategoryBusinessAttorney:   {models.StrategyLocalOnly, 2},
	models.CategoryAccountant:         {models.StrategyLocalOnly, 2},
	models.CategoryBusinessConsultant: {models.StrategyLocalAndNationwide, 2},
	models.CategoryMarketingAgency:    {models.StrategyLocalAndNationwide, 2},
	models.CategoryInsuranceAgent:     {models.StrategyStateLevel, 2},
	models.CategoryWebDesigner:        {models.StrategyLocalAndNationwide, 2},
}

// Entry is one override, as read from the YAML override file.
type Entry struct {
	Category string `yaml:"category" validate:"required"`
	Strategy string `yaml:"strategy" validate:"required,oneof=local-only local-and-nationwide state-level"`
	Limit    int    `yaml:"limit" validate:"required,min=1,max=20"`
}

type overrideFile struct {
	Categories []Entry `yaml:"categories" validate:"dive"`
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	entries map[models.Category]CategoryConfig
}

// New builds a registry from the built-in table plus overrides, which win
// over built-in entries for the same category.
func New(overrides ...Entry) (*Registry, error) {
	entries := make(map[models.Category]CategoryConfig, len(builtin)+len(overrides))
	for k, v := range builtin {
		entries[k] = v
	}

	validate := validator.New()
	for _, o := range overrides {
		if err := validate.Struct(o); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOverride, o.Category, err)
		}
		entries[models.NormalizeCategory(o.Category)] = CategoryConfig{
			Strategy: models.Strategy(o.Strategy),
			Limit:    o.Limit,
		}
	}

	return &Registry{entries: entries}, nil
}

// Default returns a registry with only the built-in table.
func Default() *Registry {
	r, _ := New()
	return r
}

// LoadOverrides reads a YAML file of the form
//
//	categories:
//	  - category: grant
//	    strategy: local-and-nationwide
//	    limit: 5
func LoadOverrides(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry overrides: %w", err)
	}

	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidOverride, path, err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOverride, err)
	}
	return f.Categories, nil
}

// Resolve returns the config for category, or DefaultConfig when the
// category is not registered.
func (r *Registry) Resolve(category models.Category) CategoryConfig {
	if cfg, ok := r.entries[models.NormalizeCategory(string(category))]; ok {
		return cfg
	}
	return DefaultConfig
}

// Known reports whether category has an explicit entry.
func (r *Registry) Known(category models.Category) bool {
	_, ok := r.entries[models.NormalizeCategory(string(category))]
	return ok
}

// Categories lists registered category names in sorted order.
func (r *Registry) Categories() []string {
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
