package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidListing = errors.New("INVALID_LISTING")

// ResourceListing is a read-only catalog entry.
type ResourceListing struct {
	ID            string
	Slug          string
	Name          string
	Description   string
	Website       string
	Category      Category
	Subcategories []string
	CauseAreas    []string
	City          string
	State         string
	IsRemote      bool
	IsNationwide  bool
	IsFeatured    bool
	IsActive      bool
	Attributes    Attributes
}

// listingWire is the JSON shape of a listing. It has no methods so it can be
// embedded in other wire structs without hijacking their encoding.
type listingWire struct {
	ID            string          `json:"id"`
	Slug          string          `json:"slug"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Website       string          `json:"website,omitempty"`
	Category      Category        `json:"category"`
	Subcategories []string        `json:"subcategories"`
	CauseAreas    []string        `json:"cause_areas"`
	City          string          `json:"city,omitempty"`
	State         string          `json:"state,omitempty"`
	IsRemote      bool            `json:"is_remote"`
	IsNationwide  bool            `json:"is_nationwide"`
	IsFeatured    bool            `json:"is_featured"`
	IsActive      bool            `json:"is_active"`
	Attributes    json.RawMessage `json:"attributes"`
}

func (l ResourceListing) toWire() (listingWire, error) {
	attrs := l.Attributes
	if attrs == nil {
		attrs = EmptyAttributes(l.Category)
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return listingWire{}, fmt.Errorf("encode %s attributes: %w", l.Category, err)
	}

	return listingWire{
		ID:            l.ID,
		Slug:          l.Slug,
		Name:          l.Name,
		Description:   l.Description,
		Website:       l.Website,
		Category:      l.Category,
		Subcategories: nonNil(l.Subcategories),
		CauseAreas:    nonNil(l.CauseAreas),
		City:          l.City,
		State:         l.State,
		IsRemote:      l.IsRemote,
		IsNationwide:  l.IsNationwide,
		IsFeatured:    l.IsFeatured,
		IsActive:      l.IsActive,
		Attributes:    raw,
	}, nil
}

func (w listingWire) toListing() (ResourceListing, error) {
	category := NormalizeCategory(string(w.Category))
	attrs, err := DecodeAttributes(category, w.Attributes)
	if err != nil {
		return ResourceListing{}, err
	}

	return ResourceListing{
		ID:            w.ID,
		Slug:          w.Slug,
		Name:          w.Name,
		Description:   w.Description,
		Website:       w.Website,
		Category:      category,
		Subcategories: w.Subcategories,
		CauseAreas:    w.CauseAreas,
		City:          w.City,
		State:         w.State,
		IsRemote:      w.IsRemote,
		IsNationwide:  w.IsNationwide,
		IsFeatured:    w.IsFeatured,
		IsActive:      w.IsActive,
		Attributes:    attrs,
	}, nil
}

func (l ResourceListing) MarshalJSON() ([]byte, error) {
	w, err := l.toWire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (l *ResourceListing) UnmarshalJSON(data []byte) error {
	var w listingWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := w.toListing()
	if err != nil {
		return err
	}
	*l = decoded
	return nil
}

// Validate checks identity fields and that the attribute variant matches the
// listing's category.
func (l ResourceListing) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidListing)
	}
	if l.Category == "" {
		return fmt.Errorf("%w: listing %s has no category", ErrInvalidListing, l.ID)
	}
	if l.Attributes == nil {
		return fmt.Errorf("%w: listing %s has no attributes", ErrInvalidListing, l.ID)
	}
	if want := KindFor(l.Category); l.Attributes.Kind() != want {
		return fmt.Errorf("%w: listing %s is %s but carries %s attributes",
			ErrInvalidListing, l.ID, l.Category, l.Attributes.Kind())
	}
	return nil
}

// GeoIndependent reports whether the listing ignores city/state for matching.
func (l ResourceListing) GeoIndependent() bool {
	return l.IsNationwide || l.IsRemote
}

// HasSubcategory reports whether any subcategory equals tag, ignoring case.
func (l ResourceListing) HasSubcategory(tag string) bool {
	for _, s := range l.Subcategories {
		if strings.EqualFold(strings.TrimSpace(s), tag) {
			return true
		}
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
