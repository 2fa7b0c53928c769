package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// FilterState is the set of search criteria a user picked for one view.
// Empty strings and sentinel values leave a criterion inactive.
type FilterState struct {
	PropertyType    string
	TransactionType string
	Districts       []string
	MinPrice        string
	MaxPrice        string
	Currency        string
	Rooms           string
	Amenities       []string
	PetsAllowed     string
	ChildrenAllowed string
	StreetSearch    string
}

func DefaultFilterState() FilterState {
	return FilterState{
		Districts: []string{},
		Currency:  string(AMD),
		Amenities: []string{},
	}
}

// Active reports whether at least one criterion constrains the result.
func (f FilterState) Active() bool {
	if !IsSentinel(f.PropertyType) || !IsSentinel(f.TransactionType) {
		return true
	}
	if len(f.ActiveDistricts()) > 0 || len(f.ActiveAmenities()) > 0 {
		return true
	}
	for _, v := range []string{f.MinPrice, f.MaxPrice, f.Rooms, f.PetsAllowed, f.ChildrenAllowed} {
		if !IsSentinel(v) {
			return true
		}
	}
	return strings.TrimSpace(f.StreetSearch) != ""
}

// ActiveDistricts drops blanks and sentinels from the district set.
func (f FilterState) ActiveDistricts() []string {
	out := make([]string, 0, len(f.Districts))
	for _, d := range f.Districts {
		if IsSentinel(d) {
			continue
		}
		d = strings.TrimSpace(d)
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}

// ActiveAmenities drops blank tags.
func (f FilterState) ActiveAmenities() []string {
	out := make([]string, 0, len(f.Amenities))
	for _, a := range f.Amenities {
		a = strings.TrimSpace(a)
		if a != "" && !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

// Equal compares two states field by field; nil and empty slices are equal.
func (f FilterState) Equal(o FilterState) bool {
	return f.PropertyType == o.PropertyType &&
		f.TransactionType == o.TransactionType &&
		slices.Equal(f.Districts, o.Districts) &&
		f.MinPrice == o.MinPrice &&
		f.MaxPrice == o.MaxPrice &&
		f.Currency == o.Currency &&
		f.Rooms == o.Rooms &&
		slices.Equal(f.Amenities, o.Amenities) &&
		f.PetsAllowed == o.PetsAllowed &&
		f.ChildrenAllowed == o.ChildrenAllowed &&
		f.StreetSearch == o.StreetSearch
}

// Normalized returns a copy with non-nil slices and a currency set.
func (f FilterState) Normalized() FilterState {
	if f.Districts == nil {
		f.Districts = []string{}
	}
	if f.Amenities == nil {
		f.Amenities = []string{}
	}
	if strings.TrimSpace(f.Currency) == "" {
		f.Currency = string(AMD)
	}
	return f
}

type filterWire struct {
	PropertyType    string   `json:"selectedType"`
	TransactionType string   `json:"selectedTransaction"`
	Districts       []string `json:"districts"`
	MinPrice        string   `json:"minPrice"`
	MaxPrice        string   `json:"maxPrice"`
	Currency        string   `json:"currency"`
	Rooms           string   `json:"rooms"`
	Amenities       []string `json:"amenities"`
	PetsAllowed     string   `json:"petsAllowed"`
	ChildrenAllowed string   `json:"childrenAllowed"`
	StreetSearch    string   `json:"streetSearch"`
}

func (f FilterState) MarshalJSON() ([]byte, error) {
	n := f.Normalized()
	b, err := json.Marshal(filterWire{
		PropertyType:    n.PropertyType,
		TransactionType: n.TransactionType,
		Districts:       n.Districts,
		MinPrice:        n.MinPrice,
		MaxPrice:        n.MaxPrice,
		Currency:        n.Currency,
		Rooms:           n.Rooms,
		Amenities:       n.Amenities,
		PetsAllowed:     n.PetsAllowed,
		ChildrenAllowed: n.ChildrenAllowed,
		StreetSearch:    n.StreetSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}
	return b, nil
}

// filterPatch is the read shape: every field is optional and a few legacy
// forms written by older clients are accepted.
type filterPatch struct {
	PropertyType     *string      `json:"selectedType"`
	TransactionType  *string      `json:"selectedTransaction"`
	Districts        *flexStrings `json:"districts"`
	SelectedDistrict *string      `json:"selectedDistrict"`
	MinPrice         *flexText    `json:"minPrice"`
	MaxPrice         *flexText    `json:"maxPrice"`
	Currency         *string      `json:"currency"`
	Rooms            *flexText    `json:"rooms"`
	Amenities        *flexStrings `json:"amenities"`
	PetsAllowed      *flexChoice  `json:"petsAllowed"`
	ChildrenAllowed  *flexChoice  `json:"childrenAllowed"`
	StreetSearch     *string      `json:"streetSearch"`
}

// UnmarshalJSON overlays the fields present in b onto the defaults.
func (f *FilterState) UnmarshalJSON(b []byte) error {
	out := DefaultFilterState()
	if err := out.Merge(b); err != nil {
		return err
	}
	*f = out
	return nil
}

// Merge overlays the fields present in b onto f. Fields absent from b keep
// their current value; unknown fields are ignored.
func (f *FilterState) Merge(b []byte) error {
	var p filterPatch
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("decode filters: %w", err)
	}
	if p.PropertyType != nil {
		f.PropertyType = *p.PropertyType
	}
	if p.TransactionType != nil {
		f.TransactionType = *p.TransactionType
	}
	if p.Districts != nil {
		f.Districts = []string(*p.Districts)
	}
	if p.SelectedDistrict != nil {
		// the single-district form replaces the set unless a list came along
		if p.Districts == nil {
			f.Districts = []string{}
		}
		if !IsSentinel(*p.SelectedDistrict) && !slices.Contains(f.Districts, *p.SelectedDistrict) {
			f.Districts = append(f.Districts, *p.SelectedDistrict)
		}
	}
	if p.MinPrice != nil {
		f.MinPrice = string(*p.MinPrice)
	}
	if p.MaxPrice != nil {
		f.MaxPrice = string(*p.MaxPrice)
	}
	if p.Currency != nil {
		f.Currency = *p.Currency
	}
	if p.Rooms != nil {
		f.Rooms = string(*p.Rooms)
	}
	if p.Amenities != nil {
		f.Amenities = []string(*p.Amenities)
	}
	if p.PetsAllowed != nil {
		f.PetsAllowed = string(*p.PetsAllowed)
	}
	if p.ChildrenAllowed != nil {
		f.ChildrenAllowed = string(*p.ChildrenAllowed)
	}
	if p.StreetSearch != nil {
		f.StreetSearch = *p.StreetSearch
	}
	*f = f.Normalized()
	return nil
}

// flexChoice is a single choice written either as a string, kept verbatim,
// or by older clients as a list whose first element is the choice.
type flexChoice string

func (c *flexChoice) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = flexChoice(s)
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err == nil && len(many) > 0 {
		*c = flexChoice(many[0])
		return nil
	}
	*c = ""
	return nil
}

// flexText accepts a string or a number and keeps its text form.
type flexText string

func (t *flexText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = flexText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*t = flexText(n.String())
		return nil
	}
	*t = ""
	return nil
}
