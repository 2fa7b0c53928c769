package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Record is one property listing, the unit the evaluator filters.
type Record struct {
	ID              int64
	Title           string
	Description     string
	PropertyType    PropertyType
	TransactionType TransactionType
	Price           float64
	// PriceText keeps the source text of a price that did not parse, so the
	// record encodes back to the same unparseable value.
	PriceText       string
	Currency        Currency
	Area            float64
	Rooms           int
	Bedrooms        int
	Bathrooms       int
	Floor           int
	TotalFloors     int
	YearBuilt       int
	District        string
	Address         string
	StreetName      string
	HouseNumber     string
	ApartmentNumber string
	Latitude        float64
	Longitude       float64
	Amenities       []string
	Features        []string
	Images          []string
	PetsAllowed     Policy
	ChildrenAllowed Policy
	Phone           string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasCoords reports whether the record can be placed on the map.
func (r Record) HasCoords() bool {
	return r.Latitude != 0 && r.Longitude != 0
}

// IsActive reports whether the listing is public.
func (r Record) IsActive() bool {
	return r.Status == "" || r.Status == StatusActive
}

// Normalize applies the boundary defaults: required enums are filled in,
// numbers are non-negative, slices are non-nil.
func (r Record) Normalize() Record {
	r.PropertyType = PropertyType(strings.TrimSpace(string(r.PropertyType)))
	if r.PropertyType == "" {
		r.PropertyType = Apartment
	}
	r.TransactionType = TransactionType(strings.TrimSpace(string(r.TransactionType)))
	if r.TransactionType == "" {
		r.TransactionType = Rent
	}
	r.Currency = Currency(strings.ToUpper(strings.TrimSpace(string(r.Currency))))
	if r.Currency == "" {
		r.Currency = AMD
	}

	// NaN marks an unparseable price and is kept so the price criteria skip it.
	switch {
	case math.IsInf(r.Price, 0):
		r.Price = math.NaN()
	case r.Price < 0:
		r.Price = 0
	}
	if !math.IsNaN(r.Price) {
		r.PriceText = ""
	}
	r.Area = nonNegative(r.Area)
	r.Rooms = max(r.Rooms, 0)
	r.Bedrooms = max(r.Bedrooms, 0)
	r.Bathrooms = max(r.Bathrooms, 0)
	r.Floor = max(r.Floor, 0)
	r.TotalFloors = max(r.TotalFloors, 0)
	r.YearBuilt = max(r.YearBuilt, 0)
	if math.IsNaN(r.Latitude) || math.IsInf(r.Latitude, 0) {
		r.Latitude = 0
	}
	if math.IsNaN(r.Longitude) || math.IsInf(r.Longitude, 0) {
		r.Longitude = 0
	}

	r.Amenities = cleanTags(r.Amenities)
	r.Features = nonNil(r.Features)
	r.Images = nonNil(r.Images)
	r.PetsAllowed = Policy(strings.ToLower(strings.TrimSpace(string(r.PetsAllowed))))
	r.ChildrenAllowed = Policy(strings.ToLower(strings.TrimSpace(string(r.ChildrenAllowed))))
	r.Status = strings.TrimSpace(r.Status)
	return r
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

type recordWire struct {
	ID              flexInt     `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	PropertyType    string      `json:"property_type"`
	TransactionType string      `json:"transaction_type"`
	Price           flexPrice   `json:"price"`
	Currency        string      `json:"currency"`
	Area            flexFloat   `json:"area"`
	Rooms           flexInt     `json:"rooms"`
	Bedrooms        flexInt     `json:"bedrooms"`
	Bathrooms       flexInt     `json:"bathrooms"`
	Floor           flexInt     `json:"floor"`
	TotalFloors     flexInt     `json:"total_floors"`
	YearBuilt       flexInt     `json:"year_built"`
	District        string      `json:"district"`
	Address         string      `json:"address"`
	StreetName      string      `json:"street_name"`
	HouseNumber     string      `json:"house_number"`
	ApartmentNumber string      `json:"apartment_number"`
	Latitude        flexFloat   `json:"latitude"`
	Longitude       flexFloat   `json:"longitude"`
	Amenities       flexStrings `json:"amenities"`
	Features        flexStrings `json:"features"`
	Images          flexStrings `json:"images"`
	PetsAllowed     string      `json:"pets_allowed"`
	ChildrenAllowed string      `json:"children_allowed"`
	Phone           string      `json:"phone"`
	Status          string      `json:"status"`
	CreatedAt       flexTime    `json:"created_at"`
	UpdatedAt       flexTime    `json:"updated_at"`
}

// UnmarshalJSON decodes the property API shape and normalizes the result.
// Malformed scalar fields decode to their absent value instead of failing.
func (r *Record) UnmarshalJSON(b []byte) error {
	var w recordWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	rec := Record{
		ID:              int64(w.ID),
		Title:           w.Title,
		Description:     w.Description,
		PropertyType:    PropertyType(w.PropertyType),
		TransactionType: TransactionType(w.TransactionType),
		Price:           w.Price.value,
		PriceText:       w.Price.text,
		Currency:        Currency(w.Currency),
		Area:            float64(w.Area),
		Rooms:           int(w.Rooms),
		Bedrooms:        int(w.Bedrooms),
		Bathrooms:       int(w.Bathrooms),
		Floor:           int(w.Floor),
		TotalFloors:     int(w.TotalFloors),
		YearBuilt:       int(w.YearBuilt),
		District:        strings.TrimSpace(w.District),
		Address:         w.Address,
		StreetName:      w.StreetName,
		HouseNumber:     w.HouseNumber,
		ApartmentNumber: w.ApartmentNumber,
		Latitude:        float64(w.Latitude),
		Longitude:       float64(w.Longitude),
		Amenities:       []string(w.Amenities),
		Features:        []string(w.Features),
		Images:          []string(w.Images),
		PetsAllowed:     Policy(w.PetsAllowed),
		ChildrenAllowed: Policy(w.ChildrenAllowed),
		Phone:           w.Phone,
		Status:          w.Status,
		CreatedAt:       time.Time(w.CreatedAt),
		UpdatedAt:       time.Time(w.UpdatedAt),
	}
	*r = rec.Normalize()
	return nil
}

type recordOut struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	PropertyType    string   `json:"property_type"`
	TransactionType string   `json:"transaction_type"`
	Price           any      `json:"price"`
	Currency        string   `json:"currency"`
	Area            float64  `json:"area"`
	Rooms           int      `json:"rooms"`
	Bedrooms        int      `json:"bedrooms"`
	Bathrooms       int      `json:"bathrooms"`
	Floor           int      `json:"floor"`
	TotalFloors     int      `json:"total_floors"`
	YearBuilt       int      `json:"year_built"`
	District        string   `json:"district"`
	Address         string   `json:"address"`
	StreetName      string   `json:"street_name,omitempty"`
	HouseNumber     string   `json:"house_number,omitempty"`
	ApartmentNumber string   `json:"apartment_number,omitempty"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	Amenities       []string `json:"amenities"`
	Features        []string `json:"features"`
	Images          []string `json:"images"`
	PetsAllowed     string   `json:"pets_allowed,omitempty"`
	ChildrenAllowed string   `json:"children_allowed,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Status          string   `json:"status,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

// MarshalJSON emits the property API shape. A NaN price is written as its
// source text (or "NaN"), which decodes back to NaN.
func (r Record) MarshalJSON() ([]byte, error) {
	var price any = r.Price
	if math.IsNaN(r.Price) {
		price = "NaN"
		if r.PriceText != "" {
			price = r.PriceText
		}
	}
	out := recordOut{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		PropertyType:    string(r.PropertyType),
		TransactionType: string(r.TransactionType),
		Price:           price,
		Currency:        string(r.Currency),
		Area:            r.Area,
		Rooms:           r.Rooms,
		Bedrooms:        r.Bedrooms,
		Bathrooms:       r.Bathrooms,
		Floor:           r.Floor,
		TotalFloors:     r.TotalFloors,
		YearBuilt:       r.YearBuilt,
		District:        r.District,
		Address:         r.Address,
		StreetName:      r.StreetName,
		HouseNumber:     r.HouseNumber,
		ApartmentNumber: r.ApartmentNumber,
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		Amenities:       nonNil(r.Amenities),
		Features:        nonNil(r.Features),
		Images:          nonNil(r.Images),
		PetsAllowed:     string(r.PetsAllowed),
		ChildrenAllowed: string(r.ChildrenAllowed),
		Phone:           r.Phone,
		Status:          r.Status,
		CreatedAt:       formatTime(r.CreatedAt),
		UpdatedAt:       formatTime(r.UpdatedAt),
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode record %d: %w", r.ID, err)
	}
	return b, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
