package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRecordDecode_TolerantNumbersAndDefaults(t *testing.T) {
	raw := `{
		"id": "17",
		"title": "Flat",
		"price": "250000",
		"rooms": 3.0,
		"area": null,
		"floor": "n/a",
		"latitude": 40.18,
		"longitude": 44.51,
		"amenities": "tv",
		"created_at": "2025-03-01T10:00:00",
		"updated_at": "garbage"
	}`
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ID != 17 || r.Price != 250000 || r.Rooms != 3 {
		t.Fatalf("numbers not decoded: %+v", r)
	}
	if r.Area != 0 || r.Floor != 0 {
		t.Fatalf("absent/malformed numbers must be 0: area=%v floor=%v", r.Area, r.Floor)
	}
	if r.PropertyType != Apartment || r.TransactionType != Rent || r.Currency != AMD {
		t.Fatalf("boundary defaults missing: %q %q %q", r.PropertyType, r.TransactionType, r.Currency)
	}
	if diff := cmp.Diff([]string{"tv"}, r.Amenities); diff != "" {
		t.Fatalf("amenities (-want +got):\n%s", diff)
	}
	if r.Images == nil || r.Features == nil {
		t.Fatalf("slices must be non-nil after normalization")
	}
	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if !r.CreatedAt.Equal(want) {
		t.Fatalf("created_at=%v want %v", r.CreatedAt, want)
	}
	if !r.UpdatedAt.IsZero() {
		t.Fatalf("unparseable updated_at must be zero, got %v", r.UpdatedAt)
	}
}

func TestRecordDecode_UnparseablePriceIsNaN(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"id":1,"price":"call us"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsNaN(r.Price) {
		t.Fatalf("price=%v want NaN", r.Price)
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	_ = json.Unmarshal(b, &back)
	if back["price"] != "call us" {
		t.Fatalf("unparseable price must keep its text, got %v", back["price"])
	}
	var again Record
	if err := json.Unmarshal(b, &again); err != nil {
		t.Fatalf("unmarshal again: %v", err)
	}
	if !math.IsNaN(again.Price) {
		t.Fatalf("price after round trip=%v want NaN", again.Price)
	}
}

func TestRecordEncode_NaNWithoutTextStaysNaN(t *testing.T) {
	b, err := json.Marshal(Record{ID: 2, Price: math.NaN()}.Normalize())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsNaN(r.Price) {
		t.Fatalf("price=%v want NaN", r.Price)
	}
}

func TestRecord_EncodeDecodeKeepsFields(t *testing.T) {
	in := Record{
		ID:              5,
		PropertyType:    House,
		TransactionType: Sale,
		Price:           600000,
		Currency:        USD,
		Rooms:           4,
		District:        "Арабкир",
		StreetName:      "Комитаса",
		Latitude:        40.2,
		Longitude:       44.5,
		Amenities:       []string{"tv", "ac"},
		PetsAllowed:     PolicyYes,
		Status:          StatusActive,
		CreatedAt:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}.Normalize()

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("record changed (-in +out):\n%s", diff)
	}
}

func TestFilterState_LegacySingleDistrictAndListPolicies(t *testing.T) {
	raw := `{"selectedType":"apartment","selectedDistrict":"Кентрон","petsAllowed":["yes"],"childrenAllowed":[],"currency":"","minPrice":150000,"unknown":true}`
	var f FilterState
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff([]string{"Кентрон"}, f.Districts); diff != "" {
		t.Fatalf("districts (-want +got):\n%s", diff)
	}
	if f.PetsAllowed != "yes" || f.ChildrenAllowed != "" {
		t.Fatalf("policies: pets=%q children=%q", f.PetsAllowed, f.ChildrenAllowed)
	}
	if f.Currency != "AMD" {
		t.Fatalf("empty currency must fall back to AMD, got %q", f.Currency)
	}
	if f.MinPrice != "150000" {
		t.Fatalf("numeric minPrice must keep its text, got %q", f.MinPrice)
	}
}

func TestFilterState_SentinelDistrictMeansNoDistrict(t *testing.T) {
	var f FilterState
	if err := json.Unmarshal([]byte(`{"selectedDistrict":"Все районы"}`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(f.Districts) != 0 {
		t.Fatalf("sentinel district must not constrain: %v", f.Districts)
	}
	if f.Active() {
		t.Fatalf("state with only sentinels must be inactive")
	}
}

func TestFilterState_RoundTrip(t *testing.T) {
	in := FilterState{
		PropertyType:    "house",
		TransactionType: "sale",
		Districts:       []string{"Арабкир", "Аван"},
		MinPrice:        "100",
		MaxPrice:        "900",
		Currency:        "USD",
		Rooms:           "4",
		Amenities:       []string{"tv", "internet"},
		PetsAllowed:     "negotiable",
		ChildrenAllowed: "yes",
		StreetSearch:    "Комитас",
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out FilterState
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !in.Equal(out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestFilterState_MergeKeepsAbsentFields(t *testing.T) {
	f := DefaultFilterState()
	f.PropertyType = "house"
	f.Rooms = "2"
	if err := f.Merge([]byte(`{"rooms":"4+"}`)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if f.PropertyType != "house" || f.Rooms != "4+" {
		t.Fatalf("merge result: %+v", f)
	}
}

func TestIsSentinel(t *testing.T) {
	for _, v := range []string{"", " ", "all", "ANY", "Все районы"} {
		if !IsSentinel(v) {
			t.Fatalf("%q should be a sentinel", v)
		}
	}
	for _, v := range []string{"apartment", "4", "Кентрон"} {
		if IsSentinel(v) {
			t.Fatalf("%q should not be a sentinel", v)
		}
	}
}

func TestFilterState_PolicyStringKeptVerbatim(t *testing.T) {
	in := DefaultFilterState()
	in.PetsAllowed = " "
	in.ChildrenAllowed = "no"
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out FilterState
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !in.Equal(out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}
