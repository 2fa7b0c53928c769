package filter

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/mohammed-shakir/estate-search/internal/core/model"
)

// Criterion is one active filter dimension.
type Criterion struct {
	Name  string
	Value string
	Match func(model.Record) bool
}

// roomsOpenFrom is the room count from which an exact filter means "N or more".
const roomsOpenFrom = 4

// Criteria returns the active criteria of f in a fixed order. Inactive
// fields (empty, sentinel, unparseable bounds) contribute nothing.
func Criteria(f model.FilterState) []Criterion {
	var out []Criterion

	if v := strings.TrimSpace(f.PropertyType); !model.IsSentinel(v) {
		out = append(out, Criterion{Name: "property_type", Value: v, Match: func(r model.Record) bool {
			return strings.EqualFold(string(r.PropertyType), v)
		}})
	}
	if v := strings.TrimSpace(f.TransactionType); !model.IsSentinel(v) {
		out = append(out, Criterion{Name: "transaction_type", Value: v, Match: func(r model.Record) bool {
			return strings.EqualFold(string(r.TransactionType), v)
		}})
	}
	if ds := f.ActiveDistricts(); len(ds) > 0 {
		out = append(out, Criterion{Name: "district", Value: strings.Join(ds, ","), Match: func(r model.Record) bool {
			return slices.Contains(ds, strings.TrimSpace(r.District))
		}})
	}
	if q := strings.TrimSpace(f.StreetSearch); q != "" {
		fold := cases.Fold()
		needle := fold.String(q)
		out = append(out, Criterion{Name: "street", Value: q, Match: func(r model.Record) bool {
			return strings.Contains(fold.String(r.StreetName), needle) ||
				strings.Contains(fold.String(r.Address), needle)
		}})
	}
	if lo, ok := parsePrice(f.MinPrice); ok {
		out = append(out, Criterion{Name: "min_price", Value: strings.TrimSpace(f.MinPrice), Match: func(r model.Record) bool {
			return math.IsNaN(r.Price) || r.Price >= lo
		}})
	}
	if hi, ok := parsePrice(f.MaxPrice); ok {
		out = append(out, Criterion{Name: "max_price", Value: strings.TrimSpace(f.MaxPrice), Match: func(r model.Record) bool {
			return math.IsNaN(r.Price) || r.Price <= hi
		}})
	}
	if n, atLeast, ok := parseRooms(f.Rooms); ok {
		out = append(out, Criterion{Name: "rooms", Value: strings.TrimSpace(f.Rooms), Match: func(r model.Record) bool {
			if r.Rooms <= 0 {
				return false
			}
			if atLeast {
				return r.Rooms >= n
			}
			return r.Rooms == n
		}})
	}
	if tags := f.ActiveAmenities(); len(tags) > 0 {
		out = append(out, Criterion{Name: "amenities", Value: strings.Join(tags, ","), Match: func(r model.Record) bool {
			for _, t := range tags {
				if !slices.Contains(r.Amenities, t) {
					return false
				}
			}
			return true
		}})
	}
	if v := strings.TrimSpace(f.PetsAllowed); !model.IsSentinel(v) {
		out = append(out, Criterion{Name: "pets_allowed", Value: v, Match: func(r model.Record) bool {
			return strings.EqualFold(string(r.PetsAllowed), v)
		}})
	}
	if v := strings.TrimSpace(f.ChildrenAllowed); !model.IsSentinel(v) {
		out = append(out, Criterion{Name: "children_allowed", Value: v, Match: func(r model.Record) bool {
			return strings.EqualFold(string(r.ChildrenAllowed), v)
		}})
	}
	return out
}

// parsePrice reads a price bound; a sentinel or a non-number disables it.
func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if model.IsSentinel(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseRooms reads "2", "4" or "3+". Exactly roomsOpenFrom, and any "N+",
// is a lower bound; other counts match exactly.
func parseRooms(s string) (n int, atLeast bool, ok bool) {
	s = strings.TrimSpace(s)
	if model.IsSentinel(s) {
		return 0, false, false
	}
	plus := strings.HasSuffix(s, "+")
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(s, "+")))
	if err != nil || n <= 0 {
		return 0, false, false
	}
	return n, plus || n == roomsOpenFrom, true
}
