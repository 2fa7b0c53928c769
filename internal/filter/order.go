package filter

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/mohammed-shakir/estate-search/internal/core/model"
)

type Order string

const (
	Newest    Order = "newest"
	Oldest    Order = "oldest"
	PriceAsc  Order = "price_asc"
	PriceDesc Order = "price_desc"
)

// ParseOrder maps unknown or empty values to Newest.
func ParseOrder(s string) Order {
	switch o := Order(strings.ToLower(strings.TrimSpace(s))); o {
	case Oldest, PriceAsc, PriceDesc:
		return o
	default:
		return Newest
	}
}

func byNewest(a, b model.Record) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// comparePrice sorts NaN prices last in either direction.
func comparePrice(a, b model.Record, desc bool) int {
	an, bn := math.IsNaN(a.Price), math.IsNaN(b.Price)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	if desc {
		return cmp.Compare(b.Price, a.Price)
	}
	return cmp.Compare(a.Price, b.Price)
}

func sortRecords(rs []model.Record, o Order) {
	switch o {
	case Oldest:
		slices.SortStableFunc(rs, func(a, b model.Record) int { return byNewest(b, a) })
	case PriceAsc, PriceDesc:
		desc := o == PriceDesc
		slices.SortStableFunc(rs, func(a, b model.Record) int {
			if c := comparePrice(a, b, desc); c != 0 {
				return c
			}
			return byNewest(a, b)
		})
	default:
		slices.SortStableFunc(rs, byNewest)
	}
}
