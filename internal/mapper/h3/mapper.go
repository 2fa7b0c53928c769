package h3mapper

import (
	"fmt"
	"slices"
	"strings"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/estate-search/internal/core/model"
)

const (
	MinRes = 0
	MaxRes = 15
)

// Cluster is one H3 cell holding at least one record.
type Cluster struct {
	Cell  string  `json:"cell"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Count int     `json:"count"`
	IDs   []int64 `json:"ids"`
}

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// Cluster groups records that carry coordinates into cells at res.
// Clusters are sorted by cell id and ids within a cluster ascend.
func (m *Mapper) Cluster(records []model.Record, res int) ([]Cluster, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}

	byCell := make(map[h3.Cell]*Cluster)
	for _, r := range records {
		if !r.HasCoords() || !validLatLng(r.Latitude, r.Longitude) {
			continue
		}
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: r.Latitude, Lng: r.Longitude}, res)
		if err != nil {
			return nil, fmt.Errorf("h3 cell for record %d: %w", r.ID, err)
		}
		c, ok := byCell[cell]
		if !ok {
			center, err := h3.CellToLatLng(cell)
			if err != nil {
				return nil, fmt.Errorf("h3 centre for %s: %w", cell, err)
			}
			c = &Cluster{Cell: cell.String(), Lat: center.Lat, Lng: center.Lng}
			byCell[cell] = c
		}
		c.Count++
		c.IDs = append(c.IDs, r.ID)
	}

	out := make([]Cluster, 0, len(byCell))
	for _, c := range byCell {
		slices.Sort(c.IDs)
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b Cluster) int { return strings.Compare(a.Cell, b.Cell) })
	return out, nil
}

// InBBox keeps the records whose coordinates fall inside bb, in input order.
func InBBox(records []model.Record, bb model.BBox) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if r.HasCoords() && bb.Contains(r.Latitude, r.Longitude) {
			out = append(out, r)
		}
	}
	return out
}

// ParseBBox reads "minLng,minLat,maxLng,maxLat" in EPSG:4326.
func ParseBBox(s string) (model.BBox, error) {
	var bb model.BBox
	if _, err := fmt.Sscanf(strings.ReplaceAll(s, " ", ""), "%g,%g,%g,%g", &bb.MinLng, &bb.MinLat, &bb.MaxLng, &bb.MaxLat); err != nil {
		return model.BBox{}, fmt.Errorf("parse bbox %q: %w", s, err)
	}
	if bb.MinLng > bb.MaxLng || bb.MinLat > bb.MaxLat {
		return model.BBox{}, fmt.Errorf("bbox %q: min corner above max corner", s)
	}
	if !validLatLng(bb.MinLat, bb.MinLng) || !validLatLng(bb.MaxLat, bb.MaxLng) {
		return model.BBox{}, fmt.Errorf("bbox %q: out of range", s)
	}
	bb.SRID = "EPSG:4326"
	return bb, nil
}

func validateRes(res int) error {
	if res < MinRes || res > MaxRes {
		return fmt.Errorf("invalid H3 resolution %d (want %d..%d)", res, MinRes, MaxRes)
	}
	return nil
}

func validLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
