// Package model defines the domain types shared across the service:
// property records, filter state and the map viewport.
package model

import "fmt"

// BBox is a map viewport in degrees. Corners are inclusive.
type BBox struct {
	MinLng, MinLat float64
	MaxLng, MaxLat float64
	SRID           string
}

// String renders the box in the bbox query format.
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

// Contains reports whether the point lies inside the box (edges included).
func (b BBox) Contains(lat, lng float64) bool {
	return lng >= b.MinLng && lng <= b.MaxLng && lat >= b.MinLat && lat <= b.MaxLat
}
