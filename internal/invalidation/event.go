// Package invalidation carries property change events between instances so
// each can drop its cached listing and memoized results.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

type Event struct {
	Version    int       `json:"version"`
	Op         string    `json:"op"`
	PropertyID int64     `json:"property_id"`
	TS         time.Time `json:"ts"`
	Source     string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("op must be insert|update|delete")
	}
	if e.PropertyID <= 0 {
		return fmt.Errorf("property_id must be positive")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if len(e.Source) > 128 || strings.ContainsAny(e.Source, "\n\r") {
		return fmt.Errorf("source is malformed")
	}
	return nil
}

// DedupeKey identifies one change of one property.
func (e Event) DedupeKey() string {
	return fmt.Sprintf("%d", e.PropertyID)
}
