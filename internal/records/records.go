// Package records reads and writes property listings. A RecordStore is
// picked once at startup: the remote property API or the local demo store.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/estate-search/internal/core/model"
)

var ErrNotFound = errors.New("property not found")

// APIError is a failed call to the property API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("property api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("property api: HTTP %d: %s", e.Status, e.Message)
}

type RecordStore interface {
	Name() string
	List(ctx context.Context) (Listing, error)
	Get(ctx context.Context, id int64) (model.Record, error)
	Create(ctx context.Context, rec model.Record) (int64, error)
	// Update overlays the JSON fields present in patch onto the record.
	Update(ctx context.Context, id int64, patch json.RawMessage) error
	Remove(ctx context.Context, id int64) error
}

// Listing is one fetch of the full record set.
type Listing struct {
	Properties  []model.Record
	Count       int
	Fingerprint uint64
}

func NewListing(rs []model.Record) Listing {
	if rs == nil {
		rs = []model.Record{}
	}
	return Listing{Properties: rs, Count: len(rs), Fingerprint: fingerprint(rs)}
}

// fingerprint changes whenever a record is added, removed, repriced or updated.
func fingerprint(rs []model.Record) uint64 {
	d := xxhash.New()
	var buf [24]byte
	for _, r := range rs {
		putUint64(buf[0:8], uint64(r.ID))
		putUint64(buf[8:16], uint64(r.UpdatedAt.UnixNano()))
		putUint64(buf[16:24], math.Float64bits(r.Price))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func putUint64(b []byte, v uint64) {
	for i := range 8 {
		b[i] = byte(v >> (8 * i))
	}
}

// Active keeps the public listings.
func Active(rs []model.Record) []model.Record {
	out := make([]model.Record, 0, len(rs))
	for _, r := range rs {
		if r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

type listingWire struct {
	Properties []json.RawMessage `json:"properties"`
	Count      int               `json:"count"`
}

// decodeRecords decodes one record at a time and drops the ones that are not
// JSON objects.
func decodeRecords(ctx context.Context, raws []json.RawMessage, logger *slog.Logger) []model.Record {
	out := make([]model.Record, 0, len(raws))
	for i, raw := range raws {
		var r model.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			if logger != nil {
				logger.WarnContext(ctx, "skipping malformed record", "index", i, "err", err)
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func encodeListing(l Listing) ([]byte, error) {
	b, err := json.Marshal(struct {
		Properties []model.Record `json:"properties"`
		Count      int            `json:"count"`
	}{l.Properties, l.Count})
	if err != nil {
		return nil, fmt.Errorf("encode listing: %w", err)
	}
	return b, nil
}

func decodeListing(ctx context.Context, b []byte, logger *slog.Logger) (Listing, error) {
	var w listingWire
	if err := json.Unmarshal(b, &w); err != nil {
		return Listing{}, fmt.Errorf("decode listing: %w", err)
	}
	return NewListing(decodeRecords(ctx, w.Properties, logger)), nil
}

// ParseListing accepts a bare JSON array of records or an object with a
// "properties" array, as exported from the admin listing.
func ParseListing(ctx context.Context, b []byte, logger *slog.Logger) (Listing, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(b, &raws); err != nil {
			return Listing{}, fmt.Errorf("decode listing: %w", err)
		}
		return NewListing(decodeRecords(ctx, raws, logger)), nil
	}
	var env struct {
		Data *listingWire `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err == nil && env.Data != nil {
		return NewListing(decodeRecords(ctx, env.Data.Properties, logger)), nil
	}
	return decodeListing(ctx, b, logger)
}

// mergePatch overlays the top-level fields of patch onto rec. id and
// created_at are kept.
func mergePatch(rec model.Record, patch json.RawMessage) (model.Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		return rec, fmt.Errorf("decode patch: %w", err)
	}
	cur, err := json.Marshal(rec)
	if err != nil {
		return rec, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(cur, &merged); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	for k, v := range fields {
		if k == "id" || k == "created_at" {
			continue
		}
		merged[k] = v
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return rec, fmt.Errorf("encode patch: %w", err)
	}
	var out model.Record
	if err := json.Unmarshal(b, &out); err != nil {
		return rec, err
	}
	out.ID = rec.ID
	out.CreatedAt = rec.CreatedAt
	return out, nil
}
