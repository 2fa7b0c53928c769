package records

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mohammed-shakir/estate-search/internal/core/model"
)

func TestParseListing_Shapes(t *testing.T) {
	ctx := context.Background()
	for name, body := range map[string]string{
		"array":    `[{"id":1,"price":10},{"id":2,"price":"20"},"junk"]`,
		"listing":  `{"properties":[{"id":1,"price":10},{"id":2,"price":"20"}],"count":2}`,
		"envelope": `{"ok":true,"data":{"properties":[{"id":1},{"id":2}],"count":2}}`,
	} {
		l, err := ParseListing(ctx, []byte(body), nil)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		ids := make([]int64, 0, l.Count)
		for _, r := range l.Properties {
			ids = append(ids, r.ID)
		}
		if diff := cmp.Diff([]int64{1, 2}, ids); diff != "" {
			t.Fatalf("%s ids (-want +got):\n%s", name, diff)
		}
		if l.Fingerprint == 0 {
			t.Fatalf("%s: fingerprint not set", name)
		}
	}
	if _, err := ParseListing(ctx, []byte(`nope`), nil); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestFingerprint_ChangesWithPrice(t *testing.T) {
	a := sampleRecord(1)
	b := sampleRecord(1)
	b.Price++
	if NewListing([]model.Record{a}).Fingerprint != NewListing([]model.Record{a}).Fingerprint {
		t.Fatalf("fingerprint must be deterministic")
	}
	if NewListing([]model.Record{a}).Fingerprint == NewListing([]model.Record{b}).Fingerprint {
		t.Fatalf("repricing must change the fingerprint")
	}
}
