package filter

import (
	"encoding/json"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/estate-search/internal/cache/keys"
	"github.com/mohammed-shakir/estate-search/internal/core/model"
	obs "github.com/mohammed-shakir/estate-search/internal/core/observability"
)

const defaultMemoSize = 256

// Memo caches evaluation results by listing fingerprint, filter state and
// order. It is safe for concurrent use.
type Memo struct {
	cache *lru.Cache[uint64, []model.Record]
}

func NewMemo(size int) (*Memo, error) {
	if size <= 0 {
		size = defaultMemoSize
	}
	c, err := lru.New[uint64, []model.Record](size)
	if err != nil {
		return nil, fmt.Errorf("memo lru: %w", err)
	}
	return &Memo{cache: c}, nil
}

// Evaluate returns the memoized result for (fingerprint, f, order) or
// computes and stores it. The returned slice belongs to the caller.
func (m *Memo) Evaluate(fingerprint uint64, records []model.Record, f model.FilterState, order Order) []model.Record {
	canonical, err := json.Marshal(f.Normalized())
	if err != nil {
		obs.IncMemoMiss()
		return Evaluate(records, f, order)
	}
	k := keys.MemoKey(fingerprint, canonical, string(order))
	if hit, ok := m.cache.Get(k); ok {
		obs.IncMemoHit()
		return slices.Clone(hit)
	}
	obs.IncMemoMiss()
	out := Evaluate(records, f, order)
	m.cache.Add(k, slices.Clone(out))
	return out
}

// Purge drops every memoized result.
func (m *Memo) Purge() { m.cache.Purge() }

func (m *Memo) Len() int { return m.cache.Len() }
