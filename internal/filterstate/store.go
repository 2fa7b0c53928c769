// Package filterstate keeps one view's filter selection in memory and a
// durable copy of it in a key-value store.
package filterstate

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/estate-search/internal/core/model"
	obs "github.com/mohammed-shakir/estate-search/internal/core/observability"
	"github.com/mohammed-shakir/estate-search/internal/kv"
)

const defaultOpTimeout = 500 * time.Millisecond

type Option func(*Store)

// WithOpTimeout bounds every KV call made by the store.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// Store never surfaces persistence errors: reads fall back to defaults and
// failed writes are logged and skipped.
type Store struct {
	kv        kv.KV
	key       string
	logger    *slog.Logger
	opTimeout time.Duration

	mu  sync.Mutex
	cur model.FilterState
}

func New(store kv.KV, key string, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		kv:        store,
		key:       key,
		logger:    logger,
		opTimeout: defaultOpTimeout,
		cur:       model.DefaultFilterState(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Key() string { return s.key }

// Current returns the in-memory state.
func (s *Store) Current() model.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.cur)
}

// Load restores the durable copy. Missing or malformed data yields the
// default state.
func (s *Store) Load(ctx context.Context) model.FilterState {
	st := s.read(ctx)
	s.mu.Lock()
	s.cur = st
	s.mu.Unlock()
	return clone(st)
}

func (s *Store) read(ctx context.Context) model.FilterState {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	raw, ok, err := s.kv.Get(ctx, s.key)
	switch {
	case err != nil:
		obs.IncFilterState("load", "error")
		s.logger.WarnContext(ctx, "filter state read failed, using defaults", "key", s.key, "err", err)
		return model.DefaultFilterState()
	case !ok:
		obs.IncFilterState("load", "default")
		return model.DefaultFilterState()
	}

	var st model.FilterState
	if err := json.Unmarshal(raw, &st); err != nil {
		obs.IncFilterState("load", "error")
		s.logger.WarnContext(ctx, "filter state malformed, using defaults", "key", s.key, "err", err)
		return model.DefaultFilterState()
	}
	obs.IncFilterState("load", "ok")
	return st
}

// Save makes st current and then overwrites the durable copy with it.
func (s *Store) Save(ctx context.Context, st model.FilterState) {
	st = clone(st.Normalized())
	s.mu.Lock()
	s.cur = st
	s.mu.Unlock()
	s.write(ctx, st)
}

func (s *Store) write(ctx context.Context, st model.FilterState) {
	b, err := json.Marshal(st)
	if err != nil {
		obs.IncFilterState("save", "error")
		s.logger.ErrorContext(ctx, "filter state encode failed, save skipped", "key", s.key, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.kv.Set(ctx, s.key, b, 0); err != nil {
		obs.IncFilterState("save", "error")
		s.logger.WarnContext(ctx, "filter state write failed, save skipped", "key", s.key, "err", err)
		return
	}
	obs.IncFilterState("save", "ok")
}

// Update applies fn to a copy of the current state and saves the result.
func (s *Store) Update(ctx context.Context, fn func(*model.FilterState)) model.FilterState {
	next := s.Current()
	fn(&next)
	s.Save(ctx, next)
	return s.Current()
}

// Reset restores the defaults and deletes the durable copy.
func (s *Store) Reset(ctx context.Context) model.FilterState {
	def := model.DefaultFilterState()
	s.mu.Lock()
	s.cur = def
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.kv.Remove(ctx, s.key); err != nil {
		obs.IncFilterState("reset", "error")
		s.logger.WarnContext(ctx, "filter state delete failed", "key", s.key, "err", err)
	} else {
		obs.IncFilterState("reset", "ok")
	}
	return clone(def)
}

func clone(f model.FilterState) model.FilterState {
	f.Districts = append([]string{}, f.Districts...)
	f.Amenities = append([]string{}, f.Amenities...)
	return f
}
