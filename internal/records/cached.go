package records

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/estate-search/internal/cache/keys"
	"github.com/mohammed-shakir/estate-search/internal/core/model"
	obs "github.com/mohammed-shakir/estate-search/internal/core/observability"
	"github.com/mohammed-shakir/estate-search/internal/invalidation"
	"github.com/mohammed-shakir/estate-search/internal/kv"
)

// ChangePublisher announces a record change to other instances.
type ChangePublisher interface {
	Publish(ev invalidation.Event) bool
}

// Purger drops derived state (e.g. the evaluation memo).
type Purger interface {
	Purge()
}

type CachedOption func(*Cached)

func WithPublisher(p ChangePublisher) CachedOption {
	return func(c *Cached) { c.pub = p }
}

func WithPurger(p Purger) CachedOption {
	return func(c *Cached) {
		if p != nil {
			c.purgers = append(c.purgers, p)
		}
	}
}

// WithSource tags published events with the instance name.
func WithSource(s string) CachedOption {
	return func(c *Cached) { c.source = s }
}

// Cached keeps the full listing in the KV store for ttl. Writes go to the
// wrapped store and then drop the cached listing.
type Cached struct {
	next    RecordStore
	kv      kv.KV
	ttl     time.Duration
	logger  *slog.Logger
	pub     ChangePublisher
	purgers []Purger
	source  string
	now     func() time.Time
}

var _ RecordStore = (*Cached)(nil)

func NewCached(next RecordStore, store kv.KV, ttl time.Duration, logger *slog.Logger, opts ...CachedOption) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cached{next: next, kv: store, ttl: ttl, logger: logger, source: "estate-search", now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) List(ctx context.Context) (Listing, error) {
	if c.ttl > 0 && c.kv != nil {
		b, ok, err := c.kv.Get(ctx, keys.ListingKey)
		switch {
		case err != nil:
			c.logger.WarnContext(ctx, "listing cache read failed", "err", err)
		case ok:
			l, derr := decodeListing(ctx, b, c.logger)
			if derr == nil {
				obs.IncListingCacheHit()
				return l, nil
			}
			c.logger.WarnContext(ctx, "listing cache entry malformed", "err", derr)
		}
		obs.IncListingCacheMiss()
	}

	l, err := c.next.List(ctx)
	obs.ObserveListingFetch(c.next.Name(), err)
	if err != nil {
		return Listing{}, err
	}

	if c.ttl > 0 && c.kv != nil {
		if b, err := encodeListing(l); err != nil {
			c.logger.WarnContext(ctx, "listing cache encode failed", "err", err)
		} else if err := c.kv.Set(ctx, keys.ListingKey, b, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "listing cache write failed", "err", err)
		}
	}
	return l, nil
}

func (c *Cached) Get(ctx context.Context, id int64) (model.Record, error) {
	return c.next.Get(ctx, id)
}

func (c *Cached) Create(ctx context.Context, rec model.Record) (int64, error) {
	id, err := c.next.Create(ctx, rec)
	if err != nil {
		return 0, err
	}
	c.changed(ctx, invalidation.OpInsert, id)
	return id, nil
}

func (c *Cached) Update(ctx context.Context, id int64, patch json.RawMessage) error {
	if err := c.next.Update(ctx, id, patch); err != nil {
		return err
	}
	c.changed(ctx, invalidation.OpUpdate, id)
	return nil
}

func (c *Cached) Remove(ctx context.Context, id int64) error {
	if err := c.next.Remove(ctx, id); err != nil {
		return err
	}
	c.changed(ctx, invalidation.OpDelete, id)
	return nil
}

// Invalidate drops the cached listing and every derived result.
func (c *Cached) Invalidate(ctx context.Context) {
	if c.kv != nil {
		if err := c.kv.Remove(ctx, keys.ListingKey); err != nil {
			c.logger.WarnContext(ctx, "listing cache delete failed", "err", err)
		}
	}
	for _, p := range c.purgers {
		p.Purge()
	}
}

func (c *Cached) changed(ctx context.Context, op string, id int64) {
	c.Invalidate(ctx)
	obs.ObserveInvalidation(op, nil)
	if c.pub == nil {
		return
	}
	ev := invalidation.Event{
		Version:    1,
		Op:         op,
		PropertyID: id,
		TS:         c.now().UTC(),
		Source:     c.source,
	}
	if !c.pub.Publish(ev) {
		c.logger.WarnContext(ctx, "property change event dropped", "op", op, "property_id", id)
	}
}
