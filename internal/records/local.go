package records

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mohammed-shakir/estate-search/internal/cache/keys"
	"github.com/mohammed-shakir/estate-search/internal/core/model"
	"github.com/mohammed-shakir/estate-search/internal/kv"
)

// Local is the demo store: the whole record set lives as one JSON array
// under a single key.
type Local struct {
	kv     kv.KV
	key    string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

var _ RecordStore = (*Local)(nil)

func NewLocal(store kv.KV, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{kv: store, key: keys.DemoRecordsKey, logger: logger, now: time.Now}
}

func (l *Local) Name() string { return "local" }

func (l *Local) load(ctx context.Context) ([]model.Record, error) {
	b, ok, err := l.kv.Get(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("read demo records: %w", err)
	}
	if !ok {
		return []model.Record{}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		l.logger.WarnContext(ctx, "demo records malformed, starting empty", "key", l.key, "err", err)
		return []model.Record{}, nil
	}
	return decodeRecords(ctx, raws, l.logger), nil
}

func (l *Local) store(ctx context.Context, rs []model.Record) error {
	b, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("encode demo records: %w", err)
	}
	if err := l.kv.Set(ctx, l.key, b, 0); err != nil {
		return fmt.Errorf("write demo records: %w", err)
	}
	return nil
}

func (l *Local) List(ctx context.Context) (Listing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rs, err := l.load(ctx)
	if err != nil {
		return Listing{}, err
	}
	return NewListing(rs), nil
}

func (l *Local) Get(ctx context.Context, id int64) (model.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rs, err := l.load(ctx)
	if err != nil {
		return model.Record{}, err
	}
	i := slices.IndexFunc(rs, func(r model.Record) bool { return r.ID == id })
	if i < 0 {
		return model.Record{}, fmt.Errorf("property %d: %w", id, ErrNotFound)
	}
	return rs[i], nil
}

// Create assigns the creation time in unix milliseconds as id, bumped past
// any id already taken.
func (l *Local) Create(ctx context.Context, rec model.Record) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rs, err := l.load(ctx)
	if err != nil {
		return 0, err
	}

	now := l.now().UTC()
	id := now.UnixMilli()
	for slices.ContainsFunc(rs, func(r model.Record) bool { return r.ID == id }) {
		id++
	}
	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = model.StatusActive
	}
	rs = append(rs, rec.Normalize())
	if err := l.store(ctx, rs); err != nil {
		return 0, err
	}
	return id, nil
}

func (l *Local) Update(ctx context.Context, id int64, patch json.RawMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rs, err := l.load(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(rs, func(r model.Record) bool { return r.ID == id })
	if i < 0 {
		return fmt.Errorf("property %d: %w", id, ErrNotFound)
	}
	next, err := mergePatch(rs[i], patch)
	if err != nil {
		return err
	}
	next.UpdatedAt = l.now().UTC()
	rs[i] = next
	return l.store(ctx, rs)
}

func (l *Local) Remove(ctx context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rs, err := l.load(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(rs, func(r model.Record) bool { return r.ID == id })
	if i < 0 {
		return fmt.Errorf("property %d: %w", id, ErrNotFound)
	}
	return l.store(ctx, slices.Delete(rs, i, i+1))
}
