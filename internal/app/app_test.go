package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/estate-search/internal/cache/keys"
	"github.com/mohammed-shakir/estate-search/internal/core/config"
	"github.com/mohammed-shakir/estate-search/internal/core/model"
	"github.com/mohammed-shakir/estate-search/internal/filter"
)

func baseConfig() config.Config {
	return config.Config{
		KVDriver:    "memory",
		KVOpTimeout: time.Second,
		RecordStore: "auto",
		ListingTTL:  time.Minute,
		MemoSize:    8,
		H3Res:       8,
	}
}

func TestNew_AutoPicksLocalWithoutAPI(t *testing.T) {
	a, err := New(context.Background(), baseConfig(), nil, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	if a.Records.Name() != "local" {
		t.Fatalf("store=%q want local", a.Records.Name())
	}
	if a.Publisher != nil {
		t.Fatalf("publisher must stay off when invalidation is disabled")
	}
	if a.RouterDeps().Mapper == nil {
		t.Fatalf("router deps missing mapper")
	}
}

func TestNew_WritesPurgeMemo(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, baseConfig(), nil, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	l, err := a.Records.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	_ = a.Memo.Evaluate(l.Fingerprint, l.Properties, model.DefaultFilterState(), filter.Newest)
	if a.Memo.Len() != 1 {
		t.Fatalf("memo len=%d want 1", a.Memo.Len())
	}
	if _, err := a.Records.Create(ctx, model.Record{Title: "x", Price: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Memo.Len() != 0 {
		t.Fatalf("create must purge the memo")
	}
}

func TestOpenKV_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.KVDriver = "redis"
	cfg.RedisAddr = mr.Addr()

	store, closeFn, err := OpenKV(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenKV: %v", err)
	}
	defer func() { _ = closeFn() }()

	b, _ := json.Marshal(model.DefaultFilterState())
	if err := store.Set(context.Background(), keys.FilterKey(keys.ScopeMap, ""), b, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("map_filters") {
		t.Fatalf("key not written to redis")
	}
}

func TestOpenKV_UnknownDriver(t *testing.T) {
	cfg := baseConfig()
	cfg.KVDriver = "etcd"
	if _, _, err := OpenKV(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestConsumer_UsesInstanceAsIgnoredSource(t *testing.T) {
	cfg := baseConfig()
	cfg.Invalidation.InstanceID = "node-a"
	cfg.Invalidation.Brokers = "k1:9092,k2:9092"
	cfg.Invalidation.Topic = "property-changes"
	a, err := New(context.Background(), cfg, nil, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()
	if a.Consumer() == nil {
		t.Fatalf("consumer not built")
	}
}
