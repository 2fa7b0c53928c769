// Package app builds the shared service graph used by the server and the
// operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/estate-search/internal/core/config"
	"github.com/mohammed-shakir/estate-search/internal/core/httpclient"
	"github.com/mohammed-shakir/estate-search/internal/core/router"
	"github.com/mohammed-shakir/estate-search/internal/filter"
	"github.com/mohammed-shakir/estate-search/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/estate-search/internal/invalidation/publisher"
	"github.com/mohammed-shakir/estate-search/internal/kv"
	mylog "github.com/mohammed-shakir/estate-search/internal/logger"
	h3mapper "github.com/mohammed-shakir/estate-search/internal/mapper/h3"
	"github.com/mohammed-shakir/estate-search/internal/records"
)

type App struct {
	Config    config.Config
	Logger    *slog.Logger
	KV        kv.KV
	Records   *records.Cached
	Validator *records.Validator
	Memo      *filter.Memo
	Publisher *publisher.Publisher

	closers []func() error
}

// OpenKV connects the configured key-value store: redis or memory.
func OpenKV(ctx context.Context, cfg config.Config) (kv.KV, func() error, error) {
	switch cfg.KVDriver {
	case "memory":
		return kv.NewMemory(), func() error { return nil }, nil
	case "redis", "":
		r, err := kv.NewRedis(ctx, cfg.RedisAddr,
			kv.WithDB(cfg.RedisDB),
			kv.WithPassword(cfg.RedisPass),
			kv.WithReadTimeout(cfg.KVOpTimeout),
			kv.WithWriteTimeout(cfg.KVOpTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis %s: %w", cfg.RedisAddr, err)
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown KV_DRIVER %q (want redis|memory)", cfg.KVDriver)
	}
}

// New opens the KV store, picks the record store and, when invalidation is
// enabled, starts the change publisher. publish=false skips Kafka.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, publish bool) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	store, closeKV, err := OpenKV(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.KV = store
	a.closers = append(a.closers, closeKV)

	hc := httpclient.NewOutbound(httpclient.Config{
		Timeout: cfg.HTTPTimeout,
		Retries: cfg.HTTPRetries,
	}, logger)
	base, err := records.Open(records.Config{
		Mode:     cfg.RecordStore,
		APIURL:   cfg.PropertyAPIURL,
		APIToken: cfg.PropertyAPIToken,
	}, store, hc, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open record store: %w", err)
	}

	a.Memo, err = filter.NewMemo(cfg.MemoSize)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("memo: %w", err)
	}
	a.Validator, err = records.NewValidator()
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("validator: %w", err)
	}

	opts := []records.CachedOption{
		records.WithPurger(a.Memo),
		records.WithSource(cfg.Invalidation.InstanceID),
	}
	if publish && cfg.Invalidation.Enabled {
		pub, err := publisher.New(kafkaconsumer.SplitCSV(cfg.Invalidation.Brokers), cfg.Invalidation.Topic, cfg.Invalidation.QueueSize, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Publisher = pub
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, records.WithPublisher(pub))
	}
	a.Records = records.NewCached(base, store, cfg.ListingTTL, logger, opts...)
	return a, nil
}

// Consumer builds the change consumer that keeps this instance's caches in
// step with writes made elsewhere.
func (a *App) Consumer() *kafkaconsumer.Consumer {
	inv := a.Config.Invalidation
	kc := kafkaconsumer.FromEnv()
	kc.Brokers = kafkaconsumer.SplitCSV(inv.Brokers)
	kc.Topic = inv.Topic
	kc.GroupID = inv.GroupID
	kc.DedupeSize = inv.DedupeSize
	kc.IgnoreSource = inv.InstanceID
	return kafkaconsumer.New(kc, a.Logger, mylog.Zerolog(a.Logger), a.KV, a.Memo)
}

func (a *App) RouterDeps() router.Deps {
	return router.Deps{
		Logger:      a.Logger,
		KV:          a.KV,
		Records:     a.Records,
		Validator:   a.Validator,
		Memo:        a.Memo,
		Mapper:      h3mapper.New(),
		H3Res:       a.Config.H3Res,
		KVOpTimeout: a.Config.KVOpTimeout,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
