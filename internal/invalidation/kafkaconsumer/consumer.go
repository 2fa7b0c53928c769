package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/estate-search/internal/cache/keys"
	obs "github.com/mohammed-shakir/estate-search/internal/core/observability"
	"github.com/mohammed-shakir/estate-search/internal/invalidation"
	"github.com/mohammed-shakir/estate-search/internal/kv"
	mylog "github.com/mohammed-shakir/estate-search/internal/logger"
)

// Purger drops derived in-process state such as the evaluation memo.
type Purger interface {
	Purge()
}

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	kv      kv.KV
	purgers []Purger
	dedupe  *versionDedupe
	zlog    *zerolog.Logger
}

// New builds a consumer. zl is the service's zerolog logger; it is only
// tagged with the consumer component, never reconfigured.
func New(cfg Config, logger *slog.Logger, zl *zerolog.Logger, store kv.KV, purgers ...Purger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:     cfg,
		logger:  logger,
		kv:      store,
		purgers: purgers,
		dedupe:  newVersionDedupe(cfg.DedupeSize),
		zlog:    mylog.FromContext(mylog.WithComponent(context.Background(), "kafka_consumer"), zl),
	}
}

// consumes property change events from kafka until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	if c.kv == nil {
		return errors.New("kafkaconsumer: missing kv store")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne, retries: c.cfg.ApplyRetries, backoff: c.cfg.ApplyBackoff}

	c.logger.Info("kafka change consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka change consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				if ctx.Err() != nil {
					continue
				}
				c.logger.Error("consumer error", "err", err)
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne applies a single change event. Undecodable or invalid events
// are logged and skipped; a failed cache delete is returned so the message
// is redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaError("decode")
		mylog.FromContext(ctx, c.zlog).Error().
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncKafkaError("invalid")
		c.logger.Warn("skipping invalid change event", "offset", msg.Offset, "err", err)
		return nil
	}
	if c.cfg.IgnoreSource != "" && ev.Source == c.cfg.IgnoreSource {
		return nil
	}

	key, version := ev.DedupeKey(), ev.TS.UnixNano()
	if c.dedupe.stale(key, version) {
		c.logger.Debug("duplicate change event (skipping)", "property_id", ev.PropertyID, "op", ev.Op)
		return nil
	}

	if err := c.kv.Remove(ctx, keys.ListingKey); err != nil {
		obs.IncKafkaError("kv_del")
		obs.ObserveInvalidation(ev.Op, err)

		mylog.FromContext(ctx, c.zlog).Error().
			Str("kind", "kv_del").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("property_id", ev.PropertyID).
			Msg("kafka error")

		return fmt.Errorf("kv del: %w", err)
	}
	for _, p := range c.purgers {
		p.Purge()
	}
	c.dedupe.applied(key, version)

	obs.ObserveInvalidation(ev.Op, nil)
	obs.ObserveUpstreamLatency("kafka_apply", time.Since(start).Seconds())
	c.logger.Debug("listing invalidated", "property_id", ev.PropertyID, "op", ev.Op, "source", ev.Source)

	return nil
}
