// Package publisher sends property change events to Kafka without blocking
// the request path.
package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/estate-search/internal/core/observability"
	"github.com/mohammed-shakir/estate-search/internal/invalidation"
)

type Publisher struct {
	topic   string
	events  chan invalidation.Event
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	stopped chan struct{}
	once    sync.Once
}

func New(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("publisher: create async producer: %w", err)
	}
	return newWithProducer(prod, topic, queueSize, logger), nil
}

func newWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan invalidation.Event, queueSize),
		prod:    prod,
		logger:  logger,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("publisher: marshal error", "err", err)
				continue
			}
			// keyed by property so changes to one listing stay ordered
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(strconv.FormatInt(ev.PropertyID, 10)),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				obs.IncKafkaError("produce")
				p.logger.Error("publisher: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev and reports false when the queue is full.
func (p *Publisher) Publish(ev invalidation.Event) bool {
	select {
	case p.events <- ev:
		return true
	default:
		// queue full → drop (do NOT block request path)
		obs.IncKafkaError("queue_full")
		return false
	}
}

func (p *Publisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.events)
		<-p.stopped
		if cerr := p.prod.Close(); cerr != nil {
			err = fmt.Errorf("publisher: close producer: %w", cerr)
		}
	})
	return err
}
