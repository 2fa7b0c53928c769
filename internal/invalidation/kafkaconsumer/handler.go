package kafkaconsumer

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/estate-search/internal/core/observability"
)

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

// groupHandler applies change events partition by partition. A failing
// message is retried in place; once retries run out the claim ends without
// marking it, so the group redelivers it after the rebalance.
type groupHandler struct {
	process messageProcessor
	retries int
	backoff time.Duration
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim context done: %w", ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.apply(ctx, msg); err != nil {
				return fmt.Errorf("apply change (topic=%s, part=%d, off=%d): %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}

func (h *groupHandler) apply(ctx context.Context, msg *sarama.ConsumerMessage) error {
	wait := h.backoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = h.process(ctx, msg); err == nil || attempt >= h.retries {
			return err
		}
		obs.IncKafkaError("retry")
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
		wait *= 2
	}
}
