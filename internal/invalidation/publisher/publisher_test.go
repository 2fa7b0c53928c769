package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/mohammed-shakir/estate-search/internal/invalidation"
)

func TestPublisher_SendsKeyedJSON(t *testing.T) {
	cfg := mocks.NewTestConfig()
	prod := mocks.NewAsyncProducer(t, cfg)

	var got invalidation.Event
	var key string
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		kb, _ := m.Key.Encode()
		key = string(kb)
		vb, _ := m.Value.Encode()
		return json.Unmarshal(vb, &got)
	})

	p := newWithProducer(prod, "property-changes", 4, nil)
	ev := invalidation.Event{Version: 1, Op: invalidation.OpUpdate, PropertyID: 99, TS: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	if !p.Publish(ev) {
		t.Fatalf("publish refused with an empty queue")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if key != "99" || got.PropertyID != 99 || got.Op != invalidation.OpUpdate {
		t.Fatalf("key=%q event=%+v", key, got)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestPublisher_DropsWhenQueueFull(t *testing.T) {
	p := &Publisher{events: make(chan invalidation.Event, 1)}
	ev := invalidation.Event{Version: 1, Op: invalidation.OpInsert, PropertyID: 1, TS: time.Now()}
	if !p.Publish(ev) {
		t.Fatalf("first publish must be queued")
	}
	if p.Publish(ev) {
		t.Fatalf("second publish must be dropped")
	}
}
