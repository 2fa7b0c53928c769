package kafkaconsumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/estate-search/internal/cache/keys"
	"github.com/mohammed-shakir/estate-search/internal/invalidation"
	"github.com/mohammed-shakir/estate-search/internal/kv"
)

type fakeKV struct {
	kv.KV
	failFirst atomic.Bool
	mu        sync.Mutex
	seenDel   []string
}

func (f *fakeKV) Remove(_ context.Context, keys ...string) error {
	f.mu.Lock()
	f.seenDel = append(f.seenDel, keys...)
	f.mu.Unlock()
	if f.failFirst.Load() {
		f.failFirst.Store(false)
		return errors.New("boom")
	}
	return nil
}

func (f *fakeKV) dels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seenDel)
}

type fakePurger struct{ n atomic.Int32 }

func (f *fakePurger) Purge() { f.n.Add(1) }

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "property-changes" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

var baseTS = time.Date(2025, 10, 26, 12, 0, 0, 0, time.UTC)

func eventBytes(id int64, ts time.Time, source string) []byte {
	ev := invalidation.Event{Version: 1, Op: invalidation.OpUpdate, PropertyID: id, TS: ts, Source: source}
	b, _ := json.Marshal(ev)
	return b
}

func newConsumerForTest(fk *fakeKV, fp *fakePurger) *Consumer {
	cfg := Config{Brokers: []string{"x"}, Topic: "property-changes", GroupID: "g", IgnoreSource: "self"}
	return New(cfg, slog.Default(), nil, fk, fp)
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	fk := &fakeKV{}
	fp := &fakePurger{}
	c := newConsumerForTest(fk, fp)

	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Topic: "property-changes", Offset: 10, Value: eventBytes(1, baseTS, "other")}
	ch <- &sarama.ConsumerMessage{Topic: "property-changes", Offset: 11, Value: eventBytes(2, baseTS, "other")}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
	if fk.dels() != 2 || fk.seenDel[0] != keys.ListingKey {
		t.Fatalf("deleted keys=%v", fk.seenDel)
	}
	if fp.n.Load() != 2 {
		t.Fatalf("purges=%d want 2", fp.n.Load())
	}
}

func TestReplayedEventInvalidatesOnce(t *testing.T) {
	fk := &fakeKV{}
	fp := &fakePurger{}
	c := newConsumerForTest(fk, fp)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Offset: 1, Value: eventBytes(7, baseTS, "other")}
	for range 3 {
		if err := c.ProcessOne(ctx, msg); err != nil {
			t.Fatalf("ProcessOne: %v", err)
		}
	}
	older := &sarama.ConsumerMessage{Offset: 2, Value: eventBytes(7, baseTS.Add(-time.Minute), "other")}
	_ = c.ProcessOne(ctx, older)

	if fk.dels() != 1 || fp.n.Load() != 1 {
		t.Fatalf("dels=%d purges=%d want 1/1", fk.dels(), fp.n.Load())
	}

	newer := &sarama.ConsumerMessage{Offset: 3, Value: eventBytes(7, baseTS.Add(time.Second), "other")}
	_ = c.ProcessOne(ctx, newer)
	if fk.dels() != 2 {
		t.Fatalf("newer event must apply, dels=%d", fk.dels())
	}
}

func TestRetry_CommitOnceAfterSuccess(t *testing.T) {
	fk := &fakeKV{}
	fk.failFirst.Store(true)
	fp := &fakePurger{}
	c := newConsumerForTest(fk, fp)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: "property-changes", Offset: 5, Value: eventBytes(3, baseTS, "other")}
	if err := c.ProcessOne(ctx, msg); err == nil {
		t.Fatalf("expected error on first attempt")
	}
	if fp.n.Load() != 0 {
		t.Fatalf("failed attempt must not purge")
	}

	s := &sess{ctx: ctx}
	g := &groupHandler{process: c.ProcessOne}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 || fp.n.Load() != 1 {
		t.Fatalf("marked=%v purges=%d", s.marked, fp.n.Load())
	}
}

func TestPoisonAndSelfEventsAreSkipped(t *testing.T) {
	fk := &fakeKV{}
	fp := &fakePurger{}
	c := newConsumerForTest(fk, fp)
	ctx := context.Background()

	for _, v := range [][]byte{
		[]byte("{not json"),
		[]byte(`{"version":1,"op":"upsert","property_id":1,"ts":"2025-01-01T00:00:00Z"}`),
		eventBytes(9, baseTS, "self"),
	} {
		if err := c.ProcessOne(ctx, &sarama.ConsumerMessage{Value: v}); err != nil {
			t.Fatalf("skipped message must not error: %v", err)
		}
	}
	if fk.dels() != 0 || fp.n.Load() != 0 {
		t.Fatalf("skipped messages invalidated: dels=%d purges=%d", fk.dels(), fp.n.Load())
	}
}

func TestMultiPartition_Parallel(t *testing.T) {
	fk := &fakeKV{}
	c := newConsumerForTest(fk, &fakePurger{})
	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	p0 <- &sarama.ConsumerMessage{Partition: 0, Offset: 1, Value: eventBytes(1, baseTS, "a")}
	p0 <- &sarama.ConsumerMessage{Partition: 0, Offset: 2, Value: eventBytes(2, baseTS, "a")}
	p1 <- &sarama.ConsumerMessage{Partition: 1, Offset: 1, Value: eventBytes(3, baseTS, "a")}
	p1 <- &sarama.ConsumerMessage{Partition: 1, Offset: 2, Value: eventBytes(4, baseTS, "a")}
	close(p0)
	close(p1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 0, msgs: p0}) }()
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 1, msgs: p1}) }()
	wg.Wait()

	if len(s.marked) != 4 {
		t.Fatalf("expected 4 marks total; got %v", s.marked)
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" a:9092, ,b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("SplitCSV=%v", got)
	}
}

func TestHandler_RetriesInPlaceThenMarks(t *testing.T) {
	fk := &fakeKV{}
	fk.failFirst.Store(true)
	fp := &fakePurger{}
	c := newConsumerForTest(fk, fp)

	g := &groupHandler{process: c.ProcessOne, retries: 2, backoff: time.Millisecond}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- &sarama.ConsumerMessage{Topic: "property-changes", Offset: 8, Value: eventBytes(4, baseTS, "other")}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 1 || fk.dels() != 2 || fp.n.Load() != 1 {
		t.Fatalf("marked=%v dels=%d purges=%d", s.marked, fk.dels(), fp.n.Load())
	}
}

func TestHandler_GivesUpWithoutMarking(t *testing.T) {
	var calls atomic.Int32
	g := &groupHandler{
		process: func(context.Context, *sarama.ConsumerMessage) error {
			calls.Add(1)
			return errors.New("kv down")
		},
		retries: 2,
		backoff: time.Millisecond,
	}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- &sarama.ConsumerMessage{Offset: 1}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err == nil {
		t.Fatalf("expected error after retries")
	}
	if calls.Load() != 3 || len(s.marked) != 0 {
		t.Fatalf("calls=%d marked=%v", calls.Load(), s.marked)
	}
}

func TestConsumer_LogsThroughServiceLogger(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	c := New(Config{Topic: "property-changes"}, slog.Default(), &zl, &fakeKV{})

	if err := c.ProcessOne(context.Background(), &sarama.ConsumerMessage{Topic: "property-changes", Value: []byte("{")}); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("consumer changed the global level to %v", zerolog.GlobalLevel())
	}
	out := buf.String()
	if !strings.Contains(out, `"component":"kafka_consumer"`) || !strings.Contains(out, `"kind":"decode"`) {
		t.Fatalf("decode error not logged through the given logger: %q", out)
	}
}
