package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/teamflow/notification-worker/internal/dispatch"
	"github.com/teamflow/notification-worker/internal/domain"
	"github.com/teamflow/notification-worker/internal/worker"
)

// fakeAcknowledger records ack/nack decisions per delivery tag.
type fakeAcknowledger struct {
	mu     sync.Mutex
	acked  map[uint64]bool
	nacked map[uint64]bool
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{
		acked:  make(map[uint64]bool),
		nacked: make(map[uint64]bool),
	}
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked[tag] = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked[tag] = true
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) counts() (acked, nacked int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acked), len(f.nacked)
}

type fakeDLQ struct {
	mu     sync.Mutex
	parked []amqp.Delivery
	err    error
}

func (f *fakeDLQ) DeadLetter(d amqp.Delivery) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parked = append(f.parked, d)
	return nil
}

type funcHandler struct {
	kind domain.JobKind
	fn   func(ctx context.Context, payload []byte) error
}

func (h *funcHandler) Kind() domain.JobKind { return h.kind }
func (h *funcHandler) Handle(ctx context.Context, payload []byte) error {
	return h.fn(ctx, payload)
}

// counterHooks tallies hook invocations for assertions.
type counterHooks struct {
	mu        sync.Mutex
	completed int
	failed    int
	dropped   int
}

func (c *counterHooks) hooks() worker.Hooks {
	return worker.Hooks{
		OnCompleted: func(domain.JobKind, time.Duration) {
			c.mu.Lock()
			c.completed++
			c.mu.Unlock()
		},
		OnFailed: func(domain.JobKind) {
			c.mu.Lock()
			c.failed++
			c.mu.Unlock()
		},
		OnDropped: func(domain.JobKind) {
			c.mu.Lock()
			c.dropped++
			c.mu.Unlock()
		},
	}
}

func runPool(t *testing.T, d *dispatch.Dispatcher, dlq worker.DeadLetterer, hooks worker.Hooks, deliveries []amqp.Delivery) {
	t.Helper()
	ch := make(chan amqp.Delivery, len(deliveries))
	for _, del := range deliveries {
		ch <- del
	}
	close(ch)

	p := worker.NewPool(4, 5, d, dlq, zap.NewNop(), hooks)
	p.Start(context.Background(), ch)
	p.Wait()
}

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body)}
}

func TestPool_AcksSuccessfulJobs(t *testing.T) {
	d := dispatch.New()
	d.Register(&funcHandler{kind: "ok", fn: func(context.Context, []byte) error { return nil }})

	ack := newFakeAcknowledger()
	var hooks counterHooks
	runPool(t, d, &fakeDLQ{}, hooks.hooks(), []amqp.Delivery{
		delivery(ack, 1, `{"kind":"ok"}`),
		delivery(ack, 2, `{"kind":"ok"}`),
	})

	acked, nacked := ack.counts()
	if acked != 2 || nacked != 0 {
		t.Fatalf("expected 2 acks and 0 nacks, got %d/%d", acked, nacked)
	}
	if hooks.completed != 2 {
		t.Fatalf("expected 2 completion hooks, got %d", hooks.completed)
	}
}

// One failing job must not affect the others in flight.
func TestPool_FailureIsolation(t *testing.T) {
	d := dispatch.New()
	d.Register(&funcHandler{kind: "ok", fn: func(context.Context, []byte) error { return nil }})
	d.Register(&funcHandler{kind: "fail", fn: func(context.Context, []byte) error {
		return errors.New("db unreachable")
	}})

	ack := newFakeAcknowledger()
	var hooks counterHooks
	deliveries := []amqp.Delivery{
		delivery(ack, 1, `{"kind":"ok"}`),
		delivery(ack, 2, `{"kind":"ok"}`),
		delivery(ack, 3, `{"kind":"fail"}`),
		delivery(ack, 4, `{"kind":"ok"}`),
		delivery(ack, 5, `{"kind":"ok"}`),
	}
	runPool(t, d, &fakeDLQ{}, hooks.hooks(), deliveries)

	acked, nacked := ack.counts()
	if acked != 4 {
		t.Fatalf("expected the 4 healthy jobs to be acked, got %d", acked)
	}
	if nacked != 1 {
		t.Fatalf("expected the failing job to be rejected, got %d nacks", nacked)
	}
	if hooks.completed != 4 || hooks.failed != 1 {
		t.Fatalf("expected hooks 4 completed / 1 failed, got %d/%d",
			hooks.completed, hooks.failed)
	}
}

func TestPool_PanicIsContained(t *testing.T) {
	d := dispatch.New()
	d.Register(&funcHandler{kind: "ok", fn: func(context.Context, []byte) error { return nil }})
	d.Register(&funcHandler{kind: "boom", fn: func(context.Context, []byte) error {
		panic("handler bug")
	}})

	ack := newFakeAcknowledger()
	var hooks counterHooks
	runPool(t, d, &fakeDLQ{}, hooks.hooks(), []amqp.Delivery{
		delivery(ack, 1, `{"kind":"boom"}`),
		delivery(ack, 2, `{"kind":"ok"}`),
	})

	acked, nacked := ack.counts()
	if acked != 1 || nacked != 1 {
		t.Fatalf("expected panic job rejected and healthy job acked, got acks=%d nacks=%d",
			acked, nacked)
	}
}

func TestPool_NonRetryableIsAckedAndDropped(t *testing.T) {
	d := dispatch.New()
	d.Register(&funcHandler{kind: "create", fn: func(context.Context, []byte) error {
		return domain.NonRetryable(domain.ErrMissingUserID)
	}})

	ack := newFakeAcknowledger()
	var hooks counterHooks
	runPool(t, d, &fakeDLQ{}, hooks.hooks(), []amqp.Delivery{
		delivery(ack, 1, `{"kind":"create"}`),
		delivery(ack, 2, `{not json`),
	})

	acked, nacked := ack.counts()
	if acked != 2 || nacked != 0 {
		t.Fatalf("expected both poison jobs acked, got acks=%d nacks=%d", acked, nacked)
	}
	if hooks.dropped != 2 {
		t.Fatalf("expected 2 drop hooks, got %d", hooks.dropped)
	}
}

func TestPool_UnknownKindIsAcked(t *testing.T) {
	d := dispatch.New()

	ack := newFakeAcknowledger()
	var hooks counterHooks
	runPool(t, d, &fakeDLQ{}, hooks.hooks(), []amqp.Delivery{
		delivery(ack, 1, `{"kind":"emailDigest"}`),
	})

	acked, nacked := ack.counts()
	if acked != 1 || nacked != 0 {
		t.Fatalf("expected unroutable job acked, got acks=%d nacks=%d", acked, nacked)
	}
	if hooks.dropped != 1 {
		t.Fatalf("expected unroutable job counted as dropped, got dropped=%d", hooks.dropped)
	}
	if hooks.completed != 0 {
		t.Fatalf("expected no completion hook for a dropped job, got completed=%d", hooks.completed)
	}
}

func TestPool_ExhaustedAttemptsAreParked(t *testing.T) {
	d := dispatch.New()
	d.Register(&funcHandler{kind: "fail", fn: func(context.Context, []byte) error {
		return errors.New("still failing")
	}})

	ack := newFakeAcknowledger()
	dlq := &fakeDLQ{}
	var hooks counterHooks

	// The broker has already routed this job through retry 4 times;
	// the 5th attempt hits the configured maximum.
	del := delivery(ack, 1, `{"kind":"fail"}`)
	del.Headers = amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(4)}}}
	runPool(t, d, dlq, hooks.hooks(), []amqp.Delivery{del})

	if len(dlq.parked) != 1 {
		t.Fatalf("expected the job to be parked, got %d", len(dlq.parked))
	}
	acked, nacked := ack.counts()
	if acked != 1 || nacked != 0 {
		t.Fatalf("expected parked job acked off the queue, got acks=%d nacks=%d", acked, nacked)
	}
	if hooks.failed != 1 {
		t.Fatalf("expected failure hook, got %d", hooks.failed)
	}
}

func TestPool_DeadLetterFailureFallsBackToRetry(t *testing.T) {
	d := dispatch.New()
	d.Register(&funcHandler{kind: "fail", fn: func(context.Context, []byte) error {
		return errors.New("still failing")
	}})

	ack := newFakeAcknowledger()
	dlq := &fakeDLQ{err: errors.New("publish failed")}
	var hooks counterHooks

	del := delivery(ack, 1, `{"kind":"fail"}`)
	del.Headers = amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(10)}}}
	runPool(t, d, dlq, hooks.hooks(), []amqp.Delivery{del})

	// Parking failed, so the job goes back through the retry loop
	// instead of being lost.
	acked, nacked := ack.counts()
	if acked != 0 || nacked != 1 {
		t.Fatalf("expected nack fallback, got acks=%d nacks=%d", acked, nacked)
	}
}

// Concurrency smoke test: many jobs across executors, all accounted for.
func TestPool_ProcessesConcurrently(t *testing.T) {
	var running, peak int
	var mu sync.Mutex

	d := dispatch.New()
	d.Register(&funcHandler{kind: "ok", fn: func(context.Context, []byte) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}})

	ack := newFakeAcknowledger()
	var deliveries []amqp.Delivery
	for i := uint64(1); i <= 20; i++ {
		deliveries = append(deliveries, delivery(ack, i, `{"kind":"ok"}`))
	}
	var hooks counterHooks
	runPool(t, d, &fakeDLQ{}, hooks.hooks(), deliveries)

	acked, _ := ack.counts()
	if acked != 20 {
		t.Fatalf("expected all 20 jobs acked, got %d", acked)
	}
	if peak < 2 {
		t.Fatalf("expected concurrent execution, peak was %d", peak)
	}
}
