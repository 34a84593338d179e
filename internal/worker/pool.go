package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/teamflow/notification-worker/internal/dispatch"
	"github.com/teamflow/notification-worker/internal/domain"
)

// Hooks carries the observation callbacks injected by main.
// They are for logging/metrics only and never alter delivery semantics.
type Hooks struct {
	OnCompleted func(kind domain.JobKind, latency time.Duration)
	OnFailed    func(kind domain.JobKind)
	OnDropped   func(kind domain.JobKind)
}

// DeadLetterer parks a delivery that exhausted its attempts.
// The broker connection implements it.
type DeadLetterer interface {
	DeadLetter(d amqp.Delivery) error
}

// Pool runs a bounded set of executors over one delivery stream. Each
// executor dispatches a job, then translates the outcome into a broker
// decision: ack on success, ack-and-drop on non-retryable errors, reject
// into the retry topology otherwise. One job's failure never reaches the
// others — errors and panics are contained per delivery.
type Pool struct {
	concurrency int
	maxAttempts int
	dispatcher  *dispatch.Dispatcher
	dlq         DeadLetterer
	logger      *zap.Logger
	hooks       Hooks
	wg          sync.WaitGroup
}

// NewPool constructs a pool of `concurrency` executors. Hook fields are
// optional (nil = no-op).
func NewPool(
	concurrency int,
	maxAttempts int,
	dispatcher *dispatch.Dispatcher,
	dlq DeadLetterer,
	logger *zap.Logger,
	hooks Hooks,
) *Pool {
	if hooks.OnCompleted == nil {
		hooks.OnCompleted = func(domain.JobKind, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.JobKind) {}
	}
	if hooks.OnDropped == nil {
		hooks.OnDropped = func(domain.JobKind) {}
	}
	return &Pool{
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		dispatcher:  dispatcher,
		dlq:         dlq,
		logger:      logger,
		hooks:       hooks,
	}
}

// Start launches the executors. They exit when the delivery stream closes;
// cancelling ctx stops intake at the broker, not jobs already in a handler:
// handlers run on an uncancellable child context so no job is aborted
// mid-flight during shutdown.
func (p *Pool) Start(ctx context.Context, deliveries <-chan amqp.Delivery) {
	jobCtx := context.WithoutCancel(ctx)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			log := p.logger.With(zap.Int("worker_id", id))
			log.Info("worker started")
			for d := range deliveries {
				p.process(jobCtx, log, d)
			}
			log.Info("worker stopping")
		}(i)
	}
}

// Wait blocks until every executor has returned. Call after the delivery
// stream is closed to ensure in-flight jobs finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) process(ctx context.Context, log *zap.Logger, d amqp.Delivery) {
	start := time.Now()
	if d.CorrelationId != "" {
		log = log.With(zap.String("correlation_id", d.CorrelationId))
	}

	kind, err := p.safeDispatch(ctx, d.Body)

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("ack failed", zap.Error(ackErr))
			return
		}
		p.hooks.OnCompleted(kind, time.Since(start))

	case errors.Is(err, domain.ErrNonRetryable):
		// Redelivery cannot fix this job; drop it instead of poisoning
		// the retry queue.
		log.Warn("dropping non-retryable job",
			zap.String("kind", string(kind)), zap.Error(err))
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("ack failed", zap.Error(ackErr))
		}
		p.hooks.OnDropped(kind)

	default:
		p.reject(log, d, kind, err)
		p.hooks.OnFailed(kind)
	}
}

// reject routes a transiently-failed job back through the broker's retry
// topology, or parks it once its attempts are exhausted.
func (p *Pool) reject(log *zap.Logger, d amqp.Delivery, kind domain.JobKind, err error) {
	attempts := deathCount(d) + 1
	if attempts < p.maxAttempts {
		log.Warn("job failed, routing to retry",
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempts),
			zap.Error(err),
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("nack failed", zap.Error(nackErr))
		}
		return
	}

	log.Error("job exhausted delivery attempts, parking",
		zap.String("kind", string(kind)),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	if dlErr := p.dlq.DeadLetter(d); dlErr != nil {
		log.Error("dead-letter publish failed", zap.Error(dlErr))
		// Keep the job alive in the retry loop rather than lose it.
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("nack failed", zap.Error(nackErr))
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("ack failed", zap.Error(ackErr))
	}
}

// safeDispatch contains handler panics so a single bad job cannot take
// down the executor goroutine.
func (p *Pool) safeDispatch(ctx context.Context, body []byte) (kind domain.JobKind, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.dispatcher.Dispatch(ctx, body)
}

// deathCount reads how many times the broker has already dead-lettered
// this delivery (one entry per queue in the x-death header; the count on
// the first entry tracks trips through the retry loop).
func deathCount(d amqp.Delivery) int {
	deaths, ok := d.Headers["x-death"].([]interface{})
	if !ok || len(deaths) == 0 {
		return 0
	}
	entry, ok := deaths[0].(amqp.Table)
	if !ok {
		return 0
	}
	count, ok := entry["count"].(int64)
	if !ok {
		return 0
	}
	return int(count)
}
