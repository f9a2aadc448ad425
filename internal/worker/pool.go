// Package worker delivers alerts asynchronously with bounded concurrency.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"deadlinemaster/internal/domain"
	"deadlinemaster/internal/metrics"
	"deadlinemaster/internal/notify"
	"deadlinemaster/internal/store"
)

var (
	ErrQueueFull = errors.New("alert delivery queue is full")
	ErrStopped   = errors.New("alert delivery pool is stopped")
)

type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	History   store.AlertLog
	Metrics   *metrics.Metrics
}

// Pool hands every alert to each channel once. Failed deliveries are
// recorded and never retried.
type Pool struct {
	channels []notify.Channel
	history  store.AlertLog
	metrics  *metrics.Metrics
	timeout  time.Duration

	queue chan domain.Alert
	sem   chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(channels []notify.Channel, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Pool{
		channels: channels,
		history:  opts.History,
		metrics:  opts.Metrics,
		timeout:  opts.Timeout,
		queue:    make(chan domain.Alert, opts.QueueSize),
		sem:      make(chan struct{}, opts.Workers),
		stop:     make(chan struct{}),
	}
}

// Deliver enqueues a without blocking.
func (p *Pool) Deliver(_ context.Context, a domain.Alert) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.metrics.Dropped()
		return ErrStopped
	}
	select {
	case p.queue <- a:
		p.metrics.QueueDepth(len(p.queue))
		return nil
	default:
		p.metrics.Dropped()
		return ErrQueueFull
	}
}

// Start launches the loop that drains the queue until ctx is done or
// Shutdown is called. After Shutdown the loop delivers whatever is still
// queued before exiting.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	log.Info().Int("workers", cap(p.sem)).Int("channels", len(p.channels)).Msg("delivery pool started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			for {
				select {
				case a := <-p.queue:
					p.dispatch(ctx, a)
				default:
					return
				}
			}
		case a := <-p.queue:
			p.dispatch(ctx, a)
		}
	}
}

func (p *Pool) dispatch(ctx context.Context, a domain.Alert) {
	p.metrics.QueueDepth(len(p.queue))
	p.sem <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		p.deliverAll(context.WithoutCancel(ctx), a)
	}()
}

func (p *Pool) deliverAll(ctx context.Context, a domain.Alert) {
	for _, ch := range p.channels {
		c, cancel := context.WithTimeout(ctx, p.timeout)
		start := time.Now()
		err := ch.Deliver(c, a.Heading, a.Body())
		cancel()
		p.metrics.Delivery(ch.Name(), err, time.Since(start))

		rec := domain.AlertRecord{
			ID:           "alt_" + uuid.NewString(),
			AssignmentID: a.AssignmentID,
			Threshold:    a.Threshold,
			Heading:      a.Heading,
			Message:      a.Message,
			Channel:      ch.Name(),
			Delivered:    err == nil,
			FiredAt:      a.FiredAt,
			DeliveredAt:  time.Now(),
		}
		if err != nil {
			rec.Error = err.Error()
			ev := log.Error()
			if notify.Soft(err) {
				ev = log.Warn()
			}
			ev.Err(err).
				Str("channel", ch.Name()).
				Str("assignment_id", a.AssignmentID).
				Str("threshold", a.Threshold).
				Msg("alert not delivered")
		}
		if p.history != nil {
			if herr := p.history.Record(ctx, rec); herr != nil {
				log.Error().Err(herr).Str("channel", ch.Name()).Msg("record alert history")
			}
		}
	}
}

// Shutdown stops intake and waits for queued and in-flight deliveries.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.stop)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("delivery pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
