package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/pkg/logger"
	"github.com/okian/scoreline/pkg/metrics"
)

// Update abstracts what workers read off the queue.
type Update = model.FeedUpdate

// Writer persists a round's result set. UpdatedAt carries the time the
// update was received so writers can drop stale snapshots.
type Writer interface {
	PutResults(ctx context.Context, rs model.ResultSet) error
}

// Settler re-tallies a round after its results changed.
type Settler interface {
	Settle(ctx context.Context, rs model.ResultSet) (model.Settlement, error)
}

// Queue defines how workers receive updates.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Update
}

// Settled is passed to the WithOnSettled callback.
type Settled struct {
	EventID    string
	Settlement model.Settlement
}

// Worker processes updates until its queue closes.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	writer  Writer
	settler Settler
	name    string

	onSettled func(Settled)
	busy      *atomic.Int64

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, writer Writer, settler Settler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   q,
		writer:  writer,
		settler: settler,
		name:    "worker",
		busy:    new(atomic.Int64),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run consumes updates until the queue channel closes or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	updates := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := w.process(ctx, u); err != nil {
				w.logger.Error(ctx, "settlement failed",
					logger.String("event_id", u.EventID),
					logger.Int("round", u.Results.Round),
					logger.Error(err))
			}
		}
	}
}

// Shutdown waits for Run to return or ctx to expire.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, u Update) error { //nolint:gocritic // hugeParam: value semantics for channel receive
	w.busy.Add(1)
	start := time.Now()
	defer func() {
		w.busy.Add(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	rs := u.Results
	if rs.UpdatedAt.IsZero() {
		rs.UpdatedAt = u.ReceivedAt
	}
	if err := w.writer.PutResults(ctx, rs); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("storing round %d: %w", rs.Round, err)
	}

	s, err := w.settler.Settle(ctx, rs)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "settle_error")
		return fmt.Errorf("settling round %d: %w", rs.Round, err)
	}

	metrics.RecordSettlement(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateMatchesCompleted(strconv.Itoa(s.Round), s.Completed)
	w.logger.Info(ctx, "matchday settled",
		logger.String("event_id", u.EventID),
		logger.Int("round", s.Round),
		logger.Int("completed", s.Completed),
		logger.Int("fixtures", s.Fixtures),
		logger.Int("participants", s.Participants),
		logger.String("leader", s.Leader),
		logger.Int("leader_points", s.LeaderPoints))

	if w.onSettled != nil {
		w.onSettled(Settled{EventID: u.EventID, Settlement: s})
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	busy    *atomic.Int64

	cancel  context.CancelFunc
	started atomic.Bool
	stop    chan struct{}
	once    sync.Once

	logger logger.Logger
}

// NewPool creates workerCount workers. Options are applied to every worker.
func NewPool(workerCount int, q Queue, writer Writer, settler Settler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		busy:    new(atomic.Int64),
		stop:    make(chan struct{}),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, writer, settler, wopts...)
		w.busy = p.busy
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Busy returns how many workers are settling an update right now.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Start launches every worker. Workers stop when ctx is canceled, when the
// queue is drained after Shutdown, or when Shutdown gives up waiting.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
	go p.reportUtilisation(runCtx)
}

func (p *Pool) reportUtilisation(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			busy := p.Busy()
			metrics.UpdateWorkerActiveCount(busy)
			metrics.UpdateWorkerIdleCount(len(p.workers) - busy)
		}
	}
}

// Shutdown closes the queue when it supports closing, lets workers drain
// what is pending and waits for them until ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.stop) })

	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.started.Load() {
		return nil
	}

	var timedOut int
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, ctx.Err())
	}
	return nil
}
