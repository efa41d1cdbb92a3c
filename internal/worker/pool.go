package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edupulse/notify/internal/cache"
	"github.com/edupulse/notify/internal/domain"
	"github.com/edupulse/notify/internal/health"
	"github.com/edupulse/notify/internal/provider"
	"github.com/edupulse/notify/internal/queue"
	"github.com/edupulse/notify/internal/ratelimit"
	"github.com/edupulse/notify/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnSent   func(channel domain.Channel, latency time.Duration)
	OnFailed func(channel domain.Channel)
}

// Deps bundles everything a worker needs. All workers are identical; the
// channel distinction lives in the notification and the sender registry.
type Deps struct {
	Queue           *queue.PriorityQueue
	Repo            repository.NotificationRepository
	Registry        *provider.Registry
	Limiter         *ratelimit.ChannelLimiters
	Monitor         *health.Monitor
	OptOuts         cache.Store
	AttemptBackoff  []time.Duration
	DispatchTimeout time.Duration
	Hooks           MetricHooks
}

// Pool manages the lifecycle of all workers.
// All workers share the same priority queue — the queue's double-select
// pattern handles priority ordering internally.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates count identical workers.
func NewPool(count int, deps Deps, logger *zap.Logger) *Pool {
	onSent := deps.Hooks.OnSent
	if onSent == nil {
		onSent = func(domain.Channel, time.Duration) {}
	}
	onFailed := deps.Hooks.OnFailed
	if onFailed == nil {
		onFailed = func(domain.Channel) {}
	}

	workers := make([]*Worker, count)
	for i := range workers {
		workers[i] = &Worker{
			id:              i,
			q:               deps.Queue,
			repo:            deps.Repo,
			registry:        deps.Registry,
			limiter:         deps.Limiter,
			monitor:         deps.Monitor,
			optouts:         deps.OptOuts,
			attemptBackoff:  deps.AttemptBackoff,
			dispatchTimeout: deps.DispatchTimeout,
			logger:          logger.With(zap.Int("worker_id", i)),
			onSent:          onSent,
			onFailed:        onFailed,
		}
	}
	return &Pool{workers: workers}
}

// NewWorker constructs a single worker outside a pool, for tests.
func NewWorker(id int, deps Deps, logger *zap.Logger) *Worker {
	p := NewPool(1, deps, logger)
	w := p.workers[0]
	w.id = id
	return w
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight messages finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
