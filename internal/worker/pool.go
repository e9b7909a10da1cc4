package worker

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"newshunter/internal/domain"
)

// retryPenalty is added to a task's priority on every failed attempt,
// pushing chronic failures behind fresh work.
const retryPenalty = 10

// CaptureFunc performs one capture attempt. A nil return retires the
// task; an error requeues it until the retry budget runs out.
type CaptureFunc func(ctx context.Context, link domain.CandidateLink) error

// DropFunc observes tasks that exhausted their retries.
type DropFunc func(link domain.CandidateLink, lastErr error)

type task struct {
	link     domain.CandidateLink
	priority int
	attempts int
	seq      uint64
}

// taskHeap orders by priority, then submission order. Lower priority
// values run first.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Options configures a Pool.
type Options struct {
	Workers     int
	MaxRetries  int           // retries after the first attempt
	TaskTimeout time.Duration // per-attempt deadline
	OnDrop      DropFunc
	Logger      *slog.Logger
}

// Pool retries failed captures with a fixed set of workers draining a
// priority queue. Submissions never block; workers stop when the run
// context is canceled.
type Pool struct {
	capture CaptureFunc
	onDrop  DropFunc
	workers int
	retries int
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	queue taskHeap
	seq   uint64
	wake  chan struct{}
}

// New builds a Pool around the given capture function.
func New(capture CaptureFunc, opts Options) *Pool {
	workers := opts.Workers
	if workers <= 0 {
		workers = 2
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	timeout := opts.TaskTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	onDrop := opts.OnDrop
	if onDrop == nil {
		onDrop = func(domain.CandidateLink, error) {}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		capture: capture,
		onDrop:  onDrop,
		workers: workers,
		retries: retries,
		timeout: timeout,
		logger:  logger.With("component", "worker"),
		wake:    make(chan struct{}, 1),
	}
}

// Submit queues a link for retry at the given priority. Lower runs
// sooner.
func (p *Pool) Submit(link domain.CandidateLink, priority int) {
	p.mu.Lock()
	p.seq++
	heap.Push(&p.queue, &task{link: link, priority: priority, seq: p.seq})
	p.mu.Unlock()
	p.signal()
}

// Pending reports the number of queued tasks.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Run starts the workers and blocks until ctx is canceled and every
// worker has returned. Queued tasks left at shutdown are discarded.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	for {
		t, ok := p.next(ctx)
		if !ok {
			return
		}
		p.attempt(ctx, id, t)
	}
}

func (p *Pool) attempt(ctx context.Context, id int, t *task) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.capture(attemptCtx, t.link)
	cancel()

	if err == nil {
		p.logger.Info("retry succeeded", "worker", id, "url", t.link.URL, "attempt", t.attempts+1)
		return
	}
	if ctx.Err() != nil {
		return
	}

	t.attempts++
	if t.attempts > p.retries {
		p.logger.Warn("retries exhausted, dropping",
			"worker", id, "url", t.link.URL, "attempts", t.attempts, "error", err)
		p.onDrop(t.link, err)
		return
	}

	t.priority += retryPenalty
	p.logger.Info("retry failed, requeueing",
		"worker", id, "url", t.link.URL, "attempt", t.attempts, "priority", t.priority, "error", err)
	p.mu.Lock()
	heap.Push(&p.queue, t)
	p.mu.Unlock()
	p.signal()
}

func (p *Pool) next(ctx context.Context) (*task, bool) {
	for {
		p.mu.Lock()
		if p.queue.Len() > 0 {
			t := heap.Pop(&p.queue).(*task)
			more := p.queue.Len() > 0
			p.mu.Unlock()
			if more {
				p.signal()
			}
			return t, true
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-p.wake:
		}
	}
}

func (p *Pool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
