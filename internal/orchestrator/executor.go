package orchestrator

import (
	"container/heap"
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState describes where a submitted job is in its life.
type JobState int

const (
	// JobQueued means the job is waiting for a worker.
	JobQueued JobState = iota
	// JobRunning means a worker picked the job up.
	JobRunning
	// JobDone means the job returned, successfully or not.
	JobDone
)

// String returns a human-readable representation of the job state.
func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobRunning:
		return "running"
	case JobDone:
		return "done"
	default:
		return "unknown"
	}
}

// Handle tracks a submitted background job.
type Handle struct {
	// ID is the unique job identifier.
	ID string
	// Name is the caller-supplied job name, used in logs.
	Name string

	mu    sync.Mutex
	state JobState
	err   error
	done  chan struct{}
}

// State returns the job's current state.
func (h *Handle) State() JobState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the job's error once it is done, nil before that.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the job finishes or the context is cancelled.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) setState(s JobState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.state = JobDone
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

// job is an internal queue entry.
type job struct {
	handle   *Handle
	fn       func(ctx context.Context) error
	priority int
	seq      uint64 // FIFO among equal priorities
}

// jobQueue is a max-heap on priority, FIFO within a priority.
type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }
func (q jobQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q jobQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *jobQueue) Push(x any)   { *q = append(*q, x.(*job)) }
func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// BackgroundExecutor runs submitted jobs on a bounded worker pool with
// priority ordering and panic recovery. The coordinator and the scheduler
// share one executor so background load has a single ceiling.
type BackgroundExecutor struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	queue   jobQueue
	seq     uint64
	stopped bool

	wg sync.WaitGroup
}

// NewBackgroundExecutor starts a pool with the given number of workers.
// Workers defaults to 4 when non-positive.
func NewBackgroundExecutor(workers int) *BackgroundExecutor {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &BackgroundExecutor{ctx: ctx, cancel: cancel}
	e.cond = sync.NewCond(&e.mu)

	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	return e
}

// Submit queues a job and returns its handle. Higher priority runs first;
// equal priorities run in submission order. Returns an error once the
// executor has been stopped.
func (e *BackgroundExecutor) Submit(name string, fn func(ctx context.Context) error, priority int) (*Handle, error) {
	if fn == nil {
		return nil, fmt.Errorf("submit %s: nil function", name)
	}

	h := &Handle{
		ID:   uuid.New().String()[:8],
		Name: name,
		done: make(chan struct{}),
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil, fmt.Errorf("submit %s: executor stopped", name)
	}
	e.seq++
	heap.Push(&e.queue, &job{handle: h, fn: fn, priority: priority, seq: e.seq})
	e.mu.Unlock()
	e.cond.Signal()

	return h, nil
}

// Pending returns the number of queued, not yet running jobs.
func (e *BackgroundExecutor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// Stop shuts the pool down. Queued jobs that have not started are
// dropped; running jobs see their context cancelled and are waited for.
func (e *BackgroundExecutor) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	for e.queue.Len() > 0 {
		j := heap.Pop(&e.queue).(*job)
		j.handle.finish(fmt.Errorf("job %s dropped: executor stopped", j.handle.Name))
	}
	e.mu.Unlock()

	e.cancel()
	e.cond.Broadcast()
	e.wg.Wait()
}

func (e *BackgroundExecutor) worker(id int) {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		for e.queue.Len() == 0 && !e.stopped {
			e.cond.Wait()
		}
		if e.stopped && e.queue.Len() == 0 {
			e.mu.Unlock()
			return
		}
		j := heap.Pop(&e.queue).(*job)
		e.mu.Unlock()

		e.run(id, j)
	}
}

// run executes one job with panic recovery, so a misbehaving agent
// execution cannot take the pool down.
func (e *BackgroundExecutor) run(workerID int, j *job) {
	j.handle.setState(JobRunning)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[executor] worker %d: job %s (%s) panicked: %v\n%s",
				workerID, j.handle.Name, j.handle.ID, r, debug.Stack())
			j.handle.finish(fmt.Errorf("job %s panicked: %v", j.handle.Name, r))
		}
	}()

	debugLog("worker %d picked up job %s (%s)", workerID, j.handle.Name, j.handle.ID)
	err := j.fn(e.ctx)
	if err != nil {
		log.Printf("[executor] worker %d: job %s (%s) failed after %s: %v",
			workerID, j.handle.Name, j.handle.ID, time.Since(start).Round(time.Millisecond), err)
	}
	j.handle.finish(err)
}
