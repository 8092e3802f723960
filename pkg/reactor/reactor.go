// Package reactor implements the priority-ordered task dispatcher that
// backs every asynchronous pull in the pipeline. Work items are ordered by
// a packed (output priority, frame number) key and handed to a bounded
// worker pool for execution. Ordering is applied once, when a runnable
// leaves the heap: a runnable that blocks (on a Notifier, a channel, an
// upstream pull) keeps its worker until it returns and is not put back on
// the heap.
package reactor

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"go.uber.org/zap"
)

// Priority packs an output's priority and a frame number into a single
// orderable key, matching the bit layout of the pipeline's frame-priority
// contract: lower values run first, and frame number is the tiebreaker
// within the same output priority.
type Priority uint64

const priorityMask = 0x0fff_ffff_ffff_ffff

// NewPriority builds a Priority from a coarse output priority and a frame
// number. outputPriority occupies the high bits so that runnables for a
// higher-priority output always sort before any runnable of a lower one,
// regardless of frame number.
func NewPriority(outputPriority uint8, frameNumber uint64) Priority {
	return Priority((uint64(outputPriority) << 56) | (frameNumber & priorityMask))
}

// ForFrame returns a copy of p retargeted at a different frame number,
// keeping the same output priority band.
func (p Priority) ForFrame(frameNumber uint64) Priority {
	return NewPriority(uint8(p>>56), frameNumber)
}

// FrameNumber extracts the frame number component of the key.
func (p Priority) FrameNumber() uint64 {
	return uint64(p) & priorityMask
}

// runnable is one entry in the reactor's min-heap: a unit of work plus the
// priority it was last scheduled under.
type runnable struct {
	priority Priority
	seq      uint64 // tiebreaker for equal priority, preserves submission order
	fn       func()
	index    int
}

type runnableHeap []*runnable

func (h runnableHeap) Len() int { return len(h) }
func (h runnableHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h runnableHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *runnableHeap) Push(x any) {
	r := x.(*runnable)
	r.index = len(*h)
	*h = append(*h, r)
}
func (h *runnableHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*h = old[:n-1]
	return r
}

// Reactor pops runnables from a min-heap, smallest Priority first, and
// submits each to a bounded worker pool. Priority decides the order among
// runnables that are in the heap at the same time; the dispatch loop pops
// without waiting for a free worker, and once a runnable is submitted the
// pool alone decides when it runs. A runnable runs to completion on one
// worker, and one that blocks while waiting keeps that worker.
type Reactor struct {
	mu       sync.Mutex
	heap     runnableHeap
	nextSeq  uint64
	pool     worker.DynamicWorkerPool
	wg       sync.WaitGroup
	dispatch chan struct{}
	closed   bool
	logger   *zap.Logger
}

// New creates a Reactor backed by a dynamic worker pool sized to numWorkers.
// queueDepth bounds the pool's internal task channel; idleTimeout controls
// how long an idle worker goroutine lingers before exiting (workers are
// respawned on demand so this only affects resource churn). logger may be
// nil, in which case a panicking runnable is still recovered but nothing
// is logged.
func New(numWorkers, queueDepth int, idleTimeout time.Duration, logger *zap.Logger) *Reactor {
	r := &Reactor{
		pool:     worker.NewDynamicWorkerPool(numWorkers, queueDepth, idleTimeout),
		dispatch: make(chan struct{}, 1),
		logger:   logger,
	}
	go r.loop()
	return r
}

// Spawn schedules fn to run once, ordered by priority among every other
// pending runnable. fn runs on the worker pool; if it needs to block on a
// Notifier or similar, it should do so by returning and being re-Spawned
// from the goroutine that wakes it, rather than parking a worker.
func (r *Reactor) Spawn(priority Priority, fn func()) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	rn := &runnable{priority: priority, seq: r.nextSeq, fn: fn}
	r.nextSeq++
	heap.Push(&r.heap, rn)
	r.wg.Add(1)
	r.mu.Unlock()

	select {
	case r.dispatch <- struct{}{}:
	default:
	}
}

// Close stops accepting new work and waits for in-flight tasks to drain.
func (r *Reactor) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	close(r.dispatch)
	r.wg.Wait()
}

func (r *Reactor) loop() {
	id := 0
	for range r.dispatch {
		for {
			r.mu.Lock()
			if r.heap.Len() == 0 {
				r.mu.Unlock()
				break
			}
			rn := heap.Pop(&r.heap).(*runnable)
			r.mu.Unlock()

			taskID := id
			id++
			fn := rn.fn
			r.pool.SubmitTask(worker.Task{
				ID: taskID,
				Do: func() (any, error) {
					defer r.wg.Done()
					defer r.recoverPanic(taskID)
					fn()
					return nil, nil
				},
			})
		}
	}
}

// recoverPanic stops a panicking runnable from taking down the whole
// process, logging it instead so one bad frame doesn't abort every other
// in-flight pull.
func (r *Reactor) recoverPanic(taskID int) {
	if rec := recover(); rec != nil && r.logger != nil {
		r.logger.Error("runnable recovered from panic", zap.Int("task_id", taskID), zap.Any("panic", rec))
	}
}

// Run blocks the calling goroutine until ctx is cancelled, draining the
// reactor's dispatch loop as work arrives. It exists for callers (such as
// the graph executor) that want to own the reactor's lifetime explicitly
// rather than firing Spawn calls from elsewhere and Close-ing on shutdown.
func (r *Reactor) Run(ctx context.Context) {
	<-ctx.Done()
	r.Close()
}
