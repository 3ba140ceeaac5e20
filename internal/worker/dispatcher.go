// Package worker runs inbound updates on an elastic worker pool while
// keeping every chat strictly serialized: at most one update per chat is in
// flight, and a chat's updates run in arrival order. Chats take turns in LRU
// order so one busy chat cannot starve the rest.
package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"kaizenbot/internal/telegram"
)

// ErrQueueFull is returned by Submit when the inbound buffer is saturated.
var ErrQueueFull = errors.New("worker: update queue full")

type userQueue struct {
	jobs     []Job
	enqueued bool // present in the ready list
	running  bool // a job for this chat is in flight
}

type Dispatcher struct {
	pool      *jobChannelPool
	jobQueue  chan Job
	completed chan int64
	handler   Handler
	baseCtx   context.Context

	mu     sync.Mutex
	queues map[int64]*userQueue // pending jobs per chat
	ready  *list.List           // LRU of chat ids with a dispatchable job
}

func NewDispatcher(ctx context.Context, handler Handler, minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration) *Dispatcher {
	if minWorkers <= 0 {
		minWorkers = 2
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	// Every in-flight worker may signal completion while the run loop is
	// parked in pool.acquire, so the buffer must hold one slot per worker.
	completedSize := queueSize
	if maxWorkers > completedSize {
		completedSize = maxWorkers
	}
	d := &Dispatcher{
		jobQueue:  make(chan Job, queueSize),
		completed: make(chan int64, completedSize),
		handler:   handler,
		baseCtx:   ctx,
		queues:    make(map[int64]*userQueue),
		ready:     list.New(),
	}
	d.pool = newJobChannelPool(minWorkers, maxWorkers, idleTimeout, d)

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit hands an update to the dispatcher without blocking the poll loop.
func (d *Dispatcher) Submit(upd telegram.Update) error {
	select {
	case d.jobQueue <- NewJob(upd):
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	for {
		// drain everything currently dispatchable
		for d.dispatchOne() {
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		case key := <-d.completed:
			d.finishJob(key)
		case <-d.baseCtx.Done():
			return
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Key]
	if q == nil {
		q = &userQueue{}
		d.queues[job.Key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued || q.running {
		// already waiting its turn, or blocked behind an in-flight job
		return
	}
	q.enqueued = true
	d.ready.PushBack(job.Key)
}

// finishJob clears the in-flight mark and, if more jobs queued up meanwhile,
// puts the chat at the back of the ready list.
func (d *Dispatcher) finishJob(key int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[key]
	if q == nil {
		return
	}
	q.running = false
	if len(q.jobs) == 0 {
		delete(d.queues, key)
		return
	}
	q.enqueued = true
	d.ready.PushBack(key)
}

// dispatchOne pops the front chat of the LRU and hands its oldest job to a
// worker. The chat leaves the ready list until that job completes, which is
// what keeps each chat single file.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(int64)
	q := d.queues[key]

	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.running = true
	q.enqueued = false
	d.ready.Remove(elem)
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	debugLog("[dispatcher] assign update for chat %d", key)
	workerChan <- job
	return true
}
