package worker

import (
	"context"

	"kaizenbot/internal/telegram"
)

// Handler processes one update to completion. The bot handler satisfies it.
type Handler interface {
	HandleUpdate(ctx context.Context, upd telegram.Update)
}

type Worker struct {
	pool       *jobChannelPool
	dispatcher *Dispatcher
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool, dispatcher *Dispatcher) *Worker {
	return &Worker{
		pool:       pool,
		dispatcher: dispatcher,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			if job.Type == Stop {
				w.pool.retire(w.jobChannel)
				return
			}
			w.dispatcher.handler.HandleUpdate(w.dispatcher.baseCtx, job.Update)
			// Completion first, so the dispatcher can unblock this user's
			// next job, then hand the channel back to the pool.
			w.dispatcher.completed <- job.Key
			w.pool.Release(w.jobChannel)
		}
	}()
}
