package work

import (
	"time"
)

const defaultPoolSize = 100

// Worker bundles the goroutine pool with a scheduler that executes on it.
type Worker struct {
	*Loop
	Scheduler
}

// NewWorker starts a pool of size goroutines and a scheduler with the given tick.
func NewWorker(size int, tick time.Duration) (*Worker, error) {
	if size <= 0 {
		size = defaultPoolSize
	}
	loop := NewLoop(size)
	if err := loop.Start(); err != nil {
		return nil, err
	}
	return &Worker{
		Loop:      loop,
		Scheduler: NewScheduler(WithTick(tick), WithExecutor(loop)),
	}, nil
}

// Stop halts the timers before releasing the pool they post to.
func (w *Worker) Stop() {
	w.Scheduler.Stop()
	w.Loop.Stop()
}
