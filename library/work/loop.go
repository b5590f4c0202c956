package work

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/panjf2000/ants/v2"

	"github.com/yola1107/pokerdice/library/xgo"
)

// LoopStatus is a snapshot of the pool.
type LoopStatus struct {
	Capacity int
	Running  int
	Free     int
}

// Executor runs jobs somewhere other than the caller's goroutine.
type Executor interface {
	Post(job func())
}

// Loop is a bounded goroutine pool backed by ants.
type Loop struct {
	mu          sync.RWMutex
	pool        *ants.Pool
	size        int
	fallback    func(context.Context, func())
	poolOptions []ants.Option
}

// NewLoop prepares a pool of size goroutines. Jobs the pool rejects run on a
// fresh goroutine.
func NewLoop(size int) *Loop {
	return &Loop{
		size: size,
		fallback: func(ctx context.Context, fn func()) {
			go safeRun(ctx, fn)
		},
		poolOptions: []ants.Option{
			ants.WithExpiryDuration(60 * time.Second),
		},
	}
}

func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pool != nil {
		log.Warn("loop already started")
		return nil
	}
	pool, err := ants.NewPool(l.size, l.poolOptions...)
	if err != nil {
		return fmt.Errorf("pool init failed: %w", err)
	}
	l.pool = pool
	log.Infof("loop start... [size:%d]", l.size)
	return nil
}

func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pool != nil {
		p := l.pool
		l.pool = nil
		log.Infof("loop stopping [running:%d]", p.Running())
		p.Release()
	}
}

func (l *Loop) Status() LoopStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.pool == nil {
		return LoopStatus{}
	}
	capacity, running := l.pool.Cap(), l.pool.Running()
	return LoopStatus{
		Capacity: capacity,
		Running:  running,
		Free:     max(capacity-running, 0),
	}
}

func (l *Loop) Post(job func()) {
	l.PostCtx(context.Background(), job)
}

// PostCtx drops the job when ctx is already done.
func (l *Loop) PostCtx(ctx context.Context, job func()) {
	if ctx.Err() != nil {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.pool == nil || l.pool.IsClosed() {
		l.triggerFallback(ctx, job, "loop not started or closed")
		return
	}
	if err := l.pool.Submit(func() { safeRun(ctx, job) }); err != nil {
		l.triggerFallback(ctx, job, err.Error())
	}
}

func (l *Loop) triggerFallback(ctx context.Context, fn func(), reason string) {
	log.Warnf("loop fallback. reason=%s", reason)
	l.fallback(ctx, fn)
}

func safeRun(ctx context.Context, fn func()) {
	defer xgo.RecoverFromError(nil)
	if ctx.Err() == nil {
		fn()
	}
}
