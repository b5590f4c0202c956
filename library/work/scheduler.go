package work

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RussellLuo/timingwheel"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/yola1107/pokerdice/library/xgo"
)

const (
	defaultTick       = 100 * time.Millisecond
	defaultWheelSize  = 128
	defaultStopWait   = 3 * time.Second
	maxIntervalJumps  = 10000
	rejectedTaskID    = int64(-1)
	cancelPollTimes   = 10
	cancelPollBackoff = 10 * time.Millisecond
)

// Scheduler registers delayed and periodic jobs.
type Scheduler interface {
	Len() int
	Once(delay time.Duration, f func()) int64
	Forever(interval time.Duration, f func()) int64
	Cancel(taskID int64)
	CancelAll()
	Stop()
}

// preciseEvery keeps periodic jobs on their grid instead of drifting by the run time.
type preciseEvery struct {
	interval time.Duration
	last     atomic.Value // time.Time
}

func (p *preciseEvery) Next(t time.Time) time.Time {
	last, _ := p.last.Load().(time.Time)
	if last.IsZero() {
		last = t
	}
	next := last.Add(p.interval)
	for steps := 0; !next.After(t); steps++ {
		if steps > maxIntervalJumps {
			log.Warnf("[scheduler] skipped too many steps: %d", steps)
			next = t.Add(p.interval)
			break
		}
		next = next.Add(p.interval)
	}
	p.last.Store(next)
	return next
}

type SchedulerOption func(*wheelScheduler)

func WithTick(d time.Duration) SchedulerOption {
	return func(s *wheelScheduler) {
		if d >= time.Millisecond {
			s.tick = d
		}
	}
}

func WithExecutor(exec Executor) SchedulerOption {
	return func(s *wheelScheduler) { s.executor = exec }
}

type wheelTask struct {
	timer     *timingwheel.Timer
	cancelled atomic.Bool
	executing atomic.Bool
	repeated  bool
}

type wheelScheduler struct {
	tick        time.Duration
	wheelSize   int64
	stopTimeout time.Duration
	executor    Executor
	tw          *timingwheel.TimingWheel
	tasks       sync.Map // map[int64]*wheelTask
	nextID      atomic.Int64
	shutdown    atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	once        sync.Once
}

// NewScheduler starts a timing wheel scheduler. Jobs run on the executor when one is
// given and on fresh goroutines otherwise.
func NewScheduler(opts ...SchedulerOption) Scheduler {
	s := &wheelScheduler{
		tick:        defaultTick,
		wheelSize:   defaultWheelSize,
		stopTimeout: defaultStopWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.tw = timingwheel.NewTimingWheel(s.tick, s.wheelSize)
	s.tw.Start()
	return s
}

func (s *wheelScheduler) Len() int {
	count := 0
	s.tasks.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (s *wheelScheduler) Once(delay time.Duration, f func()) int64 {
	return s.schedule(delay, false, f)
}

func (s *wheelScheduler) Forever(interval time.Duration, f func()) int64 {
	return s.schedule(interval, true, f)
}

func (s *wheelScheduler) Cancel(taskID int64) {
	val, ok := s.tasks.Load(taskID)
	if !ok {
		return
	}
	task := val.(*wheelTask)
	if !task.cancelled.CompareAndSwap(false, true) {
		return
	}
	if task.timer != nil {
		task.timer.Stop()
	}
	for i := 0; i < cancelPollTimes && task.executing.Load(); i++ {
		time.Sleep(cancelPollBackoff)
	}
	s.tasks.Delete(taskID)
}

func (s *wheelScheduler) CancelAll() {
	s.tasks.Range(func(key, _ any) bool {
		s.Cancel(key.(int64))
		return true
	})
}

// Stop rejects new jobs, cancels pending ones and waits for running ones.
func (s *wheelScheduler) Stop() {
	s.once.Do(func() {
		s.shutdown.Store(true)
		s.CancelAll()
		s.cancel()
		s.tw.Stop()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			log.Info("[scheduler] stopped gracefully")
		case <-time.After(s.stopTimeout):
			log.Warnf("[scheduler] shutdown timed out after %v", s.stopTimeout)
		}
	})
}

func (s *wheelScheduler) schedule(delay time.Duration, repeated bool, f func()) int64 {
	if s.shutdown.Load() {
		log.Warn("[scheduler] shut down; task rejected")
		return rejectedTaskID
	}

	taskID := s.nextID.Add(1)
	task := &wheelTask{repeated: repeated}
	// stored before arming so a fast first fire can find it
	s.tasks.Store(taskID, task)

	fire := func() {
		if task.cancelled.Load() || s.ctx.Err() != nil {
			return
		}
		// one run at a time per task; a late periodic tick is skipped
		if !task.executing.CompareAndSwap(false, true) {
			return
		}
		s.wg.Add(1)
		s.run(func() {
			defer func() {
				task.executing.Store(false)
				s.wg.Done()
				if !repeated {
					s.tasks.Delete(taskID)
				}
			}()
			if !task.cancelled.Load() {
				f()
			}
		})
	}

	if repeated {
		task.timer = s.tw.ScheduleFunc(&preciseEvery{interval: delay}, fire)
	} else {
		task.timer = s.tw.AfterFunc(delay, fire)
	}
	return taskID
}

func (s *wheelScheduler) run(job func()) {
	wrapped := func() {
		defer xgo.RecoverFromError(nil)
		job()
	}
	if s.executor != nil {
		s.executor.Post(wrapped)
		return
	}
	go wrapped()
}
