package tcl

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler calls a flush function on a fixed interval, independent of enqueue activity.
// It is Idle until the first Start, then Running until Stop. Ticks never overlap: a slow
// flush delays the next tick rather than running beside it.
type Scheduler struct {
	interval time.Duration
	flush    func(ctx context.Context)

	started        int32
	wg             sync.WaitGroup
	shutdownSignal chan struct{}
	once           sync.Once
}

// NewScheduler creates an idle Scheduler.
func NewScheduler(interval time.Duration, flush func(ctx context.Context)) *Scheduler {
	return &Scheduler{
		interval:       interval,
		flush:          flush,
		shutdownSignal: make(chan struct{}),
	}
}

// Start moves the scheduler to Running. Calls after the first are no-ops.
func (s *Scheduler) Start() {

	if atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		s.wg.Add(1)
		go s.loop()
	}
}

// IsRunning reports whether Start has been called and Stop has not.
func (s *Scheduler) IsRunning() bool {

	select {
	case <-s.shutdownSignal:
		return false
	default:
		return atomic.LoadInt32(&s.started) == 1
	}
}

// Stop ends the tick loop, cancels an in-flight flush and waits for it to return.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.shutdownSignal)
		s.wg.Wait()
	})
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-s.shutdownSignal:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownSignal:
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}
