package cleanup

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs the sweep on a fixed interval.
type Scheduler struct {
	mu       sync.RWMutex
	sweeper  *Sweeper
	opts     Options
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(sweeper *Sweeper, interval time.Duration, opts Options) *Scheduler {
	opts.DryRun = false
	return &Scheduler{sweeper: sweeper, opts: opts, interval: interval}
}

// Start begins the loop. A zero interval disables it.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick() {
	if _, err := s.sweeper.Run(s.opts); err != nil {
		s.sweeper.logger.Error("scheduled cleanup", "error", err)
	}
}
