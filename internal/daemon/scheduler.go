package daemon

import (
	"context"
	"time"

	"ludex/internal/config"
)

type scanFunc func(ctx context.Context, reason string)

// scheduler drives periodic scans and accepts manual triggers. A single
// goroutine serializes scan passes so a manual trigger never overlaps the
// interval tick.
type scheduler struct {
	interval time.Duration
	run      scanFunc
	trigger  chan string
	done     chan struct{}
}

func newScheduler(cfg *config.Config, run scanFunc) *scheduler {
	return &scheduler{
		interval: time.Duration(cfg.Workflow.ScanInterval) * time.Second,
		run:      run,
		trigger:  make(chan string, 1),
		done:     make(chan struct{}),
	}
}

func (s *scheduler) start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *scheduler) loop(ctx context.Context) {
	defer close(s.done)

	s.run(ctx, "startup")

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.run(ctx, "interval")
		case reason := <-s.trigger:
			s.run(ctx, reason)
		}
	}
}

// requestScan queues a scan without blocking. Returns false when a request
// is already pending.
func (s *scheduler) requestScan(reason string) bool {
	select {
	case s.trigger <- reason:
		return true
	default:
		return false
	}
}

// wait blocks until the scheduler goroutine has exited.
func (s *scheduler) wait() {
	<-s.done
}
