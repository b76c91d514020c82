package analytics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Scheduler runs the periodic learn -> correlate -> detect pass on a single
// goroutine, so a profile is never read mid-rebuild by a detector. The
// engine itself never self-schedules; cadence is this collaborator's call.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
	}
}

// Start launches the periodic pass. Returns an error when already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.engine.setSchedulerRunning(true)

	go s.run(ctx)
	return nil
}

// Stop cancels the periodic pass and waits for the current one to yield.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.engine.setSchedulerRunning(false)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

// runPass serializes a full engine pass. Detection is cooperatively
// cancellable between entities; a cancelled pass is logged and abandoned.
func (s *Scheduler) runPass(ctx context.Context) {
	start := time.Now()

	profiles := s.engine.LearnPatterns("")
	pairs := s.engine.LearnCorrelations()

	anomalies, err := s.engine.Detect(ctx, "")
	if err != nil {
		log.Printf("WARNING: detection pass cancelled after %v: %v", time.Since(start), err)
		return
	}

	if len(anomalies) > 0 {
		log.Printf("Detection pass: %d profiles, %d pairs, %d anomalies in %v",
			profiles, pairs, len(anomalies), time.Since(start))
	}
}
