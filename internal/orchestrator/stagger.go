package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/ShayCichocki/mindcanvas/internal/clock"
)

// Step is one delayed action of a batch.
type Step struct {
	// Delay is measured from batch submission.
	Delay time.Duration
	Run   func()
}

// Scheduler runs batches of delayed steps. Steps of one batch run in order;
// batches are independent of each other.
type Scheduler interface {
	Schedule(steps []Step)
}

// Stagger is the default Scheduler. Each batch runs on its own goroutine,
// sleeping on the injected clock until each step's offset.
type Stagger struct {
	clock  clock.Clock
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Scheduler = (*Stagger)(nil)

// NewStagger creates a Stagger using c, or the wall clock if c is nil.
func NewStagger(c clock.Clock) *Stagger {
	if c == nil {
		c = clock.Real{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Stagger{clock: c, ctx: ctx, cancel: cancel}
}

// Schedule implements Scheduler. It returns immediately.
func (s *Stagger) Schedule(steps []Step) {
	if len(steps) == 0 {
		return
	}
	start := s.clock.Now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, step := range steps {
			if wait := step.Delay - s.clock.Now().Sub(start); wait > 0 {
				if err := s.clock.Sleep(s.ctx, wait); err != nil {
					return
				}
			}
			if s.ctx.Err() != nil {
				return
			}
			step.Run()
		}
	}()
}

// Wait blocks until every scheduled batch has finished or been stopped.
func (s *Stagger) Wait() {
	s.wg.Wait()
}

// Stop abandons steps that have not started yet and waits for running ones.
func (s *Stagger) Stop() {
	s.cancel()
	s.wg.Wait()
}
