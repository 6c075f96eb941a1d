// Package scheduler runs deferred re-checks without tying them to the
// request that scheduled them. Tasks carry only the identifiers they need
// and re-fetch authoritative state when they fire, so a task observing that
// the world already moved on is a cheap no-op rather than a race. There is
// no cancel: the re-check-before-acting discipline makes one unnecessary.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Scheduler struct {
	log    *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule runs task after delay on the scheduler's own context. A task that
// panics is logged and absorbed; it never takes the process down.
func (s *Scheduler) Schedule(delay time.Duration, name string, task func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		defer func() {
			if r := recover(); r != nil {
				s.log.WithFields(logrus.Fields{
					"task":  name,
					"panic": r,
				}).Error("scheduled task panicked")
			}
		}()
		task(s.ctx)
	}()
}

// Shutdown cancels pending tasks and waits for running ones to finish.
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.wg.Wait()
}
