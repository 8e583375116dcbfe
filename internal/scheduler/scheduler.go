// Package scheduler implements the Adaptive Scheduler (spec.md §4.D):
// a self-pacing loop that calls a Task once at a time, choosing the
// next delay from the Task's own feedback rather than a fixed tick.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the scheduler's lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Delay is the generic feedback signal a Task returns: how long the
// scheduler should wait before invoking it again.
type Delay int

const (
	Long Delay = iota
	Immediate
	ErrorBackoff
)

// Task is one unit of adaptively-scheduled work, e.g. one
// orchestrator.RunOnce call translated into this package's Delay enum.
type Task func(ctx context.Context) (Delay, error)

// ErrAlreadyRunning is returned by Start when the scheduler is not Idle.
var ErrAlreadyRunning = errAlreadyRunning{}

type errAlreadyRunning struct{}

func (errAlreadyRunning) Error() string { return "scheduler: already running" }

// Scheduler runs one Task at a time, looping with a delay chosen from
// the Task's last return value.
type Scheduler struct {
	task  Task
	long  time.Duration
	imm   time.Duration
	errD  time.Duration
	log   *logrus.Logger

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}

	// Observability.
	iterations uint64
	lastErr    error
	lastDelay  Delay
}

// New builds a Scheduler. long/immediate/errorRetry are the concrete
// durations backing the Long/Immediate/ErrorBackoff signals.
func New(task Task, long, immediate, errorRetry time.Duration, log *logrus.Logger) *Scheduler {
	return &Scheduler{task: task, long: long, imm: immediate, errD: errorRetry, log: log, state: Idle}
}

// Start begins the adaptive loop in a background goroutine. It
// returns ErrAlreadyRunning if the scheduler is not Idle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = Running
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

// Stop requests the loop exit after its current iteration and blocks
// until it does, or ctx is done first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return nil
	}
	s.state = Stopping
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats is a snapshot of the scheduler's observability fields.
type Stats struct {
	State      State
	Iterations uint64
	LastDelay  Delay
	LastErr    error
}

// Stats returns an observability snapshot.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{State: s.state, Iterations: s.iterations, LastDelay: s.lastDelay, LastErr: s.lastErr}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	defer s.setIdle()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		delay, err := s.task(ctx)

		s.mu.Lock()
		s.iterations++
		s.lastDelay = delay
		s.lastErr = err
		s.mu.Unlock()

		if err != nil {
			s.log.WithError(err).Debug("scheduler: task iteration returned an error")
		}

		wait := s.waitFor(delay)
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) waitFor(d Delay) time.Duration {
	switch d {
	case Immediate:
		return s.imm
	case ErrorBackoff:
		return s.errD
	default:
		return s.long
	}
}

func (s *Scheduler) setIdle() {
	s.mu.Lock()
	s.state = Idle
	s.mu.Unlock()
}
