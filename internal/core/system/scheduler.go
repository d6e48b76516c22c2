package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Task is a cooperative coroutine. Step runs one iteration and reports
// whether the task has finished. A task never blocks inside Step.
type Task interface {
	Step() (done bool)
}

// Aborter is implemented by tasks that must settle their result when the
// scheduler drops them after a panic.
type Aborter interface {
	Abort(err error)
}

// Scheduler steps cooperative tasks once per tick on the caller's goroutine.
// It never starts goroutines. Single-goroutine access only (game loop).
type Scheduler struct {
	tasks   []Task
	spawned []Task
	ticks   uint64
	log     *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		tasks: make([]Task, 0, 16),
		log:   log,
	}
}

func (s *Scheduler) Phase() Phase { return PhaseLoad }

func (s *Scheduler) Update(_ time.Duration) {
	s.Step()
}

// Spawn queues t. It is first stepped on the next tick.
func (s *Scheduler) Spawn(t Task) {
	if t == nil {
		return
	}
	s.spawned = append(s.spawned, t)
}

// Step runs one scheduling tick: every live task is stepped exactly once.
// Tasks spawned while stepping wait for the following tick.
func (s *Scheduler) Step() {
	s.ticks++
	s.tasks = append(s.tasks, s.spawned...)
	s.spawned = s.spawned[:0]

	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !s.safeStep(t) {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = live
}

// Len returns the number of unfinished tasks, including ones not yet stepped.
func (s *Scheduler) Len() int {
	return len(s.tasks) + len(s.spawned)
}

// Ticks returns how many scheduling ticks have run.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// safeStep executes a task with panic recovery so a single bad task cannot
// take down the loop. A panicking task counts as finished.
func (s *Scheduler) safeStep(t Task) (done bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("task panic recovered", zap.Any("panic", rec))
			if a, ok := t.(Aborter); ok {
				a.Abort(fmt.Errorf("task panic: %v", rec))
			}
			done = true
		}
	}()
	return t.Step()
}

// RunUntil steps the scheduler until f resolves or maxTicks ticks have run.
// It reports whether f resolved.
func RunUntil[T any](s *Scheduler, f *Future[T], maxTicks int) bool {
	for i := 0; i < maxTicks && !f.Done(); i++ {
		s.Step()
	}
	return f.Done()
}
