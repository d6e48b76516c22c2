package scene

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/l1jgo/scenes/internal/core/event"
	"github.com/l1jgo/scenes/internal/core/system"
	"go.uber.org/zap"
)

// Option configures a Switcher.
type Option func(*Switcher)

// WithBus makes the switcher publish on an existing bus instead of its own.
func WithBus(b *event.Bus) Option {
	return func(s *Switcher) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithReporter adds a diagnostics sink for recoverable failures.
func WithReporter(r Reporter) Option {
	return func(s *Switcher) { s.report = r }
}

// WithStallWarning logs once when an async operation is still pending after
// the given number of polls. Zero disables the warning. No timeout is applied.
func WithStallWarning(polls int) Option {
	return func(s *Switcher) { s.stallWarn = polls }
}

// Switcher loads, registers and unloads scenes and publishes the lifecycle
// events around each transition. Single-goroutine access only (game loop).
type Switcher struct {
	loader    Loader
	graph     Graph
	sched     *system.Scheduler
	registry  *Registry
	bus       *event.Bus
	log       *zap.Logger
	report    Reporter
	stallWarn int
	disposed  bool
}

// New creates a switcher. Async calls are driven by sched.
func New(loader Loader, graph Graph, sched *system.Scheduler, log *zap.Logger, opts ...Option) *Switcher {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Switcher{
		loader:   loader,
		graph:    graph,
		sched:    sched,
		registry: NewRegistry(),
		bus:      event.NewBus(),
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the table of loaded scenes.
func (s *Switcher) Registry() *Registry { return s.registry }

// Events exposes the lifecycle bus.
func (s *Switcher) Events() *event.Bus { return s.bus }

// Loaded reports whether sceneID is registered.
func (s *Switcher) Loaded(sceneID string) bool {
	_, ok := s.registry.Get(sceneID)
	return ok
}

func (s *Switcher) OnSwitchStarted(fn func(sceneID string)) event.Subscription {
	return s.subscribe(event.SwitchStarted, fn)
}

func (s *Switcher) OnSwitchCompleted(fn func(sceneID string)) event.Subscription {
	return s.subscribe(event.SwitchCompleted, fn)
}

func (s *Switcher) OnUnloadStarted(fn func(sceneID string)) event.Subscription {
	return s.subscribe(event.UnloadStarted, fn)
}

func (s *Switcher) OnUnloadCompleted(fn func(sceneID string)) event.Subscription {
	return s.subscribe(event.UnloadCompleted, fn)
}

func (s *Switcher) Unsubscribe(sub event.Subscription) bool {
	return s.bus.Unsubscribe(sub)
}

func (s *Switcher) subscribe(kind event.Kind, fn func(string)) event.Subscription {
	if fn == nil {
		return event.Subscription{}
	}
	return s.bus.Subscribe(kind, func(ev event.Event) { fn(ev.SceneID) })
}

// Dispose drops every subscriber. No event fires afterwards. Loaded scenes
// are left to the caller.
func (s *Switcher) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.bus.Close()
	s.log.Debug("scene switcher disposed", zap.Int("loaded", s.registry.Len()))
}

// SwitchToScene loads sceneID, blocking the calling goroutine until the loader
// finishes, and returns the scene's capability C.
//
// A failed load returns the zero value and an error wrapping ErrLoadFailed,
// with no registry change and no completed event. A scene without a C root
// is still registered and completed; the error is a *ContextNotFoundError.
func SwitchToScene[C any](s *Switcher, sceneID string, mode LoadMode, activateOnLoad bool) (C, error) {
	return switchBlocking(s, sceneID, mode, activateOnLoad, completeWith[C])
}

// SwitchToSceneAsync starts loading sceneID and returns a future for the
// scene's capability C. The load is polled once per scheduler tick. ctx is the
// cancellation token: it is checked at each poll, after the status, so an
// operation that already succeeded is always applied.
func SwitchToSceneAsync[C any](ctx context.Context, s *Switcher, sceneID string, mode LoadMode, activateOnLoad bool) *system.Future[C] {
	c := s.beginSwitch(sceneID, mode, activateOnLoad)
	return startPoll(ctx, s, c, func() (C, error) { return completeWith[C](s, c) })
}

// Switch loads and registers sceneID without resolving a capability.
func (s *Switcher) Switch(sceneID string, mode LoadMode, activateOnLoad bool) error {
	_, err := switchBlocking(s, sceneID, mode, activateOnLoad, (*Switcher).completeBare)
	return err
}

// SwitchAsync is the cooperative form of Switch.
func (s *Switcher) SwitchAsync(ctx context.Context, sceneID string, mode LoadMode, activateOnLoad bool) *system.Future[struct{}] {
	c := s.beginSwitch(sceneID, mode, activateOnLoad)
	return startPoll(ctx, s, c, func() (struct{}, error) { return s.completeBare(c) })
}

// UnloadScene unloads a registered scene and blocks until the loader is done.
// Unloading an id that is not registered panics with *MissingEntryError.
// A failed unload leaves the scene registered.
func (s *Switcher) UnloadScene(sceneID string) error {
	c := s.beginUnload(sceneID)
	c.handle.Wait()
	if c.handle.Status() != StatusSucceeded {
		return s.failed(c)
	}
	_, err := s.completeUnload(c)
	return err
}

// UnloadSceneAsync is the cooperative form of UnloadScene. The registry lookup
// happens before it returns, so a missing entry panics in the caller.
func (s *Switcher) UnloadSceneAsync(ctx context.Context, sceneID string) *system.Future[struct{}] {
	c := s.beginUnload(sceneID)
	return startPoll(ctx, s, c, func() (struct{}, error) { return s.completeUnload(c) })
}

// call is one switch or unload in flight.
type call struct {
	op      Op
	id      uuid.UUID
	sceneID string
	handle  Operation
}

func (c *call) fields() []zap.Field {
	return []zap.Field{
		zap.String("scene", c.sceneID),
		zap.String("op", string(c.op)),
		zap.String("call_id", c.id.String()),
	}
}

func (s *Switcher) emit(kind event.Kind, c *call) {
	s.bus.Emit(event.Event{Kind: kind, SceneID: c.sceneID, CallID: c.id})
}

func (s *Switcher) beginSwitch(sceneID string, mode LoadMode, activateOnLoad bool) *call {
	c := &call{op: OpSwitch, id: uuid.New(), sceneID: sceneID}
	s.emit(event.SwitchStarted, c)
	c.handle = s.loader.Load(sceneID, mode, activateOnLoad)
	s.log.Debug("scene load submitted", append(c.fields(),
		zap.Stringer("mode", mode),
		zap.Bool("activate_on_load", activateOnLoad),
	)...)
	return c
}

func (s *Switcher) beginUnload(sceneID string) *call {
	inst, ok := s.registry.Get(sceneID)
	if !ok {
		s.log.Error("unload requested for a scene that is not loaded", zap.String("scene", sceneID))
		panic(&MissingEntryError{SceneID: sceneID})
	}
	c := &call{op: OpUnload, id: uuid.New(), sceneID: sceneID}
	s.emit(event.UnloadStarted, c)
	c.handle = s.loader.Unload(inst)
	s.log.Debug("scene unload submitted", c.fields()...)
	return c
}

func switchBlocking[T any](s *Switcher, sceneID string, mode LoadMode, activateOnLoad bool, complete func(*Switcher, *call) (T, error)) (T, error) {
	c := s.beginSwitch(sceneID, mode, activateOnLoad)
	c.handle.Wait()
	if c.handle.Status() != StatusSucceeded {
		var zero T
		return zero, s.failed(c)
	}
	return complete(s, c)
}

func completeWith[C any](s *Switcher, c *call) (C, error) {
	inst := c.handle.Result()
	ctxObj, err := Resolve[C](s.graph.RootObjects(inst), c.sceneID)
	if err != nil {
		s.diagnose(c, OpResolve, err)
	}
	s.register(c, inst)
	return ctxObj, err
}

func (s *Switcher) completeBare(c *call) (struct{}, error) {
	s.register(c, c.handle.Result())
	return struct{}{}, nil
}

func (s *Switcher) register(c *call, inst Instance) {
	if _, replaced := s.registry.Set(c.sceneID, inst); replaced {
		s.log.Warn("scene reloaded without unload, previous handle dropped", c.fields()...)
	}
	s.emit(event.SwitchCompleted, c)
	s.log.Info("scene switched", c.fields()...)
}

func (s *Switcher) completeUnload(c *call) (struct{}, error) {
	s.registry.Remove(c.sceneID)
	s.emit(event.UnloadCompleted, c)
	s.log.Info("scene unloaded", c.fields()...)
	return struct{}{}, nil
}

// failed reports a failed (or non-terminal after Wait) operation.
func (s *Switcher) failed(c *call) error {
	var err error
	if c.op == OpUnload {
		err = operationError(ErrUnloadFailed, "unload", c.sceneID, c.handle)
	} else {
		err = operationError(ErrLoadFailed, "load", c.sceneID, c.handle)
	}
	s.diagnose(c, c.op, err)
	return err
}

func (s *Switcher) diagnose(c *call, op Op, err error) {
	s.log.Warn("scene operation failed", append(c.fields(), zap.Error(err))...)
	if s.report != nil {
		s.report(Failure{Op: op, SceneID: c.sceneID, CallID: c.id, Err: err})
	}
}

func (s *Switcher) cancelled(ctx context.Context, c *call) error {
	s.loader.Release(c.handle)
	s.log.Info("scene operation cancelled", c.fields()...)
	return fmt.Errorf("%s %s: %w", c.op, c.sceneID, context.Cause(ctx))
}

// pollTask drives one operation to completion, one poll per scheduler tick.
type pollTask[T any] struct {
	s        *Switcher
	ctx      context.Context
	c        *call
	fut      *system.Future[T]
	complete func() (T, error)
	polls    int
}

func startPoll[T any](ctx context.Context, s *Switcher, c *call, complete func() (T, error)) *system.Future[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &pollTask[T]{
		s:        s,
		ctx:      ctx,
		c:        c,
		fut:      system.NewFuture[T](),
		complete: complete,
	}
	if !t.Step() {
		s.sched.Spawn(t)
	}
	return t.fut
}

func (t *pollTask[T]) Step() bool {
	var zero T
	t.polls++
	switch t.c.handle.Status() {
	case StatusSucceeded:
		v, err := t.complete()
		t.fut.Resolve(v, err)
		return true
	case StatusFailed:
		t.fut.Resolve(zero, t.s.failed(t.c))
		return true
	}
	if t.ctx.Err() != nil {
		t.fut.Resolve(zero, t.s.cancelled(t.ctx, t.c))
		return true
	}
	if t.s.stallWarn > 0 && t.polls == t.s.stallWarn {
		t.s.log.Warn("scene operation still pending", append(t.c.fields(), zap.Int("polls", t.polls))...)
	}
	return false
}

func (t *pollTask[T]) Abort(err error) {
	var zero T
	t.fut.Resolve(zero, fmt.Errorf("%s %s: %w", t.c.op, t.c.sceneID, err))
}
