package bundle

import (
	"context"
	"fmt"

	"github.com/l1jgo/scenes/internal/data"
	"github.com/l1jgo/scenes/internal/scene"
)

// loadOp is a pending bundle load. The read goroutine fills manifest, digest
// and readErr before closing done; the remaining fields belong to the
// polling goroutine.
type loadOp struct {
	l        *Loader
	sceneID  string
	mode     scene.LoadMode
	activate bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	manifest *Manifest
	digest   string
	readErr  error

	status scene.Status
	inst   *Instance
	err    error
}

func (o *loadOp) read(entry *data.SceneEntry, path string) {
	defer close(o.done)
	if err := o.l.sem.Acquire(o.ctx, 1); err != nil {
		o.readErr = err
		return
	}
	defer o.l.sem.Release(1)

	raw, err := o.l.readFile(path)
	if err != nil {
		o.readErr = fmt.Errorf("read bundle %s: %w", path, err)
		return
	}
	sum := Digest(raw)
	if entry.Digest != "" && sum != entry.Digest {
		o.readErr = fmt.Errorf("%w: %s: have %s, want %s", ErrDigestMismatch, o.sceneID, sum, entry.Digest)
		return
	}
	m, err := Decode(raw, entry.Encoding)
	if err != nil {
		o.readErr = fmt.Errorf("bundle %s: %w", o.sceneID, err)
		return
	}
	if m.Scene != "" && m.Scene != o.sceneID {
		o.readErr = fmt.Errorf("bundle %s declares scene %s", o.sceneID, m.Scene)
		return
	}
	o.manifest = m
	o.digest = sum
}

func (o *loadOp) Status() scene.Status {
	select {
	case <-o.done:
		o.settle()
	default:
	}
	return o.status
}

func (o *loadOp) Wait() {
	<-o.done
	o.settle()
}

func (o *loadOp) Result() scene.Instance {
	if o.inst == nil {
		return nil
	}
	return o.inst
}

func (o *loadOp) Err() error { return o.err }

// settle turns a finished read into a terminal status. Must only be called
// after done is closed.
func (o *loadOp) settle() {
	if o.status != scene.StatusPending {
		return
	}
	defer o.cancel()
	switch {
	case o.ctx.Err() != nil:
		o.fail(ErrReleased)
	case o.readErr != nil:
		o.fail(o.readErr)
	default:
		inst, err := o.l.instantiate(o)
		if err != nil {
			o.fail(err)
			return
		}
		o.inst = inst
		o.status = scene.StatusSucceeded
		o.manifest = nil
	}
}

func (o *loadOp) fail(err error) {
	o.status = scene.StatusFailed
	o.err = err
}

// unloadOp succeeds once every root of the instance has been destroyed,
// normally by the cleanup phase flushing the world's destroy queue.
type unloadOp struct {
	l         *Loader
	inst      *Instance
	wasActive bool
	released  bool
	status    scene.Status
	err       error
}

func (o *unloadOp) Status() scene.Status {
	if o.status == scene.StatusPending && !o.released && o.rootsGone() {
		o.status = scene.StatusSucceeded
	}
	return o.status
}

// Wait destroys the roots immediately instead of waiting for cleanup.
func (o *unloadOp) Wait() {
	if o.status != scene.StatusPending || o.released {
		return
	}
	for _, id := range o.inst.roots {
		o.l.world.CancelDestruction(id)
		o.l.world.DestroyNow(id)
	}
	o.status = scene.StatusSucceeded
}

func (o *unloadOp) Result() scene.Instance { return nil }

func (o *unloadOp) Err() error { return o.err }

func (o *unloadOp) rootsGone() bool {
	for _, id := range o.inst.roots {
		if o.l.world.Alive(id) {
			return false
		}
	}
	return true
}

// release undoes a pending unload whose roots have not been flushed yet.
func (o *unloadOp) release() {
	if o.status != scene.StatusPending || o.released {
		return
	}
	o.released = true
	if o.rootsGone() {
		return
	}
	for _, id := range o.inst.roots {
		o.l.world.CancelDestruction(id)
	}
	o.l.loaded[o.inst] = struct{}{}
	o.inst.active = o.wasActive
}
