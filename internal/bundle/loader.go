package bundle

import (
	"context"
	"fmt"
	"os"

	"github.com/l1jgo/scenes/internal/core/ecs"
	"github.com/l1jgo/scenes/internal/data"
	"github.com/l1jgo/scenes/internal/scene"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Instance is a scene loaded by Loader.
type Instance struct {
	SceneID string
	Mode    scene.LoadMode
	Digest  string
	roots   []ecs.EntityID
	active  bool
}

// Active reports whether the scene is live. Scenes loaded with
// activateOnLoad=false stay inactive until Activate; a later single-mode
// load retires the scene.
func (i *Instance) Active() bool { return i.active }

// Loader reads bundles listed in a SceneTable. Reads run on loader-owned
// goroutines, at most maxConcurrent at a time. Everything else, including
// instantiation into the world, happens on the goroutine that polls the
// returned operations (the game loop).
type Loader struct {
	table     *data.SceneTable
	world     *ecs.World
	sem       *semaphore.Weighted
	factories map[string]Factory
	loaded    map[*Instance]struct{}
	log       *zap.Logger
	readFile  func(string) ([]byte, error)
}

func NewLoader(table *data.SceneTable, world *ecs.World, maxConcurrent int, log *zap.Logger) *Loader {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loader{
		table:     table,
		world:     world,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		factories: make(map[string]Factory),
		loaded:    make(map[*Instance]struct{}),
		log:       log,
		readFile:  os.ReadFile,
	}
	l.RegisterFactory("entry", newEntryPoint)
	return l
}

// RegisterFactory sets the constructor for a component kind.
func (l *Loader) RegisterFactory(kind string, f Factory) {
	l.factories[kind] = f
}

// Loaded returns the number of live instances.
func (l *Loader) Loaded() int { return len(l.loaded) }

func (l *Loader) Load(sceneID string, mode scene.LoadMode, activateOnLoad bool) scene.Operation {
	ctx, cancel := context.WithCancel(context.Background())
	op := &loadOp{
		l:        l,
		sceneID:  sceneID,
		mode:     mode,
		activate: activateOnLoad,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	entry := l.table.Get(sceneID)
	if entry == nil {
		op.readErr = fmt.Errorf("%w: %s", ErrUnknownScene, sceneID)
		close(op.done)
		return op
	}
	go op.read(entry, l.table.BundlePath(entry))
	return op
}

func (l *Loader) Unload(inst scene.Instance) scene.Operation {
	bi, ok := inst.(*Instance)
	if !ok {
		return &unloadOp{status: scene.StatusFailed, err: fmt.Errorf("%w: %T", ErrNotLoaded, inst)}
	}
	if _, ok := l.loaded[bi]; !ok {
		return &unloadOp{status: scene.StatusFailed, err: fmt.Errorf("%w: %s", ErrNotLoaded, bi.SceneID)}
	}
	delete(l.loaded, bi)
	for _, id := range bi.roots {
		l.world.MarkForDestruction(id)
	}
	op := &unloadOp{l: l, inst: bi, wasActive: bi.active}
	bi.active = false
	return op
}

// Release abandons a pending operation. A released load never instantiates;
// a released unload keeps the scene's objects if they were not flushed yet.
func (l *Loader) Release(op scene.Operation) {
	switch o := op.(type) {
	case *loadOp:
		o.cancel()
	case *unloadOp:
		o.release()
	}
}

// Activate makes a scene loaded with activateOnLoad=false live.
func (l *Loader) Activate(inst scene.Instance) error {
	bi, ok := inst.(*Instance)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotLoaded, inst)
	}
	if _, ok := l.loaded[bi]; !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, bi.SceneID)
	}
	l.activate(bi)
	return nil
}

func (l *Loader) activate(inst *Instance) {
	if inst.Mode == scene.LoadSingle {
		for other := range l.loaded {
			if other != inst && other.active && other.Mode == scene.LoadSingle {
				other.active = false
				l.log.Debug("scene retired", zap.String("scene", other.SceneID))
			}
		}
	}
	inst.active = true
}

// RootObjects implements scene.Graph.
func (l *Loader) RootObjects(inst scene.Instance) []scene.Object {
	bi, ok := inst.(*Instance)
	if !ok {
		return nil
	}
	objs := make([]scene.Object, 0, len(bi.roots))
	for _, id := range bi.roots {
		if l.world.Alive(id) {
			objs = append(objs, entityObject{world: l.world, id: id})
		}
	}
	return objs
}

func (l *Loader) instantiate(op *loadOp) (*Instance, error) {
	inst := &Instance{SceneID: op.sceneID, Mode: op.mode, Digest: op.digest}
	for _, root := range op.manifest.Roots {
		comps := make([]any, 0, len(root.Components))
		for _, spec := range root.Components {
			c, err := l.build(op.sceneID, root.Name, spec)
			if err != nil {
				for _, id := range inst.roots {
					l.world.DestroyNow(id)
				}
				return nil, err
			}
			comps = append(comps, c)
		}
		inst.roots = append(inst.roots, l.world.CreateEntity(root.Name, comps...))
	}
	l.loaded[inst] = struct{}{}
	if op.activate {
		l.activate(inst)
	}
	l.log.Debug("bundle instantiated",
		zap.String("scene", inst.SceneID),
		zap.String("digest", inst.Digest),
		zap.Int("roots", len(inst.roots)),
	)
	return inst, nil
}

func (l *Loader) build(sceneID, root string, spec ComponentSpec) (any, error) {
	f, ok := l.factories[spec.Kind]
	if !ok {
		return &Component{Kind: spec.Kind, Props: spec.Props}, nil
	}
	c, err := f(sceneID, root, spec)
	if err != nil {
		return nil, fmt.Errorf("build %s component on %s: %w", spec.Kind, root, err)
	}
	return c, nil
}

// entityObject adapts a world entity to scene.Object.
type entityObject struct {
	world *ecs.World
	id    ecs.EntityID
}

func (o entityObject) Name() string      { return o.world.Name(o.id) }
func (o entityObject) Components() []any { return o.world.Components(o.id) }
