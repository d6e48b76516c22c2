package bundle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/l1jgo/scenes/internal/core/ecs"
	"github.com/l1jgo/scenes/internal/core/system"
	"github.com/l1jgo/scenes/internal/data"
	"github.com/l1jgo/scenes/internal/scene"
	"golang.org/x/text/encoding/traditionalchinese"
)

const lobbyBundle = `scene: Lobby
roots:
  - name: Lights
    components:
      - kind: light
        props: {color: warm}
  - name: LobbyRoot
    components:
      - kind: entry
        props: {title: Grand Hall}
`

const battleBundle = `scene: Battle
roots:
  - name: Arena
    components:
      - kind: entry
        props: {title: Arena}
`

type fixture struct {
	dir    string
	world  *ecs.World
	loader *Loader
}

// newFixture writes bundles to disk and builds a catalog with their digests.
// Entries whose digest is "auto" get the real digest.
func newFixture(t *testing.T, bundles map[string]string, entries []data.SceneEntry) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, body := range bundles {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write bundle: %v", err)
		}
	}
	for i := range entries {
		if entries[i].Digest != "auto" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entries[i].Bundle))
		if err != nil {
			t.Fatalf("read bundle: %v", err)
		}
		entries[i].Digest = Digest(raw)
	}
	table, err := data.NewSceneTable(dir, entries)
	if err != nil {
		t.Fatalf("NewSceneTable: %v", err)
	}
	world := ecs.NewWorld()
	return &fixture{dir: dir, world: world, loader: NewLoader(table, world, 2, nil)}
}

func defaultFixture(t *testing.T) *fixture {
	return newFixture(t,
		map[string]string{"lobby.yaml": lobbyBundle, "battle.yaml": battleBundle},
		[]data.SceneEntry{
			{ID: "Lobby", Bundle: "lobby.yaml", Digest: "auto"},
			{ID: "Battle", Bundle: "battle.yaml", Digest: "auto", Mode: "additive"},
		})
}

func waitTerminal(t *testing.T, op scene.Operation) scene.Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !op.Status().Terminal() {
		if time.Now().After(deadline) {
			t.Fatalf("operation never finished")
		}
		time.Sleep(time.Millisecond)
	}
	return op.Status()
}

func TestLoadInstantiatesRoots(t *testing.T) {
	f := defaultFixture(t)

	op := f.loader.Load("Lobby", scene.LoadSingle, true)
	if st := waitTerminal(t, op); st != scene.StatusSucceeded {
		t.Fatalf("status = %s, err = %v", st, op.Err())
	}

	inst, ok := op.Result().(*Instance)
	if !ok || inst.SceneID != "Lobby" || !inst.Active() || inst.Digest == "" {
		t.Fatalf("instance = %+v", op.Result())
	}
	roots := f.loader.RootObjects(inst)
	if len(roots) != 2 || roots[0].Name() != "Lights" || roots[1].Name() != "LobbyRoot" {
		t.Fatalf("roots = %v", roots)
	}
	light, ok := roots[0].Components()[0].(*Component)
	if !ok || light.Kind != "light" || light.Props["color"] != "warm" {
		t.Fatalf("light component = %+v", roots[0].Components()[0])
	}
	entry, err := scene.Resolve[*EntryPoint](roots, "Lobby")
	if err != nil || entry.Title != "Grand Hall" || entry.Root != "LobbyRoot" {
		t.Fatalf("entry = %+v, %v", entry, err)
	}
	if f.world.Len() != 2 || f.loader.Loaded() != 1 {
		t.Fatalf("world=%d loaded=%d", f.world.Len(), f.loader.Loaded())
	}
}

func TestLoadFailures(t *testing.T) {
	f := newFixture(t,
		map[string]string{"lobby.yaml": lobbyBundle, "broken.yaml": "roots: [{components: []}]"},
		[]data.SceneEntry{
			{ID: "Tampered", Bundle: "lobby.yaml", Digest: "00"},
			{ID: "Missing", Bundle: "nope.yaml"},
			{ID: "Broken", Bundle: "broken.yaml"},
			{ID: "Renamed", Bundle: "lobby.yaml"},
		})

	cases := map[string]error{
		"Tampered": ErrDigestMismatch,
		"Ghost":    ErrUnknownScene,
		"Missing":  os.ErrNotExist,
	}
	for id, want := range cases {
		op := f.loader.Load(id, scene.LoadSingle, true)
		op.Wait()
		if op.Status() != scene.StatusFailed || !errors.Is(op.Err(), want) {
			t.Fatalf("%s: status=%s err=%v", id, op.Status(), op.Err())
		}
		if op.Result() != nil {
			t.Fatalf("%s: failed op has a result", id)
		}
	}
	for _, id := range []string{"Broken", "Renamed"} {
		op := f.loader.Load(id, scene.LoadSingle, true)
		op.Wait()
		if op.Status() != scene.StatusFailed || op.Err() == nil {
			t.Fatalf("%s: status=%s err=%v", id, op.Status(), op.Err())
		}
	}
	if f.world.Len() != 0 {
		t.Fatalf("failed loads left %d entities", f.world.Len())
	}
}

func TestLegacyEncodedBundle(t *testing.T) {
	body, err := traditionalchinese.Big5.NewEncoder().String("roots:\n  - name: 大廳\n    components:\n      - kind: entry\n        props: {title: 說話之島}\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f := newFixture(t,
		map[string]string{"hall.yaml": body},
		[]data.SceneEntry{{ID: "Hall", Bundle: "hall.yaml", Digest: "auto", Encoding: "big5"}})

	op := f.loader.Load("Hall", scene.LoadSingle, true)
	op.Wait()
	if op.Status() != scene.StatusSucceeded {
		t.Fatalf("err = %v", op.Err())
	}
	roots := f.loader.RootObjects(op.Result())
	entry, err := scene.Resolve[*EntryPoint](roots, "Hall")
	if err != nil || roots[0].Name() != "大廳" || entry.Title != "說話之島" {
		t.Fatalf("decoded root=%q entry=%+v err=%v", roots[0].Name(), entry, err)
	}
}

func TestDecodeUnknownEncoding(t *testing.T) {
	if _, err := Decode([]byte("roots: []"), "klingon"); err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
}

func TestReleaseBeforeReadFinishes(t *testing.T) {
	f := defaultFixture(t)
	gate := make(chan struct{})
	f.loader.readFile = func(p string) ([]byte, error) {
		<-gate
		return os.ReadFile(p)
	}

	op := f.loader.Load("Lobby", scene.LoadSingle, true)
	if op.Status() != scene.StatusPending {
		t.Fatalf("status = %s before read", op.Status())
	}
	f.loader.Release(op)
	close(gate)
	op.Wait()

	if op.Status() != scene.StatusFailed || !errors.Is(op.Err(), ErrReleased) {
		t.Fatalf("status=%s err=%v", op.Status(), op.Err())
	}
	if f.world.Len() != 0 || f.loader.Loaded() != 0 {
		t.Fatalf("released load instantiated")
	}
}

func TestUnloadWaitsForCleanupFlush(t *testing.T) {
	f := defaultFixture(t)
	load := f.loader.Load("Lobby", scene.LoadSingle, true)
	load.Wait()
	inst := load.Result()

	op := f.loader.Unload(inst)
	if op.Status() != scene.StatusPending {
		t.Fatalf("unload finished before flush")
	}
	if f.world.FlushDestroyQueue() != 2 {
		t.Fatalf("expected both roots flushed")
	}
	if op.Status() != scene.StatusSucceeded {
		t.Fatalf("status = %s after flush", op.Status())
	}
	if len(f.loader.RootObjects(inst)) != 0 {
		t.Fatalf("unloaded instance still has roots")
	}

	again := f.loader.Unload(inst)
	if again.Status() != scene.StatusFailed || !errors.Is(again.Err(), ErrNotLoaded) {
		t.Fatalf("second unload: %s %v", again.Status(), again.Err())
	}
	if foreign := f.loader.Unload("not an instance"); !errors.Is(foreign.Err(), ErrNotLoaded) {
		t.Fatalf("foreign unload err = %v", foreign.Err())
	}
}

func TestUnloadWaitDestroysImmediately(t *testing.T) {
	f := defaultFixture(t)
	load := f.loader.Load("Lobby", scene.LoadSingle, true)
	load.Wait()

	op := f.loader.Unload(load.Result())
	op.Wait()

	if op.Status() != scene.StatusSucceeded || f.world.Len() != 0 || f.world.Pending() != 0 {
		t.Fatalf("status=%s world=%d pending=%d", op.Status(), f.world.Len(), f.world.Pending())
	}
}

func TestReleaseUnloadKeepsScene(t *testing.T) {
	f := defaultFixture(t)
	load := f.loader.Load("Lobby", scene.LoadSingle, true)
	load.Wait()
	inst := load.Result().(*Instance)

	op := f.loader.Unload(inst)
	f.loader.Release(op)
	f.world.FlushDestroyQueue()

	if f.world.Len() != 2 || !inst.Active() || f.loader.Loaded() != 1 {
		t.Fatalf("world=%d active=%v loaded=%d", f.world.Len(), inst.Active(), f.loader.Loaded())
	}
}

func TestSingleLoadRetiresPreviousSingle(t *testing.T) {
	f := defaultFixture(t)
	first := f.loader.Load("Lobby", scene.LoadSingle, true)
	first.Wait()
	battle := f.loader.Load("Battle", scene.LoadAdditive, false)
	battle.Wait()
	second := f.loader.Load("Lobby", scene.LoadSingle, true)
	second.Wait()

	if first.Result().(*Instance).Active() {
		t.Fatalf("previous single scene still active")
	}
	if !second.Result().(*Instance).Active() {
		t.Fatalf("new single scene inactive")
	}
	b := battle.Result().(*Instance)
	if b.Active() {
		t.Fatalf("scene loaded with activateOnLoad=false is active")
	}
	if err := f.loader.Activate(b); err != nil || !b.Active() {
		t.Fatalf("Activate: %v", err)
	}
	if !second.Result().(*Instance).Active() {
		t.Fatalf("activating an additive scene retired a single scene")
	}
	if err := f.loader.Activate(42); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Activate(foreign) = %v", err)
	}
}

type spawnPoint struct{ x, y string }

func TestRegisteredFactory(t *testing.T) {
	f := newFixture(t,
		map[string]string{"map.yaml": "roots:\n  - name: Spawn\n    components:\n      - kind: spawn\n        props: {x: '1', y: '2'}\n      - kind: bad\n"},
		[]data.SceneEntry{{ID: "Map", Bundle: "map.yaml"}})
	f.loader.RegisterFactory("spawn", func(_, _ string, spec ComponentSpec) (any, error) {
		return &spawnPoint{x: spec.Props["x"], y: spec.Props["y"]}, nil
	})

	op := f.loader.Load("Map", scene.LoadAdditive, true)
	op.Wait()
	sp, err := scene.Resolve[*spawnPoint](f.loader.RootObjects(op.Result()), "Map")
	if err != nil || sp.x != "1" || sp.y != "2" {
		t.Fatalf("spawn = %+v, %v", sp, err)
	}

	f.loader.RegisterFactory("bad", func(string, string, ComponentSpec) (any, error) {
		return nil, errors.New("bad props")
	})
	op = f.loader.Load("Map", scene.LoadAdditive, true)
	op.Wait()
	if op.Status() != scene.StatusFailed {
		t.Fatalf("factory error did not fail the load")
	}
	if f.world.Len() != 1 {
		t.Fatalf("failed instantiation leaked entities: %d", f.world.Len())
	}
}

func TestSwitcherOverBundles(t *testing.T) {
	f := defaultFixture(t)
	sched := system.NewScheduler(nil)
	sw := scene.New(f.loader, f.loader, sched, nil)

	lobby, err := scene.SwitchToScene[*EntryPoint](sw, "Lobby", scene.LoadSingle, true)
	if err != nil || lobby.Title != "Grand Hall" {
		t.Fatalf("lobby = %+v, %v", lobby, err)
	}

	fut := scene.SwitchToSceneAsync[*EntryPoint](context.Background(), sw, "Battle", scene.LoadAdditive, true)
	deadline := time.Now().Add(5 * time.Second)
	for !fut.Done() && time.Now().Before(deadline) {
		sched.Step()
		time.Sleep(time.Millisecond)
	}
	battle, err := fut.Result()
	if err != nil || battle == nil || battle.Title != "Arena" {
		t.Fatalf("battle = %+v, %v", battle, err)
	}

	unload := sw.UnloadSceneAsync(context.Background(), "Battle")
	sched.Step()
	if unload.Done() {
		t.Fatalf("unload finished before cleanup flush")
	}
	f.world.FlushDestroyQueue()
	sched.Step()
	if _, err := unload.Result(); !unload.Done() || err != nil {
		t.Fatalf("unload done=%v err=%v", unload.Done(), err)
	}
	if ids := sw.Registry().IDs(); len(ids) != 1 || ids[0] != "Lobby" {
		t.Fatalf("registry = %v", ids)
	}
	if err := sw.UnloadScene("Lobby"); err != nil {
		t.Fatalf("unload lobby: %v", err)
	}
	if f.world.Len() != 0 {
		t.Fatalf("world still holds %d entities", f.world.Len())
	}
}
