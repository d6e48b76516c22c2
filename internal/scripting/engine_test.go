package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/l1jgo/scenes/internal/core/event"
	lua "github.com/yuin/gopher-lua"
)

const hooks = `
seen = {}
function on_switch_started(id, call) table.insert(seen, "started:" .. id) end
function on_switch_completed(id, call) table.insert(seen, "completed:" .. id) end
function on_unload_completed(id, call)
  if id == "Bad" then error("boom") end
  table.insert(seen, "unloaded:" .. id)
  log_info("unloaded " .. id)
end
`

func writeScript(t *testing.T, dir, sub, name, body string) {
	t.Helper()
	p := filepath.Join(dir, sub)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(p, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func seen(t *testing.T, e *Engine) []string {
	t.Helper()
	tbl, ok := e.vm.GetGlobal("seen").(*lua.LTable)
	if !ok {
		t.Fatalf("seen is not a table")
	}
	var out []string
	tbl.ForEach(func(_, v lua.LValue) { out = append(out, v.String()) })
	return out
}

func TestHooksRunOnLifecycleEvents(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "scene", "hooks.lua", hooks)
	writeScript(t, dir, "scene", "README.txt", "ignored")
	e, err := NewEngine(dir, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()
	bus := event.NewBus()
	e.Attach(bus)

	bus.Emit(event.Event{Kind: event.SwitchStarted, SceneID: "Lobby"})
	bus.Emit(event.Event{Kind: event.SwitchCompleted, SceneID: "Lobby"})
	bus.Emit(event.Event{Kind: event.UnloadStarted, SceneID: "Lobby"}) // no hook defined
	bus.Emit(event.Event{Kind: event.UnloadCompleted, SceneID: "Bad"}) // script error is logged
	bus.Emit(event.Event{Kind: event.UnloadCompleted, SceneID: "Lobby"})

	got := seen(t, e)
	want := []string{"started:Lobby", "completed:Lobby", "unloaded:Lobby"}
	if len(got) != len(want) {
		t.Fatalf("seen = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("seen = %v, want %v", got, want)
		}
	}

	e.Detach()
	bus.Emit(event.Event{Kind: event.SwitchStarted, SceneID: "After"})
	if len(seen(t, e)) != 3 {
		t.Fatalf("hook ran after detach")
	}
}

func TestNewEngineMissingDirIsFine(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "none"), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.Close()
}

func TestNewEngineReportsScriptErrors(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "core", "broken.lua", "this is not lua")
	if _, err := NewEngine(dir, nil); err == nil {
		t.Fatalf("expected load error")
	}
}
