package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/l1jgo/scenes/internal/core/event"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// hookNames maps lifecycle channels to the global Lua functions they call.
var hookNames = map[event.Kind]string{
	event.SwitchStarted:   "on_switch_started",
	event.SwitchCompleted: "on_switch_completed",
	event.UnloadStarted:   "on_unload_started",
	event.UnloadCompleted: "on_unload_completed",
}

// Engine wraps a single gopher-lua VM running scene lifecycle hooks.
// Single-goroutine access only (game loop).
type Engine struct {
	vm   *lua.LState
	log  *zap.Logger
	subs []event.Subscription
	bus  *event.Bus
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("log_info", vm.NewFunction(e.luaLogInfo))

	// Load core scripts first, then per-scene hooks
	for _, sub := range []string{"core", "scene"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Attach subscribes the engine's hooks to every lifecycle channel of bus.
func (e *Engine) Attach(bus *event.Bus) {
	e.bus = bus
	e.subs = append(e.subs, bus.SubscribeAll(e.dispatch)...)
}

// Detach removes the engine's subscriptions.
func (e *Engine) Detach() {
	if e.bus == nil {
		return
	}
	for _, sub := range e.subs {
		e.bus.Unsubscribe(sub)
	}
	e.subs = nil
	e.bus = nil
}

func (e *Engine) dispatch(ev event.Event) {
	name := hookNames[ev.Kind]
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LString(ev.SceneID), lua.LString(ev.CallID.String())); err != nil {
		e.log.Error("lua hook error",
			zap.String("hook", name),
			zap.String("scene", ev.SceneID),
			zap.Error(err),
		)
	}
}

func (e *Engine) luaLogInfo(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// Close detaches and shuts down the VM.
func (e *Engine) Close() {
	e.Detach()
	e.vm.Close()
}
