package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/l1jgo/scenes/internal/bundle"
	"github.com/l1jgo/scenes/internal/config"
	"github.com/l1jgo/scenes/internal/core/ecs"
	coresys "github.com/l1jgo/scenes/internal/core/system"
	"github.com/l1jgo/scenes/internal/data"
	"github.com/l1jgo/scenes/internal/persist"
	"github.com/l1jgo/scenes/internal/scene"
	"github.com/l1jgo/scenes/internal/scripting"
	"github.com/l1jgo/scenes/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var (
	sectionColor = color.New(color.FgYellow)
	okColor      = color.New(color.FgGreen)
	dimColor     = color.New(color.FgHiBlack)
)

func printBanner(name string) {
	fmt.Println()
	color.New(color.FgCyan, color.Bold).Printf("  scenehost · %s\n\n", name)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	sectionColor.Printf("  ── %s %s\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s %s %s\n", label, dimColor.Sprint(strings.Repeat("·", dotsLen)), okColor.Sprint(numStr))
}

func printOK(msg string) {
	fmt.Printf("  %s %s\n", okColor.Sprint("✓"), msg)
}

// ── Main host logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/scenehost.toml"
	if p := os.Getenv("SCENEHOST_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Host.Name)

	// 3. Scene catalog
	printSection("catalog")
	catalog, err := data.LoadSceneTable(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load scene catalog: %w", err)
	}
	printStat("scenes", catalog.Count())

	// 4. World, loader, scheduler, switcher
	world := ecs.NewWorld()
	loader := bundle.NewLoader(catalog, world, cfg.Loader.MaxConcurrentLoads, log)
	sched := coresys.NewScheduler(log)
	failures := make(map[scene.Op]int)
	switcher := scene.New(loader, loader, sched, log,
		scene.WithStallWarning(cfg.Switcher.StallWarnTicks),
		scene.WithReporter(func(f scene.Failure) { failures[f.Op]++ }),
	)

	runner := coresys.NewRunner()
	runner.Register(sched)
	runner.Register(system.NewCleanupSystem(world, log))

	// 5. Lua lifecycle hooks
	if cfg.Scripting.Enabled {
		luaEngine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer luaEngine.Close()
		luaEngine.Attach(switcher.Events())
		printOK("lua hooks loaded")
	}

	// 6. Optional transition journal
	var journal *system.JournalSystem
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		version, err := persist.RunMigrations(ctx, db)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printStat("journal schema", int(version))

		journal = system.NewJournalSystem(persist.NewJournalRepo(db), cfg.Host.Name, cfg.Journal.FlushIntervalTicks, log)
		journal.Attach(switcher.Events())
		runner.Register(journal)
	}
	fmt.Println()

	// 7. Startup scenes: the first one blocks, the rest load cooperatively.
	loopCtx, stopLoads := context.WithCancel(context.Background())
	defer stopLoads()

	printSection("startup")
	if cfg.Startup.Scene != "" {
		entry, err := scene.SwitchToScene[*bundle.EntryPoint](switcher, cfg.Startup.Scene, scene.LoadSingle, true)
		var notFound *scene.ContextNotFoundError
		switch {
		case errors.As(err, &notFound):
			log.Warn("startup scene has no entry point", zap.String("scene", cfg.Startup.Scene))
		case err != nil:
			return fmt.Errorf("startup scene: %w", err)
		default:
			printOK(fmt.Sprintf("%s (%s)", cfg.Startup.Scene, entry.Title))
		}
	}
	for _, id := range cfg.Startup.Additive {
		startAdditive(loopCtx, switcher, catalog, id, log)
	}
	fmt.Println()

	// 8. Start host loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Host.TickRate)
	defer ticker.Stop()

	log.Info("host loop started", zap.Duration("tick", cfg.Host.TickRate))

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Host.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			stopLoads()
			shutdown(switcher, sched, runner, cfg, log)
			if journal != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := journal.Close(ctx); err != nil {
					log.Error("journal close failed", zap.Error(err))
				}
				cancel()
			}
			switcher.Dispose()
			log.Info("host stopped",
				zap.Uint64("ticks", runner.Ticks()),
				zap.Int("failed_switches", failures[scene.OpSwitch]),
				zap.Int("failed_unloads", failures[scene.OpUnload]),
				zap.Int("missing_contexts", failures[scene.OpResolve]),
			)
			return nil
		}
	}
}

// startAdditive begins a cooperative load of a catalog scene using the
// catalog's mode and activation flag.
func startAdditive(ctx context.Context, sw *scene.Switcher, catalog *data.SceneTable, id string, log *zap.Logger) {
	mode := scene.LoadAdditive
	activate := true
	if e := catalog.Get(id); e != nil {
		if m, err := scene.ParseLoadMode(e.Mode); err == nil && e.Mode != "" {
			mode = m
		}
		activate = e.Activate()
	}
	fut := scene.SwitchToSceneAsync[*bundle.EntryPoint](ctx, sw, id, mode, activate)
	fut.Then(func(entry *bundle.EntryPoint, err error) {
		var notFound *scene.ContextNotFoundError
		switch {
		case errors.As(err, &notFound):
			log.Warn("scene has no entry point", zap.String("scene", id))
		case err != nil:
			log.Warn("additive scene not loaded", zap.String("scene", id), zap.Error(err))
		default:
			log.Info("additive scene ready", zap.String("scene", id), zap.String("title", entry.Title))
		}
	})
}

// shutdown lets cancelled loads settle, then unloads every registered scene.
func shutdown(sw *scene.Switcher, sched *coresys.Scheduler, runner *coresys.Runner, cfg *config.Config, log *zap.Logger) {
	deadline := time.Now().Add(cfg.Switcher.ShutdownBudget)
	for sched.Len() > 0 && time.Now().Before(deadline) {
		runner.TickPhase(coresys.PhaseLoad, cfg.Host.TickRate)
		time.Sleep(time.Millisecond)
	}
	for _, id := range sw.Registry().IDs() {
		if err := sw.UnloadScene(id); err != nil {
			log.Error("unload on shutdown failed", zap.String("scene", id), zap.Error(err))
		}
	}
	runner.TickPhase(coresys.PhaseCleanup, cfg.Host.TickRate)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
