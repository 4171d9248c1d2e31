// Package main provides the health stack simulator. It wires together
// configuration, stack definitions, Lua hooks, and the tick driver, then
// plays a scenario, serves an interactive console, or ticks headless.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/healthstack/internal/config"
	"github.com/cory-johannsen/healthstack/internal/console"
	"github.com/cory-johannsen/healthstack/internal/content"
	"github.com/cory-johannsen/healthstack/internal/game/dice"
	"github.com/cory-johannsen/healthstack/internal/game/entity"
	"github.com/cory-johannsen/healthstack/internal/game/health"
	"github.com/cory-johannsen/healthstack/internal/observability"
	"github.com/cory-johannsen/healthstack/internal/scripting"
	"github.com/cory-johannsen/healthstack/internal/server"
	"github.com/cory-johannsen/healthstack/internal/simulation"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scenarioPath := flag.String("scenario", "", "play this scenario file and exit")
	duration := flag.Float64("duration", 0, "scenario length in simulated seconds; 0 uses the scenario's own")
	interactive := flag.Bool("console", false, "read commands from stdin")
	realtime := flag.Bool("realtime", false, "in console mode, also tick in real time")
	color := flag.Bool("color", true, "use ANSI colors in console output")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "healthsim")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	lib, err := content.NewLibrary(cfg.Content.StacksDir, logger.Named("content"))
	if err != nil {
		logger.Fatal("loading stack definitions", zap.Error(err))
	}

	var src dice.Source
	if cfg.Simulation.Seed != 0 {
		src = dice.NewSeededSource(cfg.Simulation.Seed)
	} else {
		src = dice.NewCryptoSource()
	}
	roller := dice.NewRoller(src, logger.Named("dice"))

	entities := entity.NewManager(health.Policy{
		UniversalRecharge:    cfg.Simulation.UniversalRecharge,
		UniversalDamageReset: cfg.Simulation.UniversalDamageReset,
	}, logger.Named("entity"))

	opts := []simulation.Option{
		simulation.WithLogger(logger.Named("simulation")),
		simulation.WithMaxTicks(cfg.Simulation.MaxTicks),
	}

	var scripts *scripting.Manager
	if cfg.Content.ScriptsDir != "" {
		scripts = scripting.NewManager(roller, logger.Named("scripting"))
		defer scripts.Close()
		stacks, err := scripts.LoadTree(cfg.Content.ScriptsDir, cfg.Scripting.InstructionLimit)
		if err != nil {
			logger.Fatal("loading scripts", zap.Error(err))
		}
		simulation.BindScripts(scripts, entities)
		opts = append(opts, simulation.WithHooks(simulation.NewScriptHooks(scripts)))
		logger.Info("scripts loaded",
			zap.String("dir", cfg.Content.ScriptsDir),
			zap.Strings("stacks", stacks),
		)
	}

	driver, err := simulation.NewDriver(entities, cfg.Simulation.TickRate, opts...)
	if err != nil {
		logger.Fatal("creating driver", zap.Error(err))
	}

	logger.Info("simulator initialized",
		zap.Int("stacks", len(lib.IDs())),
		zap.Int("tick_rate", cfg.Simulation.TickRate),
		zap.Duration("startup", time.Since(start)),
	)

	if *scenarioPath != "" {
		if err := playScenario(driver, lib, roller, *scenarioPath, *duration, *color); err != nil {
			logger.Fatal("playing scenario", zap.Error(err))
		}
		return
	}

	lifecycle := server.NewLifecycle(logger.Named("lifecycle"))

	if *interactive {
		c := console.New(driver, lib, roller, logger.Named("console"), *color)
		lifecycle.Add("console", server.FuncService(func(ctx context.Context) error {
			return c.Serve(ctx, os.Stdin, os.Stdout)
		}))
	}
	if !*interactive || *realtime {
		lifecycle.Add("simulation", server.FuncService(driver.Run))
	}
	if cfg.Content.Watch {
		dirs := []string{cfg.Content.StacksDir}
		if cfg.Content.ScriptsDir != "" {
			dirs = append(dirs, scriptDirs(cfg.Content.ScriptsDir)...)
		}
		watcher, err := content.NewWatcher(logger.Named("watcher"), dirs...)
		if err != nil {
			logger.Fatal("watching content", zap.Error(err))
		}
		var onScript func(string)
		if scripts != nil {
			onScript = func(string) {
				if _, err := scripts.LoadTree(cfg.Content.ScriptsDir, cfg.Scripting.InstructionLimit); err != nil {
					logger.Error("script reload failed", zap.Error(err))
				}
			}
		}
		lifecycle.Add("watcher", server.FuncService(func(ctx context.Context) error {
			defer watcher.Close()
			watcher.Serve(ctx, lib, onScript)
			return ctx.Err()
		}))
	}

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("simulator error", zap.Error(err))
	}
}

func playScenario(d *simulation.Driver, lib *content.Library, roller *dice.Roller, path string, duration float64, color bool) error {
	sc, err := simulation.LoadScenario(path)
	if err != nil {
		return err
	}
	res, err := d.Play(sc, lib.Registry(), roller, duration)
	if err != nil {
		return err
	}
	fmt.Println(console.RenderResult(sc.Name, res, color))
	return nil
}

// scriptDirs returns root and its immediate subdirectories.
func scriptDirs(root string) []string {
	dirs := []string{root}
	entries, err := os.ReadDir(root)
	if err != nil {
		return dirs
	}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs
}
