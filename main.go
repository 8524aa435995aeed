package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vns-engine/api"
	"vns-engine/compiler"
	"vns-engine/config"
	_ "vns-engine/formats/archive"
	_ "vns-engine/formats/vns"
	"vns-engine/logger"
	"vns-engine/luabridge"
	"vns-engine/simulator"
	"vns-engine/storage"
	"vns-engine/test"
	"vns-engine/vm"
	"vns-engine/watcher"
)

var errCheckFailed = errors.New("la storia contiene errori")

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute esegue la modalità richiesta e restituisce il codice di uscita.
// os.Exit resta in main, così i defer di execute girano sempre.
func execute(args []string) int {
	cfg, err := config.Parse(flag.NewFlagSet("vns-engine", flag.ContinueOnError), args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 2
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("esecuzione fallita", zap.String("mode", cfg.Mode), zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	switch cfg.Mode {
	case config.ModeCheck:
		return check(cfg, log)
	case config.ModeRun:
		return play(ctx, cfg, log)
	case config.ModeServe:
		return serve(ctx, cfg, log)
	case config.ModeBatch:
		return batch(ctx, cfg, log)
	}
	return fmt.Errorf("modalità non valida: %q", cfg.Mode)
}

// build compila la storia con il bridge Lua già caricato
func build(cfg config.Config, log *zap.Logger) (*compiler.CompileResult, *luabridge.Bridge, error) {
	result, err := compiler.Build(os.DirFS(cfg.Root), compiler.CompileOptions{
		Entry:     cfg.Entry,
		StartNode: cfg.Chapter,
	}, log)
	if err != nil {
		return result, nil, err
	}
	for _, warning := range result.Warnings {
		log.Warn(warning)
	}

	bridge := luabridge.New(log)
	if err := bridge.LoadPackage(result.Package); err != nil {
		return result, nil, err
	}
	return result, bridge, nil
}

// ============================================
// check
// ============================================

func check(cfg config.Config, log *zap.Logger) error {
	result, bridge, err := build(cfg, log)
	if err != nil {
		return err
	}

	registry := simulator.NewRegistry(log, bridge.Install)
	issues := simulator.ValidateStory(result.Story, registry)

	fmt.Printf("📖 %s (%d documenti, %d capitoli)\n", cfg.Entry, len(result.Documents), len(result.Story.Chapters))
	failed := false
	for _, issue := range issues {
		fmt.Printf("   %s\n", issue)
		if issue.Severity == "error" {
			failed = true
		}
	}
	if failed {
		return errCheckFailed
	}
	fmt.Println("✅ Nessun errore")
	return nil
}

// ============================================
// run
// ============================================

func play(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	simulate := func(result *compiler.CompileResult, bridge *luabridge.Bridge) error {
		sim := simulator.NewPathSimulator(result.Story, simulator.Options{
			MaxSteps: cfg.MaxSteps,
			Chooser:  simulator.ScriptedChoices(cfg.Choices...),
			Logger:   log,
			Install:  []func(*vm.Registry){bridge.Install},
		})
		outcome := sim.Simulate(result.App.Entry, "")
		printTranscript(os.Stdout, result.App, outcome)
		if !outcome.Success {
			return errors.New(strings.Join(outcome.Errors, "; "))
		}
		return nil
	}

	result, bridge, err := build(cfg, log)
	if err != nil {
		return err
	}
	if err := simulate(result, bridge); err != nil && !cfg.Watch {
		return err
	}
	if !cfg.Watch {
		return nil
	}

	fw, err := watcher.NewFileWatcher(watcher.WatcherConfig{
		Root:         cfg.Root,
		Options:      compiler.CompileOptions{Entry: cfg.Entry, StartNode: cfg.Chapter},
		DebounceTime: cfg.Debounce,
		OnCompile: func(result *compiler.CompileResult) {
			bridge := luabridge.New(log)
			if err := bridge.LoadPackage(result.Package); err != nil {
				log.Error("script lua non caricati", zap.Error(err))
				return
			}
			if err := simulate(result, bridge); err != nil {
				log.Warn("simulazione fallita", zap.Error(err))
			}
		},
		Logger: log,
	})
	if err != nil {
		return err
	}
	if err := fw.Start(); err != nil {
		return err
	}
	fmt.Println("👀 In attesa di modifiche (Ctrl+C per uscire)")
	<-ctx.Done()
	return fw.Stop()
}

func printTranscript(out io.Writer, app compiler.AppConfig, result *simulator.SimulationResult) {
	if app.Title != "" {
		fmt.Fprintf(out, "📖 %s\n", app.Title)
	}
	fmt.Fprintln(out, strings.Repeat("─", 50))

	for _, event := range result.Transcript {
		switch event.Kind {
		case "dialog":
			line := event.Dialog
			if line.Name != "" {
				fmt.Fprintf(out, "%s: %s\n", line.Name, line.What)
			} else {
				fmt.Fprintln(out, line.What)
			}
			for i, choice := range line.Choices {
				marker := " "
				if i == line.Chosen {
					marker = ">"
				}
				fmt.Fprintf(out, "  %s %d. %s\n", marker, i+1, choice)
			}
		case "scene":
			fmt.Fprintf(out, "[scena: %s]\n", event.Target)
		default:
			if event.Variant != "" {
				fmt.Fprintf(out, "[%s: %s (%s)]\n", event.Kind, event.Target, event.Variant)
			} else {
				fmt.Fprintf(out, "[%s: %s]\n", event.Kind, event.Target)
			}
		}
	}

	fmt.Fprintln(out, strings.Repeat("─", 50))
	fmt.Fprintf(out, "Passi: %d  Capitoli: %s\n", result.StepCount, strings.Join(result.Path, " → "))
	for _, message := range result.Errors {
		fmt.Fprintf(out, "❌ %s\n", message)
	}
}

// ============================================
// serve
// ============================================

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	var store *storage.SaveStore
	if cfg.SaveDB != "" {
		var err error
		store, err = storage.Open(cfg.SaveDB)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	server := api.NewServer(api.ServerConfig{
		Port:        cfg.Port,
		Root:        cfg.Root,
		Entry:       cfg.Entry,
		CORSOrigins: cfg.CORSOrigins,
		Debug:       cfg.Debug,
		MaxSteps:    cfg.MaxSteps,
		Debounce:    cfg.Debounce,
		Store:       store,
		Logger:      log,
	})
	if cfg.Watch {
		if _, err := server.StartWatcher(cfg.Entry); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("arresto del server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// ============================================
// batch
// ============================================

func batch(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	runner := test.NewTestRunner(test.RunnerConfig{
		BaseDir:   cfg.Root,
		OutputDir: cfg.OutputDir,
		Parallel:  cfg.Parallel,
		MaxSteps:  cfg.MaxSteps,
		Choices:   cfg.Choices,
		Logger:    log,
	})
	summary, err := runner.RunTests(ctx)
	if err != nil {
		return err
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d storie fallite: %s", len(summary.Failed), strings.Join(summary.Failed, ", "))
	}
	return nil
}
