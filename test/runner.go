package test

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vns-engine/compiler"
	"vns-engine/formats"
	_ "vns-engine/formats/archive"
	_ "vns-engine/formats/vns"
	"vns-engine/luabridge"
	"vns-engine/simulator"
	"vns-engine/vm"
)

// SummaryFile è il nome del riassunto scritto nella cartella di output
const SummaryFile = "summary.json"

// RunnerConfig configurazione del test runner
type RunnerConfig struct {
	BaseDir   string    // cartella con le storie
	OutputDir string    // cartella dei report JSON
	Parallel  int       // storie elaborate in parallelo (default 4)
	MaxSteps  int       // limite di passi per simulazione
	Choices   []int     // scelte usate dalle simulazioni
	Output    io.Writer // riassunto testuale (default os.Stdout)
	Logger    *zap.Logger
}

// TestRunner compila, valida e simula tutte le storie di una cartella
type TestRunner struct {
	config RunnerConfig
	fsys   fs.FS
}

// EntryReport è il report JSON di una storia
type EntryReport struct {
	Entry      string                      `json:"entry"`
	CheckedAt  string                      `json:"checked_at"`
	Compiled   bool                        `json:"compiled"`
	Error      string                      `json:"error,omitempty"`
	Documents  []string                    `json:"documents,omitempty"`
	Warnings   []string                    `json:"warnings,omitempty"`
	Issues     []simulator.Issue           `json:"issues,omitempty"`
	Simulation *simulator.SimulationResult `json:"simulation,omitempty"`
	Duration   string                      `json:"duration"`
}

// Passed indica se la storia è compilata, senza errori statici e con simulazione completa
func (r *EntryReport) Passed() bool {
	if !r.Compiled || r.Simulation == nil || !r.Simulation.Success || !r.Simulation.Completed {
		return false
	}
	for _, issue := range r.Issues {
		if issue.Severity == "error" {
			return false
		}
	}
	return true
}

// TestSummary riassunto dei test
type TestSummary struct {
	TotalFiles          int      `json:"total_files"`
	CompileSuccess      int      `json:"compile_success"`
	CompileFailed       int      `json:"compile_failed"`
	ValidationIssues    int      `json:"validation_issues"`
	SimulationCompleted int      `json:"simulation_completed"`
	SimulationFailed    int      `json:"simulation_failed"`
	Passed              int      `json:"passed"`
	Failed              []string `json:"failed"`
	Duration            string   `json:"duration"`
}

// NewTestRunner crea un nuovo test runner
func NewTestRunner(config RunnerConfig) *TestRunner {
	if config.Parallel <= 0 {
		config.Parallel = 4
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = simulator.DefaultMaxSteps
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.OutputDir == "" {
		config.OutputDir = filepath.Join(config.BaseDir, "test_results")
	}
	return &TestRunner{config: config, fsys: os.DirFS(config.BaseDir)}
}

// FindEntries restituisce i file .vns e .vnz della cartella, ordinati.
// I file che iniziano con "_" sono parziali importati da altri e non vengono eseguiti.
func (tr *TestRunner) FindEntries() ([]string, error) {
	var entries []string

	err := fs.WalkDir(tr.fsys, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() {
			if path != "." && (strings.HasPrefix(name, ".") || filepath.Join(tr.config.BaseDir, path) == filepath.Clean(tr.config.OutputDir)) {
				return fs.SkipDir
			}
			return nil
		}
		ext := formats.Extension(name)
		if (ext == formats.DefaultExtension || ext == "vnz") && !strings.HasPrefix(name, "_") {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("impossibile leggere %s: %w", tr.config.BaseDir, err)
	}

	sort.Strings(entries)
	return entries, nil
}

// RunTests elabora tutte le storie e scrive i report
func (tr *TestRunner) RunTests(ctx context.Context) (*TestSummary, error) {
	startTime := time.Now()

	entries, err := tr.FindEntries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("nessuna storia trovata in %s", tr.config.BaseDir)
	}
	if err := os.MkdirAll(tr.config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("impossibile creare %s: %w", tr.config.OutputDir, err)
	}

	reports := make([]*EntryReport, len(entries))
	var done atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(tr.config.Parallel)
	for i, entry := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report := tr.runEntry(entry)
			reports[i] = report
			tr.config.Logger.Info("storia elaborata",
				zap.String("entry", entry),
				zap.Bool("passed", report.Passed()),
				zap.Int32("done", done.Add(1)),
				zap.Int("total", len(entries)),
			)
			return tr.saveJSON(tr.reportPath(entry), report)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &TestSummary{TotalFiles: len(entries), Failed: []string{}}
	for _, report := range reports {
		if report.Compiled {
			summary.CompileSuccess++
		} else {
			summary.CompileFailed++
		}
		summary.ValidationIssues += len(report.Issues)
		if report.Simulation != nil {
			if report.Simulation.Completed && report.Simulation.Success {
				summary.SimulationCompleted++
			} else {
				summary.SimulationFailed++
			}
		}
		if report.Passed() {
			summary.Passed++
		} else {
			summary.Failed = append(summary.Failed, report.Entry)
		}
	}
	summary.Duration = time.Since(startTime).String()

	if err := tr.saveJSON(filepath.Join(tr.config.OutputDir, SummaryFile), summary); err != nil {
		return nil, err
	}
	tr.printSummary(reports, summary)
	return summary, nil
}

// runEntry compila, valida e simula una storia
func (tr *TestRunner) runEntry(entry string) *EntryReport {
	start := time.Now()
	report := &EntryReport{
		Entry:     entry,
		CheckedAt: start.Format(time.RFC3339),
	}
	defer func() { report.Duration = time.Since(start).String() }()

	result, err := compiler.Build(tr.fsys, compiler.CompileOptions{Entry: entry}, tr.config.Logger)
	report.Warnings = result.Warnings
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Compiled = true
	report.Documents = result.Documents

	bridge := luabridge.New(tr.config.Logger)
	if err := bridge.LoadPackage(result.Package); err != nil {
		report.Error = err.Error()
		return report
	}

	sim := simulator.NewPathSimulator(result.Story, simulator.Options{
		MaxSteps: tr.config.MaxSteps,
		Chooser:  simulator.ScriptedChoices(tr.config.Choices...),
		Logger:   tr.config.Logger,
		Install:  []func(*vm.Registry){bridge.Install},
	})
	report.Issues = simulator.ValidateStory(result.Story, sim.Registry())
	report.Simulation = sim.Simulate(result.App.Entry, "")
	return report
}

// printSummary stampa l'esito di ogni storia e il riassunto
func (tr *TestRunner) printSummary(reports []*EntryReport, summary *TestSummary) {
	out := tr.config.Output

	fmt.Fprintf(out, "\n📁 %d storie in %s\n", summary.TotalFiles, tr.config.BaseDir)
	fmt.Fprintln(out, strings.Repeat("─", 50))
	for _, report := range reports {
		fmt.Fprintf(out, "\n📄 %s\n", report.Entry)
		if !report.Compiled {
			fmt.Fprintf(out, "   ❌ Compilazione FAILED: %s\n", report.Error)
			continue
		}
		fmt.Fprintf(out, "   ✅ Compilazione OK - %d documenti\n", len(report.Documents))
		for _, issue := range report.Issues {
			fmt.Fprintf(out, "   ⚠️  %s\n", issue)
		}
		if report.Simulation != nil {
			if report.Passed() {
				fmt.Fprintf(out, "   ✅ Simulazione OK - %d passi\n", report.Simulation.StepCount)
			} else {
				fmt.Fprintf(out, "   ❌ Simulazione FAILED: %s\n", strings.Join(report.Simulation.Errors, "; "))
			}
		}
		if report.Error != "" {
			fmt.Fprintf(out, "   ❌ %s\n", report.Error)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("═", 50))
	fmt.Fprintln(out, "📊 RIASSUNTO TEST")
	fmt.Fprintln(out, strings.Repeat("═", 50))
	fmt.Fprintf(out, "   Storie testate:   %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "   Compilazione OK:  %d/%d\n", summary.CompileSuccess, summary.TotalFiles)
	fmt.Fprintf(out, "   Simulazione OK:   %d/%d\n", summary.SimulationCompleted, summary.TotalFiles)
	fmt.Fprintf(out, "   Superate:         %d/%d\n", summary.Passed, summary.TotalFiles)
	fmt.Fprintf(out, "   Durata:           %s\n", summary.Duration)
	fmt.Fprintln(out, strings.Repeat("═", 50))
}

// reportPath genera il path del report di una storia
func (tr *TestRunner) reportPath(entry string) string {
	name := strings.ReplaceAll(entry, "/", "_")
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(tr.config.OutputDir, name+"_report.json")
}

// saveJSON salva un oggetto come JSON
func (tr *TestRunner) saveJSON(path string, data any) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("serializzazione %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		return fmt.Errorf("scrittura %s: %w", path, err)
	}
	return nil
}
