package simulator

import (
	"fmt"

	"go.uber.org/zap"

	"vns-engine/library"
	"vns-engine/parser"
	"vns-engine/vm"
)

// DefaultMaxSteps limita le simulazioni che non terminano
const DefaultMaxSteps = 10000

// Options opzioni della simulazione
type Options struct {
	MaxSteps int
	Chooser  Chooser
	Logger   *zap.Logger
	Install  []func(registry *vm.Registry) // funzioni native aggiuntive
}

// PathSimulator esegue una storia senza renderer
type PathSimulator struct {
	story    *parser.Story
	options  Options
	registry *vm.Registry
}

// VariableChange rappresenta il cambiamento di una variabile
type VariableChange struct {
	Name     string `json:"name"`
	Previous any    `json:"previous"`
	Current  any    `json:"current"`
	Delta    any    `json:"delta,omitempty"` // Solo per numeri
	Deleted  bool   `json:"deleted,omitempty"`
}

// StepResult risultato di una singola azione
type StepResult struct {
	Index    int                       `json:"index"`
	Chapter  string                    `json:"chapter"`
	Position int                       `json:"position"`
	Action   string                    `json:"action"`
	Result   string                    `json:"result"`
	Depth    int                       `json:"depth"`
	Changes  map[string]VariableChange `json:"changes"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// SimulationResult risultato completo della simulazione
type SimulationResult struct {
	Success       bool           `json:"success"`
	Completed     bool           `json:"completed"` // la VM si è fermata da sola
	Path          []string       `json:"path"`      // capitoli attraversati
	Steps         []StepResult   `json:"steps"`
	StepCount     int            `json:"step_count"`
	Transcript    []Event        `json:"transcript"`
	FinalState    map[string]any `json:"final_state"`
	Errors        []string       `json:"errors,omitempty"`
	TotalWarnings int            `json:"total_warnings"`
}

// NewRegistry crea un registry con la libreria di base, vn_debug e le funzioni di presentazione
func NewRegistry(logger *zap.Logger, install ...func(registry *vm.Registry)) *vm.Registry {
	registry := vm.NewRegistry()
	library.Install(registry)
	library.InstallDebug(registry, logger)
	InstallPresentation(registry)
	for _, fn := range install {
		fn(registry)
	}
	return registry
}

// NewPathSimulator crea un nuovo simulatore
func NewPathSimulator(story *parser.Story, options Options) *PathSimulator {
	if options.MaxSteps <= 0 {
		options.MaxSteps = DefaultMaxSteps
	}
	if options.Chooser == nil {
		options.Chooser = FirstChoice()
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return &PathSimulator{
		story:    story,
		options:  options,
		registry: NewRegistry(options.Logger, options.Install...),
	}
}

// Registry restituisce le funzioni disponibili agli script
func (ps *PathSimulator) Registry() *vm.Registry {
	return ps.registry
}

// Simulate esegue la storia a partire da chapter/label fino alla fine o al limite di passi
func (ps *PathSimulator) Simulate(chapter, label string) *SimulationResult {
	result := &SimulationResult{
		Success:    true,
		Path:       []string{},
		Steps:      []StepResult{},
		FinalState: make(map[string]any),
		Errors:     []string{},
	}

	machine := vm.New(ps.registry, ps.options.Logger)
	machine.AddStory(ps.story)
	stage := NewStage(ps.story, ps.options.Chooser).Attach(machine.Context())

	if !machine.Enter(chapter, label) {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("capitolo iniziale '%s' non trovato", chapter))
		return result
	}

	var event *vm.StepEvent
	machine.SetObserver(func(e vm.StepEvent) { event = &e })

	for machine.IsRunning() && result.StepCount < ps.options.MaxSteps {
		if frame, ok := machine.Current(); ok {
			result.Path = appendChapter(result.Path, frame.Chapter)
		}

		before := machine.Globals().Snapshot()
		event = nil
		if err := machine.Step(); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, err.Error())
			ps.options.Logger.Error("simulazione interrotta", zap.Error(err))
			break
		}
		result.StepCount++
		if event == nil {
			continue
		}

		step := StepResult{
			Index:    len(result.Steps) + 1,
			Chapter:  event.Frame.Chapter,
			Position: event.Frame.Position,
			Action:   event.Item.Action.Path(),
			Result:   event.Result.String(),
			Depth:    event.Depth,
			Changes:  diffGlobals(before, machine.Globals().Snapshot()),
		}
		step.Warnings = ps.generateWarnings(machine, event.Result, step.Changes)
		result.TotalWarnings += len(step.Warnings)
		result.Steps = append(result.Steps, step)
	}

	result.Completed = !machine.IsRunning()
	if !result.Completed && result.Success {
		result.Errors = append(result.Errors, fmt.Sprintf("limite di %d passi raggiunto", ps.options.MaxSteps))
	}

	for name, value := range machine.Globals().Snapshot() {
		result.FinalState[name] = value.Interface()
	}
	result.Transcript = stage.Transcript
	return result
}

func appendChapter(path []string, chapter string) []string {
	if len(path) > 0 && path[len(path)-1] == chapter {
		return path
	}
	return append(path, chapter)
}

// diffGlobals calcola i cambiamenti tra due stati delle globali
func diffGlobals(before, after map[string]parser.Value) map[string]VariableChange {
	changes := make(map[string]VariableChange)
	for name, current := range after {
		previous, existed := before[name]
		if existed && previous.Equal(current) {
			continue
		}
		change := VariableChange{Name: name, Current: current.Interface()}
		if existed {
			change.Previous = previous.Interface()
			prevNum, prevIsNum := previous.AsNumber()
			currNum, currIsNum := current.AsNumber()
			if prevIsNum && currIsNum {
				change.Delta = currNum - prevNum
			}
		}
		changes[name] = change
	}
	for name, previous := range before {
		if _, exists := after[name]; !exists {
			changes[name] = VariableChange{Name: name, Previous: previous.Interface(), Deleted: true}
		}
	}
	return changes
}

// generateWarnings genera warning per una singola azione
func (ps *PathSimulator) generateWarnings(machine *vm.Vm, result vm.Result, changes map[string]VariableChange) []string {
	warnings := []string{}

	if result.Kind == vm.JumpTo || result.Kind == vm.Enter {
		if result.Chapter != "" {
			if _, ok := machine.Chapter(result.Chapter); !ok {
				warnings = append(warnings, fmt.Sprintf("⚠️ capitolo '%s' non trovato, azione ignorata", result.Chapter))
			}
		}
	}

	for name, change := range changes {
		if change.Deleted {
			warnings = append(warnings, fmt.Sprintf("⚠️ %s è stata eliminata", name))
			continue
		}
		if change.Previous != nil && change.Current != nil &&
			fmt.Sprintf("%T", change.Previous) != fmt.Sprintf("%T", change.Current) {
			warnings = append(warnings, fmt.Sprintf("⚠️ %s ha cambiato tipo: %v → %v", name, change.Previous, change.Current))
		}
	}
	return warnings
}
