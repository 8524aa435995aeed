package vm

import (
	"sort"

	"go.uber.org/zap"

	"vns-engine/parser"
)

// Frame è il cursore di esecuzione dentro un capitolo
type Frame struct {
	Chapter  string `json:"chapter"`
	Position int    `json:"position"`
}

// StepEvent descrive un singolo passo eseguito
type StepEvent struct {
	Frame  Frame              `json:"frame"`
	Item   parser.ChapterItem `json:"item"`
	Result Result             `json:"result"`
	Depth  int                `json:"depth"`
}

// Vm esegue i capitoli un elemento alla volta.
// Non è sicura per l'uso concorrente: chi la condivide deve serializzare gli accessi.
type Vm struct {
	registry FunctionRegistry
	context  *Context
	chapters map[string]*parser.Chapter
	frames   []Frame
	logger   *zap.Logger
	observer func(StepEvent)
}

// New crea una VM con contesto e globali vuoti
func New(registry FunctionRegistry, logger *zap.Logger) *Vm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vm{
		registry: registry,
		context:  NewContext(),
		chapters: make(map[string]*parser.Chapter),
		logger:   logger,
	}
}

// SetRegistry sostituisce le funzioni native. Pila, contesto e globali restano invariati.
func (vm *Vm) SetRegistry(registry FunctionRegistry) {
	vm.registry = registry
}

// Context restituisce il contesto condiviso con le funzioni native
func (vm *Vm) Context() *Context {
	return vm.context
}

// Globals restituisce le variabili globali della VM
func (vm *Vm) Globals() *Globals {
	return vm.context.Globals()
}

// SetObserver registra una callback chiamata dopo ogni azione eseguita
func (vm *Vm) SetObserver(observer func(StepEvent)) {
	vm.observer = observer
}

// ============================================
// CAPITOLI
// ============================================

// AddStory registra tutti i capitoli di una storia
func (vm *Vm) AddStory(story *parser.Story) {
	for name, chapter := range story.Chapters {
		vm.AddChapter(name, chapter)
	}
}

func (vm *Vm) AddChapter(name string, chapter *parser.Chapter) {
	vm.chapters[name] = chapter
}

// RemoveChapter rimuove un capitolo, anche durante l'esecuzione
func (vm *Vm) RemoveChapter(name string) (*parser.Chapter, bool) {
	chapter, ok := vm.chapters[name]
	delete(vm.chapters, name)
	return chapter, ok
}

// RemoveChapters rimuove i capitoli per cui predicate restituisce true
func (vm *Vm) RemoveChapters(predicate func(name string, chapter *parser.Chapter) bool) {
	for name, chapter := range vm.chapters {
		if predicate(name, chapter) {
			delete(vm.chapters, name)
		}
	}
}

func (vm *Vm) Chapter(name string) (*parser.Chapter, bool) {
	chapter, ok := vm.chapters[name]
	return chapter, ok
}

// ChapterNames restituisce i nomi dei capitoli in ordine alfabetico
func (vm *Vm) ChapterNames() []string {
	names := make([]string, 0, len(vm.chapters))
	for name := range vm.chapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ============================================
// ESECUZIONE
// ============================================

// Enter apre un nuovo frame sul capitolo, alla label indicata se esiste.
// Restituisce false senza modificare lo stato se il capitolo non esiste.
func (vm *Vm) Enter(chapter, label string) bool {
	target, ok := vm.chapters[chapter]
	if !ok {
		return false
	}
	vm.frames = append(vm.frames, Frame{Chapter: chapter, Position: labelPosition(target, label)})
	return true
}

// Exit chiude il frame corrente e fa avanzare il chiamante
func (vm *Vm) Exit() {
	if len(vm.frames) == 0 {
		return
	}
	vm.frames = vm.frames[:len(vm.frames)-1]
	if top := len(vm.frames) - 1; top >= 0 {
		vm.frames[top].Position++
	}
}

func (vm *Vm) IsRunning() bool {
	return len(vm.frames) > 0
}

// Frames restituisce una copia della pila, dal frame più esterno
func (vm *Vm) Frames() []Frame {
	frames := make([]Frame, len(vm.frames))
	copy(frames, vm.frames)
	return frames
}

// Current restituisce il frame in cima alla pila
func (vm *Vm) Current() (Frame, bool) {
	if len(vm.frames) == 0 {
		return Frame{}, false
	}
	return vm.frames[len(vm.frames)-1], true
}

// Step esegue un solo elemento del frame corrente.
// Un errore di dispatch lascia la pila invariata.
func (vm *Vm) Step() error {
	top := len(vm.frames) - 1
	if top < 0 {
		return nil
	}
	frame := vm.frames[top]

	chapter, ok := vm.chapters[frame.Chapter]
	if !ok {
		vm.logger.Debug("capitolo non più disponibile", zap.String("chapter", frame.Chapter))
		vm.frames = vm.frames[:top]
		return nil
	}

	if frame.Position < 0 || frame.Position >= len(chapter.Items) {
		vm.logger.Debug("fine del capitolo", zap.String("chapter", frame.Chapter))
		vm.Exit()
		return nil
	}

	item := chapter.Items[frame.Position]
	if item.Kind == parser.ItemLabel {
		vm.frames[top].Position++
		return nil
	}

	result, err := Evaluate(item.Action, vm.registry, vm.context)
	if err != nil {
		vm.logger.Error("dispatch fallito",
			zap.String("chapter", frame.Chapter),
			zap.Int("position", frame.Position),
			zap.Error(err))
		return err
	}

	vm.logger.Debug("azione eseguita",
		zap.String("chapter", frame.Chapter),
		zap.Int("position", frame.Position),
		zap.String("action", item.Action.Path()),
		zap.Stringer("result", result))

	vm.apply(result)

	if vm.observer != nil {
		vm.observer(StepEvent{Frame: frame, Item: item, Result: result, Depth: top + 1})
	}
	return nil
}

func (vm *Vm) apply(result Result) {
	top := len(vm.frames) - 1
	if top < 0 {
		return
	}
	current := &vm.frames[top]

	switch result.Kind {
	case Continue:
		current.Position++

	case JumpTo:
		name := result.Chapter
		if name == "" {
			name = current.Chapter
		}
		target, ok := vm.chapters[name]
		if !ok {
			current.Position++
			return
		}
		current.Chapter = name
		current.Position = labelPosition(target, result.Label)

	case Enter:
		name := result.Chapter
		if name == "" {
			name = current.Chapter
		}
		if !vm.Enter(name, result.Label) {
			current.Position++
		}

	case Exit:
		vm.Exit()
	}
}

// Run esegue passi finché la VM non si ferma o si raggiunge maxSteps (0 = senza limite).
// Restituisce il numero di passi eseguiti.
func (vm *Vm) Run(maxSteps int) (int, error) {
	steps := 0
	for vm.IsRunning() {
		if maxSteps > 0 && steps >= maxSteps {
			break
		}
		if err := vm.Step(); err != nil {
			return steps, err
		}
		steps++
	}
	return steps, nil
}

func labelPosition(chapter *parser.Chapter, label string) int {
	if label == "" {
		return 0
	}
	if index, ok := chapter.FindLabel(label); ok {
		return index
	}
	return 0
}
