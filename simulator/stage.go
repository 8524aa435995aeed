package simulator

import (
	"fmt"

	"vns-engine/parser"
	"vns-engine/vm"
)

// StageKey è la chiave del Context che contiene lo stato della presentazione
const StageKey = "vn-stage"

// ChoiceGlobal è la globale in cui viene salvato l'indice della scelta
const ChoiceGlobal = "CHOICE"

// DialogLine è una battuta, con le eventuali scelte
type DialogLine struct {
	Who     string   `json:"who,omitempty"`
	Name    string   `json:"name,omitempty"` // nome visualizzato del personaggio
	What    string   `json:"what"`
	Choices []string `json:"choices,omitempty"`
	Chosen  int      `json:"chosen"`
}

// Event è una voce della trascrizione
type Event struct {
	Kind    string      `json:"kind"` // dialog, scene, show, hide, show_screen, hide_screen
	Dialog  *DialogLine `json:"dialog,omitempty"`
	Target  string      `json:"target,omitempty"`
	Variant string      `json:"variant,omitempty"`
}

// Screen è una schermata aperta sopra la scena
type Screen struct {
	Name       string `json:"name"`
	ModuleName string `json:"module_name"`
}

// Stage è lo stato della presentazione senza renderer
type Stage struct {
	Story      *parser.Story     `json:"-"`
	Chooser    Chooser           `json:"-"`
	Scene      string            `json:"scene"`
	Characters map[string]string `json:"characters"` // personaggio visibile → variante
	Screens    []Screen          `json:"screens"`
	Dialog     *DialogLine       `json:"dialog,omitempty"`
	Transcript []Event           `json:"transcript"`
}

// NewStage crea uno stage vuoto
func NewStage(story *parser.Story, chooser Chooser) *Stage {
	if chooser == nil {
		chooser = FirstChoice()
	}
	return &Stage{
		Story:      story,
		Chooser:    chooser,
		Characters: make(map[string]string),
		Screens:    []Screen{},
		Transcript: []Event{},
	}
}

// Attach collega lo stage al contesto della VM
func (s *Stage) Attach(ctx *vm.Context) *Stage {
	ctx.Set(StageKey, s)
	return s
}

// StageFrom restituisce lo stage del contesto, creandolo se manca
func StageFrom(ctx *vm.Context) *Stage {
	if stage, ok := ctx.Get(StageKey); ok {
		if s, ok := stage.(*Stage); ok {
			return s
		}
	}
	return NewStage(nil, nil).Attach(ctx)
}

func (s *Stage) displayName(who string) string {
	if s.Story == nil {
		return who
	}
	if character, ok := s.Story.Characters[who]; ok {
		return character.Properties.Text("name", who)
	}
	return who
}

// ============================================
// FUNZIONI DI PRESENTAZIONE
// ============================================

// InstallPresentation registra vn_dialog, vn_scene, vn_character e vn_screen
func InstallPresentation(registry *vm.Registry) {
	registry.Add(vm.NewCheckedFunction("vn_dialog", "say",
		[]string{"who", "what", "choices", "duration", "ease_in", "ease_out", "ease_in_out", "non_blocking"}, say))
	registry.Add(vm.NewCheckedFunction("vn_scene", "scene",
		[]string{"name", "duration", "ease_in", "ease_out", "ease_in_out"}, scene))
	registry.Add(vm.NewCheckedFunction("vn_character", "show",
		[]string{"character", "variant", "duration", "ease_in", "ease_out", "ease_in_out"}, showCharacter))
	registry.Add(vm.NewCheckedFunction("vn_character", "hide",
		[]string{"character", "duration", "ease_in", "ease_out", "ease_in_out"}, hideCharacter))
	registry.Add(vm.NewCheckedFunction("vn_screen", "show_screen", []string{"name", "module_name"}, showScreen))
	registry.Add(vm.NewCheckedFunction("vn_screen", "hide_screen", []string{"name", "module_name"}, hideScreen))
}

func requireText(args vm.Args, name string) (string, error) {
	text, ok := args.Text(name)
	if !ok {
		return "", fmt.Errorf("il parametro %s deve essere testo, ricevuto %s", name, args.Get(name).Kind())
	}
	return text, nil
}

func say(ctx *vm.Context, args vm.Args) (vm.Result, error) {
	what, err := requireText(args, "what")
	if err != nil {
		return vm.Result{}, err
	}
	stage := StageFrom(ctx)
	line := &DialogLine{What: what, Chosen: -1}
	if who, ok := args.Text("who"); ok {
		line.Who = who
		line.Name = stage.displayName(who)
	}

	if items, ok := args.Get("choices").AsArray(); ok {
		for i, item := range items {
			choice, ok := item.AsText()
			if !ok {
				return vm.Result{}, fmt.Errorf("choices[%d] deve essere testo, ricevuto %s", i, item.Kind())
			}
			line.Choices = append(line.Choices, choice)
		}
	}
	if len(line.Choices) > 0 {
		line.Chosen = clampChoice(stage.Chooser.Choose(*line), len(line.Choices))
		ctx.Globals().Set(ChoiceGlobal, parser.Number(float64(line.Chosen)))
	}

	stage.Dialog = line
	stage.Transcript = append(stage.Transcript, Event{Kind: "dialog", Dialog: line})
	return vm.ContinueResult(), nil
}

func scene(ctx *vm.Context, args vm.Args) (vm.Result, error) {
	name, err := requireText(args, "name")
	if err != nil {
		return vm.Result{}, err
	}
	stage := StageFrom(ctx)
	stage.Scene = name
	stage.Transcript = append(stage.Transcript, Event{Kind: "scene", Target: name})
	return vm.ContinueResult(), nil
}

func showCharacter(ctx *vm.Context, args vm.Args) (vm.Result, error) {
	character, err := requireText(args, "character")
	if err != nil {
		return vm.Result{}, err
	}
	variant, ok := args.Text("variant")
	if !ok {
		variant = "default"
	}
	stage := StageFrom(ctx)
	stage.Characters[character] = variant
	stage.Transcript = append(stage.Transcript, Event{Kind: "show", Target: character, Variant: variant})
	return vm.ContinueResult(), nil
}

func hideCharacter(ctx *vm.Context, args vm.Args) (vm.Result, error) {
	character, err := requireText(args, "character")
	if err != nil {
		return vm.Result{}, err
	}
	stage := StageFrom(ctx)
	delete(stage.Characters, character)
	stage.Transcript = append(stage.Transcript, Event{Kind: "hide", Target: character})
	return vm.ContinueResult(), nil
}

func screenArgs(args vm.Args) (Screen, error) {
	name, err := requireText(args, "name")
	if err != nil {
		return Screen{}, err
	}
	moduleName, err := requireText(args, "module_name")
	if err != nil {
		return Screen{}, err
	}
	return Screen{Name: name, ModuleName: moduleName}, nil
}

// showScreen porta la schermata in cima, rimuovendo una copia già aperta
func showScreen(ctx *vm.Context, args vm.Args) (vm.Result, error) {
	screen, err := screenArgs(args)
	if err != nil {
		return vm.Result{}, err
	}
	stage := StageFrom(ctx)
	stage.Screens = append(removeScreen(stage.Screens, screen), screen)
	stage.Transcript = append(stage.Transcript, Event{Kind: "show_screen", Target: screen.Name, Variant: screen.ModuleName})
	return vm.ContinueResult(), nil
}

func hideScreen(ctx *vm.Context, args vm.Args) (vm.Result, error) {
	screen, err := screenArgs(args)
	if err != nil {
		return vm.Result{}, err
	}
	stage := StageFrom(ctx)
	stage.Screens = removeScreen(stage.Screens, screen)
	stage.Transcript = append(stage.Transcript, Event{Kind: "hide_screen", Target: screen.Name, Variant: screen.ModuleName})
	return vm.ContinueResult(), nil
}

func removeScreen(screens []Screen, screen Screen) []Screen {
	result := screens[:0]
	for _, existing := range screens {
		if existing != screen {
			result = append(result, existing)
		}
	}
	return result
}
