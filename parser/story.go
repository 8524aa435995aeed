package parser

import "time"

// Properties è un insieme nome → valore (config, personaggi, scene)
type Properties map[string]Value

// Get restituisce la proprietà richiesta, None se assente
func (p Properties) Get(name string) Value {
	return p[name]
}

// Text restituisce una proprietà testuale con un fallback
func (p Properties) Text(name, fallback string) string {
	if text, ok := p[name].AsText(); ok {
		return text
	}
	return fallback
}

// Number restituisce una proprietà numerica con un fallback
func (p Properties) Number(name string, fallback float64) float64 {
	if number, ok := p[name].AsNumber(); ok {
		return number
	}
	return fallback
}

// Config rappresenta un blocco "config"
type Config struct {
	Properties Properties `json:"properties"`
}

// Character rappresenta un blocco "character"
type Character struct {
	Properties Properties `json:"properties"`
}

// Scene rappresenta un blocco "scene"
type Scene struct {
	Properties Properties `json:"properties"`
}

// ItemKind distingue label e azioni dentro un capitolo
type ItemKind int

const (
	ItemLabel ItemKind = iota
	ItemAction
)

// Action rappresenta la chiamata di una funzione nativa
type Action struct {
	Name      string           `json:"name"`
	Namespace string           `json:"namespace,omitempty"` // vuoto = qualsiasi namespace
	Params    map[string]Value `json:"params"`
}

// Path restituisce il nome completo "namespace.nome"
func (a *Action) Path() string {
	if a.Namespace == "" {
		return a.Name
	}
	return a.Namespace + "." + a.Name
}

// ChapterItem è una label oppure un'azione
type ChapterItem struct {
	Kind   ItemKind `json:"kind"`
	Label  string   `json:"label,omitempty"`
	Action *Action  `json:"action,omitempty"`
}

// LabelItem crea un elemento label
func LabelItem(name string) ChapterItem {
	return ChapterItem{Kind: ItemLabel, Label: name}
}

// ActionItem crea un elemento azione
func ActionItem(action *Action) ChapterItem {
	return ChapterItem{Kind: ItemAction, Action: action}
}

// String descrive l'elemento per log e report
func (i ChapterItem) String() string {
	if i.Kind == ItemLabel {
		return "label " + i.Label
	}
	return i.Action.Path() + "(...)"
}

// Chapter è una sequenza ordinata di label e azioni
type Chapter struct {
	Items []ChapterItem `json:"items"`
}

// FindLabel restituisce l'indice della prima label con quel nome
func (c *Chapter) FindLabel(name string) (int, bool) {
	for i, item := range c.Items {
		if item.Kind == ItemLabel && item.Label == name {
			return i, true
		}
	}
	return 0, false
}

// Labels restituisce i nomi delle label in ordine
func (c *Chapter) Labels() []string {
	var labels []string
	for _, item := range c.Items {
		if item.Kind == ItemLabel {
			labels = append(labels, item.Label)
		}
	}
	return labels
}

// Story rappresenta l'insieme di config, personaggi, scene e capitoli
type Story struct {
	Configs    map[string]*Config    `json:"configs"`
	Characters map[string]*Character `json:"characters"`
	Scenes     map[string]*Scene     `json:"scenes"`
	Chapters   map[string]*Chapter   `json:"chapters"`
}

// NewStory crea una storia vuota
func NewStory() *Story {
	return &Story{
		Configs:    make(map[string]*Config),
		Characters: make(map[string]*Character),
		Scenes:     make(map[string]*Scene),
		Chapters:   make(map[string]*Chapter),
	}
}

// Merge copia dentro s gli elementi di other.
// In caso di nomi uguali vince other.
func (s *Story) Merge(other *Story) {
	if other == nil {
		return
	}
	for name, config := range other.Configs {
		s.Configs[name] = config
	}
	for name, character := range other.Characters {
		s.Characters[name] = character
	}
	for name, scene := range other.Scenes {
		s.Scenes[name] = scene
	}
	for name, chapter := range other.Chapters {
		s.Chapters[name] = chapter
	}
}

// Document è il risultato del parsing di un singolo file
type Document struct {
	Name         string    `json:"name"`
	Dependencies []string  `json:"dependencies"` // senza duplicati, in ordine di apparizione
	Story        *Story    `json:"story"`
	ParsedAt     time.Time `json:"parsed_at"`
}

// addDependency aggiunge un import ignorando i duplicati
func (d *Document) addDependency(path string) {
	for _, existing := range d.Dependencies {
		if existing == path {
			return
		}
	}
	d.Dependencies = append(d.Dependencies, path)
}
