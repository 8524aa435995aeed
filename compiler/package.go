package compiler

import (
	"fmt"

	"go.uber.org/zap"

	"vns-engine/formats"
	"vns-engine/parser"
)

// Package raccoglie i documenti di una storia seguendo gli import
type Package struct {
	Files  map[string]*parser.Document
	Assets []formats.Content

	order  []string
	loaded map[string]bool
	logger *zap.Logger
}

// NewPackage crea un pacchetto vuoto
func NewPackage(logger *zap.Logger) *Package {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Package{
		Files:  make(map[string]*parser.Document),
		loaded: make(map[string]bool),
		logger: logger,
	}
}

// Load carica entry e tutte le sue dipendenze
func Load(entry string, provider formats.ContentProvider, logger *zap.Logger) (*Package, error) {
	pkg := NewPackage(logger)
	if err := pkg.Load(entry, provider); err != nil {
		return nil, err
	}
	return pkg, nil
}

// Load carica un percorso e le sue dipendenze in profondità.
// Il percorso viene segnato come caricato prima di visitare gli import,
// quindi i cicli e i diamanti vengono caricati una sola volta.
func (p *Package) Load(path string, provider formats.ContentProvider) error {
	sanitized, err := provider.SanitizePath(path)
	if err != nil {
		return err
	}
	if p.loaded[sanitized] {
		return nil
	}
	p.loaded[sanitized] = true

	contents, err := provider.UnpackLoad(sanitized)
	if err != nil {
		return fmt.Errorf("errore caricamento %s: %w", sanitized, err)
	}

	for _, content := range contents {
		if !content.IsStory() {
			p.Assets = append(p.Assets, content)
			p.logger.Debug("asset caricato", zap.String("path", content.Path))
			continue
		}

		p.insert(content.Name, content.Document)
		p.logger.Debug("documento caricato",
			zap.String("name", content.Name),
			zap.Strings("dependencies", content.Document.Dependencies))

		for _, dependency := range content.Document.Dependencies {
			if err := p.Load(provider.JoinPaths(content.Path, dependency), provider); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Package) insert(name string, doc *parser.Document) {
	if _, exists := p.Files[name]; !exists {
		p.order = append(p.order, name)
	}
	p.Files[name] = doc
}

// Order restituisce i nomi dei documenti in ordine di caricamento
func (p *Package) Order() []string {
	order := make([]string, len(p.order))
	copy(order, p.order)
	return order
}

// AssetsWithExtension restituisce gli asset con l'estensione indicata
func (p *Package) AssetsWithExtension(extension string) []formats.Content {
	var result []formats.Content
	for _, asset := range p.Assets {
		if formats.Extension(asset.Path) == extension {
			result = append(result, asset)
		}
	}
	return result
}

// Compile unisce le storie in ordine di caricamento: a parità di nome vince l'ultima
func (p *Package) Compile() *parser.Story {
	story := parser.NewStory()
	for _, name := range p.order {
		story.Merge(p.Files[name].Story)
	}
	return story
}
