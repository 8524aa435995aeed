package formats

import (
	"fmt"
	"io/fs"
)

// DefaultExtension è l'estensione aggiunta ai percorsi che non ne hanno una
const DefaultExtension = "vns"

// ExtensionProvider sceglie il provider in base all'estensione del file
type ExtensionProvider struct {
	PathRules
	DefaultExtension string
	providers        map[string]ContentProvider
}

// NewExtensionProvider crea un provider vuoto
func NewExtensionProvider(defaultExtension string) *ExtensionProvider {
	return &ExtensionProvider{
		DefaultExtension: normalizeExtension(defaultExtension),
		providers:        make(map[string]ContentProvider),
	}
}

// NewDefaultProvider usa tutti i formati registrati, leggendo da fsys
func NewDefaultProvider(fsys fs.FS) *ExtensionProvider {
	provider := NewExtensionProvider(DefaultExtension)
	for _, extension := range GetAvailableFormats() {
		provider.Register(extension, GetRegisteredFormat(extension, fsys))
	}
	return provider
}

// Register associa un provider a un'estensione
func (p *ExtensionProvider) Register(extension string, provider ContentProvider) *ExtensionProvider {
	p.providers[normalizeExtension(extension)] = provider
	return p
}

// Extensions restituisce le estensioni gestite
func (p *ExtensionProvider) Extensions() []string {
	extensions := make([]string, 0, len(p.providers))
	for extension := range p.providers {
		extensions = append(extensions, extension)
	}
	return extensions
}

// SanitizePath normalizza il percorso e aggiunge l'estensione di default se manca
func (p *ExtensionProvider) SanitizePath(path string) (string, error) {
	cleaned, err := p.PathRules.SanitizePath(path)
	if err != nil {
		return "", err
	}
	if Extension(cleaned) == "" && p.DefaultExtension != "" {
		cleaned += "." + p.DefaultExtension
	}
	if _, ok := p.providers[Extension(cleaned)]; !ok {
		return "", fmt.Errorf("estensione non supportata: %q", path)
	}
	return cleaned, nil
}

func (p *ExtensionProvider) UnpackLoad(path string) ([]Content, error) {
	provider, ok := p.providers[Extension(path)]
	if !ok {
		return nil, fmt.Errorf("estensione non supportata: %q", path)
	}
	return provider.UnpackLoad(path)
}
