package formats

import (
	"io/fs"
	"sort"
	"strings"
	"sync"
)

// Factory crea un provider che legge da fsys
type Factory func(fsys fs.FS) ContentProvider

// formatRegistry mantiene i provider registrati per estensione
var (
	registry     = make(map[string]Factory)
	registryLock sync.RWMutex
)

func init() {
	RegisterFormat("lua", NewAssetProvider)
	RegisterFormat("plugin", NewAssetProvider)
}

// RegisterFormat registra un nuovo formato
// Chiamato dai package dei singoli formati nel loro init()
func RegisterFormat(extension string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[normalizeExtension(extension)] = factory
}

// GetRegisteredFormat restituisce il provider per un formato registrato
func GetRegisteredFormat(extension string, fsys fs.FS) ContentProvider {
	registryLock.RLock()
	defer registryLock.RUnlock()

	factory, exists := registry[normalizeExtension(extension)]
	if !exists {
		return nil
	}
	return factory(fsys)
}

// GetAvailableFormats restituisce le estensioni registrate in ordine alfabetico
func GetAvailableFormats() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	formats := make([]string, 0, len(registry))
	for name := range registry {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}

// IsFormatRegistered verifica se un formato è registrato
func IsFormatRegistered(extension string) bool {
	registryLock.RLock()
	defer registryLock.RUnlock()

	_, exists := registry[normalizeExtension(extension)]
	return exists
}

func normalizeExtension(extension string) string {
	return strings.ToLower(strings.TrimPrefix(extension, "."))
}
