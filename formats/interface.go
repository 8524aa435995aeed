package formats

import (
	"errors"

	"vns-engine/parser"
)

// ErrNotFound indica un percorso che il provider non riesce a trovare
var ErrNotFound = errors.New("contenuto non trovato")

// Content è un elemento prodotto da un provider.
// Document è nil per i file che non sono storie (script, plugin).
type Content struct {
	Name     string           `json:"name"`
	Path     string           `json:"path"` // percorso da cui risolvere gli import
	Document *parser.Document `json:"document,omitempty"`
	Data     []byte           `json:"-"`
}

// IsStory verifica se il contenuto è un documento .vns
func (c Content) IsStory() bool {
	return c.Document != nil
}

// ContentProvider definisce come trovare e caricare i contenuti di un pacchetto
type ContentProvider interface {
	// SanitizePath normalizza un percorso o lo rifiuta
	SanitizePath(path string) (string, error)

	// JoinPaths risolve relative rispetto al file parent
	JoinPaths(parent, relative string) string

	// UnpackLoad carica un percorso già normalizzato.
	// Un archivio può produrre più documenti.
	UnpackLoad(path string) ([]Content, error)
}
