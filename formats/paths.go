package formats

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// CleanPath normalizza un percorso con separatori "/" relativo alla radice
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// JoinPaths risolve relative nella cartella di parent.
// Un percorso che inizia con "/" è relativo alla radice.
func JoinPaths(parent, relative string) string {
	if strings.HasPrefix(relative, "/") {
		return CleanPath(relative)
	}
	return CleanPath(path.Join(path.Dir(CleanPath(parent)), relative))
}

// Extension restituisce l'estensione senza punto, in minuscolo
func Extension(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// PathRules implementa SanitizePath e JoinPaths per i provider basati su fs.FS
type PathRules struct{}

func (PathRules) SanitizePath(p string) (string, error) {
	cleaned := CleanPath(p)
	if cleaned == "." || cleaned == "" || !fs.ValidPath(cleaned) {
		return "", fmt.Errorf("percorso non valido: %q", p)
	}
	return cleaned, nil
}

func (PathRules) JoinPaths(parent, relative string) string {
	return JoinPaths(parent, relative)
}
