package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"

	"vns-engine/formats"
	"vns-engine/parser"
)

// Extension dei pacchetti compressi
const Extension = "vnz"

func init() {
	formats.RegisterFormat(Extension, func(fsys fs.FS) formats.ContentProvider {
		return NewProvider(fsys)
	})
}

// Provider carica archivi zip che contengono più documenti .vns.
// Gli import tra file dello stesso archivio sono già soddisfatti dall'archivio.
type Provider struct {
	formats.PathRules
	fsys fs.FS
}

// NewProvider crea un provider di archivi che legge da fsys
func NewProvider(fsys fs.FS) *Provider {
	return &Provider{fsys: fsys}
}

// UnpackLoad apre l'archivio e parsa ogni voce .vns, in ordine alfabetico
func (p *Provider) UnpackLoad(archivePath string) ([]formats.Content, error) {
	data, err := fs.ReadFile(p.fsys, archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", formats.ErrNotFound, archivePath)
		}
		return nil, fmt.Errorf("errore lettura archivio %s: %w", archivePath, err)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("archivio non valido %s: %w", archivePath, err)
	}

	entries := make(map[string]*zip.File)
	var names []string
	for _, file := range reader.File {
		if file.FileInfo().IsDir() || formats.Extension(file.Name) != formats.DefaultExtension {
			continue
		}
		name := formats.CleanPath(file.Name)
		entries[name] = file
		names = append(names, name)
	}
	sort.Strings(names)

	contents := make([]formats.Content, 0, len(names))
	for _, name := range names {
		doc, err := parseEntry(archivePath, name, entries[name])
		if err != nil {
			return nil, err
		}

		external := doc.Dependencies[:0]
		for _, dependency := range doc.Dependencies {
			if _, internal := entries[formats.JoinPaths(name, dependency)]; !internal {
				external = append(external, dependency)
			}
		}
		doc.Dependencies = external

		contents = append(contents, formats.Content{
			Name:     path.Join(archivePath, name),
			Path:     archivePath,
			Document: doc,
		})
	}
	return contents, nil
}

func parseEntry(archivePath, name string, file *zip.File) (*parser.Document, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("errore apertura %s in %s: %w", name, archivePath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("errore lettura %s in %s: %w", name, archivePath, err)
	}
	return parser.ParseBytes(path.Join(archivePath, name), data)
}
