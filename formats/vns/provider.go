package vns

import (
	"errors"
	"fmt"
	"io/fs"

	"vns-engine/formats"
	"vns-engine/parser"
)

func init() {
	formats.RegisterFormat("vns", func(fsys fs.FS) formats.ContentProvider {
		return NewFileProvider(fsys)
	})
}

// FileProvider carica singoli documenti .vns da un file system
type FileProvider struct {
	formats.PathRules
	fsys fs.FS
}

// NewFileProvider crea un provider che legge da fsys
func NewFileProvider(fsys fs.FS) *FileProvider {
	return &FileProvider{fsys: fsys}
}

// UnpackLoad legge e parsa il documento indicato
func (p *FileProvider) UnpackLoad(path string) ([]formats.Content, error) {
	data, err := fs.ReadFile(p.fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", formats.ErrNotFound, path)
		}
		return nil, fmt.Errorf("errore lettura %s: %w", path, err)
	}

	doc, err := parser.ParseBytes(path, data)
	if err != nil {
		return nil, err
	}
	return []formats.Content{{Name: path, Path: path, Document: doc}}, nil
}
