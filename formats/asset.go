package formats

import (
	"errors"
	"fmt"
	"io/fs"
)

// AssetProvider carica file che si possono importare ma non sono storie.
// Il loro contenuto viene passato così com'è (es. script Lua).
type AssetProvider struct {
	PathRules
	fsys fs.FS
}

// NewAssetProvider crea il provider per gli asset
func NewAssetProvider(fsys fs.FS) ContentProvider {
	return &AssetProvider{fsys: fsys}
}

func (p *AssetProvider) UnpackLoad(path string) ([]Content, error) {
	data, err := fs.ReadFile(p.fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("errore lettura asset %s: %w", path, err)
	}
	return []Content{{Name: path, Path: path, Data: data}}, nil
}
