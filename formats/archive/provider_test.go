package archive

import (
	"archive/zip"
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := writer.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestUnpackLoadYieldsOneDocumentPerEntry(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"main.vns":           `import "chapters/one.vns" import "../shared.vns" chapter start { }`,
		"chapters/one.vns":   `chapter one { }`,
		"readme.txt":         "ignorato",
		"chapters/extra.vns": `character bob { name: "Bob" }`,
	})
	provider := NewProvider(fstest.MapFS{"pack/story.vnz": {Data: data}})

	contents, err := provider.UnpackLoad("pack/story.vnz")
	require.NoError(t, err)
	require.Len(t, contents, 3)

	assert.Equal(t, "pack/story.vnz/chapters/extra.vns", contents[0].Name)
	assert.Equal(t, "pack/story.vnz/chapters/one.vns", contents[1].Name)
	assert.Equal(t, "pack/story.vnz/main.vns", contents[2].Name)
	for _, content := range contents {
		assert.Equal(t, "pack/story.vnz", content.Path)
		assert.True(t, content.IsStory())
	}

	assert.Equal(t, []string{"../shared.vns"}, contents[2].Document.Dependencies)
	t.Logf("✅ Archivio con %d documenti", len(contents))
}

func TestUnpackLoadErrors(t *testing.T) {
	provider := NewProvider(fstest.MapFS{
		"broken.vnz": {Data: []byte("not a zip")},
		"syntax.vnz": {Data: buildArchive(t, map[string]string{"a.vns": "chapter {"})},
	})

	_, err := provider.UnpackLoad("missing.vnz")
	assert.Error(t, err)
	_, err = provider.UnpackLoad("broken.vnz")
	assert.Error(t, err)
	_, err = provider.UnpackLoad("syntax.vnz")
	assert.Error(t, err)
}
