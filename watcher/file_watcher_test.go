package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vns-engine/compiler"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newStoryDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.vns"), `import "chapters/one.vns"
chapter start { vn.exit() }`)
	writeFile(t, filepath.Join(root, "chapters", "one.vns"), `chapter one { }`)
	return root
}

func TestIsWatchedFile(t *testing.T) {
	assert.True(t, IsWatchedFile("story/main.vns"))
	assert.True(t, IsWatchedFile("bundle.VNZ"))
	assert.True(t, IsWatchedFile("logic.lua"))
	assert.False(t, IsWatchedFile("notes.txt"))
	assert.False(t, IsWatchedFile("main.vns.swp"))
}

func TestEventTypeOf(t *testing.T) {
	assert.Equal(t, EventCreated, eventTypeOf(fsnotify.Create))
	assert.Equal(t, EventModified, eventTypeOf(fsnotify.Write))
	assert.Equal(t, EventDeleted, eventTypeOf(fsnotify.Remove))
	assert.Equal(t, EventRenamed, eventTypeOf(fsnotify.Rename))
	assert.Equal(t, "", eventTypeOf(fsnotify.Chmod))
}

func TestNewFileWatcherRegistersSubdirectories(t *testing.T) {
	root := newStoryDir(t)

	fw, err := NewFileWatcher(WatcherConfig{Root: root})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.watcher.Close() })

	assert.ElementsMatch(t, []string{root, filepath.Join(root, "chapters")}, fw.WatchedPaths())

	require.NoError(t, fw.RemovePath(filepath.Join(root, "chapters")))
	assert.Equal(t, []string{root}, fw.WatchedPaths())
}

func TestNewFileWatcherRequiresRoot(t *testing.T) {
	_, err := NewFileWatcher(WatcherConfig{})
	assert.Error(t, err)
}

func TestRecompile(t *testing.T) {
	root := newStoryDir(t)

	var compiled *compiler.CompileResult
	fw, err := NewFileWatcher(WatcherConfig{
		Root:      root,
		Options:   compiler.CompileOptions{Entry: "main.vns"},
		OnCompile: func(result *compiler.CompileResult) { compiled = result },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.watcher.Close() })

	result := fw.Recompile(filepath.Join(root, "main.vns"))
	require.True(t, result.Success)
	assert.Same(t, result, compiled)
	assert.Same(t, result, fw.LastResult())
	assert.Contains(t, result.Story.Chapters, "one")

	writeFile(t, filepath.Join(root, "main.vns"), `chapter start { `)
	result = fw.Recompile(filepath.Join(root, "main.vns"))
	assert.False(t, result.Success)
	assert.NotNil(t, result.ParseError)

	t.Logf("✅ Ricompilazione: %s", result.ErrorMessage)
}

func TestWatcherEmitsCompileEvents(t *testing.T) {
	root := newStoryDir(t)

	fw, err := NewFileWatcher(WatcherConfig{
		Root:         root,
		Options:      compiler.CompileOptions{Entry: "main.vns"},
		DebounceTime: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	assert.Error(t, fw.Start())

	writeFile(t, filepath.Join(root, "chapters", "one.vns"), `chapter one { vn.exit() }`)

	seen := map[string]bool{}
	timeout := time.After(5 * time.Second)
	for !seen[EventCompileSuccess] {
		select {
		case event := <-fw.Events():
			seen[event.Type] = true
		case <-timeout:
			t.Fatalf("nessuna ricompilazione, eventi: %v", seen)
		}
	}
	assert.True(t, seen[EventModified] || seen[EventCreated])

	require.NoError(t, fw.Stop())
	assert.False(t, fw.IsRunning())
	assert.Error(t, fw.Stop())

	for range fw.Events() {
	}
}
