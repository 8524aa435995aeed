package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vns-engine/parser"
	"vns-engine/vm"
)

func openTestStore(t *testing.T) *SaveStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "saves.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleState() vm.State {
	return vm.State{
		Frames: []vm.Frame{{Chapter: "start", Position: 3}, {Chapter: "shop", Position: 0}},
		Globals: map[string]parser.Value{
			"gold":  parser.Number(12),
			"tint":  parser.Color(0xff00ffff),
			"items": parser.Array(parser.Text("key")),
		},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.EqualError(t, err, "percorso del database obbligatorio")
}

func TestSaveAndLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "slot1", "main.vns", sampleState()))

	record, err := store.Load(ctx, "slot1")
	require.NoError(t, err)
	assert.Equal(t, "main.vns", record.Story)
	assert.Equal(t, sampleState().Frames, record.State.Frames)
	require.Len(t, record.State.Globals, 3)
	assert.True(t, record.State.Globals["tint"].Equal(parser.Color(0xff00ffff)))
	assert.False(t, record.UpdatedAt.IsZero())

	t.Logf("✅ Slot caricato: %d frame", len(record.State.Frames))
}

func TestSaveOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "slot1", "a.vns", sampleState()))
	require.NoError(t, store.Save(ctx, "slot1", "b.vns", vm.State{}))

	record, err := store.Load(ctx, "slot1")
	require.NoError(t, err)
	assert.Equal(t, "b.vns", record.Story)
	assert.Empty(t, record.State.Frames)

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestListAndDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", "main.vns", sampleState()))
	require.NoError(t, store.Save(ctx, "b", "main.vns", sampleState()))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	require.NoError(t, store.Delete(ctx, "a"))
	err = store.Delete(ctx, "a")
	assert.True(t, errors.Is(err, ErrSaveNotFound))

	_, err = store.Load(ctx, "a")
	assert.True(t, errors.Is(err, ErrSaveNotFound))
}

func TestValidation(t *testing.T) {
	store := openTestStore(t)

	err := store.Save(context.Background(), " ", "main.vns", vm.State{})
	assert.ErrorIs(t, err, ErrSlotRequired)
	assert.EqualError(t, err, "slot obbligatorio")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Save(ctx, "x", "main.vns", vm.State{}), context.Canceled)

	var nilStore *SaveStore
	assert.ErrorIs(t, nilStore.Save(context.Background(), "x", "", vm.State{}), ErrNotConfigured)
	assert.NoError(t, nilStore.Close())
}
