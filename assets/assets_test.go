package assets

import (
	"testing"

	"github.com/automoto/arrowflight/shared/leveldata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedArenas(t *testing.T) {
	names, err := ArenaNames(FS(), "arenas")
	require.NoError(t, err)
	assert.Contains(t, names, "range")

	arenas := MustLoadArenas(leveldata.DefaultPixelsPerMeter)
	require.Contains(t, arenas, "range")
}

func TestLoadRange(t *testing.T) {
	arena, err := LoadArena(FS(), "arenas", "range", 16)
	require.NoError(t, err)

	assert.InDelta(t, 80.0, arena.Width, 1e-9)
	assert.InDelta(t, 30.0, arena.Height, 1e-9)
	require.Len(t, arena.Solids, 3)
	require.Len(t, arena.Targets, 4)

	// sorted left to right
	assert.Equal(t, "near", arena.Targets[0].Name)
	assert.Equal(t, "far", arena.Targets[3].Name)
	assert.InDelta(t, 50.0, arena.Targets[3].Health, 1e-9)
	assert.False(t, arena.Targets[2].Networked)

	floor := arena.Solids[0]
	assert.InDelta(t, 0.0, floor.Box.Min.Y(), 1e-9)
	assert.InDelta(t, 2.0, floor.Box.Max.Y(), 1e-9)
}

func TestOpenFallsBackToEmbedded(t *testing.T) {
	fsys := Open(t.TempDir() + "/missing")
	_, err := LoadArena(fsys, "arenas", "range", 16)
	assert.NoError(t, err)
}
