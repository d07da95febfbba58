package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/automoto/arrowflight/shared/netconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	Reset()
	assert.Equal(t, 20.0, Arrow.Speed)
	assert.Equal(t, 3*time.Second, Arrow.StickDuration)
	assert.Less(t, Arrow.StopDelay, Arrow.CompletionDelay)
	assert.Equal(t, 20*time.Millisecond, Simulation.TickDuration())
}

func TestApplyOverlay(t *testing.T) {
	t.Cleanup(Reset)
	Reset()

	err := Apply([]byte(`
arrow:
  speed: 35
  castMode: sphere
  stickDuration: 5s
  effectKind: ""
simulation:
  gravity: [0, -20, 0]
network:
  statusAddress: ""
  masterUrl: http://localhost:8080
  heartbeatInterval: 10s
`))
	require.NoError(t, err)

	assert.Equal(t, 35.0, Arrow.Speed)
	assert.Equal(t, netconfig.CastSphere, Arrow.CastMode)
	assert.Equal(t, 5*time.Second, Arrow.StickDuration)
	assert.Empty(t, Arrow.EffectKind)
	assert.Equal(t, 0.02, Arrow.SurfaceClearance)
	assert.Equal(t, -20.0, Simulation.Gravity.Y())
	assert.Empty(t, Network.StatusAddress)
	assert.Equal(t, uint(7373), Network.Port)
	assert.Equal(t, "http://localhost:8080", Network.MasterURL)
	assert.Equal(t, 10*time.Second, Network.HeartbeatInterval)
	assert.Equal(t, "arrowflight", Network.RangeName)
}

func TestApplyRejectsInvalidWithoutChanges(t *testing.T) {
	t.Cleanup(Reset)
	Reset()

	tests := []string{
		"arrow:\n  castMode: capsule\n",
		"arrow:\n  speed: 1\n  stopDelay: soon\n",
		"simulation:\n  gravity: [1, 2]\n",
		"simulation:\n  tickRate: 0\n",
		"network:\n  heartbeatInterval: -1s\n",
		"arrow: [",
		"arrow:\n  speed: 0\n",
		"arrow:\n  speed: -5\n",
		"arrow:\n  speed: .nan\n",
		"arrow:\n  speed: .inf\n",
		"arrow:\n  syncRate: 0\n",
		"arrow:\n  straightShotSpeedMultiplier: -1\n",
	}
	for _, raw := range tests {
		assert.Error(t, Apply([]byte(raw)), raw)
		assert.Equal(t, 20.0, Arrow.Speed)
	}
}

func TestLoad(t *testing.T) {
	t.Cleanup(Reset)
	Reset()

	path := filepath.Join(t.TempDir(), "arrowflight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  tickRate: 30\n"), 0o600))
	require.NoError(t, Load(path))
	assert.Equal(t, 30, Simulation.TickRate)

	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml")))
}
