package attach

import (
	"errors"
	"testing"

	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registryPool struct {
	*spawn.Registry
	despawned []spawn.ObjectID
	fail      bool
}

func (p *registryPool) Spawn(kind string, pos mgl64.Vec3, rot mgl64.Quat) (*spawn.Object, error) {
	if p.fail {
		return nil, errors.New("pool exhausted")
	}
	return p.Registry.Spawn(kind, pos, rot), nil
}

func (p *registryPool) Despawn(id spawn.ObjectID) bool {
	p.despawned = append(p.despawned, id)
	return p.Registry.Despawn(id)
}

func TestSpawnFollowAttachRelease(t *testing.T) {
	pool := &registryPool{Registry: spawn.NewRegistry()}
	host := pool.Registry.Spawn(spawn.KindArrow, mgl64.Vec3{}, mgl64.QuatIdent())

	var e Effect
	require.NoError(t, e.Spawn(pool, spawn.KindEffect, host.Position(), host.Rotation()))
	require.NotZero(t, e.ID())

	host.SetPosition(mgl64.Vec3{0, 1, 2})
	e.Follow(host)
	assert.Equal(t, mgl64.Vec3{0, 1, 2}, e.Object().Position())

	require.NoError(t, e.AttachTo(host))
	assert.True(t, e.Attached())
	assert.Same(t, host, e.Object().Parent())

	// second attach is a no-op
	other := pool.Registry.Spawn(spawn.KindTarget, mgl64.Vec3{}, mgl64.QuatIdent())
	require.NoError(t, e.AttachTo(other))
	assert.Same(t, host, e.Object().Parent())

	host.SetPosition(mgl64.Vec3{0, 1, 5})
	assert.InDelta(t, 5, e.Object().Position().Z(), 1e-9)

	id := e.ID()
	e.Release(pool)
	assert.Equal(t, []spawn.ObjectID{id}, pool.despawned)
	assert.Zero(t, e.ID())
	_, ok := pool.Resolve(id)
	assert.False(t, ok)
}

func TestSpawnFailureLeavesBindingEmpty(t *testing.T) {
	pool := &registryPool{Registry: spawn.NewRegistry(), fail: true}
	var e Effect
	assert.Error(t, e.Spawn(pool, spawn.KindEffect, mgl64.Vec3{}, mgl64.QuatIdent()))
	assert.Zero(t, e.ID())
	assert.Nil(t, e.Object())
}

func TestTryResolveRetriesUntilSpawned(t *testing.T) {
	reg := spawn.NewRegistry()
	host := reg.Spawn(spawn.KindArrow, mgl64.Vec3{3, 0, 0}, mgl64.QuatIdent())

	var e Effect
	assert.False(t, e.TryResolve(reg, host))

	e.SetID(99)
	assert.False(t, e.TryResolve(reg, host))

	_, err := reg.Adopt(99, spawn.KindEffect, mgl64.Vec3{}, mgl64.QuatIdent())
	require.NoError(t, err)
	assert.True(t, e.TryResolve(reg, host))
	assert.Equal(t, host.Position(), e.Object().Position())

	e.Release(nil)
	_, ok := reg.Resolve(99)
	assert.True(t, ok, "observers must not despawn")
	assert.Nil(t, e.Object())
}

func TestSetIDDropsStaleObject(t *testing.T) {
	reg := spawn.NewRegistry()
	a, _ := reg.Adopt(1, spawn.KindEffect, mgl64.Vec3{}, mgl64.QuatIdent())

	var e Effect
	e.SetID(1)
	require.True(t, e.TryResolve(reg, nil))
	assert.Same(t, a, e.Object())

	e.SetID(1)
	assert.Same(t, a, e.Object())

	e.SetID(2)
	assert.Nil(t, e.Object())
}
