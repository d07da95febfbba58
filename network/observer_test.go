package network

import (
	"testing"

	cfg "github.com/automoto/arrowflight/config"
	"github.com/automoto/arrowflight/server/core"
	"github.com/automoto/arrowflight/shared/gamemath"
	"github.com/automoto/arrowflight/shared/messages"
	"github.com/automoto/arrowflight/shared/netcomponents"
	"github.com/automoto/arrowflight/shared/netconfig"
	"github.com/automoto/arrowflight/shared/replication"
	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestObserver() *Observer {
	return NewObserver(ObserverOptions{
		Gravity:             testGravity,
		InterpolationFactor: 0.1,
		Logger:              zerolog.Nop(),
	})
}

func arrowState(id spawn.ObjectID, effect uint, st netcomponents.NetArrowData) EntityState {
	return EntityState{
		ID:        id,
		Transform: &netcomponents.NetTransformData{Kind: spawn.KindArrow, Rotation: mgl64.QuatIdent()},
		Arrow:     &st,
		Effect:    &netcomponents.NetArrowEffectData{EffectID: effect},
	}
}

func TestObserverMirrorsSnapshot(t *testing.T) {
	o := newTestObserver()

	// the launch can beat the first snapshot
	launch := straightLaunch(50)
	launch.ArrowID = 7
	o.HandleEvent(launch)
	assert.Empty(t, o.ArrowIDs())

	o.Apply([]EntityState{
		arrowState(7, 8, netcomponents.NetArrowData{PointIndex: 1, Moving: true}),
		{
			ID:        8,
			Transform: &netcomponents.NetTransformData{Kind: "effect.trail", Rotation: mgl64.QuatIdent()},
		},
		{
			ID:        3,
			Transform: &netcomponents.NetTransformData{Kind: spawn.KindTarget, Position: mgl64.Vec3{0, 1, 10}, Rotation: mgl64.QuatIdent()},
			Target:    &netcomponents.NetTargetData{Name: "far", Health: 50},
		},
	})
	assert.Equal(t, []spawn.ObjectID{7}, o.ArrowIDs())
	assert.Equal(t, 3, o.Objects().Len())

	target, ok := o.Target(3)
	require.True(t, ok)
	assert.Equal(t, 50.0, target.Health)
	targetObj, _ := o.Objects().Resolve(3)
	assertVec(t, mgl64.Vec3{0, 1, 10}, targetObj.Position(), 1e-12)

	o.Tick(tick)
	pred, ok := o.Predictor(7)
	require.True(t, ok)
	assert.True(t, pred.Launched())
	assert.Equal(t, 2, pred.PredictedIndex())
	require.NotNil(t, pred.Effect().Object())
	assert.Equal(t, spawn.ObjectID(8), pred.Effect().Object().ID())

	// health updates flow through later snapshots
	o.Apply([]EntityState{
		arrowState(7, 8, netcomponents.NetArrowData{PointIndex: 2, Moving: true}),
		{ID: 8, Transform: &netcomponents.NetTransformData{Kind: "effect.trail"}},
		{ID: 3, Target: &netcomponents.NetTargetData{Name: "far", Health: 30}},
	})
	target, _ = o.Target(3)
	assert.Equal(t, 30.0, target.Health)

	// everything absent from a snapshot goes away
	o.Apply(nil)
	assert.Empty(t, o.ArrowIDs())
	assert.Zero(t, o.Objects().Len())
	_, ok = o.Target(3)
	assert.False(t, ok)
}

func TestObserverRoutesEvents(t *testing.T) {
	o := newTestObserver()
	var damage []messages.ArrowDamageEvent
	o.opts.OnDamage = func(e messages.ArrowDamageEvent) { damage = append(damage, e) }

	o.Apply([]EntityState{
		arrowState(1, 0, netcomponents.NetArrowData{PointIndex: 1, Moving: true}),
		arrowState(2, 0, netcomponents.NetArrowData{PointIndex: 1, Moving: true}),
	})

	o.HandleEvent(messages.ArrowDamageEvent{ArrowID: 2, TargetID: 5, Damage: 20})
	o.HandleEvent(messages.LaunchRejected{Reason: "arrow already launched"})
	o.HandleEvent("noise")
	o.Tick(tick)

	require.Len(t, damage, 1)
	assert.Equal(t, uint(2), damage[0].ArrowID)
}

func TestObserverDropsEventsForUnseenArrows(t *testing.T) {
	o := newTestObserver()

	for id := uint(100); id < 110; id++ {
		launch := straightLaunch(10)
		launch.ArrowID = id
		o.HandleEvent(launch)
	}
	for i := 0; i < 2*pendingPerArrow; i++ {
		o.HandleEvent(messages.ArrowDamageEvent{ArrowID: 100, Damage: 1})
	}
	require.Len(t, o.pending, 10)
	assert.Len(t, o.pending[100].events, pendingPerArrow)

	for i := 0; i < pendingSnapshots-1; i++ {
		o.Apply(nil)
	}
	assert.Len(t, o.pending, 10, "events wait a few snapshots")

	o.Apply(nil)
	assert.Empty(t, o.pending)

	// an arrow showing up after its events expired starts unlaunched
	o.Apply([]EntityState{arrowState(100, 0, netcomponents.NetArrowData{PointIndex: 1, Moving: true})})
	o.Tick(tick)
	pred, ok := o.Predictor(100)
	require.True(t, ok)
	assert.False(t, pred.Launched())
}

func TestObserverFlushesEventsWithinGrace(t *testing.T) {
	o := newTestObserver()
	launch := straightLaunch(10)
	launch.ArrowID = 4
	o.HandleEvent(launch)

	o.Apply(nil)
	o.Apply([]EntityState{arrowState(4, 0, netcomponents.NetArrowData{PointIndex: 1, Moving: true})})
	assert.Empty(t, o.pending)

	o.Tick(tick)
	pred, ok := o.Predictor(4)
	require.True(t, ok)
	assert.True(t, pred.Launched())
}

// hubPublisher feeds an authority controller straight into a hub.
type hubPublisher struct{ hub *replication.Hub }

func (h hubPublisher) PublishState(s replication.State) { h.hub.Publish(s) }
func (h hubPublisher) PublishEffect(id spawn.ObjectID)  { h.hub.SetEffect(id) }
func (h hubPublisher) Broadcast(evt any)                { h.hub.Broadcast(evt) }

type planeProber struct{ z float64 }

func (p planeProber) Cast(origin, dir mgl64.Vec3, distance float64, _ netconfig.CastMode, _ float64, _ netconfig.Layer) (core.Hit, bool) {
	if dir.Z() <= 0 || origin.Add(dir.Mul(distance)).Z() < p.z {
		return core.Hit{}, false
	}
	t := (p.z - origin.Z()) / dir.Z()
	return core.Hit{Point: origin.Add(dir.Mul(t)), Normal: mgl64.Vec3{0, 0, -1}, Distance: t}, true
}

type registryPool struct{ *spawn.Registry }

func (r registryPool) Spawn(kind string, pos mgl64.Vec3, rot mgl64.Quat) (*spawn.Object, error) {
	return r.Registry.Spawn(kind, pos, rot), nil
}

func TestObserverFollowsAuthority(t *testing.T) {
	world := spawn.NewRegistry()
	hub := replication.NewHub()
	arrowCfg := cfg.Arrow
	arrowCfg.EffectKind = ""

	authority := core.NewArrowController(core.ArrowOptions{
		Object:    world.Spawn(spawn.KindArrow, mgl64.Vec3{}, mgl64.QuatIdent()),
		Authority: true,
		Config:    arrowCfg,
		Gravity:   testGravity,
		Prober:    planeProber{z: 7.5},
		Pool:      registryPool{world},
		Publisher: hubPublisher{hub},
		Logger:    zerolog.Nop(),
	})

	pred := NewArrowPredictor(PredictorOptions{
		Object:              world.Spawn(spawn.KindArrow, mgl64.Vec3{}, mgl64.QuatIdent()),
		Source:              hub.Subscribe(),
		Resolver:            world,
		Gravity:             testGravity,
		InterpolationFactor: cfg.Arrow.InterpolationFactor,
		Logger:              zerolog.Nop(),
	})

	require.NoError(t, authority.Launch(gamemath.TrajectoryParams{
		LaunchVelocity:    mgl64.Vec3{0, 10, 10},
		PointCount:        50,
		TimeStep:          0.1,
		GravityMultiplier: 1,
	}))

	for i := 0; i < 40 && authority.IsMoving(); i++ {
		authority.FixedUpdate(tick)
		pred.Tick(tick)

		assert.Equal(t, authority.Points(), pred.Points())
		if authority.IsMoving() {
			assert.GreaterOrEqual(t, pred.PredictedIndex(), authority.State().PointIndex)
			assertVec(t, authority.Object().Position(), pred.Position(), 0.15)
		}
	}
	require.Equal(t, netconfig.PhaseStuck, authority.Phase())

	pred.Tick(tick)
	assert.True(t, pred.Stuck())
	assertVec(t, authority.Object().Position(), pred.Object().Position(), 1e-9)
	assertVec(t, gamemath.Forward(authority.Object().Rotation()), gamemath.Forward(pred.Object().Rotation()), 1e-6)
	assert.InDelta(t, 7.5-cfg.Arrow.SurfaceClearance, pred.Object().Position().Z(), 0.02)
}
