package network

import (
	"math"
	"testing"
	"time"

	"github.com/automoto/arrowflight/shared/gamemath"
	"github.com/automoto/arrowflight/shared/messages"
	"github.com/automoto/arrowflight/shared/replication"
	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 50 * time.Millisecond

var testGravity = mgl64.Vec3{0, -9.8, 0}

type predictorHarness struct {
	reg    *spawn.Registry
	hub    *replication.Hub
	pred   *ArrowPredictor
	damage []messages.ArrowDamageEvent
}

func newPredictorHarness(t *testing.T) *predictorHarness {
	t.Helper()
	h := &predictorHarness{
		reg: spawn.NewRegistry(),
		hub: replication.NewHub(),
	}
	h.pred = NewArrowPredictor(PredictorOptions{
		Object:              h.reg.Spawn(spawn.KindArrow, mgl64.Vec3{}, mgl64.QuatIdent()),
		Source:              h.hub.Subscribe(),
		Resolver:            h.reg,
		Gravity:             testGravity,
		InterpolationFactor: 0.1,
		Logger:              zerolog.Nop(),
		OnDamage: func(e messages.ArrowDamageEvent) {
			h.damage = append(h.damage, e)
		},
	})
	return h
}

// straightLaunch flies one unit per point along +Z at 20 u/s, so each 50ms
// tick covers exactly one segment.
func straightLaunch(points int) messages.ArrowLaunchEvent {
	return messages.ArrowLaunchEvent{
		ArrowID:         1,
		LaunchVelocity:  mgl64.Vec3{0, 0, 10},
		PointCount:      points,
		TimeStep:        0.1,
		Speed:           20,
		AutoOrient:      true,
		OrientSmoothing: 10,
	}
}

func assertVec(t *testing.T, want, got mgl64.Vec3, delta float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], delta, "component %d of %v", i, got)
	}
}

func TestPredictorLaunch(t *testing.T) {
	h := newPredictorHarness(t)
	h.pred.Tick(tick)
	assert.False(t, h.pred.Launched())

	evt := straightLaunch(50)
	h.hub.Broadcast(evt)
	h.pred.Tick(tick)

	require.True(t, h.pred.Launched())
	assert.True(t, h.pred.Moving())
	want := gamemath.GenerateTrajectory(h.pred.Params(), testGravity)
	assert.Equal(t, want, h.pred.Points())
	assert.Equal(t, 2, h.pred.PredictedIndex())
	assertVec(t, mgl64.Vec3{0, 0, 1}, h.pred.Object().Position(), 1e-6)
	assertVec(t, mgl64.Vec3{0, 0, 1}, gamemath.Forward(h.pred.Rotation()), 1e-6)
}

func TestPredictorCatchesUpToReplicatedIndex(t *testing.T) {
	h := newPredictorHarness(t)
	h.hub.Broadcast(straightLaunch(50))

	for i := 0; i < 50 && h.pred.PredictedIndex() < 9; i++ {
		h.pred.Tick(tick)
	}
	require.Equal(t, 9, h.pred.PredictedIndex())

	h.hub.Publish(replication.State{
		Position:   h.pred.Points()[11],
		Velocity:   mgl64.Vec3{0, 0, 20},
		PointIndex: 12,
		Moving:     true,
	})
	h.pred.Tick(tick)

	assert.GreaterOrEqual(t, h.pred.PredictedIndex(), 12)
	assert.True(t, h.pred.Moving())
}

func TestPredictorBlendsRenderedPose(t *testing.T) {
	h := newPredictorHarness(t)
	h.hub.Publish(replication.State{
		Position:   mgl64.Vec3{1, 0, 0},
		Velocity:   mgl64.Vec3{0, 0, 10},
		PointIndex: 1,
		Moving:     true,
	})
	h.hub.Broadcast(straightLaunch(50))
	h.pred.Tick(tick)

	// predicted (0,0,1) eased a tenth of the way toward (1,0,0)
	assertVec(t, mgl64.Vec3{0.1, 0, 0.9}, h.pred.Position(), 1e-6)
	assertVec(t, mgl64.Vec3{0, 0, 19}, h.pred.Velocity(), 1e-6)
	assertVec(t, mgl64.Vec3{0, 0, 1}, h.pred.Predicted().Position, 1e-6)
	assertVec(t, h.pred.Position(), h.pred.Object().Position(), 1e-12)
}

func TestPredictorStuck(t *testing.T) {
	h := newPredictorHarness(t)
	target := h.reg.Spawn(spawn.KindTarget, mgl64.Vec3{0, 0, 6}, mgl64.QuatIdent())
	effect := h.reg.Spawn(spawn.KindEffect, mgl64.Vec3{9, 9, 9}, mgl64.QuatIdent())

	h.hub.SetEffect(effect.ID())
	h.hub.Broadcast(straightLaunch(50))
	h.pred.Tick(tick)

	require.Same(t, effect, h.pred.Effect().Object())
	assertVec(t, h.pred.Object().Position(), effect.Position(), 1e-12)

	h.hub.Broadcast(messages.ArrowStuckEvent{
		ArrowID:   1,
		Position:  mgl64.Vec3{0, 0, 5},
		Forward:   mgl64.Vec3{1, 0, 0},
		HasParent: true,
		ParentID:  uint(target.ID()),
	})
	h.pred.Tick(tick)

	arrow := h.pred.Object()
	assert.True(t, h.pred.Stuck())
	assert.False(t, h.pred.Moving())
	assert.Same(t, target, arrow.Parent())
	assert.Equal(t, target.ID(), h.pred.ParentID())
	assertVec(t, mgl64.Vec3{0, 0, 5}, arrow.Position(), 1e-9)
	assertVec(t, mgl64.Vec3{1, 0, 0}, gamemath.Forward(arrow.Rotation()), 1e-9)
	assert.Same(t, arrow, effect.Parent())
	assert.True(t, h.pred.Effect().Attached())

	// terminal: neither ticks nor a replayed launch move it again
	h.hub.Broadcast(straightLaunch(50))
	h.pred.Tick(tick)
	h.pred.Tick(tick)
	assertVec(t, mgl64.Vec3{0, 0, 5}, arrow.Position(), 1e-9)

	// and it rides along with its target
	target.SetPosition(mgl64.Vec3{0, 2, 6})
	assertVec(t, mgl64.Vec3{0, 2, 5}, arrow.Position(), 1e-9)
	assertVec(t, mgl64.Vec3{0, 2, 5}, effect.Position(), 1e-9)
}

func TestPredictorEffectResolvesLate(t *testing.T) {
	h := newPredictorHarness(t)
	h.hub.SetEffect(99)
	h.hub.Broadcast(straightLaunch(50))
	h.pred.Tick(tick)
	assert.Nil(t, h.pred.Effect().Object())

	effect, err := h.reg.Adopt(99, spawn.KindEffect, mgl64.Vec3{}, mgl64.QuatIdent())
	require.NoError(t, err)
	h.pred.Tick(tick)

	assert.Same(t, effect, h.pred.Effect().Object())
	assertVec(t, h.pred.Object().Position(), effect.Position(), 1e-12)
}

func TestPredictorIgnoresDuplicateLaunch(t *testing.T) {
	h := newPredictorHarness(t)
	h.hub.Broadcast(straightLaunch(50))
	for i := 0; i < 4; i++ {
		h.pred.Tick(tick)
	}
	before := h.pred.PredictedIndex()

	h.hub.Broadcast(straightLaunch(50))
	h.pred.Tick(tick)
	assert.Greater(t, h.pred.PredictedIndex(), before)
}

func TestPredictorStopsWithAuthority(t *testing.T) {
	h := newPredictorHarness(t)
	h.hub.Broadcast(straightLaunch(50))
	h.pred.Tick(tick)

	h.hub.Publish(replication.State{Position: mgl64.Vec3{0, 0, 2.5}, PointIndex: 3, Moving: false})
	h.pred.Tick(tick)

	assert.False(t, h.pred.Moving())
	assertVec(t, mgl64.Vec3{0, 0, 2.5}, h.pred.Object().Position(), 1e-9)

	h.pred.Tick(tick)
	assertVec(t, mgl64.Vec3{0, 0, 2.5}, h.pred.Object().Position(), 1e-9)
}

func TestPredictorReachesLastPoint(t *testing.T) {
	h := newPredictorHarness(t)
	h.hub.Broadcast(straightLaunch(5))

	ticks := 0
	for ; ticks < 20 && (ticks == 0 || h.pred.Moving()); ticks++ {
		h.pred.Tick(tick)
	}
	assert.False(t, h.pred.Moving())
	assert.Equal(t, 5, h.pred.PredictedIndex())
	assertVec(t, h.pred.Points()[4], h.pred.Predicted().Position, 1e-6)
}

func TestPredictorInvalidSpeedStillLands(t *testing.T) {
	for _, speed := range []float64{0, -20, math.NaN(), math.Inf(1)} {
		h := newPredictorHarness(t)
		evt := straightLaunch(2)
		evt.Speed = speed
		evt.TimeStep = gamemath.MinTimeStep
		h.hub.Broadcast(evt)

		for i := 0; i < 100 && (i == 0 || h.pred.Moving()); i++ {
			h.pred.Tick(tick)
		}
		assert.False(t, h.pred.Moving(), "speed %v", speed)
		assert.Equal(t, 2, h.pred.PredictedIndex())
	}
}

func TestPredictorDamageEvent(t *testing.T) {
	h := newPredictorHarness(t)
	h.hub.Broadcast(messages.ArrowDamageEvent{ArrowID: 1, TargetID: 4, Damage: 20})
	h.pred.Tick(tick)

	require.Len(t, h.damage, 1)
	assert.Equal(t, uint(4), h.damage[0].TargetID)
}
