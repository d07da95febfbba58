package gamemath

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var earth = mgl64.Vec3{0, -9.8, 0}

func TestGenerateTrajectoryScenario(t *testing.T) {
	points := GenerateTrajectory(TrajectoryParams{
		LaunchVelocity:    mgl64.Vec3{0, 10, 10},
		PointCount:        50,
		TimeStep:          0.1,
		GravityMultiplier: 1,
	}, earth)

	require.Len(t, points, 50)
	assert.Equal(t, mgl64.Vec3{}, points[0])
	assert.InDelta(t, 0, points[10].X(), 1e-9)
	assert.InDelta(t, 5.1, points[10].Y(), 1e-9)
	assert.InDelta(t, 10, points[10].Z(), 1e-9)
}

func TestGenerateTrajectoryDeterministic(t *testing.T) {
	p := TrajectoryParams{
		Start:             mgl64.Vec3{1.25, -3, 7.5},
		LaunchVelocity:    mgl64.Vec3{3.3, 12.1, -0.7},
		PointCount:        120,
		TimeStep:          0.0333,
		GravityMultiplier: 0.75,
	}
	a := GenerateTrajectory(p, earth)
	b := GenerateTrajectory(p, earth)
	assert.Equal(t, a, b)
}

func TestClamped(t *testing.T) {
	tests := []struct {
		name string
		in   TrajectoryParams
		want TrajectoryParams
	}{
		{
			name: "valid input untouched",
			in:   TrajectoryParams{PointCount: 10, TimeStep: 0.05, GravityMultiplier: 2},
			want: TrajectoryParams{PointCount: 10, TimeStep: 0.05, GravityMultiplier: 2},
		},
		{
			name: "point count floor",
			in:   TrajectoryParams{PointCount: -4, TimeStep: 0.05, GravityMultiplier: 1},
			want: TrajectoryParams{PointCount: MinPointCount, TimeStep: 0.05, GravityMultiplier: 1},
		},
		{
			name: "zero time step",
			in:   TrajectoryParams{PointCount: 5, TimeStep: 0, GravityMultiplier: 1},
			want: TrajectoryParams{PointCount: 5, TimeStep: MinTimeStep, GravityMultiplier: 1},
		},
		{
			name: "negative gravity multiplier",
			in:   TrajectoryParams{PointCount: 5, TimeStep: 1, GravityMultiplier: -3},
			want: TrajectoryParams{PointCount: 5, TimeStep: 1, GravityMultiplier: 0},
		},
		{
			name: "point count ceiling",
			in:   TrajectoryParams{PointCount: math.MaxInt, TimeStep: 0.05},
			want: TrajectoryParams{PointCount: MaxPointCount, TimeStep: 0.05},
		},
		{
			name: "non-finite vectors zeroed",
			in: TrajectoryParams{
				Start:          mgl64.Vec3{math.Inf(1), 2, math.NaN()},
				LaunchVelocity: mgl64.Vec3{math.NaN(), 10, math.Inf(-1)},
				PointCount:     5, TimeStep: 0.1, GravityMultiplier: 1,
			},
			want: TrajectoryParams{
				Start:          mgl64.Vec3{0, 2, 0},
				LaunchVelocity: mgl64.Vec3{0, 10, 0},
				PointCount:     5, TimeStep: 0.1, GravityMultiplier: 1,
			},
		},
		{
			name: "huge vectors bounded",
			in:   TrajectoryParams{LaunchVelocity: mgl64.Vec3{1e300, -1e300, 3}, PointCount: 5, TimeStep: 0.1},
			want: TrajectoryParams{LaunchVelocity: mgl64.Vec3{MaxCoordinate, -MaxCoordinate, 3}, PointCount: 5, TimeStep: 0.1},
		},
		{
			name: "non-finite scalars",
			in:   TrajectoryParams{PointCount: 5, TimeStep: math.NaN(), GravityMultiplier: math.NaN()},
			want: TrajectoryParams{PointCount: 5, TimeStep: MinTimeStep, GravityMultiplier: 0},
		},
		{
			name: "infinite scalars",
			in:   TrajectoryParams{PointCount: 5, TimeStep: math.Inf(1), GravityMultiplier: math.Inf(1)},
			want: TrajectoryParams{PointCount: 5, TimeStep: MaxTimeStep, GravityMultiplier: MaxGravityMultiplier},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Clamped())
		})
	}
}

func TestGenerateTrajectoryStaysFinite(t *testing.T) {
	points := GenerateTrajectory(TrajectoryParams{
		Start:             mgl64.Vec3{math.NaN(), 0, 0},
		LaunchVelocity:    mgl64.Vec3{1e308, 10, math.Inf(1)},
		PointCount:        MaxPointCount * 2,
		TimeStep:          math.Inf(1),
		GravityMultiplier: math.Inf(1),
	}, earth)

	require.Len(t, points, MaxPointCount)
	for _, p := range points {
		require.True(t, Finite(p), "point %v", p)
	}
}

func TestSanitizePoints(t *testing.T) {
	in := []mgl64.Vec3{{math.NaN(), 1, 2}, {3, math.Inf(-1), 1e12}}
	out := SanitizePoints(in)

	assert.Equal(t, []mgl64.Vec3{{0, 1, 2}, {3, 0, MaxCoordinate}}, out)
	assert.True(t, math.IsNaN(in[0].X()), "input left untouched")
	assert.Len(t, SanitizePoints(make([]mgl64.Vec3, MaxPointCount+5)), MaxPointCount)
}

func TestGenerateTrajectoryClampsInsteadOfRejecting(t *testing.T) {
	points := GenerateTrajectory(TrajectoryParams{
		LaunchVelocity: mgl64.Vec3{1, 0, 0},
		PointCount:     0,
		TimeStep:       -1,
	}, earth)

	require.Len(t, points, MinPointCount)
	assert.InDelta(t, MinTimeStep, points[1].X(), 1e-12)
}

func TestInferTrajectoryParams(t *testing.T) {
	points := []mgl64.Vec3{{0, 0, 0}, {0, 3, 4}, {0, 5, 8}}

	p, ok := InferTrajectoryParams(points, 20, 0.0333, 1)
	require.True(t, ok)
	assert.Equal(t, points[0], p.Start)
	assert.Equal(t, 3, p.PointCount)
	assert.InDelta(t, 12, p.LaunchVelocity.Y(), 1e-9)
	assert.InDelta(t, 16, p.LaunchVelocity.Z(), 1e-9)

	_, ok = InferTrajectoryParams(points[:1], 20, 0.0333, 1)
	assert.False(t, ok)
}

func TestInferTrajectoryParamsSpeedFloor(t *testing.T) {
	p, ok := InferTrajectoryParams([]mgl64.Vec3{{}, {1, 0, 0}}, 0, 0.0333, 1)
	require.True(t, ok)
	assert.InDelta(t, MinSpeed, p.LaunchVelocity.Len(), 1e-12)
}
