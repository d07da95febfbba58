package gamemath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MinPointCount is the shortest trajectory that still has a first segment.
	MinPointCount = 2
	// MaxPointCount bounds what one launch may allocate.
	MaxPointCount = 10000
	// MinTimeStep keeps sample times strictly increasing.
	MinTimeStep = 0.0001
	MaxTimeStep = 1.0

	MaxGravityMultiplier = 100.0
	// MaxCoordinate bounds start and launch velocity components so every
	// generated point stays finite.
	MaxCoordinate = 1e6

	// MinSpeed is the slowest a flight may advance.
	MinSpeed = 0.01
)

// TrajectoryParams seed a flight. Every participant regenerates the same
// points from them, so they are the only thing that crosses the wire.
type TrajectoryParams struct {
	Start             mgl64.Vec3
	LaunchVelocity    mgl64.Vec3
	PointCount        int
	TimeStep          float64
	GravityMultiplier float64
}

// Clamped coerces out-of-range values to the nearest valid one. Components
// that are not real numbers become zero.
func (p TrajectoryParams) Clamped() TrajectoryParams {
	p.Start = clampVec(Sanitize(p.Start), MaxCoordinate)
	p.LaunchVelocity = clampVec(Sanitize(p.LaunchVelocity), MaxCoordinate)
	p.PointCount = min(max(p.PointCount, MinPointCount), MaxPointCount)
	if math.IsNaN(p.TimeStep) {
		p.TimeStep = MinTimeStep
	}
	p.TimeStep = mgl64.Clamp(p.TimeStep, MinTimeStep, MaxTimeStep)
	if math.IsNaN(p.GravityMultiplier) {
		p.GravityMultiplier = 0
	}
	p.GravityMultiplier = mgl64.Clamp(p.GravityMultiplier, 0, MaxGravityMultiplier)
	return p
}

func clampVec(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	for i := range v {
		v[i] = mgl64.Clamp(v[i], -limit, limit)
	}
	return v
}

// GenerateTrajectory samples the ballistic curve at PointCount evenly spaced
// times. The arithmetic order is fixed so authority and observers produce
// bit-identical points.
func GenerateTrajectory(p TrajectoryParams, gravity mgl64.Vec3) []mgl64.Vec3 {
	p = p.Clamped()
	half := gravity.Mul(p.GravityMultiplier).Mul(0.5)

	points := make([]mgl64.Vec3, p.PointCount)
	for i := range points {
		t := float64(i) * p.TimeStep
		points[i] = p.Start.Add(p.LaunchVelocity.Mul(t)).Add(half.Mul(t * t))
	}
	return points
}

// InferTrajectoryParams rebuilds launch parameters from a pre-rendered point
// sequence: the start is the first point and the launch velocity points along
// the first segment at the given speed. ok is false for fewer than two points.
// Callers are expected to pass points through SanitizePoints first.
func InferTrajectoryParams(points []mgl64.Vec3, speed, timeStep, gravityMultiplier float64) (TrajectoryParams, bool) {
	if len(points) < MinPointCount {
		return TrajectoryParams{}, false
	}

	p := TrajectoryParams{
		Start:             points[0],
		LaunchVelocity:    Direction(points[0], points[1]).Mul(max(speed, MinSpeed)),
		PointCount:        len(points),
		TimeStep:          timeStep,
		GravityMultiplier: gravityMultiplier,
	}
	return p.Clamped(), true
}

// Direction returns the unit vector from a to b, or zero when they coincide.
func Direction(a, b mgl64.Vec3) mgl64.Vec3 {
	d := b.Sub(a)
	l := d.Len()
	if l < 1e-12 {
		return mgl64.Vec3{}
	}
	return d.Mul(1 / l)
}

// SanitizePoints returns a copy of a pre-rendered sequence, at most
// MaxPointCount long, with non-finite components zeroed and every component
// within MaxCoordinate.
func SanitizePoints(points []mgl64.Vec3) []mgl64.Vec3 {
	n := min(len(points), MaxPointCount)
	out := make([]mgl64.Vec3, n)
	for i := range out {
		out[i] = clampVec(Sanitize(points[i]), MaxCoordinate)
	}
	return out
}
