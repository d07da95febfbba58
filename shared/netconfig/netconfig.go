// Package netconfig defines lightweight enums shared between the authority and
// observers for network serialization. It has no dependencies so both
// binaries stay headless.
package netconfig

// FlightPhase is where a projectile is in its lifecycle.
type FlightPhase int

const (
	PhaseIdle FlightPhase = iota
	PhaseLaunched
	PhaseMoving
	PhaseStuck
	PhaseCompleted
	PhaseStopped
	PhaseDestroyed
)

func (p FlightPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLaunched:
		return "launched"
	case PhaseMoving:
		return "moving"
	case PhaseStuck:
		return "stuck"
	case PhaseCompleted:
		return "completed"
	case PhaseStopped:
		return "stopped"
	case PhaseDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Terminal phases never move again.
func (p FlightPhase) Terminal() bool {
	return p >= PhaseStuck
}

// CastMode selects the collision probe shape.
type CastMode int

const (
	CastRay CastMode = iota
	CastSphere
)

func (m CastMode) String() string {
	if m == CastSphere {
		return "sphere"
	}
	return "ray"
}

// ParseCastMode accepts "ray" or "sphere".
func ParseCastMode(s string) (CastMode, bool) {
	switch s {
	case "ray", "":
		return CastRay, true
	case "sphere":
		return CastSphere, true
	}
	return CastRay, false
}

// Layer is a bit in a collision filter mask.
type Layer uint32

const (
	LayerWorld Layer = 1 << iota
	LayerTarget
	LayerProjectile

	LayerAll Layer = ^Layer(0)
)
