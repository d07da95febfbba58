package messages

import "github.com/go-gl/mathgl/mgl64"

// ArrowLaunchEvent carries everything an observer needs to reproduce a flight.
type ArrowLaunchEvent struct {
	ArrowID           uint // NetworkId of the arrow
	Start             mgl64.Vec3
	LaunchVelocity    mgl64.Vec3
	PointCount        int
	TimeStep          float64
	GravityMultiplier float64

	Speed           float64
	AutoOrient      bool
	OrientSmoothing float64
}

// ArrowStuckEvent is broadcast once when an arrow comes to rest on a hit.
type ArrowStuckEvent struct {
	ArrowID   uint
	Position  mgl64.Vec3
	Forward   mgl64.Vec3
	HasParent bool
	ParentID  uint // NetworkId of the object the arrow is stuck in
}

// ArrowDamageEvent is informational; the authority already applied it.
type ArrowDamageEvent struct {
	ArrowID  uint
	TargetID uint
	Damage   float64
}
