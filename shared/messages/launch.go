package messages

import "github.com/go-gl/mathgl/mgl64"

// LaunchRequest asks the authority to fire an arrow with explicit parameters.
type LaunchRequest struct {
	Start             mgl64.Vec3
	LaunchVelocity    mgl64.Vec3
	PointCount        int
	TimeStep          float64
	GravityMultiplier float64
	StraightShot      bool // flat shot; the authority scales arrow speed up
}

// LegacyLaunchRequest fires along a pre-rendered point sequence.
type LegacyLaunchRequest struct {
	Points []mgl64.Vec3
}

// LaunchRejected is sent back to a requester whose launch was refused.
type LaunchRejected struct {
	Reason string
}

// StopRequest cancels a flight early.
type StopRequest struct {
	ArrowID uint // NetworkId of the arrow
}
