package netcomponents

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

// NetTransformData is the pose of any spawned object observers mirror.
type NetTransformData struct {
	Kind     string
	Position mgl64.Vec3
	Rotation mgl64.Quat
	ParentID uint // NetworkId of the parent, 0 when detached
}

var NetTransform = donburi.NewComponentType[NetTransformData]()

// LerpNetTransform interpolates position and rotation.
func LerpNetTransform(from, to NetTransformData, t float64) *NetTransformData {
	if from.ParentID != to.ParentID {
		return &to
	}
	return &NetTransformData{
		Kind:     to.Kind,
		Position: from.Position.Add(to.Position.Sub(from.Position).Mul(t)),
		Rotation: mgl64.QuatNlerp(from.Rotation, to.Rotation, t),
		ParentID: to.ParentID,
	}
}

// NetTargetData mirrors a damageable target's health.
type NetTargetData struct {
	Name   string
	Health float64
}

var NetTarget = donburi.NewComponentType[NetTargetData]()
