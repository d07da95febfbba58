package netcomponents

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

type NetArrowData struct {
	Position   mgl64.Vec3
	Velocity   mgl64.Vec3
	PointIndex int
	Moving     bool
}

var NetArrow = donburi.NewComponentType[NetArrowData]()

// LerpNetArrow interpolates position; everything else snaps to the newer state.
func LerpNetArrow(from, to NetArrowData, t float64) *NetArrowData {
	return &NetArrowData{
		Position:   from.Position.Add(to.Position.Sub(from.Position).Mul(t)),
		Velocity:   to.Velocity,
		PointIndex: to.PointIndex,
		Moving:     to.Moving,
	}
}

// NetArrowEffectData holds the identity of the effect bound to an arrow.
type NetArrowEffectData struct {
	EffectID uint // NetworkId of the effect object, 0 when none
}

var NetArrowEffect = donburi.NewComponentType[NetArrowEffectData]()
