// Package leveldata parses TMX arenas into plain collision data shared by the
// authority and tooling. It has no dependency on donburi or resolv.
package leveldata

import "github.com/go-gl/mathgl/mgl64"

// Box is an axis-aligned box in world meters.
type Box struct {
	Min, Max mgl64.Vec3
}

// Center of the box.
func (b Box) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size along each axis.
func (b Box) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Solid is static level geometry.
type Solid struct {
	Name string
	Box  Box
}

// Target is a damageable dummy placed in the arena.
type Target struct {
	Name      string
	Box       Box
	Health    float64
	Networked bool // visible to observers and eligible for sticking
}

// ArenaData holds everything collision-relevant from one TMX file.
type ArenaData struct {
	Width, Height float64 // meters
	Solids        []Solid
	Targets       []Target
}
