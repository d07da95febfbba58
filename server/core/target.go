package core

import (
	"github.com/automoto/arrowflight/shared/leveldata"
	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
)

// TargetDummy is a damageable arena object. Networked dummies carry the
// identity of their spawned object so arrows can stick to them.
type TargetDummy struct {
	Name      string
	Box       leveldata.Box
	MaxHealth float64

	id       spawn.ObjectID
	health   float64
	hits     int
	onDamage func(*TargetDummy, float64, mgl64.Vec3)
}

func NewTargetDummy(t leveldata.Target) *TargetDummy {
	return &TargetDummy{
		Name:      t.Name,
		Box:       t.Box,
		MaxHealth: t.Health,
		health:    t.Health,
	}
}

// ApplyDamage lowers health, never below zero.
func (d *TargetDummy) ApplyDamage(amount float64, point mgl64.Vec3) {
	d.health = max(d.health-amount, 0)
	d.hits++
	if d.onDamage != nil {
		d.onDamage(d, amount, point)
	}
}

// NetworkID is zero for dummies observers cannot see.
func (d *TargetDummy) NetworkID() spawn.ObjectID { return d.id }

func (d *TargetDummy) Health() float64 { return d.health }
func (d *TargetDummy) Hits() int { return d.hits }
