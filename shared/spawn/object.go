// Package spawn tracks network-visible objects by identity. Both the authority
// and observers keep one Registry; an identity is only ever a lookup key,
// never ownership.
package spawn

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// ObjectID identifies an object across processes. Zero means "none".
type ObjectID uint64

// Object kinds used by this module.
const (
	KindArrow  = "arrow"
	KindTarget = "target"
	KindEffect = "effect"
)

var ErrParentCycle = errors.New("parent would create a cycle")

// Object is a posed node in a parent hierarchy. The pose is stored relative
// to the parent so children follow it automatically.
type Object struct {
	id     ObjectID
	kind   string
	parent *Object

	localPos mgl64.Vec3
	localRot mgl64.Quat
}

func newObject(id ObjectID, kind string, pos mgl64.Vec3, rot mgl64.Quat) *Object {
	return &Object{id: id, kind: kind, localPos: pos, localRot: rot}
}

func (o *Object) ID() ObjectID { return o.id }
func (o *Object) Kind() string { return o.kind }
func (o *Object) Parent() *Object { return o.parent }

// Position is the world position.
func (o *Object) Position() mgl64.Vec3 {
	if o.parent == nil {
		return o.localPos
	}
	return o.parent.Position().Add(o.parent.Rotation().Rotate(o.localPos))
}

// Rotation is the world rotation.
func (o *Object) Rotation() mgl64.Quat {
	if o.parent == nil {
		return o.localRot
	}
	return o.parent.Rotation().Mul(o.localRot)
}

// SetPose places the object at a world pose.
func (o *Object) SetPose(pos mgl64.Vec3, rot mgl64.Quat) {
	if o.parent == nil {
		o.localPos, o.localRot = pos, rot
		return
	}
	inv := o.parent.Rotation().Inverse()
	o.localPos = inv.Rotate(pos.Sub(o.parent.Position()))
	o.localRot = inv.Mul(rot).Normalize()
}

// SetPosition moves the object and keeps its world rotation.
func (o *Object) SetPosition(pos mgl64.Vec3) {
	o.SetPose(pos, o.Rotation())
}

// SetParent reparents the object, keeping its world pose. A nil parent
// detaches it.
func (o *Object) SetParent(p *Object) error {
	for a := p; a != nil; a = a.parent {
		if a == o {
			return ErrParentCycle
		}
	}
	pos, rot := o.Position(), o.Rotation()
	o.parent = p
	o.SetPose(pos, rot)
	return nil
}
