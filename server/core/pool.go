package core

import (
	"fmt"

	"github.com/automoto/arrowflight/shared/netcomponents"
	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

// netPool spawns objects that observers can see. Each object is a registry
// entry keyed by the network id of its donburi entity.
type netPool struct {
	s        *Server
	entities map[spawn.ObjectID]donburi.Entity
}

func (p *netPool) Spawn(kind string, pos mgl64.Vec3, rot mgl64.Quat) (*spawn.Object, error) {
	var entity donburi.Entity
	switch kind {
	case spawn.KindArrow:
		entity = p.s.world.Create(netcomponents.NetTransform, netcomponents.NetArrow, netcomponents.NetArrowEffect)
	case spawn.KindTarget:
		entity = p.s.world.Create(netcomponents.NetTransform, netcomponents.NetTarget)
	default:
		entity = p.s.world.Create(netcomponents.NetTransform)
	}

	entry := p.s.world.Entry(entity)
	netcomponents.NetTransform.Set(entry, &netcomponents.NetTransformData{
		Kind:     kind,
		Position: pos,
		Rotation: rot,
	})

	id, err := p.s.track(&entity, kind)
	if err != nil {
		p.s.world.Remove(entity)
		return nil, err
	}

	obj, err := p.s.registry.Adopt(id, kind, pos, rot)
	if err != nil {
		p.s.world.Remove(entity)
		return nil, fmt.Errorf("spawn %s: %w", kind, err)
	}
	p.entities[id] = entity
	return obj, nil
}

func (p *netPool) Despawn(id spawn.ObjectID) bool {
	entity, ok := p.entities[id]
	if !ok {
		return false
	}
	delete(p.entities, id)
	p.s.registry.Despawn(id)
	if p.s.world.Valid(entity) {
		p.s.world.Remove(entity)
	}
	return true
}

func (p *netPool) Resolve(id spawn.ObjectID) (*spawn.Object, bool) {
	return p.s.registry.Resolve(id)
}

func (p *netPool) entry(id spawn.ObjectID) *donburi.Entry {
	entity, ok := p.entities[id]
	if !ok || !p.s.world.Valid(entity) {
		return nil
	}
	return p.s.world.Entry(entity)
}

// setTarget mirrors a dummy's health into its synced component.
func (p *netPool) setTarget(d *TargetDummy) {
	entry := p.entry(d.NetworkID())
	if entry == nil {
		return
	}
	netcomponents.NetTarget.Set(entry, &netcomponents.NetTargetData{
		Name:   d.Name,
		Health: d.Health(),
	})
}

// syncTransforms copies world poses and parent links into NetTransform.
func (p *netPool) syncTransforms() {
	for id, entity := range p.entities {
		obj, ok := p.s.registry.Resolve(id)
		if !ok || !p.s.world.Valid(entity) {
			continue
		}
		var parentID uint
		if parent := obj.Parent(); parent != nil {
			parentID = uint(parent.ID())
		}
		netcomponents.NetTransform.Set(p.s.world.Entry(entity), &netcomponents.NetTransformData{
			Kind:     obj.Kind(),
			Position: obj.Position(),
			Rotation: obj.Rotation(),
			ParentID: parentID,
		})
	}
}
