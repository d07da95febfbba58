// Package attach glues a visual effect object to a projectile. The effect is
// held by identity and resolved lazily; the pool that spawned it decides its
// lifetime.
package attach

import (
	"fmt"

	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
)

// Pool spawns and despawns network-visible objects.
type Pool interface {
	Spawn(kind string, pos mgl64.Vec3, rot mgl64.Quat) (*spawn.Object, error)
	Despawn(id spawn.ObjectID) bool
}

// Resolver turns an identity into a live object.
type Resolver interface {
	Resolve(id spawn.ObjectID) (*spawn.Object, bool)
}

// Effect is one optional effect binding. The zero value is an empty binding.
type Effect struct {
	id       spawn.ObjectID
	obj      *spawn.Object
	parented bool
}

// Spawn creates the effect through the pool at the host's pose and binds it.
// Only the authority calls this.
func (e *Effect) Spawn(pool Pool, kind string, pos mgl64.Vec3, rot mgl64.Quat) error {
	obj, err := pool.Spawn(kind, pos, rot)
	if err != nil {
		return fmt.Errorf("spawn effect %s: %w", kind, err)
	}
	e.id = obj.ID()
	e.obj = obj
	e.parented = false
	return nil
}

// SetID records a published identity. A changed identity drops any cached
// object so the next TryResolve picks up the new one.
func (e *Effect) SetID(id spawn.ObjectID) {
	if id == e.id {
		return
	}
	e.id = id
	e.obj = nil
	e.parented = false
}

// TryResolve caches the object for a known identity. It returns true once an
// object is bound; a miss is retried on the next call.
func (e *Effect) TryResolve(r Resolver, host *spawn.Object) bool {
	if e.obj != nil {
		return true
	}
	if e.id == 0 || r == nil {
		return false
	}
	obj, ok := r.Resolve(e.id)
	if !ok {
		return false
	}
	e.obj = obj
	if host != nil {
		obj.SetPose(host.Position(), host.Rotation())
	}
	return true
}

// Follow copies the host's pose onto the effect unless the effect already
// rides on the host as a child.
func (e *Effect) Follow(host *spawn.Object) {
	if e.obj == nil || e.parented || host == nil {
		return
	}
	e.obj.SetPose(host.Position(), host.Rotation())
}

// AttachTo reparents the effect onto the host. Only the first call has any
// effect.
func (e *Effect) AttachTo(host *spawn.Object) error {
	if e.obj == nil || e.parented || host == nil {
		return nil
	}
	if err := e.obj.SetParent(host); err != nil {
		return fmt.Errorf("attach effect %d to %d: %w", e.id, host.ID(), err)
	}
	e.parented = true
	return nil
}

// Release ends the binding. The authority passes its pool to despawn the
// effect; observers pass nil and only forget the reference.
func (e *Effect) Release(pool Pool) {
	if pool != nil && e.id != 0 {
		pool.Despawn(e.id)
	}
	e.id = 0
	e.obj = nil
	e.parented = false
}

func (e *Effect) ID() spawn.ObjectID { return e.id }
func (e *Effect) Object() *spawn.Object { return e.obj }
func (e *Effect) Attached() bool { return e.parented }
