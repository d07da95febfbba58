package spawn

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sasha-s/go-deadlock"
)

var ErrDuplicateID = errors.New("object id already registered")

// Registry is the single source of truth for resolving an identity to a live
// object.
type Registry struct {
	mu      deadlock.RWMutex
	objects map[ObjectID]*Object
	nextID  ObjectID
}

func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[ObjectID]*Object),
	}
}

// Spawn registers a new object under a locally allocated identity.
func (r *Registry) Spawn(kind string, pos mgl64.Vec3, rot mgl64.Quat) *Object {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		r.nextID++
		if _, taken := r.objects[r.nextID]; !taken {
			break
		}
	}
	o := newObject(r.nextID, kind, pos, rot)
	r.objects[o.id] = o
	return o
}

// Adopt registers an object whose identity was assigned elsewhere, such as a
// replicated network id.
func (r *Registry) Adopt(id ObjectID, kind string, pos mgl64.Vec3, rot mgl64.Quat) (*Object, error) {
	if id == 0 {
		return nil, fmt.Errorf("adopt %s: zero id", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.objects[id]; exists {
		return nil, fmt.Errorf("adopt %s %d: %w", kind, id, ErrDuplicateID)
	}
	o := newObject(id, kind, pos, rot)
	r.objects[id] = o
	return o, nil
}

// Resolve looks up a live object.
func (r *Registry) Resolve(id ObjectID) (*Object, bool) {
	if id == 0 {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.objects[id]
	return o, ok
}

// Despawn removes an object. Its children are detached in place.
func (r *Registry) Despawn(id ObjectID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.objects[id]
	if !ok {
		return false
	}
	for _, child := range r.objects {
		if child.parent == o {
			_ = child.SetParent(nil)
		}
	}
	delete(r.objects, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// IDs returns the registered identities in ascending order.
func (r *Registry) IDs() []ObjectID {
	r.mu.RLock()
	ids := make([]ObjectID, 0, len(r.objects))
	for id := range r.objects {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
