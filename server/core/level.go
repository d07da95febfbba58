package core

import (
	"fmt"
	"io/fs"
	"math"
	"path"

	"github.com/automoto/arrowflight/shared/leveldata"
	"github.com/automoto/arrowflight/shared/netconfig"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog/log"
	"github.com/solarlune/resolv"
)

const (
	tagSolid  = "solid"
	tagTarget = "target"
	tagProbe  = "probe"

	// world margin around the arena so casts just outside still land in cells
	levelPaddingMeters = 2.0
)

type collider struct {
	box    leveldata.Box
	layer  netconfig.Layer
	target any
}

// ServerLevel holds the collision space for an arena. Geometry lives on the
// side-view X/Y plane of a resolv spatial hash; each box keeps its own Z
// extent for the narrow phase.
type ServerLevel struct {
	Space *resolv.Space
	Arena *leveldata.ArenaData

	scale     float64
	colliders map[*resolv.Object]*collider
	probe     *resolv.Object
}

// NewServerLevel builds a resolv.Space from parsed arena data. unitsPerMeter
// sets the resolution of the integer space grid.
func NewServerLevel(data *leveldata.ArenaData, cellSize int, unitsPerMeter float64) *ServerLevel {
	if cellSize <= 0 {
		cellSize = 16
	}
	if unitsPerMeter <= 0 {
		unitsPerMeter = 100
	}

	w := int(math.Ceil((data.Width + 2*levelPaddingMeters) * unitsPerMeter))
	h := int(math.Ceil((data.Height + 2*levelPaddingMeters) * unitsPerMeter))

	l := &ServerLevel{
		Space:     resolv.NewSpace(w, h, cellSize, cellSize),
		Arena:     data,
		scale:     unitsPerMeter,
		colliders: make(map[*resolv.Object]*collider),
	}

	l.probe = resolv.NewObject(0, 0, 1, 1, tagProbe)
	l.Space.Add(l.probe)

	for _, s := range data.Solids {
		l.AddCollider(s.Box, netconfig.LayerWorld, nil)
	}

	log.Info().
		Int("solids", len(data.Solids)).
		Int("targets", len(data.Targets)).
		Float64("width", data.Width).
		Float64("height", data.Height).
		Msg("loaded arena")

	return l
}

// LoadServerLevel reads one arena from arenasDir/name.tmx within fsys.
func LoadServerLevel(fsys fs.FS, arenasDir, name string, pixelsPerMeter float64, cellSize int, unitsPerMeter float64) (*ServerLevel, error) {
	data, err := leveldata.LoadArena(fsys, path.Join(arenasDir, name+".tmx"), pixelsPerMeter)
	if err != nil {
		return nil, fmt.Errorf("load arena %s: %w", name, err)
	}
	return NewServerLevel(data, cellSize, unitsPerMeter), nil
}

// AddCollider registers a box. target is handed back in hits and may be nil.
func (l *ServerLevel) AddCollider(box leveldata.Box, layer netconfig.Layer, target any) *resolv.Object {
	tag := tagSolid
	if layer&netconfig.LayerTarget != 0 {
		tag = tagTarget
	}

	x, y := l.toSpace(box.Min.X(), box.Max.Y())
	sz := box.Size().Mul(l.scale)
	obj := resolv.NewObject(x, y, sz.X(), sz.Y(), tag)
	obj.SetShape(resolv.NewRectangle(0, 0, sz.X(), sz.Y()))
	l.Space.Add(obj)

	l.colliders[obj] = &collider{box: box, layer: layer, target: target}
	return obj
}

// RemoveCollider drops a box added with AddCollider.
func (l *ServerLevel) RemoveCollider(obj *resolv.Object) {
	if _, ok := l.colliders[obj]; !ok {
		return
	}
	delete(l.colliders, obj)
	l.Space.Remove(obj)
}

// toSpace maps a world point to resolv coordinates, where y grows downward
// from the padded top edge.
func (l *ServerLevel) toSpace(x, y float64) (float64, float64) {
	return (x + levelPaddingMeters) * l.scale,
		(l.Arena.Height + levelPaddingMeters - y) * l.scale
}

// Cast sweeps from origin along dir for distance and returns the nearest hit
// on a collider whose layer is in mask. Sphere casts inflate every box by the
// radius. Boxes that already contain the origin are ignored.
func (l *ServerLevel) Cast(origin, dir mgl64.Vec3, distance float64, mode netconfig.CastMode, radius float64, mask netconfig.Layer) (Hit, bool) {
	if distance <= 0 || dir.LenSqr() == 0 {
		return Hit{}, false
	}
	if mode != netconfig.CastSphere {
		radius = 0
	}

	end := origin.Add(dir.Mul(distance))
	minX, maxX := math.Min(origin.X(), end.X())-radius, math.Max(origin.X(), end.X())+radius
	minY, maxY := math.Min(origin.Y(), end.Y())-radius, math.Max(origin.Y(), end.Y())+radius

	// broad phase: the probe covers the swept bounds, padded by a unit so
	// zero-width sweeps still touch a cell
	px, py := l.toSpace(minX, maxY)
	l.probe.X, l.probe.Y = px-1, py-1
	l.probe.W = (maxX-minX)*l.scale + 2
	l.probe.H = (maxY-minY)*l.scale + 2
	l.probe.Update()

	var tags []string
	if mask&netconfig.LayerWorld != 0 {
		tags = append(tags, tagSolid)
	}
	if mask&netconfig.LayerTarget != 0 {
		tags = append(tags, tagTarget)
	}
	if len(tags) == 0 {
		return Hit{}, false
	}

	check := l.probe.Check(0, 0, tags...)
	if check == nil {
		return Hit{}, false
	}

	best := Hit{Distance: math.Inf(1)}
	found := false
	for _, obj := range check.ObjectsByTags(tags...) {
		c, ok := l.colliders[obj]
		if !ok || c.layer&mask == 0 {
			continue
		}
		box := leveldata.Box{
			Min: c.box.Min.Sub(mgl64.Vec3{radius, radius, radius}),
			Max: c.box.Max.Add(mgl64.Vec3{radius, radius, radius}),
		}
		t, normal, ok := sweepBox(origin, dir, distance, box)
		if !ok || t >= best.Distance {
			continue
		}
		best = Hit{
			Point:    origin.Add(dir.Mul(t)),
			Normal:   normal,
			Distance: t,
			Target:   c.target,
		}
		found = true
	}
	return best, found
}

// sweepBox intersects the segment origin + dir*t, t in [0, maxT], with an
// axis-aligned box using the slab method.
func sweepBox(origin, dir mgl64.Vec3, maxT float64, box leveldata.Box) (float64, mgl64.Vec3, bool) {
	tEnter, tExit := math.Inf(-1), math.Inf(1)
	enterAxis := -1

	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < 1e-12 {
			if origin[i] < box.Min[i] || origin[i] > box.Max[i] {
				return 0, mgl64.Vec3{}, false
			}
			continue
		}
		t1 := (box.Min[i] - origin[i]) / dir[i]
		t2 := (box.Max[i] - origin[i]) / dir[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tEnter {
			tEnter, enterAxis = t1, i
		}
		tExit = math.Min(tExit, t2)
		if tEnter > tExit {
			return 0, mgl64.Vec3{}, false
		}
	}

	// starting inside, or box behind or beyond the sweep
	if enterAxis < 0 || tEnter < 0 || tEnter > maxT {
		return 0, mgl64.Vec3{}, false
	}

	var normal mgl64.Vec3
	if dir[enterAxis] > 0 {
		normal[enterAxis] = -1
	} else {
		normal[enterAxis] = 1
	}
	return tEnter, normal, true
}
