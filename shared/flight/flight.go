// Package flight holds the step loop that moves a projectile along its
// generated points. The authority and every observer run the same loop; only
// the authority plugs in a collision probe.
package flight

import "github.com/go-gl/mathgl/mgl64"

const (
	// ArriveEpsilon is the distance under which a target point counts as reached.
	ArriveEpsilon = 1e-5
	// CloseEpsilon absorbs rounding when deciding a step finished its segment.
	CloseEpsilon = 1e-6
)

// Cursor is the movable part of a flight: where it is, how fast it goes and
// which point it is heading for.
type Cursor struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Index    int
}

// Start places a cursor on the first point heading for the second.
func Start(points []mgl64.Vec3, speed float64) Cursor {
	c := Cursor{Index: 1}
	if len(points) == 0 {
		return c
	}
	c.Position = points[0]
	if len(points) > 1 {
		c.Velocity = direction(points[0], points[1]).Mul(speed)
	}
	return c
}

// Done reports whether the cursor has passed the last point.
func (c Cursor) Done(points []mgl64.Vec3) bool {
	return c.Index >= len(points)
}

// Step is one straight move toward the current target point.
type Step struct {
	From     mgl64.Vec3
	Dir      mgl64.Vec3
	Distance float64
	// Closes is set when the step reaches the target point.
	Closes bool
	Index  int
}

// Hooks let the caller observe or veto steps.
type Hooks struct {
	// Probe runs before a step is applied. Returning true halts the advance
	// with the cursor left at Step.From.
	Probe func(Step) bool
	// Moved runs after a step is applied, before the index advances.
	Moved func(Step)
}

// Outcome says why Advance returned.
type Outcome int

const (
	BudgetSpent Outcome = iota
	Arrived
	Halted
)

func (o Outcome) String() string {
	switch o {
	case BudgetSpent:
		return "budget-spent"
	case Arrived:
		return "arrived"
	case Halted:
		return "halted"
	}
	return "unknown"
}

// Advance moves c along points for at most budget distance at the given
// speed. Zero-length segments are skipped without consuming budget.
func Advance(c *Cursor, points []mgl64.Vec3, speed, budget float64, hooks Hooks) Outcome {
	if c.Index < 1 {
		c.Index = 1
	}

	remaining := budget
	for remaining > 0 && c.Index < len(points) {
		to := points[c.Index].Sub(c.Position)
		dist := to.Len()
		if dist < ArriveEpsilon {
			c.Index++
			continue
		}

		step := Step{
			From:     c.Position,
			Dir:      to.Mul(1 / dist),
			Distance: min(remaining, dist),
			Index:    c.Index,
		}
		step.Closes = step.Distance >= dist-CloseEpsilon

		if hooks.Probe != nil && hooks.Probe(step) {
			return Halted
		}

		c.Position = c.Position.Add(step.Dir.Mul(step.Distance))
		c.Velocity = step.Dir.Mul(speed)
		remaining -= step.Distance

		if hooks.Moved != nil {
			hooks.Moved(step)
		}
		if step.Closes {
			c.Index++
		}
	}

	if c.Index >= len(points) {
		return Arrived
	}
	return BudgetSpent
}

func direction(a, b mgl64.Vec3) mgl64.Vec3 {
	d := b.Sub(a)
	if l := d.Len(); l > 0 {
		return d.Mul(1 / l)
	}
	return mgl64.Vec3{}
}
