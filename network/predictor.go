package network

import (
	"math"
	"time"

	"github.com/automoto/arrowflight/shared/attach"
	"github.com/automoto/arrowflight/shared/flight"
	"github.com/automoto/arrowflight/shared/gamemath"
	"github.com/automoto/arrowflight/shared/messages"
	"github.com/automoto/arrowflight/shared/replication"
	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

// Source delivers the latest replicated state and the events queued since
// the previous call.
type Source interface {
	Drain() (replication.Snapshot, []any)
}

type PredictorOptions struct {
	Object              *spawn.Object
	Source              Source
	Resolver            attach.Resolver
	Gravity             mgl64.Vec3
	InterpolationFactor float64
	Logger              zerolog.Logger
	OnDamage            func(messages.ArrowDamageEvent)
}

// ArrowPredictor renders one arrow on an observer. It replays the flight
// locally from the launch parameters and eases the result toward the
// replicated state.
type ArrowPredictor struct {
	obj      *spawn.Object
	source   Source
	resolver attach.Resolver
	gravity  mgl64.Vec3
	factor   float64
	log      zerolog.Logger
	onDamage func(messages.ArrowDamageEvent)

	launched bool
	moving   bool
	stuck    bool

	params     gamemath.TrajectoryParams
	points     []mgl64.Vec3
	speed      float64
	autoOrient bool
	smoothing  float64

	cursor   flight.Cursor // predicted
	position mgl64.Vec3    // rendered
	velocity mgl64.Vec3    // rendered
	rot      mgl64.Quat

	latest   replication.Snapshot
	effect   attach.Effect
	parentID spawn.ObjectID
}

func NewArrowPredictor(opts PredictorOptions) *ArrowPredictor {
	p := &ArrowPredictor{
		obj:      opts.Object,
		source:   opts.Source,
		resolver: opts.Resolver,
		gravity:  opts.Gravity,
		factor:   mgl64.Clamp(opts.InterpolationFactor, 0, 1),
		onDamage: opts.OnDamage,
		rot:      mgl64.QuatIdent(),
	}
	p.log = opts.Logger.With().Str("component", "predictor").Uint64("arrow", uint64(p.obj.ID())).Logger()
	p.rot = p.obj.Rotation()
	p.position = p.obj.Position()
	return p
}

// Tick drains the source once and advances the prediction by dt.
func (p *ArrowPredictor) Tick(dt time.Duration) {
	if p.source != nil {
		snap, events := p.source.Drain()
		p.latest = snap
		if snap.Version(replication.FieldEffect) > 0 {
			p.effect.SetID(snap.EffectID)
		}
		for _, evt := range events {
			p.handle(evt)
		}
	}

	p.effect.TryResolve(p.resolver, p.obj)

	if p.moving {
		p.advance(dt.Seconds())
	}
}

func (p *ArrowPredictor) handle(evt any) {
	switch e := evt.(type) {
	case messages.ArrowLaunchEvent:
		p.onLaunch(e)
	case messages.ArrowStuckEvent:
		p.onStuck(e)
	case messages.ArrowDamageEvent:
		p.log.Debug().Uint("target", e.TargetID).Float64("damage", e.Damage).Msg("arrow dealt damage")
		if p.onDamage != nil {
			p.onDamage(e)
		}
	}
}

func (p *ArrowPredictor) onLaunch(e messages.ArrowLaunchEvent) {
	if p.launched {
		p.log.Debug().Msg("duplicate launch ignored")
		return
	}
	p.launched = true

	p.params = gamemath.TrajectoryParams{
		Start:             e.Start,
		LaunchVelocity:    e.LaunchVelocity,
		PointCount:        e.PointCount,
		TimeStep:          e.TimeStep,
		GravityMultiplier: e.GravityMultiplier,
	}.Clamped()
	p.points = gamemath.GenerateTrajectory(p.params, p.gravity)
	p.speed = e.Speed
	if !(p.speed >= gamemath.MinSpeed) || math.IsInf(p.speed, 1) {
		p.log.Warn().Float64("speed", e.Speed).Msg("invalid launch speed")
		p.speed = gamemath.MinSpeed
	}
	p.autoOrient = e.AutoOrient
	p.smoothing = e.OrientSmoothing

	p.cursor = flight.Start(p.points, p.speed)
	if p.stuck {
		// the final pose already arrived
		return
	}

	p.position = p.cursor.Position
	p.velocity = p.cursor.Velocity
	if p.autoOrient && p.velocity.LenSqr() > 0 {
		p.rot = gamemath.LookRotation(p.velocity, gamemath.WorldUp)
	}
	p.obj.SetPose(p.position, p.rot)
	p.moving = true
	p.effect.TryResolve(p.resolver, p.obj)
	p.log.Debug().Int("points", len(p.points)).Float64("speed", p.speed).Msg("predicting flight")
}

// onStuck snaps to the final pose. Nothing moves the arrow afterwards.
func (p *ArrowPredictor) onStuck(e messages.ArrowStuckEvent) {
	if p.stuck {
		return
	}
	p.stuck = true
	p.moving = false

	p.position = e.Position
	p.velocity = mgl64.Vec3{}
	if e.Forward.LenSqr() > 0 {
		p.rot = gamemath.LookRotation(e.Forward, gamemath.WorldUp)
	}
	p.obj.SetPose(p.position, p.rot)

	if e.HasParent && p.resolver != nil {
		if parent, ok := p.resolver.Resolve(spawn.ObjectID(e.ParentID)); ok {
			if err := p.obj.SetParent(parent); err != nil {
				p.log.Warn().Err(err).Uint("parent", e.ParentID).Msg("cannot stick")
			} else {
				p.parentID = parent.ID()
			}
		} else {
			p.log.Debug().Uint("parent", e.ParentID).Msg("stuck parent not visible here")
		}
	}

	p.effect.TryResolve(p.resolver, p.obj)
	p.effect.Follow(p.obj)
	if err := p.effect.AttachTo(p.obj); err != nil {
		p.log.Warn().Err(err).Msg("effect stays detached")
	}
}

func (p *ArrowPredictor) advance(secs float64) {
	flight.Advance(&p.cursor, p.points, p.speed, p.speed*secs, flight.Hooks{})

	// the authority owns progress
	if p.latest.Version(replication.FieldPointIndex) > 0 && p.latest.PointIndex > p.cursor.Index {
		p.cursor.Index = min(p.latest.PointIndex, len(p.points))
	}

	p.position = p.cursor.Position
	if p.latest.Version(replication.FieldPosition) > 0 {
		p.position = gamemath.Lerp(p.cursor.Position, p.latest.Position, p.factor)
	}
	p.velocity = p.cursor.Velocity
	if p.latest.Version(replication.FieldVelocity) > 0 {
		p.velocity = gamemath.Lerp(p.cursor.Velocity, p.latest.Velocity, p.factor)
	}

	if p.autoOrient {
		p.rot = gamemath.SmoothLook(p.rot, p.velocity, p.smoothing, secs)
	}
	p.obj.SetPose(p.position, p.rot)
	p.effect.Follow(p.obj)

	switch {
	case p.cursor.Done(p.points):
		p.moving = false
		p.log.Debug().Msg("prediction reached the last point")
	case p.latest.Version(replication.FieldMoving) > 0 && !p.latest.Moving:
		// completed or stopped on the authority
		p.moving = false
		if p.latest.Version(replication.FieldPosition) > 0 {
			p.position = p.latest.Position
			p.obj.SetPose(p.position, p.rot)
			p.effect.Follow(p.obj)
		}
		p.log.Debug().Msg("authority stopped the arrow")
	}
}

// Release drops the effect reference. Observers never despawn effects.
func (p *ArrowPredictor) Release() {
	p.effect.Release(nil)
}

func (p *ArrowPredictor) Launched() bool { return p.launched }
func (p *ArrowPredictor) Moving() bool { return p.moving }
func (p *ArrowPredictor) Stuck() bool { return p.stuck }

// PredictedIndex is the point the local replay is heading for.
func (p *ArrowPredictor) PredictedIndex() int { return p.cursor.Index }

// Predicted is the local replay before blending.
func (p *ArrowPredictor) Predicted() flight.Cursor { return p.cursor }

func (p *ArrowPredictor) Position() mgl64.Vec3 { return p.position }
func (p *ArrowPredictor) Velocity() mgl64.Vec3 { return p.velocity }
func (p *ArrowPredictor) Rotation() mgl64.Quat { return p.rot }
func (p *ArrowPredictor) Params() gamemath.TrajectoryParams { return p.params }
func (p *ArrowPredictor) Points() []mgl64.Vec3 { return p.points }
func (p *ArrowPredictor) Object() *spawn.Object { return p.obj }
func (p *ArrowPredictor) ParentID() spawn.ObjectID { return p.parentID }
func (p *ArrowPredictor) Effect() *attach.Effect { return &p.effect }
