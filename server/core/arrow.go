package core

import (
	"errors"
	"fmt"
	"math"
	"time"

	cfg "github.com/automoto/arrowflight/config"
	"github.com/automoto/arrowflight/shared/attach"
	"github.com/automoto/arrowflight/shared/flight"
	"github.com/automoto/arrowflight/shared/gamemath"
	"github.com/automoto/arrowflight/shared/messages"
	"github.com/automoto/arrowflight/shared/netconfig"
	"github.com/automoto/arrowflight/shared/replication"
	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

var (
	ErrNotAuthoritative = errors.New("not authoritative")
	ErrTooFewPoints     = errors.New("trajectory needs at least two points")
	ErrAlreadyLaunched  = errors.New("arrow already launched")
)

// Hit describes what a collision probe struck.
type Hit struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
	Target   any // struck object handle, nil for static geometry
}

// Prober sweeps a ray or sphere and reports the nearest hit.
type Prober interface {
	Cast(origin, dir mgl64.Vec3, distance float64, mode netconfig.CastMode, radius float64, mask netconfig.Layer) (Hit, bool)
}

// Damageable targets take damage from arrows.
type Damageable interface {
	ApplyDamage(amount float64, point mgl64.Vec3)
}

// NetworkIdentified targets have an identity observers can resolve. A zero
// identity counts as none.
type NetworkIdentified interface {
	NetworkID() spawn.ObjectID
}

// ObjectPool spawns network-visible objects and resolves identities.
type ObjectPool interface {
	attach.Pool
	attach.Resolver
}

// Publisher is the authority's side of the replication channel.
type Publisher interface {
	PublishState(state replication.State)
	PublishEffect(id spawn.ObjectID)
	Broadcast(evt any)
}

// ArrowOptions wires an ArrowController to its collaborators. Prober, Pool
// and Publisher are optional.
type ArrowOptions struct {
	Object      *spawn.Object
	Authority   bool
	Config      cfg.ArrowConfig
	Gravity     mgl64.Vec3
	Prober      Prober
	Pool        ObjectPool
	Publisher   Publisher
	Scheduler   *Scheduler
	Logger      zerolog.Logger
	OnDestroyed func(*ArrowController)
}

// ArrowController owns one arrow's true flight state on the authority.
type ArrowController struct {
	cfg       cfg.ArrowConfig
	authority bool
	gravity   mgl64.Vec3

	obj       *spawn.Object
	prober    Prober
	pool      ObjectPool
	publisher Publisher
	scheduler *Scheduler
	log       zerolog.Logger
	destroyed func(*ArrowController)

	phase     netconfig.FlightPhase
	params    gamemath.TrajectoryParams
	points    []mgl64.Vec3
	cursor    flight.Cursor
	rot       mgl64.Quat
	syncAccum float64

	effect   attach.Effect
	parentID spawn.ObjectID
	destroy  *Task
}

func NewArrowController(opts ArrowOptions) *ArrowController {
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler()
	}
	a := &ArrowController{
		cfg:       opts.Config,
		authority: opts.Authority,
		gravity:   opts.Gravity,
		obj:       opts.Object,
		prober:    opts.Prober,
		pool:      opts.Pool,
		publisher: opts.Publisher,
		scheduler: opts.Scheduler,
		destroyed: opts.OnDestroyed,
		rot:       mgl64.QuatIdent(),
	}
	a.log = opts.Logger.With().Str("component", "arrow").Uint64("arrow", uint64(a.ID())).Logger()
	// a flight that cannot advance would never complete
	if floor := max(a.cfg.MinSpeed, gamemath.MinSpeed); !(a.cfg.Speed >= floor) || math.IsInf(a.cfg.Speed, 1) {
		a.log.Warn().Float64("speed", a.cfg.Speed).Msg("invalid speed, using floor")
		a.cfg.Speed = floor
	}
	if a.obj != nil {
		a.rot = a.obj.Rotation()
	}
	return a
}

// Launch starts a flight from explicit parameters. Out-of-range parameters
// are clamped.
func (a *ArrowController) Launch(p gamemath.TrajectoryParams) error {
	if err := a.checkLaunch(); err != nil {
		return err
	}
	a.params = p.Clamped()
	a.points = gamemath.GenerateTrajectory(a.params, a.gravity)
	a.begin()
	return nil
}

// LaunchLegacy follows a pre-rendered point sequence. Observers receive
// parameters inferred from its first segment.
func (a *ArrowController) LaunchLegacy(points []mgl64.Vec3) error {
	if err := a.checkLaunch(); err != nil {
		return err
	}
	points = gamemath.SanitizePoints(points)
	params, ok := gamemath.InferTrajectoryParams(points, max(a.cfg.Speed, a.cfg.MinSpeed),
		a.cfg.LegacyTimeStep, a.cfg.LegacyGravityMultiplier)
	if !ok {
		a.log.Warn().Int("points", len(points)).Msg("legacy launch rejected")
		return fmt.Errorf("legacy launch with %d points: %w", len(points), ErrTooFewPoints)
	}
	a.params = params
	a.points = points
	a.begin()
	return nil
}

func (a *ArrowController) checkLaunch() error {
	if !a.authority {
		a.log.Warn().Msg("launch ignored: not authoritative")
		return ErrNotAuthoritative
	}
	if a.phase != netconfig.PhaseIdle {
		a.log.Warn().Stringer("phase", a.phase).Msg("launch ignored: already launched")
		return ErrAlreadyLaunched
	}
	return nil
}

func (a *ArrowController) begin() {
	a.phase = netconfig.PhaseLaunched
	a.cursor = flight.Start(a.points, a.cfg.Speed)
	if a.cfg.AutoOrient && a.cursor.Velocity.LenSqr() > 0 {
		a.rot = gamemath.LookRotation(a.cursor.Velocity, gamemath.WorldUp)
	}
	a.obj.SetPose(a.cursor.Position, a.rot)
	a.publish()

	if a.cfg.EffectKind != "" && a.pool != nil {
		if err := a.effect.Spawn(a.pool, a.cfg.EffectKind, a.obj.Position(), a.obj.Rotation()); err != nil {
			a.log.Warn().Err(err).Msg("no effect for this flight")
		} else if a.publisher != nil {
			a.publisher.PublishEffect(a.effect.ID())
		}
	}

	a.broadcast(messages.ArrowLaunchEvent{
		ArrowID:           uint(a.ID()),
		Start:             a.params.Start,
		LaunchVelocity:    a.params.LaunchVelocity,
		PointCount:        a.params.PointCount,
		TimeStep:          a.params.TimeStep,
		GravityMultiplier: a.params.GravityMultiplier,
		Speed:             a.cfg.Speed,
		AutoOrient:        a.cfg.AutoOrient,
		OrientSmoothing:   a.cfg.OrientSmoothing,
	})

	a.phase = netconfig.PhaseMoving
	a.log.Debug().Int("points", len(a.points)).Float64("speed", a.cfg.Speed).Msg("launched")
}

// FixedUpdate advances the flight by one simulation step.
func (a *ArrowController) FixedUpdate(dt time.Duration) {
	if !a.authority || a.phase != netconfig.PhaseMoving {
		return
	}
	secs := dt.Seconds()

	var (
		hit     Hit
		hitStep flight.Step
	)
	hooks := flight.Hooks{
		Moved: func(s flight.Step) {
			a.turn(s.Dir, secs)
			a.syncAccum += s.Distance
			if a.publisher != nil && a.syncAccum >= a.syncThreshold() {
				a.syncAccum = 0
				a.publisher.PublishState(replication.State{
					Position:   a.cursor.Position,
					Velocity:   s.Dir.Mul(a.cfg.Speed),
					PointIndex: s.Index,
					Moving:     true,
				})
			}
		},
	}
	if a.prober != nil {
		hooks.Probe = func(s flight.Step) bool {
			h, ok := a.prober.Cast(s.From, s.Dir, s.Distance, a.cfg.CastMode, a.cfg.SphereRadius, a.cfg.HitMask)
			if ok {
				hit, hitStep = h, s
			}
			return ok
		}
	}

	out := flight.Advance(&a.cursor, a.points, a.cfg.Speed, a.cfg.Speed*secs, hooks)
	a.obj.SetPose(a.cursor.Position, a.rot)

	switch out {
	case flight.Halted:
		a.stick(hit, hitStep, secs)
	case flight.Arrived:
		a.complete()
	default:
		a.effect.Follow(a.obj)
	}
}

// syncThreshold is the distance covered between publishes at SyncRate.
func (a *ArrowController) syncThreshold() float64 {
	if a.cfg.SyncRate <= 0 {
		return 0
	}
	return a.cfg.Speed / a.cfg.SyncRate
}

func (a *ArrowController) turn(dir mgl64.Vec3, secs float64) {
	if a.cfg.AutoOrient {
		a.rot = gamemath.SmoothLook(a.rot, dir.Mul(a.cfg.Speed), a.cfg.OrientSmoothing, secs)
	}
}

func (a *ArrowController) stick(hit Hit, step flight.Step, secs float64) {
	a.phase = netconfig.PhaseStuck
	a.cursor.Position = hit.Point.Sub(step.Dir.Mul(a.cfg.SurfaceClearance))
	a.cursor.Velocity = mgl64.Vec3{}
	a.turn(step.Dir, secs)
	a.obj.SetPose(a.cursor.Position, a.rot)
	a.publish()

	if d, ok := hit.Target.(Damageable); ok {
		d.ApplyDamage(a.cfg.Damage, hit.Point)
		if id := networkID(hit.Target); id != 0 {
			a.broadcast(messages.ArrowDamageEvent{
				ArrowID:  uint(a.ID()),
				TargetID: uint(id),
				Damage:   a.cfg.Damage,
			})
		}
	}

	if a.cfg.StickToTarget && a.pool != nil {
		if id := networkID(hit.Target); id != 0 {
			if parent, ok := a.pool.Resolve(id); ok {
				if err := a.obj.SetParent(parent); err != nil {
					a.log.Warn().Err(err).Uint64("target", uint64(id)).Msg("cannot stick")
				} else {
					a.parentID = id
				}
			}
		}
	}

	a.effect.Follow(a.obj)
	if err := a.effect.AttachTo(a.obj); err != nil {
		a.log.Warn().Err(err).Msg("effect stays detached")
	}

	a.broadcast(messages.ArrowStuckEvent{
		ArrowID:   uint(a.ID()),
		Position:  a.obj.Position(),
		Forward:   gamemath.Forward(a.obj.Rotation()),
		HasParent: a.parentID != 0,
		ParentID:  uint(a.parentID),
	})

	a.log.Debug().
		Int("index", a.cursor.Index).
		Uint64("parent", uint64(a.parentID)).
		Msg("stuck")
	a.destroy = a.scheduler.After(a.cfg.StickDuration, a.despawn)
}

func (a *ArrowController) complete() {
	a.phase = netconfig.PhaseCompleted
	a.cursor.Velocity = mgl64.Vec3{}
	a.effect.Follow(a.obj)
	a.publish()
	a.log.Debug().Msg("trajectory completed")
	a.destroy = a.scheduler.After(a.cfg.CompletionDelay, a.despawn)
}

// StopMoving ends the flight early and schedules destruction after the short
// stop delay, superseding any pending destruction. Further calls do nothing.
func (a *ArrowController) StopMoving() {
	if !a.authority {
		a.log.Warn().Msg("stop ignored: not authoritative")
		return
	}
	switch a.phase {
	case netconfig.PhaseIdle, netconfig.PhaseStopped, netconfig.PhaseDestroyed:
		return
	}

	a.destroy.Stop()
	a.phase = netconfig.PhaseStopped
	a.cursor.Velocity = mgl64.Vec3{}
	a.publish()
	a.log.Debug().Msg("stopped")
	a.destroy = a.scheduler.After(a.cfg.StopDelay, a.despawn)
}

// despawn removes the effect, then the arrow.
func (a *ArrowController) despawn() {
	if a.phase == netconfig.PhaseDestroyed {
		return
	}
	a.destroy = nil

	if a.pool != nil {
		a.effect.Release(a.pool)
		a.pool.Despawn(a.ID())
	} else {
		a.effect.Release(nil)
	}

	a.phase = netconfig.PhaseDestroyed
	a.log.Debug().Msg("destroyed")
	if a.destroyed != nil {
		a.destroyed(a)
	}
}

// publish pushes the current state immediately.
func (a *ArrowController) publish() {
	a.syncAccum = 0
	if a.publisher != nil {
		a.publisher.PublishState(a.State())
	}
}

func (a *ArrowController) broadcast(evt any) {
	if a.publisher != nil {
		a.publisher.Broadcast(evt)
	}
}

func networkID(target any) spawn.ObjectID {
	if n, ok := target.(NetworkIdentified); ok {
		return n.NetworkID()
	}
	return 0
}

// ID is the arrow object's identity.
func (a *ArrowController) ID() spawn.ObjectID {
	if a.obj == nil {
		return 0
	}
	return a.obj.ID()
}

func (a *ArrowController) Phase() netconfig.FlightPhase { return a.phase }

// IsMoving reports whether the arrow still advances along its points.
func (a *ArrowController) IsMoving() bool {
	return a.phase == netconfig.PhaseLaunched || a.phase == netconfig.PhaseMoving
}

// State is the replicated projection of the flight.
func (a *ArrowController) State() replication.State {
	return replication.State{
		Position:   a.cursor.Position,
		Velocity:   a.cursor.Velocity,
		PointIndex: a.cursor.Index,
		Moving:     a.IsMoving(),
	}
}

func (a *ArrowController) Params() gamemath.TrajectoryParams { return a.params }
func (a *ArrowController) Points() []mgl64.Vec3 { return a.points }
func (a *ArrowController) Object() *spawn.Object { return a.obj }
func (a *ArrowController) EffectID() spawn.ObjectID { return a.effect.ID() }
func (a *ArrowController) ParentID() spawn.ObjectID { return a.parentID }

// DestroyIn is the time left before the arrow despawns, zero when nothing is
// scheduled.
func (a *ArrowController) DestroyIn() time.Duration { return a.destroy.TimeLeft() }
