package network

import (
	"maps"
	"slices"
	"time"

	"github.com/automoto/arrowflight/shared/messages"
	"github.com/automoto/arrowflight/shared/netcomponents"
	"github.com/automoto/arrowflight/shared/replication"
	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/rs/zerolog"
)

// EntityState is one replicated entity decoded from a world snapshot.
// Components the entity does not carry stay nil.
type EntityState struct {
	ID        spawn.ObjectID
	Transform *netcomponents.NetTransformData
	Arrow     *netcomponents.NetArrowData
	Effect    *netcomponents.NetArrowEffectData
	Target    *netcomponents.NetTargetData
}

func (e EntityState) kind() string {
	switch {
	case e.Transform != nil && e.Transform.Kind != "":
		return e.Transform.Kind
	case e.Arrow != nil:
		return spawn.KindArrow
	case e.Target != nil:
		return spawn.KindTarget
	}
	return spawn.KindEffect
}

const (
	// pendingSnapshots is how many snapshots events may wait for their arrow.
	pendingSnapshots = 3
	pendingPerArrow  = 16
)

// pendingEvents holds events that arrived before their arrow was mirrored.
type pendingEvents struct {
	events    []any
	snapshots int
}

// arrowFeed mirrors one remote arrow into a local hub its predictor reads.
type arrowFeed struct {
	hub       *replication.Hub
	predictor *ArrowPredictor
}

type ObserverOptions struct {
	Gravity             mgl64.Vec3
	InterpolationFactor float64
	Logger              zerolog.Logger
	OnDamage            func(messages.ArrowDamageEvent)
}

// Observer keeps the local picture of every replicated object and runs a
// predictor per arrow. It is owned by one tick loop.
type Observer struct {
	opts     ObserverOptions
	log      zerolog.Logger
	registry *spawn.Registry

	arrows  map[spawn.ObjectID]*arrowFeed
	targets map[spawn.ObjectID]netcomponents.NetTargetData
	pending map[spawn.ObjectID]*pendingEvents
}

func NewObserver(opts ObserverOptions) *Observer {
	return &Observer{
		opts:     opts,
		log:      opts.Logger.With().Str("component", "observer").Logger(),
		registry: spawn.NewRegistry(),
		arrows:   make(map[spawn.ObjectID]*arrowFeed),
		targets:  make(map[spawn.ObjectID]netcomponents.NetTargetData),
		pending:  make(map[spawn.ObjectID]*pendingEvents),
	}
}

// ApplySnapshot decodes a necs world snapshot and applies it.
func (o *Observer) ApplySnapshot(snapshot esync.WorldSnapshot) {
	states := make([]EntityState, 0, len(snapshot))
	for _, ent := range snapshot {
		st := EntityState{ID: spawn.ObjectID(ent.Id)}
		for _, componentBytes := range ent.State {
			instance, err := esync.Mapper.Deserialize(componentBytes)
			if err != nil {
				o.log.Debug().Err(err).Uint64("entity", uint64(st.ID)).Msg("skipping component")
				continue
			}
			switch v := instance.(type) {
			case netcomponents.NetTransformData:
				st.Transform = &v
			case netcomponents.NetArrowData:
				st.Arrow = &v
			case netcomponents.NetArrowEffectData:
				st.Effect = &v
			case netcomponents.NetTargetData:
				st.Target = &v
			}
		}
		states = append(states, st)
	}
	o.Apply(states)
}

// Apply makes the local registry match states. Objects missing from states
// are dropped.
func (o *Observer) Apply(states []EntityState) {
	present := make(map[spawn.ObjectID]bool, len(states))

	for _, st := range states {
		if st.ID == 0 {
			continue
		}
		present[st.ID] = true

		obj, ok := o.registry.Resolve(st.ID)
		if !ok {
			pos, rot := mgl64.Vec3{}, mgl64.QuatIdent()
			if st.Transform != nil {
				pos, rot = st.Transform.Position, st.Transform.Rotation
			}
			var err error
			obj, err = o.registry.Adopt(st.ID, st.kind(), pos, rot)
			if err != nil {
				o.log.Warn().Err(err).Msg("cannot mirror object")
				continue
			}
		}

		switch obj.Kind() {
		case spawn.KindArrow:
			o.applyArrow(obj, st)
		case spawn.KindTarget:
			if st.Transform != nil {
				obj.SetPose(st.Transform.Position, st.Transform.Rotation)
			}
			if st.Target != nil {
				o.targets[st.ID] = *st.Target
			}
		}
		// effects are posed by the predictor of the arrow they follow
	}

	for _, id := range o.registry.IDs() {
		if present[id] {
			continue
		}
		if feed, ok := o.arrows[id]; ok {
			feed.predictor.Release()
			feed.hub.Close()
			delete(o.arrows, id)
		}
		delete(o.targets, id)
		delete(o.pending, id)
		o.registry.Despawn(id)
	}

	for id, q := range o.pending {
		q.snapshots++
		if q.snapshots >= pendingSnapshots {
			o.log.Debug().Uint64("arrow", uint64(id)).Int("events", len(q.events)).Msg("dropping events for unseen arrow")
			delete(o.pending, id)
		}
	}
}

func (o *Observer) applyArrow(obj *spawn.Object, st EntityState) {
	feed := o.feed(obj)
	if st.Arrow != nil {
		feed.hub.Publish(replication.State{
			Position:   st.Arrow.Position,
			Velocity:   st.Arrow.Velocity,
			PointIndex: st.Arrow.PointIndex,
			Moving:     st.Arrow.Moving,
		})
	}
	if st.Effect != nil && st.Effect.EffectID != 0 {
		feed.hub.SetEffect(spawn.ObjectID(st.Effect.EffectID))
	}
}

func (o *Observer) feed(obj *spawn.Object) *arrowFeed {
	if feed, ok := o.arrows[obj.ID()]; ok {
		return feed
	}

	hub := replication.NewHub()
	feed := &arrowFeed{
		hub: hub,
		predictor: NewArrowPredictor(PredictorOptions{
			Object:              obj,
			Source:              hub.Subscribe(),
			Resolver:            o.registry,
			Gravity:             o.opts.Gravity,
			InterpolationFactor: o.opts.InterpolationFactor,
			Logger:              o.opts.Logger,
			OnDamage:            o.opts.OnDamage,
		}),
	}
	o.arrows[obj.ID()] = feed

	if q, ok := o.pending[obj.ID()]; ok {
		for _, evt := range q.events {
			hub.Broadcast(evt)
		}
		delete(o.pending, obj.ID())
	}
	return feed
}

// HandleEvent routes a one-shot event to the arrow it names.
func (o *Observer) HandleEvent(evt any) {
	var id spawn.ObjectID
	switch e := evt.(type) {
	case messages.ArrowLaunchEvent:
		id = spawn.ObjectID(e.ArrowID)
	case messages.ArrowStuckEvent:
		id = spawn.ObjectID(e.ArrowID)
	case messages.ArrowDamageEvent:
		id = spawn.ObjectID(e.ArrowID)
	case messages.LaunchRejected:
		o.log.Warn().Str("reason", e.Reason).Msg("server refused a launch")
		return
	default:
		o.log.Debug().Msgf("ignoring %T", evt)
		return
	}

	if feed, ok := o.arrows[id]; ok {
		feed.hub.Broadcast(evt)
		return
	}
	q, ok := o.pending[id]
	if !ok {
		q = &pendingEvents{}
		o.pending[id] = q
	}
	if len(q.events) >= pendingPerArrow {
		o.log.Debug().Uint64("arrow", uint64(id)).Msgf("pending queue full, dropping %T", evt)
		return
	}
	q.events = append(q.events, evt)
}

// Tick advances every predictor by dt.
func (o *Observer) Tick(dt time.Duration) {
	for _, id := range o.ArrowIDs() {
		o.arrows[id].predictor.Tick(dt)
	}
}

// Pump feeds everything the client received since the last call.
func (o *Observer) Pump(c *Client) {
	if snap := c.LatestSnapshot(); snap != nil {
		o.ApplySnapshot(*snap)
	}
	for _, evt := range c.DrainEvents() {
		o.HandleEvent(evt)
	}
}

// ArrowIDs returns the mirrored arrows in id order.
func (o *Observer) ArrowIDs() []spawn.ObjectID {
	ids := slices.Collect(maps.Keys(o.arrows))
	slices.Sort(ids)
	return ids
}

func (o *Observer) Predictor(id spawn.ObjectID) (*ArrowPredictor, bool) {
	feed, ok := o.arrows[id]
	if !ok {
		return nil, false
	}
	return feed.predictor, true
}

func (o *Observer) Target(id spawn.ObjectID) (netcomponents.NetTargetData, bool) {
	t, ok := o.targets[id]
	return t, ok
}

func (o *Observer) Objects() *spawn.Registry { return o.registry }
