package core

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	cfg "github.com/automoto/arrowflight/config"
	"github.com/automoto/arrowflight/shared/gamemath"
	"github.com/automoto/arrowflight/shared/messages"
	"github.com/automoto/arrowflight/shared/netcomponents"
	"github.com/automoto/arrowflight/shared/netconfig"
	"github.com/automoto/arrowflight/shared/replication"
	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/esync/srvsync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
	"github.com/yohamta/donburi"
)

var ErrUnknownArrow = errors.New("unknown arrow")

type arrowSlot struct {
	id     spawn.ObjectID
	ctrl   *ArrowController
	hub    *replication.Hub
	entity donburi.Entity
}

// Options configures a Server. Zero values fall back to the package config.
type Options struct {
	Arrow      cfg.ArrowConfig
	Simulation cfg.SimulationConfig
	Level      *ServerLevel
	Logger     *zerolog.Logger
}

// Server owns the authoritative world: every arrow controller, the arena
// colliders and the network-visible objects mirrored into necs.
type Server struct {
	world     donburi.World
	loop      *GameLoop
	transport *transports.WsServerTransport

	arrowCfg cfg.ArrowConfig
	simCfg   cfg.SimulationConfig
	log      zerolog.Logger

	registry  *spawn.Registry
	scheduler *Scheduler
	level     *ServerLevel
	pool      *netPool

	// owned by the tick goroutine
	arrows  map[spawn.ObjectID]*arrowSlot
	targets []*TargetDummy

	mu       deadlock.RWMutex
	clients  map[*router.NetworkClient]struct{}
	commands []func()
	status   []ArrowStatus

	// track registers a new entity for network sync and returns its identity
	track func(entity *donburi.Entity, kind string) (spawn.ObjectID, error)
	// broadcast delivers an event to every observer
	broadcast func(evt any)
}

// NewServer creates a networked server. Call protocol.RegisterComponents
// before Start.
func NewServer(opts Options) *Server {
	s := newServer(opts)
	s.track = s.networkSync
	s.broadcast = s.sendToClients

	srvsync.UseEsync(s.world)
	s.setupRouterCallbacks()
	s.spawnTargets()
	return s
}

func newServer(opts Options) *Server {
	if opts.Arrow == (cfg.ArrowConfig{}) {
		opts.Arrow = cfg.Arrow
	}
	if opts.Simulation == (cfg.SimulationConfig{}) {
		opts.Simulation = cfg.Simulation
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &Server{
		world:     donburi.NewWorld(),
		arrowCfg:  opts.Arrow,
		simCfg:    opts.Simulation,
		log:       logger.With().Str("component", "server").Logger(),
		registry:  spawn.NewRegistry(),
		scheduler: NewScheduler(),
		level:     opts.Level,
		arrows:    make(map[spawn.ObjectID]*arrowSlot),
		clients:   make(map[*router.NetworkClient]struct{}),
	}
	s.pool = &netPool{s: s, entities: make(map[spawn.ObjectID]donburi.Entity)}
	s.loop = NewGameLoop(s, s.simCfg.TickRate)
	return s
}

// Start runs the tick loop and serves observers on the given port.
func (s *Server) Start(port uint) error {
	go s.loop.Run()

	s.transport = transports.NewWsServerTransport(port, "", nil)
	return s.transport.Start()
}

// Stop halts the tick loop.
func (s *Server) Stop() {
	s.loop.Stop()
}

func (s *Server) setupRouterCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		s.mu.Lock()
		s.clients[client] = struct{}{}
		s.mu.Unlock()
		s.log.Info().Str("client", client.Id()).Msg("observer connected")
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		s.log.Info().Str("client", client.Id()).AnErr("reason", err).Msg("observer disconnected")
	})

	router.On(func(client *router.NetworkClient, req messages.LaunchRequest) {
		s.LaunchArrow(req, s.rejectTo(client))
	})

	router.On(func(client *router.NetworkClient, req messages.LegacyLaunchRequest) {
		s.LaunchLegacy(req.Points, s.rejectTo(client))
	})

	router.On(func(client *router.NetworkClient, req messages.StopRequest) {
		s.StopArrow(spawn.ObjectID(req.ArrowID))
	})

	router.OnError(func(client *router.NetworkClient, err error) {
		s.log.Warn().Err(err).Msg("client error")
	})
}

// rejectTo answers a failed launch on the requesting connection.
func (s *Server) rejectTo(client *router.NetworkClient) func(spawn.ObjectID, error) {
	return func(_ spawn.ObjectID, err error) {
		if err == nil {
			return
		}
		if sendErr := client.SendMessage(messages.LaunchRejected{Reason: err.Error()}); sendErr != nil {
			s.log.Warn().Err(sendErr).Msg("failed to send launch rejection")
		}
	}
}

// networkSync marks an entity for esync replication.
func (s *Server) networkSync(entity *donburi.Entity, kind string) (spawn.ObjectID, error) {
	var err error
	switch kind {
	case spawn.KindArrow:
		err = srvsync.NetworkSync(s.world, entity,
			srvsync.WithInterp(netcomponents.NetArrow, netcomponents.NetTransform),
			netcomponents.NetArrowEffect,
		)
	case spawn.KindTarget:
		err = srvsync.NetworkSync(s.world, entity, netcomponents.NetTransform, netcomponents.NetTarget)
	default:
		err = srvsync.NetworkSync(s.world, entity, srvsync.WithInterp(netcomponents.NetTransform))
	}
	if err != nil {
		return 0, fmt.Errorf("network sync %s: %w", kind, err)
	}

	nid := esync.GetNetworkId(s.world.Entry(*entity))
	if nid == nil {
		return 0, fmt.Errorf("network sync %s: no id assigned", kind)
	}
	return spawn.ObjectID(*nid), nil
}

func (s *Server) sendToClients(evt any) {
	s.mu.RLock()
	clients := slices.Collect(maps.Keys(s.clients))
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.SendMessage(evt); err != nil {
			s.log.Warn().Err(err).Str("client", c.Id()).Msgf("failed to send %T", evt)
		}
	}
}

func (s *Server) broadcastEvent(evt any) {
	if s.broadcast != nil {
		s.broadcast(evt)
	}
}

// enqueue defers fn to the next tick.
func (s *Server) enqueue(fn func()) {
	s.mu.Lock()
	s.commands = append(s.commands, fn)
	s.mu.Unlock()
}

// ProcessCommands runs queued requests on the tick goroutine.
func (s *Server) ProcessCommands() {
	s.mu.Lock()
	cmds := s.commands
	s.commands = nil
	s.mu.Unlock()

	for _, fn := range cmds {
		fn()
	}
}

// LaunchArrow queues a parameterised launch. done, if set, runs on the tick
// goroutine with the new arrow's identity or the reason it was refused.
func (s *Server) LaunchArrow(req messages.LaunchRequest, done func(spawn.ObjectID, error)) {
	s.enqueue(func() {
		arrowCfg := s.arrowCfg
		if req.StraightShot {
			arrowCfg.Speed *= arrowCfg.StraightShotSpeedMultiplier
		}
		id, err := s.launch(arrowCfg, func(a *ArrowController) error {
			return a.Launch(gamemath.TrajectoryParams{
				Start:             req.Start,
				LaunchVelocity:    req.LaunchVelocity,
				PointCount:        req.PointCount,
				TimeStep:          req.TimeStep,
				GravityMultiplier: req.GravityMultiplier,
			})
		})
		if done != nil {
			done(id, err)
		}
	})
}

// LaunchLegacy queues a launch along pre-rendered points.
func (s *Server) LaunchLegacy(points []mgl64.Vec3, done func(spawn.ObjectID, error)) {
	points = slices.Clone(points)
	s.enqueue(func() {
		id, err := s.launch(s.arrowCfg, func(a *ArrowController) error {
			return a.LaunchLegacy(points)
		})
		if done != nil {
			done(id, err)
		}
	})
}

// StopArrow queues an early stop.
func (s *Server) StopArrow(id spawn.ObjectID) {
	s.enqueue(func() {
		slot, ok := s.arrows[id]
		if !ok {
			s.log.Debug().Uint64("arrow", uint64(id)).Msg("stop for unknown arrow")
			return
		}
		slot.ctrl.StopMoving()
	})
}

func (s *Server) launch(arrowCfg cfg.ArrowConfig, start func(*ArrowController) error) (spawn.ObjectID, error) {
	obj, err := s.pool.Spawn(spawn.KindArrow, mgl64.Vec3{}, mgl64.QuatIdent())
	if err != nil {
		return 0, fmt.Errorf("spawn arrow: %w", err)
	}

	slot := &arrowSlot{id: obj.ID(), hub: replication.NewHub(), entity: s.pool.entities[obj.ID()]}
	opts := ArrowOptions{
		Object:      obj,
		Authority:   true,
		Config:      arrowCfg,
		Gravity:     s.simCfg.Gravity,
		Pool:        s.pool,
		Publisher:   &arrowPublisher{s: s, slot: slot},
		Scheduler:   s.scheduler,
		Logger:      s.log,
		OnDestroyed: s.forget,
	}
	if s.level != nil {
		opts.Prober = s.level
	}
	slot.ctrl = NewArrowController(opts)
	s.arrows[slot.id] = slot

	if err := start(slot.ctrl); err != nil {
		delete(s.arrows, slot.id)
		slot.hub.Close()
		s.pool.Despawn(slot.id)
		return 0, err
	}
	return slot.id, nil
}

func (s *Server) forget(a *ArrowController) {
	slot, ok := s.arrows[a.ID()]
	if !ok {
		return
	}
	delete(s.arrows, slot.id)
	slot.hub.Close()
}

// Step advances the simulation by one fixed tick.
func (s *Server) Step(dt time.Duration) {
	s.ProcessCommands()
	s.scheduler.Advance(dt)

	for _, id := range s.arrowIDs() {
		if slot, ok := s.arrows[id]; ok {
			slot.ctrl.FixedUpdate(dt)
		}
	}

	s.pool.syncTransforms()
	s.refreshStatus()
}

func (s *Server) arrowIDs() []spawn.ObjectID {
	ids := slices.Collect(maps.Keys(s.arrows))
	slices.Sort(ids)
	return ids
}

// spawnTargets turns arena targets into damageable colliders. Networked
// targets also become objects arrows can stick to.
func (s *Server) spawnTargets() {
	if s.level == nil {
		return
	}
	for _, t := range s.level.Arena.Targets {
		dummy := NewTargetDummy(t)
		dummy.onDamage = s.onTargetDamaged

		if t.Networked {
			obj, err := s.pool.Spawn(spawn.KindTarget, t.Box.Center(), mgl64.QuatIdent())
			if err != nil {
				s.log.Warn().Err(err).Str("target", t.Name).Msg("target stays local")
			} else {
				dummy.id = obj.ID()
				s.pool.setTarget(dummy)
			}
		}

		s.level.AddCollider(t.Box, netconfig.LayerTarget, dummy)
		s.targets = append(s.targets, dummy)
	}
}

func (s *Server) onTargetDamaged(d *TargetDummy, amount float64, point mgl64.Vec3) {
	s.pool.setTarget(d)
	s.log.Info().
		Str("target", d.Name).
		Float64("damage", amount).
		Float64("health", d.Health()).
		Msg("target hit")
}

// Arrow returns the controller for a live arrow.
func (s *Server) Arrow(id spawn.ObjectID) (*ArrowController, bool) {
	slot, ok := s.arrows[id]
	if !ok {
		return nil, false
	}
	return slot.ctrl, true
}

// Subscribe attaches an in-process observer to a live arrow's channel.
func (s *Server) Subscribe(id spawn.ObjectID) (*replication.Subscription, error) {
	slot, ok := s.arrows[id]
	if !ok {
		return nil, fmt.Errorf("subscribe %d: %w", id, ErrUnknownArrow)
	}
	return slot.hub.Subscribe(), nil
}

func (s *Server) Targets() []*TargetDummy { return s.targets }

// World returns the ECS world
func (s *Server) World() donburi.World {
	return s.world
}

// Objects resolves network-visible objects by identity.
func (s *Server) Objects() *spawn.Registry { return s.registry }

// ClientCount returns the number of connected observers.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ArrowCount is the number of arrows in the last published status.
func (s *Server) ArrowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.status)
}

// arrowPublisher mirrors one controller's output into its necs components,
// its in-process hub and the observer broadcast.
type arrowPublisher struct {
	s    *Server
	slot *arrowSlot
}

func (p *arrowPublisher) PublishState(st replication.State) {
	if entry := p.s.pool.entry(p.slot.id); entry != nil {
		netcomponents.NetArrow.Set(entry, &netcomponents.NetArrowData{
			Position:   st.Position,
			Velocity:   st.Velocity,
			PointIndex: st.PointIndex,
			Moving:     st.Moving,
		})
	}
	p.slot.hub.Publish(st)
}

func (p *arrowPublisher) PublishEffect(id spawn.ObjectID) {
	if entry := p.s.pool.entry(p.slot.id); entry != nil {
		netcomponents.NetArrowEffect.Set(entry, &netcomponents.NetArrowEffectData{EffectID: uint(id)})
	}
	p.slot.hub.SetEffect(id)
}

func (p *arrowPublisher) Broadcast(evt any) {
	p.slot.hub.Broadcast(evt)
	p.s.broadcastEvent(evt)
}
