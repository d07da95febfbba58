package config

import (
	"time"

	"github.com/automoto/arrowflight/shared/netconfig"
	"github.com/go-gl/mathgl/mgl64"
)

// ArrowConfig contains all projectile tuning values
type ArrowConfig struct {
	// Movement
	Speed           float64 // world units per second along the path
	AutoOrient      bool    // turn the arrow to face its travel direction
	OrientSmoothing float64 // slerp rate per second toward the travel direction
	MinSpeed        float64 // floor used when inferring velocity from points

	// Hit
	Damage           float64
	StickToTarget    bool    // parent the arrow onto a network-identified target
	SurfaceClearance float64 // distance kept from the hit surface
	CastMode         netconfig.CastMode
	SphereRadius     float64
	HitMask          netconfig.Layer

	// Lifetime
	StickDuration   time.Duration // stuck arrow lingers this long
	CompletionDelay time.Duration // after the last point without a hit
	StopDelay       time.Duration // after a manual stop

	// Replication
	SyncRate float64 // target state publishes per second while moving

	// Observer
	InterpolationFactor float64 // per-tick blend toward replicated state

	// Effect spawned with each arrow, empty for none
	EffectKind string

	// Legacy point-sequence launches
	LegacyTimeStep          float64
	LegacyGravityMultiplier float64

	// Launcher
	StraightShotSpeedMultiplier float64
}

// SimulationConfig contains the fixed-step world settings
type SimulationConfig struct {
	TickRate int
	Gravity  mgl64.Vec3
}

// TickDuration is the length of one fixed step.
func (s SimulationConfig) TickDuration() time.Duration {
	if s.TickRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(s.TickRate)
}

// NetworkConfig contains server and client transport settings
type NetworkConfig struct {
	Port          uint
	StatusAddress string // empty disables the HTTP status endpoints
	ServerAddress string // where observers dial

	// Range directory, empty MasterURL disables registration
	MasterURL         string
	RangeName         string
	AdvertiseAddress  string // address observers should dial, defaults to :Port
	HeartbeatInterval time.Duration
}

// ArenaConfig selects the level collision comes from
type ArenaConfig struct {
	AssetsDir      string
	ArenasDir      string
	Arena          string
	PixelsPerMeter float64
	CellSize       int // resolv spatial hash cell size, in arena units
	UnitsPerMeter  float64
}

// DebugConfig contains debug toggles
type DebugConfig struct {
	Verbose bool
}

var Arrow ArrowConfig
var Simulation SimulationConfig
var Network NetworkConfig
var Arena ArenaConfig
var Debug DebugConfig

func init() {
	Reset()
}

// Reset restores every section to its defaults.
func Reset() {
	// Arrow Config
	Arrow = ArrowConfig{
		// Movement
		Speed:           20,
		AutoOrient:      true,
		OrientSmoothing: 10,
		MinSpeed:        0.01,

		// Hit
		Damage:           20,
		StickToTarget:    true,
		SurfaceClearance: 0.02,
		CastMode:         netconfig.CastRay,
		SphereRadius:     0.05,
		HitMask:          netconfig.LayerAll,

		// Lifetime
		StickDuration:   3 * time.Second,
		CompletionDelay: 500 * time.Millisecond,
		StopDelay:       100 * time.Millisecond,

		// Replication
		SyncRate: 30,

		// Observer
		InterpolationFactor: 0.1,

		EffectKind: "effect.trail",

		// Legacy
		LegacyTimeStep:          0.0333,
		LegacyGravityMultiplier: 1,

		StraightShotSpeedMultiplier: 2,
	}

	// Simulation Config
	Simulation = SimulationConfig{
		TickRate: 50,
		Gravity:  mgl64.Vec3{0, -9.81, 0},
	}

	// Network Config
	Network = NetworkConfig{
		Port:          7373,
		StatusAddress: ":7374",
		ServerAddress: "localhost:7373",

		RangeName:         "arrowflight",
		HeartbeatInterval: 30 * time.Second,
	}

	// Arena Config
	Arena = ArenaConfig{
		AssetsDir:      "assets",
		ArenasDir:      "arenas",
		Arena:          "range",
		PixelsPerMeter: 32,
		CellSize:       16,
		UnitsPerMeter:  100,
	}

	Debug = DebugConfig{}
}
