package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/automoto/arrowflight/shared/netconfig"
	"gopkg.in/yaml.v3"
)

// File is the on-disk overlay. Every field is optional; absent fields keep
// their defaults.
type File struct {
	Arrow *struct {
		Speed                       *float64 `yaml:"speed"`
		AutoOrient                  *bool    `yaml:"autoOrient"`
		OrientSmoothing             *float64 `yaml:"orientSmoothing"`
		Damage                      *float64 `yaml:"damage"`
		StickToTarget               *bool    `yaml:"stickToTarget"`
		SurfaceClearance            *float64 `yaml:"surfaceClearance"`
		CastMode                    *string  `yaml:"castMode"`
		SphereRadius                *float64 `yaml:"sphereRadius"`
		HitMask                     *uint32  `yaml:"hitMask"`
		StickDuration               *string  `yaml:"stickDuration"`
		CompletionDelay             *string  `yaml:"completionDelay"`
		StopDelay                   *string  `yaml:"stopDelay"`
		SyncRate                    *float64 `yaml:"syncRate"`
		InterpolationFactor         *float64 `yaml:"interpolationFactor"`
		EffectKind                  *string  `yaml:"effectKind"`
		StraightShotSpeedMultiplier *float64 `yaml:"straightShotSpeedMultiplier"`
	} `yaml:"arrow"`

	Simulation *struct {
		TickRate *int       `yaml:"tickRate"`
		Gravity  *[]float64 `yaml:"gravity"`
	} `yaml:"simulation"`

	Network *struct {
		Port          *uint   `yaml:"port"`
		StatusAddress *string `yaml:"statusAddress"`
		ServerAddress *string `yaml:"serverAddress"`

		MasterURL         *string `yaml:"masterUrl"`
		RangeName         *string `yaml:"rangeName"`
		AdvertiseAddress  *string `yaml:"advertiseAddress"`
		HeartbeatInterval *string `yaml:"heartbeatInterval"`
	} `yaml:"network"`

	Arena *struct {
		AssetsDir      *string  `yaml:"assetsDir"`
		Arena          *string  `yaml:"arena"`
		PixelsPerMeter *float64 `yaml:"pixelsPerMeter"`
	} `yaml:"arena"`
}

// Load reads a YAML overlay from path and applies it.
func Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Apply(raw); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// Apply decodes a YAML overlay and applies it on top of the current values.
// Nothing is changed when the overlay is invalid.
func Apply(raw []byte) error {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	arrow, sim, network, arena := Arrow, Simulation, Network, Arena

	if a := f.Arrow; a != nil {
		set(&arrow.Speed, a.Speed)
		set(&arrow.AutoOrient, a.AutoOrient)
		set(&arrow.OrientSmoothing, a.OrientSmoothing)
		set(&arrow.Damage, a.Damage)
		set(&arrow.StickToTarget, a.StickToTarget)
		set(&arrow.SurfaceClearance, a.SurfaceClearance)
		set(&arrow.SphereRadius, a.SphereRadius)
		set(&arrow.SyncRate, a.SyncRate)
		set(&arrow.InterpolationFactor, a.InterpolationFactor)
		set(&arrow.EffectKind, a.EffectKind)
		set(&arrow.StraightShotSpeedMultiplier, a.StraightShotSpeedMultiplier)

		if a.CastMode != nil {
			mode, ok := netconfig.ParseCastMode(*a.CastMode)
			if !ok {
				return fmt.Errorf("arrow.castMode: unknown mode %q", *a.CastMode)
			}
			arrow.CastMode = mode
		}
		if a.HitMask != nil {
			arrow.HitMask = netconfig.Layer(*a.HitMask)
		}
		for _, d := range []struct {
			name string
			src  *string
			dst  *time.Duration
		}{
			{"stickDuration", a.StickDuration, &arrow.StickDuration},
			{"completionDelay", a.CompletionDelay, &arrow.CompletionDelay},
			{"stopDelay", a.StopDelay, &arrow.StopDelay},
		} {
			if d.src == nil {
				continue
			}
			v, err := time.ParseDuration(*d.src)
			if err != nil {
				return fmt.Errorf("arrow.%s: %w", d.name, err)
			}
			*d.dst = v
		}
		for _, v := range []struct {
			name string
			val  float64
		}{
			{"speed", arrow.Speed},
			{"syncRate", arrow.SyncRate},
			{"straightShotSpeedMultiplier", arrow.StraightShotSpeedMultiplier},
		} {
			if !(v.val > 0) || math.IsInf(v.val, 1) {
				return fmt.Errorf("arrow.%s: must be positive, got %g", v.name, v.val)
			}
		}
	}

	if s := f.Simulation; s != nil {
		set(&sim.TickRate, s.TickRate)
		if s.Gravity != nil {
			g := *s.Gravity
			if len(g) != 3 {
				return fmt.Errorf("simulation.gravity: want 3 components, got %d", len(g))
			}
			sim.Gravity[0], sim.Gravity[1], sim.Gravity[2] = g[0], g[1], g[2]
		}
		if sim.TickRate <= 0 {
			return fmt.Errorf("simulation.tickRate: must be positive, got %d", sim.TickRate)
		}
	}

	if n := f.Network; n != nil {
		set(&network.Port, n.Port)
		set(&network.StatusAddress, n.StatusAddress)
		set(&network.ServerAddress, n.ServerAddress)
		set(&network.MasterURL, n.MasterURL)
		set(&network.RangeName, n.RangeName)
		set(&network.AdvertiseAddress, n.AdvertiseAddress)
		if n.HeartbeatInterval != nil {
			v, err := time.ParseDuration(*n.HeartbeatInterval)
			if err != nil {
				return fmt.Errorf("network.heartbeatInterval: %w", err)
			}
			if v <= 0 {
				return fmt.Errorf("network.heartbeatInterval: must be positive, got %s", v)
			}
			network.HeartbeatInterval = v
		}
	}

	if l := f.Arena; l != nil {
		set(&arena.AssetsDir, l.AssetsDir)
		set(&arena.Arena, l.Arena)
		set(&arena.PixelsPerMeter, l.PixelsPerMeter)
	}

	Arrow, Simulation, Network, Arena = arrow, sim, network, arena
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
