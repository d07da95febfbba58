package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/arrowflight/assets"
	cfg "github.com/automoto/arrowflight/config"
	"github.com/automoto/arrowflight/master"
	"github.com/automoto/arrowflight/network"
	"github.com/automoto/arrowflight/shared/messages"
	"github.com/automoto/arrowflight/shared/protocol"
	"github.com/automoto/arrowflight/shared/spawn"

	"github.com/alecthomas/kong"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const connectTimeout = 5 * time.Second

var CLI struct {
	Config string `help:"YAML file overriding the built-in tuning." type:"existingfile" short:"c"`
	Debug  bool   `help:"Whether to enable debug logging."`
	Server string `help:"Address of the arrow server." short:"s"`

	Watch struct {
		For time.Duration `help:"Stop after this long, 0 runs until interrupted." default:"0"`
	} `cmd:"" help:"Mirror the server's arrows and log their predicted flight."`

	Launch struct {
		From     []float64     `help:"Launch position x,y,z." default:"2,3,0"`
		Velocity []float64     `help:"Launch velocity x,y,z." default:"12,8,0"`
		Points   int           `help:"Trajectory points." default:"60"`
		TimeStep float64       `help:"Seconds between trajectory points." name:"time-step" default:"0.05"`
		Straight bool          `help:"Flat shot at boosted speed."`
		For      time.Duration `help:"How long to watch the shot." default:"5s"`
	} `cmd:"" help:"Fire one arrow and watch it land."`

	Arenas struct {
	} `cmd:"" help:"List the arenas shipped with the binary."`

	Ranges struct {
		Master string `arg:"" help:"Master directory URL."`
		Arena  string `help:"Only ranges running this arena, least loaded first."`
	} `cmd:"" help:"List ranges registered with a master directory."`
}

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(consoleWriter)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(os.Args) == 1 {
		if err := watchCommand(0); err != nil {
			writeError(err)
		}
		return
	}

	ctx := kong.Parse(&CLI,
		kong.Name("arrowflight"),
		kong.Description("observer for the arrow server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if CLI.Config != "" {
		if err := cfg.Load(CLI.Config); err != nil {
			writeError(err)
		}
	}
	if CLI.Server != "" {
		cfg.Network.ServerAddress = CLI.Server
	}

	if CLI.Debug || cfg.Debug.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Warn().Msg("debug logging enabled")
	}

	var err error
	switch ctx.Command() {
	case "watch":
		err = watchCommand(CLI.Watch.For)
	case "launch":
		err = launchCommand()
	case "arenas":
		err = arenasCommand()
	case "ranges <master>":
		err = rangesCommand(CLI.Ranges.Master, CLI.Ranges.Arena)
	}
	if err != nil {
		writeError(err)
	}
}

func watchCommand(d time.Duration) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Disconnect()

	return observe(client, d)
}

func launchCommand() error {
	from, err := vec3(CLI.Launch.From)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	velocity, err := vec3(CLI.Launch.Velocity)
	if err != nil {
		return fmt.Errorf("--velocity: %w", err)
	}

	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Disconnect()

	req := messages.LaunchRequest{
		Start:             from,
		LaunchVelocity:    velocity,
		PointCount:        CLI.Launch.Points,
		TimeStep:          CLI.Launch.TimeStep,
		GravityMultiplier: 1,
		StraightShot:      CLI.Launch.Straight,
	}
	if err := client.Launch(req); err != nil {
		return fmt.Errorf("send launch: %w", err)
	}
	log.Info().
		Interface("from", from).
		Interface("velocity", velocity).
		Bool("straight", req.StraightShot).
		Msg("launch requested")

	return observe(client, CLI.Launch.For)
}

func arenasCommand() error {
	names, err := assets.ArenaNames(assets.FS(), cfg.Arena.ArenasDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func rangesCommand(masterURL, arena string) error {
	endpoint := masterURL + "/ranges"
	if arena != "" {
		endpoint += "?arena=" + url.QueryEscape(arena)
	}
	client := &http.Client{Timeout: connectTimeout}
	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("query master: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query master: unexpected status %d", resp.StatusCode)
	}

	var ranges []master.RangeInfo
	if err := json.NewDecoder(resp.Body).Decode(&ranges); err != nil {
		return fmt.Errorf("decode ranges: %w", err)
	}
	for _, r := range ranges {
		fmt.Printf("%s\t%s\tarena=%s observers=%d arrows=%d\n", r.Name, r.Address, r.Arena, r.Observers, r.ActiveArrows)
	}
	return nil
}

func connect() (*network.Client, error) {
	if err := protocol.RegisterComponents(); err != nil {
		return nil, fmt.Errorf("failed to register components: %w", err)
	}

	client := network.NewClient()
	client.Connect(cfg.Network.ServerAddress)

	deadline := time.Now().Add(connectTimeout)
	for time.Now().Before(deadline) {
		switch client.State() {
		case network.StateConnected:
			return client, nil
		case network.StateError:
			return nil, client.LastError()
		}
		time.Sleep(50 * time.Millisecond)
	}
	client.Disconnect()
	return nil, fmt.Errorf("no connection to %s after %s", cfg.Network.ServerAddress, connectTimeout)
}

// observe runs the observer loop until d elapses (0 for never), an interrupt
// arrives or the connection drops.
func observe(client *network.Client, d time.Duration) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	observer := network.NewObserver(network.ObserverOptions{
		Gravity:             cfg.Simulation.Gravity,
		InterpolationFactor: cfg.Arrow.InterpolationFactor,
		Logger:              log.Logger,
		OnDamage: func(e messages.ArrowDamageEvent) {
			log.Info().Uint("arrow", e.ArrowID).Uint("target", e.TargetID).Float64("damage", e.Damage).Msg("hit")
		},
	})

	dt := cfg.Simulation.TickDuration()
	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	seen := make(map[spawn.ObjectID]string)
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Info().Msg("interrupted")
			}
			return nil
		case <-ticker.C:
		}

		if client.State() != network.StateConnected {
			if err := client.LastError(); err != nil {
				return err
			}
			return errors.New("connection closed")
		}

		observer.Pump(client)
		observer.Tick(dt)
		report(observer, seen)
	}
}

// report logs phase changes once and positions at debug level.
func report(o *network.Observer, seen map[spawn.ObjectID]string) {
	live := make(map[spawn.ObjectID]bool)
	for _, id := range o.ArrowIDs() {
		live[id] = true
		pred, _ := o.Predictor(id)

		phase := "waiting"
		switch {
		case pred.Stuck():
			phase = "stuck"
		case pred.Moving():
			phase = "flying"
		case pred.Launched():
			phase = "resting"
		}

		if seen[id] != phase {
			seen[id] = phase
			evt := log.Info().Uint64("arrow", uint64(id)).Str("phase", phase).Interface("position", pred.Position())
			if phase == "stuck" && pred.ParentID() != 0 {
				evt = evt.Uint64("parent", uint64(pred.ParentID()))
			}
			evt.Msg("arrow")
		}
		if pred.Moving() {
			log.Debug().
				Uint64("arrow", uint64(id)).
				Int("index", pred.PredictedIndex()).
				Interface("position", pred.Position()).
				Interface("velocity", pred.Velocity()).
				Msg("predicted")
		}
	}

	for id := range seen {
		if !live[id] {
			log.Info().Uint64("arrow", uint64(id)).Msg("arrow despawned")
			delete(seen, id)
		}
	}
}

func vec3(v []float64) (mgl64.Vec3, error) {
	if len(v) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("want 3 components, got %d", len(v))
	}
	return mgl64.Vec3{v[0], v[1], v[2]}, nil
}
