package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/arrowflight/assets"
	cfg "github.com/automoto/arrowflight/config"
	"github.com/automoto/arrowflight/server/core"
	"github.com/automoto/arrowflight/shared/protocol"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var CLI struct {
	Config   string `help:"YAML file overriding the built-in tuning." type:"existingfile" short:"c"`
	Debug    bool   `help:"Whether to enable debug logging."`
	Port     uint   `help:"Port observers connect to." default:"0"`
	Arena    string `help:"Arena to load collision from."`
	Status   string `help:"Address for the HTTP status endpoints, 'off' to disable."`
	TickRate int    `help:"Simulation steps per second." name:"tick-rate"`
	Master   string `help:"Master directory URL to register with."`
	Name     string `help:"Range name shown in the directory."`
}

// version is set with -ldflags at release time.
var version = "dev"

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(consoleWriter)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	kong.Parse(&CLI,
		kong.Name("arrowflight-server"),
		kong.Description("authoritative arrow simulation"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if err := run(); err != nil {
		writeError(err)
	}
}

func run() error {
	if CLI.Config != "" {
		if err := cfg.Load(CLI.Config); err != nil {
			return err
		}
	}
	applyFlags()

	if CLI.Debug || cfg.Debug.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Warn().Msg("debug logging enabled")
	}

	if err := protocol.RegisterComponents(); err != nil {
		return fmt.Errorf("failed to register components: %w", err)
	}

	level, err := core.LoadServerLevel(
		assets.Open(cfg.Arena.AssetsDir),
		cfg.Arena.ArenasDir,
		cfg.Arena.Arena,
		cfg.Arena.PixelsPerMeter,
		cfg.Arena.CellSize,
		cfg.Arena.UnitsPerMeter,
	)
	if err != nil {
		log.Warn().Err(err).Msg("no arena collision, arrows fly until their last point")
		level = nil
	}

	server := core.NewServer(core.Options{
		Arrow:      cfg.Arrow,
		Simulation: cfg.Simulation,
		Level:      level,
	})

	if addr := cfg.Network.StatusAddress; addr != "" {
		go func() {
			log.Info().Str("address", addr).Msg("status endpoints listening")
			if err := http.ListenAndServe(addr, core.StatusHandler(server)); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	if cfg.Network.MasterURL != "" {
		advertise := cfg.Network.AdvertiseAddress
		if advertise == "" {
			advertise = fmt.Sprintf("localhost:%d", cfg.Network.Port)
		}
		reg := core.NewRegistration(
			cfg.Network.MasterURL,
			cfg.Network.RangeName,
			advertise,
			cfg.Arena.Arena,
			version,
			cfg.Network.HeartbeatInterval,
			server,
		)
		reg.Start()
		defer reg.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down server")
		server.Stop()
		os.Exit(0)
	}()

	log.Info().
		Uint("port", cfg.Network.Port).
		Int("tickRate", cfg.Simulation.TickRate).
		Str("arena", cfg.Arena.Arena).
		Msg("starting arrow server")
	if err := server.Start(cfg.Network.Port); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// applyFlags lets command line flags win over the config file.
func applyFlags() {
	if CLI.Port != 0 {
		cfg.Network.Port = CLI.Port
	}
	if CLI.Arena != "" {
		cfg.Arena.Arena = CLI.Arena
	}
	switch CLI.Status {
	case "":
	case "off":
		cfg.Network.StatusAddress = ""
	default:
		cfg.Network.StatusAddress = CLI.Status
	}
	if CLI.TickRate > 0 {
		cfg.Simulation.TickRate = CLI.TickRate
	}
	if CLI.Master != "" {
		cfg.Network.MasterURL = CLI.Master
	}
	if CLI.Name != "" {
		cfg.Network.RangeName = CLI.Name
	}
}
