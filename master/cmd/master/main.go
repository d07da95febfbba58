package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/automoto/arrowflight/master"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var CLI struct {
	Debug bool          `help:"Whether to enable debug logging."`
	Port  int           `help:"HTTP listen port." default:"8080"`
	TTL   time.Duration `help:"Range TTL before expiry." name:"ttl" default:"90s"`
}

func main() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(consoleWriter)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	kong.Parse(&CLI,
		kong.Name("arrowflight-master"),
		kong.Description("directory of running arrow ranges"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if CLI.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	reg := master.NewRegistry(CLI.TTL)
	go reg.Run(30 * time.Second)
	defer reg.Stop()

	addr := fmt.Sprintf(":%d", CLI.Port)
	log.Info().Str("address", addr).Dur("ttl", CLI.TTL).Msg("starting master")
	if err := http.ListenAndServe(addr, master.Handler(reg)); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
