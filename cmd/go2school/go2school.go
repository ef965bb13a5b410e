package main

import (
	"os"
	"time"

	"github.com/go2school/go2school/pkg/api"
	"github.com/go2school/go2school/pkg/events"
	"github.com/go2school/go2school/pkg/tracker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("GO2SCHOOL_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("GO2SCHOOL_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "go2school",
		Description: "Live school bus tracking - runs the tracking engine and dashboard API",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			tracker.RegisterCLI(),
			events.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
