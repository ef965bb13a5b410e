package api

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/go2school/go2school/pkg/alerts"
	"github.com/go2school/go2school/pkg/boarding"
	"github.com/go2school/go2school/pkg/redis_client"
	"github.com/go2school/go2school/pkg/relay"
	"github.com/go2school/go2school/pkg/tracker"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "Provides the live-tracking web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
					&cli.StringFlag{
						Name:  "config",
						Usage: "tracking configuration file",
					},
					&cli.StringFlag{
						Name:  "dataset",
						Usage: "dataset file to seed the engine from, the demo dataset when empty",
					},
					&cli.StringFlag{
						Name:  "transforms",
						Usage: "field transforms applied to the dataset before it is loaded",
					},
					&cli.BoolFlag{
						Name:  "relay",
						Usage: "relay telemetry and notifications onto the redis queue",
					},
				},
				Action: func(c *cli.Context) error {
					engine, err := tracker.Setup(c)
					if err != nil {
						return err
					}
					defer engine.Shutdown()

					monitor := alerts.New(engine)
					monitor.Start()
					defer monitor.Stop()

					if c.Bool("relay") {
						if err := redis_client.Connect(); err != nil {
							return err
						}

						eventRelay, err := relay.New(engine, redis_client.QueueConnection, redis_client.Client)
						if err != nil {
							return err
						}
						eventRelay.Start()
						defer eventRelay.Stop()
					}

					boardingService := boarding.New(engine)
					app := NewApp(engine, boardingService)

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					go func() {
						<-signals
						log.Info().Msg("Shutting down web api server")
						app.Shutdown()
					}()

					log.Info().Str("listen", c.String("listen")).Msg("Starting web api server")

					return app.Listen(c.String("listen"))
				},
			},
		},
	}
}
