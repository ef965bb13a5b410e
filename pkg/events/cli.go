package events

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go2school/go2school/pkg/consumer"
	"github.com/go2school/go2school/pkg/redis_client"
	"github.com/go2school/go2school/pkg/relay"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Consumes relayed tracking events",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run events consumer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "stats-listen",
						Value: ":3333",
						Usage: "listen target for the queue stats server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					redisConsumer := consumer.RedisConsumer{
						Connection:      redis_client.QueueConnection,
						QueueName:       relay.QueueName,
						NumberConsumers: 5,
						BatchSize:       20,
						Timeout:         2 * time.Second,
						Consumer:        NewBatchConsumer(LogSink{Logger: log.Logger}),
					}
					if err := redisConsumer.Setup(); err != nil {
						return err
					}

					go func() {
						if err := redisConsumer.StartStatsServer(c.String("stats-listen"), redis_client.Client); err != nil {
							log.Error().Err(err).Msg("Stats server stopped")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					redisConsumer.Stop() // wait for all Consume() calls to finish

					return nil
				},
			},
		},
	}
}
