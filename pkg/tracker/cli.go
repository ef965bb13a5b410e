package tracker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go2school/go2school/pkg/config"
	"github.com/go2school/go2school/pkg/fixtures"
	"github.com/go2school/go2school/pkg/store"
	"github.com/go2school/go2school/pkg/transforms"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var sharedFlags = []cli.Flag{
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
	&cli.StringFlag{
		Name:  "collection",
		Value: "vehicles",
		Usage: "collection to print",
	},
}

// Setup builds an engine from the config, dataset and transforms flags
func Setup(c *cli.Context) (*Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	dataset, err := fixtures.Load(c.String("dataset"), time.Now())
	if err != nil {
		return nil, err
	}

	if path := c.String("transforms"); path != "" {
		definitions, err := transforms.Load(path)
		if err != nil {
			return nil, err
		}

		for collection, entities := range dataset {
			changed := transforms.Transform(definitions, entities)
			log.Debug().Str("collection", collection).Int("changed", changed).Msg("Applied dataset transforms")
		}
	}

	return New(cfg, dataset)
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Headless live-tracking engine",
		Subcommands: []*cli.Command{
			{
				Name:  "watch",
				Usage: "subscribe to a collection and print every snapshot delivered",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "ticks",
						Usage: "stop after this many ticks, 0 runs until interrupted",
					},
				}, sharedFlags...),
				Action: func(c *cli.Context) error {
					engine, err := Setup(c)
					if err != nil {
						return err
					}
					defer engine.Shutdown()

					ticks := c.Int("ticks")
					delivered := make(chan struct{}, 1)

					cancel := engine.Subscribe(c.String("collection"), func(snapshot store.Snapshot) {
						printSnapshot(snapshot)

						select {
						case delivered <- struct{}{}:
						default:
						}
					})
					defer cancel()

					log.Info().Str("collection", c.String("collection")).Dur("interval", engine.Config().TickInterval).Msg("Watching collection")

					return watch(c.Context, engine, ticks, delivered)
				},
			},
			{
				Name:  "dump",
				Usage: "print a single snapshot of a collection",
				Flags: sharedFlags,
				Action: func(c *cli.Context) error {
					engine, err := Setup(c)
					if err != nil {
						return err
					}
					defer engine.Shutdown()

					snapshot, err := engine.LookupSnapshot(c.String("collection"))
					if err != nil {
						return err
					}

					printSnapshot(snapshot)
					return nil
				},
			},
		},
	}
}

func watch(ctx context.Context, engine *Engine, ticks int, delivered <-chan struct{}) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	// the initial snapshot has already been delivered
	<-delivered

	if ticks <= 0 {
		<-signals
		return nil
	}

	for received := 0; received < ticks; {
		select {
		case <-signals:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-delivered:
			received++
		case <-time.After(2 * engine.Config().TickInterval):
			if !engine.Moving() {
				return fmt.Errorf("collection is not driven by the simulation timer")
			}
		}
	}

	return nil
}

func printSnapshot(snapshot store.Snapshot) {
	fmt.Printf("%s v%d (%d items)\n", snapshot.Collection, snapshot.Version, snapshot.Len())
	for _, item := range snapshot.Items {
		pretty.Println(item)
	}
}
