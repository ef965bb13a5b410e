package consumer

import (
	"fmt"
	"net/http"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type RedisConsumer struct {
	Connection rmq.Connection
	QueueName  string

	NumberConsumers int
	BatchSize       int

	Timeout time.Duration

	Consumer rmq.BatchConsumer
}

func (c *RedisConsumer) Setup() error {
	// Run the background consumers
	log.Info().Str("queue", c.QueueName).Msg("Starting consumers")

	queue, err := c.Connection.OpenQueue(c.QueueName)
	if err != nil {
		return err
	}
	if err := queue.StartConsuming(int64(c.NumberConsumers*c.BatchSize), 100*time.Millisecond); err != nil {
		return err
	}

	for i := 0; i < c.NumberConsumers; i++ {
		log.Debug().Msgf("Starting %s consumer %d", c.QueueName, i)

		if _, err := queue.AddBatchConsumer(fmt.Sprintf("%s-%d", c.QueueName, i), int64(c.BatchSize), c.Timeout, c.Consumer); err != nil {
			return err
		}
	}

	return nil
}

// Stop waits for every consumer on the connection to finish its current batch
func (c *RedisConsumer) Stop() {
	<-c.Connection.StopAllConsuming()
}

func (c *RedisConsumer) StartStatsServer(listen string, client *redis.Client) error {
	mux := http.NewServeMux()

	endpoint := fmt.Sprintf("/%s/stats", c.QueueName)
	mux.Handle(endpoint, NewStatsHandler(c.Connection))
	mux.Handle("/health", NewHealthHandler(client))

	log.Info().Msgf("Stats server listening on http://%s%s", listen, endpoint)
	return http.ListenAndServe(listen, mux)
}
