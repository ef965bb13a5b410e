package redis_client

import (
	"context"
	"strconv"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/cenkalti/backoff/v4"
	"github.com/go2school/go2school/pkg/util"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

const connectionTag = "go2school"

func Connect() error {
	address := defaultConnectionAddress
	password := defaultConnectionPassword
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["GO2SCHOOL_REDIS_ADDRESS"] != "" {
		address = env["GO2SCHOOL_REDIS_ADDRESS"]
	}

	if env["GO2SCHOOL_REDIS_PASSWORD"] != "" {
		password = env["GO2SCHOOL_REDIS_PASSWORD"]
	}

	if env["GO2SCHOOL_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["GO2SCHOOL_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	})

	ping := func() error {
		err := client.Ping(context.Background()).Err()
		if err != nil {
			log.Warn().Err(err).Str("address", address).Msg("Redis not reachable yet")
		}
		return err
	}

	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(ping, retry); err != nil {
		return err
	}

	return Setup(client)
}

// Setup opens the queue connection on an already connected client
func Setup(client *redis.Client) error {
	connection, err := rmq.OpenConnectionWithRedisClient(connectionTag, client, nil)
	if err != nil {
		return err
	}

	Client = client
	QueueConnection = connection

	log.Info().Str("address", client.Options().Addr).Msg("Connected to Redis")

	return nil
}
