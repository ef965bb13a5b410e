// Package relay forwards tracking events from the engine onto a redis queue so that
// other processes can consume them.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/go2school/go2school/pkg/broker"
	"github.com/go2school/go2school/pkg/fleet"
	trackerstore "github.com/go2school/go2school/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const QueueName = "tracking-events"

const relayedExpiration = 24 * time.Hour

type Subscriber interface {
	Subscribe(collection string, callback broker.Callback) broker.CancelFunc
}

// Relay publishes a VehicleTelemetry event for every vehicle in each vehicles snapshot
// and a NotificationCreated event for every notification not relayed before.
type Relay struct {
	engine Subscriber
	queue  rmq.Queue
	cache  *cache.Cache[string]
	logger zerolog.Logger

	mu      sync.Mutex
	cancels []broker.CancelFunc
}

func New(engine Subscriber, connection rmq.Connection, client *redis.Client) (*Relay, error) {
	queue, err := connection.OpenQueue(QueueName)
	if err != nil {
		return nil, err
	}

	redisStore := redisstore.NewRedis(client, store.WithExpiration(relayedExpiration))

	return &Relay{
		engine: engine,
		queue:  queue,
		cache:  cache.New[string](redisStore),
		logger: log.Logger.With().Str("component", "relay").Logger(),
	}, nil
}

func (r *Relay) Start() {
	vehicles := r.engine.Subscribe(fleet.CollectionVehicles, r.relayVehicles)
	notifications := r.engine.Subscribe(fleet.CollectionNotifications, r.relayNotifications)

	r.mu.Lock()
	r.cancels = append(r.cancels, vehicles, notifications)
	r.mu.Unlock()

	r.logger.Info().Str("queue", QueueName).Msg("Relaying tracking events")
}

func (r *Relay) Stop() {
	r.mu.Lock()
	cancels := r.cancels
	r.cancels = nil
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (r *Relay) relayVehicles(snapshot trackerstore.Snapshot) {
	for _, vehicle := range trackerstore.Items[*fleet.Vehicle](snapshot) {
		event := &fleet.Event{
			Type:      fleet.EventTypeVehicleTelemetry,
			Timestamp: vehicle.LastUpdate,
			Body:      vehicle,
		}

		if err := r.publish(event); err != nil {
			r.logger.Error().Err(err).Str("vehicle", vehicle.ID).Msg("Failed to relay vehicle telemetry")
		}
	}
}

func (r *Relay) relayNotifications(snapshot trackerstore.Snapshot) {
	ctx := context.Background()

	for _, notification := range trackerstore.Items[*fleet.Notification](snapshot) {
		key := cacheKey(notification.ID)

		if _, err := r.cache.Get(ctx, key); err == nil {
			continue
		}

		event := &fleet.Event{
			Type:      fleet.EventTypeNotificationCreated,
			Timestamp: notification.Timestamp,
			Body:      notification,
		}

		if err := r.publish(event); err != nil {
			r.logger.Error().Err(err).Str("notification", notification.ID).Msg("Failed to relay notification")
			continue
		}

		if err := r.cache.Set(ctx, key, string(notification.Kind)); err != nil {
			r.logger.Error().Err(err).Str("notification", notification.ID).Msg("Failed to mark notification relayed")
		}
	}
}

func (r *Relay) publish(event *fleet.Event) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.queue.PublishBytes(eventBytes)
}

func cacheKey(notificationID string) string {
	return fmt.Sprintf("go2school/relay/notification/%s", notificationID)
}
