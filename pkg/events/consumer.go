// Package events consumes the tracking events relayed onto the redis queue, keeping
// the latest telemetry per vehicle and dispatching notifications to a sink.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Sink interface {
	Send(data NotificationData) error
}

// LogSink writes notifications to the log, at warn or above for anything not informational
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Send(data NotificationData) error {
	event := s.Logger.Info()
	switch data.Severity {
	case fleet.SeverityWarning:
		event = s.Logger.Warn()
	case fleet.SeverityCritical:
		event = s.Logger.Error()
	}

	event.Str("vehicle", data.VehicleID).Str("subject", data.Subject).Str("title", data.Title).Msg(data.Message)
	return nil
}

type envelope struct {
	Type      fleet.EventType
	Timestamp time.Time
	Body      json.RawMessage
}

type BatchConsumer struct {
	sink   Sink
	logger zerolog.Logger

	mu       sync.Mutex
	vehicles map[string]*fleet.Vehicle
	counts   map[fleet.EventType]int
}

func NewBatchConsumer(sink Sink) *BatchConsumer {
	return &BatchConsumer{
		sink:     sink,
		logger:   log.Logger.With().Str("component", "events").Logger(),
		vehicles: map[string]*fleet.Vehicle{},
		counts:   map[fleet.EventType]int{},
	}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		if err := consumer.handle([]byte(delivery.Payload())); err != nil {
			consumer.logger.Error().Err(err).Msg("Failed to handle event")

			if err := delivery.Reject(); err != nil {
				consumer.logger.Error().Err(err).Msg("Failed to reject event")
			}
			continue
		}

		if err := delivery.Ack(); err != nil {
			consumer.logger.Error().Err(err).Msg("Failed to ack event")
		}
	}
}

func (consumer *BatchConsumer) handle(payload []byte) error {
	var event envelope
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}

	switch event.Type {
	case fleet.EventTypeVehicleTelemetry:
		vehicle := &fleet.Vehicle{}
		if err := json.Unmarshal(event.Body, vehicle); err != nil {
			return err
		}

		consumer.mu.Lock()
		if current, exists := consumer.vehicles[vehicle.ID]; !exists || !vehicle.LastUpdate.Before(current.LastUpdate) {
			consumer.vehicles[vehicle.ID] = vehicle
		}
		consumer.counts[event.Type]++
		consumer.mu.Unlock()
	case fleet.EventTypeNotificationCreated:
		notification := &fleet.Notification{}
		if err := json.Unmarshal(event.Body, notification); err != nil {
			return err
		}

		consumer.mu.Lock()
		consumer.counts[event.Type]++
		consumer.mu.Unlock()

		return consumer.sink.Send(GetNotificationData(notification))
	default:
		consumer.logger.Debug().Str("type", string(event.Type)).Msg("Ignoring event")
	}

	return nil
}

// Vehicle returns the most recent telemetry received for the vehicle
func (consumer *BatchConsumer) Vehicle(id string) (*fleet.Vehicle, bool) {
	consumer.mu.Lock()
	defer consumer.mu.Unlock()

	vehicle, exists := consumer.vehicles[id]
	return vehicle, exists
}

func (consumer *BatchConsumer) Count(eventType fleet.EventType) int {
	consumer.mu.Lock()
	defer consumer.mu.Unlock()

	return consumer.counts[eventType]
}
