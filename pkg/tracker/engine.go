// Package tracker assembles the live-tracking engine: the entity store, the
// subscription broker, the movement simulator and the ETA evaluator.
package tracker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go2school/go2school/pkg/broker"
	"github.com/go2school/go2school/pkg/config"
	"github.com/go2school/go2school/pkg/eta"
	"github.com/go2school/go2school/pkg/fixtures"
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/simulator"
	"github.com/go2school/go2school/pkg/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	random *rand.Rand
	now    func() time.Time
	logger zerolog.Logger
}

type Option func(*options)

// WithRand fixes the simulation random source
func WithRand(random *rand.Rand) Option {
	return func(o *options) {
		o.random = random
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

type Engine struct {
	config    config.Tracking
	now       func() time.Time
	logger    zerolog.Logger
	store     *store.Store
	broker    *broker.Broker
	simulator *simulator.Simulator
	evaluator *eta.Evaluator
}

// New seeds a store from the dataset and wires the broker and simulator around it.
// The vehicles collection starts moving once it has its first subscriber.
func New(cfg config.Tracking, dataset fixtures.Dataset, opts ...Option) (*Engine, error) {
	o := &options{
		now:    time.Now,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracking config: %w", err)
	}

	evaluator, err := eta.New(cfg)
	if err != nil {
		return nil, err
	}

	s := store.New()
	if err := dataset.Seed(s); err != nil {
		return nil, fmt.Errorf("seed dataset: %w", err)
	}

	b := broker.New(s,
		broker.WithConcurrency(cfg.DeliveryConcurrency),
		broker.WithLogger(o.logger.With().Str("component", "broker").Logger()),
	)

	simulatorOptions := []simulator.Option{
		simulator.WithNotifier(b),
		simulator.WithClock(o.now),
		simulator.WithLogger(o.logger.With().Str("component", "simulator").Logger()),
	}
	if o.random != nil {
		simulatorOptions = append(simulatorOptions, simulator.WithRand(o.random))
	}
	sim := simulator.New(s, cfg, simulatorOptions...)

	b.Drive(fleet.CollectionVehicles, sim, cfg.TickInterval)

	return &Engine{
		config:    cfg,
		now:       o.now,
		logger:    o.logger.With().Str("component", "tracker").Logger(),
		store:     s,
		broker:    b,
		simulator: sim,
		evaluator: evaluator,
	}, nil
}

// Subscribe registers a watcher on the collection. See broker.Broker.Subscribe for the
// delivery guarantees.
func (e *Engine) Subscribe(collection string, callback broker.Callback) broker.CancelFunc {
	return e.broker.Subscribe(collection, callback)
}

func (e *Engine) GetSnapshot(collection string) store.Snapshot {
	return e.store.Get(collection)
}

// LookupSnapshot is GetSnapshot failing for unknown collections
func (e *Engine) LookupSnapshot(collection string) (store.Snapshot, error) {
	return e.store.Lookup(collection)
}

// attendanceFields can only change through the boarding state machine
var attendanceFields = []string{"status", "boardtime"}

// ApplyUpdate merges fields into an entity and publishes the collection to its watchers.
// Occupant status and board time are rejected with store.ErrInvalidFields; they change
// through UpdateAttendance.
func (e *Engine) ApplyUpdate(collection string, id string, fields fleet.Fields) error {
	if canonical, _ := fleet.CanonicalCollection(collection); canonical == fleet.CollectionOccupants {
		normalised := fields.Normalise()
		for _, field := range attendanceFields {
			if _, exists := normalised[field]; exists {
				return fmt.Errorf("%w: occupant %s is changed through the boarding actions", store.ErrInvalidFields, field)
			}
		}
	}

	return e.update(collection, id, fields)
}

// UpdateAttendance writes an occupant's boarding fields. Callers are expected to have
// checked the transition.
func (e *Engine) UpdateAttendance(id string, fields fleet.Fields) error {
	return e.update(fleet.CollectionOccupants, id, fields)
}

func (e *Engine) update(collection string, id string, fields fleet.Fields) error {
	if err := e.store.Update(collection, id, fields); err != nil {
		return err
	}

	e.broker.Publish(collection)
	return nil
}

// Notify appends a notification and publishes the notifications collection. Missing
// identifiers and timestamps are filled in.
func (e *Engine) Notify(notification *fleet.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = e.now()
	}

	if err := e.store.Append(fleet.CollectionNotifications, notification); err != nil {
		return err
	}

	e.logger.Info().
		Str("kind", string(notification.Kind)).
		Str("severity", string(notification.Severity)).
		Str("vehicle", notification.VehicleID).
		Msg(notification.Message)

	e.broker.Publish(fleet.CollectionNotifications)
	return nil
}

// RaiseDistress records an SOS from the vehicle
func (e *Engine) RaiseDistress(vehicleID string, message string) (*fleet.Notification, error) {
	if _, err := e.Vehicle(vehicleID); err != nil {
		return nil, err
	}

	if message == "" {
		message = fmt.Sprintf("SOS raised on Bus %s", vehicleID)
	}

	notification := &fleet.Notification{
		Kind:      fleet.NotificationKindDistress,
		Severity:  fleet.SeverityCritical,
		Message:   message,
		VehicleID: vehicleID,
	}
	if err := e.Notify(notification); err != nil {
		return nil, err
	}

	return notification, nil
}

func (e *Engine) Vehicle(id string) (*fleet.Vehicle, error) {
	return find[*fleet.Vehicle](e.store, fleet.CollectionVehicles, id)
}

func (e *Engine) Route(id string) (*fleet.Route, error) {
	return find[*fleet.Route](e.store, fleet.CollectionRoutes, id)
}

func (e *Engine) User(id string) (*fleet.User, error) {
	return find[*fleet.User](e.store, fleet.CollectionUsers, id)
}

func find[T fleet.Entity](s *store.Store, collection string, id string) (T, error) {
	for _, item := range store.Items[T](s.Get(collection)) {
		if item.EntityID() == id {
			return item, nil
		}
	}

	var empty T
	return empty, fmt.Errorf("%w: %s %s", store.ErrNotFound, collection, id)
}

// ETA estimates the arrival of the vehicle at the end of its route, Unavailable when
// the vehicle is not known.
func (e *Engine) ETA(vehicleID string) eta.Estimate {
	vehicle, err := e.Vehicle(vehicleID)
	if err != nil {
		return eta.Unavailable
	}

	route, _ := e.Route(vehicle.RouteID)

	return e.evaluator.ETA(vehicle, route)
}

func (e *Engine) Evaluator() *eta.Evaluator {
	return e.evaluator
}

func (e *Engine) Config() config.Tracking {
	return e.config
}

// Tick advances the simulation once, outside of the timer
func (e *Engine) Tick(ctx context.Context) error {
	return e.simulator.Advance(ctx)
}

func (e *Engine) Cursor(routeID string) int {
	return e.simulator.Cursor(routeID)
}

// Moving reports whether the vehicles collection timer is running
func (e *Engine) Moving() bool {
	return e.broker.Running(fleet.CollectionVehicles)
}

func (e *Engine) Subscribers(collection string) int {
	return e.broker.Subscribers(collection)
}

// Shutdown cancels every subscription and stops the simulation timer.
func (e *Engine) Shutdown() {
	e.broker.Close()
	e.logger.Info().Msg("Tracking engine stopped")
}
