// Package simulator moves the fleet along its routes, one tick at a time.
package simulator

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go2school/go2school/pkg/config"
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"
)

// Notifier is told which collection changed once a tick has been written.
type Notifier interface {
	Publish(collection string)
}

type Option func(*Simulator)

// WithRand replaces the random source. Not safe to share with other goroutines.
func WithRand(source *rand.Rand) Option {
	return func(s *Simulator) {
		s.random = source
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Simulator) {
		s.notifier = notifier
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

type Simulator struct {
	store    *store.Store
	config   config.Tracking
	notifier Notifier
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	random  *rand.Rand
	cursors map[string]int
}

func New(s *store.Store, cfg config.Tracking, opts ...Option) *Simulator {
	simulator := &Simulator{
		store:   s,
		config:  cfg,
		now:     time.Now,
		logger:  log.Logger.With().Str("component", "simulator").Logger(),
		cursors: map[string]int{},
	}

	for _, opt := range opts {
		opt(simulator)
	}

	if simulator.random == nil {
		simulator.random = NewRand(cfg.Seed)
	}

	return simulator
}

// NewRand returns a PCG backed source. A zero seed is replaced with a random one.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return rand.New(rand.NewPCG(seed, seed))
}

// Cursor returns the index of the stop the route is currently departing from
func (s *Simulator) Cursor(routeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cursors[routeID]
}

// Advance runs a single tick over every route and notifies watchers of the vehicles
// collection. A route that cannot be moved is logged and skipped.
func (s *Simulator) Advance(ctx context.Context) error {
	if err := s.tick(ctx); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.Publish(fleet.CollectionVehicles)
	}

	return nil
}

func (s *Simulator) tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	routes := store.Items[*fleet.Route](s.store.Get(fleet.CollectionRoutes))
	slices.SortFunc(routes, func(a, b *fleet.Route) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	vehiclesByRoute := map[string][]*fleet.Vehicle{}
	for _, vehicle := range store.Items[*fleet.Vehicle](s.store.Get(fleet.CollectionVehicles)) {
		vehiclesByRoute[vehicle.RouteID] = append(vehiclesByRoute[vehicle.RouteID], vehicle)
	}

	knownRoutes := map[string]bool{}
	now := s.now()

	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return err
		}

		knownRoutes[route.ID] = true
		logger := s.logger.With().Str("route", route.ID).Logger()

		if len(route.Stops) == 0 {
			logger.Warn().Msg("Route has no stops, skipping tick")
			continue
		}

		vehicles := vehiclesByRoute[route.ID]
		if len(vehicles) == 0 {
			logger.Debug().Msg("No vehicles on route")
			continue
		}

		cursor := (s.cursors[route.ID] + 1) % len(route.Stops)
		s.cursors[route.ID] = cursor
		current, next := route.Segment(cursor)

		for _, vehicle := range vehicles {
			fields := s.telemetry(current.Location, next.Location, now)

			if err := s.store.Update(fleet.CollectionVehicles, vehicle.ID, fields); err != nil {
				logger.Error().Err(err).Str("vehicle", vehicle.ID).Msg("Failed to write vehicle telemetry")
			}
		}

		logger.Debug().
			Int("cursor", cursor).
			Str("from", current.ID).
			Str("to", next.ID).
			Int("vehicles", len(vehicles)).
			Msg("Advanced route")
	}

	for routeID, vehicles := range vehiclesByRoute {
		if !knownRoutes[routeID] {
			s.logger.Warn().Str("route", routeID).Int("vehicles", len(vehicles)).Msg("Vehicles assigned to unknown route")
		}
	}

	return nil
}

// telemetry draws a new position on the segment and new speed and safety readings
func (s *Simulator) telemetry(from fleet.Location, to fleet.Location, now time.Time) fleet.Fields {
	position := from.Interpolate(to, s.random.Float64()*s.config.InterpolationSpan)

	speed := s.config.SpeedBand.Clamp(s.perturb(s.config.NominalSpeed, s.config.SpeedPerturbation))
	safety := s.config.SafetyBand.Clamp(s.perturb(s.config.NominalSafety, s.config.SafetyPerturbation))

	return fleet.Fields{
		"location": fleet.Fields{
			"lat": position.Lat,
			"lng": position.Lng,
		},
		"speed":       speed,
		"safetyScore": safety,
		"lastUpdate":  now,
	}
}

// perturb returns nominal shifted by up to spread in either direction
func (s *Simulator) perturb(nominal float64, spread float64) float64 {
	return nominal + (s.random.Float64()-0.5)*2*spread
}
