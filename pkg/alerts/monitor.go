// Package alerts watches vehicle telemetry and raises notifications when a vehicle
// enters an alert condition.
package alerts

import (
	"sync"

	"github.com/go2school/go2school/pkg/broker"
	"github.com/go2school/go2school/pkg/eta"
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Engine interface {
	Subscribe(collection string, callback broker.Callback) broker.CancelFunc
	Notify(notification *fleet.Notification) error
	Evaluator() *eta.Evaluator
}

// Monitor raises one notification each time a vehicle enters a condition. A condition
// that persists across snapshots is not raised again until it has cleared.
type Monitor struct {
	engine Engine
	logger zerolog.Logger

	mu     sync.Mutex
	active map[string]map[string]bool
	cancel broker.CancelFunc
}

func New(engine Engine) *Monitor {
	return &Monitor{
		engine: engine,
		logger: log.Logger.With().Str("component", "alerts").Logger(),
		active: map[string]map[string]bool{},
	}
}

// Start subscribes to the vehicles collection. The current snapshot is evaluated
// before Start returns.
func (m *Monitor) Start() {
	cancel := m.engine.Subscribe(fleet.CollectionVehicles, func(snapshot store.Snapshot) {
		m.Evaluate(snapshot)
	})

	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Evaluate checks every vehicle in the snapshot and notifies the conditions that are
// new since the previous evaluation, returning them.
func (m *Monitor) Evaluate(snapshot store.Snapshot) []*fleet.Notification {
	evaluator := m.engine.Evaluator()
	var raised []*fleet.Notification

	m.mu.Lock()
	for _, vehicle := range store.Items[*fleet.Vehicle](snapshot) {
		current := map[string]bool{}

		for _, condition := range evaluator.Conditions(vehicle) {
			current[condition.Rule] = true

			if m.active[vehicle.ID][condition.Rule] {
				continue
			}

			raised = append(raised, &fleet.Notification{
				Kind:      condition.Kind,
				Severity:  condition.Severity,
				Message:   condition.Message,
				VehicleID: vehicle.ID,
				Timestamp: vehicle.LastUpdate,
			})
		}

		m.active[vehicle.ID] = current
	}
	m.mu.Unlock()

	for _, notification := range raised {
		if err := m.engine.Notify(notification); err != nil {
			m.logger.Error().Err(err).Str("vehicle", notification.VehicleID).Msg("Failed to raise alert")
		}
	}

	return raised
}
