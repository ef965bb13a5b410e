// Package boarding moves occupants through their per-trip boarding states and raises
// the matching notifications.
package boarding

import (
	"fmt"
	"sync"
	"time"

	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Engine is the part of the tracking engine boarding writes through
type Engine interface {
	GetSnapshot(collection string) store.Snapshot
	UpdateAttendance(id string, fields fleet.Fields) error
	Notify(notification *fleet.Notification) error
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

type Service struct {
	engine Engine
	now    func() time.Time
	logger zerolog.Logger

	mu sync.Mutex
}

func New(engine Engine, opts ...Option) *Service {
	service := &Service{
		engine: engine,
		now:    time.Now,
		logger: log.Logger.With().Str("component", "boarding").Logger(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

func (s *Service) Board(occupantID string) (*fleet.Occupant, error) {
	return s.Apply(occupantID, ActionBoard)
}

func (s *Service) Deboard(occupantID string) (*fleet.Occupant, error) {
	return s.Apply(occupantID, ActionDeboard)
}

// Reset returns the occupant to not-boarded ready for the next trip
func (s *Service) Reset(occupantID string) (*fleet.Occupant, error) {
	return s.Apply(occupantID, ActionReset)
}

// Correct flips a boarded occupant back to not-boarded, or the other way round
func (s *Service) Correct(occupantID string) (*fleet.Occupant, error) {
	return s.Apply(occupantID, ActionCorrect)
}

// Apply runs the action against the occupant, writing only the boarding fields, and
// appends a notification describing the change.
func (s *Service) Apply(occupantID string, action Action) (*fleet.Occupant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(occupantID, action)
}

// BoardAll boards every not-boarded occupant of the vehicle, returning those boarded
func (s *Service) BoardAll(vehicleID string) ([]*fleet.Occupant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	boarded := []*fleet.Occupant{}
	for _, occupant := range s.occupants() {
		if occupant.VehicleID != vehicleID || occupant.Status != fleet.BoardingStatusNotBoarded {
			continue
		}

		updated, err := s.apply(occupant.ID, ActionBoard)
		if err != nil {
			return boarded, err
		}
		boarded = append(boarded, updated)
	}

	s.logger.Info().Str("vehicle", vehicleID).Int("occupants", len(boarded)).Msg("Boarded all occupants")

	return boarded, nil
}

func (s *Service) occupants() []*fleet.Occupant {
	return store.Items[*fleet.Occupant](s.engine.GetSnapshot(fleet.CollectionOccupants))
}

func (s *Service) find(occupantID string) (*fleet.Occupant, error) {
	for _, occupant := range s.occupants() {
		if occupant.ID == occupantID {
			return occupant, nil
		}
	}

	return nil, fmt.Errorf("%w: occupant %s", store.ErrNotFound, occupantID)
}

func (s *Service) apply(occupantID string, action Action) (*fleet.Occupant, error) {
	occupant, err := s.find(occupantID)
	if err != nil {
		return nil, err
	}

	status, err := Transition(occupant.Status, action)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fields := fleet.Fields{"status": status}
	switch {
	case status == fleet.BoardingStatusBoarded:
		fields["boardTime"] = now
	case status == fleet.BoardingStatusNotBoarded:
		fields["boardTime"] = nil
	}

	if err := s.engine.UpdateAttendance(occupant.ID, fields); err != nil {
		return nil, err
	}

	logger := s.logger.With().
		Str("occupant", occupant.ID).
		Str("from", string(occupant.Status)).
		Str("to", string(status)).
		Logger()
	if action == ActionCorrect {
		logger.Warn().Msg("Boarding status manually corrected")
	} else {
		logger.Info().Str("action", string(action)).Msg("Boarding status changed")
	}

	if err := s.engine.Notify(notificationFor(occupant, action, status, now)); err != nil {
		logger.Error().Err(err).Msg("Failed to raise boarding notification")
	}

	return s.find(occupant.ID)
}

func notificationFor(occupant *fleet.Occupant, action Action, status fleet.BoardingStatus, now time.Time) *fleet.Notification {
	notification := &fleet.Notification{
		ID:        uuid.NewString(),
		Kind:      fleet.NotificationKindAttendance,
		Severity:  fleet.SeverityInfo,
		Subject:   occupant.ID,
		VehicleID: occupant.VehicleID,
		Timestamp: now,
	}

	switch action {
	case ActionBoard:
		notification.Kind = fleet.NotificationKindBoarding
		notification.Message = fmt.Sprintf("%s boarded Bus %s", occupant.Name, occupant.VehicleID)
	case ActionDeboard:
		notification.Kind = fleet.NotificationKindDeboarding
		notification.Message = fmt.Sprintf("%s got off Bus %s", occupant.Name, occupant.VehicleID)
	case ActionReset:
		notification.Message = fmt.Sprintf("Attendance for %s reset for the next trip", occupant.Name)
	case ActionCorrect:
		notification.Severity = fleet.SeverityWarning
		notification.Message = fmt.Sprintf("Attendance for %s corrected to %s", occupant.Name, status)
	}

	return notification
}
