package eta

import (
	"fmt"

	"github.com/go2school/go2school/pkg/fleet"
)

type Tier string

const (
	TierSuccess Tier = "success"
	TierWarning Tier = "warning"
	TierDanger  Tier = "danger"
)

// Condition is an alert state a vehicle is currently in. Rule identifies the condition
// so that repeated evaluations of the same state can be told apart from new ones.
type Condition struct {
	Rule     string                 `json:"rule" groups:"basic"`
	Kind     fleet.NotificationKind `json:"kind" groups:"basic"`
	Severity fleet.Severity         `json:"severity" groups:"basic"`
	Message  string                 `json:"message" groups:"basic"`
}

const (
	RuleOverspeed     = "overspeed"
	RuleSafetyWarning = "safety-warning"
	RuleSafetyDanger  = "safety-danger"
)

// SpeedAlert reports whether the speed is above the alert threshold
func (e *Evaluator) SpeedAlert(speed float64) bool {
	return speed > e.config.SpeedAlertThreshold
}

func (e *Evaluator) SafetyTier(score float64) Tier {
	switch {
	case score > e.config.SafetyTiers.Success:
		return TierSuccess
	case score > e.config.SafetyTiers.Warning:
		return TierWarning
	default:
		return TierDanger
	}
}

// Conditions evaluates the built-in thresholds and the configured rules against the vehicle.
func (e *Evaluator) Conditions(vehicle *fleet.Vehicle) []Condition {
	conditions := []Condition{}
	if vehicle == nil {
		return conditions
	}

	if e.SpeedAlert(vehicle.Speed) {
		conditions = append(conditions, Condition{
			Rule:     RuleOverspeed,
			Kind:     fleet.NotificationKindSpeed,
			Severity: fleet.SeverityWarning,
			Message:  fmt.Sprintf("Bus %s is travelling at %.0f km/h", vehicle.ID, vehicle.Speed),
		})
	}

	switch e.SafetyTier(vehicle.SafetyScore) {
	case TierWarning:
		conditions = append(conditions, Condition{
			Rule:     RuleSafetyWarning,
			Kind:     fleet.NotificationKindSafety,
			Severity: fleet.SeverityWarning,
			Message:  fmt.Sprintf("Bus %s safety score dropped to %.0f", vehicle.ID, vehicle.SafetyScore),
		})
	case TierDanger:
		conditions = append(conditions, Condition{
			Rule:     RuleSafetyDanger,
			Kind:     fleet.NotificationKindSafety,
			Severity: fleet.SeverityCritical,
			Message:  fmt.Sprintf("Bus %s safety score is critical at %.0f", vehicle.ID, vehicle.SafetyScore),
		})
	}

	return append(conditions, e.evaluateRules(vehicle)...)
}
