package eta

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go2school/go2school/pkg/config"
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/rs/zerolog/log"
)

// RuleEnv is the set of values an alert rule expression can refer to
type RuleEnv struct {
	ID          string
	RouteID     string
	Status      string
	Speed       float64
	SafetyScore float64
	Occupancy   int
	Capacity    int
	Lat         float64
	Lng         float64
}

func newRuleEnv(vehicle *fleet.Vehicle) RuleEnv {
	return RuleEnv{
		ID:          vehicle.ID,
		RouteID:     vehicle.RouteID,
		Status:      string(vehicle.Status),
		Speed:       vehicle.Speed,
		SafetyScore: vehicle.SafetyScore,
		Occupancy:   vehicle.Occupancy,
		Capacity:    vehicle.Capacity,
		Lat:         vehicle.Location.Lat,
		Lng:         vehicle.Location.Lng,
	}
}

type rule struct {
	config  config.AlertRule
	program *vm.Program
}

func compileRules(rules []config.AlertRule) ([]rule, error) {
	compiled := make([]rule, 0, len(rules))

	for _, alertRule := range rules {
		program, err := expr.Compile(alertRule.When, expr.Env(RuleEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("alert rule %s: %w", alertRule.Name, err)
		}

		compiled = append(compiled, rule{config: alertRule, program: program})
	}

	return compiled, nil
}

func (e *Evaluator) evaluateRules(vehicle *fleet.Vehicle) []Condition {
	var conditions []Condition
	env := newRuleEnv(vehicle)

	for _, r := range e.rules {
		output, err := expr.Run(r.program, env)
		if err != nil {
			log.Error().Err(err).Str("rule", r.config.Name).Str("vehicle", vehicle.ID).Msg("Failed to evaluate alert rule")
			continue
		}

		if matched, _ := output.(bool); !matched {
			continue
		}

		message := r.config.Message
		if message == "" {
			message = fmt.Sprintf("Bus %s matched %s", vehicle.ID, r.config.Name)
		}

		conditions = append(conditions, Condition{
			Rule:     r.config.Name,
			Kind:     fleet.NotificationKind(r.config.Kind),
			Severity: fleet.Severity(r.config.Severity),
			Message:  message,
		})
	}

	return conditions
}
