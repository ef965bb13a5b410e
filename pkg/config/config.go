package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go2school/go2school/pkg/util"
	"gopkg.in/yaml.v3"
)

const (
	ETAModeFixed = "fixed"
	ETAModeRoute = "route"
)

// Band is an inclusive clamp range
type Band struct {
	Min float64 `yaml:"min" validate:"gte=0"`
	Max float64 `yaml:"max" validate:"gtefield=Min"`
}

func (b Band) Clamp(value float64) float64 {
	return max(b.Min, min(b.Max, value))
}

func (b Band) Contains(value float64) bool {
	return value >= b.Min && value <= b.Max
}

// SafetyTiers splits safety scores into display tiers: above Success is success,
// above Warning is warning, anything else is danger.
type SafetyTiers struct {
	Success float64 `yaml:"success" validate:"gtefield=Warning,lte=100"`
	Warning float64 `yaml:"warning" validate:"gte=0"`
}

// AlertRule is an operator supplied condition evaluated against every vehicle update
type AlertRule struct {
	Name     string `yaml:"name" validate:"required"`
	Kind     string `yaml:"kind" validate:"oneof=speed safety distress attendance"`
	Severity string `yaml:"severity" validate:"oneof=info warning critical"`
	When     string `yaml:"when" validate:"required"`
	Message  string `yaml:"message"`
}

// Tracking holds every tunable parameter of the simulation and evaluator
type Tracking struct {
	// Interval between simulation ticks
	TickInterval time.Duration `yaml:"tickInterval" validate:"gt=0"`

	SpeedBand          Band    `yaml:"speedBand"`
	SafetyBand         Band    `yaml:"safetyBand"`
	NominalSpeed       float64 `yaml:"nominalSpeed" validate:"gt=0"`
	NominalSafety      float64 `yaml:"nominalSafety" validate:"gte=0,lte=100"`
	SpeedPerturbation  float64 `yaml:"speedPerturbation" validate:"gte=0"`
	SafetyPerturbation float64 `yaml:"safetyPerturbation" validate:"gte=0"`

	// Upper bound of the random fraction along the current segment
	InterpolationSpan float64 `yaml:"interpolationSpan" validate:"gte=0,lte=1"`

	// Seed for the simulation random source, 0 picks one from the clock
	Seed uint64 `yaml:"seed"`

	ETAMode             string      `yaml:"etaMode" validate:"oneof=fixed route"`
	ETADistanceKm       float64     `yaml:"etaDistanceKm" validate:"gt=0"`
	SpeedAlertThreshold float64     `yaml:"speedAlertThreshold" validate:"gt=0"`
	SafetyTiers         SafetyTiers `yaml:"safetyTiers"`

	AlertRules []AlertRule `yaml:"alertRules" validate:"dive"`

	// Maximum number of subscribers a single snapshot is delivered to concurrently
	DeliveryConcurrency int `yaml:"deliveryConcurrency" validate:"gt=0"`
}

var defaultTracking = Tracking{
	TickInterval:        5 * time.Second,
	SpeedBand:           Band{Min: 25, Max: 38},
	SafetyBand:          Band{Min: 85, Max: 98},
	NominalSpeed:        30,
	NominalSafety:       95,
	SpeedPerturbation:   5,
	SafetyPerturbation:  5,
	InterpolationSpan:   0.3,
	ETAMode:             ETAModeFixed,
	ETADistanceKm:       4.2,
	SpeedAlertThreshold: 35,
	SafetyTiers:         SafetyTiers{Success: 90, Warning: 70},
	DeliveryConcurrency: 16,
}

// Default returns the reference configuration
func Default() Tracking {
	return defaultTracking
}

var validate = validator.New()

// Validate checks field constraints and that each nominal value sits inside its band
func (t Tracking) Validate() error {
	if err := validate.Struct(t); err != nil {
		return err
	}

	if !t.SpeedBand.Contains(t.NominalSpeed) {
		return fmt.Errorf("nominal speed %.1f outside speed band [%.1f, %.1f]", t.NominalSpeed, t.SpeedBand.Min, t.SpeedBand.Max)
	}

	if !t.SafetyBand.Contains(t.NominalSafety) {
		return fmt.Errorf("nominal safety %.1f outside safety band [%.1f, %.1f]", t.NominalSafety, t.SafetyBand.Min, t.SafetyBand.Max)
	}

	if t.SafetyBand.Max > 100 {
		return errors.New("safety band cannot exceed 100")
	}

	return nil
}

// Load builds the tracking configuration from the defaults, an optional YAML file and
// the environment, in that order.
func Load(path string) (Tracking, error) {
	config := Default()

	if path == "" {
		path = os.Getenv("GO2SCHOOL_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, err
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnvironment(&config, util.GetEnvironmentVariables()); err != nil {
		return config, err
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

func applyEnvironment(config *Tracking, env map[string]string) error {
	if val := env["GO2SCHOOL_TICK_INTERVAL"]; val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("GO2SCHOOL_TICK_INTERVAL: %w", err)
		}
		config.TickInterval = parsed
	}

	floats := map[string]*float64{
		"GO2SCHOOL_SPEED_ALERT_THRESHOLD": &config.SpeedAlertThreshold,
		"GO2SCHOOL_ETA_DISTANCE_KM":       &config.ETADistanceKm,
		"GO2SCHOOL_NOMINAL_SPEED":         &config.NominalSpeed,
		"GO2SCHOOL_NOMINAL_SAFETY":        &config.NominalSafety,
	}
	for key, target := range floats {
		if val := env[key]; val != "" {
			parsed, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*target = parsed
		}
	}

	if val := env["GO2SCHOOL_SEED"]; val != "" {
		parsed, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("GO2SCHOOL_SEED: %w", err)
		}
		config.Seed = parsed
	}

	if val := env["GO2SCHOOL_ETA_MODE"]; val != "" {
		config.ETAMode = val
	}

	return nil
}
