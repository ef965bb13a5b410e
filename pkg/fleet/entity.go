package fleet

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Entity is a record held in one of the tracked collections.
type Entity interface {
	EntityID() string
	Clone() Entity
}

// Fields is a partial update keyed by field name. Keys are matched case-insensitively
// against the entity field names, so both "safetyScore" and "safetyscore" address
// Vehicle.SafetyScore.
type Fields map[string]interface{}

// Normalise returns a copy of the fields with lower-cased keys, including nested maps.
func (f Fields) Normalise() Fields {
	normalised := Fields{}

	for key, value := range f {
		normalised[strings.ToLower(key)] = normaliseValue(value)
	}

	return normalised
}

func normaliseValue(value interface{}) interface{} {
	switch v := value.(type) {
	case Fields:
		return v.Normalise()
	case map[string]interface{}:
		return Fields(v).Normalise()
	case []interface{}:
		values := make([]interface{}, len(v))
		for i, item := range v {
			values[i] = normaliseValue(item)
		}
		return values
	default:
		return value
	}
}

var validate = validator.New()

// Validate checks the struct level invariants of an entity.
func Validate(entity Entity) error {
	return validate.Struct(entity)
}
