package store

import (
	"fmt"

	"github.com/go2school/go2school/pkg/fleet"
	"go.mongodb.org/mongo-driver/bson"
)

// merge applies a $set style field map onto a copy of the entity. The bson decoder
// leaves fields absent from the update document untouched.
func merge(entity fleet.Entity, fields fleet.Fields) (fleet.Entity, error) {
	update := fields.Normalise()

	known, err := fieldNames(entity)
	if err != nil {
		return nil, err
	}

	for key := range update {
		if key == "id" {
			return nil, fmt.Errorf("%w: identifier cannot be changed", ErrInvalidFields)
		}
		if !known[key] {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidFields, key)
		}
	}

	updateBytes, err := bson.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}

	merged := entity.Clone()
	if err := bson.Unmarshal(updateBytes, merged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}

	if err := fleet.Validate(merged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}

	return merged, nil
}

func fieldNames(entity fleet.Entity) (map[string]bool, error) {
	raw, err := bson.Marshal(entity)
	if err != nil {
		return nil, err
	}

	var document bson.M
	if err := bson.Unmarshal(raw, &document); err != nil {
		return nil, err
	}

	names := map[string]bool{}
	for key := range document {
		names[key] = true
	}

	return names, nil
}
