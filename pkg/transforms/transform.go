// Package transforms rewrites fields on dataset entities before they are loaded,
// for example to brand every vehicle on a route.
package transforms

import (
	"fmt"
	"os"
	"reflect"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type TransformDefinition struct {
	// Type is the struct name the definition applies to, such as fleet.Vehicle.
	// Empty matches every struct.
	Type  string                 `yaml:"type"`
	Match map[string]string      `yaml:"match"`
	Data  map[string]interface{} `yaml:"data"`
}

type file struct {
	Transforms []*TransformDefinition `yaml:"transforms"`
}

func Load(path string) ([]*TransformDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var parsed file
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("parsing transforms %s: %w", path, err)
	}

	return parsed.Transforms, nil
}

// Transform applies the definition to the struct behind inputValue and to every
// struct nested inside it. It returns how many structs were changed.
func (t *TransformDefinition) Transform(inputValue reflect.Value) int {
	if !inputValue.IsValid() || inputValue.Kind() != reflect.Struct {
		return 0
	}

	changed := 0
	if t.matches(inputValue) {
		for key, value := range t.Data {
			field := inputValue.FieldByName(key)
			if !field.IsValid() || !field.CanSet() {
				continue
			}

			converted, ok := convert(value, field.Type())
			if !ok {
				log.Warn().Str("type", inputValue.Type().String()).Str("field", key).Msgf("Cannot set %T on transform", value)
				continue
			}

			field.Set(converted)
		}
		changed++
	}

	for i := 0; i < inputValue.NumField(); i++ {
		if !inputValue.Type().Field(i).IsExported() {
			continue
		}
		changed += transformValue(t, inputValue.Field(i))
	}

	return changed
}

func (t *TransformDefinition) matches(inputValue reflect.Value) bool {
	if t.Type != "" && t.Type != inputValue.Type().String() {
		return false
	}

	for key, value := range t.Match {
		field := inputValue.FieldByName(key)
		if !field.IsValid() || field.Kind() != reflect.String || value != field.String() {
			return false
		}
	}

	return true
}

func convert(value interface{}, target reflect.Type) (reflect.Value, bool) {
	valueOf := reflect.ValueOf(value)
	if !valueOf.IsValid() {
		return reflect.Value{}, false
	}

	if valueOf.Type().AssignableTo(target) {
		return valueOf, true
	}

	// int to string converts to a rune, which is never what a transform means
	if numeric(valueOf.Kind()) != numeric(target.Kind()) {
		return reflect.Value{}, false
	}

	if !valueOf.Type().ConvertibleTo(target) {
		return reflect.Value{}, false
	}

	return valueOf.Convert(target), true
}

func numeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Transform applies every definition to input, which may be a pointer to a struct or
// a slice of them, returning how many structs were changed.
func Transform(definitions []*TransformDefinition, input interface{}) int {
	changed := 0
	for _, transformDef := range definitions {
		changed += transformValue(transformDef, reflect.ValueOf(input))
	}
	return changed
}

func transformValue(transformDef *TransformDefinition, inputValue reflect.Value) int {
	switch inputValue.Kind() {
	case reflect.Pointer, reflect.Interface:
		if inputValue.IsNil() {
			return 0
		}
		return transformValue(transformDef, inputValue.Elem())
	case reflect.Slice:
		changed := 0
		for i := 0; i < inputValue.Len(); i++ {
			changed += transformValue(transformDef, inputValue.Index(i))
		}
		return changed
	case reflect.Struct:
		return transformDef.Transform(inputValue)
	}

	return 0
}
