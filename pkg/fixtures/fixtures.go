// Package fixtures decodes the datasets the tracking engine starts from.
//
// A dataset file is a stream of YAML documents, one record each:
//
//	Collection: buses
//	Age: 10m
//	Data:
//	  id: G2S-01
//	  routeId: r1
//
// Data holds the entity fields. Age, when present, stamps the entity's time field
// (vehicle last update, occupant board time, notification timestamp) that long before
// the load time.
package fixtures

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demo []byte

type Record struct {
	Collection string                 `yaml:"Collection"`
	Age        string                 `yaml:"Age"`
	Data       map[string]interface{} `yaml:"Data"`
}

// Dataset is a set of entities keyed by canonical collection name, in file order.
type Dataset map[string][]fleet.Entity

// timeFields names the field Age applies to in each collection
var timeFields = map[string]string{
	fleet.CollectionVehicles:      "lastupdate",
	fleet.CollectionOccupants:     "boardtime",
	fleet.CollectionNotifications: "timestamp",
}

// Demo returns the built-in demonstration dataset
func Demo(now time.Time) (Dataset, error) {
	return Parse(bytes.NewReader(demo), now)
}

// Load reads a dataset file. An empty path loads the demonstration dataset.
func Load(path string, now time.Time) (Dataset, error) {
	if path == "" {
		return Demo(now)
	}

	log.Debug().Str("path", path).Msg("Loading dataset file")

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file, now)
}

func Parse(reader io.Reader, now time.Time) (Dataset, error) {
	dataset := Dataset{}
	decoder := yaml.NewDecoder(reader)

	for index := 0; ; index++ {
		var record Record
		err := decoder.Decode(&record)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", index, err)
		}

		collection, entity, err := record.Entity(now)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", index, err)
		}

		dataset[collection] = append(dataset[collection], entity)
	}

	return dataset, nil
}

// Entity decodes the record data into an entity of the record's collection
func (r *Record) Entity(now time.Time) (string, fleet.Entity, error) {
	collection, known := fleet.CanonicalCollection(r.Collection)
	if !known {
		return "", nil, fmt.Errorf("%w: %s", store.ErrUnknownCollection, r.Collection)
	}

	fields := fleet.Fields(r.Data).Normalise()

	if r.Age != "" {
		age, err := time.ParseDuration(r.Age)
		if err != nil {
			return "", nil, fmt.Errorf("age: %w", err)
		}

		field, ok := timeFields[collection]
		if !ok {
			return "", nil, fmt.Errorf("age is not supported for %s", collection)
		}
		fields[field] = now.Add(-age)
	}

	data, err := bson.Marshal(fields)
	if err != nil {
		return "", nil, err
	}

	entity := fleet.NewEntity(collection)
	if err := bson.Unmarshal(data, entity); err != nil {
		return "", nil, err
	}

	return collection, entity, nil
}

// Seed loads every collection of the dataset into the store
func (d Dataset) Seed(s *store.Store) error {
	for _, collection := range fleet.CollectionNames() {
		entities, ok := d[collection]
		if !ok {
			continue
		}

		if err := s.Load(collection, entities...); err != nil {
			return err
		}

		log.Debug().Str("collection", collection).Int("entities", len(entities)).Msg("Seeded collection")
	}

	return nil
}
