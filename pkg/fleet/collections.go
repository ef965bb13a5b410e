package fleet

import (
	"strings"

	"golang.org/x/exp/slices"
)

const (
	CollectionVehicles      = "vehicles"
	CollectionRoutes        = "routes"
	CollectionOccupants     = "occupants"
	CollectionNotifications = "notifications"
	CollectionUsers         = "users"
)

var collectionFactories = map[string]func() Entity{
	CollectionVehicles:      func() Entity { return &Vehicle{} },
	CollectionRoutes:        func() Entity { return &Route{} },
	CollectionOccupants:     func() Entity { return &Occupant{} },
	CollectionNotifications: func() Entity { return &Notification{} },
	CollectionUsers:         func() Entity { return &User{} },
}

// Names used by the original dashboard data source
var collectionAliases = map[string]string{
	"buses":    CollectionVehicles,
	"students": CollectionOccupants,
	"alerts":   CollectionNotifications,
}

// CanonicalCollection resolves aliases and reports whether the name is a known collection.
func CanonicalCollection(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	if alias, ok := collectionAliases[name]; ok {
		name = alias
	}

	_, ok := collectionFactories[name]
	return name, ok
}

// NewEntity returns an empty entity for the collection, or nil for an unknown name
func NewEntity(collection string) Entity {
	name, ok := CanonicalCollection(collection)
	if !ok {
		return nil
	}

	return collectionFactories[name]()
}

func CollectionNames() []string {
	names := make([]string, 0, len(collectionFactories))
	for name := range collectionFactories {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}
