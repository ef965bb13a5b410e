package util

import (
	"os"
	"strings"
)

// GetEnvironmentVariables returns the process environment keyed by variable name
func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)
		if len(pair) != 2 {
			continue
		}

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

func GetEnvironmentVariable(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}

	return fallback
}
