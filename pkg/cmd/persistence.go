package cmd

import (
	"strings"

	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/persistence/file"
)

var supportedPersistenceProviders = []string{"file", "mysql", "postgresql", "mongodb"}

func NewPersistence(databaseURL string) persistence.Persistence {
	provider := parsePersistenceProvider(databaseURL)

	switch provider {
	// case "postgresql":
	// 	return persistence.NewPostgreSQLPersistence(databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
