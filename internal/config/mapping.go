package config

import (
	"fmt"
	"os"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/models"
)

// LoadMapping reads and parses a field mapping file from the given path.
// An empty path yields the identity mapping.
func LoadMapping(filePath string) (*models.MappingSchema, error) {
	if filePath == "" {
		return models.DefaultMapping(), nil
	}

	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file '%s': %w", filePath, err)
	}

	mapping, err := models.LoadMapping(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mapping file '%s': %w", filePath, err)
	}

	return mapping, nil
}
