package service

import (
	"fmt"
	"os"

	"firewatch/internal/ingest"
	"firewatch/internal/models"

	"gopkg.in/yaml.v3"
)

// LoadBuilding reads the incident-site model from a YAML or JSON file.
func LoadBuilding(path string) (models.Building, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Building{}, fmt.Errorf("failed to read building file: %w", err)
	}

	var b models.Building
	if err := yaml.Unmarshal(data, &b); err != nil {
		return models.Building{}, fmt.Errorf("failed to parse building file %s: %w", path, err)
	}
	if err := ingest.ValidateBuilding(b); err != nil {
		return models.Building{}, fmt.Errorf("invalid building file %s: %w", path, err)
	}
	return b, nil
}
