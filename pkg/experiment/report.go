package experiment

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveReport writes the report as YAML, creating the parent directory
func SaveReport(report *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating report directory: %w", err)
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}

// LoadReport reads a report written by SaveReport. Flux fields are not
// stored, so only the scalar results are restored.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading report: %w", err)
	}

	report := &Report{}
	if err := yaml.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("error parsing report: %w", err)
	}
	return report, nil
}
