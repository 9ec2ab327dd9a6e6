package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// New creates an empty manifest with defaults.
func New(profileName, engineName string) *Manifest {
	return &Manifest{
		Version:     SupportedManifestVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Profile:     profileName,
		Engine:      engineName,
		Images:      []Image{},
	}
}

// Add appends an image entry.
func (m *Manifest) Add(img Image) {
	m.Images = append(m.Images, img)
}

// ComputeStats recalculates aggregate statistics from images.
func (m *Manifest) ComputeStats() {
	var s Stats
	s.TotalImages = len(m.Images)
	for _, img := range m.Images {
		switch img.Status {
		case StatusConverted:
			s.Converted++
			s.TotalInputBytes += img.InputSize
			s.TotalOutputBytes += img.OutputSize
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	m.Stats = s
}

// WriteJSON serializes the manifest to a JSON file in input order.
func WriteJSON(m *Manifest, path string) error {
	m.ComputeStats()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON loads a manifest written by WriteJSON.
func ReadJSON(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Version != SupportedManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d", m.Version)
	}
	return &m, nil
}
