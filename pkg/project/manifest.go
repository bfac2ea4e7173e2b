package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kass/go-fissura/pkg/materialize"
	"github.com/kass/go-fissura/pkg/models"
)

const (
	// ManifestFile is written into the images directory after each run
	ManifestFile    = "manifest.json"
	manifestVersion = 1
)

// Manifest records what a processing run did
type Manifest struct {
	Version         int                    `json:"version"`
	RunID           string                 `json:"run_id"`
	CreatedAt       time.Time              `json:"created_at"`
	Project         string                 `json:"project"`
	InputDir        string                 `json:"input_dir"`
	ThresholdMeters float64                `json:"threshold_meters"`
	Stats           models.ProcessingStats `json:"stats"`
	Buildings       []ManifestBuilding     `json:"buildings"`
	Moved           []materialize.Moved    `json:"moved"`
	// Interrupted is set when the run was cancelled before every file was moved
	Interrupted bool `json:"interrupted,omitempty"`
}

// ManifestBuilding summarizes one building. Facades list the paths the
// building's photos were moved to.
type ManifestBuilding struct {
	ID       string                         `json:"id"`
	Key      string                         `json:"key"`
	Centroid models.Location                `json:"centroid"`
	Images   int                            `json:"images"`
	Facades  map[models.FacadeName][]string `json:"facades"`
}

// NewManifest assembles a manifest with a fresh run id
func NewManifest(c Context, inputDir string, threshold float64, stats models.ProcessingStats, buildings []*models.Building, moved []materialize.Moved) Manifest {
	targets := make(map[string]string, len(moved))
	for _, mv := range moved {
		targets[mv.Source] = mv.Target
	}

	m := Manifest{
		Version:         manifestVersion,
		RunID:           uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Project:         c.Name,
		InputDir:        inputDir,
		ThresholdMeters: threshold,
		Stats:           stats,
		Moved:           moved,
	}
	for _, b := range buildings {
		mb := ManifestBuilding{
			ID:       b.ID,
			Key:      b.Key,
			Centroid: b.Centroid,
			Images:   len(b.AllImages),
			Facades:  make(map[models.FacadeName][]string),
		}
		for name, f := range b.Facades {
			for _, img := range f.Images {
				if target, ok := targets[img.Path]; ok {
					mb.Facades[name] = append(mb.Facades[name], target)
				}
			}
		}
		m.Buildings = append(m.Buildings, mb)
	}
	return m
}

// WriteManifest stores m as images/manifest.json, replacing any previous one
func WriteManifest(c Context, m Manifest) (string, error) {
	path := filepath.Join(c.ImagesDir(), ManifestFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to replace manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads the last manifest written for the project
func ReadManifest(c Context) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(c.ImagesDir(), ManifestFile))
	if err != nil {
		return m, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return m, nil
}
