// Package detection runs the external crack detection model over a
// materialized project and reads back its per-image classifications.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kass/go-fissura/pkg/models"
	"github.com/rs/zerolog"
)

// Detector classifies the images under a project's images directory
type Detector interface {
	Detect(ctx context.Context, imagesDir string) ([]models.ImageAnalysis, error)
}

// ScriptConfig locates the interpreter, script and model weights
type ScriptConfig struct {
	Python  string
	Script  string
	Model   string
	Timeout time.Duration
}

// Runner executes a command and returns stdout and stderr separately
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ScriptDetector invokes `<python> <script> <imagesDir> <model>` and expects a
// JSON array of {path, fissura: [{name, confidence}]} on stdout.
type ScriptDetector struct {
	cfg    ScriptConfig
	run    Runner
	logger zerolog.Logger
}

// NewScriptDetector creates a detector. A nil runner uses os/exec.
func NewScriptDetector(cfg ScriptConfig, run Runner, logger zerolog.Logger) *ScriptDetector {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if run == nil {
		run = runCommand
	}
	return &ScriptDetector{cfg: cfg, run: run, logger: logger}
}

// Detect implements Detector. Missing script, model or images directory are
// configuration failures; a non-zero exit or output that is not the expected
// JSON array is returned as an error.
func (d *ScriptDetector) Detect(ctx context.Context, imagesDir string) ([]models.ImageAnalysis, error) {
	for _, required := range []struct{ what, path string }{
		{"detection script", d.cfg.Script},
		{"model", d.cfg.Model},
		{"images directory", imagesDir},
	} {
		if required.path == "" {
			return nil, models.WrapError(models.ConfigurationFailure, "detect", fmt.Errorf("%s is not set", required.what))
		}
		if _, err := os.Stat(required.path); err != nil {
			return nil, models.WrapError(models.ConfigurationFailure, "detect", fmt.Errorf("%s not found: %w", required.what, err))
		}
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	d.logger.Info().Str("script", d.cfg.Script).Str("images", imagesDir).Msg("running crack detection")
	stdout, stderr, err := d.run(ctx, d.cfg.Python, d.cfg.Script, imagesDir, d.cfg.Model)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg != "" {
			return nil, fmt.Errorf("detection script failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("detection script failed: %w", err)
	}

	results, err := Parse(stdout)
	if err != nil {
		return nil, err
	}
	d.logger.Info().Int("images", len(results)).Dur("elapsed", time.Since(start)).Msg("crack detection complete")
	return results, nil
}

// Parse decodes the detection script's stdout
func Parse(data []byte) ([]models.ImageAnalysis, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("invalid detection output: expected a JSON array")
	}
	var results []models.ImageAnalysis
	if err := json.Unmarshal(trimmed, &results); err != nil {
		return nil, fmt.Errorf("invalid detection output: %w", err)
	}
	for i, r := range results {
		if r.Path == "" {
			return nil, fmt.Errorf("invalid detection output: entry %d has no path", i)
		}
	}
	return results, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
