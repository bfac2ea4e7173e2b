// Package config loads settings from, in increasing precedence, built-in
// defaults, a YAML file, a .env file and FISSURA_* environment variables.
// Command line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kass/go-fissura/pkg/models"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no path is given
const DefaultFile = "fissura.yaml"

// Config holds every setting the CLI commands read
type Config struct {
	ProjectsRoot    string  `yaml:"projects_root"`
	Project         string  `yaml:"project"`
	ThresholdMeters float64 `yaml:"threshold_meters"`
	Workers         int     `yaml:"workers"`
	DryRun          bool    `yaml:"dry_run"`
	MetricsFile     string  `yaml:"metrics_file"`
	CatalogDSN      string  `yaml:"catalog_dsn"`

	ExifTool ExifToolConfig `yaml:"exiftool"`
	Log      LogConfig      `yaml:"log"`
	Detect   DetectConfig   `yaml:"detect"`
}

// ExifToolConfig controls the exiftool fallback used when the built-in
// EXIF reader finds no location
type ExifToolConfig struct {
	Path     string        `yaml:"path"`
	Timeout  time.Duration `yaml:"timeout"`
	Disabled bool          `yaml:"disabled"`
}

// LogConfig selects the zerolog level and the console or json writer
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DetectConfig describes how the external crack detection script is invoked
type DetectConfig struct {
	Python        string        `yaml:"python"`
	Script        string        `yaml:"script"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	MinConfidence float64       `yaml:"min_confidence"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		ProjectsRoot:    "Projects",
		ThresholdMeters: 200,
		ExifTool: ExifToolConfig{
			Path:    "exiftool",
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Detect: DetectConfig{
			Python:        "python3",
			Script:        "rodar_modelo_prod.py",
			Model:         "best.pt",
			Timeout:       10 * time.Minute,
			MinConfidence: 0.5,
		},
	}
}

// Load builds the configuration. configPath may be empty, in which case
// DefaultFile is used if present. envFile may be empty to skip .env loading;
// a missing .env file is not an error.
func Load(configPath, envFile string) (Config, error) {
	cfg := Default()

	path := configPath
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, models.WrapError(models.ConfigurationFailure, "read config", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, models.WrapError(models.ConfigurationFailure, "parse config", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, models.WrapError(models.ConfigurationFailure, "load env file", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ProjectsRoot = mustEnv("FISSURA_PROJECTS_ROOT", c.ProjectsRoot)
	c.Project = mustEnv("FISSURA_PROJECT", c.Project)
	c.ThresholdMeters = mustEnvFloat("FISSURA_THRESHOLD_METERS", c.ThresholdMeters)
	c.Workers = mustEnvInt("FISSURA_WORKERS", c.Workers)
	c.DryRun = mustEnvBool("FISSURA_DRY_RUN", c.DryRun)
	c.MetricsFile = mustEnv("FISSURA_METRICS_FILE", c.MetricsFile)
	c.CatalogDSN = mustEnv("FISSURA_CATALOG_DSN", c.CatalogDSN)

	c.ExifTool.Path = mustEnv("FISSURA_EXIFTOOL", c.ExifTool.Path)
	c.ExifTool.Timeout = mustEnvDuration("FISSURA_EXIFTOOL_TIMEOUT", c.ExifTool.Timeout)
	c.ExifTool.Disabled = mustEnvBool("FISSURA_EXIFTOOL_DISABLED", c.ExifTool.Disabled)

	c.Log.Level = mustEnv("FISSURA_LOG_LEVEL", c.Log.Level)
	c.Log.Format = mustEnv("FISSURA_LOG_FORMAT", c.Log.Format)

	c.Detect.Python = mustEnv("FISSURA_PYTHON", c.Detect.Python)
	c.Detect.Script = mustEnv("FISSURA_DETECT_SCRIPT", c.Detect.Script)
	c.Detect.Model = mustEnv("FISSURA_DETECT_MODEL", c.Detect.Model)
	c.Detect.Timeout = mustEnvDuration("FISSURA_DETECT_TIMEOUT", c.Detect.Timeout)
	c.Detect.MinConfidence = mustEnvFloat("FISSURA_DETECT_MIN_CONFIDENCE", c.Detect.MinConfidence)
}

// Validate rejects settings no run could use
func (c Config) Validate() error {
	if math.IsNaN(c.ThresholdMeters) || math.IsInf(c.ThresholdMeters, 0) || c.ThresholdMeters <= 0 {
		return models.WrapError(models.ConfigurationFailure, "validate config", fmt.Errorf("threshold must be a positive number of meters, got %v", c.ThresholdMeters))
	}
	if c.Workers < 0 {
		return models.WrapError(models.ConfigurationFailure, "validate config", fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return models.WrapError(models.ConfigurationFailure, "validate config", fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
