// Package metadata reads geotags and compass headings from image files.
//
// Two strategies are tried in a fixed order. The structured tag reader
// decodes the embedded EXIF container directly; the external tool reader
// shells out to exiftool and parses its text output, which copes with more
// vendor specific encodings. The first strategy that yields coordinates wins.
package metadata

import (
	"context"
	"path/filepath"

	"github.com/kass/go-fissura/pkg/geo"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/rs/zerolog"
)

// Reading is what a single strategy found in a file. Either field may be nil.
type Reading struct {
	Location *models.Location
	Heading  *float64
}

// Strategy reads a geotag from one file
type Strategy interface {
	Kind() models.StrategyKind
	Read(ctx context.Context, path string) (Reading, error)
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger used for per-file debug output
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// WithStrategies replaces the default strategy chain
func WithStrategies(strategies ...Strategy) Option {
	return func(e *Extractor) { e.strategies = strategies }
}

// Extractor runs the strategy chain for each file
type Extractor struct {
	strategies []Strategy
	logger     zerolog.Logger
}

// NewExtractor builds the default chain: structured tags, then exiftool when
// it is installed and not disabled in cfg.
func NewExtractor(cfg ToolConfig, opts ...Option) *Extractor {
	e := &Extractor{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.strategies == nil {
		e.strategies = []Strategy{NewTagReader()}
		if !cfg.Disabled {
			tool := NewToolReader(cfg, e.logger)
			if tool.Available() {
				e.strategies = append(e.strategies, tool)
			} else {
				e.logger.Info().Str("binary", tool.Binary()).Msg("exiftool not found, using embedded tags only")
			}
		}
	}
	return e
}

// Strategies returns the kinds of the configured strategies in priority order
func (e *Extractor) Strategies() []models.StrategyKind {
	kinds := make([]models.StrategyKind, 0, len(e.strategies))
	for _, s := range e.strategies {
		kinds = append(kinds, s.Kind())
	}
	return kinds
}

// Extract never fails. A file nothing can be read from comes back with a nil
// location and heading. When no strategy finds coordinates the first heading
// seen is still reported.
func (e *Extractor) Extract(ctx context.Context, path string) models.ImageMetadata {
	meta := models.ImageMetadata{
		Path:     path,
		FileName: filepath.Base(path),
	}

	var heading *float64
	for _, s := range e.strategies {
		if ctx.Err() != nil {
			break
		}

		reading, err := s.Read(ctx, path)
		if err != nil {
			e.logger.Debug().Err(err).Str("file", path).Stringer("strategy", s.Kind()).Msg("strategy failed")
			continue
		}

		if reading.Location != nil {
			if err := geo.ValidateLocation(*reading.Location); err != nil {
				e.logger.Debug().Err(err).Str("file", path).Stringer("strategy", s.Kind()).Msg("discarding invalid location")
				reading.Location = nil
			}
		}

		if reading.Location == nil {
			if heading == nil {
				heading = reading.Heading
			}
			continue
		}

		meta.Location = reading.Location
		meta.HeadingDegrees = reading.Heading
		meta.Source = s.Kind()
		e.logger.Debug().
			Str("file", path).
			Stringer("strategy", s.Kind()).
			Float64("lat", reading.Location.Lat).
			Float64("lon", reading.Location.Lon).
			Msg("geotag found")
		return meta
	}

	meta.HeadingDegrees = heading
	return meta
}
