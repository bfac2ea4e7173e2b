// Package pipeline composes extraction, clustering, facade classification
// and materialization into a single pass over an input folder.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kass/go-fissura/pkg/cluster"
	"github.com/kass/go-fissura/pkg/facade"
	"github.com/kass/go-fissura/pkg/materialize"
	"github.com/kass/go-fissura/pkg/metadata"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/kass/go-fissura/pkg/project"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// NoGPSMessage is recorded when not a single image carries a usable geotag
const NoGPSMessage = "no images with GPS data found"

// Stage names a phase of a run for progress reporting
type Stage string

const (
	StageScan        Stage = "scan"
	StageExtract     Stage = "extract"
	StageCluster     Stage = "cluster"
	StageMaterialize Stage = "materialize"
	StageDone        Stage = "done"
)

// Progress is delivered to the progress callback. Done and Total count files
// during extraction and are zero otherwise.
type Progress struct {
	Stage Stage
	Done  int
	Total int
}

// Extractor reads metadata for a single file
type Extractor interface {
	Extract(ctx context.Context, path string) models.ImageMetadata
}

// Observer receives the outcome of every completed run
type Observer interface {
	ObserveRun(stats models.ProcessingStats, moved int, elapsed time.Duration)
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers bounds concurrent extraction. 1 makes extraction sequential;
// values below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithProgress installs a callback. Calls are serialized.
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithObserver installs a metrics observer
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithDryRun plans the moves without touching the filesystem
func WithDryRun(dryRun bool) Option {
	return func(p *Pipeline) { p.dryRun = dryRun }
}

// WithLogger sets the logger handed to every stage
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithClusterOptions forwards options to the clusterer
func WithClusterOptions(opts ...cluster.Option) Option {
	return func(p *Pipeline) { p.clusterOpts = append(p.clusterOpts, opts...) }
}

// Pipeline runs the full folder processing flow
type Pipeline struct {
	extractor   Extractor
	workers     int
	dryRun      bool
	logger      zerolog.Logger
	observer    Observer
	clusterOpts []cluster.Option

	progressMu sync.Mutex
	progress   func(Progress)
}

// New creates a Pipeline around the given extractor
func New(extractor Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = runtime.NumCPU()
	}
	return p
}

// Result is everything a run produced
type Result struct {
	Stats        models.ProcessingStats
	Buildings    []*models.Building
	Plan         materialize.Plan
	Report       materialize.Report
	Manifest     *project.Manifest
	ManifestPath string
}

// ProcessFolder runs the pipeline and returns only the statistics
func (p *Pipeline) ProcessFolder(ctx context.Context, proj project.Context, inputDir string, thresholdMeters float64) (models.ProcessingStats, error) {
	result, err := p.Run(ctx, proj, inputDir, thresholdMeters)
	if err != nil {
		return models.ProcessingStats{}, err
	}
	return result.Stats, nil
}

// Run processes every image under inputDir. Invalid arguments and an
// unreadable input directory are returned as errors with no result.
// Per-file problems end up in Result.Stats and do not stop the run. A run
// cancelled while moving files returns the context error together with the
// partial result, and its manifest is marked interrupted.
func (p *Pipeline) Run(ctx context.Context, proj project.Context, inputDir string, thresholdMeters float64) (*Result, error) {
	start := time.Now()

	if err := validate(proj, inputDir, thresholdMeters); err != nil {
		return nil, err
	}

	p.report(Progress{Stage: StageScan})
	paths, err := metadata.FindImages(ctx, inputDir, p.logger, proj.ImagesDir())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, models.WrapError(models.FilesystemFailure, "scan input", err)
	}
	p.logger.Info().Str("input", inputDir).Int("images", len(paths)).Msg("scan complete")

	images, err := p.extractAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	stats := &result.Stats
	stats.TotalImages = len(images)
	for _, img := range images {
		if img.HasLocation() {
			stats.ImagesWithGPS++
		}
		if img.HeadingDegrees != nil {
			stats.ImagesWithDirection++
		}
	}
	stats.ImagesWithoutGPS = stats.TotalImages - stats.ImagesWithGPS

	if stats.ImagesWithGPS == 0 {
		stats.AddFailure(models.ExtractionFailure, NoGPSMessage)
		p.logger.Warn().Int("images", stats.TotalImages).Msg(NoGPSMessage)
		p.finish(result, start)
		return result, nil
	}

	p.report(Progress{Stage: StageCluster})
	opts := append([]cluster.Option{cluster.WithLogger(p.logger)}, p.clusterOpts...)
	result.Buildings = cluster.New(thresholdMeters, opts...).Cluster(images)
	for _, b := range result.Buildings {
		facade.Assign(b)
	}
	stats.BuildingGroups = len(result.Buildings)
	p.logger.Info().Int("buildings", stats.BuildingGroups).Float64("threshold_m", thresholdMeters).Msg("clustering complete")

	result.Plan = materialize.NewPlan(proj.ImagesDir(), result.Buildings)
	if p.dryRun {
		p.finish(result, start)
		return result, nil
	}

	p.report(Progress{Stage: StageMaterialize})
	result.Report, err = materialize.New(p.logger).Apply(ctx, result.Plan)
	for _, f := range result.Report.Failures {
		stats.AddFailure(f.Kind, f.Message)
	}
	if err != nil {
		// files moved before the cancellation are still recorded
		p.logger.Warn().Err(err).Int("moved", len(result.Report.Moved)).Msg("materialization interrupted")
		p.writeManifest(result, proj, inputDir, thresholdMeters, true)
		p.finish(result, start)
		return result, err
	}

	p.writeManifest(result, proj, inputDir, thresholdMeters, false)
	p.finish(result, start)
	return result, nil
}

func (p *Pipeline) writeManifest(result *Result, proj project.Context, inputDir string, thresholdMeters float64, interrupted bool) {
	manifest := project.NewManifest(proj, inputDir, thresholdMeters, result.Stats, result.Buildings, result.Report.Moved)
	manifest.Interrupted = interrupted
	path, err := project.WriteManifest(proj, manifest)
	if err != nil {
		result.Stats.AddFailure(models.FilesystemFailure, err.Error())
		return
	}
	result.Manifest = &manifest
	result.ManifestPath = path
}

// extractAll reads every file on a bounded pool. Results keep discovery
// order regardless of completion order.
func (p *Pipeline) extractAll(ctx context.Context, paths []string) ([]models.ImageMetadata, error) {
	images := make([]models.ImageMetadata, len(paths))
	total := len(paths)
	var done atomic.Int64

	p.report(Progress{Stage: StageExtract, Total: total})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			images[i] = p.extractor.Extract(gctx, path)
			p.report(Progress{Stage: StageExtract, Done: int(done.Add(1)), Total: total})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

func (p *Pipeline) finish(result *Result, start time.Time) {
	elapsed := time.Since(start)
	if p.observer != nil {
		p.observer.ObserveRun(result.Stats, len(result.Report.Moved), elapsed)
	}
	p.logger.Info().
		Int("total", result.Stats.TotalImages).
		Int("with_gps", result.Stats.ImagesWithGPS).
		Int("buildings", result.Stats.BuildingGroups).
		Int("errors", len(result.Stats.Errors)).
		Dur("elapsed", elapsed).
		Msg("run complete")
	p.report(Progress{Stage: StageDone})
}

func (p *Pipeline) report(progress Progress) {
	if p.progress == nil {
		return
	}
	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.progress(progress)
}

func validate(proj project.Context, inputDir string, threshold float64) error {
	if err := proj.Validate(); err != nil {
		return err
	}
	if inputDir == "" {
		return models.WrapError(models.ConfigurationFailure, "validate input", errors.New("input directory is not set"))
	}
	info, err := os.Stat(inputDir)
	if err != nil {
		return models.WrapError(models.ConfigurationFailure, "validate input", err)
	}
	if !info.IsDir() {
		return models.WrapError(models.ConfigurationFailure, "validate input", fmt.Errorf("%s is not a directory", inputDir))
	}
	inside, err := within(inputDir, proj.ImagesDir())
	if err != nil {
		return models.WrapError(models.ConfigurationFailure, "validate input", err)
	}
	if inside {
		return models.WrapError(models.ConfigurationFailure, "validate input", fmt.Errorf("%s is inside the project images directory %s", inputDir, proj.ImagesDir()))
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return models.WrapError(models.ConfigurationFailure, "validate threshold", fmt.Errorf("threshold must be a positive number of meters, got %v", threshold))
	}
	return nil
}

// within reports whether path is dir or lies below it
func within(path, dir string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, nil
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}
