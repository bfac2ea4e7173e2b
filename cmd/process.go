package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kass/go-fissura/pkg/cluster"
	"github.com/kass/go-fissura/pkg/metadata"
	"github.com/kass/go-fissura/pkg/metrics"
	"github.com/kass/go-fissura/pkg/pipeline"
	"github.com/kass/go-fissura/pkg/postgis"
	"github.com/kass/go-fissura/pkg/project"
	"github.com/spf13/cobra"
)

// tuiLogFile receives log output while the progress UI owns the terminal
const tuiLogFile = "fissura.log"

var processCmd = &cobra.Command{
	Use:   "process <input-dir>",
	Short: "Group photos into buildings and facades",
	Long: `Scans the input directory recursively, extracts GPS position and heading from every
image, clusters the geotagged ones into buildings and moves them into the project tree.
Images without GPS stay where they are.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var (
	threshold   float64
	numWorkers  int
	dryRun      bool
	metricsFile string
	catalogDSN  string
	exiftool    string
	noExiftool  bool
	linearScan  bool
	useTUI      bool
)

func init() {
	processCmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Clustering distance in meters (default from config, 200)")
	processCmd.Flags().IntVarP(&numWorkers, "workers", "w", 0, "Extraction workers (0 uses every CPU)")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the layout without moving files")
	processCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format")
	processCmd.Flags().StringVar(&catalogDSN, "catalog-dsn", "", "Save buildings to a PostGIS catalog")
	processCmd.Flags().StringVar(&exiftool, "exiftool", "", "Path to the exiftool binary")
	processCmd.Flags().BoolVar(&noExiftool, "no-exiftool", false, "Only read embedded EXIF tags")
	processCmd.Flags().BoolVar(&linearScan, "linear", false, "Compare every image against every building instead of using the R-Tree")
	processCmd.Flags().BoolVar(&useTUI, "tui", false, "Show an interactive progress view")
}

func applyProcessFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.ThresholdMeters = threshold
	}
	if flags.Changed("workers") {
		cfg.Workers = numWorkers
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}
	if flags.Changed("catalog-dsn") {
		cfg.CatalogDSN = catalogDSN
	}
	if flags.Changed("exiftool") {
		cfg.ExifTool.Path = exiftool
	}
	if noExiftool {
		cfg.ExifTool.Disabled = true
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	applyProcessFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()
	inputDir := args[0]

	proj, info, err := project.Open(cfg.ProjectsRoot, cfg.Project)
	if err != nil {
		return err
	}

	runLogger := logger
	if useTUI {
		f, err := os.OpenFile(filepath.Join(proj.Dir(), tuiLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		runLogger = logger.Output(f)
	}

	extractor := metadata.NewExtractor(metadata.ToolConfig{
		Binary:   cfg.ExifTool.Path,
		Timeout:  cfg.ExifTool.Timeout,
		Disabled: cfg.ExifTool.Disabled,
	}, metadata.WithLogger(runLogger))

	runMetrics := metrics.NewRunMetrics()
	opts := []pipeline.Option{
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithDryRun(cfg.DryRun),
		pipeline.WithLogger(runLogger),
		pipeline.WithObserver(runMetrics),
	}
	if linearScan {
		opts = append(opts, pipeline.WithClusterOptions(cluster.WithLinearScan()))
	}

	fmt.Println(titleStyle.Render("Fissura: " + proj.Name))
	if info.Description != "" {
		fmt.Println(dimStyle.Render(info.Description))
	}
	fmt.Printf("Input: %s\nStrategies: %v\nThreshold: %.0f m\n", inputDir, extractor.Strategies(), cfg.ThresholdMeters)

	start := time.Now()
	var result *pipeline.Result
	if useTUI {
		result, err = runWithProgress(ctx, inputDir, func(ctx context.Context, progress func(pipeline.Progress)) (*pipeline.Result, error) {
			return pipeline.New(extractor, append(opts, pipeline.WithProgress(progress))...).Run(ctx, proj, inputDir, cfg.ThresholdMeters)
		})
	} else {
		result, err = pipeline.New(extractor, opts...).Run(ctx, proj, inputDir, cfg.ThresholdMeters)
	}
	if err != nil {
		if result != nil {
			fmt.Println(renderStats(result, time.Since(start)))
		}
		return err
	}

	fmt.Println(renderStats(result, time.Since(start)))

	if cfg.MetricsFile != "" {
		if err := runMetrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn().Err(err).Msg("metrics not written")
		} else {
			fmt.Printf("Metrics written to %s\n", cfg.MetricsFile)
		}
	}

	if cfg.CatalogDSN != "" && result.Manifest != nil {
		if err := saveToCatalog(ctx, result, proj.Name); err != nil {
			return err
		}
		fmt.Printf("Saved %d buildings to catalog (run %s)\n", len(result.Buildings), result.Manifest.RunID)
	}
	return nil
}

func saveToCatalog(ctx context.Context, result *pipeline.Result, projectName string) error {
	catalog, err := postgis.NewCatalog(ctx, cfg.CatalogDSN)
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := catalog.InitSchema(ctx); err != nil {
		return err
	}
	return catalog.SaveRun(ctx, result.Manifest.RunID, projectName, result.Buildings)
}
