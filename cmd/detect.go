package main

import (
	"fmt"
	"sort"

	"github.com/kass/go-fissura/pkg/detection"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/kass/go-fissura/pkg/project"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run the crack detection model over a processed project",
	Long: `Runs the configured detection script with the project's images directory and model
weights, then summarizes detections per crack class, building and facade.`,
	Args: cobra.NoArgs,
	RunE: runDetect,
}

var (
	detectScript  string
	detectModel   string
	minConfidence float64
)

func init() {
	detectCmd.Flags().StringVar(&detectScript, "script", "", "Detection script (default from config)")
	detectCmd.Flags().StringVar(&detectModel, "model", "", "Model weights (default from config)")
	detectCmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Ignore detections below this confidence (default from config)")
}

func runDetect(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("script") {
		cfg.Detect.Script = detectScript
	}
	if flags.Changed("model") {
		cfg.Detect.Model = detectModel
	}
	if flags.Changed("min-confidence") {
		cfg.Detect.MinConfidence = minConfidence
	}

	proj, _, err := project.Open(cfg.ProjectsRoot, cfg.Project)
	if err != nil {
		return err
	}

	detector := detection.NewScriptDetector(detection.ScriptConfig{
		Python:  cfg.Detect.Python,
		Script:  cfg.Detect.Script,
		Model:   cfg.Detect.Model,
		Timeout: cfg.Detect.Timeout,
	}, nil, logger)

	fmt.Println(titleStyle.Render("Crack detection: " + proj.Name))
	results, err := detector.Detect(cmd.Context(), proj.ImagesDir())
	if err != nil {
		return err
	}

	grouped, other := detection.GroupByLocation(proj.ImagesDir(), results)
	if len(other) > 0 {
		logger.Warn().Int("results", len(other)).Msg("results outside the building layout")
	}
	fmt.Println(renderDetection(detection.Summarize(results, cfg.Detect.MinConfidence), grouped, cfg.Detect.MinConfidence))
	return nil
}

func sortedLocations(grouped map[detection.Location][]models.ImageAnalysis) []detection.Location {
	locs := make([]detection.Location, 0, len(grouped))
	for loc := range grouped {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].Building != locs[j].Building {
			return locs[i].Building < locs[j].Building
		}
		return locs[i].Facade < locs[j].Facade
	})
	return locs
}
