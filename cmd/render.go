package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/kass/go-fissura/pkg/detection"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/kass/go-fissura/pkg/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginTop(1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(1, 2).
			MarginTop(1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))
)

// maxListedErrors caps the failures echoed to the terminal; the manifest keeps all of them
const maxListedErrors = 10

func stat(v any) string {
	return statStyle.Render(fmt.Sprint(v))
}

func renderStats(result *pipeline.Result, elapsed time.Duration) string {
	s := result.Stats
	var b strings.Builder

	fmt.Fprintf(&b, "Images found:       %s\n", stat(s.TotalImages))
	fmt.Fprintf(&b, "With GPS:           %s\n", stat(s.ImagesWithGPS))
	fmt.Fprintf(&b, "Without GPS:        %s\n", stat(s.ImagesWithoutGPS))
	fmt.Fprintf(&b, "With heading:       %s\n", stat(s.ImagesWithDirection))
	fmt.Fprintf(&b, "Buildings:          %s\n", stat(s.BuildingGroups))
	fmt.Fprintf(&b, "Files moved:        %s\n", stat(len(result.Report.Moved)))
	fmt.Fprintf(&b, "Elapsed:            %s", stat(elapsed.Round(time.Millisecond)))

	for _, building := range result.Buildings {
		fmt.Fprintf(&b, "\n  %s  %d images", building.ID, len(building.AllImages))
		for _, name := range models.FacadeNames {
			if f, ok := building.Facades[name]; ok {
				fmt.Fprintf(&b, "  %s:%d", name, len(f.Images))
			}
		}
	}

	header := successStyle.Render("Processing complete")
	if cfg.DryRun && len(result.Buildings) > 0 {
		header = warnStyle.Render("Dry run, nothing moved")
	}
	if result.ManifestPath != "" {
		fmt.Fprintf(&b, "\n\nManifest: %s", result.ManifestPath)
	}
	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "\n\n%s", errorStyle.Render(fmt.Sprintf("%d problems:", len(s.Errors))))
		for i, e := range s.Errors {
			if i == maxListedErrors {
				fmt.Fprintf(&b, "\n  %s", dimStyle.Render(fmt.Sprintf("... and %d more", len(s.Errors)-maxListedErrors)))
				break
			}
			fmt.Fprintf(&b, "\n  • %s", e)
		}
	}

	return boxStyle.Render(header + "\n\n" + b.String())
}

func renderDetection(summary detection.Summary, grouped map[detection.Location][]models.ImageAnalysis, minConfidence float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Images analysed:    %s\n", stat(summary.Images))
	fmt.Fprintf(&b, "With cracks:        %s\n", stat(summary.ImagesWithCracks))
	fmt.Fprintf(&b, "Detections:         %s\n", stat(summary.Detections))
	fmt.Fprintf(&b, "Below %.2f:         %s", minConfidence, stat(summary.BelowConfidence))

	for _, c := range summary.Classes {
		fmt.Fprintf(&b, "\n  %-24s %s", c.Name, stat(c.Count))
	}

	if len(grouped) > 0 {
		b.WriteString("\n")
		for _, loc := range sortedLocations(grouped) {
			cracked := 0
			for _, r := range grouped[loc] {
				for _, f := range r.Fissura {
					if f.Confidence >= minConfidence {
						cracked++
						break
					}
				}
			}
			fmt.Fprintf(&b, "\n  %s / %s  %d/%d with cracks", loc.Building, loc.Facade, cracked, len(grouped[loc]))
		}
	}

	return boxStyle.Render(successStyle.Render("Detection complete") + "\n\n" + b.String())
}
