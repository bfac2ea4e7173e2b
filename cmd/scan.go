package main

import (
	"fmt"
	"path/filepath"

	"github.com/kass/go-fissura/pkg/metadata"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <input-dir>",
	Short: "List images with their geotag, heading and size without moving anything",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	inputDir := args[0]

	paths, err := metadata.FindImages(ctx, inputDir, logger)
	if err != nil {
		return err
	}

	extractor := metadata.NewExtractor(metadata.ToolConfig{
		Binary:   cfg.ExifTool.Path,
		Timeout:  cfg.ExifTool.Timeout,
		Disabled: cfg.ExifTool.Disabled,
	}, metadata.WithLogger(logger))

	fmt.Println(titleStyle.Render(fmt.Sprintf("Scanning %s (%d images)", inputDir, len(paths))))

	withGPS := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		md := extractor.Extract(ctx, path)

		size := dimStyle.Render("?")
		if format, w, h, err := metadata.Dimensions(path); err == nil {
			size = fmt.Sprintf("%s %dx%d", format, w, h)
		}

		location := dimStyle.Render("no gps")
		if md.Location != nil {
			withGPS++
			location = fmt.Sprintf("%.6f,%.6f (%s)", md.Location.Lat, md.Location.Lon, md.Source)
		}
		heading := dimStyle.Render("-")
		if md.HeadingDegrees != nil {
			heading = fmt.Sprintf("%.1f°", *md.HeadingDegrees)
		}

		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			rel = path
		}
		fmt.Printf("%-40s %-42s %-8s %s\n", rel, location, heading, size)
	}

	fmt.Printf("\n%s of %s images carry GPS\n", stat(withGPS), stat(len(paths)))
	return nil
}
