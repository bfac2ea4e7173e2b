package main

import (
	"errors"
	"fmt"

	"github.com/kass/go-fissura/pkg/models"
	"github.com/kass/go-fissura/pkg/postgis"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query the PostGIS building catalog",
}

var catalogQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List catalogued buildings inside a bounding box",
	Args:  cobra.NoArgs,
	RunE:  runCatalogQuery,
}

var catalogCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count catalogued buildings",
	Args:  cobra.NoArgs,
	RunE:  runCatalogCount,
}

var minLat, minLon, maxLat, maxLon float64

func init() {
	catalogCmd.PersistentFlags().StringVar(&catalogDSN, "catalog-dsn", "", "PostGIS connection string (default from config)")

	catalogQueryCmd.Flags().Float64Var(&minLat, "min-lat", -90, "Bottom-left latitude")
	catalogQueryCmd.Flags().Float64Var(&minLon, "min-lon", -180, "Bottom-left longitude")
	catalogQueryCmd.Flags().Float64Var(&maxLat, "max-lat", 90, "Top-right latitude")
	catalogQueryCmd.Flags().Float64Var(&maxLon, "max-lon", 180, "Top-right longitude")

	catalogCmd.AddCommand(catalogQueryCmd, catalogCountCmd)
}

func openCatalog(cmd *cobra.Command) (*postgis.Catalog, error) {
	if cmd.Flags().Changed("catalog-dsn") {
		cfg.CatalogDSN = catalogDSN
	}
	if cfg.CatalogDSN == "" {
		return nil, models.WrapError(models.ConfigurationFailure, "catalog", errors.New("no catalog DSN configured"))
	}
	return postgis.NewCatalog(cmd.Context(), cfg.CatalogDSN)
}

func runCatalogQuery(cmd *cobra.Command, args []string) error {
	if minLat > maxLat || minLon > maxLon {
		return models.WrapError(models.ConfigurationFailure, "catalog query", fmt.Errorf("empty box (%.6f,%.6f)-(%.6f,%.6f)", minLat, minLon, maxLat, maxLon))
	}
	catalog, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer catalog.Close()

	box := models.BoundingBox{
		BottomLeft: models.Location{Lat: minLat, Lon: minLon},
		TopRight:   models.Location{Lat: maxLat, Lon: maxLon},
	}
	buildings, err := catalog.QueryBox(cmd.Context(), box)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%d buildings", len(buildings))))
	for _, b := range buildings {
		fmt.Printf("%-12s %-20s %.6f,%.6f  %3d images  %s\n",
			b.ID, b.Project, b.Centroid.Lat, b.Centroid.Lon, b.Images, dimStyle.Render("run "+b.RunID))
	}
	return nil
}

func runCatalogCount(cmd *cobra.Command, args []string) error {
	catalog, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer catalog.Close()

	count, err := catalog.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("%s buildings catalogued\n", stat(count))
	return nil
}
