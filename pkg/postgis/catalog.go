// Package postgis persists clustering runs into a PostGIS building catalog
package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kass/go-fissura/pkg/facade"
	"github.com/kass/go-fissura/pkg/models"
	_ "github.com/lib/pq"
)

// CatalogBuilding is one building row returned by a catalog query
type CatalogBuilding struct {
	RunID    string
	Key      string
	ID       string
	Project  string
	Centroid models.Location
	Images   int
}

// Catalog stores buildings and their images across runs
type Catalog struct {
	db *sql.DB
}

// NewCatalog opens a PostGIS connection from a lib/pq DSN
func NewCatalog(ctx context.Context, dsn string) (*Catalog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewCatalogFromDB(db), nil
}

// NewCatalogFromDB wraps an existing handle
func NewCatalogFromDB(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// InitSchema creates the catalog tables and the GIST index if missing
func (c *Catalog) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		`CREATE TABLE IF NOT EXISTS buildings (
			key TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			project TEXT NOT NULL,
			building_id TEXT NOT NULL,
			centroid GEOMETRY(POINT, 4326) NOT NULL,
			image_count INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS building_images (
			building_key TEXT NOT NULL REFERENCES buildings(key) ON DELETE CASCADE,
			path TEXT NOT NULL,
			facade TEXT NOT NULL,
			heading DOUBLE PRECISION,
			location GEOMETRY(POINT, 4326) NOT NULL,
			PRIMARY KEY (building_key, path)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_buildings_centroid ON buildings USING GIST(centroid);`,
	}

	for _, query := range queries {
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// SaveRun writes every building of a run and its member images in one transaction
func (c *Catalog) SaveRun(ctx context.Context, runID, project string, buildings []*models.Building) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, b := range buildings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO buildings (key, run_id, project, building_id, centroid, image_count)
			VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326), $7)
		`, b.Key, runID, project, b.ID, b.Centroid.Lon, b.Centroid.Lat, len(b.AllImages))
		if err != nil {
			return fmt.Errorf("failed to insert building %s: %w", b.ID, err)
		}

		for _, img := range b.AllImages {
			if img.Location == nil {
				continue
			}
			var heading sql.NullFloat64
			if img.HeadingDegrees != nil {
				heading = sql.NullFloat64{Float64: *img.HeadingDegrees, Valid: true}
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO building_images (building_key, path, facade, heading, location)
				VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326))
			`, b.Key, img.Path, string(facade.Classify(img.HeadingDegrees)), heading, img.Location.Lon, img.Location.Lat)
			if err != nil {
				return fmt.Errorf("failed to insert image %s: %w", img.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", runID, err)
	}
	return nil
}

// QueryBox returns the buildings whose centroid lies inside box
func (c *Catalog) QueryBox(ctx context.Context, box models.BoundingBox) ([]CatalogBuilding, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_id, key, building_id, project, ST_Y(centroid) AS lat, ST_X(centroid) AS lon, image_count
		FROM buildings
		WHERE centroid && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY created_at, building_id
	`, box.BottomLeft.Lon, box.BottomLeft.Lat, box.TopRight.Lon, box.TopRight.Lat)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var results []CatalogBuilding
	for rows.Next() {
		var b CatalogBuilding
		if err := rows.Scan(&b.RunID, &b.Key, &b.ID, &b.Project, &b.Centroid.Lat, &b.Centroid.Lon, &b.Images); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

// Count returns the number of catalogued buildings
func (c *Catalog) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM buildings").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count buildings: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (c *Catalog) Close() error {
	return c.db.Close()
}
