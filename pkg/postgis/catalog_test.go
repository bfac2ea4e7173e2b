package postgis

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Catalog, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCatalogFromDB(db), mock
}

func testBuildings() []*models.Building {
	heading := 90.0
	return []*models.Building{
		{
			ID:       "Predio-1",
			Key:      "key-1",
			Centroid: models.Location{Lat: 10, Lon: 20},
			AllImages: []models.ImageMetadata{
				{Path: "/in/a.jpg", Location: &models.Location{Lat: 10, Lon: 20}, HeadingDegrees: &heading},
				{Path: "/in/b.jpg", Location: &models.Location{Lat: 10, Lon: 20}},
			},
		},
	}
}

func TestInitSchema(t *testing.T) {
	catalog, mock := newMock(t)
	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS postgis").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS buildings").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS building_images").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_buildings_centroid").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, catalog.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitSchemaFailure(t *testing.T) {
	catalog, mock := newMock(t)
	mock.ExpectExec("CREATE EXTENSION").WillReturnError(errors.New("permission denied"))

	err := catalog.InitSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	catalog, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO buildings").
		WithArgs("key-1", "run-1", "Obra", "Predio-1", 20.0, 10.0, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO building_images").
		WithArgs("key-1", "/in/a.jpg", "Leste", sqlmock.AnyArg(), 20.0, 10.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO building_images").
		WithArgs("key-1", "/in/b.jpg", "Indefinida", sqlmock.AnyArg(), 20.0, 10.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, catalog.SaveRun(context.Background(), "run-1", "Obra", testBuildings()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRollsBackOnFailure(t *testing.T) {
	catalog, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO buildings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO building_images").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := catalog.SaveRun(context.Background(), "run-1", "Obra", testBuildings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/in/a.jpg")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryBox(t *testing.T) {
	catalog, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"run_id", "key", "building_id", "project", "lat", "lon", "image_count"}).
		AddRow("run-1", "key-1", "Predio-1", "Obra", 10.0, 20.0, 2).
		AddRow("run-2", "key-9", "Predio-3", "Outra", 10.5, 20.5, 7)
	mock.ExpectQuery("FROM buildings").
		WithArgs(19.0, 9.0, 21.0, 11.0).
		WillReturnRows(rows)

	box := models.BoundingBox{
		BottomLeft: models.Location{Lat: 9, Lon: 19},
		TopRight:   models.Location{Lat: 11, Lon: 21},
	}
	results, err := catalog.QueryBox(context.Background(), box)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, CatalogBuilding{
		RunID: "run-1", Key: "key-1", ID: "Predio-1", Project: "Obra",
		Centroid: models.Location{Lat: 10, Lon: 20}, Images: 2,
	}, results[0])
	assert.Equal(t, 7, results[1].Images)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	catalog, mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := catalog.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("relation does not exist"))
	_, err = catalog.Count(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
