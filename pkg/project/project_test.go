package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kass/go-fissura/pkg/materialize"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextPaths(t *testing.T) {
	c := Context{Name: "Ponte", Root: "/data/projects"}
	assert.Equal(t, filepath.Join("/data/projects", "Ponte"), c.Dir())
	assert.Equal(t, filepath.Join("/data/projects", "Ponte", "images"), c.ImagesDir())
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "ok"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "file"), nil, 0o644))

	assert.NoError(t, Context{Name: "ok", Root: root}.Validate())

	for _, c := range []Context{
		{Name: "", Root: root},
		{Name: "ok", Root: ""},
		{Name: "../ok", Root: root},
		{Name: "missing", Root: root},
		{Name: "file", Root: root},
	} {
		err := c.Validate()
		assert.ErrorIs(t, err, models.ErrConfiguration, "%+v", c)
	}
}

func TestCreateAndOpen(t *testing.T) {
	root := t.TempDir()
	info := Info{
		Name:          " Escola Municipal ",
		Description:   "Inspeção anual",
		Year:          "2024",
		Leader:        "Ana",
		StructureType: "concreto armado",
	}

	c, err := Create(root, info)
	require.NoError(t, err)
	assert.Equal(t, "Escola Municipal", c.Name)
	assert.DirExists(t, c.ImagesDir())
	assert.FileExists(t, filepath.Join(c.Dir(), InfoFile))

	opened, loaded, err := Open(root, "Escola Municipal")
	require.NoError(t, err)
	assert.Equal(t, c, opened)
	assert.Equal(t, "2024", loaded.Year)
	assert.Equal(t, "concreto armado", loaded.StructureType)

	_, err = Create(root, info)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestCreateRequiresNameAndYear(t *testing.T) {
	_, err := Create(t.TempDir(), Info{Name: "x"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = Create(t.TempDir(), Info{Year: "2024"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestOpenWithoutInfoFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "legacy"), 0o755))

	c, info, err := Open(root, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "legacy", c.Name)
	assert.Equal(t, "legacy", info.Name)

	require.NoError(t, os.WriteFile(filepath.Join(root, "legacy", InfoFile), []byte("name: [unclosed"), 0o644))
	_, _, err = Open(root, "legacy")
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestManifestRoundTrip(t *testing.T) {
	root := t.TempDir()
	c, err := Create(root, Info{Name: "p", Year: "2024"})
	require.NoError(t, err)

	east := 90.0
	a := models.ImageMetadata{Path: "/in/a.jpg", FileName: "a.jpg", Location: &models.Location{Lat: 1, Lon: 2}, HeadingDegrees: &east}
	b := models.ImageMetadata{Path: "/in/b.jpg", FileName: "b.jpg", Location: &models.Location{Lat: 1, Lon: 2}}
	building := &models.Building{ID: "Predio-1", Key: "k1", Centroid: models.Location{Lat: 1, Lon: 2}, AllImages: []models.ImageMetadata{a, b}}
	building.AddToFacade(models.FacadeEast, a)
	building.AddToFacade(models.FacadeUndefined, b)

	stats := models.ProcessingStats{TotalImages: 3, ImagesWithGPS: 2, ImagesWithoutGPS: 1, BuildingGroups: 1}
	moved := []materialize.Moved{{Source: "/in/a.jpg", Target: "/p/images/Predio-1/fachada-Leste/a.jpg", SourceRemoved: true}}

	m := NewManifest(c, "/in", 200, stats, []*models.Building{building}, moved)
	assert.NotEmpty(t, m.RunID)
	require.Len(t, m.Buildings, 1)
	assert.Equal(t, []string{"/p/images/Predio-1/fachada-Leste/a.jpg"}, m.Buildings[0].Facades[models.FacadeEast])
	assert.NotContains(t, m.Buildings[0].Facades, models.FacadeUndefined)
	assert.Equal(t, 2, m.Buildings[0].Images)

	path, err := WriteManifest(c, m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.ImagesDir(), ManifestFile), path)
	assert.NoFileExists(t, path+".tmp")

	loaded, err := ReadManifest(c)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, loaded.RunID)
	assert.Equal(t, m.Stats.TotalImages, loaded.Stats.TotalImages)
	assert.Equal(t, m.Buildings, loaded.Buildings)
	assert.True(t, m.CreatedAt.Equal(loaded.CreatedAt))
}
