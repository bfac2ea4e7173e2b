package metadata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kass/go-fissura/pkg/metadata/metadatatest"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagReaderReadsGPS(t *testing.T) {
	dir := t.TempDir()
	heading := 271.25
	path := metadatatest.WriteFile(t, dir, "a.tif", metadatatest.GeoTagged(-23.5505, -46.6333, &heading))

	reader := NewTagReader()
	assert.Equal(t, models.StructuredTag, reader.Kind())

	reading, err := reader.Read(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, reading.Location)
	assert.InDelta(t, -23.5505, reading.Location.Lat, 1e-6)
	assert.InDelta(t, -46.6333, reading.Location.Lon, 1e-6)
	require.NotNil(t, reading.Heading)
	assert.InDelta(t, 271.25, *reading.Heading, 1e-9)
}

func TestTagReaderPartialOrMalformedTags(t *testing.T) {
	lat := metadatatest.DMS(10.25)
	lon := metadatatest.DMS(20.5)

	testCases := []struct {
		name    string
		entries []metadatatest.Entry
	}{
		{
			name: "missing seconds",
			entries: []metadatatest.Entry{
				metadatatest.ASCII(metadatatest.TagLatitudeRef, "N"),
				metadatatest.Rationals(metadatatest.TagLatitude, lat[0], lat[1]),
				metadatatest.ASCII(metadatatest.TagLongitudeRef, "E"),
				metadatatest.Rationals(metadatatest.TagLongitude, lon...),
			},
		},
		{
			name: "zero denominator",
			entries: []metadatatest.Entry{
				metadatatest.ASCII(metadatatest.TagLatitudeRef, "N"),
				metadatatest.Rationals(metadatatest.TagLatitude, [2]uint32{10, 0}, [2]uint32{0, 1}, [2]uint32{0, 1}),
				metadatatest.ASCII(metadatatest.TagLongitudeRef, "E"),
				metadatatest.Rationals(metadatatest.TagLongitude, lon...),
			},
		},
		{
			name: "missing reference",
			entries: []metadatatest.Entry{
				metadatatest.Rationals(metadatatest.TagLatitude, lat...),
				metadatatest.ASCII(metadatatest.TagLongitudeRef, "E"),
				metadatatest.Rationals(metadatatest.TagLongitude, lon...),
			},
		},
		{
			name: "missing longitude",
			entries: []metadatatest.Entry{
				metadatatest.ASCII(metadatatest.TagLatitudeRef, "N"),
				metadatatest.Rationals(metadatatest.TagLatitude, lat...),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := metadatatest.WriteFile(t, t.TempDir(), "x.tif", metadatatest.Build(tc.entries...))
			reading, err := NewTagReader().Read(context.Background(), path)
			require.NoError(t, err)
			assert.Nil(t, reading.Location)
		})
	}
}

func TestTagReaderHeadingWithoutPosition(t *testing.T) {
	path := metadatatest.WriteFile(t, t.TempDir(), "h.tif", metadatatest.Build(
		metadatatest.ASCII(metadatatest.TagImgDirectionRef, "M"),
		metadatatest.Rationals(metadatatest.TagImgDirection, [2]uint32{45, 1}),
	))
	reading, err := NewTagReader().Read(context.Background(), path)
	require.NoError(t, err)
	assert.Nil(t, reading.Location)
	require.NotNil(t, reading.Heading)
	assert.Equal(t, 45.0, *reading.Heading)
}

func TestTagReaderErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewTagReader().Read(context.Background(), filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)

	path := metadatatest.WriteFile(t, dir, "plain.jpg", []byte("not an image at all"))
	_, err = NewTagReader().Read(context.Background(), path)
	assert.Error(t, err)
}
