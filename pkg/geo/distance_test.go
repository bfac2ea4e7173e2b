package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/kass/go-fissura/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKnownValues(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     models.Location
		expected float64
		delta    float64
	}{
		{"identical points", models.Location{Lat: 10, Lon: 10}, models.Location{Lat: 10, Lon: 10}, 0, 0},
		{"close pair", models.Location{Lat: 10, Lon: 10}, models.Location{Lat: 10.0001, Lon: 10.0001}, 15.6, 0.5},
		{"one degree of latitude", models.Location{Lat: 0, Lon: 0}, models.Location{Lat: 1, Lon: 0}, 111195, 1},
		{"far pair", models.Location{Lat: 10, Lon: 10}, models.Location{Lat: 40, Lon: 40}, 4_458_600, 5_000},
		{"antipodal", models.Location{Lat: 0, Lon: 0}, models.Location{Lat: 0, Lon: 180}, math.Pi * EarthRadiusMeters, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, Distance(tc.a, tc.b), tc.delta)
		})
	}
}

func TestDistanceSymmetryAndIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		a := models.Location{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
		b := models.Location{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}

		assert.Equal(t, Distance(a, b), Distance(b, a))
		assert.Zero(t, Distance(a, a))
		if a != b {
			assert.Greater(t, Distance(a, b), 0.0)
		}
	}
}

func TestCentroid(t *testing.T) {
	_, ok := Centroid(nil)
	assert.False(t, ok)

	c, ok := Centroid([]models.Location{
		{Lat: 10, Lon: 20},
		{Lat: 12, Lon: 22},
		{Lat: 14, Lon: 24},
	})
	require.True(t, ok)
	assert.InDelta(t, 12.0, c.Lat, 1e-12)
	assert.InDelta(t, 22.0, c.Lon, 1e-12)
}

func TestValidateLocation(t *testing.T) {
	assert.NoError(t, ValidateLocation(models.Location{Lat: -90, Lon: 180}))
	assert.NoError(t, ValidateLocation(models.Location{Lat: 45.5, Lon: -73.6}))
	assert.Error(t, ValidateLocation(models.Location{Lat: 90.1, Lon: 0}))
	assert.Error(t, ValidateLocation(models.Location{Lat: 0, Lon: -180.5}))
	assert.Error(t, ValidateLocation(models.Location{Lat: math.NaN(), Lon: 0}))
	assert.Error(t, ValidateLocation(models.Location{Lat: 0, Lon: math.Inf(1)}))
}

func TestMetersToDegrees(t *testing.T) {
	assert.InDelta(t, 1.0, MetersToDegrees(111195), 1e-4)
}
