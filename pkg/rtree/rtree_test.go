package rtree

import (
	"math/rand"
	"testing"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-fissura/pkg/geo"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCentroidIndex(t *testing.T) {
	index := NewCentroidIndex()
	assert.NotNil(t, index)
	assert.NotNil(t, index.tree)
	assert.Equal(t, int64(0), index.Count())
}

func TestInsertAndCandidates(t *testing.T) {
	index := NewCentroidIndex()

	require.NoError(t, index.Insert(0, models.Location{Lat: 37.7749, Lon: -122.4194})) // San Francisco
	require.NoError(t, index.Insert(1, models.Location{Lat: 37.8044, Lon: -122.2712})) // Oakland, ~13km
	require.NoError(t, index.Insert(2, models.Location{Lat: 34.0522, Lon: -118.2437})) // Los Angeles
	assert.Equal(t, int64(3), index.Count())

	assert.Error(t, index.Insert(1, models.Location{}))

	center := models.Location{Lat: 37.7749, Lon: -122.4194}

	testCases := []struct {
		name     string
		radius   float64
		expected []int
	}{
		{"1km radius", 1000, []int{0}},
		{"20km radius", 20_000, []int{0, 1}},
		{"700km radius", 700_000, []int{0, 1, 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, index.Candidates(center, tc.radius))
		})
	}
}

func TestMove(t *testing.T) {
	index := NewCentroidIndex()
	require.NoError(t, index.Insert(0, models.Location{Lat: 10, Lon: 10}))

	far := models.Location{Lat: 40, Lon: 40}
	assert.Empty(t, index.Candidates(far, 100))

	require.NoError(t, index.Move(0, far))
	assert.Equal(t, []int{0}, index.Candidates(far, 100))
	assert.Empty(t, index.Candidates(models.Location{Lat: 10, Lon: 10}, 100))

	loc, ok := index.Location(0)
	require.True(t, ok)
	assert.Equal(t, far, loc)

	assert.Error(t, index.Move(7, far))
}

func TestCentroidBoundsFollowMoves(t *testing.T) {
	index := NewCentroidIndex()
	start := models.Location{Lat: -23.55, Lon: -46.63}
	require.NoError(t, index.Insert(0, start))

	var item rtreego.Spatial = index.items[0]
	require.NotNil(t, item.Bounds())
	assert.True(t, boundsContain(item.Bounds(), start))

	moved := models.Location{Lat: -23.56, Lon: -46.64}
	require.NoError(t, index.Move(0, moved))
	assert.True(t, boundsContain(item.Bounds(), moved))
	assert.False(t, boundsContain(item.Bounds(), start))
	assert.Equal(t, []int{0}, index.Candidates(moved, 10))
}

func boundsContain(r *rtreego.Rect, loc models.Location) bool {
	for i, v := range []float64{loc.Lat, loc.Lon} {
		if v < r.PointCoord(i) || v > r.PointCoord(i)+r.LengthsCoord(i) {
			return false
		}
	}
	return true
}

func TestCandidatesFallBackNearPolesAndAntimeridian(t *testing.T) {
	index := NewCentroidIndex()
	require.NoError(t, index.Insert(0, models.Location{Lat: 89.5, Lon: 10}))
	require.NoError(t, index.Insert(1, models.Location{Lat: 0, Lon: -179.9999}))
	require.NoError(t, index.Insert(2, models.Location{Lat: 0, Lon: 0}))

	_, ok := SearchBox(models.Location{Lat: 89.5, Lon: 0}, 500)
	assert.False(t, ok)
	assert.Equal(t, []int{0, 1, 2}, index.Candidates(models.Location{Lat: 89.5, Lon: 0}, 500))

	_, ok = SearchBox(models.Location{Lat: 0, Lon: 179.9999}, 500)
	assert.False(t, ok)
	assert.Equal(t, []int{0, 1, 2}, index.Candidates(models.Location{Lat: 0, Lon: 179.9999}, 500))
}

func TestCandidatesNeverMissPointsInRange(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	index := NewCentroidIndex()

	var locs []models.Location
	for i := 0; i < 2000; i++ {
		loc := models.Location{
			Lat: -60 + r.Float64()*120,
			Lon: -170 + r.Float64()*340,
		}
		locs = append(locs, loc)
		require.NoError(t, index.Insert(i, loc))
	}

	for q := 0; q < 200; q++ {
		center := locs[r.Intn(len(locs))]
		center.Lat += (r.Float64() - 0.5) * 0.01
		center.Lon += (r.Float64() - 0.5) * 0.01
		radius := 50 + r.Float64()*500_000

		got := make(map[int]bool)
		for _, ordinal := range index.Candidates(center, radius) {
			got[ordinal] = true
		}
		for i, loc := range locs {
			if geo.Distance(center, loc) <= radius {
				assert.True(t, got[i], "point %d within %.0fm missing from candidates", i, radius)
			}
		}
	}
}

func TestClear(t *testing.T) {
	index := NewCentroidIndex()
	require.NoError(t, index.Insert(0, models.Location{Lat: 1, Lon: 1}))
	index.Clear()
	assert.Equal(t, int64(0), index.Count())
	assert.Empty(t, index.Candidates(models.Location{Lat: 1, Lon: 1}, 1000))
}

func BenchmarkCandidates(b *testing.B) {
	index := NewCentroidIndex()
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100_000; i++ {
		_ = index.Insert(i, models.Location{Lat: r.Float64()*120 - 60, Lon: r.Float64()*300 - 150})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		center := models.Location{Lat: r.Float64()*120 - 60, Lon: r.Float64()*300 - 150}
		_ = index.Candidates(center, 200)
	}
}
