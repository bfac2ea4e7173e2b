// Package geo holds the great-circle math shared by the clusterer and the
// spatial index.
package geo

import (
	"fmt"
	"math"

	"github.com/kass/go-fissura/pkg/models"
)

// EarthRadiusMeters is the mean Earth radius used by Distance
const EarthRadiusMeters = 6371000.0

// Distance calculates the Haversine distance between two locations in meters
func Distance(a, b models.Location) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sinLon*sinLon

	// rounding can push h a hair above 1 for antipodal points
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Centroid returns the arithmetic mean of the given locations.
// The second result is false when locs is empty.
func Centroid(locs []models.Location) (models.Location, bool) {
	if len(locs) == 0 {
		return models.Location{}, false
	}
	var sumLat, sumLon float64
	for _, l := range locs {
		sumLat += l.Lat
		sumLon += l.Lon
	}
	n := float64(len(locs))
	return models.Location{Lat: sumLat / n, Lon: sumLon / n}, true
}

// ValidateLocation rejects coordinates outside [-90,90] x [-180,180] and non-finite values
func ValidateLocation(loc models.Location) error {
	if math.IsNaN(loc.Lat) || math.IsInf(loc.Lat, 0) || math.IsNaN(loc.Lon) || math.IsInf(loc.Lon, 0) {
		return fmt.Errorf("non-finite coordinate (%v, %v)", loc.Lat, loc.Lon)
	}
	if loc.Lat < -90 || loc.Lat > 90 {
		return fmt.Errorf("latitude %.6f out of range [-90, 90]", loc.Lat)
	}
	if loc.Lon < -180 || loc.Lon > 180 {
		return fmt.Errorf("longitude %.6f out of range [-180, 180]", loc.Lon)
	}
	return nil
}

// MetersToDegrees converts an arc length along a meridian into degrees of latitude
func MetersToDegrees(meters float64) float64 {
	return (meters / EarthRadiusMeters) * (180 / math.Pi)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
