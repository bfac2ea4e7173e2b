// Package rtree implements an R-Tree index over building centroids. The
// clusterer uses it to narrow the set of buildings an image has to be compared
// against without changing which building it ends up in.
package rtree

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-fissura/pkg/geo"
	"github.com/kass/go-fissura/pkg/models"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2

	// slack widens the search box so rounding never drops a true candidate
	slack = 1.0001
	// poleGuard is the latitude beyond which longitude bounds are unusable
	poleGuard = 89.0
)

// centroidItem wraps a building centroid to implement rtreego.Spatial
type centroidItem struct {
	ordinal  int
	location models.Location
	rect     *rtreego.Rect
}

func (c *centroidItem) Bounds() *rtreego.Rect {
	return c.rect
}

var _ rtreego.Spatial = (*centroidItem)(nil)

// CentroidIndex is a thread-safe R-Tree of building centroids keyed by the
// building's creation ordinal
type CentroidIndex struct {
	tree      *rtreego.Rtree
	items     map[int]*centroidItem
	mu        sync.RWMutex
	itemCount atomic.Int64
}

// NewCentroidIndex creates an empty index
func NewCentroidIndex() *CentroidIndex {
	return &CentroidIndex{
		tree:  rtreego.NewTree(dimensions, minChildren, maxChildren),
		items: make(map[int]*centroidItem),
	}
}

// Insert adds the centroid of the building with the given ordinal
func (c *CentroidIndex) Insert(ordinal int, loc models.Location) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[ordinal]; exists {
		return fmt.Errorf("ordinal %d already indexed", ordinal)
	}
	item := &centroidItem{ordinal: ordinal, location: loc, rect: pointRect(loc)}
	c.tree.Insert(item)
	c.items[ordinal] = item
	c.itemCount.Add(1)
	return nil
}

// Move relocates an indexed centroid after its building gained a member
func (c *CentroidIndex) Move(ordinal int, loc models.Location) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[ordinal]
	if !ok {
		return fmt.Errorf("ordinal %d not indexed", ordinal)
	}
	// Delete locates the leaf by the item's current bounds, so the rect
	// must only change after removal.
	if !c.tree.Delete(item) {
		return fmt.Errorf("failed to remove ordinal %d from tree", ordinal)
	}
	item.location = loc
	item.rect = pointRect(loc)
	c.tree.Insert(item)
	return nil
}

// Candidates returns, in ascending ordinal order, every building whose
// centroid may lie within radiusMeters of center. The result is a superset of
// the buildings that actually are within range; callers still check the exact
// distance. Near the poles or across the antimeridian the box cannot be
// expressed and every indexed building is returned.
func (c *CentroidIndex) Candidates(center models.Location, radiusMeters float64) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	box, ok := SearchBox(center, radiusMeters)
	if !ok {
		return c.allOrdinals()
	}

	bounds, err := rtreego.NewRect(
		rtreego.Point{box.BottomLeft.Lat, box.BottomLeft.Lon},
		[]float64{box.TopRight.Lat - box.BottomLeft.Lat, box.TopRight.Lon - box.BottomLeft.Lon},
	)
	if err != nil {
		return c.allOrdinals()
	}

	results := c.tree.SearchIntersect(bounds)
	ordinals := make([]int, 0, len(results))
	for _, result := range results {
		item, ok := result.(*centroidItem)
		if !ok {
			continue
		}
		ordinals = append(ordinals, item.ordinal)
	}
	sort.Ints(ordinals)
	return ordinals
}

// Location returns the indexed centroid for an ordinal
func (c *CentroidIndex) Location(ordinal int) (models.Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[ordinal]
	if !ok {
		return models.Location{}, false
	}
	return item.location, true
}

// Count returns the number of indexed centroids
func (c *CentroidIndex) Count() int64 {
	return c.itemCount.Load()
}

// Clear removes all centroids from the index
func (c *CentroidIndex) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tree = rtreego.NewTree(dimensions, minChildren, maxChildren)
	c.items = make(map[int]*centroidItem)
	c.itemCount.Store(0)
}

func (c *CentroidIndex) allOrdinals() []int {
	ordinals := make([]int, 0, len(c.items))
	for ordinal := range c.items {
		ordinals = append(ordinals, ordinal)
	}
	sort.Ints(ordinals)
	return ordinals
}

// SearchBox returns a lat/lon box containing every point within radiusMeters
// of center. From the haversine formula, h >= sin²(dLat/2) bounds the latitude
// offset by r/R, and h >= cos(lat1)cos(lat2)sin²(dLon/2) bounds the longitude
// offset once both latitudes are known to stay inside the latitude band.
// The second result is false when the box would reach a pole or wrap the
// antimeridian.
func SearchBox(center models.Location, radiusMeters float64) (models.BoundingBox, bool) {
	if radiusMeters < 0 || math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) {
		return models.BoundingBox{}, false
	}
	angular := radiusMeters / geo.EarthRadiusMeters
	dLat := angular * (180 / math.Pi) * slack

	maxAbsLat := math.Abs(center.Lat) + dLat
	if maxAbsLat >= poleGuard {
		return models.BoundingBox{}, false
	}

	s := math.Sin(angular/2) / math.Cos(maxAbsLat*math.Pi/180)
	if s >= 1 {
		return models.BoundingBox{}, false
	}
	dLon := 2 * math.Asin(s) * (180 / math.Pi) * slack
	if center.Lon-dLon < -180 || center.Lon+dLon > 180 {
		return models.BoundingBox{}, false
	}

	// rtreego rejects zero-length sides
	if dLat < tolerance {
		dLat = tolerance
	}
	if dLon < tolerance {
		dLon = tolerance
	}

	return models.BoundingBox{
		BottomLeft: models.Location{Lat: center.Lat - dLat, Lon: center.Lon - dLon},
		TopRight:   models.Location{Lat: center.Lat + dLat, Lon: center.Lon + dLon},
	}, true
}

func pointRect(loc models.Location) *rtreego.Rect {
	return rtreego.Point{loc.Lat, loc.Lon}.ToRect(tolerance)
}
