// Package cluster groups geotagged images into buildings.
//
// Assignment is greedy and order dependent: images are visited in discovery
// order and each joins the first building, in creation order, whose current
// centroid lies within the threshold. A building's centroid is the mean of
// all its members and moves as members are added, so later images are tested
// against the updated centroid rather than the seed point.
package cluster

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kass/go-fissura/pkg/geo"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/kass/go-fissura/pkg/rtree"
	"github.com/rs/zerolog"
)

// DefaultThresholdMeters is the distance used when no threshold is configured
const DefaultThresholdMeters = 200.0

// Option configures a Clusterer
type Option func(*Clusterer)

// WithLinearScan compares every image against every building instead of
// consulting the centroid index. Results are identical; only speed differs.
func WithLinearScan() Option {
	return func(c *Clusterer) { c.useIndex = false }
}

// WithLogger sets the logger used for per-assignment debug output
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Clusterer) { c.logger = logger }
}

// WithKeyFunc overrides the generator of stable building keys
func WithKeyFunc(fn func() string) Option {
	return func(c *Clusterer) { c.newKey = fn }
}

// Clusterer performs first-fit building clustering
type Clusterer struct {
	threshold float64
	useIndex  bool
	logger    zerolog.Logger
	newKey    func() string
}

// New creates a Clusterer for the given distance threshold in meters
func New(thresholdMeters float64, opts ...Option) *Clusterer {
	c := &Clusterer{
		threshold: thresholdMeters,
		useIndex:  true,
		logger:    zerolog.Nop(),
		newKey:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the configured distance threshold in meters
func (c *Clusterer) Threshold() float64 {
	return c.threshold
}

// Cluster assigns every image that has a location to a building. Images
// without a location are ignored; the caller accounts for them.
func (c *Clusterer) Cluster(images []models.ImageMetadata) []*models.Building {
	var (
		buildings []*models.Building
		index     *rtree.CentroidIndex
	)
	if c.useIndex {
		index = rtree.NewCentroidIndex()
	}

	for _, img := range images {
		if img.Location == nil {
			continue
		}
		loc := *img.Location

		target := -1
		for _, ordinal := range c.candidates(index, loc, len(buildings)) {
			if geo.Distance(loc, buildings[ordinal].Centroid) <= c.threshold {
				target = ordinal
				break
			}
		}

		if target < 0 {
			b := &models.Building{
				ID:        fmt.Sprintf("Predio-%d", len(buildings)+1),
				Key:       c.newKey(),
				Centroid:  loc,
				Facades:   make(map[models.FacadeName]*models.Facade),
				AllImages: []models.ImageMetadata{img},
			}
			buildings = append(buildings, b)
			if index != nil {
				if err := index.Insert(len(buildings)-1, loc); err != nil {
					c.logger.Warn().Err(err).Str("building", b.ID).Msg("centroid index insert failed, falling back to linear scan")
					index = nil
				}
			}
			c.logger.Debug().Str("building", b.ID).Str("image", img.FileName).Msg("seeded building")
			continue
		}

		b := buildings[target]
		b.AllImages = append(b.AllImages, img)
		b.Centroid = centroidOf(b.AllImages)
		if index != nil {
			if err := index.Move(target, b.Centroid); err != nil {
				c.logger.Warn().Err(err).Str("building", b.ID).Msg("centroid index move failed, falling back to linear scan")
				index = nil
			}
		}
		c.logger.Debug().Str("building", b.ID).Str("image", img.FileName).Int("members", len(b.AllImages)).Msg("joined building")
	}

	return buildings
}

// candidates lists building ordinals in creation order. With an index only
// buildings that can possibly be within range are returned.
func (c *Clusterer) candidates(index *rtree.CentroidIndex, loc models.Location, n int) []int {
	if index != nil {
		return index.Candidates(loc, c.threshold)
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	return all
}

func centroidOf(images []models.ImageMetadata) models.Location {
	locs := make([]models.Location, 0, len(images))
	for _, img := range images {
		if img.Location != nil {
			locs = append(locs, *img.Location)
		}
	}
	centroid, _ := geo.Centroid(locs)
	return centroid
}
