package detection

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/kass/go-fissura/pkg/facade"
	"github.com/kass/go-fissura/pkg/models"
)

// ClassCount is the number of detections of one crack class
type ClassCount struct {
	Name  string
	Count int
}

// Summary aggregates detections at or above a confidence floor
type Summary struct {
	Images           int
	ImagesWithCracks int
	Detections       int
	BelowConfidence  int
	Classes          []ClassCount
}

// Summarize counts detections per class. Results naming the same path are
// one image. Classes are ordered by count, then name.
func Summarize(results []models.ImageAnalysis, minConfidence float64) Summary {
	var s Summary
	counts := make(map[string]int)
	seen := make(map[string]bool)
	cracked := make(map[string]bool)

	for _, r := range results {
		if !seen[r.Path] {
			seen[r.Path] = true
			s.Images++
		}
		for _, f := range r.Fissura {
			if f.Confidence < minConfidence {
				s.BelowConfidence++
				continue
			}
			counts[f.Name]++
			s.Detections++
			if !cracked[r.Path] {
				cracked[r.Path] = true
				s.ImagesWithCracks++
			}
		}
	}

	for name, n := range counts {
		s.Classes = append(s.Classes, ClassCount{Name: name, Count: n})
	}
	sort.Slice(s.Classes, func(i, j int) bool {
		if s.Classes[i].Count != s.Classes[j].Count {
			return s.Classes[i].Count > s.Classes[j].Count
		}
		return s.Classes[i].Name < s.Classes[j].Name
	})
	return s
}

// Location is where a result sits in the materialized tree
type Location struct {
	Building string
	Facade   models.FacadeName
}

// Locate recovers the building and facade of a result path laid out as
// <imagesDir>/<building>/fachada-<facade>/<file>. The second result is false
// for paths outside that layout.
func Locate(imagesDir, path string) (Location, bool) {
	rel, err := filepath.Rel(imagesDir, path)
	if err != nil {
		return Location{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 || parts[0] == ".." {
		return Location{}, false
	}
	name, ok := facade.FromDirName(parts[1])
	if !ok {
		return Location{}, false
	}
	return Location{Building: parts[0], Facade: name}, true
}

// GroupByLocation buckets results by building and facade. Results outside
// the project layout are returned separately.
func GroupByLocation(imagesDir string, results []models.ImageAnalysis) (map[Location][]models.ImageAnalysis, []models.ImageAnalysis) {
	grouped := make(map[Location][]models.ImageAnalysis)
	var other []models.ImageAnalysis
	for _, r := range results {
		path := r.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(imagesDir, path)
		}
		loc, ok := Locate(imagesDir, path)
		if !ok {
			other = append(other, r)
			continue
		}
		grouped[loc] = append(grouped[loc], r)
	}
	return grouped, other
}
