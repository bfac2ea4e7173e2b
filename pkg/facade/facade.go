// Package facade maps a compass heading onto the facade of a building the
// photographer was facing.
package facade

import (
	"strings"

	"github.com/kass/go-fissura/pkg/models"
)

const dirPrefix = "fachada-"

// Classify maps a heading in degrees clockwise from true North to a facade.
// Sectors are half-open: [315,360) and [0,45) are Norte, [45,135) Leste,
// [135,225) Sul, [225,315) Oeste. A nil heading or one outside [0,360),
// NaN included, is Indefinida.
func Classify(heading *float64) models.FacadeName {
	if heading == nil {
		return models.FacadeUndefined
	}
	h := *heading
	switch {
	case h >= 315 && h < 360, h >= 0 && h < 45:
		return models.FacadeNorth
	case h >= 45 && h < 135:
		return models.FacadeEast
	case h >= 135 && h < 225:
		return models.FacadeSouth
	case h >= 225 && h < 315:
		return models.FacadeWest
	default:
		return models.FacadeUndefined
	}
}

// DirName returns the unsanitized directory name for a facade
func DirName(name models.FacadeName) string {
	return dirPrefix + string(name)
}

// FromDirName is the inverse of DirName. It only recognizes known facades.
func FromDirName(dir string) (models.FacadeName, bool) {
	name, ok := strings.CutPrefix(dir, dirPrefix)
	if !ok {
		return "", false
	}
	for _, known := range models.FacadeNames {
		if string(known) == name {
			return known, true
		}
	}
	return "", false
}

// Assign rebuilds the facade buckets of b from its members, in member order
func Assign(b *models.Building) {
	b.Facades = make(map[models.FacadeName]*models.Facade)
	for _, img := range b.AllImages {
		b.AddToFacade(Classify(img.HeadingDegrees), img)
	}
}
