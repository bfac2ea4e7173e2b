package metadata

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kass/go-fissura/pkg/models"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// TagReader decodes GPS fields straight from the file's EXIF container
type TagReader struct{}

// NewTagReader creates the structured tag strategy
func NewTagReader() *TagReader {
	return &TagReader{}
}

// Kind implements Strategy
func (r *TagReader) Kind() models.StrategyKind {
	return models.StructuredTag
}

// Read implements Strategy
func (r *TagReader) Read(ctx context.Context, path string) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Reading{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return Reading{}, fmt.Errorf("failed to decode exif: %w", err)
	}
	return readTags(x), nil
}

func readTags(x *exif.Exif) Reading {
	var reading Reading

	lat, latOK := coordinate(x, exif.GPSLatitude, exif.GPSLatitudeRef, "S")
	lon, lonOK := coordinate(x, exif.GPSLongitude, exif.GPSLongitudeRef, "W")
	if latOK && lonOK {
		reading.Location = &models.Location{Lat: lat, Lon: lon}
	}

	if tag, err := x.Get(exif.GPSImgDirection); err == nil && tag.Format() == tiff.RatVal && tag.Count > 0 {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			heading := float64(num) / float64(den)
			reading.Heading = &heading
		}
	}
	return reading
}

// coordinate reads one axis. Both the value and its hemisphere reference
// must be present; the value is either three rationals or a DMS string.
func coordinate(x *exif.Exif, field, refField exif.FieldName, negative string) (float64, bool) {
	refTag, err := x.Get(refField)
	if err != nil {
		return 0, false
	}
	ref, err := refTag.StringVal()
	if err != nil {
		return 0, false
	}
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return 0, false
	}

	tag, err := x.Get(field)
	if err != nil {
		return 0, false
	}

	var value float64
	switch tag.Format() {
	case tiff.RatVal:
		if tag.Count < 3 {
			return 0, false
		}
		var parts [3]float64
		for i := range parts {
			num, den, err := tag.Rat2(i)
			if err != nil || den == 0 {
				return 0, false
			}
			parts[i] = float64(num) / float64(den)
		}
		value = parts[0] + parts[1]/60 + parts[2]/3600
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return 0, false
		}
		v, ok := ParseDMS(s + " " + ref)
		if !ok {
			return 0, false
		}
		value = v
	default:
		return 0, false
	}

	if strings.HasPrefix(ref, negative) && value > 0 {
		value = -value
	}
	return value, true
}
