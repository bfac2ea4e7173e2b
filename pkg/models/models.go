package models

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft Location
	TopRight   Location
}

// Contains reports whether loc lies inside the box, edges included
func (b BoundingBox) Contains(loc Location) bool {
	return loc.Lat >= b.BottomLeft.Lat && loc.Lat <= b.TopRight.Lat &&
		loc.Lon >= b.BottomLeft.Lon && loc.Lon <= b.TopRight.Lon
}

// StrategyKind names the extraction strategy that produced an image's geotag
type StrategyKind int

const (
	StrategyNone StrategyKind = iota
	StructuredTag
	ExternalTool
)

func (k StrategyKind) String() string {
	switch k {
	case StructuredTag:
		return "structured-tag"
	case ExternalTool:
		return "external-tool"
	default:
		return "none"
	}
}

// ImageMetadata is the per-file result of the walk and extraction phase.
// Location and HeadingDegrees are nil when no usable value was found.
type ImageMetadata struct {
	Path           string       `json:"path"`
	FileName       string       `json:"file_name"`
	Location       *Location    `json:"location,omitempty"`
	HeadingDegrees *float64     `json:"heading_degrees,omitempty"`
	Source         StrategyKind `json:"-"`
}

// HasLocation reports whether the image carries usable coordinates
func (m ImageMetadata) HasLocation() bool {
	return m.Location != nil
}

// FacadeName is one compass-facing side of a building
type FacadeName string

const (
	FacadeNorth     FacadeName = "Norte"
	FacadeSouth     FacadeName = "Sul"
	FacadeEast      FacadeName = "Leste"
	FacadeWest      FacadeName = "Oeste"
	FacadeUndefined FacadeName = "Indefinida"
)

// FacadeNames lists every facade bucket in a stable order
var FacadeNames = []FacadeName{FacadeNorth, FacadeEast, FacadeSouth, FacadeWest, FacadeUndefined}

// Facade groups the images of a building that face the same direction
type Facade struct {
	Name   FacadeName      `json:"name"`
	Images []ImageMetadata `json:"images"`
}

// Building is a cluster of images taken around the same physical building.
// ID is the display name ("Predio-1"), Key a stable generated identifier.
type Building struct {
	ID        string                 `json:"id"`
	Key       string                 `json:"key"`
	Centroid  Location               `json:"centroid"`
	Facades   map[FacadeName]*Facade `json:"facades"`
	AllImages []ImageMetadata        `json:"all_images"`
}

// AddToFacade appends img to the named facade, creating the bucket on first use
func (b *Building) AddToFacade(name FacadeName, img ImageMetadata) {
	if b.Facades == nil {
		b.Facades = make(map[FacadeName]*Facade)
	}
	f, ok := b.Facades[name]
	if !ok {
		f = &Facade{Name: name}
		b.Facades[name] = f
	}
	f.Images = append(f.Images, img)
}

// ProcessingStats aggregates the counters of a single pipeline run
type ProcessingStats struct {
	TotalImages         int       `json:"total_images"`
	ImagesWithGPS       int       `json:"images_with_gps"`
	ImagesWithoutGPS    int       `json:"images_without_gps"`
	ImagesWithDirection int       `json:"images_with_direction"`
	BuildingGroups      int       `json:"building_groups"`
	Errors              []string  `json:"errors"`
	Failures            []Failure `json:"-"`
}

// AddFailure records a recovered failure both as text and with its kind
func (s *ProcessingStats) AddFailure(kind ErrorKind, message string) {
	s.Errors = append(s.Errors, message)
	s.Failures = append(s.Failures, Failure{Kind: kind, Message: message})
}

// FailuresOf returns the recorded failures of the given kind
func (s *ProcessingStats) FailuresOf(kind ErrorKind) []Failure {
	var out []Failure
	for _, f := range s.Failures {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Fissura is one crack classification reported by the detection step
type Fissura struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ImageAnalysis is the detection result for a single image
type ImageAnalysis struct {
	Path    string    `json:"path"`
	Fissura []Fissura `json:"fissura"`
}
