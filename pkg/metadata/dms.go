package metadata

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/kass/go-fissura/pkg/models"
)

var (
	dmsPattern     = regexp.MustCompile(`(\d+)\s*deg\s*(\d+)'\s*([\d.]+)"?\s*([NSEW])?`)
	decimalPattern = regexp.MustCompile(`([\d.-]+)\s*([NSEW])`)
)

// ParseDMS converts a coordinate written as `16 deg 38' 18.20" S`,
// `16.6384 S` or a bare decimal into signed decimal degrees.
func ParseDMS(s string) (float64, bool) {
	if m := dmsPattern.FindStringSubmatch(s); m != nil {
		deg, err1 := strconv.ParseFloat(m[1], 64)
		minutes, err2 := strconv.ParseFloat(m[2], 64)
		sec, err3 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, false
		}
		value := deg + minutes/60 + sec/3600
		if m[4] == "S" || m[4] == "W" {
			value = -value
		}
		return value, true
	}

	if m := decimalPattern.FindStringSubmatch(s); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		if m[2] == "S" || m[2] == "W" {
			value = -value
		}
		return value, true
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseToolOutput reads the `Key : Value` listing exiftool prints by default.
// A combined "GPS Position" line is preferred; otherwise the discrete
// latitude and longitude lines are combined with their reference lines.
func ParseToolOutput(output string) Reading {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, seen := fields[key]; !seen {
			fields[key] = strings.TrimSpace(value)
		}
	}

	var reading Reading
	if position, ok := fields["GPS Position"]; ok {
		reading.Location = parsePosition(position)
	}
	if reading.Location == nil {
		reading.Location = parseDiscrete(fields)
	}

	if dir, ok := fields["GPS Img Direction"]; ok {
		if heading, err := strconv.ParseFloat(dir, 64); err == nil {
			reading.Heading = &heading
		}
	}
	return reading
}

func parsePosition(position string) *models.Location {
	parts := strings.Split(position, ",")
	if len(parts) < 2 {
		return nil
	}
	lat, latOK := ParseDMS(strings.TrimSpace(parts[0]))
	lon, lonOK := ParseDMS(strings.TrimSpace(parts[1]))
	if !latOK || !lonOK {
		return nil
	}
	return &models.Location{Lat: lat, Lon: lon}
}

func parseDiscrete(fields map[string]string) *models.Location {
	latText, latOK := fields["GPS Latitude"]
	lonText, lonOK := fields["GPS Longitude"]
	if !latOK || !lonOK {
		return nil
	}
	lat, latOK := ParseDMS(latText)
	lon, lonOK := ParseDMS(lonText)
	if !latOK || !lonOK {
		return nil
	}

	if hemisphere(fields["GPS Latitude Ref"]) == 'S' && lat > 0 {
		lat = -lat
	}
	if hemisphere(fields["GPS Longitude Ref"]) == 'W' && lon > 0 {
		lon = -lon
	}
	return &models.Location{Lat: lat, Lon: lon}
}

// hemisphere accepts "S" as well as "South" and friends
func hemisphere(ref string) byte {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return 0
	}
	switch ref[0] {
	case 'N', 'S', 'E', 'W':
		return ref[0]
	}
	return 0
}
