// Package metadatatest builds minimal geotagged TIFF files for tests.
package metadatatest

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TIFF field types
const (
	TypeASCII    uint16 = 2
	TypeLong     uint16 = 4
	TypeRational uint16 = 5
)

// GPS IFD tags
const (
	TagLatitudeRef       uint16 = 0x1
	TagLatitude          uint16 = 0x2
	TagLongitudeRef      uint16 = 0x3
	TagLongitude         uint16 = 0x4
	TagImgDirectionRef   uint16 = 0x10
	TagImgDirection      uint16 = 0x11
	tagGPSInfoIFDPointer uint16 = 0x8825
)

// Entry is one raw IFD entry
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Data  []byte
}

// ASCII builds a NUL terminated string entry
func ASCII(tag uint16, s string) Entry {
	data := append([]byte(s), 0)
	return Entry{Tag: tag, Type: TypeASCII, Count: uint32(len(data)), Data: data}
}

// Rationals builds a RATIONAL entry from numerator/denominator pairs
func Rationals(tag uint16, pairs ...[2]uint32) Entry {
	data := make([]byte, 0, 8*len(pairs))
	for _, p := range pairs {
		data = binary.LittleEndian.AppendUint32(data, p[0])
		data = binary.LittleEndian.AppendUint32(data, p[1])
	}
	return Entry{Tag: tag, Type: TypeRational, Count: uint32(len(pairs)), Data: data}
}

// DMS splits an absolute decimal coordinate into degree, minute and second
// rationals. Seconds carry four decimal places.
func DMS(v float64) [][2]uint32 {
	v = math.Abs(v)
	deg := math.Floor(v)
	minutes := math.Floor((v - deg) * 60)
	sec := (v - deg - minutes/60) * 3600
	return [][2]uint32{
		{uint32(deg), 1},
		{uint32(minutes), 1},
		{uint32(math.Round(sec * 10000)), 10000},
	}
}

// GeoTagged returns a TIFF whose GPS IFD holds the given position and,
// when heading is not nil, an image direction.
func GeoTagged(lat, lon float64, heading *float64) []byte {
	latRef, lonRef := "N", "E"
	if lat < 0 {
		latRef = "S"
	}
	if lon < 0 {
		lonRef = "W"
	}
	entries := []Entry{
		ASCII(TagLatitudeRef, latRef),
		Rationals(TagLatitude, DMS(lat)...),
		ASCII(TagLongitudeRef, lonRef),
		Rationals(TagLongitude, DMS(lon)...),
	}
	if heading != nil {
		entries = append(entries,
			ASCII(TagImgDirectionRef, "T"),
			Rationals(TagImgDirection, [2]uint32{uint32(math.Round(*heading * 100)), 100}),
		)
	}
	return Build(entries...)
}

// Build lays out a little-endian TIFF with a single IFD0 entry pointing at
// a GPS IFD containing entries.
func Build(entries ...Entry) []byte {
	const gpsOffset = 8 + 2 + 12 + 4

	buf := []byte{'I', 'I', 42, 0}
	buf = binary.LittleEndian.AppendUint32(buf, 8)

	buf = binary.LittleEndian.AppendUint16(buf, 1)
	buf = binary.LittleEndian.AppendUint16(buf, tagGPSInfoIFDPointer)
	buf = binary.LittleEndian.AppendUint16(buf, TypeLong)
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, gpsOffset)
	buf = binary.LittleEndian.AppendUint32(buf, 0)

	dataOffset := uint32(gpsOffset + 2 + 12*len(entries) + 4)
	var data []byte

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(entries)))
	for _, e := range entries {
		buf = binary.LittleEndian.AppendUint16(buf, e.Tag)
		buf = binary.LittleEndian.AppendUint16(buf, e.Type)
		buf = binary.LittleEndian.AppendUint32(buf, e.Count)
		if len(e.Data) <= 4 {
			inline := make([]byte, 4)
			copy(inline, e.Data)
			buf = append(buf, inline...)
			continue
		}
		buf = binary.LittleEndian.AppendUint32(buf, dataOffset+uint32(len(data)))
		data = append(data, e.Data...)
		if len(data)%2 == 1 {
			data = append(data, 0)
		}
	}
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	return append(buf, data...)
}

// WriteFile writes data to dir/name, creating dir, and returns the path
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		tb.Fatalf("failed to create %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
