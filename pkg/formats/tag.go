// Package formats identifies image containers from a short header prefix and
// lists the formats this module can decode.
package formats

import (
	"fmt"
	"strings"
)

// Tag identifies a supported container format. It is the join key between
// detection and session opening.
type Tag int

const (
	// Unknown is the zero value and never names a decodable format.
	Unknown Tag = iota
	// Avif is the AV1 Image File Format (ISO-BMFF).
	Avif
	// Heic is the High Efficiency Image Container with HEVC payloads (ISO-BMFF).
	Heic
	// OpenExr is the OpenEXR scanline container.
	OpenExr
)

// String returns the short lowercase name used in configuration files.
func (t Tag) String() string {
	switch t {
	case Avif:
		return "avif"
	case Heic:
		return "heic"
	case OpenExr:
		return "openexr"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// ParseTag parses a tag name as produced by String. Matching is case
// insensitive and accepts "exr" for OpenExr.
func ParseTag(s string) (Tag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "avif":
		return Avif, nil
	case "heic", "heif":
		return Heic, nil
	case "openexr", "exr":
		return OpenExr, nil
	}
	return Unknown, fmt.Errorf("formats: unknown format %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tag) UnmarshalText(b []byte) error {
	v, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
