// Package metadata copies side-channel data out of engine-owned memory and
// synthesizes colour descriptors from the engine's colour fields.
package metadata

import "github.com/user/imgbridge/pkg/ports"

// Blobs is the caller-owned metadata of one image. Every slice is a fresh
// copy; none alias engine memory.
type Blobs struct {
	Exif []byte `json:"exif,omitempty"`
	XMP  []byte `json:"xmp,omitempty"`
	ICC  []byte `json:"icc,omitempty"`

	CICP         *CICP               `json:"cicp,omitempty"`
	Chromaticity *ChromaticityRecord `json:"chromaticity,omitempty"`
}

// Empty reports whether no metadata was found.
func (b Blobs) Empty() bool {
	return len(b.Exif) == 0 && len(b.XMP) == 0 && len(b.ICC) == 0 &&
		b.CICP == nil && b.Chromaticity == nil
}

// Presence flags which metadata an image carries without copying it.
type Presence struct {
	Exif         bool `json:"exif"`
	XMP          bool `json:"xmp"`
	ICC          bool `json:"icc"`
	CICP         bool `json:"cicp"`
	Chromaticity bool `json:"chromaticity"`
}

// Extract copies every non-empty blob out of info and synthesizes the colour
// descriptors. It must run before the engine handle that owns info is
// closed.
func Extract(info ports.NativeImageInfo) Blobs {
	return Blobs{
		Exif:         copyBlob(info.Exif),
		XMP:          copyBlob(info.XMP),
		ICC:          copyBlob(info.ICC),
		CICP:         SynthesizeCICP(info.ColorPrimaries, info.TransferCharacteristics),
		Chromaticity: SynthesizeChromaticity(info.Chromaticities),
	}
}

// Probe reports which metadata Extract would return.
func Probe(info ports.NativeImageInfo) Presence {
	return Presence{
		Exif:         len(info.Exif) > 0,
		XMP:          len(info.XMP) > 0,
		ICC:          len(info.ICC) > 0,
		CICP:         needsCICP(info.ColorPrimaries, info.TransferCharacteristics),
		Chromaticity: needsChromaticity(info.Chromaticities),
	}
}

func copyBlob(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
