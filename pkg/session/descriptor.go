package session

import (
	"github.com/user/imgbridge/pkg/formats"
	"github.com/user/imgbridge/pkg/metadata"
	"github.com/user/imgbridge/pkg/pixel"
	"github.com/user/imgbridge/pkg/ports"
)

// ImageDescriptor is the caller-facing description of an opened image.
type ImageDescriptor struct {
	Format       formats.Tag             `json:"format"`
	Width        uint32                  `json:"width"`
	Height       uint32                  `json:"height"`
	Layout       ports.NativePixelLayout `json:"layout"`
	BitsPerPixel int                     `json:"bits_per_pixel"`
	Alpha        pixel.Alpha             `json:"alpha"`

	ColorPrimaries          uint8 `json:"color_primaries"`
	TransferCharacteristics uint8 `json:"transfer_characteristics"`

	// Chromaticities is nil when the engine reported none.
	Chromaticities *[8]float32 `json:"chromaticities,omitempty"`

	Metadata metadata.Presence `json:"metadata"`
}

// BufferSize returns the exact byte length FetchPixels requires.
func (d ImageDescriptor) BufferSize() (int, error) {
	return pixel.BufferSize(d.Width, d.Height, d.Layout)
}

// Pixels returns the pixel count.
func (d ImageDescriptor) Pixels() uint64 {
	return uint64(d.Width) * uint64(d.Height)
}

func describe(format formats.Tag, n ports.NativeImageInfo) (ImageDescriptor, error) {
	pd, err := pixel.Describe(n.Layout)
	if err != nil {
		return ImageDescriptor{}, err
	}
	d := ImageDescriptor{
		Format:                  format,
		Width:                   n.Width,
		Height:                  n.Height,
		Layout:                  n.Layout,
		BitsPerPixel:            pd.BitsPerPixel(),
		Alpha:                   pixel.MapAlpha(n.Alpha),
		ColorPrimaries:          uint8(n.ColorPrimaries),
		TransferCharacteristics: uint8(n.TransferCharacteristics),
		Metadata:                metadata.Probe(n),
	}
	if d.Metadata.Chromaticity {
		c := n.Chromaticities
		d.Chromaticities = &c
	}
	return d, nil
}
