// Package pixel maps native engine pixel layouts onto buffer shapes and
// standard library images.
package pixel

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/user/imgbridge/pkg/ports"
)

var (
	// ErrUnimplemented is returned for a native layout with no table entry.
	ErrUnimplemented = errors.New("pixel: unsupported native pixel layout")
	// ErrTooLarge is returned when a buffer size cannot be represented.
	ErrTooLarge = errors.New("pixel: image too large")
	// ErrBufferSize is returned when a buffer does not match its layout.
	ErrBufferSize = errors.New("pixel: buffer size mismatch")
)

// Descriptor describes one tightly packed pixel layout.
type Descriptor struct {
	Layout         ports.NativePixelLayout
	Channels       int
	BitsPerChannel int
	Float          bool
}

// BitsPerPixel returns the packed size of one pixel in bits.
func (d Descriptor) BitsPerPixel() int {
	return d.Channels * d.BitsPerChannel
}

// BytesPerPixel returns the packed size of one pixel in bytes.
func (d Descriptor) BytesPerPixel() int {
	return d.BitsPerPixel() / 8
}

// Describe returns the descriptor for layout. The switch is the only place
// native layouts are mapped; a layout added to ports must be added here.
func Describe(layout ports.NativePixelLayout) (Descriptor, error) {
	switch layout {
	case ports.LayoutRGBA8:
		return Descriptor{Layout: layout, Channels: 4, BitsPerChannel: 8}, nil
	case ports.LayoutRGBA16:
		return Descriptor{Layout: layout, Channels: 4, BitsPerChannel: 16}, nil
	case ports.LayoutRGBAF16:
		return Descriptor{Layout: layout, Channels: 4, BitsPerChannel: 16, Float: true}, nil
	case ports.LayoutRF16:
		return Descriptor{Layout: layout, Channels: 1, BitsPerChannel: 16, Float: true}, nil
	default:
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnimplemented, layout)
	}
}

// RowBytes returns the stride of a tightly packed row.
func RowBytes(width uint32, layout ports.NativePixelLayout) (int, error) {
	d, err := Describe(layout)
	if err != nil {
		return 0, err
	}
	hi, lo := bits.Mul64(uint64(width), uint64(d.BytesPerPixel()))
	if hi != 0 || lo > math.MaxInt {
		return 0, fmt.Errorf("%w: row of %d pixels", ErrTooLarge, width)
	}
	return int(lo), nil
}

// BufferSize returns the exact number of bytes an engine writes for an
// image of the given shape.
func BufferSize(width, height uint32, layout ports.NativePixelLayout) (int, error) {
	row, err := RowBytes(width, layout)
	if err != nil {
		return 0, err
	}
	hi, lo := bits.Mul64(uint64(row), uint64(height))
	if hi != 0 || lo > math.MaxInt {
		return 0, fmt.Errorf("%w: %dx%d %s", ErrTooLarge, width, height, layout)
	}
	return int(lo), nil
}

// CheckBuffer verifies that buf is exactly as long as the layout requires.
func CheckBuffer(buf []byte, width, height uint32, layout ports.NativePixelLayout) error {
	want, err := BufferSize(width, height, layout)
	if err != nil {
		return err
	}
	if len(buf) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrBufferSize, len(buf), want)
	}
	return nil
}
