package pixel

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/x448/float16"

	"github.com/user/imgbridge/pkg/ports"
)

// ToImage converts a filled buffer into a standard library image. 8-bit
// buffers become *image.NRGBA or *image.RGBA depending on alpha, 16-bit and
// half-float RGBA become *image.NRGBA64 or *image.RGBA64, and a single
// half-float channel becomes *image.Gray16. Half floats are clamped to
// [0, 1]; no tone mapping is applied. AlphaNone forces integer layouts
// opaque, while half-float RGBA keeps its alpha channel, which engines fill
// with 1.0 when the file has none.
func ToImage(buf []byte, width, height uint32, layout ports.NativePixelLayout, alpha Alpha) (image.Image, error) {
	if err := CheckBuffer(buf, width, height, layout); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, int(width), int(height))

	switch layout {
	case ports.LayoutRGBA8:
		pix := append([]byte(nil), buf...)
		if alpha == AlphaAssociated {
			return &image.RGBA{Pix: pix, Stride: 4 * int(width), Rect: rect}, nil
		}
		if alpha == AlphaNone {
			opaque8(pix)
		}
		return &image.NRGBA{Pix: pix, Stride: 4 * int(width), Rect: rect}, nil

	case ports.LayoutRGBA16, ports.LayoutRGBAF16:
		pix := make([]byte, len(buf))
		convert := le16ToBE
		if layout == ports.LayoutRGBAF16 {
			convert = halfToBE
		}
		for i := 0; i < len(buf); i += 2 {
			convert(pix[i:i+2], buf[i:i+2])
		}
		if alpha == AlphaNone && layout == ports.LayoutRGBA16 {
			opaque16(pix)
		}
		if alpha == AlphaAssociated {
			return &image.RGBA64{Pix: pix, Stride: 8 * int(width), Rect: rect}, nil
		}
		return &image.NRGBA64{Pix: pix, Stride: 8 * int(width), Rect: rect}, nil

	case ports.LayoutRF16:
		pix := make([]byte, len(buf))
		for i := 0; i < len(buf); i += 2 {
			halfToBE(pix[i:i+2], buf[i:i+2])
		}
		return &image.Gray16{Pix: pix, Stride: 2 * int(width), Rect: rect}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnimplemented, layout)
	}
}

func le16ToBE(dst, src []byte) {
	dst[0], dst[1] = src[1], src[0]
}

func halfToBE(dst, src []byte) {
	f := float16.Frombits(binary.LittleEndian.Uint16(src)).Float32()
	binary.BigEndian.PutUint16(dst, unitToUint16(f))
}

func unitToUint16(f float32) uint16 {
	if f != f || f <= 0 {
		return 0
	}
	if f >= 1 {
		return math.MaxUint16
	}
	return uint16(f*math.MaxUint16 + 0.5)
}

func opaque8(pix []byte) {
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 0xFF
	}
}

func opaque16(pix []byte) {
	for i := 6; i < len(pix); i += 8 {
		pix[i], pix[i+1] = 0xFF, 0xFF
	}
}
