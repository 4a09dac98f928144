package ports

import (
	"errors"
	"fmt"
)

// ReadFunc fills p from the bound source and returns the number of bytes
// transferred. It returns fewer than len(p) bytes only at end of stream or
// on error; io.EOF signals end of stream.
type ReadFunc func(p []byte) (int, error)

// SeekFunc repositions the bound source. whence is io.SeekStart,
// io.SeekCurrent or io.SeekEnd. It returns the new absolute offset.
type SeekFunc func(offset int64, whence int) (int64, error)

// Engine opens decode contexts for one container format. Engines are
// stateless factories; all per-image state lives in the EngineHandle.
type Engine interface {
	// Open binds read and seek to a new decode context and parses as much of
	// the container as is needed to produce a handle. The engine retains
	// both callbacks until the handle is closed.
	Open(read ReadFunc, seek SeekFunc) (EngineHandle, error)
}

// EngineHandle is one opened decode context. A handle is not safe for
// concurrent use.
type EngineHandle interface {
	// ImageInfo describes the primary image. Byte slices in the result are
	// owned by the handle and become invalid when Close is called.
	ImageInfo() (NativeImageInfo, error)

	// ImageData decodes the primary image directly into dst, which must be
	// exactly as large as the layout reported by ImageInfo requires.
	ImageData(dst []byte) error

	// Close releases the context. The handle must not be used afterwards.
	Close() error
}

// NativePixelLayout is the engine's native pixel representation.
type NativePixelLayout uint32

const (
	// LayoutRGBA8 is four unsigned 8-bit channels.
	LayoutRGBA8 NativePixelLayout = iota
	// LayoutRGBA16 is four unsigned 16-bit little-endian channels.
	LayoutRGBA16
	// LayoutRGBAF16 is four IEEE half-float little-endian channels.
	LayoutRGBAF16
	// LayoutRF16 is a single IEEE half-float little-endian channel.
	LayoutRF16
)

func (l NativePixelLayout) String() string {
	switch l {
	case LayoutRGBA8:
		return "RGBA_UN8"
	case LayoutRGBA16:
		return "RGBA_UN16"
	case LayoutRGBAF16:
		return "RGBA_F16"
	case LayoutRF16:
		return "R_F16"
	default:
		return fmt.Sprintf("layout(%d)", uint32(l))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l NativePixelLayout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// NativeAlpha is the engine's description of the alpha channel.
type NativeAlpha uint32

const (
	// AlphaUnknown means there is no alpha or its association is unknown.
	AlphaUnknown NativeAlpha = iota
	// AlphaStraight is unassociated alpha.
	AlphaStraight
	// AlphaPremultiplied is alpha pre-multiplied into the colour channels.
	AlphaPremultiplied
	// AlphaNone explicitly marks an image without alpha.
	AlphaNone
)

func (a NativeAlpha) String() string {
	switch a {
	case AlphaUnknown:
		return "unknown"
	case AlphaStraight:
		return "straight"
	case AlphaPremultiplied:
		return "premultiplied"
	case AlphaNone:
		return "none"
	default:
		return fmt.Sprintf("alpha(%d)", uint32(a))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a NativeAlpha) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// CICPUnspecified is the "unspecified" code point for colour primaries and
// transfer characteristics.
const CICPUnspecified = 2

// Chromaticity coordinate indices into NativeImageInfo.Chromaticities.
const (
	ChromaRedX = iota
	ChromaRedY
	ChromaGreenX
	ChromaGreenY
	ChromaBlueX
	ChromaBlueY
	ChromaWhiteX
	ChromaWhiteY
)

// NativeImageInfo is what an engine reports about the primary image.
type NativeImageInfo struct {
	Width  uint32
	Height uint32
	Layout NativePixelLayout
	Alpha  NativeAlpha

	// CICP; CICPUnspecified when the container carries none.
	ColorPrimaries          int
	TransferCharacteristics int

	// Chromaticities holds red, green, blue and white xy pairs; all zero
	// when absent.
	Chromaticities [8]float32

	// Engine-owned metadata, valid until the handle is closed.
	Exif []byte
	XMP  []byte
	ICC  []byte
}

// NewNativeImageInfo returns an info value with CICP fields set to
// unspecified, the state every engine starts from.
func NewNativeImageInfo() NativeImageInfo {
	return NativeImageInfo{
		ColorPrimaries:          CICPUnspecified,
		TransferCharacteristics: CICPUnspecified,
	}
}

// Engine status errors. Engines wrap these with %w so callers can classify
// a failure without parsing messages.
var (
	ErrEngineInvalidParameter = errors.New("engine: invalid parameter")
	ErrEngineBadFormat        = errors.New("engine: bad format")
	ErrEngineInternal         = errors.New("engine: internal error")
	ErrEngineImageTooLarge    = errors.New("engine: image too large")
	ErrEngineUnknown          = errors.New("engine: unknown error")
)
