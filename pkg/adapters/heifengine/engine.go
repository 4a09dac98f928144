// Package heifengine decodes the primary image of HEIF containers (AVIF and
// HEIC) into 8- or 16-bit RGBA buffers.
//
// The container is parsed here, through the read and seek callbacks, so that
// image info and metadata are available without decoding. The compressed
// bitstream is handed to a Codec only when pixels are requested.
package heifengine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/gen2brain/avif"
	"github.com/gen2brain/heic"

	"github.com/user/imgbridge/pkg/bmff"
	"github.com/user/imgbridge/pkg/formats"
	"github.com/user/imgbridge/pkg/ioadapter"
	"github.com/user/imgbridge/pkg/logsink"
	"github.com/user/imgbridge/pkg/ports"
)

const (
	// maxMetaSize bounds the meta box, which is read into memory whole.
	maxMetaSize = 16 << 20
	// maxItemSize bounds an Exif or XMP item.
	maxItemSize = 64 << 20
	// maxTopLevelBoxes stops the walk on files made of many tiny boxes.
	maxTopLevelBoxes = 1024
)

var structuralBrands = []bmff.FourCC{
	bmff.Fourcc("mif1"),
	bmff.Fourcc("msf1"),
	bmff.Fourcc("miaf"),
}

// Codec decodes a complete HEIF file into an image.
type Codec struct {
	Decode func(r io.Reader) (image.Image, error)
	// Oriented reports that Decode applies the irot transformation itself.
	Oriented bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithCodec replaces the bitstream codec.
func WithCodec(c Codec) Option {
	return func(e *Engine) {
		e.codec = c
	}
}

// Engine opens decode contexts for one HEIF flavour.
type Engine struct {
	name      string
	brands    []bmff.FourCC
	itemTypes []bmff.FourCC
	codec     Codec
}

// NewAVIF creates the engine for AV1 coded images.
func NewAVIF(opts ...Option) *Engine {
	e := &Engine{
		name:      "avif",
		brands:    append(formats.AvifBrands(), bmff.Fourcc("avis")),
		itemTypes: []bmff.FourCC{typeAv01},
		codec:     Codec{Decode: avif.Decode},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewHEIC creates the engine for HEVC coded images.
func NewHEIC(opts ...Option) *Engine {
	e := &Engine{
		name:      "heic",
		brands:    formats.HeicBrands(),
		itemTypes: []bmff.FourCC{typeHvc1},
		codec:     Codec{Decode: heic.Decode, Oriented: true},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) badFormat(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ports.ErrEngineBadFormat, e.name, fmt.Sprintf(format, args...))
}

// Open walks the top-level boxes, validates the brands and parses meta.
func (e *Engine) Open(read ports.ReadFunc, seek ports.SeekFunc) (ports.EngineHandle, error) {
	if read == nil || seek == nil {
		return nil, ports.ErrEngineInvalidParameter
	}
	stream := ioadapter.NewStream(read, seek)
	size, err := stream.Size()
	if err != nil {
		return nil, e.badFormat("size: %v", err)
	}

	brands, m, err := e.walk(stream, size)
	if err != nil {
		return nil, err
	}
	if err := e.checkBrands(brands, m); err != nil {
		return nil, err
	}

	primary := m.items[m.primary]
	logsink.Logf(logsink.Debug, "%s: primary item %d of type %s, %d items",
		e.name, primary.id, primary.typ, len(m.items))
	return &handle{engine: e, stream: stream, size: size, meta: m, primary: primary}, nil
}

// walk reads the ftyp brands and the meta box without touching media data.
func (e *Engine) walk(stream *ioadapter.Stream, size int64) ([]string, *meta, error) {
	var (
		brands []string
		m      *meta
		hdr    [16]byte
		off    int64
	)
	for i := 0; off < size && i < maxTopLevelBoxes; i++ {
		n := int64(len(hdr))
		if size-off < n {
			n = size - off
		}
		if n < bmff.HeaderSize {
			return nil, nil, e.badFormat("%d trailing bytes at %d", n, off)
		}
		if _, err := stream.ReadAt(hdr[:n], off); err != nil {
			return nil, nil, e.badFormat("box header at %d: %v", off, err)
		}
		boxSize := int64(binary.BigEndian.Uint32(hdr[0:4]))
		var typ bmff.FourCC
		copy(typ[:], hdr[4:8])
		headerLen := int64(bmff.HeaderSize)
		switch boxSize {
		case 0:
			boxSize = size - off
		case 1:
			if n < 16 {
				return nil, nil, e.badFormat("extended size of %s truncated", typ)
			}
			boxSize = int64(binary.BigEndian.Uint64(hdr[8:16]))
			headerLen = 16
		}
		if boxSize < headerLen || boxSize > size-off {
			return nil, nil, e.badFormat("box %s at %d declares size %d", typ, off, boxSize)
		}

		if i == 0 && typ != bmff.TypeFtyp {
			return nil, nil, e.badFormat("first box is %s, not ftyp", typ)
		}

		switch typ {
		case bmff.TypeFtyp:
			if brands != nil {
				break
			}
			raw := make([]byte, boxSize)
			if _, err := stream.ReadAt(raw, off); err != nil {
				return nil, nil, e.badFormat("ftyp: %v", err)
			}
			ftyp, err := decodeFtyp(raw)
			if err != nil {
				return nil, nil, e.badFormat("ftyp: %v", err)
			}
			brands = append([]string{ftyp.MajorBrand()}, ftyp.CompatibleBrands()...)

		case bmff.TypeMeta:
			if boxSize-headerLen > maxMetaSize {
				return nil, nil, fmt.Errorf("%w: %s: meta box is %d bytes",
					ports.ErrEngineImageTooLarge, e.name, boxSize)
			}
			payload := make([]byte, boxSize-headerLen)
			if _, err := stream.ReadAt(payload, off+headerLen); err != nil {
				return nil, nil, e.badFormat("meta: %v", err)
			}
			parsed, err := parseMeta(payload)
			if err != nil {
				return nil, nil, e.badFormat("meta: %v", err)
			}
			m = parsed
		}

		if brands != nil && m != nil {
			return brands, m, nil
		}
		off += boxSize
	}
	if m == nil {
		return nil, nil, e.badFormat("no meta box")
	}
	return nil, nil, e.badFormat("no ftyp box")
}

func decodeFtyp(raw []byte) (*mp4.FtypBox, error) {
	box, err := mp4.DecodeBox(0, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	ftyp, ok := box.(*mp4.FtypBox)
	if !ok {
		return nil, fmt.Errorf("unexpected box %T", box)
	}
	return ftyp, nil
}

// checkBrands accepts the engine's own brands outright. Structural brands
// are accepted only when the primary item is coded the way the engine
// expects.
func (e *Engine) checkBrands(brands []string, m *meta) error {
	has := func(set []bmff.FourCC) bool {
		for _, b := range brands {
			for _, s := range set {
				if b == s.String() {
					return true
				}
			}
		}
		return false
	}
	if has(e.brands) {
		return nil
	}
	if has(structuralBrands) && e.codedAs(m, m.items[m.primary]) {
		return nil
	}
	return e.badFormat("brands %v not accepted", brands)
}

// codedAs reports whether it, or the first tile of a grid, uses one of the
// engine's item types.
func (e *Engine) codedAs(m *meta, it *item) bool {
	if it.typ == typeGrid {
		tiles := m.references(refDimg, it.id)
		if len(tiles) == 0 {
			return false
		}
		tile, ok := m.items[tiles[0]]
		if !ok {
			return false
		}
		it = tile
	}
	for _, t := range e.itemTypes {
		if it.typ == t {
			return true
		}
	}
	return false
}

var _ ports.Engine = (*Engine)(nil)
