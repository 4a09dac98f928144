// Package exrengine decodes single-part scanline OpenEXR images into half
// float buffers.
package exrengine

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/x448/float16"

	"github.com/user/imgbridge/pkg/ioadapter"
	"github.com/user/imgbridge/pkg/logsink"
	"github.com/user/imgbridge/pkg/ports"
)

// transferLinear is the CICP transfer characteristic for linear light.
const transferLinear = 8

// maxDimension bounds either side of the data window.
const maxDimension = 1 << 20

// halfOne is 1.0 as an IEEE half float.
const halfOne = 0x3C00

// Engine opens OpenEXR decode contexts.
type Engine struct{}

// New creates an Engine.
func New() *Engine {
	return &Engine{}
}

// Open parses the header and offset table through the callbacks.
func (e *Engine) Open(read ports.ReadFunc, seek ports.SeekFunc) (ports.EngineHandle, error) {
	if read == nil || seek == nil {
		return nil, ports.ErrEngineInvalidParameter
	}
	stream := ioadapter.NewStream(read, seek)
	size, err := stream.Size()
	if err != nil {
		return nil, badFormat("size: %v", err)
	}

	h, err := readHeader(bufio.NewReader(stream))
	if err != nil {
		return nil, err
	}
	logsink.Logf(logsink.Debug, "exr: %dx%d, %d channels, %s compression",
		h.width(), h.height(), len(h.channels), h.compression)
	for _, c := range h.channels {
		if c.role == roleOther {
			logsink.Logf(logsink.Debug, "exr: ignoring channel %q", c.name)
		}
	}
	return &handle{stream: stream, size: size, header: h}, nil
}

type handle struct {
	stream *ioadapter.Stream
	size   int64
	header *header
	closed bool
}

func (h *handle) ImageInfo() (ports.NativeImageInfo, error) {
	if h.closed {
		return ports.NativeImageInfo{}, ports.ErrEngineInvalidParameter
	}
	w, ht := h.header.width(), h.header.height()
	if w > maxDimension || ht > maxDimension {
		return ports.NativeImageInfo{}, fmt.Errorf("%w: exr: %dx%d", ports.ErrEngineImageTooLarge, w, ht)
	}

	info := ports.NewNativeImageInfo()
	info.Width = uint32(w)
	info.Height = uint32(ht)
	info.Layout = h.header.layout()
	info.Alpha = ports.AlphaUnknown
	info.TransferCharacteristics = transferLinear
	if h.header.hasChroma {
		info.Chromaticities = h.header.chromaticities
	}
	return info, nil
}

func (h *handle) ImageData(dst []byte) error {
	if h.closed {
		return ports.ErrEngineInvalidParameter
	}
	hd := h.header
	width, height := hd.width(), hd.height()
	layout := hd.layout()
	bpp := 8
	if layout == ports.LayoutRF16 {
		bpp = 2
	}
	if len(dst) != width*height*bpp {
		return fmt.Errorf("%w: exr: destination is %d bytes", ports.ErrEngineInvalidParameter, len(dst))
	}

	if layout == ports.LayoutRGBAF16 {
		clearRGBA(dst)
	}

	lines := hd.compression.linesPerChunk()
	lineBytes := hd.bytesPerLine()
	covered := make([]bool, (height+lines-1)/lines)
	var prefix [8]byte
	for i, off := range hd.offsets {
		if off == 0 || off >= uint64(h.size) {
			return badFormat("chunk %d has invalid offset %d", i, off)
		}
		if _, err := h.stream.ReadAt(prefix[:], int64(off)); err != nil {
			return badFormat("chunk %d: %v", i, err)
		}
		y := int(int32(binary.LittleEndian.Uint32(prefix[0:4]))) - int(hd.dataWindow[1])
		n := int32(binary.LittleEndian.Uint32(prefix[4:8]))
		if y < 0 || y >= height || y%lines != 0 {
			return badFormat("chunk %d starts at line %d", i, y)
		}
		if covered[y/lines] {
			return badFormat("chunk %d repeats line %d", i, y)
		}
		covered[y/lines] = true
		if n < 0 || int64(n) > h.size-int64(off)-8 {
			return badFormat("chunk %d has size %d", i, n)
		}

		count := lines
		if y+count > height {
			count = height - y
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(h.stream, raw); err != nil {
			return badFormat("chunk %d data: %v", i, err)
		}
		data, err := decompress(hd.compression, raw, lineBytes*count)
		if err != nil {
			return badFormat("chunk %d: %v", i, err)
		}
		h.writeLines(dst, data, y, count, layout)
	}
	for b, ok := range covered {
		if !ok {
			return badFormat("no chunk for line %d", b*lines)
		}
	}
	return nil
}

// writeLines scatters count scanlines of channel-planar data into dst.
func (h *handle) writeLines(dst, data []byte, y, count int, layout ports.NativePixelLayout) {
	width := h.header.width()
	off := 0
	for row := 0; row < count; row++ {
		base := (y + row) * width
		for _, c := range h.header.channels {
			sb := c.sampleBytes()
			line := data[off : off+sb*width]
			off += sb * width

			if layout == ports.LayoutRF16 {
				if c.role != roleR {
					continue
				}
				for x := 0; x < width; x++ {
					binary.LittleEndian.PutUint16(dst[(base+x)*2:], sample(c.pixelType, line, x))
				}
				continue
			}

			var targets []int
			switch c.role {
			case roleR:
				targets = []int{0}
			case roleG:
				targets = []int{2}
			case roleB:
				targets = []int{4}
			case roleA:
				targets = []int{6}
			case roleY:
				targets = []int{0, 2, 4}
			default:
				continue
			}
			for x := 0; x < width; x++ {
				v := sample(c.pixelType, line, x)
				p := (base + x) * 8
				for _, t := range targets {
					binary.LittleEndian.PutUint16(dst[p+t:], v)
				}
			}
		}
	}
}

// sample returns sample x of line as half-float bits.
func sample(pixelType int32, line []byte, x int) uint16 {
	switch pixelType {
	case pixelHalf:
		return binary.LittleEndian.Uint16(line[x*2:])
	case pixelFloat:
		f := math.Float32frombits(binary.LittleEndian.Uint32(line[x*4:]))
		return float16.Fromfloat32(f).Bits()
	default:
		return float16.Fromfloat32(float32(binary.LittleEndian.Uint32(line[x*4:]))).Bits()
	}
}

// clearRGBA sets colour to zero and alpha to one.
func clearRGBA(dst []byte) {
	for p := 0; p+8 <= len(dst); p += 8 {
		for i := 0; i < 6; i++ {
			dst[p+i] = 0
		}
		binary.LittleEndian.PutUint16(dst[p+6:], halfOne)
	}
}

func (h *handle) Close() error {
	h.closed = true
	h.stream = nil
	return nil
}

var (
	_ ports.Engine       = (*Engine)(nil)
	_ ports.EngineHandle = (*handle)(nil)
)
