package exrengine

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/user/imgbridge/pkg/ports"
)

const (
	magic = 20000630

	flagTiled     = 0x200
	flagNonImage  = 0x800
	flagMultipart = 0x1000

	maxAttributeSize = 16 << 20
	maxChunkCount    = 1 << 24
)

// Compression is the header's compression attribute.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionRLE  Compression = 1
	CompressionZIPS Compression = 2
	CompressionZIP  Compression = 3
	CompressionPIZ  Compression = 4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionRLE:
		return "rle"
	case CompressionZIPS:
		return "zips"
	case CompressionZIP:
		return "zip"
	case CompressionPIZ:
		return "piz"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// linesPerChunk returns the scanlines per chunk, or 0 if unsupported.
func (c Compression) linesPerChunk() int {
	switch c {
	case CompressionNone, CompressionRLE, CompressionZIPS:
		return 1
	case CompressionZIP:
		return 16
	default:
		return 0
	}
}

// Channel sample types.
const (
	pixelUint  = 0
	pixelHalf  = 1
	pixelFloat = 2
)

type role int

const (
	roleOther role = iota
	roleR
	roleG
	roleB
	roleA
	roleY
)

type channel struct {
	name      string
	pixelType int32
	xSampling int32
	ySampling int32
	role      role
}

func (c channel) sampleBytes() int {
	if c.pixelType == pixelHalf {
		return 2
	}
	return 4
}

type header struct {
	channels       []channel
	dataWindow     [4]int32
	compression    Compression
	chromaticities [8]float32
	hasChroma      bool
	offsets        []uint64
}

func (h *header) width() int  { return int(h.dataWindow[2]) - int(h.dataWindow[0]) + 1 }
func (h *header) height() int { return int(h.dataWindow[3]) - int(h.dataWindow[1]) + 1 }

// has reports whether any channel plays role r.
func (h *header) has(r role) bool {
	for _, c := range h.channels {
		if c.role == r {
			return true
		}
	}
	return false
}

// redOnly reports whether R is the only colour or alpha channel present.
func (h *header) redOnly() bool {
	return h.has(roleR) && !h.has(roleG) && !h.has(roleB) && !h.has(roleA) && !h.has(roleY)
}

func (h *header) layout() ports.NativePixelLayout {
	if h.redOnly() {
		return ports.LayoutRF16
	}
	return ports.LayoutRGBAF16
}

// bytesPerLine is the uncompressed size of one scanline across all channels.
func (h *header) bytesPerLine() int {
	n := 0
	for _, c := range h.channels {
		n += c.sampleBytes() * h.width()
	}
	return n
}

var errBadHeader = errors.New("malformed header")

func badFormat(format string, args ...interface{}) error {
	return fmt.Errorf("%w: exr: %s", ports.ErrEngineBadFormat, fmt.Sprintf(format, args...))
}

// readHeader parses the magic, version, attributes and the offset table.
func readHeader(r *bufio.Reader) (*header, error) {
	var prefix [8]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, badFormat("read magic: %v", err)
	}
	if binary.LittleEndian.Uint32(prefix[0:4]) != magic {
		return nil, badFormat("bad magic")
	}
	version := binary.LittleEndian.Uint32(prefix[4:8])
	if version&0xFF != 2 {
		return nil, badFormat("unsupported version %d", version&0xFF)
	}
	switch {
	case version&flagTiled != 0:
		return nil, badFormat("tiled images are not supported")
	case version&flagNonImage != 0:
		return nil, badFormat("deep images are not supported")
	case version&flagMultipart != 0:
		return nil, badFormat("multipart files are not supported")
	}

	h := &header{compression: CompressionNone}
	var hasChannels, hasWindow bool
	for {
		name, err := readCString(r)
		if err != nil {
			return nil, badFormat("attribute name: %v", err)
		}
		if name == "" {
			break
		}
		typ, err := readCString(r)
		if err != nil {
			return nil, badFormat("attribute %s type: %v", name, err)
		}
		size, err := readU32(r)
		if err != nil {
			return nil, badFormat("attribute %s size: %v", name, err)
		}
		if size > maxAttributeSize {
			return nil, badFormat("attribute %s too large (%d bytes)", name, size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, badFormat("attribute %s: %v", name, err)
		}

		switch name {
		case "channels":
			if typ != "chlist" {
				return nil, badFormat("channels has type %s", typ)
			}
			if h.channels, err = parseChannels(payload); err != nil {
				return nil, badFormat("channels: %v", err)
			}
			hasChannels = true
		case "dataWindow":
			if typ != "box2i" || len(payload) != 16 {
				return nil, badFormat("dataWindow: %v", errBadHeader)
			}
			for i := range h.dataWindow {
				h.dataWindow[i] = int32(binary.LittleEndian.Uint32(payload[4*i:]))
			}
			hasWindow = true
		case "compression":
			if typ != "compression" || len(payload) != 1 {
				return nil, badFormat("compression: %v", errBadHeader)
			}
			h.compression = Compression(payload[0])
		case "chromaticities":
			if typ != "chromaticities" || len(payload) != 32 {
				return nil, badFormat("chromaticities: %v", errBadHeader)
			}
			for i := range h.chromaticities {
				h.chromaticities[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
			}
			h.hasChroma = true
		case "tiles":
			return nil, badFormat("tiled images are not supported")
		}
	}

	if !hasChannels || len(h.channels) == 0 {
		return nil, badFormat("missing channels")
	}
	if !hasWindow {
		return nil, badFormat("missing dataWindow")
	}
	if h.width() <= 0 || h.height() <= 0 {
		return nil, badFormat("empty data window %v", h.dataWindow)
	}
	for _, c := range h.channels {
		if c.xSampling != 1 || c.ySampling != 1 {
			return nil, badFormat("channel %s is subsampled", c.name)
		}
	}
	lines := h.compression.linesPerChunk()
	if lines == 0 {
		return nil, badFormat("unsupported compression %s", h.compression)
	}

	chunks := (h.height() + lines - 1) / lines
	if chunks > maxChunkCount {
		return nil, fmt.Errorf("%w: exr: %d chunks", ports.ErrEngineImageTooLarge, chunks)
	}
	h.offsets = make([]uint64, chunks)
	var buf [8]byte
	for i := range h.offsets {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, badFormat("offset table: %v", err)
		}
		h.offsets[i] = binary.LittleEndian.Uint64(buf[:])
	}
	return h, nil
}

func parseChannels(data []byte) ([]channel, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	var out []channel
	for {
		name, err := readCString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return out, nil
		}
		var rec [16]byte
		if _, err := io.ReadFull(r, rec[:]); err != nil {
			return nil, err
		}
		c := channel{
			name:      name,
			pixelType: int32(binary.LittleEndian.Uint32(rec[0:4])),
			// rec[4] is pLinear, rec[5:8] reserved
			xSampling: int32(binary.LittleEndian.Uint32(rec[8:12])),
			ySampling: int32(binary.LittleEndian.Uint32(rec[12:16])),
			role:      roleOf(name),
		}
		if c.pixelType != pixelUint && c.pixelType != pixelHalf && c.pixelType != pixelFloat {
			return nil, fmt.Errorf("channel %s has pixel type %d", name, c.pixelType)
		}
		out = append(out, c)
	}
}

// roleOf matches channel names exactly; layered names such as
// "diffuse.R" are ignored.
func roleOf(name string) role {
	switch name {
	case "R":
		return roleR
	case "G":
		return roleG
	case "B":
		return roleB
	case "A":
		return roleA
	case "Y":
		return roleY
	default:
		return roleOther
	}
}

func readCString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		return "", err
	}
	if len(s) > 256 {
		return "", errors.New("name too long")
	}
	return s[:len(s)-1], nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
