package exrengine

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/klauspost/compress/zlib"
)

type fixtureChannel struct {
	name string
	typ  int32
}

type fixture struct {
	channels    []fixtureChannel
	x0, y0      int32
	width       int
	height      int
	compression Compression
	chroma      *[8]float32
	version     uint32
	// sample returns the little-endian bytes of one sample.
	sample func(ch fixtureChannel, x, y int) []byte
	// patchOffsets, when set, may rewrite the offset table before it is written.
	patchOffsets func(offsets []uint64)
}

func halfBytes(bits uint16) []byte {
	return []byte{byte(bits), byte(bits >> 8)}
}

func floatBytes(f float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
	return b
}

func cstr(b *bytes.Buffer, s string) {
	b.WriteString(s)
	b.WriteByte(0)
}

func attr(b *bytes.Buffer, name, typ string, payload []byte) {
	cstr(b, name)
	cstr(b, typ)
	binary.Write(b, binary.LittleEndian, uint32(len(payload)))
	b.Write(payload)
}

// build assembles a single-part scanline OpenEXR file.
func (f fixture) build(t *testing.T) []byte {
	t.Helper()

	var hdr bytes.Buffer
	binary.Write(&hdr, binary.LittleEndian, uint32(magic))
	version := f.version
	if version == 0 {
		version = 2
	}
	binary.Write(&hdr, binary.LittleEndian, version)

	var ch bytes.Buffer
	for _, c := range f.channels {
		cstr(&ch, c.name)
		binary.Write(&ch, binary.LittleEndian, c.typ)
		ch.Write([]byte{0, 0, 0, 0})
		binary.Write(&ch, binary.LittleEndian, int32(1))
		binary.Write(&ch, binary.LittleEndian, int32(1))
	}
	ch.WriteByte(0)
	attr(&hdr, "channels", "chlist", ch.Bytes())
	attr(&hdr, "compression", "compression", []byte{byte(f.compression)})

	var dw bytes.Buffer
	binary.Write(&dw, binary.LittleEndian, []int32{f.x0, f.y0, f.x0 + int32(f.width) - 1, f.y0 + int32(f.height) - 1})
	attr(&hdr, "dataWindow", "box2i", dw.Bytes())
	attr(&hdr, "displayWindow", "box2i", dw.Bytes())
	attr(&hdr, "lineOrder", "lineOrder", []byte{0})

	if f.chroma != nil {
		var cb bytes.Buffer
		binary.Write(&cb, binary.LittleEndian, f.chroma[:])
		attr(&hdr, "chromaticities", "chromaticities", cb.Bytes())
	}
	hdr.WriteByte(0)

	lines := f.compression.linesPerChunk()
	if lines == 0 {
		lines = 1
	}
	var chunks [][]byte
	for y := 0; y < f.height; y += lines {
		n := lines
		if y+n > f.height {
			n = f.height - y
		}
		var raw bytes.Buffer
		for row := y; row < y+n; row++ {
			for _, c := range f.channels {
				for x := 0; x < f.width; x++ {
					raw.Write(f.sample(c, x, row))
				}
			}
		}
		data := encode(t, f.compression, raw.Bytes())

		var chunk bytes.Buffer
		binary.Write(&chunk, binary.LittleEndian, f.y0+int32(y))
		binary.Write(&chunk, binary.LittleEndian, int32(len(data)))
		chunk.Write(data)
		chunks = append(chunks, chunk.Bytes())
	}

	off := uint64(hdr.Len() + 8*len(chunks))
	offsets := make([]uint64, len(chunks))
	for i, c := range chunks {
		offsets[i] = off
		off += uint64(len(c))
	}
	if f.patchOffsets != nil {
		f.patchOffsets(offsets)
	}
	binary.Write(&hdr, binary.LittleEndian, offsets)
	for _, c := range chunks {
		hdr.Write(c)
	}
	return hdr.Bytes()
}

func encode(t *testing.T, c Compression, raw []byte) []byte {
	t.Helper()
	switch c {
	case CompressionZIPS, CompressionZIP:
		var out bytes.Buffer
		zw := zlib.NewWriter(&out)
		if _, err := zw.Write(predict(split(raw))); err != nil {
			t.Fatalf("zlib: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("zlib: %v", err)
		}
		if out.Len() >= len(raw) {
			return raw
		}
		return out.Bytes()
	case CompressionRLE:
		return literalRLE(predict(split(raw)))
	default:
		return raw
	}
}

func split(raw []byte) []byte {
	out := make([]byte, len(raw))
	half := (len(raw) + 1) / 2
	for i, b := range raw {
		if i%2 == 0 {
			out[i/2] = b
		} else {
			out[half+i/2] = b
		}
	}
	return out
}

func predict(t []byte) []byte {
	out := make([]byte, len(t))
	if len(t) == 0 {
		return out
	}
	out[0] = t[0]
	for i := 1; i < len(t); i++ {
		out[i] = byte(int(t[i]) - int(t[i-1]) + 128)
	}
	return out
}

func literalRLE(data []byte) []byte {
	var out []byte
	for len(data) > 0 {
		n := len(data)
		if n > 127 {
			n = 127
		}
		out = append(out, byte(-int8(n)))
		out = append(out, data[:n]...)
		data = data[n:]
	}
	return out
}
