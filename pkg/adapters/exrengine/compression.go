package exrengine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// decompress expands one chunk to exactly expected bytes. A chunk whose
// stored size already equals the uncompressed size is stored raw.
func decompress(c Compression, data []byte, expected int) ([]byte, error) {
	if c == CompressionNone || len(data) == expected {
		if len(data) != expected {
			return nil, fmt.Errorf("chunk is %d bytes, want %d", len(data), expected)
		}
		return data, nil
	}

	var out []byte
	var err error
	switch c {
	case CompressionRLE:
		out, err = unRLE(data, expected)
	case CompressionZIPS, CompressionZIP:
		out, err = unZIP(data, expected)
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
	if err != nil {
		return nil, err
	}
	undoPredictor(out)
	return interleave(out), nil
}

func unZIP(data []byte, expected int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]byte, expected)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

var errRLE = errors.New("corrupt rle chunk")

// unRLE expands OpenEXR run-length data: a negative count byte introduces
// -count literal bytes, a non-negative one repeats the next byte count+1
// times.
func unRLE(data []byte, expected int) ([]byte, error) {
	out := make([]byte, 0, expected)
	for i := 0; i < len(data); {
		n := int(int8(data[i]))
		i++
		if n < 0 {
			n = -n
			if i+n > len(data) || len(out)+n > expected {
				return nil, errRLE
			}
			out = append(out, data[i:i+n]...)
			i += n
			continue
		}
		if i >= len(data) || len(out)+n+1 > expected {
			return nil, errRLE
		}
		for k := 0; k <= n; k++ {
			out = append(out, data[i])
		}
		i++
	}
	if len(out) != expected {
		return nil, errRLE
	}
	return out, nil
}

func undoPredictor(data []byte) {
	for i := 1; i < len(data); i++ {
		data[i] = byte(int(data[i]) + int(data[i-1]) - 128)
	}
}

// interleave merges the two halves written by the compressor back into
// byte order.
func interleave(data []byte) []byte {
	out := make([]byte, len(data))
	half := (len(data) + 1) / 2
	for i := range out {
		if i%2 == 0 {
			out[i] = data[i/2]
		} else {
			out[i] = data[half+i/2]
		}
	}
	return out
}
