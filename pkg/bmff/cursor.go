package bmff

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when a read runs past the end of the payload.
var ErrTruncated = errors.New("bmff: truncated box")

// Cursor reads big-endian values sequentially from a byte slice. The first
// out-of-range read sets a sticky error; every later read returns zero.
// This keeps box parsers free of per-field error checks.
type Cursor struct {
	b   []byte
	off int
	err error
}

// NewCursor returns a cursor positioned at the start of b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{b: b}
}

// Err returns the first error encountered, if any.
func (c *Cursor) Err() error { return c.err }

// Offset returns the current position.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	if c.err != nil {
		return 0
	}
	return len(c.b) - c.off
}

func (c *Cursor) take(n int, what string) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > len(c.b)-c.off {
		c.err = fmt.Errorf("%w: need %d bytes for %s at offset %d, have %d",
			ErrTruncated, n, what, c.off, len(c.b)-c.off)
		return nil
	}
	p := c.b[c.off : c.off+n]
	c.off += n
	return p
}

// U8 reads one byte.
func (c *Cursor) U8(what string) uint8 {
	p := c.take(1, what)
	if p == nil {
		return 0
	}
	return p[0]
}

// U16 reads a big-endian uint16.
func (c *Cursor) U16(what string) uint16 {
	p := c.take(2, what)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

// U32 reads a big-endian uint32.
func (c *Cursor) U32(what string) uint32 {
	p := c.take(4, what)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint32(p)
}

// U64 reads a big-endian uint64.
func (c *Cursor) U64(what string) uint64 {
	p := c.take(8, what)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint64(p)
}

// UintN reads an unsigned integer of n bytes, where n is 0, 1, 2, 4 or 8.
// A zero-width field reads as 0, as iloc permits.
func (c *Cursor) UintN(n int, what string) uint64 {
	switch n {
	case 0:
		return 0
	case 1:
		return uint64(c.U8(what))
	case 2:
		return uint64(c.U16(what))
	case 4:
		return uint64(c.U32(what))
	case 8:
		return c.U64(what)
	}
	if c.err == nil {
		c.err = fmt.Errorf("bmff: unsupported field width %d for %s", n, what)
	}
	return 0
}

// FourCC reads a four character code.
func (c *Cursor) FourCC(what string) FourCC {
	var f FourCC
	copy(f[:], c.take(4, what))
	return f
}

// Bytes returns the next n bytes without copying.
func (c *Cursor) Bytes(n int, what string) []byte {
	return c.take(n, what)
}

// Rest returns all unread bytes without copying.
func (c *Cursor) Rest() []byte {
	if c.err != nil {
		return nil
	}
	p := c.b[c.off:]
	c.off = len(c.b)
	return p
}

// CString reads a NUL-terminated string. A missing terminator at the end of
// the payload is tolerated, as several writers omit it.
func (c *Cursor) CString(what string) string {
	if c.err != nil {
		return ""
	}
	rest := c.b[c.off:]
	for i, b := range rest {
		if b == 0 {
			c.off += i + 1
			return string(rest[:i])
		}
	}
	c.off = len(c.b)
	return string(rest)
}

// Skip advances by n bytes.
func (c *Cursor) Skip(n int, what string) {
	c.take(n, what)
}

// FullBoxHeader reads the version and 24-bit flags of a FullBox.
func (c *Cursor) FullBoxHeader(what string) (version uint8, flags uint32) {
	v := c.U32(what)
	return uint8(v >> 24), v & 0x00FFFFFF
}

// Box is one child box found while walking a payload.
type Box struct {
	Type    FourCC
	Payload []byte
}

// Children splits payload into consecutive child boxes. Extended 64-bit sizes
// are honoured; a size of zero extends to the end of payload. A declared size
// that overruns payload is an error.
func Children(payload []byte) ([]Box, error) {
	var boxes []Box
	off := 0
	for off < len(payload) {
		d, ok := ReadBox(payload, off)
		if !ok {
			return boxes, fmt.Errorf("%w: %d trailing bytes", ErrTruncated, len(payload)-off)
		}
		hdr := HeaderSize
		size := uint64(d.Size)
		switch size {
		case 0:
			size = uint64(len(payload) - off)
		case 1:
			if off+16 > len(payload) {
				return boxes, fmt.Errorf("%w: extended size of %s", ErrTruncated, d.Type)
			}
			size = binary.BigEndian.Uint64(payload[off+8:])
			hdr = 16
		}
		if size < uint64(hdr) || size > uint64(len(payload)-off) {
			return boxes, fmt.Errorf("bmff: box %s declares size %d, %d bytes available",
				d.Type, size, len(payload)-off)
		}
		boxes = append(boxes, Box{Type: d.Type, Payload: payload[off+hdr : off+int(size)]})
		off += int(size)
	}
	return boxes, nil
}
