// Package bmff provides bounds-checked primitives for ISO base media file
// format (ISO/IEC 14496-12) boxes as used by HEIF and AVIF containers.
//
// Nothing in this package performs I/O. All readers operate on byte slices
// that the caller has already obtained, and every accessor tolerates short
// input by reporting failure rather than panicking.
package bmff

import (
	"encoding/binary"
)

// HeaderSize is the size of a compact box header: 32-bit size plus FourCC.
const HeaderSize = 8

// FourCC is a four character box or brand code.
type FourCC [4]byte

// Common box and brand codes.
var (
	TypeFtyp = FourCC{'f', 't', 'y', 'p'}
	TypeMeta = FourCC{'m', 'e', 't', 'a'}
	TypeMdat = FourCC{'m', 'd', 'a', 't'}
	TypeHdlr = FourCC{'h', 'd', 'l', 'r'}
	TypePitm = FourCC{'p', 'i', 't', 'm'}
	TypeIinf = FourCC{'i', 'i', 'n', 'f'}
	TypeInfe = FourCC{'i', 'n', 'f', 'e'}
	TypeIloc = FourCC{'i', 'l', 'o', 'c'}
	TypeIdat = FourCC{'i', 'd', 'a', 't'}
	TypeIref = FourCC{'i', 'r', 'e', 'f'}
	TypeIprp = FourCC{'i', 'p', 'r', 'p'}
	TypeIpco = FourCC{'i', 'p', 'c', 'o'}
	TypeIpma = FourCC{'i', 'p', 'm', 'a'}
	TypeIspe = FourCC{'i', 's', 'p', 'e'}
	TypePixi = FourCC{'p', 'i', 'x', 'i'}
	TypeColr = FourCC{'c', 'o', 'l', 'r'}
	TypeAuxC = FourCC{'a', 'u', 'x', 'C'}
	TypeIrot = FourCC{'i', 'r', 'o', 't'}
)

// Fourcc builds a FourCC from a string. Strings shorter than four bytes are
// padded with spaces; longer strings are truncated.
func Fourcc(s string) FourCC {
	f := FourCC{' ', ' ', ' ', ' '}
	copy(f[:], s)
	return f
}

func (f FourCC) String() string { return string(f[:]) }

// BoxDescriptor is the compact header of one box.
type BoxDescriptor struct {
	// Size is the total box length including the 8-byte header, as declared
	// in the file. Zero means the box extends to the end of the file.
	Size uint32
	Type FourCC
}

// ReadBox reads the box header at off. It reports false when fewer than
// HeaderSize bytes are available at that offset.
func ReadBox(b []byte, off int) (BoxDescriptor, bool) {
	if off < 0 || off > len(b)-HeaderSize {
		return BoxDescriptor{}, false
	}
	var d BoxDescriptor
	d.Size = binary.BigEndian.Uint32(b[off:])
	copy(d.Type[:], b[off+4:off+8])
	return d, true
}

// FileType is the content of an ftyp box that is resident in a byte slice.
type FileType struct {
	MajorBrand       FourCC
	MinorVersion     uint32
	CompatibleBrands []FourCC
}

// Has reports whether brand is the major brand or one of the compatible
// brands.
func (ft FileType) Has(brand FourCC) bool {
	if ft.MajorBrand == brand {
		return true
	}
	for _, b := range ft.CompatibleBrands {
		if b == brand {
			return true
		}
	}
	return false
}
