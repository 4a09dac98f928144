package bmff

import "encoding/binary"

// MinFtypSize is the smallest ftyp box that carries a major brand and a
// minor version.
const MinFtypSize = 16

// SniffFileType inspects a header prefix that should start with an ftyp box.
//
// The declared box size may exceed len(header); only the resident part is
// inspected. A declared size below MinFtypSize, a header shorter than
// MinFtypSize, or a first box that is not ftyp all report false.
func SniffFileType(header []byte) (FileType, bool) {
	if len(header) < MinFtypSize {
		return FileType{}, false
	}
	d, _ := ReadBox(header, 0)
	if d.Size < MinFtypSize || d.Type != TypeFtyp {
		return FileType{}, false
	}
	end := len(header)
	if int64(d.Size) < int64(end) {
		end = int(d.Size)
	}

	var ft FileType
	copy(ft.MajorBrand[:], header[8:12])
	ft.MinorVersion = binary.BigEndian.Uint32(header[12:16])
	for off := MinFtypSize; off+4 <= end; off += 4 {
		var b FourCC
		copy(b[:], header[off:off+4])
		ft.CompatibleBrands = append(ft.CompatibleBrands, b)
	}
	return ft, true
}

// MatchBrands reports whether the ftyp box at the start of header names any
// of brands, either as the major brand or in the compatible list.
//
// It is the allocation-free form of SniffFileType(header).Has for each brand.
func MatchBrands(header []byte, brands []FourCC) bool {
	if len(header) < MinFtypSize {
		return false
	}
	d, _ := ReadBox(header, 0)
	if d.Size < MinFtypSize || d.Type != TypeFtyp {
		return false
	}
	end := len(header)
	if int64(d.Size) < int64(end) {
		end = int(d.Size)
	}
	if containsBrand(brands, header[8:12]) {
		return true
	}
	for off := MinFtypSize; off+4 <= end; off += 4 {
		if containsBrand(brands, header[off:off+4]) {
			return true
		}
	}
	return false
}

func containsBrand(brands []FourCC, b []byte) bool {
	for _, br := range brands {
		if br[0] == b[0] && br[1] == b[1] && br[2] == b[2] && br[3] == b[3] {
			return true
		}
	}
	return false
}
