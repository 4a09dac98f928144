package formats

import (
	"encoding/binary"
	"fmt"

	"github.com/user/imgbridge/pkg/bmff"
)

// HeaderSize is the number of leading bytes a host should capture from a
// stream before calling Probe.
const HeaderSize = 64

// exrMagic is the little-endian OpenEXR magic number.
const exrMagic = 20000630

// exrMinHeader is the minimum header length accepted for OpenEXR sniffing.
// Only the first eight bytes are inspected.
const exrMinHeader = 16

var (
	avifBrands = []bmff.FourCC{bmff.Fourcc("avif")}

	// heic, heix: HEVC still images; hevc, hevx: HEVC image sequences;
	// miHE: HEVC-based MIAF.
	heicBrands = []bmff.FourCC{
		bmff.Fourcc("heic"),
		bmff.Fourcc("heix"),
		bmff.Fourcc("hevc"),
		bmff.Fourcc("hevx"),
		bmff.Fourcc("miHE"),
	}
)

// AvifBrands returns the ftyp brands accepted as AVIF.
func AvifBrands() []bmff.FourCC { return append([]bmff.FourCC(nil), avifBrands...) }

// HeicBrands returns the ftyp brands accepted as HEIC.
func HeicBrands() []bmff.FourCC { return append([]bmff.FourCC(nil), heicBrands...) }

// IsAvif reports whether header starts with an ftyp box naming an AVIF brand.
func IsAvif(header []byte) bool {
	return bmff.MatchBrands(header, avifBrands)
}

// IsHeic reports whether header starts with an ftyp box naming a HEIC brand.
func IsHeic(header []byte) bool {
	return bmff.MatchBrands(header, heicBrands)
}

// IsOpenExr reports whether header starts with the OpenEXR magic number
// followed by a version field whose low byte is 2.
func IsOpenExr(header []byte) bool {
	if len(header) < exrMinHeader {
		return false
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	versionAndFlags := binary.LittleEndian.Uint32(header[4:8])
	return magic == exrMagic && versionAndFlags&0xff == 2
}

// DefaultProbeOrder is AVIF, then OpenEXR, then HEIC. AVIF precedes HEIC
// so that a file advertising both brand families is treated as AVIF.
func DefaultProbeOrder() []Tag {
	return []Tag{Avif, OpenExr, Heic}
}

// Detector classifies header prefixes. It holds only its immutable probe
// order and is safe for concurrent use.
type Detector struct {
	order []Tag
}

// NewDetector returns a detector probing formats in the given order. An
// empty order selects DefaultProbeOrder. Unknown or repeated tags are
// rejected.
func NewDetector(order ...Tag) (*Detector, error) {
	if len(order) == 0 {
		order = DefaultProbeOrder()
	}
	seen := make(map[Tag]bool, len(order))
	for _, t := range order {
		if matcherFor(t) == nil {
			return nil, fmt.Errorf("formats: cannot probe for %s", t)
		}
		if seen[t] {
			return nil, fmt.Errorf("formats: %s listed twice in probe order", t)
		}
		seen[t] = true
	}
	return &Detector{order: append([]Tag(nil), order...)}, nil
}

// Order returns a copy of the probe order.
func (d *Detector) Order() []Tag {
	return append([]Tag(nil), d.order...)
}

// HeaderSize returns the prefix length the detector wants to inspect.
func (d *Detector) HeaderSize() int { return HeaderSize }

// Detect returns the first format in probe order whose signature matches
// header. It never fails: short or garbage input reports false.
func (d *Detector) Detect(header []byte) (Tag, bool) {
	for _, t := range d.order {
		if matcherFor(t)(header) {
			return t, true
		}
	}
	return Unknown, false
}

// Probe is Detect over at most maxHeaderLen bytes of header. Hosts pass
// exactly the captured prefix, which may be shorter at end of file.
func (d *Detector) Probe(header []byte, maxHeaderLen int) (Tag, bool) {
	if maxHeaderLen < 0 {
		maxHeaderLen = 0
	}
	if len(header) > maxHeaderLen {
		header = header[:maxHeaderLen]
	}
	return d.Detect(header)
}

var defaultDetector = &Detector{order: DefaultProbeOrder()}

// Detect classifies header with the default probe order.
func Detect(header []byte) (Tag, bool) {
	return defaultDetector.Detect(header)
}

func matcherFor(t Tag) func([]byte) bool {
	switch t {
	case Avif:
		return IsAvif
	case Heic:
		return IsHeic
	case OpenExr:
		return IsOpenExr
	}
	return nil
}
