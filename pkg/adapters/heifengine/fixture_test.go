package heifengine

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
)

// fixture describes a single-image HEIF file. Item 1 is the primary image,
// item 2 its alpha plane, item 3 Exif and item 4 XMP.
type fixture struct {
	major    string
	compat   []string
	handler  string
	itemType string

	width, height uint32
	depth         int
	nclx          *[2]uint16
	icc           []byte
	angle         uint8

	alpha         bool
	premultiplied bool

	// exif is the whole item payload, offset prefix included.
	exif       []byte
	xmp        []byte
	xmpInIdat  bool
	mediaBytes []byte
}

func be16(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
func be32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

func box(typ string, parts ...[]byte) []byte {
	payload := bytes.Join(parts, nil)
	out := be32(uint32(8 + len(payload)))
	out = append(out, typ...)
	return append(out, payload...)
}

func fullBox(typ string, version uint8, flags uint32, parts ...[]byte) []byte {
	return box(typ, append([][]byte{be32(uint32(version)<<24 | flags)}, parts...)...)
}

func cstring(s string) []byte { return append([]byte(s), 0) }

func (f fixture) build(t *testing.T) []byte {
	t.Helper()

	var ftyp bytes.Buffer
	major := f.major
	if major == "" {
		major = "avif"
	}
	if err := mp4.NewFtyp(major, 0, f.compat).Encode(&ftyp); err != nil {
		t.Fatalf("ftyp: %v", err)
	}

	// The meta box has the same size whatever mdat offset it names.
	m := f.meta(t, 0)
	mdatStart := uint32(ftyp.Len() + len(m) + 8)
	m = f.meta(t, mdatStart)

	var out bytes.Buffer
	out.Write(ftyp.Bytes())
	out.Write(m)
	out.Write(box("mdat", f.mdat()))
	return out.Bytes()
}

func (f fixture) mdat() []byte {
	var b bytes.Buffer
	b.Write(f.mediaBytes)
	b.Write(f.exif)
	if !f.xmpInIdat {
		b.Write(f.xmp)
	}
	return b.Bytes()
}

func (f fixture) meta(t *testing.T, mdatStart uint32) []byte {
	t.Helper()

	handler := f.handler
	if handler == "" {
		handler = "pict"
	}
	var hdlr bytes.Buffer
	if err := (&mp4.HdlrBox{HandlerType: handler, Name: "imgbridge"}).Encode(&hdlr); err != nil {
		t.Fatalf("hdlr: %v", err)
	}

	itemType := f.itemType
	if itemType == "" {
		itemType = "av01"
	}

	// iinf
	infe := func(id uint16, typ string, extra ...[]byte) []byte {
		parts := [][]byte{be16(id), be16(0), []byte(typ), cstring("")}
		return fullBox("infe", 2, 0, append(parts, extra...)...)
	}
	entries := [][]byte{infe(1, itemType)}
	if f.alpha {
		entries = append(entries, infe(2, itemType))
	}
	if f.exif != nil {
		entries = append(entries, infe(3, "Exif"))
	}
	if f.xmp != nil {
		entries = append(entries, infe(4, "mime", cstring(contentTypeXMP)))
	}
	iinf := fullBox("iinf", 0, 0, append([][]byte{be16(uint16(len(entries)))}, entries...)...)

	// iloc, version 1, 4-byte offsets and lengths
	type loc struct {
		id             uint16
		method         uint16
		offset, length uint32
	}
	media := uint32(len(f.mediaBytes))
	locs := []loc{{1, 0, mdatStart, media}}
	off := mdatStart + media
	if f.exif != nil {
		locs = append(locs, loc{3, 0, off, uint32(len(f.exif))})
		off += uint32(len(f.exif))
	}
	if f.xmp != nil {
		if f.xmpInIdat {
			locs = append(locs, loc{4, 1, 0, uint32(len(f.xmp))})
		} else {
			locs = append(locs, loc{4, 0, off, uint32(len(f.xmp))})
		}
	}
	var iloc bytes.Buffer
	iloc.Write([]byte{0x44, 0x00})
	iloc.Write(be16(uint16(len(locs))))
	for _, l := range locs {
		iloc.Write(be16(l.id))
		iloc.Write(be16(l.method))
		iloc.Write(be16(0))
		iloc.Write(be16(1))
		iloc.Write(be32(l.offset))
		iloc.Write(be32(l.length))
	}

	// iprp
	var props [][]byte
	var primary []byte
	add := func(p []byte) byte {
		props = append(props, p)
		return byte(len(props))
	}
	ispe := add(fullBox("ispe", 0, 0, be32(f.width), be32(f.height)))
	primary = append(primary, ispe)
	if f.depth > 0 {
		primary = append(primary, add(fullBox("pixi", 0, 0, []byte{3, byte(f.depth), byte(f.depth), byte(f.depth)})))
	}
	if f.nclx != nil {
		primary = append(primary, add(box("colr", []byte("nclx"), be16(f.nclx[0]), be16(f.nclx[1]), be16(6), []byte{0x80})))
	}
	if f.icc != nil {
		primary = append(primary, add(box("colr", []byte("prof"), f.icc)))
	}
	if f.angle != 0 {
		primary = append(primary, add(box("irot", []byte{f.angle})))
	}
	var alpha []byte
	if f.alpha {
		alpha = []byte{ispe, add(fullBox("auxC", 0, 0, cstring("urn:mpeg:mpegB:cicp:systems:auxiliary:alpha")))}
	}

	var ipma bytes.Buffer
	assoc := [][]byte{append(be16(1), append([]byte{byte(len(primary))}, primary...)...)}
	if f.alpha {
		assoc = append(assoc, append(be16(2), append([]byte{byte(len(alpha))}, alpha...)...))
	}
	ipma.Write(be32(uint32(len(assoc))))
	for _, a := range assoc {
		ipma.Write(a)
	}
	iprp := box("iprp", box("ipco", props...), fullBox("ipma", 0, 0, ipma.Bytes()))

	// iref
	var refs [][]byte
	if f.alpha {
		refs = append(refs, box("auxl", be16(2), be16(1), be16(1)))
		if f.premultiplied {
			refs = append(refs, box("prem", be16(1), be16(1), be16(2)))
		}
	}
	if f.exif != nil {
		refs = append(refs, box("cdsc", be16(3), be16(1), be16(1)))
	}
	if f.xmp != nil {
		refs = append(refs, box("cdsc", be16(4), be16(1), be16(1)))
	}

	children := [][]byte{
		hdlr.Bytes(),
		fullBox("pitm", 0, 0, be16(1)),
		iinf,
		fullBox("iloc", 1, 0, iloc.Bytes()),
	}
	if f.xmpInIdat {
		children = append(children, box("idat", f.xmp))
	}
	if len(refs) > 0 {
		children = append(children, fullBox("iref", 0, 0, refs...))
	}
	children = append(children, iprp)
	return fullBox("meta", 0, 0, children...)
}
