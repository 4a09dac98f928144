package heifengine

import (
	"bytes"
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/imgbridge/pkg/bmff"
	"github.com/user/imgbridge/pkg/logsink"
)

var (
	typeAv01 = bmff.FourCC{'a', 'v', '0', '1'}
	typeHvc1 = bmff.FourCC{'h', 'v', 'c', '1'}
	typeGrid = bmff.FourCC{'g', 'r', 'i', 'd'}
	typeExif = bmff.FourCC{'E', 'x', 'i', 'f'}
	typeMime = bmff.FourCC{'m', 'i', 'm', 'e'}

	refAuxl = bmff.FourCC{'a', 'u', 'x', 'l'}
	refPrem = bmff.FourCC{'p', 'r', 'e', 'm'}
	refCdsc = bmff.FourCC{'c', 'd', 's', 'c'}
	refDimg = bmff.FourCC{'d', 'i', 'm', 'g'}

	typeAv1C = bmff.FourCC{'a', 'v', '1', 'C'}
	typeHvcC = bmff.FourCC{'h', 'v', 'c', 'C'}
)

const contentTypeXMP = "application/rdf+xml"

// extent is one contiguous piece of an item's data.
type extent struct {
	offset uint64
	length uint64
}

type item struct {
	id          uint32
	typ         bmff.FourCC
	name        string
	contentType string

	// method is the iloc construction method: 0 file offset, 1 idat offset.
	method  uint8
	extents []extent
	located bool

	// props holds 1-based indices into meta.props.
	props []int
}

type reference struct {
	typ  bmff.FourCC
	from uint32
	to   []uint32
}

// meta is the parsed content of the file-level meta box.
type meta struct {
	handler string
	primary uint32
	items   map[uint32]*item
	order   []uint32
	refs    []reference
	props   []property
	idat    []byte
}

func (m *meta) item(id uint32) *item {
	if it, ok := m.items[id]; ok {
		return it
	}
	it := &item{id: id}
	m.items[id] = it
	m.order = append(m.order, id)
	return it
}

// property returns the first property of type t associated with it.
func (m *meta) property(it *item, t bmff.FourCC) (property, bool) {
	for _, idx := range it.props {
		if idx < 1 || idx > len(m.props) {
			continue
		}
		if p := m.props[idx-1]; p.typ == t {
			return p, true
		}
	}
	return property{}, false
}

// referencing returns the items with a reference of type t pointing at id.
func (m *meta) referencing(t bmff.FourCC, id uint32) []uint32 {
	var out []uint32
	for _, r := range m.refs {
		if r.typ != t {
			continue
		}
		for _, to := range r.to {
			if to == id {
				out = append(out, r.from)
				break
			}
		}
	}
	return out
}

// references returns the targets of id's references of type t.
func (m *meta) references(t bmff.FourCC, id uint32) []uint32 {
	var out []uint32
	for _, r := range m.refs {
		if r.typ == t && r.from == id {
			out = append(out, r.to...)
		}
	}
	return out
}

// parseMeta parses the payload of a meta box, version and flags included.
func parseMeta(payload []byte) (*meta, error) {
	c := bmff.NewCursor(payload)
	c.FullBoxHeader("meta")
	if c.Err() != nil {
		return nil, c.Err()
	}
	children, err := bmff.Children(c.Rest())
	if err != nil {
		return nil, fmt.Errorf("meta: %w", err)
	}

	m := &meta{items: make(map[uint32]*item)}
	for _, b := range children {
		switch b.Type {
		case bmff.TypeHdlr:
			err = m.parseHdlr(b.Payload)
		case bmff.TypePitm:
			err = m.parsePitm(b.Payload)
		case bmff.TypeIinf:
			err = m.parseIinf(b.Payload)
		case bmff.TypeIloc:
			err = m.parseIloc(b.Payload)
		case bmff.TypeIdat:
			m.idat = b.Payload
		case bmff.TypeIref:
			err = m.parseIref(b.Payload)
		case bmff.TypeIprp:
			err = m.parseIprp(b.Payload)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Type, err)
		}
	}

	if m.handler != "pict" {
		return nil, fmt.Errorf("handler %q is not pict", m.handler)
	}
	if m.primary == 0 {
		return nil, fmt.Errorf("no primary item")
	}
	if _, ok := m.items[m.primary]; !ok {
		return nil, fmt.Errorf("primary item %d not described", m.primary)
	}
	return m, nil
}

// parseHdlr decodes the handler box with mp4ff, which already knows its
// layout including names lacking a terminator.
func (m *meta) parseHdlr(payload []byte) error {
	var raw bytes.Buffer
	size := uint32(bmff.HeaderSize + len(payload))
	raw.Write([]byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)})
	raw.Write(bmff.TypeHdlr[:])
	raw.Write(payload)

	box, err := mp4.DecodeBox(0, &raw)
	if err != nil {
		return err
	}
	hdlr, ok := box.(*mp4.HdlrBox)
	if !ok {
		return fmt.Errorf("unexpected box %T", box)
	}
	m.handler = hdlr.HandlerType
	return nil
}

func (m *meta) parsePitm(payload []byte) error {
	c := bmff.NewCursor(payload)
	v, _ := c.FullBoxHeader("pitm")
	if v == 0 {
		m.primary = uint32(c.U16("pitm item"))
	} else {
		m.primary = c.U32("pitm item")
	}
	return c.Err()
}

func (m *meta) parseIinf(payload []byte) error {
	c := bmff.NewCursor(payload)
	v, _ := c.FullBoxHeader("iinf")
	if v == 0 {
		c.U16("iinf count")
	} else {
		c.U32("iinf count")
	}
	if c.Err() != nil {
		return c.Err()
	}
	entries, err := bmff.Children(c.Rest())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type != bmff.TypeInfe {
			continue
		}
		if err := m.parseInfe(e.Payload); err != nil {
			return err
		}
	}
	return nil
}

func (m *meta) parseInfe(payload []byte) error {
	c := bmff.NewCursor(payload)
	v, _ := c.FullBoxHeader("infe")
	if v < 2 {
		logsink.Logf(logsink.Debug, "heif: skipping infe version %d", v)
		return c.Err()
	}
	var id uint32
	if v == 2 {
		id = uint32(c.U16("infe id"))
	} else {
		id = c.U32("infe id")
	}
	c.U16("infe protection")
	typ := c.FourCC("infe type")
	name := c.CString("infe name")
	if c.Err() != nil {
		return c.Err()
	}

	it := m.item(id)
	it.typ = typ
	it.name = name
	if typ == typeMime {
		it.contentType = c.CString("infe content type")
	}
	return nil
}

func (m *meta) parseIloc(payload []byte) error {
	c := bmff.NewCursor(payload)
	v, _ := c.FullBoxHeader("iloc")
	if v > 2 {
		return fmt.Errorf("unsupported version %d", v)
	}
	b := c.U8("iloc sizes")
	offsetSize, lengthSize := int(b>>4), int(b&0x0F)
	b = c.U8("iloc sizes")
	baseOffsetSize, indexSize := int(b>>4), int(b&0x0F)

	var count uint32
	if v < 2 {
		count = uint32(c.U16("iloc count"))
	} else {
		count = c.U32("iloc count")
	}

	for i := uint32(0); i < count && c.Err() == nil; i++ {
		var id uint32
		if v < 2 {
			id = uint32(c.U16("iloc item"))
		} else {
			id = c.U32("iloc item")
		}
		var method uint8
		if v >= 1 {
			method = uint8(c.U16("iloc method") & 0x0F)
		}
		c.U16("iloc data reference")
		base := c.UintN(baseOffsetSize, "iloc base offset")
		extents := int(c.U16("iloc extent count"))

		it := m.item(id)
		it.method = method
		it.located = true
		it.extents = it.extents[:0]
		for j := 0; j < extents && c.Err() == nil; j++ {
			if v >= 1 && indexSize > 0 {
				c.UintN(indexSize, "iloc extent index")
			}
			off := c.UintN(offsetSize, "iloc extent offset")
			length := c.UintN(lengthSize, "iloc extent length")
			it.extents = append(it.extents, extent{offset: base + off, length: length})
		}
	}
	return c.Err()
}

func (m *meta) parseIref(payload []byte) error {
	c := bmff.NewCursor(payload)
	v, _ := c.FullBoxHeader("iref")
	if c.Err() != nil {
		return c.Err()
	}
	boxes, err := bmff.Children(c.Rest())
	if err != nil {
		return err
	}
	for _, b := range boxes {
		rc := bmff.NewCursor(b.Payload)
		read := func(what string) uint32 {
			if v == 0 {
				return uint32(rc.U16(what))
			}
			return rc.U32(what)
		}
		ref := reference{typ: b.Type, from: read("iref from")}
		n := int(rc.U16("iref count"))
		for i := 0; i < n && rc.Err() == nil; i++ {
			ref.to = append(ref.to, read("iref to"))
		}
		if rc.Err() != nil {
			return rc.Err()
		}
		m.refs = append(m.refs, ref)
	}
	return nil
}

func (m *meta) parseIprp(payload []byte) error {
	boxes, err := bmff.Children(payload)
	if err != nil {
		return err
	}
	for _, b := range boxes {
		switch b.Type {
		case bmff.TypeIpco:
			props, err := bmff.Children(b.Payload)
			if err != nil {
				return err
			}
			for _, p := range props {
				prop, err := parseProperty(p)
				if err != nil {
					return fmt.Errorf("%s: %w", p.Type, err)
				}
				m.props = append(m.props, prop)
			}
		case bmff.TypeIpma:
			if err := m.parseIpma(b.Payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *meta) parseIpma(payload []byte) error {
	c := bmff.NewCursor(payload)
	v, flags := c.FullBoxHeader("ipma")
	count := c.U32("ipma count")
	for i := uint32(0); i < count && c.Err() == nil; i++ {
		var id uint32
		if v < 1 {
			id = uint32(c.U16("ipma item"))
		} else {
			id = c.U32("ipma item")
		}
		it := m.item(id)
		n := int(c.U8("ipma association count"))
		for j := 0; j < n && c.Err() == nil; j++ {
			var idx int
			if flags&1 != 0 {
				idx = int(c.U16("ipma property") & 0x7FFF)
			} else {
				idx = int(c.U8("ipma property") & 0x7F)
			}
			if idx != 0 {
				it.props = append(it.props, idx)
			}
		}
	}
	return c.Err()
}
