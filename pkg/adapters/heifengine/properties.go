package heifengine

import (
	"github.com/user/imgbridge/pkg/bmff"
)

var (
	colourNclx = bmff.FourCC{'n', 'c', 'l', 'x'}
	colourProf = bmff.FourCC{'p', 'r', 'o', 'f'}
	colourRICC = bmff.FourCC{'r', 'I', 'C', 'C'}
)

// depthProperties lists where the luma bit depth is found, in order of
// preference.
var depthProperties = []bmff.FourCC{typeAv1C, typeHvcC, bmff.TypePixi}

// Auxiliary type URNs that mark an alpha plane.
var alphaURNs = map[string]bool{
	"urn:mpeg:mpegB:cicp:systems:auxiliary:alpha": true,
	"urn:mpeg:hevc:2015:auxid:1":                  true,
}

// property is one parsed entry of ipco. Only the fields relevant to its type
// are set.
type property struct {
	typ bmff.FourCC

	// ispe
	width, height uint32

	// pixi, av1C, hvcC
	bitDepth int

	// colr
	colourType bmff.FourCC
	primaries  int
	transfer   int
	icc        []byte

	// auxC
	auxType string

	// irot
	angle uint8
}

func parseProperty(b bmff.Box) (property, error) {
	p := property{typ: b.Type}
	c := bmff.NewCursor(b.Payload)

	switch b.Type {
	case bmff.TypeIspe:
		c.FullBoxHeader("ispe")
		p.width = c.U32("ispe width")
		p.height = c.U32("ispe height")

	case bmff.TypePixi:
		c.FullBoxHeader("pixi")
		if n := int(c.U8("pixi channels")); n > 0 {
			p.bitDepth = int(c.U8("pixi depth"))
		}

	case typeAv1C:
		// high_bitdepth and twelve_bit live in the third byte.
		hdr := c.Bytes(3, "av1C")
		if c.Err() == nil {
			p.bitDepth = 8
			if hdr[2]&0x40 != 0 {
				p.bitDepth = 10
				if hdr[2]&0x20 != 0 {
					p.bitDepth = 12
				}
			}
		}

	case typeHvcC:
		hdr := c.Bytes(18, "hvcC")
		if c.Err() == nil {
			p.bitDepth = int(hdr[17]&0x07) + 8
		}

	case bmff.TypeColr:
		p.colourType = c.FourCC("colr type")
		switch p.colourType {
		case colourNclx:
			p.primaries = int(c.U16("nclx primaries"))
			p.transfer = int(c.U16("nclx transfer"))
		case colourProf, colourRICC:
			p.icc = c.Rest()
		}

	case bmff.TypeAuxC:
		c.FullBoxHeader("auxC")
		p.auxType = c.CString("auxC type")

	case bmff.TypeIrot:
		p.angle = c.U8("irot") & 0x03
	}
	return p, c.Err()
}
