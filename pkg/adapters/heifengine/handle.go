package heifengine

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/draw"

	"github.com/user/imgbridge/pkg/bmff"
	"github.com/user/imgbridge/pkg/ioadapter"
	"github.com/user/imgbridge/pkg/logsink"
	"github.com/user/imgbridge/pkg/ports"
)

// maxDimension is the largest width or height accepted for decoding.
const maxDimension = 16384

type handle struct {
	engine  *Engine
	stream  *ioadapter.Stream
	size    int64
	meta    *meta
	primary *item

	info   *ports.NativeImageInfo
	angle  uint8
	closed bool
}

func (h *handle) ImageInfo() (ports.NativeImageInfo, error) {
	if h.closed {
		return ports.NativeImageInfo{}, ports.ErrEngineInvalidParameter
	}
	if h.info != nil {
		return *h.info, nil
	}

	e, m := h.engine, h.meta
	ispe, ok := m.property(h.primary, bmff.TypeIspe)
	if !ok {
		return ports.NativeImageInfo{}, e.badFormat("primary item %d has no ispe", h.primary.id)
	}
	if ispe.width == 0 || ispe.height == 0 {
		return ports.NativeImageInfo{}, e.badFormat("primary item is %dx%d", ispe.width, ispe.height)
	}
	if ispe.width > maxDimension || ispe.height > maxDimension {
		return ports.NativeImageInfo{}, fmt.Errorf("%w: %s: %dx%d",
			ports.ErrEngineImageTooLarge, e.name, ispe.width, ispe.height)
	}

	info := ports.NewNativeImageInfo()
	info.Width, info.Height = ispe.width, ispe.height
	if rot, ok := m.property(h.primary, bmff.TypeIrot); ok && rot.angle != 0 {
		h.angle = rot.angle
		if rot.angle%2 == 1 {
			info.Width, info.Height = info.Height, info.Width
		}
	}

	info.Layout = ports.LayoutRGBA8
	if h.bitDepth() > 8 {
		info.Layout = ports.LayoutRGBA16
	}
	info.Alpha = h.alpha()

	for _, idx := range h.primary.props {
		if idx < 1 || idx > len(m.props) {
			continue
		}
		p := m.props[idx-1]
		if p.typ != bmff.TypeColr {
			continue
		}
		switch p.colourType {
		case colourNclx:
			info.ColorPrimaries = p.primaries
			info.TransferCharacteristics = p.transfer
		case colourProf, colourRICC:
			if info.ICC == nil && len(p.icc) > 0 {
				info.ICC = append([]byte(nil), p.icc...)
			}
		}
	}

	h.readMetadata(&info)
	h.info = &info
	return info, nil
}

// bitDepth returns the luma depth of the primary item, looking through to
// the first tile of a grid. Codec configuration wins over pixi.
func (h *handle) bitDepth() int {
	m := h.meta
	candidates := []*item{h.primary}
	if h.primary.typ == typeGrid {
		if tiles := m.references(refDimg, h.primary.id); len(tiles) > 0 {
			if tile, ok := m.items[tiles[0]]; ok {
				candidates = append(candidates, tile)
			}
		}
	}
	for _, it := range candidates {
		for _, typ := range depthProperties {
			if p, ok := m.property(it, typ); ok && p.bitDepth > 0 {
				return p.bitDepth
			}
		}
	}
	return 8
}

func (h *handle) alpha() ports.NativeAlpha {
	m := h.meta
	for _, id := range m.referencing(refAuxl, h.primary.id) {
		aux, ok := m.items[id]
		if !ok {
			continue
		}
		p, ok := m.property(aux, bmff.TypeAuxC)
		if !ok || !alphaURNs[p.auxType] {
			continue
		}
		if len(m.references(refPrem, h.primary.id)) > 0 || len(m.referencing(refPrem, id)) > 0 {
			return ports.AlphaPremultiplied
		}
		return ports.AlphaStraight
	}
	return ports.AlphaUnknown
}

// readMetadata fills the Exif and XMP blobs from the items describing the
// primary image. Unreadable items are logged and skipped.
func (h *handle) readMetadata(info *ports.NativeImageInfo) {
	m := h.meta
	ids := m.referencing(refCdsc, h.primary.id)
	if len(ids) == 0 {
		ids = m.order
	}
	for _, id := range ids {
		it, ok := m.items[id]
		if !ok {
			continue
		}
		switch {
		case it.typ == typeExif && info.Exif == nil:
			data, err := h.readItem(it)
			if err != nil {
				logsink.Logf(logsink.Warning, "%s: exif item %d: %v", h.engine.name, id, err)
				continue
			}
			// The payload starts with the big-endian offset of the TIFF header.
			if len(data) < 4 {
				continue
			}
			offs := uint64(binary.BigEndian.Uint32(data)) + 4
			if offs < uint64(len(data)) {
				info.Exif = data[offs:]
			}

		case it.typ == typeMime && it.contentType == contentTypeXMP && info.XMP == nil:
			data, err := h.readItem(it)
			if err != nil {
				logsink.Logf(logsink.Warning, "%s: xmp item %d: %v", h.engine.name, id, err)
				continue
			}
			if len(data) > 0 {
				info.XMP = data
			}
		}
	}
}

// readItem concatenates the extents of it.
func (h *handle) readItem(it *item) ([]byte, error) {
	if !it.located {
		return nil, fmt.Errorf("no location")
	}
	var out []byte
	for _, ext := range it.extents {
		switch it.method {
		case 0:
			length := ext.length
			if length == 0 && ext.offset < uint64(h.size) {
				length = uint64(h.size) - ext.offset
			}
			if ext.offset > uint64(h.size) || length > uint64(h.size)-ext.offset {
				return nil, fmt.Errorf("extent %d+%d beyond %d bytes", ext.offset, length, h.size)
			}
			if uint64(len(out))+length > maxItemSize {
				return nil, fmt.Errorf("item exceeds %d bytes", maxItemSize)
			}
			buf := make([]byte, length)
			if _, err := h.stream.ReadAt(buf, int64(ext.offset)); err != nil {
				return nil, err
			}
			out = append(out, buf...)

		case 1:
			idat := uint64(len(h.meta.idat))
			length := ext.length
			if length == 0 && ext.offset < idat {
				length = idat - ext.offset
			}
			if ext.offset > idat || length > idat-ext.offset {
				return nil, fmt.Errorf("idat extent %d+%d beyond %d bytes", ext.offset, length, idat)
			}
			out = append(out, h.meta.idat[ext.offset:ext.offset+length]...)

		default:
			return nil, fmt.Errorf("construction method %d", it.method)
		}
	}
	return out, nil
}

func (h *handle) ImageData(dst []byte) error {
	if h.closed {
		return ports.ErrEngineInvalidParameter
	}
	info, err := h.ImageInfo()
	if err != nil {
		return err
	}
	w, ht := int(info.Width), int(info.Height)
	deep := info.Layout == ports.LayoutRGBA16
	bpp := 4
	if deep {
		bpp = 8
	}
	if len(dst) != w*ht*bpp {
		return fmt.Errorf("%w: %s: destination is %d bytes", ports.ErrEngineInvalidParameter, h.engine.name, len(dst))
	}

	if _, err := h.stream.Seek(0, io.SeekStart); err != nil {
		return h.engine.badFormat("rewind: %v", err)
	}
	img, err := h.engine.codec.Decode(h.stream)
	if err != nil {
		return h.engine.badFormat("decode: %v", err)
	}

	src := img
	if h.angle != 0 && !h.engine.codec.Oriented {
		src = rotated{src: img, angle: h.angle}
	}
	if b := src.Bounds(); b.Dx() != w || b.Dy() != ht {
		return fmt.Errorf("%w: %s: decoded %dx%d, expected %dx%d",
			ports.ErrEngineInternal, h.engine.name, b.Dx(), b.Dy(), w, ht)
	}

	premul := info.Alpha == ports.AlphaPremultiplied
	rect := image.Rect(0, 0, w, ht)
	var view draw.Image
	switch {
	case deep && premul:
		view = &image.RGBA64{Pix: dst, Stride: w * 8, Rect: rect}
	case deep:
		view = &image.NRGBA64{Pix: dst, Stride: w * 8, Rect: rect}
	case premul:
		view = &image.RGBA{Pix: dst, Stride: w * 4, Rect: rect}
	default:
		view = &image.NRGBA{Pix: dst, Stride: w * 4, Rect: rect}
	}
	if !copyPix(view, src) {
		draw.Copy(view, image.Point{}, src, src.Bounds(), draw.Src, nil)
	}

	if deep {
		// image's 16-bit types are big-endian; the buffer is little-endian.
		for i := 0; i+1 < len(dst); i += 2 {
			dst[i], dst[i+1] = dst[i+1], dst[i]
		}
	}
	return nil
}

// copyPix copies rows when src has the same pixel representation as dst,
// avoiding the round trip through premultiplied colour.
func copyPix(dst draw.Image, src image.Image) bool {
	var (
		dpix, spix      []byte
		dstride, stride int
		rowBytes        int
		b               = src.Bounds()
	)
	switch d := dst.(type) {
	case *image.NRGBA:
		s, ok := src.(*image.NRGBA)
		if !ok {
			return false
		}
		dpix, dstride, spix, stride, rowBytes = d.Pix, d.Stride, s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx()*4
	case *image.RGBA:
		s, ok := src.(*image.RGBA)
		if !ok {
			return false
		}
		dpix, dstride, spix, stride, rowBytes = d.Pix, d.Stride, s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx()*4
	case *image.NRGBA64:
		s, ok := src.(*image.NRGBA64)
		if !ok {
			return false
		}
		dpix, dstride, spix, stride, rowBytes = d.Pix, d.Stride, s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx()*8
	case *image.RGBA64:
		s, ok := src.(*image.RGBA64)
		if !ok {
			return false
		}
		dpix, dstride, spix, stride, rowBytes = d.Pix, d.Stride, s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx()*8
	default:
		return false
	}
	for y := 0; y < b.Dy(); y++ {
		copy(dpix[y*dstride:y*dstride+rowBytes], spix[y*stride:y*stride+rowBytes])
	}
	return true
}

func (h *handle) Close() error {
	if h.info != nil {
		clear(h.info.Exif)
		clear(h.info.XMP)
		clear(h.info.ICC)
		h.info = nil
	}
	h.closed = true
	h.stream = nil
	return nil
}

// rotated presents src turned anti-clockwise by angle quarter turns.
type rotated struct {
	src   image.Image
	angle uint8
}

func (r rotated) ColorModel() color.Model { return r.src.ColorModel() }

func (r rotated) Bounds() image.Rectangle {
	b := r.src.Bounds()
	if r.angle%2 == 1 {
		return image.Rect(0, 0, b.Dy(), b.Dx())
	}
	return image.Rect(0, 0, b.Dx(), b.Dy())
}

func (r rotated) At(x, y int) color.Color {
	b := r.src.Bounds()
	w, h := b.Dx(), b.Dy()
	var sx, sy int
	switch r.angle {
	case 1:
		sx, sy = w-1-y, x
	case 2:
		sx, sy = w-1-x, h-1-y
	case 3:
		sx, sy = y, h-1-x
	default:
		sx, sy = x, y
	}
	return r.src.At(b.Min.X+sx, b.Min.Y+sy)
}

var _ ports.EngineHandle = (*handle)(nil)
