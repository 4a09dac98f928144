package main

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// canvas allocates a destination matching the depth of src, so 16-bit and
// half-float images keep 16 bits per channel in the PNG.
func canvas(src image.Image, r image.Rectangle) draw.Image {
	switch src.(type) {
	case *image.NRGBA64, *image.RGBA64, *image.Gray16:
		return image.NewNRGBA64(r)
	default:
		return image.NewNRGBA(r)
	}
}

// flatten composites img over an opaque background.
func flatten(img image.Image, bg color.Color) image.Image {
	b := img.Bounds()
	dst := canvas(img, b)
	draw.Draw(dst, b, image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// scale shrinks img so its longer side is at most maxSize, keeping the aspect
// ratio. Images already within bounds are returned as is.
func scale(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}

	nw, nh := maxSize, maxSize
	if w >= h {
		nh = max(1, h*maxSize/w)
	} else {
		nw = max(1, w*maxSize/h)
	}
	dst := canvas(img, image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func encodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}
