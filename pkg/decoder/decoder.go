// Package decoder is the host-facing surface of the module: per-format
// decoders that identify or decode a source in one call, an engine registry
// with header detection, and a bounded batch runner.
package decoder

import (
	"fmt"
	"image"

	"github.com/user/imgbridge/pkg/adapters/logger"
	"github.com/user/imgbridge/pkg/formats"
	"github.com/user/imgbridge/pkg/metadata"
	"github.com/user/imgbridge/pkg/pixel"
	"github.com/user/imgbridge/pkg/ports"
	"github.com/user/imgbridge/pkg/session"
)

// Options controls a single identify or decode call.
type Options struct {
	// SkipMetadata skips metadata extraction entirely.
	SkipMetadata bool
	// MaxPixels rejects larger images before the pixel buffer is allocated.
	// Zero means no limit.
	MaxPixels uint64
}

// ImageInfo is the result of Identify.
type ImageInfo struct {
	session.ImageDescriptor

	// Blobs is empty when metadata was skipped.
	Blobs metadata.Blobs `json:"-"`
}

// Image is the result of Decode. Pixels is laid out as Layout describes.
type Image struct {
	ImageInfo
	Pixels []byte `json:"-"`
}

// ToImage converts the pixel buffer to a standard library image.
func (img Image) ToImage() (image.Image, error) {
	return pixel.ToImage(img.Pixels, img.Width, img.Height, img.Layout, img.Alpha)
}

// Decoder decodes one container format with one engine. It holds no
// per-image state and is safe for concurrent use.
type Decoder struct {
	format formats.Tag
	engine ports.Engine
	logger ports.Logger
}

// New creates a Decoder for format. A nil logger discards messages.
func New(format formats.Tag, engine ports.Engine, log ports.Logger) *Decoder {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Decoder{format: format, engine: engine, logger: log.WithComponent(format.String())}
}

// Format returns the container format the decoder handles.
func (d *Decoder) Format() formats.Tag {
	return d.format
}

// Identify describes the image in src without decoding pixels.
func (d *Decoder) Identify(src ports.Source, opts Options) (ImageInfo, error) {
	var info ImageInfo
	err := session.With(d.format, d.engine, src, func(s *session.Session) error {
		desc, err := s.Info()
		if err != nil {
			return err
		}
		info.ImageDescriptor = desc
		if !opts.SkipMetadata {
			info.Blobs, err = s.ExtractMetadata()
		}
		return err
	})
	if err != nil {
		return ImageInfo{}, err
	}
	d.logger.Debug("Identified %s as %s", sourceName(src), d.format)
	return info, nil
}

// Decode describes the image in src and decodes its pixels.
func (d *Decoder) Decode(src ports.Source, opts Options) (Image, error) {
	var img Image
	err := session.With(d.format, d.engine, src, func(s *session.Session) error {
		desc, err := s.Info()
		if err != nil {
			return err
		}
		if opts.MaxPixels > 0 && desc.Pixels() > opts.MaxPixels {
			return &session.Error{
				Kind:   session.KindImageTooLarge,
				Op:     "decode",
				Format: d.format,
				Err:    fmt.Errorf("%dx%d exceeds %d pixels", desc.Width, desc.Height, opts.MaxPixels),
			}
		}
		size, err := desc.BufferSize()
		if err != nil {
			return &session.Error{Kind: session.KindImageTooLarge, Op: "decode", Format: d.format, Err: err}
		}

		buf := make([]byte, size)
		if err := s.FetchPixels(buf); err != nil {
			return err
		}
		img.ImageDescriptor = desc
		img.Pixels = buf
		if !opts.SkipMetadata {
			img.Blobs, err = s.ExtractMetadata()
		}
		return err
	})
	if err != nil {
		return Image{}, err
	}
	d.logger.Debug("Decoded %s: %dx%d %s", sourceName(src), img.Width, img.Height, img.Layout)
	return img, nil
}

func sourceName(src ports.Source) string {
	if f, ok := src.(ports.SourceFile); ok {
		return f.Name()
	}
	return "stream"
}
