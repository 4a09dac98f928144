// Package codecdetect provides utilities for detecting the image container of
// a file and, for ISO-BMFF files, the brands it declares.
package codecdetect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/imgbridge/pkg/bmff"
	"github.com/user/imgbridge/pkg/formats"
)

// ErrUnknownFormat is returned when no supported container matches.
var ErrUnknownFormat = errors.New("codecdetect: unknown format")

// Result is what detection found out about a file.
type Result struct {
	Format formats.Tag `json:"format"`
	// MajorBrand and CompatibleBrands are set for HEIF containers.
	MajorBrand       string   `json:"major_brand,omitempty"`
	CompatibleBrands []string `json:"compatible_brands,omitempty"`
}

// Detector matches headers against an ordered set of formats.
type Detector struct {
	probe *formats.Detector
}

// New creates a Detector probing in order. No tags means the default order.
func New(order ...formats.Tag) (*Detector, error) {
	d, err := formats.NewDetector(order...)
	if err != nil {
		return nil, err
	}
	return &Detector{probe: d}, nil
}

// DetectFromFile detects the container of the file at path.
func (d *Detector) DetectFromFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return d.DetectFromReader(f)
}

// DetectFromReader detects the container from an io.ReadSeeker. The reader
// is rewound to its start before returning.
func (d *Detector) DetectFromReader(reader io.ReadSeeker) (Result, error) {
	header := make([]byte, d.probe.HeaderSize())
	n, err := io.ReadFull(reader, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	header = header[:n]

	// Reset reader position for subsequent reads
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("seek: %w", err)
	}

	tag, ok := d.probe.Probe(header, len(header))
	if !ok {
		return Result{Format: formats.Unknown}, ErrUnknownFormat
	}
	res := Result{Format: tag}
	if tag == formats.Avif || tag == formats.Heic {
		readBrands(reader, header, &res)
	}
	return res, nil
}

// DetectFromBytes detects the container from file data.
func (d *Detector) DetectFromBytes(data []byte) (Result, error) {
	return d.DetectFromReader(bytes.NewReader(data))
}

// readBrands decodes the leading ftyp box. A box that declares more bytes
// than the file holds is read from the resident header instead.
func readBrands(reader io.ReadSeeker, header []byte, res *Result) {
	box, err := mp4.DecodeBox(0, reader)
	reader.Seek(0, io.SeekStart)
	if err == nil {
		if ftyp, ok := box.(*mp4.FtypBox); ok {
			res.MajorBrand = ftyp.MajorBrand()
			res.CompatibleBrands = ftyp.CompatibleBrands()
			return
		}
	}

	ft, ok := bmff.SniffFileType(header)
	if !ok {
		return
	}
	res.MajorBrand = ft.MajorBrand.String()
	for _, b := range ft.CompatibleBrands {
		res.CompatibleBrands = append(res.CompatibleBrands, b.String())
	}
}

var defaultDetector = &Detector{probe: mustDetector()}

func mustDetector() *formats.Detector {
	d, err := formats.NewDetector()
	if err != nil {
		panic(err)
	}
	return d
}

// DetectFromFile detects with the default probe order.
func DetectFromFile(path string) (Result, error) {
	return defaultDetector.DetectFromFile(path)
}

// DetectFromReader detects with the default probe order.
func DetectFromReader(reader io.ReadSeeker) (Result, error) {
	return defaultDetector.DetectFromReader(reader)
}

// DetectFromBytes detects with the default probe order.
func DetectFromBytes(data []byte) (Result, error) {
	return defaultDetector.DetectFromBytes(data)
}
