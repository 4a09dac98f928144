package decoder

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/user/imgbridge/pkg/adapters/exrengine"
	"github.com/user/imgbridge/pkg/adapters/heifengine"
	"github.com/user/imgbridge/pkg/adapters/logger"
	"github.com/user/imgbridge/pkg/formats"
	"github.com/user/imgbridge/pkg/ports"
)

var (
	// ErrUnsupportedFormat is returned when no engine handles a format or no
	// format matches a header.
	ErrUnsupportedFormat = errors.New("decoder: unsupported format")
)

// Option configures a Registry.
type Option func(*Registry)

// WithDetector sets the detector used by Detect. The default probes in
// formats.DefaultProbeOrder.
func WithDetector(d *formats.Detector) Option {
	return func(r *Registry) {
		r.detector = d
	}
}

// WithLogger sets the logger handed to decoders.
func WithLogger(l ports.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// Registry maps formats to engines and detects formats from headers.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	engines  map[formats.Tag]ports.Engine
	detector *formats.Detector
	logger   ports.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		engines: make(map[formats.Tag]ports.Engine),
		logger:  logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.detector == nil {
		d, err := formats.NewDetector()
		if err != nil {
			panic(err)
		}
		r.detector = d
	}
	return r
}

// Default creates a registry with the AVIF, HEIC and OpenEXR engines.
func Default(opts ...Option) *Registry {
	r := NewRegistry(opts...)
	r.Register(formats.Avif, heifengine.NewAVIF())
	r.Register(formats.Heic, heifengine.NewHEIC())
	r.Register(formats.OpenExr, exrengine.New())
	return r
}

// Register binds engine to tag, replacing any previous engine.
func (r *Registry) Register(tag formats.Tag, engine ports.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[tag] = engine
}

// Formats returns the registered formats in tag order.
func (r *Registry) Formats() []formats.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]formats.Tag, 0, len(r.engines))
	for t := range r.engines {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Decoder returns the decoder for tag.
func (r *Registry) Decoder(tag formats.Tag) (*Decoder, error) {
	r.mu.RLock()
	engine, ok := r.engines[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, tag)
	}
	return New(tag, engine, r.logger), nil
}

// Detect probes the start of src and rewinds it. Only formats with a
// registered engine are reported.
func (r *Registry) Detect(src ports.Source) (formats.Tag, error) {
	header := make([]byte, r.detector.HeaderSize())
	n, err := io.ReadFull(src, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return formats.Unknown, fmt.Errorf("decoder: read header: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return formats.Unknown, fmt.Errorf("decoder: rewind: %w", err)
	}

	tag, ok := r.detector.Probe(header[:n], n)
	if !ok {
		return formats.Unknown, ErrUnsupportedFormat
	}
	r.mu.RLock()
	_, registered := r.engines[tag]
	r.mu.RUnlock()
	if !registered {
		return tag, fmt.Errorf("%w: %s", ErrUnsupportedFormat, tag)
	}
	return tag, nil
}

// DetectAndIdentify detects the format of src and identifies it.
func (r *Registry) DetectAndIdentify(src ports.Source, opts Options) (ImageInfo, error) {
	tag, err := r.Detect(src)
	if err != nil {
		return ImageInfo{}, err
	}
	d, err := r.Decoder(tag)
	if err != nil {
		return ImageInfo{}, err
	}
	return d.Identify(src, opts)
}

// DetectAndDecode detects the format of src and decodes it.
func (r *Registry) DetectAndDecode(src ports.Source, opts Options) (Image, error) {
	tag, err := r.Detect(src)
	if err != nil {
		return Image{}, err
	}
	d, err := r.Decoder(tag)
	if err != nil {
		return Image{}, err
	}
	return d.Decode(src, opts)
}
