package session

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/user/imgbridge/pkg/formats"
	"github.com/user/imgbridge/pkg/logsink"
	"github.com/user/imgbridge/pkg/mocks"
	"github.com/user/imgbridge/pkg/pixel"
	"github.com/user/imgbridge/pkg/ports"
)

func newInfo(w, h uint32, layout ports.NativePixelLayout) ports.NativeImageInfo {
	info := ports.NewNativeImageInfo()
	info.Width = w
	info.Height = h
	info.Layout = layout
	info.Alpha = ports.AlphaStraight
	return info
}

func TestSession_Lifecycle(t *testing.T) {
	info := newInfo(4, 3, ports.LayoutRGBA8)
	info.Exif = []byte("Exif\x00\x00MM")
	info.ICC = []byte("icc-profile")
	info.ColorPrimaries = 9
	info.TransferCharacteristics = 16

	engine := mocks.NewEngine(info)
	engine.Fill = 0x7F
	s := New(formats.Avif, engine)

	if err := s.Open(mocks.NewSource(make([]byte, 64))); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.State() != StateOpen {
		t.Errorf("state = %s, want open", s.State())
	}

	desc, err := s.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if desc.Width != 4 || desc.Height != 3 || desc.BitsPerPixel != 32 {
		t.Errorf("descriptor = %+v", desc)
	}
	if desc.Alpha != pixel.AlphaUnassociated {
		t.Errorf("alpha = %s", desc.Alpha)
	}
	if !desc.Metadata.Exif || !desc.Metadata.ICC || desc.Metadata.XMP || !desc.Metadata.CICP {
		t.Errorf("presence = %+v", desc.Metadata)
	}

	size, err := desc.BufferSize()
	if err != nil {
		t.Fatalf("BufferSize: %v", err)
	}
	buf := make([]byte, size)
	if err := s.FetchPixels(buf); err != nil {
		t.Fatalf("FetchPixels failed: %v", err)
	}
	if buf[0] != 0x7F || buf[len(buf)-1] != 0x7F {
		t.Error("buffer not filled")
	}
	if s.State() != StateFilled {
		t.Errorf("state = %s, want filled", s.State())
	}

	blobs, err := s.ExtractMetadata()
	if err != nil {
		t.Fatalf("ExtractMetadata failed: %v", err)
	}

	s.Close()

	// The engine scribbles over its memory on close; the copies must survive.
	if string(blobs.Exif) != "Exif\x00\x00MM" || string(blobs.ICC) != "icc-profile" {
		t.Errorf("metadata did not survive close: %q %q", blobs.Exif, blobs.ICC)
	}
	if blobs.CICP == nil || blobs.CICP.ColorPrimaries != 9 {
		t.Errorf("CICP = %+v", blobs.CICP)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s, want closed", s.State())
	}
	if !engine.Handles[0].Closed() {
		t.Error("engine handle not released")
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	engine := mocks.NewEngine(newInfo(1, 1, ports.LayoutRGBA8))
	s := New(formats.Heic, engine)

	s.Close()
	if err := s.Open(mocks.NewSource(nil)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Close()
	s.Close()

	if n := engine.Handles[0].CloseCalls; n != 1 {
		t.Errorf("handle closed %d times, want 1", n)
	}
	if _, err := s.Info(); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Info after close: %v", err)
	}
}

func TestSession_ReopenAfterClose(t *testing.T) {
	engine := mocks.NewEngine(newInfo(1, 1, ports.LayoutRGBA8))
	s := New(formats.Heic, engine)

	for i := 0; i < 2; i++ {
		if err := s.Open(mocks.NewSource(nil)); err != nil {
			t.Fatalf("Open #%d failed: %v", i, err)
		}
		if _, err := s.Info(); err != nil {
			t.Fatalf("Info #%d failed: %v", i, err)
		}
		s.Close()
	}
	if engine.OpenCalls != 2 {
		t.Errorf("OpenCalls = %d", engine.OpenCalls)
	}
}

func TestSession_ContractViolations(t *testing.T) {
	engine := mocks.NewEngine(newInfo(2, 2, ports.LayoutRGBA8))
	s := New(formats.Avif, engine)
	defer s.Close()

	if _, err := s.Info(); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Info before open: %v", err)
	}
	if err := s.FetchPixels(make([]byte, 16)); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("FetchPixels before open: %v", err)
	}
	if _, err := s.ExtractMetadata(); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("ExtractMetadata before open: %v", err)
	}
	if err := s.Open(nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Open(nil): %v", err)
	}

	if err := s.Open(mocks.NewSource(nil)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Open(mocks.NewSource(nil)); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("second Open: %v", err)
	}
	if err := s.FetchPixels(make([]byte, 16)); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("FetchPixels before Info: %v", err)
	}
}

func TestSession_FetchRejectsWrongSizeBeforeEngine(t *testing.T) {
	engine := mocks.NewEngine(newInfo(3, 2, ports.LayoutRGBA16))
	s := New(formats.Avif, engine)
	defer s.Close()

	if err := s.Open(mocks.NewSource(nil)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.Info(); err != nil {
		t.Fatalf("Info failed: %v", err)
	}

	for _, n := range []int{0, 47, 49, 24} {
		err := s.FetchPixels(make([]byte, n))
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("len %d: err = %v, want InvalidParameter", n, err)
		}
	}
	if calls := engine.Handles[0].DataCalls; calls != 0 {
		t.Errorf("engine called %d times with a bad buffer", calls)
	}
	if err := s.FetchPixels(make([]byte, 48)); err != nil {
		t.Errorf("exact buffer rejected: %v", err)
	}
}

func TestSession_BufferSizeMatchesEveryLayout(t *testing.T) {
	layouts := []ports.NativePixelLayout{ports.LayoutRGBA8, ports.LayoutRGBA16, ports.LayoutRGBAF16, ports.LayoutRF16}
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			engine := mocks.NewEngine(newInfo(5, 7, layout))
			var got int
			engine.ImageDataFunc = func(_ ports.ReadFunc, dst []byte) error {
				got = len(dst)
				return nil
			}
			err := With(formats.OpenExr, engine, mocks.NewSource(nil), func(s *Session) error {
				desc, err := s.Info()
				if err != nil {
					return err
				}
				size, err := desc.BufferSize()
				if err != nil {
					return err
				}
				return s.FetchPixels(make([]byte, size))
			})
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			d, _ := pixel.Describe(layout)
			if want := 5 * 7 * d.BytesPerPixel(); got != want {
				t.Errorf("engine saw %d bytes, want %d", got, want)
			}
		})
	}
}

func TestSession_UnimplementedLayout(t *testing.T) {
	engine := mocks.NewEngine(newInfo(1, 1, ports.NativePixelLayout(77)))
	err := With(formats.Avif, engine, mocks.NewSource(nil), func(s *Session) error {
		_, err := s.Info()
		return err
	})
	if !errors.Is(err, ErrUnimplemented) {
		t.Errorf("err = %v, want Unimplemented", err)
	}
	if !engine.Handles[0].Closed() {
		t.Error("handle not released after info failure")
	}
}

func TestSession_EngineErrorMapping(t *testing.T) {
	tests := []struct {
		engineErr error
		want      error
		kind      Kind
	}{
		{ports.ErrEngineBadFormat, ErrBadFormat, KindBadFormat},
		{ports.ErrEngineImageTooLarge, ErrImageTooLarge, KindImageTooLarge},
		{ports.ErrEngineInvalidParameter, ErrInvalidParameter, KindInvalidParameter},
		{ports.ErrEngineInternal, ErrInternal, KindInternal},
		{ports.ErrEngineUnknown, ErrInternal, KindInternal},
		{errors.New("opaque"), ErrInternal, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.engineErr.Error(), func(t *testing.T) {
			engine := mocks.NewEngine(newInfo(1, 1, ports.LayoutRGBA8))
			engine.InfoFunc = func() (ports.NativeImageInfo, error) {
				return ports.NativeImageInfo{}, fmt.Errorf("wrapped: %w", tt.engineErr)
			}
			err := With(formats.Heic, engine, mocks.NewSource(nil), func(s *Session) error {
				_, err := s.Info()
				return err
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if KindOf(err) != tt.kind {
				t.Errorf("KindOf = %s, want %s", KindOf(err), tt.kind)
			}
			if !errors.Is(err, tt.engineErr) {
				t.Error("engine error not preserved in chain")
			}
		})
	}
}

func TestSession_OpenFailureLeavesClosed(t *testing.T) {
	engine := mocks.NewEngine(newInfo(1, 1, ports.LayoutRGBA8))
	engine.ReadOnOpen = 32
	s := New(formats.Avif, engine)

	err := s.Open(mocks.NewSource(make([]byte, 8)))
	if !errors.Is(err, ErrBadFormat) {
		t.Fatalf("err = %v, want BadFormat", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s after failed open", s.State())
	}
	s.Close()
	if _, err := s.Info(); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Info after failed open: %v", err)
	}
}

func TestSession_ForcedIOFailureDuringOpen(t *testing.T) {
	engine := mocks.NewEngine(newInfo(1, 1, ports.LayoutRGBA8))
	engine.ReadOnOpen = 32
	src := mocks.NewSource(make([]byte, 64))
	src.FailAfter = 4

	s := New(formats.Avif, engine)
	defer s.Close()

	err := s.Open(src)
	if !errors.Is(err, ErrIoFailure) {
		t.Fatalf("err = %v, want IoFailure", err)
	}
	if !errors.Is(err, mocks.ErrForced) {
		t.Error("source error not preserved in chain")
	}
}

func TestSession_ForcedIOFailureDuringFetch(t *testing.T) {
	engine := mocks.NewEngine(newInfo(2, 2, ports.LayoutRGBA8))
	engine.ImageDataFunc = func(read ports.ReadFunc, dst []byte) error {
		if _, err := read(dst); err != nil {
			return ports.ErrEngineBadFormat
		}
		return nil
	}
	src := mocks.NewSource(make([]byte, 64))
	src.FailAfter = 0

	var handle *mocks.Handle
	err := With(formats.Avif, engine, src, func(s *Session) error {
		handle = engine.Handles[0]
		if _, err := s.Info(); err != nil {
			return err
		}
		return s.FetchPixels(make([]byte, 16))
	})
	if !errors.Is(err, ErrIoFailure) {
		t.Fatalf("err = %v, want IoFailure", err)
	}
	if handle.CloseCalls != 1 {
		t.Errorf("CloseCalls = %d, want 1", handle.CloseCalls)
	}
}

func TestWith_ClosesOnPanic(t *testing.T) {
	engine := mocks.NewEngine(newInfo(1, 1, ports.LayoutRGBA8))

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = With(formats.Avif, engine, mocks.NewSource(nil), func(*Session) error {
			panic("boom")
		})
	}()

	if !engine.Handles[0].Closed() {
		t.Error("handle not released after panic")
	}
}

func TestSession_ReleaseFailureIsLogged(t *testing.T) {
	var logged []string
	logsink.Set(func(level logsink.Level, msg string) {
		if level == logsink.Warning {
			logged = append(logged, msg)
		}
	})
	defer logsink.Clear()

	engine := mocks.NewEngine(newInfo(1, 1, ports.LayoutRGBA8))
	engine.CloseFunc = func() error { return errors.New("release failed") }

	s := New(formats.Heic, engine)
	if err := s.Open(mocks.NewSource(nil)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Close()

	if len(logged) != 1 || !strings.Contains(logged[0], "release failed") {
		t.Errorf("logged = %q", logged)
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindBadFormat, Op: "open", Format: formats.Heic, Err: errors.New("no meta box")}
	want := "open heic: bad format: no meta box"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("KindOf(plain) should be unknown")
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindUnknown:          "unknown",
		KindInvalidParameter: "invalid parameter",
		KindBadFormat:        "bad format",
		KindInternal:         "internal error",
		KindImageTooLarge:    "image too large",
		KindUnimplemented:    "unimplemented",
		KindIoFailure:        "i/o failure",
		Kind(99):             "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
