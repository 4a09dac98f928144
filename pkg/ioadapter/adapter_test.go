package ioadapter

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/user/imgbridge/pkg/mocks"
)

func TestAdapter_ReadFillsBuffer(t *testing.T) {
	src := mocks.NewSource([]byte("0123456789"))
	src.MaxChunk = 3
	a := New(src)

	buf := make([]byte, 8)
	n, err := a.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 8 || string(buf) != "01234567" {
		t.Errorf("got %d %q", n, buf[:n])
	}
	if src.ReadCalls < 3 {
		t.Errorf("expected chunked reads, got %d calls", src.ReadCalls)
	}
}

func TestAdapter_ShortReadAtEOF(t *testing.T) {
	a := New(mocks.NewSource([]byte("abc")))

	buf := make([]byte, 10)
	n, err := a.Read(buf)
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
	if err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
	if a.Err() != nil {
		t.Errorf("end of stream must not latch an error: %v", a.Err())
	}
}

func TestAdapter_LatchesFirstFailure(t *testing.T) {
	src := mocks.NewSource(bytes.Repeat([]byte{1}, 100))
	src.FailAfter = 10
	a := New(src)

	buf := make([]byte, 32)
	n, err := a.Read(buf)
	if !errors.Is(err, mocks.ErrForced) {
		t.Fatalf("err = %v, want forced failure", err)
	}
	if n != 10 {
		t.Errorf("n = %d, want 10", n)
	}

	src.FailSeek = true
	if _, err := a.Seek(0, io.SeekStart); err == nil {
		t.Error("expected seek failure")
	}

	if !errors.Is(a.Err(), mocks.ErrForced) {
		t.Errorf("Err() = %v", a.Err())
	}
}

func TestAdapter_Seek(t *testing.T) {
	a := New(mocks.NewSource([]byte("0123456789")))

	tests := []struct {
		offset int64
		whence int
		want   int64
	}{
		{4, io.SeekStart, 4},
		{2, io.SeekCurrent, 6},
		{-1, io.SeekEnd, 9},
	}
	for _, tt := range tests {
		pos, err := a.Seek(tt.offset, tt.whence)
		if err != nil {
			t.Fatalf("Seek(%d, %d): %v", tt.offset, tt.whence, err)
		}
		if pos != tt.want {
			t.Errorf("Seek(%d, %d) = %d, want %d", tt.offset, tt.whence, pos, tt.want)
		}
	}

	if _, err := a.Seek(0, 7); err == nil {
		t.Error("expected invalid whence to fail")
	}
	if a.Err() == nil {
		t.Error("invalid whence should be latched")
	}
}

func TestAdapter_Detach(t *testing.T) {
	src := mocks.NewSource([]byte("abc"))
	a := New(src)
	read, seek := a.Callbacks()
	a.Detach()

	if _, err := read(make([]byte, 1)); !errors.Is(err, ErrDetached) {
		t.Errorf("read after detach: %v", err)
	}
	if _, err := seek(0, io.SeekStart); !errors.Is(err, ErrDetached) {
		t.Errorf("seek after detach: %v", err)
	}
	if src.ReadCalls != 0 || src.SeekCalls != 0 {
		t.Error("detached adapter touched the source")
	}
}

func TestStream_ReadAtAndSize(t *testing.T) {
	a := New(mocks.NewSource([]byte("hello, world")))
	s := NewStream(a.Callbacks())

	size, err := s.Size()
	if err != nil || size != 12 {
		t.Fatalf("Size() = %d, %v", size, err)
	}

	buf := make([]byte, 5)
	if _, err := s.ReadAt(buf, 7); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "world" {
		t.Errorf("ReadAt = %q", buf)
	}

	if _, err := s.ReadAt(make([]byte, 4), 10); err != io.ErrUnexpectedEOF {
		t.Errorf("short ReadAt err = %v", err)
	}

	all, err := io.ReadAll(io.NewSectionReader(s, 0, size))
	if err != nil || string(all) != "hello, world" {
		t.Errorf("section read = %q, %v", all, err)
	}
}
