package pixel

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/user/imgbridge/pkg/ports"
)

func TestDescribe_Table(t *testing.T) {
	tests := []struct {
		layout ports.NativePixelLayout
		bpp    int
	}{
		{ports.LayoutRGBA8, 32},
		{ports.LayoutRGBA16, 64},
		{ports.LayoutRGBAF16, 64},
		{ports.LayoutRF16, 16},
	}
	for _, tt := range tests {
		d, err := Describe(tt.layout)
		if err != nil {
			t.Fatalf("Describe(%s): %v", tt.layout, err)
		}
		if d.BitsPerPixel() != tt.bpp {
			t.Errorf("%s: %d bits per pixel, want %d", tt.layout, d.BitsPerPixel(), tt.bpp)
		}
	}
}

func TestDescribe_UnknownLayout(t *testing.T) {
	_, err := Describe(ports.NativePixelLayout(42))
	if !errors.Is(err, ErrUnimplemented) {
		t.Errorf("err = %v, want ErrUnimplemented", err)
	}
}

func TestMapAlpha_Total(t *testing.T) {
	tests := map[ports.NativeAlpha]Alpha{
		ports.AlphaUnknown:       AlphaNone,
		ports.AlphaStraight:      AlphaUnassociated,
		ports.AlphaPremultiplied: AlphaAssociated,
		ports.AlphaNone:          AlphaNone,
		ports.NativeAlpha(99):    AlphaNone,
	}
	for in, want := range tests {
		if got := MapAlpha(in); got != want {
			t.Errorf("MapAlpha(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestBufferSize(t *testing.T) {
	tests := []struct {
		w, h   uint32
		layout ports.NativePixelLayout
		want   int
	}{
		{3, 2, ports.LayoutRGBA8, 24},
		{3, 2, ports.LayoutRGBA16, 48},
		{3, 2, ports.LayoutRGBAF16, 48},
		{3, 2, ports.LayoutRF16, 12},
		{0, 10, ports.LayoutRGBA8, 0},
	}
	for _, tt := range tests {
		got, err := BufferSize(tt.w, tt.h, tt.layout)
		if err != nil {
			t.Fatalf("BufferSize(%d, %d, %s): %v", tt.w, tt.h, tt.layout, err)
		}
		if got != tt.want {
			t.Errorf("BufferSize(%d, %d, %s) = %d, want %d", tt.w, tt.h, tt.layout, got, tt.want)
		}
	}
}

func TestBufferSize_Overflow(t *testing.T) {
	_, err := BufferSize(math.MaxUint32, math.MaxUint32, ports.LayoutRGBA16)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestCheckBuffer(t *testing.T) {
	if err := CheckBuffer(make([]byte, 16), 2, 2, ports.LayoutRGBA8); err != nil {
		t.Errorf("exact buffer rejected: %v", err)
	}
	for _, n := range []int{15, 17, 0} {
		if err := CheckBuffer(make([]byte, n), 2, 2, ports.LayoutRGBA8); !errors.Is(err, ErrBufferSize) {
			t.Errorf("len %d: err = %v, want ErrBufferSize", n, err)
		}
	}
}

func TestToImage_RGBA8(t *testing.T) {
	buf := []byte{10, 20, 30, 40, 50, 60, 70, 80}

	img, err := ToImage(buf, 2, 1, ports.LayoutRGBA8, AlphaUnassociated)
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		t.Fatalf("got %T, want *image.NRGBA", img)
	}
	if c := nrgba.NRGBAAt(1, 0); c.R != 50 || c.A != 80 {
		t.Errorf("pixel = %+v", c)
	}

	buf[0] = 99
	if nrgba.Pix[0] == 99 {
		t.Error("image aliases the source buffer")
	}

	img, _ = ToImage(buf, 2, 1, ports.LayoutRGBA8, AlphaAssociated)
	if _, ok := img.(*image.RGBA); !ok {
		t.Errorf("associated alpha gave %T", img)
	}

	img, _ = ToImage(buf, 2, 1, ports.LayoutRGBA8, AlphaNone)
	if a := img.(*image.NRGBA).NRGBAAt(0, 0).A; a != 0xFF {
		t.Errorf("alpha none should be opaque, got %d", a)
	}
}

func TestToImage_RGBA16LittleEndian(t *testing.T) {
	buf := []byte{0x34, 0x12, 0, 0, 0, 0, 0xFF, 0xFF}

	img, err := ToImage(buf, 1, 1, ports.LayoutRGBA16, AlphaUnassociated)
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	c := img.(*image.NRGBA64).NRGBA64At(0, 0)
	if c.R != 0x1234 || c.A != 0xFFFF {
		t.Errorf("pixel = %+v", c)
	}
}

func TestToImage_HalfFloat(t *testing.T) {
	// 1.0 = 0x3C00, 0.5 = 0x3800, 2.0 = 0x4000, -1.0 = 0xBC00.
	buf := []byte{0x00, 0x3C, 0x00, 0x38, 0x00, 0x40, 0x00, 0xBC}

	img, err := ToImage(buf, 1, 1, ports.LayoutRGBAF16, AlphaUnassociated)
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	c := img.(*image.NRGBA64).NRGBA64At(0, 0)
	if c.R != 0xFFFF || c.G != 0x8000 || c.B != 0xFFFF || c.A != 0 {
		t.Errorf("pixel = %+v", c)
	}

	img, err = ToImage([]byte{0x00, 0x38}, 1, 1, ports.LayoutRF16, AlphaNone)
	if err != nil {
		t.Fatalf("ToImage(R_F16): %v", err)
	}
	if g := img.(*image.Gray16).Gray16At(0, 0).Y; g != 0x8000 {
		t.Errorf("gray = %#x", g)
	}
}

func TestToImage_HalfFloatKeepsAlpha(t *testing.T) {
	// Half-float engines report no alpha kind but still carry an A channel.
	buf := []byte{0x00, 0x3C, 0x00, 0x3C, 0x00, 0x3C, 0x00, 0x38}

	img, err := ToImage(buf, 1, 1, ports.LayoutRGBAF16, AlphaNone)
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	if a := img.(*image.NRGBA64).NRGBA64At(0, 0).A; a == 0xFFFF || a == 0 {
		t.Errorf("alpha = %#x, want the half-float 0.5", a)
	}

	img, _ = ToImage([]byte{0, 0, 0, 0, 0, 0, 0, 0x80}, 1, 1, ports.LayoutRGBA16, AlphaNone)
	if a := img.(*image.NRGBA64).NRGBA64At(0, 0).A; a != 0xFFFF {
		t.Errorf("16-bit alpha none should be opaque, got %#x", a)
	}
}

func TestToImage_RejectsWrongSize(t *testing.T) {
	if _, err := ToImage(make([]byte, 3), 1, 1, ports.LayoutRGBA8, AlphaNone); !errors.Is(err, ErrBufferSize) {
		t.Errorf("err = %v", err)
	}
}
