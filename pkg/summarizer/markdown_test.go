package summarizer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/user/imgbridge/pkg/formats"
	"github.com/user/imgbridge/pkg/metadata"
	"github.com/user/imgbridge/pkg/mocks"
	"github.com/user/imgbridge/pkg/pixel"
	"github.com/user/imgbridge/pkg/ports"
	"github.com/user/imgbridge/pkg/session"
)

func sampleSummary() *Summary {
	s := NewBuilder().
		WithSettings(Settings{
			ProbeOrder: []string{"avif", "openexr", "heic"},
			Workers:    4,
			MaxPixels:  1 << 20,
		}).
		AddImage("photos/cat|dog.avif", 1536, session.ImageDescriptor{
			Format:   formats.Avif,
			Width:    640,
			Height:   480,
			Layout:   ports.LayoutRGBA16,
			Alpha:    pixel.AlphaUnassociated,
			Metadata: metadata.Presence{Exif: true, ICC: true},
		}).
		AddFailure("broken.heic", errors.New("unexpected EOF")).
		Build()
	s.GeneratedAt = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return s
}

func TestMarkdownFormatter_Format_Basic(t *testing.T) {
	result := NewMarkdownFormatter().Format(sampleSummary())

	checks := []string{
		"# Identify Summary",
		"avif, openexr, heic",
		"**Workers**: 4",
		"**Pixel Limit**: 1048576",
		"Identified: 1 / Failed: 1",
		`photos/cat\|dog.avif`,
		"640x480",
		"1.50 KB",
		"Exif, ICC",
		"## Failures",
		"`broken.heic`: unexpected EOF",
		"2024-01-15 10:30:00 UTC",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q\n%s", check, result)
		}
	}
}

func TestMarkdownFormatter_NoFailures(t *testing.T) {
	s := NewBuilder().
		AddImage("a.exr", 10, session.ImageDescriptor{Format: formats.OpenExr, Width: 1, Height: 1}).
		Build()

	result := NewMarkdownFormatter().Format(s)
	if strings.Contains(result, "## Failures") {
		t.Error("output should NOT contain a failures section")
	}
	if strings.Contains(result, "Pixel Limit") {
		t.Error("output should NOT mention an unset pixel limit")
	}
	if !strings.Contains(result, "| - |") {
		t.Error("expected '-' for an image without metadata")
	}
}

func TestMarkdownFormatter_WithTranslator(t *testing.T) {
	translator := func(key string) string {
		translations := map[string]string{
			"Identify Summary": "判定サマリー",
			"Failures":         "失敗",
		}
		if v, ok := translations[key]; ok {
			return v
		}
		return key
	}

	result := NewMarkdownFormatter(WithTranslator(translator)).Format(sampleSummary())

	if !strings.Contains(result, "判定サマリー") {
		t.Error("expected translated 'Identify Summary'")
	}
	if !strings.Contains(result, "## 失敗") {
		t.Error("expected translated 'Failures'")
	}
}

func TestMarkdownFormatter_WithVersion(t *testing.T) {
	result := NewMarkdownFormatter(WithVersion("v1.2.0")).Format(sampleSummary())

	if !strings.Contains(result, "imgbridge v1.2.0") {
		t.Error("expected output to contain version 'v1.2.0'")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
		{1536 * 1024 * 1024, "1.50 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := formatBytes(tt.bytes)
			if got != tt.want {
				t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := NewWriter(FormatFunc(func(*Summary) string { return "report" }), fs)

	if err := w.Write("out/report.md", sampleSummary()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, ok := fs.GetFile("out/report.md")
	if !ok || string(data) != "report" {
		t.Errorf("written = %q, %v", data, ok)
	}

	fs.WriteFileFunc = func(string, []byte) error { return errors.New("disk full") }
	if err := w.Write("x.md", sampleSummary()); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v", err)
	}
}
