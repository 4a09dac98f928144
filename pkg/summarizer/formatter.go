package summarizer

import (
	"fmt"
	"strings"
)

// Formatter defines the interface for formatting a Summary.
type Formatter interface {
	// Format converts a Summary to a formatted string.
	Format(summary *Summary) string
}

// FormatFunc is a function adapter for the Formatter interface.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate headings and labels.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = t
	}
}

// WithVersion adds the tool version to the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// NewMarkdownFormatter creates a MarkdownFormatter. Labels are untranslated
// unless WithTranslator is given.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{translate: func(s string) string { return s }}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements the Formatter interface.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Identify Summary"))

	b.WriteString("## " + t("Settings") + "\n\n")
	fmt.Fprintf(&b, "- **%s**: %s\n", t("Probe Order"), strings.Join(s.Settings.ProbeOrder, ", "))
	fmt.Fprintf(&b, "- **%s**: %d\n", t("Workers"), s.Settings.Workers)
	fmt.Fprintf(&b, "- **%s**: %s\n", t("Metadata"), yesNo(t, !s.Settings.SkipMetadata))
	if s.Settings.MaxPixels > 0 {
		fmt.Fprintf(&b, "- **%s**: %d\n", t("Pixel Limit"), s.Settings.MaxPixels)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Results"))
	fmt.Fprintf(&b, "%s: %d / %s: %d\n\n", t("Identified"), s.Succeeded(), t("Failed"), s.Failed())

	if s.Succeeded() > 0 {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			t("File"), t("Format"), t("Size"), t("Layout"), t("Alpha"), t("File Size"), t("Metadata"))
		b.WriteString("|---|---|---|---|---|---:|---|\n")
		for _, e := range s.Files {
			if e.Image == nil {
				continue
			}
			d := e.Image
			fmt.Fprintf(&b, "| %s | %s | %dx%d | %s | %s | %s | %s |\n",
				escape(e.Path), d.Format, d.Width, d.Height, d.Layout, d.Alpha, formatBytes(e.Size), metadataKinds(d.Metadata.Exif, d.Metadata.XMP, d.Metadata.ICC, d.Metadata.CICP, d.Metadata.Chromaticity))
		}
		b.WriteString("\n")
	}

	if s.Failed() > 0 {
		fmt.Fprintf(&b, "## %s\n\n", t("Failures"))
		for _, e := range s.Files {
			if e.Image != nil {
				continue
			}
			if e.ErrorKind != "" {
				fmt.Fprintf(&b, "- `%s` (%s): %s\n", e.Path, e.ErrorKind, e.Error)
			} else {
				fmt.Fprintf(&b, "- `%s`: %s\n", e.Path, e.Error)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	footer := fmt.Sprintf("%s %s", t("Generated at"), s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if f.version != "" {
		footer += fmt.Sprintf(" (imgbridge %s)", f.version)
	}
	b.WriteString(footer + "\n")
	return b.String()
}

func yesNo(t func(string) string, v bool) string {
	if v {
		return t("Yes")
	}
	return t("No")
}

func metadataKinds(exif, xmp, icc, cicp, chrm bool) string {
	var kinds []string
	for _, k := range []struct {
		name string
		ok   bool
	}{{"Exif", exif}, {"XMP", xmp}, {"ICC", icc}, {"CICP", cicp}, {"cHRM", chrm}} {
		if k.ok {
			kinds = append(kinds, k.name)
		}
	}
	if len(kinds) == 0 {
		return "-"
	}
	return strings.Join(kinds, ", ")
}

// escape keeps pipes in file names from breaking the table.
func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// formatBytes formats a byte count with binary units.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 2; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMG"[exp])
}
