package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/imgbridge/pkg/adapters/codecdetect"
	"github.com/user/imgbridge/pkg/config"
	"github.com/user/imgbridge/pkg/decoder"
	"github.com/user/imgbridge/pkg/formats"
	"github.com/user/imgbridge/pkg/session"
	"github.com/user/imgbridge/pkg/summarizer"
)

func (e *env) formatsCmd() *cli.Command {
	return &cli.Command{
		Name:  "formats",
		Usage: l10n.T("List the formats this build can decode"),
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: l10n.T("Print JSON")},
		},
		Action: func(c *cli.Context) error {
			var list []formats.Info
			for _, tag := range e.registry.Formats() {
				if info, ok := formats.Lookup(tag); ok {
					list = append(list, info)
				}
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, list)
			}
			for _, info := range list {
				fmt.Fprintf(c.App.Writer, "%-8s %-8s %-12s .%s\n",
					info.Tag, info.Name, info.DefaultMIMEType, strings.Join(info.FileExtensions, " ."))
			}
			return nil
		},
	}
}

func (e *env) detectCmd() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     l10n.T("Detect the container format from the file header"),
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: l10n.T("Print JSON")},
		},
		Action: func(c *cli.Context) error {
			files := c.Args().Slice()
			if len(files) == 0 {
				return cli.Exit(l10n.T("No input files"), 2)
			}
			tags, err := e.cfg.ParseProbeOrder()
			if err != nil {
				return err
			}
			d, err := codecdetect.New(tags...)
			if err != nil {
				return err
			}

			type entry struct {
				File string `json:"file"`
				codecdetect.Result
				Error string `json:"error,omitempty"`
			}
			entries := make([]entry, len(files))
			failed := 0
			for i, path := range files {
				res, err := e.detect(d, path)
				entries[i] = entry{File: path, Result: res}
				if err != nil {
					failed++
					entries[i].Error = err.Error()
					e.log.Error("Failed to identify %s: %s", path, err)
					continue
				}
				e.log.Debug("Identified %s as %s", path, res.Format)
			}

			if c.Bool("json") {
				if err := writeJSON(c.App.Writer, entries); err != nil {
					return err
				}
			} else {
				for _, en := range entries {
					if en.Error != "" {
						continue
					}
					line := fmt.Sprintf("%s: %s", en.File, en.Format)
					if en.MajorBrand != "" {
						line += fmt.Sprintf(" (%s; %s)", en.MajorBrand, strings.Join(en.CompatibleBrands, ","))
					}
					fmt.Fprintln(c.App.Writer, line)
				}
			}
			return failures(failed, len(files))
		},
	}
}

func (e *env) detect(d *codecdetect.Detector, path string) (codecdetect.Result, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return codecdetect.Result{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return d.DetectFromReader(f)
}

func (e *env) identifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "identify",
		Usage:     l10n.T("Describe images without decoding pixels"),
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: l10n.T("Print JSON")},
			&cli.BoolFlag{Name: "skip-metadata", Usage: l10n.T("Skip metadata extraction")},
			&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Usage: l10n.T("Number of files identified in parallel")},
			&cli.StringFlag{Name: "report", Usage: l10n.T("Write a Markdown summary to this path")},
		},
		Action: func(c *cli.Context) error {
			files := c.Args().Slice()
			if len(files) == 0 {
				return cli.Exit(l10n.T("No input files"), 2)
			}
			opts := e.cfg.DecodeOptions()
			if c.Bool("skip-metadata") {
				opts.SkipMetadata = true
			}
			workers := e.cfg.Workers
			if c.IsSet("workers") {
				workers = c.Int("workers")
			}
			if workers > len(files) {
				workers = len(files)
			}
			e.log.Info("Processing %d files with %d workers", len(files), workers)

			results := make([]identifyResult, len(files))
			var failed atomic.Int32
			err := decoder.Batch(c.Context, files, workers, func(ctx context.Context, i int, path string) error {
				results[i] = e.identify(path, opts)
				if results[i].Error != "" {
					failed.Add(1)
				}
				return nil
			})
			if err != nil {
				return err
			}

			if c.Bool("json") {
				if err := writeJSON(c.App.Writer, results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Info != nil {
						fmt.Fprintln(c.App.Writer, r.String())
					}
				}
			}
			if path := c.String("report"); path != "" {
				if err := e.writeReport(path, results, opts, workers); err != nil {
					e.log.Error("Failed to write output: %s", err)
					return err
				}
				e.log.Info("Wrote %s", path)
			}
			return failures(int(failed.Load()), len(files))
		},
	}
}

func (e *env) writeReport(path string, results []identifyResult, opts decoder.Options, workers int) error {
	b := summarizer.NewBuilder().WithSettings(summarizer.Settings{
		ProbeOrder:   e.cfg.ProbeOrder,
		Workers:      workers,
		SkipMetadata: opts.SkipMetadata,
		MaxPixels:    opts.MaxPixels,
	})
	for _, r := range results {
		if r.Info != nil {
			b.AddImage(r.File, r.Size, *r.Info)
		} else {
			b.AddFailure(r.File, r.err)
		}
	}
	f := summarizer.NewMarkdownFormatter(summarizer.WithTranslator(l10n.T), summarizer.WithVersion(version))
	return summarizer.NewWriter(f, e.fs).Write(path, b.Build())
}

type identifyResult struct {
	File  string                   `json:"file"`
	Size  int64                    `json:"size,omitempty"`
	Info  *session.ImageDescriptor `json:"info,omitempty"`
	Error string                   `json:"error,omitempty"`
	Kind  string                   `json:"kind,omitempty"`

	err error
}

// String formats the result as one line: file, format, geometry, layout and
// the metadata kinds present.
func (r identifyResult) String() string {
	d := r.Info
	line := fmt.Sprintf("%s: %s %dx%d %s alpha=%s", r.File, d.Format, d.Width, d.Height, d.Layout, d.Alpha)
	var kinds []string
	m := d.Metadata
	for _, k := range []struct {
		name string
		ok   bool
	}{{"exif", m.Exif}, {"xmp", m.XMP}, {"icc", m.ICC}, {"cicp", m.CICP}, {"chromaticity", m.Chromaticity}} {
		if k.ok {
			kinds = append(kinds, k.name)
		}
	}
	if len(kinds) > 0 {
		line += " [" + strings.Join(kinds, ",") + "]"
	}
	return line
}

func (e *env) identify(path string, opts decoder.Options) identifyResult {
	res := identifyResult{File: path}
	src, err := e.fs.Open(path)
	if err != nil {
		e.log.Error("Failed to open %s: %s", path, err)
		res.Error, res.err = err.Error(), err
		return res
	}
	defer src.Close()

	info, err := e.registry.DetectAndIdentify(src, opts)
	if err != nil {
		e.log.Error("Failed to identify %s: %s", path, err)
		res.Error, res.err = err.Error(), err
		var se *session.Error
		if errors.As(err, &se) {
			res.Kind = se.Kind.String()
		}
		return res
	}
	res.Info = &info.ImageDescriptor
	if size, err := src.Seek(0, io.SeekEnd); err == nil {
		res.Size = size
	}
	return res
}

func (e *env) decodeCmd() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     l10n.T("Decode an image and write a PNG preview"),
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: l10n.T("Output PNG file path")},
			&cli.IntFlag{Name: "max-size", Usage: l10n.T("Longest side of the preview in pixels (0 keeps the full size)")},
			&cli.StringFlag{Name: "background", Usage: l10n.T("Flatten transparency onto a hex colour (e.g. #ffffff)")},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit(l10n.T("Exactly one input file is required"), 2)
			}
			path := c.Args().First()
			preview := e.cfg.Preview
			if c.IsSet("max-size") {
				preview.MaxSize = c.Int("max-size")
			}
			if c.IsSet("background") {
				preview.Background = c.String("background")
			}

			img, err := e.decode(path)
			if err != nil {
				return err
			}
			std, err := img.ToImage()
			if err != nil {
				return err
			}
			if preview.Background != "" {
				std = flatten(std, config.ParseColor(preview.Background))
			}
			if scaled := scale(std, preview.MaxSize); scaled != std {
				b := scaled.Bounds()
				e.log.Info("Scaled preview to %dx%d", b.Dx(), b.Dy())
				std = scaled
			}

			var buf bytes.Buffer
			if err := encodePNG(&buf, std); err != nil {
				return err
			}
			out := c.String("output")
			if err := e.fs.WriteFile(out, buf.Bytes()); err != nil {
				e.log.Error("Failed to write output: %s", err)
				return err
			}
			e.log.Info("Wrote %s", out)
			return nil
		},
	}
}

func (e *env) decode(path string) (decoder.Image, error) {
	src, err := e.fs.Open(path)
	if err != nil {
		e.log.Error("Failed to open %s: %s", path, err)
		return decoder.Image{}, err
	}
	defer src.Close()

	e.log.Info("Decoding %s", path)
	img, err := e.registry.DetectAndDecode(src, e.cfg.DecodeOptions())
	if err != nil {
		e.log.Error("Failed to decode %s: %s", path, err)
		return decoder.Image{}, err
	}
	e.log.Info("Decoded %s: %dx%d %s", path, img.Width, img.Height, img.Layout)
	return img, nil
}

func (e *env) extractCmd() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     l10n.T("Write embedded metadata blobs to files"),
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "exif", Usage: l10n.T("Output path for the Exif blob")},
			&cli.StringFlag{Name: "xmp", Usage: l10n.T("Output path for the XMP packet")},
			&cli.StringFlag{Name: "icc", Usage: l10n.T("Output path for the ICC profile")},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit(l10n.T("Exactly one input file is required"), 2)
			}
			path := c.Args().First()
			src, err := e.fs.Open(path)
			if err != nil {
				e.log.Error("Failed to open %s: %s", path, err)
				return err
			}
			defer src.Close()

			opts := e.cfg.DecodeOptions()
			opts.SkipMetadata = false
			info, err := e.registry.DetectAndIdentify(src, opts)
			if err != nil {
				e.log.Error("Failed to identify %s: %s", path, err)
				return err
			}

			for _, blob := range []struct {
				kind string
				out  string
				data []byte
			}{
				{"Exif", c.String("exif"), info.Blobs.Exif},
				{"XMP", c.String("xmp"), info.Blobs.XMP},
				{"ICC", c.String("icc"), info.Blobs.ICC},
			} {
				if blob.out == "" {
					continue
				}
				if len(blob.data) == 0 {
					e.log.Warn("No %s metadata in %s", blob.kind, path)
					continue
				}
				if err := e.fs.WriteFile(blob.out, blob.data); err != nil {
					e.log.Error("Failed to write output: %s", err)
					return err
				}
				e.log.Info("Wrote %d bytes of %s to %s", len(blob.data), blob.kind, blob.out)
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// failures turns per-file failures into the process exit status.
func failures(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return cli.Exit(l10n.F("%d of %d files failed", failed, total), 1)
}
