package formats

import "strings"

// Info describes a supported format for capability listings, file picker
// filters and content negotiation.
type Info struct {
	Tag             Tag      `json:"tag"`
	Name            string   `json:"name"`
	DefaultMIMEType string   `json:"default_mime_type"`
	MIMETypes       []string `json:"mime_types"`
	FileExtensions  []string `json:"file_extensions"`
}

// catalog is read-only after package initialisation.
var catalog = []Info{
	{
		Tag:             Avif,
		Name:            "AVIF",
		DefaultMIMEType: "image/avif",
		MIMETypes:       []string{"image/avif"},
		FileExtensions:  []string{"avif"},
	},
	{
		Tag:             OpenExr,
		Name:            "OpenEXR",
		DefaultMIMEType: "image/x-exr",
		MIMETypes:       []string{"image/x-exr"},
		FileExtensions:  []string{"exr"},
	},
	{
		Tag:             Heic,
		Name:            "HEIC",
		DefaultMIMEType: "image/heic",
		MIMETypes:       []string{"image/heic"},
		FileExtensions:  []string{"heic", "heif"},
	},
}

// Supported returns the catalog of supported formats. The returned slice is
// a copy and may be modified by the caller.
func Supported() []Info {
	out := make([]Info, len(catalog))
	for i, info := range catalog {
		out[i] = info.clone()
	}
	return out
}

// Lookup returns the catalog entry for t.
func Lookup(t Tag) (Info, bool) {
	for _, info := range catalog {
		if info.Tag == t {
			return info.clone(), true
		}
	}
	return Info{}, false
}

// ByExtension finds a format by file extension, with or without the leading
// dot. Matching is case insensitive.
func ByExtension(ext string) (Info, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, info := range catalog {
		for _, e := range info.FileExtensions {
			if e == ext {
				return info.clone(), true
			}
		}
	}
	return Info{}, false
}

// ByMIMEType finds a format by MIME type. Parameters after ';' are ignored.
func ByMIMEType(mime string) (Info, bool) {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, info := range catalog {
		for _, m := range info.MIMETypes {
			if m == mime {
				return info.clone(), true
			}
		}
	}
	return Info{}, false
}

func (i Info) clone() Info {
	i.MIMETypes = append([]string(nil), i.MIMETypes...)
	i.FileExtensions = append([]string(nil), i.FileExtensions...)
	return i
}
