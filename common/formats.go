package common

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"

	"github.com/chai2010/webp"
)

// SaveFormat decides how an artifact is encoded and which extension it
// gets. Every format must implement the full method set.
type SaveFormat interface {
	fmt.Stringer
	// Extension without the dot
	Extension() string
	// Quality in 0-1. Lossless formats report 0 and ignore it.
	Quality() float64
	Encode(w io.Writer, img image.Image) error
}

type pngFormat struct{}

func (pngFormat) String() string    { return "png" }
func (pngFormat) Extension() string { return "png" }
func (pngFormat) Quality() float64  { return 0 }

func (pngFormat) Encode(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	return enc.Encode(w, img)
}

type jpegFormat struct {
	name    string
	quality float64
}

func (f jpegFormat) String() string   { return f.name }
func (jpegFormat) Extension() string  { return "jpeg" }
func (f jpegFormat) Quality() float64 { return f.quality }

func (f jpegFormat) Encode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: percent(f.quality)})
}

type webpFormat struct {
	quality float64
}

func (webpFormat) String() string     { return "webp" }
func (webpFormat) Extension() string  { return "webp" }
func (f webpFormat) Quality() float64 { return f.quality }

func (f webpFormat) Encode(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, &webp.Options{Quality: float32(percent(f.quality))})
}

var (
	FormatPNG        SaveFormat = pngFormat{}
	FormatJPEGHigh   SaveFormat = jpegFormat{name: "jpeg-high", quality: 0.85}
	FormatJPEGMedium SaveFormat = jpegFormat{name: "jpeg-medium", quality: 0.65}
	FormatJPEGLow    SaveFormat = jpegFormat{name: "jpeg-low", quality: 0.50}
	FormatWebP       SaveFormat = webpFormat{quality: 0.85}
)

// Formats lists every save format
func Formats() []SaveFormat {
	return []SaveFormat{FormatPNG, FormatJPEGHigh, FormatJPEGMedium, FormatJPEGLow, FormatWebP}
}

// ParseSaveFormat maps a configuration string to a format
func ParseSaveFormat(s string) (SaveFormat, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range Formats() {
		if f.String() == s {
			return f, nil
		}
	}
	return nil, fmt.Errorf("unknown save format %q", s)
}

// ArtifactExtensions returns the distinct extensions any format can produce
func ArtifactExtensions() []string {
	var exts []string
	seen := make(map[string]bool)
	for _, f := range Formats() {
		if !seen[f.Extension()] {
			seen[f.Extension()] = true
			exts = append(exts, f.Extension())
		}
	}
	return exts
}

func percent(q float64) int {
	return int(math.Round(q * 100))
}
