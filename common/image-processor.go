package common

// Image processor for site-ready image assets
//
// One call converts one source image:
// 1. Decode the source (missing or broken files are skipped, not errors)
// 2. Scale down to the configured maximum width, keeping the aspect ratio
// 3. Apply the conversion mode (none, color, greyscale or dither)
// 4. Remove stale artifacts left by other output formats
// 5. Encode <base>_processed.<ext> next to the source

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"norsetinge-images/dither"
	"norsetinge-images/surface"
)

// ArtifactSuffix is appended to the source base name of every artifact
const ArtifactSuffix = "_processed"

// Options is the immutable configuration a conversion runs with
type Options struct {
	Mode      ConversionMode
	Format    SaveFormat
	Algorithm dither.Algorithm
	Threshold int
	MaxWidth  int
}

// Validate checks that every field needed by the pipeline is usable
func (o Options) Validate() error {
	if o.Mode == nil {
		return fmt.Errorf("conversion mode is required")
	}
	if o.Format == nil {
		return fmt.Errorf("save format is required")
	}
	if o.MaxWidth <= 0 {
		return fmt.Errorf("max image width must be positive, got %d", o.MaxWidth)
	}
	if o.Threshold < 0 || o.Threshold > 255 {
		return fmt.Errorf("threshold must be within 0-255, got %d", o.Threshold)
	}
	if _, ok := o.Mode.(ModeDither); ok && o.Algorithm == nil {
		return fmt.Errorf("dither mode requires an algorithm")
	}
	return nil
}

// ConvertImage converts name, relative to dir, and returns the artifact
// name relative to dir. ok is false when no artifact was produced: the
// source is missing, cannot be decoded, or the mode is none. err is set
// when opts are invalid or writing the artifact fails.
func ConvertImage(dir, name string, opts Options) (artifact string, ok bool, err error) {
	if err := opts.Validate(); err != nil {
		return "", false, fmt.Errorf("invalid options: %w", err)
	}

	img := DecodeAndResize(dir, name, opts.MaxWidth)
	if img == nil {
		return "", false, nil
	}

	result, err := opts.Mode.Accept(&dispatcher{img: img, opts: opts})
	if err != nil {
		return "", false, fmt.Errorf("failed to convert %s: %w", name, err)
	}
	if result == nil {
		return "", false, nil
	}

	artifact = ArtifactName(name, opts.Format)
	if err := Encode(filepath.Join(dir, artifact), result, opts.Format); err != nil {
		return "", false, err
	}

	log.Printf("✅ Wrote %s (%dx%d, %s)", artifact, result.Bounds().Dx(), result.Bounds().Dy(), opts.Mode)
	return artifact, true, nil
}

// DecodeAndResize loads dir/name and scales it to maxWidth. It returns nil
// when the file does not exist or cannot be decoded.
func DecodeAndResize(dir, name string, maxWidth int) image.Image {
	path := filepath.Join(dir, name)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("Source not found, skipping: %s", path)
		} else {
			log.Printf("⚠️  Failed to open %s: %v", path, err)
		}
		return nil
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		log.Printf("⚠️  Failed to decode %s: %v", path, err)
		return nil
	}

	return Resize(img, maxWidth)
}

// dispatcher applies a conversion mode to one resized image
type dispatcher struct {
	img  image.Image
	opts Options
}

func (d *dispatcher) VisitNone() (image.Image, error) {
	return nil, nil
}

func (d *dispatcher) VisitColor() (image.Image, error) {
	return d.img, nil
}

func (d *dispatcher) VisitGreyscale() (image.Image, error) {
	return Greyscale(d.img), nil
}

func (d *dispatcher) VisitDither() (image.Image, error) {
	if d.opts.Algorithm == nil {
		return nil, fmt.Errorf("no dither algorithm configured")
	}
	return Dither(d.img, d.opts.Algorithm, d.opts.Threshold), nil
}

// Greyscale draws img onto a new single-channel image of the same size
func Greyscale(img image.Image) *image.Gray {
	b := img.Bounds()
	grey := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(grey, grey.Bounds(), img, b.Min, draw.Src)
	return grey
}

// Dither runs alg from a copy of img into a new blank single-channel image
// of the same size. Every output pixel is whatever alg wrote.
func Dither(img image.Image, alg dither.Algorithm, threshold int) *image.Gray {
	b := img.Bounds()
	src := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)

	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	alg.Process(surface.New(src), surface.New(dst), threshold)
	return dst
}

// Encode writes img to path in format, after removing artifacts for the
// same source in any other format. A failed write leaves no file behind.
func Encode(path string, img image.Image, format SaveFormat) error {
	RemoveStaleArtifacts(path, format)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := format.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to encode %s as %s: %w", path, format, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ArtifactName derives the artifact file name for source in format
func ArtifactName(source string, format SaveFormat) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	return base + ArtifactSuffix + "." + format.Extension()
}

// sourceExtensions are the file types a registered decoder can read
var sourceExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsSourceImage reports whether name is an image the pipeline should
// convert: a decodable extension, not hidden, not an artifact itself.
func IsSourceImage(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || IsArtifact(base) {
		return false
	}
	return sourceExtensions[strings.ToLower(filepath.Ext(base))]
}

// IsArtifact reports whether name looks like a generated artifact
func IsArtifact(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), ArtifactSuffix)
}

// RemoveStaleArtifacts deletes the siblings of the artifact at path that
// carry any other known artifact extension.
func RemoveStaleArtifacts(path string, format SaveFormat) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range ArtifactExtensions() {
		if ext == format.Extension() {
			continue
		}
		stale := base + "." + ext
		err := os.Remove(stale)
		switch {
		case err == nil:
			log.Printf("🧹 Removed stale artifact %s", stale)
		case !errors.Is(err, os.ErrNotExist):
			log.Printf("⚠️  Failed to remove stale artifact %s: %v", stale, err)
		}
	}
}

// RemoveArtifacts deletes every artifact generated for dir/name, in any
// format. It is used when the source itself goes away.
func RemoveArtifacts(dir, name string) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for _, ext := range ArtifactExtensions() {
		path := filepath.Join(dir, base+ArtifactSuffix+"."+ext)
		err := os.Remove(path)
		switch {
		case err == nil:
			log.Printf("🧹 Removed orphaned artifact %s", path)
		case !errors.Is(err, os.ErrNotExist):
			log.Printf("⚠️  Failed to remove orphaned artifact %s: %v", path, err)
		}
	}
}
