package common

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"norsetinge-images/dither"
	"norsetinge-images/surface"
)

func writeTestImage(t *testing.T, dir, name string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}

	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()

	switch filepath.Ext(name) {
	case ".jpg", ".jpeg":
		require.NoError(t, jpeg.Encode(f, img, nil))
	default:
		require.NoError(t, png.Encode(f, img))
	}
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, _, err := image.Decode(f)
	require.NoError(t, err)
	return img
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func options(mode ConversionMode, format SaveFormat) Options {
	return Options{
		Mode:      mode,
		Format:    format,
		Algorithm: dither.Threshold{},
		Threshold: 128,
		MaxWidth:  1200,
	}
}

func TestConvertImageColorResizesLandscape(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "photo.jpg", 4000, 3000)

	artifact, ok, err := ConvertImage(dir, "photo.jpg", options(ModeColor{}, FormatJPEGHigh))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "photo_processed.jpeg", artifact)

	img := decodeFile(t, filepath.Join(dir, artifact))
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 900, img.Bounds().Dy())
}

func TestConvertImageGreyscaleKeepsSmallImage(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "icon.png", 50, 50)

	artifact, ok, err := ConvertImage(dir, "icon.png", options(ModeGreyscale{}, FormatPNG))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "icon_processed.png", artifact)

	img := decodeFile(t, filepath.Join(dir, artifact))
	require.IsType(t, &image.Gray{}, img)
	assert.Equal(t, image.Rect(0, 0, 50, 50), img.Bounds())
}

func TestConvertImageModeNoneWritesNothing(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "big.png", 2000, 1000)
	writeTestImage(t, dir, "small.png", 20, 10)

	for _, name := range []string{"big.png", "small.png"} {
		artifact, ok, err := ConvertImage(dir, name, options(ModeNone{}, FormatPNG))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, artifact)
	}
	assert.ElementsMatch(t, []string{"big.png", "small.png"}, listDir(t, dir))
}

func TestConvertImageMissingSource(t *testing.T) {
	dir := t.TempDir()

	for _, mode := range Modes() {
		artifact, ok, err := ConvertImage(dir, "nope.png", options(mode, FormatJPEGLow))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, artifact)
	}
	assert.Empty(t, listDir(t, dir))
}

func TestConvertImageCorruptSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not an image"), 0644))

	_, ok, err := ConvertImage(dir, "broken.png", options(ModeColor{}, FormatPNG))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"broken.png"}, listDir(t, dir))
}

func TestConvertImageReplacesStaleArtifact(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "hero.png", 64, 48)

	_, ok, err := ConvertImage(dir, "hero.png", options(ModeColor{}, FormatPNG))
	require.NoError(t, err)
	require.True(t, ok)
	require.FileExists(t, filepath.Join(dir, "hero_processed.png"))

	_, ok, err = ConvertImage(dir, "hero.png", options(ModeColor{}, FormatJPEGHigh))
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoFileExists(t, filepath.Join(dir, "hero_processed.png"))
	assert.FileExists(t, filepath.Join(dir, "hero_processed.jpeg"))

	_, ok, err = ConvertImage(dir, "hero.png", options(ModeColor{}, FormatPNG))
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoFileExists(t, filepath.Join(dir, "hero_processed.jpeg"))
	assert.FileExists(t, filepath.Join(dir, "hero_processed.png"))
}

func TestConvertImagePNGIsByteStable(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "logo.png", 1600, 900)
	opts := options(ModeDither{}, FormatPNG)
	opts.Algorithm, _ = dither.ByName("floyd-steinberg", false)

	artifact, ok, err := ConvertImage(dir, "logo.png", opts)
	require.NoError(t, err)
	require.True(t, ok)
	first, err := os.ReadFile(filepath.Join(dir, artifact))
	require.NoError(t, err)

	_, _, err = ConvertImage(dir, "logo.png", opts)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, artifact))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestConvertImageJPEGIsDimensionallyStable(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "banner.png", 1500, 500)
	opts := options(ModeColor{}, FormatJPEGMedium)

	artifact, _, err := ConvertImage(dir, "banner.png", opts)
	require.NoError(t, err)
	first := decodeFile(t, filepath.Join(dir, artifact)).Bounds()

	_, _, err = ConvertImage(dir, "banner.png", opts)
	require.NoError(t, err)
	assert.Equal(t, first, decodeFile(t, filepath.Join(dir, artifact)).Bounds())
}

// stripes writes alternating columns and records what it saw
type stripes struct {
	calls     int
	threshold int
	srcW      int
	srcH      int
}

func (s *stripes) Process(src, dst surface.Surface, threshold int) {
	s.calls++
	s.threshold = threshold
	s.srcW, s.srcH = src.Width(), src.Height()
	for y := 0; y < dst.Height(); y++ {
		for x := 0; x < dst.Width(); x++ {
			if x%2 == 0 {
				dst.SetPixel(x, y, 0xff000000)
			} else {
				dst.SetPixel(x, y, 0xffffffff)
			}
		}
	}
}

func TestConvertImageDitherDelegatesToAlgorithm(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "art.png", 2400, 600)

	alg := &stripes{}
	opts := options(ModeDither{}, FormatPNG)
	opts.Algorithm = alg
	opts.Threshold = 77

	artifact, ok, err := ConvertImage(dir, "art.png", opts)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 1, alg.calls)
	assert.Equal(t, 77, alg.threshold)
	assert.Equal(t, 1200, alg.srcW)
	assert.Equal(t, 300, alg.srcH)

	img := decodeFile(t, filepath.Join(dir, artifact))
	grey, ok := img.(*image.Gray)
	require.True(t, ok, "dither output should be single-channel, got %T", img)
	require.Equal(t, image.Rect(0, 0, 1200, 300), grey.Bounds())
	for y := 0; y < 300; y += 37 {
		for x := 0; x < 1200; x += 13 {
			want := uint8(0)
			if x%2 == 1 {
				want = 255
			}
			require.Equal(t, want, grey.GrayAt(x, y).Y, "pixel %d,%d", x, y)
		}
	}
}

func TestDitherDoesNotTouchSource(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 200
	}

	out := Dither(src, inPlace{}, 128)
	assert.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())
	for _, v := range src.Pix {
		assert.Equal(t, uint8(200), v)
	}
}

// inPlace scribbles over its source before writing the destination
type inPlace struct{}

func (inPlace) Process(src, dst surface.Surface, threshold int) {
	for y := 0; y < src.Height(); y++ {
		for x := 0; x < src.Width(); x++ {
			src.SetPixel(x, y, 0xff000000)
			dst.SetPixel(x, y, src.GetPixel(x, y))
		}
	}
}

func TestGreyscaleSingleChannelSameSize(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 40, 30))
	src.Set(10, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	grey := Greyscale(src)
	assert.Equal(t, image.Rect(0, 0, 30, 20), grey.Bounds())
	assert.Equal(t, uint8(255), grey.GrayAt(0, 0).Y)
}

func TestConvertImageWebP(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "cover.png", 40, 30)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover_processed.jpeg"), []byte("old"), 0644))

	artifact, ok, err := ConvertImage(dir, "cover.png", options(ModeColor{}, FormatWebP))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cover_processed.webp", artifact)
	assert.NoFileExists(t, filepath.Join(dir, "cover_processed.jpeg"))

	img := decodeFile(t, filepath.Join(dir, artifact))
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
}

func TestEncodeFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 2, 2))

	err := Encode(filepath.Join(dir, "missing-dir", "x_processed.png"), img, FormatPNG)
	assert.Error(t, err)
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		source string
		format SaveFormat
		want   string
	}{
		{"photo.jpg", FormatPNG, "photo_processed.png"},
		{"photo.jpg", FormatJPEGHigh, "photo_processed.jpeg"},
		{"photo.jpg", FormatJPEGLow, "photo_processed.jpeg"},
		{"archive.tar.png", FormatJPEGMedium, "archive.tar_processed.jpeg"},
		{"noext", FormatPNG, "noext_processed.png"},
		{"posts/cat.webp", FormatWebP, "posts/cat_processed.webp"},
	}

	for _, tt := range tests {
		t.Run(tt.source+"/"+tt.format.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ArtifactName(tt.source, tt.format))
		})
	}
}

func TestIsArtifact(t *testing.T) {
	assert.True(t, IsArtifact("img/photo_processed.jpeg"))
	assert.True(t, IsArtifact("photo_processed.png"))
	assert.False(t, IsArtifact("photo.png"))
	assert.False(t, IsArtifact("processed.png"))
}

func TestRemoveStaleArtifactsWithoutSiblings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("src"), 0644))

	RemoveStaleArtifacts(filepath.Join(dir, "a_processed.png"), FormatPNG)
	assert.Equal(t, []string{"a.png"}, listDir(t, dir))
}

func TestFormatQualities(t *testing.T) {
	assert.Equal(t, 0.0, FormatPNG.Quality())
	assert.Equal(t, 0.85, FormatJPEGHigh.Quality())
	assert.Equal(t, 0.65, FormatJPEGMedium.Quality())
	assert.Equal(t, 0.50, FormatJPEGLow.Quality())
	assert.Equal(t, []string{"png", "jpeg", "webp"}, ArtifactExtensions())
}

func TestParseModeAndFormat(t *testing.T) {
	m, err := ParseConversionMode("Grayscale")
	require.NoError(t, err)
	assert.Equal(t, ModeGreyscale{}, m)

	_, err = ParseConversionMode("sepia")
	assert.Error(t, err)

	f, err := ParseSaveFormat("jpeg-medium")
	require.NoError(t, err)
	assert.Equal(t, FormatJPEGMedium, f)

	_, err = ParseSaveFormat("gif")
	assert.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "valid", opts: options(ModeColor{}, FormatPNG)},
		{name: "missing mode", opts: options(nil, FormatPNG), wantErr: true},
		{name: "missing format", opts: options(ModeColor{}, nil), wantErr: true},
		{name: "zero width", opts: Options{Mode: ModeColor{}, Format: FormatPNG}, wantErr: true},
		{name: "threshold too high", opts: Options{Mode: ModeColor{}, Format: FormatPNG, MaxWidth: 1, Threshold: 256}, wantErr: true},
		{name: "dither without algorithm", opts: Options{Mode: ModeDither{}, Format: FormatPNG, MaxWidth: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsSourceImage(t *testing.T) {
	assert.True(t, IsSourceImage("a/b/photo.JPG"))
	assert.True(t, IsSourceImage("scan.tiff"))
	assert.False(t, IsSourceImage("photo_processed.png"))
	assert.False(t, IsSourceImage(".photo.png"))
	assert.False(t, IsSourceImage("notes.md"))
}

func TestRemoveArtifacts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "a_processed.png", "a_processed.jpeg", "b_processed.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	RemoveArtifacts(dir, "a.png")
	assert.ElementsMatch(t, []string{"a.png", "b_processed.png"}, listDir(t, dir))
}

func TestEncodeRemovesStaleArtifactEvenWhenWriteFails(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "x_processed.png")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))
	// A directory in the way makes creating the new artifact fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, "x_processed.jpeg"), 0755))

	err := Encode(filepath.Join(dir, "x_processed.jpeg"), image.NewGray(image.Rect(0, 0, 2, 2)), FormatJPEGHigh)
	assert.Error(t, err)
	assert.NoFileExists(t, stale)
}

// brokenFormat writes a few bytes and then fails
type brokenFormat struct{}

func (brokenFormat) String() string    { return "broken" }
func (brokenFormat) Extension() string { return "png" }
func (brokenFormat) Quality() float64  { return 0 }

func (brokenFormat) Encode(w io.Writer, img image.Image) error {
	if _, err := w.Write([]byte("partial")); err != nil {
		return err
	}
	return errors.New("encoder gave up")
}

func TestEncodeFailureLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "y_processed.png")

	err := Encode(path, image.NewGray(image.Rect(0, 0, 2, 2)), brokenFormat{})
	assert.ErrorContains(t, err, "encoder gave up")
	assert.NoFileExists(t, path)
}

func TestConvertImageRejectsInvalidOptions(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "a.png", 20, 10)

	zeroWidth := options(ModeColor{}, FormatPNG)
	zeroWidth.MaxWidth = 0

	for name, opts := range map[string]Options{
		"zero options": {},
		"zero width":   zeroWidth,
	} {
		t.Run(name, func(t *testing.T) {
			artifact, ok, err := ConvertImage(dir, "a.png", opts)
			assert.ErrorContains(t, err, "invalid options")
			assert.False(t, ok)
			assert.Empty(t, artifact)
		})
	}
	assert.Equal(t, []string{"a.png"}, listDir(t, dir))
}

func TestRemoveArtifactsKeepsOtherSources(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.png", "c_processed.webp", "c_processed.jpeg", "cc_processed.jpeg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	RemoveArtifacts(dir, "c.png")
	assert.ElementsMatch(t, []string{"c.png", "cc_processed.jpeg"}, listDir(t, dir))
}
