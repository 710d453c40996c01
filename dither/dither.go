package dither

import (
	"fmt"
	"sort"
	"strings"

	mdither "github.com/makeworld-the-better-one/dither/v2"

	"norsetinge-images/surface"
)

const (
	black = 0xff000000
	white = 0xffffffff
)

// Algorithm turns the pixels of src into a reduced-tone version in dst.
// Both surfaces have the same dimensions. threshold is a grey level in 0-255.
type Algorithm interface {
	Process(src, dst surface.Surface, threshold int)
}

// Threshold maps every pixel to black or white with no error spreading
type Threshold struct{}

func (Threshold) Process(src, dst surface.Surface, threshold int) {
	for y := 0; y < src.Height(); y++ {
		for x := 0; x < src.Width(); x++ {
			if int(surface.Luminance(src.GetPixel(x, y))) >= threshold {
				dst.SetPixel(x, y, white)
			} else {
				dst.SetPixel(x, y, black)
			}
		}
	}
}

// ErrorDiffusion spreads the quantization error of each pixel to its
// unprocessed neighbours using Matrix. The top row of Matrix holds the
// current pixel at the last zero before the first weight.
type ErrorDiffusion struct {
	Matrix mdither.ErrorDiffusionMatrix

	// Serpentine alternates scan direction per row
	Serpentine bool
}

func (e ErrorDiffusion) Process(src, dst surface.Surface, threshold int) {
	w, h := src.Width(), src.Height()
	if w == 0 || h == 0 {
		return
	}
	if len(e.Matrix) == 0 {
		Threshold{}.Process(src, dst, threshold)
		return
	}

	lum := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			lum[y*w+x] = float32(surface.Luminance(src.GetPixel(x, y)))
		}
	}

	cur := e.Matrix.CurrentPixel()
	t := float32(threshold)

	for y := 0; y < h; y++ {
		reverse := e.Serpentine && y%2 == 1
		for i := 0; i < w; i++ {
			x := i
			if reverse {
				x = w - 1 - i
			}

			old := lum[y*w+x]
			var quant float32
			if old >= t {
				quant = 255
				dst.SetPixel(x, y, white)
			} else {
				dst.SetPixel(x, y, black)
			}
			diff := old - quant

			for my, row := range e.Matrix {
				for mx, weight := range row {
					if weight == 0 {
						continue
					}
					dx := mx - cur
					if reverse {
						dx = -dx
					}
					nx, ny := x+dx, y+my
					if nx < 0 || nx >= w || ny >= h {
						continue
					}
					lum[ny*w+nx] += diff * weight
				}
			}
		}
	}
}

var matrices = map[string]mdither.ErrorDiffusionMatrix{
	"floyd-steinberg":     mdither.FloydSteinberg,
	"atkinson":            mdither.Atkinson,
	"jarvis-judice-ninke": mdither.JarvisJudiceNinke,
	"stucki":              mdither.Stucki,
	"burkes":              mdither.Burkes,
	"sierra-lite":         mdither.SierraLite,
}

// ByName returns the algorithm registered under name
func ByName(name string, serpentine bool) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "threshold" {
		return Threshold{}, nil
	}
	m, ok := matrices[name]
	if !ok {
		return nil, fmt.Errorf("unknown dither algorithm %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return ErrorDiffusion{Matrix: m, Serpentine: serpentine}, nil
}

// Names lists every algorithm ByName accepts
func Names() []string {
	names := []string{"threshold"}
	for name := range matrices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
