package common

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// TargetSize computes the dimensions an image of w x h is scaled to so that
// it fits maxWidth. Images at or below maxWidth keep their size.
func TargetSize(w, h, maxWidth int) (int, int) {
	if w <= maxWidth || w <= 0 {
		return w, h
	}

	ratio := float64(h) / float64(w)
	if ratio <= 1 {
		tw := maxWidth
		th := int(math.Ceil(float64(tw) * ratio))
		return tw, max(th, 1)
	}

	// Portrait: the same bound is applied to the height
	th := maxWidth
	tw := int(math.Round(float64(th) / ratio))
	return max(tw, 1), th
}

// Resize returns img unchanged when it already fits maxWidth, otherwise a
// bilinear-scaled copy. Alpha-capable sources scale into NRGBA, opaque
// ones into RGBA.
func Resize(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	tw, th := TargetSize(b.Dx(), b.Dy(), maxWidth)
	if tw == b.Dx() && th == b.Dy() {
		return img
	}

	rect := image.Rect(0, 0, tw, th)
	var dst draw.Image
	if HasAlpha(img) {
		dst = image.NewNRGBA(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	draw.BiLinear.Scale(dst, rect, img, b, draw.Src, nil)
	return dst
}

// HasAlpha reports whether img carries transparency. Images that know
// they are fully opaque, like a truecolor PNG decoded into RGBA, do not.
func HasAlpha(img image.Image) bool {
	if p, ok := img.ColorModel().(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	}
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model, color.YCbCrModel, color.CMYKModel:
		return false
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return false
	}
	return true
}
