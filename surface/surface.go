package surface

import (
	"image"
	"image/color"
	"image/draw"
)

// Surface is the only view of an image a dithering algorithm gets.
// Pixels are packed as 0xAARRGGBB, non-premultiplied.
// Coordinates start at (0, 0) regardless of the backing image's bounds.
type Surface interface {
	Width() int
	Height() int
	GetPixel(x, y int) uint32
	SetPixel(x, y int, argb uint32)
}

// Adapter exposes a draw.Image as a Surface
type Adapter struct {
	img draw.Image
}

// New wraps img. Width and height always follow img's current bounds.
func New(img draw.Image) *Adapter {
	return &Adapter{img: img}
}

func (a *Adapter) Width() int {
	return a.img.Bounds().Dx()
}

func (a *Adapter) Height() int {
	return a.img.Bounds().Dy()
}

// GetPixel reads one pixel straight from the backing storage where the
// concrete type is known, and through the color model otherwise.
func (a *Adapter) GetPixel(x, y int) uint32 {
	min := a.img.Bounds().Min
	switch m := a.img.(type) {
	case *image.Gray:
		v := uint32(m.Pix[m.PixOffset(min.X+x, min.Y+y)])
		return 0xff000000 | v<<16 | v<<8 | v
	case *image.NRGBA:
		i := m.PixOffset(min.X+x, min.Y+y)
		s := m.Pix[i : i+4 : i+4]
		return Pack(s[0], s[1], s[2], s[3])
	case *image.RGBA:
		i := m.PixOffset(min.X+x, min.Y+y)
		s := m.Pix[i : i+4 : i+4]
		c := color.NRGBAModel.Convert(color.RGBA{R: s[0], G: s[1], B: s[2], A: s[3]}).(color.NRGBA)
		return Pack(c.R, c.G, c.B, c.A)
	}
	c := color.NRGBAModel.Convert(a.img.At(min.X+x, min.Y+y)).(color.NRGBA)
	return Pack(c.R, c.G, c.B, c.A)
}

// SetPixel writes one pixel. Gray backings store the luminance of argb.
func (a *Adapter) SetPixel(x, y int, argb uint32) {
	min := a.img.Bounds().Min
	r, g, b, al := Unpack(argb)
	switch m := a.img.(type) {
	case *image.Gray:
		m.Pix[m.PixOffset(min.X+x, min.Y+y)] = color.GrayModel.Convert(color.NRGBA{R: r, G: g, B: b, A: al}).(color.Gray).Y
		return
	case *image.NRGBA:
		i := m.PixOffset(min.X+x, min.Y+y)
		s := m.Pix[i : i+4 : i+4]
		s[0], s[1], s[2], s[3] = r, g, b, al
		return
	case *image.RGBA:
		c := color.RGBAModel.Convert(color.NRGBA{R: r, G: g, B: b, A: al}).(color.RGBA)
		i := m.PixOffset(min.X+x, min.Y+y)
		s := m.Pix[i : i+4 : i+4]
		s[0], s[1], s[2], s[3] = c.R, c.G, c.B, c.A
		return
	}
	a.img.Set(min.X+x, min.Y+y, color.NRGBA{R: r, G: g, B: b, A: al})
}

// Pack builds a 0xAARRGGBB value
func Pack(r, g, b, a uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// Unpack splits a 0xAARRGGBB value
func Unpack(argb uint32) (r, g, b, a uint8) {
	return uint8(argb >> 16), uint8(argb >> 8), uint8(argb), uint8(argb >> 24)
}

// Luminance returns the grey level of a packed pixel using the same
// weights as color.GrayModel.
func Luminance(argb uint32) uint8 {
	r, g, b, a := Unpack(argb)
	return color.GrayModel.Convert(color.NRGBA{R: r, G: g, B: b, A: a}).(color.Gray).Y
}
