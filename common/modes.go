package common

import (
	"fmt"
	"image"
	"strings"
)

// ConversionMode selects what happens to an image after resizing.
// The set is closed: each mode calls exactly one ModeVisitor method, so a
// new mode does not compile until every visitor handles it.
type ConversionMode interface {
	fmt.Stringer
	Accept(v ModeVisitor) (image.Image, error)
}

// ModeVisitor handles every ConversionMode. A nil image means no artifact.
type ModeVisitor interface {
	VisitNone() (image.Image, error)
	VisitColor() (image.Image, error)
	VisitGreyscale() (image.Image, error)
	VisitDither() (image.Image, error)
}

type (
	// ModeNone produces nothing
	ModeNone struct{}
	// ModeColor passes the resized image through
	ModeColor struct{}
	// ModeGreyscale reduces to a single luminance channel
	ModeGreyscale struct{}
	// ModeDither hands the image to a dither algorithm
	ModeDither struct{}
)

func (ModeNone) Accept(v ModeVisitor) (image.Image, error)      { return v.VisitNone() }
func (ModeColor) Accept(v ModeVisitor) (image.Image, error)     { return v.VisitColor() }
func (ModeGreyscale) Accept(v ModeVisitor) (image.Image, error) { return v.VisitGreyscale() }
func (ModeDither) Accept(v ModeVisitor) (image.Image, error)    { return v.VisitDither() }

func (ModeNone) String() string      { return "none" }
func (ModeColor) String() string     { return "color" }
func (ModeGreyscale) String() string { return "greyscale" }
func (ModeDither) String() string    { return "dither" }

// Modes lists every conversion mode
func Modes() []ConversionMode {
	return []ConversionMode{ModeNone{}, ModeColor{}, ModeGreyscale{}, ModeDither{}}
}

// ParseConversionMode maps a configuration string to a mode
func ParseConversionMode(s string) (ConversionMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "grayscale" {
		s = "greyscale"
	}
	for _, m := range Modes() {
		if m.String() == s {
			return m, nil
		}
	}
	return nil, fmt.Errorf("unknown conversion mode %q", s)
}
