// Package mask renders class masks as color images.
package mask

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrPaletteTooSmall is returned when a mask has more classes than the
// palette has colors
var ErrPaletteTooSmall = errors.New("palette has fewer colors than the mask has classes")

// RGB is an 8-bit color triple
type RGB struct {
	R, G, B uint8
}

// Hex formats the color as #rrggbb
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Palette maps class index to color
type Palette []RGB

// Colors used when no palette is configured: class 0 magenta, class 1 black
var (
	Magenta = RGB{255, 0, 255}
	Black   = RGB{0, 0, 0}
)

// DefaultPalette returns the two-class palette
func DefaultPalette() Palette {
	return Palette{Magenta, Black}
}

// Validate fails if the palette cannot color every class of a mask with
// the given class count
func (p Palette) Validate(classes int) error {
	if len(p) < classes {
		return fmt.Errorf("%w: %d colors, %d classes", ErrPaletteTooSmall, len(p), classes)
	}
	return nil
}

// ParseColor parses "#rrggbb", "rrggbb" or "#rgb"
func ParseColor(s string) (RGB, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// ParsePalette parses one color per class
func ParsePalette(colors []string) (Palette, error) {
	if len(colors) == 0 {
		return nil, errors.New("empty palette")
	}
	p := make(Palette, len(colors))
	for i, s := range colors {
		c, err := ParseColor(s)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		p[i] = c
	}
	return p, nil
}
