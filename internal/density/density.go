// Package density models the physical resolution of a raster image.
package density

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit is the physical unit a density is expressed in.
type Unit uint8

const (
	UnitNone Unit = iota
	UnitInch
	UnitCentimeter
)

func (u Unit) String() string {
	switch u {
	case UnitInch:
		return "inch"
	case UnitCentimeter:
		return "centimeter"
	default:
		return "none"
	}
}

// TIFFCode returns the ResolutionUnit tag value for u (1 none, 2 inch, 3 centimeter).
func (u Unit) TIFFCode() uint16 {
	switch u {
	case UnitInch:
		return 2
	case UnitCentimeter:
		return 3
	default:
		return 1
	}
}

// UnitFromTIFF maps a ResolutionUnit tag value to a Unit.
func UnitFromTIFF(code uint16) Unit {
	switch code {
	case 2:
		return UnitInch
	case 3:
		return UnitCentimeter
	default:
		return UnitNone
	}
}

// ParseUnit accepts the spellings used on the command line.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inch", "in", "dpi":
		return UnitInch, nil
	case "cm", "centimeter", "centimetre", "dpcm":
		return UnitCentimeter, nil
	case "none", "":
		return UnitNone, nil
	}
	return UnitNone, fmt.Errorf("unknown resolution unit %q (use inch, cm or none)", s)
}

// Resolution is a horizontal/vertical density pair.
// A nil *Resolution means the source carried no usable density.
type Resolution struct {
	X    float64
	Y    float64
	Unit Unit
}

func (r Resolution) String() string {
	return fmt.Sprintf("%gx%g per %s", r.X, r.Y, r.Unit)
}

// PixelsPerMetre converts both densities to pixels per metre.
func (r Resolution) PixelsPerMetre() (x, y float64) {
	return PixelsPerMetre(r.X, r.Unit), PixelsPerMetre(r.Y, r.Unit)
}

// PixelsPerMetre converts a density to pixels per metre. A unitless density
// is interpreted as per inch, which is what TIFF writers almost always mean.
func PixelsPerMetre(v float64, u Unit) float64 {
	if u == UnitCentimeter {
		return v / 0.01
	}
	return v / 0.0254
}

// Parse reads "300" or "300x600" (horizontal x vertical).
func Parse(s string, u Unit) (*Resolution, error) {
	xs, ys, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		ys = xs
	}
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid density %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid density %q: %w", s, err)
	}
	if x <= 0 || y <= 0 {
		return nil, fmt.Errorf("invalid density %q: must be positive", s)
	}
	return &Resolution{X: x, Y: y, Unit: u}, nil
}
