// Package params turns user intent (tile, code-block and level strings plus
// feature toggles) into a validated lossless JPEG 2000 encoder configuration.
package params

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Coding-style bits of the COD marker.
const (
	StylePrecincts CodingStyle = 0x01
	StyleSOP       CodingStyle = 0x02
	StyleEPH       CodingStyle = 0x04
)

// CodingStyle is the Scod bit set.
type CodingStyle uint8

func (s CodingStyle) Has(bit CodingStyle) bool { return s&bit != 0 }

// Progression is a packet progression order.
type Progression string

// RPCL is the only order Build produces.
const RPCL Progression = "RPCL"

const (
	MinBlock       = 4
	MaxBlock       = 1024
	MaxPrecinct    = 32768
	MaxResolutions = 33

	// TilePartsByResolution is the tile-part divider flag for resolution splits.
	TilePartsByResolution byte = 'R'

	finePrecinct   = 256
	coarsePrecinct = 128
)

// Size is a width/height pair.
type Size struct {
	W, H int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.W, s.H) }

// Toggles are the independently switchable codestream features.
type Toggles struct {
	Precincts             bool
	SOP                   bool
	EPH                   bool
	TilePartsByResolution bool
	MCT                   bool
}

// DefaultToggles enables everything.
func DefaultToggles() Toggles {
	return Toggles{Precincts: true, SOP: true, EPH: true, TilePartsByResolution: true, MCT: true}
}

// Request is the raw input to Build.
type Request struct {
	Tile       string // "WxH"
	Block      string // "WxH"
	Levels     string // positive integer or "auto"
	Width      int
	Height     int
	Components int
	Toggles    Toggles
}

// Config is a complete lossless encoder configuration.
type Config struct {
	Irreversible bool
	TileOrigin   Size
	Tile         Size
	Block        Size
	Resolutions  int
	// Precincts holds one size per resolution, finest first. Empty when
	// precinct partitioning is off.
	Precincts    []Size
	Progression  Progression
	Style        CodingStyle
	TilePartFlag byte // 0 = no tile-parts
	MCT          int
	Layers       int
	Rates        []float64
	DistoAlloc   bool
	FixedQuality bool
}

// ValidationError names the offending argument and value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ParseWH parses "WxH" into a Size of non-negative integers.
func ParseWH(field, s string) (Size, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, &ValidationError{Field: field, Value: s, Reason: "use format WxH, e.g. 1024x1024"}
	}
	w, errW := strconv.ParseUint(ws, 10, 31)
	h, errH := strconv.ParseUint(hs, 10, 31)
	if errW != nil || errH != nil {
		return Size{}, &ValidationError{Field: field, Value: s, Reason: "width and height must be non-negative integers"}
	}
	return Size{W: int(w), H: int(h)}, nil
}

// AutoLevels derives a resolution count from the smaller image side:
// floor(log2(min(w,h))) - 1, clamped to [3,8].
func AutoLevels(w, h int) int {
	m := min(w, h)
	if m <= 0 {
		return 3
	}
	k := bits.Len(uint(m)) - 2
	return min(max(k, 3), 8)
}

func validBlock(v int) bool {
	return v >= MinBlock && v <= MaxBlock && v&(v-1) == 0
}

// Build validates req and returns the encoder configuration.
func Build(req Request) (Config, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return Config{}, &ValidationError{Field: "image size", Value: fmt.Sprintf("%dx%d", req.Width, req.Height), Reason: "must be positive"}
	}

	tile, err := ParseWH("tile size", req.Tile)
	if err != nil {
		return Config{}, err
	}

	block, err := ParseWH("code-block size", req.Block)
	if err != nil {
		return Config{}, err
	}
	if !validBlock(block.W) || !validBlock(block.H) {
		return Config{}, &ValidationError{Field: "code-block size", Value: req.Block, Reason: "must be power of two in 4..=1024"}
	}

	levels, err := parseLevels(req.Levels, req.Width, req.Height)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Tile:        tile,
		Block:       block,
		Resolutions: levels,
		Progression: RPCL,
		Layers:      1,
		Rates:       []float64{0},
		DistoAlloc:  true,
	}
	t := req.Toggles
	if t.Precincts {
		cfg.Style |= StylePrecincts
		cfg.Precincts = PrecinctSizes(levels, block)
	}
	if t.SOP {
		cfg.Style |= StyleSOP
	}
	if t.EPH {
		cfg.Style |= StyleEPH
	}
	if t.TilePartsByResolution {
		cfg.TilePartFlag = TilePartsByResolution
	}
	if t.MCT && req.Components == 3 {
		cfg.MCT = 1
	}
	return cfg, nil
}

func parseLevels(s string, w, h int) (int, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "auto") {
		return AutoLevels(w, h), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxResolutions {
		return 0, &ValidationError{Field: "levels", Value: s, Reason: fmt.Sprintf("must be auto or an integer in 1..=%d", MaxResolutions)}
	}
	return n, nil
}

// PrecinctSizes returns per-resolution precinct sizes, finest first:
// 256x256 everywhere except 128x128 at the coarsest level, each side
// rounded up to a power of two no smaller than the code-block side.
func PrecinctSizes(levels int, block Size) []Size {
	out := make([]Size, levels)
	for r := range out {
		nominal := finePrecinct
		if r == levels-1 {
			nominal = coarsePrecinct
		}
		out[r] = Size{W: pow2AtLeast(nominal, block.W), H: pow2AtLeast(nominal, block.H)}
	}
	return out
}

func pow2AtLeast(x, floor int) int {
	v := max(x, floor, 1)
	p := 1
	for p < v && p < MaxPrecinct {
		p <<= 1
	}
	return p
}
