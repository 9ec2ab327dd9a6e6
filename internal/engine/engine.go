// Package engine drives the JPEG 2000 compressor.
//
// An Engine turns a validated params.Config plus filled planes into a JP2
// file. Work happens in a Session whose steps (Start, Encode, Finish) can
// each fail; Close releases whatever the session acquired and is safe to
// call on every exit path.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnyUserName/tiff2jp2/internal/params"
)

var (
	ErrUnavailable = errors.New("compression engine not available")
	ErrState       = errors.New("session step out of order")
	ErrImage       = errors.New("unsupported image description")
)

// ColorSpace of the encoded image.
type ColorSpace int

const (
	ColorGray ColorSpace = iota
	ColorSRGB
)

func (c ColorSpace) String() string {
	if c == ColorSRGB {
		return "srgb"
	}
	return "gray"
}

// ImageDesc describes the planes handed to Encode.
type ImageDesc struct {
	Width      int
	Height     int
	Components int
	BitDepth   int
	Signed     bool
	ColorSpace ColorSpace
	ICC        []byte // optional; replaces the enumerated colour space
}

// Validate checks the description against what the converter produces.
func (d ImageDesc) Validate() error {
	switch {
	case d.Width <= 0 || d.Height <= 0:
		return fmt.Errorf("%w: %dx%d", ErrImage, d.Width, d.Height)
	case d.Components != 1 && d.Components != 3:
		return fmt.Errorf("%w: %d components", ErrImage, d.Components)
	case d.BitDepth < 1 || d.BitDepth > 16:
		return fmt.Errorf("%w: %d-bit", ErrImage, d.BitDepth)
	}
	return nil
}

// Options are engine hints.
type Options struct {
	Threads int // 0 = all cores
}

// Engine creates encoding sessions.
type Engine interface {
	// Name identifies the engine on the command line.
	Name() string

	// Available reports whether the engine can run on this host.
	Available() bool

	// Setup validates cfg and img and acquires the session's resources.
	Setup(cfg params.Config, img ImageDesc, opts Options) (Session, error)
}

// Session is one image's compression. Steps must run in order.
type Session interface {
	Start(ctx context.Context, outPath string) error
	Encode(planes [][]int32) error
	Finish() error
	Close() error
}

// Run performs Setup, Start, Encode and Finish, closing the session on
// every path. A Close error is reported only if everything else succeeded.
func Run(ctx context.Context, e Engine, cfg params.Config, img ImageDesc, opts Options, planes [][]int32, outPath string) (err error) {
	s, err := e.Setup(cfg, img, opts)
	if err != nil {
		return fmt.Errorf("%s setup: %w", e.Name(), err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%s close: %w", e.Name(), cerr)
		}
	}()

	if err := s.Start(ctx, outPath); err != nil {
		return fmt.Errorf("%s start: %w", e.Name(), err)
	}
	if err := s.Encode(planes); err != nil {
		return fmt.Errorf("%s encode: %w", e.Name(), err)
	}
	if err := s.Finish(); err != nil {
		return fmt.Errorf("%s finish: %w", e.Name(), err)
	}
	return nil
}

func checkPlanes(img ImageDesc, planes [][]int32) error {
	if len(planes) != img.Components {
		return fmt.Errorf("%w: %d planes for %d components", ErrImage, len(planes), img.Components)
	}
	n := img.Width * img.Height
	for c, p := range planes {
		if len(p) != n {
			return fmt.Errorf("%w: plane %d has %d samples, want %d", ErrImage, c, len(p), n)
		}
	}
	return nil
}
