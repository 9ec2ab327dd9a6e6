// Package planar converts interleaved pixel buffers into the per-channel
// int32 planes a JPEG 2000 encoder consumes.
//
// Gray images are widened sample by sample. RGB images are split by rows
// across a fixed number of workers; every worker owns a disjoint band of
// rows in all three destination planes, so no locking is needed. An
// optional vector path, 64-bit word kernels on little-endian machines,
// produces the same planes as the scalar path.
package planar

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var (
	ErrShape         = errors.New("invalid pixel buffer shape")
	ErrUnsupported   = errors.New("unsupported pixel layout")
	ErrPlaneTooLarge = errors.New("image too large for int32 planes")
)

// maxPlaneSamples bounds one plane; encoders index planes with 32-bit integers.
const maxPlaneSamples = math.MaxInt32

// PixelBuffer is an interleaved, row-major image. Exactly one of Pix8 and
// Pix16 is set, according to BitDepth.
type PixelBuffer struct {
	Width    int
	Height   int
	Channels int
	BitDepth int
	Pix8     []uint8
	Pix16    []uint16
}

func (b PixelBuffer) validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrShape, b.Width, b.Height)
	}
	if b.Channels != 1 && b.Channels != 3 {
		return fmt.Errorf("%w: %d channels", ErrUnsupported, b.Channels)
	}
	if b.Width > maxPlaneSamples/b.Height {
		return fmt.Errorf("%w: %dx%d", ErrPlaneTooLarge, b.Width, b.Height)
	}
	want := b.Width * b.Height * b.Channels
	var got int
	switch b.BitDepth {
	case 8:
		got = len(b.Pix8)
	case 16:
		got = len(b.Pix16)
	default:
		return fmt.Errorf("%w: %d-bit samples", ErrUnsupported, b.BitDepth)
	}
	if got != want {
		return fmt.Errorf("%w: %d samples for %dx%dx%d", ErrShape, got, b.Width, b.Height, b.Channels)
	}
	return nil
}

// Image holds one plane per channel, each Width*Height samples long.
type Image struct {
	Width  int
	Height int
	Planes [][]int32
}

// Options tunes Planarize.
type Options struct {
	// Vector asks for the vector path; it is only taken when VectorAvailable.
	Vector bool
	// Workers is the number of row bands for RGB images; <= 0 means NumCPU.
	Workers int
}

// Planarize splits buf into planes. Either every plane is returned filled
// or an error is returned and no planes are.
func Planarize(buf PixelBuffer, opts Options) (*Image, error) {
	if err := buf.validate(); err != nil {
		return nil, err
	}
	vector := opts.Vector && VectorAvailable()

	n := buf.Width * buf.Height
	planes := make([][]int32, buf.Channels)
	for c := range planes {
		planes[c] = make([]int32, n)
	}

	if buf.Channels == 1 {
		planarizeGray(buf, planes[0], vector)
	} else {
		workers := opts.Workers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		planarizeRGB(buf, planes, workers, vector)
	}
	return &Image{Width: buf.Width, Height: buf.Height, Planes: planes}, nil
}

func planarizeGray(buf PixelBuffer, dst []int32, vector bool) {
	if buf.BitDepth == 8 {
		widenU8(dst, buf.Pix8)
		return
	}
	done := 0
	if vector {
		done = widenU16Vector(dst, buf.Pix16)
	}
	widenU16(dst[done:], buf.Pix16[done:])
}

func planarizeRGB(buf PixelBuffer, planes [][]int32, workers int, vector bool) {
	w, h := buf.Width, buf.Height
	workers = min(workers, h)
	rows := (h + workers - 1) / workers

	var g errgroup.Group
	for y0 := 0; y0 < h; y0 += rows {
		y1 := min(y0+rows, h)
		r := planes[0][y0*w : y1*w]
		gr := planes[1][y0*w : y1*w]
		b := planes[2][y0*w : y1*w]
		g.Go(func() error {
			if buf.BitDepth == 8 {
				rgb8Band(r, gr, b, buf.Pix8[3*y0*w:3*y1*w], w, vector)
			} else {
				rgb16Band(r, gr, b, buf.Pix16[3*y0*w:3*y1*w], w)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// rgbPad is the zeroed slack kept past the last pixel of a row's working
// copy, so a gather group never reads beyond the row.
const rgbPad = 3

func rgb8Band(r, g, b []int32, src []uint8, w int, vector bool) {
	stride := 3 * w
	var padded []uint8
	if vector && w >= gatherLanes {
		padded = make([]uint8, stride+rgbPad)
	}
	for y := 0; y*w < len(r); y++ {
		row := src[y*stride : (y+1)*stride]
		rr, gr, br := r[y*w:(y+1)*w], g[y*w:(y+1)*w], b[y*w:(y+1)*w]
		done := 0
		if padded != nil {
			copy(padded, row)
			done = rgb8RowVector(rr, gr, br, padded, w)
		}
		deinterleaveRGB8(rr[done:], gr[done:], br[done:], row[3*done:])
	}
}

func rgb16Band(r, g, b []int32, src []uint16, w int) {
	stride := 3 * w
	for y := 0; y*w < len(r); y++ {
		deinterleaveRGB16(r[y*w:(y+1)*w], g[y*w:(y+1)*w], b[y*w:(y+1)*w], src[y*stride:(y+1)*stride])
	}
}
