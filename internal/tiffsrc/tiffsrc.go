// Package tiffsrc decodes TIFF files into interleaved pixel buffers and reads
// the physical metadata (resolution, ICC profile) the pixel decoder drops.
package tiffsrc

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/AnyUserName/tiff2jp2/internal/density"
	"github.com/AnyUserName/tiff2jp2/internal/planar"
	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"
)

// Sentinels for layouts the converter refuses. Use errors.Is; the concrete
// errors carry the bit depth in their message.
var (
	ErrAlpha = errors.New("alpha channel")
	ErrCMYK  = errors.New("CMYK")
)

// AlphaError reports an image with an alpha or other extra channel.
type AlphaError struct{ Bits int }

func (e *AlphaError) Error() string {
	return fmt.Sprintf("TIFF has alpha channel (%d-bit). Please flatten/remove alpha.", e.Bits)
}

func (e *AlphaError) Is(target error) bool { return target == ErrAlpha }

// CMYKError reports a separated (CMYK) image.
type CMYKError struct{ Bits int }

func (e *CMYKError) Error() string {
	return fmt.Sprintf("CMYK %d-bit is not supported (convert to RGB/Gray).", e.Bits)
}

func (e *CMYKError) Is(target error) bool { return target == ErrCMYK }

// Source is a decoded TIFF.
type Source struct {
	Path   string
	Meta   Meta
	Pixels planar.PixelBuffer
	// MetaErr is set when the tag walk failed; Meta is then empty and the
	// pixels were still decoded.
	MetaErr error
}

// Resolution returns the physical density, or nil.
func (s *Source) Resolution() *density.Resolution { return s.Meta.Resolution }

// ICC returns the embedded colour profile, if any.
func (s *Source) ICC() []byte { return s.Meta.ICC }

// Layout names the pixel layout, e.g. "gray8" or "rgb16".
func (s *Source) Layout() string {
	name := "gray"
	if s.Pixels.Channels == 3 {
		name = "rgb"
	}
	return fmt.Sprintf("%s%d", name, s.Pixels.BitDepth)
}

// Decode reads path and returns its pixels and metadata. Alpha and CMYK
// images are rejected with *AlphaError and *CMYKError.
func Decode(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src := &Source{Path: path}
	src.Meta, src.MetaErr = ReadMeta(f)
	if src.MetaErr == nil {
		if err := checkLayout(src.Meta); err != nil {
			return nil, err
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	src.Pixels, err = Interleave(img)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// checkLayout rejects what the tags already tell us we cannot convert.
func checkLayout(m Meta) error {
	if m.Photometric == PhotometricSeparated {
		return &CMYKError{Bits: m.BitsPerSample}
	}
	colour := m.SamplesPerPixel
	if m.Photometric == PhotometricRGB || m.Photometric == PhotometricYCbCr {
		colour = 3
	} else if m.Photometric == PhotometricWhiteIsZero || m.Photometric == PhotometricBlackIsZero || m.Photometric == PhotometricPaletted {
		colour = 1
	}
	if m.ExtraSamples > 0 || m.SamplesPerPixel > colour {
		return &AlphaError{Bits: m.BitsPerSample}
	}
	return nil
}

// Interleave converts a decoded image into a gray or RGB buffer. Gray and
// RGB models keep their depth; anything else is normalised to 8-bit RGB.
func Interleave(img image.Image) (planar.PixelBuffer, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	buf := planar.PixelBuffer{Width: w, Height: h}

	switch m := img.(type) {
	case *image.Gray:
		buf.Channels, buf.BitDepth = 1, 8
		buf.Pix8 = make([]uint8, w*h)
		for y := 0; y < h; y++ {
			copy(buf.Pix8[y*w:(y+1)*w], m.Pix[y*m.Stride:])
		}

	case *image.Gray16:
		buf.Channels, buf.BitDepth = 1, 16
		buf.Pix16 = make([]uint16, w*h)
		for y := 0; y < h; y++ {
			row := m.Pix[y*m.Stride:]
			for x := 0; x < w; x++ {
				buf.Pix16[y*w+x] = uint16(row[2*x])<<8 | uint16(row[2*x+1])
			}
		}

	case *image.RGBA:
		if !m.Opaque() {
			return buf, &AlphaError{Bits: 8}
		}
		buf.Channels, buf.BitDepth = 3, 8
		buf.Pix8 = packRGB8(m.Pix, m.Stride, w, h)

	case *image.NRGBA:
		if !m.Opaque() {
			return buf, &AlphaError{Bits: 8}
		}
		buf.Channels, buf.BitDepth = 3, 8
		buf.Pix8 = packRGB8(m.Pix, m.Stride, w, h)

	case *image.RGBA64:
		if !m.Opaque() {
			return buf, &AlphaError{Bits: 16}
		}
		buf.Channels, buf.BitDepth = 3, 16
		buf.Pix16 = packRGB16(m.Pix, m.Stride, w, h)

	case *image.NRGBA64:
		if !m.Opaque() {
			return buf, &AlphaError{Bits: 16}
		}
		buf.Channels, buf.BitDepth = 3, 16
		buf.Pix16 = packRGB16(m.Pix, m.Stride, w, h)

	case *image.CMYK:
		return buf, &CMYKError{Bits: 8}

	default:
		if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
			return buf, &AlphaError{Bits: 8}
		}
		n := imaging.Clone(img)
		buf.Channels, buf.BitDepth = 3, 8
		buf.Pix8 = packRGB8(n.Pix, n.Stride, w, h)
	}
	return buf, nil
}

// packRGB8 drops the alpha byte of 4-byte pixels.
func packRGB8(pix []uint8, stride, w, h int) []uint8 {
	out := make([]uint8, 3*w*h)
	for y := 0; y < h; y++ {
		row := pix[y*stride:]
		dst := out[3*y*w:]
		for x := 0; x < w; x++ {
			copy(dst[3*x:3*x+3], row[4*x:4*x+3])
		}
	}
	return out
}

// packRGB16 drops alpha from 8-byte big-endian pixels.
func packRGB16(pix []uint8, stride, w, h int) []uint16 {
	out := make([]uint16, 3*w*h)
	for y := 0; y < h; y++ {
		row := pix[y*stride:]
		dst := out[3*y*w:]
		for x := 0; x < w; x++ {
			p := row[8*x : 8*x+6]
			dst[3*x] = uint16(p[0])<<8 | uint16(p[1])
			dst[3*x+1] = uint16(p[2])<<8 | uint16(p[3])
			dst[3*x+2] = uint16(p[4])<<8 | uint16(p[5])
		}
	}
	return out
}
