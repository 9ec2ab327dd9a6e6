package tiffsrc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/AnyUserName/tiff2jp2/internal/density"
)

const (
	leHeader = "II\x2A\x00"
	beHeader = "MM\x00\x2A"
	leBig    = "II\x2B\x00"
	beBig    = "MM\x00\x2B"

	ifdLen = 12

	// maxTagBytes bounds a single out-of-line tag value (an ICC profile is
	// the largest we read).
	maxTagBytes = 64 << 20
)

// Data types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
)

var typeLen = [...]uint32{0, 1, 1, 2, 4, 8, 1, 1, 2, 4, 8, 4, 8}

// Tags.
const (
	tImageWidth                = 256
	tImageLength               = 257
	tBitsPerSample             = 258
	tPhotometricInterpretation = 262
	tSamplesPerPixel           = 277
	tXResolution               = 282
	tYResolution               = 283
	tResolutionUnit            = 296
	tExtraSamples              = 338
	tICCProfile                = 34675
)

// Photometric interpretations.
const (
	PhotometricWhiteIsZero = 0
	PhotometricBlackIsZero = 1
	PhotometricRGB         = 2
	PhotometricPaletted    = 3
	PhotometricMask        = 4
	PhotometricSeparated   = 5
	PhotometricYCbCr       = 6
)

var (
	ErrNotTIFF = errors.New("not a TIFF file")
	ErrBigTIFF = errors.New("BigTIFF is not supported")
	ErrIFD     = errors.New("malformed TIFF directory")
)

// Meta is what ReadMeta extracts from the first image directory.
type Meta struct {
	Width           int
	Height          int
	Photometric     int
	SamplesPerPixel int
	BitsPerSample   int
	ExtraSamples    int
	Resolution      *density.Resolution // nil when absent or zero
	ICC             []byte
}

type entry struct {
	tag    uint16
	typ    uint16
	count  uint32
	inline [4]byte
}

type ifdReader struct {
	r  io.ReadSeeker
	bo binary.ByteOrder
}

// ReadMeta walks IFD0 of a classic TIFF and returns layout, resolution and
// ICC tags. Pixel data is not touched.
func ReadMeta(r io.ReadSeeker) (Meta, error) {
	var hdr [8]byte
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Meta{}, err
	}
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrNotTIFF, err)
	}

	d := &ifdReader{r: r}
	switch string(hdr[:4]) {
	case leHeader:
		d.bo = binary.LittleEndian
	case beHeader:
		d.bo = binary.BigEndian
	case leBig, beBig:
		return Meta{}, ErrBigTIFF
	default:
		return Meta{}, ErrNotTIFF
	}

	entries, err := d.readIFD(int64(d.bo.Uint32(hdr[4:])))
	if err != nil {
		return Meta{}, err
	}

	m := Meta{SamplesPerPixel: 1, BitsPerSample: 1, Photometric: -1}
	var xres, yres float64
	unit := density.UnitNone
	for _, e := range entries {
		switch e.tag {
		case tImageWidth:
			m.Width, err = d.firstUint(e)
		case tImageLength:
			m.Height, err = d.firstUint(e)
		case tBitsPerSample:
			m.BitsPerSample, err = d.firstUint(e)
		case tPhotometricInterpretation:
			m.Photometric, err = d.firstUint(e)
		case tSamplesPerPixel:
			m.SamplesPerPixel, err = d.firstUint(e)
		case tExtraSamples:
			m.ExtraSamples = int(e.count)
		case tXResolution:
			xres, err = d.rational(e)
		case tYResolution:
			yres, err = d.rational(e)
		case tResolutionUnit:
			var u int
			u, err = d.firstUint(e)
			unit = density.UnitFromTIFF(uint16(u))
		case tICCProfile:
			m.ICC, err = d.bytes(e)
		}
		if err != nil {
			return Meta{}, fmt.Errorf("tag %d: %w", e.tag, err)
		}
	}

	if xres > 0 && yres > 0 {
		m.Resolution = &density.Resolution{X: xres, Y: yres, Unit: unit}
	}
	return m, nil
}

func (d *ifdReader) readIFD(off int64) ([]entry, error) {
	if _, err := d.r.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	var nb [2]byte
	if _, err := io.ReadFull(d.r, nb[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIFD, err)
	}
	n := int(d.bo.Uint16(nb[:]))
	buf := make([]byte, n*ifdLen)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIFD, err)
	}

	entries := make([]entry, n)
	for i := range entries {
		p := buf[i*ifdLen : (i+1)*ifdLen]
		e := &entries[i]
		e.tag = d.bo.Uint16(p[0:])
		e.typ = d.bo.Uint16(p[2:])
		e.count = d.bo.Uint32(p[4:])
		copy(e.inline[:], p[8:12])
	}
	return entries, nil
}

// raw returns the value bytes of e, following the offset when they do not
// fit in the entry.
func (d *ifdReader) raw(e entry) ([]byte, error) {
	if e.typ == 0 || int(e.typ) >= len(typeLen) {
		return nil, fmt.Errorf("%w: data type %d", ErrIFD, e.typ)
	}
	size := uint64(typeLen[e.typ]) * uint64(e.count)
	if size <= 4 {
		return e.inline[:size], nil
	}
	if size > maxTagBytes {
		return nil, fmt.Errorf("%w: %d-byte value", ErrIFD, size)
	}
	if _, err := d.r.Seek(int64(d.bo.Uint32(e.inline[:])), io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIFD, err)
	}
	return buf, nil
}

func (d *ifdReader) firstUint(e entry) (int, error) {
	if e.count == 0 {
		return 0, fmt.Errorf("%w: empty value", ErrIFD)
	}
	b, err := d.raw(e)
	if err != nil {
		return 0, err
	}
	switch e.typ {
	case dtByte, dtUndefined:
		return int(b[0]), nil
	case dtShort:
		return int(d.bo.Uint16(b)), nil
	case dtLong:
		return int(d.bo.Uint32(b)), nil
	}
	return 0, fmt.Errorf("%w: data type %d is not an unsigned integer", ErrIFD, e.typ)
}

func (d *ifdReader) rational(e entry) (float64, error) {
	if e.count == 0 {
		return 0, nil
	}
	b, err := d.raw(e)
	if err != nil {
		return 0, err
	}
	switch e.typ {
	case dtRational:
		num, den := d.bo.Uint32(b), d.bo.Uint32(b[4:])
		if den == 0 {
			return 0, nil
		}
		return float64(num) / float64(den), nil
	case dtShort, dtLong:
		v, err := d.firstUint(e)
		return float64(v), err
	}
	return 0, fmt.Errorf("%w: data type %d is not a rational", ErrIFD, e.typ)
}

func (d *ifdReader) bytes(e entry) ([]byte, error) {
	b, err := d.raw(e)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}
