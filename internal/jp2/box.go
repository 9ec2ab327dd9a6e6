// Package jp2 reads and patches the box structure of JP2 files.
//
// A JP2 file is a flat sequence of boxes. Each box starts with a 4-byte
// big-endian length (LBox) and a 4-byte type (TBox). LBox counts the header
// itself; LBox == 0 means the box runs to the end of the file and LBox == 1
// means a 64-bit XLBox length follows the type.
package jp2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Tag is a 4-byte box type.
type Tag [4]byte

func (t Tag) String() string { return string(t[:]) }

// Box types used by the converter.
var (
	TagSignature   = Tag{'j', 'P', ' ', ' '}
	TagFileType    = Tag{'f', 't', 'y', 'p'}
	TagHeader      = Tag{'j', 'p', '2', 'h'}
	TagImageHeader = Tag{'i', 'h', 'd', 'r'}
	TagColorSpec   = Tag{'c', 'o', 'l', 'r'}
	TagResolution  = Tag{'r', 'e', 's', ' '}
	TagCaptureRes  = Tag{'r', 'e', 's', 'c'}
	TagDisplayRes  = Tag{'r', 'e', 's', 'd'}
	TagCodestream  = Tag{'j', 'p', '2', 'c'}
	TagUUID        = Tag{'u', 'u', 'i', 'd'}
	TagXML         = Tag{'x', 'm', 'l', ' '}
)

const headerLen = 8

var (
	// ErrMalformed reports a box whose declared length cannot be honoured.
	ErrMalformed = errors.New("malformed box structure")
	// ErrTooLarge reports a box that would not fit a 32-bit length field.
	ErrTooLarge = errors.New("box exceeds 32-bit length")
)

// Box is one box found by Scan.
type Box struct {
	Tag Tag
	// Offset of the box header within the scanned slice.
	Offset int
	// Length is the full span of the box including its header. For ToEOF
	// boxes it is the number of bytes up to the end of the data.
	Length    int
	HeaderLen int
	ToEOF     bool
	Extended  bool
	Payload   []byte
}

// End returns the offset just past the box.
func (b Box) End() int { return b.Offset + b.Length }

// Children scans the payload of a superbox. Offsets are relative to the payload.
func (b Box) Children() ([]Box, error) {
	return Scan(b.Payload)
}

// Scan lists the boxes of data in order. Every declared length must fit in
// data; a ToEOF box must be the last one.
func Scan(data []byte) ([]Box, error) {
	var boxes []Box
	off := 0
	for off < len(data) {
		if len(data)-off < headerLen {
			return boxes, fmt.Errorf("%w: %d trailing bytes at offset %d", ErrMalformed, len(data)-off, off)
		}
		b := Box{Offset: off, HeaderLen: headerLen}
		lbox := binary.BigEndian.Uint32(data[off:])
		copy(b.Tag[:], data[off+4:off+8])

		switch {
		case lbox == 0:
			b.ToEOF = true
			b.Length = len(data) - off
		case lbox == 1:
			if len(data)-off < 16 {
				return boxes, fmt.Errorf("%w: truncated XLBox %q at offset %d", ErrMalformed, b.Tag, off)
			}
			xl := binary.BigEndian.Uint64(data[off+8:])
			if xl < 16 || xl > uint64(len(data)-off) {
				return boxes, fmt.Errorf("%w: box %q at offset %d declares %d bytes, %d available",
					ErrMalformed, b.Tag, off, xl, len(data)-off)
			}
			b.Extended = true
			b.HeaderLen = 16
			b.Length = int(xl)
		case lbox < headerLen:
			return boxes, fmt.Errorf("%w: box %q at offset %d has length %d", ErrMalformed, b.Tag, off, lbox)
		default:
			if uint64(lbox) > uint64(len(data)-off) {
				return boxes, fmt.Errorf("%w: box %q at offset %d declares %d bytes, %d available",
					ErrMalformed, b.Tag, off, lbox, len(data)-off)
			}
			b.Length = int(lbox)
		}

		b.Payload = data[off+b.HeaderLen : off+b.Length]
		boxes = append(boxes, b)
		off += b.Length
	}
	return boxes, nil
}

// ReadFile scans the top-level boxes of the file at path.
func ReadFile(path string) ([]Box, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Scan(data)
}

// Find returns the first box with the given tag.
func Find(boxes []Box, tag Tag) (Box, bool) {
	for _, b := range boxes {
		if b.Tag == tag {
			return b, true
		}
	}
	return Box{}, false
}

// MarshalBox serialises a box with a plain 32-bit length. Payload parts are
// concatenated in order, which makes superboxes a single call.
func MarshalBox(tag Tag, payload ...[]byte) ([]byte, error) {
	n := headerLen
	for _, p := range payload {
		n += len(p)
	}
	if uint64(n) > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: %q is %d bytes", ErrTooLarge, tag, n)
	}
	out := make([]byte, headerLen, n)
	binary.BigEndian.PutUint32(out, uint32(n))
	copy(out[4:], tag[:])
	for _, p := range payload {
		out = append(out, p...)
	}
	return out, nil
}

func mustMarshal(tag Tag, payload ...[]byte) []byte {
	b, err := MarshalBox(tag, payload...)
	if err != nil {
		panic(err)
	}
	return b
}
