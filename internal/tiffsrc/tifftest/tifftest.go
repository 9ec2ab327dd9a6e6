// Package tifftest writes small uncompressed TIFF files with arbitrary tags
// for tests.
package tifftest

import (
	"encoding/binary"
	"sort"
)

// ByteOrder is satisfied by binary.LittleEndian and binary.BigEndian.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Field types.
const (
	TypeShort     = 3
	TypeLong      = 4
	TypeRational  = 5
	TypeUndefined = 7
)

// Tag ids used by the converter.
const (
	XResolution    = 282
	YResolution    = 283
	ResolutionUnit = 296
	ExtraSamples   = 338
	ICCProfile     = 34675
)

// Tag is one IFD entry with its encoded value.
type Tag struct {
	ID    uint16
	Type  uint16
	Count uint32
	Data  []byte
}

func Shorts(bo ByteOrder, id uint16, v ...uint16) Tag {
	var b []byte
	for _, x := range v {
		b = bo.AppendUint16(b, x)
	}
	return Tag{ID: id, Type: TypeShort, Count: uint32(len(v)), Data: b}
}

func Longs(bo ByteOrder, id uint16, v ...uint32) Tag {
	var b []byte
	for _, x := range v {
		b = bo.AppendUint32(b, x)
	}
	return Tag{ID: id, Type: TypeLong, Count: uint32(len(v)), Data: b}
}

func Rational(bo ByteOrder, id uint16, num, den uint32) Tag {
	return Tag{ID: id, Type: TypeRational, Count: 1, Data: bo.AppendUint32(bo.AppendUint32(nil, num), den)}
}

func Undefined(id uint16, b []byte) Tag {
	return Tag{ID: id, Type: TypeUndefined, Count: uint32(len(b)), Data: b}
}

// Density returns XResolution, YResolution and ResolutionUnit tags.
func Density(bo ByteOrder, x, y uint32, unit uint16) []Tag {
	return []Tag{
		Rational(bo, XResolution, x, 1),
		Rational(bo, YResolution, y, 1),
		Shorts(bo, ResolutionUnit, unit),
	}
}

// Build writes an uncompressed single-strip TIFF: header, pixel data,
// out-of-line tag values, then IFD0.
func Build(bo ByteOrder, w, h, spp, bits int, photometric uint16, pix []byte, extra ...Tag) []byte {
	bps := make([]uint16, spp)
	for i := range bps {
		bps[i] = uint16(bits)
	}
	tags := []Tag{
		Longs(bo, 256, uint32(w)),
		Longs(bo, 257, uint32(h)),
		Shorts(bo, 258, bps...),
		Shorts(bo, 259, 1), // Compression: none
		Shorts(bo, 262, photometric),
		Longs(bo, 273, 8), // StripOffsets
		Shorts(bo, 277, uint16(spp)),
		Longs(bo, 278, uint32(h)),        // RowsPerStrip
		Longs(bo, 279, uint32(len(pix))), // StripByteCounts
	}
	tags = append(tags, extra...)
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })

	out := []byte("II\x2A\x00")
	if bo == binary.BigEndian {
		out = []byte("MM\x00\x2A")
	}
	out = append(out, 0, 0, 0, 0)
	out = append(out, pix...)

	offsets := make([]uint32, len(tags))
	for i, tg := range tags {
		if len(tg.Data) > 4 {
			if len(out)%2 == 1 {
				out = append(out, 0)
			}
			offsets[i] = uint32(len(out))
			out = append(out, tg.Data...)
		}
	}
	if len(out)%2 == 1 {
		out = append(out, 0)
	}
	bo.PutUint32(out[4:], uint32(len(out)))
	out = bo.AppendUint16(out, uint16(len(tags)))
	for i, tg := range tags {
		out = bo.AppendUint16(out, tg.ID)
		out = bo.AppendUint16(out, tg.Type)
		out = bo.AppendUint32(out, tg.Count)
		if len(tg.Data) > 4 {
			out = bo.AppendUint32(out, offsets[i])
		} else {
			var v [4]byte
			copy(v[:], tg.Data)
			out = append(out, v[:]...)
		}
	}
	return bo.AppendUint32(out, 0)
}
