// Package jp2test builds small JP2 containers for tests.
package jp2test

import "encoding/binary"

// Box serialises one box with a 32-bit length.
func Box(tag string, payload ...[]byte) []byte {
	n := 8
	for _, p := range payload {
		n += len(p)
	}
	out := binary.BigEndian.AppendUint32(make([]byte, 0, n), uint32(n))
	out = append(out, tag[:4]...)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

// RawBox serialises a box header with an arbitrary LBox value.
func RawBox(lbox uint32, tag string, payload []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, lbox)
	out = append(out, tag[:4]...)
	return append(out, payload...)
}

// Signature is the 12-byte JP2 signature box.
func Signature() []byte {
	return Box("jP  ", []byte{0x0D, 0x0A, 0x87, 0x0A})
}

// FileType is an ftyp box declaring jp2 compatibility.
func FileType() []byte {
	return Box("ftyp", []byte("jp2 "), []byte{0, 0, 0, 0}, []byte("jp2 "))
}

// Header is a jp2h superbox with ihdr and an enumerated colr box.
func Header(width, height, comps, bits int) []byte {
	ihdr := binary.BigEndian.AppendUint32(nil, uint32(height))
	ihdr = binary.BigEndian.AppendUint32(ihdr, uint32(width))
	ihdr = binary.BigEndian.AppendUint16(ihdr, uint16(comps))
	ihdr = append(ihdr, byte(bits-1), 7, 0, 0)

	cs := uint32(17)
	if comps == 3 {
		cs = 16
	}
	colr := binary.BigEndian.AppendUint32([]byte{1, 0, 0}, cs)
	return Box("jp2h", Box("ihdr", ihdr), Box("colr", colr))
}

// Codestream is a jp2c box around a fake SOC..EOC codestream.
func Codestream(n int) []byte {
	cs := make([]byte, n+4)
	cs[0], cs[1] = 0xFF, 0x4F
	for i := 2; i < n+2; i++ {
		cs[i] = byte(i)
	}
	cs[n+2], cs[n+3] = 0xFF, 0xD9
	return Box("jp2c", cs)
}

// Container assembles a minimal but well-formed JP2 file.
func Container(width, height, comps, bits int) []byte {
	var out []byte
	out = append(out, Signature()...)
	out = append(out, FileType()...)
	out = append(out, Header(width, height, comps, bits)...)
	out = append(out, Codestream(64)...)
	return out
}
