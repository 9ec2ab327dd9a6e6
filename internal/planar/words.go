package planar

import (
	"encoding/binary"
	"unsafe"
)

// Samples per step of the word kernels. The 16-bit widen reads four 64-bit
// words and writes eight; the RGB gather reads three words per 8 pixels and
// writes four per channel.
const (
	widenLanes  = 16
	gatherLanes = 8
)

var le = binary.LittleEndian

func bytesOf16(s []uint16) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), 2*len(s))
}

func bytesOf32(s []int32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), 4*len(s))
}

// widenU16Words widens whole 16-sample groups of src into dst, two int32
// lanes per 64-bit store, and returns how many samples it handled. The
// caller finishes the tail.
func widenU16Words(dst []int32, src []uint16) int {
	n := len(src) &^ (widenLanes - 1)
	if n == 0 {
		return 0
	}
	sb := bytesOf16(src[:n])
	db := bytesOf32(dst[:n])
	for i := 0; i < len(sb); i += 32 {
		s := sb[i : i+32 : i+32]
		d := db[2*i : 2*i+64 : 2*i+64]
		for k := 0; k < 4; k++ {
			w := le.Uint64(s[8*k:])
			le.PutUint64(d[16*k:], w&0xFFFF|(w>>16&0xFFFF)<<32)
			le.PutUint64(d[16*k+8:], w>>32&0xFFFF|(w>>48)<<32)
		}
	}
	return n
}

// gatherRGB8Words deinterleaves whole 8-pixel groups of a padded RGB row.
// The 24 bytes of a group are loaded as three little-endian words and each
// channel sample is shifted out of the word holding byte 3*x+c, then stored
// zero-extended two lanes at a time. It returns the number of pixels
// written; the caller finishes the tail.
func gatherRGB8Words(r, g, b []int32, padded []uint8, n int) int {
	x := n &^ (gatherLanes - 1)
	if x == 0 {
		return 0
	}
	planes := [3][]byte{bytesOf32(r[:x]), bytesOf32(g[:x]), bytesOf32(b[:x])}
	var w [3]uint64
	for p := 0; p < x; p += gatherLanes {
		src := padded[3*p : 3*p+24 : 3*p+24]
		w[0], w[1], w[2] = le.Uint64(src), le.Uint64(src[8:]), le.Uint64(src[16:])
		for c := range planes {
			d := planes[c][4*p : 4*p+32 : 4*p+32]
			for k := 0; k < gatherLanes; k += 2 {
				lo := sampleAt(&w, 3*k+c)
				hi := sampleAt(&w, 3*(k+1)+c)
				le.PutUint64(d[4*k:], lo|hi<<32)
			}
		}
	}
	return x
}

// sampleAt extracts byte i of the 24-byte group held in w.
func sampleAt(w *[3]uint64, i int) uint64 {
	return w[i>>3] >> (8 * uint(i&7)) & 0xFF
}
