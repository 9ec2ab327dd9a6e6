package planar

import (
	"math/bits"
	"os"

	"golang.org/x/sys/cpu"
)

// NoSIMDEnv disables the vector path when set to any non-empty value.
const NoSIMDEnv = "TIFF2JP2_NO_SIMD"

// Vector kernels installed by init. Both return the number of elements
// they handled; nil means no vector path on this machine.
var (
	vectorName     string
	widenU16Vector func(dst []int32, src []uint16) int
	rgb8RowVector  func(r, g, b []int32, padded []uint8, n int) int
)

func init() {
	// The word kernels reinterpret sample memory as little-endian uint64.
	if !cpu.IsBigEndian && bits.UintSize == 64 {
		vectorName = "swar64"
		widenU16Vector = widenU16Words
		rgb8RowVector = gatherRGB8Words
	}
}

// VectorAvailable reports whether Planarize may take the vector path. The
// environment override is read on every call.
func VectorAvailable() bool {
	if os.Getenv(NoSIMDEnv) != "" {
		return false
	}
	return widenU16Vector != nil && rgb8RowVector != nil
}

// VectorName names the installed vector implementation, or "scalar".
func VectorName() string {
	if !VectorAvailable() {
		return "scalar"
	}
	return vectorName
}
