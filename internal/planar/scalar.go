package planar

func widenU8(dst []int32, src []uint8) {
	for i, v := range src {
		dst[i] = int32(v)
	}
}

func widenU16(dst []int32, src []uint16) {
	for i, v := range src {
		dst[i] = int32(v)
	}
}

func deinterleaveRGB8(r, g, b []int32, src []uint8) {
	for x := range r {
		p := src[3*x : 3*x+3 : 3*x+3]
		r[x] = int32(p[0])
		g[x] = int32(p[1])
		b[x] = int32(p[2])
	}
}

func deinterleaveRGB16(r, g, b []int32, src []uint16) {
	for x := range r {
		p := src[3*x : 3*x+3 : 3*x+3]
		r[x] = int32(p[0])
		g[x] = int32(p[1])
		b[x] = int32(p[2])
	}
}
