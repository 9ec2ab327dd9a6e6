package jp2

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNoDensity reports a density that cannot be expressed as a Triplet.
var ErrNoDensity = errors.New("no usable density")

// resolutionPayloadLen is the size of a resc/resd payload.
const resolutionPayloadLen = 13

// ResolutionPayload encodes a resc/resd payload:
// [u16 vN][u16 vD][u8 vE][u16 hN][u16 hD][u8 hE][u8 reserved].
func ResolutionPayload(v, h Triplet) []byte {
	p := make([]byte, 0, resolutionPayloadLen)
	p = binary.BigEndian.AppendUint16(p, v.Num)
	p = binary.BigEndian.AppendUint16(p, v.Den)
	p = append(p, v.Exp)
	p = binary.BigEndian.AppendUint16(p, h.Num)
	p = binary.BigEndian.AppendUint16(p, h.Den)
	p = append(p, h.Exp, 0)
	return p
}

// ParseResolutionPayload decodes a resc/resd payload.
func ParseResolutionPayload(p []byte) (v, h Triplet, err error) {
	if len(p) < 10 {
		return v, h, fmt.Errorf("%w: resolution payload is %d bytes", ErrMalformed, len(p))
	}
	v = Triplet{Num: binary.BigEndian.Uint16(p[0:]), Den: binary.BigEndian.Uint16(p[2:]), Exp: p[4]}
	h = Triplet{Num: binary.BigEndian.Uint16(p[5:]), Den: binary.BigEndian.Uint16(p[7:]), Exp: p[9]}
	return v, h, nil
}

// ResolutionBox builds a "res " superbox holding a capture (resc) and a
// display (resd) box, both carrying the same vertical and horizontal
// densities in pixels per metre.
func ResolutionBox(vppm, hppm float64) ([]byte, error) {
	v := ApproximateTriplet(vppm)
	h := ApproximateTriplet(hppm)
	if v.IsZero() || h.IsZero() {
		return nil, fmt.Errorf("%w: %g x %g pixels per metre", ErrNoDensity, hppm, vppm)
	}
	p := ResolutionPayload(v, h)
	return MarshalBox(TagResolution,
		mustMarshal(TagCaptureRes, p),
		mustMarshal(TagDisplayRes, p),
	)
}
