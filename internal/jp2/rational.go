package jp2

import (
	"fmt"
	"math"
)

// Triplet is the resolution encoding of the resc/resd boxes:
// Num/Den * 10^Exp grid points per metre.
type Triplet struct {
	Num uint16
	Den uint16
	Exp uint8
}

// IsZero reports whether t carries no usable density.
func (t Triplet) IsZero() bool { return t.Num == 0 || t.Den == 0 }

// Value reconstructs the density t encodes.
func (t Triplet) Value() float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.Num) / float64(t.Den) * math.Pow10(int(t.Exp))
}

func (t Triplet) String() string {
	return fmt.Sprintf("%d/%d*10^%d", t.Num, t.Den, t.Exp)
}

var tripletDenominators = [...]uint32{1, 10, 100, 1000, 10000, 65535}

const (
	maxTripletExp   = 5
	exactEnoughDiff = 1e-6
)

// ApproximateTriplet finds the Triplet closest to ppm by exhaustive search
// over exponents 0..5 and a fixed set of denominators. It returns the zero
// Triplet when no candidate is representable, e.g. for ppm <= 0.
func ApproximateTriplet(ppm float64) Triplet {
	var best Triplet
	bestErr := math.Inf(1)
	if !(ppm > 0) || math.IsInf(ppm, 0) {
		return best
	}
	for exp := 0; exp <= maxTripletExp; exp++ {
		scale := math.Pow10(exp)
		target := ppm / scale
		for _, den := range tripletDenominators {
			num := math.Round(target * float64(den))
			if num < 1 || num > 65535 {
				continue
			}
			diff := math.Abs(num/float64(den)*scale - ppm)
			if diff < bestErr {
				bestErr = diff
				best = Triplet{Num: uint16(num), Den: uint16(den), Exp: uint8(exp)}
				if diff < exactEnoughDiff {
					return best
				}
			}
		}
	}
	return best
}
