package jp2_test

import (
	"math"
	"testing"

	"github.com/AnyUserName/tiff2jp2/internal/density"
	"github.com/AnyUserName/tiff2jp2/internal/jp2"
	"github.com/stretchr/testify/assert"
)

func TestApproximateTriplet_300DPI(t *testing.T) {
	ppm := density.PixelsPerMetre(300, density.UnitInch)
	tr := jp2.ApproximateTriplet(ppm)

	assert.Equal(t, jp2.Triplet{Num: 11811, Den: 1, Exp: 0}, tr)
	assert.InDelta(t, 11811.02, tr.Value(), 1)
}

func TestApproximateTriplet_72DPI(t *testing.T) {
	ppm := density.PixelsPerMetre(72, density.UnitInch)
	tr := jp2.ApproximateTriplet(ppm)

	assert.False(t, tr.IsZero())
	assert.InDelta(t, ppm, tr.Value(), 0.05)
}

func TestApproximateTriplet_ExactShortCircuit(t *testing.T) {
	assert.Equal(t, jp2.Triplet{Num: 10000, Den: 1, Exp: 0}, jp2.ApproximateTriplet(10000))
	assert.Equal(t, jp2.Triplet{Num: 7000, Den: 1, Exp: 1}, jp2.ApproximateTriplet(70000))
}

func TestApproximateTriplet_NoCandidate(t *testing.T) {
	for _, v := range []float64{0, -1, -11811, math.NaN(), math.Inf(1)} {
		tr := jp2.ApproximateTriplet(v)
		assert.True(t, tr.IsZero(), "value %v", v)
		assert.Zero(t, tr.Value())
	}
}

func TestApproximateTriplet_RelativeErrorBounded(t *testing.T) {
	for _, unit := range []density.Unit{density.UnitInch, density.UnitCentimeter} {
		for dpi := 1.0; dpi <= 20000; dpi *= 1.37 {
			ppm := density.PixelsPerMetre(dpi, unit)
			tr := jp2.ApproximateTriplet(ppm)
			if !assert.False(t, tr.IsZero(), "dpi %v %s", dpi, unit) {
				continue
			}
			rel := math.Abs(tr.Value()-ppm) / ppm
			assert.Less(t, rel, 1e-4, "dpi %v %s -> %s", dpi, unit, tr)
		}
	}
}

func TestApproximateTriplet_Deterministic(t *testing.T) {
	for _, ppm := range []float64{1, 39.37, 2834.6457, 11811.0236, 123456.789} {
		assert.Equal(t, jp2.ApproximateTriplet(ppm), jp2.ApproximateTriplet(ppm))
	}
}
