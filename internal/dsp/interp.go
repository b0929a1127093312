package dsp

import (
	"math"
)

// Interpolator evaluates a stream at fractional sample positions through a
// bank of windowed-sinc fractional-delay filters. Used by the symbol timing
// loop to extract symbol and mid-symbol values between input samples.
const (
	interpPhases = 32
	interpTaps   = 8

	// InterpLeft and InterpRight are the window margins around the integer
	// part of the evaluation position.
	InterpLeft  = interpTaps/2 - 1
	InterpRight = interpTaps / 2
)

// Interpolator holds the precomputed phase bank.
type Interpolator struct {
	bank [interpPhases + 1][]float32
}

// NewInterpolator precomputes the fractional-delay bank. Phase p delays by
// p/interpPhases of a sample; phase interpPhases is a full-sample delay so the
// rounded phase index never wraps.
func NewInterpolator() *Interpolator {
	ip := &Interpolator{}

	win := hannWindow(interpTaps + 2)

	for p := 0; p <= interpPhases; p++ {
		d := float64(p) / interpPhases
		taps := make([]float32, interpTaps)

		var sum float64

		for k := range taps {
			t := float64(k-InterpLeft) - d
			v := sinc(t) * win[k+1]
			taps[k] = float32(v)
			sum += v
		}

		// Unity DC gain keeps amplitude independent of the phase.
		for k := range taps {
			taps[k] = float32(float64(taps[k]) / sum)
		}

		ip.bank[p] = taps
	}

	return ip
}

// At evaluates x at position t. The caller must keep
// int(t)-InterpLeft >= 0 and int(t)+InterpRight < len(x).
func (ip *Interpolator) At(x []float32, t float64) float32 {
	i := int(math.Floor(t))
	frac := t - float64(i)
	p := int(frac*interpPhases + 0.5)

	taps := ip.bank[p]

	var acc float32
	for k := range taps {
		acc += taps[k] * x[i-InterpLeft+k]
	}

	return acc
}
