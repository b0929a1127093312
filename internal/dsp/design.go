// Package dsp provides the filter, oscillator, and timing primitives shared by
// the demodulation stages: windowed-sinc FIR design, streaming FIR and
// decimating FIR filters, a single-pole de-emphasis IIR, a second-order PLL,
// and a polyphase fractional interpolator.
package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/window"
	"hz.tools/rf"
)

// Lowpass designs a Hann-windowed sinc low-pass filter with unity DC gain.
// The tap count must be odd for a symmetric linear-phase response; an even
// count is bumped by one.
func Lowpass(taps int, cutoff, sampleRate rf.Hz) []float32 {
	if taps%2 == 0 {
		taps++
	}

	fc := float64(cutoff) / float64(sampleRate)
	mid := float64(taps-1) / 2

	h := hannWindow(taps)
	for i := range h {
		h[i] *= sinc(2 * fc * (float64(i) - mid))
	}

	var sum float64
	for _, v := range h {
		sum += v
	}

	out := make([]float32, taps)
	for i, v := range h {
		out[i] = float32(v / sum)
	}

	return out
}

// Bandpass designs a Hann-windowed sinc band-pass filter with approximately
// unity gain at the band center.
func Bandpass(taps int, low, high, sampleRate rf.Hz) []float32 {
	if taps%2 == 0 {
		taps++
	}

	f1 := float64(low) / float64(sampleRate)
	f2 := float64(high) / float64(sampleRate)
	mid := float64(taps-1) / 2

	h := hannWindow(taps)
	for i := range h {
		t := float64(i) - mid
		h[i] *= 2*f2*sinc(2*f2*t) - 2*f1*sinc(2*f1*t)
	}

	// Normalize to unity gain at the center frequency.
	fc := (f1 + f2) / 2

	var re, im float64

	for i, v := range h {
		re += v * math.Cos(2*math.Pi*fc*float64(i))
		im += v * math.Sin(2*math.Pi*fc*float64(i))
	}

	gain := math.Hypot(re, im)

	out := make([]float32, taps)
	for i, v := range h {
		out[i] = float32(v / gain)
	}

	return out
}

// RootRaisedCosine designs a unit-energy root-raised-cosine pulse filter.
// symbolPeriod is the symbol duration in samples and may be fractional; beta
// is the roll-off factor in (0, 1].
func RootRaisedCosine(taps int, symbolPeriod, beta float64) []float32 {
	if taps%2 == 0 {
		taps++
	}

	mid := float64(taps-1) / 2
	h := make([]float64, taps)

	for i := range h {
		h[i] = rrcAt((float64(i)-mid)/symbolPeriod, beta)
	}

	var energy float64
	for _, v := range h {
		energy += v * v
	}

	norm := 1 / math.Sqrt(energy)

	out := make([]float32, taps)
	for i, v := range h {
		out[i] = float32(v * norm)
	}

	return out
}

// rrcAt evaluates the root-raised-cosine impulse response at t symbol periods
// from the pulse center.
func rrcAt(t, beta float64) float64 {
	const eps = 1e-9

	if math.Abs(t) < eps {
		return 1 - beta + 4*beta/math.Pi
	}

	// Singular points at t = ±1/(4β).
	if math.Abs(math.Abs(t)-1/(4*beta)) < eps {
		return beta / math.Sqrt2 * ((1+2/math.Pi)*math.Sin(math.Pi/(4*beta)) +
			(1-2/math.Pi)*math.Cos(math.Pi/(4*beta)))
	}

	num := math.Sin(math.Pi*t*(1-beta)) + 4*beta*t*math.Cos(math.Pi*t*(1+beta))
	den := math.Pi * t * (1 - 16*beta*beta*t*t)

	return num / den
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}

	return window.Hann(w)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}

	return math.Sin(math.Pi*x) / (math.Pi * x)
}
