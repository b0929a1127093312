package dsp

import (
	"math"

	"hz.tools/rf"
)

// Deemphasis is the single-pole IIR compensating transmitter pre-emphasis.
// The time constant is 50 µs in Europe and 75 µs in the US.
type Deemphasis struct {
	alpha float32
	state float32
}

// NewDeemphasis builds the filter for the given time constant in microseconds
// at the given sample rate.
func NewDeemphasis(tauMicros float64, sampleRate rf.Hz) *Deemphasis {
	dt := 1 / float64(sampleRate)
	tau := tauMicros * 1e-6

	return &Deemphasis{
		alpha: float32(1 - math.Exp(-dt/tau)),
	}
}

// Process filters src into dst in place; dst may alias src.
func (d *Deemphasis) Process(dst, src []float32) {
	y := d.state

	for i, x := range src {
		y += d.alpha * (x - y)
		dst[i] = y
	}

	d.state = y
}

// Reset clears the filter state.
func (d *Deemphasis) Reset() {
	d.state = 0
}
