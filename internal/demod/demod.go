// Package demod implements the broadcast FM demodulator: channel selection
// with polyphase decimation followed by a quadrature discriminator. The
// output is the baseband multiplex (MPX) signal carrying mono audio, the
// stereo difference, the 19 kHz pilot, and the 57 kHz RDS subcarrier.
package demod

import (
	"errors"
	"fmt"
	"math"

	"hz.tools/rf"

	"github.com/farcloser/auricula/internal/dsp"
)

var errSampleRate = errors.New("unsupported input sample rate")

// targetRate is the minimum post-decimation rate that still carries the full
// 0..100 kHz multiplex.
var targetRate = 256 * rf.KHz

// Demodulator converts complex baseband blocks into MPX samples.
type Demodulator struct {
	channel *dsp.DecimatorC64

	gain float64 // discriminator scale: Fs1 / (2π·deviation)
	prev complex64

	inputRate rf.Hz
	mpxRate   rf.Hz

	scratch []complex64
}

// New builds a demodulator for the given capture rate and FM deviation.
// The capture rate must divide into a multiplex rate of at least 256 kHz.
func New(inputRate, deviation rf.Hz) (*Demodulator, error) {
	if inputRate < targetRate {
		return nil, fmt.Errorf("%w: %v is below the %v multiplex floor", errSampleRate, inputRate, targetRate)
	}

	factor := int(float64(inputRate) / float64(targetRate))
	for ; factor > 1; factor-- {
		if int(inputRate)%factor == 0 {
			break
		}
	}

	mpxRate := inputRate / rf.Hz(factor)

	// Passband out to 120 kHz, stop by 200 kHz: size the Hann design for the
	// 80 kHz transition band.
	taps := int(3.3*float64(inputRate)/80e3) | 1

	return &Demodulator{
		channel:   dsp.NewDecimatorC64(dsp.Lowpass(taps, 120*rf.KHz, inputRate), factor),
		gain:      float64(mpxRate) / (2 * math.Pi * float64(deviation)),
		inputRate: inputRate,
		mpxRate:   mpxRate,
	}, nil
}

// MPXRate returns the multiplex output sample rate.
func (d *Demodulator) MPXRate() rf.Hz {
	return d.mpxRate
}

// DecimationFactor returns the channel decimation ratio.
func (d *Demodulator) DecimationFactor() int {
	return d.channel.Factor()
}

// Process demodulates one block, appending MPX samples to dst and returning
// the extended slice.
func (d *Demodulator) Process(dst []float32, block []complex64) []float32 {
	d.scratch = d.channel.Process(d.scratch[:0], block)

	prev := d.prev

	for _, z := range d.scratch {
		// arg(z·conj(prev)) through the two-argument arctangent of the
		// cross- and dot-products; no division, stable near ±π.
		dot := float64(real(z))*float64(real(prev)) + float64(imag(z))*float64(imag(prev))
		cross := float64(imag(z))*float64(real(prev)) - float64(real(z))*float64(imag(prev))

		dst = append(dst, float32(math.Atan2(cross, dot)*d.gain))
		prev = z
	}

	d.prev = prev

	return dst
}

// Reset clears all filter and discriminator state.
func (d *Demodulator) Reset() {
	d.channel.Reset()
	d.prev = 0
}
