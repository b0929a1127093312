// Package stereo turns the FM multiplex into stereo audio frames: it
// recovers the 19 kHz pilot with a PLL, synchronously demodulates the 38 kHz
// difference channel, de-emphasizes, and decimates to the audio rate.
//
// The pilot NCO phase stream is also the timebase for the 57 kHz RDS
// subcarrier, so Process exposes it alongside the audio.
package stereo

import (
	"errors"
	"fmt"
	"math"

	"hz.tools/rf"

	"github.com/farcloser/auricula/internal/dsp"
	"github.com/farcloser/auricula/internal/types"
)

var errAudioRate = errors.New("unsupported audio sample rate")

// AudioRates lists the accepted audio target rates.
var AudioRates = []rf.Hz{rf.Hz(44100), rf.Hz(48000), rf.Hz(50000)}

var pilotHz = 19 * rf.KHz

// Loop bandwidth as a fraction of the MPX rate: ~50 Hz at 256 kHz.
const pilotLoopBandwidth = 0.0002

// Decoder holds all stage state carried across blocks.
type Decoder struct {
	mpxRate   rf.Hz
	audioRate rf.Hz

	pilotBandpass *dsp.FIR
	pll           *dsp.PLL

	sumPath  *dsp.Decimator
	diffPath *dsp.Decimator

	deemphL *dsp.Deemphasis
	deemphR *dsp.Deemphasis

	pilot  []float32
	phases []float64
	mixed  []float32
	sum    []float32
	diff   []float32
	frames []types.Frame
}

// New builds a decoder consuming MPX at mpxRate and producing frames near
// audioTarget. The actual audio rate is the nearest integer division of the
// MPX rate; AudioRate reports it.
func New(mpxRate, audioTarget rf.Hz, deemphasisMicros float64) (*Decoder, error) {
	supported := false

	for _, r := range AudioRates {
		if audioTarget == r {
			supported = true

			break
		}
	}

	if !supported {
		return nil, fmt.Errorf("%w: %v (want one of %v)", errAudioRate, audioTarget, AudioRates)
	}

	factor := int(math.Round(float64(mpxRate) / float64(audioTarget)))
	if factor < 1 {
		factor = 1
	}

	audioRate := mpxRate / rf.Hz(factor)

	// 15 kHz audio low-pass with the transition finished below the pilot.
	audioTaps := int(3.3*float64(mpxRate)/4e3) | 1
	audioLP := dsp.Lowpass(audioTaps, 15*rf.KHz, mpxRate)

	pilotTaps := int(3.3*float64(mpxRate)/2e3) | 1

	return &Decoder{
		mpxRate:       mpxRate,
		audioRate:     audioRate,
		pilotBandpass: dsp.NewFIR(dsp.Bandpass(pilotTaps, pilotHz-rf.Hz(500), pilotHz+rf.Hz(500), mpxRate)),
		pll:           dsp.NewPLL(pilotHz, mpxRate, pilotLoopBandwidth),
		sumPath:       dsp.NewDecimator(audioLP, factor),
		diffPath:      dsp.NewDecimator(audioLP, factor),
		deemphL:       dsp.NewDeemphasis(deemphasisMicros, audioRate),
		deemphR:       dsp.NewDeemphasis(deemphasisMicros, audioRate),
	}, nil
}

// AudioRate returns the actual frame rate produced.
func (d *Decoder) AudioRate() rf.Hz {
	return d.audioRate
}

// DecimationFactor returns the MPX-to-audio decimation ratio.
func (d *Decoder) DecimationFactor() int {
	return d.sumPath.Factor()
}

// PilotLocked reports the pilot PLL lock bit.
func (d *Decoder) PilotLocked() bool {
	return d.pll.Locked()
}

// PilotOffset returns the tracked pilot frequency deviation.
func (d *Decoder) PilotOffset() rf.Hz {
	return d.pll.FrequencyOffset(d.mpxRate)
}

// Process consumes one MPX block and returns the decoded audio frames plus
// the per-MPX-sample pilot NCO phase. Both slices are borrowed and valid only
// until the next call.
func (d *Decoder) Process(mpx []float32) ([]types.Frame, []float64) {
	if cap(d.pilot) < len(mpx) {
		d.pilot = make([]float32, len(mpx))
		d.phases = make([]float64, len(mpx))
		d.mixed = make([]float32, len(mpx))
	}

	d.pilot = d.pilot[:len(mpx)]
	d.phases = d.phases[:len(mpx)]
	d.mixed = d.mixed[:len(mpx)]

	d.pilotBandpass.Process(d.pilot, mpx)

	for i, p := range d.pilot {
		d.phases[i] = d.pll.Step(float64(p))
	}

	// Synchronous demodulation of the 38 kHz DSB difference channel.
	for i, x := range mpx {
		d.mixed[i] = x * 2 * float32(math.Cos(2*d.phases[i]))
	}

	d.sum = d.sumPath.Process(d.sum[:0], mpx)
	d.diff = d.diffPath.Process(d.diff[:0], d.mixed)

	locked := d.pll.Locked()

	d.frames = d.frames[:0]

	for i, s := range d.sum {
		var l, r float32

		if locked {
			l = s + d.diff[i]
			r = s - d.diff[i]
		} else {
			l = s
			r = s
		}

		d.frames = append(d.frames, types.Frame{L: l, R: r})
	}

	// De-emphasis then clamp on each channel.
	for i := range d.frames {
		d.mixed[i] = d.frames[i].L
	}

	d.deemphL.Process(d.mixed[:len(d.frames)], d.mixed[:len(d.frames)])

	for i := range d.frames {
		d.frames[i].L = clamp(d.mixed[i])
	}

	for i := range d.frames {
		d.mixed[i] = d.frames[i].R
	}

	d.deemphR.Process(d.mixed[:len(d.frames)], d.mixed[:len(d.frames)])

	for i := range d.frames {
		d.frames[i].R = clamp(d.mixed[i])
	}

	return d.frames, d.phases
}

// Reset clears all filter, loop, and de-emphasis state.
func (d *Decoder) Reset() {
	d.pilotBandpass.Reset()
	d.pll.Reset()
	d.sumPath.Reset()
	d.diffPath.Reset()
	d.deemphL.Reset()
	d.deemphR.Reset()
}

func clamp(x float32) float32 {
	if x > 1 {
		return 1
	}

	if x < -1 {
		return -1
	}

	return x
}
