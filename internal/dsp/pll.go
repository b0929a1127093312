package dsp

import (
	"math"

	"hz.tools/rf"
)

// PLL is a second-order phase-locked loop around an NCO, tracking a real
// carrier such as the 19 kHz stereo pilot. Each input sample is mixed against
// the NCO quadrature to form the phase detector output; the loop filter is
// proportional-integral with a damping factor of 1/√2.
//
// The NCO phase is always wrapped to [-π, π].
type PLL struct {
	phase   float64
	nominal float64 // rad/sample at the nominal carrier
	offset  float64 // integrator: tracked frequency offset, rad/sample

	kp float64
	ki float64

	// Lock detector: low-passed in-phase and quadrature products. Their angle
	// is the smoothed phase error; their magnitude gates out the no-carrier
	// case. The lock bit has hysteresis on the error angle.
	lpI      float64
	lpQ      float64
	locked   bool
	lockOn   float64 // rad
	lockOff  float64 // rad
	ampFloor float64
}

// NewPLL builds a loop locked around carrier at the given sample rate, with
// the loop bandwidth expressed as a fraction of the sample rate.
func NewPLL(carrier, sampleRate rf.Hz, bandwidth float64) *PLL {
	const damping = math.Sqrt2 / 2

	wn := 2 * math.Pi * bandwidth

	return &PLL{
		nominal:  2 * math.Pi * float64(carrier) / float64(sampleRate),
		kp:       2 * damping * wn,
		ki:       wn * wn,
		lockOn:   0.10,
		lockOff:  0.30,
		ampFloor: 0.005,
	}
}

// Step advances the loop one sample from the band-passed carrier sample s and
// returns the new wrapped NCO phase.
func (p *PLL) Step(s float64) float64 {
	err := s * -math.Sin(p.phase)
	coh := s * math.Cos(p.phase)

	p.offset += p.ki * err
	p.phase = WrapPhase(p.phase + p.nominal + p.offset + p.kp*err)

	// The detector products carry a double-frequency ripple; the one-pole
	// filters leave only the beat terms the lock decision needs.
	const a = 1.0 / 512

	p.lpI += a * (coh - p.lpI)
	p.lpQ += a * (err - p.lpQ)

	amp := math.Hypot(p.lpI, p.lpQ)

	switch {
	case amp < p.ampFloor:
		p.locked = false
	case p.locked:
		if math.Abs(math.Atan2(p.lpQ, p.lpI)) > p.lockOff {
			p.locked = false
		}
	default:
		if math.Abs(math.Atan2(p.lpQ, p.lpI)) < p.lockOn {
			p.locked = true
		}
	}

	return p.phase
}

// Phase returns the current wrapped NCO phase.
func (p *PLL) Phase() float64 {
	return p.phase
}

// Locked reports the hysteretic lock bit.
func (p *PLL) Locked() bool {
	return p.locked
}

// FrequencyOffset returns the tracked deviation from the nominal carrier.
func (p *PLL) FrequencyOffset(sampleRate rf.Hz) rf.Hz {
	return rf.Hz(p.offset * float64(sampleRate) / (2 * math.Pi))
}

// Reset returns the loop to its initial unlocked state.
func (p *PLL) Reset() {
	p.phase = 0
	p.offset = 0
	p.lpI = 0
	p.lpQ = 0
	p.locked = false
}

// WrapPhase wraps x to [-π, π].
func WrapPhase(x float64) float64 {
	for x > math.Pi {
		x -= 2 * math.Pi
	}

	for x < -math.Pi {
		x += 2 * math.Pi
	}

	return x
}
