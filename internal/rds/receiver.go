package rds

import (
	"math"

	"hz.tools/rf"

	"github.com/farcloser/auricula/internal/dsp"
)

// SymbolRate is the RDS data rate: 1187.5 symbols per second, one bit per
// symbol after differential decoding.
const SymbolRate = 1187.5

var (
	subcarrierHz = 57 * rf.KHz

	// The subcarrier is mixed to baseband and decimated near this rate
	// before matched filtering.
	basebandTarget = 16 * rf.KHz
)

const (
	// Matched filter: root-raised-cosine, roll-off 1, spanning 8 symbols.
	rrcBeta = 1.0
	rrcSpan = 8
)

// Receiver is the RDS physical and link layer: from MPX samples and the
// pilot phase stream down to validated groups applied to the database.
type Receiver struct {
	mpxRate  rf.Hz
	baseRate rf.Hz

	bandpass *dsp.FIR
	mixdown  *dsp.Decimator
	matched  *dsp.FIR
	timing   *symbolTiming
	sync     *blockSync

	prevSign byte

	groups uint64

	mixed   []float32
	base    []float32
	shaped  []float32
	symbols []float32
}

// NewReceiver builds the RDS chain for the given multiplex rate. Validated
// groups are handed to onGroup in arrival order.
func NewReceiver(mpxRate rf.Hz, onGroup func([4]uint16)) *Receiver {
	factor := int(math.Round(float64(mpxRate) / float64(basebandTarget)))
	if factor < 1 {
		factor = 1
	}

	baseRate := mpxRate / rf.Hz(factor)
	sps := float64(baseRate) / SymbolRate

	bandTaps := int(3.3*float64(mpxRate)/3e3) | 1
	mixTaps := int(3.3*float64(mpxRate)/5e3) | 1
	rrcTaps := int(rrcSpan*sps) | 1

	r := &Receiver{
		mpxRate:  mpxRate,
		baseRate: baseRate,
		bandpass: dsp.NewFIR(dsp.Bandpass(bandTaps, subcarrierHz-3*rf.KHz, subcarrierHz+3*rf.KHz, mpxRate)),
		mixdown:  dsp.NewDecimator(dsp.Lowpass(mixTaps, rf.Hz(2400), mpxRate), factor),
		matched:  dsp.NewFIR(dsp.RootRaisedCosine(rrcTaps, sps, rrcBeta)),
		timing:   newSymbolTiming(sps),
	}

	r.sync = newBlockSync(func(blocks [4]uint16) {
		r.groups++

		if onGroup != nil {
			onGroup(blocks)
		}
	})

	return r
}

// Process consumes one MPX block together with the per-sample pilot NCO
// phase from the stereo stage. The 57 kHz reference is the third harmonic of
// the pilot.
func (r *Receiver) Process(mpx []float32, phases []float64) {
	if cap(r.mixed) < len(mpx) {
		r.mixed = make([]float32, len(mpx))
	}

	r.mixed = r.mixed[:len(mpx)]

	r.bandpass.Process(r.mixed, mpx)

	for i := range r.mixed {
		r.mixed[i] *= 2 * float32(math.Cos(3*phases[i]))
	}

	r.base = r.mixdown.Process(r.base[:0], r.mixed)

	if cap(r.shaped) < len(r.base) {
		r.shaped = make([]float32, len(r.base))
	}

	r.shaped = r.shaped[:len(r.base)]
	r.matched.Process(r.shaped, r.base)

	r.symbols = r.timing.process(r.symbols[:0], r.shaped)

	for _, y := range r.symbols {
		var sign byte
		if y > 0 {
			sign = 1
		}

		bit := sign ^ r.prevSign
		r.prevSign = sign

		// No bits leave the stage until the symbol clock is locked.
		if r.timing.locked {
			r.sync.push(bit)
		}
	}
}

// Symbols returns the post-matched-filter soft symbols recovered from the
// last Process call. The slice is borrowed and overwritten by the next call.
func (r *Receiver) Symbols() []float32 {
	return r.symbols
}

// SymbolLocked reports the Gardner loop lock bit.
func (r *Receiver) SymbolLocked() bool {
	return r.timing.locked
}

// State returns the block synchronizer state.
func (r *Receiver) State() SyncState {
	return r.sync.state
}

// GroupSync reports whether the block synchronizer is locked.
func (r *Receiver) GroupSync() bool {
	return r.sync.state == Locked
}

// CorrectedBlocks counts blocks repaired by single-bit correction.
func (r *Receiver) CorrectedBlocks() uint64 {
	return r.sync.corrected
}

// DroppedBlocks counts blocks that failed the syndrome check outright.
func (r *Receiver) DroppedBlocks() uint64 {
	return r.sync.dropped
}

// Groups counts validated groups delivered to the database.
func (r *Receiver) Groups() uint64 {
	return r.groups
}

// Reset clears all physical and link state. The database is left untouched.
func (r *Receiver) Reset() {
	r.bandpass.Reset()
	r.mixdown.Reset()
	r.matched.Reset()
	r.timing.reset()
	r.sync.reset()
	r.prevSign = 0
	r.symbols = r.symbols[:0]
}
