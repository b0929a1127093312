package dsp

import (
	"github.com/farcloser/auricula/internal/dsp/kernel"
)

// FIR is a streaming real-valued FIR filter. The delay line carries exactly
// len(taps)-1 samples between blocks; the work buffer is reused, so steady
// state processing does not allocate.
type FIR struct {
	taps []float32 // time-reversed at construction
	hist []float32
	work []float32
}

// NewFIR builds a streaming filter from designed taps.
func NewFIR(taps []float32) *FIR {
	return &FIR{
		taps: reverse32(taps),
		hist: make([]float32, len(taps)-1),
	}
}

// Process filters src into dst sample for sample. dst and src must have the
// same length; dst may alias src.
func (f *FIR) Process(dst, src []float32) {
	n := len(f.taps)

	f.work = append(f.work[:0], f.hist...)
	f.work = append(f.work, src...)

	for i := range src {
		dst[i] = kernel.DotF32(f.work[i:i+n], f.taps)
	}

	f.hist = append(f.hist[:0], f.work[len(f.work)-(n-1):]...)
}

// Reset clears the delay line.
func (f *FIR) Reset() {
	for i := range f.hist {
		f.hist[i] = 0
	}
}

// Decimator is a streaming decimating FIR over real samples. Only retained
// output instants are evaluated, so dropped samples are never multiplied.
// The first output appears after factor inputs: a stream of N samples yields
// exactly floor(N/factor) outputs.
type Decimator struct {
	taps   []float32
	factor int
	hist   []float32
	work   []float32
	phase  int // input samples until the next output
}

// NewDecimator builds a decimate-by-factor filter from designed taps.
func NewDecimator(taps []float32, factor int) *Decimator {
	return &Decimator{
		taps:   reverse32(taps),
		factor: factor,
		hist:   make([]float32, len(taps)-1),
		phase:  factor - 1,
	}
}

// Factor returns the decimation ratio.
func (d *Decimator) Factor() int {
	return d.factor
}

// Process filters and decimates src, appending outputs to dst and returning
// the extended slice.
func (d *Decimator) Process(dst []float32, src []float32) []float32 {
	n := len(d.taps)

	d.work = append(d.work[:0], d.hist...)
	d.work = append(d.work, src...)

	for i := d.phase; i < len(src); i += d.factor {
		dst = append(dst, kernel.DotF32(d.work[i:i+n], d.taps))
	}

	d.phase = mod(d.phase-len(src), d.factor)

	d.hist = append(d.hist[:0], d.work[len(d.work)-(n-1):]...)

	return dst
}

// Reset clears the delay line and output phase.
func (d *Decimator) Reset() {
	d.phase = d.factor - 1

	for i := range d.hist {
		d.hist[i] = 0
	}
}

// DecimatorC64 is the complex-input counterpart of Decimator, used for
// channel selection ahead of the discriminator.
type DecimatorC64 struct {
	taps   []float32
	factor int
	hist   []complex64
	work   []complex64
	phase  int
}

// NewDecimatorC64 builds a complex decimate-by-factor filter with the same
// floor(N/factor) output convention as Decimator.
func NewDecimatorC64(taps []float32, factor int) *DecimatorC64 {
	return &DecimatorC64{
		taps:   reverse32(taps),
		factor: factor,
		hist:   make([]complex64, len(taps)-1),
		phase:  factor - 1,
	}
}

// Factor returns the decimation ratio.
func (d *DecimatorC64) Factor() int {
	return d.factor
}

// Process filters and decimates src, appending outputs to dst and returning
// the extended slice.
func (d *DecimatorC64) Process(dst []complex64, src []complex64) []complex64 {
	n := len(d.taps)

	d.work = append(d.work[:0], d.hist...)
	d.work = append(d.work, src...)

	for i := d.phase; i < len(src); i += d.factor {
		dst = append(dst, kernel.DotC64F32(d.work[i:i+n], d.taps))
	}

	d.phase = mod(d.phase-len(src), d.factor)

	d.hist = append(d.hist[:0], d.work[len(d.work)-(n-1):]...)

	return dst
}

// Reset clears the delay line and output phase.
func (d *DecimatorC64) Reset() {
	d.phase = d.factor - 1

	for i := range d.hist {
		d.hist[i] = 0
	}
}

func reverse32(taps []float32) []float32 {
	out := make([]float32, len(taps))
	for i, v := range taps {
		out[len(taps)-1-i] = v
	}

	return out
}

func mod(a, m int) int {
	a %= m
	if a < 0 {
		a += m
	}

	return a
}
