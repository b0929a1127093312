// Package spectrum computes magnitude spectra of the pipeline taps for
// visualization observers: the complex capture input, the real multiplex, and
// the RDS symbol stream. Plotting is the consumer's concern; this package
// only produces the bins.
package spectrum

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"hz.tools/rf"
)

// Analyzer turns fixed-size sample windows into Hann-windowed magnitude
// spectra in dBFS. All buffers are sized at construction.
type Analyzer struct {
	size int

	win []float64

	realFFT *fourier.FFT
	cmplxFFT *fourier.CmplxFFT

	realIn  []float64
	cmplxIn []complex128

	bins []float64
}

// New builds an analyzer for windows of size samples. The size must be a
// power of two for the FFT plans the pipeline uses.
func New(size int) *Analyzer {
	win := make([]float64, size)
	for i := range win {
		win[i] = 1
	}

	return &Analyzer{
		size:     size,
		win:      window.Hann(win),
		realFFT:  fourier.NewFFT(size),
		cmplxFFT: fourier.NewCmplxFFT(size),
		realIn:   make([]float64, size),
		cmplxIn:  make([]complex128, size),
		bins:     make([]float64, size),
	}
}

// Size returns the window length.
func (a *Analyzer) Size() int {
	return a.size
}

// Real computes the one-sided magnitude spectrum of a real signal window.
// The returned slice has size/2+1 bins and is borrowed until the next call.
func (a *Analyzer) Real(samples []float32) []float64 {
	n := a.size
	if len(samples) < n {
		n = len(samples)
	}

	for i := range a.realIn {
		a.realIn[i] = 0
	}

	for i := 0; i < n; i++ {
		a.realIn[i] = float64(samples[i]) * a.win[i]
	}

	coeffs := a.realFFT.Coefficients(nil, a.realIn)

	out := a.bins[:len(coeffs)]
	for i, c := range coeffs {
		out[i] = toDb(cmplx.Abs(c) / float64(a.size))
	}

	return out
}

// Complex computes the two-sided magnitude spectrum of a complex window,
// rotated so bin 0 is the most negative frequency. The returned slice has
// size bins and is borrowed until the next call.
func (a *Analyzer) Complex(samples []complex64) []float64 {
	n := a.size
	if len(samples) < n {
		n = len(samples)
	}

	for i := range a.cmplxIn {
		a.cmplxIn[i] = 0
	}

	for i := 0; i < n; i++ {
		a.cmplxIn[i] = complex128(samples[i]) * complex(a.win[i], 0)
	}

	coeffs := a.cmplxFFT.Coefficients(nil, a.cmplxIn)

	half := a.size / 2
	for i, c := range coeffs {
		a.bins[(i+half)%a.size] = toDb(cmplx.Abs(c) / float64(a.size))
	}

	return a.bins
}

// BinWidth returns the frequency covered by one bin at the given rate.
func (a *Analyzer) BinWidth(sampleRate rf.Hz) rf.Hz {
	return sampleRate / rf.Hz(a.size)
}

func toDb(mag float64) float64 {
	if mag <= 0 {
		return -160
	}

	db := 20 * math.Log10(mag)
	if db < -160 {
		return -160
	}

	return db
}
