// Package kernel provides the numeric hot-path primitives used by the filter
// and mixer stages: complex-by-real dot products, real dot products, and u8 IQ
// conversion.
//
// Each primitive has three realizations widened for different register
// classes: scalar, 4-lane, and 8-lane. The lane-split variants keep
// independent accumulators so the compiler can vectorize the inner loop. One
// realization is selected at package init from a CPU feature probe and never
// changes afterwards.
package kernel

import (
	"golang.org/x/sys/cpu"
)

// Realization identifies the kernel set selected by the CPU probe.
type Realization int

const (
	Scalar Realization = iota
	Wide4
	Wide8
)

func (r Realization) String() string {
	switch r {
	case Scalar:
		return "scalar"
	case Wide4:
		return "wide4"
	case Wide8:
		return "wide8"
	}

	return "unknown"
}

var selected = probe()

func probe() Realization {
	switch {
	case cpu.X86.HasAVX2:
		return Wide8
	case cpu.X86.HasSSE3:
		return Wide4
	case cpu.ARM64.HasASIMD:
		return Wide4
	}

	return Scalar
}

// Selected returns the realization chosen by the CPU probe.
func Selected() Realization {
	return selected
}

// DotC64F32 multiplies a complex window against real taps and accumulates.
// Both slices must have the same length.
func DotC64F32(x []complex64, h []float32) complex64 {
	switch selected {
	case Wide8:
		return dotC64F32Wide8(x, h)
	case Wide4:
		return dotC64F32Wide4(x, h)
	default:
		return dotC64F32Scalar(x, h)
	}
}

// DotF32 multiplies a real window against real taps and accumulates.
// Both slices must have the same length.
func DotF32(x, h []float32) float32 {
	switch selected {
	case Wide8:
		return dotF32Wide8(x, h)
	case Wide4:
		return dotF32Wide4(x, h)
	default:
		return dotF32Scalar(x, h)
	}
}

// ConvertU8C64 converts interleaved u8 I/Q bytes into zero-centered complex
// samples scaled to [-1, +1]. len(src) must be 2*len(dst).
func ConvertU8C64(dst []complex64, src []byte) {
	const (
		bias  = 127.5
		scale = 1.0 / 127.5
	)

	for i := range dst {
		re := (float32(src[2*i]) - bias) * scale
		im := (float32(src[2*i+1]) - bias) * scale
		dst[i] = complex(re, im)
	}
}
