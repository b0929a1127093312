package kernel

func dotC64F32Scalar(x []complex64, h []float32) complex64 {
	var acc complex64

	for i := range x {
		acc += x[i] * complex(h[i], 0)
	}

	return acc
}

// dotC64F32Wide4 splits the accumulation across four independent lanes so the
// loop body carries no dependency chain between iterations.
func dotC64F32Wide4(x []complex64, h []float32) complex64 {
	var a0, a1, a2, a3 complex64

	n := len(x) &^ 3

	for i := 0; i < n; i += 4 {
		a0 += x[i] * complex(h[i], 0)
		a1 += x[i+1] * complex(h[i+1], 0)
		a2 += x[i+2] * complex(h[i+2], 0)
		a3 += x[i+3] * complex(h[i+3], 0)
	}

	acc := a0 + a1 + a2 + a3
	for i := n; i < len(x); i++ {
		acc += x[i] * complex(h[i], 0)
	}

	return acc
}

func dotC64F32Wide8(x []complex64, h []float32) complex64 {
	var a0, a1, a2, a3, a4, a5, a6, a7 complex64

	n := len(x) &^ 7

	for i := 0; i < n; i += 8 {
		a0 += x[i] * complex(h[i], 0)
		a1 += x[i+1] * complex(h[i+1], 0)
		a2 += x[i+2] * complex(h[i+2], 0)
		a3 += x[i+3] * complex(h[i+3], 0)
		a4 += x[i+4] * complex(h[i+4], 0)
		a5 += x[i+5] * complex(h[i+5], 0)
		a6 += x[i+6] * complex(h[i+6], 0)
		a7 += x[i+7] * complex(h[i+7], 0)
	}

	acc := a0 + a1 + a2 + a3 + a4 + a5 + a6 + a7
	for i := n; i < len(x); i++ {
		acc += x[i] * complex(h[i], 0)
	}

	return acc
}

func dotF32Scalar(x, h []float32) float32 {
	var acc float32

	for i := range x {
		acc += x[i] * h[i]
	}

	return acc
}

func dotF32Wide4(x, h []float32) float32 {
	var a0, a1, a2, a3 float32

	n := len(x) &^ 3

	for i := 0; i < n; i += 4 {
		a0 += x[i] * h[i]
		a1 += x[i+1] * h[i+1]
		a2 += x[i+2] * h[i+2]
		a3 += x[i+3] * h[i+3]
	}

	acc := a0 + a1 + a2 + a3
	for i := n; i < len(x); i++ {
		acc += x[i] * h[i]
	}

	return acc
}

func dotF32Wide8(x, h []float32) float32 {
	var a0, a1, a2, a3, a4, a5, a6, a7 float32

	n := len(x) &^ 7

	for i := 0; i < n; i += 8 {
		a0 += x[i] * h[i]
		a1 += x[i+1] * h[i+1]
		a2 += x[i+2] * h[i+2]
		a3 += x[i+3] * h[i+3]
		a4 += x[i+4] * h[i+4]
		a5 += x[i+5] * h[i+5]
		a6 += x[i+6] * h[i+6]
		a7 += x[i+7] * h[i+7]
	}

	acc := a0 + a1 + a2 + a3 + a4 + a5 + a6 + a7
	for i := n; i < len(x); i++ {
		acc += x[i] * h[i]
	}

	return acc
}
