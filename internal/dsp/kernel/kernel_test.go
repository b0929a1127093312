package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRealizationsAgree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 300).Draw(t, "n")

		x := make([]complex64, n)
		h := make([]float32, n)

		for i := range x {
			x[i] = complex(
				float32(rapid.Float64Range(-1, 1).Draw(t, "re")),
				float32(rapid.Float64Range(-1, 1).Draw(t, "im")),
			)
			h[i] = float32(rapid.Float64Range(-1, 1).Draw(t, "h"))
		}

		want := dotC64F32Scalar(x, h)

		for _, got := range []complex64{dotC64F32Wide4(x, h), dotC64F32Wide8(x, h)} {
			require.InDelta(t, real(want), real(got), 1e-3)
			require.InDelta(t, imag(want), imag(got), 1e-3)
		}

		xr := make([]float32, n)
		for i := range xr {
			xr[i] = real(x[i])
		}

		wantR := dotF32Scalar(xr, h)
		require.InDelta(t, wantR, dotF32Wide4(xr, h), 1e-3)
		require.InDelta(t, wantR, dotF32Wide8(xr, h), 1e-3)
	})
}

func TestConvertU8C64(t *testing.T) {
	src := []byte{0, 0, 255, 255, 128, 127}
	dst := make([]complex64, 3)

	ConvertU8C64(dst, src)

	require.InDelta(t, -1.0, real(dst[0]), 1e-6)
	require.InDelta(t, -1.0, imag(dst[0]), 1e-6)
	require.InDelta(t, 1.0, real(dst[1]), 1e-6)
	require.InDelta(t, 1.0, imag(dst[1]), 1e-6)

	// Mid-scale maps to within half an LSB of zero, as rounded in float32.
	halfLSB := float64(float32(0.5 / 127.5))
	require.LessOrEqual(t, math.Abs(float64(real(dst[2]))), halfLSB)
	require.LessOrEqual(t, math.Abs(float64(imag(dst[2]))), halfLSB)
}

func TestSelectedIsStable(t *testing.T) {
	first := Selected()
	require.Equal(t, first, Selected())
	require.NotEqual(t, "unknown", first.String())
}
