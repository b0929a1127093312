package front

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSubmitEmitsFullBlocks(t *testing.T) {
	c := NewConditioner(8)

	var blocks [][]complex64

	raw := make([]byte, 2*20)
	for i := range raw {
		raw[i] = byte(i)
	}

	n := c.Submit(raw, func(block []complex64) {
		cp := make([]complex64, len(block))
		copy(cp, block)
		blocks = append(blocks, cp)
	})

	require.Equal(t, 20, n)
	require.Len(t, blocks, 2)
	require.Equal(t, 4, c.Residue())
}

func TestSampleConservationAndOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		blockSize := 1 << rapid.IntRange(0, 6).Draw(t, "blockPow")
		c := NewConditioner(blockSize)

		var emitted []complex64

		total := 0
		residue := 0

		for range rapid.IntRange(1, 10).Draw(t, "submissions") {
			n := rapid.IntRange(0, 3*blockSize).Draw(t, "n")
			raw := make([]byte, 2*n)

			for i := range raw {
				raw[i] = byte(rapid.IntRange(0, 255).Draw(t, "b"))
			}

			consumed := c.Submit(raw, func(block []complex64) {
				emitted = append(emitted, block...)
			})

			require.Equal(t, n, consumed)

			total += n
			residue = c.Residue()

			// Everything submitted is either emitted or retained.
			require.Equal(t, total, len(emitted)+residue)
			require.Equal(t, total%blockSize, residue)
		}
	})
}

func TestZeroInputIsMidScale(t *testing.T) {
	c := NewConditioner(4)

	raw := []byte{128, 128, 127, 127, 128, 127, 127, 128}

	c.Submit(raw, func(block []complex64) {
		for _, s := range block {
			require.Less(t, real(s)*real(s)+imag(s)*imag(s), float32(1e-4))
		}
	})
}
