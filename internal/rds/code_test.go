package rds

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func block(info uint16, offset uint16) uint32 {
	return uint32(info)<<checkBits | uint32(checkword(info, offset))
}

func TestValidBlockSyndromeIsOffset(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		info := uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "info"))

		for _, offset := range []uint16{OffsetA, OffsetB, OffsetC, OffsetCp, OffsetD} {
			require.Equal(t, offset, syndrome(block(info, offset)))
		}
	})
}

func TestSingleBitErrorsAreCorrected(t *testing.T) {
	const info = 0x1234

	b := block(info, OffsetB)

	for pos := range blockBits {
		got, repaired, ok := correct(b^(1<<pos), OffsetB)

		require.True(t, ok, "bit %d", pos)
		require.True(t, repaired, "bit %d", pos)
		require.Equal(t, uint16(info), got, "bit %d", pos)
	}
}

func TestCleanBlockNeedsNoRepair(t *testing.T) {
	got, repaired, ok := correct(block(0xCAFE, OffsetD), OffsetD)

	require.True(t, ok)
	require.False(t, repaired)
	require.Equal(t, uint16(0xCAFE), got)
}

func TestDoubleBitErrorIsNotSilentlyAccepted(t *testing.T) {
	const info = 0x0F0F

	b := block(info, OffsetA) ^ 0b11

	got, _, ok := correct(b, OffsetA)
	if ok {
		// A two-bit error may alias onto a correctable pattern, but it must
		// never reproduce the original word unnoticed.
		require.NotEqual(t, uint16(info), got)
	}
}

func TestWrongOffsetRejected(t *testing.T) {
	_, _, ok := correct(block(0x1234, OffsetA), OffsetB)
	require.False(t, ok)
}

func TestEncodeGroupRoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var blocks [4]uint16
		for i := range blocks {
			blocks[i] = uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "info"))
		}

		bits := EncodeGroup(blocks)
		require.Len(t, bits, 104)

		offsets := [4]uint16{OffsetA, OffsetB, OffsetC, OffsetD}
		if blocks[1]&(1<<11) != 0 {
			offsets[2] = OffsetCp
		}

		for i := range 4 {
			var word uint32
			for _, bit := range bits[i*26 : (i+1)*26] {
				word = word<<1 | uint32(bit)
			}

			require.Equal(t, offsets[i], syndrome(word))
			require.Equal(t, blocks[i], uint16(word>>checkBits))
		}
	})
}
