// Package front implements the capture-side conditioner: it converts raw
// interleaved u8 IQ bytes into zero-centered complex samples and re-blocks
// them so downstream stages always see their fixed block size.
package front

import (
	"github.com/farcloser/auricula/internal/dsp/kernel"
)

// Conditioner owns the reconstruction buffer carrying partial blocks between
// submissions. Samples are never dropped or reordered.
type Conditioner struct {
	blockSize int // complex samples per emitted block

	// Ring of converted samples; capacity is twice the emitted block size so
	// a full residue plus a full submission always fit.
	buf   []complex64
	level int

	out []complex64
}

// NewConditioner builds a conditioner emitting blocks of blockSize complex
// samples.
func NewConditioner(blockSize int) *Conditioner {
	return &Conditioner{
		blockSize: blockSize,
		buf:       make([]complex64, 2*blockSize),
		out:       make([]complex64, blockSize),
	}
}

// Residue returns the number of samples retained from previous submissions.
func (c *Conditioner) Residue() int {
	return c.level
}

// Submit converts raw bytes (interleaved u8 I/Q) and invokes emit for every
// complete block formed. It returns the number of complex samples consumed,
// which is always len(raw)/2: trailing partial blocks are retained as residue
// for the next call.
//
// The block passed to emit is borrowed and only valid for the duration of the
// callback.
func (c *Conditioner) Submit(raw []byte, emit func(block []complex64)) int {
	samples := len(raw) / 2
	raw = raw[:samples*2]

	consumed := 0

	for consumed < samples {
		space := c.blockSize - c.level
		take := samples - consumed

		if take > space {
			take = space
		}

		kernel.ConvertU8C64(c.buf[c.level:c.level+take], raw[consumed*2:(consumed+take)*2])
		c.level += take
		consumed += take

		if c.level == c.blockSize {
			copy(c.out, c.buf[:c.blockSize])
			c.level = 0

			emit(c.out)
		}
	}

	return samples
}

// Reset discards any retained residue.
func (c *Conditioner) Reset() {
	c.level = 0
}
