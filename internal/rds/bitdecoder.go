package rds

// BitDecoder runs the link layer over an externally recovered bit stream:
// block synchronization, error correction, and group assembly, without the
// physical chain. The dump tooling and offline decoders feed it directly.
type BitDecoder struct {
	sync *blockSync
	bits uint64
}

// NewBitDecoder builds a decoder delivering validated groups to onGroup.
func NewBitDecoder(onGroup func([4]uint16)) *BitDecoder {
	return &BitDecoder{
		sync: newBlockSync(onGroup),
	}
}

// Push consumes one decoded bit (LSB of b).
func (d *BitDecoder) Push(b byte) {
	d.bits++
	d.sync.push(b)
}

// State returns the synchronizer state.
func (d *BitDecoder) State() SyncState {
	return d.sync.state
}

// Bits counts consumed bits.
func (d *BitDecoder) Bits() uint64 {
	return d.bits
}

// Corrected counts blocks repaired by single-bit correction.
func (d *BitDecoder) Corrected() uint64 {
	return d.sync.corrected
}

// Dropped counts blocks that failed validation.
func (d *BitDecoder) Dropped() uint64 {
	return d.sync.dropped
}

// Reset returns the decoder to Hunt.
func (d *BitDecoder) Reset() {
	d.sync.reset()
}
