package auricula

import (
	"errors"
	"fmt"

	"hz.tools/rf"

	"github.com/farcloser/auricula/internal/stereo"
	"github.com/farcloser/auricula/internal/types"
)

// ErrInvalidConfig wraps every construction-time configuration failure. The
// pipeline is never created from a bad configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Frame is one stereo audio frame, both channels clamped to [-1, +1].
type Frame = types.Frame

// Config describes a pipeline at construction. The zero value of any field
// falls back to its default.
type Config struct {
	// BlockSize is the input block size in complex samples; a power of two.
	BlockSize int

	// InputSampleRate is the capture rate of the u8 IQ stream.
	InputSampleRate rf.Hz

	// FMDeviation is the broadcast deviation, 75 kHz nominal.
	FMDeviation rf.Hz

	// DeemphasisMicros selects the de-emphasis time constant: 50 (Europe) or
	// 75 (US).
	DeemphasisMicros int

	// AudioSampleRate is the target audio rate: 44100, 48000, or 50000. The
	// delivered rate is the nearest integer division of the multiplex rate;
	// Status reports it.
	AudioSampleRate rf.Hz

	// OutputRDSSignal enables the post-matched-filter symbol observer.
	OutputRDSSignal bool

	// OutputSpectrum enables per-block spectrum snapshots of the capture
	// input and the multiplex.
	OutputSpectrum bool

	// SpectrumSize is the FFT length for spectrum snapshots; a power of two
	// no larger than BlockSize.
	SpectrumSize int

	// QueueDepth bounds the Submit queue; at least 2.
	QueueDepth int
}

// DefaultConfig returns the RTL-SDR-class defaults: 1.024 MS/s capture,
// 64 Ki sample blocks, 75 kHz deviation, 50 µs de-emphasis, 48 kHz audio.
func DefaultConfig() Config {
	return Config{
		BlockSize:        65536,
		InputSampleRate:  1024 * rf.KHz,
		FMDeviation:      75 * rf.KHz,
		DeemphasisMicros: 50,
		AudioSampleRate:  rf.Hz(48000),
		SpectrumSize:     2048,
		QueueDepth:       2,
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.BlockSize == 0 {
		c.BlockSize = defaults.BlockSize
	}

	if c.InputSampleRate == 0 {
		c.InputSampleRate = defaults.InputSampleRate
	}

	if c.FMDeviation == 0 {
		c.FMDeviation = defaults.FMDeviation
	}

	if c.DeemphasisMicros == 0 {
		c.DeemphasisMicros = defaults.DeemphasisMicros
	}

	if c.AudioSampleRate == 0 {
		c.AudioSampleRate = defaults.AudioSampleRate
	}

	if c.SpectrumSize == 0 {
		c.SpectrumSize = defaults.SpectrumSize
	}

	if c.QueueDepth < 2 {
		c.QueueDepth = defaults.QueueDepth
	}
}

func (c Config) validate() error {
	if !types.IsPowerOfTwo(c.BlockSize) {
		return fmt.Errorf("%w: block size %d is not a power of two", ErrInvalidConfig, c.BlockSize)
	}

	if c.InputSampleRate <= 0 {
		return fmt.Errorf("%w: input sample rate %v", ErrInvalidConfig, c.InputSampleRate)
	}

	if c.FMDeviation <= 0 {
		return fmt.Errorf("%w: FM deviation %v", ErrInvalidConfig, c.FMDeviation)
	}

	if c.DeemphasisMicros != 50 && c.DeemphasisMicros != 75 {
		return fmt.Errorf("%w: de-emphasis %d µs (want 50 or 75)", ErrInvalidConfig, c.DeemphasisMicros)
	}

	supported := false

	for _, r := range stereo.AudioRates {
		if c.AudioSampleRate == r {
			supported = true

			break
		}
	}

	if !supported {
		return fmt.Errorf("%w: audio sample rate %v (want one of %v)", ErrInvalidConfig, c.AudioSampleRate, stereo.AudioRates)
	}

	if !types.IsPowerOfTwo(c.SpectrumSize) || c.SpectrumSize > c.BlockSize {
		return fmt.Errorf("%w: spectrum size %d", ErrInvalidConfig, c.SpectrumSize)
	}

	return nil
}

// Counters are the always-readable pipeline tallies.
type Counters struct {
	BlocksProcessed    uint64 `json:"blocks_processed"`
	RDSBlocksCorrected uint64 `json:"rds_blocks_corrected"`
	RDSBlocksDropped   uint64 `json:"rds_blocks_dropped"`
	RDSGroups          uint64 `json:"rds_groups"`
}

// Status is a point-in-time snapshot of the signal state.
type Status struct {
	PilotLocked     bool    `json:"pilot_locked"`
	RDSSymbolLocked bool    `json:"rds_symbol_locked"`
	RDSGroupSync    bool    `json:"rds_group_sync"`
	RDSSyncState    string  `json:"rds_sync_state"`
	PilotOffsetHz   float64 `json:"pilot_offset_hz"`
	AudioSampleRate int     `json:"audio_sample_rate"`

	Counters Counters `json:"counters"`
}

// AudioFunc receives decoded audio. The frame slice is borrowed: it is only
// valid for the duration of the call, and retaining it requires a copy.
type AudioFunc func(frames []Frame, sampleRate int)

// RDSSignalFunc receives the post-matched-filter soft symbol stream for one
// block. The slice is borrowed for the duration of the call.
type RDSSignalFunc func(symbols []float32)

// SpectrumSnapshot carries per-block magnitude spectra for visualization.
// Both slices are borrowed for the duration of the callback.
type SpectrumSnapshot struct {
	// Input is the two-sided capture spectrum, DC centered.
	Input []float64

	// MPX is the one-sided multiplex spectrum.
	MPX []float64
}

// SpectrumFunc receives spectrum snapshots when OutputSpectrum is enabled.
type SpectrumFunc func(SpectrumSnapshot)
