package auricula

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"hz.tools/rf"

	"github.com/farcloser/auricula/internal/dsp"
	"github.com/farcloser/auricula/internal/rds"
)

var captureRate = 1024 * rf.KHz

// modulate FM-modulates the multiplex onto a u8 IQ stream at the capture
// rate.
func modulate(mpx []float64, deviation rf.Hz) []byte {
	out := make([]byte, 2*len(mpx))

	phase := 0.0
	step := 2 * math.Pi * float64(deviation) / float64(captureRate)

	for i, m := range mpx {
		phase = dsp.WrapPhase(phase + step*m)

		out[2*i] = byte(math.Round(127.5 + 127.4*math.Cos(phase)))
		out[2*i+1] = byte(math.Round(127.5 + 127.4*math.Sin(phase)))
	}

	return out
}

// pilotMPX renders the given number of capture-rate samples of multiplex with
// a 10 % pilot and optional mono program.
func pilotMPX(samples int, mono func(t float64) float64) []float64 {
	out := make([]float64, samples)

	for i := range out {
		t := float64(i) / float64(captureRate)
		out[i] = 0.1 * math.Cos(2*math.Pi*19000*t)

		if mono != nil {
			out[i] += 0.45 * mono(t)
		}
	}

	return out
}

func TestConstructionErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"block size not power of two", func(c *Config) { c.BlockSize = 1000 }},
		{"audio rate unsupported", func(c *Config) { c.AudioSampleRate = rf.Hz(32000) }},
		{"deemphasis unsupported", func(c *Config) { c.DeemphasisMicros = 25 }},
		{"input rate too low", func(c *Config) { c.InputSampleRate = 100 * rf.KHz }},
		{"spectrum size not power of two", func(c *Config) { c.SpectrumSize = 1000 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			_, err := New(cfg)
			require.Error(t, err)
		})
	}
}

func TestDefaultsAndRates(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	m1, m2 := p.DecimationFactors()
	require.Equal(t, 4, m1)
	require.Equal(t, 5, m2)
	require.Equal(t, 256*rf.KHz, p.MPXRate())
	require.Equal(t, rf.Hz(51200), p.AudioSampleRate())

	status := p.Status()
	require.Equal(t, rds.Hunt.String(), status.RDSSyncState)
	require.False(t, status.PilotLocked)
}

func TestZeroInputIsSilentAndHunting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockSize = 8192

	p, err := New(cfg)
	require.NoError(t, err)

	var peak float32

	p.OnAudio(func(frames []Frame, rate int) {
		require.Equal(t, int(p.AudioSampleRate()), rate)

		for _, f := range frames {
			if f.L > peak {
				peak = f.L
			}

			if -f.L > peak {
				peak = -f.L
			}
		}
	})

	// Mid-scale bytes: DC at the capture center.
	raw := make([]byte, 2*8192)
	for i := range raw {
		raw[i] = 128
	}

	for range 16 {
		p.Process(raw)
	}

	status := p.Status()
	require.False(t, status.PilotLocked)
	require.False(t, status.RDSGroupSync)
	require.Equal(t, rds.Hunt.String(), status.RDSSyncState)
	require.Equal(t, uint64(16), status.Counters.BlocksProcessed)
	require.Less(t, float64(peak), 0.01)
	require.Empty(t, p.Database().PIs())
}

func TestSampleCountConservation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockSize = 4096

	p, err := New(cfg)
	require.NoError(t, err)

	m1, m2 := p.DecimationFactors()

	var frames int

	p.OnAudio(func(f []Frame, _ int) {
		frames += len(f)
	})

	const blocks = 64

	total := blocks * cfg.BlockSize
	raw := make([]byte, 2*total)

	for i := range raw {
		raw[i] = 128
	}

	// Feed in awkward chunk sizes; only complete u8 pairs per call.
	for off := 0; off < len(raw); {
		n := 3000
		if off+n > len(raw) {
			n = len(raw) - off
		}

		n &^= 1

		consumed := p.Process(raw[off : off+n])
		require.Equal(t, n/2, consumed)

		off += n
	}

	require.Equal(t, total/(m1*m2), frames)
}

func TestPilotOnlyScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline")
	}

	cfg := DefaultConfig()
	cfg.BlockSize = 65536

	p, err := New(cfg)
	require.NoError(t, err)

	var audioEnergy, audioCount float64

	p.OnAudio(func(frames []Frame, _ int) {
		for _, f := range frames {
			audioEnergy += float64(f.L) * float64(f.L)
			audioCount++
		}
	})

	// 500 ms of pilot-only program.
	raw := modulate(pilotMPX(int(captureRate)/2, nil), cfg.FMDeviation)

	lockedAt := -1

	for off, block := 0, 0; off+2*cfg.BlockSize <= len(raw); off, block = off+2*cfg.BlockSize, block+1 {
		p.Process(raw[off : off+2*cfg.BlockSize])

		if lockedAt < 0 && p.Status().PilotLocked {
			lockedAt = (block + 1) * cfg.BlockSize
		}
	}

	require.True(t, p.Status().PilotLocked)

	// Lock within 250 ms of capture.
	require.GreaterOrEqual(t, lockedAt, 0)
	require.Less(t, float64(lockedAt)/float64(captureRate), 0.25)

	// The pilot sits above the 15 kHz audio low-pass: the program is quiet.
	require.Less(t, audioEnergy/audioCount, 1e-3)

	require.False(t, p.Status().RDSGroupSync)
}

func TestEndToEndRDS(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline")
	}

	cfg := DefaultConfig()
	cfg.BlockSize = 65536
	cfg.OutputRDSSignal = true

	p, err := New(cfg)
	require.NoError(t, err)

	var symbolBlocks int

	p.OnRDSSignal(func(symbols []float32) {
		if len(symbols) > 0 {
			symbolBlocks++
		}
	})

	// Program: PS groups for PI 0x1234 cycling all four address pairs.
	ps := "TESTFM  "

	var bits []byte

	for range 10 {
		for addr := range 4 {
			bits = append(bits, rds.EncodeGroup([4]uint16{
				0x1234,
				uint16(addr),
				0xE0E0,
				uint16(ps[addr*2])<<8 | uint16(ps[addr*2+1]),
			})...)
		}
	}

	mpx := rdsMPX(bits, 700)
	raw := modulate(mpx, cfg.FMDeviation)

	for off := 0; off+2*cfg.BlockSize <= len(raw); off += 2 * cfg.BlockSize {
		p.Process(raw[off : off+2*cfg.BlockSize])
	}

	status := p.Status()
	require.True(t, status.PilotLocked)
	require.True(t, status.RDSSymbolLocked)
	require.True(t, status.RDSGroupSync)
	require.Greater(t, status.Counters.RDSGroups, uint64(20))
	require.Positive(t, symbolBlocks)

	station, ok := p.Database().Snapshot(0x1234)
	require.True(t, ok)
	require.Equal(t, "TESTFM  ", station.PS)
}

// rdsMPX renders a multiplex carrying the pilot plus the differentially
// encoded, RRC-shaped RDS bit stream on the 57 kHz subcarrier.
func rdsMPX(bits []byte, padSymbols int) []float64 {
	sps := float64(captureRate) / rds.SymbolRate

	// The preamble alternates polarity so the timing loop sees transitions.
	symbols := make([]float64, 0, len(bits)+padSymbols)

	for i := range padSymbols / 2 {
		symbols = append(symbols, float64(1-2*(i&1)))
	}

	level := byte(1)

	for _, b := range bits {
		level ^= b & 1

		if level == 1 {
			symbols = append(symbols, 1)
		} else {
			symbols = append(symbols, -1)
		}
	}

	for i := range padSymbols / 2 {
		symbols = append(symbols, float64(1-2*(i&1)))
	}

	pulse := dsp.RootRaisedCosine(int(8*sps)|1, sps, 1)

	// Unit peak, so the subcarrier deviation survives u8 quantization.
	var peak float32

	for _, v := range pulse {
		if v > peak {
			peak = v
		}
	}

	for i := range pulse {
		pulse[i] /= peak
	}

	total := int(float64(len(symbols))*sps) + len(pulse)
	baseband := make([]float64, total)

	for k, a := range symbols {
		center := int(float64(k) * sps)
		for i, pv := range pulse {
			if center+i < len(baseband) {
				baseband[center+i] += a * float64(pv)
			}
		}
	}

	out := make([]float64, total)

	for i := range out {
		t := float64(i) / float64(captureRate)
		wp := 2 * math.Pi * 19000 * t
		out[i] = 0.1*math.Cos(wp) + 0.06*baseband[i]*math.Cos(3*wp)
	}

	return out
}

func TestObserverOrderPerBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockSize = 8192
	cfg.OutputRDSSignal = true
	cfg.OutputSpectrum = true
	cfg.SpectrumSize = 1024

	p, err := New(cfg)
	require.NoError(t, err)

	var order []string

	p.OnSpectrum(func(s SpectrumSnapshot) {
		require.Len(t, s.Input, 1024)
		require.Len(t, s.MPX, 513)

		order = append(order, "spectrum")
	})
	p.OnRDSSignal(func([]float32) {
		order = append(order, "rds")
	})
	p.OnAudio(func([]Frame, int) {
		order = append(order, "audio")
	})

	raw := make([]byte, 2*8192)
	for i := range raw {
		raw[i] = 128
	}

	p.Process(raw)

	require.Equal(t, []string{"spectrum", "rds", "audio"}, order)
}

func TestSubmitRunStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockSize = 4096

	p, err := New(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		done <- p.Run(context.Background())
	}()

	raw := make([]byte, 2*4096)
	for i := range raw {
		raw[i] = 128
	}

	for range 8 {
		require.NoError(t, p.Submit(raw))
	}

	// Give the worker a moment, then stop cooperatively.
	require.Eventually(t, func() bool {
		return p.Counters().BlocksProcessed > 0
	}, 5*time.Second, time.Millisecond)

	p.Stop()

	require.NoError(t, <-done)
	require.ErrorIs(t, p.Submit(raw), ErrStopped)
}
