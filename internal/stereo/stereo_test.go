package stereo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"hz.tools/rf"
)

var mpxRate = 256 * rf.KHz

// synthMPX builds count samples of multiplex carrying the given left/right
// generators and a 10 % pilot.
func synthMPX(count int, left, right func(t float64) float64) []float32 {
	out := make([]float32, count)

	for i := range out {
		t := float64(i) / float64(mpxRate)
		wp := 2 * math.Pi * 19000 * t

		l := left(t)
		r := right(t)

		mono := (l + r) / 2
		diff := (l - r) / 2

		out[i] = float32(0.8*(mono+diff*math.Cos(2*wp)) + 0.1*math.Cos(wp))
	}

	return out
}

func TestPilotLockWithinQuarterSecond(t *testing.T) {
	d, err := New(mpxRate, rf.Hz(50000), 50)
	require.NoError(t, err)
	require.Equal(t, 5, d.DecimationFactor())
	require.Equal(t, rf.Hz(51200), d.AudioRate())

	mpx := synthMPX(int(mpxRate)/4, func(float64) float64 { return 0 }, func(float64) float64 { return 0 })

	for off := 0; off < len(mpx); off += 8192 {
		d.Process(mpx[off:min(off+8192, len(mpx))])
	}

	require.True(t, d.PilotLocked())
	require.InDelta(t, 0, float64(d.PilotOffset()), 2)
}

func TestStereoSeparation(t *testing.T) {
	d, err := New(mpxRate, rf.Hz(48000), 50)
	require.NoError(t, err)

	tone := func(t float64) float64 { return math.Sin(2 * math.Pi * 1000 * t) }
	silent := func(float64) float64 { return 0 }

	mpx := synthMPX(int(mpxRate)/2, tone, silent)

	var sumL, sumR float64

	counted := 0

	for off := 0; off < len(mpx); off += 8192 {
		end := min(off+8192, len(mpx))

		frames, phases := d.Process(mpx[off:end])
		require.Len(t, phases, end-off)

		// Only measure once the loop has settled.
		if off < len(mpx)/2 {
			continue
		}

		for _, f := range frames {
			sumL += float64(f.L) * float64(f.L)
			sumR += float64(f.R) * float64(f.R)
			counted++
		}
	}

	require.True(t, d.PilotLocked())
	require.Positive(t, counted)

	// Left carries the tone; right should sit at least 20 dB down.
	require.Greater(t, sumL/float64(counted), 0.05)
	require.Less(t, sumR/sumL, 0.01)
}

func TestMonoFallbackWithoutPilot(t *testing.T) {
	d, err := New(mpxRate, rf.Hz(48000), 50)
	require.NoError(t, err)

	// Mono MPX, no pilot at all.
	mpx := make([]float32, 65536)
	for i := range mpx {
		mpx[i] = float32(0.5 * math.Sin(2*math.Pi*1000*float64(i)/float64(mpxRate)))
	}

	var frames int

	for off := 0; off < len(mpx); off += 8192 {
		out, _ := d.Process(mpx[off : off+8192])

		for _, f := range out {
			require.Equal(t, f.L, f.R)
		}

		frames += len(out)
	}

	require.False(t, d.PilotLocked())
	require.Equal(t, len(mpx)/d.DecimationFactor(), frames)
}

func TestRejectsUnsupportedAudioRate(t *testing.T) {
	_, err := New(mpxRate, rf.Hz(32000), 50)
	require.Error(t, err)
}

func TestFramesAreClamped(t *testing.T) {
	d, err := New(mpxRate, rf.Hz(48000), 50)
	require.NoError(t, err)

	// Overdriven MPX.
	mpx := make([]float32, 16384)
	for i := range mpx {
		mpx[i] = 3
	}

	frames, _ := d.Process(mpx)
	for _, f := range frames {
		require.LessOrEqual(t, float64(f.L), 1.0)
		require.GreaterOrEqual(t, float64(f.L), -1.0)
		require.LessOrEqual(t, float64(f.R), 1.0)
		require.GreaterOrEqual(t, float64(f.R), -1.0)
	}
}
