package rds

import (
	"math"

	"github.com/farcloser/auricula/internal/dsp"
)

// Gardner timing loop constants. The loop bandwidth is about one percent of
// the symbol rate; lock is declared when the detector error variance over a
// 256-symbol window settles, with hysteresis against flapping.
const (
	timingKp = 0.05
	timingKi = 0.0005

	lockWindow    = 256
	lockOnVar     = 0.05
	lockOffVar    = 0.15
	timingErrClip = 2.0
)

// symbolTiming recovers symbol instants from the matched-filter output with a
// Gardner detector and a polyphase fractional interpolator.
type symbolTiming struct {
	interp *dsp.Interpolator
	sps    float64 // samples per symbol, fractional

	t     float64 // next symbol instant, buffer coordinates
	integ float64 // PI loop integrator, samples per symbol adjustment

	prev    float32
	havePrev bool

	amp float64 // tracked symbol amplitude for error normalization

	buf []float32

	errRing [lockWindow]float64
	errIdx  int
	errFill int
	errSum  float64
	errSq   float64
	locked  bool
}

func newSymbolTiming(sps float64) *symbolTiming {
	return &symbolTiming{
		interp: dsp.NewInterpolator(),
		sps:    sps,
		t:      sps,
	}
}

// process consumes matched-filter samples and appends recovered soft symbols
// to out.
func (st *symbolTiming) process(out []float32, in []float32) []float32 {
	st.buf = append(st.buf, in...)

	limit := float64(len(st.buf) - dsp.InterpRight - 1)

	for st.t < limit {
		y := st.interp.At(st.buf, st.t)
		mid := st.interp.At(st.buf, st.t-st.sps/2)

		adv := st.sps

		if st.havePrev {
			st.amp += 0.01 * (math.Abs(float64(y)) - st.amp)

			norm := st.amp * st.amp
			if norm < 1e-6 {
				norm = 1e-6
			}

			e := float64(y-st.prev) * float64(mid) / norm
			if e > timingErrClip {
				e = timingErrClip
			} else if e < -timingErrClip {
				e = -timingErrClip
			}

			// Positive error means the instants drifted late: shorten the
			// advance.
			st.integ -= timingKi * e
			adv += st.integ - timingKp*e

			st.track(e)
		}

		out = append(out, y)
		st.prev = y
		st.havePrev = true
		st.t += adv
	}

	// Keep enough tail for the next mid-symbol interpolation.
	cut := int(st.t-st.sps/2) - dsp.InterpLeft - 2
	if cut > 0 {
		if cut > len(st.buf) {
			cut = len(st.buf)
		}

		copy(st.buf, st.buf[cut:])
		st.buf = st.buf[:len(st.buf)-cut]
		st.t -= float64(cut)
	}

	return out
}

// track maintains the sliding error variance and the hysteretic lock bit.
func (st *symbolTiming) track(e float64) {
	old := st.errRing[st.errIdx]
	st.errRing[st.errIdx] = e
	st.errIdx = (st.errIdx + 1) % lockWindow

	if st.errFill < lockWindow {
		st.errFill++
		st.errSum += e
		st.errSq += e * e

		return
	}

	st.errSum += e - old
	st.errSq += e*e - old*old

	n := float64(lockWindow)
	mean := st.errSum / n

	variance := st.errSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}

	if st.locked {
		if variance > lockOffVar {
			st.locked = false
		}
	} else if variance < lockOnVar {
		st.locked = true
	}
}

func (st *symbolTiming) reset() {
	st.t = st.sps
	st.integ = 0
	st.prev = 0
	st.havePrev = false
	st.amp = 0
	st.buf = st.buf[:0]
	st.errRing = [lockWindow]float64{}
	st.errIdx = 0
	st.errFill = 0
	st.errSum = 0
	st.errSq = 0
	st.locked = false
}
