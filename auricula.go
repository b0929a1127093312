// Package auricula is a broadcast FM software radio pipeline: it ingests a
// raw u8 IQ stream from an RTL-SDR-class front end and produces stereo PCM
// audio plus a decoded Radio Data System station database.
//
// The five stages run strictly sequentially on one worker: front-end
// conditioning, FM demodulation, stereo decoding, RDS symbol recovery, and
// RDS group decoding. All stage state is single-writer; the only structure
// read from outside the worker is the station database, which hands out
// snapshot copies.
package auricula

/*
Usage:

	pipe, err := auricula.New(auricula.DefaultConfig())
	if err != nil {
	    return err
	}

	pipe.OnAudio(func(frames []auricula.Frame, rate int) {
	    sink.Write(frames) // copy: the slice is borrowed
	})

	go pipe.Run(ctx)

	for {
	    block := readBlock(src)
	    if err := pipe.Submit(block); err != nil {
	        break
	    }
	}

	pipe.Stop()

	for _, pi := range pipe.Database().PIs() {
	    station, _ := pipe.Database().Snapshot(pi)
	    fmt.Println(station.PS, station.RadioText)
	}
*/

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"hz.tools/rf"

	"github.com/farcloser/auricula/internal/demod"
	"github.com/farcloser/auricula/internal/front"
	"github.com/farcloser/auricula/internal/rds"
	"github.com/farcloser/auricula/internal/spectrum"
	"github.com/farcloser/auricula/internal/stereo"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("pipeline stopped")

// Pipeline is one assembled receive chain. It is not safe to reconfigure
// after construction; observers must be attached before the first block.
type Pipeline struct {
	cfg Config

	cond     *front.Conditioner
	fm       *demod.Demodulator
	stereo   *stereo.Decoder
	receiver *rds.Receiver
	db       *rds.Database
	analyzer *spectrum.Analyzer

	onAudio    AudioFunc
	onRDS      RDSSignalFunc
	onSpectrum SpectrumFunc

	queue   chan []byte
	pool    sync.Pool
	quit    chan struct{}
	stopped atomic.Bool

	pending [][4]uint16

	mpx    []float32
	blocks uint64

	// Published at the end of every block so Status and Counters are safe
	// from any goroutine.
	status atomic.Pointer[Status]
}

// New validates the configuration and assembles the pipeline. Construction
// is the only fatal error path: a running pipeline degrades on bad signal,
// it never fails.
func New(cfg Config) (*Pipeline, error) {
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	fm, err := demod.New(cfg.InputSampleRate, cfg.FMDeviation)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	st, err := stereo.New(fm.MPXRate(), cfg.AudioSampleRate, float64(cfg.DeemphasisMicros))
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	p := &Pipeline{
		cfg:    cfg,
		cond:   front.NewConditioner(cfg.BlockSize),
		fm:     fm,
		stereo: st,
		db:     rds.NewDatabase(),
		queue:  make(chan []byte, cfg.QueueDepth),
		quit:   make(chan struct{}),
	}

	p.pool.New = func() any {
		return make([]byte, 0, 2*cfg.BlockSize)
	}

	p.receiver = rds.NewReceiver(fm.MPXRate(), func(blocks [4]uint16) {
		p.pending = append(p.pending, blocks)
	})

	if cfg.OutputSpectrum {
		p.analyzer = spectrum.New(cfg.SpectrumSize)
	}

	return p, nil
}

// OnAudio attaches the audio observer.
func (p *Pipeline) OnAudio(fn AudioFunc) {
	p.onAudio = fn
}

// OnRDSSignal attaches the soft-symbol observer. It only fires when the
// configuration enables OutputRDSSignal.
func (p *Pipeline) OnRDSSignal(fn RDSSignalFunc) {
	p.onRDS = fn
}

// OnSpectrum attaches the spectrum observer. It only fires when the
// configuration enables OutputSpectrum.
func (p *Pipeline) OnSpectrum(fn SpectrumFunc) {
	p.onSpectrum = fn
}

// Database returns the station store. Reads are safe from any goroutine.
func (p *Pipeline) Database() *rds.Database {
	return p.db
}

// AudioSampleRate returns the delivered audio rate.
func (p *Pipeline) AudioSampleRate() rf.Hz {
	return p.stereo.AudioRate()
}

// MPXRate returns the internal multiplex rate.
func (p *Pipeline) MPXRate() rf.Hz {
	return p.fm.MPXRate()
}

// DecimationFactors returns the channel and audio decimation ratios M1, M2.
func (p *Pipeline) DecimationFactors() (int, int) {
	return p.fm.DecimationFactor(), p.stereo.DecimationFactor()
}

// Process runs raw u8 IQ bytes through the pipeline synchronously on the
// calling goroutine and returns the number of complex samples consumed.
// Partial blocks are retained and complete on a later call.
func (p *Pipeline) Process(raw []byte) int {
	return p.cond.Submit(raw, p.processBlock)
}

// Submit copies one capture buffer into the bounded worker queue, blocking
// while the queue is full so backpressure reaches the source. It fails with
// ErrStopped once the pipeline is stopping.
func (p *Pipeline) Submit(raw []byte) error {
	if p.stopped.Load() {
		return ErrStopped
	}

	buf, _ := p.pool.Get().([]byte)
	buf = append(buf[:0], raw...)

	select {
	case p.queue <- buf:
		return nil
	case <-p.quit:
		return ErrStopped
	}
}

// Run drains the queue until the context is canceled or Stop is called. The
// in-flight block is finished before returning, so RDS groups whose blocks
// have all arrived are still emitted.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.quit:
			return nil
		case buf := <-p.queue:
			p.Process(buf)
			p.pool.Put(buf[:0]) //nolint:staticcheck // buffer reuse, not a pointer issue
		}
	}
}

// Stop requests a cooperative shutdown: Submit starts failing, and Run exits
// after finishing the block it is on.
func (p *Pipeline) Stop() {
	if p.stopped.CompareAndSwap(false, true) {
		close(p.quit)
	}
}

// processBlock is the strict A→E stage sequence for one conditioned block.
func (p *Pipeline) processBlock(block []complex64) {
	p.mpx = p.fm.Process(p.mpx[:0], block)

	frames, phases := p.stereo.Process(p.mpx)

	p.receiver.Process(p.mpx, phases)

	// Observer order per block: spectra, RDS symbols, audio, then database
	// change events.
	if p.analyzer != nil && p.onSpectrum != nil {
		// Complex and Real share the analyzer's bin buffer: copy the input
		// spectrum before the multiplex spectrum overwrites it.
		input := append([]float64(nil), p.analyzer.Complex(block)...)

		p.onSpectrum(SpectrumSnapshot{
			Input: input,
			MPX:   p.analyzer.Real(p.mpx),
		})
	}

	if p.cfg.OutputRDSSignal && p.onRDS != nil {
		p.onRDS(p.receiver.Symbols())
	}

	if p.onAudio != nil {
		p.onAudio(frames, int(p.stereo.AudioRate()))
	}

	for _, g := range p.pending {
		p.db.Apply(g)
	}

	p.pending = p.pending[:0]

	p.blocks++

	snap := p.snapshotStatus()
	p.status.Store(&snap)
}

// snapshotStatus reads the stage state; worker goroutine only.
func (p *Pipeline) snapshotStatus() Status {
	return Status{
		PilotLocked:     p.stereo.PilotLocked(),
		RDSSymbolLocked: p.receiver.SymbolLocked(),
		RDSGroupSync:    p.receiver.GroupSync(),
		RDSSyncState:    p.receiver.State().String(),
		PilotOffsetHz:   float64(p.stereo.PilotOffset()),
		AudioSampleRate: int(p.stereo.AudioRate()),
		Counters: Counters{
			BlocksProcessed:    p.blocks,
			RDSBlocksCorrected: p.receiver.CorrectedBlocks(),
			RDSBlocksDropped:   p.receiver.DroppedBlocks(),
			RDSGroups:          p.receiver.Groups(),
		},
	}
}

// Counters returns the always-readable tallies.
func (p *Pipeline) Counters() Counters {
	return p.Status().Counters
}

// Status returns the signal snapshot published after the most recent block.
func (p *Pipeline) Status() Status {
	if s := p.status.Load(); s != nil {
		return *s
	}

	return Status{
		RDSSyncState:    rds.Hunt.String(),
		AudioSampleRate: int(p.stereo.AudioRate()),
	}
}

// Reset returns every stage to its initial state and clears the database.
// Counters are preserved.
func (p *Pipeline) Reset() {
	p.cond.Reset()
	p.fm.Reset()
	p.stereo.Reset()
	p.receiver.Reset()
	p.db.Reset()
	p.pending = p.pending[:0]
}
