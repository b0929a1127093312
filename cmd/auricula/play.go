package main

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/farcloser/auricula"
)

// player pushes decoded frames to the default output device through
// portaudio's blocking interface.
type player struct {
	stream *portaudio.Stream
	buf    []float32
	fill   int
}

const playerChunk = 2048

func newPlayer(sampleRate int) (*player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	p := &player{
		buf: make([]float32, 2*playerChunk),
	}

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), playerChunk, &p.buf)
	if err != nil {
		_ = portaudio.Terminate()

		return nil, fmt.Errorf("opening output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()

		return nil, fmt.Errorf("starting output stream: %w", err)
	}

	p.stream = stream

	return p, nil
}

// write copies borrowed frames into the device buffer, flushing full chunks.
// Device errors (underruns) are not fatal to the pipeline.
func (p *player) write(frames []auricula.Frame) {
	for _, f := range frames {
		p.buf[p.fill] = f.L
		p.buf[p.fill+1] = f.R
		p.fill += 2

		if p.fill == len(p.buf) {
			p.fill = 0

			_ = p.stream.Write()
		}
	}
}

func (p *player) close() {
	_ = p.stream.Stop()
	_ = p.stream.Close()
	_ = portaudio.Terminate()
}
