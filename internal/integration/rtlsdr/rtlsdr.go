// Package rtlsdr drives the rtl_sdr capture binary and exposes its raw u8 IQ
// stream. It is a convenience for the cmd front-ends; the pipeline itself
// only sees bytes.
package rtlsdr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/farcloser/primordium/fault"
	"hz.tools/rf"

	"github.com/farcloser/auricula/internal/integration/binary"
)

const name = "rtl_sdr"

// Options configure one capture run.
type Options struct {
	// Frequency tunes the front end.
	Frequency rf.Hz

	// SampleRate is the capture rate handed to the device.
	SampleRate rf.Hz

	// Gain in tenths of dB; 0 selects automatic gain.
	Gain int
}

// Stream starts rtl_sdr and returns its stdout as the IQ byte stream. The
// returned wait function reaps the process; canceling the context stops the
// capture.
func Stream(ctx context.Context, opts Options) (io.ReadCloser, func() error, error) {
	slog.Debug("rtlsdr.Stream", "frequency", opts.Frequency, "rate", opts.SampleRate, "stage", "start")

	path, found := binary.Available(name)
	if !found {
		return nil, nil, fmt.Errorf("%w: %s", fault.ErrMissingRequirements, name)
	}

	args := []string{
		"-f", strconv.Itoa(int(opts.Frequency)),
		"-s", strconv.Itoa(int(opts.SampleRate)),
	}

	if opts.Gain > 0 {
		args = append(args, "-g", strconv.FormatFloat(float64(opts.Gain)/10, 'f', 1, 64))
	}

	args = append(args, "-")

	cmd := exec.CommandContext(ctx, path, args...)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", fault.ErrCommandFailure, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", fault.ErrCommandFailure, err)
	}

	wait := func() error {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			slog.Debug("rtlsdr.Stream", "stage", "error", "stderr", stderr.String())

			return fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
		}

		return nil
	}

	return stdout, wait, nil
}
