//nolint:wrapcheck
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"hz.tools/rf"

	"github.com/farcloser/auricula"
	"github.com/farcloser/auricula/internal/integration/rtlsdr"
	"github.com/farcloser/auricula/internal/output"
)

var errDemodArgs = errors.New("expected at most one argument: IQ input file")

func demodCommand() *cli.Command {
	return &cli.Command{
		Name:      "demod",
		Usage:     "Demodulate a broadcast FM station from a u8 IQ stream and decode RDS",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML station profile; explicit flags win over the file",
			},
			&cli.FloatFlag{
				Name:  "frequency",
				Usage: "Tune an rtl_sdr capture to this frequency in Hz instead of reading a file",
			},
			&cli.FloatFlag{
				Name:  "input-rate",
				Usage: "Capture sample rate in Hz",
				Value: 1.024e6,
			},
			&cli.FloatFlag{
				Name:  "deviation",
				Usage: "FM deviation in Hz",
				Value: 75000,
			},
			&cli.IntFlag{
				Name:  "deemphasis",
				Usage: "De-emphasis time constant in µs: 50 (Europe) or 75 (US)",
				Value: 50,
			},
			&cli.IntFlag{
				Name:  "audio-rate",
				Usage: "Audio target rate: 44100, 48000, or 50000",
				Value: 48000,
			},
			&cli.IntFlag{
				Name:  "block-size",
				Usage: "Input block size in complex samples; a power of two",
				Value: 65536,
			},
			&cli.IntFlag{
				Name:  "gain",
				Usage: "Tuner gain in tenths of dB; 0 selects automatic",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write demodulated audio as interleaved s16le PCM; - for stdout",
			},
			&cli.BoolFlag{
				Name:  "play",
				Usage: "Play audio on the default output device",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Station report format: console, json",
				Value:   "console",
			},
			&cli.BoolFlag{
				Name:  "events",
				Usage: "Log database change events as they happen",
			},
		},
		Action: demodAction,
	}
}

//nolint:gocognit // flag plumbing
func demodAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() > 1 {
		return fmt.Errorf("%w: got %d", errDemodArgs, cmd.NArg())
	}

	flags, err := resolveFlags(cmd)
	if err != nil {
		return err
	}

	cfg := auricula.Config{
		BlockSize:        flags.blockSize,
		InputSampleRate:  rf.Hz(flags.inputRate),
		FMDeviation:      rf.Hz(flags.deviation),
		DeemphasisMicros: flags.deemphasis,
		AudioSampleRate:  rf.Hz(flags.audioRate),
	}

	pipe, err := auricula.New(cfg)
	if err != nil {
		return err
	}

	// Audio sinks.
	var pcm *bufio.Writer

	if path := cmd.String("output"); path != "" {
		w := os.Stdout

		if path != "-" {
			w, err = os.Create(path) //nolint:gosec // CLI tool writes a user-specified file
			if err != nil {
				return fmt.Errorf("opening output: %w", err)
			}
			defer w.Close()
		}

		pcm = bufio.NewWriter(w)
		defer pcm.Flush()
	}

	var speaker *player

	if cmd.Bool("play") {
		speaker, err = newPlayer(int(pipe.AudioSampleRate()))
		if err != nil {
			return err
		}
		defer speaker.close()
	}

	pipe.OnAudio(func(frames []auricula.Frame, _ int) {
		if pcm != nil {
			writePCM(pcm, frames)
		}

		if speaker != nil {
			speaker.write(frames)
		}
	})

	// Change-notification drain.
	if cmd.Bool("events") {
		go func() {
			for {
				select {
				case ev := <-pipe.Database().Events():
					if st, ok := pipe.Database().Snapshot(ev.PI); ok {
						slog.Info("station update",
							"pi", fmt.Sprintf("0x%04X", ev.PI),
							"field", ev.Field.String(),
							"ps", st.PS,
						)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	source, cleanup, err := openSource(ctx, cmd, flags)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan error, 1)

	go func() {
		runDone <- pipe.Run(runCtx)
	}()

	slog.Info("demodulating",
		"input rate", flags.inputRate,
		"mpx rate", int(pipe.MPXRate()),
		"audio rate", int(pipe.AudioSampleRate()),
		"block size", flags.blockSize,
	)

	buf := make([]byte, 2*flags.blockSize)

	for {
		n, readErr := io.ReadFull(source, buf)

		if n > 0 {
			if err := pipe.Submit(buf[:n&^1]); err != nil {
				break
			}
		}

		if readErr != nil {
			// Short final read: the residue is already queued; stop cleanly.
			break
		}
	}

	pipe.Stop()
	<-runDone
	cancel()

	return report(cmd.String("format"), pipe)
}

type demodFlags struct {
	frequency  float64
	inputRate  float64
	deviation  float64
	deemphasis int
	audioRate  int
	blockSize  int
	gain       int
}

// resolveFlags merges the YAML profile under the command line: explicit
// flags always win.
func resolveFlags(cmd *cli.Command) (demodFlags, error) {
	flags := demodFlags{
		frequency:  cmd.Float("frequency"),
		inputRate:  cmd.Float("input-rate"),
		deviation:  cmd.Float("deviation"),
		deemphasis: cmd.Int("deemphasis"),
		audioRate:  cmd.Int("audio-rate"),
		blockSize:  cmd.Int("block-size"),
		gain:       cmd.Int("gain"),
	}

	path := cmd.String("config")
	if path == "" {
		return flags, nil
	}

	file, err := loadFileConfig(path)
	if err != nil {
		return flags, err
	}

	if !cmd.IsSet("frequency") && file.Frequency != 0 {
		flags.frequency = file.Frequency
	}

	if !cmd.IsSet("input-rate") && file.InputRate != 0 {
		flags.inputRate = file.InputRate
	}

	if !cmd.IsSet("deviation") && file.Deviation != 0 {
		flags.deviation = file.Deviation
	}

	if !cmd.IsSet("deemphasis") && file.Deemphasis != 0 {
		flags.deemphasis = file.Deemphasis
	}

	if !cmd.IsSet("audio-rate") && file.AudioRate != 0 {
		flags.audioRate = file.AudioRate
	}

	if !cmd.IsSet("block-size") && file.BlockSize != 0 {
		flags.blockSize = file.BlockSize
	}

	if !cmd.IsSet("gain") && file.Gain != 0 {
		flags.gain = file.Gain
	}

	return flags, nil
}

// openSource picks the IQ byte stream: an rtl_sdr capture when a frequency
// is given, otherwise the file argument or stdin.
func openSource(ctx context.Context, cmd *cli.Command, flags demodFlags) (io.Reader, func(), error) {
	if flags.frequency > 0 {
		stream, wait, err := rtlsdr.Stream(ctx, rtlsdr.Options{
			Frequency:  rf.Hz(flags.frequency),
			SampleRate: rf.Hz(flags.inputRate),
			Gain:       flags.gain,
		})
		if err != nil {
			return nil, nil, err
		}

		return stream, func() {
			_ = stream.Close()

			if err := wait(); err != nil {
				slog.Error("capture failed", "error", err)
			}
		}, nil
	}

	if cmd.NArg() == 1 {
		file, err := os.Open(cmd.Args().First()) //nolint:gosec // CLI tool opens a user-specified capture
		if err != nil {
			return nil, nil, fmt.Errorf("opening input: %w", err)
		}

		return file, func() { _ = file.Close() }, nil
	}

	return os.Stdin, func() {}, nil
}

func writePCM(w *bufio.Writer, frames []auricula.Frame) {
	var sample [4]byte

	for _, f := range frames {
		binary.LittleEndian.PutUint16(sample[0:2], uint16(int16(f.L*32767)))
		binary.LittleEndian.PutUint16(sample[2:4], uint16(int16(f.R*32767)))

		_, _ = w.Write(sample[:])
	}
}

func report(format string, pipe *auricula.Pipeline) error {
	status := pipe.Status()
	stations := pipe.Database().All()

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		doc := map[string]any{
			"status": output.StatusToMap(status),
		}

		list := make([]any, 0, len(stations))
		for _, st := range stations {
			list = append(list, output.StationToMap(st))
		}

		doc["stations"] = list

		return enc.Encode(doc)
	}

	fmt.Printf("blocks %d, rds groups %d (corrected %d, dropped %d)\n",
		status.Counters.BlocksProcessed,
		status.Counters.RDSGroups,
		status.Counters.RDSBlocksCorrected,
		status.Counters.RDSBlocksDropped,
	)
	fmt.Printf("pilot locked: %v, symbol locked: %v, group sync: %v\n",
		status.PilotLocked, status.RDSSymbolLocked, status.RDSGroupSync)

	for _, st := range stations {
		fmt.Printf("0x%04X  PS=%q  PTY=%d  TP=%v TA=%v\n", st.PI, st.PS, st.PTY, st.TP, st.TA)

		if st.RadioText != "" {
			fmt.Printf("        RT=%q\n", st.RadioText)
		}

		if st.ClockTime != nil {
			fmt.Printf("        CT=%s (local %s)\n",
				st.ClockTime.UTC.Format("2006-01-02 15:04"),
				st.ClockTime.Local().Format("15:04"),
			)
		}

		if len(st.AF) > 0 {
			fmt.Printf("        AF=%v kHz\n", st.AF)
		}
	}

	return nil
}
