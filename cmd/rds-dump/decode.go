package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/auricula/internal/output"
	"github.com/farcloser/auricula/internal/rds"
)

var errDecodeArgs = errors.New("expected at most one argument: bit file")

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Run the RDS link layer over a bit stream (one bit per byte; stdin if no file)",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: console, json, jsonl",
				Value:   "console",
			},
			&cli.BoolFlag{
				Name:  "groups",
				Usage: "Print every validated group as it is assembled",
			},
		},
		Action: decodeAction,
	}
}

func decodeAction(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() > 1 {
		return fmt.Errorf("%w: got %d", errDecodeArgs, cmd.NArg())
	}

	in := os.Stdin

	if cmd.NArg() == 1 {
		file, err := os.Open(cmd.Args().First()) //nolint:gosec // CLI tool opens user-specified bit files
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer file.Close()

		in = file
	}

	db := rds.NewDatabase()

	printGroups := cmd.Bool("groups")

	var groups uint64

	decoder := rds.NewBitDecoder(func(blocks [4]uint16) {
		groups++

		if printGroups {
			fmt.Printf("group %04X %04X %04X %04X\n", blocks[0], blocks[1], blocks[2], blocks[3])
		}

		db.Apply(blocks)
	})

	reader := bufio.NewReader(in)

	for {
		b, err := reader.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return fmt.Errorf("reading bits: %w", err)
		}

		decoder.Push(b)
	}

	return render(cmd.String("format"), db, decoder, groups)
}

func render(format string, db *rds.Database, decoder *rds.BitDecoder, groups uint64) error {
	stations := db.All()

	switch format {
	case "json":
		doc := map[string]any{
			"bits":       decoder.Bits(),
			"groups":     groups,
			"corrected":  decoder.Corrected(),
			"dropped":    decoder.Dropped(),
			"sync_state": decoder.State().String(),
		}

		list := make([]any, 0, len(stations))
		for _, st := range stations {
			list = append(list, output.StationToMap(st))
		}

		doc["stations"] = list

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(doc)

	case "jsonl":
		enc := json.NewEncoder(os.Stdout)

		for _, st := range stations {
			if err := enc.Encode(output.StationToMap(st)); err != nil {
				return err
			}
		}

		return nil
	}

	fmt.Printf("bits %d, groups %d (corrected %d, dropped %d), sync %s\n",
		decoder.Bits(), groups, decoder.Corrected(), decoder.Dropped(), decoder.State())

	for _, st := range stations {
		fmt.Printf("0x%04X  PS=%q", st.PI, st.PS)

		if st.RadioText != "" {
			fmt.Printf("  RT=%q", st.RadioText)
		}

		fmt.Println()
	}

	return nil
}
