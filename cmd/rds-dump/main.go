package main

import (
	"context"
	"log/slog"
	"os"

	charm "github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/auricula/version"
)

func main() {
	logger := charm.NewWithOptions(os.Stderr, charm.Options{
		ReportTimestamp: true,
	})

	slog.SetDefault(slog.New(logger))

	ctx := context.Background()

	appl := &cli.Command{
		Name:    "rds-dump",
		Usage:   "Decode a recovered RDS bit stream into groups and station reports",
		Version: version.Version() + " " + version.Commit(),
		Commands: []*cli.Command{
			decodeCommand(),
		},
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}
