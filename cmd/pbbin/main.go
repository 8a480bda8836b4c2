// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

// Command pbbin unpacks, rebuilds and patches Phantom Blood PS2 BIN archives.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "pbbin",
		Usage: "Phantom Blood PS2 BIN extractor and rebuilder",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log every entry",
			},
		},
	}

	app.Commands = []*cli.Command{
		&cmdUnpack,
		&cmdExtract,
		&cmdRebuild,
		&cmdReplace,
		&cmdList,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("pbbin failed", "err", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop is called above
	}
}

// newLogger builds stderr text logger honoring global --verbose flag.
func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
