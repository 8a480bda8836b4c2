// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"github.com/woozymasta/pathrules"
	"github.com/woozymasta/pbbin"
)

var modelFlag = &cli.BoolFlag{
	Name:    "model",
	Aliases: []string{"m"},
	Usage:   "archive may use the four-slot model layout",
}

var cmdUnpack = cli.Command{
	Name:      "unpack",
	Usage:     "Extract every entry of a BIN archive",
	ArgsUsage: "<archive.bin>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output directory"},
		modelFlag,
		&cli.BoolFlag{Name: "qb", Usage: "use pgm/dat extensions instead of tex/tx2/lxe"},
		&cli.BoolFlag{Name: "nolist", Usage: "ignore the known-names filelist"},
		&cli.StringFlag{Name: "filelist", Usage: "known-names filelist (default ./filelist.txt when present)"},
		&cli.IntFlag{Name: "folder", Value: -1, Usage: "only extract this folder"},
		&cli.BoolFlag{Name: "flat", Usage: "write folder_file.ext names without folder directories"},
	},
	Action: runUnpack,
}

var cmdExtract = cli.Command{
	Name:      "extract",
	Usage:     "Extract one entry by table position",
	ArgsUsage: "<archive.bin>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output directory (default: archive directory)"},
		modelFlag,
		&cli.BoolFlag{Name: "qb", Usage: "use pgm/dat extensions instead of tex/tx2/lxe"},
		&cli.BoolFlag{Name: "nolist", Usage: "ignore the known-names filelist"},
		&cli.StringFlag{Name: "filelist", Usage: "known-names filelist (default ./filelist.txt when present)"},
		&cli.IntFlag{Name: "folder", Required: true},
		&cli.IntFlag{Name: "file", Required: true},
	},
	Action: runExtract,
}

var cmdRebuild = cli.Command{
	Name:      "rebuild",
	Usage:     "Build a BIN archive from an unpacked directory",
	ArgsUsage: "<dir>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output archive (default <dir>.bin)"},
		&cli.BoolFlag{Name: "nocompress", Aliases: []string{"nc"}, Usage: "store entries uncompressed"},
		modelFlag,
		&cli.BoolFlag{Name: "nolist", Usage: "ignore <dir>/filelist.txt and scan numeric names"},
		&cli.StringSliceFlag{Name: "force-raw", Usage: "position or name pattern always stored uncompressed (e.g. 8/**)"},
		&cli.StringSliceFlag{Name: "force-compress", Usage: "position or name pattern always stored compressed"},
		&cli.IntFlag{Name: "level", Usage: "zlib compression level (1-9, 0 = default)"},
	},
	Action: runRebuild,
}

var cmdReplace = cli.Command{
	Name:      "replace",
	Usage:     "Replace one entry payload in place",
	ArgsUsage: "<archive.bin> <payload>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "folder", Required: true},
		&cli.IntFlag{Name: "file", Required: true},
		&cli.BoolFlag{Name: "nocompress", Aliases: []string{"nc"}, Usage: "store payload uncompressed"},
		modelFlag,
		&cli.IntFlag{Name: "backup-keep", Value: 1, Usage: "backup generations to keep"},
	},
	Action: runReplace,
}

var cmdList = cli.Command{
	Name:      "list",
	Usage:     "Print the archive directory",
	ArgsUsage: "<archive.bin>",
	Flags: []cli.Flag{
		modelFlag,
		&cli.IntFlag{Name: "folder", Value: -1, Usage: "only list this folder"},
		&cli.BoolFlag{Name: "skip-empty", Usage: "hide zero-size entries"},
		&cli.BoolFlag{Name: "digest", Usage: "decode entries and print xxhash64 of content"},
	},
	Action: runList,
}

// requireArgs fails unless c carries exactly n positional arguments.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return cli.Exit(fmt.Sprintf("%s: expected %d argument(s): %s", c.Command.Name, n, c.Command.ArgsUsage), 2)
	}

	return nil
}

func runUnpack(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}

	logger := newLogger(c)
	input := c.Args().First()
	folder := c.Int("folder")

	names, err := loadNames(c.String("filelist"), c.Bool("nolist") || c.Bool("model"))
	if err != nil {
		return err
	}

	r, err := pbbin.OpenWithOptions(input, pbbin.ReaderOptions{Logger: logger, Model: c.Bool("model")})
	if err != nil {
		return err
	}

	opts := pbbin.ExtractOptions{
		Logger:       logger,
		Names:        names,
		QBExtensions: c.Bool("qb"),
		Flat:         c.Bool("flat") || folder >= 0,
		OnEntryDone: func(p pbbin.ExtractProgress) {
			if p.OutputPath != "" {
				logger.Debug("extracted", "entry", p.Entry.LogicalPosition(), "path", p.OutputPath, "digest", fmt.Sprintf("%016x", p.Digest))
			}
		},
	}
	if folder >= 0 {
		opts.Select = pbbin.FolderRules(folder)
	}

	outDir := unpackDir(input, c.String("output"), c.Bool("model"), folder)
	res, err := r.Extract(c.Context, outDir, opts)
	if err != nil {
		return err
	}

	logger.Info("unpacked",
		"archive", input, "output", outDir, "layout", r.Layout(),
		"written", res.Written, "empty", res.Empty, "failed", res.Failed, "bytes", res.Bytes, "duration", res.Duration)

	return nil
}

func runExtract(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}

	logger := newLogger(c)
	input := c.Args().First()

	names, err := loadNames(c.String("filelist"), c.Bool("nolist") || c.Bool("model"))
	if err != nil {
		return err
	}

	r, err := pbbin.OpenWithOptions(input, pbbin.ReaderOptions{Logger: logger, Model: c.Bool("model")})
	if err != nil {
		return err
	}

	outPath, err := r.ExtractEntry(c.Int("folder"), c.Int("file"), extractDir(input, c.String("output")), pbbin.ExtractOptions{
		Logger:       logger,
		Names:        names,
		QBExtensions: c.Bool("qb"),
		Flat:         true,
	})
	if err != nil {
		return err
	}

	logger.Info("extracted", "entry", pbbin.PositionPath(c.Int("folder"), c.Int("file")), "path", outPath)
	return nil
}

func runRebuild(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}

	logger := newLogger(c)
	input := c.Args().First()
	output := rebuildOutput(input, c.String("output"))

	opts := pbbin.RebuildDirOptions{
		IgnoreFilelist: c.Bool("nolist"),
		RebuildOptions: pbbin.RebuildOptions{
			Logger: logger,
			Compression: pbbin.CompressionOptions{
				Enabled:       !c.Bool("nocompress"),
				ForceRaw:      patternRules(c.StringSlice("force-raw")),
				ForceCompress: patternRules(c.StringSlice("force-compress")),
				Level:         c.Int("level"),
			},
			OnEntryDone: func(p pbbin.RebuildProgress) {
				logger.Debug("appended", "entry", pbbin.PositionPath(p.Folder, p.File), "path", p.Path, "size", p.RawSize, "compressed", p.Compressed)
			},
		},
	}
	if c.Bool("model") {
		opts.Layout = pbbin.LayoutModel
	}

	res, err := pbbin.RebuildDir(c.Context, input, output, opts)
	if err != nil {
		return err
	}

	logger.Info("rebuilt",
		"output", output, "folders", res.Folders, "entries", len(res.Entries),
		"compressed", res.CompressedEntries, "missing", res.MissingEntries,
		"size", res.HeaderSize+res.DataSize, "duration", res.Duration)

	return nil
}

func runReplace(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}

	logger := newLogger(c)
	archive := c.Args().Get(0)
	payload := c.Args().Get(1)

	editor, err := pbbin.OpenEditor(archive, pbbin.EditOptions{
		Logger:      logger,
		Reader:      pbbin.ReaderOptions{Logger: logger, Model: c.Bool("model")},
		Compression: pbbin.CompressionOptions{Enabled: !c.Bool("nocompress") && !c.Bool("model")},
		BackupKeep:  c.Int("backup-keep"),
	})
	if err != nil {
		return err
	}

	if err := editor.Replace(pbbin.Input{
		Folder: c.Int("folder"),
		File:   c.Int("file"),
		Path:   payload,
		Open: func() (io.ReadCloser, error) {
			return os.Open(payload) //nolint:gosec // user-supplied payload path
		},
	}); err != nil {
		return err
	}

	res, err := editor.Commit(c.Context)
	if err != nil {
		return err
	}

	logger.Info("replaced", "archive", archive, "size", res.Size, "duration", res.Duration)
	return nil
}

func runList(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}

	logger := newLogger(c)
	input := c.Args().First()

	r, err := pbbin.OpenWithOptions(input, pbbin.ReaderOptions{Logger: logger, Model: c.Bool("model")})
	if err != nil {
		return err
	}

	opts := pbbin.ListOptions{SkipEmpty: c.Bool("skip-empty")}
	if folder := c.Int("folder"); folder >= 0 {
		opts.Select = pbbin.FolderRules(folder)
	}

	entries, err := r.ListEntries(opts)
	if err != nil {
		return err
	}

	return printEntries(c.App.Writer, r, entries, c.Bool("digest"))
}

// printEntries writes directory table for entries of r.
func printEntries(w io.Writer, r *pbbin.Reader, entries []pbbin.EntryInfo, digest bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "ENTRY\tOFFSET\tSIZE\tFLAGS\tAUX"
	if digest {
		header += "\tXXH64"
	}
	fmt.Fprintln(tw, header)

	for _, e := range entries {
		pos := e.LogicalPosition()
		if e.IsSwapped() {
			pos += " (" + e.Position() + ")"
		}

		line := fmt.Sprintf("%s\t0x%08X\t%d\t0x%04X\t%d", pos, e.Offset, e.RawSize, e.Flags, e.AuxID)
		if digest {
			sum, err := r.EntryDigest(e.Folder, e.File)
			if err != nil {
				return err
			}
			line += fmt.Sprintf("\t%016x", sum)
		}
		fmt.Fprintln(tw, line)
	}

	return tw.Flush()
}

// patternRules converts flag patterns into include rules.
func patternRules(patterns []string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: pattern})
	}

	return rules
}
