// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CollectInputs builds rebuild inputs from an unpacked directory.
//
// With names, every filelist position becomes one input resolved relative to
// dir; an empty path reserves an empty slot. Without names, dir is scanned for
// numeric folder directories holding files named by slot: "<file>.<ext>" or the
// model slot names "model", "texture", "unknown" and "unknown<N>".
func CollectInputs(dir string, names *Filelist) ([]Input, error) {
	if names != nil {
		return collectListedInputs(dir, names)
	}

	return scanSlotInputs(dir)
}

// collectListedInputs maps filelist entries to file-backed inputs.
func collectListedInputs(dir string, names *Filelist) ([]Input, error) {
	entries := names.Entries()
	inputs := make([]Input, 0, len(entries))
	for _, entry := range entries {
		in := Input{Folder: entry.Folder, File: entry.File, Path: entry.Path}
		if entry.Path == "" {
			in.Open = openEmpty
			inputs = append(inputs, in)
			continue
		}

		relPath, err := normalizeExtractEntryPath(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q", ErrInvalidFilelist, PositionPath(entry.Folder, entry.File), entry.Path)
		}

		in.Open = openFileFunc(filepath.Join(dir, filepath.FromSlash(relPath)))
		inputs = append(inputs, in)
	}

	return inputs, nil
}

// scanSlotInputs collects inputs from "<folder>/<slot>.<ext>" layout.
func scanSlotInputs(dir string) ([]Input, error) {
	folders, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var inputs []Input
	for _, folderEntry := range folders {
		if !folderEntry.IsDir() {
			continue
		}

		folder, err := strconv.Atoi(folderEntry.Name())
		if err != nil || folder < 0 {
			continue
		}

		folderDir := filepath.Join(dir, folderEntry.Name())
		files, err := os.ReadDir(folderDir)
		if err != nil {
			return nil, fmt.Errorf("read folder %d: %w", folder, err)
		}

		for _, fileEntry := range files {
			if fileEntry.IsDir() {
				continue
			}

			name := fileEntry.Name()
			file, ok := parseSlotStem(strings.TrimSuffix(name, filepath.Ext(name)))
			if !ok {
				continue
			}

			inputs = append(inputs, Input{
				Open:   openFileFunc(filepath.Join(folderDir, name)),
				Path:   folderEntry.Name() + "/" + name,
				Folder: folder,
				File:   file,
			})
		}
	}

	return inputs, nil
}

// parseSlotStem resolves file index from output base name.
func parseSlotStem(stem string) (int, bool) {
	if n, err := strconv.Atoi(stem); err == nil && n >= 0 {
		return n, true
	}

	switch stem {
	case "model":
		return 0, true
	case "texture":
		return 1, true
	case "unknown":
		return 2, true
	}

	if rest, ok := strings.CutPrefix(stem, "unknown"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n >= 2 {
			return n + 1, true
		}
	}

	return 0, false
}

// openFileFunc returns Input.Open for a file path.
func openFileFunc(path string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return os.Open(path) //nolint:gosec // paths come from caller-controlled directory
	}
}

// openEmpty is Input.Open of a reserved empty slot.
func openEmpty() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

// ReadAuxIDs reads filelist.id from dir; a missing file returns nil.
func ReadAuxIDs(dir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, AuxIDsName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read auxIDs: %w", err)
	}

	return data, nil
}

// RebuildDir rebuilds archive at outPath from an unpacked directory.
//
// Names default to dir/filelist.txt when present, and auxIDs to dir/filelist.id
// for standard layout.
func RebuildDir(ctx context.Context, dir string, outPath string, opts RebuildDirOptions) (*RebuildResult, error) {
	names := opts.Names
	if names == nil && !opts.IgnoreFilelist {
		listed, err := ReadFilelist(filepath.Join(dir, FilelistName))
		switch {
		case err == nil:
			names = listed
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	inputs, err := CollectInputs(dir, names)
	if err != nil {
		return nil, err
	}

	rebuildOpts := opts.RebuildOptions
	if rebuildOpts.AuxIDs == nil && rebuildOpts.Layout == LayoutStandard {
		rebuildOpts.AuxIDs, err = ReadAuxIDs(dir)
		if err != nil {
			return nil, err
		}
	}

	return RebuildFile(ctx, outPath, inputs, rebuildOpts)
}
