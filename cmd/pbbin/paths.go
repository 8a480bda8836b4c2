// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package main

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/woozymasta/pbbin"
)

// defaultFilelist is the known-names list looked up in working directory.
const defaultFilelist = "filelist.txt"

// fileStem returns base name of path without extension.
func fileStem(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// unpackDir derives unpack destination for input archive.
func unpackDir(input string, output string, model bool, folder int) string {
	if output != "" {
		return output
	}

	dir := filepath.Dir(input)
	stem := fileStem(input)

	switch {
	case model:
		return filepath.Join(dir, "model-"+stem)
	case folder >= 0:
		return filepath.Join(dir, stem+"_"+strconv.Itoa(folder))
	default:
		return filepath.Join(dir, stem)
	}
}

// extractDir derives single-entry extract destination.
func extractDir(input string, output string) string {
	if output != "" {
		return output
	}

	return filepath.Dir(input)
}

// rebuildOutput derives rebuilt archive path for input directory.
func rebuildOutput(input string, output string) string {
	if output != "" {
		return output
	}

	return fileStem(input) + ".bin"
}

// loadNames resolves the known-names filelist.
// An explicit path must exist; the default list is optional.
func loadNames(path string, disabled bool) (*pbbin.Filelist, error) {
	if disabled {
		return nil, nil
	}

	if path != "" {
		return pbbin.ReadFilelist(path)
	}

	names, err := pbbin.ReadFilelist(defaultFilelist)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	return names, err
}
