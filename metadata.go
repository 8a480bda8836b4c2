// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"fmt"
	"os"
)

// ListEntries reads BIN file and returns entry metadata without decoding payloads.
func ListEntries(path string, opts ListOptions) ([]EntryInfo, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read BIN: %w", err)
	}

	return ListEntriesFromBytes(buf, opts)
}

// ListEntriesFromBytes parses archive directory in buf and returns filtered entries in table order.
func ListEntriesFromBytes(buf []byte, opts ListOptions) ([]EntryInfo, error) {
	opts.applyDefaults()

	archive, err := ParseArchive(buf, opts.Reader)
	if err != nil {
		return nil, err
	}

	return listArchiveEntries(archive, opts)
}

// ListEntries returns filtered entries of an open archive in table order.
// opts.Reader is ignored; the directory parsed by r is used.
func (r *Reader) ListEntries(opts ListOptions) ([]EntryInfo, error) {
	if r == nil || r.archive == nil {
		return nil, ErrNilReader
	}

	opts.applyDefaults()
	return listArchiveEntries(r.archive, opts)
}

// listArchiveEntries applies selection and empty-slot filters.
func listArchiveEntries(archive *Archive, opts ListOptions) ([]EntryInfo, error) {
	entries, err := filterEntriesByRules(archive.Entries(), opts.Select, opts.MatcherOptions)
	if err != nil {
		return nil, err
	}

	if opts.SkipEmpty {
		entries = filterNonEmptyEntries(entries)
	}

	return entries, nil
}
