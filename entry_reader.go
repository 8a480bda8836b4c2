// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"bytes"
	"io"

	"github.com/cespare/xxhash/v2"
)

// ReadEntry decodes full content of entry at table position.
// Size mismatches are logged and the inflated bytes are returned.
func (r *Reader) ReadEntry(folder int, file int) ([]byte, error) {
	if r == nil || r.archive == nil {
		return nil, ErrNilReader
	}

	entry, err := r.archive.Entry(folder, file)
	if err != nil {
		return nil, err
	}

	data, _, err := r.ReadEntryInfo(entry)
	return data, err
}

// ReadEntryInfo decodes entry by already resolved metadata and returns the size warning, if any.
func (r *Reader) ReadEntryInfo(entry EntryInfo) ([]byte, *Warning, error) {
	if r == nil || r.archive == nil {
		return nil, nil, ErrNilReader
	}

	data, warning, err := DecodeEntry(r.buf, entry)
	if err != nil {
		return nil, nil, err
	}

	if warning != nil {
		r.logger.Warn("inflated size differs from size prefix",
			"folder", warning.Folder, "file", warning.File,
			"expected", warning.Expected, "actual", warning.Actual)
	}

	return data, warning, nil
}

// OpenEntry opens decoded entry content for reading.
func (r *Reader) OpenEntry(folder int, file int) (io.ReadCloser, error) {
	data, err := r.ReadEntry(folder, file)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// EntryDigest returns xxhash64 of decoded entry content.
func (r *Reader) EntryDigest(folder int, file int) (uint64, error) {
	data, err := r.ReadEntry(folder, file)
	if err != nil {
		return 0, err
	}

	return xxhash.Sum64(data), nil
}
