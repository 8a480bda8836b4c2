// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zlib"
)

// EncodedEntry is one serialized payload ready to be appended to the data region.
type EncodedEntry struct {
	// Data is stored payload zero-padded to Alignment.
	Data []byte
	// RawSize is stored length recorded in the entry header (prefix included when compressed).
	RawSize uint32
	// OriginalSize is source payload length.
	OriginalSize uint32
	// Compressed reports whether Data holds a size prefix and zlib stream.
	Compressed bool
}

// alignSize rounds n up to Alignment; aligned values are unchanged.
func alignSize(n uint64) uint64 {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// AlignSize rounds n up to the 0x800 payload alignment.
func AlignSize(n int64) int64 {
	if n <= 0 {
		return 0
	}

	return int64(alignSize(uint64(n)))
}

// EncodeEntry serializes payload for the standard layout, optionally zlib-compressed.
func EncodeEntry(payload []byte, compress bool) (EncodedEntry, error) {
	return encodeEntry(payload, compress, zlib.DefaultCompression)
}

// encodeEntry serializes payload with explicit zlib level.
func encodeEntry(payload []byte, compress bool, level int) (EncodedEntry, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return EncodedEntry{}, fmt.Errorf("%w: payload of %d bytes", ErrSizeOverflow, len(payload))
	}

	originalSize := uint32(len(payload)) //nolint:gosec // checked above
	if !compress {
		data := make([]byte, alignSize(uint64(len(payload))))
		copy(data, payload)

		return EncodedEntry{
			Data:         data,
			RawSize:      originalSize,
			OriginalSize: originalSize,
		}, nil
	}

	packed, err := deflatePayload(payload, level)
	if err != nil {
		return EncodedEntry{}, err
	}

	logical := uint64(len(packed)) + prefixSize
	if logical > math.MaxUint32 {
		return EncodedEntry{}, fmt.Errorf("%w: compressed payload of %d bytes", ErrSizeOverflow, logical)
	}

	data := make([]byte, alignSize(logical))
	binary.LittleEndian.PutUint32(data[0:prefixSize], originalSize)
	copy(data[prefixSize:], packed)

	return EncodedEntry{
		Data:         data,
		RawSize:      uint32(logical),
		OriginalSize: originalSize,
		Compressed:   true,
	}, nil
}

// DecodeEntry materializes one entry payload from archive buffer.
//
// Compressed payloads are inflated from the whole aligned slot after the size
// prefix, because some archives store a stored size shorter than the stream.
// A length mismatch against the prefix is returned as warning, not error.
func DecodeEntry(buf []byte, entry EntryInfo) ([]byte, *Warning, error) {
	start := uint64(entry.Offset)
	end := start + uint64(entry.RawSize)
	if end > uint64(len(buf)) {
		return nil, nil, &IndexError{Err: ErrInvalidEntryOffset, Folder: entry.Folder, File: entry.File, Offset: end, Size: len(buf)}
	}

	if !entry.Compressed {
		out := make([]byte, entry.RawSize)
		copy(out, buf[start:end])
		return out, nil, nil
	}

	if entry.RawSize < prefixSize {
		return nil, nil, fmt.Errorf("%w: entry %s stored size %d is shorter than size prefix", ErrDecompress, entry.Position(), entry.RawSize)
	}

	want := binary.LittleEndian.Uint32(buf[start : start+prefixSize])
	streamEnd := min(start+alignSize(uint64(entry.RawSize)), uint64(len(buf)))

	data, err := inflatePayload(buf[start+prefixSize:streamEnd], want)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: entry %s: %w", ErrDecompress, entry.Position(), err)
	}

	if uint64(len(data)) != uint64(want) {
		return data, &Warning{
			Kind:     WarningSizeMismatch,
			Folder:   entry.LogicalFolder,
			File:     entry.File,
			Expected: int64(want),
			Actual:   int64(len(data)),
		}, nil
	}

	return data, nil, nil
}
