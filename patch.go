// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zlib"
)

// patchState tracks scan position relative to the patched entry.
type patchState uint8

const (
	patchBeforeTarget patchState = iota
	patchAtTarget
	patchAfterTarget
)

// PatchEntry changes stored size and compression flag of one entry and moves
// every later payload offset by the aligned size difference.
//
// buf is not modified; the patched header is returned in a copy. Payload bytes
// are not touched, see ReplaceEntry for splicing new data.
func PatchEntry(
	buf []byte,
	folder int,
	file int,
	newRawSize uint32,
	compressed bool,
	opts ReaderOptions,
) ([]byte, *PatchResult, error) {
	archive, err := ParseArchive(buf, opts)
	if err != nil {
		return nil, nil, err
	}

	target, err := archive.Entry(folder, file)
	if err != nil {
		return nil, nil, err
	}

	out := bytes.Clone(buf)
	res, err := patchArchive(out, archive, target, newRawSize, compressed)
	if err != nil {
		return nil, nil, err
	}

	return out, res, nil
}

// ReplaceEntry stores payload as new content of one entry.
//
// The payload is encoded, the old aligned slot is replaced in the data region
// and the header is patched so every later payload keeps pointing at its bytes.
// buf is not modified.
func ReplaceEntry(
	buf []byte,
	folder int,
	file int,
	payload []byte,
	compress bool,
	opts ReaderOptions,
) ([]byte, *PatchResult, error) {
	archive, err := ParseArchive(buf, opts)
	if err != nil {
		return nil, nil, err
	}

	target, err := archive.Entry(folder, file)
	if err != nil {
		return nil, nil, err
	}

	return replaceEntry(buf, archive, target, payload, compress, zlib.DefaultCompression)
}

// replaceEntry splices encoded payload into a copy of buf and patches its header.
func replaceEntry(
	buf []byte,
	archive *Archive,
	target EntryInfo,
	payload []byte,
	compress bool,
	level int,
) ([]byte, *PatchResult, error) {
	var encoded EncodedEntry
	switch archive.Layout {
	case LayoutModel:
		if compress {
			return nil, nil, fmt.Errorf("%w: entry %s", ErrModelCompression, target.Position())
		}
		if uint64(len(payload)) > math.MaxUint32 {
			return nil, nil, fmt.Errorf("%w: payload of %d bytes", ErrSizeOverflow, len(payload))
		}

		encoded = EncodedEntry{
			Data:         payload,
			RawSize:      uint32(len(payload)),
			OriginalSize: uint32(len(payload)),
		}
	default:
		var err error
		encoded, err = encodeEntry(payload, compress, level)
		if err != nil {
			return nil, nil, fmt.Errorf("encode entry %s: %w", target.Position(), err)
		}
	}

	start := uint64(target.Offset)
	oldEnd := start + slotSize(archive.Layout, target.RawSize)
	oldEnd = min(oldEnd, uint64(len(buf)))

	size := start + uint64(len(encoded.Data)) + uint64(len(buf)) - oldEnd
	if size > maxBINData {
		return nil, nil, fmt.Errorf("%w: archive would grow to 0x%X bytes", ErrSizeOverflow, size)
	}

	out := make([]byte, 0, size)
	out = append(out, buf[:start]...)
	out = append(out, encoded.Data...)
	out = append(out, buf[oldEnd:]...)

	res, err := patchArchive(out, archive, target, encoded.RawSize, encoded.Compressed)
	if err != nil {
		return nil, nil, err
	}

	return out, res, nil
}

// slotSize returns bytes a payload of rawSize occupies in data region.
func slotSize(layout Layout, rawSize uint32) uint64 {
	if layout == LayoutModel {
		return uint64(rawSize)
	}

	return alignSize(uint64(rawSize))
}

// patchArchive rewrites target size and flags in out and shifts later offsets.
//
// Offsets move in one forward pass over the directory in table order: entries
// before the target keep their offsets, every entry after it moves by Delta.
// A resize first rewrites swapped pairs so each record holds its reported
// entry, as a rebuild lays them out.
func patchArchive(out []byte, archive *Archive, target EntryInfo, newRawSize uint32, compressed bool) (*PatchResult, error) {
	res := &PatchResult{OldRawSize: target.RawSize}
	le := binary.LittleEndian

	if archive.Layout == LayoutModel {
		if compressed {
			return nil, fmt.Errorf("%w: entry %s", ErrModelCompression, target.Position())
		}

		res.Delta = int64(newRawSize) - int64(target.RawSize)
	} else {
		res.Delta = int64(alignSize(uint64(newRawSize))) - int64(target.AlignedSize())
	}

	folders := cloneFolders(archive.Folders)
	if res.Delta != 0 && hasSwappedSlots(folders) && normalizeSwappedSlots(out, folders) {
		target = folders[target.LogicalFolder].Entries[target.File]
		res.Normalized = true
	}

	state := patchBeforeTarget
	for i := range folders {
		for j := range folders[i].Entries {
			entry := &folders[i].Entries[j]
			if entry.Folder == target.Folder && entry.File == target.File {
				state = patchAtTarget
			}

			switch state {
			case patchBeforeTarget:
				continue
			case patchAtTarget:
				state = patchAfterTarget
				continue
			case patchAfterTarget:
			}

			if res.Delta == 0 {
				continue
			}

			if err := shiftEntry(out, archive.Layout, entry, res.Delta); err != nil {
				return nil, err
			}

			if _, ok := archive.swaps.lookup(entry.Folder, entry.File, entry.Offset); ok {
				return nil, fmt.Errorf("%w: entry %s would move onto swapped offset 0x%X", ErrAnomalyShift, entry.Position(), entry.Offset)
			}
			res.Shifted++
		}
	}

	if archive.Layout == LayoutModel {
		le.PutUint32(out[target.RecordOffset:target.RecordOffset+4], newRawSize)
	} else {
		le.PutUint32(out[target.RecordOffset+4:target.RecordOffset+8], newRawSize)
		le.PutUint16(out[target.RecordOffset+8:target.RecordOffset+10], recordFlags(target.Flags, compressed))
	}

	res.Entry = target
	res.Entry.RawSize = newRawSize
	res.Entry.Compressed = compressed
	if archive.Layout != LayoutModel {
		res.Entry.Flags = recordFlags(target.Flags, compressed)
	}

	return res, nil
}

// hasSwappedSlots reports whether any entry is read through a swapped record.
func hasSwappedSlots(folders []Folder) bool {
	for i := range folders {
		for j := range folders[i].Entries {
			if folders[i].Entries[j].IsSwapped() {
				return true
			}
		}
	}

	return false
}

// normalizeSwappedSlots writes every swapped entry into the record of its
// reported position and updates folders to what out then parses to.
// Nothing is written and false is returned when swapped entries do not form
// complete pairs.
func normalizeSwappedSlots(out []byte, folders []Folder) bool {
	var moved []EntryInfo

	for i := range folders {
		for _, entry := range folders[i].Entries {
			if !entry.IsSwapped() {
				continue
			}

			if entry.LogicalFolder < 0 || entry.LogicalFolder >= len(folders) {
				return false
			}

			partners := folders[entry.LogicalFolder].Entries
			if entry.File >= len(partners) {
				return false
			}

			partner := partners[entry.File]
			if !partner.IsSwapped() || partner.LogicalFolder != entry.Folder {
				return false
			}

			record := folders[entry.LogicalFolder].TableOffset + uint32(entry.File)*recordSize //nolint:gosec // bounded by parsed table
			entry.Folder = entry.LogicalFolder
			entry.SlotOffset = record
			entry.RecordOffset = record
			moved = append(moved, entry)
		}
	}

	le := binary.LittleEndian
	for _, entry := range moved {
		rec := out[entry.RecordOffset : entry.RecordOffset+recordSize]
		le.PutUint32(rec[0:4], entry.Offset)
		le.PutUint32(rec[4:8], entry.RawSize)
		le.PutUint16(rec[8:10], entry.Flags)
		rec[10] = entry.AuxID
		folders[entry.Folder].Entries[entry.File] = entry
	}

	return true
}

// shiftEntry moves one entry offset by delta in out and in entry.
// Model-layout offsets are implicit running sums and need no rewrite.
func shiftEntry(out []byte, layout Layout, entry *EntryInfo, delta int64) error {
	if entry.IsSwapped() {
		return fmt.Errorf("%w: entry %s (reported as %s)", ErrAnomalyShift, entry.Position(), entry.LogicalPosition())
	}

	shifted := int64(entry.Offset) + delta
	if shifted < 0 || shifted >= maxBINData {
		return fmt.Errorf("%w: entry %s offset would move to %d", ErrSizeOverflow, entry.Position(), shifted)
	}

	entry.Offset = uint32(shifted)
	if layout == LayoutModel {
		return nil
	}

	binary.LittleEndian.PutUint32(out[entry.SlotOffset:entry.SlotOffset+4], entry.Offset)
	return nil
}
