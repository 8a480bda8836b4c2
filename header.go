// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"encoding/binary"
	"fmt"
)

// AssignOffsets computes directory addresses and payload offsets in place.
//
// Folder Index and TableOffset, and entry Folder, File, LogicalFolder, Offset,
// SlotOffset and RecordOffset are overwritten; offsets supplied by the caller are
// never trusted. It returns the unpadded header length: payloads start at
// AlignSize(headerLength) in standard layout and right after the header in
// model layout.
func AssignOffsets(layout Layout, folders []Folder) (uint32, error) {
	switch layout {
	case LayoutStandard:
		return assignStandardOffsets(folders)
	case LayoutModel:
		return assignModelOffsets(folders)
	default:
		return 0, fmt.Errorf("%w: unknown layout %d", ErrInvalidHeader, layout)
	}
}

// assignStandardOffsets lays out descriptors, record tables and aligned payloads.
func assignStandardOffsets(folders []Folder) (uint32, error) {
	headerLength := uint64(rootSize) + uint64(len(folders))*descriptorSize
	for i := range folders {
		folders[i].Index = i
		folders[i].TableOffset = uint32(min(headerLength, maxBINData-1)) //nolint:gosec // checked below
		headerLength += uint64(len(folders[i].Entries)) * recordSize
	}

	if headerLength >= maxBINData {
		return 0, fmt.Errorf("%w: header length 0x%X", ErrSizeOverflow, headerLength)
	}

	offset := alignSize(headerLength)
	for i := range folders {
		folder := &folders[i]
		for j := range folder.Entries {
			entry := &folder.Entries[j]
			if offset >= maxBINData {
				return 0, fmt.Errorf("%w: entry %s starts at 0x%X", ErrSizeOverflow, PositionPath(i, j), offset)
			}

			record := folder.TableOffset + uint32(j)*recordSize //nolint:gosec // bounded by header length
			entry.Folder = i
			entry.File = j
			entry.LogicalFolder = i
			entry.Offset = uint32(offset)
			entry.SlotOffset = record
			entry.RecordOffset = record
			offset += alignSize(uint64(entry.RawSize))
		}
	}

	if offset > maxBINData {
		return 0, fmt.Errorf("%w: archive size 0x%X", ErrSizeOverflow, offset)
	}

	return uint32(headerLength), nil
}

// assignModelOffsets lays out the size table and packed payloads.
func assignModelOffsets(folders []Folder) (uint32, error) {
	headerLength := 4 + uint64(len(folders))*modelSlots*4
	if headerLength >= maxBINData {
		return 0, fmt.Errorf("%w: header length 0x%X", ErrSizeOverflow, headerLength)
	}

	offset := headerLength
	for i := range folders {
		folder := &folders[i]
		if len(folder.Entries) > modelSlots {
			return 0, fmt.Errorf("%w: folder %d has %d entries", ErrModelFolderOverflow, i, len(folder.Entries))
		}

		folder.Index = i
		folder.TableOffset = uint32(4 + i*modelSlots*4) //nolint:gosec // bounded by header length
		for j := range folder.Entries {
			entry := &folder.Entries[j]
			if entry.Compressed {
				return 0, fmt.Errorf("%w: entry %s", ErrModelCompression, PositionPath(i, j))
			}

			word := folder.TableOffset + uint32(j)*4 //nolint:gosec // j < modelSlots
			entry.Folder = i
			entry.File = j
			entry.LogicalFolder = i
			entry.Offset = uint32(min(offset, maxBINData-1)) //nolint:gosec // checked below
			entry.SlotOffset = word
			entry.RecordOffset = word
			offset += uint64(entry.RawSize)
		}
	}

	if offset > maxBINData {
		return 0, fmt.Errorf("%w: archive size 0x%X", ErrSizeOverflow, offset)
	}

	return uint32(headerLength), nil
}

// BuildHeader serializes directory into header bytes.
//
// The result depends only on entry sizes, compression flags and auxIDs; offsets
// are recomputed with AssignOffsets. Standard-layout headers are zero-padded to
// Alignment. Model-layout headers hold exactly four sizes per folder.
func BuildHeader(layout Layout, folders []Folder) ([]byte, error) {
	folders = cloneFolders(folders)
	headerLength, err := AssignOffsets(layout, folders)
	if err != nil {
		return nil, err
	}

	if layout == LayoutModel {
		return writeModelHeader(folders, headerLength), nil
	}

	return writeStandardHeader(folders, headerLength), nil
}

// writeStandardHeader writes root, descriptors and records for laid out folders.
func writeStandardHeader(folders []Folder, headerLength uint32) []byte {
	out := make([]byte, alignSize(uint64(headerLength)))

	le := binary.LittleEndian
	le.PutUint32(out[0:4], uint32(len(folders))) //nolint:gosec // bounded by header length
	le.PutUint32(out[4:8], headerLength)
	le.PutUint32(out[8:12], BuildTag)

	for i := range folders {
		desc := rootSize + i*descriptorSize
		le.PutUint32(out[desc:desc+4], folders[i].TableOffset)
		le.PutUint32(out[desc+4:desc+8], uint32(len(folders[i].Entries))) //nolint:gosec // bounded by header length

		for _, entry := range folders[i].Entries {
			rec := out[entry.RecordOffset : entry.RecordOffset+recordSize]
			le.PutUint32(rec[0:4], entry.Offset)
			le.PutUint32(rec[4:8], entry.RawSize)
			le.PutUint16(rec[8:10], recordFlags(entry.Flags, entry.Compressed))
			rec[10] = entry.AuxID
		}
	}

	return out
}

// writeModelHeader writes folder count and four size words per folder.
func writeModelHeader(folders []Folder, headerLength uint32) []byte {
	out := make([]byte, headerLength)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(folders))) //nolint:gosec // bounded by header length

	for i := range folders {
		for _, entry := range folders[i].Entries {
			binary.LittleEndian.PutUint32(out[entry.RecordOffset:entry.RecordOffset+4], entry.RawSize)
		}
	}

	return out
}

// recordFlags replaces compression bit in flags, keeping other bits as read.
func recordFlags(flags uint16, compressed bool) uint16 {
	flags &^= FlagCompressed
	if compressed {
		flags |= FlagCompressed
	}

	return flags
}
