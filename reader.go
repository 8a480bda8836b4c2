// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
)

// Reader provides read-only access to a parsed in-memory BIN archive.
type Reader struct {
	// logger receives decode warnings.
	logger *slog.Logger
	// archive is parsed directory.
	archive *Archive
	// buf is whole archive; never mutated.
	buf []byte
}

// Open reads BIN file by path and parses its directory.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{})
}

// OpenWithOptions reads BIN file by path and parses its directory using explicit reader options.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read BIN: %w", err)
	}

	return NewReaderWithOptions(buf, opts)
}

// NewReader parses BIN directory from buf. Caller must not modify buf while Reader is in use.
func NewReader(buf []byte) (*Reader, error) {
	return NewReaderWithOptions(buf, ReaderOptions{})
}

// NewReaderWithOptions parses BIN directory from buf using explicit reader options.
func NewReaderWithOptions(buf []byte, opts ReaderOptions) (*Reader, error) {
	opts.applyDefaults()

	archive, err := ParseArchive(buf, opts)
	if err != nil {
		return nil, err
	}

	return &Reader{buf: buf, archive: archive, logger: opts.Logger}, nil
}

// Layout returns header encoding of the archive.
func (r *Reader) Layout() Layout {
	return r.archive.Layout
}

// Archive returns a deep copy of parsed directory.
func (r *Reader) Archive() *Archive {
	out := *r.archive
	out.Folders = cloneFolders(r.archive.Folders)
	return &out
}

// Folders returns folder count.
func (r *Reader) Folders() int {
	return len(r.archive.Folders)
}

// Entries returns a copy of all entries in table order.
func (r *Reader) Entries() []EntryInfo {
	return r.archive.Entries()
}

// Entry returns entry at table position.
func (r *Reader) Entry(folder int, file int) (EntryInfo, error) {
	return r.archive.Entry(folder, file)
}

// AuxIDs returns opaque auxID bytes in slot order.
func (r *Reader) AuxIDs() []byte {
	return r.archive.AuxIDs()
}

// Size returns archive buffer length.
func (r *Reader) Size() int {
	return len(r.buf)
}

// Entries returns all entries in table order.
func (a *Archive) Entries() []EntryInfo {
	out := make([]EntryInfo, 0, a.EntryCount())
	for i := range a.Folders {
		out = append(out, a.Folders[i].Entries...)
	}

	return out
}

// EntryCount returns total number of entries over all folders.
func (a *Archive) EntryCount() int {
	total := 0
	for i := range a.Folders {
		total += len(a.Folders[i].Entries)
	}

	return total
}

// Entry returns entry at table position.
func (a *Archive) Entry(folder int, file int) (EntryInfo, error) {
	if folder < 0 || folder >= len(a.Folders) {
		return EntryInfo{}, fmt.Errorf("%w: folder %d (archive has %d folders)", ErrIndexOutOfRange, folder, len(a.Folders))
	}

	entries := a.Folders[folder].Entries
	if file < 0 || file >= len(entries) {
		return EntryInfo{}, fmt.Errorf("%w: file %d (folder %d has %d files)", ErrIndexOutOfRange, file, folder, len(entries))
	}

	return entries[file], nil
}

// AuxIDs returns opaque auxID bytes in slot order, indexed by reported position.
// Swapped entries land at their reported position, so the result equals the
// record bytes as stored and feeds RebuildOptions.AuxIDs unchanged.
// When two entries report the same position, bytes are returned in table order.
func (a *Archive) AuxIDs() []byte {
	starts := make([]int, len(a.Folders))
	total := 0
	for i := range a.Folders {
		starts[i] = total
		total += len(a.Folders[i].Entries)
	}

	out := make([]byte, total)
	seen := make([]bool, total)
	for i := range a.Folders {
		for _, entry := range a.Folders[i].Entries {
			at := starts[entry.LogicalFolder] + entry.File
			if entry.File >= len(a.Folders[entry.LogicalFolder].Entries) || seen[at] {
				return a.tableAuxIDs(total)
			}

			seen[at] = true
			out[at] = entry.AuxID
		}
	}

	return out
}

// tableAuxIDs returns auxID bytes in table order.
func (a *Archive) tableAuxIDs(total int) []byte {
	out := make([]byte, 0, total)
	for i := range a.Folders {
		for _, entry := range a.Folders[i].Entries {
			out = append(out, entry.AuxID)
		}
	}

	return out
}

// ParseArchive decodes BIN directory from buf.
// Model layout is used only when opts.Model is set and root tag differs from BuildTag.
func ParseArchive(buf []byte, opts ReaderOptions) (*Archive, error) {
	opts.applyDefaults()

	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: short header (%d bytes)", ErrInvalidHeader, len(buf))
	}

	folderCount := binary.LittleEndian.Uint32(buf[0:4])
	if opts.Model && !hasBuildTag(buf) {
		return parseModelHeader(buf, folderCount)
	}

	return parseStandardHeader(buf, folderCount, newSwapTable(opts.SwappedSlots))
}

// hasBuildTag reports whether root tag at 0x08 equals BuildTag.
func hasBuildTag(buf []byte) bool {
	if len(buf) < 12 {
		return false
	}

	return binary.LittleEndian.Uint32(buf[8:12]) == BuildTag
}

// parseStandardHeader decodes descriptor and record tables.
func parseStandardHeader(buf []byte, folderCount uint32, swaps swapTable) (*Archive, error) {
	size := len(buf)
	if size < rootSize {
		return nil, fmt.Errorf("%w: short root (%d bytes)", ErrInvalidHeader, size)
	}

	descEnd := rootSize + uint64(folderCount)*descriptorSize
	if descEnd > uint64(size) {
		return nil, &IndexError{Err: ErrIndexOutOfRange, Folder: int(folderCount) - 1, File: -1, Offset: descEnd, Size: size}
	}

	archive := &Archive{
		Layout:       LayoutStandard,
		HeaderLength: binary.LittleEndian.Uint32(buf[4:8]),
		Tag:          binary.LittleEndian.Uint32(buf[8:12]),
		Reserved:     binary.LittleEndian.Uint32(buf[12:16]),
		Folders:      make([]Folder, folderCount),
		swaps:        swaps,
	}

	// Descriptors first: a swapped record is read from a later folder's table.
	for i := range archive.Folders {
		desc := rootSize + i*descriptorSize
		tableOffset := binary.LittleEndian.Uint32(buf[desc : desc+4])
		fileCount := binary.LittleEndian.Uint32(buf[desc+4 : desc+8])

		tableEnd := uint64(tableOffset) + uint64(fileCount)*recordSize
		if tableEnd > uint64(size) {
			return nil, &IndexError{Err: ErrIndexOutOfRange, Folder: i, File: -1, Offset: tableEnd, Size: size}
		}

		archive.Folders[i] = Folder{
			Index:       i,
			TableOffset: tableOffset,
			Entries:     make([]EntryInfo, fileCount),
		}
	}

	for i := range archive.Folders {
		folder := &archive.Folders[i]
		for j := range folder.Entries {
			slot := folder.TableOffset + uint32(j)*recordSize //nolint:gosec // bounded by tableEnd check
			offset := binary.LittleEndian.Uint32(buf[slot : slot+4])

			fields := slot
			logical := i
			if swap, ok := swaps.lookup(i, j, offset); ok {
				redirected, err := swappedRecordOffset(archive, swap, size)
				if err != nil {
					return nil, err
				}

				fields = redirected
				logical = swap.SwapFolder
			}

			flags := binary.LittleEndian.Uint16(buf[fields+8 : fields+10])
			entry := EntryInfo{
				Folder:        i,
				File:          j,
				LogicalFolder: logical,
				Offset:        offset,
				RawSize:       binary.LittleEndian.Uint32(buf[fields+4 : fields+8]),
				SlotOffset:    slot,
				RecordOffset:  fields,
				Flags:         flags,
				AuxID:         buf[fields+10],
				Compressed:    flags&FlagCompressed != 0,
			}

			if end := uint64(entry.Offset) + uint64(entry.RawSize); end > uint64(size) {
				return nil, &IndexError{Err: ErrInvalidEntryOffset, Folder: i, File: j, Offset: end, Size: size}
			}

			folder.Entries[j] = entry
		}
	}

	return archive, nil
}

// swappedRecordOffset resolves record address for a swapped slot.
func swappedRecordOffset(archive *Archive, swap SwappedSlot, size int) (uint32, error) {
	if swap.SwapFolder < 0 || swap.SwapFolder >= len(archive.Folders) {
		return 0, &IndexError{Err: ErrIndexOutOfRange, Folder: swap.SwapFolder, File: swap.File, Size: size}
	}

	target := archive.Folders[swap.SwapFolder]
	if swap.File >= len(target.Entries) {
		return 0, &IndexError{
			Err:    ErrIndexOutOfRange,
			Folder: swap.SwapFolder,
			File:   swap.File,
			Offset: uint64(target.TableOffset) + uint64(swap.File)*recordSize,
			Size:   size,
		}
	}

	return target.TableOffset + uint32(swap.File)*recordSize, nil //nolint:gosec // bounded by table check
}

// parseModelHeader decodes model layout: four raw sizes per folder, payloads packed back to back.
func parseModelHeader(buf []byte, folderCount uint32) (*Archive, error) {
	size := len(buf)
	sizesEnd := 4 + uint64(folderCount)*modelSlots*4
	if sizesEnd > uint64(size) {
		return nil, &IndexError{Err: ErrIndexOutOfRange, Folder: int(folderCount) - 1, File: -1, Offset: sizesEnd, Size: size}
	}

	archive := &Archive{
		Layout:       LayoutModel,
		HeaderLength: uint32(sizesEnd), //nolint:gosec // bounded by buffer size
		Folders:      make([]Folder, folderCount),
	}

	offset := sizesEnd
	for i := range archive.Folders {
		table := uint32(4 + i*modelSlots*4) //nolint:gosec // bounded by sizesEnd
		folder := Folder{
			Index:       i,
			TableOffset: table,
			Entries:     make([]EntryInfo, modelSlots),
		}

		for j := range folder.Entries {
			word := table + uint32(j)*4 //nolint:gosec // j < modelSlots
			rawSize := binary.LittleEndian.Uint32(buf[word : word+4])

			end := offset + uint64(rawSize)
			if end > uint64(size) {
				return nil, &IndexError{Err: ErrInvalidEntryOffset, Folder: i, File: j, Offset: end, Size: size}
			}

			folder.Entries[j] = EntryInfo{
				Folder:        i,
				File:          j,
				LogicalFolder: i,
				Offset:        uint32(offset), //nolint:gosec // bounded by buffer size
				RawSize:       rawSize,
				SlotOffset:    word,
				RecordOffset:  word,
			}
			offset = end
		}

		archive.Folders[i] = folder
	}

	return archive, nil
}

// cloneFolders deep-copies folder list.
func cloneFolders(folders []Folder) []Folder {
	out := make([]Folder, len(folders))
	for i := range folders {
		out[i] = folders[i]
		out[i].Entries = append([]EntryInfo(nil), folders[i].Entries...)
	}

	return out
}
