// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import "slices"

// SwappedSlot describes one directory record stored in the wrong folder table.
//
// When the offset read at (Folder, File) equals Offset, the entry payload belongs
// to SwapFolder: its size, flags and auxID are read from record File of
// SwapFolder's table and the entry is reported under SwapFolder. The offset
// literal doubles as detection key, so archives where the slot was already
// fixed are decoded normally.
type SwappedSlot struct {
	// Folder is the table the misplaced record is found in.
	Folder int `json:"folder" yaml:"folder"`
	// File is the record index inside the table.
	File int `json:"file" yaml:"file"`
	// Offset is the data offset that identifies the misplaced record.
	Offset uint32 `json:"offset" yaml:"offset"`
	// SwapFolder is the folder the entry logically belongs to.
	SwapFolder int `json:"swap_folder" yaml:"swap_folder"`
}

// defaultSwappedSlots are the two swapped records of the retail archive.
var defaultSwappedSlots = []SwappedSlot{
	{Folder: 12, File: 0, Offset: 0x29D2000, SwapFolder: 27},
	{Folder: 27, File: 0, Offset: 0x52A800, SwapFolder: 12},
}

// DefaultSwappedSlots returns a copy of the known retail anomaly table.
func DefaultSwappedSlots() []SwappedSlot {
	return slices.Clone(defaultSwappedSlots)
}

// swapKey identifies one anomaly table row.
type swapKey struct {
	folder int
	file   int
	offset uint32
}

// swapTable indexes anomaly rows by position and offset literal.
type swapTable map[swapKey]SwappedSlot

// newSwapTable indexes anomaly rows.
func newSwapTable(slots []SwappedSlot) swapTable {
	table := make(swapTable, len(slots))
	for _, slot := range slots {
		table[swapKey{folder: slot.Folder, file: slot.File, offset: slot.Offset}] = slot
	}

	return table
}

// lookup returns anomaly row for record at (folder, file) holding offset.
func (t swapTable) lookup(folder int, file int, offset uint32) (SwappedSlot, bool) {
	if len(t) == 0 {
		return SwappedSlot{}, false
	}

	slot, ok := t[swapKey{folder: folder, file: file, offset: offset}]
	return slot, ok
}
