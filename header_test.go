// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestBuildHeader_TwoRawEntries(t *testing.T) {
	t.Parallel()

	folders := []Folder{{Entries: []EntryInfo{{RawSize: 10}, {RawSize: 20}}}}
	header, err := BuildHeader(LayoutStandard, folders)
	if err != nil {
		t.Fatalf("BuildHeader: %v", err)
	}

	const headerLength = 0x10 + 0x10 + 2*0x10
	if len(header) != Alignment {
		t.Fatalf("header size=0x%X, want 0x%X", len(header), Alignment)
	}

	le := binary.LittleEndian
	if got := le.Uint32(header[0:4]); got != 1 {
		t.Fatalf("folder count=%d", got)
	}
	if got := le.Uint32(header[4:8]); got != headerLength {
		t.Fatalf("header length=0x%X, want 0x%X", got, headerLength)
	}
	if got := le.Uint32(header[8:12]); got != BuildTag {
		t.Fatalf("tag=0x%X", got)
	}
	if got := le.Uint32(header[0x10:0x14]); got != 0x20 {
		t.Fatalf("table offset=0x%X, want 0x20", got)
	}
	if got := le.Uint32(header[0x14:0x18]); got != 2 {
		t.Fatalf("file count=%d, want 2", got)
	}

	first := le.Uint32(header[0x20:0x24])
	second := le.Uint32(header[0x30:0x34])
	if first != uint32(alignSize(headerLength)) {
		t.Fatalf("first offset=0x%X, want 0x%X", first, alignSize(headerLength))
	}
	if second != first+Alignment {
		t.Fatalf("second offset=0x%X, want 0x%X", second, first+Alignment)
	}

	for i := headerLength; i < len(header); i++ {
		if header[i] != 0 {
			t.Fatalf("header padding byte 0x%X is 0x%02X", i, header[i])
		}
	}

	if folders[0].Entries[0].Offset != 0 {
		t.Fatal("BuildHeader must not modify caller folders")
	}
}

func TestBuildHeader_IgnoresSuppliedOffsets(t *testing.T) {
	t.Parallel()

	plain := []Folder{{Entries: []EntryInfo{{RawSize: 0x900, Compressed: true, AuxID: 3}}}}
	noisy := []Folder{{Entries: []EntryInfo{{RawSize: 0x900, Compressed: true, AuxID: 3, Offset: 0xDEAD, SlotOffset: 7, Folder: 9}}}}

	a, err := BuildHeader(LayoutStandard, plain)
	if err != nil {
		t.Fatalf("BuildHeader plain: %v", err)
	}
	b, err := BuildHeader(LayoutStandard, noisy)
	if err != nil {
		t.Fatalf("BuildHeader noisy: %v", err)
	}

	if string(a) != string(b) {
		t.Fatal("header must depend only on sizes, flags and auxIDs")
	}

	rec := a[0x20:0x30]
	if flags := binary.LittleEndian.Uint16(rec[8:10]); flags != FlagCompressed {
		t.Fatalf("flags=0x%04X, want 0x%04X", flags, FlagCompressed)
	}
	if rec[10] != 3 {
		t.Fatalf("auxID=%d, want 3", rec[10])
	}
}

func TestAssignOffsets_GapsAreAligned(t *testing.T) {
	t.Parallel()

	folders := []Folder{
		{Entries: []EntryInfo{{RawSize: 1}, {RawSize: 0}, {RawSize: 0x800}}},
		{Entries: []EntryInfo{{RawSize: 0x801}, {RawSize: 5}}},
	}

	if _, err := AssignOffsets(LayoutStandard, folders); err != nil {
		t.Fatalf("AssignOffsets: %v", err)
	}

	var entries []EntryInfo
	for _, folder := range folders {
		entries = append(entries, folder.Entries...)
	}

	for i := 0; i+1 < len(entries); i++ {
		gap := uint64(entries[i+1].Offset) - uint64(entries[i].Offset)
		if gap%Alignment != 0 {
			t.Fatalf("gap after entry %d is 0x%X, not aligned", i, gap)
		}
		if gap < uint64(entries[i].RawSize) {
			t.Fatalf("gap after entry %d is 0x%X, smaller than size 0x%X", i, gap, entries[i].RawSize)
		}
	}

	if entries[1].Offset != entries[2].Offset {
		t.Fatalf("empty entry must take no space: 0x%X vs 0x%X", entries[1].Offset, entries[2].Offset)
	}
	if folders[1].Index != 1 || folders[1].TableOffset != 0x30+3*0x10 {
		t.Fatalf("folder 1: index=%d table=0x%X", folders[1].Index, folders[1].TableOffset)
	}
}

func TestBuildHeader_ModelPadsFourSlots(t *testing.T) {
	t.Parallel()

	folders := []Folder{
		{Entries: []EntryInfo{{RawSize: 100}, {RawSize: 200}}},
		{Entries: []EntryInfo{{RawSize: 1}, {RawSize: 2}, {RawSize: 3}, {RawSize: 4}}},
	}

	header, err := BuildHeader(LayoutModel, folders)
	if err != nil {
		t.Fatalf("BuildHeader: %v", err)
	}

	if len(header) != 4+2*4*4 {
		t.Fatalf("model header size=%d, want %d", len(header), 4+2*4*4)
	}

	want := []uint32{2, 100, 200, 0, 0, 1, 2, 3, 4}
	for i, w := range want {
		if got := binary.LittleEndian.Uint32(header[i*4 : i*4+4]); got != w {
			t.Fatalf("word %d=%d, want %d", i, got, w)
		}
	}
}

func TestBuildHeader_ModelErrors(t *testing.T) {
	t.Parallel()

	tooMany := []Folder{{Entries: make([]EntryInfo, 5)}}
	if _, err := BuildHeader(LayoutModel, tooMany); !errors.Is(err, ErrModelFolderOverflow) {
		t.Fatalf("expected ErrModelFolderOverflow, got %v", err)
	}

	compressed := []Folder{{Entries: []EntryInfo{{RawSize: 8, Compressed: true}}}}
	if _, err := BuildHeader(LayoutModel, compressed); !errors.Is(err, ErrModelCompression) {
		t.Fatalf("expected ErrModelCompression, got %v", err)
	}

	if _, err := BuildHeader(Layout(9), nil); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader for unknown layout, got %v", err)
	}
}

func TestAssignOffsets_Overflow(t *testing.T) {
	t.Parallel()

	folders := []Folder{{Entries: []EntryInfo{{RawSize: 0xFFFFF000}, {RawSize: 0x2000}}}}
	if _, err := AssignOffsets(LayoutStandard, folders); !errors.Is(err, ErrSizeOverflow) {
		t.Fatalf("expected ErrSizeOverflow, got %v", err)
	}
}

func TestRecordFlags(t *testing.T) {
	t.Parallel()

	if got := recordFlags(0x0101, true); got != 0x2101 {
		t.Fatalf("set: 0x%04X", got)
	}
	if got := recordFlags(0x2101, false); got != 0x0101 {
		t.Fatalf("clear: 0x%04X", got)
	}
}
