// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
)

// sampleStagePayloads are payloads with recognizable magic per position.
func sampleStagePayloads() map[[2]int][]byte {
	return map[[2]int][]byte{
		{0, 0}: append([]byte("P2TX"), bytes.Repeat([]byte{0x10}, 300)...),
		{0, 1}: append([]byte("TEX2"), bytes.Repeat([]byte("pixels"), 900)...),
		{0, 2}: nil,
		{1, 0}: append([]byte{0x00, 0x10, 0x00, 0x10}, bytes.Repeat([]byte{7}, 40)...),
		{3, 1}: []byte("raw tail bytes"),
	}
}

// sampleStageInputs converts payload map into rebuild inputs.
func sampleStageInputs(payloads map[[2]int][]byte) []Input {
	inputs := make([]Input, 0, len(payloads))
	for pos, payload := range payloads {
		inputs = append(inputs, Input{Folder: pos[0], File: pos[1], Path: PositionPath(pos[0], pos[1]), Open: staticOpen(payload)})
	}

	return inputs
}

func TestExtract_RebuildDirRoundTrip(t *testing.T) {
	t.Parallel()

	payloads := sampleStagePayloads()
	rebuildOpts := RebuildOptions{
		AuxIDs:      []byte{1, 2, 3, 4, 5, 6},
		Compression: CompressionOptions{ForceCompress: includeRules("0/1", "3/1")},
	}
	original, _ := assembleTest(t, sampleStageInputs(payloads), rebuildOpts)

	r, err := NewReader(original)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	digests := make(map[string]uint64)
	dir := t.TempDir()
	res, err := r.Extract(t.Context(), dir, ExtractOptions{
		OnEntryDone: func(p ExtractProgress) {
			digests[p.Entry.LogicalPosition()] = p.Digest
		},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// Empty slots: 0/2 and the 3/0 gap.
	if res.Written != 4 || res.Empty != 2 || res.Failed != 0 {
		t.Fatalf("written=%d empty=%d failed=%d", res.Written, res.Empty, res.Failed)
	}

	for pos, payload := range payloads {
		if len(payload) == 0 {
			continue
		}
		if got := digests[PositionPath(pos[0], pos[1])]; got != xxhash.Sum64(payload) {
			t.Fatalf("digest of %v=%016x, want %016x", pos, got, xxhash.Sum64(payload))
		}
	}

	for _, name := range []string{"0/0.tex", "0/1.tx2", "1/0.cam", "3/1.bin", FilelistName, AuxIDsName} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			t.Fatalf("expected output %s: %v", name, err)
		}
	}

	list, err := os.ReadFile(filepath.Join(dir, FilelistName))
	if err != nil {
		t.Fatalf("read filelist: %v", err)
	}
	if !strings.Contains(string(list), "0/2:\"\"\n") || !strings.HasPrefix(string(list), "0/0:\"0/0.tex\"\n") {
		t.Fatalf("unexpected filelist:\n%s", list)
	}

	aux, err := ReadAuxIDs(dir)
	if err != nil {
		t.Fatalf("ReadAuxIDs: %v", err)
	}
	if !slices.Equal(aux, rebuildOpts.AuxIDs) || !slices.Equal(res.AuxIDs, aux) {
		t.Fatalf("auxIDs=%v result=%v", aux, res.AuxIDs)
	}

	outPath := filepath.Join(t.TempDir(), "STAGE.BIN")
	if _, err := RebuildDir(t.Context(), dir, outPath, RebuildDirOptions{
		RebuildOptions: RebuildOptions{Compression: rebuildOpts.Compression},
	}); err != nil {
		t.Fatalf("RebuildDir: %v", err)
	}

	rebuilt, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read rebuilt: %v", err)
	}
	if !bytes.Equal(rebuilt, original) {
		t.Fatal("extract then rebuild must reproduce archive bytes")
	}
}

func TestExtract_RebuildFixesSwappedSlots(t *testing.T) {
	t.Parallel()

	buf, swaps := swappedTestArchive()
	r, err := NewReaderWithOptions(buf, ReaderOptions{SwappedSlots: swaps})
	if err != nil {
		t.Fatalf("NewReaderWithOptions: %v", err)
	}

	dir := t.TempDir()
	if _, err := r.Extract(t.Context(), dir, ExtractOptions{}); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "2", "0.bin"))
	if err != nil || string(got) != "folder-2-payload-bbb" {
		t.Fatalf("2/0 payload=%q err=%v", got, err)
	}

	outPath := filepath.Join(dir, "fixed.bin")
	if _, err := RebuildDir(t.Context(), dir, outPath, RebuildDirOptions{}); err != nil {
		t.Fatalf("RebuildDir: %v", err)
	}

	fixed, err := OpenWithOptions(outPath, ReaderOptions{SwappedSlots: swaps})
	if err != nil {
		t.Fatalf("OpenWithOptions: %v", err)
	}

	for _, e := range fixed.Entries() {
		if e.IsSwapped() {
			t.Fatalf("rebuilt entry %s must not be swapped", e.Position())
		}
	}

	want := map[int]string{0: "folder-0-a", 1: "folder-1-c", 2: "folder-2-payload-bbb"}
	for folder, payload := range want {
		data, err := fixed.ReadEntry(folder, 0)
		if err != nil || string(data) != payload {
			t.Fatalf("rebuilt %d/0=%q err=%v", folder, data, err)
		}
	}

	if got := fixed.AuxIDs(); !slices.Equal(got, []byte{0xA0, 0xC1, 0xB2}) {
		t.Fatalf("auxIDs=%x", got)
	}
}

func TestExtract_SelectFolderFlat(t *testing.T) {
	t.Parallel()

	buf, _ := assembleTest(t, sampleStageInputs(sampleStagePayloads()), RebuildOptions{})
	r, err := NewReader(buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	dir := t.TempDir()
	res, err := r.Extract(t.Context(), dir, ExtractOptions{Select: FolderRules(0), Flat: true})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Written != 2 || res.Empty != 1 || res.Manifest.Len() != 3 {
		t.Fatalf("written=%d empty=%d manifest=%d", res.Written, res.Empty, res.Manifest.Len())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	if want := []string{"0_0.tex", "0_1.tx2"}; !slices.Equal(names, want) {
		t.Fatalf("outputs=%v, want %v", names, want)
	}
}

func TestExtract_DecodeFailure(t *testing.T) {
	t.Parallel()

	auxIDs := []byte{1, 2, 3, 4, 5, 6}
	buf, res := assembleTest(t, sampleStageInputs(sampleStagePayloads()), RebuildOptions{
		AuxIDs:      auxIDs,
		Compression: CompressionOptions{ForceCompress: includeRules("1/0")},
	})

	// 1/0 is the only slot of folder 1.
	idx := slices.IndexFunc(res.Entries, func(e EntryInfo) bool { return e.Folder == 1 && e.File == 0 })
	broken := res.Entries[idx]
	if !broken.Compressed {
		t.Fatalf("entry 1/0 must be compressed: %+v", broken)
	}
	buf[broken.Offset+4] = 0xFF
	buf[broken.Offset+5] = 0xFF

	r, err := NewReader(buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	dir := t.TempDir()
	out, err := r.Extract(t.Context(), dir, ExtractOptions{})
	if err != nil {
		t.Fatalf("full unpack must continue past decode failure: %v", err)
	}
	if out.Failed != 1 || out.Written != 3 {
		t.Fatalf("failed=%d written=%d", out.Failed, out.Written)
	}

	idx = slices.IndexFunc(out.Warnings, func(w Warning) bool { return w.Kind == WarningDecompress })
	if idx < 0 || out.Warnings[idx].Folder != 1 || !errors.Is(out.Warnings[idx].Err, ErrDecompress) {
		t.Fatalf("missing decompress warning: %+v", out.Warnings)
	}
	if name, ok := out.Manifest.Lookup(1, 0); !ok || name != "" {
		t.Fatalf("failed entry must be kept as empty slot, got %q ok=%v", name, ok)
	}

	outPath := filepath.Join(t.TempDir(), "STAGE.BIN")
	if _, err := RebuildDir(t.Context(), dir, outPath, RebuildDirOptions{}); err != nil {
		t.Fatalf("RebuildDir: %v", err)
	}

	rebuilt, err := OpenWithOptions(outPath, ReaderOptions{})
	if err != nil {
		t.Fatalf("open rebuilt: %v", err)
	}

	want := r.Archive()
	got := rebuilt.Archive()
	if len(got.Folders) != len(want.Folders) {
		t.Fatalf("folders=%d, want %d", len(got.Folders), len(want.Folders))
	}
	for i := range want.Folders {
		if len(got.Folders[i].Entries) != len(want.Folders[i].Entries) {
			t.Fatalf("folder %d entries=%d, want %d", i, len(got.Folders[i].Entries), len(want.Folders[i].Entries))
		}
	}
	if e, _ := rebuilt.Entry(1, 0); !e.IsEmpty() {
		t.Fatalf("failed slot must rebuild empty: %+v", e)
	}
	if !slices.Equal(rebuilt.AuxIDs(), auxIDs) {
		t.Fatalf("auxIDs=%v, want %v", rebuilt.AuxIDs(), auxIDs)
	}

	_, err = r.Extract(t.Context(), t.TempDir(), ExtractOptions{Select: EntryRules(1, 0)})
	if !errors.Is(err, ErrDecompress) {
		t.Fatalf("selective extract must fail, got %v", err)
	}

	if _, err := r.ExtractEntry(1, 0, t.TempDir(), ExtractOptions{}); !errors.Is(err, ErrDecompress) {
		t.Fatalf("single-entry extract must fail, got %v", err)
	}
}

func TestExtract_NamesFromFilelist(t *testing.T) {
	t.Parallel()

	payloads := sampleStagePayloads()
	buf, _ := assembleTest(t, sampleStageInputs(payloads), RebuildOptions{})
	r, err := NewReader(buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	names := NewFilelist()
	names.Set(0, 0, `chars\jotaro.tex`)
	names.Set(1, 0, "../escape.cam")

	dir := t.TempDir()
	res, err := r.Extract(t.Context(), dir, ExtractOptions{Names: names})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "chars", "jotaro.tex"))
	if err != nil || !bytes.Equal(got, payloads[[2]int{0, 0}]) {
		t.Fatalf("named output: err=%v", err)
	}

	escaped, _ := res.Manifest.Lookup(1, 0)
	if strings.Contains(escaped, "..") {
		t.Fatalf("traversal name must be sanitized, got %q", escaped)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(escaped))); err != nil {
		t.Fatalf("sanitized output %q: %v", escaped, err)
	}

	outPath := filepath.Join(t.TempDir(), "STAGE.BIN")
	if _, err := RebuildDir(t.Context(), dir, outPath, RebuildDirOptions{}); err != nil {
		t.Fatalf("RebuildDir: %v", err)
	}

	rebuilt, err := Open(outPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := rebuilt.ReadEntry(0, 0)
	if !bytes.Equal(data, payloads[[2]int{0, 0}]) {
		t.Fatal("rebuild must resolve named entry through filelist")
	}
}

func TestExtractEntry(t *testing.T) {
	t.Parallel()

	payloads := sampleStagePayloads()
	buf, _ := assembleTest(t, sampleStageInputs(payloads), RebuildOptions{})
	r, err := NewReader(buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	dir := t.TempDir()
	path, err := r.ExtractEntry(1, 0, dir, ExtractOptions{Flat: true})
	if err != nil {
		t.Fatalf("ExtractEntry: %v", err)
	}
	if filepath.Base(path) != "1_0.cam" {
		t.Fatalf("output path=%s", path)
	}

	if _, err := r.ExtractEntry(0, 2, dir, ExtractOptions{}); !errors.Is(err, ErrEmptyEntry) {
		t.Fatalf("expected ErrEmptyEntry, got %v", err)
	}
	if _, err := r.ExtractEntry(9, 0, dir, ExtractOptions{}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}

	if _, err := r.ExtractEntry(1, 0, dir, ExtractOptions{Flat: true, FileMode: ExtractFileModeCreateOnly}); !errors.Is(err, os.ErrExist) {
		t.Fatalf("create-only must fail on existing file, got %v", err)
	}
	if _, err := r.ExtractEntry(1, 0, dir, ExtractOptions{Flat: true, FileMode: ExtractFileModeTruncate}); err != nil {
		t.Fatalf("truncate mode: %v", err)
	}
}

func TestExtract_ModelRoundTrip(t *testing.T) {
	t.Parallel()

	original, _ := assembleTest(t, []Input{
		bytesInput(0, 0, []byte("mesh data")),
		bytesInput(0, 1, []byte("P2TX tex")),
		bytesInput(1, 3, []byte("tail")),
	}, RebuildOptions{Layout: LayoutModel})

	r, err := NewReaderWithOptions(original, ReaderOptions{Model: true})
	if err != nil {
		t.Fatalf("NewReaderWithOptions: %v", err)
	}

	dir := t.TempDir()
	res, err := r.Extract(t.Context(), dir, ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.AuxIDs != nil {
		t.Fatal("model layout has no auxIDs")
	}

	for _, name := range []string{"0/model.bin", "0/texture.tex", "1/unknown2.bin"} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			t.Fatalf("expected output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, AuxIDsName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("model unpack must not write %s", AuxIDsName)
	}

	for _, ignoreList := range []bool{false, true} {
		outPath := filepath.Join(t.TempDir(), "model.bin")
		if _, err := RebuildDir(t.Context(), dir, outPath, RebuildDirOptions{
			IgnoreFilelist: ignoreList,
			RebuildOptions: RebuildOptions{Layout: LayoutModel},
		}); err != nil {
			t.Fatalf("RebuildDir ignore=%v: %v", ignoreList, err)
		}

		rebuilt, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("read rebuilt: %v", err)
		}
		if !bytes.Equal(rebuilt, original) {
			t.Fatalf("model rebuild ignore=%v must reproduce archive bytes", ignoreList)
		}
	}
}
