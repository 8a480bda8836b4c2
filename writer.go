// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultWriteBuffer is buffered writer size used by Rebuild.
	DefaultWriteBuffer = 512 * 1024
	// copyBufferSize is per-rebuild temporary buffer used by payload reads.
	copyBufferSize = 64 * 1024
)

var (
	// defaultWriterPool reuses default-sized bufio writers between Rebuild calls.
	defaultWriterPool = sync.Pool{
		New: func() any {
			return bufio.NewWriterSize(io.Discard, DefaultWriteBuffer)
		},
	}
	// defaultCopyBufferPool reuses payload copy buffers between Assemble calls.
	defaultCopyBufferPool = sync.Pool{
		New: func() any {
			return new([copyBufferSize]byte)
		},
	}
)

// rebuildSlot is one canonical slot of a rebuild plan; input is nil for gap placeholders.
type rebuildSlot struct {
	input  *Input
	folder int
	file   int
}

// assembled holds header and data regions of a rebuilt archive.
type assembled struct {
	result *RebuildResult
	header []byte
	data   []byte
}

// Assemble builds a complete BIN archive in memory from inputs.
//
// Inputs are ordered by (Folder, File); positions missing between inputs become
// zero-size placeholders. A source that cannot be found is recorded as
// WarningMissingSource and keeps its slot as empty entry.
func Assemble(ctx context.Context, inputs []Input, opts RebuildOptions) ([]byte, *RebuildResult, error) {
	parts, err := assemble(ctx, inputs, opts)
	if err != nil {
		return nil, nil, err
	}

	out := make([]byte, 0, len(parts.header)+len(parts.data))
	out = append(out, parts.header...)
	out = append(out, parts.data...)

	return out, parts.result, nil
}

// Rebuild assembles archive from inputs and writes it to out.
// Nothing is written when assembling fails.
func Rebuild(ctx context.Context, out io.Writer, inputs []Input, opts RebuildOptions) (*RebuildResult, error) {
	if out == nil {
		return nil, ErrNilWriter
	}

	parts, err := assemble(ctx, inputs, opts)
	if err != nil {
		return nil, err
	}

	w, release := acquireWriter(out)
	defer release()

	if _, err := w.Write(parts.header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	if _, err := w.Write(parts.data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush archive: %w", err)
	}

	return parts.result, nil
}

// RebuildFile assembles archive from inputs and atomically replaces outPath.
func RebuildFile(ctx context.Context, outPath string, inputs []Input, opts RebuildOptions) (*RebuildResult, error) {
	parts, err := assemble(ctx, inputs, opts)
	if err != nil {
		return nil, err
	}

	if err := writeFileAtomic(outPath, parts.header, parts.data); err != nil {
		return nil, err
	}

	return parts.result, nil
}

// writeFileAtomic writes chunks into a temp file next to path and renames it over path.
func writeFileAtomic(path string, chunks ...[]byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp BIN: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
		}
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	w, release := acquireWriter(tmp)
	defer release()

	for _, chunk := range chunks {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("write temp BIN: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush temp BIN: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp BIN: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp BIN: %w", err)
	}
	tmp = nil

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	tmpPath = ""

	return nil
}

// assemble is shared core of Assemble, Rebuild and RebuildFile.
func assemble(ctx context.Context, inputs []Input, opts RebuildOptions) (*assembled, error) {
	startedAt := time.Now()

	if len(inputs) == 0 {
		return nil, ErrEmptyInputs
	}

	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()

	plan, err := prepareRebuildPlan(inputs)
	if err != nil {
		return nil, err
	}

	slotCount := 0
	for i := range plan {
		slotCount += len(plan[i])
	}

	if opts.AuxIDs != nil && len(opts.AuxIDs) < slotCount {
		return nil, fmt.Errorf("%w: %d auxIDs for %d entries", ErrAuxIDCount, len(opts.AuxIDs), slotCount)
	}

	policy, err := newCompressPolicy(opts.Compression, opts.Layout)
	if err != nil {
		return nil, err
	}

	copyBuf, releaseCopyBuffer := acquireCopyBuffer()
	defer releaseCopyBuffer()

	result := &RebuildResult{Folders: len(plan)}
	folders := make([]Folder, len(plan))
	var data bytes.Buffer
	index := 0

	for i := range plan {
		folders[i].Entries = make([]EntryInfo, len(plan[i]))
		for j, slot := range plan[i] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			entry, progress, warning, err := appendSlot(&data, slot, policy, opts, copyBuf)
			if err != nil {
				return nil, err
			}

			entry.AuxID = slotAuxID(slot, opts.AuxIDs, index)
			folders[i].Entries[j] = entry
			index++

			switch {
			case warning != nil:
				result.Warnings = append(result.Warnings, *warning)
				result.MissingEntries++
				opts.Logger.Warn("missing source, reserved empty slot",
					"folder", slot.folder, "file", slot.file, "path", warning.Path, "err", warning.Err)
			case entry.Compressed:
				result.CompressedEntries++
				result.CompressedBytes += int64(entry.RawSize)
			default:
				result.RawBytes += int64(entry.RawSize)
			}

			opts.Logger.Debug("entry appended",
				"folder", slot.folder, "file", slot.file, "size", entry.RawSize, "compressed", entry.Compressed)

			if opts.OnEntryDone != nil {
				opts.OnEntryDone(progress)
			}
		}
	}

	headerLength, err := AssignOffsets(opts.Layout, folders)
	if err != nil {
		return nil, err
	}

	var header []byte
	if opts.Layout == LayoutModel {
		header = writeModelHeader(folders, headerLength)
	} else {
		header = writeStandardHeader(folders, headerLength)
	}

	for i := range folders {
		result.Entries = append(result.Entries, folders[i].Entries...)
	}

	result.HeaderSize = int64(len(header))
	result.DataSize = int64(data.Len())
	result.Duration = time.Since(startedAt)

	return &assembled{header: header, data: data.Bytes(), result: result}, nil
}

// appendSlot reads, encodes and appends one slot payload to data.
func appendSlot(
	data *bytes.Buffer,
	slot rebuildSlot,
	policy *compressPolicy,
	opts RebuildOptions,
	copyBuf []byte,
) (EntryInfo, RebuildProgress, *Warning, error) {
	progress := RebuildProgress{
		Folder: slot.folder,
		File:   slot.file,
		Offset: uint32(min(uint64(data.Len()), math.MaxUint32)), //nolint:gosec // clamped
	}

	if slot.input == nil {
		progress.Missing = true
		return EntryInfo{}, progress, nil, nil
	}

	in := *slot.input
	progress.Path = in.Path

	payload, err := readInputPayload(in, copyBuf)
	if errors.Is(err, fs.ErrNotExist) {
		progress.Missing = true
		return EntryInfo{}, progress, &Warning{
			Err:    err,
			Kind:   WarningMissingSource,
			Path:   in.Path,
			Folder: slot.folder,
			File:   slot.file,
		}, nil
	}
	if err != nil {
		return EntryInfo{}, progress, nil, err
	}

	if opts.Layout == LayoutModel {
		data.Write(payload)
		progress.RawSize = uint32(len(payload)) //nolint:gosec // bounded by readInputPayload
		return EntryInfo{RawSize: progress.RawSize}, progress, nil, nil
	}

	compress := policy.decide(slot.folder, slot.file, in.Path)
	encoded, err := encodeEntry(payload, compress, opts.Compression.Level)
	if err != nil {
		return EntryInfo{}, progress, nil, fmt.Errorf("encode entry %s (%s): %w", PositionPath(slot.folder, slot.file), in.Path, err)
	}

	if uint64(data.Len())+uint64(len(encoded.Data)) > maxBINData {
		return EntryInfo{}, progress, nil, fmt.Errorf("%w: entry %s would exceed 4 GiB", ErrSizeOverflow, PositionPath(slot.folder, slot.file))
	}

	data.Write(encoded.Data)
	progress.RawSize = encoded.RawSize
	progress.Compressed = encoded.Compressed

	return EntryInfo{
		RawSize:    encoded.RawSize,
		Compressed: encoded.Compressed,
		Flags:      recordFlags(0, encoded.Compressed),
	}, progress, nil, nil
}

// slotAuxID returns auxID for slot at canonical index.
func slotAuxID(slot rebuildSlot, auxIDs []byte, index int) byte {
	if auxIDs != nil {
		return auxIDs[index]
	}

	if slot.input != nil {
		return slot.input.AuxID
	}

	return 0
}

// prepareRebuildPlan validates inputs and groups them into canonical folder/file slots.
func prepareRebuildPlan(inputs []Input) ([][]rebuildSlot, error) {
	sorted := make([]Input, len(inputs))
	copy(sorted, inputs)

	for _, in := range sorted {
		if in.Folder < 0 || in.File < 0 {
			return nil, fmt.Errorf("%w: %s (%s)", ErrInvalidPosition, PositionPath(in.Folder, in.File), in.Path)
		}
	}

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Folder != sorted[j].Folder {
			return sorted[i].Folder < sorted[j].Folder
		}

		return sorted[i].File < sorted[j].File
	})

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Folder == cur.Folder && prev.File == cur.File {
			return nil, fmt.Errorf("%w: %s (%q and %q)", ErrDuplicateEntry, PositionPath(cur.Folder, cur.File), prev.Path, cur.Path)
		}
	}

	last := sorted[len(sorted)-1]
	if uint64(last.Folder)+1 > math.MaxUint32/descriptorSize {
		return nil, fmt.Errorf("%w: folder index %d", ErrSizeOverflow, last.Folder)
	}

	plan := make([][]rebuildSlot, last.Folder+1)
	for i := range sorted {
		in := &sorted[i]
		if uint64(in.File)+1 > math.MaxUint32/recordSize {
			return nil, fmt.Errorf("%w: file index %d", ErrSizeOverflow, in.File)
		}

		folder := plan[in.Folder]
		for len(folder) <= in.File {
			folder = append(folder, rebuildSlot{folder: in.Folder, file: len(folder)})
		}

		folder[in.File].input = in
		plan[in.Folder] = folder
	}

	return plan, nil
}

// readInputPayload reads whole source payload of one input.
// A nil Open reports fs.ErrNotExist.
func readInputPayload(in Input, copyBuf []byte) ([]byte, error) {
	if in.Open == nil {
		return nil, fmt.Errorf("input %s: %w", in.Path, fs.ErrNotExist)
	}

	rc, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", in.Path, err)
	}
	defer func() { _ = rc.Close() }()

	var dst bytes.Buffer
	if _, err := copyPayloadBounded(&dst, rc, math.MaxUint32, copyBuf); err != nil {
		return nil, fmt.Errorf("read input %s: %w", in.Path, err)
	}

	return dst.Bytes(), nil
}

// acquireWriter returns a buffered writer and release callback.
func acquireWriter(out io.Writer) (*bufio.Writer, func()) {
	w := defaultWriterPool.Get().(*bufio.Writer) //nolint:forcetypeassert // pool contains only *bufio.Writer
	w.Reset(out)

	return w, func() {
		w.Reset(io.Discard)
		defaultWriterPool.Put(w)
	}
}

// acquireCopyBuffer returns reusable payload copy buffer and release callback.
func acquireCopyBuffer() ([]byte, func()) {
	arr := defaultCopyBufferPool.Get().(*[copyBufferSize]byte) //nolint:forcetypeassert // pool contains only fixed-size buffers
	buf := arr[:]

	return buf, func() {
		defaultCopyBufferPool.Put(arr)
	}
}

// copyPayloadBounded streams payload from src to dst and enforces strict size limit.
func copyPayloadBounded(dst io.Writer, src io.Reader, limit int64, buf []byte) (int64, error) {
	if dst == nil {
		return 0, ErrNilWriter
	}
	if src == nil {
		return 0, ErrNilReader
	}
	if limit < 0 {
		return 0, ErrSizeOverflow
	}
	if len(buf) == 0 {
		buf = make([]byte, 32*1024)
	}

	var written int64
	emptyReads := 0
	for written < limit {
		chunkSize := len(buf)
		remaining := limit - written
		if int64(chunkSize) > remaining {
			chunkSize = int(remaining)
		}

		n, readErr := src.Read(buf[:chunkSize])
		if n > 0 {
			emptyReads = 0
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)

			if writeErr != nil {
				return written, writeErr
			}
			if nw != n {
				return written, io.ErrShortWrite
			}
		}
		if n == 0 && readErr == nil {
			emptyReads++
			if emptyReads > 100 {
				return written, io.ErrNoProgress
			}

			continue
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}

			return written, readErr
		}
	}

	// Exactly at limit: read one more byte so longer sources are rejected.
	if written == limit {
		var extra [1]byte
		n, err := src.Read(extra[:])
		if n > 0 {
			return written, ErrSizeOverflow
		}
		if err != nil && err != io.EOF {
			return written, err
		}
	}

	return written, nil
}
