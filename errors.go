// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors for BIN operations. Use errors.Is in callers.
var (
	// ErrInvalidHeader means the buffer is too short for the declared header.
	ErrInvalidHeader = errors.New("invalid BIN file: missing or bad header")
	// ErrIndexOutOfRange means a folder or file index is outside the archive directory.
	ErrIndexOutOfRange = errors.New("folder or file index out of range")
	// ErrInvalidEntryOffset means an entry payload lies outside the archive buffer.
	ErrInvalidEntryOffset = errors.New("invalid entry offset")
	// ErrDecompress means a compressed payload could not be inflated.
	ErrDecompress = errors.New("decompress entry payload")
	// ErrSizeOverflow means a size or offset exceeds the uint32 or 4 GiB BIN limit.
	ErrSizeOverflow = errors.New("size exceeds uint32 or 4 GiB BIN limit")
	// ErrEmptyInputs means no inputs were provided for rebuild.
	ErrEmptyInputs = errors.New("no inputs provided for rebuild")
	// ErrDuplicateEntry means two inputs address the same folder/file slot.
	ErrDuplicateEntry = errors.New("duplicate entry position")
	// ErrInvalidPosition means a folder or file index is negative or malformed.
	ErrInvalidPosition = errors.New("invalid entry position")
	// ErrAuxIDCount means the auxID array is shorter than the number of slots.
	ErrAuxIDCount = errors.New("auxID array shorter than entry count")
	// ErrModelFolderOverflow means a model-layout folder holds more than four entries.
	ErrModelFolderOverflow = errors.New("model layout folder holds more than 4 entries")
	// ErrModelCompression means compression was requested for a model-layout entry.
	ErrModelCompression = errors.New("model layout entries cannot be compressed")
	// ErrAnomalyShift means a patch cannot move a swapped directory slot safely.
	ErrAnomalyShift = errors.New("patch cannot shift swapped directory slot; rebuild the archive instead")
	// ErrInvalidRule means one or more path rules are invalid.
	ErrInvalidRule = errors.New("invalid path rules")
	// ErrInvalidFilelist means a filelist line could not be parsed.
	ErrInvalidFilelist = errors.New("invalid filelist")
	// ErrEmptyEntry means a single-entry extraction addressed a zero-size entry.
	ErrEmptyEntry = errors.New("entry is empty")
	// ErrInvalidExtractPath means an entry output path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrInvalidEntryPath means an editor archive path is empty.
	ErrInvalidEntryPath = errors.New("invalid entry path")
	// ErrNilWriter means the writer is nil.
	ErrNilWriter = errors.New("writer is nil")
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
)

// IndexError reports a directory entry that addresses bytes outside the buffer.
// File is -1 for folder-level failures.
type IndexError struct {
	// Err is the sentinel this error wraps.
	Err error
	// Folder is the folder index being decoded.
	Folder int
	// File is the file index being decoded, or -1.
	File int
	// Offset is the offending absolute offset.
	Offset uint64
	// Size is the buffer length the offset was checked against.
	Size int
}

// Error implements error.
func (e *IndexError) Error() string {
	where := "folder " + strconv.Itoa(e.Folder)
	if e.File >= 0 {
		where = "entry " + PositionPath(e.Folder, e.File)
	}

	return fmt.Sprintf("%v: %s at offset 0x%X (buffer size 0x%X)", e.Err, where, e.Offset, e.Size)
}

// Unwrap returns the wrapped sentinel.
func (e *IndexError) Unwrap() error {
	return e.Err
}

// WarningKind classifies non-fatal conditions.
type WarningKind string

// Non-fatal condition kinds.
const (
	// WarningSizeMismatch means the inflated length disagrees with the stored size prefix.
	WarningSizeMismatch WarningKind = "size_mismatch"
	// WarningMissingSource means a rebuild source was absent and a zero-size slot was reserved.
	WarningMissingSource WarningKind = "missing_source"
	// WarningDecompress means one entry failed to inflate during a full unpack.
	WarningDecompress WarningKind = "decompress"
)

// Warning is a recorded non-fatal condition; processing continues after it.
type Warning struct {
	// Err carries the underlying failure for WarningDecompress and WarningMissingSource.
	Err error `json:"-" yaml:"-"`
	// Kind classifies the condition.
	Kind WarningKind `json:"kind" yaml:"kind"`
	// Path is the source or output path, when known.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Folder is the folder index of the entry.
	Folder int `json:"folder" yaml:"folder"`
	// File is the file index of the entry.
	File int `json:"file" yaml:"file"`
	// Expected is the stored size prefix for WarningSizeMismatch.
	Expected int64 `json:"expected,omitempty" yaml:"expected,omitempty"`
	// Actual is the inflated length for WarningSizeMismatch.
	Actual int64 `json:"actual,omitempty" yaml:"actual,omitempty"`
}

// String formats warning for logs.
func (w Warning) String() string {
	pos := PositionPath(w.Folder, w.File)
	switch w.Kind {
	case WarningSizeMismatch:
		return fmt.Sprintf("entry %s: inflated %d bytes, size prefix says %d", pos, w.Actual, w.Expected)
	case WarningMissingSource:
		return fmt.Sprintf("entry %s: source %q missing, reserved empty slot", pos, w.Path)
	case WarningDecompress:
		return fmt.Sprintf("entry %s: %v", pos, w.Err)
	default:
		return fmt.Sprintf("entry %s: %s", pos, w.Kind)
	}
}
