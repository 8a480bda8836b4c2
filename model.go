// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"io"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/woozymasta/pathrules"
)

// Internal binary layout and format limits.
const (
	rootSize       = 0x10    // folderCount, headerLength, tag, reserved
	descriptorSize = 0x10    // fileTableOffset, fileCount, reserved u64
	recordSize     = 0x10    // dataOffset, rawSize, flags, auxID, pad, reserved
	prefixSize     = 4       // decompressed-size prefix of compressed payloads
	compressBit    = 13      // bit index of compression flag in record flags
	modelSlots     = 4       // entries per folder in model layout
	maxBINData     = 1 << 32 // max addressable archive size (4 GiB)
)

// Public format constants.
const (
	// Alignment is the payload and header alignment unit.
	Alignment = 0x800
	// BuildTag is the root tag written at 0x08 of standard-layout archives.
	BuildTag = 0x20031205
	// FlagCompressed is the record flag bit marking zlib-compressed payloads.
	FlagCompressed uint16 = 1 << compressBit
)

// Layout selects one of the two header encodings.
type Layout uint8

// Header encodings.
const (
	// LayoutStandard has folder descriptors, 16-byte entry records and 0x800 alignment.
	LayoutStandard Layout = iota
	// LayoutModel stores four raw sizes per folder followed by unaligned payloads.
	LayoutModel
)

// String returns layout name.
func (l Layout) String() string {
	switch l {
	case LayoutStandard:
		return "standard"
	case LayoutModel:
		return "model"
	default:
		return "unknown"
	}
}

// EntryInfo describes one parsed directory entry.
type EntryInfo struct {
	// Folder is the folder index of the table the entry was read from.
	Folder int `json:"folder" yaml:"folder"`
	// File is the entry index inside its folder table.
	File int `json:"file" yaml:"file"`
	// LogicalFolder is the folder the entry is reported under; differs from Folder for swapped slots.
	LogicalFolder int `json:"logical_folder" yaml:"logical_folder"`
	// Offset is absolute payload offset.
	Offset uint32 `json:"offset" yaml:"offset"`
	// RawSize is stored payload length, including the size prefix for compressed entries.
	RawSize uint32 `json:"raw_size" yaml:"raw_size"`
	// SlotOffset is absolute address of the record holding Offset.
	SlotOffset uint32 `json:"slot_offset" yaml:"slot_offset"`
	// RecordOffset is absolute address of the record holding RawSize, Flags and AuxID.
	RecordOffset uint32 `json:"record_offset" yaml:"record_offset"`
	// Flags is the raw record flag word.
	Flags uint16 `json:"flags,omitempty" yaml:"flags,omitempty"`
	// AuxID is the opaque per-entry byte.
	AuxID byte `json:"aux_id" yaml:"aux_id"`
	// Compressed reports whether payload is zlib-compressed with a size prefix.
	Compressed bool `json:"compressed,omitempty" yaml:"compressed,omitempty"`
}

// Position returns table position as "folder/file".
func (e *EntryInfo) Position() string {
	return PositionPath(e.Folder, e.File)
}

// LogicalPosition returns reported position as "folder/file".
func (e *EntryInfo) LogicalPosition() string {
	return PositionPath(e.LogicalFolder, e.File)
}

// IsSwapped reports whether entry was decoded through the swapped-slot table.
func (e *EntryInfo) IsSwapped() bool {
	return e.LogicalFolder != e.Folder
}

// IsEmpty reports whether entry has no payload.
func (e *EntryInfo) IsEmpty() bool {
	return e.RawSize == 0
}

// AlignedSize returns RawSize rounded up to Alignment.
func (e *EntryInfo) AlignedSize() uint64 {
	return alignSize(uint64(e.RawSize))
}

// Folder is one directory group of entries.
type Folder struct {
	// Entries are folder entries in table order.
	Entries []EntryInfo `json:"entries" yaml:"entries"`
	// Index is folder index.
	Index int `json:"index" yaml:"index"`
	// TableOffset is absolute file table address (model layout: address of the first size word).
	TableOffset uint32 `json:"table_offset" yaml:"table_offset"`
}

// Archive is a parsed BIN directory.
type Archive struct {
	// Folders are directory folders in index order.
	Folders []Folder `json:"folders" yaml:"folders"`
	// Layout is the header encoding the directory was decoded with.
	Layout Layout `json:"layout" yaml:"layout"`
	// HeaderLength is declared header length (model layout: size of the size table).
	HeaderLength uint32 `json:"header_length" yaml:"header_length"`
	// Tag is root tag at 0x08 (standard layout only).
	Tag uint32 `json:"tag,omitempty" yaml:"tag,omitempty"`
	// Reserved is root word at 0x0C (standard layout only).
	Reserved uint32 `json:"reserved,omitempty" yaml:"reserved,omitempty"`

	swaps swapTable
}

// Input describes one source payload for a rebuild slot.
type Input struct {
	// Open returns raw source stream; an error matching fs.ErrNotExist reserves an empty slot.
	Open func() (io.ReadCloser, error) `json:"-" yaml:"-"`
	// Path is human-readable source name; also matched by compression rules.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Folder is destination folder index.
	Folder int `json:"folder" yaml:"folder"`
	// File is destination file index inside folder.
	File int `json:"file" yaml:"file"`
	// AuxID is the opaque per-entry byte, used when RebuildOptions.AuxIDs is nil.
	AuxID byte `json:"aux_id,omitempty" yaml:"aux_id,omitempty"`
}

// ReaderOptions configures header parsing.
type ReaderOptions struct {
	// Logger receives non-fatal warnings; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// SwappedSlots is the anomaly table; nil selects DefaultSwappedSlots, empty disables it.
	SwappedSlots []SwappedSlot `json:"swapped_slots,omitempty" yaml:"swapped_slots,omitempty"`
	// Model asserts the buffer may use model layout; it is used when root tag differs from BuildTag.
	Model bool `json:"model,omitempty" yaml:"model,omitempty"`
}

// CompressionOptions configures per-slot compression decisions.
type CompressionOptions struct {
	// ForceRaw lists rules for slots stored uncompressed regardless of Enabled.
	// Rules match position paths ("8/12") and input names.
	ForceRaw []pathrules.Rule `json:"force_raw,omitempty" yaml:"force_raw,omitempty"`
	// ForceCompress lists rules for slots stored compressed regardless of Enabled.
	ForceCompress []pathrules.Rule `json:"force_compress,omitempty" yaml:"force_compress,omitempty"`
	// MatcherOptions control rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
	// Level is zlib compression level; zero means zlib.DefaultCompression.
	Level int `json:"level,omitempty" yaml:"level,omitempty"`
	// Enabled is the global compression choice.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// RebuildProgress contains one completed slot event from rebuild flow.
type RebuildProgress struct {
	// Path is input name.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Folder is folder index.
	Folder int `json:"folder" yaml:"folder"`
	// File is file index.
	File int `json:"file" yaml:"file"`
	// Offset is payload offset relative to data start.
	Offset uint32 `json:"offset" yaml:"offset"`
	// RawSize is stored payload size recorded in the header.
	RawSize uint32 `json:"raw_size" yaml:"raw_size"`
	// Compressed reports whether compressed payload was written.
	Compressed bool `json:"compressed,omitempty" yaml:"compressed,omitempty"`
	// Missing reports whether slot was reserved as empty placeholder.
	Missing bool `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// RebuildOptions configures archive rebuild.
type RebuildOptions struct {
	// OnEntryDone is called after one slot is appended to the data region.
	OnEntryDone func(entry RebuildProgress) `json:"-" yaml:"-"`
	// Logger receives non-fatal warnings; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// AuxIDs holds one opaque byte per slot in canonical order; nil uses Input.AuxID.
	AuxIDs []byte `json:"-" yaml:"-"`
	// Compression controls per-slot compression (ignored for LayoutModel).
	Compression CompressionOptions `json:"compression,omitzero" yaml:"compression,omitzero"`
	// Layout selects header encoding.
	Layout Layout `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// RebuildResult contains rebuild output statistics.
type RebuildResult struct {
	// Entries are written entries with final absolute offsets.
	Entries []EntryInfo `json:"entries" yaml:"entries"`
	// Warnings are recorded non-fatal conditions.
	Warnings []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	// Folders is number of folders written.
	Folders int `json:"folders" yaml:"folders"`
	// HeaderSize is padded header size in bytes.
	HeaderSize int64 `json:"header_size" yaml:"header_size"`
	// DataSize is data region size in bytes.
	DataSize int64 `json:"data_size" yaml:"data_size"`
	// RawBytes is total stored bytes of uncompressed entries.
	RawBytes int64 `json:"raw_bytes,omitempty" yaml:"raw_bytes,omitempty"`
	// CompressedBytes is total stored bytes of compressed entries.
	CompressedBytes int64 `json:"compressed_bytes,omitempty" yaml:"compressed_bytes,omitempty"`
	// CompressedEntries is number of compressed entries.
	CompressedEntries int `json:"compressed_entries,omitempty" yaml:"compressed_entries,omitempty"`
	// MissingEntries is number of reserved empty placeholders.
	MissingEntries int `json:"missing_entries,omitempty" yaml:"missing_entries,omitempty"`
	// Duration is end-to-end rebuild duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// RebuildDirOptions configures RebuildDir.
type RebuildDirOptions struct {
	// Names overrides dir/filelist.txt.
	Names *Filelist `json:"-" yaml:"-"`
	RebuildOptions
	// IgnoreFilelist scans numeric slot names even when dir/filelist.txt exists.
	IgnoreFilelist bool `json:"ignore_filelist,omitempty" yaml:"ignore_filelist,omitempty"`
}

// ListOptions configures ListEntries.
type ListOptions struct {
	// Select limits listing to entries whose reported position matches rules; empty means all.
	Select []pathrules.Rule `json:"select,omitempty" yaml:"select,omitempty"`
	// MatcherOptions control Select rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
	// Reader configures header parsing.
	Reader ReaderOptions `json:"reader,omitzero" yaml:"reader,omitzero"`
	// SkipEmpty drops zero-size entries.
	SkipEmpty bool `json:"skip_empty,omitempty" yaml:"skip_empty,omitempty"`
}

// ExtractProgress contains one completed entry event from extract flow.
type ExtractProgress struct {
	// OutputPath is written file path; empty for empty entries.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	// Entry is the extracted entry.
	Entry EntryInfo `json:"entry" yaml:"entry"`
	// Written is number of payload bytes written.
	Written int64 `json:"written" yaml:"written"`
	// Digest is xxhash64 of the decoded payload.
	Digest uint64 `json:"digest" yaml:"digest"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is decoded and written.
	OnEntryDone func(entry ExtractProgress) `json:"-" yaml:"-"`
	// Logger receives non-fatal warnings; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Names supplies human-readable output paths by reported position.
	Names *Filelist `json:"-" yaml:"-"`
	// Select limits extraction to entries whose reported position ("folder/file") matches rules; empty means all.
	// Selective extraction does not write filelist.txt and filelist.id.
	Select []pathrules.Rule `json:"select,omitempty" yaml:"select,omitempty"`
	// MatcherOptions control Select rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// QBExtensions selects legacy "pgm"/"dat" extensions instead of "tex"/"tx2"/"lxe".
	QBExtensions bool `json:"qb_extensions,omitempty" yaml:"qb_extensions,omitempty"`
	// Flat writes "folder_file.ext" names instead of per-folder directories.
	Flat bool `json:"flat,omitempty" yaml:"flat,omitempty"`
}

// ExtractResult contains extract statistics.
type ExtractResult struct {
	// Manifest lists output paths of every visited slot by reported position.
	Manifest *Filelist `json:"-" yaml:"-"`
	// AuxIDs are opaque entry bytes in slot order (standard layout, full unpack only).
	AuxIDs []byte `json:"-" yaml:"-"`
	// Warnings are recorded non-fatal conditions.
	Warnings []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	// Written is number of files written.
	Written int `json:"written" yaml:"written"`
	// Empty is number of visited zero-size entries.
	Empty int `json:"empty,omitempty" yaml:"empty,omitempty"`
	// Failed is number of entries that failed to decode.
	Failed int `json:"failed,omitempty" yaml:"failed,omitempty"`
	// Bytes is total decoded bytes written.
	Bytes int64 `json:"bytes" yaml:"bytes"`
	// Duration is end-to-end extract duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeAuto first tries create-only, then falls back to truncate for existing files.
	ExtractFileModeAuto ExtractFileMode = "auto"
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// EditOptions configures file-based archive edit flow.
type EditOptions struct {
	// Logger receives progress and warnings; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Reader configures how the edited archive is parsed.
	Reader ReaderOptions `json:"reader,omitzero" yaml:"reader,omitzero"`
	// Compression controls replaced payload compression.
	Compression CompressionOptions `json:"compression,omitzero" yaml:"compression,omitzero"`
	// BackupKeep controls how many backup generations are kept after successful commit.
	// 0 means remove backup, 1 keeps only `<archive>.bak`, N keeps `.bak` + `.bak.1..N-1`.
	BackupKeep int `json:"backup_keep,omitempty" yaml:"backup_keep,omitempty"`
}

// PatchResult describes one applied entry patch.
type PatchResult struct {
	// Entry is target entry after patch.
	Entry EntryInfo `json:"entry" yaml:"entry"`
	// OldRawSize is stored size before patch.
	OldRawSize uint32 `json:"old_raw_size" yaml:"old_raw_size"`
	// Delta is the byte shift applied to every later payload.
	Delta int64 `json:"delta" yaml:"delta"`
	// Shifted is number of entries whose payload moved by Delta.
	Shifted int `json:"shifted" yaml:"shifted"`
	// Normalized is set when swapped slots were rewritten to their reported positions.
	Normalized bool `json:"normalized,omitempty" yaml:"normalized,omitempty"`
}

// EditResult contains editor commit statistics.
type EditResult struct {
	// Patches are applied replacements in staging order.
	Patches []PatchResult `json:"patches" yaml:"patches"`
	// Size is archive size after commit.
	Size int64 `json:"size" yaml:"size"`
	// Duration is end-to-end commit duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// discardLogger is used when options carry no logger.
var discardLogger = slog.New(slog.DiscardHandler)

// applyDefaults fills zero-valued reader options with defaults.
func (opts *ReaderOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = discardLogger
	}

	if opts.SwappedSlots == nil {
		opts.SwappedSlots = DefaultSwappedSlots()
	}
}

// applyDefaults fills zero-valued compression options with defaults.
func (opts *CompressionOptions) applyDefaults() {
	if opts.Level == 0 {
		opts.Level = zlib.DefaultCompression
	}

	if opts.MatcherOptions == (pathrules.MatcherOptions{}) {
		opts.MatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.MatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.MatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}

// applyDefaults fills zero-valued rebuild options with defaults.
func (opts *RebuildOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = discardLogger
	}

	opts.Compression.applyDefaults()
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = discardLogger
	}

	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeAuto
	}

	if opts.MatcherOptions == (pathrules.MatcherOptions{}) {
		opts.MatcherOptions = pathrules.MatcherOptions{
			DefaultAction: pathrules.ActionExclude,
		}
	}
}

// applyDefaults fills zero-valued list options with defaults.
func (opts *ListOptions) applyDefaults() {
	opts.Reader.applyDefaults()

	if opts.MatcherOptions == (pathrules.MatcherOptions{}) {
		opts.MatcherOptions = pathrules.MatcherOptions{
			DefaultAction: pathrules.ActionExclude,
		}
	}
}

// applyDefaults fills zero-valued edit options with defaults.
func (opts *EditOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = discardLogger
	}

	opts.Reader.applyDefaults()
	opts.Compression.applyDefaults()

	if opts.BackupKeep < 0 {
		opts.BackupKeep = 0
	}
}
