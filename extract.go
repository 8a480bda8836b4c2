// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Extract decodes entries of the archive into dstDir.
//
// Entries are visited in table order and named by their reported position.
// Without Select, a failed decode is recorded as WarningDecompress and the
// remaining entries are still extracted; filelist.txt (every slot) and, for
// standard layout, filelist.id are written next to the payloads. With Select,
// the first failure aborts extraction and no side files are written.
func (r *Reader) Extract(ctx context.Context, dstDir string, opts ExtractOptions) (*ExtractResult, error) {
	startedAt := time.Now()

	if r == nil || r.archive == nil {
		return nil, ErrNilReader
	}

	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	entries, err := filterEntriesByRules(r.archive.Entries(), opts.Select, opts.MatcherOptions)
	if err != nil {
		return nil, err
	}

	fullUnpack := len(opts.Select) == 0
	namer := newOutputNamer(len(entries) + 2)
	if fullUnpack {
		namer.used[FilelistName] = struct{}{}
		namer.used[AuxIDsName] = struct{}{}
	}

	res := &ExtractResult{Manifest: NewFilelist()}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		written, err := r.extractEntry(dstRootAbs, entry, opts, namer, res)
		if err != nil {
			if !fullUnpack {
				return nil, err
			}

			res.Failed++
			res.Manifest.Set(entry.LogicalFolder, entry.File, "")
			res.Warnings = append(res.Warnings, Warning{
				Err:    err,
				Kind:   WarningDecompress,
				Folder: entry.LogicalFolder,
				File:   entry.File,
			})
			opts.Logger.Warn("entry skipped", "folder", entry.LogicalFolder, "file", entry.File, "err", err)
			continue
		}

		if opts.OnEntryDone != nil {
			opts.OnEntryDone(written)
		}
	}

	if fullUnpack {
		if err := res.Manifest.WriteFile(filepath.Join(dstRootAbs, FilelistName)); err != nil {
			return nil, err
		}

		if r.archive.Layout == LayoutStandard {
			res.AuxIDs = r.archive.AuxIDs()
			if err := os.WriteFile(filepath.Join(dstRootAbs, AuxIDsName), res.AuxIDs, 0o600); err != nil {
				return nil, fmt.Errorf("write auxIDs: %w", err)
			}
		}
	}

	res.Duration = time.Since(startedAt)
	return res, nil
}

// extractEntry decodes and writes one entry, recording it in result manifest.
func (r *Reader) extractEntry(
	dstRootAbs string,
	entry EntryInfo,
	opts ExtractOptions,
	namer *outputNamer,
	res *ExtractResult,
) (ExtractProgress, error) {
	progress := ExtractProgress{Entry: entry}

	if entry.IsEmpty() {
		res.Empty++
		res.Manifest.Set(entry.LogicalFolder, entry.File, "")
		return progress, nil
	}

	data, warning, err := r.ReadEntryInfo(entry)
	if err != nil {
		return progress, err
	}
	if warning != nil {
		res.Warnings = append(res.Warnings, *warning)
	}

	relPath, err := namer.assign(entryOutputPath(r.archive.Layout, entry, data, opts))
	if err != nil {
		return progress, err
	}

	outPath := filepath.Join(dstRootAbs, filepath.FromSlash(relPath))
	if err := writeExtractFile(outPath, opts.FileMode, data); err != nil {
		return progress, fmt.Errorf("extract entry %s: %w", entry.LogicalPosition(), err)
	}

	res.Manifest.Set(entry.LogicalFolder, entry.File, relPath)
	res.Written++
	res.Bytes += int64(len(data))

	progress.OutputPath = outPath
	progress.Written = int64(len(data))
	progress.Digest = xxhash.Sum64(data)

	opts.Logger.Debug("entry extracted",
		"folder", entry.LogicalFolder, "file", entry.File, "path", relPath, "size", len(data))

	return progress, nil
}

// ExtractEntry decodes one entry at table position into dstDir and returns written file path.
// Zero-size entries fail with ErrEmptyEntry.
func (r *Reader) ExtractEntry(folder int, file int, dstDir string, opts ExtractOptions) (string, error) {
	if r == nil || r.archive == nil {
		return "", ErrNilReader
	}

	opts.applyDefaults()

	entry, err := r.archive.Entry(folder, file)
	if err != nil {
		return "", err
	}

	if entry.IsEmpty() {
		return "", fmt.Errorf("%w: %s", ErrEmptyEntry, entry.Position())
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}

	res := &ExtractResult{Manifest: NewFilelist()}
	written, err := r.extractEntry(dstRootAbs, entry, opts, newOutputNamer(1), res)
	if err != nil {
		return "", err
	}

	if opts.OnEntryDone != nil {
		opts.OnEntryDone(written)
	}

	return written.OutputPath, nil
}

// writeExtractFile creates parent directories and writes one output file.
func writeExtractFile(path string, mode ExtractFileMode, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := openExtractFile(path, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	_, writeErr := file.Write(data)
	closeErr := file.Close()
	if writeErr != nil {
		return fmt.Errorf("write %s: %w", path, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", path, closeErr)
	}

	return nil
}

// openExtractFile opens output path according to selected extract file mode.
func openExtractFile(path string, mode ExtractFileMode) (*os.File, error) {
	switch mode {
	case ExtractFileModeAuto:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return file, nil
		}

		if !os.IsExist(err) {
			return nil, err
		}

		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	case ExtractFileModeTruncate:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	case ExtractFileModeCreateOnly:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	default:
		return nil, fmt.Errorf("unknown extract file mode %q", mode)
	}
}

// normalizeExtractEntryPath normalizes output path and rejects absolute/traversal inputs.
func normalizeExtractEntryPath(entryPath string) (string, error) {
	raw := strings.TrimSpace(entryPath)
	if raw == "" {
		return "", ErrInvalidExtractPath
	}
	if strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}
	if strings.HasPrefix(raw, `/`) || strings.HasPrefix(raw, `\`) {
		return "", ErrInvalidExtractPath
	}

	raw = strings.ReplaceAll(raw, `\`, `/`)
	if hasWindowsAbsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, `/`)
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, `/`), nil
}

// hasWindowsAbsDrivePrefix reports whether path starts with drive-root prefix like C:/.
func hasWindowsAbsDrivePrefix(path string) bool {
	if len(path) < 3 {
		return false
	}

	return isASCIIAlpha(path[0]) && path[1] == ':' && path[2] == '/'
}

// isASCIIAlpha reports whether byte is ASCII latin letter.
func isASCIIAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
