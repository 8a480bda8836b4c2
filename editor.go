// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Editor accumulates entry replacements and applies them to an archive file on Commit.
type Editor struct {
	path string
	ops  []Input
	opts EditOptions
}

// OpenEditor creates staged editor for file-based archive replace workflow.
func OpenEditor(path string, opts EditOptions) (*Editor, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, ErrInvalidEntryPath
	}

	opts.applyDefaults()

	return &Editor{
		path: trimmedPath,
		opts: opts,
		ops:  make([]Input, 0, 8),
	}, nil
}

// Replace schedules replacing payloads of existing entries addressed by Input.Folder/Input.File.
// Later replacements of the same entry win.
func (e *Editor) Replace(inputs ...Input) error {
	if e == nil {
		return ErrNilReader
	}

	for _, in := range inputs {
		if in.Folder < 0 || in.File < 0 {
			return fmt.Errorf("%w: %s (%s)", ErrInvalidPosition, PositionPath(in.Folder, in.File), in.Path)
		}
		if in.Open == nil {
			return fmt.Errorf("%w: input %s has no source", ErrInvalidEntryPath, PositionPath(in.Folder, in.File))
		}
	}

	e.ops = append(e.ops, inputs...)
	return nil
}

// Pending returns number of staged replacements.
func (e *Editor) Pending() int {
	if e == nil {
		return 0
	}

	return len(e.ops)
}

// Commit applies all staged replacements in one rewrite transaction.
//
// The archive is moved to `<path>.bak`, edited in memory and written back; on
// failure the backup is restored.
func (e *Editor) Commit(ctx context.Context) (*EditResult, error) {
	if e == nil {
		return nil, ErrNilReader
	}

	if ctx == nil {
		ctx = context.Background()
	}

	backupPath := e.path + ".bak"
	if err := prepareBackupSlot(backupPath, e.opts.BackupKeep); err != nil {
		return nil, err
	}

	if err := os.Rename(e.path, backupPath); err != nil {
		return nil, fmt.Errorf("move archive to backup: %w", err)
	}

	res, err := e.commitFromBackup(ctx, backupPath)
	if err != nil {
		rollbackErr := rollbackFromBackup(e.path, backupPath)
		if rollbackErr != nil {
			return nil, fmt.Errorf("%w (rollback failed: %w)", err, rollbackErr)
		}

		return nil, err
	}

	if e.opts.BackupKeep == 0 {
		if err := removeIfExists(backupPath); err != nil {
			return nil, fmt.Errorf("remove backup: %w", err)
		}
	}

	e.ops = e.ops[:0]
	return res, nil
}

// commitFromBackup writes edited archive from backup source.
func (e *Editor) commitFromBackup(ctx context.Context, backupPath string) (*EditResult, error) {
	startedAt := time.Now()

	buf, err := os.ReadFile(backupPath)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}

	copyBuf, releaseCopyBuffer := acquireCopyBuffer()
	defer releaseCopyBuffer()

	res := &EditResult{Patches: make([]PatchResult, 0, len(e.ops))}
	for _, in := range e.ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		archive, err := ParseArchive(buf, e.opts.Reader)
		if err != nil {
			return nil, fmt.Errorf("parse archive: %w", err)
		}

		target, err := archive.Entry(in.Folder, in.File)
		if err != nil {
			return nil, err
		}

		policy, err := newCompressPolicy(e.opts.Compression, archive.Layout)
		if err != nil {
			return nil, err
		}

		payload, err := readInputPayload(in, copyBuf)
		if err != nil {
			return nil, err
		}

		compress := policy.decide(in.Folder, in.File, in.Path)
		patched, patch, err := replaceEntry(buf, archive, target, payload, compress, e.opts.Compression.Level)
		if err != nil {
			return nil, err
		}

		e.opts.Logger.Info("entry replaced",
			"folder", in.Folder, "file", in.File, "path", in.Path,
			"old_size", patch.OldRawSize, "size", patch.Entry.RawSize,
			"compressed", patch.Entry.Compressed, "delta", patch.Delta, "shifted", patch.Shifted,
			"normalized", patch.Normalized)

		buf = patched
		res.Patches = append(res.Patches, *patch)
	}

	if err := writeFileAtomic(e.path, buf); err != nil {
		return nil, err
	}

	res.Size = int64(len(buf))
	res.Duration = time.Since(startedAt)
	return res, nil
}

// prepareBackupSlot rotates/removes existing backup generations before new commit.
func prepareBackupSlot(backupPath string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	switch keep {
	case 0, 1:
		return removeIfExists(backupPath)
	default:
		oldest := fmt.Sprintf("%s.%d", backupPath, keep-1)
		if err := removeIfExists(oldest); err != nil {
			return err
		}

		for i := keep - 2; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", backupPath, i)
			to := fmt.Sprintf("%s.%d", backupPath, i+1)
			if err := renameIfExists(from, to); err != nil {
				return err
			}
		}

		return renameIfExists(backupPath, backupPath+".1")
	}
}

// renameIfExists renames source to destination when source exists.
func renameIfExists(from string, to string) error {
	_, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", from, err)
	}

	if err := removeIfExists(to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	return nil
}

// removeIfExists removes file when present.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) || err == nil {
		return nil
	}

	return fmt.Errorf("remove %s: %w", path, err)
}

// rollbackFromBackup restores backup on failed commit.
func rollbackFromBackup(path string, backupPath string) error {
	_ = os.Remove(path)

	if err := os.Rename(backupPath, path); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	return nil
}
