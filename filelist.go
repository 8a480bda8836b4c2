// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

const (
	// FilelistName is the manifest file name written by Extract and read by RebuildDir.
	FilelistName = "filelist.txt"
	// AuxIDsName is the raw auxID file name written by Extract and read by RebuildDir.
	AuxIDsName = "filelist.id"
)

// FilelistEntry is one position-to-path mapping.
// An empty Path marks a slot reserved as empty entry.
type FilelistEntry struct {
	Path   string `json:"path" yaml:"path"`
	Folder int    `json:"folder" yaml:"folder"`
	File   int    `json:"file" yaml:"file"`
}

// Filelist maps entry positions to relative paths.
type Filelist struct {
	paths map[filelistKey]string
}

type filelistKey struct {
	folder int
	file   int
}

// NewFilelist creates empty filelist.
func NewFilelist() *Filelist {
	return &Filelist{paths: make(map[filelistKey]string)}
}

// ReadFilelist reads and parses filelist file.
func ReadFilelist(path string) (*Filelist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open filelist: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseFilelist(f)
}

// ParseFilelist parses `folder/file:"path"` lines.
//
// Blank lines are ignored. The path is everything after the first ':' with
// surrounding quotes trimmed; spaces are part of the name. A later line for
// the same position wins.
func ParseFilelist(r io.Reader) (*Filelist, error) {
	fl := NewFilelist()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		pos, name, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: missing ':' separator", ErrInvalidFilelist, lineNo)
		}

		folder, file, err := ParsePositionPath(pos)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidFilelist, lineNo, err)
		}

		fl.Set(folder, file, strings.Trim(name, `"`))
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read filelist: %w", err)
	}

	return fl, nil
}

// Set stores path for position; path is normalized to slash-separated form.
func (f *Filelist) Set(folder int, file int, path string) {
	if f.paths == nil {
		f.paths = make(map[filelistKey]string)
	}

	f.paths[filelistKey{folder: folder, file: file}] = normalizeListedPath(path)
}

// Lookup returns path stored for position.
func (f *Filelist) Lookup(folder int, file int) (string, bool) {
	if f == nil {
		return "", false
	}

	path, ok := f.paths[filelistKey{folder: folder, file: file}]
	return path, ok
}

// Len returns number of stored positions.
func (f *Filelist) Len() int {
	if f == nil {
		return 0
	}

	return len(f.paths)
}

// Entries returns all mappings ordered by folder, then file.
func (f *Filelist) Entries() []FilelistEntry {
	if f == nil {
		return nil
	}

	out := make([]FilelistEntry, 0, len(f.paths))
	for key, path := range f.paths {
		out = append(out, FilelistEntry{Folder: key.folder, File: key.file, Path: path})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Folder != out[j].Folder {
			return out[i].Folder < out[j].Folder
		}

		return out[i].File < out[j].File
	})

	return out
}

// WriteTo writes filelist in canonical order.
func (f *Filelist) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, entry := range f.Entries() {
		line := PositionPath(entry.Folder, entry.File) + `:"` + sanitizeTextPath(entry.Path) + "\"\n"
		n, err := bw.WriteString(line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, bw.Flush()
}

// WriteFile writes filelist to path.
func (f *Filelist) WriteFile(path string) error {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write filelist: %w", err)
	}

	return nil
}

// String returns filelist text.
func (f *Filelist) String() string {
	var sb strings.Builder
	_, _ = f.WriteTo(&sb)
	return sb.String()
}

