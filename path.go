// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// PositionPath formats entry position as "folder/file".
func PositionPath(folder int, file int) string {
	return strconv.Itoa(folder) + "/" + strconv.Itoa(file)
}

// ParsePositionPath parses "folder/file" position key; both "/" and "\" separators are accepted.
func ParsePositionPath(raw string) (int, int, error) {
	normalized := NormalizePath(raw)
	folderPart, filePart, ok := strings.Cut(normalized, "/")
	if !ok || strings.Contains(filePart, "/") {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPosition, raw)
	}

	folder, err := strconv.Atoi(folderPart)
	if err != nil || folder < 0 {
		return 0, 0, fmt.Errorf("%w: folder in %q", ErrInvalidPosition, raw)
	}

	file, err := strconv.Atoi(filePart)
	if err != nil || file < 0 {
		return 0, 0, fmt.Errorf("%w: file in %q", ErrInvalidPosition, raw)
	}

	return folder, file, nil
}

// NormalizePath converts a relative path to normalized slash-separated form.
// It trims spaces, accepts both "/" and "\", removes leading "./" and "/", and cleans "." segments.
func NormalizePath(raw string) string {
	return cleanSlashPath(normalizePathForMatching(raw))
}

// normalizeListedPath is NormalizePath keeping leading and trailing spaces.
func normalizeListedPath(raw string) string {
	raw = strings.ReplaceAll(raw, `\`, `/`)
	return cleanSlashPath(strings.TrimPrefix(raw, "./"))
}

// cleanSlashPath cleans a slash-separated path into relative form.
func cleanSlashPath(raw string) string {
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// normalizePathForMatching normalizes user/input paths for matcher use.
func normalizePathForMatching(path string) string {
	path = strings.TrimSpace(path)
	path = strings.ReplaceAll(path, `\`, `/`)
	path = strings.TrimPrefix(path, "./")
	return path
}
