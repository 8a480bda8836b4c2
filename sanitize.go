// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	// maxSanitizedSegmentLen limits one path segment to common filesystem-safe length.
	maxSanitizedSegmentLen = 240
)

var (
	// reservedDeviceNames contains case-insensitive reserved DOS/Windows device names.
	reservedDeviceNames = map[string]struct{}{
		"aux": {}, "con": {}, "nul": {}, "prn": {}, "clock$": {},
		"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {}, "com6": {}, "com7": {}, "com8": {}, "com9": {},
		"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {}, "lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
	}
)

// SanitizePath rewrites one path to deterministic filesystem-safe slash-separated form.
func SanitizePath(pathValue string) (string, error) {
	normalizedPath := NormalizePath(pathValue)
	if normalizedPath == "" {
		return "", nil
	}

	sanitized, err := sanitizeRelativePath(normalizedPath)
	if err != nil {
		return "", err
	}

	if _, err := normalizeExtractEntryPath(sanitized); err != nil {
		return "", err
	}

	return sanitized, nil
}

// outputNamer assigns unique filesystem-safe output paths during one extraction.
type outputNamer struct {
	used       map[string]struct{}
	nextSuffix map[string]int
}

// newOutputNamer creates namer sized for n outputs.
func newOutputNamer(n int) *outputNamer {
	return &outputNamer{
		used:       make(map[string]struct{}, n),
		nextSuffix: make(map[string]int, n),
	}
}

// assign sanitizes raw output path and resolves collisions with earlier outputs.
func (n *outputNamer) assign(raw string) (string, error) {
	relativePath, err := normalizeExtractEntryPath(raw)
	if err != nil {
		// Mangled names from filelists are sanitized segment by segment instead of failing.
		relativePath = strings.ReplaceAll(raw, `\`, `/`)
	}

	sanitized, err := sanitizeRelativePath(relativePath)
	if err != nil {
		return "", fmt.Errorf("sanitize path %s: %w", raw, err)
	}

	sanitized, err = makeSanitizedPathUnique(sanitized, n.used, n.nextSuffix)
	if err != nil {
		return "", fmt.Errorf("sanitize path %s: %w", raw, err)
	}

	if _, err := normalizeExtractEntryPath(sanitized); err != nil {
		return "", fmt.Errorf("sanitize path %s: %w", raw, err)
	}

	return sanitized, nil
}

// sanitizeRelativePath sanitizes each segment of relative slash-separated path.
func sanitizeRelativePath(relativePath string) (string, error) {
	return sanitizeRelativePathWith(relativePath, sanitizePathSegment)
}

// sanitizeRelativePathWith sanitizes each segment of relative slash-separated path with custom segment function.
func sanitizeRelativePathWith(relativePath string, sanitizeSegment func(string) (string, error)) (string, error) {
	parts := strings.Split(relativePath, "/")
	sanitized := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "." {
			continue
		}

		segment, err := sanitizeSegment(part)
		if err != nil {
			return "", err
		}

		sanitized = append(sanitized, segment)
	}
	if len(sanitized) == 0 {
		return "_", nil
	}

	return strings.Join(sanitized, "/"), nil
}

// sanitizePathSegment sanitizes one path segment for broad filesystem compatibility.
func sanitizePathSegment(segment string) (string, error) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "_", nil
	}
	rawReserved := isReservedDeviceName(segment)

	var b strings.Builder
	b.Grow(len(segment))
	for _, r := range segment {
		if isUnsafeControlCharRune(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			b.WriteRune('_')
			continue
		}

		b.WriteRune(r)
	}

	sanitized := strings.TrimRight(b.String(), ". ")
	if sanitized == "" || sanitized == ".." {
		sanitized = "_"
	}

	base := sanitized
	if dot := strings.IndexByte(base, '.'); dot >= 0 {
		base = base[:dot]
	}
	if rawReserved || isReservedDeviceName(base) {
		sanitized = "_" + sanitized
	}

	if len(sanitized) > maxSanitizedSegmentLen {
		sanitized = shortenSegmentDeterministic(sanitized, maxSanitizedSegmentLen)
	}
	if sanitized == "" {
		return "", ErrInvalidExtractPath
	}

	return sanitized, nil
}

// sanitizeTextPath replaces control and format runes so path fits on one filelist line.
func sanitizeTextPath(value string) string {
	if strings.IndexFunc(value, isUnsafeTextRune) < 0 {
		return value
	}

	return strings.Map(func(r rune) rune {
		if isUnsafeTextRune(r) {
			return '_'
		}

		return r
	}, value)
}

// isUnsafeTextRune reports whether rune breaks single-line quoted filelist paths.
func isUnsafeTextRune(r rune) bool {
	return isUnsafeControlCharRune(r) || r == '"'
}

// isUnsafeControlCharRune reports whether rune is unsafe for textual output and should be replaced.
func isUnsafeControlCharRune(r rune) bool {
	if unicode.IsControl(r) || unicode.In(r, unicode.Cf) {
		return true
	}

	// U+FFFD appears from invalid byte sequences in decoded names.
	return r == '\uFFFD'
}

// isReservedDeviceName reports whether name matches reserved DOS/Windows device identifier.
func isReservedDeviceName(name string) bool {
	candidate := strings.TrimSpace(name)
	candidate = strings.TrimRight(candidate, ". :")
	candidate = strings.ToLower(candidate)
	if dot := strings.IndexByte(candidate, '.'); dot >= 0 {
		candidate = candidate[:dot]
	}
	candidate = strings.TrimRight(candidate, ". :")
	if candidate == "" {
		return false
	}

	_, ok := reservedDeviceNames[candidate]
	return ok
}

// makeSanitizedPathUnique resolves collisions by adding deterministic numeric suffix.
func makeSanitizedPathUnique(pathValue string, used map[string]struct{}, nextSuffix map[string]int) (string, error) {
	key := strings.ToLower(pathValue)
	if _, exists := used[key]; !exists {
		used[key] = struct{}{}
		return pathValue, nil
	}

	dir := path.Dir(pathValue)
	name := path.Base(pathValue)
	startIdx := 2
	if savedIdx, exists := nextSuffix[key]; exists && savedIdx > startIdx {
		startIdx = savedIdx
	}

	for idx := startIdx; idx < 1000000; idx++ {
		candidateName := withNumericSuffix(name, idx)
		candidate := candidateName
		if dir != "." {
			candidate = dir + "/" + candidateName
		}

		candidateKey := strings.ToLower(candidate)
		if _, exists := used[candidateKey]; exists {
			continue
		}

		used[candidateKey] = struct{}{}
		nextSuffix[key] = idx + 1
		return candidate, nil
	}

	return "", ErrInvalidExtractPath
}

// withNumericSuffix appends "~N" before extension and preserves max segment length.
func withNumericSuffix(name string, n int) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	suffix := "~" + strconv.Itoa(n)
	allowedBaseLen := max(maxSanitizedSegmentLen-len(ext)-len(suffix), 1)
	if len(base) > allowedBaseLen {
		base = shortenSegmentDeterministic(base, allowedBaseLen)
	}

	return base + suffix + ext
}

// shortenSegmentDeterministic shortens long segment while preserving deterministic identity suffix.
func shortenSegmentDeterministic(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	if maxLen <= 18 {
		return value[:maxLen]
	}

	hashPart := fmt.Sprintf("~%016x", xxhash.Sum64String(value))
	prefixLen := max(maxLen-len(hashPart), 1)

	return value[:prefixLen] + hashPart
}
