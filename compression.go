// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/woozymasta/pathrules"
)

// maxInflatePrealloc bounds output buffer preallocation taken from untrusted size prefixes.
const maxInflatePrealloc = 16 * 1024 * 1024

// ruleMatcher holds compiled allow-list rules for position paths and names.
type ruleMatcher struct {
	matcher *pathrules.Matcher
}

// newRuleMatcher compiles path rules; it returns nil matcher for empty rule set.
func newRuleMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*ruleMatcher, error) {
	rules = normalizeRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidRule, err)
	}

	return &ruleMatcher{matcher: matcher}, nil
}

// normalizeRules normalizes rule patterns and drops empty patterns.
func normalizeRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether any candidate path is included by rules.
func (m *ruleMatcher) Match(candidates ...string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	for _, candidate := range candidates {
		candidate = NormalizePath(candidate)
		if candidate == "" {
			continue
		}

		if m.matcher.Included(candidate, false) {
			return true
		}
	}

	return false
}

// compressPolicy decides per-slot compression from global switch and exception sets.
type compressPolicy struct {
	forceRaw      *ruleMatcher
	forceCompress *ruleMatcher
	enabled       bool
	disabled      bool
}

// newCompressPolicy compiles compression exception sets.
func newCompressPolicy(opts CompressionOptions, layout Layout) (*compressPolicy, error) {
	forceRaw, err := newRuleMatcher(opts.ForceRaw, opts.MatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("force-raw rules: %w", err)
	}

	forceCompress, err := newRuleMatcher(opts.ForceCompress, opts.MatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("force-compress rules: %w", err)
	}

	return &compressPolicy{
		forceRaw:      forceRaw,
		forceCompress: forceCompress,
		enabled:       opts.Enabled,
		disabled:      layout == LayoutModel,
	}, nil
}

// decide reports whether slot payload must be compressed. ForceRaw wins over ForceCompress.
func (p *compressPolicy) decide(folder int, file int, name string) bool {
	if p.disabled {
		return false
	}

	pos := PositionPath(folder, file)
	if p.forceRaw.Match(pos, name) {
		return false
	}

	if p.forceCompress.Match(pos, name) {
		return true
	}

	return p.enabled
}

// deflatePayload compresses data into a zlib stream.
func deflatePayload(data []byte, level int) ([]byte, error) {
	var dst bytes.Buffer
	dst.Grow(len(data)/2 + 64)

	zw, err := zlib.NewWriterLevel(&dst, level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}

	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("deflate: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish deflate: %w", err)
	}

	return dst.Bytes(), nil
}

// inflatePayload decompresses one zlib stream; bytes after the stream end are ignored.
func inflatePayload(src []byte, sizeHint uint32) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()

	var dst bytes.Buffer
	dst.Grow(int(min(sizeHint, maxInflatePrealloc)))
	if _, err := io.Copy(&dst, zr); err != nil {
		return nil, err
	}

	return dst.Bytes(), nil
}
