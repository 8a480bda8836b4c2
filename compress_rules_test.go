// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"strings"
	"testing"

	"github.com/woozymasta/pathrules"
)

// includeRules builds include rules from raw patterns for concise test setup.
func includeRules(patterns ...string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		rules = append(rules, pathrules.Rule{
			Action:  pathrules.ActionInclude,
			Pattern: pattern,
		})
	}

	return rules
}

func TestCompressPolicy_Decide(t *testing.T) {
	t.Parallel()

	opts := CompressionOptions{
		Enabled:       true,
		ForceRaw:      includeRules("8/*", "*.cam"),
		ForceCompress: includeRules("8/3", "9/*"),
	}
	opts.applyDefaults()

	policy, err := newCompressPolicy(opts, LayoutStandard)
	if err != nil {
		t.Fatalf("newCompressPolicy: %v", err)
	}

	testCases := []struct {
		folder int
		file   int
		name   string
		want   bool
	}{
		{folder: 0, file: 0, name: "0/0.tex", want: true},
		{folder: 8, file: 1, name: "8/1.bin", want: false},
		{folder: 8, file: 3, name: "8/3.bin", want: false},
		{folder: 2, file: 0, name: "stage/intro.cam", want: false},
		{folder: 9, file: 5, name: "", want: true},
	}

	for _, tc := range testCases {
		if got := policy.decide(tc.folder, tc.file, tc.name); got != tc.want {
			t.Fatalf("decide(%d,%d,%q)=%v, want %v", tc.folder, tc.file, tc.name, got, tc.want)
		}
	}
}

func TestCompressPolicy_ForceCompressWhenDisabled(t *testing.T) {
	t.Parallel()

	opts := CompressionOptions{ForceCompress: includeRules("3/*")}
	opts.applyDefaults()

	policy, err := newCompressPolicy(opts, LayoutStandard)
	if err != nil {
		t.Fatalf("newCompressPolicy: %v", err)
	}

	if !policy.decide(3, 1, "") {
		t.Fatal("3/1 must be compressed by force-compress rule")
	}
	if policy.decide(4, 0, "") {
		t.Fatal("4/0 must stay raw while compression is disabled")
	}
}

func TestCompressPolicy_ModelNeverCompresses(t *testing.T) {
	t.Parallel()

	opts := CompressionOptions{Enabled: true, ForceCompress: includeRules("0/*")}
	opts.applyDefaults()

	policy, err := newCompressPolicy(opts, LayoutModel)
	if err != nil {
		t.Fatalf("newCompressPolicy: %v", err)
	}

	if policy.decide(0, 0, "0/model.bin") {
		t.Fatal("model layout must never compress")
	}
}

func TestNormalizeRules(t *testing.T) {
	t.Parallel()

	got := normalizeRules([]pathrules.Rule{
		{Action: pathrules.ActionInclude, Pattern: `  .\8\*  `},
		{Action: pathrules.ActionInclude, Pattern: "   "},
		{Action: pathrules.ActionExclude, Pattern: "8/0"},
	})

	if len(got) != 2 {
		t.Fatalf("len(rules)=%d, want 2", len(got))
	}
	if got[0].Pattern != "8/*" || got[0].Action != pathrules.ActionInclude {
		t.Fatalf("rule[0]=%+v", got[0])
	}
	if got[1].Action != pathrules.ActionExclude {
		t.Fatalf("rule[1] action=%v, want exclude", got[1].Action)
	}
}

func TestRuleMatcher_Nil(t *testing.T) {
	t.Parallel()

	m, err := newRuleMatcher(includeRules(" ", ""), pathrules.MatcherOptions{})
	if err != nil {
		t.Fatalf("newRuleMatcher: %v", err)
	}
	if m != nil {
		t.Fatal("empty rules must yield nil matcher")
	}
	if m.Match("0/0") {
		t.Fatal("nil matcher must not match")
	}
}
