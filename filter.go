// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"strconv"

	"github.com/woozymasta/pathrules"
)

// FolderRules returns selection rules for every entry of one folder.
func FolderRules(folder int) []pathrules.Rule {
	return []pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: strconv.Itoa(folder) + "/*"}}
}

// EntryRules returns selection rules for a single entry position.
func EntryRules(folder int, file int) []pathrules.Rule {
	return []pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: PositionPath(folder, file)}}
}

// filterEntriesByRules keeps entries whose reported position matches rules.
// Empty rules keep every entry.
func filterEntriesByRules(entries []EntryInfo, rules []pathrules.Rule, opts pathrules.MatcherOptions) ([]EntryInfo, error) {
	matcher, err := newRuleMatcher(rules, opts)
	if err != nil {
		return nil, err
	}

	if matcher == nil {
		return entries, nil
	}

	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if matcher.Match(entry.LogicalPosition()) {
			out = append(out, entry)
		}
	}

	return out, nil
}

// filterNonEmptyEntries drops zero-size entries.
func filterNonEmptyEntries(entries []EntryInfo) []EntryInfo {
	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsEmpty() {
			continue
		}

		out = append(out, entry)
	}

	return out
}
