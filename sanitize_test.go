// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"strings"
	"testing"
)

func TestSanitizePathSegment(t *testing.T) {
	t.Parallel()

	longName := strings.Repeat("a", 400)
	gotLong, err := sanitizePathSegment(longName)
	if err != nil {
		t.Fatalf("sanitizePathSegment(long): %v", err)
	}
	if len(gotLong) > maxSanitizedSegmentLen {
		t.Fatalf("len(long)=%d, want <= %d", len(gotLong), maxSanitizedSegmentLen)
	}
	if gotLong == longName {
		t.Fatal("long segment was not shortened")
	}

	testCases := []struct {
		in   string
		want string
	}{
		{in: "CON.txt", want: "_CON.txt"},
		{in: "  COM8.c  ", want: "_COM8.c"},
		{in: "a:b?.txt", want: "a_b_.txt"},
		{in: "name. ", want: "name"},
		{in: "AUX:", want: "_AUX_"},
		{in: "CLOCK$.cfg", want: "_CLOCK$.cfg"},
		{in: "..", want: "_"},
		{in: "a\x1b[31m.txt", want: "a_[31m.txt"},
		{in: "name\u009b0m.txt", want: "name_0m.txt"},
		{in: "a\x7fb.txt", want: "a_b.txt"},
		{in: "a\u200fb.txt", want: "a_b.txt"},
		{in: "bad\uFFFDname.tex", want: "bad_name.tex"},
		{in: "0.tex", want: "0.tex"},
	}

	for _, tc := range testCases {
		got, err := sanitizePathSegment(tc.in)
		if err != nil {
			t.Fatalf("sanitizePathSegment(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("sanitizePathSegment(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsReservedDeviceName(t *testing.T) {
	t.Parallel()

	testCases := map[string]bool{
		"nul":      true,
		"LPT1.txt": true,
		"com9 ":    true,
		"com0":     false,
		"console":  false,
		"":         false,
	}

	for in, want := range testCases {
		if got := isReservedDeviceName(in); got != want {
			t.Fatalf("isReservedDeviceName(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "../chars/CON", want: "chars/_CON"},
		{in: `stage\12\a?.tex`, want: "stage/12/a_.tex"},
	}

	for _, tc := range testCases {
		got, err := SanitizePath(tc.in)
		if err != nil {
			t.Fatalf("SanitizePath(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("SanitizePath(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOutputNamerCollisions(t *testing.T) {
	t.Parallel()

	namer := newOutputNamer(4)
	namer.used[FilelistName] = struct{}{}

	want := []struct {
		in   string
		want string
	}{
		{in: "0/1.tex", want: "0/1.tex"},
		{in: "0/1.tex", want: "0/1~2.tex"},
		{in: "0/1.TEX", want: "0/1~3.TEX"},
		{in: "filelist.txt", want: "filelist~2.txt"},
		{in: "../../up.bin", want: "_/_/up.bin"},
	}

	for _, tc := range want {
		got, err := namer.assign(tc.in)
		if err != nil {
			t.Fatalf("assign(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("assign(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestShortenSegmentDeterministic(t *testing.T) {
	t.Parallel()

	if got := shortenSegmentDeterministic("abcdef", 3); got != "abc" {
		t.Fatalf("short limit=%q", got)
	}

	left := strings.Repeat("x", 300) + "left"
	right := strings.Repeat("x", 300) + "right"

	a := shortenSegmentDeterministic(left, 64)
	if a != shortenSegmentDeterministic(left, 64) {
		t.Fatal("shortening must be deterministic")
	}
	if a == shortenSegmentDeterministic(right, 64) {
		t.Fatal("different names must keep distinct hash suffixes")
	}
	if len(a) != 64 {
		t.Fatalf("len=%d, want 64", len(a))
	}

	if got := withNumericSuffix("a.tex", 3); got != "a~3.tex" {
		t.Fatalf("withNumericSuffix=%q", got)
	}
}

func TestSanitizeTextPath(t *testing.T) {
	t.Parallel()

	if got := sanitizeTextPath("a\"b\nc.tex"); got != "a_b_c.tex" {
		t.Fatalf("sanitizeTextPath=%q", got)
	}
	if got := sanitizeTextPath("plain/0.tex"); got != "plain/0.tex" {
		t.Fatalf("sanitizeTextPath changed clean path: %q", got)
	}
}
