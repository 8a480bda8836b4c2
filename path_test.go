// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"errors"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "slash", in: "/", want: ""},
		{name: "clean", in: "12/4.tex", want: "12/4.tex"},
		{name: "windows", in: `.\12\4.tex\`, want: "12/4.tex"},
		{name: "dot segments", in: "./a/../b//c.tex", want: "b/c.tex"},
		{name: "spaces", in: "  3/1  ", want: "3/1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := NormalizePath(tc.in)
			if got != tc.want {
				t.Fatalf("NormalizePath(%q)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParsePositionPath(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		for in, want := range map[string][2]int{
			"0/0":     {0, 0},
			"12/345":  {12, 345},
			`27\3`:    {27, 3},
			" 8/10 ":  {8, 10},
			"./4/002": {4, 2},
		} {
			folder, file, err := ParsePositionPath(in)
			if err != nil {
				t.Fatalf("ParsePositionPath(%q): %v", in, err)
			}
			if folder != want[0] || file != want[1] {
				t.Fatalf("ParsePositionPath(%q)=%d/%d, want %d/%d", in, folder, file, want[0], want[1])
			}
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		for _, in := range []string{"", "12", "a/1", "1/b", "-1/0", "1/-2", "1/2/3", "1/2.tex"} {
			if _, _, err := ParsePositionPath(in); !errors.Is(err, ErrInvalidPosition) {
				t.Fatalf("ParsePositionPath(%q) err=%v, want ErrInvalidPosition", in, err)
			}
		}
	})
}

func TestPositionPathRoundTrip(t *testing.T) {
	t.Parallel()

	if got := PositionPath(12, 0); got != "12/0" {
		t.Fatalf("PositionPath=%q, want 12/0", got)
	}

	folder, file, err := ParsePositionPath(PositionPath(27, 14))
	if err != nil {
		t.Fatalf("ParsePositionPath: %v", err)
	}
	if folder != 27 || file != 14 {
		t.Fatalf("round trip=%d/%d, want 27/14", folder, file)
	}
}
