// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

package pbbin

import (
	"bytes"
	"path"
	"strconv"
	"strings"
)

var (
	magicCamera      = []byte{0x00, 0x10, 0x00, 0x10}
	magicLXE         = []byte{0x21, 0x01, 0xF0, 0xFF}
	magicLXEHeadless = []byte{0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	magicPortrait    = []byte{0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
)

// DetectExtension guesses file extension from payload magic bytes.
// qb selects the legacy "pgm"/"dat" names for textures and layout files.
func DetectExtension(data []byte, qb bool) string {
	magic := textMagic(data)
	switch {
	case magic == "P2TX", magic == "TEX2":
		if qb {
			return "pgm"
		}
		if magic == "TEX2" {
			return "tx2"
		}
		return "tex"
	case bytes.HasPrefix(data, magicCamera):
		return "cam"
	case bytes.HasPrefix(data, magicLXE), bytes.HasPrefix(data, magicLXEHeadless):
		if qb {
			return "dat"
		}
		return "lxe"
	case bytes.HasPrefix(data, magicPortrait):
		return "lxe"
	case len(magic) == 3:
		return strings.ToLower(magic)
	case len(magic) == 4 && magic[3] == '0':
		return strings.ToLower(magic[:3])
	default:
		return "bin"
	}
}

// textMagic returns the 4-byte magic with trailing NULs trimmed when it starts with 3 ASCII alphanumerics.
func textMagic(data []byte) string {
	if len(data) < 3 {
		return ""
	}

	for _, b := range data[:3] {
		if !isASCIIAlnum(b) {
			return ""
		}
	}

	magic := data[:min(len(data), 4)]
	if len(magic) == 4 && magic[3] >= 0x80 {
		return ""
	}

	return strings.TrimRight(string(magic), "\x00")
}

// isASCIIAlnum reports whether byte is ASCII letter or digit.
func isASCIIAlnum(b byte) bool {
	return isASCIIAlpha(b) || (b >= '0' && b <= '9')
}

// modelSlotName returns base name of model-layout slot.
func modelSlotName(file int) string {
	switch file {
	case 0:
		return "model"
	case 1:
		return "texture"
	case 2:
		return "unknown"
	default:
		return "unknown" + strconv.Itoa(file-1)
	}
}

// entryOutputPath returns relative slash-separated output path for decoded entry payload.
// Names from filelist win; the entry is addressed by its reported position.
func entryOutputPath(layout Layout, entry EntryInfo, data []byte, opts ExtractOptions) string {
	folder := strconv.Itoa(entry.LogicalFolder)

	if name, ok := opts.Names.Lookup(entry.LogicalFolder, entry.File); ok && name != "" {
		if opts.Flat {
			return path.Base(name)
		}

		return name
	}

	ext := DetectExtension(data, opts.QBExtensions)
	base := strconv.Itoa(entry.File)
	if layout == LayoutModel {
		base = modelSlotName(entry.File)
	}

	if opts.Flat {
		return folder + "_" + base + "." + ext
	}

	return folder + "/" + base + "." + ext
}
