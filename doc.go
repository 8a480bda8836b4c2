// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pbbin

/*
Package pbbin reads, extracts, rebuilds and patches the two-level BIN
asset containers of the PS2 "Phantom Blood" game.

An archive is a list of folders, each a list of entries. Every entry payload
starts on a 0x800 boundary; compressed payloads carry a 4-byte decompressed
size prefix followed by a zlib stream. Model archives use a degenerate layout
of four raw sizes per folder with packed, unaligned payloads.

Format rules (summary):
  - standard root is {folderCount, headerLength, 0x20031205, 0};
  - folder descriptors start at 0x10, entry records are 16 bytes;
  - record flag 0x2000 marks a compressed payload;
  - two retail records are stored in the wrong folder table, see SwappedSlot;
  - model layout is used only under ReaderOptions.Model and a foreign root tag.

# Reading

	r, err := pbbin.Open("STAGE.BIN")
	if err != nil {
	    return err
	}
	for _, e := range r.Entries() {
	    data, _ := r.ReadEntry(e.Folder, e.File)
	    // use data
	}

For metadata-only scans:

	entries, err := pbbin.ListEntries("STAGE.BIN", pbbin.ListOptions{
	    Select:    pbbin.FolderRules(8),
	    SkipEmpty: true,
	})

# Extracting

Full unpack writes payloads plus filelist.txt and filelist.id side files:

	res, err := r.Extract(ctx, "out/STAGE", pbbin.ExtractOptions{
	    OnEntryDone: func(p pbbin.ExtractProgress) {
	        // progress callback per entry
	    },
	})
	_ = res.Failed

# Rebuilding

Rebuild from an unpacked directory, or from explicit inputs. Compression
exceptions are github.com/woozymasta/pathrules rules matched against
"folder/file" positions and input names:

	res, err := pbbin.RebuildDir(ctx, "out/STAGE", "STAGE.BIN", pbbin.RebuildDirOptions{
	    RebuildOptions: pbbin.RebuildOptions{
	        Compression: pbbin.CompressionOptions{
	            Enabled: true,
	            ForceRaw: []pathrules.Rule{
	                {Action: pathrules.ActionInclude, Pattern: "8/**"},
	            },
	        },
	    },
	})
	_ = res.MissingEntries

# Patching

Replace one payload in memory or in place on disk:

	out, patch, err := pbbin.ReplaceEntry(buf, 3, 14, payload, true, pbbin.ReaderOptions{})
	_ = patch.Delta

	editor, err := pbbin.OpenEditor("STAGE.BIN", pbbin.EditOptions{BackupKeep: 1})
	if err != nil {
	    return err
	}
	if err := editor.Replace(pbbin.Input{
	    Folder: 3,
	    File:   14,
	    Path:   "3/14.tex",
	    Open:   func() (io.ReadCloser, error) { return os.Open("3/14.tex") },
	}); err != nil {
	    return err
	}
	if _, err := editor.Commit(ctx); err != nil {
	    return err
	}
*/
package pbbin
