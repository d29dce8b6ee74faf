// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of discid.
//
// discid is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// discid is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with discid.  If not, see <https://www.gnu.org/licenses/>.

// Package discimage reads a disc's table of contents from a CHD
// (Compressed Hunks of Data) disc image instead of a physical drive. CHD is
// MAME's compressed disc-image container; it carries the same track
// pregap/length metadata a drive's READ TOC command would report. Open,
// ToToc and ExtractCDText read only the header and the metadata chain;
// sector data is decompressed only when read through RawSectorReader.
package discimage

import (
	"fmt"
	"os"

	"github.com/cdtoc/discid/cdtext"
	"github.com/cdtoc/discid/toc"
)

// Image is an opened CHD disc image.
type Image struct {
	file     *os.File
	header   *Header
	hunkMap  *HunkMap
	tracks   []Track
	metadata []metadataEntry
}

// Open opens a CHD file and parses its header and track metadata.
func Open(path string) (*Image, error) {
	file, err := os.Open(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("open CHD file: %w", err)
	}

	img := &Image{file: file}
	if err := img.init(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return img, nil
}

func (img *Image) init() error {
	header, err := parseHeader(img.file)
	if err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	img.header = header

	hunkMap, err := NewHunkMap(img.file, header)
	if err != nil {
		return fmt.Errorf("create hunk map: %w", err)
	}
	img.hunkMap = hunkMap

	if header.MetaOffset == 0 {
		return nil
	}
	entries, parseErr := parseMetadata(img.file, header.MetaOffset)
	if parseErr != nil {
		// A CHD with unreadable metadata is still a valid disc image; it
		// just carries no recoverable TOC, which ToToc reports on its own.
		return nil //nolint:nilerr
	}
	img.metadata = entries

	tracks, trackErr := parseTracks(entries)
	if trackErr != nil {
		return nil //nolint:nilerr
	}
	img.tracks = tracks
	return nil
}

// metaTagCDText is the metadata tag under which a CD-Text blob, when one
// was captured at rip time, is stored ("CDTX"). Not every CHD carries one;
// its absence is the common case, not an error.
const metaTagCDText = 0x43445458

// ExtractCDText returns the disc's CD-Text, if the image's metadata chain
// carries a CDTX entry. It returns (nil, nil, nil) when no such entry is
// present, matching spec's "CD-Text absence is not an error" policy.
func (img *Image) ExtractCDText() (*cdtext.CdText, []cdtext.Diagnostic, error) {
	for _, e := range img.metadata {
		if e.Tag != metaTagCDText {
			continue
		}
		parsed, diags := cdtext.Parse(e.Data)
		return parsed, diags, nil
	}
	return nil, nil, nil
}

// Close closes the underlying file.
func (img *Image) Close() error {
	if img.file == nil {
		return nil
	}
	if err := img.file.Close(); err != nil {
		return fmt.Errorf("close CHD file: %w", err)
	}
	return nil
}

// Header returns the parsed CHD header.
func (img *Image) Header() *Header {
	return img.header
}

// Tracks returns the raw track metadata as recorded in the CHD.
func (img *Image) Tracks() []Track {
	return img.tracks
}

// ErrNoTrackMetadata is returned by ToToc when the image carries no CHT2,
// CHTR, or CHCD metadata entries to build a Toc from.
var ErrNoTrackMetadata = ErrNoTracks

const pregapFrames = 150

// ToToc converts the image's track metadata into a toc.Toc with the same
// shape tocreader would build from a live drive: track offsets are
// LBAs relative to the start of the audio program (the first track's
// pregap is absorbed into LBA 0, matching the disc convention), and the
// control nibble's data bit is set for any non-audio track.
func (img *Image) ToToc() (*toc.Toc, error) {
	if len(img.tracks) == 0 {
		return nil, ErrNoTrackMetadata
	}

	tracks := make([]toc.Track, 0, len(img.tracks))
	offset := 0
	for i, tr := range img.tracks {
		if i > 0 {
			offset += tr.Pregap
		}
		control := byte(0)
		if tr.IsDataTrack() {
			control = toc.ControlDataTrack
		}
		tracks = append(tracks, toc.Track{
			Number:  tr.Number,
			Session: 1,
			Offset:  offset,
			Length:  tr.Frames,
			Control: control,
		})
		offset += tr.Frames + tr.Postgap
	}

	leadout := tracks[len(tracks)-1].Offset + tracks[len(tracks)-1].Length
	built := toc.Build(tracks, leadout, 1)
	if err := built.Validate(); err != nil {
		return nil, fmt.Errorf("discimage: %w", err)
	}
	return built, nil
}

// RawSectorReader exposes the image's raw 2352-byte-per-sector data,
// starting at the first track's first frame, for callers (such as a
// CD-Text or MCN probe over an image) that need to inspect sector headers
// directly rather than go through a logical-sector view.
func (img *Image) RawSectorReader() *sectorReader {
	return &sectorReader{image: img}
}

type sectorReader struct {
	image *Image
}

// ReadAt reads raw sector bytes at the given byte offset (sectorIndex *
// 2352 + byteOffset), decompressing hunks on demand.
func (sr *sectorReader) ReadAt(dest []byte, off int64) (int, error) {
	if len(dest) == 0 {
		return 0, nil
	}
	hunkBytes := int64(sr.image.hunkMap.HunkBytes())
	unitBytes := int64(sr.image.header.UnitBytes)
	if unitBytes == 0 {
		unitBytes = rawSectorSize
	}

	totalRead := 0
	remaining := len(dest)
	cur := off

	for remaining > 0 {
		sector := cur / rawSectorSize
		offsetInSector := cur % rawSectorSize
		sectorsPerHunk := hunkBytes / unitBytes
		hunkIdx := uint32(sector / sectorsPerHunk) //nolint:gosec // bounded by file size
		sectorInHunk := sector % sectorsPerHunk

		hunkData, err := sr.image.hunkMap.ReadHunk(hunkIdx)
		if err != nil {
			if totalRead > 0 {
				return totalRead, nil
			}
			return 0, fmt.Errorf("read hunk %d: %w", hunkIdx, err)
		}

		start := sectorInHunk*unitBytes + offsetInSector
		if start >= int64(len(hunkData)) {
			break
		}
		avail := int64(len(hunkData)) - start
		want := rawSectorSize - offsetInSector
		if want > avail {
			want = avail
		}
		toCopy := min(int(want), remaining)
		copy(dest[totalRead:], hunkData[start:start+int64(toCopy)])
		totalRead += toCopy
		remaining -= toCopy
		cur += int64(toCopy)
	}

	if totalRead == 0 {
		return 0, fmt.Errorf("discimage: read past end of image")
	}
	return totalRead, nil
}

const rawSectorSize = 2352
