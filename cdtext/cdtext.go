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

// Package cdtext reassembles CD-Text packs (18 bytes each) read from a
// disc's lead-in into per-track and album-level text fields. Only block 0
// (the primary language block) is processed; non-Latin character sets are
// skipped, not an error (see Parse's Diagnostics return).
package cdtext

import (
	"golang.org/x/text/encoding/charmap"
)

const packSize = 18

// Pack types this parser understands. Others (discs/toc pointers, UPC/EAN,
// closed-caption, non-Latin variants) are ignored.
const (
	packTitle     = 0x80
	packPerformer = 0x81
	packSongwrite = 0x82
	packComposer  = 0x83
	packArranger  = 0x84
	packMessage   = 0x85
	packGenre     = 0x87
	packSizeInfo  = 0x8F
)

const (
	charsetISO8859_1 = 0x00
	charsetASCII     = 0x01
)

// Album holds album-scope CD-Text fields. A nil pointer field means the
// field was absent, distinct from an empty string.
type Album struct {
	Title      *string
	Performer  *string
	Songwriter *string
	Message    *string
	Genre      *string
}

// Track holds track-scope CD-Text fields, for tracks numbered >= 1.
type Track struct {
	Title      *string
	Performer  *string
	Songwriter *string
	Message    *string
	Composer   *string
	Arranger   *string
}

// CdText is the fully reassembled, normalized CD-Text for a disc.
type CdText struct {
	Album  Album
	Tracks map[int]*Track // keyed by track number, 1..99
}

// Diagnostic is a non-fatal note recorded during parsing (e.g. a skipped
// non-Latin block). It is never an error.
type Diagnostic struct {
	Message string
}

// Parse reassembles a CD-Text blob (a contiguous run of 18-byte packs, as
// delivered by READ TOC/PMA/ATIP format 5) into a CdText. Packs failing
// their CRC, belonging to a block other than 0, or of an unrecognized
// type are silently discarded, per spec.
func Parse(blob []byte) (*CdText, []Diagnostic) {
	packs := splitPacks(blob)

	var sizeInfo *pack
	for i := range packs {
		if packs[i].kind == packSizeInfo && packs[i].seq == 0 {
			sizeInfo = &packs[i]
			break
		}
	}
	if sizeInfo == nil {
		// No size-info pack: assume ISO-8859-1, matching libdiscid's
		// lenient behavior when discs omit it.
		return reassemble(packs, charsetISO8859_1, 1, 99, nil)
	}

	charset := sizeInfo.text[0]
	firstTrack := int(sizeInfo.text[1])
	lastTrack := int(sizeInfo.text[2])

	if charset != charsetISO8859_1 && charset != charsetASCII {
		return &CdText{Tracks: map[int]*Track{}}, []Diagnostic{
			{Message: "cdtext: unsupported character set, block skipped"},
		}
	}

	return reassemble(packs, charset, firstTrack, lastTrack, nil)
}

type pack struct {
	kind  byte
	track byte
	seq   byte
	block byte
	text  [12]byte
}

// splitPacks walks blob in 18-byte strides, validates each pack's CRC, and
// returns only block-0 packs that pass.
func splitPacks(blob []byte) []pack {
	var out []pack
	for off := 0; off+packSize <= len(blob); off += packSize {
		raw := blob[off : off+packSize]
		stored := uint16(raw[16])<<8 | uint16(raw[17])
		computed := crc16CCITT(raw[:16])
		// The stored CRC is the bitwise inversion of the computed value.
		if stored != ^computed {
			continue
		}
		block := (raw[3] >> 4) & 0x07
		if block != 0 {
			continue
		}
		p := pack{kind: raw[0], track: raw[1], seq: raw[2], block: block}
		copy(p.text[:], raw[4:16])
		out = append(out, p)
	}
	return out
}

// crc16CCITT computes CRC-16-CCITT (poly 0x1021, init 0x0000) over data.
func crc16CCITT(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// cursor tracks, per pack type, which track's accumulator text currently
// flows into.
type cursor struct {
	track int
	init  bool
}

func reassemble(packs []pack, charset byte, firstTrack, lastTrack int, _ []Diagnostic) (*CdText, []Diagnostic) {
	types := []byte{packTitle, packPerformer, packSongwrite, packComposer, packArranger, packMessage, packGenre}

	acc := map[byte]map[int]*[]byte{}
	for _, k := range types {
		acc[k] = map[int]*[]byte{}
	}

	for _, k := range types {
		cur := cursor{}
		for _, p := range packsOfType(packs, k) {
			if p.seq == 0 || !cur.init {
				cur.track = int(p.track)
				cur.init = true
			}
			for _, b := range p.text {
				if b == 0x00 {
					cur.track++
					continue
				}
				buf := ensureBuf(acc[k], cur.track)
				*buf = append(*buf, b)
			}
		}
	}

	album := Album{
		Title:      decodeField(acc[packTitle], 0, charset),
		Performer:  decodeField(acc[packPerformer], 0, charset),
		Songwriter: decodeField(acc[packSongwrite], 0, charset),
		Message:    decodeField(acc[packMessage], 0, charset),
		Genre:      decodeField(acc[packGenre], 0, charset),
	}

	tracks := map[int]*Track{}
	for tn := firstTrack; tn <= lastTrack && tn >= 1; tn++ {
		tr := &Track{
			Title:      decodeField(acc[packTitle], tn, charset),
			Performer:  decodeField(acc[packPerformer], tn, charset),
			Songwriter: decodeField(acc[packSongwrite], tn, charset),
			Message:    decodeField(acc[packMessage], tn, charset),
			Composer:   decodeField(acc[packComposer], tn, charset),
			Arranger:   decodeField(acc[packArranger], tn, charset),
		}
		if hasAnyField(tr) {
			tracks[tn] = tr
		}
	}

	return &CdText{Album: album, Tracks: tracks}, nil
}

func hasAnyField(t *Track) bool {
	return t.Title != nil || t.Performer != nil || t.Songwriter != nil ||
		t.Message != nil || t.Composer != nil || t.Arranger != nil
}

func packsOfType(packs []pack, kind byte) []pack {
	var out []pack
	for _, p := range packs {
		if p.kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func ensureBuf(m map[int]*[]byte, track int) *[]byte {
	if b, ok := m[track]; ok {
		return b
	}
	b := new([]byte)
	m[track] = b
	return b
}

// decodeField charset-decodes, normalizes, and returns the accumulated
// bytes for (track), or nil if absent or empty after normalization.
func decodeField(m map[int]*[]byte, track int, charset byte) *string {
	buf, ok := m[track]
	if !ok || buf == nil || len(*buf) == 0 {
		return nil
	}
	decoded := decodeCharset(*buf, charset)
	normalized := normalize(decoded)
	if normalized == "" {
		return nil
	}
	return &normalized
}

func decodeCharset(b []byte, charset byte) string {
	if charset == charsetASCII {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// normalize applies spec §6.2.2: map control bytes (other than newline) to
// space, drop carriage returns, trim leading/trailing whitespace.
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r == '\r':
			continue
		case r == '\n':
			out = append(out, r)
		case r < 0x20:
			out = append(out, ' ')
		default:
			out = append(out, r)
		}
	}
	trimmed := trimSpace(string(out))
	return trimmed
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\v' || b == '\f'
}
