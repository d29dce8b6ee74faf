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

// Package idengine computes the three canonical disc identifiers
// (MusicBrainz, FreeDB/CDDB, AccurateRip) as pure functions of a toc.Toc.
package idengine

import (
	"crypto/sha1" //nolint:gosec // MusicBrainz disc ID is defined over SHA-1, not a security use
	"fmt"
	"strings"

	"github.com/cdtoc/discid/toc"
)

const pregap = 150

// Identifiers holds the three computed disc identifiers.
type Identifiers struct {
	MusicBrainz string
	FreeDB      string
	AccurateRip string
}

// Calculate computes all three identifiers for t.
func Calculate(t *toc.Toc) Identifiers {
	return Identifiers{
		MusicBrainz: MusicBrainzID(t),
		FreeDB:      FreeDBID(t),
		AccurateRip: AccurateRipID(t),
	}
}

// digitSum returns the sum of the decimal digits of n.
func digitSum(n int) int {
	sum := 0
	if n < 0 {
		n = -n
	}
	for n > 0 {
		sum += n % 10
		n /= 10
	}
	return sum
}

// FreeDBID computes the 8 hex character FreeDB/CDDB disc ID.
//
// n = sum of digit_sum(floor((offset_i + 150) / 75)) over all tracks
// t = floor((leadout+150)/75) - floor((first_offset+150)/75)
// id = ((n mod 255) << 24) | (t << 8) | track_count
//
// t is computed as the difference of independently floored seconds values,
// not the floor of the difference, matching CDDB's own definition.
func FreeDBID(t *toc.Toc) string {
	if len(t.Tracks) == 0 {
		return "00000000"
	}
	n := 0
	for _, tr := range t.Tracks {
		n += digitSum((tr.Offset + pregap) / 75)
	}
	leadoutSec := (t.Leadout + pregap) / 75
	firstSec := (t.Tracks[0].Offset + pregap) / 75
	trackSecs := leadoutSec - firstSec
	id := ((n % 255) << 24) | (trackSecs << 8) | t.TrackCount
	return fmt.Sprintf("%08x", uint32(id)) //nolint:gosec // intentional truncation to 32 bits
}

// AccurateRipID computes the AccurateRip disc ID in the canonical
// "NNN-XXXXXXXX-XXXXXXXX-XXXXXXXX" form, where NNN is the audio track
// count and the three X groups are X1, X2, and the FreeDB ID respectively.
//
// Uses the disc leadout (not the audio-session leadout), unlike MusicBrainz.
func AccurateRipID(t *toc.Toc) string {
	audio := t.AudioTracks()
	var x1, x2 uint32
	audioIndex := 0
	for _, tr := range audio {
		audioIndex++
		lba := uint32(tr.Offset) //nolint:gosec // disc offsets fit comfortably in uint32
		x1 += lba
		mult := lba
		if tr.Offset < 1 {
			mult = 1
		}
		x2 += mult * uint32(audioIndex) //nolint:gosec // track index is small
	}
	leadout := uint32(t.Leadout) //nolint:gosec // disc leadout fits in uint32
	x1 += leadout
	x2 += leadout * uint32(len(audio)+1) //nolint:gosec // track count is small

	return fmt.Sprintf("%03d-%08x-%08x-%s", len(audio), x1, x2, FreeDBID(t))
}

// musicBrainzAlphabet is the 64-character restricted base64 alphabet used
// by libdiscid: standard base64's '+' and '/' become '.' and '_', and
// padding '=' becomes '-'.
const musicBrainzAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789._"

// MusicBrainzID computes the 28-character MusicBrainz disc ID: a
// restricted-base64 encoding of the SHA-1 digest of a fixed-width ASCII
// record built from the track offsets.
func MusicBrainzID(t *toc.Toc) string {
	tracks, leadout := musicBrainzTrackSet(t)
	if len(tracks) == 0 {
		return strings.Repeat("-", 28)
	}

	first, last := tracks[0].Number, tracks[len(tracks)-1].Number
	var sb strings.Builder
	fmt.Fprintf(&sb, "%02X%02X%08X", first, last, leadout+pregap)

	offsets := make([]int, 99)
	for _, tr := range tracks {
		if tr.Number >= 1 && tr.Number <= 99 {
			offsets[tr.Number-1] = tr.Offset + pregap
		}
	}
	for _, off := range offsets {
		fmt.Fprintf(&sb, "%08X", off)
	}

	sum := sha1.Sum([]byte(sb.String())) //nolint:gosec // digest, not used for security
	return restrictedBase64(sum[:])
}

// musicBrainzTrackSet selects the audio-track set and leadout to use for
// the MusicBrainz formula, per spec: Enhanced discs exclude the trailing
// data track(s) and use the audio-session leadout; Mixed-mode and Standard
// discs include every track and use the disc leadout.
func musicBrainzTrackSet(t *toc.Toc) ([]toc.Track, int) {
	switch toc.Classify(t.Tracks) {
	case toc.DiscTypeEnhanced:
		tracks := make([]toc.Track, 0, t.AudioCount)
		for _, tr := range t.Tracks {
			if tr.IsAudio() {
				tracks = append(tracks, tr)
			}
		}
		return tracks, t.AudioLeadout
	default:
		return t.Tracks, t.Leadout
	}
}

// restrictedBase64 encodes a 20-byte SHA-1 digest into 28 characters using
// musicBrainzAlphabet, with '-' substituted wherever standard base64 would
// pad with '='.
func restrictedBase64(digest []byte) string {
	var sb strings.Builder
	for i := 0; i < len(digest); i += 3 {
		chunk := digest[i:min(i+3, len(digest))]
		b0, b1, b2 := chunk[0], byte(0), byte(0)
		n := len(chunk)
		if n > 1 {
			b1 = chunk[1]
		}
		if n > 2 {
			b2 = chunk[2]
		}
		idx0 := b0 >> 2
		idx1 := ((b0 & 0x03) << 4) | (b1 >> 4)
		idx2 := ((b1 & 0x0F) << 2) | (b2 >> 6)
		idx3 := b2 & 0x3F

		sb.WriteByte(musicBrainzAlphabet[idx0])
		sb.WriteByte(musicBrainzAlphabet[idx1])
		if n > 1 {
			sb.WriteByte(musicBrainzAlphabet[idx2])
		} else {
			sb.WriteByte('-')
		}
		if n > 2 {
			sb.WriteByte(musicBrainzAlphabet[idx3])
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}
