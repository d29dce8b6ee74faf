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

// Package tocdialect autodetects and converts between the four textual TOC
// formats (Raw, MusicBrainz, AccurateRip, FreeDB) and the toc.Toc model.
package tocdialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cdtoc/discid/toc"
)

// Dialect identifies one of the four textual TOC formats.
type Dialect int

const (
	Indeterminate Dialect = iota
	Invalid
	Raw
	MusicBrainz
	AccurateRip
	FreeDB
)

func (d Dialect) String() string {
	switch d {
	case Raw:
		return "Raw"
	case MusicBrainz:
		return "MusicBrainz"
	case AccurateRip:
		return "AccurateRip"
	case FreeDB:
		return "FreeDB"
	case Invalid:
		return "Invalid"
	default:
		return "Indeterminate"
	}
}

const pregap = 150

// maxFrameValue rejects tokens implausibly larger than any real disc could
// produce (10,000 minutes, about 166 hours, of audio), guarding against garbage
// input being mistaken for a huge but "valid" offset.
const maxFrameValue = 100 * 60 * 75 * 100

// DetectResult reports the outcome of Detect.
type DetectResult struct {
	Dialect Dialect
	Reason  string // populated when Dialect is Invalid or Indeterminate
}

// Detect parses text as a whitespace-separated integer list and reports
// which of the four dialects it matches, or Invalid/Indeterminate with a
// reason.
func Detect(text string) DetectResult {
	v, err := tokenize(text)
	if err != nil {
		return DetectResult{Dialect: Invalid, Reason: err.Error()}
	}
	n := len(v)
	if n < 2 {
		return DetectResult{Dialect: Invalid, Reason: "too few tokens"}
	}

	fd := v[0]+2 == n
	ar := v[0]+4 == n
	rawOrMB := n >= 4 && 1 <= v[0] && v[0] <= v[1] && v[1] <= 99 && (v[1]-v[0]+1)+3 == n

	if ar {
		audioCount, total := v[1], v[0]
		firstAudio := v[2]
		if !(audioCount <= total && 1 <= firstAudio && firstAudio <= total && 1 <= total && total <= 99) {
			ar = false
		}
	}

	candidates := make([]Dialect, 0, 3)
	if fd {
		candidates = append(candidates, FreeDB)
	}
	if ar {
		candidates = append(candidates, AccurateRip)
	}
	if rawOrMB {
		candidates = append(candidates, Raw, MusicBrainz)
	}

	switch {
	case len(candidates) == 0:
		return DetectResult{Dialect: Invalid, Reason: "token count matches no known dialect"}
	case fd && rawOrMB:
		// Disambiguate FreeDB from Raw/MB by the plausibility of the last
		// value as a seconds count derived from the second-to-last value.
		last := v[n-1]
		secondLast := v[n-2]
		if last < 6000 && abs(last-secondLast/75) <= 1 {
			return DetectResult{Dialect: FreeDB}
		}
		return disambiguateRawMB(v)
	case fd:
		return DetectResult{Dialect: FreeDB}
	case ar:
		return DetectResult{Dialect: AccurateRip}
	case rawOrMB:
		return disambiguateRawMB(v)
	default:
		return DetectResult{Dialect: Indeterminate, Reason: "ambiguous among multiple dialects"}
	}
}

// disambiguateRawMB decides between Raw and MusicBrainz layouts, both of
// which are "first last <n values>", by comparing the value at position 2
// (the first payload slot) against the last value: whichever is larger
// must be the leadout, since a leadout is always the largest offset.
func disambiguateRawMB(v []int) DetectResult {
	if len(v) < 4 {
		return DetectResult{Dialect: Indeterminate, Reason: "too few tokens to disambiguate Raw/MusicBrainz"}
	}
	posTwo := v[2]
	last := v[len(v)-1]
	switch {
	case last > posTwo:
		return DetectResult{Dialect: Raw}
	case posTwo > last:
		return DetectResult{Dialect: MusicBrainz}
	default:
		return DetectResult{Dialect: Indeterminate, Reason: "Raw and MusicBrainz equally plausible"}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func tokenize(text string) ([]int, error) {
	fields := strings.Fields(text)
	v := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("non-integer token %q", f)
		}
		if n < 0 || n > maxFrameValue {
			return nil, fmt.Errorf("token %d out of range", n)
		}
		v = append(v, n)
	}
	return v, nil
}

// Parse converts text into a Toc using the given dialect. If dialect is
// Indeterminate, the text is auto-detected first; a non-unique detection
// is reported as an error.
func Parse(text string, dialect Dialect) (*toc.Toc, error) {
	if dialect == Indeterminate {
		res := Detect(text)
		if res.Dialect == Invalid {
			return nil, fmt.Errorf("tocdialect: invalid input: %s", res.Reason)
		}
		if res.Dialect == Indeterminate {
			return nil, fmt.Errorf("tocdialect: ambiguous dialect: %s", res.Reason)
		}
		dialect = res.Dialect
	}

	v, err := tokenize(text)
	if err != nil {
		return nil, fmt.Errorf("tocdialect: %w", err)
	}

	switch dialect {
	case Raw:
		return parseRaw(v)
	case MusicBrainz:
		return parseMusicBrainz(v)
	case AccurateRip:
		return parseAccurateRip(v)
	case FreeDB:
		return parseFreeDB(v)
	default:
		return nil, fmt.Errorf("tocdialect: unsupported dialect %v", dialect)
	}
}

func audioTracks(first, last int, offsets []int, leadout int) []toc.Track {
	tracks := make([]toc.Track, 0, last-first+1)
	for i, off := range offsets {
		tracks = append(tracks, toc.Track{
			Number:  first + i,
			Session: 1,
			Offset:  off,
			Control: 0,
		})
	}
	fillLengths(tracks, leadout)
	return tracks
}

func fillLengths(tracks []toc.Track, leadout int) {
	for i := range tracks {
		end := leadout
		if i+1 < len(tracks) {
			end = tracks[i+1].Offset
		}
		tracks[i].Length = end - tracks[i].Offset
	}
}

// parseRaw parses "first last off1 ... offN leadout", frames with +150 pregap.
func parseRaw(v []int) (*toc.Toc, error) {
	if len(v) < 4 {
		return nil, fmt.Errorf("tocdialect: raw input too short")
	}
	first, last := v[0], v[1]
	n := last - first + 1
	if len(v) != n+3 {
		return nil, fmt.Errorf("tocdialect: raw track count mismatch")
	}
	offsets := stripPregap(v[2 : 2+n])
	leadout := v[2+n] - pregap
	t := toc.Build(audioTracks(first, last, offsets, leadout), leadout, 1)
	return t, nil
}

// parseMusicBrainz parses "first last leadout off1 ... offN", frames with +150 pregap.
func parseMusicBrainz(v []int) (*toc.Toc, error) {
	if len(v) < 4 {
		return nil, fmt.Errorf("tocdialect: musicbrainz input too short")
	}
	first, last := v[0], v[1]
	n := last - first + 1
	if len(v) != n+3 {
		return nil, fmt.Errorf("tocdialect: musicbrainz track count mismatch")
	}
	leadout := v[2] - pregap
	offsets := stripPregap(v[3 : 3+n])
	t := toc.Build(audioTracks(first, last, offsets, leadout), leadout, 1)
	return t, nil
}

// parseFreeDB parses "count off1 ... offN total_seconds", frames with +150
// pregap for the offsets but seconds for the trailing value.
func parseFreeDB(v []int) (*toc.Toc, error) {
	if len(v) < 3 {
		return nil, fmt.Errorf("tocdialect: freedb input too short")
	}
	count := v[0]
	if len(v) != count+2 {
		return nil, fmt.Errorf("tocdialect: freedb track count mismatch")
	}
	offsets := stripPregap(v[1 : 1+count])
	totalSeconds := v[1+count]
	leadout := totalSeconds*75 - pregap
	t := toc.Build(audioTracks(1, count, offsets, leadout), leadout, 1)
	return t, nil
}

// parseAccurateRip parses "count audio first off1 ... offN leadout", raw
// LBA with no pregap. Tracks before first_audio or beyond audio_count are
// data tracks.
func parseAccurateRip(v []int) (*toc.Toc, error) {
	if len(v) < 4 {
		return nil, fmt.Errorf("tocdialect: accuraterip input too short")
	}
	count, audioCount, firstAudio := v[0], v[1], v[2]
	if len(v) != count+4 {
		return nil, fmt.Errorf("tocdialect: accuraterip track count mismatch")
	}
	offsets := v[3 : 3+count]
	leadout := v[3+count]

	tracks := make([]toc.Track, 0, count)
	for i, off := range offsets {
		num := i + 1
		control := byte(0)
		if num < firstAudio || num >= firstAudio+audioCount {
			control = toc.ControlDataTrack
		}
		tracks = append(tracks, toc.Track{
			Number:  num,
			Session: 1,
			Offset:  off,
			Control: control,
		})
	}
	fillLengths(tracks, leadout)
	t := toc.Build(tracks, leadout, 1)
	return t, nil
}

func stripPregap(offsets []int) []int {
	out := make([]int, len(offsets))
	for i, o := range offsets {
		out[i] = o - pregap
	}
	return out
}

// Render produces the canonical text for t in the given dialect.
func Render(t *toc.Toc, dialect Dialect) (string, error) {
	switch dialect {
	case Raw:
		return renderRaw(t), nil
	case MusicBrainz:
		return renderMusicBrainz(t), nil
	case AccurateRip:
		return renderAccurateRip(t), nil
	case FreeDB:
		return renderFreeDB(t), nil
	default:
		return "", fmt.Errorf("tocdialect: unsupported dialect %v", dialect)
	}
}

func renderRaw(t *toc.Toc) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %d", t.FirstTrack, t.LastTrack)
	for _, tr := range t.Tracks {
		fmt.Fprintf(&sb, " %d", tr.Offset+pregap)
	}
	fmt.Fprintf(&sb, " %d", t.Leadout+pregap)
	return sb.String()
}

func renderMusicBrainz(t *toc.Toc) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %d %d", t.FirstTrack, t.LastTrack, t.Leadout+pregap)
	for _, tr := range t.Tracks {
		fmt.Fprintf(&sb, " %d", tr.Offset+pregap)
	}
	return sb.String()
}

func renderFreeDB(t *toc.Toc) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", len(t.Tracks))
	for _, tr := range t.Tracks {
		fmt.Fprintf(&sb, " %d", tr.Offset+pregap)
	}
	totalSeconds := (t.Leadout + pregap) / 75
	fmt.Fprintf(&sb, " %d", totalSeconds)
	return sb.String()
}

func renderAccurateRip(t *toc.Toc) string {
	audio := t.AudioTracks()
	firstAudio := 1
	if len(audio) > 0 {
		firstAudio = audio[0].Number
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %d %d", len(t.Tracks), len(audio), firstAudio)
	for _, tr := range t.Tracks {
		fmt.Fprintf(&sb, " %d", tr.Offset)
	}
	fmt.Fprintf(&sb, " %d", t.Leadout)
	return sb.String()
}
