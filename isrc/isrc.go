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

// Package isrc recovers each audio track's ISRC (and the disc's MCN) by
// sampling Q-subchannel frames at a handful of points per track and taking
// the strong majority of what it reads. A drive only embeds an ISRC frame
// once every several hundred frames, and the bytes that do carry one are
// sometimes garbled, so a single sample is not trustworthy; this package
// exists to turn noisy, intermittent samples into a confident answer.
package isrc

import (
	"regexp"

	"github.com/cdtoc/discid/device"
	"github.com/cdtoc/discid/qsub"
	"github.com/cdtoc/discid/toc"
)

const (
	// ProbeCount is how many tracks, at roughly the 1/3, 1/2, and 2/3
	// points of the eligible audio tracks, are fully scanned before
	// deciding whether the rest of the disc is worth scanning at all.
	ProbeCount = 3

	// MinTracksForProbe gates the probe phase: on discs with few audio
	// tracks, scanning every track outright costs little extra time, so
	// the probe step (which only pays off by skipping tracks) is skipped.
	MinTracksForProbe = 5

	// InitialTranches is how many FramesPerTranche chunks are read from
	// a track before checking whether a strong majority has emerged.
	InitialTranches = 3

	// RescueTranches is how many additional tranches are read, once per
	// retry, if InitialTranches didn't reach a strong majority.
	RescueTranches = 1

	// FramesPerTranche is the batch size of one read/decode step.
	FramesPerTranche = 192

	// BookendFrames skips this many frames at the very start and end of
	// a track, where pre-gap and inter-track noise concentrate.
	BookendFrames = 150

	// EarlyStopValid ends a track's scan early once this many frames
	// decoded to the same confirmed value, without waiting for the
	// tranche budget to exhaust.
	EarlyStopValid = 64

	// ShortTrackThreshold marks tracks too short to support the full
	// tranche budget (initial tranches, rescue tranches, and one more
	// step of spacing between them); below it, a track gets a single
	// full-track batch read instead of spaced sampling.
	ShortTrackThreshold = (BookendFrames * 2) + (FramesPerTranche * (InitialTranches + RescueTranches + 1))

	// MaxCandidates bounds how many distinct decoded values are kept per
	// track; a scan that turns up more than this many distinct strings is
	// almost certainly reading garbage, not a handful of genuine retries.
	MaxCandidates = 8
)

var isrcPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}\d{7}$`)

// validFormat reports whether s has the shape of a real ISRC: two letters
// (country), three alphanumerics (registrant), two digits (year), five
// digits (designation) -- and is not the common all-zero placeholder some
// drives emit when a frame is physically present but never written.
func validFormat(s string) bool {
	if !isrcPattern.MatchString(s) {
		return false
	}
	allZero := true
	for _, c := range s[5:] {
		if c != '0' {
			allZero = false
			break
		}
	}
	return !allZero
}

// candidates is an insertion-ordered, bounded tally of distinct decoded
// values seen for one track.
type candidates struct {
	order  []string
	counts map[string]int
	total  int
}

func newCandidates() *candidates {
	return &candidates{counts: make(map[string]int)}
}

func (c *candidates) add(v string) {
	if _, ok := c.counts[v]; !ok {
		if len(c.order) >= MaxCandidates {
			return
		}
		c.order = append(c.order, v)
	}
	c.counts[v]++
	c.total++
}

// strongMajority reports the winner and whether it clears the bar: its
// count m and the runner-up's count s must satisfy m >= 2 && (s == 0 ||
// m >= 2*s). A single lucky read is never enough; a close second means
// the scan is still ambiguous.
func (c *candidates) strongMajority() (string, int, bool) {
	var winner string
	var m, s int
	for _, v := range c.order {
		n := c.counts[v]
		if n > m {
			winner, s, m = v, m, n
		} else if n > s {
			s = n
		}
	}
	return winner, m, m >= 2 && (s == 0 || m >= 2*s)
}

// TrackResult is what one track's scan produced.
type TrackResult struct {
	Track     int
	ISRC      string
	Confirmed bool
	Samples   int
	Distinct  int
}

// Result is the outcome of scanning a whole disc for ISRCs and its MCN.
type Result struct {
	MCN    string
	Tracks []TrackResult
}

// Scan reads Q-subchannel frames across every audio track of t, recovering
// each track's ISRC and the disc's MCN. It never returns an error for a
// track that simply carries no recoverable ISRC -- that is the common case
// and is reported as TrackResult.Confirmed == false, not a failure.
//
// On discs with enough audio tracks to make it worthwhile, three tracks at
// roughly the 1/3, 1/2, and 2/3 points of the non-short audio tracks are
// fully scanned first as a probe. If none of the three carry a confirmed
// ISRC, the disc is taken to have none at all and the remaining tracks are
// never scanned.
func Scan(sess *device.Session, t *toc.Toc) (Result, error) {
	audio := t.AudioTracks()
	result := Result{Tracks: make([]TrackResult, 0, len(audio))}

	mcn, err := scanMCN(sess, t)
	if err != nil {
		return Result{}, err
	}
	result.MCN = mcn

	results := make(map[int]TrackResult, len(audio))

	if len(audio) >= MinTracksForProbe {
		eligible := make([]toc.Track, 0, len(audio))
		for _, tr := range audio {
			if !isShortTrack(tr) {
				eligible = append(eligible, tr)
			}
		}

		if probes := selectProbeTracks(eligible); len(probes) == ProbeCount {
			probed := make(map[int]bool, ProbeCount)
			anyHit := false
			for _, tr := range probes {
				tres, serr := scanTrack(sess, tr)
				if serr != nil {
					return Result{}, serr
				}
				results[tr.Number] = tres
				probed[tr.Number] = true
				if tres.Confirmed {
					anyHit = true
				}
			}

			if !anyHit {
				for _, tr := range audio {
					if res, ok := results[tr.Number]; ok {
						result.Tracks = append(result.Tracks, res)
					} else {
						result.Tracks = append(result.Tracks, TrackResult{Track: tr.Number})
					}
				}
				return result, nil
			}

			for _, tr := range audio {
				if probed[tr.Number] {
					continue
				}
				tres, serr := scanTrack(sess, tr)
				if serr != nil {
					return Result{}, serr
				}
				results[tr.Number] = tres
			}

			for _, tr := range audio {
				result.Tracks = append(result.Tracks, results[tr.Number])
			}
			return result, nil
		}
	}

	for _, tr := range audio {
		tres, serr := scanTrack(sess, tr)
		if serr != nil {
			return Result{}, serr
		}
		result.Tracks = append(result.Tracks, tres)
	}
	return result, nil
}

// isShortTrack reports whether tr is too short to support the full tranche
// budget and must instead be read in one single batch.
func isShortTrack(tr toc.Track) bool {
	return tr.Length < ShortTrackThreshold
}

// selectProbeTracks picks the tracks at roughly the 1/3, 1/2, and 2/3
// positions of eligible, nudging the picks apart when a small eligible
// count would otherwise collapse two of them onto the same track. Returns
// nil if eligible has fewer than ProbeCount tracks.
func selectProbeTracks(eligible []toc.Track) []toc.Track {
	n := len(eligible)
	if n < ProbeCount {
		return nil
	}

	p0 := n / 3
	p1 := n / 2
	p2 := (n * 2) / 3

	if p0 == 0 && n > 3 {
		p0 = 1
	}
	if p2 == n-1 && n > 3 {
		p2 = n - 2
	}
	if p1 == p0 {
		p1++
	}
	if p2 == p1 {
		p2++
	}
	if p2 >= n {
		p2 = n - 1
	}

	return []toc.Track{eligible[p0], eligible[p1], eligible[p2]}
}

// scanTrack recovers one track's ISRC: a short track (too small to support
// the tranche budget) is read in a single full-track batch; anything
// longer is sampled at evenly spaced tranche positions within its body.
func scanTrack(sess *device.Session, tr toc.Track) (TrackResult, error) {
	if isShortTrack(tr) {
		return scanTrackShort(sess, tr)
	}
	return scanTrackTranches(sess, tr)
}

// scanTrackShort reads every frame of a short track in one batch, decodes
// any ISRC frames found, and takes the strong majority over the whole
// track -- there is no room in a track this size for spaced sampling.
func scanTrackShort(sess *device.Session, tr toc.Track) (TrackResult, error) {
	cand := newCandidates()
	samples := 0

	frames, err := qsub.ReadBatch(sess, tr.Offset, tr.Length)
	if err != nil {
		return TrackResult{}, err
	}
	for _, f := range frames {
		if f.ADR != qsub.ADRISRC || !f.Valid() || !validFormat(f.ISRC) {
			continue
		}
		cand.add(f.ISRC)
		samples++
	}

	winner, _, ok := cand.strongMajority()
	return TrackResult{
		Track:     tr.Number,
		ISRC:      winner,
		Confirmed: ok,
		Samples:   samples,
		Distinct:  len(cand.order),
	}, nil
}

// scanTrackTranches reads InitialTranches tranches at evenly spaced
// positions within the track's bookend-trimmed body, decoding ISRC frames
// and tallying them until a strong majority is reached or EarlyStopValid
// is hit. If the initial tranches produced no majority but did turn up at
// least one candidate, a rescue pass samples RescueTranches further,
// recomputing tranche positions over the enlarged tranche count and reading
// only the positions beyond the first InitialTranches, which lie past the
// last initial tranche rather than repeating one.
// A track with zero candidates after the initial tranches is given up on
// without a rescue pass -- there is nothing there to rescue.
func scanTrackTranches(sess *device.Session, tr toc.Track) (TrackResult, error) {
	cand := newCandidates()
	samples := 0

	readTranche := func(lba int) error {
		frames, err := qsub.ReadBatch(sess, lba, FramesPerTranche)
		if err != nil {
			return err
		}
		for _, f := range frames {
			if f.ADR != qsub.ADRISRC || !f.Valid() || !validFormat(f.ISRC) {
				continue
			}
			cand.add(f.ISRC)
			samples++
		}
		return nil
	}

	result := func(confirmed bool) TrackResult {
		winner, _, ok := cand.strongMajority()
		return TrackResult{
			Track:     tr.Number,
			ISRC:      winner,
			Confirmed: confirmed && ok,
			Samples:   samples,
			Distinct:  len(cand.order),
		}
	}

	for _, lba := range tranchePositions(tr, InitialTranches) {
		if err := readTranche(lba); err != nil {
			return TrackResult{}, err
		}
		if _, m, ok := cand.strongMajority(); ok && m >= EarlyStopValid {
			return result(true), nil
		}
	}

	if _, _, ok := cand.strongMajority(); ok {
		return result(true), nil
	}
	if cand.total == 0 {
		return result(false), nil
	}

	rescuePositions := tranchePositions(tr, InitialTranches+RescueTranches)
	for _, lba := range rescuePositions[InitialTranches:] {
		if err := readTranche(lba); err != nil {
			return TrackResult{}, err
		}
		if _, _, ok := cand.strongMajority(); ok {
			return result(true), nil
		}
	}

	return result(false), nil
}

// tranchePositions computes num evenly spaced sampling LBAs within a
// track's bookend-trimmed body (falling back to the whole track if
// trimming would leave nothing), per the "divide usable length into num+1
// equal steps, place tranches at steps 1..num" rule: each tranche reads
// FramesPerTranche frames starting at its position.
func tranchePositions(tr toc.Track, num int) []int {
	start := tr.Offset + BookendFrames
	end := tr.Offset + tr.Length - BookendFrames
	if end <= start {
		start = tr.Offset
		end = tr.Offset + tr.Length
	}
	usable := end - start

	positions := make([]int, num)
	if num == 1 {
		positions[0] = start + usable/2
		return positions
	}
	step := usable / (num + 1)
	for i := 0; i < num; i++ {
		positions[i] = start + step*(i+1)
	}
	return positions
}

// scanMCN samples frames across the first audio track looking for the
// disc's MCN, which (unlike an ISRC) is not bound to any one track and so
// can be read anywhere a drive chooses to emit it.
func scanMCN(sess *device.Session, t *toc.Toc) (string, error) {
	audio := t.AudioTracks()
	if len(audio) == 0 {
		return "", nil
	}
	tr := audio[0]
	cand := newCandidates()

	for _, lba := range tranchePositions(tr, InitialTranches+RescueTranches) {
		frames, err := qsub.ReadBatch(sess, lba, FramesPerTranche)
		if err != nil {
			return "", err
		}
		for _, f := range frames {
			if f.ADR == qsub.ADRMCN && f.Valid() && f.MCN != "" {
				cand.add(f.MCN)
			}
		}
		if _, m, ok := cand.strongMajority(); ok && m >= EarlyStopValid {
			break
		}
	}

	winner, _, ok := cand.strongMajority()
	if !ok {
		return "", nil
	}
	return winner, nil
}
