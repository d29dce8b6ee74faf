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

package toc

import "testing"

func audioTrack(num, offset int) Track {
	return Track{Number: num, Session: 1, Offset: offset}
}

func dataTrack(num, offset int) Track {
	return Track{Number: num, Session: 1, Offset: offset, Control: ControlDataTrack}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		tracks []Track
		want   DiscType
	}{
		{"empty", nil, DiscTypeUnknown},
		{"audio only", []Track{audioTrack(1, 0), audioTrack(2, 1000)}, DiscTypeAudio},
		{"enhanced", []Track{audioTrack(1, 0), audioTrack(2, 1000), dataTrack(3, 200000)}, DiscTypeEnhanced},
		{"mixed", []Track{dataTrack(1, 0), audioTrack(2, 20000)}, DiscTypeMixed},
		{"data only", []Track{dataTrack(1, 0)}, DiscTypeUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.tracks); got != c.want {
				t.Errorf("Classify(%s) = %v, want %v", c.name, got, c.want)
			}
		})
	}
}

func TestBuildComputesCounts(t *testing.T) {
	tracks := []Track{audioTrack(1, 0), audioTrack(2, 17327), dataTrack(3, 199850)}
	tc := Build(tracks, 220000, 1)

	if tc.FirstTrack != 1 || tc.LastTrack != 3 {
		t.Errorf("first/last = %d/%d, want 1/3", tc.FirstTrack, tc.LastTrack)
	}
	if tc.TrackCount != 3 || tc.AudioCount != 2 || tc.DataCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", tc.TrackCount, tc.AudioCount, tc.DataCount)
	}
	// Enhanced: AudioLeadout should be the offset of the first data track
	// trailing the audio run, not the disc leadout.
	if tc.AudioLeadout != 199850 {
		t.Errorf("AudioLeadout = %d, want 199850", tc.AudioLeadout)
	}
}

func TestBuildAudioLeadoutDefaultsToDiscLeadout(t *testing.T) {
	tracks := []Track{audioTrack(1, 0), audioTrack(2, 17327)}
	tc := Build(tracks, 60000, 1)
	if tc.AudioLeadout != 60000 {
		t.Errorf("AudioLeadout = %d, want disc leadout 60000", tc.AudioLeadout)
	}
}

func TestValidateRejectsNonIncreasingOffsets(t *testing.T) {
	tracks := []Track{audioTrack(1, 100), audioTrack(2, 100)}
	tc := Build(tracks, 500, 1)
	if err := tc.Validate(); err == nil {
		t.Fatal("expected error for non-increasing offsets, got nil")
	}
}

func TestValidateRejectsLeadoutNotExceedingLastTrack(t *testing.T) {
	tracks := []Track{audioTrack(1, 0), audioTrack(2, 1000)}
	tc := Build(tracks, 1000, 1)
	if err := tc.Validate(); err == nil {
		t.Fatal("expected error for leadout not exceeding last track offset, got nil")
	}
}

func TestValidateRejectsCountMismatch(t *testing.T) {
	tracks := []Track{audioTrack(1, 0), audioTrack(2, 1000)}
	tc := Build(tracks, 2000, 1)
	tc.AudioCount = 1 // desynchronize from the actual track list
	if err := tc.Validate(); err == nil {
		t.Fatal("expected error for audio_count/data_count/track_count mismatch, got nil")
	}
}

func TestValidateRejectsEmptyTracks(t *testing.T) {
	tc := Build(nil, 100, 1)
	if err := tc.Validate(); err == nil {
		t.Fatal("expected error for empty track list, got nil")
	}
}

func TestValidateAcceptsWellFormedToc(t *testing.T) {
	tracks := []Track{audioTrack(1, 0), audioTrack(2, 17327), dataTrack(3, 199850)}
	tc := Build(tracks, 220000, 1)
	if err := tc.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAudioTracks(t *testing.T) {
	tracks := []Track{audioTrack(1, 0), dataTrack(2, 1000), audioTrack(3, 2000)}
	tc := Build(tracks, 5000, 1)
	audio := tc.AudioTracks()
	if len(audio) != 2 {
		t.Fatalf("len(AudioTracks()) = %d, want 2", len(audio))
	}
	if audio[0].Number != 1 || audio[1].Number != 3 {
		t.Errorf("AudioTracks() numbers = %d,%d, want 1,3", audio[0].Number, audio[1].Number)
	}
}

func TestTrackLookup(t *testing.T) {
	tracks := []Track{audioTrack(1, 0), audioTrack(2, 1000)}
	tc := Build(tracks, 2000, 1)

	tr, ok := tc.Track(2)
	if !ok || tr.Number != 2 {
		t.Fatalf("Track(2) = %+v, %v; want found track 2", tr, ok)
	}
	if _, ok := tc.Track(99); ok {
		t.Fatal("Track(99) unexpectedly found")
	}
}

func TestSetISRC(t *testing.T) {
	tracks := []Track{audioTrack(1, 0), audioTrack(2, 1000)}
	tc := Build(tracks, 2000, 1)

	tc.SetISRC(2, "USRC17607839")
	tr, _ := tc.Track(2)
	if tr.ISRC != "USRC17607839" {
		t.Errorf("Track(2).ISRC = %q, want USRC17607839", tr.ISRC)
	}
	// Track 1 must be untouched.
	tr1, _ := tc.Track(1)
	if tr1.ISRC != "" {
		t.Errorf("Track(1).ISRC = %q, want empty", tr1.ISRC)
	}
}

func TestIsAudioIsData(t *testing.T) {
	a := audioTrack(1, 0)
	d := dataTrack(2, 1000)
	if !a.IsAudio() || a.IsData() {
		t.Error("audio track misclassified")
	}
	if !d.IsData() || d.IsAudio() {
		t.Error("data track misclassified")
	}
}

func TestDiscTypeString(t *testing.T) {
	cases := map[DiscType]string{
		DiscTypeUnknown:  "Unknown",
		DiscTypeAudio:    "Audio",
		DiscTypeEnhanced: "Enhanced",
		DiscTypeMixed:    "Mixed",
	}
	for dt, want := range cases {
		if got := dt.String(); got != want {
			t.Errorf("DiscType(%d).String() = %q, want %q", dt, got, want)
		}
	}
}
