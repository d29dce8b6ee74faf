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

package discimage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestParseCHT2(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		data    string
		wantErr bool
		number  int
		typ     string
		frames  int
	}{
		{name: "standard", data: "TRACK:1 TYPE:MODE1_RAW SUBTYPE:RW FRAMES:1000 PREGAP:150 POSTGAP:0", number: 1, typ: "MODE1_RAW", frames: 1000},
		{name: "audio", data: "TRACK:2 TYPE:AUDIO SUBTYPE:NONE FRAMES:5000", number: 2, typ: "AUDIO", frames: 5000},
		{name: "invalid_track_number", data: "TRACK:abc TYPE:MODE1", wantErr: true},
		{name: "invalid_frames", data: "TRACK:1 FRAMES:notanumber", wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseCHT2([]byte(c.data))
			if c.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCHT2: %v", err)
			}
			if got.Number != c.number || got.Type != c.typ || got.Frames != c.frames {
				t.Errorf("track = %+v, want Number=%d Type=%q Frames=%d", got, c.number, c.typ, c.frames)
			}
		})
	}
}

func TestParseCHTR(t *testing.T) {
	t.Parallel()
	track, err := parseCHTR([]byte("TRACK:1 TYPE:MODE1_RAW FRAMES:500"))
	if err != nil {
		t.Fatalf("parseCHTR: %v", err)
	}
	if track.Number != 1 || track.Type != "MODE1_RAW" || track.Frames != 500 {
		t.Errorf("track = %+v, want Number=1 Type=MODE1_RAW Frames=500", track)
	}
}

func TestParseCHCD(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 4+24*2)
	binary.BigEndian.PutUint32(buf[0:4], 2)

	off := 4
	binary.BigEndian.PutUint32(buf[off:off+4], 0)   // type MODE1/2048
	binary.BigEndian.PutUint32(buf[off+4:off+8], 0)  // subtype RW
	binary.BigEndian.PutUint32(buf[off+8:off+12], 2048)
	binary.BigEndian.PutUint32(buf[off+12:off+16], 96)
	binary.BigEndian.PutUint32(buf[off+16:off+20], 1000)

	off = 4 + 24
	binary.BigEndian.PutUint32(buf[off:off+4], 5)   // type AUDIO
	binary.BigEndian.PutUint32(buf[off+4:off+8], 2) // subtype NONE
	binary.BigEndian.PutUint32(buf[off+8:off+12], 2352)
	binary.BigEndian.PutUint32(buf[off+16:off+20], 2000)

	tracks, err := parseCHCD(buf)
	if err != nil {
		t.Fatalf("parseCHCD: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("len(tracks) = %d, want 2", len(tracks))
	}
	if tracks[0].Number != 1 || tracks[0].Type != "MODE1/2048" || tracks[0].Frames != 1000 {
		t.Errorf("track 0 = %+v", tracks[0])
	}
	if tracks[1].Number != 2 || tracks[1].Type != "AUDIO" {
		t.Errorf("track 1 = %+v", tracks[1])
	}
}

func TestParseCHCDTooSmall(t *testing.T) {
	t.Parallel()
	_, err := parseCHCD([]byte{0x00, 0x00})
	if !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("err = %v, want ErrInvalidMetadata", err)
	}
}

func TestParseCHCDTooManyTracks(t *testing.T) {
	t.Parallel()
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf[0:4], 1000) // exceeds MaxNumTracks
	_, err := parseCHCD(buf)
	if err == nil || !strings.Contains(err.Error(), "too many tracks") {
		t.Errorf("err = %v, want a 'too many tracks' error", err)
	}
}

func TestParseCHCDInsufficientData(t *testing.T) {
	t.Parallel()
	buf := make([]byte, 4+10) // header says 1 track, not enough bytes for it
	binary.BigEndian.PutUint32(buf[0:4], 1)
	_, err := parseCHCD(buf)
	if !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("err = %v, want ErrInvalidMetadata", err)
	}
}

func TestMetadataCircularChain(t *testing.T) {
	t.Parallel()

	data := make([]byte, 300)

	binary.BigEndian.PutUint32(data[100:104], MetaTagCHT2)
	data[107] = 10 // length
	binary.BigEndian.PutUint64(data[108:116], 200)

	binary.BigEndian.PutUint32(data[200:204], MetaTagCHT2)
	data[207] = 10
	binary.BigEndian.PutUint64(data[208:216], 100) // points back to 100

	_, err := parseMetadata(bytes.NewReader(data), 100)
	if err == nil || !strings.Contains(err.Error(), "circular") {
		t.Errorf("err = %v, want a 'circular' error", err)
	}
}

func TestTrackTypeToDataSize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		trackType string
		want      int
	}{
		{"MODE1/2048", 2048},
		{"MODE1/2352", 2352},
		{"MODE1_RAW", 2352},
		{"MODE2/2352", 2352},
		{"MODE2_RAW", 2352},
		{"AUDIO", 2352},
		{"unknown", 2352},
	}
	for _, c := range cases {
		if got := trackTypeToDataSize(c.trackType); got != c.want {
			t.Errorf("trackTypeToDataSize(%q) = %d, want %d", c.trackType, got, c.want)
		}
	}
}

func TestSubTypeToSize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		subType string
		want    int
	}{
		{"NONE", 0},
		{"RW", 96},
		{"RW_RAW", 96},
		{"unknown", 0},
	}
	for _, c := range cases {
		if got := subTypeToSize(c.subType); got != c.want {
			t.Errorf("subTypeToSize(%q) = %d, want %d", c.subType, got, c.want)
		}
	}
}

func TestCDTypeToString(t *testing.T) {
	t.Parallel()
	cases := []struct {
		cdType uint32
		want   string
	}{
		{0, "MODE1/2048"},
		{1, "MODE1/2352"},
		{2, "MODE2/2048"},
		{3, "MODE2/2336"},
		{4, "MODE2/2352"},
		{5, "AUDIO"},
		{99, "UNKNOWN"},
	}
	for _, c := range cases {
		if got := cdTypeToString(c.cdType); got != c.want {
			t.Errorf("cdTypeToString(%d) = %q, want %q", c.cdType, got, c.want)
		}
	}
}

func TestCDSubTypeToString(t *testing.T) {
	t.Parallel()
	cases := []struct {
		subType uint32
		want    string
	}{
		{0, "RW"},
		{1, "RW_RAW"},
		{2, "NONE"},
		{99, "NONE"},
	}
	for _, c := range cases {
		if got := cdSubTypeToString(c.subType); got != c.want {
			t.Errorf("cdSubTypeToString(%d) = %q, want %q", c.subType, got, c.want)
		}
	}
}
