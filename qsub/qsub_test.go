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

package qsub

import "testing"

func TestDecodeFormattedPosition(t *testing.T) {
	frame := make([]byte, 16)
	frame[0] = (0x04 << 4) | ADRPosition // control: data bit set, ADR=1
	frame[1] = 3                         // track
	frame[2] = 1                         // index

	f, err := DecodeFormatted(frame)
	if err != nil {
		t.Fatalf("DecodeFormatted: %v", err)
	}
	if f.ADR != ADRPosition || f.Track != 3 || f.Index != 1 {
		t.Errorf("decoded = %+v, want ADR=1 Track=3 Index=1", f)
	}
	if f.Validity != Plausible {
		t.Errorf("Validity = %v, want Plausible (frame[0] is non-zero)", f.Validity)
	}
}

func TestDecodeFormattedAllZeroIsInvalid(t *testing.T) {
	frame := make([]byte, 16)
	f, err := DecodeFormatted(frame)
	if err != nil {
		t.Fatalf("DecodeFormatted: %v", err)
	}
	if f.Valid() {
		t.Error("an all-zero frame should not be Valid")
	}
}

func TestDecodeFormattedRejectsWrongLength(t *testing.T) {
	if _, err := DecodeFormatted(make([]byte, 15)); err == nil {
		t.Fatal("expected error for a 15-byte frame")
	}
}

func TestDecodeFormattedMCN(t *testing.T) {
	frame := make([]byte, 16)
	frame[0] = ADRMCN
	// 13 BCD digits: "1234567890123".
	frame[1], frame[2], frame[3] = 0x12, 0x34, 0x56
	frame[4], frame[5], frame[6] = 0x78, 0x90, 0x12
	frame[7] = 0x30 // low nibble of byte 7 is unused (frame byte count only needs 13 digits)

	f, err := DecodeFormatted(frame)
	if err != nil {
		t.Fatalf("DecodeFormatted: %v", err)
	}
	if f.MCN != "1234567890123" {
		t.Errorf("MCN = %q, want 1234567890123", f.MCN)
	}
}

func TestDecodeFormattedISRC(t *testing.T) {
	// "USRC17607839", six-bit packed letters + BCD digits, worked by hand
	// against decodeISRC's bit layout.
	frame := make([]byte, 16)
	frame[0] = ADRISRC
	frame[1], frame[2], frame[3], frame[4] = 0x96, 0x38, 0x93, 0x04
	frame[5], frame[6], frame[7], frame[8] = 0x76, 0x07, 0x83, 0x90

	f, err := DecodeFormatted(frame)
	if err != nil {
		t.Fatalf("DecodeFormatted: %v", err)
	}
	if f.ISRC != "USRC17607839" {
		t.Errorf("ISRC = %q, want USRC17607839", f.ISRC)
	}
}

func TestDecodeRawValidatesCRC(t *testing.T) {
	frame := make([]byte, 12)
	frame[0] = ADRPosition
	frame[1] = 1
	frame[2] = 0
	crc := crc16CCITT(frame[:10])
	frame[10], frame[11] = byte(crc>>8), byte(crc)

	f, err := DecodeRaw(frame)
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if f.Validity != CrcVerified {
		t.Errorf("Validity = %v, want CrcVerified for a correctly appended CRC", f.Validity)
	}

	frame[11] ^= 0xFF
	f, err = DecodeRaw(frame)
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if f.Validity != Invalid {
		t.Errorf("Validity = %v, want Invalid after corrupting the CRC", f.Validity)
	}
}

func TestDecodeRawRejectsWrongLength(t *testing.T) {
	if _, err := DecodeRaw(make([]byte, 11)); err == nil {
		t.Fatal("expected error for an 11-byte frame")
	}
}

func TestDecodeSixBit(t *testing.T) {
	cases := []struct {
		v    byte
		want byte
		ok   bool
	}{
		{0, '0', true},
		{1, '1', true},
		{9, '9', true},
		{17, 'A', true},
		{42, 'Z', true},
		{10, 0, false},
		{43, 0, false},
	}
	for _, c := range cases {
		got, ok := decodeSixBit(c.v)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("decodeSixBit(%d) = (%q, %v), want (%q, %v)", c.v, got, ok, c.want, c.ok)
		}
	}
}
