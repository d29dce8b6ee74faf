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

// Package tocreader issues READ TOC/PMA/ATIP (opcode 0x43) commands
// against a device.Session and assembles the result into a toc.Toc,
// including multi-session structure from the full-TOC (format 2) form.
package tocreader

import (
	"errors"
	"fmt"

	"github.com/cdtoc/discid/device"
	"github.com/cdtoc/discid/toc"
)

// ErrTocInvalid indicates the TOC bytes failed a structural check.
var ErrTocInvalid = errors.New("tocreader: malformed TOC")

const (
	opReadTOC = 0x43

	formatBasic  = 0x00
	formatFull   = 0x02
	formatCDText = 0x05

	// descriptor sizes, per spec §4.2/§6.
	basicDescriptorLen = 8
	fullDescriptorLen  = 11

	pointFirstOfSession = 0xA0
	pointLastOfSession  = 0xA1
	pointLeadoutSession = 0xA2
)

// Read derives a complete Toc for the disc in sess.
func Read(sess *device.Session) (*toc.Toc, error) {
	full, err := readFullTOC(sess)
	if err == nil {
		return buildFromFull(full)
	}
	var derr *device.Error
	if errors.As(err, &derr) && derr.Kind == device.KindUnsupportedCommand {
		basic, berr := readBasicTOC(sess)
		if berr != nil {
			return nil, berr
		}
		return buildFromBasic(basic)
	}
	return nil, err
}

type rawDescriptor struct {
	session int
	point   int
	control byte
	adr     byte
	lba     int
}

// readFullTOC issues format 2 and parses its 11-byte descriptors.
func readFullTOC(sess *device.Session) ([]rawDescriptor, error) {
	buf := make([]byte, 4+99*fullDescriptorLen)
	n, err := sendReadTOC(sess, formatFull, buf)
	if err != nil {
		return nil, err
	}
	buf = buf[:n]
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: response too short", ErrTocInvalid)
	}
	dataLen := int(buf[0])<<8 | int(buf[1])
	if dataLen+2 > len(buf) {
		return nil, fmt.Errorf("%w: length header %d exceeds buffer", ErrTocInvalid, dataLen)
	}
	body := buf[2 : 2+dataLen]
	if len(body)%fullDescriptorLen != 0 {
		return nil, fmt.Errorf("%w: full TOC body length %d not a multiple of %d", ErrTocInvalid, len(body), fullDescriptorLen)
	}

	var out []rawDescriptor
	for off := 0; off < len(body); off += fullDescriptorLen {
		d := body[off : off+fullDescriptorLen]
		session := int(d[0])
		adrControl := d[1]
		point := int(d[3])
		m, s, f := int(d[8]), int(d[9]), int(d[10])
		lba := msfToLBA(m, s, f)
		out = append(out, rawDescriptor{
			session: session,
			point:   point,
			control: adrControl >> 4,
			adr:     adrControl & 0x0F,
			lba:     lba,
		})
	}
	return out, nil
}

func msfToLBA(m, s, f int) int {
	return (m*60+s)*75 + f - 150
}

func buildFromFull(descs []rawDescriptor) (*toc.Toc, error) {
	var tracks []toc.Track
	sessionLeadout := map[int]int{}
	lastSession := 1

	for _, d := range descs {
		switch {
		case d.point >= 0x01 && d.point <= 0x63:
			tracks = append(tracks, toc.Track{
				Number:  d.point,
				Session: d.session,
				Offset:  d.lba,
				Control: d.control,
				ADR:     d.adr,
			})
			if d.session > lastSession {
				lastSession = d.session
			}
		case d.point == pointLeadoutSession:
			sessionLeadout[d.session] = d.lba
			if d.session > lastSession {
				lastSession = d.session
			}
		case d.point == pointFirstOfSession, d.point == pointLastOfSession:
			// informational only; session membership is already carried by
			// each real-track descriptor's session byte.
		}
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no track descriptors found", ErrTocInvalid)
	}
	sortTracksByNumber(tracks)
	for i := 1; i < len(tracks); i++ {
		if tracks[i].Offset <= tracks[i-1].Offset {
			return nil, fmt.Errorf("%w: track offsets not increasing", ErrTocInvalid)
		}
	}

	discLeadout, ok := sessionLeadout[1]
	for s := 2; s <= lastSession; s++ {
		if lo, ok2 := sessionLeadout[s]; ok2 {
			discLeadout = lo
			ok = true
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: no leadout descriptor found", ErrTocInvalid)
	}

	fillLengths(tracks, discLeadout)
	t := toc.Build(tracks, discLeadout, lastSession)
	t.AudioLeadout = computeAudioLeadout(tracks, discLeadout, sessionLeadout, lastSession)
	return t, t.Validate()
}

// computeAudioLeadout implements spec §4.2: on a multi-session disc, the
// audio-session leadout is session 1's own leadout; on a single-session
// disc, it is the offset of the first data track immediately following
// an audio run, else the disc leadout.
func computeAudioLeadout(tracks []toc.Track, discLeadout int, sessionLeadout map[int]int, lastSession int) int {
	if lastSession > 1 {
		if lo, ok := sessionLeadout[1]; ok {
			return lo
		}
	}
	for i, tr := range tracks {
		if tr.IsData() && i > 0 && tracks[i-1].IsAudio() {
			return tr.Offset
		}
	}
	return discLeadout
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

func sortTracksByNumber(tracks []toc.Track) {
	for i := 1; i < len(tracks); i++ {
		for j := i; j > 0 && tracks[j].Number < tracks[j-1].Number; j-- {
			tracks[j], tracks[j-1] = tracks[j-1], tracks[j]
		}
	}
}

// readBasicTOC issues format 0 and parses its 8-byte descriptors,
// returning the session-1-only fallback path.
func readBasicTOC(sess *device.Session) ([]rawDescriptor, error) {
	buf := make([]byte, 4+99*basicDescriptorLen)
	n, err := sendReadTOC(sess, formatBasic, buf)
	if err != nil {
		return nil, err
	}
	buf = buf[:n]
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: response too short", ErrTocInvalid)
	}
	dataLen := int(buf[0])<<8 | int(buf[1])
	if dataLen+2 > len(buf) {
		return nil, fmt.Errorf("%w: length header %d exceeds buffer", ErrTocInvalid, dataLen)
	}
	body := buf[2 : 2+dataLen]
	if len(body)%basicDescriptorLen != 0 {
		return nil, fmt.Errorf("%w: basic TOC body length %d not a multiple of %d", ErrTocInvalid, len(body), basicDescriptorLen)
	}

	var out []rawDescriptor
	for off := 0; off < len(body); off += basicDescriptorLen {
		d := body[off : off+basicDescriptorLen]
		adrControl := d[1]
		track := int(d[2])
		lba := int(d[4])<<24 | int(d[5])<<16 | int(d[6])<<8 | int(d[7])
		out = append(out, rawDescriptor{
			session: 1,
			point:   track,
			control: adrControl >> 4,
			adr:     adrControl & 0x0F,
			lba:     lba,
		})
	}
	return out, nil
}

func buildFromBasic(descs []rawDescriptor) (*toc.Toc, error) {
	if len(descs) < 2 {
		return nil, fmt.Errorf("%w: basic TOC has fewer than 2 descriptors", ErrTocInvalid)
	}
	// The last descriptor in basic-TOC order is the leadout; drives
	// report it with the conventional track number 0xAA.
	leadoutDesc := descs[len(descs)-1]
	trackDescs := descs[:len(descs)-1]
	if leadoutDesc.point != 0xAA {
		return nil, fmt.Errorf("%w: expected leadout descriptor (0xAA), got point %#x", ErrTocInvalid, leadoutDesc.point)
	}

	tracks := make([]toc.Track, 0, len(trackDescs))
	for _, d := range trackDescs {
		tracks = append(tracks, toc.Track{
			Number:  d.point,
			Session: 1,
			Offset:  d.lba,
			Control: d.control,
			ADR:     d.adr,
		})
	}
	sortTracksByNumber(tracks)
	for i := 1; i < len(tracks); i++ {
		if tracks[i].Offset <= tracks[i-1].Offset {
			return nil, fmt.Errorf("%w: track offsets not increasing", ErrTocInvalid)
		}
	}
	if tracks[0].Number > tracks[len(tracks)-1].Number {
		return nil, fmt.Errorf("%w: first track number exceeds last", ErrTocInvalid)
	}

	fillLengths(tracks, leadoutDesc.lba)
	t := toc.Build(tracks, leadoutDesc.lba, 1)
	t.AudioLeadout = computeAudioLeadout(tracks, leadoutDesc.lba, map[int]int{1: leadoutDesc.lba}, 1)
	return t, t.Validate()
}

// ReadCDText issues READ TOC/PMA/ATIP format 5 and returns the raw CD-Text
// pack stream, undecoded. A drive that rejects format 5 reports
// device.KindUnsupportedCommand, which callers treat as "no CD-Text", not
// a failure.
func ReadCDText(sess *device.Session) ([]byte, error) {
	buf := make([]byte, 4+2048)
	n, err := sendReadTOC(sess, formatCDText, buf)
	if err != nil {
		return nil, err
	}
	buf = buf[:n]
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: CD-Text response too short", ErrTocInvalid)
	}
	dataLen := int(buf[0])<<8 | int(buf[1])
	if dataLen+2 > len(buf) {
		return nil, fmt.Errorf("%w: CD-Text length header %d exceeds buffer", ErrTocInvalid, dataLen)
	}
	return buf[2 : 2+dataLen], nil
}

// sendReadTOC issues READ TOC/PMA/ATIP with the given format and returns
// the number of bytes of response actually filled into buf.
func sendReadTOC(sess *device.Session, format byte, buf []byte) (int, error) {
	cdb := make([]byte, 10)
	cdb[0] = opReadTOC
	cdb[1] = 0x00
	cdb[2] = format & 0x0F
	cdb[7] = byte(len(buf) >> 8)
	cdb[8] = byte(len(buf))
	return sess.SendCDB(cdb, buf, device.LongTimeout)
}
