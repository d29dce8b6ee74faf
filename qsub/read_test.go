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

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/cdtoc/discid/device"
)

// fakeBackend stands in for a real drive: it answers READ CD (0xBE) by
// filling each 16-byte frame with a position frame whose track number
// tracks the requested LBA, so a test can check frames arrived in order.
type fakeBackend struct {
	calls          int
	rejectFirstCDB bool
}

func (b *fakeBackend) Acquire(string) error { return nil }
func (b *fakeBackend) Release() error       { return nil }
func (b *fakeBackend) Identity() string     { return "fake" }

func (b *fakeBackend) SendCDB(cdb []byte, data []byte, _ time.Duration) (int, error) {
	b.calls++
	if cdb[0] != opReadCD {
		return 0, errors.New("unexpected opcode")
	}
	if b.rejectFirstCDB && b.calls == 1 {
		return 0, &device.Error{Kind: device.KindUnsupportedCommand, Op: "read cd", Err: errors.New("batched reads unsupported")}
	}
	lba := int(cdb[2])<<24 | int(cdb[3])<<16 | int(cdb[4])<<8 | int(cdb[5])
	n := int(cdb[6])<<16 | int(cdb[7])<<8 | int(cdb[8])
	for i := 0; i < n; i++ {
		frame := data[i*16 : i*16+16]
		frame[0] = ADRPosition
		frame[1] = byte(((lba + i) % 99) + 1)
		frame[2] = 1
	}
	return n * 16, nil
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

func TestReadBatchSingleTransfer(t *testing.T) {
	sess := openFakeSession(t, &fakeBackend{})
	frames, err := ReadBatch(sess, 1000, 10)
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(frames) != 10 {
		t.Fatalf("len(frames) = %d, want 10", len(frames))
	}
	for i, f := range frames {
		want := ((1000+i)%99 + 1)
		if f.Track != want {
			t.Errorf("frames[%d].Track = %d, want %d", i, f.Track, want)
		}
	}
}

func TestReadBatchSplitsAcrossMaxFramesPerRead(t *testing.T) {
	backend := &fakeBackend{}
	sess := openFakeSession(t, backend)
	count := maxFramesPerRead + 20
	frames, err := ReadBatch(sess, 0, count)
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(frames) != count {
		t.Fatalf("len(frames) = %d, want %d", len(frames), count)
	}
	if backend.calls != 2 {
		t.Errorf("backend.calls = %d, want 2 transfers", backend.calls)
	}
}

func TestReadBatchFallsBackOnUnsupportedCommand(t *testing.T) {
	backend := &fakeBackend{rejectFirstCDB: true}
	sess := openFakeSession(t, backend)
	frames, err := ReadBatch(sess, 500, 5)
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(frames) != 5 {
		t.Fatalf("len(frames) = %d, want 5", len(frames))
	}
	// 1 rejected batch attempt + 5 single-frame fallback reads.
	if backend.calls != 6 {
		t.Errorf("backend.calls = %d, want 6 (1 rejected + 5 single-frame)", backend.calls)
	}
}
