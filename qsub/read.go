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
	"fmt"

	"github.com/cdtoc/discid/device"
)

const (
	opReadCD = 0xBE

	// A CD spins at 75 sectors/second; this is also the largest tranche
	// a single READ CD transfer comfortably covers without overflowing
	// typical SCSI/ATAPI transfer-length limits on commodity drives.
	maxFramesPerRead = 75

	// byte 10 sub-channel selection bits of the READ CD CDB.
	subChannelNone      = 0x00
	subChannelFormattedQ = 0x02
)

// ReadBatch reads count consecutive formatted-Q frames starting at
// startLBA. It first attempts one multi-frame READ CD transfer; if the
// drive rejects the batched form, it falls back to issuing one
// single-frame command per sector, per spec §4.3's resilience note that
// some drives only support one subchannel read at a time.
func ReadBatch(sess *device.Session, startLBA, count int) ([]Frame, error) {
	frames := make([]Frame, 0, count)
	for remaining := count; remaining > 0; {
		n := remaining
		if n > maxFramesPerRead {
			n = maxFramesPerRead
		}
		lba := startLBA + (count - remaining)

		batch, err := readCD(sess, lba, n)
		if err == nil {
			for i := 0; i < n; i++ {
				f, ferr := DecodeFormatted(batch[i*16 : (i+1)*16])
				if ferr != nil {
					return nil, ferr
				}
				frames = append(frames, f)
			}
			remaining -= n
			continue
		}

		var derr *device.Error
		if !errors.As(err, &derr) || derr.Kind != device.KindUnsupportedCommand {
			return nil, err
		}

		// Fall back to single-frame reads for the whole remaining run.
		for i := 0; i < remaining; i++ {
			one, oerr := readCD(sess, startLBA+(count-remaining)+i, 1)
			if oerr != nil {
				return nil, oerr
			}
			f, ferr := DecodeFormatted(one)
			if ferr != nil {
				return nil, ferr
			}
			frames = append(frames, f)
		}
		remaining = 0
	}
	return frames, nil
}

// readCD issues one READ CD (opcode 0xBE) command requesting only
// formatted-Q subchannel data for n consecutive sectors starting at lba.
func readCD(sess *device.Session, lba, n int) ([]byte, error) {
	if n <= 0 || n > 255 {
		return nil, fmt.Errorf("qsub: invalid frame count %d", n)
	}
	buf := make([]byte, n*16)

	cdb := make([]byte, 12)
	cdb[0] = opReadCD
	cdb[2] = byte(lba >> 24)
	cdb[3] = byte(lba >> 16)
	cdb[4] = byte(lba >> 8)
	cdb[5] = byte(lba)
	cdb[6] = byte(n >> 16)
	cdb[7] = byte(n >> 8)
	cdb[8] = byte(n)
	cdb[9] = 0x00 // no sync/header/user-data/EDC-ECC; subchannel only
	cdb[10] = subChannelFormattedQ

	timeout := device.LongTimeout
	if n == 1 {
		timeout = device.ProbeTimeout
	}
	read, err := sess.SendCDB(cdb, buf, timeout)
	if err != nil {
		return nil, err
	}
	if read < len(buf) {
		return nil, fmt.Errorf("qsub: short read: got %d of %d bytes", read, len(buf))
	}
	return buf, nil
}
