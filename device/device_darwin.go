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

//go:build darwin

package device

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// darwinBackend models the two-step acquisition spec §4.1 describes for
// this host family: the disc-arbitration layer must unmount and claim the
// device before an exclusive file-descriptor acquisition is granted. The
// unmount claim and the file descriptor are two independently released
// resources, released in reverse acquisition order by Release.
type darwinBackend struct {
	f       *os.File
	claimed bool
}

func newPlatformBackend() Backend {
	return &darwinBackend{}
}

func (b *darwinBackend) Acquire(devicePath string) error {
	if err := claimDiskArbitration(devicePath); err != nil {
		return &Error{Kind: KindAccessDenied, Op: "acquire", Err: err}
	}
	b.claimed = true

	f, err := os.OpenFile(devicePath, os.O_RDONLY, 0)
	if err != nil {
		b.releaseDiskArbitration(devicePath)
		b.claimed = false
		if errors.Is(err, syscall.EBUSY) {
			return &Error{Kind: KindBusy, Op: "acquire", Err: err}
		}
		if errors.Is(err, syscall.ENXIO) {
			return &Error{Kind: KindMediaAbsent, Op: "acquire", Err: err}
		}
		return &Error{Kind: KindIoFailure, Op: "acquire", Err: err}
	}
	b.f = f
	return nil
}

func (b *darwinBackend) Release() error {
	path := b.identityPath()
	var err error
	if b.f != nil {
		err = b.f.Close()
		b.f = nil
	}
	if b.claimed {
		b.releaseDiskArbitration(path)
		b.claimed = false
	}
	return err
}

func (b *darwinBackend) identityPath() string {
	if b.f == nil {
		return ""
	}
	return b.f.Name()
}

func (b *darwinBackend) Identity() string {
	return b.identityPath()
}

func (b *darwinBackend) SendCDB(_ []byte, _ []byte, _ time.Duration) (int, error) {
	// The real IOKit/IOBlockStorageServices CDB transport requires cgo
	// bindings this module does not carry (no cgo bindings to IOKit appear
	// anywhere in the retrieved corpus). The acquisition lifecycle above
	// is fully modeled; callers needing an actual transport on this
	// platform must supply their own Backend to device.Open.
	return 0, &Error{Kind: KindUnsupportedCommand, Op: "send_cdb", Err: errors.New("no built-in darwin CDB transport")}
}

// claimDiskArbitration asks the disc-arbitration layer to unmount
// devicePath, retrying any diskutil failure every openRetryBackoff until
// openRetryWindow elapses.
func claimDiskArbitration(devicePath string) error {
	deadline := time.Now().Add(openRetryWindow)
	var lastErr error
	for {
		cmd := exec.Command("diskutil", "unmountDisk", devicePath) //nolint:gosec // devicePath is operator-supplied
		if out, err := cmd.CombinedOutput(); err != nil {
			lastErr = errors.New(string(out))
		} else {
			return nil
		}
		if time.Now().After(deadline) {
			return lastErr
		}
		time.Sleep(openRetryBackoff)
	}
}

func (b *darwinBackend) releaseDiskArbitration(devicePath string) {
	if devicePath == "" {
		return
	}
	_ = exec.Command("diskutil", "mountDisk", devicePath).Run() //nolint:gosec,errcheck // best-effort on release path
}
