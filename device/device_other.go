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

//go:build !linux && !darwin

package device

import (
	"errors"
	"time"
)

// stubBackend is used on platforms with no built-in raw-SCSI transport in
// this module (Windows, BSDs, ...). Callers on those platforms supply
// their own Backend to Open; the from-device path is not expected to work
// out of the box there, matching spec §4.1's "no platform identifier
// leaks into the core" -- the core still compiles and the from-text and
// from-image paths are unaffected.
type stubBackend struct{}

func newPlatformBackend() Backend {
	return &stubBackend{}
}

func (*stubBackend) Acquire(string) error {
	return &Error{Kind: KindUnsupportedCommand, Op: "acquire", Err: errors.New("no built-in backend on this platform")}
}

func (*stubBackend) Release() error { return nil }

func (*stubBackend) Identity() string { return "" }

func (*stubBackend) SendCDB([]byte, []byte, time.Duration) (int, error) {
	return 0, &Error{Kind: KindUnsupportedCommand, Op: "send_cdb", Err: errors.New("no built-in backend on this platform")}
}
