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

package device

import "os"

// probeOpen is the OS-agnostic half of the post-Close device-node poll: it
// just checks the node can be opened again. Platform backends that need a
// richer check (e.g. waiting for a volume to remount) can still rely on
// this as the baseline.
func probeOpen(devicePath string) bool {
	f, err := os.Open(devicePath) //nolint:gosec // device path is operator-supplied, not user HTTP input
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
