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

package diskarchive

import (
	"fmt"
	"path/filepath"
	"strings"
)

// discImageExtensions are file extensions that indicate a disc image this
// module can identify without any header analysis: CHD (the only format
// discimage actually decodes) plus the raw/cue sidecar pair a from-text
// acquisition could also be pointed at once unwrapped from an archive.
var discImageExtensions = map[string]bool{
	".chd": true,
	".cue": true,
	".bin": true,
	".iso": true,
	".img": true,
}

// IsDiscImageFile reports whether filename has a recognized disc-image
// extension.
func IsDiscImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return discImageExtensions[ext]
}

// DetectDiscImage finds the first disc-image file in an archive, scanning
// its file list in listed order.
func DetectDiscImage(arc Archive) (string, error) {
	files, err := arc.List()
	if err != nil {
		return "", fmt.Errorf("list archive files: %w", err)
	}

	for _, file := range files {
		if IsDiscImageFile(file.Name) {
			return file.Name, nil
		}
	}

	return "", NoDiscImageError{}
}
