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

package idengine

import "github.com/cdtoc/discid/toc"

type trackSpec struct {
	num    int
	offset int
	data   bool
}

func buildToc(specs []trackSpec, audioLeadout, discLeadout, lastSession int) *toc.Toc {
	tracks := make([]toc.Track, 0, len(specs))
	for _, s := range specs {
		control := byte(0)
		if s.data {
			control = toc.ControlDataTrack
		}
		tracks = append(tracks, toc.Track{Number: s.num, Session: 1, Offset: s.offset, Control: control})
	}
	tc := toc.Build(tracks, discLeadout, lastSession)
	tc.AudioLeadout = audioLeadout
	return tc
}

func specsFromTracks(tracks []toc.Track) []trackSpec {
	out := make([]trackSpec, 0, len(tracks))
	for _, tr := range tracks {
		out = append(out, trackSpec{num: tr.Number, offset: tr.Offset, data: tr.IsData()})
	}
	return out
}
