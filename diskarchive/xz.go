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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// XZArchive adapts a standalone .xz stream to the Archive interface. Unlike
// ZIP/7z/RAR, XZ has no container directory: the file wraps exactly one
// member, named after the .xz file with the suffix stripped.
type XZArchive struct {
	path string
	name string
	size int64
}

// OpenXZ opens a standalone XZ-compressed file. The member name is the file
// name without its extension; the stream is decompressed once to learn the
// member's uncompressed size.
func OpenXZ(path string) (*XZArchive, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("open XZ file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open XZ stream: %w", err)
	}
	size, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, fmt.Errorf("scan XZ stream: %w", err)
	}

	return &XZArchive{
		path: path,
		name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		size: size,
	}, nil
}

// List reports the single member the XZ stream wraps.
func (xa *XZArchive) List() ([]FileInfo, error) {
	return []FileInfo{{Name: xa.name, Size: xa.size}}, nil
}

// Open decompresses the stream if internalPath names the single member
// (compared case-insensitively); any other name yields FileNotFoundError.
func (xa *XZArchive) Open(internalPath string) (io.ReadCloser, int64, error) {
	if !strings.EqualFold(internalPath, xa.name) {
		return nil, 0, FileNotFoundError{Archive: xa.path, InternalPath: internalPath}
	}
	f, err := os.Open(xa.path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return nil, 0, fmt.Errorf("open XZ file: %w", err)
	}
	r, err := xz.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("open XZ stream: %w", err)
	}
	return &xzReadCloser{r: r, f: f}, xa.size, nil
}

// OpenReaderAt buffers the decompressed member in memory for random access.
//
//nolint:revive // 4 return values is necessary for this interface pattern
func (xa *XZArchive) OpenReaderAt(internalPath string) (io.ReaderAt, int64, io.Closer, error) {
	return bufferFile(xa, internalPath)
}

// Close is a no-op: OpenXZ does not keep the underlying file open between calls.
func (xa *XZArchive) Close() error { return nil }

type xzReadCloser struct {
	r io.Reader
	f *os.File
}

func (x *xzReadCloser) Read(p []byte) (int, error) { return x.r.Read(p) }

func (x *xzReadCloser) Close() error {
	return x.f.Close() //nolint:wrapcheck // Close error passthrough is intentional
}
