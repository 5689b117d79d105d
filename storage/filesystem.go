// Copyright (C) 2026 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package storage keeps the raw source documents next to the graph. Blobs
// are addressed by the hex SHA-256 of their uncompressed content, so storing
// the same document twice is a no-op.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

type Compression int

const (
	CompressionNone Compression = iota
	CompressionXZ
)

func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "xz":
		return CompressionXZ, nil
	}
	return CompressionNone, errors.Errorf("unknown compression %q", s)
}

const xzSuffix = ".xz"

var keyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// FileSystem stores blobs below root in a two level fan out directory
// layout: root/ab/cd/abcd....
type FileSystem struct {
	root        string
	compression Compression
}

func NewFileSystem(root string, compression Compression) (*FileSystem, error) {
	if err := os.MkdirAll(filepath.Join(root, "tmp"), 0o755); err != nil {
		return nil, shared.StorageError(errors.Wrap(err, "could not create storage directory"), false)
	}
	return &FileSystem{root: root, compression: compression}, nil
}

func (f *FileSystem) path(key string) string {
	return filepath.Join(f.root, key[0:2], key[2:4], key)
}

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return shared.StorageError(errors.Errorf("invalid blob key %q", key), false)
	}
	return nil
}

// Store writes r to a temp file while hashing it and moves the file into
// place once the key is known.
func (f *FileSystem) Store(ctx context.Context, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(filepath.Join(f.root, "tmp"), "blob-*")
	if err != nil {
		return "", shared.StorageError(errors.Wrap(err, "could not create temp file"), true)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck

	key, err := f.write(ctx, tmp, r)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = shared.StorageError(errors.Wrap(closeErr, "could not close temp file"), true)
	}
	if err != nil {
		return "", err
	}

	dest := f.path(key)
	if f.compression == CompressionXZ {
		dest += xzSuffix
	}
	if _, err := os.Stat(dest); err == nil {
		slog.Debug("blob already stored", "key", key)
		return key, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", shared.StorageError(errors.Wrap(err, "could not create blob directory"), true)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", shared.StorageError(errors.Wrap(err, "could not move blob into place"), true)
	}
	return key, nil
}

func (f *FileSystem) write(ctx context.Context, tmp *os.File, r io.Reader) (string, error) {
	hasher := sha256.New()
	var out io.Writer = tmp
	var xzWriter *xz.Writer
	if f.compression == CompressionXZ {
		w, err := xz.NewWriter(tmp)
		if err != nil {
			return "", shared.StorageError(errors.Wrap(err, "could not create xz writer"), false)
		}
		xzWriter = w
		out = w
	}

	if _, err := io.Copy(io.MultiWriter(hasher, out), contextReader{ctx: ctx, r: r}); err != nil {
		if shared.IsCanceled(err) {
			return "", err
		}
		return "", shared.StorageError(errors.Wrap(err, "could not write blob"), true)
	}
	if xzWriter != nil {
		if err := xzWriter.Close(); err != nil {
			return "", shared.StorageError(errors.Wrap(err, "could not finish xz stream"), true)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Retrieve opens the blob. Blobs written with either compression setting
// are found, so the setting can change between runs.
func (f *FileSystem) Retrieve(ctx context.Context, key string) (io.ReadCloser, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	base := f.path(key)

	file, err := os.Open(base + xzSuffix)
	if err == nil {
		r, err := xz.NewReader(file)
		if err != nil {
			file.Close()
			return nil, false, shared.StorageError(errors.Wrapf(err, "could not read blob %s", key), false)
		}
		return readCloser{Reader: r, Closer: file}, true, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, shared.StorageError(errors.Wrapf(err, "could not open blob %s", key), true)
	}

	file, err = os.Open(base)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, shared.StorageError(errors.Wrapf(err, "could not open blob %s", key), true)
	}
	return file, true, nil
}

func (f *FileSystem) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	base := f.path(key)
	for _, p := range []string{base, base + xzSuffix} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return shared.StorageError(errors.Wrapf(err, "could not delete blob %s", key), true)
		}
	}
	return nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
