package walker

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
)

type fileSystemContinuation struct {
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// FileSystemSource walks files below Root that were modified after the
// continuation.
type FileSystemSource struct {
	Root  string
	Globs []string
}

func (s *FileSystemSource) globs() []string {
	if len(s.Globs) == 0 {
		return []string{"**"}
	}
	return s.Globs
}

func (s *FileSystemSource) Discover(ctx context.Context, continuation json.RawMessage) ([]Entry, json.RawMessage, error) {
	var last fileSystemContinuation
	if len(continuation) > 0 {
		if err := json.Unmarshal(continuation, &last); err != nil {
			return nil, nil, errors.Wrap(err, "could not read filesystem continuation")
		}
	}

	fsys := os.DirFS(s.Root)
	seen := map[string]bool{}
	next := last
	var entries []Entry
	for _, glob := range s.globs() {
		err := doublestar.GlobWalk(fsys, glob, func(path string, d fs.DirEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || seen[path] {
				return nil
			}
			seen[path] = true
			info, err := d.Info()
			if err != nil {
				return err
			}
			modified := info.ModTime().UTC()
			if last.LastModified != nil && !modified.After(*last.LastModified) {
				return nil
			}
			entries = append(entries, Entry{Path: path, Modified: &modified})
			if next.LastModified == nil || modified.After(*next.LastModified) {
				next.LastModified = &modified
			}
			return nil
		}, doublestar.WithFilesOnly())
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return nil, nil, shared.StorageError(errors.Wrapf(err, "could not walk %s", s.Root), false)
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Path, b.Path)
	})

	data, err := json.Marshal(next)
	return entries, data, err
}

func (s *FileSystemSource) Fetch(ctx context.Context, entry Entry) ([]byte, error) {
	if !filepath.IsLocal(filepath.FromSlash(entry.Path)) {
		return nil, shared.StorageError(errors.Errorf("path %s leaves the root", entry.Path), false)
	}
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(entry.Path)))
	if err != nil {
		return nil, shared.StorageError(errors.Wrapf(err, "could not read %s", entry.Path), false)
	}
	return data, nil
}
