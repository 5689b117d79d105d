// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package walker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
)

type gitContinuation struct {
	Commit string `json:"commit"`
}

// GitSource walks the files of a git repository. With a URL the repository
// is cloned into Dir on the first run and pulled afterwards, without one
// Dir must already hold a repository.
type GitSource struct {
	URL    string
	Branch string
	Dir    string
	// Globs select the files to walk. No globs select every file.
	Globs []string
	// Token authenticates against the remote over https.
	Token string

	mu   sync.Mutex
	repo *git.Repository
}

func (s *GitSource) auth() *http.BasicAuth {
	if s.Token == "" {
		return nil
	}
	// the user name is ignored by the common forges but must not be empty
	return &http.BasicAuth{Username: "trustgraph", Password: s.Token}
}

func (s *GitSource) open(ctx context.Context) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.Dir)
	if errors.Is(err, git.ErrRepositoryNotExists) && s.URL != "" {
		opts := &git.CloneOptions{URL: s.URL, SingleBranch: true}
		if auth := s.auth(); auth != nil {
			opts.Auth = auth
		}
		if s.Branch != "" {
			opts.ReferenceName = plumbing.NewBranchReferenceName(s.Branch)
		}
		slog.Info("cloning repository", "url", s.URL, "dir", s.Dir)
		repo, err = git.PlainCloneContext(ctx, s.Dir, false, opts)
		if err != nil {
			return nil, shared.StorageError(errors.Wrap(err, "could not clone repository"), true)
		}
		return repo, nil
	}
	if err != nil {
		return nil, shared.StorageError(errors.Wrapf(err, "could not open repository %s", s.Dir), false)
	}
	if s.URL == "" {
		return repo, nil
	}

	w, err := repo.Worktree()
	if err != nil {
		return nil, shared.StorageError(errors.Wrap(err, "could not open worktree"), false)
	}
	opts := &git.PullOptions{RemoteName: "origin", SingleBranch: true, Force: true}
	if auth := s.auth(); auth != nil {
		opts.Auth = auth
	}
	if s.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(s.Branch)
	}
	if err := w.PullContext(ctx, opts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, shared.StorageError(errors.Wrap(err, "could not pull repository"), true)
	}
	return repo, nil
}

func (s *GitSource) selected(path string) bool {
	if len(s.Globs) == 0 {
		return true
	}
	for _, glob := range s.Globs {
		if ok, err := doublestar.Match(glob, path); err == nil && ok {
			return true
		}
	}
	return false
}

// Discover diffs the head commit against the commit of the continuation.
// When that commit is unknown, for example after a force push, every file
// is listed again.
func (s *GitSource) Discover(ctx context.Context, continuation json.RawMessage) ([]Entry, json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.repo = repo

	head, err := repo.Head()
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not resolve head")
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not load head commit")
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not load head tree")
	}
	next, err := json.Marshal(gitContinuation{Commit: head.Hash().String()})
	if err != nil {
		return nil, nil, err
	}

	var last gitContinuation
	if len(continuation) > 0 {
		if err := json.Unmarshal(continuation, &last); err != nil {
			return nil, nil, errors.Wrap(err, "could not read git continuation")
		}
	}

	revision := head.Hash().String()
	if last.Commit == revision {
		return nil, next, nil
	}
	if last.Commit != "" {
		if previous, err := repo.CommitObject(plumbing.NewHash(last.Commit)); err == nil {
			entries, err := s.changedSince(ctx, previous, tree, revision)
			return entries, next, err
		}
		slog.Warn("commit of the continuation is gone, walking every file", "commit", last.Commit)
	}

	var entries []Entry
	err = tree.Files().ForEach(func(f *object.File) error {
		if s.selected(f.Name) {
			entries = append(entries, Entry{Path: f.Name, Revision: revision})
		}
		return nil
	})
	return entries, next, errors.Wrap(err, "could not list files")
}

func (s *GitSource) changedSince(ctx context.Context, previous *object.Commit, tree *object.Tree, revision string) ([]Entry, error) {
	previousTree, err := previous.Tree()
	if err != nil {
		return nil, errors.Wrap(err, "could not load previous tree")
	}
	changes, err := previousTree.DiffContext(ctx, tree)
	if err != nil {
		return nil, errors.Wrap(err, "could not diff trees")
	}
	var entries []Entry
	for _, change := range changes {
		// deleted files have no target
		path := change.To.Name
		if path == "" || !s.selected(path) {
			continue
		}
		entries = append(entries, Entry{Path: path, Revision: revision})
	}
	return entries, nil
}

// Fetch reads the file as of the discovered revision, so a concurrent pull
// cannot mix states.
func (s *GitSource) Fetch(ctx context.Context, entry Entry) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo == nil {
		return nil, errors.New("fetch before discover")
	}
	commit, err := s.repo.CommitObject(plumbing.NewHash(entry.Revision))
	if err != nil {
		return nil, errors.Wrapf(err, "could not load commit %s", entry.Revision)
	}
	f, err := commit.File(entry.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not find %s", entry.Path)
	}
	r, err := f.Reader()
	if err != nil {
		return nil, shared.StorageError(errors.Wrapf(err, "could not open %s", entry.Path), false)
	}
	defer r.Close()
	return io.ReadAll(r)
}
