package walker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	entries      []Entry
	next         json.RawMessage
	discoverErr  error
	files        map[string][]byte
	fetchErr     map[string]error
	fetchCalls   sync.Map
	continuation json.RawMessage
}

func (s *fakeSource) Discover(ctx context.Context, continuation json.RawMessage) ([]Entry, json.RawMessage, error) {
	s.continuation = continuation
	if s.discoverErr != nil {
		return nil, nil, s.discoverErr
	}
	return s.entries, s.next, nil
}

func (s *fakeSource) Fetch(ctx context.Context, entry Entry) ([]byte, error) {
	calls, _ := s.fetchCalls.LoadOrStore(entry.Path, new(atomic.Int32))
	calls.(*atomic.Int32).Add(1)
	if err, ok := s.fetchErr[entry.Path]; ok {
		return nil, err
	}
	return s.files[entry.Path], nil
}

func (s *fakeSource) calls(path string) int {
	calls, ok := s.fetchCalls.Load(path)
	if !ok {
		return 0
	}
	return int(calls.(*atomic.Int32).Load())
}

func newFakeSource(paths ...string) *fakeSource {
	s := &fakeSource{files: map[string][]byte{}, fetchErr: map[string]error{}, next: json.RawMessage(`"next"`)}
	for _, p := range paths {
		s.entries = append(s.entries, Entry{Path: p})
		s.files[p] = []byte("content of " + p)
	}
	return s
}

var fastBackoff = BackoffConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond}

func TestRun(t *testing.T) {
	t.Run("should process every file and return the next continuation", func(t *testing.T) {
		source := newFakeSource("a.json", "b.json", "c.json")
		w := Walker{Source: source, Workers: 2}

		var mu sync.Mutex
		seen := map[string]string{}
		result, err := w.Run(context.Background(), json.RawMessage(`"prev"`), func(ctx context.Context, file File) error {
			mu.Lock()
			defer mu.Unlock()
			seen[file.Path] = string(file.Data)
			return nil
		})
		require.NoError(t, err)

		assert.Equal(t, `"prev"`, string(source.continuation))
		assert.Equal(t, `"next"`, string(result.Continuation))
		assert.Len(t, seen, 3)
		assert.Equal(t, "content of b.json", seen["b.json"])
		assert.Equal(t, 3, result.Report.Discovered)
		assert.Equal(t, 3, result.Report.Processed)
		assert.Equal(t, 0, result.Report.Skipped)
		assert.False(t, result.Report.HasMessages())
		assert.False(t, result.Report.Finished.Before(result.Report.Started))
	})

	t.Run("should record skipped files and warnings by phase", func(t *testing.T) {
		source := newFakeSource("good.json", "broken.json", "noisy.json")
		w := Walker{Source: source, Workers: 1}

		result, err := w.Run(context.Background(), nil, func(ctx context.Context, file File) error {
			switch file.Path {
			case "broken.json":
				return Skip(PhaseValidation, errors.New("not a document"))
			case "noisy.json":
				return Warn(PhaseUpload, []string{"dangling edge"})
			}
			return nil
		})
		require.NoError(t, err)

		assert.Equal(t, `"next"`, string(result.Continuation))
		assert.Equal(t, 2, result.Report.Processed)
		assert.Equal(t, 1, result.Report.Skipped)
		assert.Equal(t, []string{"not a document"}, result.Report.Messages[PhaseValidation]["broken.json"])
		assert.Equal(t, []string{"dangling edge"}, result.Report.Messages[PhaseUpload]["noisy.json"])
	})

	t.Run("should keep the previous continuation after a fatal error", func(t *testing.T) {
		source := newFakeSource("a.json", "b.json")
		w := Walker{Source: source, Workers: 1}

		result, err := w.Run(context.Background(), json.RawMessage(`"prev"`), func(ctx context.Context, file File) error {
			if file.Path == "b.json" {
				return Fatal(errors.New("database is gone"))
			}
			return nil
		})
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, `"prev"`, string(result.Continuation))
		assert.Equal(t, 1, result.Report.Processed)
	})

	t.Run("should treat unclassified errors as fatal", func(t *testing.T) {
		source := newFakeSource("a.json")
		w := Walker{Source: source}

		result, err := w.Run(context.Background(), nil, func(ctx context.Context, file File) error {
			return errors.New("boom")
		})
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Nil(t, result.Continuation)
	})

	t.Run("should fail when discovery fails", func(t *testing.T) {
		source := newFakeSource()
		source.discoverErr = errors.New("unreachable")
		w := Walker{Source: source}

		result, err := w.Run(context.Background(), json.RawMessage(`"prev"`), func(ctx context.Context, file File) error {
			t.Fatal("no file expected")
			return nil
		})
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, `"prev"`, string(result.Continuation))
	})

	t.Run("should stop on cancellation", func(t *testing.T) {
		source := newFakeSource("a.json", "b.json", "c.json")
		w := Walker{Source: source, Workers: 1}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		result, err := w.Run(ctx, json.RawMessage(`"prev"`), func(ctx context.Context, file File) error {
			cancel()
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, `"prev"`, string(result.Continuation))
		assert.Less(t, result.Report.Processed, 3)
	})

	t.Run("should retry retryable fetch failures and skip the file once exhausted", func(t *testing.T) {
		source := newFakeSource("flaky.json", "ok.json")
		source.fetchErr["flaky.json"] = shared.StorageError(errors.New("503"), true)
		w := Walker{Source: source, Workers: 1, Retries: 2, Backoff: fastBackoff}

		result, err := w.Run(context.Background(), nil, func(ctx context.Context, file File) error {
			return nil
		})
		require.NoError(t, err)

		assert.Equal(t, 3, source.calls("flaky.json"))
		assert.Equal(t, 1, source.calls("ok.json"))
		assert.Equal(t, 1, result.Report.Processed)
		assert.Equal(t, 1, result.Report.Skipped)
		assert.Len(t, result.Report.Messages[PhaseRetrieval]["flaky.json"], 1)
		assert.Equal(t, `"next"`, string(result.Continuation))
	})

	t.Run("should not retry permanent fetch failures", func(t *testing.T) {
		source := newFakeSource("missing.json")
		source.fetchErr["missing.json"] = shared.StorageError(errors.New("404"), false)
		w := Walker{Source: source, Retries: 5, Backoff: fastBackoff}

		result, err := w.Run(context.Background(), nil, func(ctx context.Context, file File) error {
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, source.calls("missing.json"))
		assert.Equal(t, 1, result.Report.Skipped)
	})
}

func TestReportMarshal(t *testing.T) {
	b := newReportBuilder(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b.discovered(2)
	b.processed()
	b.skip(PhaseValidation, "a.json", errors.New("invalid"))
	report := b.finish(time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))

	var decoded Report
	require.NoError(t, json.Unmarshal(report.Marshal(), &decoded))
	assert.Equal(t, report, decoded)
	assert.Contains(t, string(report.Marshal()), `"validation":{"a.json":["invalid"]}`)
}

func TestHTTPSource(t *testing.T) {
	var changesRequests atomic.Int32
	var flakyRequests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/changes.csv":
			changesRequests.Add(1)
			if r.Header.Get("If-None-Match") == `"v1"` {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("ETag", `"v1"`)
			fmt.Fprintln(w, "2024/a.json,2024-01-01T10:00:00Z")
			fmt.Fprintln(w, "2024/b.json,2024-02-01T10:00:00Z")
			fmt.Fprintln(w, "2024/flaky.json,2024-03-01T10:00:00Z")
		case "/2024/a.json":
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"a":1}`)
		case "/2024/b.json":
			fmt.Fprint(w, `{"b":1}`)
		case "/2024/flaky.json":
			flakyRequests.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	t.Run("should list files newer than the continuation", func(t *testing.T) {
		source := NewHTTPSource(server.URL, "secret", 5*time.Second)
		last := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
		continuation, err := json.Marshal(httpContinuation{LastModified: &last})
		require.NoError(t, err)

		entries, next, err := source.Discover(context.Background(), continuation)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "2024/b.json", entries[0].Path)
		assert.Equal(t, "2024/flaky.json", entries[1].Path)

		var decoded httpContinuation
		require.NoError(t, json.Unmarshal(next, &decoded))
		assert.Equal(t, `"v1"`, decoded.ETag)
		assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *decoded.LastModified)
	})

	t.Run("should return nothing when the listing did not change", func(t *testing.T) {
		source := NewHTTPSource(server.URL, "", 5*time.Second)
		continuation := json.RawMessage(`{"etag":"\"v1\""}`)
		entries, next, err := source.Discover(context.Background(), continuation)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Equal(t, string(continuation), string(next))
	})

	t.Run("should walk the source with retries", func(t *testing.T) {
		flakyRequests.Store(0)
		w := Walker{Source: NewHTTPSource(server.URL, "secret", 5*time.Second), Workers: 2, Retries: 1, Backoff: fastBackoff}

		var mu sync.Mutex
		seen := map[string]string{}
		result, err := w.Run(context.Background(), nil, func(ctx context.Context, file File) error {
			mu.Lock()
			defer mu.Unlock()
			seen[file.Path] = string(file.Data)
			return nil
		})
		require.NoError(t, err)

		assert.Equal(t, map[string]string{"2024/a.json": `{"a":1}`, "2024/b.json": `{"b":1}`}, seen)
		assert.Equal(t, int32(2), flakyRequests.Load())
		assert.Equal(t, 1, result.Report.Skipped)
		assert.Contains(t, result.Report.Messages[PhaseRetrieval], "2024/flaky.json")
	})

	t.Run("should fail on a broken listing", func(t *testing.T) {
		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, "a.json,yesterday")
		}))
		defer broken.Close()

		_, _, err := NewHTTPSource(broken.URL, "", time.Second).Discover(context.Background(), nil)
		assert.Equal(t, shared.KindParse, shared.KindOf(err))
	})
}

func commitFiles(t *testing.T, repo *git.Repository, dir string, files map[string]string) string {
	t.Helper()
	w, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		_, err := w.Add(name)
		require.NoError(t, err)
	}
	hash, err := w.Commit("update", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestGitSource(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	first := commitFiles(t, repo, dir, map[string]string{
		"advisories/2024/a.json": `{"a":1}`,
		"advisories/2024/b.json": `{"b":1}`,
		"README.md":              "docs",
	})

	source := &GitSource{Dir: dir, Globs: []string{"advisories/**/*.json"}}
	entries, continuation, err := source.Discover(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0].Revision)
	assert.JSONEq(t, fmt.Sprintf(`{"commit":%q}`, first), string(continuation))

	data, err := source.Fetch(context.Background(), entries[0])
	require.NoError(t, err)
	assert.Contains(t, []string{`{"a":1}`, `{"b":1}`}, string(data))

	t.Run("should return nothing for an unchanged head", func(t *testing.T) {
		entries, next, err := source.Discover(context.Background(), continuation)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Equal(t, string(continuation), string(next))
	})

	t.Run("should only list files changed since the continuation", func(t *testing.T) {
		second := commitFiles(t, repo, dir, map[string]string{
			"advisories/2024/b.json": `{"b":2}`,
			"advisories/2024/c.json": `{"c":1}`,
			"README.md":              "more docs",
		})

		entries, _, err := source.Discover(context.Background(), continuation)
		require.NoError(t, err)
		paths := make([]string, 0, len(entries))
		for _, e := range entries {
			paths = append(paths, e.Path)
			assert.Equal(t, second, e.Revision)
		}
		assert.ElementsMatch(t, []string{"advisories/2024/b.json", "advisories/2024/c.json"}, paths)

		data, err := source.Fetch(context.Background(), Entry{Path: "advisories/2024/b.json", Revision: second})
		require.NoError(t, err)
		assert.Equal(t, `{"b":2}`, string(data))
		// the old revision is still readable
		data, err = source.Fetch(context.Background(), Entry{Path: "advisories/2024/b.json", Revision: first})
		require.NoError(t, err)
		assert.Equal(t, `{"b":1}`, string(data))
	})

	t.Run("should list every file when the continuation commit is unknown", func(t *testing.T) {
		entries, _, err := source.Discover(context.Background(), json.RawMessage(`{"commit":"0123456789abcdef0123456789abcdef01234567"}`))
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})
}

func TestFileSystemSource(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, modified time.Time) {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o600))
		require.NoError(t, os.Chtimes(path, modified, modified))
	}
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	write("sboms/a.spdx.json", jan)
	write("sboms/nested/b.cdx.json", feb)
	write("notes.txt", feb)

	source := &FileSystemSource{Root: dir, Globs: []string{"sboms/**/*.json"}}
	entries, continuation, err := source.Discover(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "sboms/a.spdx.json", entries[0].Path)
	assert.Equal(t, "sboms/nested/b.cdx.json", entries[1].Path)

	data, err := source.Fetch(context.Background(), entries[1])
	require.NoError(t, err)
	assert.Equal(t, "sboms/nested/b.cdx.json", string(data))

	entries, _, err = source.Discover(context.Background(), continuation)
	require.NoError(t, err)
	assert.Empty(t, entries)

	write("sboms/c.spdx.json", feb.Add(time.Hour))
	entries, _, err = source.Discover(context.Background(), continuation)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sboms/c.spdx.json", entries[0].Path)

	_, err = source.Fetch(context.Background(), Entry{Path: "../outside"})
	assert.Equal(t, shared.KindStorage, shared.KindOf(err))
}
