package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/database/repositories"
	"github.com/l3montree-dev/trustgraph/graph"
	"github.com/l3montree-dev/trustgraph/integrationtestutil"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/storage"
	"github.com/l3montree-dev/trustgraph/walker"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeIngester struct {
	mu     sync.Mutex
	calls  map[string]map[string]string
	failOn map[string]error
	warn   []string
}

func (f *fakeIngester) Ingest(ctx context.Context, format graph.DocumentFormat, data []byte, labels map[string]string) (*graph.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[labels["file"]]; ok {
		return nil, err
	}
	if f.calls == nil {
		f.calls = map[string]map[string]string{}
	}
	f.calls[labels["file"]] = labels
	return &graph.IngestResult{Kind: format.Kind(), Format: string(format), Warnings: f.warn}, nil
}

const osvDocument = `{"id": "GHSA-xxxx", "modified": "2024-01-01T00:00:00Z", "affected": []}`
const spdxDocument = `{"spdxVersion": "SPDX-2.3", "SPDXID": "SPDXRef-DOCUMENT"}`

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

func newTestService(t *testing.T, ingester Ingester, now time.Time) (*Service, *gorm.DB) {
	t.Helper()
	db := integrationtestutil.InitSQLiteDatabase(t)
	s := NewService(repositories.NewImporterRepository(db), ingester,
		WithWalkerSettings(WalkerSettings{Workers: 1, Backoff: walker.DefaultBackoff, FetchTimeout: time.Second}),
		WithWorkDir(t.TempDir()),
		WithClock(func() time.Time { return now }),
	)
	return s, db
}

func TestCreate(t *testing.T) {
	s, _ := newTestService(t, &fakeIngester{}, time.Now().UTC())
	ctx := context.Background()

	_, err := s.Create(ctx, Definition{Name: "osv", Source: SourceHTTP, Kind: graph.KindAdvisory, Configuration: Configuration{BaseURL: "https://example.com"}})
	require.NoError(t, err)

	tests := []struct {
		name       string
		definition Definition
	}{
		{"duplicate name", Definition{Name: "osv", Source: SourceHTTP, Kind: graph.KindAdvisory, Configuration: Configuration{BaseURL: "https://example.com"}}},
		{"missing name", Definition{Source: SourceHTTP, Kind: graph.KindAdvisory, Configuration: Configuration{BaseURL: "https://example.com"}}},
		{"unknown source", Definition{Name: "x", Source: "ftp", Kind: graph.KindAdvisory}},
		{"unknown kind", Definition{Name: "x", Source: SourceHTTP, Kind: graph.KindVulnerability, Configuration: Configuration{BaseURL: "https://example.com"}}},
		{"http without base url", Definition{Name: "x", Source: SourceHTTP, Kind: graph.KindAdvisory}},
		{"git without url or dir", Definition{Name: "x", Source: SourceGit, Kind: graph.KindAdvisory}},
		{"filesystem without root", Definition{Name: "x", Source: SourceFileSystem, Kind: graph.KindSbom}},
		{"unknown format", Definition{Name: "x", Source: SourceFileSystem, Kind: graph.KindSbom, Configuration: Configuration{Root: "/tmp", Format: "xml"}}},
		{"negative period", Definition{Name: "x", Source: SourceFileSystem, Kind: graph.KindSbom, Period: -time.Hour, Configuration: Configuration{Root: "/tmp"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.definition)
			assert.Equal(t, shared.KindValidation, shared.KindOf(err))
		})
	}

	importers, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, importers, 1)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("should ingest matching documents and skip the rest", func(t *testing.T) {
		ingester := &fakeIngester{warn: []string{"unknown license"}}
		s, _ := newTestService(t, ingester, now)
		root := t.TempDir()
		writeFiles(t, root, map[string]string{
			"a.json":      osvDocument,
			"b/c.json":    osvDocument,
			"sbom.json":   spdxDocument,
			"garbage.txt": "not a document",
		})
		_, err := s.Create(ctx, Definition{
			Name: "osv", Source: SourceFileSystem, Kind: graph.KindAdvisory,
			Configuration: Configuration{Root: root, Labels: map[string]string{"origin": "mirror"}},
		})
		require.NoError(t, err)

		report, err := s.Run(ctx, "osv")
		require.NoError(t, err)
		assert.Equal(t, 4, report.Discovered)
		assert.Equal(t, 2, report.Processed)
		assert.Equal(t, 2, report.Skipped)
		assert.Contains(t, report.Messages[walker.PhaseValidation], "sbom.json")
		assert.Contains(t, report.Messages[walker.PhaseValidation], "garbage.txt")
		assert.Equal(t, []string{"unknown license"}, report.Messages[walker.PhaseUpload]["a.json"])
		assert.Equal(t, map[string]string{"origin": "mirror", "importer": "osv", "file": "b/c.json"}, ingester.calls["b/c.json"])

		importer, err := s.Get(ctx, "osv")
		require.NoError(t, err)
		assert.Equal(t, models.ImporterStateWaiting, importer.State)
		assert.NotEmpty(t, importer.Continuation)
		assert.Nil(t, importer.LastError)
		require.NotNil(t, importer.LastSuccess)

		reports, err := s.Reports(ctx, "osv", 10)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		var stored walker.Report
		require.NoError(t, json.Unmarshal(reports[0].Report, &stored))
		assert.Equal(t, 2, stored.Skipped)

		// nothing changed since the last run
		report, err = s.Run(ctx, "osv")
		require.NoError(t, err)
		assert.Equal(t, 0, report.Discovered)
	})

	t.Run("should keep the continuation when persistence fails", func(t *testing.T) {
		ingester := &fakeIngester{failOn: map[string]error{
			"b.json": shared.PersistenceError(errors.New("connection reset")),
		}}
		s, _ := newTestService(t, ingester, now)
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"a.json": osvDocument, "b.json": osvDocument})
		_, err := s.Create(ctx, Definition{Name: "osv", Source: SourceFileSystem, Kind: graph.KindAdvisory, Configuration: Configuration{Root: root}})
		require.NoError(t, err)

		_, err = s.Run(ctx, "osv")
		var fatal *walker.FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, shared.KindPersistence, shared.KindOf(err))

		importer, err := s.Get(ctx, "osv")
		require.NoError(t, err)
		assert.Empty(t, importer.Continuation)
		require.NotNil(t, importer.LastError)
		assert.Equal(t, models.ImporterStateWaiting, importer.State)

		reports, err := s.Reports(ctx, "osv", 10)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.NotNil(t, reports[0].Error)
	})

	t.Run("should skip documents the graph rejects", func(t *testing.T) {
		ingester := &fakeIngester{failOn: map[string]error{
			"a.json": shared.ValidationErrorf("vulnerability without id"),
		}}
		s, _ := newTestService(t, ingester, now)
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"a.json": osvDocument})
		_, err := s.Create(ctx, Definition{Name: "osv", Source: SourceFileSystem, Kind: graph.KindAdvisory, Configuration: Configuration{Root: root, Format: "osv"}})
		require.NoError(t, err)

		report, err := s.Run(ctx, "osv")
		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
	})

	t.Run("should refuse a run while another one is active", func(t *testing.T) {
		s, db := newTestService(t, &fakeIngester{}, now)
		_, err := s.Create(ctx, Definition{Name: "osv", Source: SourceFileSystem, Kind: graph.KindAdvisory, Configuration: Configuration{Root: t.TempDir()}})
		require.NoError(t, err)
		require.NoError(t, db.Model(&models.Importer{}).Where("name = ?", "osv").Update("state", models.ImporterStateRunning).Error)

		_, err = s.Run(ctx, "osv")
		assert.ErrorIs(t, err, ErrAlreadyRunning)
	})

	t.Run("should report unknown importers", func(t *testing.T) {
		s, _ := newTestService(t, &fakeIngester{}, now)
		_, err := s.Run(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateDropsContinuation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t, &fakeIngester{}, time.Now().UTC())
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.json": osvDocument})
	definition := Definition{Name: "osv", Source: SourceFileSystem, Kind: graph.KindAdvisory, Configuration: Configuration{Root: root}}
	_, err := s.Create(ctx, definition)
	require.NoError(t, err)
	_, err = s.Run(ctx, "osv")
	require.NoError(t, err)

	definition.Period = time.Hour
	require.NoError(t, s.Update(ctx, definition))

	importer, err := s.Get(ctx, "osv")
	require.NoError(t, err)
	assert.Empty(t, importer.Continuation)
	assert.Equal(t, time.Hour, importer.Period)

	definition.Name = "missing"
	assert.ErrorIs(t, s.Update(ctx, definition), ErrNotFound)

	require.NoError(t, s.Delete(ctx, "osv"))
	assert.ErrorIs(t, s.Delete(ctx, "osv"), ErrNotFound)
}

func TestRunDue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ingester := &fakeIngester{}
	s, db := newTestService(t, ingester, now)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.json": osvDocument})

	for _, d := range []Definition{
		{Name: "due", Source: SourceFileSystem, Kind: graph.KindAdvisory, Period: time.Hour, Configuration: Configuration{Root: root}},
		{Name: "disabled", Source: SourceFileSystem, Kind: graph.KindAdvisory, Disabled: true, Configuration: Configuration{Root: root}},
		{Name: "stale", Source: SourceFileSystem, Kind: graph.KindAdvisory, Period: time.Hour, Configuration: Configuration{Root: root}},
		{Name: "recent", Source: SourceFileSystem, Kind: graph.KindAdvisory, Period: time.Hour, Configuration: Configuration{Root: root}},
	} {
		_, err := s.Create(ctx, d)
		require.NoError(t, err)
	}
	// a crashed run from yesterday and a successful run a minute ago
	require.NoError(t, db.Model(&models.Importer{}).Where("name = ?", "stale").Updates(map[string]any{
		"state": models.ImporterStateRunning, "last_run": now.Add(-24 * time.Hour),
	}).Error)
	require.NoError(t, db.Model(&models.Importer{}).Where("name = ?", "recent").Update("last_run", now.Add(-time.Minute)).Error)

	started, err := s.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, started)

	for name, ran := range map[string]bool{"due": true, "stale": true, "disabled": false, "recent": false} {
		reports, err := s.Reports(ctx, name, 10)
		require.NoError(t, err)
		assert.Equal(t, ran, len(reports) == 1, name)
	}

	// the period did not elapse yet
	started, err = s.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, started)
}

func TestDaemonStopsWithContext(t *testing.T) {
	s, _ := newTestService(t, &fakeIngester{}, time.Now().UTC())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, s.Daemon(ctx, 10*time.Millisecond))
}

func TestRunWithGraph(t *testing.T) {
	ctx := context.Background()
	db := integrationtestutil.InitSQLiteDatabase(t)
	blobs, err := storage.NewFileSystem(t.TempDir(), storage.CompressionNone)
	require.NoError(t, err)
	g := graph.New(db, blobs)
	s := NewService(repositories.NewImporterRepository(db), g,
		WithWalkerSettings(WalkerSettings{Workers: 1, Backoff: walker.DefaultBackoff, FetchTimeout: time.Second}))

	root := t.TempDir()
	data, err := os.ReadFile("../advisory/testdata/osv-ghsa.json")
	require.NoError(t, err)
	writeFiles(t, root, map[string]string{"osv/ghsa.json": string(data)})

	_, err = s.Create(ctx, Definition{Name: "osv", Source: SourceFileSystem, Kind: graph.KindAdvisory, Configuration: Configuration{Root: root, Globs: []string{"osv/*.json"}}})
	require.NoError(t, err)

	report, err := s.Run(ctx, "osv")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)

	var advisories []models.Advisory
	require.NoError(t, db.Find(&advisories).Error)
	require.Len(t, advisories, 1)
	assert.Equal(t, "osv", advisories[0].Labels["importer"])
	assert.Equal(t, "osv/ghsa.json", advisories[0].Labels["file"])
}
