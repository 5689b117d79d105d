//go:build integration

package graph

import (
	"context"
	"testing"

	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/integrationtestutil"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestConcurrentIngestionOnPostgres ingests overlapping documents in
// parallel. Shared purls and vulnerabilities are inserted by several
// transactions at once, which must neither fail nor duplicate rows.
func TestConcurrentIngestionOnPostgres(t *testing.T) {
	db, terminate := integrationtestutil.InitDatabaseContainer()
	defer terminate()
	blobs, err := storage.NewFileSystem(t.TempDir(), storage.CompressionNone)
	require.NoError(t, err)
	g := New(db, blobs, WithRetries(5))
	ctx := context.Background()

	documents := [][]byte{
		readTestdata(t, "../sbom/testdata/cyclonedx.json"),
		readTestdata(t, "../sbom/testdata/spdx-dangling.json"),
		readTestdata(t, "../advisory/testdata/osv-ghsa.json"),
		readTestdata(t, "../advisory/testdata/csaf-vex.json"),
		vexDocument("known_affected", "2024-02-01T00:00:00Z"),
		vexDocument("fixed", "2024-03-01T00:00:00Z"),
	}

	var group errgroup.Group
	for range 3 {
		for _, doc := range documents {
			group.Go(func() error {
				_, err := g.Ingest(ctx, FormatAuto, doc, nil)
				return err
			})
		}
	}
	require.NoError(t, group.Wait())

	assert.Equal(t, int64(len(documents)), count[models.SourceDocument](t, db))
	assert.Equal(t, int64(2), count[models.Sbom](t, db))

	matches, err := g.PurlStatuses(ctx, normalize.MustParsePurl("pkg:pypi/demo@1.1.0"), dtos.StatusQuery{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fixed", matches[0].Status)
}

// TestConcurrentAdvisoryVersionsOnPostgres ingests several versions of one
// advisory at once. Exactly the most recent one stays current.
func TestConcurrentAdvisoryVersionsOnPostgres(t *testing.T) {
	db, terminate := integrationtestutil.InitDatabaseContainer()
	defer terminate()
	blobs, err := storage.NewFileSystem(t.TempDir(), storage.CompressionNone)
	require.NoError(t, err)
	g := New(db, blobs, WithRetries(5))
	ctx := context.Background()

	modified := []string{
		"2024-02-01T00:00:00Z",
		"2024-03-01T00:00:00Z",
		"2024-04-01T00:00:00Z",
		"2024-05-01T00:00:00Z",
		"2024-06-01T00:00:00Z",
	}
	var group errgroup.Group
	for _, m := range modified {
		group.Go(func() error {
			_, err := g.Ingest(ctx, FormatAuto, vexDocument("known_affected", m), nil)
			return err
		})
	}
	require.NoError(t, group.Wait())

	var current []models.Advisory
	require.NoError(t, db.Where("identifier = ? AND deprecated = ?", "ACME-2024-0001", false).Find(&current).Error)
	require.Len(t, current, 1)
	require.NotNil(t, current[0].Modified)
	assert.Equal(t, "2024-06-01", current[0].Modified.UTC().Format("2006-01-02"))
	assert.Equal(t, int64(len(modified)), count[models.Advisory](t, db))
}
