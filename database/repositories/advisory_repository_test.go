package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/integrationtestutil"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareRecency(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	assert.Negative(t, compareRecency(models.Advisory{Modified: &newer}, models.Advisory{Modified: &older}))
	assert.Negative(t, compareRecency(models.Advisory{Modified: &older}, models.Advisory{}))
	assert.Negative(t, compareRecency(models.Advisory{IngestedAt: newer}, models.Advisory{IngestedAt: older}))
	assert.Zero(t, compareRecency(models.Advisory{Sha256: "a"}, models.Advisory{Sha256: "a"}))
}

func TestRecomputeDeprecation(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	repo := NewAdvisoryRepository(db)
	ctx := context.Background()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	a := models.Advisory{ID: uuid.New(), Identifier: "RHSA-2024:0001", Sha256: "a", Format: "csaf", Modified: &first, IngestedAt: second}
	b := models.Advisory{ID: uuid.New(), Identifier: "RHSA-2024:0001", Sha256: "b", Format: "csaf", Modified: &second, IngestedAt: first}
	require.NoError(t, repo.Create(ctx, nil, &a))
	require.NoError(t, repo.Create(ctx, nil, &b))
	require.NoError(t, repo.RecomputeDeprecation(ctx, nil, "RHSA-2024:0001"))

	latest, err := repo.Latest(ctx, nil, "RHSA-2024:0001")
	require.NoError(t, err)
	assert.Equal(t, b.ID, latest.ID)

	reloaded, err := repo.FindByID(ctx, nil, a.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Deprecated)

	require.NoError(t, repo.Delete(ctx, nil, b.ID))
	require.NoError(t, repo.RecomputeDeprecation(ctx, nil, "RHSA-2024:0001"))
	reloaded, err = repo.FindByID(ctx, nil, a.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Deprecated)
}

func TestCreateIfAbsent(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	repo := NewAdvisoryRepository(db)
	ctx := context.Background()

	a := models.Advisory{ID: uuid.New(), Identifier: "GHSA-xxxx", Sha256: "a", Format: "osv", IngestedAt: time.Now().UTC()}
	created, err := repo.CreateIfAbsent(ctx, nil, &a)
	require.NoError(t, err)
	assert.True(t, created)

	again := a
	again.Identifier = "GHSA-yyyy"
	created, err = repo.CreateIfAbsent(ctx, nil, &again)
	require.NoError(t, err, "an existing primary key is not an error")
	assert.False(t, created)

	stored, err := repo.FindByID(ctx, nil, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "GHSA-xxxx", stored.Identifier)
}

func TestUpsertVulnerability(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	repo := NewAdvisoryRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertVulnerability(ctx, nil, models.Vulnerability{ID: "CVE-2024-1", Title: utils.Ptr("first")}))
	require.NoError(t, repo.UpsertVulnerability(ctx, nil, models.Vulnerability{ID: "CVE-2024-1"}))

	v, err := repo.FindVulnerability(ctx, nil, "CVE-2024-1")
	require.NoError(t, err)
	assert.Equal(t, "first", *v.Title)

	missing, err := repo.FindVulnerability(ctx, nil, "CVE-2024-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
