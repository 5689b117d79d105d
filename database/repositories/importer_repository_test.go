package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/integrationtestutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImporterLifecycle(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	repo := NewImporterRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	importer := models.Importer{
		Name:       "osv",
		Source:     "git",
		Kind:       "advisory",
		Period:     time.Hour,
		State:      models.ImporterStateWaiting,
		LastChange: now,
		Revision:   uuid.New(),
	}
	require.NoError(t, repo.Create(ctx, nil, &importer))

	revision, err := repo.Start(ctx, nil, "osv", importer.Revision, now)
	require.NoError(t, err)

	_, err = repo.Start(ctx, nil, "osv", importer.Revision, now)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	require.NoError(t, repo.Finish(ctx, nil, "osv", revision, now, json.RawMessage(`{"commit":"abc"}`), nil))

	loaded, err := repo.FindByName(ctx, nil, "osv")
	require.NoError(t, err)
	assert.Equal(t, models.ImporterStateWaiting, loaded.State)
	assert.JSONEq(t, `{"commit":"abc"}`, string(loaded.Continuation))
	assert.NotNil(t, loaded.LastSuccess)

	// a failed run keeps the previous continuation
	revision, err = repo.Start(ctx, nil, "osv", loaded.Revision, now)
	require.NoError(t, err)
	require.NoError(t, repo.Finish(ctx, nil, "osv", revision, now, nil, errors.New("boom")))
	loaded, err = repo.FindByName(ctx, nil, "osv")
	require.NoError(t, err)
	assert.JSONEq(t, `{"commit":"abc"}`, string(loaded.Continuation))
	assert.Equal(t, "boom", *loaded.LastError)

	require.NoError(t, repo.AddReport(ctx, nil, &models.ImporterReport{ID: uuid.New(), ImporterName: "osv", CreatedAt: now}))
	reports, err := repo.Reports(ctx, "osv", 10)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	require.NoError(t, repo.Delete(ctx, nil, "osv"))
	missing, err := repo.FindByName(ctx, nil, "osv")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
