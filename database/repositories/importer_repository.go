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

package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrConcurrentModification is returned when the importer changed since it
// was read.
var ErrConcurrentModification = errors.New("importer was modified concurrently")

type importerRepository struct {
	*GormRepository[string, models.Importer]
	db *gorm.DB
}

func NewImporterRepository(db *gorm.DB) *importerRepository {
	return &importerRepository{
		db:             db,
		GormRepository: newGormRepository[string, models.Importer](db),
	}
}

func (r *importerRepository) FindByName(ctx context.Context, tx shared.DB, name string) (*models.Importer, error) {
	return ignoreNotFound(r.Read(ctx, tx, name, "name"))
}

func (r *importerRepository) List(ctx context.Context) ([]models.Importer, error) {
	var importers []models.Importer
	err := r.db.WithContext(ctx).Order("name").Find(&importers).Error
	return importers, err
}

func (r *importerRepository) Delete(ctx context.Context, tx shared.DB, name string) error {
	db := r.GetDB(ctx, tx)
	if err := db.Where("importer_name = ?", name).Delete(&models.ImporterReport{}).Error; err != nil {
		return err
	}
	return db.Where("name = ?", name).Delete(&models.Importer{}).Error
}

// UpdateConfiguration replaces the importer's configuration and drops its
// continuation so the next run starts from scratch.
func (r *importerRepository) UpdateConfiguration(ctx context.Context, tx shared.DB, name string, configuration json.RawMessage, period time.Duration, disabled bool) error {
	res := r.GetDB(ctx, tx).Model(&models.Importer{}).Where("name = ?", name).Updates(map[string]any{
		"configuration": datatypes.JSON(configuration),
		"period":        period,
		"disabled":      disabled,
		"continuation":  nil,
		"last_change":   time.Now().UTC(),
		"revision":      uuid.New(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Start moves the importer to running if it still has the given revision
// and returns the new revision.
func (r *importerRepository) Start(ctx context.Context, tx shared.DB, name string, revision uuid.UUID, now time.Time) (uuid.UUID, error) {
	next := uuid.New()
	res := r.GetDB(ctx, tx).Model(&models.Importer{}).
		Where("name = ? AND revision = ? AND state = ?", name, revision, models.ImporterStateWaiting).
		Updates(map[string]any{
			"state":    models.ImporterStateRunning,
			"last_run": now,
			"revision": next,
		})
	if res.Error != nil {
		return uuid.Nil, res.Error
	}
	if res.RowsAffected == 0 {
		return uuid.Nil, ErrConcurrentModification
	}
	return next, nil
}

// Finish moves the importer back to waiting. The continuation is only
// replaced when a new one is given.
func (r *importerRepository) Finish(ctx context.Context, tx shared.DB, name string, revision uuid.UUID, now time.Time, continuation json.RawMessage, runErr error) error {
	updates := map[string]any{
		"state":    models.ImporterStateWaiting,
		"revision": uuid.New(),
	}
	if runErr != nil {
		updates["last_error"] = runErr.Error()
	} else {
		updates["last_error"] = nil
		updates["last_success"] = now
	}
	if continuation != nil {
		updates["continuation"] = datatypes.JSON(continuation)
	}
	res := r.GetDB(ctx, tx).Model(&models.Importer{}).
		Where("name = ? AND revision = ?", name, revision).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// ResetStale puts importers stuck in running, e.g. after a crash, back to
// waiting.
func (r *importerRepository) ResetStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Importer{}).
		Where("state = ? AND last_run < ?", models.ImporterStateRunning, olderThan).
		Updates(map[string]any{"state": models.ImporterStateWaiting, "revision": uuid.New()})
	return res.RowsAffected, res.Error
}

func (r *importerRepository) AddReport(ctx context.Context, tx shared.DB, report *models.ImporterReport) error {
	return r.GetDB(ctx, tx).Create(report).Error
}

func (r *importerRepository) Reports(ctx context.Context, name string, limit int) ([]models.ImporterReport, error) {
	var reports []models.ImporterReport
	err := r.db.WithContext(ctx).Where("importer_name = ?", name).Order("created_at DESC").Limit(limit).Find(&reports).Error
	return reports, err
}
