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
	"cmp"
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type advisoryRepository struct {
	*GormRepository[uuid.UUID, models.Advisory]
	db *gorm.DB
}

func NewAdvisoryRepository(db *gorm.DB) *advisoryRepository {
	return &advisoryRepository{
		db:             db,
		GormRepository: newGormRepository[uuid.UUID, models.Advisory](db),
	}
}

func (r *advisoryRepository) FindByID(ctx context.Context, tx shared.DB, id uuid.UUID) (*models.Advisory, error) {
	return ignoreNotFound(r.Read(ctx, tx, id, "id"))
}

// FindByIdentifier returns all versions of an advisory, latest first.
func (r *advisoryRepository) FindByIdentifier(ctx context.Context, tx shared.DB, identifier string) ([]models.Advisory, error) {
	var advisories []models.Advisory
	if err := r.GetDB(ctx, tx).Where("identifier = ?", identifier).Find(&advisories).Error; err != nil {
		return nil, err
	}
	slices.SortStableFunc(advisories, compareRecency)
	return advisories, nil
}

// Latest returns the non deprecated version of identifier.
func (r *advisoryRepository) Latest(ctx context.Context, tx shared.DB, identifier string) (*models.Advisory, error) {
	advisories, err := r.FindByIdentifier(ctx, tx, identifier)
	if err != nil || len(advisories) == 0 {
		return nil, err
	}
	return &advisories[0], nil
}

// compareRecency orders by modified date, newest first, then by ingestion
// time. Advisories without a modified date sort after those with one.
func compareRecency(a, b models.Advisory) int {
	switch {
	case a.Modified != nil && b.Modified == nil:
		return -1
	case a.Modified == nil && b.Modified != nil:
		return 1
	case a.Modified != nil && b.Modified != nil && !a.Modified.Equal(*b.Modified):
		return b.Modified.Compare(*a.Modified)
	}
	if c := b.IngestedAt.Compare(a.IngestedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Sha256, b.Sha256)
}

// RecomputeDeprecation marks every version of identifier deprecated except
// the most recent one.
func (r *advisoryRepository) RecomputeDeprecation(ctx context.Context, tx shared.DB, identifier string) error {
	if err := lockIdentifier(r.GetDB(ctx, tx), identifier); err != nil {
		return errors.Wrap(err, "could not lock advisory identifier")
	}
	advisories, err := r.FindByIdentifier(ctx, tx, identifier)
	if err != nil {
		return errors.Wrap(err, "could not load advisory versions")
	}
	if len(advisories) == 0 {
		return nil
	}
	db := r.GetDB(ctx, tx)
	latest := advisories[0].ID
	if err := db.Model(&models.Advisory{}).
		Where("identifier = ? AND id <> ?", identifier, latest).
		Update("deprecated", true).Error; err != nil {
		return errors.Wrap(err, "could not deprecate advisories")
	}
	return db.Model(&models.Advisory{}).Where("id = ?", latest).Update("deprecated", false).Error
}

// lockIdentifier serializes deprecation updates of one identifier until the
// surrounding transaction ends. The versions are read after the lock is
// taken, so a transaction that waited sees the rows the other one committed.
// sqlite allows a single writer and needs no lock.
func lockIdentifier(db *gorm.DB, identifier string) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "advisory:"+identifier).Error
}

// Delete removes the advisory together with its statuses, descriptions,
// scores and vulnerability links. Vulnerabilities stay.
func (r *advisoryRepository) Delete(ctx context.Context, tx shared.DB, id uuid.UUID) error {
	db := r.GetDB(ctx, tx)
	for _, model := range []any{
		&models.PurlStatus{},
		&models.ProductStatus{},
		&models.VulnerabilityScore{},
		&models.VulnerabilityDescription{},
		&models.AdvisoryVulnerability{},
	} {
		if err := db.Where("advisory_id = ?", id).Delete(model).Error; err != nil {
			return errors.Wrapf(err, "could not delete %T rows", model)
		}
	}
	return db.Where("id = ?", id).Delete(&models.Advisory{}).Error
}

// UpsertVulnerability inserts the vulnerability if absent and then fills
// in the fields the given row carries. Fields already known are only
// replaced by non empty values.
func (r *advisoryRepository) UpsertVulnerability(ctx context.Context, tx shared.DB, v models.Vulnerability) error {
	db := r.GetDB(ctx, tx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Vulnerability{ID: v.ID}).Error; err != nil {
		return err
	}
	updates := map[string]any{}
	if v.Title != nil {
		updates["title"] = *v.Title
	}
	if v.Published != nil {
		updates["published"] = *v.Published
	}
	if v.Modified != nil {
		updates["modified"] = *v.Modified
	}
	if v.Withdrawn != nil {
		updates["withdrawn"] = *v.Withdrawn
	}
	if v.Reserved != nil {
		updates["reserved"] = *v.Reserved
	}
	if len(v.CWEs) > 0 {
		updates["cwes"] = v.CWEs
	}
	if len(updates) == 0 {
		return nil
	}
	return db.Model(&models.Vulnerability{}).Where("id = ?", v.ID).Updates(updates).Error
}

func (r *advisoryRepository) FindVulnerability(ctx context.Context, tx shared.DB, id string) (*models.Vulnerability, error) {
	var v models.Vulnerability
	err := r.GetDB(ctx, tx).Where("id = ?", id).First(&v).Error
	return ignoreNotFound(v, err)
}

func (r *advisoryRepository) AdvisoriesOfVulnerability(ctx context.Context, tx shared.DB, vulnerabilityID string) ([]models.Advisory, error) {
	var advisories []models.Advisory
	err := r.GetDB(ctx, tx).
		Joins("JOIN advisory_vulnerabilities av ON av.advisory_id = advisories.id").
		Where("av.vulnerability_id = ?", vulnerabilityID).
		Order("advisories.identifier").
		Find(&advisories).Error
	return advisories, err
}

func (r *advisoryRepository) Descriptions(ctx context.Context, tx shared.DB, vulnerabilityID string) ([]models.VulnerabilityDescription, error) {
	var descriptions []models.VulnerabilityDescription
	err := r.GetDB(ctx, tx).
		Joins("JOIN advisories a ON a.id = vulnerability_descriptions.advisory_id").
		Where("vulnerability_descriptions.vulnerability_id = ? AND a.deprecated = ?", vulnerabilityID, false).
		Order("vulnerability_descriptions.lang").
		Find(&descriptions).Error
	return descriptions, err
}

func (r *advisoryRepository) Scores(ctx context.Context, tx shared.DB, vulnerabilityID string) ([]models.VulnerabilityScore, error) {
	var scores []models.VulnerabilityScore
	err := r.GetDB(ctx, tx).
		Joins("JOIN advisories a ON a.id = vulnerability_scores.advisory_id").
		Where("vulnerability_scores.vulnerability_id = ? AND a.deprecated = ?", vulnerabilityID, false).
		Order("vulnerability_scores.type, vulnerability_scores.vector").
		Find(&scores).Error
	return scores, err
}

// CountReferences reports how many SBOMs and advisories point at a source
// document.
func (r *advisoryRepository) CountReferences(ctx context.Context, tx shared.DB, sourceDocumentID uuid.UUID) (int64, error) {
	var advisories, sboms int64
	db := r.GetDB(ctx, tx)
	if err := db.Model(&models.Advisory{}).Where("source_document_id = ?", sourceDocumentID).Count(&advisories).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.Sbom{}).Where("source_document_id = ?", sourceDocumentID).Count(&sboms).Error; err != nil {
		return 0, err
	}
	return advisories + sboms, nil
}
