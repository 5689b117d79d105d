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

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/creators"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// statusRepository answers "which statuses apply to this package version".
// Version membership is evaluated in process with the comparator of each
// range's scheme, so the store only narrows candidates by package.
type statusRepository struct {
	db *gorm.DB
}

func NewStatusRepository(db *gorm.DB) *statusRepository {
	return &statusRepository{db: db}
}

func (r *statusRepository) getDB(ctx context.Context, tx shared.DB) shared.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// statusRow holds one aliased column per field.
type statusRow struct {
	AdvisoryID         uuid.UUID  `gorm:"column:advisory_id"`
	AdvisoryIdentifier string     `gorm:"column:advisory_identifier"`
	Deprecated         bool       `gorm:"column:deprecated"`
	VulnerabilityID    string     `gorm:"column:vulnerability_id"`
	Status             string     `gorm:"column:status"`
	ContextCpeID       *uuid.UUID `gorm:"column:context_cpe_id"`
	VersionScheme      string     `gorm:"column:version_scheme"`
	LowVersion         *string    `gorm:"column:low_version"`
	LowInclusive       bool       `gorm:"column:low_inclusive"`
	HighVersion        *string    `gorm:"column:high_version"`
	HighInclusive      bool       `gorm:"column:high_inclusive"`
	ProductName        string     `gorm:"column:product_name"`
	Package            *string    `gorm:"column:package"`
}

const statusColumns = `ps.advisory_id AS advisory_id, a.identifier AS advisory_identifier, a.deprecated AS deprecated,
	ps.vulnerability_id AS vulnerability_id, s.slug AS status, ps.context_cpe_id AS context_cpe_id,
	vr.version_scheme AS version_scheme, vr.low_version AS low_version, vr.low_inclusive AS low_inclusive,
	vr.high_version AS high_version, vr.high_inclusive AS high_inclusive`

func (row statusRow) versionRange() normalize.VersionRange {
	return models.VersionRange{
		VersionScheme: row.VersionScheme,
		LowVersion:    row.LowVersion,
		LowInclusive:  row.LowInclusive,
		HighVersion:   row.HighVersion,
		HighInclusive: row.HighInclusive,
	}.ToNormalized()
}

func (row statusRow) matches(version *string) bool {
	if version == nil {
		return true
	}
	return row.versionRange().Contains(*version)
}

// contextOf resolves the context of a row. ok is false if the row has a
// context that does not match the queried one.
func contextOf(row statusRow, contexts map[uuid.UUID]normalize.Cpe, queried *normalize.Cpe) (*string, bool) {
	if row.ContextCpeID == nil {
		return nil, true
	}
	cpe, ok := contexts[*row.ContextCpeID]
	if !ok || !contextMatches(cpe, queried) {
		return nil, false
	}
	s := cpe.String()
	return &s, true
}

// PurlStatuses returns every status whose package is the purl's base
// package and whose range contains the purl's version. A purl without a
// version matches every range.
func (r *statusRepository) PurlStatuses(ctx context.Context, tx shared.DB, purl normalize.Purl, query dtos.StatusQuery) ([]dtos.PurlStatusMatch, error) {
	q := r.getDB(ctx, tx).Table("purl_statuses ps").
		Select(statusColumns).
		Joins("JOIN advisories a ON a.id = ps.advisory_id").
		Joins("JOIN statuses s ON s.id = ps.status_id").
		Joins("JOIN version_ranges vr ON vr.id = ps.version_range_id").
		Where("ps.base_purl_id = ?", purl.BaseID())
	q = applyStatusQuery(q, "ps", query)

	var rows []statusRow
	if err := q.Order("a.identifier, ps.vulnerability_id, s.slug").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "could not load purl statuses")
	}

	contexts, err := r.contextCpes(ctx, tx, rows)
	if err != nil {
		return nil, err
	}

	matches := make([]dtos.PurlStatusMatch, 0, len(rows))
	for _, row := range rows {
		if !row.matches(purl.Version) {
			continue
		}
		contextCpe, ok := contextOf(row, contexts, query.Context)
		if !ok {
			continue
		}
		versionRange := row.versionRange()
		matches = append(matches, dtos.PurlStatusMatch{
			AdvisoryID:         row.AdvisoryID,
			AdvisoryIdentifier: row.AdvisoryIdentifier,
			Deprecated:         row.Deprecated,
			VulnerabilityID:    row.VulnerabilityID,
			Status:             row.Status,
			Range:              versionRange,
			RangeText:          versionRange.String(),
			ContextCpe:         contextCpe,
		})
	}
	return matches, nil
}

// ProductStatuses returns the statuses of products identified by the
// vendor and product of cpe whose range contains version. An empty version
// matches every range. Context CPEs are applied as for PurlStatuses.
func (r *statusRepository) ProductStatuses(ctx context.Context, tx shared.DB, cpe normalize.Cpe, version string, query dtos.StatusQuery) ([]dtos.ProductStatusMatch, error) {
	q := r.getDB(ctx, tx).Table("product_statuses ps").
		Select(statusColumns+", p.name AS product_name, ps.package AS package").
		Joins("JOIN advisories a ON a.id = ps.advisory_id").
		Joins("JOIN statuses s ON s.id = ps.status_id").
		Joins("JOIN product_version_ranges pvr ON pvr.id = ps.product_version_range_id").
		Joins("JOIN products p ON p.id = pvr.product_id").
		Joins("JOIN version_ranges vr ON vr.id = pvr.version_range_id").
		Where("pvr.cpe_key = ?", creators.CpeProductKey(cpe))
	q = applyStatusQuery(q, "ps", query)

	var rows []statusRow
	if err := q.Order("a.identifier, ps.vulnerability_id, s.slug").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "could not load product statuses")
	}

	contexts, err := r.contextCpes(ctx, tx, rows)
	if err != nil {
		return nil, err
	}

	var v *string
	if version != "" {
		v = &version
	}
	matches := make([]dtos.ProductStatusMatch, 0, len(rows))
	for _, row := range rows {
		if !row.matches(v) {
			continue
		}
		contextCpe, ok := contextOf(row, contexts, query.Context)
		if !ok {
			continue
		}
		versionRange := row.versionRange()
		matches = append(matches, dtos.ProductStatusMatch{
			AdvisoryID:         row.AdvisoryID,
			AdvisoryIdentifier: row.AdvisoryIdentifier,
			Deprecated:         row.Deprecated,
			VulnerabilityID:    row.VulnerabilityID,
			Status:             row.Status,
			ProductName:        row.ProductName,
			Package:            row.Package,
			Range:              versionRange,
			RangeText:          versionRange.String(),
			ContextCpe:         contextCpe,
		})
	}
	return matches, nil
}

func applyStatusQuery(q *gorm.DB, alias string, query dtos.StatusQuery) *gorm.DB {
	if query.Deprecation == dtos.DeprecationIgnore {
		q = q.Where("a.deprecated = ?", false)
	}
	if query.VulnerabilityID != nil {
		q = q.Where(alias+".vulnerability_id = ?", *query.VulnerabilityID)
	}
	return q
}

func (r *statusRepository) contextCpes(ctx context.Context, tx shared.DB, rows []statusRow) (map[uuid.UUID]normalize.Cpe, error) {
	ids := make([]uuid.UUID, 0)
	for _, row := range rows {
		if row.ContextCpeID != nil {
			ids = append(ids, *row.ContextCpeID)
		}
	}
	res := make(map[uuid.UUID]normalize.Cpe, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	var cpes []models.Cpe
	if err := r.getDB(ctx, tx).Where("id IN ?", ids).Find(&cpes).Error; err != nil {
		return nil, errors.Wrap(err, "could not load context cpes")
	}
	for _, c := range cpes {
		res[c.ID] = c.ToNormalized()
	}
	return res, nil
}

// contextMatches applies a status context to the queried context. Without
// a queried context every status applies.
func contextMatches(statusContext normalize.Cpe, queried *normalize.Cpe) bool {
	if queried == nil {
		return true
	}
	return statusContext.Matches(*queried)
}
