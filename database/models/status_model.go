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

package models

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/normalize"
)

type Status struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Slug        string    `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"type:text;not null"`
	Description string    `json:"description" gorm:"type:text"`
}

func (Status) TableName() string {
	return "statuses"
}

const (
	StatusAffected           = "affected"
	StatusNotAffected        = "not_affected"
	StatusFixed              = "fixed"
	StatusUnderInvestigation = "under_investigation"
	StatusRecommended        = "recommended"
)

func StatusID(slug string) uuid.UUID {
	return normalize.DeriveUUID(normalize.Str("status"), normalize.Str(slug))
}

// DefaultStatuses is the controlled vocabulary seeded by the migration.
var DefaultStatuses = []Status{
	{ID: StatusID(StatusAffected), Slug: StatusAffected, Name: "Affected", Description: "Vulnerable to the vulnerability"},
	{ID: StatusID(StatusNotAffected), Slug: StatusNotAffected, Name: "Not Affected", Description: "Not affected by the vulnerability"},
	{ID: StatusID(StatusFixed), Slug: StatusFixed, Name: "Fixed", Description: "The vulnerability is fixed"},
	{ID: StatusID(StatusUnderInvestigation), Slug: StatusUnderInvestigation, Name: "Under Investigation", Description: "Not yet known whether affected"},
	{ID: StatusID(StatusRecommended), Slug: StatusRecommended, Name: "Recommended", Description: "Recommended remediation"},
}

type VersionRange struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	VersionScheme string    `json:"versionScheme" gorm:"type:text;not null"`
	LowVersion    *string   `json:"lowVersion" gorm:"type:text"`
	LowInclusive  bool      `json:"lowInclusive"`
	HighVersion   *string   `json:"highVersion" gorm:"type:text"`
	HighInclusive bool      `json:"highInclusive"`
}

func (VersionRange) TableName() string {
	return "version_ranges"
}

func VersionRangeFromNormalized(r normalize.VersionRange) VersionRange {
	return VersionRange{
		ID:            r.ID(),
		VersionScheme: r.Scheme.String(),
		LowVersion:    r.Low,
		LowInclusive:  r.LowInclusive,
		HighVersion:   r.High,
		HighInclusive: r.HighInclusive,
	}
}

// ToNormalized falls back to the generic scheme for unknown scheme names.
func (v VersionRange) ToNormalized() normalize.VersionRange {
	scheme, _ := normalize.ParseVersionScheme(v.VersionScheme)
	return normalize.VersionRange{
		Scheme:        scheme,
		Low:           v.LowVersion,
		LowInclusive:  v.LowInclusive,
		High:          v.HighVersion,
		HighInclusive: v.HighInclusive,
	}
}

type PurlStatus struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	AdvisoryID      uuid.UUID  `json:"advisoryId" gorm:"type:uuid;not null;index"`
	VulnerabilityID string     `json:"vulnerabilityId" gorm:"type:text;not null;index"`
	StatusID        uuid.UUID  `json:"statusId" gorm:"type:uuid;not null"`
	BasePurlID      uuid.UUID  `json:"basePurlId" gorm:"type:uuid;not null;index"`
	VersionRangeID  uuid.UUID  `json:"versionRangeId" gorm:"type:uuid;not null"`
	ContextCpeID    *uuid.UUID `json:"contextCpeId" gorm:"type:uuid"`
}

func (PurlStatus) TableName() string {
	return "purl_statuses"
}

// PurlStatusID derives the id from the full key tuple.
func PurlStatusID(advisoryID uuid.UUID, vulnerabilityID string, statusID, basePurlID, versionRangeID uuid.UUID, contextCpeID *uuid.UUID) uuid.UUID {
	return normalize.DeriveUUID(
		normalize.Str("purl_status"),
		normalize.Str(advisoryID.String()),
		normalize.Str(vulnerabilityID),
		normalize.Str(statusID.String()),
		normalize.Str(basePurlID.String()),
		normalize.Str(versionRangeID.String()),
		uuidField(contextCpeID),
	)
}

type ProductVersionRange struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID      uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	VersionRangeID uuid.UUID `json:"versionRangeId" gorm:"type:uuid;not null"`
	CpeKey         *string   `json:"cpeKey" gorm:"type:text;index"`
}

func (ProductVersionRange) TableName() string {
	return "product_version_ranges"
}

func ProductVersionRangeID(productID, versionRangeID uuid.UUID, cpeKey *string) uuid.UUID {
	return normalize.DeriveUUID(
		normalize.Str("product_version_range"),
		normalize.Str(productID.String()),
		normalize.Str(versionRangeID.String()),
		normalize.Opt(cpeKey),
	)
}

type ProductStatus struct {
	ID                    uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	AdvisoryID            uuid.UUID  `json:"advisoryId" gorm:"type:uuid;not null;index"`
	VulnerabilityID       string     `json:"vulnerabilityId" gorm:"type:text;not null;index"`
	StatusID              uuid.UUID  `json:"statusId" gorm:"type:uuid;not null"`
	ProductVersionRangeID uuid.UUID  `json:"productVersionRangeId" gorm:"type:uuid;not null;index"`
	ContextCpeID          *uuid.UUID `json:"contextCpeId" gorm:"type:uuid"`
	Package               *string    `json:"package" gorm:"type:text"`
}

func (ProductStatus) TableName() string {
	return "product_statuses"
}

func ProductStatusID(advisoryID uuid.UUID, vulnerabilityID string, statusID, productVersionRangeID uuid.UUID, contextCpeID *uuid.UUID, pkg *string) uuid.UUID {
	return normalize.DeriveUUID(
		normalize.Str("product_status"),
		normalize.Str(advisoryID.String()),
		normalize.Str(vulnerabilityID),
		normalize.Str(statusID.String()),
		normalize.Str(productVersionRangeID.String()),
		uuidField(contextCpeID),
		normalize.Opt(pkg),
	)
}

func uuidField(id *uuid.UUID) normalize.Field {
	if id == nil {
		return normalize.Absent()
	}
	return normalize.Str(id.String())
}
