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
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Advisory is one version of a published advisory. Several rows may share an
// identifier, all but the most recent one are deprecated.
type Advisory struct {
	ID               uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	Identifier       string            `json:"identifier" gorm:"type:text;not null;index"`
	Sha256           string            `json:"sha256" gorm:"type:text;not null"`
	Format           string            `json:"format" gorm:"type:text;not null"`
	Version          *string           `json:"version" gorm:"type:text"`
	Title            *string           `json:"title" gorm:"type:text"`
	IssuerID         *uuid.UUID        `json:"issuerId" gorm:"type:uuid;index"`
	Published        *time.Time        `json:"published"`
	Modified         *time.Time        `json:"modified"`
	Withdrawn        *time.Time        `json:"withdrawn"`
	Deprecated       bool              `json:"deprecated" gorm:"not null;default:false;index"`
	SourceDocumentID *uuid.UUID        `json:"sourceDocumentId" gorm:"type:uuid;index"`
	Labels           datatypes.JSONMap `json:"labels"`
	IngestedAt       time.Time         `json:"ingestedAt"`
}

func (Advisory) TableName() string {
	return "advisories"
}

type Vulnerability struct {
	ID        string                      `json:"id" gorm:"type:text;primaryKey"`
	Title     *string                     `json:"title" gorm:"type:text"`
	Published *time.Time                  `json:"published"`
	Modified  *time.Time                  `json:"modified"`
	Withdrawn *time.Time                  `json:"withdrawn"`
	Reserved  *time.Time                  `json:"reserved"`
	CWEs      datatypes.JSONSlice[string] `json:"cwes" gorm:"column:cwes"`
}

func (Vulnerability) TableName() string {
	return "vulnerabilities"
}

type VulnerabilityDescription struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	VulnerabilityID string    `json:"vulnerabilityId" gorm:"type:text;not null;index"`
	AdvisoryID      uuid.UUID `json:"advisoryId" gorm:"type:uuid;not null;index"`
	Lang            string    `json:"lang" gorm:"type:text;not null"`
	Description     string    `json:"description" gorm:"type:text"`
}

func (VulnerabilityDescription) TableName() string {
	return "vulnerability_descriptions"
}

type AdvisoryVulnerability struct {
	AdvisoryID      uuid.UUID                   `json:"advisoryId" gorm:"type:uuid;primaryKey"`
	VulnerabilityID string                      `json:"vulnerabilityId" gorm:"type:text;primaryKey;index"`
	Title           *string                     `json:"title" gorm:"type:text"`
	Summary         *string                     `json:"summary" gorm:"type:text"`
	DiscoveryDate   *time.Time                  `json:"discoveryDate"`
	ReleaseDate     *time.Time                  `json:"releaseDate"`
	CWEs            datatypes.JSONSlice[string] `json:"cwes" gorm:"column:cwes"`
}

func (AdvisoryVulnerability) TableName() string {
	return "advisory_vulnerabilities"
}

type VulnerabilityScore struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	AdvisoryID      uuid.UUID `json:"advisoryId" gorm:"type:uuid;not null;index"`
	VulnerabilityID string    `json:"vulnerabilityId" gorm:"type:text;not null;index"`
	Type            string    `json:"type" gorm:"type:text;not null"`
	Vector          string    `json:"vector" gorm:"type:text;not null"`
	Score           float64   `json:"score"`
	Severity        string    `json:"severity" gorm:"type:text"`
}

func (VulnerabilityScore) TableName() string {
	return "vulnerability_scores"
}
