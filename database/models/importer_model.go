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

type ImporterState string

const (
	ImporterStateWaiting ImporterState = "waiting"
	ImporterStateRunning ImporterState = "running"
)

// Importer is a persisted walker definition. Continuation is opaque JSON
// owned by the walker source.
type Importer struct {
	Name          string         `json:"name" gorm:"type:text;primaryKey"`
	Source        string         `json:"source" gorm:"type:text;not null"`
	Kind          string         `json:"kind" gorm:"type:text;not null"`
	Configuration datatypes.JSON `json:"configuration"`
	Disabled      bool           `json:"disabled" gorm:"not null;default:false"`
	Period        time.Duration  `json:"period"`
	State         ImporterState  `json:"state" gorm:"type:text;not null;default:'waiting'"`
	LastChange    time.Time      `json:"lastChange"`
	LastRun       *time.Time     `json:"lastRun"`
	LastSuccess   *time.Time     `json:"lastSuccess"`
	LastError     *string        `json:"lastError" gorm:"type:text"`
	Continuation  datatypes.JSON `json:"continuation"`
	Revision      uuid.UUID      `json:"revision" gorm:"type:uuid"`
}

func (Importer) TableName() string {
	return "importers"
}

// Due reports whether the importer should run at now.
func (i Importer) Due(now time.Time) bool {
	if i.Disabled || i.State == ImporterStateRunning {
		return false
	}
	return i.LastRun == nil || !now.Before(i.LastRun.Add(i.Period))
}

type ImporterReport struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ImporterName string         `json:"importerName" gorm:"type:text;not null;index"`
	CreatedAt    time.Time      `json:"createdAt"`
	Error        *string        `json:"error" gorm:"type:text"`
	Report       datatypes.JSON `json:"report"`
}

func (ImporterReport) TableName() string {
	return "importer_reports"
}

// All lists every model for AutoMigrate in dependency order.
func All() []any {
	return []any{
		&SourceDocument{},
		&BasePurl{},
		&VersionedPurl{},
		&QualifiedPurl{},
		&Cpe{},
		&Organization{},
		&Product{},
		&Sbom{},
		&ProductVersion{},
		&SbomNode{},
		&SbomPackage{},
		&SbomPackagePurlRef{},
		&SbomPackageCpeRef{},
		&SbomFile{},
		&SbomExternalNode{},
		&PackageRelatesToPackage{},
		&License{},
		&ExtractedLicensingInfo{},
		&PurlLicenseAssertion{},
		&CpeLicenseAssertion{},
		&Advisory{},
		&Vulnerability{},
		&VulnerabilityDescription{},
		&AdvisoryVulnerability{},
		&VulnerabilityScore{},
		&Status{},
		&VersionRange{},
		&PurlStatus{},
		&ProductVersionRange{},
		&ProductStatus{},
		&Importer{},
		&ImporterReport{},
	}
}
