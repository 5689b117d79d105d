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
	"gorm.io/datatypes"
)

// License is a canonical SPDX expression text.
type License struct {
	ID                    uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	Text                  string                      `json:"text" gorm:"type:text;not null"`
	SpdxLicenses          datatypes.JSONSlice[string] `json:"spdxLicenses"`
	SpdxLicenseExceptions datatypes.JSONSlice[string] `json:"spdxLicenseExceptions"`
}

func (License) TableName() string {
	return "licenses"
}

// ExtractedLicensingInfo is a document local "LicenseRef-" definition.
type ExtractedLicensingInfo struct {
	ID               uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	SbomID           uuid.UUID                   `json:"sbomId" gorm:"type:uuid;not null;index"`
	LicenseID        string                      `json:"licenseId" gorm:"type:text;not null"`
	Name             string                      `json:"name" gorm:"type:text"`
	ExtractedText    string                      `json:"extractedText" gorm:"type:text"`
	Comment          *string                     `json:"comment" gorm:"type:text"`
	DetectedLicenses datatypes.JSONSlice[string] `json:"detectedLicenses"`
}

func (ExtractedLicensingInfo) TableName() string {
	return "extracted_licensing_infos"
}

type PurlLicenseAssertion struct {
	SbomID          uuid.UUID `json:"sbomId" gorm:"type:uuid;primaryKey"`
	LicenseID       uuid.UUID `json:"licenseId" gorm:"type:uuid;primaryKey;index"`
	VersionedPurlID uuid.UUID `json:"versionedPurlId" gorm:"type:uuid;primaryKey;index"`
}

func (PurlLicenseAssertion) TableName() string {
	return "purl_license_assertions"
}

type CpeLicenseAssertion struct {
	SbomID    uuid.UUID `json:"sbomId" gorm:"type:uuid;primaryKey"`
	LicenseID uuid.UUID `json:"licenseId" gorm:"type:uuid;primaryKey;index"`
	CpeID     uuid.UUID `json:"cpeId" gorm:"type:uuid;primaryKey;index"`
}

func (CpeLicenseAssertion) TableName() string {
	return "cpe_license_assertions"
}
