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

// SourceDocument is the stored original of an ingested document. The blob
// store key is Sha256.
type SourceDocument struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Sha256     string    `json:"sha256" gorm:"type:text;not null;uniqueIndex"`
	Sha384     string    `json:"sha384" gorm:"type:text"`
	Sha512     string    `json:"sha512" gorm:"type:text"`
	Size       int64     `json:"size"`
	IngestedAt time.Time `json:"ingestedAt"`
}

func (SourceDocument) TableName() string {
	return "source_documents"
}

type Sbom struct {
	SbomID uuid.UUID `json:"sbomId" gorm:"type:uuid;primaryKey;column:sbom_id"`
	// NodeID is the document node every "describes" edge starts from.
	NodeID           string                      `json:"nodeId" gorm:"type:text;not null"`
	DocumentID       *string                     `json:"documentId" gorm:"type:text;index"`
	Format           string                      `json:"format" gorm:"type:text;not null"`
	Name             string                      `json:"name" gorm:"type:text"`
	Published        *time.Time                  `json:"published"`
	Authors          datatypes.JSONSlice[string] `json:"authors"`
	DataLicenses     datatypes.JSONSlice[string] `json:"dataLicenses"`
	SourceDocumentID *uuid.UUID                  `json:"sourceDocumentId" gorm:"type:uuid;index"`
	Labels           datatypes.JSONMap           `json:"labels"`
	IngestedAt       time.Time                   `json:"ingestedAt"`
}

func (Sbom) TableName() string {
	return "sboms"
}

type SbomNode struct {
	SbomID uuid.UUID `json:"sbomId" gorm:"type:uuid;primaryKey"`
	NodeID string    `json:"nodeId" gorm:"type:text;primaryKey"`
	Name   string    `json:"name" gorm:"type:text"`
}

func (SbomNode) TableName() string {
	return "sbom_nodes"
}

type SbomPackage struct {
	SbomID  uuid.UUID `json:"sbomId" gorm:"type:uuid;primaryKey"`
	NodeID  string    `json:"nodeId" gorm:"type:text;primaryKey"`
	Version *string   `json:"version" gorm:"type:text"`
}

func (SbomPackage) TableName() string {
	return "sbom_packages"
}

type SbomPackagePurlRef struct {
	SbomID          uuid.UUID `json:"sbomId" gorm:"type:uuid;primaryKey"`
	NodeID          string    `json:"nodeId" gorm:"type:text;primaryKey"`
	QualifiedPurlID uuid.UUID `json:"qualifiedPurlId" gorm:"type:uuid;primaryKey;index"`
}

func (SbomPackagePurlRef) TableName() string {
	return "sbom_package_purl_refs"
}

type SbomPackageCpeRef struct {
	SbomID uuid.UUID `json:"sbomId" gorm:"type:uuid;primaryKey"`
	NodeID string    `json:"nodeId" gorm:"type:text;primaryKey"`
	CpeID  uuid.UUID `json:"cpeId" gorm:"type:uuid;primaryKey;index"`
}

func (SbomPackageCpeRef) TableName() string {
	return "sbom_package_cpe_refs"
}

type SbomFile struct {
	SbomID uuid.UUID `json:"sbomId" gorm:"type:uuid;primaryKey"`
	NodeID string    `json:"nodeId" gorm:"type:text;primaryKey"`
}

func (SbomFile) TableName() string {
	return "sbom_files"
}

type ExternalType string

const (
	ExternalTypeSPDX      ExternalType = "spdx"
	ExternalTypeCycloneDX ExternalType = "cyclonedx"
)

// SbomExternalNode points from a node of one SBOM into another document.
type SbomExternalNode struct {
	SbomID          uuid.UUID    `json:"sbomId" gorm:"type:uuid;primaryKey"`
	NodeID          string       `json:"nodeId" gorm:"type:text;primaryKey"`
	ExternalDocRef  string       `json:"externalDocRef" gorm:"type:text;not null;index"`
	ExternalNodeRef string       `json:"externalNodeRef" gorm:"type:text;not null"`
	ExternalType    ExternalType `json:"externalType" gorm:"type:text;not null"`
	TargetSbomID    *uuid.UUID   `json:"targetSbomId" gorm:"type:uuid;index"`
}

func (SbomExternalNode) TableName() string {
	return "sbom_external_nodes"
}

type PackageRelatesToPackage struct {
	SbomID       uuid.UUID `json:"sbomId" gorm:"type:uuid;primaryKey"`
	LeftNodeID   string    `json:"leftNodeId" gorm:"type:text;primaryKey"`
	Relationship string    `json:"relationship" gorm:"type:text;primaryKey"`
	RightNodeID  string    `json:"rightNodeId" gorm:"type:text;primaryKey;index"`
}

func (PackageRelatesToPackage) TableName() string {
	return "package_relates_to_packages"
}
