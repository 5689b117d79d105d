// Copyright (C) 2025 timbastin
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
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package shared

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/normalize"
	"gorm.io/gorm"
)

type DB = *gorm.DB

type Tabler interface {
	TableName() string
}

type SbomRepository interface {
	CreateIfAbsent(ctx context.Context, tx DB, sbom *models.Sbom) (bool, error)
	FindByID(ctx context.Context, tx DB, sbomID uuid.UUID) (*models.Sbom, error)
	FindByDocumentID(ctx context.Context, tx DB, documentID string) (*models.Sbom, error)
	List(ctx context.Context, limit, offset int) ([]models.Sbom, error)
	BackfillExternalTargets(ctx context.Context, tx DB, documentID string, sbomID uuid.UUID) (int64, error)
	ExternalNodes(ctx context.Context, tx DB, sbomID uuid.UUID) ([]models.SbomExternalNode, error)
	DescribedPackages(ctx context.Context, tx DB, sbom models.Sbom, depth int) ([]dtos.PackageNode, error)
	RelatedPackages(ctx context.Context, tx DB, sbomID uuid.UUID, nodeID string, rel *normalize.Relationship, which dtos.Which) ([]dtos.RelatedNode, error)
	CountNodes(ctx context.Context, tx DB, sbomID uuid.UUID) (int64, error)
	Delete(ctx context.Context, tx DB, sbomID uuid.UUID) error
}

type AdvisoryRepository interface {
	CreateIfAbsent(ctx context.Context, tx DB, advisory *models.Advisory) (bool, error)
	FindByID(ctx context.Context, tx DB, id uuid.UUID) (*models.Advisory, error)
	FindByIdentifier(ctx context.Context, tx DB, identifier string) ([]models.Advisory, error)
	Latest(ctx context.Context, tx DB, identifier string) (*models.Advisory, error)
	RecomputeDeprecation(ctx context.Context, tx DB, identifier string) error
	Delete(ctx context.Context, tx DB, id uuid.UUID) error
	UpsertVulnerability(ctx context.Context, tx DB, v models.Vulnerability) error
	FindVulnerability(ctx context.Context, tx DB, id string) (*models.Vulnerability, error)
	AdvisoriesOfVulnerability(ctx context.Context, tx DB, vulnerabilityID string) ([]models.Advisory, error)
	Descriptions(ctx context.Context, tx DB, vulnerabilityID string) ([]models.VulnerabilityDescription, error)
	Scores(ctx context.Context, tx DB, vulnerabilityID string) ([]models.VulnerabilityScore, error)
	CountReferences(ctx context.Context, tx DB, sourceDocumentID uuid.UUID) (int64, error)
}

type StatusRepository interface {
	PurlStatuses(ctx context.Context, tx DB, purl normalize.Purl, query dtos.StatusQuery) ([]dtos.PurlStatusMatch, error)
	ProductStatuses(ctx context.Context, tx DB, cpe normalize.Cpe, version string, query dtos.StatusQuery) ([]dtos.ProductStatusMatch, error)
}

type ImporterRepository interface {
	Create(ctx context.Context, tx DB, importer *models.Importer) error
	FindByName(ctx context.Context, tx DB, name string) (*models.Importer, error)
	List(ctx context.Context) ([]models.Importer, error)
	Delete(ctx context.Context, tx DB, name string) error
	UpdateConfiguration(ctx context.Context, tx DB, name string, configuration json.RawMessage, period time.Duration, disabled bool) error
	Start(ctx context.Context, tx DB, name string, revision uuid.UUID, now time.Time) (uuid.UUID, error)
	Finish(ctx context.Context, tx DB, name string, revision uuid.UUID, now time.Time, continuation json.RawMessage, runErr error) error
	ResetStale(ctx context.Context, olderThan time.Time) (int64, error)
	AddReport(ctx context.Context, tx DB, report *models.ImporterReport) error
	Reports(ctx context.Context, name string, limit int) ([]models.ImporterReport, error)
}

// BlobStore keeps source documents keyed by the hex SHA-256 of their
// content.
type BlobStore interface {
	Store(ctx context.Context, r io.Reader) (string, error)
	Retrieve(ctx context.Context, key string) (io.ReadCloser, bool, error)
	Delete(ctx context.Context, key string) error
}
