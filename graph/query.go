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

package graph

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func (g *Graph) Sbom(ctx context.Context, sbomID uuid.UUID) (*models.Sbom, error) {
	sbom, err := g.sbomRepository.FindByID(ctx, nil, sbomID)
	if err != nil {
		return nil, shared.PersistenceError(err)
	}
	if sbom == nil {
		return nil, errors.Wrapf(ErrNotFound, "sbom %s", sbomID)
	}
	return sbom, nil
}

func (g *Graph) ListSboms(ctx context.Context, limit, offset int) ([]models.Sbom, error) {
	sboms, err := g.sbomRepository.List(ctx, limit, offset)
	return sboms, shared.PersistenceError(err)
}

// DescribedPackages lists the nodes the SBOM describes, directly or up to
// depth hops away.
func (g *Graph) DescribedPackages(ctx context.Context, sbomID uuid.UUID, depth int) ([]dtos.PackageNode, error) {
	sbom, err := g.Sbom(ctx, sbomID)
	if err != nil {
		return nil, err
	}
	nodes, err := g.sbomRepository.DescribedPackages(ctx, nil, *sbom, depth)
	return nodes, shared.PersistenceError(err)
}

// RelatedPackages lists the direct neighbours of nodeID. rel restricts the
// edge label, which the side the queried node is on.
func (g *Graph) RelatedPackages(ctx context.Context, sbomID uuid.UUID, nodeID string, rel *normalize.Relationship, which dtos.Which) ([]dtos.RelatedNode, error) {
	nodes, err := g.sbomRepository.RelatedPackages(ctx, nil, sbomID, nodeID, rel, which)
	return nodes, shared.PersistenceError(err)
}

func (g *Graph) ExternalNodes(ctx context.Context, sbomID uuid.UUID) ([]models.SbomExternalNode, error) {
	nodes, err := g.sbomRepository.ExternalNodes(ctx, nil, sbomID)
	return nodes, shared.PersistenceError(err)
}

// PurlStatuses returns every status matching the purl. All matches are
// returned, precedence between them is up to the caller.
func (g *Graph) PurlStatuses(ctx context.Context, purl normalize.Purl, query dtos.StatusQuery) ([]dtos.PurlStatusMatch, error) {
	matches, err := g.statusRepository.PurlStatuses(ctx, nil, purl, query)
	return matches, shared.PersistenceError(err)
}

func (g *Graph) ProductStatuses(ctx context.Context, cpe normalize.Cpe, version string, query dtos.StatusQuery) ([]dtos.ProductStatusMatch, error) {
	matches, err := g.statusRepository.ProductStatuses(ctx, nil, cpe, version, query)
	return matches, shared.PersistenceError(err)
}

// LatestAdvisory returns the non deprecated version of identifier.
func (g *Graph) LatestAdvisory(ctx context.Context, identifier string) (*models.Advisory, error) {
	a, err := g.advisoryRepository.Latest(ctx, nil, identifier)
	if err != nil {
		return nil, shared.PersistenceError(err)
	}
	if a == nil {
		return nil, errors.Wrapf(ErrNotFound, "advisory %s", identifier)
	}
	return a, nil
}

// AdvisoryVersions returns every ingested version of identifier, latest
// first.
func (g *Graph) AdvisoryVersions(ctx context.Context, identifier string) ([]models.Advisory, error) {
	advisories, err := g.advisoryRepository.FindByIdentifier(ctx, nil, identifier)
	return advisories, shared.PersistenceError(err)
}

// Vulnerability collects what the non deprecated advisories say about id.
func (g *Graph) Vulnerability(ctx context.Context, id string) (*dtos.VulnerabilityDetails, error) {
	v, err := g.advisoryRepository.FindVulnerability(ctx, nil, id)
	if err != nil {
		return nil, shared.PersistenceError(err)
	}
	if v == nil {
		return nil, errors.Wrapf(ErrNotFound, "vulnerability %s", id)
	}
	advisories, err := g.advisoryRepository.AdvisoriesOfVulnerability(ctx, nil, id)
	if err != nil {
		return nil, shared.PersistenceError(err)
	}
	descriptions, err := g.advisoryRepository.Descriptions(ctx, nil, id)
	if err != nil {
		return nil, shared.PersistenceError(err)
	}
	scores, err := g.advisoryRepository.Scores(ctx, nil, id)
	if err != nil {
		return nil, shared.PersistenceError(err)
	}

	details := &dtos.VulnerabilityDetails{
		ID:           v.ID,
		Title:        v.Title,
		Descriptions: make(map[string]string, len(descriptions)),
		CWEs:         v.CWEs,
		Advisories:   make([]dtos.AdvisorySummary, 0, len(advisories)),
		Scores:       make([]dtos.ScoreDTO, 0, len(scores)),
	}
	if details.CWEs == nil {
		details.CWEs = []string{}
	}
	for _, d := range descriptions {
		// several advisories may describe the vulnerability, the first
		// one per language wins
		if _, ok := details.Descriptions[d.Lang]; !ok {
			details.Descriptions[d.Lang] = d.Description
		}
	}
	for _, a := range advisories {
		details.Advisories = append(details.Advisories, dtos.AdvisorySummary{
			ID:         a.ID,
			Identifier: a.Identifier,
			Format:     a.Format,
			Title:      a.Title,
			Modified:   a.Modified,
			Deprecated: a.Deprecated,
		})
	}
	for _, s := range scores {
		details.Scores = append(details.Scores, dtos.ScoreDTO{
			Type:     s.Type,
			Vector:   s.Vector,
			Score:    s.Score,
			Severity: s.Severity,
		})
	}
	return details, nil
}

// SourceDocument opens the raw bytes a document was ingested from.
func (g *Graph) SourceDocument(ctx context.Context, sha256 string) (io.ReadCloser, error) {
	if g.blobs == nil {
		return nil, errors.Wrapf(ErrNotFound, "source document %s", sha256)
	}
	r, ok, err := g.blobs.Retrieve(ctx, sha256)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "source document %s", sha256)
	}
	return r, nil
}

// DeleteSbom removes the SBOM and everything scoped to it. Packages and
// licenses other documents may share stay.
func (g *Graph) DeleteSbom(ctx context.Context, sbomID uuid.UUID) error {
	var blob string
	err := g.transaction(ctx, func(tx *gorm.DB) error {
		blob = ""
		sbom, err := g.sbomRepository.FindByID(ctx, tx, sbomID)
		if err != nil {
			return err
		}
		if sbom == nil {
			return errors.Wrapf(ErrNotFound, "sbom %s", sbomID)
		}
		if err := g.sbomRepository.Delete(ctx, tx, sbomID); err != nil {
			return err
		}
		blob, err = g.releaseSourceDocument(ctx, tx, sbom.SourceDocumentID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return persistenceError(err, "could not delete sbom")
	}
	g.deleteBlob(ctx, blob)
	slog.Info("deleted sbom", "sbomID", sbomID)
	return nil
}

// DeleteAdvisory removes one advisory version with its statuses. The most
// recent remaining version of the identifier stops being deprecated.
func (g *Graph) DeleteAdvisory(ctx context.Context, advisoryID uuid.UUID) error {
	var blob string
	err := g.transaction(ctx, func(tx *gorm.DB) error {
		blob = ""
		a, err := g.advisoryRepository.FindByID(ctx, tx, advisoryID)
		if err != nil {
			return err
		}
		if a == nil {
			return errors.Wrapf(ErrNotFound, "advisory %s", advisoryID)
		}
		if err := g.advisoryRepository.Delete(ctx, tx, advisoryID); err != nil {
			return err
		}
		if err := g.advisoryRepository.RecomputeDeprecation(ctx, tx, a.Identifier); err != nil {
			return err
		}
		blob, err = g.releaseSourceDocument(ctx, tx, a.SourceDocumentID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return persistenceError(err, "could not delete advisory")
	}
	g.deleteBlob(ctx, blob)
	slog.Info("deleted advisory", "advisoryID", advisoryID)
	return nil
}
