// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package graph

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/advisory"
	"github.com/l3montree-dev/trustgraph/database/creators"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdvisoryID identifies one version of an advisory. Versions of the same
// identifier differ by content.
func AdvisoryID(identifier, sha256 string) uuid.UUID {
	return normalize.DeriveUUID(normalize.Str("advisory"), normalize.Str(identifier), normalize.Str(sha256))
}

// IngestAdvisory parses data and writes the advisory, its vulnerabilities
// and statuses. Earlier versions of the same identifier become deprecated
// but keep their statuses.
func (g *Graph) IngestAdvisory(ctx context.Context, format advisory.Format, data []byte, labels map[string]string) (result *IngestResult, err error) {
	start := time.Now()
	defer func() { observe(format.String(), start, err) }()

	doc, err := advisory.Parse(format, data, advisory.Options{ValidateCSAF: g.validateCSAF})
	if err != nil {
		return nil, err
	}
	digests := digestsOf(data)
	if err := g.storeBlob(ctx, data, digests); err != nil {
		return nil, err
	}

	advisoryID := AdvisoryID(doc.Identifier, digests.sha256)
	result = &IngestResult{
		ID:         advisoryID,
		Kind:       KindAdvisory,
		Format:     format.String(),
		DocumentID: &doc.Identifier,
		Sha256:     digests.sha256,
		Warnings:   doc.Warnings,
	}

	var issuers []string
	err = g.transaction(ctx, func(tx *gorm.DB) error {
		result.Existing = false
		issuers = issuers[:0]
		existing, err := g.advisoryRepository.FindByID(ctx, tx, advisoryID)
		if err != nil {
			return errors.Wrap(err, "could not look up advisory")
		}
		if existing != nil {
			result.Existing = true
			return nil
		}
		issuers, err = g.writeAdvisory(ctx, tx, advisoryID, doc, digests, labels)
		if errors.Is(err, errAlreadyIngested) {
			result.Existing = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, persistenceError(err, "could not ingest advisory")
	}
	// only committed organizations are remembered
	for _, name := range issuers {
		g.organizations.Add(name, models.OrganizationID(name))
	}
	if result.Existing {
		slog.Debug("advisory already ingested", "advisoryID", advisoryID, "identifier", doc.Identifier)
	} else {
		slog.Info("ingested advisory", "advisoryID", advisoryID, "identifier", doc.Identifier, "format", format, "vulnerabilities", len(doc.Vulnerabilities), "warnings", len(doc.Warnings))
	}
	return result, nil
}

func (g *Graph) writeAdvisory(ctx context.Context, tx *gorm.DB, advisoryID uuid.UUID, doc *advisory.Document, digests digests, labels map[string]string) ([]string, error) {
	sourceID, err := g.createSourceDocument(ctx, tx, digests)
	if err != nil {
		return nil, err
	}

	var issuers []string
	var issuerID *uuid.UUID
	if doc.Issuer != nil && *doc.Issuer != "" {
		id, created, err := g.ensureOrganization(ctx, tx, *doc.Issuer, nil)
		if err != nil {
			return nil, err
		}
		issuerID = &id
		if created {
			issuers = append(issuers, *doc.Issuer)
		}
	}

	row := models.Advisory{
		ID:               advisoryID,
		Identifier:       doc.Identifier,
		Sha256:           digests.sha256,
		Format:           doc.Format.String(),
		Version:          doc.Version,
		Title:            doc.Title,
		IssuerID:         issuerID,
		Published:        doc.Published,
		Modified:         doc.Modified,
		Withdrawn:        doc.Withdrawn,
		SourceDocumentID: &sourceID,
		Labels:           labelsOf(labels),
		IngestedAt:       g.now().UTC(),
	}
	created, err := g.advisoryRepository.CreateIfAbsent(ctx, tx, &row)
	if err != nil {
		return nil, errors.Wrap(err, "could not create advisory")
	}
	if !created {
		return issuers, errAlreadyIngested
	}

	vulnerabilities := slices.Clone(doc.Vulnerabilities)
	slices.SortStableFunc(vulnerabilities, func(a, b advisory.Vulnerability) int {
		return strings.Compare(a.ID, b.ID)
	})

	links := creators.NewAdvisoryVulnerabilityCreator(advisoryID).WithBatchSize(g.batchSize)
	statuses := creators.NewStatusCreator(advisoryID).WithBatchSize(g.batchSize)
	for _, v := range vulnerabilities {
		if err := g.advisoryRepository.UpsertVulnerability(ctx, tx, models.Vulnerability{
			ID:        v.ID,
			Title:     v.Title,
			Published: v.Published,
			Modified:  v.Modified,
			Withdrawn: v.Withdrawn,
			Reserved:  v.Reserved,
			CWEs:      v.CWEs,
		}); err != nil {
			return nil, errors.Wrapf(err, "could not upsert vulnerability %s", v.ID)
		}

		links.AddLink(models.AdvisoryVulnerability{
			VulnerabilityID: v.ID,
			Title:           v.Title,
			Summary:         v.Summary,
			DiscoveryDate:   v.DiscoveryDate,
			ReleaseDate:     v.ReleaseDate,
			CWEs:            v.CWEs,
		})
		for _, lang := range utils.SortedKeys(v.Descriptions) {
			links.AddDescription(v.ID, lang, v.Descriptions[lang])
		}
		for _, s := range v.Scores {
			links.AddScore(v.ID, s.Type, s.Vector, s.Score, s.Severity)
		}

		for _, p := range v.Packages {
			statuses.AddPurlStatus(v.ID, p.Status, p.Purl, p.Range, p.Context)
		}
		for _, p := range v.Products {
			productID := statuses.AddProduct(p.Vendor, p.Product, p.Cpe)
			statuses.AddProductStatus(v.ID, p.Status, productID, p.Range, p.Cpe, p.Package)
		}
	}

	if err := links.Create(ctx, tx); err != nil {
		return nil, err
	}
	if err := statuses.Create(ctx, tx); err != nil {
		return nil, err
	}
	if err := g.advisoryRepository.RecomputeDeprecation(ctx, tx, doc.Identifier); err != nil {
		return nil, err
	}
	return issuers, nil
}

// ensureOrganization inserts the organization unless the cache knows it is
// already there. created reports whether the cache should learn it after
// commit.
func (g *Graph) ensureOrganization(ctx context.Context, tx *gorm.DB, name string, website *string) (uuid.UUID, bool, error) {
	if id, ok := g.organizations.Get(name); ok && website == nil {
		return id, false, nil
	}
	org := models.Organization{ID: models.OrganizationID(name), Name: name, Website: website}
	q := tx.WithContext(ctx)
	if website != nil {
		q = q.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"website"}),
		})
	} else {
		q = q.Clauses(clause.OnConflict{DoNothing: true})
	}
	if err := q.Create(&org).Error; err != nil {
		return uuid.Nil, false, errors.Wrapf(err, "could not create organization %s", name)
	}
	return org.ID, true, nil
}
