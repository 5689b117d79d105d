// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/creators"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/sbom"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func SbomID(sha256 string) uuid.UUID {
	return normalize.DeriveUUID(normalize.Str("sbom"), normalize.Str(sha256))
}

// IngestSbom parses data and writes the SBOM graph. Ingesting the same
// bytes twice returns the first result with Existing set.
func (g *Graph) IngestSbom(ctx context.Context, format sbom.Format, data []byte, labels map[string]string) (result *IngestResult, err error) {
	start := time.Now()
	defer func() { observe(format.String(), start, err) }()

	doc, err := sbom.Parse(format, data)
	if err != nil {
		return nil, err
	}
	digests := digestsOf(data)
	if err := g.storeBlob(ctx, data, digests); err != nil {
		return nil, err
	}

	sbomID := SbomID(digests.sha256)
	result = &IngestResult{
		ID:         sbomID,
		Kind:       KindSbom,
		Format:     format.String(),
		DocumentID: doc.DocumentID,
		Sha256:     digests.sha256,
		Warnings:   doc.Warnings,
	}

	err = g.transaction(ctx, func(tx *gorm.DB) error {
		result.Existing = false
		existing, err := g.sbomRepository.FindByID(ctx, tx, sbomID)
		if err != nil {
			return errors.Wrap(err, "could not look up sbom")
		}
		if existing != nil {
			result.Existing = true
			return nil
		}
		err = g.writeSbom(ctx, tx, sbomID, doc, digests, labels)
		if errors.Is(err, errAlreadyIngested) {
			result.Existing = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, persistenceError(err, "could not ingest sbom")
	}
	if result.Existing {
		slog.Debug("sbom already ingested", "sbomID", sbomID)
	} else {
		slog.Info("ingested sbom", "sbomID", sbomID, "format", format, "nodes", len(doc.Nodes), "edges", len(doc.Edges), "warnings", len(doc.Warnings))
	}
	return result, nil
}

func (g *Graph) writeSbom(ctx context.Context, tx *gorm.DB, sbomID uuid.UUID, doc *sbom.Document, digests digests, labels map[string]string) error {
	sourceID, err := g.createSourceDocument(ctx, tx, digests)
	if err != nil {
		return err
	}
	row := models.Sbom{
		SbomID:           sbomID,
		NodeID:           doc.RootID,
		DocumentID:       doc.DocumentID,
		Format:           doc.Format.String(),
		Name:             doc.Name,
		Published:        doc.Published,
		Authors:          doc.Authors,
		DataLicenses:     doc.DataLicenses,
		SourceDocumentID: &sourceID,
		Labels:           labelsOf(labels),
		IngestedAt:       g.now().UTC(),
	}
	created, err := g.sbomRepository.CreateIfAbsent(ctx, tx, &row)
	if err != nil {
		return errors.Wrap(err, "could not create sbom")
	}
	if !created {
		return errAlreadyIngested
	}

	purls := creators.NewPurlCreator().WithBatchSize(g.batchSize)
	cpes := creators.NewCpeCreator()
	nodes := creators.NewNodeCreator(sbomID).WithBatchSize(g.batchSize)
	externals := creators.NewExternalNodeCreator(sbomID)
	relationships := creators.NewRelationshipCreator(sbomID)
	licenses := creators.NewLicenseCreator(sbomID).WithBatchSize(g.batchSize)
	extracted := creators.NewExtractedLicensingInfoCreator(sbomID)

	targets := map[string]*uuid.UUID{}
	for _, n := range doc.Nodes {
		switch n.Kind {
		case sbom.KindPackage:
			nodes.AddPackage(n.ID, n.Name, n.Version, n.Purls, n.Cpes)
			for _, p := range n.Purls {
				purls.Add(p)
			}
			for _, c := range n.Cpes {
				cpes.Add(c)
			}
			for _, text := range n.Licenses {
				licenseID := licenses.Add(text)
				for _, p := range n.Purls {
					licenses.AddPurlAssertion(licenseID, p)
				}
				for _, c := range n.Cpes {
					licenses.AddCpeAssertion(licenseID, c)
				}
			}
		case sbom.KindFile:
			nodes.AddFile(n.ID, n.Name)
			// files carry no identity to assert against, only the text is kept
			for _, text := range n.Licenses {
				licenses.Add(text)
			}
		case sbom.KindExternal:
			nodes.AddNode(n.ID, n.Name)
			target, ok := targets[n.External.DocumentRef]
			if !ok {
				found, err := g.sbomRepository.FindByDocumentID(ctx, tx, n.External.DocumentRef)
				if err != nil {
					return errors.Wrap(err, "could not resolve external document")
				}
				if found != nil {
					target = &found.SbomID
				}
				targets[n.External.DocumentRef] = target
			}
			externals.Add(n.ID, n.External.DocumentRef, n.External.NodeRef, n.External.Type, target)
		default:
			nodes.AddNode(n.ID, n.Name)
		}
	}
	for _, e := range doc.Edges {
		relationships.Add(doc.Nodes[e.Left].ID, e.Relationship, doc.Nodes[e.Right].ID)
	}
	for _, info := range doc.Extracted {
		extracted.Add(info.LicenseID, info.Name, info.Text, info.Comment, info.Detected)
	}

	for _, c := range []interface {
		Create(ctx context.Context, tx *gorm.DB) error
	}{purls, cpes, nodes, externals, relationships, licenses, extracted} {
		if err := c.Create(ctx, tx); err != nil {
			return err
		}
	}

	if doc.DocumentID != nil {
		n, err := g.sbomRepository.BackfillExternalTargets(ctx, tx, *doc.DocumentID, sbomID)
		if err != nil {
			return errors.Wrap(err, "could not link external nodes")
		}
		if n > 0 {
			slog.Debug("linked external nodes of earlier sboms", "sbomID", sbomID, "count", n)
		}
	}
	return nil
}
