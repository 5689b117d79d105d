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
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// DefaultDescribeDepth bounds the traversal below the described packages.
const DefaultDescribeDepth = 16

type sbomRepository struct {
	*GormRepository[uuid.UUID, models.Sbom]
	db *gorm.DB
}

func NewSbomRepository(db *gorm.DB) *sbomRepository {
	return &sbomRepository{
		db:             db,
		GormRepository: newGormRepository[uuid.UUID, models.Sbom](db),
	}
}

func (r *sbomRepository) FindByID(ctx context.Context, tx shared.DB, sbomID uuid.UUID) (*models.Sbom, error) {
	return ignoreNotFound(r.Read(ctx, tx, sbomID, "sbom_id"))
}

// FindByDocumentID returns the most recently ingested SBOM with the given
// document namespace or serial.
func (r *sbomRepository) FindByDocumentID(ctx context.Context, tx shared.DB, documentID string) (*models.Sbom, error) {
	var sbom models.Sbom
	err := r.GetDB(ctx, tx).Where("document_id = ?", documentID).Order("ingested_at DESC").First(&sbom).Error
	return ignoreNotFound(sbom, err)
}

func (r *sbomRepository) List(ctx context.Context, limit, offset int) ([]models.Sbom, error) {
	var sboms []models.Sbom
	err := r.db.WithContext(ctx).Order("ingested_at DESC").Limit(limit).Offset(offset).Find(&sboms).Error
	return sboms, err
}

// BackfillExternalTargets points external nodes of other SBOMs referencing
// documentID at sbomID.
func (r *sbomRepository) BackfillExternalTargets(ctx context.Context, tx shared.DB, documentID string, sbomID uuid.UUID) (int64, error) {
	res := r.GetDB(ctx, tx).Model(&models.SbomExternalNode{}).
		Where("external_doc_ref = ? AND target_sbom_id IS NULL AND sbom_id <> ?", documentID, sbomID).
		Update("target_sbom_id", sbomID)
	return res.RowsAffected, res.Error
}

func (r *sbomRepository) ExternalNodes(ctx context.Context, tx shared.DB, sbomID uuid.UUID) ([]models.SbomExternalNode, error) {
	var nodes []models.SbomExternalNode
	err := r.GetDB(ctx, tx).Where("sbom_id = ?", sbomID).Order("node_id").Find(&nodes).Error
	return nodes, err
}

// describedNodesQuery walks from the document node along containment and
// dependency edges. UNION drops duplicate (node, depth) pairs and the depth
// bound terminates cycles.
const describedNodesQuery = `
WITH RECURSIVE reachable(node_id, depth) AS (
	SELECT CAST(@root AS TEXT), 0
	UNION
	SELECT CASE WHEN e.left_node_id = reachable.node_id THEN e.right_node_id ELSE e.left_node_id END, reachable.depth + 1
	FROM package_relates_to_packages e
	JOIN reachable ON
		(e.relationship IN @down AND e.left_node_id = reachable.node_id)
		OR (e.relationship IN @up AND e.right_node_id = reachable.node_id)
	WHERE e.sbom_id = @sbom AND reachable.depth < @depth
)
SELECT n.node_id, n.name, p.version
FROM sbom_nodes n
LEFT JOIN sbom_packages p ON p.sbom_id = n.sbom_id AND p.node_id = n.node_id
WHERE n.sbom_id = @sbom
	AND n.node_id <> @root
	AND n.node_id IN (SELECT node_id FROM reachable)
ORDER BY n.node_id`

type packageRow struct {
	NodeID  string
	Name    string
	Version *string
}

// DescribedPackages returns every node reachable from the SBOM's document
// node within depth hops, with the purls and CPEs of package nodes.
func (r *sbomRepository) DescribedPackages(ctx context.Context, tx shared.DB, sbom models.Sbom, depth int) ([]dtos.PackageNode, error) {
	if depth <= 0 {
		depth = DefaultDescribeDepth
	}
	var rows []packageRow
	err := r.GetDB(ctx, tx).Raw(describedNodesQuery, map[string]any{
		"root":  sbom.NodeID,
		"sbom":  sbom.SbomID,
		"depth": depth,
		"down":  normalize.RelationshipNames(normalize.ParentToChild),
		"up":    normalize.RelationshipNames(normalize.ChildToParent),
	}).Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not traverse sbom graph")
	}
	return r.withIdentifiers(ctx, tx, sbom.SbomID, rows)
}

func (r *sbomRepository) withIdentifiers(ctx context.Context, tx shared.DB, sbomID uuid.UUID, rows []packageRow) ([]dtos.PackageNode, error) {
	nodes := make([]dtos.PackageNode, 0, len(rows))
	if len(rows) == 0 {
		return nodes, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.NodeID)
	}

	type refRow struct {
		NodeID string
		Ref    string
	}
	var purls []refRow
	err := r.GetDB(ctx, tx).Table("sbom_package_purl_refs r").
		Select("r.node_id AS node_id, q.purl AS ref").
		Joins("JOIN qualified_purls q ON q.id = r.qualified_purl_id").
		Where("r.sbom_id = ? AND r.node_id IN ?", sbomID, ids).
		Order("q.purl").
		Scan(&purls).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not load package purls")
	}

	type cpeRow struct {
		NodeID string
		models.Cpe
	}
	var cpeRows []cpeRow
	err = r.GetDB(ctx, tx).Table("sbom_package_cpe_refs r").
		Select("r.node_id AS node_id, c.*").
		Joins("JOIN cpes c ON c.id = r.cpe_id").
		Where("r.sbom_id = ? AND r.node_id IN ?", sbomID, ids).
		Scan(&cpeRows).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not load package cpes")
	}

	purlsByNode := make(map[string][]string)
	for _, p := range purls {
		purlsByNode[p.NodeID] = append(purlsByNode[p.NodeID], p.Ref)
	}
	cpesByNode := make(map[string][]string)
	for _, c := range cpeRows {
		cpesByNode[c.NodeID] = append(cpesByNode[c.NodeID], c.Cpe.ToNormalized().String())
	}

	for _, row := range rows {
		nodes = append(nodes, dtos.PackageNode{
			NodeID:  row.NodeID,
			Name:    row.Name,
			Version: row.Version,
			Purls:   append([]string{}, purlsByNode[row.NodeID]...),
			Cpes:    append([]string{}, cpesByNode[row.NodeID]...),
		})
	}
	return nodes, nil
}

// RelatedPackages returns the nodes sharing an edge with nodeID. A nil
// relationship matches every label.
func (r *sbomRepository) RelatedPackages(ctx context.Context, tx shared.DB, sbomID uuid.UUID, nodeID string, rel *normalize.Relationship, which dtos.Which) ([]dtos.RelatedNode, error) {
	type edgeRow struct {
		LeftNodeID   string
		Relationship string
		RightNodeID  string
		LeftName     string
		RightName    string
	}

	q := r.GetDB(ctx, tx).Table("package_relates_to_packages e").
		Select("e.left_node_id, e.relationship, e.right_node_id, COALESCE(l.name, '') AS left_name, COALESCE(rn.name, '') AS right_name").
		Joins("LEFT JOIN sbom_nodes l ON l.sbom_id = e.sbom_id AND l.node_id = e.left_node_id").
		Joins("LEFT JOIN sbom_nodes rn ON rn.sbom_id = e.sbom_id AND rn.node_id = e.right_node_id").
		Where("e.sbom_id = ?", sbomID)

	switch which {
	case dtos.WhichLeft:
		q = q.Where("e.left_node_id = ?", nodeID)
	case dtos.WhichRight:
		q = q.Where("e.right_node_id = ?", nodeID)
	default:
		q = q.Where("e.left_node_id = ? OR e.right_node_id = ?", nodeID, nodeID)
	}
	if rel != nil {
		q = q.Where("e.relationship = ?", rel.String())
	}

	var edges []edgeRow
	if err := q.Order("e.relationship, e.left_node_id, e.right_node_id").Scan(&edges).Error; err != nil {
		return nil, errors.Wrap(err, "could not load related packages")
	}

	related := make([]dtos.RelatedNode, 0, len(edges))
	for _, e := range edges {
		label, _ := normalize.ParseRelationship(e.Relationship)
		// on a self edge the node is on both sides
		if e.LeftNodeID == nodeID && which != dtos.WhichRight {
			related = append(related, dtos.RelatedNode{Relationship: label, NodeID: e.RightNodeID, Name: e.RightName})
			continue
		}
		related = append(related, dtos.RelatedNode{Relationship: label, Left: true, NodeID: e.LeftNodeID, Name: e.LeftName})
	}
	return related, nil
}

// Delete removes the SBOM with its nodes, edges, license assertions and
// product versions. Shared purls, cpes and licenses stay. External nodes
// of other SBOMs pointing here lose their target.
func (r *sbomRepository) Delete(ctx context.Context, tx shared.DB, sbomID uuid.UUID) error {
	db := r.GetDB(ctx, tx)
	for _, model := range []any{
		&models.PackageRelatesToPackage{},
		&models.SbomPackagePurlRef{},
		&models.SbomPackageCpeRef{},
		&models.SbomPackage{},
		&models.SbomFile{},
		&models.SbomExternalNode{},
		&models.PurlLicenseAssertion{},
		&models.CpeLicenseAssertion{},
		&models.ExtractedLicensingInfo{},
		&models.ProductVersion{},
		&models.SbomNode{},
		&models.Sbom{},
	} {
		if err := db.Where("sbom_id = ?", sbomID).Delete(model).Error; err != nil {
			return errors.Wrapf(err, "could not delete %T rows", model)
		}
	}
	return db.Model(&models.SbomExternalNode{}).
		Where("target_sbom_id = ?", sbomID).
		Update("target_sbom_id", nil).Error
}

func (r *sbomRepository) CountNodes(ctx context.Context, tx shared.DB, sbomID uuid.UUID) (int64, error) {
	var n int64
	err := r.GetDB(ctx, tx).Model(&models.SbomNode{}).Where("sbom_id = ?", sbomID).Count(&n).Error
	return n, err
}
