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

package creators

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"gorm.io/gorm"
)

// NodeCreator writes the nodes of one SBOM. Every package and file is also
// a node; placeholder nodes only get the node row.
type NodeCreator struct {
	batch
	sbomID   uuid.UUID
	nodes    *rowSet[string, models.SbomNode]
	packages *rowSet[string, models.SbomPackage]
	files    *rowSet[string, models.SbomFile]
	purlRefs *rowSet[nodeKey, models.SbomPackagePurlRef]
	cpeRefs  *rowSet[nodeKey, models.SbomPackageCpeRef]
}

func NewNodeCreator(sbomID uuid.UUID) *NodeCreator {
	return &NodeCreator{
		batch:    newBatch(),
		sbomID:   sbomID,
		nodes:    newRowSet[string, models.SbomNode](strings.Compare),
		packages: newRowSet[string, models.SbomPackage](strings.Compare),
		files:    newRowSet[string, models.SbomFile](strings.Compare),
		purlRefs: newRowSet[nodeKey, models.SbomPackagePurlRef](compareNodeKey),
		cpeRefs:  newRowSet[nodeKey, models.SbomPackageCpeRef](compareNodeKey),
	}
}

func (c *NodeCreator) WithBatchSize(size int) *NodeCreator {
	c.setSize(size)
	return c
}

// AddNode registers a node of no particular kind.
func (c *NodeCreator) AddNode(nodeID, name string) {
	c.nodes.add(nodeID, models.SbomNode{SbomID: c.sbomID, NodeID: nodeID, Name: name})
}

func (c *NodeCreator) AddPackage(nodeID, name string, version *string, purls []normalize.Purl, cpes []normalize.Cpe) {
	c.AddNode(nodeID, name)
	c.packages.add(nodeID, models.SbomPackage{SbomID: c.sbomID, NodeID: nodeID, Version: version})
	for _, p := range purls {
		id := p.QualifiedID()
		c.purlRefs.add(nodeKey{nodeID: nodeID, ref: id}, models.SbomPackagePurlRef{SbomID: c.sbomID, NodeID: nodeID, QualifiedPurlID: id})
	}
	for _, cpe := range cpes {
		id := cpe.ID()
		c.cpeRefs.add(nodeKey{nodeID: nodeID, ref: id}, models.SbomPackageCpeRef{SbomID: c.sbomID, NodeID: nodeID, CpeID: id})
	}
}

func (c *NodeCreator) AddFile(nodeID, name string) {
	c.AddNode(nodeID, name)
	c.files.add(nodeID, models.SbomFile{SbomID: c.sbomID, NodeID: nodeID})
}

func (c *NodeCreator) Len() int {
	return c.nodes.len()
}

func (c *NodeCreator) Create(ctx context.Context, tx *gorm.DB) error {
	for _, create := range []func(context.Context, *gorm.DB, batch) error{
		c.nodes.create,
		c.packages.create,
		c.files.create,
		c.purlRefs.create,
		c.cpeRefs.create,
	} {
		if err := create(ctx, tx, c.batch); err != nil {
			return err
		}
	}
	return nil
}

// ExternalNodeCreator writes references into other SBOMs.
type ExternalNodeCreator struct {
	batch
	sbomID uuid.UUID
	nodes  *rowSet[string, models.SbomExternalNode]
}

func NewExternalNodeCreator(sbomID uuid.UUID) *ExternalNodeCreator {
	return &ExternalNodeCreator{
		batch:  newBatch(),
		sbomID: sbomID,
		nodes:  newRowSet[string, models.SbomExternalNode](strings.Compare),
	}
}

func (c *ExternalNodeCreator) Add(nodeID, externalDocRef, externalNodeRef string, externalType models.ExternalType, target *uuid.UUID) {
	c.nodes.add(nodeID, models.SbomExternalNode{
		SbomID:          c.sbomID,
		NodeID:          nodeID,
		ExternalDocRef:  externalDocRef,
		ExternalNodeRef: externalNodeRef,
		ExternalType:    externalType,
		TargetSbomID:    target,
	})
}

func (c *ExternalNodeCreator) Len() int {
	return c.nodes.len()
}

func (c *ExternalNodeCreator) Create(ctx context.Context, tx *gorm.DB) error {
	return c.nodes.create(ctx, tx, c.batch)
}

// RelationshipCreator writes the edges of one SBOM.
type RelationshipCreator struct {
	batch
	sbomID uuid.UUID
	edges  *rowSet[triple, models.PackageRelatesToPackage]
}

func NewRelationshipCreator(sbomID uuid.UUID) *RelationshipCreator {
	return &RelationshipCreator{
		batch:  newBatch(),
		sbomID: sbomID,
		edges:  newRowSet[triple, models.PackageRelatesToPackage](compareTriple),
	}
}

func (c *RelationshipCreator) Add(left string, rel normalize.Relationship, right string) {
	c.edges.add(triple{a: left, b: rel.String(), c: right}, models.PackageRelatesToPackage{
		SbomID:       c.sbomID,
		LeftNodeID:   left,
		Relationship: rel.String(),
		RightNodeID:  right,
	})
}

func (c *RelationshipCreator) Len() int {
	return c.edges.len()
}

func (c *RelationshipCreator) Create(ctx context.Context, tx *gorm.DB) error {
	return c.edges.create(ctx, tx, c.batch)
}
