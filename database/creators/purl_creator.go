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

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"gorm.io/gorm"
)

// PurlCreator writes the base, versioned and qualified rows of every purl.
type PurlCreator struct {
	batch
	base      *rowSet[uuid.UUID, models.BasePurl]
	versioned *rowSet[uuid.UUID, models.VersionedPurl]
	qualified *rowSet[uuid.UUID, models.QualifiedPurl]
}

func NewPurlCreator() *PurlCreator {
	return &PurlCreator{
		batch:     newBatch(),
		base:      newUUIDRowSet[models.BasePurl](),
		versioned: newUUIDRowSet[models.VersionedPurl](),
		qualified: newUUIDRowSet[models.QualifiedPurl](),
	}
}

func (c *PurlCreator) WithBatchSize(size int) *PurlCreator {
	c.setSize(size)
	return c
}

// Add registers the purl and returns its qualified id.
func (c *PurlCreator) Add(p normalize.Purl) uuid.UUID {
	c.base.add(p.BaseID(), models.BasePurlFromNormalized(p))
	c.versioned.add(p.VersionedID(), models.VersionedPurlFromNormalized(p))
	qualified := models.QualifiedPurlFromNormalized(p)
	c.qualified.add(qualified.ID, qualified)
	return qualified.ID
}

// AddBase registers only the base row, for statuses that address every
// version of a package.
func (c *PurlCreator) AddBase(p normalize.Purl) uuid.UUID {
	id := p.BaseID()
	c.base.add(id, models.BasePurlFromNormalized(p))
	return id
}

func (c *PurlCreator) Len() int {
	return c.qualified.len()
}

func (c *PurlCreator) Create(ctx context.Context, tx *gorm.DB) error {
	if err := c.base.create(ctx, tx, c.batch); err != nil {
		return err
	}
	if err := c.versioned.create(ctx, tx, c.batch); err != nil {
		return err
	}
	return c.qualified.create(ctx, tx, c.batch)
}

type CpeCreator struct {
	batch
	cpes *rowSet[uuid.UUID, models.Cpe]
}

func NewCpeCreator() *CpeCreator {
	return &CpeCreator{batch: newBatch(), cpes: newUUIDRowSet[models.Cpe]()}
}

func (c *CpeCreator) Add(cpe normalize.Cpe) uuid.UUID {
	row := models.CpeFromNormalized(cpe)
	c.cpes.add(row.ID, row)
	return row.ID
}

func (c *CpeCreator) Create(ctx context.Context, tx *gorm.DB) error {
	return c.cpes.create(ctx, tx, c.batch)
}
