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

// StatusCreator writes the purl and product statuses of one advisory
// together with the version ranges, purls, cpes and products they point to.
type StatusCreator struct {
	batch
	advisoryID    uuid.UUID
	purls         *PurlCreator
	cpes          *CpeCreator
	organizations *rowSet[uuid.UUID, models.Organization]
	products      *rowSet[uuid.UUID, models.Product]
	ranges        *rowSet[uuid.UUID, models.VersionRange]
	purlStatuses  *rowSet[uuid.UUID, models.PurlStatus]
	productRanges *rowSet[uuid.UUID, models.ProductVersionRange]
	productStatus *rowSet[uuid.UUID, models.ProductStatus]
}

func NewStatusCreator(advisoryID uuid.UUID) *StatusCreator {
	return &StatusCreator{
		batch:         newBatch(),
		advisoryID:    advisoryID,
		purls:         NewPurlCreator(),
		cpes:          NewCpeCreator(),
		organizations: newUUIDRowSet[models.Organization](),
		products:      newUUIDRowSet[models.Product](),
		ranges:        newUUIDRowSet[models.VersionRange](),
		purlStatuses:  newUUIDRowSet[models.PurlStatus](),
		productRanges: newUUIDRowSet[models.ProductVersionRange](),
		productStatus: newUUIDRowSet[models.ProductStatus](),
	}
}

func (c *StatusCreator) WithBatchSize(size int) *StatusCreator {
	c.setSize(size)
	c.purls.setSize(size)
	c.cpes.setSize(size)
	return c
}

func (c *StatusCreator) addRange(r normalize.VersionRange) uuid.UUID {
	row := models.VersionRangeFromNormalized(r)
	c.ranges.add(row.ID, row)
	return row.ID
}

func (c *StatusCreator) addContext(cpe *normalize.Cpe) *uuid.UUID {
	if cpe == nil {
		return nil
	}
	id := c.cpes.Add(*cpe)
	return &id
}

// AddPurlStatus records that every version of the purl's package inside r
// has the given status for the vulnerability.
func (c *StatusCreator) AddPurlStatus(vulnerabilityID, status string, purl normalize.Purl, r normalize.VersionRange, contextCpe *normalize.Cpe) uuid.UUID {
	baseID := c.purls.AddBase(purl)
	rangeID := c.addRange(r)
	statusID := models.StatusID(status)
	cpeID := c.addContext(contextCpe)

	id := models.PurlStatusID(c.advisoryID, vulnerabilityID, statusID, baseID, rangeID, cpeID)
	c.purlStatuses.add(id, models.PurlStatus{
		ID:              id,
		AdvisoryID:      c.advisoryID,
		VulnerabilityID: vulnerabilityID,
		StatusID:        statusID,
		BasePurlID:      baseID,
		VersionRangeID:  rangeID,
		ContextCpeID:    cpeID,
	})
	return id
}

// AddProduct registers a product and its vendor. The product is keyed by
// vendor and name so the same product named by different advisories
// resolves to one row.
func (c *StatusCreator) AddProduct(vendor *string, name string, cpe *normalize.Cpe) uuid.UUID {
	var vendorID *uuid.UUID
	if vendor != nil && *vendor != "" {
		id := models.OrganizationID(*vendor)
		vendorID = &id
		c.organizations.add(id, models.Organization{ID: id, Name: *vendor})
	}
	var cpeKey *string
	if cpe != nil {
		key := CpeProductKey(*cpe)
		cpeKey = &key
	}
	id := models.ProductID(vendorID, name)
	c.products.add(id, models.Product{ID: id, Name: name, VendorID: vendorID, CpeKey: cpeKey})
	return id
}

func (c *StatusCreator) AddProductStatus(vulnerabilityID, status string, productID uuid.UUID, r normalize.VersionRange, cpe *normalize.Cpe, pkg *string) uuid.UUID {
	rangeID := c.addRange(r)
	var cpeKey *string
	if cpe != nil {
		key := CpeProductKey(*cpe)
		cpeKey = &key
	}
	productRangeID := models.ProductVersionRangeID(productID, rangeID, cpeKey)
	c.productRanges.add(productRangeID, models.ProductVersionRange{
		ID:             productRangeID,
		ProductID:      productID,
		VersionRangeID: rangeID,
		CpeKey:         cpeKey,
	})

	statusID := models.StatusID(status)
	cpeID := c.addContext(cpe)
	id := models.ProductStatusID(c.advisoryID, vulnerabilityID, statusID, productRangeID, cpeID, pkg)
	c.productStatus.add(id, models.ProductStatus{
		ID:                    id,
		AdvisoryID:            c.advisoryID,
		VulnerabilityID:       vulnerabilityID,
		StatusID:              statusID,
		ProductVersionRangeID: productRangeID,
		ContextCpeID:          cpeID,
		Package:               pkg,
	})
	return id
}

func (c *StatusCreator) Len() int {
	return c.purlStatuses.len() + c.productStatus.len()
}

func (c *StatusCreator) Create(ctx context.Context, tx *gorm.DB) error {
	if err := c.purls.Create(ctx, tx); err != nil {
		return err
	}
	if err := c.cpes.Create(ctx, tx); err != nil {
		return err
	}
	for _, create := range []func(context.Context, *gorm.DB, batch) error{
		c.organizations.create,
		c.products.create,
		c.ranges.create,
		c.purlStatuses.create,
		c.productRanges.create,
		c.productStatus.create,
	} {
		if err := create(ctx, tx, c.batch); err != nil {
			return err
		}
	}
	return nil
}

// CpeProductKey is the vendor:product pair identifying a product family.
func CpeProductKey(c normalize.Cpe) string {
	return c.Vendor.String() + ":" + c.Product.String()
}
