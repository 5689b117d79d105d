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
	"github.com/l3montree-dev/trustgraph/normalize"
)

type Organization struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name    string    `json:"name" gorm:"type:text;not null;uniqueIndex"`
	CpeKey  *string   `json:"cpeKey" gorm:"type:text"`
	Website *string   `json:"website" gorm:"type:text"`
}

func (Organization) TableName() string {
	return "organizations"
}

func OrganizationID(name string) uuid.UUID {
	return normalize.DeriveUUID(normalize.Str("organization"), normalize.Str(name))
}

type Product struct {
	ID       uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name     string     `json:"name" gorm:"type:text;not null;index"`
	VendorID *uuid.UUID `json:"vendorId" gorm:"type:uuid;index"`
	CpeKey   *string    `json:"cpeKey" gorm:"type:text;index"`
}

func (Product) TableName() string {
	return "products"
}

func ProductID(vendorID *uuid.UUID, name string) uuid.UUID {
	return normalize.DeriveUUID(normalize.Str("product"), uuidField(vendorID), normalize.Str(name))
}

// ProductVersion links to at most one SBOM and is deleted with it.
type ProductVersion struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID  `json:"productId" gorm:"type:uuid;not null;index"`
	Version   string     `json:"version" gorm:"type:text;not null"`
	SbomID    *uuid.UUID `json:"sbomId" gorm:"type:uuid;index"`
}

func (ProductVersion) TableName() string {
	return "product_versions"
}

func ProductVersionID(productID uuid.UUID, version string) uuid.UUID {
	return normalize.DeriveUUID(normalize.Str("product_version"), normalize.Str(productID.String()), normalize.Str(version))
}
