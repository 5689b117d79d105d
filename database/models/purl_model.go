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
	"gorm.io/datatypes"
)

// BasePurl is type + namespace + name.
type BasePurl struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Type      string    `json:"type" gorm:"type:text;not null;index:idx_base_purl_coordinates"`
	Namespace *string   `json:"namespace" gorm:"type:text;index:idx_base_purl_coordinates"`
	Name      string    `json:"name" gorm:"type:text;not null;index:idx_base_purl_coordinates"`
}

func (BasePurl) TableName() string {
	return "base_purls"
}

type VersionedPurl struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BasePurlID uuid.UUID `json:"basePurlId" gorm:"type:uuid;not null;index"`
	Version    *string   `json:"version" gorm:"type:text"`
}

func (VersionedPurl) TableName() string {
	return "versioned_purls"
}

type QualifiedPurl struct {
	ID              uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	VersionedPurlID uuid.UUID         `json:"versionedPurlId" gorm:"type:uuid;not null;index"`
	Qualifiers      datatypes.JSONMap `json:"qualifiers"`
	Purl            string            `json:"purl" gorm:"type:text;not null"`
}

func (QualifiedPurl) TableName() string {
	return "qualified_purls"
}

func BasePurlFromNormalized(p normalize.Purl) BasePurl {
	return BasePurl{ID: p.BaseID(), Type: p.Type, Namespace: p.Namespace, Name: p.Name}
}

func VersionedPurlFromNormalized(p normalize.Purl) VersionedPurl {
	return VersionedPurl{ID: p.VersionedID(), BasePurlID: p.BaseID(), Version: p.Version}
}

func QualifiedPurlFromNormalized(p normalize.Purl) QualifiedPurl {
	qualifiers := make(datatypes.JSONMap, len(p.Qualifiers))
	for k, v := range p.Qualifiers {
		qualifiers[k] = v
	}
	return QualifiedPurl{ID: p.QualifiedID(), VersionedPurlID: p.VersionedID(), Qualifiers: qualifiers, Purl: p.String()}
}

type Cpe struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Part     *string   `json:"part" gorm:"type:text"`
	Vendor   *string   `json:"vendor" gorm:"type:text;index"`
	Product  *string   `json:"product" gorm:"type:text;index"`
	Version  *string   `json:"version" gorm:"type:text"`
	Update   *string   `json:"update" gorm:"type:text"`
	Edition  *string   `json:"edition" gorm:"type:text"`
	Language *string   `json:"language" gorm:"type:text"`
}

func (Cpe) TableName() string {
	return "cpes"
}

func CpeFromNormalized(c normalize.Cpe) Cpe {
	return Cpe{
		ID:       c.ID(),
		Part:     c.Part.Ptr(),
		Vendor:   c.Vendor.Ptr(),
		Product:  c.Product.Ptr(),
		Version:  c.Version.Ptr(),
		Update:   c.Update.Ptr(),
		Edition:  c.Edition.Ptr(),
		Language: c.Language.Ptr(),
	}
}

func (c Cpe) ToNormalized() normalize.Cpe {
	return normalize.Cpe{
		Part:     normalize.CpeValueFromPtr(c.Part),
		Vendor:   normalize.CpeValueFromPtr(c.Vendor),
		Product:  normalize.CpeValueFromPtr(c.Product),
		Version:  normalize.CpeValueFromPtr(c.Version),
		Update:   normalize.CpeValueFromPtr(c.Update),
		Edition:  normalize.CpeValueFromPtr(c.Edition),
		Language: normalize.CpeValueFromPtr(c.Language),
	}
}
