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
	"cmp"
	"context"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"gorm.io/gorm"
)

func LicenseID(text string) uuid.UUID {
	return normalize.DeriveUUID(normalize.Str("license"), normalize.Str(text))
}

type assertionKey struct {
	license uuid.UUID
	target  uuid.UUID
}

func compareAssertionKey(a, b assertionKey) int {
	return cmp.Or(normalize.CompareUUID(a.license, b.license), normalize.CompareUUID(a.target, b.target))
}

// LicenseCreator writes license texts and the assertions linking them to
// purls and CPEs of one SBOM.
type LicenseCreator struct {
	batch
	sbomID         uuid.UUID
	licenses       *rowSet[uuid.UUID, models.License]
	purlAssertions *rowSet[assertionKey, models.PurlLicenseAssertion]
	cpeAssertions  *rowSet[assertionKey, models.CpeLicenseAssertion]
}

func NewLicenseCreator(sbomID uuid.UUID) *LicenseCreator {
	return &LicenseCreator{
		batch:          newBatch(),
		sbomID:         sbomID,
		licenses:       newUUIDRowSet[models.License](),
		purlAssertions: newRowSet[assertionKey, models.PurlLicenseAssertion](compareAssertionKey),
		cpeAssertions:  newRowSet[assertionKey, models.CpeLicenseAssertion](compareAssertionKey),
	}
}

func (c *LicenseCreator) WithBatchSize(size int) *LicenseCreator {
	c.setSize(size)
	return c
}

// Add registers an SPDX expression and returns the id of its license row.
func (c *LicenseCreator) Add(text string) uuid.UUID {
	expr := normalize.ParseSpdxExpression(text)
	id := LicenseID(expr.Text)
	c.licenses.add(id, models.License{
		ID:                    id,
		Text:                  expr.Text,
		SpdxLicenses:          expr.Licenses,
		SpdxLicenseExceptions: expr.Exceptions,
	})
	return id
}

func (c *LicenseCreator) AddPurlAssertion(licenseID uuid.UUID, purl normalize.Purl) {
	versionedID := purl.VersionedID()
	c.purlAssertions.add(assertionKey{license: licenseID, target: versionedID}, models.PurlLicenseAssertion{
		SbomID:          c.sbomID,
		LicenseID:       licenseID,
		VersionedPurlID: versionedID,
	})
}

func (c *LicenseCreator) AddCpeAssertion(licenseID uuid.UUID, cpe normalize.Cpe) {
	cpeID := cpe.ID()
	c.cpeAssertions.add(assertionKey{license: licenseID, target: cpeID}, models.CpeLicenseAssertion{
		SbomID:    c.sbomID,
		LicenseID: licenseID,
		CpeID:     cpeID,
	})
}

func (c *LicenseCreator) Len() int {
	return c.licenses.len()
}

func (c *LicenseCreator) Create(ctx context.Context, tx *gorm.DB) error {
	if err := c.licenses.create(ctx, tx, c.batch); err != nil {
		return err
	}
	if err := c.purlAssertions.create(ctx, tx, c.batch); err != nil {
		return err
	}
	return c.cpeAssertions.create(ctx, tx, c.batch)
}

// ExtractedLicensingInfoCreator writes the document local license
// definitions of one SBOM.
type ExtractedLicensingInfoCreator struct {
	batch
	sbomID uuid.UUID
	infos  *rowSet[uuid.UUID, models.ExtractedLicensingInfo]
}

func NewExtractedLicensingInfoCreator(sbomID uuid.UUID) *ExtractedLicensingInfoCreator {
	return &ExtractedLicensingInfoCreator{
		batch:  newBatch(),
		sbomID: sbomID,
		infos:  newUUIDRowSet[models.ExtractedLicensingInfo](),
	}
}

func (c *ExtractedLicensingInfoCreator) Add(licenseID, name, text string, comment *string, detected []string) uuid.UUID {
	id := normalize.DeriveUUID(normalize.Str("extracted_licensing_info"), normalize.Str(c.sbomID.String()), normalize.Str(licenseID))
	if detected == nil {
		detected = []string{}
	}
	c.infos.add(id, models.ExtractedLicensingInfo{
		ID:               id,
		SbomID:           c.sbomID,
		LicenseID:        licenseID,
		Name:             name,
		ExtractedText:    text,
		Comment:          comment,
		DetectedLicenses: detected,
	})
	return id
}

func (c *ExtractedLicensingInfoCreator) Create(ctx context.Context, tx *gorm.DB) error {
	return c.infos.create(ctx, tx, c.batch)
}
