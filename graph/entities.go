package graph

import (
	"context"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/creators"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IngestVulnerability records a vulnerability without an advisory. Known
// fields are only overwritten by the non empty fields of v.
func (g *Graph) IngestVulnerability(ctx context.Context, v models.Vulnerability) error {
	if v.ID == "" {
		return shared.ValidationErrorf("vulnerability without id")
	}
	err := g.transaction(ctx, func(tx *gorm.DB) error {
		return g.advisoryRepository.UpsertVulnerability(ctx, tx, v)
	})
	return persistenceError(err, "could not ingest vulnerability")
}

func (g *Graph) IngestOrganization(ctx context.Context, name string, website *string) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, shared.ValidationErrorf("organization without name")
	}
	var id uuid.UUID
	var created bool
	err := g.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		id, created, err = g.ensureOrganization(ctx, tx, name, website)
		return err
	})
	if err != nil {
		return uuid.Nil, persistenceError(err, "could not ingest organization")
	}
	if created {
		g.organizations.Add(name, id)
	}
	return id, nil
}

// IngestProduct records a product of an optional vendor. The product id
// only depends on vendor and name.
func (g *Graph) IngestProduct(ctx context.Context, vendor *string, name string, cpe *normalize.Cpe) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, shared.ValidationErrorf("product without name")
	}
	var vendorID *uuid.UUID
	var created bool
	product := models.Product{Name: name}
	if cpe != nil {
		key := creators.CpeProductKey(*cpe)
		product.CpeKey = &key
	}
	err := g.transaction(ctx, func(tx *gorm.DB) error {
		vendorID, created = nil, false
		if vendor != nil && *vendor != "" {
			id, c, err := g.ensureOrganization(ctx, tx, *vendor, nil)
			if err != nil {
				return err
			}
			vendorID, created = &id, c
		}
		product.ID = models.ProductID(vendorID, name)
		product.VendorID = vendorID
		return errors.Wrap(tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&product).Error, "could not create product")
	})
	if err != nil {
		return uuid.Nil, persistenceError(err, "could not ingest product")
	}
	if created {
		g.organizations.Add(*vendor, *vendorID)
	}
	return product.ID, nil
}

// IngestProductVersion records a version of a product, optionally built
// from an SBOM. The version is removed together with that SBOM.
func (g *Graph) IngestProductVersion(ctx context.Context, productID uuid.UUID, version string, sbomID *uuid.UUID) (uuid.UUID, error) {
	if version == "" {
		return uuid.Nil, shared.ValidationErrorf("product version without version")
	}
	row := models.ProductVersion{
		ID:        models.ProductVersionID(productID, version),
		ProductID: productID,
		Version:   version,
		SbomID:    sbomID,
	}
	err := g.transaction(ctx, func(tx *gorm.DB) error {
		var products int64
		if err := tx.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Count(&products).Error; err != nil {
			return err
		}
		if products == 0 {
			return errors.Wrapf(ErrNotFound, "product %s", productID)
		}
		if sbomID != nil {
			sbom, err := g.sbomRepository.FindByID(ctx, tx, *sbomID)
			if err != nil {
				return err
			}
			if sbom == nil {
				return errors.Wrapf(ErrNotFound, "sbom %s", sbomID)
			}
		}
		return tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"sbom_id"}),
		}).Create(&row).Error
	})
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, shared.ValidationError(err)
	}
	if err != nil {
		return uuid.Nil, persistenceError(err, "could not ingest product version")
	}
	return row.ID, nil
}
