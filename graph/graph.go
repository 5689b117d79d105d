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

// Package graph folds parsed documents into the knowledge graph. Every
// document is written in exactly one transaction, which is retried as a
// whole when the database reports a deadlock.
package graph

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/l3montree-dev/trustgraph/database"
	"github.com/l3montree-dev/trustgraph/database/creators"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/database/repositories"
	"github.com/l3montree-dev/trustgraph/monitoring"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

// errAlreadyIngested aborts writing a document another transaction
// committed first.
var errAlreadyIngested = errors.New("document already ingested")

const (
	defaultRetries          = 3
	organizationCacheSize   = 1024
	organizationCacheExpiry = 30 * time.Minute
)

type Kind string

const (
	KindSbom          Kind = "sbom"
	KindAdvisory      Kind = "advisory"
	KindVulnerability Kind = "vulnerability"
)

// IngestResult describes a stored document. Existing is set when the same
// content had been ingested before and nothing was written.
type IngestResult struct {
	ID         uuid.UUID `json:"id"`
	Kind       Kind      `json:"kind"`
	Format     string    `json:"format"`
	DocumentID *string   `json:"documentId,omitempty"`
	Sha256     string    `json:"sha256"`
	Existing   bool      `json:"existing"`
	Warnings   []string  `json:"warnings,omitempty"`
}

type Graph struct {
	db    *gorm.DB
	blobs shared.BlobStore

	sbomRepository     shared.SbomRepository
	advisoryRepository shared.AdvisoryRepository
	statusRepository   shared.StatusRepository

	batchSize    int
	retries      int
	validateCSAF bool
	now          func() time.Time

	// organizations remembers issuers known to exist so repeated advisories
	// of one issuer skip the insert.
	organizations *expirable.LRU[string, uuid.UUID]
}

type Option func(*Graph)

func WithBatchSize(size int) Option {
	return func(g *Graph) {
		g.batchSize = size
	}
}

func WithRetries(retries int) Option {
	return func(g *Graph) {
		g.retries = retries
	}
}

func WithCSAFValidation(validate bool) Option {
	return func(g *Graph) {
		g.validateCSAF = validate
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Graph) {
		g.now = now
	}
}

// New creates the graph on top of db. blobs may be nil, in which case the
// source documents are only recorded by their digests.
func New(db *gorm.DB, blobs shared.BlobStore, opts ...Option) *Graph {
	g := &Graph{
		db:                 db,
		blobs:              blobs,
		sbomRepository:     repositories.NewSbomRepository(db),
		advisoryRepository: repositories.NewAdvisoryRepository(db),
		statusRepository:   repositories.NewStatusRepository(db),
		batchSize:          creators.DefaultBatchSize,
		retries:            defaultRetries,
		now:                time.Now,
		organizations:      expirable.NewLRU[string, uuid.UUID](organizationCacheSize, nil, organizationCacheExpiry),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type digests struct {
	sha256 string
	sha384 string
	sha512 string
	size   int64
}

func digestsOf(data []byte) digests {
	s256 := sha256.Sum256(data)
	s384 := sha512.Sum384(data)
	s512 := sha512.Sum512(data)
	return digests{
		sha256: hex.EncodeToString(s256[:]),
		sha384: hex.EncodeToString(s384[:]),
		sha512: hex.EncodeToString(s512[:]),
		size:   int64(len(data)),
	}
}

func sourceDocumentID(sha256 string) uuid.UUID {
	return normalize.DeriveUUID(normalize.Str("source_document"), normalize.Str(sha256))
}

// storeBlob keeps the raw document before any row is written. The blob
// store is keyed by content, so a retried or repeated ingest stores
// nothing new.
func (g *Graph) storeBlob(ctx context.Context, data []byte, d digests) error {
	if g.blobs == nil {
		return nil
	}
	key, err := g.blobs.Store(ctx, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if key != d.sha256 {
		return shared.StorageError(errors.Errorf("blob store returned key %s for document %s", key, d.sha256), false)
	}
	return nil
}

func (g *Graph) createSourceDocument(ctx context.Context, tx *gorm.DB, d digests) (uuid.UUID, error) {
	doc := models.SourceDocument{
		ID:         sourceDocumentID(d.sha256),
		Sha256:     d.sha256,
		Sha384:     d.sha384,
		Sha512:     d.sha512,
		Size:       d.size,
		IngestedAt: g.now().UTC(),
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&doc).Error
	return doc.ID, errors.Wrap(err, "could not create source document")
}

// releaseSourceDocument drops the source document row when nothing points
// at it anymore and returns the blob key to delete after commit.
func (g *Graph) releaseSourceDocument(ctx context.Context, tx *gorm.DB, id *uuid.UUID) (string, error) {
	if id == nil {
		return "", nil
	}
	refs, err := g.advisoryRepository.CountReferences(ctx, tx, *id)
	if err != nil || refs > 0 {
		return "", err
	}
	var doc models.SourceDocument
	if err := tx.WithContext(ctx).Where("id = ?", *id).Find(&doc).Error; err != nil {
		return "", err
	}
	if err := tx.WithContext(ctx).Where("id = ?", *id).Delete(&models.SourceDocument{}).Error; err != nil {
		return "", err
	}
	return doc.Sha256, nil
}

func (g *Graph) deleteBlob(ctx context.Context, key string) {
	if g.blobs == nil || key == "" {
		return
	}
	// the rows are gone already, a left over blob is harmless
	if err := g.blobs.Delete(ctx, key); err != nil {
		monitoring.Alert("could not delete source document blob", err)
	}
}

func (g *Graph) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return database.Transaction(ctx, g.db, g.retries, fn)
}

// persistenceError classifies what a transaction returned. Errors already
// carrying a kind keep it.
func persistenceError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if shared.KindOf(err) != shared.KindUnknown {
		return err
	}
	return shared.PersistenceError(errors.Wrap(err, msg))
}

func labelsOf(labels map[string]string) datatypes.JSONMap {
	if len(labels) == 0 {
		return nil
	}
	m := make(datatypes.JSONMap, len(labels))
	for k, v := range labels {
		m[k] = v
	}
	return m
}

func observe(format string, start time.Time, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case shared.IsCanceled(err):
		outcome = "canceled"
	default:
		outcome = shared.KindOf(err).String()
	}
	monitoring.DocumentsIngested.WithLabelValues(format, outcome).Inc()
	monitoring.IngestDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
}
