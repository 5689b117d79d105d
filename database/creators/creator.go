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

// Package creators accumulates the rows of one document in memory and writes
// them with ordered, chunked insert-or-ignore statements.
package creators

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultBatchSize keeps statements far below the postgres parameter limit.
const DefaultBatchSize = 500

// batch holds the chunk size shared by the row sets of one creator.
type batch struct {
	size int
}

func newBatch() batch {
	return batch{size: DefaultBatchSize}
}

func (b *batch) setSize(size int) {
	if size > 0 {
		b.size = size
	}
}

// rowSet deduplicates rows by key. The first row added for a key wins.
// Rows are emitted in key order so that concurrent transactions touching the
// same keys lock them in the same order.
type rowSet[K comparable, T any] struct {
	rows    map[K]T
	compare func(a, b K) int
}

func newRowSet[K comparable, T any](compare func(a, b K) int) *rowSet[K, T] {
	return &rowSet[K, T]{rows: make(map[K]T), compare: compare}
}

func newUUIDRowSet[T any]() *rowSet[uuid.UUID, T] {
	return newRowSet[uuid.UUID, T](normalize.CompareUUID)
}

func (s *rowSet[K, T]) add(key K, row T) bool {
	if _, ok := s.rows[key]; ok {
		return false
	}
	s.rows[key] = row
	return true
}

func (s *rowSet[K, T]) len() int {
	return len(s.rows)
}

func (s *rowSet[K, T]) sorted() []T {
	keys := make([]K, 0, len(s.rows))
	for k := range s.rows {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, s.compare)

	rows := make([]T, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, s.rows[k])
	}
	return rows
}

func (s *rowSet[K, T]) create(ctx context.Context, tx *gorm.DB, b batch) error {
	return insertIgnore(ctx, tx, s.sorted(), b.size)
}

// insertIgnore writes rows in chunks with "on conflict do nothing". A chunk
// exceeding the bind parameter limit is retried with half the size.
func insertIgnore[T any](ctx context.Context, tx *gorm.DB, rows []T, size int) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < len(rows); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(rows))
		chunk := rows[start:end]

		err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&chunk).Error
		if err != nil {
			if database.IsParameterLimitError(err) && size > 1 {
				size /= 2
				slog.Debug("reducing batch size", "size", size)
				continue
			}
			var zero T
			return errors.Wrapf(err, "could not insert %T rows", zero)
		}
		start = end
	}
	return nil
}

type nodeKey struct {
	nodeID string
	ref    uuid.UUID
}

func compareNodeKey(a, b nodeKey) int {
	return cmp.Or(cmp.Compare(a.nodeID, b.nodeID), normalize.CompareUUID(a.ref, b.ref))
}

type triple struct {
	a, b, c string
}

func compareTriple(x, y triple) int {
	return cmp.Or(cmp.Compare(x.a, y.a), cmp.Compare(x.b, y.b), cmp.Compare(x.c, y.c))
}
