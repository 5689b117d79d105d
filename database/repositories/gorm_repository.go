// Copyright (C) 2023 Tim Bastin, l3montree GmbH
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
	"errors"

	"github.com/l3montree-dev/trustgraph/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRepository[ID comparable, T shared.Tabler] struct {
	db *gorm.DB
}

func newGormRepository[ID comparable, T shared.Tabler](db *gorm.DB) *GormRepository[ID, T] {
	return &GormRepository[ID, T]{
		db: db,
	}
}

func (g *GormRepository[ID, T]) GetDB(ctx context.Context, tx shared.DB) shared.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return g.db.WithContext(ctx)
}

func (g *GormRepository[ID, T]) All(ctx context.Context) ([]T, error) {
	var ts []T
	err := g.db.WithContext(ctx).Find(&ts).Error
	return ts, err
}

func (g *GormRepository[ID, T]) Create(ctx context.Context, tx shared.DB, t *T) error {
	return g.GetDB(ctx, tx).Create(t).Error
}

// CreateIfAbsent inserts t unless a row with its primary key exists and
// reports whether it was inserted. A concurrent insert of the same key
// waits for the other transaction and then reports false.
func (g *GormRepository[ID, T]) CreateIfAbsent(ctx context.Context, tx shared.DB, t *T) (bool, error) {
	res := g.GetDB(ctx, tx).Clauses(clause.OnConflict{DoNothing: true}).Create(t)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CreateBatch inserts rows, silently skipping those whose primary key
// already exists.
func (g *GormRepository[ID, T]) CreateBatch(ctx context.Context, tx shared.DB, ts []T) error {
	if len(ts) == 0 {
		return nil
	}
	return g.GetDB(ctx, tx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ts).Error
}

func (g *GormRepository[ID, T]) Save(ctx context.Context, tx shared.DB, t *T) error {
	return g.GetDB(ctx, tx).Save(t).Error
}

// Upsert inserts rows and updates only the given columns on conflict.
func (g *GormRepository[ID, T]) Upsert(ctx context.Context, tx shared.DB, ts []T, conflictingColumns []clause.Column, updateOnly []string) error {
	if len(ts) == 0 {
		return nil
	}
	if len(updateOnly) == 0 {
		return g.GetDB(ctx, tx).Clauses(clause.OnConflict{UpdateAll: true, Columns: conflictingColumns}).Create(&ts).Error
	}
	return g.GetDB(ctx, tx).Clauses(clause.OnConflict{
		DoUpdates: clause.AssignmentColumns(updateOnly),
		Columns:   conflictingColumns,
	}).Create(&ts).Error
}

func (g *GormRepository[ID, T]) Read(ctx context.Context, tx shared.DB, id ID, idColumn string) (T, error) {
	var t T
	err := g.GetDB(ctx, tx).Where(clause.Eq{Column: clause.Column{Name: idColumn}, Value: id}).First(&t).Error
	return t, err
}

func (g *GormRepository[ID, T]) Transaction(ctx context.Context, f func(tx shared.DB) error) error {
	return g.db.WithContext(ctx).Transaction(f)
}

// ignoreNotFound turns gorm.ErrRecordNotFound into a nil result.
func ignoreNotFound[T any](t T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
