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

package integrationtestutil

import (
	"context"
	"log"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/l3montree-dev/trustgraph/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

// InitSQLiteDatabase opens a migrated sqlite database inside the test's
// temp dir. The connection is closed when the test finishes.
func InitSQLiteDatabase(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "trustgraph.db"))
	if err != nil {
		t.Fatalf("could not open sqlite database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("could not migrate sqlite database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// InitDatabaseContainer starts a postgres container and returns a migrated
// connection together with a function terminating the container.
func InitDatabaseContainer() (*gorm.DB, func()) {
	ctx := context.Background()

	dbName := "trustgraph"
	dbUser := "user"
	dbPassword := "password"

	postgresC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		postgres.BasicWaitStrategies(),
	)

	terminate := func() {
		if err := testcontainers.TerminateContainer(postgresC); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
	if err != nil {
		slog.Info("failed to start postgres container", "error", err)
		panic(err)
	}

	host, _ := postgresC.Host(ctx)
	port, _ := postgresC.MappedPort(ctx, "5432")

	cfg := database.DefaultPoolConfig()
	cfg.Host = host
	cfg.Port = port.Port()
	cfg.User = dbUser
	cfg.Password = dbPassword
	cfg.DBName = dbName

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Printf("failed to connect to database: %s", err)
		panic(err)
	}

	if err := database.Migrate(db); err != nil {
		log.Printf("failed to run migrations: %s", err)
		panic(err)
	}

	return db, terminate
}
