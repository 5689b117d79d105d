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

package commands

import (
	"context"
	"encoding/json"
	"io"

	"github.com/l3montree-dev/trustgraph/config"
	"github.com/l3montree-dev/trustgraph/database"
	"github.com/l3montree-dev/trustgraph/database/repositories"
	"github.com/l3montree-dev/trustgraph/graph"
	"github.com/l3montree-dev/trustgraph/importer"
	"github.com/l3montree-dev/trustgraph/monitoring"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Version is set via ldflags during build.
var Version = "dev"

var (
	cfgFile string
	cfg     *config.Config
)

// flagKeys binds the persistent flags to their configuration keys.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"driver":      "database.driver",
	"sqlite":      "database.sqlitePath",
	"storage":     "storage.root",
	"compression": "storage.compression",
}

var rootCmd = &cobra.Command{
	SilenceUsage: true,
	Use:          "trustgraph",
	Short:        "Supply chain knowledge graph",
	Version:      Version,
	Long: `trustgraph ingests SBOMs and security advisories into a knowledge graph
and answers which vulnerabilities affect a package.

Configuration is read from ./trustgraph.yaml, a .env file and environment
variables (prefix TRUSTGRAPH_, e.g. TRUSTGRAPH_DATABASE_DRIVER).`,
	Example: `  # Create the schema in an embedded database
  trustgraph migrate --driver sqlite --sqlite graph.db

  # Ingest documents, the format is detected
  trustgraph ingest sbom.spdx.json GHSA-xxxx.json

  # List the statuses of a package
  trustgraph match pkg:pypi/django@4.2.0`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile, cmd.Flags(), flagKeys)
		if err != nil {
			return err
		}
		cfg = loaded
		shared.InitLogger(cfg.Log.Level)
		if cfg.Sentry.DSN != "" {
			monitoring.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, Version)
		}
		return nil
	},
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a yaml config file")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Set the log level. Options: debug, info, warn, error")
	rootCmd.PersistentFlags().String("driver", "postgres", "Database driver. Options: postgres, sqlite")
	rootCmd.PersistentFlags().String("sqlite", "trustgraph.db", "Path of the sqlite database")
	rootCmd.PersistentFlags().String("storage", "blobs", "Directory the source documents are stored in")
	rootCmd.PersistentFlags().String("compression", "none", "Compression of stored documents. Options: none, xz")

	rootCmd.AddCommand(
		newMigrateCommand(),
		newIngestCommand(),
		newImporterCommand(),
		newMatchCommand(),
		newDescribeCommand(),
		newVulnerabilityCommand(),
		newSbomsCommand(),
		newAdvisoryCommand(),
		newDeleteCommand(),
	)
}

type app struct {
	db        *gorm.DB
	graph     *graph.Graph
	importers *importer.Service
}

func openDatabase(ctx context.Context) (*gorm.DB, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to database")
	}
	return db, nil
}

// openApp wires the graph and the importer service from the loaded
// configuration.
func openApp(ctx context.Context) (*app, error) {
	db, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	compression, err := storage.ParseCompression(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}
	blobs, err := storage.NewFileSystem(cfg.Storage.Root, compression)
	if err != nil {
		return nil, errors.Wrap(err, "could not open blob storage")
	}

	g := graph.New(db, blobs,
		graph.WithBatchSize(cfg.Ingest.BatchSize),
		graph.WithRetries(cfg.Ingest.Retries),
		graph.WithCSAFValidation(cfg.Ingest.ValidateCSAF),
	)
	importers := importer.NewService(repositories.NewImporterRepository(db), g,
		importer.WithWalkerSettings(cfg.WalkerSettings()),
		importer.WithWorkDir(cfg.Walker.WorkDir),
		importer.WithStaleAfter(cfg.Importer.StaleAfter),
	)
	return &app{db: db, graph: g, importers: importers}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
