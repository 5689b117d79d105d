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

// Package config loads the settings of every component. Values come from,
// in rising precedence, defaults, a yaml config file, a .env file, the
// environment (prefix TRUSTGRAPH_) and command line flags.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/l3montree-dev/trustgraph/database"
	"github.com/l3montree-dev/trustgraph/database/creators"
	"github.com/l3montree-dev/trustgraph/importer"
	"github.com/l3montree-dev/trustgraph/storage"
	"github.com/l3montree-dev/trustgraph/walker"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "TRUSTGRAPH"

type StorageConfig struct {
	Root        string `mapstructure:"root"`
	Compression string `mapstructure:"compression"`
}

type IngestConfig struct {
	BatchSize    int  `mapstructure:"batchSize"`
	Retries      int  `mapstructure:"retries"`
	ValidateCSAF bool `mapstructure:"validateCsaf"`
}

type WalkerConfig struct {
	Workers        int           `mapstructure:"workers"`
	Retries        int           `mapstructure:"retries"`
	BackoffInitial time.Duration `mapstructure:"backoffInitial"`
	BackoffMax     time.Duration `mapstructure:"backoffMax"`
	Timeout        time.Duration `mapstructure:"timeout"`
	WorkDir        string        `mapstructure:"workDir"`
}

type ImporterConfig struct {
	Tick       time.Duration `mapstructure:"tick"`
	StaleAfter time.Duration `mapstructure:"staleAfter"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Database database.PoolConfig `mapstructure:"database"`
	Storage  StorageConfig       `mapstructure:"storage"`
	Ingest   IngestConfig        `mapstructure:"ingest"`
	Walker   WalkerConfig        `mapstructure:"walker"`
	Importer ImporterConfig      `mapstructure:"importer"`
	Sentry   SentryConfig        `mapstructure:"sentry"`
	Log      LogConfig           `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	pool := database.DefaultPoolConfig()
	v.SetDefault("database.driver", pool.Driver)
	v.SetDefault("database.sqlitePath", pool.SQLitePath)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.host", pool.Host)
	v.SetDefault("database.port", pool.Port)
	v.SetDefault("database.name", "trustgraph")
	v.SetDefault("database.maxOpenConns", pool.MaxOpenConns)
	v.SetDefault("database.minConns", pool.MinConns)
	v.SetDefault("database.connMaxLifetime", pool.ConnMaxLifetime)
	v.SetDefault("database.connMaxIdleTime", pool.ConnMaxIdleTime)

	v.SetDefault("storage.root", "blobs")
	v.SetDefault("storage.compression", "none")

	v.SetDefault("ingest.batchSize", creators.DefaultBatchSize)
	v.SetDefault("ingest.retries", 3)
	v.SetDefault("ingest.validateCsaf", false)

	v.SetDefault("walker.workers", importer.DefaultWalkerSettings.Workers)
	v.SetDefault("walker.retries", importer.DefaultWalkerSettings.Retries)
	v.SetDefault("walker.backoffInitial", walker.DefaultBackoff.Initial)
	v.SetDefault("walker.backoffMax", walker.DefaultBackoff.Max)
	v.SetDefault("walker.timeout", importer.DefaultWalkerSettings.FetchTimeout)
	v.SetDefault("walker.workDir", "importers")

	v.SetDefault("importer.tick", time.Minute)
	v.SetDefault("importer.staleAfter", 6*time.Hour)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "dev")

	v.SetDefault("log.level", "info")
}

// Load reads the configuration. An empty path looks for trustgraph.yaml in
// the working directory and /etc/trustgraph, a missing file is fine.
// flags maps flag names to configuration keys, e.g. "log-level" to
// "log.level".
func Load(path string, fs *pflag.FlagSet, flags map[string]string) (*Config, error) {
	// existing variables win over the .env file
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("trustgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/trustgraph/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "could not read config file")
		}
		slog.Debug("no config file found")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flags {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "could not bind flag %s", name)
			}
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode configuration")
	}
	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return errors.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if _, err := storage.ParseCompression(c.Storage.Compression); err != nil {
		return err
	}
	if c.Walker.Workers < 1 {
		return errors.New("walker.workers must be at least 1")
	}
	if c.Importer.Tick <= 0 {
		return errors.New("importer.tick must be positive")
	}
	return nil
}

// WalkerSettings converts the walker section for the importer service.
func (c *Config) WalkerSettings() importer.WalkerSettings {
	return importer.WalkerSettings{
		Workers:      c.Walker.Workers,
		Retries:      c.Walker.Retries,
		Backoff:      walker.BackoffConfig{Initial: c.Walker.BackoffInitial, Max: c.Walker.BackoffMax},
		FetchTimeout: c.Walker.Timeout,
	}
}
