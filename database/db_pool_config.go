// Copyright (C) 2025 l3montree GmbH
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
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package database

import "time"

// PoolConfig holds the connection settings for both drivers.
type PoolConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlitePath"`

	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	DBName   string `mapstructure:"name"`

	MaxOpenConns    int32         `mapstructure:"maxOpenConns"`
	MinConns        int32         `mapstructure:"minConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"`
}

// DefaultPoolConfig mirrors the conservative pool limits of the server.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Driver:          "postgres",
		SQLitePath:      "trustgraph.db",
		Host:            "localhost",
		Port:            "5432",
		MaxOpenConns:    25,
		MinConns:        5,
		ConnMaxLifetime: 4 * time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}
