// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"strings"
)

// Database drivers. "sqlite" uses the pure Go modernc driver and
// "sqlite3" the cgo mattn driver; both speak the sqlite dialect.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
)

// DatabaseConfig holds configuration for SQL database connections.
type DatabaseConfig struct {
	// Driver specifies the database driver.
	Driver string `yaml:"driver" json:"driver" jsonschema:"title=Database Type,description=Type of database,enum=postgres,enum=mysql,enum=sqlite,enum=sqlite3,default=sqlite"`

	// Host is the database server hostname (not required for SQLite).
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Database server hostname (not required for SQLite)"`

	// Port is the database server port (not required for SQLite).
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Database server port (not required for SQLite)"`

	// Database is the database name (or file path for SQLite).
	Database string `yaml:"database" json:"database" jsonschema:"title=Database,description=Database name (or file path for SQLite)"`

	Username string `yaml:"username,omitempty" json:"username,omitempty" jsonschema:"title=Username"`
	Password string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"title=Password"`

	// SSLMode for PostgreSQL connections.
	SSLMode string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty" jsonschema:"title=SSL Mode"`

	// MaxConns is the maximum number of open connections.
	MaxConns int `yaml:"max_conns,omitempty" json:"max_conns,omitempty" jsonschema:"title=Max Open Connections,minimum=1,default=25"`

	// MaxIdle is the maximum number of idle connections.
	MaxIdle int `yaml:"max_idle,omitempty" json:"max_idle,omitempty" jsonschema:"title=Max Idle Connections,minimum=1,default=5"`
}

// SetDefaults applies default values to the database config.
func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}

	if c.Port == 0 {
		switch c.Driver {
		case DriverPostgres:
			c.Port = 5432
		case DriverMySQL:
			c.Port = 3306
		}
	}

	if c.Driver == DriverPostgres && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite, DriverSQLite3:
	case "":
		return fmt.Errorf("driver: required")
	default:
		return fmt.Errorf("driver: invalid driver %q (valid: postgres, mysql, sqlite, sqlite3)", c.Driver)
	}

	if c.Database == "" {
		return fmt.Errorf("database: required")
	}
	if !c.IsSQLite() && c.Host == "" {
		return fmt.Errorf("host: required for %s", c.Driver)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("max_conns: must be non-negative")
	}
	if c.MaxIdle < 0 {
		return fmt.Errorf("max_idle: must be non-negative")
	}
	return nil
}

// IsSQLite reports whether the driver is one of the SQLite drivers.
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Driver == DriverSQLite || c.Driver == DriverSQLite3
}

// DSN returns the data source name (connection string) for the database.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		parts := []string{
			fmt.Sprintf("host=%s", c.Host),
			fmt.Sprintf("port=%d", c.Port),
			fmt.Sprintf("dbname=%s", c.Database),
		}
		if c.Username != "" {
			parts = append(parts, fmt.Sprintf("user=%s", c.Username))
		}
		if c.Password != "" {
			parts = append(parts, fmt.Sprintf("password=%s", c.Password))
		}
		if c.SSLMode != "" {
			parts = append(parts, fmt.Sprintf("sslmode=%s", c.SSLMode))
		}
		return strings.Join(parts, " ")
	case DriverMySQL:
		// [username[:password]@]tcp(host:port)/dbname
		if c.Username != "" {
			return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
				c.Username, c.Password, c.Host, c.Port, c.Database)
		}
		return fmt.Sprintf("tcp(%s:%d)/%s?parseTime=true", c.Host, c.Port, c.Database)
	case DriverSQLite, DriverSQLite3:
		return c.Database
	default:
		return ""
	}
}

// DriverName returns the name registered with database/sql.
// Both names match the drivers' own registrations.
func (c *DatabaseConfig) DriverName() string {
	return c.Driver
}

// Dialect returns the SQL dialect used for query building.
func (c *DatabaseConfig) Dialect() string {
	if c.IsSQLite() {
		return DriverSQLite
	}
	return c.Driver
}
