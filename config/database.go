package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypePostgreSQL DatabaseType = "postgres"
	DatabaseTypeMySQL      DatabaseType = "mysql"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type     DatabaseType
	SQLite   SQLiteConfig
	Server   ServerDBConfig
	MaxConns int
}

// SQLiteConfig holds SQLite specific configuration
type SQLiteConfig struct {
	Path string
}

// ServerDBConfig holds the connection parameters shared by PostgreSQL and MySQL.
type ServerDBConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
	TimeZone string
}

func loadDatabaseConfig() DatabaseConfig {
	dbType := DatabaseType(getenv("DB_TYPE", string(DatabaseTypeSQLite)))
	defaultPort := 5432
	if dbType == DatabaseTypeMySQL {
		defaultPort = 3306
	}
	return DatabaseConfig{
		Type: dbType,
		SQLite: SQLiteConfig{
			Path: getenv("MEDREPORT_DB_PATH", getDefaultSQLitePath()),
		},
		Server: ServerDBConfig{
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenvInt("DB_PORT", defaultPort),
			Database: getenv("DB_NAME", "medreport"),
			Username: getenv("DB_USER", "medreport"),
			Password: os.Getenv("DB_PASSWORD"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
			TimeZone: getenv("DB_TIMEZONE", "UTC"),
		},
		MaxConns: getenvInt("DB_MAX_CONNS", 10),
	}
}

// GetDSN returns the data source name for the database
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case DatabaseTypePostgreSQL:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
			c.Server.Host,
			c.Server.Username,
			c.Server.Password,
			c.Server.Database,
			c.Server.Port,
			c.Server.SSLMode,
			c.Server.TimeZone,
		)
	case DatabaseTypeMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.Server.Username,
			c.Server.Password,
			c.Server.Host,
			c.Server.Port,
			c.Server.Database,
		)
	default:
		return c.SQLite.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	}
}

// getDefaultSQLitePath returns the default SQLite database path
func getDefaultSQLitePath() string {
	if IsDebug() {
		return "db/medreport.db"
	}
	return "/var/lib/medreport/medreport.db"
}

// ValidateConfig validates the database configuration
func (c *DatabaseConfig) ValidateConfig() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLite path cannot be empty")
		}
	case DatabaseTypePostgreSQL, DatabaseTypeMySQL:
		if c.Server.Host == "" {
			return fmt.Errorf("%s host cannot be empty", c.Type)
		}
		if c.Server.Database == "" {
			return fmt.Errorf("%s database name cannot be empty", c.Type)
		}
		if c.Server.Username == "" {
			return fmt.Errorf("%s username cannot be empty", c.Type)
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("%s port must be between 1 and 65535", c.Type)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// IsSQLite returns true if the database type is SQLite
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Type == DatabaseTypeSQLite
}

// EnsureDirectoryExists ensures the directory for SQLite database exists
func (c *DatabaseConfig) EnsureDirectoryExists() error {
	if c.Type == DatabaseTypeSQLite {
		dir := filepath.Dir(c.SQLite.Path)
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
