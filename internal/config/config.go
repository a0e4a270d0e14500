package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"climatecheck/internal/catalog"
	"climatecheck/pkg/database"
)

// Catalog sources
const (
	CatalogSourceFile     = "file"
	CatalogSourceDatabase = "database"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Catalog  CatalogConfig
	NOAA     NOAAConfig
	Import   ImportConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	// Enabled turns on the station store; the server can run from the snapshot file alone
	Enabled         bool
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ToDatabaseConfig converts to the pkg/database connection settings
func (d DatabaseConfig) ToDatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          d.Driver,
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		SQLitePath:      d.SQLitePath,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

type LoggingConfig struct {
	Level string
}

type CatalogConfig struct {
	Source        string
	Path          string
	Format        string
	InventoryPath string
}

// Options converts to catalog load options; Format must already be valid
func (c CatalogConfig) Options() catalog.Options {
	format, _ := catalog.ParseFormat(c.Format)
	return catalog.Options{
		Path:          c.Path,
		Format:        format,
		InventoryPath: c.InventoryPath,
	}
}

type NOAAConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

type ImportConfig struct {
	BatchSize int
}

// LoadConfig reads configuration from the environment, after loading an
// optional .env file from the working directory.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			Driver:          getEnv("DB_DRIVER", database.DriverPostgres),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "climate"),
			Password:        getEnv("DB_PASSWORD", "climate"),
			Database:        getEnv("DB_NAME", "climatecheck"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			SQLitePath:      getEnv("SQLITE_PATH", "data/climatecheck.db"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Catalog: CatalogConfig{
			Source:        getEnv("CATALOG_SOURCE", CatalogSourceFile),
			Path:          getEnv("CATALOG_PATH", "data/ghcnd-stations.txt"),
			Format:        getEnv("CATALOG_FORMAT", "auto"),
			InventoryPath: getEnv("CATALOG_INVENTORY_PATH", ""),
		},
		NOAA: NOAAConfig{
			BaseURL:           getEnv("NOAA_BASE_URL", "https://www.ncei.noaa.gov/data/global-historical-climatology-network-daily/access"),
			Timeout:           getEnvAsDuration("NOAA_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvAsFloat("NOAA_REQUESTS_PER_SECOND", 2),
			Burst:             getEnvAsInt("NOAA_BURST", 4),
		},
		Import: ImportConfig{
			BatchSize: getEnvAsInt("IMPORT_BATCH_SIZE", 1000),
		},
	}, nil
}

// Validate checks the configuration for values the server cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Catalog.Source {
	case CatalogSourceFile:
		if c.Catalog.Path == "" {
			return fmt.Errorf("CATALOG_PATH is required when CATALOG_SOURCE=%s", CatalogSourceFile)
		}
	case CatalogSourceDatabase:
		if !c.Database.Enabled {
			return fmt.Errorf("CATALOG_SOURCE=%s requires DB_ENABLED=true", CatalogSourceDatabase)
		}
	default:
		return fmt.Errorf("invalid catalog source: %s (allowed: %s, %s)", c.Catalog.Source, CatalogSourceFile, CatalogSourceDatabase)
	}

	if _, err := catalog.ParseFormat(c.Catalog.Format); err != nil {
		return err
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case database.DriverPostgres:
			if c.Database.Host == "" || c.Database.Database == "" {
				return fmt.Errorf("DB_HOST and DB_NAME are required for the %s driver", database.DriverPostgres)
			}
		case database.DriverSQLite:
			if c.Database.SQLitePath == "" {
				return fmt.Errorf("SQLITE_PATH is required for the %s driver", database.DriverSQLite)
			}
		default:
			return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.NOAA.BaseURL == "" {
		return fmt.Errorf("NOAA_BASE_URL is required")
	}
	if c.NOAA.RequestsPerSecond < 0 {
		return fmt.Errorf("NOAA_REQUESTS_PER_SECOND must not be negative")
	}

	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive, got %d", c.Import.BatchSize)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
