// Package config holds the pipeline configuration.
//
// The configuration is built exactly once in main and passed by reference to
// every loader. There is intentionally no package-level config state.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full configuration for one pipeline run.
type Config struct {
	// Backend kind: "postgres" | "sqlite" | "mssql".
	DBKind string

	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string

	// SQLitePath is the database file for the sqlite backend
	// (":memory:" is accepted).
	SQLitePath string

	// DataDir is where the staging loader looks for *.csv extracts.
	DataDir string

	// Initial date-dimension range, inclusive.
	DateStart time.Time
	DateEnd   time.Time

	MetricsBackend string
	PushgatewayURL string
}

// Load reads configuration from the environment, with .env support.
//
// Defaults are chosen so a local postgres with a .env file "just works";
// every field can be overridden per run.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBKind:         getenv("DB_KIND", "postgres"),
		DBHost:         getenv("DB_HOST", "localhost"),
		DBPort:         getenv("DB_PORT", "5432"),
		DBName:         getenv("DB_NAME", "ecommerce_dw"),
		DBUser:         getenv("DB_USER", "postgres"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		SQLitePath:     getenv("SQLITE_PATH", "ecommerce_dw.db"),
		DataDir:        getenv("DATA_DIR", "data/raw"),
		MetricsBackend: getenv("METRICS_BACKEND", "none"),
		PushgatewayURL: getenv("PUSHGATEWAY_URL", "http://localhost:9091"),
	}

	var err error
	cfg.DateStart, err = parseDate(getenv("DATE_DIM_START", "2022-01-01"))
	if err != nil {
		return nil, fmt.Errorf("config: DATE_DIM_START: %w", err)
	}
	cfg.DateEnd, err = parseDate(getenv("DATE_DIM_END", "2025-12-31"))
	if err != nil {
		return nil, fmt.Errorf("config: DATE_DIM_END: %w", err)
	}
	if cfg.DateEnd.Before(cfg.DateStart) {
		return nil, fmt.Errorf("config: DATE_DIM_END %s is before DATE_DIM_START %s",
			cfg.DateEnd.Format("2006-01-02"), cfg.DateStart.Format("2006-01-02"))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBKind {
	case "postgres", "mssql":
		if c.DBHost == "" || c.DBPort == "" || c.DBName == "" || c.DBUser == "" {
			return fmt.Errorf("config: DB_HOST, DB_PORT, DB_NAME and DB_USER are required for kind=%s", c.DBKind)
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("config: SQLITE_PATH is required for kind=sqlite")
		}
	default:
		return fmt.Errorf("config: unsupported DB_KIND=%q", c.DBKind)
	}
	if _, err := strconv.Atoi(c.DBPort); c.DBKind != "sqlite" && err != nil {
		return fmt.Errorf("config: DB_PORT must be numeric, got %q", c.DBPort)
	}
	return nil
}

// DSN builds the connection string for the configured backend. Credentials
// go through url.URL so userinfo escaping follows RFC 3986 (QueryEscape
// would turn a space into a literal '+').
func (c *Config) DSN() string {
	switch c.DBKind {
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.DBUser, c.DBPassword),
			Host:   c.DBHost + ":" + c.DBPort,
			Path:   "/" + c.DBName,
		}
		return u.String()
	case "mssql":
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.DBUser, c.DBPassword),
			Host:     c.DBHost + ":" + c.DBPort,
			RawQuery: url.Values{"database": {c.DBName}}.Encode(),
		}
		return u.String()
	case "sqlite":
		return c.SQLitePath
	default:
		return ""
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}
