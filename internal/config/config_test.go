package config

import (
	"strings"
	"testing"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{
		"DB_KIND": "", "DB_HOST": "", "DB_PORT": "", "DB_NAME": "",
		"DB_USER": "", "DB_PASSWORD": "", "DATE_DIM_START": "", "DATE_DIM_END": "",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBKind != "postgres" {
		t.Fatalf("DBKind = %q, want postgres", cfg.DBKind)
	}
	if got := cfg.DateStart.Format("2006-01-02"); got != "2022-01-01" {
		t.Fatalf("DateStart = %s, want 2022-01-01", got)
	}
	if got := cfg.DateEnd.Format("2006-01-02"); got != "2025-12-31" {
		t.Fatalf("DateEnd = %s, want 2025-12-31", got)
	}
}

func TestLoad_PostgresDSN(t *testing.T) {
	setEnv(t, map[string]string{
		"DB_KIND":     "postgres",
		"DB_HOST":     "dbhost",
		"DB_PORT":     "5433",
		"DB_NAME":     "dw",
		"DB_USER":     "etl",
		"DB_PASSWORD": "p@ss word",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "postgres://etl:") || !strings.HasSuffix(dsn, "@dbhost:5433/dw") {
		t.Fatalf("unexpected DSN: %q", dsn)
	}
	if strings.Contains(dsn, "p@ss word") {
		t.Fatalf("DSN must escape credentials: %q", dsn)
	}
	// Userinfo escaping is RFC 3986: a space is %20, never '+'.
	if !strings.Contains(dsn, "p%40ss%20word") {
		t.Fatalf("DSN userinfo not percent-escaped: %q", dsn)
	}
}

func TestLoad_SQLiteDSNIsPath(t *testing.T) {
	setEnv(t, map[string]string{
		"DB_KIND":     "sqlite",
		"SQLITE_PATH": ":memory:",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DSN() != ":memory:" {
		t.Fatalf("DSN = %q, want :memory:", cfg.DSN())
	}
}

func TestLoad_RejectsBadKind(t *testing.T) {
	setEnv(t, map[string]string{"DB_KIND": "oracle"})

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported DB_KIND")
	}
}

func TestLoad_RejectsInvertedDateRange(t *testing.T) {
	setEnv(t, map[string]string{
		"DB_KIND":        "sqlite",
		"SQLITE_PATH":    ":memory:",
		"DATE_DIM_START": "2024-01-01",
		"DATE_DIM_END":   "2023-01-01",
	})

	if _, err := Load(); err == nil {
		t.Fatal("expected error for end before start")
	}
}
