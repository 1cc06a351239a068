package db

import (
	"strings"
	"testing"

	"github.com/schoollms/apiserver/config"
)

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "lms",
		Password: "p@ss word",
		DBName:   "lms_db",
	}

	dsn := DSN(cfg)
	if !strings.HasPrefix(dsn, "postgres://lms:") {
		t.Fatalf("unexpected scheme/user in %q", dsn)
	}
	if !strings.Contains(dsn, "@db.internal:5433/lms_db") {
		t.Fatalf("missing host or database in %q", dsn)
	}
	if !strings.HasSuffix(dsn, "sslmode=disable") {
		t.Fatalf("expected sslmode=disable in %q", dsn)
	}
	if strings.Contains(dsn, "p@ss word") {
		t.Fatalf("password must be escaped in %q", dsn)
	}

	cfg.UseSSL = true
	if dsn := DSN(cfg); !strings.HasSuffix(dsn, "sslmode=require") {
		t.Fatalf("expected sslmode=require in %q", dsn)
	}
}
