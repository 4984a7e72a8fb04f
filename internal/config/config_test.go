package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JOBS_INTERVAL", "15m")
	t.Setenv("LEDGER_TIMEZONE", "America/Bogota")
	t.Setenv("DATABASE_URL", "postgres://localhost/cashflow")

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTP.Addr != ":8080" || c.Schedule.HorizonMonths != 12 || !c.Jobs.Enabled {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.Jobs.Interval != 15*time.Minute {
		t.Fatalf("interval = %s", c.Jobs.Interval)
	}
	if c.Database.URL != "postgres://localhost/cashflow" || c.Ledger.Timezone != "America/Bogota" {
		t.Fatalf("env overrides not applied: %+v", c)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cashflow.yaml")
	body := "log:\n  level: debug\n  format: text\nschedule:\n  horizon_months: 6\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Log.Level != "debug" || c.Log.Format != "text" || c.Schedule.HorizonMonths != 6 {
		t.Fatalf("file values not applied: %+v", c)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEDGER_TIMEZONE", "Mars/Olympus")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected timezone error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for explicit missing file")
	}
}
