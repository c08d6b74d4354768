package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	Host    string        `split_words:"true" required:"true"`
	MaxRows int           `split_words:"true" default:"50"`
	Timeout time.Duration `split_words:"true" default:"5s"`
}

func TestNewReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("FOODIECFG_HOST=db.internal\nFOODIECFG_MAX_ROWS=10\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("FOODIECFG_HOST")
		os.Unsetenv("FOODIECFG_MAX_ROWS")
		SetEnvFile("")
	})

	SetEnvFile(path)
	conf, err := New[sampleConfig]("FOODIECFG")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Host != "db.internal" {
		t.Fatalf("Host = %q", conf.Host)
	}
	if conf.MaxRows != 10 {
		t.Fatalf("MaxRows = %d", conf.MaxRows)
	}
	if conf.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %s", conf.Timeout)
	}
}

func TestNewProcessEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.env")
	if err := os.WriteFile(path, []byte("FOODIEOVR_HOST=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("FOODIEOVR_HOST", "from-env")
	t.Cleanup(func() { SetEnvFile("") })

	SetEnvFile(path)
	conf, err := New[sampleConfig]("FOODIEOVR")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Host != "from-env" {
		t.Fatalf("Host = %q, want from-env", conf.Host)
	}
}

func TestNewMissingRequired(t *testing.T) {
	t.Cleanup(func() { SetEnvFile("") })
	SetEnvFile("")

	if _, err := New[sampleConfig]("FOODIEMISSING"); err == nil {
		t.Fatal("expected error for missing required variable")
	}
}

func TestNewMissingExplicitFile(t *testing.T) {
	t.Cleanup(func() { SetEnvFile("") })
	SetEnvFile(filepath.Join(t.TempDir(), "nope.env"))

	if _, err := New[sampleConfig]("FOODIENOFILE"); err == nil {
		t.Fatal("expected error for missing env file")
	}
}
