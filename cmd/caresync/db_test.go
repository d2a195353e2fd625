package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDBCmd_Help(t *testing.T) {
	out, err := runCommand(t, "db", "--help")
	if err != nil {
		t.Fatalf("db --help failed: %v", err)
	}
	if !strings.Contains(out, "Database management") {
		t.Errorf("expected help to mention 'Database management', got: %s", out)
	}
	for _, sub := range []string{"init", "seed"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestDBInitCmd_MissingConfig(t *testing.T) {
	_, err := runCommand(t, "db", "init", "--config", "/nonexistent/caresync.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestDBInitCmd(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "db", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db init failed: %v", err)
	}
	if !strings.Contains(out, "Migrated") {
		t.Errorf("expected migration output, got: %s", out)
	}
	if !strings.Contains(out, "initialized successfully") {
		t.Errorf("expected success message, got: %s", out)
	}
}

func TestDBSeedCmd(t *testing.T) {
	cfgPath := writeTestConfig(t)
	initTestDB(t, cfgPath)

	seedPath := filepath.Join(filepath.Dir(cfgPath), "specialists.yaml")
	seed := `specialists:
  - id: spec-1
    name: Dr. Osei
    specialty: cardiology
    rating: 4.8
    available: true
  - id: spec-2
    name: Dr. Tanaka
    specialty: dermatology
    rating: 4.9
    available: true
`
	if err := os.WriteFile(seedPath, []byte(seed), 0644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	out, err := runCommand(t, "db", "seed", "--config", cfgPath, "--file", seedPath)
	if err != nil {
		t.Fatalf("db seed failed: %v", err)
	}
	if !strings.Contains(out, "Seeded 2 specialists") {
		t.Errorf("expected seed output, got: %s", out)
	}

	// Seeded specialists are visible to discovery.
	out, err = runCommand(t, "specialists", "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("specialists list failed: %v", err)
	}
	if !strings.Contains(out, "Dr. Osei") || !strings.Contains(out, "Dr. Tanaka") {
		t.Errorf("expected both specialists listed, got: %s", out)
	}
}

func TestDBSeedCmd_EmptyFile(t *testing.T) {
	cfgPath := writeTestConfig(t)
	initTestDB(t, cfgPath)

	seedPath := filepath.Join(filepath.Dir(cfgPath), "empty.yaml")
	if err := os.WriteFile(seedPath, []byte("specialists: []\n"), 0644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	_, err := runCommand(t, "db", "seed", "--config", cfgPath, "--file", seedPath)
	if err == nil {
		t.Fatal("expected error for empty seed file")
	}
	if !strings.Contains(err.Error(), "no specialists") {
		t.Errorf("error = %q, want to mention empty list", err.Error())
	}
}
