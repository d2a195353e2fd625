package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/avellora/caresync/internal/auth"
	"github.com/avellora/caresync/internal/db"
	"github.com/avellora/caresync/internal/models"
)

// writeTestConfig writes a sqlite-backed config into a temp dir and returns
// its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "caresync.yaml")
	content := fmt.Sprintf(`database:
  driver: sqlite
  path: %s
chat:
  disable_polling: true
`, filepath.Join(dir, "caresync.db"))
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

// initTestDB migrates the config's database and caches a signed-in profile,
// replacing the login flow for command tests.
func initTestDB(t *testing.T, cfgPath string) {
	t.Helper()
	_, gormDB, err := connectFromConfig(cfgPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := auth.SaveProfile(gormDB, &models.Profile{
		UserID:      "patient-1",
		DisplayName: "Amara Diallo",
		Role:        models.RolePatient,
	}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
}

// seedTestSpecialist inserts one available specialist.
func seedTestSpecialist(t *testing.T, cfgPath, id string) {
	t.Helper()
	_, gormDB, err := connectFromConfig(cfgPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.SeedSpecialists(gormDB, []models.Specialist{{
		ID:        id,
		Name:      "Dr. Osei",
		Specialty: "cardiology",
		Rating:    4.8,
		Available: true,
	}}); err != nil {
		t.Fatalf("seed specialist: %v", err)
	}
}

// runCommand executes a caresync command and returns its combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
