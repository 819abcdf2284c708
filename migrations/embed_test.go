package migrations

import (
	"strings"
	"testing"
)

func TestFS_EmbedsExpectedMigrationFiles(t *testing.T) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		t.Fatalf("reading embedded migrations dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one migration file, got %d", len(entries))
	}
	if name := entries[0].Name(); name != "001_initial_schema.sql" {
		t.Fatalf("unexpected migration file name %q", name)
	}
}

func TestFS_InitialSchemaDefinesBothTables(t *testing.T) {
	content, err := FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		t.Fatalf("reading 001_initial_schema.sql: %v", err)
	}
	sql := string(content)

	for _, want := range []string{
		"-- +goose Up",
		"-- +goose Down",
		"CREATE TABLE scraped_stores",
		"CREATE TABLE store_snapshots",
		"CREATE UNIQUE INDEX idx_scraped_stores_url",
		"DROP TABLE store_snapshots",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("001_initial_schema.sql missing expected fragment %q", want)
		}
	}
}
