package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"DATABASE_PATH",
		"SITEMAP_INDEX_URL",
		"BASE_URL",
		"TARGET_CATEGORY_ID",
		"DISPLAY_NUM",
		"TRGSCOUT_TUNNEL_CONFIG",
		"TRGSCOUT_STALENESS_AFTER",
		"LOG_LEVEL",
		"TRGSCOUT_CONFIG_PATH",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	os.Setenv("SITEMAP_INDEX_URL", "https://example.hr/sitemap.xml")
	os.Setenv("BASE_URL", "https://example.hr")
	os.Setenv("TARGET_CATEGORY_ID", "42")
}

func TestLoad_DefaultsWithEnvOverrides(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "data/trgscout.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
	if cfg.Sitemap.IndexURL != "https://example.hr/sitemap.xml" {
		t.Errorf("Sitemap.IndexURL = %q", cfg.Sitemap.IndexURL)
	}
	if cfg.Scrape.TargetCategoryID != 42 {
		t.Errorf("Scrape.TargetCategoryID = %d, want 42", cfg.Scrape.TargetCategoryID)
	}
	if time.Duration(cfg.Sitemap.StalenessAfter) != 7*24*time.Hour {
		t.Errorf("Sitemap.StalenessAfter = %v, want 7d", time.Duration(cfg.Sitemap.StalenessAfter))
	}
	if cfg.Scrape.MaxPages != 20 {
		t.Errorf("Scrape.MaxPages = %d, want 20", cfg.Scrape.MaxPages)
	}
	if cfg.Scrape.PerPageCap != 100 {
		t.Errorf("Scrape.PerPageCap = %d, want 100", cfg.Scrape.PerPageCap)
	}
}

func TestLoad_MissingRequiredFieldsFail(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error when SITEMAP_INDEX_URL/BASE_URL/TARGET_CATEGORY_ID are unset")
	}
}

func TestLoad_YAMLFileIsApplied(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)
	setRequired(t)
	os.Unsetenv("DATABASE_PATH")

	dir := t.TempDir()
	path := filepath.Join(dir, "trgscout.yaml")
	yamlContent := "database:\n  path: /tmp/custom.db\nscrape:\n  max_pages: 5\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	os.Setenv("TRGSCOUT_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/custom.db" {
		t.Errorf("Database.Path = %q, want YAML override", cfg.Database.Path)
	}
	if cfg.Scrape.MaxPages != 5 {
		t.Errorf("Scrape.MaxPages = %d, want 5", cfg.Scrape.MaxPages)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)
	setRequired(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "trgscout.yaml")
	if err := os.WriteFile(path, []byte("database:\n  path: /tmp/from-yaml.db\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	os.Setenv("TRGSCOUT_CONFIG_PATH", path)
	os.Setenv("DATABASE_PATH", "/tmp/from-env.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestParseDuration_DayUnit(t *testing.T) {
	d, err := parseDuration("7d")
	if err != nil {
		t.Fatalf("parseDuration(7d) error = %v", err)
	}
	if d != 7*24*time.Hour {
		t.Errorf("parseDuration(7d) = %v, want 168h", d)
	}
}
