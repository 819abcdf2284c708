package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solveiti/trgscout/internal/store"
)

// executeRootCmd runs the CLI with captured output, isolating env vars that
// config.Load reads so tests never touch the operator's real config.
func executeRootCmd(t *testing.T, env map[string]string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	for _, k := range []string{
		"TRGSCOUT_CONFIG_PATH", "DATABASE_PATH", "SITEMAP_INDEX_URL",
		"BASE_URL", "TARGET_CATEGORY_ID", "DISPLAY_NUM",
		"TRGSCOUT_TUNNEL_CONFIG", "TRGSCOUT_STALENESS_AFTER", "LOG_LEVEL",
	} {
		orig, had := os.LookupEnv(k)
		os.Unsetenv(k)
		if had {
			defer os.Setenv(k, orig)
		}
	}
	for k, v := range env {
		os.Setenv(k, v)
	}

	flags.mode = "tunnel"
	flags.maxStores = 0
	flags.noTunnels = false
	flags.noDatabase = false
	flags.verbose = false
	flags.configPath = ""
	flags.exportTable = false
	flags.dryRun = false

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs(args)

	err = rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetArgs(nil)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	return outBuf.String(), errBuf.String(), err
}

func TestVersionCommand_PrintsVersionString(t *testing.T) {
	stdout, _, err := executeRootCmd(t, nil, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "trgscout") {
		t.Errorf("stdout = %q, want it to contain 'trgscout'", stdout)
	}
}

func TestRun_InvalidModeIsUsageError(t *testing.T) {
	env := map[string]string{
		"SITEMAP_INDEX_URL":  "https://example.hr/sitemap.xml",
		"BASE_URL":           "https://example.hr",
		"TARGET_CATEGORY_ID": "42",
	}
	_, _, err := executeRootCmd(t, env, "--mode", "nonsense")
	if err == nil {
		t.Fatal("expected an error for an invalid --mode value")
	}
	var usageErr usageError
	if !asUsageError(err, &usageErr) {
		t.Errorf("error = %v, want a usageError", err)
	}
}

func asUsageError(err error, target *usageError) bool {
	ue, ok := err.(usageError)
	if ok {
		*target = ue
	}
	return ok
}

func TestDryRun_PrintsSeededURLsAndExits(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trgscout.db")

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	if _, err := st.SeedNew(context.Background(), []string{
		"https://example.hr/trgovina/a",
		"https://example.hr/trgovina/b",
	}); err != nil {
		t.Fatalf("seeding urls: %v", err)
	}
	st.Close()

	env := map[string]string{
		"DATABASE_PATH":      dbPath,
		"SITEMAP_INDEX_URL":  "https://example.hr/sitemap.xml",
		"BASE_URL":           "https://example.hr",
		"TARGET_CATEGORY_ID": "42",
	}
	stdout, _, err := executeRootCmd(t, env, "--dry-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"https://example.hr/trgovina/a", "https://example.hr/trgovina/b"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout = %q, want it to contain %q", stdout, want)
		}
	}
}

func TestParseMode_AcceptsAllThreeModes(t *testing.T) {
	for _, m := range []string{"tunnel", "enhanced", "basic"} {
		mode, err := parseMode(m)
		if err != nil {
			t.Errorf("parseMode(%q) returned error: %v", m, err)
		}
		if string(mode) != m {
			t.Errorf("parseMode(%q) = %q, want %q", m, mode, m)
		}
	}
}

func TestParseMode_RejectsUnknownValue(t *testing.T) {
	if _, err := parseMode("supersonic"); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestParseLogLevel_DefaultsToInfo(t *testing.T) {
	if got := parseLogLevel("nonsense"); got != slog.LevelInfo {
		t.Errorf("parseLogLevel(nonsense) = %v, want info", got)
	}
}
