package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points every lookup at a scratch directory so the developer's
// own config and dotenv files never leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmp, "cache"))
	for _, name := range []string{"APP_ENV", "BOT_TOKEN", "BOT_TOKEN_DEV", "LPMAN_APP_ENV", "LPMAN_BOT_TOKEN", "LPMAN_BOT_TOKEN_DEV", "LPMAN_OUTPUT", "LPMAN_TIMEOUT"} {
		t.Setenv(name, "")
	}
	prev := DotenvFiles
	DotenvFiles = nil
	t.Cleanup(func() { DotenvFiles = prev })
	return tmp
}

func TestLoadDefaults(t *testing.T) {
	tmp := isolate(t)
	settings, err := Load(GlobalFlags{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Timeout != 50*time.Second || settings.Settle != 5*time.Second {
		t.Fatalf("unexpected durations: timeout=%s settle=%s", settings.Timeout, settings.Settle)
	}
	if settings.ViewportWidth != 1920 || settings.ViewportHeight != 1080 || !settings.Headless {
		t.Fatalf("unexpected browser defaults: %+v", settings)
	}
	if settings.SessionDriver != DriverSQLite || !strings.HasPrefix(settings.SessionPath, filepath.Join(tmp, "cache", "lpman")) {
		t.Fatalf("unexpected session defaults: %s %s", settings.SessionDriver, settings.SessionPath)
	}
}

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := isolate(t)
	configPath := filepath.Join(tmp, "config.yaml")
	body := "output: plain\ntimeout: 20s\nbrowser:\n  settle: 2s\n  width: 1280\nsession:\n  driver: redis\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LPMAN_OUTPUT", "json")
	t.Setenv("LPMAN_TIMEOUT", "30s")
	settings, err := Load(GlobalFlags{ConfigPath: configPath, Plain: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.Timeout != 30*time.Second {
		t.Fatalf("expected env to beat file, got %s", settings.Timeout)
	}
	if settings.Settle != 2*time.Second || settings.ViewportWidth != 1280 || settings.SessionDriver != DriverRedis {
		t.Fatalf("file values not applied: %+v", settings)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	isolate(t)
	_, err := Load(GlobalFlags{JSON: true, Plain: true})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	isolate(t)
	if _, err := Load(GlobalFlags{Timeout: "0s"}); err == nil {
		t.Fatal("expected zero timeout to be rejected")
	}

	t.Setenv("LPMAN_SETTLE", "soon")
	_, err := Load(GlobalFlags{})
	if err == nil || !strings.Contains(err.Error(), "LPMAN_SETTLE") {
		t.Fatalf("expected error naming the key, got %v", err)
	}
}

func TestLoadRejectsUnknownSessionDriver(t *testing.T) {
	isolate(t)
	t.Setenv("LPMAN_SESSION_DRIVER", "ydb")
	if _, err := Load(GlobalFlags{}); err == nil {
		t.Fatal("expected unknown driver to be rejected")
	}
}

func TestLocalModeUsesDevTokenAndVisibleBrowser(t *testing.T) {
	isolate(t)
	t.Setenv("BOT_TOKEN", "prod")
	t.Setenv("BOT_TOKEN_DEV", "dev")
	t.Setenv("APP_ENV", "local")

	settings, err := Load(GlobalFlags{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Token() != "dev" || settings.Headless {
		t.Fatalf("expected dev token and visible browser, got token=%s headless=%v", settings.Token(), settings.Headless)
	}

	t.Setenv("APP_ENV", "production")
	settings, _ = Load(GlobalFlags{})
	if settings.Token() != "prod" {
		t.Fatalf("expected production token, got %s", settings.Token())
	}
}

func TestDotenvDoesNotOverrideEnvironment(t *testing.T) {
	tmp := isolate(t)
	dotenv := filepath.Join(tmp, ".env")
	if err := os.WriteFile(dotenv, []byte("LPMAN_CHAIN=eth\nLPMAN_BASE_URL=https://example.test\n"), 0o644); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	DotenvFiles = []string{dotenv, filepath.Join(tmp, "missing.env")}
	t.Setenv("LPMAN_CHAIN", "bsc")
	// godotenv sets variables process-wide; restore after the test.
	t.Setenv("LPMAN_BASE_URL", "")
	os.Unsetenv("LPMAN_BASE_URL")

	settings, err := Load(GlobalFlags{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Chain != "bsc" {
		t.Fatalf("environment must win over dotenv, got %s", settings.Chain)
	}
	if settings.BaseURL != "https://example.test" {
		t.Fatalf("expected dotenv value, got %s", settings.BaseURL)
	}
}
