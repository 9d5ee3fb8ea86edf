package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"

	EnvLocal = "local"
)

// DotenvFiles are loaded in order; variables already set win.
var DotenvFiles = []string{filepath.Join("env", ".env"), ".env"}

type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	Plain      bool
	Timeout    string
	LogLevel   string
}

type Settings struct {
	OutputMode string
	AppEnv     string
	LogLevel   string
	LogFormat  string
	Timeout    time.Duration

	BotToken    string
	DevBotToken string

	SubgraphEndpoint string
	BaseURL          string
	Chain            string
	Settle           time.Duration
	ViewportWidth    int
	ViewportHeight   int
	ChromePath       string
	Headless         bool
	MaxBrowsers      int

	SessionDriver   string
	SessionPath     string
	SessionLockPath string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string

	WebhookAddr   string
	WebhookPath   string
	WebhookURL    string
	WebhookSecret string
}

// Local reports whether the process runs on a developer machine.
func (s Settings) Local() bool { return s.AppEnv == EnvLocal }

// Token is the bot token for the current app env.
func (s Settings) Token() string {
	if s.Local() {
		return s.DevBotToken
	}
	return s.BotToken
}

type fileConfig struct {
	Output    string `yaml:"output"`
	AppEnv    string `yaml:"app_env"`
	Timeout   string `yaml:"timeout"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Bot       struct {
		Token       string `yaml:"token"`
		TokenEnv    string `yaml:"token_env"`
		DevToken    string `yaml:"dev_token"`
		DevTokenEnv string `yaml:"dev_token_env"`
	} `yaml:"bot"`
	Subgraph struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"subgraph"`
	Browser struct {
		BaseURL  string `yaml:"base_url"`
		Chain    string `yaml:"chain"`
		Settle   string `yaml:"settle"`
		Width    *int   `yaml:"width"`
		Height   *int   `yaml:"height"`
		Path     string `yaml:"path"`
		Headless *bool  `yaml:"headless"`
		Max      *int   `yaml:"max_sessions"`
	} `yaml:"browser"`
	Session struct {
		Driver   string `yaml:"driver"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
		Redis    struct {
			Addr        string `yaml:"addr"`
			Password    string `yaml:"password"`
			PasswordEnv string `yaml:"password_env"`
			DB          *int   `yaml:"db"`
			Prefix      string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"session"`
	Webhook struct {
		Addr      string `yaml:"addr"`
		Path      string `yaml:"path"`
		URL       string `yaml:"url"`
		Secret    string `yaml:"secret"`
		SecretEnv string `yaml:"secret_env"`
	} `yaml:"webhook"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	if err := loadDotenv(DotenvFiles); err != nil {
		return Settings{}, err
	}
	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Local() {
		settings.Headless = false
	}
	if err := validate(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	sessionPath, lockPath, err := defaultSessionPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:       "json",
		LogLevel:         "info",
		LogFormat:        "text",
		Timeout:          50 * time.Second,
		SubgraphEndpoint: "https://thegraph.pancakeswap.com/exchange-v3-bsc",
		BaseURL:          "https://pancakeswap.finance",
		Chain:            "bsc",
		Settle:           5 * time.Second,
		ViewportWidth:    1920,
		ViewportHeight:   1080,
		Headless:         true,
		MaxBrowsers:      3,
		SessionDriver:    DriverSQLite,
		SessionPath:      sessionPath,
		SessionLockPath:  lockPath,
		RedisAddr:        "127.0.0.1:6379",
		RedisPrefix:      "lpman:session:",
		WebhookAddr:      ":8080",
		WebhookPath:      "/telegram",
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "lpman", "config.yaml"), nil
}

func defaultSessionPaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "lpman")
	return filepath.Join(dir, "sessions.db"), filepath.Join(dir, "sessions.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	setString(&settings.OutputMode, strings.ToLower(cfg.Output))
	setString(&settings.AppEnv, cfg.AppEnv)
	setString(&settings.LogLevel, cfg.LogLevel)
	setString(&settings.LogFormat, cfg.LogFormat)
	if err := setDuration(&settings.Timeout, "timeout", cfg.Timeout); err != nil {
		return err
	}

	setString(&settings.BotToken, cfg.Bot.Token)
	if cfg.Bot.TokenEnv != "" {
		settings.BotToken = os.Getenv(cfg.Bot.TokenEnv)
	}
	setString(&settings.DevBotToken, cfg.Bot.DevToken)
	if cfg.Bot.DevTokenEnv != "" {
		settings.DevBotToken = os.Getenv(cfg.Bot.DevTokenEnv)
	}

	setString(&settings.SubgraphEndpoint, cfg.Subgraph.Endpoint)

	setString(&settings.BaseURL, cfg.Browser.BaseURL)
	setString(&settings.Chain, cfg.Browser.Chain)
	if err := setDuration(&settings.Settle, "browser.settle", cfg.Browser.Settle); err != nil {
		return err
	}
	if cfg.Browser.Width != nil {
		settings.ViewportWidth = *cfg.Browser.Width
	}
	if cfg.Browser.Height != nil {
		settings.ViewportHeight = *cfg.Browser.Height
	}
	setString(&settings.ChromePath, cfg.Browser.Path)
	if cfg.Browser.Headless != nil {
		settings.Headless = *cfg.Browser.Headless
	}
	if cfg.Browser.Max != nil {
		settings.MaxBrowsers = *cfg.Browser.Max
	}

	setString(&settings.SessionDriver, strings.ToLower(cfg.Session.Driver))
	setString(&settings.SessionPath, cfg.Session.Path)
	setString(&settings.SessionLockPath, cfg.Session.LockPath)
	setString(&settings.RedisAddr, cfg.Session.Redis.Addr)
	setString(&settings.RedisPassword, cfg.Session.Redis.Password)
	if cfg.Session.Redis.PasswordEnv != "" {
		settings.RedisPassword = os.Getenv(cfg.Session.Redis.PasswordEnv)
	}
	if cfg.Session.Redis.DB != nil {
		settings.RedisDB = *cfg.Session.Redis.DB
	}
	setString(&settings.RedisPrefix, cfg.Session.Redis.Prefix)

	setString(&settings.WebhookAddr, cfg.Webhook.Addr)
	setString(&settings.WebhookPath, cfg.Webhook.Path)
	setString(&settings.WebhookURL, cfg.Webhook.URL)
	setString(&settings.WebhookSecret, cfg.Webhook.Secret)
	if cfg.Webhook.SecretEnv != "" {
		settings.WebhookSecret = os.Getenv(cfg.Webhook.SecretEnv)
	}

	return nil
}

func loadDotenv(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// env returns the first non-empty variable among names.
func env(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func applyEnv(settings *Settings) error {
	setString(&settings.OutputMode, strings.ToLower(env("LPMAN_OUTPUT")))
	setString(&settings.AppEnv, env("LPMAN_APP_ENV", "APP_ENV"))
	setString(&settings.LogLevel, env("LPMAN_LOG_LEVEL"))
	setString(&settings.LogFormat, env("LPMAN_LOG_FORMAT"))
	if err := setDuration(&settings.Timeout, "LPMAN_TIMEOUT", env("LPMAN_TIMEOUT")); err != nil {
		return err
	}

	setString(&settings.BotToken, env("LPMAN_BOT_TOKEN", "BOT_TOKEN"))
	setString(&settings.DevBotToken, env("LPMAN_BOT_TOKEN_DEV", "BOT_TOKEN_DEV"))

	setString(&settings.SubgraphEndpoint, env("LPMAN_SUBGRAPH_ENDPOINT"))
	setString(&settings.BaseURL, env("LPMAN_BASE_URL"))
	setString(&settings.Chain, env("LPMAN_CHAIN"))
	if err := setDuration(&settings.Settle, "LPMAN_SETTLE", env("LPMAN_SETTLE")); err != nil {
		return err
	}
	if err := setInt(&settings.ViewportWidth, "LPMAN_VIEWPORT_WIDTH", env("LPMAN_VIEWPORT_WIDTH")); err != nil {
		return err
	}
	if err := setInt(&settings.ViewportHeight, "LPMAN_VIEWPORT_HEIGHT", env("LPMAN_VIEWPORT_HEIGHT")); err != nil {
		return err
	}
	setString(&settings.ChromePath, env("LPMAN_CHROME_PATH"))
	if v := env("LPMAN_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LPMAN_HEADLESS: %w", err)
		}
		settings.Headless = b
	}
	if err := setInt(&settings.MaxBrowsers, "LPMAN_MAX_BROWSERS", env("LPMAN_MAX_BROWSERS")); err != nil {
		return err
	}

	setString(&settings.SessionDriver, strings.ToLower(env("LPMAN_SESSION_DRIVER")))
	setString(&settings.SessionPath, env("LPMAN_SESSION_PATH"))
	setString(&settings.SessionLockPath, env("LPMAN_SESSION_LOCK_PATH"))
	setString(&settings.RedisAddr, env("LPMAN_REDIS_ADDR"))
	setString(&settings.RedisPassword, env("LPMAN_REDIS_PASSWORD"))
	if err := setInt(&settings.RedisDB, "LPMAN_REDIS_DB", env("LPMAN_REDIS_DB")); err != nil {
		return err
	}
	setString(&settings.RedisPrefix, env("LPMAN_REDIS_PREFIX"))

	setString(&settings.WebhookAddr, env("LPMAN_WEBHOOK_ADDR"))
	setString(&settings.WebhookPath, env("LPMAN_WEBHOOK_PATH"))
	setString(&settings.WebhookURL, env("LPMAN_WEBHOOK_URL"))
	setString(&settings.WebhookSecret, env("LPMAN_WEBHOOK_SECRET"))
	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	setString(&settings.LogLevel, flags.LogLevel)
	return nil
}

func validate(s Settings) error {
	if s.OutputMode != "json" && s.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	if s.Settle < 0 {
		return fmt.Errorf("settle delay must not be negative, got %s", s.Settle)
	}
	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", s.ViewportWidth, s.ViewportHeight)
	}
	if s.MaxBrowsers < 0 {
		return fmt.Errorf("max browsers must not be negative, got %d", s.MaxBrowsers)
	}
	if s.SessionDriver != DriverSQLite && s.SessionDriver != DriverRedis {
		return fmt.Errorf("session driver must be %s or %s", DriverSQLite, DriverRedis)
	}
	if !strings.HasPrefix(s.WebhookPath, "/") {
		return fmt.Errorf("webhook path must start with /")
	}
	return nil
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key, v string) error {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
