package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"pve_client/internal/models"
	"pve_client/pkg/logger"
	"pve_client/pkg/tracing"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	baseURLENV        = "PVE_BASE_URL"
	userIDENV         = "PVE_USER_ID"
	userTokenENV      = "PVE_TOKEN"
)

// Config ...
type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Session struct {
		// URL пустой → берётся API.BaseURL со схемой ws(s)
		URL              string        `yaml:"url"`
		Path             string        `yaml:"path"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
		ReconnectMin     time.Duration `yaml:"reconnect_min"`
		ReconnectMax     time.Duration `yaml:"reconnect_max"`
		EventBuffer      int           `yaml:"event_buffer"`
	} `yaml:"session"`

	Market struct {
		TickersURL  string  `yaml:"tickers_url"`
		MinTurnover float64 `yaml:"min_turnover"`
	} `yaml:"market"`

	Compile struct {
		DisplayWindow  time.Duration `yaml:"display_window"`
		GracePeriod    time.Duration `yaml:"grace_period"`
		AnalyzerPoll   time.Duration `yaml:"analyzer_poll"`
		InitialCapital float64       `yaml:"initial_capital"`
		// TrackExternal: прогресс по незнакомому графу заводит сессию
		TrackExternal bool `yaml:"track_external"`
	} `yaml:"compile"`

	Defaults models.Metadata `yaml:"defaults"`

	Credentials     models.Credentials `yaml:"credentials"`
	CredentialsFile string             `yaml:"credentials_file"`

	DB       string `yaml:"db_dsn"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Tracing tracing.Config `yaml:"tracing"`
	Log     logger.Config  `yaml:"log"`

	Health struct {
		Addr string `yaml:"addr"`
	} `yaml:"health"`

	LogCapacity int `yaml:"log_capacity"`
}

// Default — значения, которые перекрываются файлом и env.
func Default() Config {
	var c Config
	c.API.BaseURL = getenvDefault(baseURLENV, "http://localhost:5000")
	c.API.Timeout = durationFromEnv("API_TIMEOUT", "10s")

	c.Session.Path = "/api/ws/socket.io/"
	c.Session.HandshakeTimeout = durationFromEnv("SESSION_HANDSHAKE_TIMEOUT", "10s")
	c.Session.ReconnectMin = durationFromEnv("SESSION_RECONNECT_MIN", "1s")
	c.Session.ReconnectMax = durationFromEnv("SESSION_RECONNECT_MAX", "30s")
	c.Session.EventBuffer = intFromEnv("SESSION_EVENT_BUFFER", 256)

	c.Market.TickersURL = "https://api.bybit.com/v5/market/tickers?category=linear"
	c.Market.MinTurnover = floatFromEnv("MARKET_MIN_TURNOVER", 50_000_000)

	c.Compile.DisplayWindow = durationFromEnv("COMPILE_DISPLAY_WINDOW", "3s")
	c.Compile.GracePeriod = durationFromEnv("COMPILE_GRACE_PERIOD", "10m")
	c.Compile.AnalyzerPoll = durationFromEnv("ANALYZER_POLL", "3s")
	c.Compile.InitialCapital = floatFromEnv("ANALYZER_INITIAL_CAPITAL", 300)
	c.Compile.TrackExternal = boolFromEnv("COMPILE_TRACK_EXTERNAL", true)

	c.Defaults.Symbol = getenvDefault("DEFAULT_SYMBOL", "BTCUSDT")
	c.Defaults.Timeframe = getenvDefault("TIMEFRAME", "1min")

	c.CredentialsFile = getenvDefault("CREDENTIALS_FILE", "data/credentials.yaml")
	c.Health.Addr = getenvDefault("HEALTH_ADDR", ":8080")
	c.Log.Level = getenvDefault("LOG_LEVEL", "info")
	c.Log.Console = boolFromEnv("LOG_CONSOLE", true)
	c.LogCapacity = intFromEnv("LOG_CAPACITY", 1000)
	return c
}

// NewConfig — fx-провайдер: configs/$CONFIG_FILE поверх дефолтов.
func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	dir := getenvDefault(configDirENV, "configs")
	return Load(filepath.Join(dir, configFileName))
}

// Load читает .env и yaml-файл. Отсутствующий файл не ошибка: остаются дефолты.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	config := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &config); err != nil {
				return nil, fmt.Errorf("decode config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&config)
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnv(c *Config) {
	if token := os.Getenv(tokenTelegramENV); token != "" {
		c.Telegram.Token = token
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		c.DB = dsn
	}
	if v := os.Getenv(baseURLENV); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(userIDENV); v != "" {
		c.Credentials.UserID = v
	}
	if v := os.Getenv(userTokenENV); v != "" {
		c.Credentials.Token = v
	}
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Session.ReconnectMin <= 0 || c.Session.ReconnectMax < c.Session.ReconnectMin {
		return fmt.Errorf("session: reconnect_min must be > 0 and <= reconnect_max")
	}
	if c.LogCapacity <= 0 {
		return fmt.Errorf("log_capacity must be > 0")
	}
	return nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
