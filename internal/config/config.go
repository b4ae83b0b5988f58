// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken = "TELEGRAM_TOKEN"
	KeyMongoURI      = "MONGO_URI"
	KeyMongoDB       = "MONGO_DB"
	KeyScheduleAPI   = "SCHEDULE_API_URL"
	KeyCheckInterval = "CHECK_INTERVAL_MINUTES"
	KeyAppEnv        = "APP_ENV"
	KeyLogLevel      = "LOG_LEVEL"
	KeyHTTPPort      = "HTTP_PORT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv               = EnvProduction
	DefaultLogLevel             = "info"
	DefaultHTTPPort             = 8080
	DefaultCheckIntervalMinutes = 30

	// Recommended database names by environment.
	DefaultMongoDBProd = "aktt_bot"
	DefaultMongoDBDev  = "aktt_bot_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string for the subscription store.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyScheduleAPI,
		Example:     "http://localhost:16311",
		Required:    true,
		Description: "Base URL of the college schedule HTTP API.",
	},
	{
		Key:         KeyCheckInterval,
		Example:     strconv.Itoa(DefaultCheckIntervalMinutes),
		Default:     strconv.Itoa(DefaultCheckIntervalMinutes),
		Description: "Minutes between schedule change checks.",
		Notes:       "Must be a positive integer; the notifier refuses to arm otherwise.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken  string
	MongoURI       string
	MongoDB        string
	ScheduleAPIURL string
	CheckInterval  time.Duration
	AppEnv         string
	LogLevel       string
	HTTPPort       int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:         firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:  strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		MongoURI:       strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:        strings.TrimSpace(os.Getenv(KeyMongoDB)),
		ScheduleAPIURL: strings.TrimSpace(os.Getenv(KeyScheduleAPI)),
		CheckInterval:  DefaultCheckIntervalMinutes * time.Minute,
		LogLevel:       firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:       DefaultHTTPPort,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}
	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}
	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}
	if cfg.ScheduleAPIURL == "" {
		missing = append(missing, KeyScheduleAPI)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	intervalRaw := strings.TrimSpace(os.Getenv(KeyCheckInterval))
	if intervalRaw != "" {
		minutes, parseErr := strconv.Atoi(intervalRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyCheckInterval, parseErr)
		}
		cfg.CheckInterval = time.Duration(minutes) * time.Minute
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// FormatRedacted renders the resolved configuration with secrets masked, for
// the -config-only startup check.
func (c Config) FormatRedacted() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s=%s\n", KeyAppEnv, c.AppEnv)
	fmt.Fprintf(&b, "%s=%s\n", KeyTelegramToken, redact(c.TelegramToken))
	fmt.Fprintf(&b, "%s=%s\n", KeyMongoURI, redact(c.MongoURI))
	fmt.Fprintf(&b, "%s=%s\n", KeyMongoDB, c.MongoDB)
	fmt.Fprintf(&b, "%s=%s\n", KeyScheduleAPI, c.ScheduleAPIURL)
	fmt.Fprintf(&b, "%s=%d\n", KeyCheckInterval, int(c.CheckInterval/time.Minute))
	fmt.Fprintf(&b, "%s=%s\n", KeyLogLevel, c.LogLevel)
	fmt.Fprintf(&b, "%s=%d", KeyHTTPPort, c.HTTPPort)

	return b.String()
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	return "***"
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
