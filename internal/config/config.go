package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// Sources holds the four locators of the shared spreadsheet. A locator is
// a full URL, a tab id resolved against SpreadsheetURL, or a file path.
type Sources struct {
	Lunch   string `json:"lunchGid" yaml:"lunch"`
	Dinner  string `json:"dinnerGid" yaml:"dinner"`
	History string `json:"plansGid" yaml:"history"`
	SaveURL string `json:"saveUrl" yaml:"save_url"`
}

// Config holds the configuration for the application.
type Config struct {
	SpreadsheetURL string
	Sources        Sources

	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	GroqAPIKey   string

	DatabasePath   string
	LogLevel       string
	LogDevelopment bool
	HTTPAddr       string
	DefaultDays    int

	// Telegram Config
	TelegramBotToken       string
	TelegramAllowedUserIDs []int64
	TelegramWebhookURL     string // empty means long polling
}

// fileConfig mirrors Config for the optional YAML file.
type fileConfig struct {
	SpreadsheetURL string  `yaml:"spreadsheet_url"`
	Sources        Sources `yaml:"sources"`
	LLM            struct {
		Provider     string `yaml:"provider"`
		GeminiAPIKey string `yaml:"gemini_api_key"`
		GeminiModel  string `yaml:"gemini_model"`
		GroqAPIKey   string `yaml:"groq_api_key"`
	} `yaml:"llm"`
	DatabasePath string `yaml:"database_path"`
	Logging      struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`
	HTTPAddr    string `yaml:"http_addr"`
	DefaultDays int    `yaml:"default_days"`
	Telegram    struct {
		BotToken       string  `yaml:"bot_token"`
		AllowedUserIDs []int64 `yaml:"allowed_user_ids"`
		WebhookURL     string  `yaml:"webhook_url"`
	} `yaml:"telegram"`
}

// NewFromEnv creates a new Config object from environment variables. When
// NUTRIPLAN_CONFIG names a YAML file its non-empty values override the env.
func NewFromEnv() (*Config, error) {
	cfg := &Config{
		SpreadsheetURL: os.Getenv("NUTRIPLAN_SPREADSHEET_URL"),
		Sources: Sources{
			Lunch:   os.Getenv("NUTRIPLAN_LUNCH_SOURCE"),
			Dinner:  os.Getenv("NUTRIPLAN_DINNER_SOURCE"),
			History: os.Getenv("NUTRIPLAN_HISTORY_SOURCE"),
			SaveURL: os.Getenv("NUTRIPLAN_SAVE_URL"),
		},
		LLMProvider:      envOr("NUTRIPLAN_LLM_PROVIDER", ProviderGemini),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		DatabasePath:     envOr("DATABASE_PATH", "data/nutriplan.db"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogDevelopment:   os.Getenv("LOG_DEVELOPMENT") == "true",
		HTTPAddr:         envOr("HTTP_ADDR", ":8080"),
		DefaultDays:      7,
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
	}

	if v := os.Getenv("NUTRIPLAN_DEFAULT_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("NUTRIPLAN_DEFAULT_DAYS must be a positive integer, got %q", v)
		}
		cfg.DefaultDays = days
	}

	if v := os.Getenv("TELEGRAM_ALLOWED_USER_IDS"); v != "" {
		ids, err := parseIDs(v)
		if err != nil {
			return nil, err
		}
		cfg.TelegramAllowedUserIDs = ids
	}

	if path := os.Getenv("NUTRIPLAN_CONFIG"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ApplyFile overlays the non-empty values of a YAML config file.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setIf(&c.SpreadsheetURL, fc.SpreadsheetURL)
	setIf(&c.Sources.Lunch, fc.Sources.Lunch)
	setIf(&c.Sources.Dinner, fc.Sources.Dinner)
	setIf(&c.Sources.History, fc.Sources.History)
	setIf(&c.Sources.SaveURL, fc.Sources.SaveURL)
	setIf(&c.LLMProvider, fc.LLM.Provider)
	setIf(&c.GeminiAPIKey, fc.LLM.GeminiAPIKey)
	setIf(&c.GeminiModel, fc.LLM.GeminiModel)
	setIf(&c.GroqAPIKey, fc.LLM.GroqAPIKey)
	setIf(&c.DatabasePath, fc.DatabasePath)
	setIf(&c.LogLevel, fc.Logging.Level)
	setIf(&c.HTTPAddr, fc.HTTPAddr)
	setIf(&c.TelegramBotToken, fc.Telegram.BotToken)
	setIf(&c.TelegramWebhookURL, fc.Telegram.WebhookURL)
	if fc.Logging.Development {
		c.LogDevelopment = true
	}
	if fc.DefaultDays > 0 {
		c.DefaultDays = fc.DefaultDays
	}
	if len(fc.Telegram.AllowedUserIDs) > 0 {
		c.TelegramAllowedUserIDs = fc.Telegram.AllowedUserIDs
	}
	return nil
}

// RequireLLM checks that the selected provider has its API key.
func (c *Config) RequireLLM() error {
	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLMProvider)
	}
	return nil
}

// RequireTelegram checks the bot settings.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if len(c.TelegramAllowedUserIDs) == 0 {
		return fmt.Errorf("TELEGRAM_ALLOWED_USER_IDS environment variable not set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseIDs(v string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram user id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
