package config

import (
	"errors"
	"log"
	"time"

	"github.com/NovaByte/NovaVoice/pkg/logger"
	"github.com/NovaByte/NovaVoice/pkg/utils"
)

// Config main configuration structure
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Database DatabaseConfig   `mapstructure:"database"`
	Log      logger.LogConfig `mapstructure:"log"`
	Services ServicesConfig   `mapstructure:"services"`
	Agent    AgentConfig      `mapstructure:"agent"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Name        string `env:"SERVER_NAME"`
	Addr        string `env:"ADDR"` // webhook HTTP listen address
	Mode        string `env:"MODE"`
	WebhookBase string `env:"WEBHOOK_BASE_URL"` // outbound send-link webhook URL
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER"`
	DSN    string `env:"DSN"`
}

// ServicesConfig external service configuration
type ServicesConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Room      RoomConfig      `mapstructure:"room"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// LLMConfig LLM service configuration
type LLMConfig struct {
	Provider    string  `env:"LLM_PROVIDER"` // openai, qwen, etc.
	APIKey      string  `env:"LLM_API_KEY"`
	BaseURL     string  `env:"LLM_BASE_URL"`
	Model       string  `env:"LLM_MODEL"`
	Temperature float32 `env:"LLM_TEMPERATURE"`
	MaxTokens   int     `env:"LLM_MAX_TOKENS"`
}

// RoomConfig realtime media room configuration
type RoomConfig struct {
	URL            string `env:"LIVEKIT_URL"`
	APIKey         string `env:"LIVEKIT_API_KEY"`
	APISecret      string `env:"LIVEKIT_API_SECRET"`
	AgentIdentity  string `env:"AGENT_IDENTITY"`
	OperatorPrefix string `env:"OPERATOR_IDENTITY_PREFIX"`
}

// TelegramConfig messaging credentials. When any of the MTProto fields
// are empty the webhook runs in mock mode and only logs deliveries.
type TelegramConfig struct {
	APIID         string `env:"TELEGRAM_API_ID"`
	APIHash       string `env:"TELEGRAM_API_HASH"`
	SessionString string `env:"TELEGRAM_SESSION_STRING"`
	BridgeURL     string `env:"TELEGRAM_BRIDGE_URL"`
}

// Configured reports whether MTProto credentials are present.
func (t TelegramConfig) Configured() bool {
	return t.APIID != "" && t.APIHash != "" && t.SessionString != ""
}

// DashboardConfig operator dashboard configuration
type DashboardConfig struct {
	RegisterURL string        `env:"DASHBOARD_REGISTER_URL"`
	Timeout     time.Duration `env:"DASHBOARD_TIMEOUT"`
}

// AgentConfig call agent behavior configuration
type AgentConfig struct {
	// When true, repeated handoff requests on the same call re-run the
	// dashboard registration and room broadcast. The in-memory handoff
	// flag is idempotent either way.
	HandoffRebroadcast bool          `env:"HANDOFF_REBROADCAST"`
	DispatchTimeout    time.Duration `env:"DISPATCH_TIMEOUT"`
}

var GlobalConfig *Config

func Load() error {
	// 1. Load .env file based on environment (don't error if it doesn't exist, use default values)
	env := utils.GetEnv("APP_ENV")
	err := utils.LoadEnv(env)
	if err != nil {
		// Only log when .env file doesn't exist, don't affect startup
		log.Printf("Note: .env file not found or failed to load: %v (using default values)", err)
	}

	// 2. Load global configuration
	GlobalConfig = &Config{
		Server: ServerConfig{
			Name:        getStringOrDefault("SERVER_NAME", "NovaVoice"),
			Addr:        getStringOrDefault("ADDR", ":8000"),
			Mode:        getStringOrDefault("MODE", "development"),
			WebhookBase: getStringOrDefault("WEBHOOK_BASE_URL", "http://localhost:8000/send-link"),
		},
		Database: DatabaseConfig{
			Driver: getStringOrDefault("DB_DRIVER", "sqlite"),
			DSN:    getStringOrDefault("DSN", "./nova.db"),
		},
		Log: logger.LogConfig{
			Level:      getStringOrDefault("LOG_LEVEL", "info"),
			Filename:   getStringOrDefault("LOG_FILENAME", "./logs/app.log"),
			MaxSize:    getIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     getIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			Daily:      getBoolOrDefault("LOG_DAILY", true),
		},
		Services: ServicesConfig{
			LLM: LLMConfig{
				Provider:    getStringOrDefault("LLM_PROVIDER", "openai"),
				APIKey:      getStringOrDefault("LLM_API_KEY", ""),
				BaseURL:     getStringOrDefault("LLM_BASE_URL", "https://api.openai.com/v1"),
				Model:       getStringOrDefault("LLM_MODEL", "gpt-4o-mini"),
				Temperature: float32(getFloatOrDefault("LLM_TEMPERATURE", 0.8)),
				MaxTokens:   getIntOrDefault("LLM_MAX_TOKENS", 2000),
			},
			Room: RoomConfig{
				URL:            getStringOrDefault("LIVEKIT_URL", ""),
				APIKey:         getStringOrDefault("LIVEKIT_API_KEY", ""),
				APISecret:      getStringOrDefault("LIVEKIT_API_SECRET", ""),
				AgentIdentity:  getStringOrDefault("AGENT_IDENTITY", "sales-agent"),
				OperatorPrefix: getStringOrDefault("OPERATOR_IDENTITY_PREFIX", "human_operator"),
			},
			Telegram: TelegramConfig{
				APIID:         getStringOrDefault("TELEGRAM_API_ID", ""),
				APIHash:       getStringOrDefault("TELEGRAM_API_HASH", ""),
				SessionString: getStringOrDefault("TELEGRAM_SESSION_STRING", ""),
				BridgeURL:     getStringOrDefault("TELEGRAM_BRIDGE_URL", ""),
			},
			Dashboard: DashboardConfig{
				RegisterURL: getStringOrDefault("DASHBOARD_REGISTER_URL", "http://localhost:3000/api/handoffs/register"),
				Timeout:     parseDuration(getStringOrDefault("DASHBOARD_TIMEOUT", "5s"), 5*time.Second),
			},
		},
		Agent: AgentConfig{
			HandoffRebroadcast: getBoolOrDefault("HANDOFF_REBROADCAST", false),
			DispatchTimeout:    parseDuration(getStringOrDefault("DISPATCH_TIMEOUT", "10s"), 10*time.Second),
		},
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate database configuration
	if c.Database.DSN == "" {
		return errors.New("database DSN is required")
	}

	// Validate server configuration
	if c.Server.Addr == "" {
		return errors.New("server address is required")
	}
	return nil
}

// getStringOrDefault gets environment variable value, returns default if empty
func getStringOrDefault(key, defaultValue string) string {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getBoolOrDefault gets boolean environment variable value, returns default if empty
func getBoolOrDefault(key string, defaultValue bool) bool {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return utils.GetBoolEnv(key)
}

// getIntOrDefault gets integer environment variable value, returns default if empty
func getIntOrDefault(key string, defaultValue int) int {
	value := utils.GetIntEnv(key)
	if value == 0 {
		return defaultValue
	}
	return int(value)
}

// getFloatOrDefault gets float environment variable value, returns default if empty
func getFloatOrDefault(key string, defaultValue float64) float64 {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return utils.GetFloatEnv(key)
}

// parseDuration parses duration string with default fallback
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
