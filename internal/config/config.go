// Package config handles configuration loading for tradebrief.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"`
	News     NewsConfig     `mapstructure:"news"     yaml:"news"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	Token string `mapstructure:"token" yaml:"token"`
	Proxy string `mapstructure:"proxy" yaml:"proxy"` // optional HTTP proxy URL
}

// LLMConfig holds chat-completion provider configuration.
type LLMConfig struct {
	Primary     string  `mapstructure:"primary"      yaml:"primary"` // "groq" or "openai"
	GroqKey     string  `mapstructure:"groq_key"     yaml:"groq_key"`
	OpenAIKey   string  `mapstructure:"openai_key"   yaml:"openai_key"`
	Model       string  `mapstructure:"model"        yaml:"model"`
	Temperature float64 `mapstructure:"temperature"  yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"   yaml:"max_tokens"`
}

// NewsConfig selects the news retrieval strategy.
type NewsConfig struct {
	Source string `mapstructure:"source" yaml:"source"` // "feeds" or "search"
	Limit  int    `mapstructure:"limit"  yaml:"limit"`  // headlines per prompt
}

// APIConfig holds the liveness/API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.tradebrief/config.yaml (home directory)
//  3. /etc/tradebrief/config.yaml (system)
//
// Environment variables override config file values.
// Format: TRADEBRIEF_<SECTION>_<KEY>, e.g., TRADEBRIEF_LLM_GROQ_KEY
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".tradebrief"))
	v.AddConfigPath("/etc/tradebrief")

	v.SetEnvPrefix("TRADEBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADEBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults: the bot ships against Groq's OpenAI-compatible endpoint.
	v.SetDefault("llm.primary", "groq")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)

	// News defaults
	v.SetDefault("news.source", "feeds")
	v.SetDefault("news.limit", 3)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if tok := os.Getenv("TRADEBRIEF_TELEGRAM_TOKEN"); tok != "" {
		cfg.Telegram.Token = tok
	}
	if key := os.Getenv("TRADEBRIEF_LLM_GROQ_KEY"); key != "" {
		cfg.LLM.GroqKey = key
	}
	if key := os.Getenv("TRADEBRIEF_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
