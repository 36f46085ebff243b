package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// IMAPConfig holds the mailbox connection settings. Username and Password
// are usually supplied through GMAIL_USER and GMAIL_APP_PASSWORD.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`

	// UnseenOnly restricts the fetch filter to messages without \Seen.
	UnseenOnly bool `mapstructure:"unseen_only" yaml:"unseen_only"`

	DialTimeoutSec     int `mapstructure:"dial_timeout_sec" yaml:"dial_timeout_sec"`
	GreetingTimeoutSec int `mapstructure:"greeting_timeout_sec" yaml:"greeting_timeout_sec"`
	FetchTimeoutSec    int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	AckTimeoutSec      int `mapstructure:"ack_timeout_sec" yaml:"ack_timeout_sec"`
}

// ExtractConfig holds settings for the structured-extraction model.
type ExtractConfig struct {
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	Model         string `mapstructure:"model" yaml:"model"`
	APIKey        string `mapstructure:"api_key" yaml:"-"`
	TimeoutSec    int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	RatePerMinute int    `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
	MaxRetries    int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// DBConfig locates the SQLite database.
type DBConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig holds the HTTP trigger settings.
type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// WatchConfig controls the interval poller.
type WatchConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// LogConfig controls log verbosity.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP    IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	Extract ExtractConfig `mapstructure:"extract" yaml:"extract"`
	DB      DBConfig      `mapstructure:"db" yaml:"db"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// Seconds converts a *_sec setting into a duration, substituting fallback
// for non-positive values.
func Seconds(sec int, fallback time.Duration) time.Duration {
	if sec <= 0 {
		return fallback
	}
	return time.Duration(sec) * time.Second
}

// configDir returns ~/.config/rfpinbound, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rfpinbound")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/rfpinbound/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultDBPath returns the default SQLite database location.
func DefaultDBPath() string {
	return filepath.Join(configDir(), "rfp.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.unseen_only", false)
	v.SetDefault("imap.dial_timeout_sec", 30)
	v.SetDefault("imap.greeting_timeout_sec", 30)
	v.SetDefault("imap.fetch_timeout_sec", 120)
	v.SetDefault("imap.ack_timeout_sec", 30)
	v.SetDefault("extract.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("extract.model", "llama-3.3-70b-versatile")
	v.SetDefault("extract.timeout_sec", 60)
	v.SetDefault("extract.rate_per_minute", 30)
	v.SetDefault("extract.max_retries", 2)
	v.SetDefault("db.path", DefaultDBPath())
	v.SetDefault("server.port", 5000)
	v.SetDefault("watch.interval_sec", 300)
	v.SetDefault("log.level", "info")
}

// envBindings maps config keys to the environment variables that override
// them.
var envBindings = map[string]string{
	"imap.username":   "GMAIL_USER",
	"imap.password":   "GMAIL_APP_PASSWORD",
	"extract.api_key": "GROQ_API_KEY",
	"db.path":         "RFP_DB_PATH",
	"server.port":     "PORT",
	"log.level":       "RFP_LOG_LEVEL",
}

// LoadConfig reads configuration from the given YAML file path using Viper
// and applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s to %s: %w", key, env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.IMAP.Username = strings.TrimSpace(cfg.IMAP.Username)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.Level == "warning" {
		cfg.Log.Level = "warn"
	}

	return cfg, nil
}

// SaveConfig writes the non-secret parts of cfg to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	imapCfg := cfg.IMAP
	imapCfg.Password = ""
	extractCfg := cfg.Extract
	extractCfg.APIKey = ""

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("imap", imapCfg)
	v.Set("extract", extractCfg)
	v.Set("db", cfg.DB)
	v.Set("server", cfg.Server)
	v.Set("watch", cfg.Watch)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
