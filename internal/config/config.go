package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "RSS_DIGEST_CONFIG"
	databasePathEnv  = "DATABASE_PATH"
	mistralAPIKeyEnv = "MISTRAL_API_KEY"
	mistralModelEnv  = "MISTRAL_MODEL"
	summarizerURLEnv = "SUMMARIZER_URL"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Feeds         []FeedConfig       `yaml:"feeds"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Summarizer    SummarizerConfig   `yaml:"summarizer"`
	Digest        DigestConfig       `yaml:"digest"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig describes the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// FeedConfig describes one RSS source; order in the file is fetch order.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// FetchConfig tunes feed retrieval and content extraction.
type FetchConfig struct {
	DaysLimit      int  `yaml:"daysLimit"`
	TimeoutSec     int  `yaml:"timeoutSeconds"`
	MaxRetries     int  `yaml:"maxRetries"`
	RetryDelaySec  int  `yaml:"retryDelaySeconds"`
	Workers        int  `yaml:"workers"`
	ExtractContent bool `yaml:"extractContent"`
	MinBodyChars   int  `yaml:"minBodyChars"`
}

// Timeout resolves the per-request fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSec) * time.Second
}

// RetryDelay resolves the pause between fetch attempts.
func (f FetchConfig) RetryDelay() time.Duration {
	return time.Duration(f.RetryDelaySec) * time.Second
}

// SummarizerConfig describes the local inference backend.
type SummarizerConfig struct {
	InferenceURL  string `yaml:"inferenceUrl"`
	APIKey        string `yaml:"apiKey"`
	MaxLength     int    `yaml:"maxLength"`
	MinLength     int    `yaml:"minLength"`
	MaxInputChars int    `yaml:"maxInputChars"`
	TimeoutSec    int    `yaml:"timeoutSeconds"`
}

// DigestConfig defines the remote synthesis call and its schedule policy.
type DigestConfig struct {
	Endpoint      string   `yaml:"endpoint"`
	Model         string   `yaml:"model"`
	APIKey        string   `yaml:"apiKey"`
	MaxTokens     int      `yaml:"maxTokens"`
	Temperature   *float64 `yaml:"temperature"` // pointer so a file can set 0
	WindowDays    int      `yaml:"windowDays"`
	OutputDir     string   `yaml:"outputDir"`
	Always        bool     `yaml:"always"`
	MaxAttempts   int      `yaml:"maxAttempts"`
	RetryDelaySec int      `yaml:"retryDelaySeconds"`
}

// SchedulerConfig defines daemon-mode scheduling; disabled means one run
// per invocation, triggered externally.
type SchedulerConfig struct {
	Enabled        bool           `yaml:"enabled"`
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig controls log verbosity and optional file output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads a .env file when present, then YAML configuration (if any) and
// applies environment overrides on top.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(mistralAPIKeyEnv); v != "" {
		c.Digest.APIKey = v
	}

	if v := os.Getenv(mistralModelEnv); v != "" {
		c.Digest.Model = v
	}

	if v := os.Getenv(summarizerURLEnv); v != "" {
		c.Summarizer.InferenceURL = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// mergeConfig overlays non-zero file values onto the defaults. Every boolean
// defaults to false, so both values stay expressible; Temperature is a
// pointer because 0 is a meaningful setting.
func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	if override.Fetch.DaysLimit > 0 {
		base.Fetch.DaysLimit = override.Fetch.DaysLimit
	}
	if override.Fetch.TimeoutSec > 0 {
		base.Fetch.TimeoutSec = override.Fetch.TimeoutSec
	}
	if override.Fetch.MaxRetries > 0 {
		base.Fetch.MaxRetries = override.Fetch.MaxRetries
	}
	if override.Fetch.RetryDelaySec > 0 {
		base.Fetch.RetryDelaySec = override.Fetch.RetryDelaySec
	}
	if override.Fetch.Workers > 0 {
		base.Fetch.Workers = override.Fetch.Workers
	}
	if override.Fetch.ExtractContent {
		base.Fetch.ExtractContent = true
	}
	if override.Fetch.MinBodyChars > 0 {
		base.Fetch.MinBodyChars = override.Fetch.MinBodyChars
	}

	if override.Summarizer.InferenceURL != "" {
		base.Summarizer.InferenceURL = override.Summarizer.InferenceURL
	}
	if override.Summarizer.APIKey != "" {
		base.Summarizer.APIKey = override.Summarizer.APIKey
	}
	if override.Summarizer.MaxLength > 0 {
		base.Summarizer.MaxLength = override.Summarizer.MaxLength
	}
	if override.Summarizer.MinLength > 0 {
		base.Summarizer.MinLength = override.Summarizer.MinLength
	}
	if override.Summarizer.MaxInputChars > 0 {
		base.Summarizer.MaxInputChars = override.Summarizer.MaxInputChars
	}
	if override.Summarizer.TimeoutSec > 0 {
		base.Summarizer.TimeoutSec = override.Summarizer.TimeoutSec
	}

	if override.Digest.Endpoint != "" {
		base.Digest.Endpoint = override.Digest.Endpoint
	}
	if override.Digest.Model != "" {
		base.Digest.Model = override.Digest.Model
	}
	if override.Digest.APIKey != "" {
		base.Digest.APIKey = override.Digest.APIKey
	}
	if override.Digest.MaxTokens > 0 {
		base.Digest.MaxTokens = override.Digest.MaxTokens
	}
	if override.Digest.Temperature != nil {
		base.Digest.Temperature = override.Digest.Temperature
	}
	if override.Digest.WindowDays > 0 {
		base.Digest.WindowDays = override.Digest.WindowDays
	}
	if override.Digest.OutputDir != "" {
		base.Digest.OutputDir = override.Digest.OutputDir
	}
	if override.Digest.Always {
		base.Digest.Always = true
	}
	if override.Digest.MaxAttempts > 0 {
		base.Digest.MaxAttempts = override.Digest.MaxAttempts
	}
	if override.Digest.RetryDelaySec > 0 {
		base.Digest.RetryDelaySec = override.Digest.RetryDelaySec
	}

	if override.Scheduler.Enabled {
		base.Scheduler.Enabled = true
	}
	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	return base
}

func floatPtr(v float64) *float64 { return &v }

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{Path: "data/rss_articles.db"},
		Feeds: []FeedConfig{
			{Name: "Hugging Face Blog", URL: "https://huggingface.co/blog/feed.xml"},
		},
		Fetch: FetchConfig{
			DaysLimit:     7,
			TimeoutSec:    30,
			MaxRetries:    3,
			RetryDelaySec: 5,
			Workers:       5,
			MinBodyChars:  200,
		},
		Summarizer: SummarizerConfig{
			InferenceURL:  "http://localhost:8090/summarize",
			MaxLength:     130,
			MinLength:     30,
			MaxInputChars: 4000,
			TimeoutSec:    60,
		},
		Digest: DigestConfig{
			Endpoint:      "https://api.mistral.ai/v1/chat/completions",
			Model:         "mistral-large-latest",
			MaxTokens:     3500,
			Temperature:   floatPtr(0.7),
			WindowDays:    7,
			OutputDir:     "outputs/digests",
			MaxAttempts:   3,
			RetryDelaySec: 5,
		},
		Scheduler: SchedulerConfig{
			CronExpression: "0 6 * * 1",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
