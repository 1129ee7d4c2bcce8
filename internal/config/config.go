package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Governor  GovernorConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Resume    ResumeConfig
	Apply     ApplyConfig
	Export    ExportConfig
	Notify    NotifyConfig
	Snapshots SnapshotConfig
	Schedule  ScheduleConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// StoreConfig holds PostgreSQL configuration.
type StoreConfig struct {
	URL         string        `envconfig:"DATABASE_URL" default:"postgres://localhost:5432/jobpilot?sslmode=disable"`
	MaxConns    int32         `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	ConnTimeout time.Duration `envconfig:"DATABASE_CONN_TIMEOUT" default:"10s"`
}

// RedisConfig holds evaluation-cache configuration. Leave Addr empty to use
// the in-process cache instead of Redis.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR" default:""`
	Password string        `envconfig:"REDIS_PASSWORD" default:""`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_JOB_TTL" default:"24h"`
}

// LLMConfig holds the completion-endpoint configuration.
type LLMConfig struct {
	BaseURL       string        `envconfig:"LLM_BASE_URL" default:"https://api.openai.com/v1"`
	APIKey        string        `envconfig:"LLM_API_KEY" default:""`
	Model         string        `envconfig:"LLM_MODEL" default:"gpt-3.5-turbo"`
	FallbackTiers []string      `envconfig:"LLM_FALLBACK_TIERS" default:"gpt-3.5-turbo,gpt-3.5-turbo-16k,gpt-4-turbo"`
	MaxTokens     int           `envconfig:"LLM_MAX_TOKENS" default:"150"`
	Temperature   float64       `envconfig:"LLM_TEMPERATURE" default:"0.3"`
	Timeout       time.Duration `envconfig:"LLM_TIMEOUT" default:"30s"`
}

// GovernorConfig holds the cost/rate tracker ceilings.
type GovernorConfig struct {
	RequestsPerMinute int           `envconfig:"GOV_REQUESTS_PER_MINUTE" default:"50"`
	RequestsPerHour   int           `envconfig:"GOV_REQUESTS_PER_HOUR" default:"1000"`
	DailyCostLimit    float64       `envconfig:"GOV_DAILY_COST_LIMIT" default:"10.0"`
	MaxConcurrent     int           `envconfig:"GOV_MAX_CONCURRENT" default:"3"`
	MinInterval       time.Duration `envconfig:"GOV_MIN_INTERVAL" default:"1s"`
	Retention         time.Duration `envconfig:"GOV_RETENTION" default:"168h"`
	HistoryPath       string        `envconfig:"GOV_HISTORY_PATH" default:"data/request_history.json"`
}

// BrowserConfig holds headless-browser lifecycle settings.
type BrowserConfig struct {
	Headless        bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	MaxPages        int           `envconfig:"BROWSER_MAX_PAGES" default:"3"`
	MaxSessionAge   time.Duration `envconfig:"BROWSER_MAX_SESSION_AGE" default:"30m"`
	MaxOperations   int           `envconfig:"BROWSER_MAX_OPERATIONS" default:"100"`
	MaxErrors       int           `envconfig:"BROWSER_MAX_ERRORS" default:"5"`
	NavTimeout      time.Duration `envconfig:"BROWSER_NAV_TIMEOUT" default:"60s"`
	MaxCaptchaSkips int           `envconfig:"BROWSER_MAX_CAPTCHA_ESCALATIONS" default:"5"`
}

// ScraperConfig holds search settings shared by all sources.
type ScraperConfig struct {
	Sources       []string `envconfig:"SCRAPER_SOURCES" default:"remoteok"`
	Keywords      []string `envconfig:"SEARCH_KEYWORDS" default:"software engineer,developer,backend"`
	Location      string   `envconfig:"SEARCH_LOCATION" default:"Remote"`
	MaxJobsPerRun int      `envconfig:"MAX_JOBS_PER_RUN" default:"20"`
	ProfilePath   string   `envconfig:"SEARCH_PROFILE" default:""`
	SelectorsPath string   `envconfig:"SELECTORS_PATH" default:""`
}

// ResumeConfig holds the candidate resume settings.
type ResumeConfig struct {
	Path string `envconfig:"RESUME_PATH" default:"resume.txt"`
}

// ApplyConfig holds application-submission settings.
type ApplyConfig struct {
	Enabled        bool          `envconfig:"APPLY_ENABLED" default:"false"`
	MaxPerRun      int           `envconfig:"MAX_APPLICATIONS_PER_RUN" default:"10"`
	Delay          time.Duration `envconfig:"APPLICATION_DELAY" default:"30s"`
	ScoreThreshold float64       `envconfig:"APPLY_SCORE_THRESHOLD" default:"7"`
	Name           string        `envconfig:"PERSONAL_NAME" default:""`
	Email          string        `envconfig:"PERSONAL_EMAIL" default:""`
	Phone          string        `envconfig:"PERSONAL_PHONE" default:""`
	LinkedIn       string        `envconfig:"PERSONAL_LINKEDIN" default:""`
}

// ExportConfig holds append-row sink settings.
type ExportConfig struct {
	CSVPath    string `envconfig:"EXPORT_CSV_PATH" default:""`
	WebhookURL string `envconfig:"EXPORT_WEBHOOK_URL" default:""`
}

// NotifyConfig holds Telegram notifier settings. Empty token disables it.
type NotifyConfig struct {
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN" default:""`
	TelegramChatID int64  `envconfig:"TELEGRAM_CHAT_ID" default:"0"`
}

// SnapshotConfig holds page-snapshot archive settings.
type SnapshotConfig struct {
	Dir       string        `envconfig:"SNAPSHOT_DIR" default:"data/snapshots"`
	Retention time.Duration `envconfig:"SNAPSHOT_RETENTION" default:"168h"`
}

// ScheduleConfig holds the optional daily pipeline trigger.
type ScheduleConfig struct {
	Enabled bool   `envconfig:"SCHEDULE_ENABLED" default:"false"`
	At      string `envconfig:"SCHEDULE_TIME" default:"10:00"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Store: StoreConfig{
			URL:         "postgres://localhost:5432/jobpilot?sslmode=disable",
			MaxConns:    10,
			ConnTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
		LLM: LLMConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-3.5-turbo",
			FallbackTiers: []string{"gpt-3.5-turbo", "gpt-3.5-turbo-16k", "gpt-4-turbo"},
			MaxTokens:     150,
			Temperature:   0.3,
			Timeout:       30 * time.Second,
		},
		Governor: GovernorConfig{
			RequestsPerMinute: 50,
			RequestsPerHour:   1000,
			DailyCostLimit:    10.0,
			MaxConcurrent:     3,
			MinInterval:       time.Second,
			Retention:         168 * time.Hour,
			HistoryPath:       "data/request_history.json",
		},
		Browser: BrowserConfig{
			Headless:        true,
			MaxPages:        3,
			MaxSessionAge:   30 * time.Minute,
			MaxOperations:   100,
			MaxErrors:       5,
			NavTimeout:      60 * time.Second,
			MaxCaptchaSkips: 5,
		},
		Scraper: ScraperConfig{
			Sources:       []string{"remoteok"},
			Keywords:      []string{"software engineer", "developer", "backend"},
			Location:      "Remote",
			MaxJobsPerRun: 20,
		},
		Resume: ResumeConfig{
			Path: "resume.txt",
		},
		Apply: ApplyConfig{
			MaxPerRun:      10,
			Delay:          30 * time.Second,
			ScoreThreshold: 7,
		},
		Snapshots: SnapshotConfig{
			Dir:       "data/snapshots",
			Retention: 168 * time.Hour,
		},
		Schedule: ScheduleConfig{
			At: "10:00",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Governor.DailyCostLimit < 0 {
		return fmt.Errorf("config: daily cost limit must be >= 0, got %f", c.Governor.DailyCostLimit)
	}
	if c.Governor.MaxConcurrent <= 0 {
		return fmt.Errorf("config: max concurrent requests must be > 0")
	}
	if c.Browser.MaxPages <= 0 {
		return fmt.Errorf("config: browser max pages must be > 0")
	}
	if c.Apply.ScoreThreshold < 1 || c.Apply.ScoreThreshold > 10 {
		return fmt.Errorf("config: apply score threshold must be within [1,10]")
	}
	if c.Schedule.Enabled {
		if _, err := ParseDailyTime(c.Schedule.At); err != nil {
			return fmt.Errorf("config: invalid schedule time %q: %w", c.Schedule.At, err)
		}
	}
	return nil
}

// ParseDailyTime parses an "HH:MM" wall-clock trigger time.
func ParseDailyTime(s string) (time.Time, error) {
	return time.Parse("15:04", strings.TrimSpace(s))
}

// Profile is an optional YAML search profile overriding the env-derived
// scraper settings, so keyword lists can be versioned alongside the resume.
type Profile struct {
	Keywords  []string `yaml:"keywords"`
	Location  string   `yaml:"location"`
	Sources   []string `yaml:"sources"`
	MaxJobs   int      `yaml:"max_jobs"`
	Threshold float64  `yaml:"score_threshold"`
}

// LoadProfile reads a YAML search profile and merges it into cfg. Missing
// fields keep their current values.
func (c *Config) LoadProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read search profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse search profile: %w", err)
	}

	if len(p.Keywords) > 0 {
		c.Scraper.Keywords = p.Keywords
	}
	if p.Location != "" {
		c.Scraper.Location = p.Location
	}
	if len(p.Sources) > 0 {
		c.Scraper.Sources = p.Sources
	}
	if p.MaxJobs > 0 {
		c.Scraper.MaxJobsPerRun = p.MaxJobs
	}
	if p.Threshold >= 1 && p.Threshold <= 10 {
		c.Apply.ScoreThreshold = p.Threshold
	}
	return nil
}
