package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds the settings for the API server and the CLI.
// Precedence, lowest first: Default, YAML file, environment (.env included), flags.
type Config struct {
	// HTTP server
	Port          string `yaml:"port"`
	AllowedOrigin string `yaml:"allowed_origin"`
	LogLevel      string `yaml:"log_level"`

	// Completion provider
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	Model             string        `yaml:"model"`
	CompletionTimeout time.Duration `yaml:"completion_timeout"`

	// Batch assignment
	BatchLimit         int           `yaml:"batch_limit"`
	BatchDelay         time.Duration `yaml:"batch_delay"`
	BatchRatePerMinute int           `yaml:"batch_rate_per_minute"`
	AutoAssignSchedule string        `yaml:"auto_assign_schedule"`

	// Uploads
	MaxUploadBytes     int64  `yaml:"max_upload_bytes"`
	ArchiveBucket      string `yaml:"archive_bucket"`
	GCSCredentialsFile string `yaml:"gcs_credentials_file"`

	CSV CSVConfig `yaml:"csv"`
}

// CSVConfig describes the bank export layout.
type CSVConfig struct {
	HeaderAnchor string `yaml:"header_anchor"`
	Delimiter    string `yaml:"delimiter"`
	HeaderMarker string `yaml:"header_marker"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Port:              "8080",
		AllowedOrigin:     "*",
		LogLevel:          "info",
		Model:             "gemini-2.5-flash",
		CompletionTimeout: 30 * time.Second,
		BatchLimit:        10,
		BatchDelay:        100 * time.Millisecond,
		MaxUploadBytes:    10 << 20,
		CSV: CSVConfig{
			HeaderAnchor: "Data operacji",
			Delimiter:    ";",
			HeaderMarker: "#",
		},
	}
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment. A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.AllowedOrigin = getEnv("ALLOWED_ORIGIN", c.AllowedOrigin)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", c.GeminiAPIKey))
	c.Model = getEnv("GEMINI_MODEL", c.Model)
	c.CompletionTimeout = getEnvDuration("COMPLETION_TIMEOUT", c.CompletionTimeout)

	c.BatchLimit = getEnvInt("BATCH_LIMIT", c.BatchLimit)
	c.BatchDelay = getEnvDuration("BATCH_DELAY", c.BatchDelay)
	c.BatchRatePerMinute = getEnvInt("BATCH_RATE_PER_MINUTE", c.BatchRatePerMinute)
	c.AutoAssignSchedule = getEnv("AUTO_ASSIGN_SCHEDULE", c.AutoAssignSchedule)

	c.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.ArchiveBucket = getEnv("GCS_BUCKET", c.ArchiveBucket)
	c.GCSCredentialsFile = getEnv("GCS_CREDENTIALS_FILE", c.GCSCredentialsFile)

	c.CSV.HeaderAnchor = getEnv("CSV_HEADER_ANCHOR", c.CSV.HeaderAnchor)
	c.CSV.Delimiter = getEnv("CSV_DELIMITER", c.CSV.Delimiter)
	c.CSV.HeaderMarker = getEnv("CSV_HEADER_MARKER", c.CSV.HeaderMarker)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.CompletionTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid completion timeout %v: must be at least 1 second", c.CompletionTimeout))
	}

	if c.BatchLimit < 1 || c.BatchLimit > 100 {
		errs = append(errs, fmt.Sprintf("invalid batch limit %d: must be between 1 and 100", c.BatchLimit))
	}
	if c.BatchDelay < 0 {
		errs = append(errs, fmt.Sprintf("invalid batch delay %v: must not be negative", c.BatchDelay))
	}
	if c.BatchRatePerMinute < 0 {
		errs = append(errs, fmt.Sprintf("invalid batch rate %d: must not be negative", c.BatchRatePerMinute))
	}
	if c.AutoAssignSchedule != "" {
		if _, err := cron.ParseStandard(c.AutoAssignSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("invalid auto-assign schedule '%s': %v", c.AutoAssignSchedule, err))
		}
	}

	if c.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}
	if c.GCSCredentialsFile != "" {
		if _, err := os.Stat(c.GCSCredentialsFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("GCS credentials file does not exist: %s", c.GCSCredentialsFile))
		}
	}

	if strings.TrimSpace(c.CSV.HeaderAnchor) == "" {
		errs = append(errs, "CSV header anchor cannot be empty")
	}
	if utf8.RuneCountInString(c.CSV.Delimiter) != 1 {
		errs = append(errs, fmt.Sprintf("invalid CSV delimiter '%s': must be a single character", c.CSV.Delimiter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// BatchInterval is the longest wait between two batch calls: the fixed delay,
// or the token interval when a per-minute rate is set.
func (c *Config) BatchInterval() time.Duration {
	if c.BatchRatePerMinute > 0 {
		if every := time.Minute / time.Duration(c.BatchRatePerMinute); every > c.BatchDelay {
			return every
		}
	}
	return c.BatchDelay
}

// DelimiterRune returns the CSV delimiter as a rune.
func (c CSVConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
