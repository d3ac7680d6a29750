package pdfsvc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/pagekit/observability"
)

// Config holds the full pagekit service configuration.
type Config struct {
	Listen           string `yaml:"listen"`
	AppName          string `yaml:"app_name"`
	Debug            bool   `yaml:"debug"`
	MaxFileMB        int    `yaml:"max_file_mb"`
	MaxUploadMB      int    `yaml:"max_upload_mb"`
	SpoolThresholdKB int    `yaml:"spool_threshold_kb"`
	ScratchDir       string `yaml:"scratch_dir"`
	JournalDB        string `yaml:"journal_db"` // empty disables the journal
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"` // json | text
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:           ":8000",
		AppName:          "pagekit",
		MaxFileMB:        10,
		MaxUploadMB:      500,
		SpoolThresholdKB: 1024,
		ScratchDir:       os.TempDir(),
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// LoadConfig builds the configuration: defaults, then the YAML file at path
// when path is non-empty, then a .env file when envFile exists, then
// PAGEKIT_* environment overrides. The result is validated.
func LoadConfig(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if envFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// JournalOff as PAGEKIT_JOURNAL_DB disables the journal whatever the file says.
const JournalOff = "off"

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PAGEKIT_LISTEN"); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup("PAGEKIT_MAX_FILE_MB"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PAGEKIT_MAX_FILE_MB: %w", err)
		}
		c.MaxFileMB = n
	}
	if v, ok := lookup("PAGEKIT_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("PAGEKIT_SCRATCH_DIR"); ok && v != "" {
		c.ScratchDir = v
	}
	if v, ok := lookup("PAGEKIT_JOURNAL_DB"); ok && v != "" {
		c.JournalDB = v
		if strings.EqualFold(v, JournalOff) {
			c.JournalDB = ""
		}
	}
	return nil
}

// Validate checks that values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if c.MaxUploadMB < c.MaxFileMB {
		return fmt.Errorf("max_upload_mb (%d) must be >= max_file_mb (%d)", c.MaxUploadMB, c.MaxFileMB)
	}
	if c.SpoolThresholdKB <= 0 {
		return fmt.Errorf("spool_threshold_kb must be > 0")
	}
	if c.ScratchDir == "" {
		return fmt.Errorf("scratch_dir is required")
	}
	if _, err := observability.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log_format: unsupported %q (use json or text)", c.LogFormat)
	}
	return nil
}

// EffectiveLogLevel returns "debug" when Debug is set, LogLevel otherwise.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

// MaxFileBytes returns the per-document ceiling in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }

// MaxUploadBytes returns the request body ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) * 1024 * 1024 }

// SpoolThresholdBytes returns the spool rollover threshold in bytes.
func (c *Config) SpoolThresholdBytes() int64 { return int64(c.SpoolThresholdKB) * 1024 }
