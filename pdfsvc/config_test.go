package pdfsvc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	for _, k := range []string{"PAGEKIT_LISTEN", "PAGEKIT_MAX_FILE_MB", "PAGEKIT_LOG_LEVEL", "PAGEKIT_SCRATCH_DIR", "PAGEKIT_JOURNAL_DB"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":8000" || cfg.MaxFileBytes() != 10<<20 || cfg.MaxUploadBytes() != 500<<20 || cfg.SpoolThresholdBytes() != 1<<20 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "pagekit.yaml")
	os.WriteFile(path, []byte("listen: \":9000\"\nmax_file_mb: 20\nmax_upload_mb: 100\njournal_db: /tmp/j.db\n"), 0o644)
	t.Setenv("PAGEKIT_LISTEN", ":9100")
	t.Setenv("PAGEKIT_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9100" || cfg.MaxFileMB != 20 || cfg.MaxUploadMB != 100 || cfg.LogLevel != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	// Blank variables leave the file value alone.
	if cfg.JournalDB != "/tmp/j.db" {
		t.Errorf("journal_db = %q, want the YAML value", cfg.JournalDB)
	}
	if cfg.SpoolThresholdKB != 1024 {
		t.Errorf("unset fields must keep defaults: %+v", cfg)
	}
}

func TestLoadConfig_JournalOff(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pagekit.yaml")
	os.WriteFile(path, []byte("journal_db: /tmp/j.db\n"), 0o644)
	t.Setenv("PAGEKIT_JOURNAL_DB", "off")

	cfg, err := LoadConfig(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.JournalDB != "" {
		t.Errorf("journal_db = %q, want disabled", cfg.JournalDB)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("PAGEKIT_SCRATCH_DIR")
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	os.WriteFile(envFile, []byte("PAGEKIT_SCRATCH_DIR="+dir+"\n"), 0o644)

	cfg, err := LoadConfig("", envFile)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ScratchDir != dir {
		t.Errorf("scratch_dir = %q, want %q", cfg.ScratchDir, dir)
	}

	if _, err := LoadConfig("", filepath.Join(dir, "absent.env")); err != nil {
		t.Errorf("missing env file must be ignored: %v", err)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	clearEnv(t)
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Error("expected read error")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("listen: [unclosed\n"), 0o644)
	if _, err := LoadConfig(bad, ""); err == nil {
		t.Error("expected parse error")
	}

	t.Setenv("PAGEKIT_MAX_FILE_MB", "ten")
	if _, err := LoadConfig("", ""); err == nil || !strings.Contains(err.Error(), "PAGEKIT_MAX_FILE_MB") {
		t.Errorf("err = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"zero file ceiling", func(c *Config) { c.MaxFileMB = 0 }, "max_file_mb"},
		{"upload below file", func(c *Config) { c.MaxUploadMB = 5 }, "max_upload_mb"},
		{"zero spool", func(c *Config) { c.SpoolThresholdKB = 0 }, "spool_threshold_kb"},
		{"no scratch dir", func(c *Config) { c.ScratchDir = "" }, "scratch_dir"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want mention of %s", tt.name, err, tt.want)
		}
	}
}

func TestEffectiveLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.EffectiveLogLevel() != "info" {
		t.Error(cfg.EffectiveLogLevel())
	}
	cfg.Debug = true
	if cfg.EffectiveLogLevel() != "debug" {
		t.Error(cfg.EffectiveLogLevel())
	}
}
