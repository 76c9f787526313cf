package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default depth is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.Depth != 1 {
			t.Errorf("expected Depth to be 1, got %d", cfg.Depth)
		}
	})

	t.Run("default pool sizes are 10", func(t *testing.T) {
		t.Parallel()
		if cfg.Downloaders != 10 || cfg.Extractors != 10 || cfg.PerHost != 10 {
			t.Errorf("expected 10/10/10, got %d/%d/%d", cfg.Downloaders, cfg.Extractors, cfg.PerHost)
		}
	})

	t.Run("default grace period is 60 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.GracePeriod != 60*time.Second {
			t.Errorf("expected GracePeriod to be 60s, got %v", cfg.GracePeriod)
		}
	})

	t.Run("default registry is unbounded", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxHosts != 0 {
			t.Errorf("expected MaxHosts to be 0, got %d", cfg.MaxHosts)
		}
	})

	t.Run("history is saved to the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveToDB || cfg.DBDir != XDGDataDir() {
			t.Errorf("expected SaveToDB in %q, got %v in %q", XDGDataDir(), cfg.SaveToDB, cfg.DBDir)
		}
	})

	t.Run("file is never nil", func(t *testing.T) {
		t.Parallel()
		if cfg.File == nil || cfg.File.Hosts == nil {
			t.Error("expected empty File with initialized Hosts")
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Seeds = []string{"https://example.com/"}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid config", modify: func(*Config) {}},
		{name: "depth zero is valid", modify: func(c *Config) { c.Depth = 0 }},
		{name: "no seeds", modify: func(c *Config) { c.Seeds = nil }, wantErr: ErrNoSeed},
		{name: "negative depth", modify: func(c *Config) { c.Depth = -1 }, wantErr: ErrInvalidDepth},
		{name: "zero downloaders", modify: func(c *Config) { c.Downloaders = 0 }, wantErr: ErrInvalidDownloaders},
		{name: "zero extractors", modify: func(c *Config) { c.Extractors = 0 }, wantErr: ErrInvalidExtractors},
		{name: "zero per host", modify: func(c *Config) { c.PerHost = 0 }, wantErr: ErrInvalidPerHost},
		{name: "negative max hosts", modify: func(c *Config) { c.MaxHosts = -1 }, wantErr: ErrInvalidMaxHosts},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative grace period", modify: func(c *Config) { c.GracePeriod = -time.Second }, wantErr: ErrInvalidGracePeriod},
		{name: "zero batch size", modify: func(c *Config) { c.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{name: "json and markdown", modify: func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, wantErr: ErrConflictingReportFormats},
		{name: "zero body size", modify: func(c *Config) { c.MaxBodySize = 0 }, wantErr: ErrInvalidMaxBodySize},
		{name: "json and xlsx", modify: func(c *Config) { c.JSONReport, c.XLSXReport, c.ReportFile = true, true, "out.xlsx" }, wantErr: ErrConflictingReportFormats},
		{name: "xlsx without output", modify: func(c *Config) { c.XLSXReport = true }, wantErr: ErrXLSXNeedsOutput},
		{name: "xlsx with output", modify: func(c *Config) { c.XLSXReport, c.ReportFile = true, "out.xlsx" }},
		{name: "negative rate limit", modify: func(c *Config) { c.RateLimit = -1 }, wantErr: ErrInvalidRateLimit},
		{name: "fractional rate limit", modify: func(c *Config) { c.RateLimit = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestConfigApplyFile tests merging file defaults into the config.
func TestConfigApplyFile(t *testing.T) {
	t.Parallel()

	t.Run("non-zero defaults override built-ins", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyFile(&File{Defaults: Defaults{
			Depth:        3,
			Downloaders:  4,
			Extractors:   5,
			PerHost:      2,
			MaxHosts:     100,
			AllowedHosts: []string{"example.com"},
			Timeout:      5 * time.Second,
			UserAgent:    "custom/1.0",
			MaxBodySize:  1024,
			Proxy:        "127.0.0.1:1080",
			RateLimit:    2.5,
		}})

		if cfg.Depth != 3 || cfg.Downloaders != 4 || cfg.Extractors != 5 || cfg.PerHost != 2 {
			t.Errorf("unexpected sizes %+v", cfg)
		}
		if cfg.MaxHosts != 100 || cfg.Timeout != 5*time.Second || cfg.MaxBodySize != 1024 {
			t.Errorf("unexpected limits %+v", cfg)
		}
		if cfg.UserAgent != "custom/1.0" || cfg.ProxyAddress != "127.0.0.1:1080" || cfg.RateLimit != 2.5 {
			t.Errorf("unexpected request settings %+v", cfg)
		}
		if len(cfg.AllowedHosts) != 1 || cfg.AllowedHosts[0] != "example.com" {
			t.Errorf("unexpected allowed hosts %v", cfg.AllowedHosts)
		}
	})

	t.Run("zero defaults keep built-ins", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		f := NewFile()
		cfg.ApplyFile(f)

		if cfg.Depth != DefaultDepth || cfg.UserAgent != DefaultUserAgent {
			t.Errorf("expected built-in defaults, got %+v", cfg)
		}
		if cfg.File != f {
			t.Error("expected file to be kept")
		}
	})

	t.Run("nil file is ignored", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		before := cfg.File
		cfg.ApplyFile(nil)
		if cfg.File != before {
			t.Error("expected File to be unchanged")
		}
	})
}

// TestFileHostConfig tests host lookup.
func TestFileHostConfig(t *testing.T) {
	t.Parallel()

	f := &File{Hosts: map[string]HostConfig{
		"Example.com":          {Cookie: "a=1"},
		"https://api.test:443": {Headers: map[string]string{"Authorization": "Bearer x"}},
		"empty.test":           {},
	}}

	tests := []struct {
		name   string
		host   string
		want   bool
		cookie string
	}{
		{name: "case insensitive", host: "example.COM", want: true, cookie: "a=1"},
		{name: "with port", host: "example.com:8080", want: true, cookie: "a=1"},
		{name: "configured as url", host: "api.test", want: true},
		{name: "unknown", host: "other.test", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hc, ok := f.HostConfig(tt.host)
			if ok != tt.want {
				t.Fatalf("HostConfig(%q) found = %v, want %v", tt.host, ok, tt.want)
			}
			if hc.Cookie != tt.cookie {
				t.Errorf("expected cookie %q, got %q", tt.cookie, hc.Cookie)
			}
		})
	}

	configs := f.HostConfigs()
	if len(configs) != 2 {
		t.Fatalf("expected 2 host configs, got %v", configs)
	}
	if configs["api.test"].Headers["Authorization"] != "Bearer x" {
		t.Errorf("expected normalised key api.test, got %v", configs)
	}
}

// TestNormalizeHost tests host normalisation.
func TestNormalizeHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{" EXAMPLE.com ", "example.com"},
		{"example.com:8080", "example.com"},
		{"http://example.com/path?q=1", "example.com"},
		{"[::1]:80", "::1"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := normalizeHost(tt.in); got != tt.want {
				t.Errorf("normalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.webcrawler")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".webcrawler")
		content := `defaults:
  depth: 3
  downloaders: 20
  perHost: 2
  timeout: 15s
  allowedHosts:
    - example.com
hosts:
  example.com:
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.Depth != 3 || cfg.Defaults.Downloaders != 20 || cfg.Defaults.PerHost != 2 {
			t.Errorf("unexpected defaults %+v", cfg.Defaults)
		}
		if cfg.Defaults.Timeout != 15*time.Second {
			t.Errorf("expected timeout 15s, got %v", cfg.Defaults.Timeout)
		}
		host, ok := cfg.Hosts["example.com"]
		if !ok {
			t.Fatal("expected example.com in hosts")
		}
		if host.Cookie != "session=xyz" || host.Headers["Authorization"] != "Bearer token" {
			t.Errorf("unexpected host config %+v", host)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".webcrawler")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Hosts map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".webcrawler")
		if err := os.WriteFile(configPath, []byte("defaults:\n  depth: 2\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Hosts == nil {
			t.Error("expected Hosts map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"data": XDGDataDir(), "config": XDGConfigDir()} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if dir == "" {
				t.Errorf("expected non-empty XDG %s dir", name)
			}
			if filepath.Base(dir) != AppName {
				t.Errorf("expected dir to end with %q, got %q", AppName, dir)
			}
		})
	}
}
