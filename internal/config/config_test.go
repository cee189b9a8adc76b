package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Source.Timeout != 15*time.Second {
		t.Errorf("default timeout = %v, want %v", cfg.Source.Timeout, 15*time.Second)
	}
	if cfg.Cache.BatchSize != 100 {
		t.Errorf("default batch size = %d, want 100", cfg.Cache.BatchSize)
	}
	if cfg.Viewport.BufferRows != 20 {
		t.Errorf("default buffer rows = %d, want 20", cfg.Viewport.BufferRows)
	}
	if cfg.Cache.MaxResidentBatches != 64 {
		t.Errorf("default max resident = %d, want 64", cfg.Cache.MaxResidentBatches)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crawlview.yaml")
	if err := os.WriteFile(cfgPath, []byte(`
source:
  endpoint: http://localhost:5000
  timeout: 30s
cache:
  batch_size: 250
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Endpoint != "http://localhost:5000" {
		t.Errorf("endpoint = %q, want %q", cfg.Source.Endpoint, "http://localhost:5000")
	}
	if cfg.Source.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want %v", cfg.Source.Timeout, 30*time.Second)
	}
	if cfg.Cache.BatchSize != 250 {
		t.Errorf("batch size = %d, want 250", cfg.Cache.BatchSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/crawlview.yaml")
	if err != nil {
		t.Fatalf("Load() should return defaults for missing file, got error: %v", err)
	}
	want := DefaultConfig()
	if *cfg != want {
		t.Errorf("Load(missing) = %+v, want defaults %+v", *cfg, want)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crawlview.yaml")
	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("Load(invalid YAML) should return error")
	}
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crawlview.yaml")
	if err := os.WriteFile(cfgPath, []byte(`
source:
  database: /data/crawl.db
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Database != "/data/crawl.db" {
		t.Errorf("database = %q, want %q", cfg.Source.Database, "/data/crawl.db")
	}
	// Unset fields should retain defaults.
	if cfg.Source.Timeout != 15*time.Second {
		t.Errorf("timeout = %v, want default %v", cfg.Source.Timeout, 15*time.Second)
	}
	if cfg.Cache.BatchSize != 100 {
		t.Errorf("batch size = %d, want default 100", cfg.Cache.BatchSize)
	}
}

func TestLoad_LayeredPriority(t *testing.T) {
	// Setup: user config sets endpoint, project config overrides batch size.
	userDir := t.TempDir()
	projectDir := t.TempDir()

	userCfg := filepath.Join(userDir, "crawlview.yaml")
	if err := os.WriteFile(userCfg, []byte(`
source:
  endpoint: http://localhost:5000
cache:
  batch_size: 50
`), 0o644); err != nil {
		t.Fatal(err)
	}

	projectCfg := filepath.Join(projectDir, "crawlview.yaml")
	if err := os.WriteFile(projectCfg, []byte(`
cache:
  batch_size: 500
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLayered(userCfg, projectCfg)
	if err != nil {
		t.Fatalf("LoadLayered() error = %v", err)
	}
	// Endpoint from user config (project doesn't set it).
	if cfg.Source.Endpoint != "http://localhost:5000" {
		t.Errorf("endpoint = %q, want %q", cfg.Source.Endpoint, "http://localhost:5000")
	}
	// Batch size from project config (overrides user).
	if cfg.Cache.BatchSize != 500 {
		t.Errorf("batch size = %d, want 500", cfg.Cache.BatchSize)
	}
	// Buffer rows retain default when neither layer sets them.
	if cfg.Viewport.BufferRows != 20 {
		t.Errorf("buffer rows = %d, want default 20", cfg.Viewport.BufferRows)
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		envs    map[string]string
		wantErr bool
		check   func(*testing.T, Config)
	}{
		{
			name: "CRAWLVIEW_ENDPOINT overrides endpoint",
			envs: map[string]string{"CRAWLVIEW_ENDPOINT": "http://crawler:5000"},
			check: func(t *testing.T, c Config) {
				if c.Source.Endpoint != "http://crawler:5000" {
					t.Errorf("endpoint = %q, want %q", c.Source.Endpoint, "http://crawler:5000")
				}
			},
		},
		{
			name: "CRAWLVIEW_DATABASE overrides database",
			envs: map[string]string{"CRAWLVIEW_DATABASE": "/data/crawl.db"},
			check: func(t *testing.T, c Config) {
				if c.Source.Database != "/data/crawl.db" {
					t.Errorf("database = %q, want %q", c.Source.Database, "/data/crawl.db")
				}
			},
		},
		{
			name: "CRAWLVIEW_CRAWL_ID overrides crawl id",
			envs: map[string]string{"CRAWLVIEW_CRAWL_ID": "42"},
			check: func(t *testing.T, c Config) {
				if c.Source.CrawlID != 42 {
					t.Errorf("crawl id = %d, want 42", c.Source.CrawlID)
				}
			},
		},
		{
			name: "CRAWLVIEW_TIMEOUT overrides timeout",
			envs: map[string]string{"CRAWLVIEW_TIMEOUT": "30s"},
			check: func(t *testing.T, c Config) {
				if c.Source.Timeout != 30*time.Second {
					t.Errorf("timeout = %v, want %v", c.Source.Timeout, 30*time.Second)
				}
			},
		},
		{
			name:    "invalid CRAWLVIEW_TIMEOUT returns error",
			envs:    map[string]string{"CRAWLVIEW_TIMEOUT": "notaduration"},
			wantErr: true,
		},
		{
			name:    "invalid CRAWLVIEW_CRAWL_ID returns error",
			envs:    map[string]string{"CRAWLVIEW_CRAWL_ID": "latest"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envs {
				t.Setenv(k, v)
			}
			cfg := DefaultConfig()
			err := cfg.ApplyEnv()

			if tt.wantErr {
				if err == nil {
					t.Fatal("ApplyEnv() should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnv() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_UnknownField(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crawlview.yaml")
	if err := os.WriteFile(cfgPath, []byte(`
source:
  endpont: http://localhost:5000
`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("Load() should return error for unknown field 'endpont'")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Source.Timeout = -1 * time.Second },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Source.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "zero row height",
			modify:  func(c *Config) { c.Viewport.RowHeight = 0 },
			wantErr: true,
		},
		{
			name:    "negative buffer rows",
			modify:  func(c *Config) { c.Viewport.BufferRows = -1 },
			wantErr: true,
		},
		{
			name:    "zero batch size",
			modify:  func(c *Config) { c.Cache.BatchSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero max resident batches",
			modify:  func(c *Config) { c.Cache.MaxResidentBatches = 0 },
			wantErr: true,
		},
		{
			name:    "negative evict margin",
			modify:  func(c *Config) { c.Cache.EvictMarginBatches = -1 },
			wantErr: true,
		},
		{
			name:    "negative crawl id",
			modify:  func(c *Config) { c.Source.CrawlID = -1 },
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_CommentOnlyFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crawlview.yaml")
	if err := os.WriteFile(cfgPath, []byte("# just a comment\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load(comment-only) error = %v", err)
	}
	want := DefaultConfig()
	if *cfg != want {
		t.Errorf("Load(comment-only) = %+v, want defaults %+v", *cfg, want)
	}
}

func TestLoadLayered_AllMissing(t *testing.T) {
	cfg, err := LoadLayered("/no/user.yaml", "/no/project.yaml")
	if err != nil {
		t.Fatalf("LoadLayered(all missing) error = %v", err)
	}
	want := DefaultConfig()
	if *cfg != want {
		t.Errorf("got %+v, want defaults %+v", *cfg, want)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crawlview.yaml")
	if err := os.WriteFile(cfgPath, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load(empty) error = %v", err)
	}
	want := DefaultConfig()
	if *cfg != want {
		t.Errorf("Load(empty) = %+v, want defaults %+v", *cfg, want)
	}
}
