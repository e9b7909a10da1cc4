package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	telegramTokenEnv  = "NEWSHUNTER_TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "NEWSHUNTER_TELEGRAM_CHAT_ID"
)

// Source discovery modes.
const (
	ModeFeed   = "feed"   // RSS/Atom or sitemap XML endpoint
	ModeScrape = "scrape" // homepage link scraping fallback
)

// ErrNoSources is returned by ValidateRunnable when the config enables
// no sources. Fatal for starting the pipeline; store maintenance works
// without any.
var ErrNoSources = fmt.Errorf("config: no enabled sources")

// Config holds every setting the pipeline needs.
type Config struct {
	System    SystemConfig           `yaml:"system"`
	Sources   []SourceConfig         `yaml:"sources"`
	Selectors map[string]SelectorSet `yaml:"selectors"`
	Worker    WorkerConfig           `yaml:"worker"`
	Alerting  AlertingConfig         `yaml:"alerting"`
	Storage   StorageConfig          `yaml:"storage"`
	Hunter    HunterConfig           `yaml:"hunter"`
	Headers   map[string]string      `yaml:"headers"`
}

// SystemConfig carries process-wide settings.
type SystemConfig struct {
	LogLevel string `yaml:"logLevel"`
}

// SourceConfig describes a single news source. Immutable for the
// duration of a cycle; replaced wholesale on reload.
type SourceConfig struct {
	Name      string         `yaml:"name"`
	URL       string         `yaml:"url"`
	Mode      string         `yaml:"mode"`
	SiteKey   string         `yaml:"siteKey"`
	Frequency int            `yaml:"frequency"` // seconds between scans
	Enabled   bool           `yaml:"enabled"`
	DeepScan  DeepScanConfig `yaml:"deepScan"`
}

// DeepScanConfig describes a source's paginated listing for historical
// backfill. A source without a listUrl cannot be backfilled.
type DeepScanConfig struct {
	ListURL      string `yaml:"listUrl"`
	PageParam    string `yaml:"pageParam"`
	ItemSelector string `yaml:"itemSelector"`
	DateSelector string `yaml:"dateSelector"`
	DateFormat   string `yaml:"dateFormat"`
	MaxPages     int    `yaml:"maxPages"`
}

// SelectorSet holds the CSS selectors used to extract fields for one site.
type SelectorSet struct {
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
	Content string `yaml:"content"`
	Author  string `yaml:"author"`
	Time    string `yaml:"time"`
}

// WorkerConfig tunes the fetch side: concurrency, fail-fast timeouts
// and the retry bound.
type WorkerConfig struct {
	Count          int `yaml:"count"`
	FetchLimit     int `yaml:"fetchLimit"` // concurrent fetches per capture batch
	TimeoutSec     int `yaml:"timeout"`
	ConnTimeoutSec int `yaml:"connectTimeout"`
	MaxRetries     int `yaml:"maxRetries"`
}

// Timeout is the total per-request deadline.
func (w WorkerConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSec) * time.Second
}

// ConnTimeout bounds connection establishment.
func (w WorkerConfig) ConnTimeout() time.Duration {
	return time.Duration(w.ConnTimeoutSec) * time.Second
}

// DiscoveryTimeout is the per-request deadline for feed and sitemap
// fetches. Those documents run larger than article pages, so discovery
// gets extra headroom over the article timeout.
func (w WorkerConfig) DiscoveryTimeout() time.Duration {
	return w.Timeout() + 5*time.Second
}

// TelegramConfig wires the alert channel.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// AlertingConfig controls when errors escalate to an outbound alert.
type AlertingConfig struct {
	ErrorThreshold int            `yaml:"errorThreshold"`
	CooldownSec    int            `yaml:"cooldown"`
	Telegram       TelegramConfig `yaml:"telegram"`
}

// Cooldown is the minimum gap between alerts for one source.
func (a AlertingConfig) Cooldown() time.Duration {
	return time.Duration(a.CooldownSec) * time.Second
}

// StorageConfig locates the SQLite store and image directory.
type StorageConfig struct {
	Path       string `yaml:"path"`
	DBName     string `yaml:"dbName"`
	SaveImages bool   `yaml:"saveImages"`
}

// DBPath is the full path of the store file.
func (s StorageConfig) DBPath() string {
	return filepath.Join(s.Path, s.DBName)
}

// ImagesPath is the root directory for downloaded article images.
func (s StorageConfig) ImagesPath() string {
	return filepath.Join(s.Path, "images")
}

// IndexPath is the directory of the full-text index.
func (s StorageConfig) IndexPath() string {
	return filepath.Join(s.Path, "articles.bleve")
}

// HunterConfig drives the orchestrator loop.
type HunterConfig struct {
	PollIntervalSec int           `yaml:"pollInterval"`
	Cleanup         CleanupConfig `yaml:"cleanup"`
}

// PollInterval is the base sleep between cycles, before jitter.
func (h HunterConfig) PollInterval() time.Duration {
	return time.Duration(h.PollIntervalSec) * time.Second
}

// CleanupConfig controls the startup pruning pass.
type CleanupConfig struct {
	RunOnStart    bool `yaml:"runOnStart"`
	RetentionDays int  `yaml:"retentionDays"`
}

// EnabledSources filters the source list down to the active ones.
func (c Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// SelectorsFor resolves the selector set for a site key, falling back to
// generic selectors when the key is unknown.
func (c Config) SelectorsFor(siteKey string) SelectorSet {
	if set, ok := c.Selectors[siteKey]; ok {
		return set
	}
	return defaultSelectors()
}

// Load reads and validates YAML configuration from path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.fillGaps()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects structurally broken configurations. It accepts a
// config with zero enabled sources so that maintenance commands can run
// against the store; ValidateRunnable adds that gate for the pipeline.
func (c Config) Validate() error {
	for _, s := range c.EnabledSources() {
		if s.Name == "" {
			return fmt.Errorf("config: source with empty name")
		}
		if s.URL == "" {
			return fmt.Errorf("config: source %s has no url", s.Name)
		}
		if s.Mode != ModeFeed && s.Mode != ModeScrape {
			return fmt.Errorf("config: source %s has unknown mode %q", s.Name, s.Mode)
		}
	}
	return nil
}

// ValidateRunnable reports whether the config can drive a capture run.
func (c Config) ValidateRunnable() error {
	if len(c.EnabledSources()) == 0 {
		return ErrNoSources
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Alerting.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Alerting.Telegram.ChatID = v
	}
}

// fillGaps restores defaults for fields yaml left zeroed.
func (c *Config) fillGaps() {
	d := Default()
	if c.System.LogLevel == "" {
		c.System.LogLevel = d.System.LogLevel
	}
	if c.Worker.Count <= 0 {
		c.Worker.Count = d.Worker.Count
	}
	if c.Worker.FetchLimit <= 0 {
		c.Worker.FetchLimit = d.Worker.FetchLimit
	}
	if c.Worker.TimeoutSec <= 0 {
		c.Worker.TimeoutSec = d.Worker.TimeoutSec
	}
	if c.Worker.ConnTimeoutSec <= 0 {
		c.Worker.ConnTimeoutSec = d.Worker.ConnTimeoutSec
	}
	if c.Worker.MaxRetries < 0 {
		c.Worker.MaxRetries = d.Worker.MaxRetries
	}
	if c.Alerting.ErrorThreshold <= 0 {
		c.Alerting.ErrorThreshold = d.Alerting.ErrorThreshold
	}
	if c.Alerting.CooldownSec <= 0 {
		c.Alerting.CooldownSec = d.Alerting.CooldownSec
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Storage.DBName == "" {
		c.Storage.DBName = d.Storage.DBName
	}
	if c.Hunter.PollIntervalSec <= 0 {
		c.Hunter.PollIntervalSec = d.Hunter.PollIntervalSec
	}
	if c.Hunter.Cleanup.RetentionDays <= 0 {
		c.Hunter.Cleanup.RetentionDays = d.Hunter.Cleanup.RetentionDays
	}
	for i := range c.Sources {
		if c.Sources[i].Mode == "" {
			c.Sources[i].Mode = ModeFeed
		}
		if c.Sources[i].Frequency <= 0 {
			c.Sources[i].Frequency = 5
		}
	}
	if c.Headers == nil {
		c.Headers = d.Headers
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		System: SystemConfig{LogLevel: "info"},
		Worker: WorkerConfig{
			Count:          5,
			FetchLimit:     5,
			TimeoutSec:     10,
			ConnTimeoutSec: 5,
			MaxRetries:     3,
		},
		Alerting: AlertingConfig{
			ErrorThreshold: 5,
			CooldownSec:    300,
		},
		Storage: StorageConfig{
			Path:       "./data",
			DBName:     "articles.db",
			SaveImages: true,
		},
		Hunter: HunterConfig{
			PollIntervalSec: 5,
			Cleanup:         CleanupConfig{RunOnStart: false, RetentionDays: 7},
		},
		Headers: map[string]string{
			"User-Agent": "newshunter/1.0",
		},
		Selectors: map[string]SelectorSet{},
	}
}

func defaultSelectors() SelectorSet {
	return SelectorSet{
		Title:   "h1",
		Summary: ".description",
		Content: "article",
		Author:  ".author",
		Time:    ".time",
	}
}

// EnsureDirectories creates the data and image directories.
func (c Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.Path, 0o755); err != nil {
		return fmt.Errorf("config: create data dir: %w", err)
	}
	if err := os.MkdirAll(c.Storage.ImagesPath(), 0o755); err != nil {
		return fmt.Errorf("config: create images dir: %w", err)
	}
	return nil
}
