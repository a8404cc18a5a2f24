package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration of the BrewBook agent service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	DB         SQLConfig        `yaml:"db"`
	VectorDB   VectorDBConfig   `yaml:"vector_db"`
	Scrape     ScrapeConfig     `yaml:"scrape"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Robots     RobotsConfig     `yaml:"robots"`
	Rendering  RenderingConfig  `yaml:"rendering"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Image      ImageConfig      `yaml:"image"`
	Cache      CacheConfig      `yaml:"cache"`
	Auth       AuthConfig       `yaml:"auth"`
	Media      MediaConfig      `yaml:"media"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr          string          `yaml:"addr"`
	ReadTimeout   Duration        `yaml:"read_timeout"`
	WriteTimeout  Duration        `yaml:"write_timeout"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	MaxScrapeURLs int             `yaml:"max_scrape_urls"`
}

// SQLConfig describes the relational database connection.
type SQLConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	CreateIfMissing bool     `yaml:"create_if_missing"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
}

// VectorDBConfig selects where recipe embeddings live.
type VectorDBConfig struct {
	// Provider is one of pgvector, qdrant, elasticsearch. Empty disables semantic search.
	Provider  string `yaml:"provider"`
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	Index     string `yaml:"index"`
	Dimension int    `yaml:"dimension"`
}

// ScrapeConfig controls page fetching and batch pacing.
type ScrapeConfig struct {
	UserAgent          string            `yaml:"user_agent"`
	Headers            map[string]string `yaml:"headers"`
	ProxyURL           string            `yaml:"proxy_url"`
	RequestTimeout     Duration          `yaml:"request_timeout"`
	MaxBodyBytes       int64             `yaml:"max_body_bytes"`
	BatchDelay         Duration          `yaml:"batch_delay"`
	RateLimitPerDomain RateLimitConfig   `yaml:"rate_limit_per_domain"`
}

// RateLimitConfig applies a token bucket per key.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// PreprocessConfig configures HTML noise removal ahead of heuristic extraction.
type PreprocessConfig struct {
	RemoveAds        bool     `yaml:"remove_ads"`
	AdSelectors      []string `yaml:"ad_selectors"`
	ExtraDropClasses []string `yaml:"extra_drop_classes"`
}

// RobotsConfig configures robots.txt handling.
type RobotsConfig struct {
	// EnforceDisallow stops a scrape when robots.txt disallows the URL.
	// When false the decision is reported and logged but the page is still fetched.
	EnforceDisallow bool     `yaml:"enforce_disallow"`
	Overrides       []string `yaml:"overrides"`
	UserAgent       string   `yaml:"user_agent"`
	// CacheTTL of zero re-fetches robots.txt on every check.
	CacheTTL Duration `yaml:"cache_ttl"`
	Timeout  Duration `yaml:"timeout"`
}

// RenderingConfig controls optional JavaScript rendering of social pages.
type RenderingConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Timeout            Duration `yaml:"timeout"`
	WaitForSelector    string   `yaml:"wait_for_selector"`
	ConcurrentSessions int      `yaml:"concurrent_sessions"`
	DisableHeadless    bool     `yaml:"disable_headless"`
}

// LLMConfig configures the generative text endpoint.
type LLMConfig struct {
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	MaxTokens   int64    `yaml:"max_tokens"`
	Temperature float64  `yaml:"temperature"`
	Timeout     Duration `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding endpoint.
type EmbeddingConfig struct {
	APIKey    string   `yaml:"api_key"`
	BaseURL   string   `yaml:"base_url"`
	Model     string   `yaml:"model"`
	Dimension int      `yaml:"dimension"`
	Timeout   Duration `yaml:"timeout"`
}

// ImageConfig configures the image generation endpoint.
type ImageConfig struct {
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	Model        string   `yaml:"model"`
	Size         string   `yaml:"size"`
	DefaultStyle string   `yaml:"default_style"`
	Timeout      Duration `yaml:"timeout"`
}

// CacheConfig configures the drink-of-the-day cache.
type CacheConfig struct {
	DrinkOfDayTTL Duration `yaml:"drink_of_day_ttl"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	RedisKey      string   `yaml:"redis_key"`
}

// AuthConfig configures bearer token verification. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// MediaConfig controls archiving of generated images.
type MediaConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Backend             string   `yaml:"backend"`
	Directory           string   `yaml:"directory"`
	PublicBaseURL       string   `yaml:"public_base_url"`
	Bucket              string   `yaml:"bucket"`
	Region              string   `yaml:"region"`
	Endpoint            string   `yaml:"endpoint"`
	MaxSizeBytes        int64    `yaml:"max_size_bytes"`
	AllowedContentTypes []string `yaml:"allowed_content_types"`
}

// SchedulerConfig holds cron expressions for background jobs. Empty disables a job.
type SchedulerConfig struct {
	DrinkOfDayCron string `yaml:"drink_of_day_cron"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

const (
	DefaultBotUserAgent  = "BrewBookBot/1.0 (+https://brewbook.app/bot)"
	DefaultPageUserAgent = "Mozilla/5.0 (compatible; BrewBookBot/1.0; +https://brewbook.app/bot)"
	DefaultImageStyle    = "photographic, professional food photography, warm lighting"
)

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  DurationFrom(15 * time.Second),
			WriteTimeout: DurationFrom(3 * time.Minute),
			RateLimit: RateLimitConfig{
				Requests: 10,
				Window:   DurationFrom(time.Minute),
			},
			MaxScrapeURLs: 20,
		},
		DB: SQLConfig{
			Driver:      "postgres",
			AutoMigrate: true,
		},
		VectorDB: VectorDBConfig{
			Provider:  "pgvector",
			Index:     "recipes",
			Dimension: 1536,
		},
		Scrape: ScrapeConfig{
			UserAgent:      DefaultPageUserAgent,
			Headers:        map[string]string{},
			RequestTimeout: DurationFrom(15 * time.Second),
			MaxBodyBytes:   5 * 1024 * 1024,
			BatchDelay:     DurationFrom(time.Second),
		},
		Preprocess: PreprocessConfig{
			RemoveAds: true,
			AdSelectors: []string{
				"[class*='advert']",
				"[class*='sponsor']",
				"[class~='ad']",
				"[id^='ad-']",
				"iframe[src*='ads']",
			},
		},
		Robots: RobotsConfig{
			EnforceDisallow: false,
			Overrides:       []string{},
			UserAgent:       DefaultBotUserAgent,
			Timeout:         DurationFrom(10 * time.Second),
		},
		Rendering: RenderingConfig{
			Enabled:            false,
			Timeout:            DurationFrom(20 * time.Second),
			ConcurrentSessions: 1,
		},
		LLM: LLMConfig{
			Model:       "claude-sonnet-4-5",
			MaxTokens:   2000,
			Temperature: 0.8,
			Timeout:     DurationFrom(2 * time.Minute),
		},
		Embedding: EmbeddingConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "text-embedding-3-large",
			Dimension: 1536,
			Timeout:   DurationFrom(30 * time.Second),
		},
		Image: ImageConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "dall-e-3",
			Size:         "1024x1024",
			DefaultStyle: DefaultImageStyle,
			Timeout:      DurationFrom(2 * time.Minute),
		},
		Cache: CacheConfig{
			DrinkOfDayTTL: DurationFrom(6 * time.Hour),
			RedisKey:      "brewbook:drink-of-day",
		},
		Media: MediaConfig{
			Enabled:      false,
			Backend:      "file",
			MaxSizeBytes: 8 * 1024 * 1024,
			AllowedContentTypes: []string{
				"image/jpeg",
				"image/png",
				"image/webp",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
// An empty path yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer fh.Close()
		if err := decodeYAML(fh, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromReader decodes configuration from an arbitrary reader. Environment overrides are not applied.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// applyEnv lets secrets and endpoints come from the environment instead of the file.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := strings.TrimSpace(getenv(key)); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Server.Addr, "BREWBOOK_ADDR")
	set(&c.DB.DSN, "DATABASE_URL")
	set(&c.LLM.APIKey, "ANTHROPIC_API_KEY")
	set(&c.LLM.BaseURL, "ANTHROPIC_BASE_URL")
	set(&c.Embedding.APIKey, "OPENAI_API_KEY")
	set(&c.Image.APIKey, "OPENAI_API_KEY")
	set(&c.Auth.JWTSecret, "BREWBOOK_JWT_SECRET")
	set(&c.Cache.RedisAddr, "REDIS_ADDR")
	set(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	set(&c.Logging.Level, "LOG_LEVEL")
	switch strings.ToLower(c.VectorDB.Provider) {
	case "qdrant":
		set(&c.VectorDB.Endpoint, "QDRANT_URL")
		set(&c.VectorDB.APIKey, "QDRANT_API_KEY")
	case "elasticsearch":
		set(&c.VectorDB.Endpoint, "ELASTICSEARCH_URL")
		set(&c.VectorDB.APIKey, "ELASTICSEARCH_API_KEY")
	}
	set(&c.Media.Bucket, "BREWBOOK_MEDIA_BUCKET")
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	return errors.Join(
		c.validateServer(),
		c.validateScrape(),
		c.validateVectorDB(),
		c.validateModels(),
		c.validateMedia(),
	)
}

func (c Config) validateServer() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must be set"))
	}
	if c.Server.MaxScrapeURLs <= 0 {
		errs = append(errs, fmt.Errorf("server.max_scrape_urls must be > 0 (got %d)", c.Server.MaxScrapeURLs))
	}
	if c.Server.RateLimit.Requests < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit.requests must be >= 0 (got %d)", c.Server.RateLimit.Requests))
	}
	if c.Cache.DrinkOfDayTTL.Duration <= 0 {
		errs = append(errs, fmt.Errorf("cache.drink_of_day_ttl must be > 0 (got %s)", c.Cache.DrinkOfDayTTL))
	}
	return errors.Join(errs...)
}

func (c Config) validateScrape() error {
	var errs []error
	s := c.Scrape
	switch {
	case s.UserAgent == "":
		errs = append(errs, errors.New("scrape.user_agent must be set"))
	case s.MaxBodyBytes <= 0:
		errs = append(errs, fmt.Errorf("scrape.max_body_bytes must be > 0 (got %d)", s.MaxBodyBytes))
	}
	if s.BatchDelay.Duration < 0 {
		errs = append(errs, fmt.Errorf("scrape.batch_delay must be >= 0 (got %s)", s.BatchDelay))
	}
	if s.RateLimitPerDomain.Requests < 0 {
		errs = append(errs, fmt.Errorf("scrape.rate_limit_per_domain.requests must be >= 0 (got %d)", s.RateLimitPerDomain.Requests))
	}
	if s.ProxyURL != "" {
		if _, err := url.Parse(s.ProxyURL); err != nil {
			errs = append(errs, fmt.Errorf("scrape.proxy_url: %w", err))
		}
	}
	if c.Robots.UserAgent == "" {
		errs = append(errs, errors.New("robots.user_agent must be set"))
	}
	if c.Robots.CacheTTL.Duration < 0 {
		errs = append(errs, fmt.Errorf("robots.cache_ttl must be >= 0 (got %s)", c.Robots.CacheTTL))
	}
	return errors.Join(errs...)
}

func (c Config) validateVectorDB() error {
	v := c.VectorDB
	switch v.Provider {
	case "":
		return nil
	case "pgvector":
	case "qdrant", "elasticsearch":
		if v.Endpoint == "" {
			return fmt.Errorf("vector_db.endpoint must be set for provider %q", v.Provider)
		}
	default:
		return fmt.Errorf("unsupported vector_db.provider %q", v.Provider)
	}
	if v.Dimension <= 0 {
		return fmt.Errorf("vector_db.dimension must be > 0 (got %d)", v.Dimension)
	}
	if c.Embedding.Dimension != v.Dimension {
		return fmt.Errorf("embedding.dimension (%d) must match vector_db.dimension (%d)", c.Embedding.Dimension, v.Dimension)
	}
	return nil
}

func (c Config) validateModels() error {
	var errs []error
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be > 0 (got %d)", c.LLM.MaxTokens))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		errs = append(errs, fmt.Errorf("llm.temperature must be within [0,1] (got %g)", c.LLM.Temperature))
	}
	return errors.Join(errs...)
}

func (c Config) validateMedia() error {
	m := c.Media
	if !m.Enabled {
		return nil
	}
	var errs []error
	switch m.Backend {
	case "file":
		if m.Directory == "" {
			errs = append(errs, errors.New("media.directory is required for the file backend"))
		}
	case "s3":
		if m.Bucket == "" {
			errs = append(errs, errors.New("media.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported media.backend %q", m.Backend))
	}
	if m.MaxSizeBytes <= 0 {
		errs = append(errs, fmt.Errorf("media.max_size_bytes must be > 0 (got %d)", m.MaxSizeBytes))
	}
	if len(m.AllowedContentTypes) == 0 {
		errs = append(errs, errors.New("media.allowed_content_types is empty"))
	}
	return errors.Join(errs...)
}

// normalise trims free-form values and lower-cases enumerations before validation.
func (c *Config) normalise() {
	for _, field := range []*string{
		&c.Server.Addr,
		&c.Scrape.UserAgent,
		&c.Scrape.ProxyURL,
		&c.Robots.UserAgent,
		&c.Media.Directory,
		&c.Scheduler.DrinkOfDayCron,
	} {
		*field = strings.TrimSpace(*field)
	}
	for _, field := range []*string{&c.VectorDB.Provider, &c.Media.Backend, &c.Logging.Level} {
		*field = strings.ToLower(strings.TrimSpace(*field))
	}
	for _, field := range []*string{&c.VectorDB.Endpoint, &c.LLM.BaseURL, &c.Embedding.BaseURL, &c.Image.BaseURL} {
		*field = strings.TrimRight(strings.TrimSpace(*field), "/")
	}

	if c.Scrape.Headers == nil {
		c.Scrape.Headers = map[string]string{}
	}
	if strings.TrimSpace(c.Image.DefaultStyle) == "" {
		c.Image.DefaultStyle = DefaultImageStyle
	}
	c.Robots.Overrides = lowerSet(c.Robots.Overrides)
	c.Media.AllowedContentTypes = lowerSet(c.Media.AllowedContentTypes)
}

// lowerSet returns the sorted, lower-cased, de-duplicated non-blank values.
func lowerSet(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Enabled reports whether the rate limit is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && r.Window.Duration > 0
}
