// Package config loads process configuration from defaults, an optional YAML
// file, an optional .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/nscache/codec"
)

type Config struct {
	Environment string       `yaml:"environment"`
	Cache       CacheConfig  `yaml:"cache"`
	Server      ServerConfig `yaml:"server"`
	Form        FormConfig   `yaml:"form"`
	Log         LogConfig    `yaml:"log"`
}

type CacheConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Password       string   `yaml:"password"`
	DB             int      `yaml:"db"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	OpTimeout      Duration `yaml:"op_timeout"`
	Prefix         string   `yaml:"prefix"`
	TTL            Duration `yaml:"ttl"`
	Enabled        bool     `yaml:"enabled"`
	Debug          bool     `yaml:"debug"`
	Codec          string   `yaml:"codec"`
	Presets        Presets  `yaml:"presets"`
}

// Presets are the TTLs used for well-known kinds of cached data.
type Presets struct {
	Page      Duration `yaml:"page"`
	Query     Duration `yaml:"query"`
	API       Duration `yaml:"api"`
	Session   Duration `yaml:"session"`
	Temporary Duration `yaml:"temporary"`
}

// Map returns the presets by name.
func (p Presets) Map() map[string]time.Duration {
	return map[string]time.Duration{
		"page":      p.Page.Std(),
		"query":     p.Query.Std(),
		"api":       p.API.Std(),
		"session":   p.Session.Std(),
		"temporary": p.Temporary.Std(),
	}
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AdminAPIKey    string   `yaml:"admin_api_key"`
	PageFile       string   `yaml:"page_file"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

type FormConfig struct {
	RateMax    int      `yaml:"rate_max"`
	RateWindow Duration `yaml:"rate_window"`
	DedupTTL   Duration `yaml:"dedup_ttl"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Backend string `yaml:"backend"`
}

func Default() *Config {
	return &Config{
		Environment: "development",
		Cache: CacheConfig{
			Host:           "127.0.0.1",
			Port:           6379,
			ConnectTimeout: Duration(2500 * time.Millisecond),
			OpTimeout:      Duration(time.Second),
			Prefix:         "ibm_a1_",
			TTL:            Duration(24 * time.Hour),
			Enabled:        true,
			Codec:          "json",
			Presets: Presets{
				Page:      Duration(24 * time.Hour),
				Query:     Duration(12 * time.Hour),
				API:       Duration(time.Hour),
				Session:   Duration(2 * time.Hour),
				Temporary: Duration(5 * time.Minute),
			},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			PageFile:       "index.html",
			RequestTimeout: Duration(30 * time.Second),
		},
		Form: FormConfig{
			RateMax:    5,
			RateWindow: Duration(time.Hour),
			DedupTTL:   Duration(5 * time.Minute),
		},
		Log: LogConfig{Level: "info", Backend: "zap"},
	}
}

// Load builds the configuration. path is an optional YAML file. envFiles are
// loaded into the environment without overriding variables already set; with
// none given, ./.env is used when present.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("ENVIRONMENT", &c.Environment)

	str("CACHE_HOST", &c.Cache.Host)
	num("CACHE_PORT", &c.Cache.Port)
	str("CACHE_PASSWORD", &c.Cache.Password)
	num("CACHE_DB", &c.Cache.DB)
	dur("CACHE_CONNECT_TIMEOUT", &c.Cache.ConnectTimeout)
	dur("CACHE_OP_TIMEOUT", &c.Cache.OpTimeout)
	str("CACHE_PREFIX", &c.Cache.Prefix)
	dur("CACHE_TTL", &c.Cache.TTL)
	flag("CACHE_ENABLED", &c.Cache.Enabled)
	flag("CACHE_DEBUG", &c.Cache.Debug)
	str("CACHE_CODEC", &c.Cache.Codec)
	dur("CACHE_TTL_PAGE", &c.Cache.Presets.Page)
	dur("CACHE_TTL_QUERY", &c.Cache.Presets.Query)
	dur("CACHE_TTL_API", &c.Cache.Presets.API)
	dur("CACHE_TTL_SESSION", &c.Cache.Presets.Session)
	dur("CACHE_TTL_TEMPORARY", &c.Cache.Presets.Temporary)

	str("HTTP_ADDR", &c.Server.Addr)
	str("ADMIN_API_KEY", &c.Server.AdminAPIKey)
	str("PAGE_FILE", &c.Server.PageFile)
	dur("HTTP_REQUEST_TIMEOUT", &c.Server.RequestTimeout)

	num("FORM_RATE_MAX", &c.Form.RateMax)
	dur("FORM_RATE_WINDOW", &c.Form.RateWindow)
	dur("FORM_DEDUP_TTL", &c.Form.DedupTTL)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_BACKEND", &c.Log.Backend)

	return errors.Join(errs...)
}

// Validate checks that the configuration can build a working cache and server.
func (c *Config) Validate() error {
	if c.Cache.Prefix == "" {
		return fmt.Errorf("CACHE_PREFIX is required")
	}
	if c.Cache.Port <= 0 || c.Cache.Port > 65535 {
		return fmt.Errorf("CACHE_PORT must be between 1 and 65535, got %d", c.Cache.Port)
	}
	ttls := map[string]Duration{
		"CACHE_TTL":           c.Cache.TTL,
		"CACHE_TTL_PAGE":      c.Cache.Presets.Page,
		"CACHE_TTL_QUERY":     c.Cache.Presets.Query,
		"CACHE_TTL_API":       c.Cache.Presets.API,
		"CACHE_TTL_SESSION":   c.Cache.Presets.Session,
		"CACHE_TTL_TEMPORARY": c.Cache.Presets.Temporary,
		"FORM_RATE_WINDOW":    c.Form.RateWindow,
		"FORM_DEDUP_TTL":      c.Form.DedupTTL,
	}
	for name, d := range ttls {
		if d.Std() < time.Second {
			return fmt.Errorf("%s must be at least 1s, got %s", name, d.Std())
		}
	}
	if c.Cache.ConnectTimeout <= 0 || c.Cache.OpTimeout <= 0 {
		return fmt.Errorf("cache timeouts must be positive")
	}
	if _, err := codec.ByName(c.Cache.Codec); err != nil {
		return fmt.Errorf("CACHE_CODEC: %w", err)
	}
	if c.Form.RateMax <= 0 {
		return fmt.Errorf("FORM_RATE_MAX must be positive, got %d", c.Form.RateMax)
	}
	if c.IsProduction() && c.Server.AdminAPIKey == "" {
		return fmt.Errorf("ADMIN_API_KEY is required in production")
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Environment == "development" }

func (c *Config) IsProduction() bool { return c.Environment == "production" }
