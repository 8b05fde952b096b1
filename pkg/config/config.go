package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "WINGSPAN_CONFIG"

// MinSessionSecretLen is the shortest cookie signing key serve accepts.
const MinSessionSecretLen = 32

var ErrWeakSessionSecret = errors.New("SESSION_SECRET must be set to a random value of at least 32 bytes")

// Config holds every setting the site needs at runtime.
type Config struct {
	AppURL        string         `yaml:"app_url"`
	Port          string         `yaml:"port"`
	SessionSecret string         `yaml:"session_secret"`
	Database      DatabaseConfig `yaml:"database"`
	Redis         RedisConfig    `yaml:"redis"`
	Cache         CacheConfig    `yaml:"cache"`
	Media         MediaConfig    `yaml:"media"`
	GitHub        GitHubConfig   `yaml:"github"`
	Log           LogConfig      `yaml:"log"`
}

// DatabaseConfig selects the SQL driver and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the shared home page cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CacheConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	RefreshCron string        `yaml:"refresh_cron"`
}

// MediaConfig stores uploads in Dir unless S3Bucket is set.
type MediaConfig struct {
	Dir         string `yaml:"dir"`
	URLPrefix   string `yaml:"url_prefix"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3PublicURL string `yaml:"s3_public_url"`
}

type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads .env, then the optional YAML file named by WINGSPAN_CONFIG, then
// applies environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load without the .env step. An empty path means defaults only.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = merge(cfg, fileCfg)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Default returns a configuration that runs locally with SQLite and no external services.
func Default() Config {
	return Config{
		AppURL:        "http://localhost:8080",
		Port:          "8080",
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "wingspan.db?_pragma=busy_timeout(5000)&_time_format=sqlite",
		},
		Cache: CacheConfig{
			TTL:         5 * time.Minute,
			RefreshCron: "*/5 * * * *",
		},
		Media: MediaConfig{
			Dir:       "./media",
			URLPrefix: "/media/",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

func (c *Config) applyEnvOverrides() {
	// Helper to get env with default
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	c.AppURL = getEnv("APP_URL", c.AppURL)
	c.Port = getEnv("PORT", c.Port)
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)

	c.Database.Driver = getEnv("DATABASE_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DATABASE_DSN", c.Database.DSN)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = ttl
		}
	}
	c.Cache.RefreshCron = getEnv("CACHE_REFRESH_CRON", c.Cache.RefreshCron)

	c.Media.Dir = getEnv("MEDIA_DIR", c.Media.Dir)
	c.Media.S3Bucket = getEnv("S3_BUCKET", c.Media.S3Bucket)
	c.Media.S3Region = getEnv("S3_REGION", c.Media.S3Region)
	c.Media.S3Prefix = getEnv("S3_PREFIX", c.Media.S3Prefix)
	c.Media.S3PublicURL = getEnv("S3_PUBLIC_URL", c.Media.S3PublicURL)

	c.GitHub.ClientID = getEnv("GITHUB_CLIENT_ID", c.GitHub.ClientID)
	c.GitHub.ClientSecret = getEnv("GITHUB_CLIENT_SECRET", c.GitHub.ClientSecret)
	c.GitHub.RedirectURL = getEnv("GITHUB_REDIRECT_URL", c.GitHub.RedirectURL)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

func merge(base, override Config) Config {
	if override.AppURL != "" {
		base.AppURL = override.AppURL
	}
	if override.Port != "" {
		base.Port = override.Port
	}
	if override.SessionSecret != "" {
		base.SessionSecret = override.SessionSecret
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Redis.Addr != "" {
		base.Redis = override.Redis
	}

	if override.Cache.TTL != 0 {
		base.Cache.TTL = override.Cache.TTL
	}
	if override.Cache.RefreshCron != "" {
		base.Cache.RefreshCron = override.Cache.RefreshCron
	}

	if override.Media.Dir != "" {
		base.Media.Dir = override.Media.Dir
	}
	if override.Media.URLPrefix != "" {
		base.Media.URLPrefix = override.Media.URLPrefix
	}
	if override.Media.S3Bucket != "" {
		base.Media.S3Bucket = override.Media.S3Bucket
		base.Media.S3Region = override.Media.S3Region
		base.Media.S3Prefix = override.Media.S3Prefix
		base.Media.S3PublicURL = override.Media.S3PublicURL
	}

	if override.GitHub.ClientID != "" {
		base.GitHub = override.GitHub
	}

	if override.Log.Level != "" {
		base.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		base.Log.Format = override.Log.Format
	}
	return base
}

// CheckSessionSecret rejects a missing or short cookie signing key. Anyone who
// knows the key can sign a session for any user.
func (c Config) CheckSessionSecret() error {
	if len(c.SessionSecret) < MinSessionSecretLen {
		return ErrWeakSessionSecret
	}
	return nil
}

// GitHubEnabled reports whether OAuth login is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}

// OAuth builds the GitHub OAuth2 client config. Only the e-mail scope is requested;
// users are matched to editor accounts by address.
func (c Config) OAuth() *oauth2.Config {
	redirectURL := c.GitHub.RedirectURL
	if redirectURL == "" {
		redirectURL = c.AppURL + "/auth/callback"
	}
	return &oauth2.Config{
		ClientID:     c.GitHub.ClientID,
		ClientSecret: c.GitHub.ClientSecret,
		Scopes:       []string{"user:email"},
		Endpoint:     github.Endpoint,
		RedirectURL:  redirectURL,
	}
}
