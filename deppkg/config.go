package deppkg

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const ServiceName = "ortelius-ms-dep-pkg-cud"

type Config struct {
	Listen          string `toml:"listen"`
	LogLevel        string `toml:"log_level"`
	ValidateUserURL string `toml:"validateuser_url"`
	DB              DBConfig
	Retry           RetryConfig
	Enrichment      EnrichmentConfig
	SafetyDB        SafetyDBConfig `toml:"safety_db"`
	Rewriters       []Rewriter
}

type DBConfig struct {
	Driver      string `toml:"driver"`
	Path        string `toml:"path"`
	DSN         string `toml:"dsn"`
	AutoMigrate bool   `toml:"auto_migrate"`
}

type RetryConfig struct {
	Attempts int      `toml:"attempts"`
	Delay    Duration `toml:"delay"`
}

type EnrichmentConfig struct {
	OSVEndpoint string   `toml:"osv_endpoint"`
	Workers     int      `toml:"workers"`
	Timeout     Duration `toml:"timeout"`
}

type SafetyDBConfig struct {
	// Source is either "http" or "git".
	Source   string   `toml:"source"`
	URL      string   `toml:"url"`
	Remote   string   `toml:"remote"`
	RepoPath string   `toml:"repo_path"`
	Timeout  Duration `toml:"timeout"`
}

// Rewriter rewrites one field of a package coordinate before it is looked up
// in the vulnerability feed, when Predicate evaluates to true.
type Rewriter struct {
	Field       string
	Predicate   string
	RewriteRule string `toml:"rewrite_rule"`
}

// Duration decodes toml strings like "200ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func DefaultConfig() Config {
	return Config{
		Listen:   ":5003",
		LogLevel: "info",
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "deppkg.db",
		},
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    Duration{200 * time.Millisecond},
		},
		Enrichment: EnrichmentConfig{
			OSVEndpoint: "https://api.osv.dev",
			Workers:     2,
			Timeout:     Duration{5 * time.Second},
		},
		SafetyDB: SafetyDBConfig{
			Source:   "http",
			URL:      "https://raw.githubusercontent.com/pyupio/safety-db/master/data/insecure_full.json",
			Remote:   "https://github.com/pyupio/safety-db.git",
			RepoPath: "safety-db.git",
			Timeout:  Duration{5 * time.Second},
		},
	}
}

// ParseConfig decodes a toml document on top of DefaultConfig.
func ParseConfig(config io.Reader) (c Config, err error) {
	c = DefaultConfig()
	tomlData, err := io.ReadAll(config)
	if err != nil {
		return c, fmt.Errorf("could not read config file: %w", err)
	}
	_, err = toml.Decode(string(tomlData), &c)
	if err != nil {
		return c, fmt.Errorf("could not decode toml: %w", err)
	}
	return c, nil
}

func ParseConfigFromFile(path string) (c Config, err error) {
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("could not open config file: %w", err)
	}
	defer f.Close()

	return ParseConfig(f)
}

// ApplyEnv overrides the configuration with the deployment environment
// variables. lookup is normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	if v := get("VALIDATEUSER_URL", ""); v != "" {
		c.ValidateUserURL = v
	}
	if c.ValidateUserURL == "" {
		host := get("MS_VALIDATE_USER_SERVICE_HOST", "127.0.0.1")
		port := get("MS_VALIDATE_USER_SERVICE_PORT", "80")
		c.ValidateUserURL = "http://" + net.JoinHostPort(host, port)
	}

	if _, ok := lookup("DB_HOST"); ok {
		c.DB.Driver = "postgres"
	}
	if c.DB.Driver == "postgres" && c.DB.DSN == "" {
		c.DB.DSN = fmt.Sprintf(
			"host=%s port=%s dbname=%s user=%s password=%s search_path=dm",
			get("DB_HOST", "localhost"),
			get("DB_PORT", "5432"),
			get("DB_NAME", "postgres"),
			get("DB_USER", "postgres"),
			get("DB_PASS", "postgres"),
		)
	}
}
