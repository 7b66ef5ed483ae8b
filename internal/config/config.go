// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Admin    AdminConfig    `yaml:"admin"`
	Analysis AnalysisConfig `yaml:"analysis"`
	OIDC        OIDCConfig        `yaml:"oidc"`
	ForwardAuth ForwardAuthConfig `yaml:"forward_auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	WebDir       string `yaml:"web_dir"`
	BodyMapImage string `yaml:"body_map_image"`
	SeedDemo     bool   `yaml:"seed_demo"`
}

// DatabaseConfig selects the store. An empty URL means in-memory.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AdminConfig is the bootstrap owner account, created only when no user
// exists yet.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AnalysisConfig configures the Gemini video analysis.
type AnalysisConfig struct {
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	Timeout     string `yaml:"timeout"`
	Cooldown    string `yaml:"cooldown"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// OIDCConfig enables single sign-on when Issuer is set.
type OIDCConfig struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// ForwardAuthConfig lists the reverse proxies allowed to assert the caller's
// identity through the Remote-User header. Entries are CIDRs or single
// addresses. Empty disables forward auth.
type ForwardAuthConfig struct {
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// LoggingConfig sets the log level: debug, info, warn or error.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			WebDir:       "web",
			BodyMapImage: "/static/body.png",
			SeedDemo:     true,
		},
		Analysis: AnalysisConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "5m",
			Cooldown:    "0s",
			MaxUploadMB: 200,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path, if it is non-empty and exists, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&c.Server.Addr, "ADDR")
	setString(&c.Server.WebDir, "WEB_DIR")
	setString(&c.Server.BodyMapImage, "BODY_MAP_IMAGE")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Admin.Username, "ADMIN_USERNAME")
	setString(&c.Admin.Password, "ADMIN_PASSWORD")
	setString(&c.Analysis.APIKey, "GEMINI_API_KEY")
	setString(&c.Analysis.Model, "GEMINI_MODEL")
	setString(&c.Analysis.Timeout, "ANALYSIS_TIMEOUT")
	setString(&c.Analysis.Cooldown, "ANALYSIS_COOLDOWN")
	setString(&c.OIDC.Issuer, "OIDC_ISSUER")
	setString(&c.OIDC.ClientID, "OIDC_CLIENT_ID")
	setString(&c.OIDC.ClientSecret, "OIDC_CLIENT_SECRET")
	setString(&c.OIDC.RedirectURL, "OIDC_REDIRECT_URL")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("FORWARD_AUTH_TRUSTED_PROXIES"); v != "" {
		c.ForwardAuth.TrustedProxies = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.ForwardAuth.TrustedProxies = append(c.ForwardAuth.TrustedProxies, p)
			}
		}
	}
	if v := os.Getenv("SEED_DEMO"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SEED_DEMO: %w", err)
		}
		c.Server.SeedDemo = b
	}
	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_MB: %w", err)
		}
		c.Analysis.MaxUploadMB = n
	}
	return nil
}

// Validate checks the values that cannot be caught by the YAML decoder.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.AnalysisTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.AnalysisCooldown(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.TrustedProxies(); err != nil {
		errs = append(errs, err)
	}
	if c.Analysis.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_mb must be positive, got %d", c.Analysis.MaxUploadMB))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	if c.OIDC.Issuer != "" && (c.OIDC.ClientID == "" || c.OIDC.RedirectURL == "") {
		errs = append(errs, errors.New("oidc issuer requires client_id and redirect_url"))
	}
	return errors.Join(errs...)
}

// AnalysisTimeout is the parsed analysis timeout.
func (c *Config) AnalysisTimeout() (time.Duration, error) {
	return parseDuration("analysis timeout", c.Analysis.Timeout)
}

// AnalysisCooldown is the parsed analysis cooldown.
func (c *Config) AnalysisCooldown() (time.Duration, error) {
	return parseDuration("analysis cooldown", c.Analysis.Cooldown)
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Analysis.MaxUploadMB) << 20
}

// TrustedProxies parses the forward auth allow-list. A bare address is
// treated as a single-host prefix.
func (c *Config) TrustedProxies() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.ForwardAuth.TrustedProxies))
	for _, s := range c.ForwardAuth.TrustedProxies {
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy: %w", err)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return out, nil
}

// SSOEnabled reports whether single sign-on is configured.
func (c *Config) SSOEnabled() bool {
	return c.OIDC.Issuer != ""
}

func parseDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", name, s)
	}
	return d, nil
}
