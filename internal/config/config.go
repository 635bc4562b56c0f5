package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/dataviz-agent/internal/sandbox"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "DATAVIZ"
	dirName   = ".dataviz-agent"
)

// Global configuration structure. API keys are not part of it; they are
// entered per session.
type Global struct {
	DefaultModel string  `mapstructure:"default_model" yaml:"default_model"`
	MaxTokens    int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature  float64 `mapstructure:"temperature" yaml:"temperature"`

	// Web shell
	ListenAddr     string `mapstructure:"listen_addr" yaml:"listen_addr"`
	SessionSecret  string `mapstructure:"session_secret" yaml:"session_secret"`
	SessionIdleMin int    `mapstructure:"session_idle_min" yaml:"session_idle_min"`
	MaxUploadMB    int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	PreviewRows    int    `mapstructure:"preview_rows" yaml:"preview_rows"`
	// CookieSecure marks the session cookie Secure; enable only behind a TLS proxy.
	CookieSecure bool `mapstructure:"cookie_secure" yaml:"cookie_secure"`

	// HTTP
	HTTPTimeoutSec    int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url" yaml:"openrouter_base_url"`
	GeminiBaseURL     string `mapstructure:"gemini_base_url" yaml:"gemini_base_url"`

	// Remote code interpreter
	SandboxAPIURL     string `mapstructure:"sandbox_api_url" yaml:"sandbox_api_url"`
	SandboxDomain     string `mapstructure:"sandbox_domain" yaml:"sandbox_domain"`
	SandboxTemplate   string `mapstructure:"sandbox_template" yaml:"sandbox_template"`
	SandboxTimeoutSec int    `mapstructure:"sandbox_timeout_sec" yaml:"sandbox_timeout_sec"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"default_model", "max_tokens", "temperature",
	"listen_addr", "session_secret", "session_idle_min", "max_upload_mb", "preview_rows",
	"cookie_secure", "http_timeout_sec", "openrouter_base_url", "gemini_base_url",
	"sandbox_api_url", "sandbox_domain", "sandbox_template", "sandbox_timeout_sec",
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dataviz-agent/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	def := sandbox.DefaultConfig()
	v.SetDefault("default_model", "gemini-2.5-flash")
	v.SetDefault("max_tokens", 0)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("listen_addr", "127.0.0.1:8501")
	v.SetDefault("session_secret", "")
	v.SetDefault("session_idle_min", 60)
	v.SetDefault("max_upload_mb", 200)
	v.SetDefault("preview_rows", 5)
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("cookie_secure", false)
	v.SetDefault("openrouter_base_url", "")
	v.SetDefault("gemini_base_url", "")
	v.SetDefault("sandbox_api_url", def.APIURL)
	v.SetDefault("sandbox_domain", def.Domain)
	v.SetDefault("sandbox_template", def.Template)
	v.SetDefault("sandbox_timeout_sec", int(def.Lifetime.Seconds()))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// HTTPTimeout returns the per-request timeout for model calls.
func (c *Global) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// MaxUploadBytes returns the upload size limit.
func (c *Global) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 200 << 20
	}
	return int64(c.MaxUploadMB) << 20
}

// SessionIdle returns how long an unused session is kept.
func (c *Global) SessionIdle() time.Duration {
	if c.SessionIdleMin <= 0 {
		return time.Hour
	}
	return time.Duration(c.SessionIdleMin) * time.Minute
}

// Sandbox maps the sandbox keys onto a client config.
func (c *Global) Sandbox() sandbox.Config {
	cfg := sandbox.Config{
		APIURL:   c.SandboxAPIURL,
		Domain:   c.SandboxDomain,
		Template: c.SandboxTemplate,
	}
	if c.SandboxTimeoutSec > 0 {
		cfg.Lifetime = time.Duration(c.SandboxTimeoutSec) * time.Second
		cfg.HTTPTimeout = cfg.Lifetime
	}
	return cfg
}
