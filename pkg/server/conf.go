package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftwood-mud/driftwood/pkg/session"
)

// Config holds the full server configuration. It is loadable from a YAML
// file; zero values fall back to defaults at load time.
type Config struct {
	// --- Identity ---
	MudName string `yaml:"mud_name"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	// --- Session limits ---
	MaxConnections  int           `yaml:"max_connections"`
	ConnTimeout     time.Duration `yaml:"conn_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	RateLimitMax    int           `yaml:"rate_limit_max"`
	LoginRetries    int           `yaml:"login_retries"`

	// --- TLS telnet listener ---
	TLS     bool   `yaml:"tls"`
	TLSPort int    `yaml:"tls_port"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
	CertDir string `yaml:"cert_dir"`

	// --- Web gateway ---
	Web WebConfig `yaml:"web"`

	// --- Storage ---
	AccountsDB       string        `yaml:"accounts_db"`       // empty disables persistent accounts
	HistoryDB        string        `yaml:"history_db"`        // empty disables chat scrollback
	HistoryRetention time.Duration `yaml:"history_retention"` // scrollback age limit

	// --- Content ---
	WorldFile string `yaml:"world_file"` // empty uses the built-in world
	TextDir   string `yaml:"text_dir"`   // welcome/MOTD text files

	// --- Backups ---
	ArchiveDir      string        `yaml:"archive_dir"`      // output directory for backups
	ArchiveInterval time.Duration `yaml:"archive_interval"` // zero disables auto-archive
	ArchiveRetain   int           `yaml:"archive_retain"`   // keep last N archives
	ConfPath        string        `yaml:"-"`                // set by the loader, included in backups

	Verbose bool `yaml:"verbose"`
}

// WebConfig configures the HTTP/WebSocket gateway.
type WebConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	Domain      string   `yaml:"domain"` // non-empty enables Let's Encrypt
	CertFile    string   `yaml:"cert_file"`
	KeyFile     string   `yaml:"key_file"`
	CertDir     string   `yaml:"cert_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
	RateLimit   int      `yaml:"rate_limit"` // requests per minute per IP
	JWTSecret   string   `yaml:"jwt_secret"`
	JWTExpiry   int      `yaml:"jwt_expiry"` // seconds
}

// DefaultConfig returns sensible defaults for a development server.
func DefaultConfig() Config {
	sc := session.DefaultConfig()
	return Config{
		MudName:          "Driftwood",
		Host:             sc.Host,
		Port:             sc.Port,
		MaxConnections:   sc.MaxConnections,
		ConnTimeout:      sc.ConnTimeout,
		IdleTimeout:      sc.IdleTimeout,
		RateLimitWindow:  sc.RateLimitWindow,
		RateLimitMax:     sc.RateLimitMax,
		LoginRetries:     3,
		HistoryRetention: 24 * time.Hour,
		ArchiveDir:       "backups",
		ArchiveRetain:    10,
		Web: WebConfig{
			Port:      8080,
			RateLimit: 120,
			JWTExpiry: 86400,
		},
	}
}

// LoadConfig reads a YAML config file and fills unset fields from defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("server: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("server: parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.ConfPath = path
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MudName == "" {
		c.MudName = d.MudName
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = d.MaxConnections
	}
	if c.ConnTimeout == 0 {
		c.ConnTimeout = d.ConnTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.RateLimitWindow == 0 {
		c.RateLimitWindow = d.RateLimitWindow
	}
	if c.RateLimitMax == 0 {
		c.RateLimitMax = d.RateLimitMax
	}
	if c.LoginRetries == 0 {
		c.LoginRetries = d.LoginRetries
	}
	if c.HistoryRetention == 0 {
		c.HistoryRetention = d.HistoryRetention
	}
	if c.TLS && c.TLSPort == 0 {
		c.TLSPort = c.Port + 1
	}
	if c.Web.Port == 0 {
		c.Web.Port = d.Web.Port
	}
	if c.Web.RateLimit == 0 {
		c.Web.RateLimit = d.Web.RateLimit
	}
	if c.Web.JWTExpiry == 0 {
		c.Web.JWTExpiry = d.Web.JWTExpiry
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = d.ArchiveDir
	}
	if c.ArchiveRetain == 0 {
		c.ArchiveRetain = d.ArchiveRetain
	}
}

// SessionConfig derives the session manager's configuration.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		Host:            c.Host,
		Port:            c.Port,
		MaxConnections:  c.MaxConnections,
		ConnTimeout:     c.ConnTimeout,
		IdleTimeout:     c.IdleTimeout,
		RateLimitWindow: c.RateLimitWindow,
		RateLimitMax:    c.RateLimitMax,
		Verbose:         c.Verbose,
	}
}
