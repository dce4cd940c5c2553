package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mpolden/ftproxy/acl"
	"github.com/mpolden/ftproxy/filter"
)

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "~/.ftproxyrc"

type Config struct {
	Listen         string
	Database       string
	Product        string
	InternalName   string
	LogLevel       string
	IdleTimeout    string
	ConnectTimeout string
	ConnectRetries int
	MaxClients     int
	Upstream       string
	DefaultPolicy  string
	ACL            []acl.Rule
	StatsRetention string

	FilterPolicy        string
	FilterCaseSensitive bool
	Filter              []filter.Rule

	idleTimeout    time.Duration
	connectTimeout time.Duration
	statsRetention time.Duration
}

// Default is the configuration every file is applied on top of.
var Default = Config{
	Listen:         ":8080",
	Product:        "ftproxy",
	InternalName:   "ftproxy.intern",
	LogLevel:       "INFO",
	IdleTimeout:    "60s",
	ConnectTimeout: "10s",
	ConnectRetries: 2,
	MaxClients:     100,
	DefaultPolicy:  acl.Allow,
	StatsRetention: "720h",
	FilterPolicy:   filter.Allow,
}

func (c *Config) Idle() time.Duration      { return c.idleTimeout }
func (c *Config) Connect() time.Duration   { return c.connectTimeout }
func (c *Config) Retention() time.Duration { return c.statsRetention }

// ACLs compiles the access rules.
func (c *Config) ACLs() (*acl.ACL, error) {
	return acl.New(c.ACL, c.DefaultPolicy)
}

// Filters compiles the host filter rules, reading any rule files they name.
func (c *Config) Filters() (*filter.Filter, error) {
	return filter.New(c.Filter, c.FilterPolicy, c.FilterCaseSensitive)
}

// UpstreamURL returns the parsed SOCKS5 upstream, or nil when connecting directly.
func (c *Config) UpstreamURL() (*url.URL, error) {
	if c.Upstream == "" {
		return nil, nil
	}
	u, err := url.Parse(c.Upstream)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, fmt.Errorf("unsupported upstream scheme %q", u.Scheme)
	}
	return u, nil
}

func (c *Config) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func (c *Config) load() error {
	var err error
	if c.idleTimeout, err = parseDuration("IdleTimeout", c.IdleTimeout); err != nil {
		return err
	}
	if c.connectTimeout, err = parseDuration("ConnectTimeout", c.ConnectTimeout); err != nil {
		return err
	}
	if c.statsRetention, err = parseDuration("StatsRetention", c.StatsRetention); err != nil {
		return err
	}
	if c.ConnectRetries < 0 {
		return fmt.Errorf("invalid ConnectRetries %d", c.ConnectRetries)
	}
	if c.MaxClients < 0 {
		return fmt.Errorf("invalid MaxClients %d", c.MaxClients)
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid LogLevel %q", c.LogLevel)
	}
	if _, err := c.ACLs(); err != nil {
		return err
	}
	if _, err := c.Filters(); err != nil {
		return err
	}
	if _, err := c.UpstreamURL(); err != nil {
		return err
	}
	return nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func readConfig(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	// Unmarshal on top of the defaults, letting the file override them
	cfg := Default
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.load(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadConfig reads the configuration file name. A leading "~/" is replaced by the home directory.
func ReadConfig(name string) (Config, error) {
	if strings.HasPrefix(name, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		name = filepath.Join(home, name[2:])
	}
	f, err := os.Open(name)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := readConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}
