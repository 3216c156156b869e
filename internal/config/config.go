package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "./config/config.yaml"
	defaultEnvPath    = ".env"

	envPrefix = "CLASSROOM_"
)

type Mode string

const (
	ModePortal Mode = "portal"
	ModeShell  Mode = "shell"
)

type Config struct {
	Backend Backend `yaml:"backend"`
	Portal  Portal  `yaml:"portal"`
	Store   Store   `yaml:"store"`
}

type Backend struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Portal struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	SessionLifetime time.Duration `yaml:"session_lifetime"`
	// SecureCookie overrides the default, which is secure everywhere but
	// loopback hosts.
	SecureCookie *bool `yaml:"secure_cookie"`
}

// Addr is the listen address of the portal server.
func (p Portal) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Secure reports whether the session cookie carries the Secure flag.
func (p Portal) Secure() bool {
	if p.SecureCookie != nil {
		return *p.SecureCookie
	}
	return !isLoopback(p.Host)
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type Store struct {
	Path string `yaml:"path"`
}

func defaults() *Config {
	return &Config{
		Backend: Backend{
			URL:     "http://localhost:5000",
			Timeout: 10 * time.Second,
		},
		Portal: Portal{
			Host: "localhost",
			Port:            8123,
			SessionLifetime: 24 * time.Hour,
		},
		Store: Store{
			Path: defaultStorePath(),
		},
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "classroom-session.json"
	}
	return filepath.Join(dir, "classroom", "session.json")
}

// New builds the configuration from defaults, the optional yaml file and the
// environment, in that order.
func New() (*Config, error) {
	if err := godotenv.Load(defaultEnvPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "load %s", defaultEnvPath)
	}

	path := os.Getenv(envPrefix + "CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	return Load(path)
}

// Load reads path (when it exists) over the defaults and applies environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse %s", path)
			}
		case !os.IsNotExist(err):
			return nil, errors.Wrapf(err, "read %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(envPrefix + "BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv(envPrefix + "BACKEND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, envPrefix+"BACKEND_TIMEOUT")
		}
		c.Backend.Timeout = d
	}
	if v := os.Getenv(envPrefix + "PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, envPrefix+"PORT")
		}
		c.Portal.Port = p
	}
	if v := os.Getenv(envPrefix + "HOST"); v != "" {
		c.Portal.Host = v
	}
	if v := os.Getenv(envPrefix + "SECURE_COOKIE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, envPrefix+"SECURE_COOKIE")
		}
		c.Portal.SecureCookie = &b
	}
	if v := os.Getenv(envPrefix + "STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	return nil
}

func (c *Config) validate() error {
	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
	if c.Backend.URL == "" {
		return errors.New("backend url is required")
	}
	if c.Portal.Port <= 0 || c.Portal.Port > 65535 {
		return errors.Errorf("invalid portal port %d", c.Portal.Port)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store path is required")
	}
	return nil
}
