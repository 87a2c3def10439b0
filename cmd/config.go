package cmd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// DefaultConfigPath is where the config file is looked for when neither
// --config nor HFETCH_CONFIG is set.
const DefaultConfigPath = "${HOME}/.hfetch/config.yaml"

// ConfigEnv names the environment variable holding a config file path.
const ConfigEnv = "HFETCH_CONFIG"

// Config is the optional hfetch config file. Every field may be
// overridden by the matching flag.
type Config struct {
	UserAgent      string    `json:"user-agent,omitempty"`
	Accept         string    `json:"accept,omitempty"`
	Proxy          string    `json:"proxy,omitempty"`
	Firewall       string    `json:"firewall,omitempty"`
	MaxRedirects   *int      `json:"max-redirects,omitempty"`
	MaxAuthRetries *int      `json:"max-auth-retries,omitempty"`
	Timeout        string    `json:"timeout,omitempty"`
	ReadTimeout    string    `json:"read-timeout,omitempty"`
	Parallel       int       `json:"parallel,omitempty"`
	Throttle       *Throttle `json:"throttle,omitempty"`
}

// Throttle limits how fast connections are opened.
type Throttle struct {
	RPS   int `json:"rps"`
	Burst int `json:"burst"`
}

// LoadConfig parses a config file. Unknown keys are an error.
func LoadConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadDefaultConfig loads the config at DefaultConfigPath. A missing file
// yields an empty config.
func LoadDefaultConfig() (*Config, error) {
	f, err := os.Open(filepath.Clean(os.ExpandEnv(DefaultConfigPath)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return LoadConfig(f)
}

func loadConfigFile(path string) (*Config, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := LoadConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields that are kept as strings in the file.
func (c *Config) Validate() error {
	var errs []error

	for name, addr := range map[string]string{"proxy": c.Proxy, "firewall": c.Firewall} {
		if addr == "" {
			continue
		}
		if _, _, err := splitAddr(addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	for name, d := range map[string]string{"timeout": c.Timeout, "read-timeout": c.ReadTimeout} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.MaxRedirects != nil && *c.MaxRedirects < 0 {
		errs = append(errs, errors.New("max-redirects: must not be negative"))
	}
	if c.MaxAuthRetries != nil && *c.MaxAuthRetries < 1 {
		errs = append(errs, errors.New("max-auth-retries: must be at least 1"))
	}
	if c.Parallel < 0 {
		errs = append(errs, errors.New("parallel: must not be negative"))
	}
	if c.Throttle != nil && (c.Throttle.RPS <= 0 || c.Throttle.Burst <= 0) {
		errs = append(errs, errors.New("throttle: rps and burst must be greater than zero"))
	}

	return errors.Join(errs...)
}

// splitAddr parses host:port.
func splitAddr(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}

	port, err := strconv.Atoi(p)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", p)
	}

	return host, port, nil
}
