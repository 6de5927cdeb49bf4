package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the config file used when no --config flag is given.
const EnvConfig = "STREAMMUX_CONFIG"

// DefaultListen is the address of `streammux serve` when neither flag nor file set one.
const DefaultListen = "localhost:22124"

// Config holds the settings of the run and serve commands. Command line flags which
// were set explicitly take precedence over the file.
type Config struct {
	Output        string        `yaml:"output,omitempty"`         // Combined output file, empty means stdout
	TTY           bool          `yaml:"tty,omitempty"`            // Run the command under a pseudo terminal
	StatsInterval time.Duration `yaml:"stats_interval,omitempty"` // 0 disables stats on the control stream
	BufferSize    int           `yaml:"buffer_size,omitempty"`    // Line buffer capacity, 0 means default
	Listen        string        `yaml:"listen,omitempty"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	return &Config{
		Listen: DefaultListen,
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer_size must be >= 0, got %d", c.BufferSize)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("stats_interval must be >= 0, got %s", c.StatsInterval)
	}
	if c.StatsInterval > 0 && c.StatsInterval < 100*time.Millisecond {
		return fmt.Errorf("stats_interval must be at least 100ms, got %s", c.StatsInterval)
	}
	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
		}
	}
	return nil
}

// Load reads and validates a config file. Keys missing in the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}

	return config, nil
}

// Resolve loads path, or the file named by $STREAMMUX_CONFIG if path is empty. Without
// either, the defaults are returned.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
