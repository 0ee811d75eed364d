package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultDBPath is used when neither DB_PATH nor a flag names the database.
const DefaultDBPath = "/data/opencode.db"

// DBPathEnv names the environment variable holding the database location.
const DBPathEnv = "DB_PATH"

// MinInterval is the shortest accepted poll interval.
const MinInterval = time.Second

// Config holds all exporter configuration.
type Config struct {
	DBPath     string        `yaml:"db_path"`
	ListenHost string        `yaml:"listen_host"`
	Port       int           `yaml:"port"`
	Interval   time.Duration `yaml:"interval"`
	Verbose    bool          `yaml:"verbose"`
}

// Default returns a Config with sensible defaults. The database path honours
// the DB_PATH environment variable.
func Default() *Config {
	dbPath := os.Getenv(DBPathEnv)
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	return &Config{
		DBPath:     dbPath,
		ListenHost: "0.0.0.0",
		Port:       9092,
		Interval:   15 * time.Second,
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding values that are already set. Missing files
// are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a YAML config file over the defaults and expands environment
// variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// UnmarshalYAML decodes the config mapping. A bare integer interval is read
// as seconds, matching the --interval flag; strings use time.ParseDuration.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type plain Config
	if err := node.Decode((*plain)(c)); err != nil {
		return err
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Value != "interval" || val.Tag != "!!int" {
			continue
		}
		secs, err := strconv.ParseInt(val.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: interval: %w", val.Line, err)
		}
		c.Interval = time.Duration(secs) * time.Second
	}
	return nil
}

// Addr returns the host:port the scrape server binds.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.Port))
}

// Validate reports configuration that cannot be started.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path is empty"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Interval < MinInterval {
		errs = append(errs, fmt.Errorf("interval must be at least %s, got %s", MinInterval, c.Interval))
	}
	return errors.Join(errs...)
}
