package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pario-ai/opencode-exporter/pkg/config"
)

// options holds the command-line flags shared by every command.
type options struct {
	configPath string
	dbPath     string
	port       int
	interval   int
	verbose    bool
}

func (o *options) bind(fs *pflag.FlagSet) {
	def := config.Default()
	fs.StringVarP(&o.configPath, "config", "c", "", "path to optional YAML config file")
	fs.StringVar(&o.dbPath, "db-path", def.DBPath, "path to OpenCode SQLite database (env DB_PATH)")
	fs.IntVar(&o.port, "port", def.Port, "port to expose metrics on")
	fs.IntVar(&o.interval, "interval", int(def.Interval/time.Second), "scrape interval in seconds")
	fs.BoolVar(&o.verbose, "verbose", false, "enable debug logging")
}

// resolve layers explicitly set flags over the config file over defaults.
func (o *options) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("db-path") {
		cfg.DBPath = o.dbPath
	}
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("interval") {
		cfg.Interval = time.Duration(o.interval) * time.Second
	}
	if flags.Changed("verbose") {
		cfg.Verbose = o.verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
