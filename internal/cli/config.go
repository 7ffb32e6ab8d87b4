// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/canonical/sqltmpl"
)

// DefaultConfigFile is read from the working directory when no --config
// flag is given.
const DefaultConfigFile = "sqltmpl.yaml"

const envPrefix = "SQLTMPL_"

// Config holds the settings shared by every command.
type Config struct {
	Driver      string `koanf:"driver"`
	DSN         string `koanf:"dsn"`
	Placeholder string `koanf:"placeholder"`
	Args        string `koanf:"args"`
	Format      string `koanf:"format"`
	Verbose     bool   `koanf:"verbose"`
}

var defaults = map[string]any{
	"driver":      "sqlite3",
	"dsn":         "",
	"placeholder": "",
	"args":        "",
	"format":      "table",
	"verbose":     false,
}

// LoadConfig loads configuration from defaults, the config file, SQLTMPL_
// environment variables and flags. Later sources override earlier ones.
// Only flags that were set on the command line are taken into account.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("cannot load defaults: %w", err)
	}

	if cfgFile == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			cfgFile = DefaultConfigFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", cfgFile, err)
		}
	}

	// SQLTMPL_DSN -> dsn
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("cannot load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("cannot load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	return &cfg, nil
}

// driverPlaceholders holds the placeholder style used with a driver when
// none is configured.
var driverPlaceholders = map[string]string{
	"pgx":      "dollar",
	"postgres": "dollar",
}

// PlaceholderStyle returns the configured placeholder style, falling back
// to the driver's native style.
func (c *Config) PlaceholderStyle() (sqltmpl.Placeholder, error) {
	name := c.Placeholder
	if name == "" {
		name = driverPlaceholders[c.Driver]
	}
	if name == "" {
		name = "question"
	}
	ph, ok := sqltmpl.PlaceholderByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown placeholder style %q", name)
	}
	return ph, nil
}
