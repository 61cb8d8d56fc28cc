package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/atlas-foundry/yxmd-go-sdk/yxmd"
	"github.com/pelletier/go-toml/v2"
)

// config is the optional TOML file read with --config.
type config struct {
	LogLevel         string            `toml:"log_level"`
	FastLookup       bool              `toml:"fast_lookup"`
	StripSQLComments *bool             `toml:"strip_sql_comments"`
	Aliases          map[string]string `toml:"aliases"`
	Plugins          map[string]string `toml:"plugins"`
}

func defaultConfig() *config {
	strip := true
	return &config{LogLevel: "warn", StripSQLComments: &strip}
}

// loadConfig reads path over the defaults. An empty path yields defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("config %s:%d:%d: %s", path, row, col, derr.Error())
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// registry returns the default registry extended with the configured
// short-name aliases. Each alias inherits the capabilities of the plugin it
// names.
func (c *config) registry() (*yxmd.Registry, error) {
	reg := yxmd.DefaultRegistry.Clone()
	for short, full := range c.Plugins {
		spec, ok := reg.Lookup(full)
		if !ok {
			spec = yxmd.PluginSpec{Plugin: full}
		}
		spec.Name, spec.Plugin = short, full
		if err := reg.Register(spec); err != nil {
			return nil, fmt.Errorf("plugin alias %s: %w", short, err)
		}
	}
	return reg, nil
}
