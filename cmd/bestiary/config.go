// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pdiddy/bestiary/internal/logging"
	"github.com/pdiddy/bestiary/pkg/types"
)

// setConfigDefaults registers every config key with its default so that
// environment variables can override keys absent from the config file.
func setConfigDefaults() {
	d := types.DefaultConfig()

	viper.SetDefault("worker.reply_timeout", d.Worker.ReplyTimeout)
	viper.SetDefault("worker.debug", d.Worker.Debug)

	viper.SetDefault("extract.marker_field", d.Extract.MarkerField)
	viper.SetDefault("extract.name_field", d.Extract.NameField)
	viper.SetDefault("extract.nested_fields", d.Extract.NestedFields)

	viper.SetDefault("normalize.label_style", string(d.Normalize.LabelStyle))
	viper.SetDefault("normalize.label_pattern", d.Normalize.LabelPattern)

	viper.SetDefault("vault.root", d.Vault.Root)
	viper.SetDefault("vault.ignore", d.Vault.Ignore)
	viper.SetDefault("vault.debounce", d.Vault.Debounce)

	viper.SetDefault("store.dir", d.Store.Dir)
	viper.SetDefault("store.max_results", d.Store.MaxResults)
}

// loadConfig decodes the merged flags, environment, config file, and
// defaults into a Config. Keys follow the yaml tags of the config types.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// newLogger returns the stderr logger for cfg and its level variable.
func newLogger(cfg types.Config) (*slog.Logger, *slog.LevelVar) {
	return logging.New(os.Stderr, cfg.Worker.Debug)
}
