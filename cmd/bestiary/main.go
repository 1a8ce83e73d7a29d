// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bestiary CLI. It scans a vault
// of Markdown notes for creature stat blocks, stores the extracted records,
// and answers queries over them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the bestiary CLI.
var rootCmd = &cobra.Command{
	Use:   "bestiary",
	Short: "Build a searchable bestiary from stat blocks in your notes",
	Long: `bestiary reads the frontmatter of every note in a vault, extracts the
notes that carry a creature stat block, and stores them in a local SQLite
bestiary with full-text search over traits, actions, and reactions.

Extraction runs in a background worker that asks for one note at a time.
Use scan for a one-off pass, watch to follow edits as they happen, and
query or export to read the results.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./bestiary.yaml or ~/.config/bestiary/bestiary.yaml)")
	flags.String("vault", "", "vault directory to scan (default: current directory)")
	flags.String("store-dir", "", "directory holding bestiary.db (default: .bestiary)")
	flags.Bool("debug", false, "enable verbose worker diagnostics")

	viper.BindPFlag("vault.root", flags.Lookup("vault"))
	viper.BindPFlag("store.dir", flags.Lookup("store-dir"))
	viper.BindPFlag("worker.debug", flags.Lookup("debug"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bestiary")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bestiary"))
		}
	}

	viper.SetEnvPrefix("BESTIARY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
