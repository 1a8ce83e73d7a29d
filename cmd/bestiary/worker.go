// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bestiary/internal/channel"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run an extraction worker over stdin and stdout",
	Hidden: true,
	Long: `Worker runs the background extraction worker with JSON Lines messages on
stdin and stdout, one message per line. It is started by scan --isolated
and watch --isolated and exits when stdin closes.`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, level := newLogger(cfg)

	stream := channel.NewStream(os.Stdin, os.Stdout, log)
	defer stream.Close()

	w, err := newWorker(stream, cfg, log, level)
	if err != nil {
		return err
	}
	err = w.Run(cmd.Context())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	return stream.Err()
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
