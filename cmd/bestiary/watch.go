// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bestiary/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the bestiary in step with the vault as notes change",
	Long: `Watch runs an incremental scan, then follows file system events in the
vault. Notes that change are queued to the same worker once edits settle;
deleted notes are removed from the bestiary. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	isolated, _ := cmd.Flags().GetBool("isolated")
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := openScanner(ctx, cfg, isolated, os.Stdout)
	if err != nil {
		return err
	}
	defer sc.Close()

	log, _ := newLogger(cfg)
	w, err := watch.New(sc.vault, cfg.Vault.Debounce, log)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := sc.full(ctx, false); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "watching %s\n", sc.vault.Root())
	err = w.Run(ctx, sc.apply)
	t := sc.sess.host.Totals()
	fmt.Fprintf(os.Stdout, "\nprocessed: %d, updated: %d\n", t.Processed, t.Updated)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// apply brings the store in line with one settled batch of vault changes.
func (s *scanner) apply(ctx context.Context, b watch.Batch) error {
	if _, err := s.remove(ctx, b.Removed); err != nil {
		return err
	}
	_, _, _, err := s.process(ctx, b.Changed)
	return err
}

func init() {
	watchCmd.Flags().Bool("isolated", false, "run the worker as a separate process")

	rootCmd.AddCommand(watchCmd)
}
