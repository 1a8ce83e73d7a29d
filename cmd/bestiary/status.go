// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bestiary/internal/bestiary"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the size of the bestiary and the last scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := bestiary.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close()

		times, err := store.ModTimes(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("creatures: %d\n", len(times))

		last, err := store.LastRun(cmd.Context())
		if errors.Is(err, bestiary.ErrNotFound) {
			fmt.Println("no scans yet")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("last scan: %s (%s)\n", last.Started.Local().Format(time.DateTime), last.ID)
		if last.Finished.IsZero() {
			fmt.Println("  did not finish")
			return nil
		}
		fmt.Printf("  queued: %d, processed: %d, updated: %d, removed: %d\n",
			last.Queued, last.Processed, last.Updated, last.Deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
