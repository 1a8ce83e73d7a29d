// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bestiary/internal/bestiary"
	"github.com/pdiddy/bestiary/internal/host"
	"github.com/pdiddy/bestiary/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Extract stat blocks from the vault into the bestiary",
	Long: `Scan lists every note in the vault and queues the notes that changed
since the last scan for extraction. Notes that carry a stat block are
stored; creatures whose notes were deleted or lost their stat block are
removed. Use --force to re-extract every note.`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	isolated, _ := cmd.Flags().GetBool("isolated")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := openScanner(cmd.Context(), cfg, isolated, os.Stdout)
	if err != nil {
		return err
	}
	defer sc.Close()

	_, err = sc.full(cmd.Context(), force)
	return err
}

// trackingSink saves records to the store, reports each one, and remembers
// which notes produced a record in the current batch.
type trackingSink struct {
	store *bestiary.Store
	out   io.Writer

	mu    sync.Mutex
	saved map[string]bool
}

func (t *trackingSink) Save(ctx context.Context, records []*types.Record) error {
	if err := t.store.Save(ctx, records); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.saved == nil {
		t.saved = make(map[string]bool)
	}
	for _, rec := range records {
		t.saved[rec.SourcePath] = true
		fmt.Fprintf(t.out, "indexed %s (%s)\n", rec.Name, rec.SourcePath)
	}
	return nil
}

// take returns and resets the set of notes saved since the last call.
func (t *trackingSink) take() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	saved := t.saved
	t.saved = nil
	return saved
}

// scanner keeps the store in step with the vault through a worker session.
type scanner struct {
	vault *host.Vault
	store *bestiary.Store
	sink  *trackingSink
	sess  *session
	out   io.Writer
}

// openScanner opens the vault and store of cfg and starts a worker session.
func openScanner(ctx context.Context, cfg types.Config, isolated bool, out io.Writer) (*scanner, error) {
	log, level := newLogger(cfg)

	vault, err := host.NewVault(cfg.Vault)
	if err != nil {
		return nil, err
	}
	store, err := bestiary.NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	sink := &trackingSink{store: store, out: out}
	sess, err := startSession(ctx, vault, sink, sessionOptions{
		cfg:        cfg,
		log:        log,
		level:      level,
		isolated:   isolated,
		workerArgs: childWorkerArgs(),
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &scanner{vault: vault, store: store, sink: sink, sess: sess, out: out}, nil
}

// childWorkerArgs forwards the config file to a child worker. Verbosity
// follows over the conduit once the session starts.
func childWorkerArgs() []string {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		return []string{"--config", cfgFile}
	}
	return nil
}

// Close stops the worker session and closes the store.
func (s *scanner) Close() error {
	sessErr := s.sess.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return sessErr
}

// full scans the whole vault. Unless force is set, notes whose stored
// modification time is unchanged are skipped.
func (s *scanner) full(ctx context.Context, force bool) (bestiary.RunSummary, error) {
	runID, err := s.store.BeginRun(ctx)
	if err != nil {
		return bestiary.RunSummary{}, err
	}
	sum := bestiary.RunSummary{ID: runID}

	notes, err := s.vault.List()
	if err != nil {
		return sum, err
	}
	stored, err := s.store.ModTimes(ctx)
	if err != nil {
		return sum, err
	}

	var (
		queue   []string
		skipped int
		present = make(map[string]bool, len(notes))
	)
	for _, note := range notes {
		present[note] = true
		if !force {
			if mt, ok := stored[note]; ok {
				if cur, err := s.vault.ModTime(note); err == nil && cur == mt {
					skipped++
					continue
				}
			}
		}
		queue = append(queue, note)
	}

	var gone []string
	for note := range stored {
		if !present[note] {
			gone = append(gone, note)
		}
	}
	slices.Sort(gone)
	deleted, err := s.remove(ctx, gone)
	if err != nil {
		return sum, err
	}

	processed, updated, removed, err := s.process(ctx, queue)
	if err != nil {
		return sum, err
	}

	sum.Queued = len(queue)
	sum.Processed = processed
	sum.Updated = updated
	sum.Deleted = deleted + removed
	fmt.Fprintf(s.out, "\nqueued: %d, skipped: %d, updated: %d, removed: %d\n",
		sum.Queued, skipped, sum.Updated, sum.Deleted)

	return sum, s.store.FinishRun(ctx, sum)
}

// process extracts paths and removes the stored creatures of notes that no
// longer produce a record.
func (s *scanner) process(ctx context.Context, paths []string) (processed, updated, removed int, err error) {
	s.sink.take()
	batch, err := s.sess.batch(ctx, paths)
	if err != nil {
		return 0, 0, 0, err
	}
	saved := s.sink.take()

	var stale []string
	for _, p := range paths {
		if !saved[p] {
			stale = append(stale, p)
		}
	}
	removed, err = s.remove(ctx, stale)
	return batch.Processed, batch.Updated, removed, err
}

// remove deletes the creatures stored for paths and reports how many
// existed.
func (s *scanner) remove(ctx context.Context, paths []string) (int, error) {
	n := 0
	for _, p := range paths {
		ok, err := s.store.Delete(ctx, p)
		if err != nil {
			return n, err
		}
		if ok {
			fmt.Fprintf(s.out, "removed %s\n", p)
			n++
		}
	}
	return n, nil
}

func init() {
	scanCmd.Flags().Bool("force", false, "re-extract every note, even unchanged ones")
	scanCmd.Flags().Bool("isolated", false, "run the worker as a separate process")

	rootCmd.AddCommand(scanCmd)
}
