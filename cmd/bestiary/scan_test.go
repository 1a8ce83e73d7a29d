package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bestiary/internal/bestiary"
	"github.com/pdiddy/bestiary/internal/watch"
	"github.com/pdiddy/bestiary/pkg/types"
)

const orcNote = `---
statblock: true
name: Orc
ac: 13
traits:
  - name: Aggressive
    desc: As a bonus action, the orc moves toward a hostile creature.
actions:
  - "**Greataxe.** Melee Weapon Attack: +5 to hit."
---
The orc is a savage raider.
`

const goblinNote = `---
statblock: true
name: Goblin
actions:
  Scimitar: "Melee Weapon Attack: +4 to hit."
---
`

func testConfig(t *testing.T) types.Config {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.Vault.Root = t.TempDir()
	cfg.Store.Dir = filepath.Join(t.TempDir(), "store")
	return cfg
}

func writeVaultNote(t *testing.T, cfg types.Config, rel, content string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(cfg.Vault.Root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func newTestScanner(t *testing.T, cfg types.Config) (*scanner, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	sc, err := openScanner(context.Background(), cfg, false, &out)
	require.NoError(t, err)
	t.Cleanup(func() { sc.Close() })
	return sc, &out
}

func TestScanIndexesCreatures(t *testing.T) {
	cfg := testConfig(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeVaultNote(t, cfg, "monsters/orc.md", orcNote, base)
	writeVaultNote(t, cfg, "monsters/goblin.md", goblinNote, base)
	writeVaultNote(t, cfg, "places/tavern.md", "---\nname: The Yawning Portal\n---\n", base)
	writeVaultNote(t, cfg, ".obsidian/ignored.md", orcNote, base)

	sc, out := newTestScanner(t, cfg)
	ctx := context.Background()

	sum, err := sc.full(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Queued)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 2, sum.Updated)
	assert.Contains(t, out.String(), "indexed Orc (monsters/orc.md)")
	assert.Contains(t, out.String(), "indexed Goblin (monsters/goblin.md)")

	orc, err := sc.store.Get(ctx, "monsters/orc.md")
	require.NoError(t, err)
	assert.Equal(t, base.UnixMilli(), orc.ModTime)
	assert.Equal(t, []types.Entry{{Name: "Aggressive", Text: "As a bonus action, the orc moves toward a hostile creature."}}, orc.Entries("traits"))
	assert.Equal(t, []types.Entry{{Name: "Greataxe", Text: "Melee Weapon Attack: +5 to hit."}}, orc.Entries("actions"))

	results, err := sc.store.Retrieve(ctx, bestiary.QueryOptions{Query: "Scimitar"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Goblin", results[0].Creature)

	last, err := sc.store.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, sum.ID, last.ID)
	assert.Equal(t, 2, last.Updated)
}

func TestScanIsIncremental(t *testing.T) {
	cfg := testConfig(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeVaultNote(t, cfg, "orc.md", orcNote, base)
	writeVaultNote(t, cfg, "goblin.md", goblinNote, base)

	sc, out := newTestScanner(t, cfg)
	ctx := context.Background()

	_, err := sc.full(ctx, false)
	require.NoError(t, err)

	out.Reset()
	sum, err := sc.full(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Queued, "unchanged creatures are skipped")
	assert.Contains(t, out.String(), "skipped: 2")

	writeVaultNote(t, cfg, "orc.md", orcNote, base.Add(time.Hour))
	sum, err = sc.full(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Queued)
	assert.Equal(t, 1, sum.Updated)

	sum, err = sc.full(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Queued, "force queues every note")
}

func TestScanRemovesDeletedAndDemotedNotes(t *testing.T) {
	cfg := testConfig(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeVaultNote(t, cfg, "orc.md", orcNote, base)
	writeVaultNote(t, cfg, "goblin.md", goblinNote, base)

	sc, out := newTestScanner(t, cfg)
	ctx := context.Background()
	_, err := sc.full(ctx, false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(cfg.Vault.Root, "goblin.md")))
	writeVaultNote(t, cfg, "orc.md", "---\nname: Orc\n---\nNo stat block any more.\n", base.Add(time.Hour))

	out.Reset()
	sum, err := sc.full(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Deleted)
	assert.Contains(t, out.String(), "removed goblin.md")
	assert.Contains(t, out.String(), "removed orc.md")

	times, err := sc.store.ModTimes(ctx)
	require.NoError(t, err)
	assert.Empty(t, times)
}

func TestScannerApplyWatchBatch(t *testing.T) {
	cfg := testConfig(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeVaultNote(t, cfg, "orc.md", orcNote, base)

	sc, _ := newTestScanner(t, cfg)
	ctx := context.Background()
	_, err := sc.full(ctx, false)
	require.NoError(t, err)

	writeVaultNote(t, cfg, "goblin.md", goblinNote, base)
	require.NoError(t, os.Remove(filepath.Join(cfg.Vault.Root, "orc.md")))

	require.NoError(t, sc.apply(ctx, watch.Batch{Changed: []string{"goblin.md"}, Removed: []string{"orc.md"}}))

	times, err := sc.store.ModTimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"goblin.md": base.UnixMilli()}, times)
}

func TestScanEmptyVault(t *testing.T) {
	cfg := testConfig(t)
	sc, out := newTestScanner(t, cfg)

	sum, err := sc.full(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Queued)
	assert.Contains(t, out.String(), "queued: 0")
}

func TestScanStoresNonFiniteNumbers(t *testing.T) {
	cfg := testConfig(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeVaultNote(t, cfg, "monsters/orc.md", orcNote, base)
	writeVaultNote(t, cfg, "monsters/wraith.md", "---\nstatblock: true\nname: Wraith\ncr: .nan\nhp: .inf\n---\n", base)

	sc, _ := newTestScanner(t, cfg)
	ctx := context.Background()

	sum, err := sc.full(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Updated)

	wraith, err := sc.store.Get(ctx, "monsters/wraith.md")
	require.NoError(t, err)
	cr, ok := wraith.Fields.Get("cr")
	require.True(t, ok)
	assert.Equal(t, "NaN", cr.Text())

	_, err = sc.store.Get(ctx, "monsters/orc.md")
	require.NoError(t, err)
}
