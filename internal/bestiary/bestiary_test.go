package bestiary

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bestiary/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(types.StoreConfig{Dir: filepath.Join(t.TempDir(), "store"), MaxResults: 20})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func creature(name, path string, mtime int64, sections map[string][]types.Entry) *types.Record {
	rec := &types.Record{
		Name:       name,
		SourcePath: path,
		ModTime:    mtime,
		Fields: types.Metadata{
			types.P("statblock", types.Bool(true)),
			types.P("name", types.String(name)),
			types.P("ac", types.Int(13)),
		},
	}
	for _, field := range types.DefaultNestedFields {
		entries, ok := sections[field]
		if !ok {
			continue
		}
		rec.Fields.Set(field, types.EntriesValue(entries))
		rec.Sections = append(rec.Sections, field)
	}
	return rec
}

func sampleCreatures() []*types.Record {
	return []*types.Record{
		creature("Orc", "monsters/orc.md", 100, map[string][]types.Entry{
			"traits":  {{Name: "Aggressive", Text: "As a bonus action, the orc can move toward a hostile creature"}},
			"actions": {{Name: "Greataxe", Text: "Melee Weapon Attack: +5 to hit"}, {Name: "Javelin", Text: "Ranged Weapon Attack: +5 to hit"}},
		}),
		creature("Goblin", "monsters/goblin.md", 200, map[string][]types.Entry{
			"traits":  {{Name: "Nimble Escape", Text: "The goblin can take the Disengage or Hide action as a bonus action"}},
			"actions": {{Name: "Scimitar", Text: "Melee Weapon Attack: +4 to hit"}},
		}),
		creature("Young Red Dragon", "monsters/dragons/young-red.md", 300, map[string][]types.Entry{
			"actions":           {{Name: "Fire Breath", Text: "The dragon exhales fire in a 30-foot cone"}},
			"legendary_actions": {{Name: "Tail Attack", Text: "The dragon makes a tail attack"}},
		}),
	}
}

func saveSample(t *testing.T, store *Store) {
	t.Helper()
	if err := store.Save(context.Background(), sampleCreatures()); err != nil {
		t.Fatal(err)
	}
}

// --- schema tests ---

func TestNewStoreCreatesSchema(t *testing.T) {
	store := testStore(t)

	for _, table := range []string{"creatures", "entries", "entries_fts", "scan_runs"} {
		var count int
		err := store.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}

	if _, err := os.Stat(filepath.Join(store.Dir(), dbFile)); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestNewStoreReopensExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	first, err := NewStore(types.StoreConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Save(context.Background(), sampleCreatures()[:1]); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := NewStore(types.StoreConfig{Dir: dir})
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer second.Close()

	if _, err := second.Get(context.Background(), "monsters/orc.md"); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}

// --- save tests ---

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := testStore(t)
	saveSample(t, store)

	rec, err := store.Get(context.Background(), "monsters/orc.md")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "Orc" || rec.ModTime != 100 {
		t.Errorf("got %s mtime %d, want Orc mtime 100", rec, rec.ModTime)
	}

	wantKeys := []string{"statblock", "name", "ac", "traits", "actions"}
	gotKeys := rec.Fields.Keys()
	if strings.Join(gotKeys, ",") != strings.Join(wantKeys, ",") {
		t.Errorf("field order = %v, want %v", gotKeys, wantKeys)
	}
	if ac, _ := rec.Fields.Get("ac"); ac.Text() != "13" {
		t.Errorf("ac = %q, want 13", ac.Text())
	}
	actions := rec.Entries("actions")
	if len(actions) != 2 || actions[1].Name != "Javelin" {
		t.Errorf("actions = %+v", actions)
	}
	if len(rec.Sections) != 2 || rec.Sections[0] != "traits" {
		t.Errorf("sections = %v", rec.Sections)
	}
}

func TestGetMissing(t *testing.T) {
	store := testStore(t)
	_, err := store.Get(context.Background(), "nope.md")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveReplacesEntries(t *testing.T) {
	store := testStore(t)
	saveSample(t, store)
	ctx := context.Background()

	updated := creature("Orc Chief", "monsters/orc.md", 150, map[string][]types.Entry{
		"actions": {{Name: "Warhammer", Text: "Melee Weapon Attack: +6 to hit"}},
	})
	if err := store.Save(ctx, []*types.Record{updated}); err != nil {
		t.Fatal(err)
	}

	results, err := store.Retrieve(ctx, QueryOptions{Name: "orc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Name != "Warhammer" || results[0].Creature != "Orc Chief" {
		t.Errorf("results = %+v, want only Warhammer of Orc Chief", results)
	}

	old, err := store.Retrieve(ctx, QueryOptions{Query: "Greataxe"})
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 0 {
		t.Errorf("stale entry still indexed: %+v", old)
	}
}

func TestDelete(t *testing.T) {
	store := testStore(t)
	saveSample(t, store)
	ctx := context.Background()

	removed, err := store.Delete(ctx, "monsters/goblin.md")
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v; want true, nil", removed, err)
	}
	removed, err = store.Delete(ctx, "monsters/goblin.md")
	if err != nil || removed {
		t.Errorf("second Delete = %v, %v; want false, nil", removed, err)
	}

	results, err := store.Retrieve(ctx, QueryOptions{Query: "Nimble"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("deleted creature still searchable: %+v", results)
	}
}

func TestModTimes(t *testing.T) {
	store := testStore(t)
	saveSample(t, store)

	times, err := store.ModTimes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{
		"monsters/orc.md":               100,
		"monsters/goblin.md":            200,
		"monsters/dragons/young-red.md": 300,
	}
	if len(times) != len(want) {
		t.Fatalf("got %d mod times, want %d", len(times), len(want))
	}
	for path, mt := range want {
		if times[path] != mt {
			t.Errorf("%s = %d, want %d", path, times[path], mt)
		}
	}
}

// --- retrieve tests ---

func TestRetrieve(t *testing.T) {
	store := testStore(t)
	saveSample(t, store)

	tests := []struct {
		name      string
		opts      QueryOptions
		wantCount int
		wantFirst string
	}{
		{"full text", QueryOptions{Query: "bonus"}, 2, ""},
		{"full text on name", QueryOptions{Query: "Scimitar"}, 1, "Scimitar"},
		{"field filter", QueryOptions{Field: "actions"}, 4, "Scimitar"},
		{"name filter", QueryOptions{Name: "dragon"}, 2, "Fire Breath"},
		{"full text and field", QueryOptions{Query: "attack", Field: "legendary_actions"}, 1, "Tail Attack"},
		{"max results", QueryOptions{Field: "actions", MaxResults: 1}, 1, "Scimitar"},
		{"no match", QueryOptions{Query: "beholder"}, 0, ""},
		{"all", QueryOptions{}, 7, "Scimitar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Retrieve(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("Retrieve: %v", err)
			}
			if len(results) != tt.wantCount {
				t.Fatalf("got %d results, want %d: %+v", len(results), tt.wantCount, results)
			}
			if tt.wantFirst != "" && results[0].Name != tt.wantFirst {
				t.Errorf("first = %q, want %q", results[0].Name, tt.wantFirst)
			}
		})
	}
}

func TestRetrieveNameFilterEscapesWildcards(t *testing.T) {
	store := testStore(t)
	saveSample(t, store)

	results, err := store.Retrieve(context.Background(), QueryOptions{Name: "%"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("literal %% matched %d entries", len(results))
	}
}

func TestQueryOptionsIsEmpty(t *testing.T) {
	if !(QueryOptions{MaxResults: 5}).IsEmpty() {
		t.Error("MaxResults alone should be empty")
	}
	if (QueryOptions{Field: "traits"}).IsEmpty() {
		t.Error("field filter should not be empty")
	}
}

// --- scan run tests ---

func TestScanRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, err := store.LastRun(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("LastRun on empty store = %v, want ErrNotFound", err)
	}

	id, err := store.BeginRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 36 {
		t.Errorf("run id %q is not a UUID", id)
	}
	if err := store.FinishRun(ctx, RunSummary{ID: id, Queued: 3, Processed: 3, Updated: 1, Deleted: 2}); err != nil {
		t.Fatal(err)
	}

	last, err := store.LastRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != id || last.Processed != 3 || last.Updated != 1 || last.Deleted != 2 {
		t.Errorf("last run = %+v", last)
	}
	if last.Finished.Before(last.Started) {
		t.Errorf("finished %v before started %v", last.Finished, last.Started)
	}

	if err := store.FinishRun(ctx, RunSummary{ID: "missing"}); err == nil {
		t.Error("expected error finishing unknown run")
	}
}

// --- export tests ---

func TestExportYAML(t *testing.T) {
	store := testStore(t)
	saveSample(t, store)

	path, err := store.ExportYAML(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var records []*types.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		t.Fatalf("export is not valid YAML: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Name != "Goblin" {
		t.Errorf("first = %q, want Goblin (sorted by name)", records[0].Name)
	}
	if got := records[0].Entries("traits"); len(got) != 1 || got[0].Name != "Nimble Escape" {
		t.Errorf("traits = %+v", got)
	}
}

func TestExportJSONFiltersByName(t *testing.T) {
	store := testStore(t)
	saveSample(t, store)

	path, err := store.ExportJSON(context.Background(), "orc")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "export.json" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var records []*types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].SourcePath != "monsters/orc.md" {
		t.Errorf("records = %v", records)
	}
}

func TestExportEmptyStore(t *testing.T) {
	store := testStore(t)
	path, err := store.ExportJSON(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("empty export = %q, want []", data)
	}
}
