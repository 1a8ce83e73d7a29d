// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bestiary/internal/bestiary"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search creature traits, actions, and reactions",
	Long: `Query searches stored entries using FTS5 full-text search over entry
names and text, structured filters (--field, --name), or both.

Examples:
  bestiary query "bonus action"
  bestiary query --field legendary_actions --name dragon
  bestiary query poison --json`,
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := bestiary.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	field, _ := cmd.Flags().GetString("field")
	name, _ := cmd.Flags().GetString("name")
	limit, _ := cmd.Flags().GetInt("limit")
	opts := bestiary.QueryOptions{
		Query:      strings.Join(args, " "),
		Field:      field,
		Name:       name,
		MaxResults: limit,
	}
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide search text, --field, or --name")
	}

	results, err := store.Retrieve(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatQueryOutput(os.Stdout, results, jsonOutput)
}

func formatQueryOutput(w io.Writer, results []bestiary.QueryResult, jsonOutput bool) error {
	if jsonOutput {
		if results == nil {
			results = []bestiary.QueryResult{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-20s  %-18s  %-24s  %s\n", "Rank", "Creature", "Field", "Entry", "Text")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range results {
		fmt.Fprintf(w, "%-4d  %-20s  %-18s  %-24s  %s\n",
			i+1, truncate(r.Creature, 20), truncate(r.Field, 18), truncate(r.Name, 24), truncate(r.Text, 40))
	}

	fmt.Fprintf(w, "\n%d results\n", len(results))
	return nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	queryCmd.Flags().String("field", "", "filter by nested field, e.g. actions or legendary_actions")
	queryCmd.Flags().String("name", "", "filter by creature name (substring)")
	queryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	queryCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(queryCmd)
}
