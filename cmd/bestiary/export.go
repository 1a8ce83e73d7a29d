// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bestiary/internal/bestiary"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the bestiary to YAML or JSON",
	Long: `Export writes every stored creature, or those matching --name, to
export.yaml or export.json in the store directory. Each creature keeps its
frontmatter field order with nested sections normalized into entries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		name, _ := cmd.Flags().GetString("name")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := bestiary.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close()

		var path string
		switch format {
		case "yaml", "":
			path, err = store.ExportYAML(cmd.Context(), name)
		case "json":
			path, err = store.ExportJSON(cmd.Context(), name)
		default:
			return fmt.Errorf("unsupported format %q: use yaml or json", format)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	exportCmd.Flags().String("name", "", "export only creatures whose name contains this text")

	rootCmd.AddCommand(exportCmd)
}
