// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bestiary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ExportYAML writes the stored creatures to <dir>/export.yaml and returns
// the file path. name filters creatures the way Creatures does.
func (s *Store) ExportYAML(ctx context.Context, name string) (string, error) {
	records, err := s.Creatures(ctx, name)
	if err != nil {
		return "", fmt.Errorf("querying for export: %w", err)
	}

	path := filepath.Join(s.dir, "export.yaml")
	data, err := yaml.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the stored creatures to <dir>/export.json and returns
// the file path.
func (s *Store) ExportJSON(ctx context.Context, name string) (string, error) {
	records, err := s.Creatures(ctx, name)
	if err != nil {
		return "", fmt.Errorf("querying for export: %w", err)
	}

	path := filepath.Join(s.dir, "export.json")
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}
