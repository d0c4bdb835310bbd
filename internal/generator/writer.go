package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Write materializes the rendered files under dir, creating
// directories as needed.
func (a *App) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for _, rel := range a.Paths() {
		dest := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, []byte(a.Files[rel]), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", rel, err)
		}
	}
	return nil
}

// Paths returns the rendered file paths in stable order.
func (a *App) Paths() []string {
	paths := make([]string, 0, len(a.Files))
	for rel := range a.Files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}
