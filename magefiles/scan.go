//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Scan builds the CLI and extracts stat blocks from the vault configured in
// bestiary.yaml into the bestiary.
func Scan() error {
	mg.Deps(Build)
	fmt.Println("[scan] Extract stat blocks from the vault.")
	return sh.RunV(binPath, "scan")
}

// Rescan re-extracts every note, ignoring stored modification times.
func Rescan() error {
	mg.Deps(Build)
	fmt.Println("[scan] Re-extract every note in the vault.")
	return sh.RunV(binPath, "scan", "--force")
}

// Watch builds the CLI and follows vault changes until interrupted.
func Watch() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "watch")
}

// Export writes the bestiary to export.yaml and export.json.
func Export() error {
	mg.Deps(Build)
	for _, format := range []string{"yaml", "json"} {
		if err := sh.RunV(binPath, "export", "--format", format); err != nil {
			return err
		}
	}
	return nil
}
