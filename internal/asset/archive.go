package asset

import (
	"fmt"
	"os"
	"path/filepath"
)

// Archive keeps receipts that could not be published on local disk so an
// admin can resend them by hand. A zero Archive (empty Dir) is disabled.
type Archive struct {
	Dir string
}

// Enabled reports whether a directory is configured.
func (a Archive) Enabled() bool { return a.Dir != "" }

// Save writes u.Body to Dir/u.Filename and returns the path written.
func (a Archive) Save(u Upload) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	if err := os.MkdirAll(a.Dir, 0o750); err != nil {
		return "", fmt.Errorf("asset: archive dir: %w", err)
	}
	// Base strips any directory components smuggled into the filename.
	p := filepath.Join(a.Dir, filepath.Base(u.Filename))
	if err := os.WriteFile(p, u.Body, 0o640); err != nil {
		return "", fmt.Errorf("asset: archive write: %w", err)
	}
	return p, nil
}
