package fs

import (
	"context"
	"errors"
	"os"
)

// wraps os.Rename and os.Remove with retry logic.
// Rename is the atomic finalize step for backups and restores.

func renameWithRetry(ctx context.Context, p Policy, oldPath, newPath string) error {
	return Retry(ctx, p, "rename", func() error {
		return os.Rename(oldPath, newPath)
	})
}

// removeWithRetry treats an already missing file as removed.
func removeWithRetry(ctx context.Context, p Policy, path string) error {
	return Retry(ctx, p, "remove", func() error {
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	})
}
