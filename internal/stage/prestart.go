// Package stage implements the Stage Controller / PreStart step from
// spec.md §4.6: running every executable under a prestart directory, either
// serially or in parallel.
package stage

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// RunPrestart runs every entry in dir via "/bin/sh -c <entry>", per
// spec.md §4.6. A missing or non-directory dir is logged as a warning, not
// a fatal error — the caller (internal/airupd) is the only one allowed to
// treat boot-sequence failure as fatal, and a prestart directory is
// optional by design.
func RunPrestart(ctx context.Context, dir string, paral bool, log *zap.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("prestart directory unavailable, skipping", zap.String("dir", dir), zap.Error(err))

		return
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)

		if paral {
			// Fire-and-forget per spec.md §4.6: paral=true means
			// RunPrestart itself does not wait for any entry to finish.
			go runOne(ctx, path, log)

			continue
		}

		runOne(ctx, path, log)
	}
}

func runOne(ctx context.Context, path string, log *zap.Logger) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		log.Warn("prestart entry failed", zap.String("entry", path), zap.Error(err))
	}
}
