package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneRunLogs deletes per-run log files in dir matching pattern whose
// modification time is older than retentionDays. The file named keep is never
// removed. It returns the number of files deleted; retentionDays <= 0 disables
// pruning.
func PruneRunLogs(logger *slog.Logger, dir, pattern string, retentionDays int, keep string) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}

	keepAbs, _ := filepath.Abs(keep)
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil && abs == keepAbs {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "failed to prune run log", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of paths.log_dir"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("pruned run logs",
			String(FieldEventType, "log_pruned"),
			Int("removed", removed),
			Int("retention_days", retentionDays),
		)
	}
	return removed
}
