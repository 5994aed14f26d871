package mediacore

import (
	"context"
	"fmt"
	"time"
)

// SweepExpiredTempFiles deletes temporary files older than the configured
// TTL. Object deletion is best effort; the row is removed even when the
// store delete fails, matching finalize's copy-then-delete bias toward stray
// objects over dangling records.
func (s *service) SweepExpiredTempFiles(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.policy.TempFileTTL)
	expired, err := s.repo.ListTemporaryFilesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing expired temp files: %w", err)
	}

	removed := 0
	for _, temp := range expired {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.blob.DeleteVersion(ctx, temp.ObjectKey, temp.StoreVersionID); err != nil {
			s.logger.Warn("could not delete expired temp object",
				"temp_file_id", temp.ID, "key", temp.ObjectKey, "error", err)
		}
		if err := s.repo.DeleteTemporaryFile(ctx, temp.ID); err != nil {
			s.logger.Error("could not delete expired temp file record",
				"temp_file_id", temp.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 || len(expired) > 0 {
		s.logger.Info("temp file sweep finished",
			"expired", len(expired), "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
