package service

import (
	"context"
	"fmt"
	"time"
)

// CleanupAudit deletes audit entries older than the retention window
func (s *Service) CleanupAudit(ctx context.Context, now time.Time) (*RunReport, error) {
	started := time.Now()
	report := &RunReport{Job: JobAuditCleanup}

	cutoff := now.AddDate(0, 0, -s.opts.RetentionDays)
	deleted, err := s.Audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		err = fmt.Errorf("failed to clean up audit log: %w", err)
		s.observe(report, started, err)
		return report, err
	}

	report.Processed = int(deleted)
	s.observe(report, started, nil)
	return report, nil
}
