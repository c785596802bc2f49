// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// XPReplayer finishes XP awards whose event was recorded but not applied.
type XPReplayer interface {
	ReplayPending(ctx context.Context) (applied int, err error)
}

// OrphanSweeper removes comments whose project no longer exists.
type OrphanSweeper interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

// XPReplayJob creates a job that replays pending XP events.
func XPReplayJob(r XPReplayer, interval time.Duration, logger *zap.Logger) Job {
	if interval <= 0 {
		interval = time.Minute
	}
	return Job{
		Name:     "xp-outbox-replay",
		Interval: interval,
		Timeout:  interval,
		Run: func(ctx context.Context) error {
			n, err := r.ReplayPending(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("replayed pending xp events", zap.Int("applied", n))
			}
			return nil
		},
	}
}

// OrphanCommentCleanupJob creates a job that removes comments left behind by
// deleted projects.
func OrphanCommentCleanupJob(s OrphanSweeper, logger *zap.Logger) Job {
	return Job{
		Name:     "orphan-comment-cleanup",
		Interval: 6 * time.Hour,
		Timeout:  5 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := s.DeleteOrphans(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("removed orphaned comments", zap.Int64("deleted", n))
			}
			return nil
		},
	}
}

// SessionSweeper closes tracked sessions that have gone idle.
type SessionSweeper interface {
	CloseInactive(ctx context.Context, threshold time.Duration) (int64, error)
}

// InactiveSessionJob closes sessions idle for longer than threshold.
func InactiveSessionJob(s SessionSweeper, threshold time.Duration, logger *zap.Logger) Job {
	if threshold <= 0 {
		threshold = 24 * time.Hour
	}
	return Job{
		Name:     "inactive-session-sweep",
		Interval: 15 * time.Minute,
		Timeout:  time.Minute,
		Run: func(ctx context.Context) error {
			n, err := s.CloseInactive(ctx, threshold)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("closed inactive sessions", zap.Int64("closed", n))
			}
			return nil
		},
	}
}

// StatsRecorder snapshots the day's content counts and prunes old rows.
type StatsRecorder interface {
	SnapshotContent(ctx context.Context, day time.Time) (map[string]int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DailyStatsJob recounts today's content every hour and drops stats older
// than retention.
func DailyStatsJob(s StatsRecorder, retention time.Duration, logger *zap.Logger) Job {
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}
	return Job{
		Name:     "daily-stats",
		Interval: time.Hour,
		Timeout:  2 * time.Minute,
		Run: func(ctx context.Context) error {
			now := time.Now().UTC()
			counts, err := s.SnapshotContent(ctx, now)
			if err != nil {
				return err
			}
			logger.Debug("content stats snapshot", zap.Any("counts", counts))

			n, err := s.DeleteOlderThan(ctx, now.Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("pruned daily stats", zap.Int64("deleted", n))
			}
			return nil
		},
	}
}
