package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeReplayer struct {
	n   int
	err error
}

func (f *fakeReplayer) ReplayPending(context.Context) (int, error) { return f.n, f.err }

type fakeSweeper struct{ calls int }

func (f *fakeSweeper) DeleteOrphans(context.Context) (int64, error) {
	f.calls++
	return 3, nil
}

func TestXPReplayJob(t *testing.T) {
	job := XPReplayJob(&fakeReplayer{n: 2}, 0, zap.NewNop())
	if job.Name != "xp-outbox-replay" || job.Interval != time.Minute {
		t.Errorf("job = %+v", job)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v", err)
	}

	boom := errors.New("boom")
	failing := XPReplayJob(&fakeReplayer{err: boom}, time.Second, zap.NewNop())
	if err := failing.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() = %v, want %v", err, boom)
	}
}

func TestOrphanCommentCleanupJob(t *testing.T) {
	s := &fakeSweeper{}
	job := OrphanCommentCleanupJob(s, zap.NewNop())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s.calls != 1 {
		t.Errorf("DeleteOrphans called %d times", s.calls)
	}
}

type fakeSessions struct{ threshold time.Duration }

func (f *fakeSessions) CloseInactive(_ context.Context, threshold time.Duration) (int64, error) {
	f.threshold = threshold
	return 1, nil
}

func TestInactiveSessionJob(t *testing.T) {
	s := &fakeSessions{}
	job := InactiveSessionJob(s, 0, zap.NewNop())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s.threshold != 24*time.Hour {
		t.Errorf("threshold = %v, want 24h default", s.threshold)
	}
}

type fakeStats struct {
	day    time.Time
	cutoff time.Time
	err    error
}

func (f *fakeStats) SnapshotContent(_ context.Context, day time.Time) (map[string]int64, error) {
	f.day = day
	return map[string]int64{"projects": 1}, f.err
}

func (f *fakeStats) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 0, nil
}

func TestDailyStatsJob(t *testing.T) {
	s := &fakeStats{}
	job := DailyStatsJob(s, 0, zap.NewNop())
	if job.Name != "daily-stats" || job.Interval != time.Hour {
		t.Errorf("job = %+v", job)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s.day.IsZero() {
		t.Error("SnapshotContent was not called")
	}
	if age := s.day.Sub(s.cutoff); age < 364*24*time.Hour || age > 366*24*time.Hour {
		t.Errorf("retention cutoff %v before snapshot, want about 365 days", age)
	}

	boom := errors.New("boom")
	failing := DailyStatsJob(&fakeStats{err: boom}, time.Hour, zap.NewNop())
	if err := failing.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() = %v, want %v", err, boom)
	}
}
