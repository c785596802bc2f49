// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/waffle/config"
	commentstore "github.com/devcanvas/devcanvas/internal/app/store/comments"
	"github.com/devcanvas/devcanvas/internal/app/store/sessions"
	statsstore "github.com/devcanvas/devcanvas/internal/app/store/stats"
	"github.com/devcanvas/devcanvas/internal/app/system/engagement"
	"github.com/devcanvas/devcanvas/internal/app/system/tasks"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// It applies timeout overrides from the environment and starts the
// background task runner. Returning a non-nil error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		cur := timeouts.Current()
		logger.Info("timeouts overridden from environment",
			zap.Int("applied", n),
			zap.Duration("ping", cur.Ping),
			zap.Duration("short", cur.Short),
			zap.Duration("medium", cur.Medium),
			zap.Duration("long", cur.Long),
		)
	}

	startTaskRunner(appCfg, deps, logger)
	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner registers the maintenance jobs and starts them.
func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	db := deps.MongoDatabase
	stats := statsstore.New(db)
	taskRunner = tasks.New(logger)
	taskRunner.Observe(func(job string, d time.Duration, err error) {
		deps.Metrics.JobRun(job, d, err)
		ctx, cancel := timeouts.ShortCtx(context.Background())
		defer cancel()
		if rerr := stats.RecordJobRun(ctx, time.Now(), job, err != nil); rerr != nil {
			logger.Warn("failed to record job run", zap.String("job", job), zap.Error(rerr))
		}
	})

	// Finish XP awards whose event was written but never applied.
	eng := engagement.New(db, deps.Metrics, logger)
	taskRunner.Register(tasks.XPReplayJob(eng, appCfg.XPReplayInterval, logger))

	taskRunner.Register(tasks.OrphanCommentCleanupJob(commentstore.New(db), logger))
	taskRunner.Register(tasks.InactiveSessionJob(sessions.New(db), appCfg.SessionIdleAfter, logger))
	taskRunner.Register(tasks.DailyStatsJob(stats, 0, logger))

	taskRunner.Start()
}
