// internal/app/features/stats/stats.go
package stats

import (
	"net/http"
	"time"

	statsstore "github.com/devcanvas/devcanvas/internal/app/store/stats"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/reqparam"
	"github.com/devcanvas/devcanvas/internal/app/system/tasks"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Range limits for ?days.
const (
	defaultDays = 30
	maxDays     = 365
)

// JobSource reports the live state of the background jobs.
type JobSource interface {
	Status() []tasks.JobStatus
}

// Handler serves the admin statistics endpoints.
type Handler struct {
	store  *statsstore.Store
	jobs   JobSource
	logger *zap.Logger
}

// NewHandler creates a stats Handler. jobs may be nil when no runner is
// active; GET /jobs then returns an empty list.
func NewHandler(db *mongo.Database, jobs JobSource, logger *zap.Logger) *Handler {
	return &Handler{store: statsstore.New(db), jobs: jobs, logger: logger}
}

// Routes returns the admin-only stats router, mounted at /admin/stats.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(models.RoleAdmin))
	r.Get("/", h.serveRange)
	r.Get("/today", h.serveToday)
	r.Get("/jobs", h.serveJobs)
	return r
}

type rangeResponse struct {
	From   time.Time               `json:"from"`
	To     time.Time               `json:"to"`
	Days   []statsstore.DailyStats `json:"days"`
	Totals map[string]int64        `json:"totals"`
	Jobs   map[string]int64        `json:"jobs"`
}

// serveRange handles GET /admin/stats?days=N: stored daily content counts
// for the last N days (today included) plus job run totals for the range.
func (h *Handler) serveRange(w http.ResponseWriter, r *http.Request) {
	days := reqparam.Int(r, "days", defaultDays)
	if days < 1 || days > maxDays {
		jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("days", "Days must be between 1 and 365."))
		return
	}

	to := statsstore.TruncateToDay(time.Now())
	from := to.AddDate(0, 0, -int(days-1))

	ctx, cancel := timeouts.MediumCtx(r.Context())
	defer cancel()

	series, err := h.store.GetRange(ctx, from, to, statsstore.TypeContent)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	totals, err := h.store.SumCounters(ctx, from, to, statsstore.TypeContent)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jobs, err := h.store.SumCounters(ctx, from, to, statsstore.TypeJobs)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	jsonutil.OK(w, rangeResponse{From: from, To: to, Days: series, Totals: totals, Jobs: jobs})
}

type todayResponse struct {
	Date   time.Time        `json:"date"`
	Counts map[string]int64 `json:"counts"`
}

// serveToday counts today's content live, without waiting for the hourly job.
func (h *Handler) serveToday(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.MediumCtx(r.Context())
	defer cancel()

	now := time.Now()
	counts, err := h.store.CountContent(ctx, now)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, todayResponse{Date: statsstore.TruncateToDay(now), Counts: counts})
}

// serveJobs reports per-job counters since the process started.
func (h *Handler) serveJobs(w http.ResponseWriter, r *http.Request) {
	status := []tasks.JobStatus{}
	if h.jobs != nil {
		status = h.jobs.Status()
	}
	jsonutil.OK(w, map[string]any{"jobs": status})
}
