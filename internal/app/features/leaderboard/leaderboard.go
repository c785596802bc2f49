// internal/app/features/leaderboard/leaderboard.go
package leaderboard

import (
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/reqparam"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/devcanvas/devcanvas/internal/domain/xp"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Limits for ?limit.
const (
	defaultLimit = 50
	maxLimit     = 100
)

type Handler struct {
	users  *userstore.Store
	logger *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{users: userstore.New(db), logger: logger}
}

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.serve)
	return r
}

// Entry is one leaderboard row. Rank starts at 1 and follows xp desc, then
// registration order.
type Entry struct {
	Rank int `json:"rank"`
	models.PublicUser
}

type response struct {
	Tier    string  `json:"tier,omitempty"`
	Entries []Entry `json:"entries"`
}

// parseTier accepts a tier name in any case. Empty means every tier.
func parseTier(s string) (xp.Tier, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	for _, t := range xp.AllTiers() {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	tier, ok := parseTier(query.Get(r, "tier"))
	if !ok {
		jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("tier", "Unknown tier."))
		return
	}
	limit := reqparam.Int(r, "limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	users, err := h.users.Leaderboard(ctx, tier, limit)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	entries := make([]Entry, len(users))
	for i, u := range users {
		entries[i] = Entry{Rank: i + 1, PublicUser: u.Public()}
	}
	jsonutil.OK(w, response{Tier: string(tier), Entries: entries})
}
