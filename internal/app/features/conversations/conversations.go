// internal/app/features/conversations/conversations.go
package conversations

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	conversationstore "github.com/devcanvas/devcanvas/internal/app/store/conversations"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/reqparam"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// maxParticipants bounds group conversations, caller included.
const maxParticipants = 20

type Handler struct {
	conversations *conversationstore.Store
	users         *userstore.Store
	logger        *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		conversations: conversationstore.New(db),
		users:         userstore.New(db),
		logger:        logger,
	}
}

// Routes returns the conversation routes. Every route requires sign-in and
// conversations the caller is not part of are reported as missing.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/", h.list)
	r.Post("/", h.open)
	r.Get("/{id}/messages", h.messages)
	r.Post("/{id}/messages", h.send)
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, limit := reqparam.Page(r)

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	convs, err := h.conversations.ListForUser(ctx, auth.ViewerID(r), page, limit)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, map[string]any{"conversations": convs})
}

type openInput struct {
	ParticipantIDs []string `json:"participantIds"`
}

// open finds or creates the conversation between the caller and the listed
// users. An existing conversation answers 200, a new one 201.
func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var in openInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	viewer := auth.ViewerID(r)
	ids := []primitive.ObjectID{viewer}
	for _, raw := range in.ParticipantIDs {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
		if err != nil {
			jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("participantIds", fmt.Sprintf("Invalid user id %q.", raw)))
			return
		}
		ids = append(ids, id)
	}
	ids, _ = conversationstore.ParticipantKey(ids)
	if len(ids) < 2 {
		jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("participantIds", "Add at least one other participant."))
		return
	}
	if len(ids) > maxParticipants {
		jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("participantIds", fmt.Sprintf("At most %d participants are allowed.", maxParticipants)))
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	found, err := h.users.GetByIDs(ctx, ids)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	// The caller is already authenticated; only invited users are checked.
	known := make(map[primitive.ObjectID]bool, len(found))
	for _, u := range found {
		known[u.ID] = true
	}
	for _, id := range ids {
		if id != viewer && !known[id] {
			jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("participantIds", fmt.Sprintf("Unknown user %s.", id.Hex())))
			return
		}
	}

	conv, created, err := h.conversations.Open(ctx, ids)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	if created {
		jsonutil.Created(w, conv)
		return
	}
	jsonutil.OK(w, conv)
}

// conversation loads the {id} conversation for the caller.
func (h *Handler) conversation(r *http.Request) (*models.Conversation, error) {
	id, err := reqparam.ObjectID(r, "id", "conversation")
	if err != nil {
		return nil, err
	}
	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	c, err := h.conversations.GetForParticipant(ctx, id, auth.ViewerID(r))
	if errors.Is(err, conversationstore.ErrNotFound) {
		return nil, apperror.NotFound("conversation", id.Hex())
	}
	return c, err
}

type messagesResponse struct {
	Messages   []models.Message    `json:"messages"`
	Pagination reqparam.Pagination `json:"pagination"`
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversation(r)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	page, limit := reqparam.Page(r)

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	msgs, total, err := h.conversations.ListMessages(ctx, conv.ID, page, limit)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, messagesResponse{Messages: msgs, Pagination: reqparam.NewPagination(page, limit, total)})
}

type sendInput struct {
	Body string `json:"body"`
}

// cleanBody trims the body and enforces the length limit. The text is kept
// as typed; escaping is left to whoever renders it.
func cleanBody(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > models.MessageMaxLength {
		return "", apperror.ValidationFailed("body", fmt.Sprintf("Message must be at most %d characters.", models.MessageMaxLength))
	}
	if s == "" {
		return "", apperror.ValidationFailed("body", "Message is required.")
	}
	return s, nil
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversation(r)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	var in sendInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	body, err := cleanBody(in.Body)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	m, err := h.conversations.AddMessage(ctx, models.Message{
		Conversation: conv.ID,
		Sender:       auth.ViewerID(r),
		Body:         body,
	})
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.Created(w, m)
}
