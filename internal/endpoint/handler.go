// Package endpoint serves the generation endpoint: it builds the instruction,
// calls the upstream model and keeps a best-effort audit trail.
package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/catalog"
	"github.com/xaenox/commentgen/internal/identity"
	"github.com/xaenox/commentgen/internal/llm"
	"github.com/xaenox/commentgen/internal/models"
	"github.com/xaenox/commentgen/internal/storage"
)

const (
	MaxCaptionRunes = 1000

	errMsgNoCredential = "OpenAI API key not configured"
	errMsgGeneration   = "Failed to generate comment"
)

// ClientProvider hands out an upstream client for a provider and model.
type ClientProvider interface {
	Client(provider, model string) (llm.Client, error)
}

type Options struct {
	DefaultModel  string
	LookupTimeout time.Duration
	AuditTimeout  time.Duration
}

func DefaultOptions() Options {
	return Options{
		DefaultModel:  llm.DefaultModel,
		LookupTimeout: 2 * time.Second,
		AuditTimeout:  3 * time.Second,
	}
}

type Handler struct {
	clients ClientProvider
	storage storage.Storage
	opts    Options
	logger  *zap.Logger
}

func NewHandler(clients ClientProvider, store storage.Storage, opts Options, logger *zap.Logger) *Handler {
	defaults := DefaultOptions()
	if opts.DefaultModel == "" {
		opts.DefaultModel = defaults.DefaultModel
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = defaults.LookupTimeout
	}
	if opts.AuditTimeout <= 0 {
		opts.AuditTimeout = defaults.AuditTimeout
	}
	return &Handler{
		clients: clients,
		storage: store,
		opts:    opts,
		logger:  logger,
	}
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
}

func writeJSON(w http.ResponseWriter, status int, body models.GenerationResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, models.GenerationResponse{Error: "Method not allowed"})
		return
	}

	var req models.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.GenerationResponse{Error: err.Error()})
		return
	}

	h.logger.Info("Received generation request",
		zap.String("caption", truncateRunes(req.PostCaption, 50)),
		zap.String("tone", req.Tone),
		zap.String("provider", req.Provider),
		zap.String("model", req.Model),
		zap.Bool("has_hint", req.Hint != ""),
		zap.String("user_id", req.UserID))

	model := req.Model
	if model == "" {
		model = h.opts.DefaultModel
	}

	client, err := h.clients.Client(req.Provider, model)
	if err != nil {
		if errors.Is(err, llm.ErrMissingCredential) {
			writeJSON(w, http.StatusInternalServerError, models.GenerationResponse{Error: errMsgNoCredential})
			return
		}
		h.logger.Error("Failed to create upstream client", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.GenerationResponse{Error: err.Error()})
		return
	}

	validID := identity.Valid(req.UserID)
	if req.UserID != "" && !validID {
		h.logger.Error("Invalid identity format, history and audit disabled", zap.String("user_id", req.UserID))
	}

	var previous string
	if req.Hint != "" && validID {
		previous = h.latestComment(r.Context(), req.UserID)
	}

	text, err := client.Complete(r.Context(), llm.CompletionRequest{
		System: BuildInstruction(req.Tone, req.Hint, previous),
		User:   UserMessage(req.PostCaption),
	})
	if err != nil {
		h.logger.Error("Upstream generation failed", zap.Error(err), zap.String("model", model))
		writeJSON(w, http.StatusInternalServerError, models.GenerationResponse{Error: errMsgGeneration})
		return
	}

	if validID && req.PostCaption != "" && text != "" {
		h.audit(r.Context(), req, model, text)
	} else {
		h.logger.Info("Skipping audit row",
			zap.Bool("has_user_id", req.UserID != ""),
			zap.Bool("valid_user_id", validID),
			zap.Bool("has_caption", req.PostCaption != ""),
			zap.Bool("has_comment", text != ""))
	}

	writeJSON(w, http.StatusOK, models.GenerationResponse{GeneratedComment: text})
}

func (h *Handler) latestComment(ctx context.Context, userID string) string {
	ctx, cancel := context.WithTimeout(ctx, h.opts.LookupTimeout)
	defer cancel()

	comment, err := h.storage.LatestComment(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Error("Failed to fetch last comment", zap.Error(err), zap.String("user_id", userID))
		}
		return ""
	}
	return comment
}

func (h *Handler) audit(ctx context.Context, req models.GenerationRequest, model, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.AuditTimeout)
	defer cancel()

	tone := req.Tone
	if tone == "" {
		tone = catalog.DefaultTone
	}
	row := &models.AuditRow{
		UserID:           req.UserID,
		PostCaption:      truncateRunes(req.PostCaption, MaxCaptionRunes),
		Tone:             tone,
		Model:            model,
		Hint:             req.Hint,
		GeneratedComment: text,
	}
	if err := h.storage.SaveComment(ctx, row); err != nil {
		h.logger.Error("Failed to save audit row", zap.Error(err), zap.String("user_id", req.UserID))
		return
	}
	h.logger.Info("Saved audit row", zap.Int64("id", row.ID), zap.String("user_id", req.UserID))
}
