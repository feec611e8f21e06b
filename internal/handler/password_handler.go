package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"toilet-map-service/internal/hashing"
	"toilet-map-service/internal/service"
	"toilet-map-service/internal/util"
)

// PasswordHandler handles HTTP requests addressed to a single password:
// voting on its accuracy and reporting it stale.
type PasswordHandler struct {
	passwordService *service.PasswordService
	hasher          *hashing.IdentityHasher
	logger          *zap.Logger
}

func NewPasswordHandler(passwordService *service.PasswordService, hasher *hashing.IdentityHasher, logger *zap.Logger) *PasswordHandler {
	return &PasswordHandler{
		passwordService: passwordService,
		hasher:          hasher,
		logger:          logger,
	}
}

// RegisterRoutes registers all password routes
func (h *PasswordHandler) RegisterRoutes(router chi.Router) {
	router.Route("/passwords/{passwordID}", func(r chi.Router) {
		r.Post("/vote", h.Vote)
		r.Patch("/report", h.Report)
	})
}

// Vote applies a confirm/wrong vote to a password
func (h *PasswordHandler) Vote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	passwordID, ok := h.passwordIDParam(w, r)
	if !ok {
		return
	}

	var req service.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	identityHash := h.hasher.Hash(clientIP(r))

	result, err := h.passwordService.Vote(ctx, identityHash, passwordID, &req)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to vote")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(result, "Vote applied"))
	h.logger.Info("Vote applied via HTTP",
		util.String("password_id", passwordID),
		util.String("vote", req.Vote),
		util.Duration("duration", time.Since(startTime)),
	)
}

// Report increments a password's report count
func (h *PasswordHandler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	passwordID, ok := h.passwordIDParam(w, r)
	if !ok {
		return
	}

	identityHash := h.hasher.Hash(clientIP(r))

	password, err := h.passwordService.Report(ctx, identityHash, passwordID)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to report password")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(password, "Password reported"))
}

func (h *PasswordHandler) passwordIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	passwordID := chi.URLParam(r, "passwordID")
	if _, err := uuid.Parse(passwordID); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid password ID format")
		return "", false
	}
	return passwordID, true
}
