package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/ArmandoKoffi/voice-share-platform/internal/app"
	"github.com/ArmandoKoffi/voice-share-platform/internal/domain"
	"github.com/ArmandoKoffi/voice-share-platform/internal/identity"
)

// writeError writes a JSON error body with given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
	if cid, ok := GetCorrelationID(ctx); ok {
		slog.Debug("wrote error response", "cid", cid, "status", code, "msg", msg)
	}
}

// mapServiceError maps domain/store/service/identity errors to HTTP responses.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		slog.Warn("service error", "cid", cid, "code", "invalid_id")
		h.writeError(ctx, w, http.StatusBadRequest, "invalid id")
	case errors.Is(err, domain.ErrSelfSend):
		slog.Warn("service error", "cid", cid, "code", "self_send")
		h.writeError(ctx, w, http.StatusBadRequest, "cannot send a note to yourself")
	case errors.Is(err, domain.ErrDurationInvalid):
		slog.Warn("service error", "cid", cid, "code", "duration_invalid")
		h.writeError(ctx, w, http.StatusBadRequest, "duration invalid")
	case errors.Is(err, domain.ErrIdentityInvalid):
		slog.Warn("service error", "cid", cid, "code", "identity_invalid")
		h.writeError(ctx, w, http.StatusBadRequest, "identity invalid")
	case errors.Is(err, app.ErrSizeExceeded):
		slog.Warn("service error", "cid", cid, "code", "size_exceeded")
		h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "size exceeded")
	case errors.Is(err, app.ErrRecipientNotFound):
		slog.Info("service error", "cid", cid, "code", "recipient_not_found")
		h.writeError(ctx, w, http.StatusNotFound, "recipient not found")
	case errors.Is(err, app.ErrNotFound):
		slog.Info("service error", "cid", cid, "code", "not_found")
		h.writeError(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrConflict):
		slog.Info("service error", "cid", cid, "code", "conflict")
		h.writeError(ctx, w, http.StatusConflict, "an unread note already exists for this recipient")
	case errors.Is(err, app.ErrForbidden):
		slog.Warn("service error", "cid", cid, "code", "forbidden")
		h.writeError(ctx, w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrGone):
		slog.Info("service error", "cid", cid, "code", "gone")
		h.writeError(ctx, w, http.StatusGone, "note already consumed or purged")
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrInvalidCredentials):
		slog.Warn("service error", "cid", cid, "code", "unauthorized")
		h.writeError(ctx, w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, identity.ErrTaken):
		slog.Info("service error", "cid", cid, "code", "taken")
		h.writeError(ctx, w, http.StatusBadRequest, "username or email already registered")
	case errors.Is(err, identity.ErrWeakPassword), errors.Is(err, identity.ErrMissingField):
		slog.Info("service error", "cid", cid, "code", "bad_account_input")
		h.writeError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, os.ErrNotExist):
		slog.Info("service error", "cid", cid, "code", "not_found", "err_type", "os.ErrNotExist")
		h.writeError(ctx, w, http.StatusNotFound, "not found")
	default:
		// Internal / unexpected: do not echo raw error strings to clients.
		slog.Error("unhandled service error", "cid", cid, "code", "unhandled")
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}
