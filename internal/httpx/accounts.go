package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ArmandoKoffi/voice-share-platform/internal/metrics"
)

// registerRequest is the POST /api/register body.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest is the POST /api/login body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister implements POST /api/register.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Accounts.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.Inc(metrics.CounterUsersRegistered, 1)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(struct {
		Message string `json:"message"`
	}{Message: "registration successful, please log in"})
}

// handleLogin implements POST /api/login.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Accounts.Authenticate(r.Context(), req.Username, req.Password); err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	token, err := h.Tokens.Issue(req.Username)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}{Token: token, Username: req.Username})
}

// handleUserLookup implements GET /api/users/{username}: an existence probe
// so the send form can validate the recipient before recording.
func (h *Handler) handleUserLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, err := h.bearerIdentity(r); err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	const prefix = "/api/users/"
	username := strings.TrimPrefix(r.URL.Path, prefix)
	if username == "" || strings.Contains(username, "/") {
		h.writeError(r.Context(), w, http.StatusNotFound, "not found")
		return
	}
	exists, err := h.Accounts.Exists(r.Context(), username)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Exists   bool   `json:"exists"`
		Username string `json:"username"`
	}{Exists: exists, Username: username})
}
