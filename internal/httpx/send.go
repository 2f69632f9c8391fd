package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ArmandoKoffi/voice-share-platform/internal/metrics"
)

// formOverhead is headroom for multipart boundaries and the non-file fields
// when capping the request body relative to the payload limit.
const formOverhead = 16 << 10

// handleSendNote implements POST /api/notes (multipart: audio, to, duration).
func (h *Handler) handleSendNote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.URL.Path != "/api/notes" { // disallow trailing slash variants
		h.writeError(r.Context(), w, http.StatusNotFound, "not found")
		return
	}
	sender, err := h.bearerIdentity(r)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBody+formOverhead)
	if err := r.ParseMultipartForm(h.MaxBody + formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "size exceeded")
			return
		}
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	to := r.FormValue("to")
	durationStr := r.FormValue("duration")
	if to == "" || durationStr == "" {
		h.writeError(r.Context(), w, http.StatusBadRequest, "recipient, audio file and duration are required")
		return
	}
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid duration")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "recipient, audio file and duration are required")
		return
	}
	defer file.Close()
	mime := header.Header.Get("Content-Type")
	if mime != "" && !strings.HasPrefix(mime, "audio/") {
		h.writeError(r.Context(), w, http.StatusBadRequest, "only audio uploads are allowed")
		return
	}
	note, svcErr := h.Service.Create(r.Context(), sender, to, file, header.Size, duration, mime)
	if svcErr != nil {
		h.mapServiceError(r.Context(), w, svcErr)
		return
	}
	if h.Metrics != nil {
		h.Metrics.Inc(metrics.CounterNotesCreated, 1)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"createdAt"`
	}{ID: note.ID.String(), CreatedAt: note.CreatedAt})
}
