package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// receivedItem is one entry of GET /api/notes/received. The note ID is
// included so the client can build the retrieval URL; the blob reference and
// the caller's own identity are not.
type receivedItem struct {
	From      string    `json:"from"`
	CreatedAt time.Time `json:"createdAt"`
	Duration  float64   `json:"durationSeconds"`
	ID        string    `json:"id"`
}

// sentItem is one entry of GET /api/notes/sent. No note ID: a sender can
// never retrieve a note back, only observe its status.
type sentItem struct {
	To        string    `json:"to"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Duration  float64   `json:"durationSeconds"`
}

func (h *Handler) handleListReceived(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	caller, err := h.bearerIdentity(r)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	notes, err := h.Service.ListPending(r.Context(), caller)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	items := make([]receivedItem, 0, len(notes))
	for _, n := range notes {
		items = append(items, receivedItem{
			From:      n.Sender,
			CreatedAt: n.CreatedAt,
			Duration:  n.Duration,
			ID:        n.ID.String(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Notes []receivedItem `json:"notes"`
	}{Notes: items})
}

func (h *Handler) handleListSent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	caller, err := h.bearerIdentity(r)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	notes, err := h.Service.ListSent(r.Context(), caller)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	items := make([]sentItem, 0, len(notes))
	for _, n := range notes {
		items = append(items, sentItem{
			To:        n.Recipient,
			Status:    string(n.Status),
			CreatedAt: n.CreatedAt,
			Duration:  n.Duration,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Notes []sentItem `json:"notes"`
	}{Notes: items})
}
