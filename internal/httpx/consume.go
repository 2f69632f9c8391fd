package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ArmandoKoffi/voice-share-platform/internal/metrics"
)

// handleNotes dispatches the /api/notes/ subtree:
//
//	GET /api/notes/received    pending notes for the caller
//	GET /api/notes/sent        everything the caller has sent
//	GET /api/notes/{id}/audio  consume and stream one note
func (h *Handler) handleNotes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/notes/")
	switch {
	case rest == "received":
		h.handleListReceived(w, r)
	case rest == "sent":
		h.handleListSent(w, r)
	case strings.HasSuffix(rest, "/audio"):
		h.handleConsumeNote(w, r, strings.TrimSuffix(rest, "/audio"))
	default:
		h.writeError(r.Context(), w, http.StatusNotFound, "not found")
	}
}

// handleConsumeNote implements GET /api/notes/{id}/audio. Consuming is the
// delivery: the winning request streams the audio, and the note is finalized
// (blob deleted, row purged) when the handler returns, no matter how the
// stream ended. A client that disconnects mid-download loses the note.
func (h *Handler) handleConsumeNote(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		h.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	requester, err := h.streamIdentity(r)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	note, rc, err := h.Service.Consume(r.Context(), id, requester)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	// Finalize must run even when the client goes away mid-stream, so it is
	// detached from the request context. Registered before rc.Close so the
	// reader is closed first (LIFO).
	defer func() {
		fctx := context.WithoutCancel(r.Context())
		if ferr := h.Service.Finalize(fctx, id); ferr != nil {
			cid, _ := GetCorrelationID(r.Context())
			slog.Error("finalize after consume failed", "cid", cid, "id", id, "error", ferr)
		}
	}()
	defer rc.Close()

	w.Header().Set("Content-Type", note.MIME)
	w.Header().Set("Content-Length", strconv.FormatInt(note.Size, 10))
	if _, err := io.CopyN(w, rc, note.Size); err != nil {
		// Headers are already out; nothing to report to the client. The
		// deferred finalize still destroys the note.
		cid, _ := GetCorrelationID(r.Context())
		slog.Warn("audio stream interrupted", "cid", cid, "id", id, "error", err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.Inc(metrics.CounterNotesConsumed, 1)
	}
}
