// Package httpx contains the HTTP delivery layer (net/http handlers) for the
// voice note service. It maps HTTP requests to the application service while
// enforcing authentication, upload limits, streaming semantics, the
// guaranteed-finalize contract, and error translation. Handlers are split
// across files (accounts.go, send.go, consume.go, list.go, errors.go).
package httpx

import (
	"context"
	"io"
	"net/http"

	"github.com/ArmandoKoffi/voice-share-platform/internal/domain"
)

// ServicePort abstracts the subset of app.Service used by the HTTP layer.
// It is satisfied by *app.Service in production and mocked in tests.
type ServicePort interface {
	Create(ctx context.Context, sender, recipient string, audio io.Reader, size int64, duration float64, mime string) (domain.Note, error)
	Consume(ctx context.Context, id, requester string) (domain.Note, io.ReadCloser, error)
	Finalize(ctx context.Context, id string) error
	ListPending(ctx context.Context, identity string) ([]domain.Note, error)
	ListSent(ctx context.Context, identity string) ([]domain.Note, error)
}

// AccountsPort abstracts the identity directory for the account endpoints.
type AccountsPort interface {
	Register(ctx context.Context, username, email, password string) error
	Authenticate(ctx context.Context, username, password string) error
	Exists(ctx context.Context, username string) (bool, error)
}

// TokenPort issues and verifies bearer credentials.
type TokenPort interface {
	Issue(username string) (string, error)
	Verify(token string) (string, error)
}

// Counter is the optional metrics hook (satisfied by *metrics.Manager).
type Counter interface {
	Inc(name string, delta int64)
}

// Handler wires HTTP endpoints to the application service and its
// collaborators. It is safe for concurrent use. Zero-value is not valid;
// construct via New and fill the optional fields as needed.
type Handler struct {
	Service   ServicePort
	Accounts  AccountsPort
	Tokens    TokenPort
	Push      http.Handler                // websocket mount (optional)
	Metrics   Counter                     // optional
	MaxBody   int64                       // mirror service.MaxBytes (defense-in-depth)
	Readiness func(context.Context) error // optional readiness probe
	Snapshot  http.HandlerFunc            // optional metrics snapshot endpoint
}

// New returns a configured Handler.
func New(svc ServicePort, accounts AccountsPort, tokens TokenPort, maxBody int64) *Handler {
	return &Handler{Service: svc, Accounts: accounts, Tokens: tokens, MaxBody: maxBody}
}

// Router constructs and returns an http.Handler with all routes mounted and
// the correlation-ID and security-header middleware applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", h.handleRegister)
	mux.HandleFunc("/api/login", h.handleLogin)
	mux.HandleFunc("/api/notes", h.handleSendNote)
	mux.HandleFunc("/api/notes/", h.handleNotes) // /received, /sent, /{id}/audio
	mux.HandleFunc("/api/users/", h.handleUserLookup)
	if h.Push != nil {
		mux.Handle("/ws", h.Push)
	}
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/readyz", h.handleReady)
	if h.Snapshot != nil {
		mux.HandleFunc("/metricsz", h.Snapshot)
	}
	return CorrelationIDMiddleware(h.secureHeaders(mux))
}

// secureHeaders middleware adds standard security & cache control headers.
// Note payloads are single-read; nothing served here may ever be cached.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
