package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ArmandoKoffi/voice-share-platform/internal/app"
	"github.com/ArmandoKoffi/voice-share-platform/internal/domain"
	"github.com/ArmandoKoffi/voice-share-platform/internal/identity"
)

const noteID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// mockService implements ServicePort with injectable behavior.
type mockService struct {
	createFn  func(ctx context.Context, sender, recipient string, audio io.Reader, size int64, duration float64, mime string) (domain.Note, error)
	consumeFn func(ctx context.Context, id, requester string) (domain.Note, io.ReadCloser, error)
	finalized []string
	pending   []domain.Note
	sent      []domain.Note
	listErr   error
}

func (m *mockService) Create(ctx context.Context, sender, recipient string, audio io.Reader, size int64, duration float64, mime string) (domain.Note, error) {
	if m.createFn != nil {
		return m.createFn(ctx, sender, recipient, audio, size, duration, mime)
	}
	return domain.Note{}, errors.New("create not stubbed")
}

func (m *mockService) Consume(ctx context.Context, id, requester string) (domain.Note, io.ReadCloser, error) {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, id, requester)
	}
	return domain.Note{}, nil, errors.New("consume not stubbed")
}

func (m *mockService) Finalize(_ context.Context, id string) error {
	m.finalized = append(m.finalized, id)
	return nil
}

func (m *mockService) ListPending(context.Context, string) ([]domain.Note, error) {
	return m.pending, m.listErr
}

func (m *mockService) ListSent(context.Context, string) ([]domain.Note, error) {
	return m.sent, m.listErr
}

// mockAccounts implements AccountsPort.
type mockAccounts struct {
	registerErr error
	authErr     error
	exists      bool
}

func (m *mockAccounts) Register(context.Context, string, string, string) error { return m.registerErr }
func (m *mockAccounts) Authenticate(context.Context, string, string) error     { return m.authErr }
func (m *mockAccounts) Exists(context.Context, string) (bool, error)           { return m.exists, nil }

// staticTokens accepts the token "valid" for user "bob".
type staticTokens struct{}

func (staticTokens) Issue(username string) (string, error) { return "issued-" + username, nil }

func (staticTokens) Verify(token string) (string, error) {
	if token != "valid" {
		return "", identity.ErrInvalidToken
	}
	return "bob", nil
}

func newTestHandler(svc ServicePort) *Handler {
	return New(svc, &mockAccounts{}, staticTokens{}, 5<<20)
}

func doJSON(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRegisterEndpoint(t *testing.T) {
	h := newTestHandler(&mockService{})
	w := doJSON(t, h.Router(), http.MethodPost, "/api/register", `{"username":"bob","email":"b@c.d","password":"hunter22"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}

	w = doJSON(t, h.Router(), http.MethodPost, "/api/register", `{not json`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status %d", w.Code)
	}

	h.Accounts = &mockAccounts{registerErr: identity.ErrTaken}
	w = doJSON(t, h.Router(), http.MethodPost, "/api/register", `{"username":"bob","email":"b@c.d","password":"hunter22"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("taken status %d", w.Code)
	}

	w = doJSON(t, h.Router(), http.MethodGet, "/api/register", "", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status %d", w.Code)
	}
}

func TestLoginEndpoint(t *testing.T) {
	h := newTestHandler(&mockService{})
	w := doJSON(t, h.Router(), http.MethodPost, "/api/login", `{"username":"bob","password":"hunter22"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
	var resp struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token != "issued-bob" || resp.Username != "bob" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	h.Accounts = &mockAccounts{authErr: identity.ErrInvalidCredentials}
	w = doJSON(t, h.Router(), http.MethodPost, "/api/login", `{"username":"bob","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad credentials status %d", w.Code)
	}
}

func multipartNote(t *testing.T, to, duration, mime string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if to != "" {
		_ = mw.WriteField("to", to)
	}
	if duration != "" {
		_ = mw.WriteField("duration", duration)
	}
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="audio"; filename="note.webm"`}
	hdr["Content-Type"] = []string{mime}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(payload)
	_ = mw.Close()
	return buf, mw.FormDataContentType()
}

func sendNote(t *testing.T, h http.Handler, body *bytes.Buffer, contentType, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/notes", body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSendNote(t *testing.T) {
	var gotSender, gotTo, gotMIME string
	var gotDuration float64
	var gotSize int64
	svc := &mockService{
		createFn: func(_ context.Context, sender, recipient string, audio io.Reader, size int64, duration float64, mime string) (domain.Note, error) {
			gotSender, gotTo, gotMIME = sender, recipient, mime
			gotDuration, gotSize = duration, size
			_, _ = io.Copy(io.Discard, audio)
			return domain.Note{ID: domain.NoteID(noteID), CreatedAt: time.Now().UTC()}, nil
		},
	}
	h := newTestHandler(svc)
	body, ct := multipartNote(t, "alice", "9.5", "audio/webm", []byte("opus"))
	w := sendNote(t, h.Router(), body, ct, "valid")
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
	if gotSender != "bob" || gotTo != "alice" || gotMIME != "audio/webm" {
		t.Fatalf("unexpected args: %s %s %s", gotSender, gotTo, gotMIME)
	}
	if gotDuration != 9.5 || gotSize != 4 {
		t.Fatalf("unexpected duration/size: %v %v", gotDuration, gotSize)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.ID != noteID {
		t.Fatalf("response: %s err %v", w.Body, err)
	}
}

func TestSendNoteRequiresAuth(t *testing.T) {
	h := newTestHandler(&mockService{})
	body, ct := multipartNote(t, "alice", "9.5", "audio/webm", []byte("opus"))
	w := sendNote(t, h.Router(), body, ct, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status %d", w.Code)
	}
	body, ct = multipartNote(t, "alice", "9.5", "audio/webm", []byte("opus"))
	w = sendNote(t, h.Router(), body, ct, "bogus")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status %d", w.Code)
	}
}

func TestSendNoteRejectsNonAudio(t *testing.T) {
	h := newTestHandler(&mockService{})
	body, ct := multipartNote(t, "alice", "9.5", "text/plain", []byte("hi"))
	w := sendNote(t, h.Router(), body, ct, "valid")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
}

func TestSendNoteMissingFields(t *testing.T) {
	h := newTestHandler(&mockService{})
	body, ct := multipartNote(t, "", "9.5", "audio/webm", []byte("x"))
	if w := sendNote(t, h.Router(), body, ct, "valid"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing recipient status %d", w.Code)
	}
	body, ct = multipartNote(t, "alice", "", "audio/webm", []byte("x"))
	if w := sendNote(t, h.Router(), body, ct, "valid"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing duration status %d", w.Code)
	}
	body, ct = multipartNote(t, "alice", "fast", "audio/webm", []byte("x"))
	if w := sendNote(t, h.Router(), body, ct, "valid"); w.Code != http.StatusBadRequest {
		t.Fatalf("garbage duration status %d", w.Code)
	}
}

func TestSendNoteErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{app.ErrConflict, http.StatusConflict},
		{app.ErrRecipientNotFound, http.StatusNotFound},
		{app.ErrSizeExceeded, http.StatusRequestEntityTooLarge},
		{domain.ErrSelfSend, http.StatusBadRequest},
		{domain.ErrDurationInvalid, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		svc := &mockService{
			createFn: func(context.Context, string, string, io.Reader, int64, float64, string) (domain.Note, error) {
				return domain.Note{}, c.err
			},
		}
		h := newTestHandler(svc)
		body, ct := multipartNote(t, "alice", "9.5", "audio/webm", []byte("x"))
		if w := sendNote(t, h.Router(), body, ct, "valid"); w.Code != c.code {
			t.Errorf("%v: status %d, want %d", c.err, w.Code, c.code)
		}
	}
}

func TestConsumeStreamsAndFinalizes(t *testing.T) {
	payload := []byte("audio-bytes")
	svc := &mockService{
		consumeFn: func(_ context.Context, id, requester string) (domain.Note, io.ReadCloser, error) {
			if requester != "bob" {
				t.Fatalf("unexpected requester %s", requester)
			}
			n := domain.Note{ID: domain.NoteID(id), MIME: "audio/webm", Size: int64(len(payload))}
			return n, io.NopCloser(bytes.NewReader(payload)), nil
		},
	}
	h := newTestHandler(svc)
	w := doJSON(t, h.Router(), http.MethodGet, "/api/notes/"+noteID+"/audio", "", "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
	if got := w.Header().Get("Content-Type"); got != "audio/webm" {
		t.Fatalf("content type %q", got)
	}
	if !bytes.Equal(w.Body.Bytes(), payload) {
		t.Fatalf("payload mismatch: %q", w.Body)
	}
	if len(svc.finalized) != 1 || svc.finalized[0] != noteID {
		t.Fatalf("finalize not called: %v", svc.finalized)
	}
}

func TestConsumeAcceptsQueryToken(t *testing.T) {
	svc := &mockService{
		consumeFn: func(_ context.Context, id, _ string) (domain.Note, io.ReadCloser, error) {
			return domain.Note{ID: domain.NoteID(id), MIME: "audio/webm", Size: 1}, io.NopCloser(strings.NewReader("x")), nil
		},
	}
	h := newTestHandler(svc)
	w := doJSON(t, h.Router(), http.MethodGet, "/api/notes/"+noteID+"/audio?token=valid", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
}

func TestConsumeErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{app.ErrNotFound, http.StatusNotFound},
		{app.ErrGone, http.StatusGone},
		{app.ErrForbidden, http.StatusForbidden},
	}
	for _, c := range cases {
		svc := &mockService{
			consumeFn: func(context.Context, string, string) (domain.Note, io.ReadCloser, error) {
				return domain.Note{}, nil, c.err
			},
		}
		h := newTestHandler(svc)
		w := doJSON(t, h.Router(), http.MethodGet, "/api/notes/"+noteID+"/audio", "", "valid")
		if w.Code != c.code {
			t.Errorf("%v: status %d, want %d", c.err, w.Code, c.code)
		}
		// A failed consume must not finalize.
		if len(svc.finalized) != 0 {
			t.Errorf("%v: finalize called on failed consume", c.err)
		}
	}
}

func TestListReceived(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockService{
		pending: []domain.Note{{
			ID:        domain.NoteID(noteID),
			Sender:    "alice",
			Recipient: "bob",
			Duration:  9.5,
			CreatedAt: created,
		}},
	}
	h := newTestHandler(svc)
	w := doJSON(t, h.Router(), http.MethodGet, "/api/notes/received", "", "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
	var resp struct {
		Notes []struct {
			From     string  `json:"from"`
			Duration float64 `json:"durationSeconds"`
			ID       string  `json:"id"`
		} `json:"notes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Notes) != 1 || resp.Notes[0].From != "alice" || resp.Notes[0].ID != noteID || resp.Notes[0].Duration != 9.5 {
		t.Fatalf("unexpected listing: %+v", resp.Notes)
	}
	// The raw body must never leak the recipient or a blob reference.
	if strings.Contains(w.Body.String(), "bob") || strings.Contains(w.Body.String(), "BlobRef") {
		t.Fatalf("listing leaks internal fields: %s", w.Body)
	}
}

func TestListSent(t *testing.T) {
	svc := &mockService{
		sent: []domain.Note{{
			ID:        domain.NoteID(noteID),
			Sender:    "bob",
			Recipient: "alice",
			Status:    domain.StatusConsumed,
			Duration:  5,
			CreatedAt: time.Now().UTC(),
		}},
	}
	h := newTestHandler(svc)
	w := doJSON(t, h.Router(), http.MethodGet, "/api/notes/sent", "", "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
	var resp struct {
		Notes []struct {
			To     string `json:"to"`
			Status string `json:"status"`
		} `json:"notes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Notes) != 1 || resp.Notes[0].To != "alice" || resp.Notes[0].Status != "consumed" {
		t.Fatalf("unexpected listing: %+v", resp.Notes)
	}
	// A sender must never receive the note id.
	if strings.Contains(w.Body.String(), noteID) {
		t.Fatalf("sent listing leaks note id: %s", w.Body)
	}
}

func TestListRequiresAuth(t *testing.T) {
	h := newTestHandler(&mockService{})
	for _, path := range []string{"/api/notes/received", "/api/notes/sent"} {
		if w := doJSON(t, h.Router(), http.MethodGet, path, "", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status %d", path, w.Code)
		}
	}
}

func TestUserLookup(t *testing.T) {
	h := newTestHandler(&mockService{})
	h.Accounts = &mockAccounts{exists: true}
	w := doJSON(t, h.Router(), http.MethodGet, "/api/users/alice", "", "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
	var resp struct {
		Exists   bool   `json:"exists"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Exists || resp.Username != "alice" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if w := doJSON(t, h.Router(), http.MethodGet, "/api/users/alice", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated lookup status %d", w.Code)
	}
}

func TestUnknownNotesPath(t *testing.T) {
	h := newTestHandler(&mockService{})
	if w := doJSON(t, h.Router(), http.MethodGet, "/api/notes/whatever", "", "valid"); w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	h := newTestHandler(&mockService{})
	if w := doJSON(t, h.Router(), http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
	readyCalled := false
	h.Readiness = func(context.Context) error { readyCalled = true; return nil }
	if w := doJSON(t, h.Router(), http.MethodGet, "/readyz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("ready status %d", w.Code)
	}
	if !readyCalled {
		t.Fatalf("readiness not invoked")
	}
	h.Readiness = func(context.Context) error { return errors.New("db unavailable") }
	if w := doJSON(t, h.Router(), http.MethodGet, "/readyz", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("not-ready status %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := newTestHandler(&mockService{})
	w := doJSON(t, h.Router(), http.MethodGet, "/healthz", "", "")
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options %q", got)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Fatalf("correlation id header missing")
	}
}
