package httpx

import (
	"net/http"
	"strings"

	"github.com/ArmandoKoffi/voice-share-platform/internal/identity"
)

// bearerIdentity authenticates the request via the Authorization header and
// returns the identity the credential names.
func (h *Handler) bearerIdentity(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(hdr, "Bearer ")
	if !found || token == "" {
		return "", identity.ErrInvalidToken
	}
	return h.Tokens.Verify(token)
}

// streamIdentity authenticates like bearerIdentity but additionally accepts
// a ?token= query parameter: the browser audio element cannot attach headers,
// so the retrieval URL must be able to carry the credential itself.
func (h *Handler) streamIdentity(r *http.Request) (string, error) {
	if t := r.URL.Query().Get("token"); t != "" {
		return h.Tokens.Verify(t)
	}
	return h.bearerIdentity(r)
}
