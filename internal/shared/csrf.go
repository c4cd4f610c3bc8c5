package shared

import (
	"crypto/hmac"
	"log/slog"
	"net/http"
)

// CSRFHeader is the request header carrying the CSRF token on mutating
// requests.
const CSRFHeader = "x-csrf-token"

// CSRFGuard validates that mutating requests carry the CSRF token bound to
// their session. Binding the token to the session row ties token validity
// to session validity: a deleted or expired session invalidates its token
// with no extra bookkeeping.
type CSRFGuard struct {
	store  *SessionStore
	logger *slog.Logger
}

// NewCSRFGuard constructs a CSRFGuard.
func NewCSRFGuard(store *SessionStore, logger *slog.Logger) *CSRFGuard {
	return &CSRFGuard{store: store, logger: logger}
}

// Validate reports whether the request may proceed. Read methods are
// exempt. Every failure mode, including storage errors, yields false: an
// authorization gate must deny on "unknown".
func (g *CSRFGuard) Validate(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return false
	}
	sess, err := g.store.Lookup(r.Context(), cookie.Value)
	if err != nil {
		if g.logger != nil {
			g.logger.Error("csrf session lookup", slog.Any("error", err))
		}
		return false
	}
	if sess == nil {
		return false
	}

	token := r.Header.Get(CSRFHeader)
	if token == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(sess.CSRFToken))
}
