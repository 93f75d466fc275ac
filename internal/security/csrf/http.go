package csrf

import (
	"errors"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/response"
)

// HeaderName carries the token when it is not in the request body.
const HeaderName = "X-CSRF-Token"

// ErrNoSession is returned when the request has no usable session cookie.
var ErrNoSession = errors.New("csrf: no session")

// TokenResponse is the data payload of the token endpoint.
type TokenResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenHandler serves GET /api/csrf-token. It reuses a well-formed session
// cookie or mints a new session and sets the cookie.
func (p *Protector) TokenHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := p.sessionID(r)
	if sessionID == "" {
		var err error
		sessionID, err = NewSessionID()
		if err != nil {
			response.Error(w, r, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     p.cfg.CookieName,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			Secure:   p.cfg.SecureCookie,
			SameSite: http.SameSiteStrictMode,
		})
	}
	token, expiresAt := p.Issue(sessionID)
	w.Header().Set("Cache-Control", "no-store")
	response.JSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: expiresAt.UTC(),
	})
}

// Check validates the token for r. bodyToken is the csrfToken form field;
// when empty the X-CSRF-Token header is used instead.
func (p *Protector) Check(r *http.Request, bodyToken string) error {
	token := bodyToken
	if token == "" {
		token = r.Header.Get(HeaderName)
	}
	sessionID := p.sessionID(r)
	if sessionID == "" {
		return ErrNoSession
	}
	if err := p.Validate(token, sessionID); err != nil {
		logger.FromContext(r.Context()).Warn("csrf validation failed",
			"reason", Reason(err),
			"path", r.URL.Path,
		)
		return err
	}
	return nil
}

func (p *Protector) sessionID(r *http.Request) string {
	c, err := r.Cookie(p.cfg.CookieName)
	if err != nil || !ValidSessionID(c.Value) {
		return ""
	}
	return c.Value
}
