// Package csrf issues and checks the portal's form tokens.
//
// A token is base64(sessionID + ":" + issuedAtMillis), tied to the
// session-id cookie. Tokens are NOT signed: anyone who knows a session id
// can mint a valid token for it, and the configured secret is never used.
// This is a known gap; the protection only holds as long as the session
// cookie stays confidential.
package csrf

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedToken  = errors.New("csrf: malformed token")
	ErrSessionMismatch = errors.New("csrf: session mismatch")
	ErrTokenExpired    = errors.New("csrf: token expired")
)

const (
	sessionIDBytes = 32
	// DefaultMaxAge is how long a token stays valid when no age is set.
	DefaultMaxAge = time.Hour
)

// NewSessionID returns 64 lowercase hex characters from crypto/rand.
func NewSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ValidSessionID reports whether s looks like a NewSessionID value.
func ValidSessionID(s string) bool {
	if len(s) != 2*sessionIDBytes {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// GenerateToken encodes sessionID and issuedAt into a token.
func GenerateToken(sessionID string, issuedAt time.Time) string {
	raw := sessionID + ":" + strconv.FormatInt(issuedAt.UnixMilli(), 10)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// ValidateToken checks that token was issued for sessionID no more than
// maxAge before now. A token dated in the future passes.
func ValidateToken(token, sessionID string, now time.Time, maxAge time.Duration) error {
	if token == "" {
		return ErrMalformedToken
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return ErrMalformedToken
	}
	sid, ts, ok := strings.Cut(string(raw), ":")
	if !ok || sid == "" {
		return ErrMalformedToken
	}
	issuedMs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformedToken
	}
	if sessionID == "" || sid != sessionID {
		return ErrSessionMismatch
	}
	if now.UnixMilli()-issuedMs > maxAge.Milliseconds() {
		return ErrTokenExpired
	}
	return nil
}

// Config controls a Protector.
type Config struct {
	MaxAge       time.Duration
	CookieName   string
	SecureCookie bool
	// Secret is accepted for configuration compatibility and never used.
	Secret string
}

// Protector issues and validates tokens against the session cookie.
type Protector struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Protector)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Protector) { p.now = now }
}

func NewProtector(cfg Config, opts ...Option) *Protector {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "session-id"
	}
	p := &Protector{
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "csrf"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WarnUnsigned logs that tokens carry no signature.
func (p *Protector) WarnUnsigned() {
	p.logger.Warn("csrf tokens are not signed; the configured secret is unused and tokens can be forged by anyone holding the session id",
		"max_age", p.cfg.MaxAge,
		"cookie", p.cfg.CookieName,
	)
}

func (p *Protector) CookieName() string    { return p.cfg.CookieName }
func (p *Protector) MaxAge() time.Duration { return p.cfg.MaxAge }

// Issue returns a token for sessionID and the time it stops being valid.
func (p *Protector) Issue(sessionID string) (token string, expiresAt time.Time) {
	now := p.now()
	return GenerateToken(sessionID, now), now.Add(p.cfg.MaxAge)
}

// Validate checks token against sessionID at the current time.
func (p *Protector) Validate(token, sessionID string) error {
	return ValidateToken(token, sessionID, p.now(), p.cfg.MaxAge)
}

// Reason maps a validation error onto a short metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrSessionMismatch):
		return "session_mismatch"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	default:
		return "missing_session"
	}
}
