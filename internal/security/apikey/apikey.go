// Package apikey guards the portal's admin endpoints with SHA-256 hashed API
// keys. Keys come from configuration (hashes only) or from the api_keys
// table when Postgres is enabled; raw keys are never stored.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/postgres"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// KeyInfo describes a validated key.
type KeyInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Validator resolves a raw key. Unknown keys return ErrInvalidKey.
type Validator interface {
	Validate(ctx context.Context, rawKey string) (*KeyInfo, error)
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateKey returns a random 32-byte hex-encoded key.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Static validates against a fixed list of key hashes, usually from
// PORTAL_ADMIN_API_KEY_HASHES.
type Static struct {
	hashes [][]byte
}

// NewStatic accepts hex SHA-256 digests as produced by HashKey. Blank
// entries are ignored; anything else that is not a digest is an error.
func NewStatic(hashes []string) (*Static, error) {
	s := &Static{}
	for i, h := range hashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		b, err := hex.DecodeString(h)
		if err != nil || len(b) != sha256.Size {
			return nil, fmt.Errorf("api key hash %d is not a hex sha-256 digest", i)
		}
		s.hashes = append(s.hashes, b)
	}
	return s, nil
}

// Len reports how many keys are configured.
func (s *Static) Len() int { return len(s.hashes) }

func (s *Static) Validate(_ context.Context, rawKey string) (*KeyInfo, error) {
	sum := sha256.Sum256([]byte(rawKey))
	match := -1
	for i, h := range s.hashes {
		if subtle.ConstantTimeCompare(sum[:], h) == 1 {
			match = i
		}
	}
	if match < 0 {
		return nil, ErrInvalidKey
	}
	return &KeyInfo{ID: fmt.Sprintf("config-%d", match), Name: "config"}, nil
}

// Any tries each validator in order. A key unknown to one may still be
// valid for the next; any other error stops the search.
func Any(validators ...Validator) Validator {
	return chain(validators)
}

type chain []Validator

func (c chain) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	last := ErrInvalidKey
	for _, v := range c {
		info, err := v.Validate(ctx, rawKey)
		if err == nil {
			return info, nil
		}
		if errors.Is(err, ErrExpiredKey) {
			last = err
			continue
		}
		if !errors.Is(err, ErrInvalidKey) {
			return nil, err
		}
	}
	return nil, last
}

// Store keeps keys in the api_keys table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "apikey-store"),
		now:    time.Now,
	}
}

func (s *Store) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	var (
		info      KeyInfo
		expiresAt sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, name, created_at, expires_at
		 FROM api_keys
		 WHERE key_hash = $1 AND is_active = true`,
		HashKey(rawKey),
	).Scan(&info.ID, &info.Name, &info.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	if expiresAt.Valid {
		if expiresAt.Time.Before(s.now()) {
			return nil, ErrExpiredKey
		}
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

// CreateKey stores a new key and returns it. The raw key is not kept and
// cannot be recovered later.
func (s *Store) CreateKey(ctx context.Context, name string, expiresAt *time.Time) (string, error) {
	raw, err := GenerateKey()
	if err != nil {
		return "", err
	}
	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	if _, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, name, expires_at) VALUES ($1, $2, $3)`,
		HashKey(raw), name, expiry,
	); err != nil {
		return "", fmt.Errorf("creating api key: %w", err)
	}
	s.logger.Info("api key created", "name", name)
	return raw, nil
}

// RevokeKey deactivates a key.
func (s *Store) RevokeKey(ctx context.Context, rawKey string) error {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = false WHERE key_hash = $1 AND is_active = true`,
		HashKey(rawKey),
	)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidKey
	}
	s.logger.Info("api key revoked")
	return nil
}
