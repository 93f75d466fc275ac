package forms

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/postgres"
	"github.com/lib/pq"
)

// Store persists submissions.
type Store interface {
	SaveContact(ctx context.Context, sub ContactSubmission) error
	// Subscribe returns ErrAlreadySubscribed when the email is known.
	Subscribe(ctx context.Context, sub Subscription) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// MemoryStore keeps submissions in process. Used when Postgres is
// disabled and in tests.
type MemoryStore struct {
	mu            sync.RWMutex
	contacts      []ContactSubmission
	subscriptions map[string]Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subscriptions: make(map[string]Subscription)}
}

func (m *MemoryStore) SaveContact(_ context.Context, sub ContactSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = append(m.contacts, sub)
	return nil
}

func (m *MemoryStore) Subscribe(_ context.Context, sub Subscription) error {
	key := strings.ToLower(sub.Email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[key]; ok {
		return ErrAlreadySubscribed
	}
	sub.Interests = slices.Clone(sub.Interests)
	m.subscriptions[key] = sub
	return nil
}

// Contacts returns a copy of the stored contact submissions.
func (m *MemoryStore) Contacts() []ContactSubmission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.contacts)
}

// Subscription looks up a subscription by email.
func (m *MemoryStore) Subscription(email string) (Subscription, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscriptions[strings.ToLower(email)]
	return s, ok
}

// PostgresStore writes to the contact_submissions and
// newsletter_subscriptions tables.
type PostgresStore struct {
	db *postgres.Client
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) SaveContact(ctx context.Context, sub ContactSubmission) error {
	_, err := p.db.DB.ExecContext(ctx,
		`INSERT INTO contact_submissions (id, name, email, subject, message, category, client_ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, sub.Name, sub.Email, sub.Subject, sub.Message, sub.Category, sub.ClientIP, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving contact submission: %w", err)
	}
	return nil
}

func (p *PostgresStore) Subscribe(ctx context.Context, sub Subscription) error {
	return p.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO newsletter_subscriptions (id, email, name, interests, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (email) DO NOTHING`,
			sub.ID, strings.ToLower(sub.Email), sub.Name, pq.Array(sub.Interests), sub.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("saving subscription: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking subscription insert: %w", err)
		}
		if n == 0 {
			return ErrAlreadySubscribed
		}
		return nil
	})
}
