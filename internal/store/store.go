// Package store provides PostgreSQL-backed persistence for users, contact
// links, and the durable message log. Schema management is handled by
// embedded golang-migrate migrations (see migrate.go).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Sentinel errors surfaced to the API layer so it can pick status codes.
var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: already exists")
)

// User is a registered account. The connection code is the stable routing
// identifier; username is unique as well.
type User struct {
	Username       string
	Email          string
	Phone          string
	ConnectionCode string
	CreatedAt      time.Time
}

// Contact is a directory entry linking one user to another by connection code.
type Contact struct {
	ContactName string `json:"contact_name"`
	ContactCode string `json:"contact_code"`
}

// Message is one entry in the durable message log. Timestamp carries the
// wall-clock formatting used on the wire (HH:MM).
type Message struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Store manages durable chat state in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, verifies the connection, and applies any
// pending schema migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: postgres connection failed: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle. Migrations are not applied;
// callers own schema management. Used by tests.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new account. Returns ErrDuplicate if the username or
// connection code is already taken.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	const query = `
		INSERT INTO users (username, email, phone, connection_code)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query, u.Username, u.Email, u.Phone, u.ConnectionCode)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: insert user: %w", err)
	}
	return nil
}

// FindUser looks up an account by login identifier. The identifier may be an
// email address, a phone number, or a connection code. Returns ErrNotFound
// if no account matches.
func (s *Store) FindUser(ctx context.Context, identifier string) (*User, error) {
	const query = `
		SELECT username, email, phone, connection_code, created_at
		FROM users
		WHERE email = $1 OR phone = $1 OR connection_code = $1`

	return s.scanUser(s.db.QueryRowContext(ctx, query, identifier))
}

// UserByCode looks up an account by its connection code.
func (s *Store) UserByCode(ctx context.Context, code string) (*User, error) {
	const query = `
		SELECT username, email, phone, connection_code, created_at
		FROM users
		WHERE connection_code = $1`

	return s.scanUser(s.db.QueryRowContext(ctx, query, code))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.Username, &u.Email, &u.Phone, &u.ConnectionCode, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan user: %w", err)
	}
	return &u, nil
}

// AddContact links contactCode into userCode's directory under the given
// display name. Adding an already-linked contact is a no-op.
func (s *Store) AddContact(ctx context.Context, userCode, contactCode, contactName string) error {
	const query = `
		INSERT INTO contacts (user_code, contact_code, contact_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_code, contact_code) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, userCode, contactCode, contactName)
	if err != nil {
		return fmt.Errorf("store: insert contact: %w", err)
	}
	return nil
}

// ContactsOf returns userCode's directory in insertion order.
func (s *Store) ContactsOf(ctx context.Context, userCode string) ([]Contact, error) {
	const query = `
		SELECT contact_name, contact_code
		FROM contacts
		WHERE user_code = $1
		ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, userCode)
	if err != nil {
		return nil, fmt.Errorf("store: query contacts: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ContactName, &c.ContactCode); err != nil {
			return nil, fmt.Errorf("store: scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate contacts: %w", err)
	}
	return contacts, nil
}

// SaveMessage appends a message to the durable log and returns the HH:MM
// timestamp assigned by the database.
func (s *Store) SaveMessage(ctx context.Context, senderCode, receiverCode, content string) (string, error) {
	const query = `
		INSERT INTO messages (sender_code, receiver_code, content)
		VALUES ($1, $2, $3)
		RETURNING to_char(created_at, 'HH24:MI')`

	var ts string
	err := s.db.QueryRowContext(ctx, query, senderCode, receiverCode, content).Scan(&ts)
	if err != nil {
		return "", fmt.Errorf("store: insert message: %w", err)
	}
	return ts, nil
}

// Conversation returns every message exchanged between the two codes,
// oldest first.
func (s *Store) Conversation(ctx context.Context, userCode, contactCode string) ([]Message, error) {
	const query = `
		SELECT sender_code, content, to_char(created_at, 'HH24:MI')
		FROM messages
		WHERE (sender_code = $1 AND receiver_code = $2)
		   OR (sender_code = $2 AND receiver_code = $1)
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userCode, contactCode)
	if err != nil {
		return nil, fmt.Errorf("store: query conversation: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Sender, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate conversation: %w", err)
	}
	return messages, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
