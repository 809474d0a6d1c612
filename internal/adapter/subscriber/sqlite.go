package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"maitred/internal/domain"
	"maitred/internal/usecase"
)

// SQLiteStore implements domain.SubscriberStore using SQLite. It is the
// local record of captured registrations, independent of whether the
// remote newsletter submission succeeded.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open subscriber db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate subscriber db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS subscribers (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			source     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Add implements domain.SubscriberStore. The email is stored lowercased;
// a repeat email returns domain.ErrDuplicate.
func (s *SQLiteStore) Add(ctx context.Context, sub *domain.Subscriber) error {
	if sub.ID == "" {
		sub.ID = usecase.NewULID(time.Now())
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO subscribers (id, email, source, created_at) VALUES (?, ?, ?, ?)",
		sub.ID, strings.ToLower(sub.Email), sub.Source, sub.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError("subscriber.add", domain.ErrDuplicate, sub.Email)
		}
		return domain.WrapOp("subscriber.add", err)
	}
	return nil
}

// GetByEmail implements domain.SubscriberStore.
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, source, created_at FROM subscribers WHERE email = ?",
		strings.ToLower(email),
	)
	return scanSubscriber(row)
}

// List implements domain.SubscriberStore, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*domain.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, email, source, created_at FROM subscribers ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, domain.WrapOp("subscriber.list", err)
	}
	defer rows.Close()

	var subs []*domain.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	var createdAt string
	err := row.Scan(&sub.ID, &sub.Email, &sub.Source, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.WrapOp("subscriber.scan", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		sub.CreatedAt = t
	}
	return &sub, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
