// Package postgres persists contacts in PostgreSQL over database/sql with the
// lib/pq driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"coalesce/internal/contact"
	"coalesce/pkg/platform/sentinel"
	txcontext "coalesce/pkg/platform/tx"
)

// pq error codes translated to sentinel.ErrConflict so the engine re-runs the
// whole match-resolve-mutate unit.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Store implements contact.Store on PostgreSQL. Mutations run against the
// transaction carried in context by RunInTx; reads outside a transaction hit
// the pool directly.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx executes fn inside a serializable transaction. Serialization
// failures, deadlocks, and unique violations surface as sentinel.ErrConflict.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapError("begin transaction", err)
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError("commit transaction", err)
	}
	return nil
}

const contactColumns = `id, email, phone, link_precedence, linked_to, created_at, updated_at, deleted_at`

func (s *Store) QueryByAttributes(ctx context.Context, email, phone string) ([]contact.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE deleted_at IS NULL
		  AND (($1 <> '' AND email = $1) OR ($2 <> '' AND phone = $2))
		ORDER BY created_at, id
	`
	rows, err := s.runner(ctx).QueryContext(ctx, query, email, phone)
	if err != nil {
		return nil, mapError("query contacts by attributes", err)
	}
	return scanContacts(rows)
}

func (s *Store) QueryByCluster(ctx context.Context, primaryID int64) ([]contact.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE deleted_at IS NULL
		  AND (id = $1 OR linked_to = $1)
		ORDER BY created_at, id
	`
	rows, err := s.runner(ctx).QueryContext(ctx, query, primaryID)
	if err != nil {
		return nil, mapError("query cluster", err)
	}
	return scanContacts(rows)
}

func (s *Store) InsertPrimary(ctx context.Context, email, phone string) (contact.Contact, error) {
	query := `
		INSERT INTO contacts (email, phone, link_precedence)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), 'primary')
		RETURNING ` + contactColumns + `
	`
	row := s.runner(ctx).QueryRowContext(ctx, query, email, phone)
	c, err := scanContact(row)
	if err != nil {
		return contact.Contact{}, mapError("insert primary contact", err)
	}
	return c, nil
}

func (s *Store) InsertSecondary(ctx context.Context, email, phone string, linkedTo int64) (contact.Contact, error) {
	query := `
		INSERT INTO contacts (email, phone, link_precedence, linked_to)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), 'secondary', $3)
		RETURNING ` + contactColumns + `
	`
	row := s.runner(ctx).QueryRowContext(ctx, query, email, phone, linkedTo)
	c, err := scanContact(row)
	if err != nil {
		return contact.Contact{}, mapError("insert secondary contact", err)
	}
	return c, nil
}

func (s *Store) Demote(ctx context.Context, contactID, linkedTo int64) error {
	query := `
		UPDATE contacts
		SET link_precedence = 'secondary', linked_to = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := s.runner(ctx).ExecContext(ctx, query, contactID, linkedTo)
	if err != nil {
		return mapError("demote contact", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapError("demote contact", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) Repoint(ctx context.Context, fromPrimary, toPrimary int64) error {
	query := `
		UPDATE contacts
		SET linked_to = $2, updated_at = now()
		WHERE linked_to = $1 AND id <> $1 AND deleted_at IS NULL
	`
	if _, err := s.runner(ctx).ExecContext(ctx, query, fromPrimary, toPrimary); err != nil {
		return mapError("repoint cluster members", err)
	}
	return nil
}

// Ping reports store reachability for health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (contact.Contact, error) {
	var (
		c         contact.Contact
		email     sql.NullString
		phone     sql.NullString
		linkedTo  sql.NullInt64
		deletedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &email, &phone, &c.LinkPrecedence, &linkedTo, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
	if err != nil {
		return contact.Contact{}, err
	}
	c.Email = email.String
	c.Phone = phone.String
	if linkedTo.Valid {
		v := linkedTo.Int64
		c.LinkedTo = &v
	}
	if deletedAt.Valid {
		v := deletedAt.Time
		c.DeletedAt = &v
	}
	return c, nil
}

func scanContacts(rows *sql.Rows) ([]contact.Contact, error) {
	defer rows.Close()

	var contacts []contact.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, mapError("scan contact row", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate contact rows", err)
	}
	return contacts, nil
}

// mapError translates driver errors: conflict-class pq codes become
// sentinel.ErrConflict so the engine retries; everything else is treated as
// the store being unavailable.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, sentinel.ErrUnavailable, err)
}
