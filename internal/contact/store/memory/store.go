// Package memory provides an in-memory contact store used by unit tests and
// database-free local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"coalesce/internal/contact"
	"coalesce/pkg/platform/sentinel"
)

type txToken struct{}

// Clock supplies timestamps; injectable for deterministic tests.
type Clock func() time.Time

// Store keeps contacts in a map guarded by a single mutex. RunInTx holds the
// mutex for the whole unit of work and restores a snapshot on error, so units
// are serialized and atomic exactly like a database transaction.
type Store struct {
	mu       sync.Mutex
	contacts map[int64]contact.Contact
	nextID   int64
	clock    Clock
}

// Option configures a Store instance.
type Option func(*Store)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		contacts: make(map[int64]contact.Contact),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// inTx reports whether ctx was issued by RunInTx, in which case the mutex is
// already held.
func inTx(ctx context.Context) bool {
	return ctx.Value(txToken{}) != nil
}

func (s *Store) acquire(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[int64]contact.Contact, len(s.contacts))
	for id, c := range s.contacts {
		snapshot[id] = c
	}
	snapshotNextID := s.nextID

	if err := fn(context.WithValue(ctx, txToken{}, struct{}{})); err != nil {
		s.contacts = snapshot
		s.nextID = snapshotNextID
		return err
	}
	return nil
}

func (s *Store) QueryByAttributes(ctx context.Context, email, phone string) ([]contact.Contact, error) {
	defer s.acquire(ctx)()

	var matched []contact.Contact
	for _, c := range s.contacts {
		if c.DeletedAt != nil {
			continue
		}
		if (email != "" && c.Email == email) || (phone != "" && c.Phone == phone) {
			matched = append(matched, c)
		}
	}
	sortContacts(matched)
	return matched, nil
}

func (s *Store) QueryByCluster(ctx context.Context, primaryID int64) ([]contact.Contact, error) {
	defer s.acquire(ctx)()

	var cluster []contact.Contact
	for _, c := range s.contacts {
		if c.DeletedAt != nil {
			continue
		}
		if c.ID == primaryID || (c.LinkedTo != nil && *c.LinkedTo == primaryID) {
			cluster = append(cluster, c)
		}
	}
	sortContacts(cluster)
	return cluster, nil
}

func (s *Store) InsertPrimary(ctx context.Context, email, phone string) (contact.Contact, error) {
	defer s.acquire(ctx)()

	now := s.clock()
	s.nextID++
	c := contact.Contact{
		ID:             s.nextID,
		Email:          email,
		Phone:          phone,
		LinkPrecedence: contact.LinkPrecedencePrimary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.contacts[c.ID] = c
	return c, nil
}

func (s *Store) InsertSecondary(ctx context.Context, email, phone string, linkedTo int64) (contact.Contact, error) {
	defer s.acquire(ctx)()

	if _, ok := s.contacts[linkedTo]; !ok {
		return contact.Contact{}, sentinel.ErrNotFound
	}

	now := s.clock()
	s.nextID++
	c := contact.Contact{
		ID:             s.nextID,
		Email:          email,
		Phone:          phone,
		LinkPrecedence: contact.LinkPrecedenceSecondary,
		LinkedTo:       &linkedTo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.contacts[c.ID] = c
	return c, nil
}

func (s *Store) Demote(ctx context.Context, contactID, linkedTo int64) error {
	defer s.acquire(ctx)()

	c, ok := s.contacts[contactID]
	if !ok || c.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	c.LinkPrecedence = contact.LinkPrecedenceSecondary
	c.LinkedTo = &linkedTo
	c.UpdatedAt = s.clock()
	s.contacts[contactID] = c
	return nil
}

func (s *Store) Repoint(ctx context.Context, fromPrimary, toPrimary int64) error {
	defer s.acquire(ctx)()

	now := s.clock()
	for id, c := range s.contacts {
		if c.ID == fromPrimary {
			continue
		}
		if c.LinkedTo != nil && *c.LinkedTo == fromPrimary {
			target := toPrimary
			c.LinkedTo = &target
			c.UpdatedAt = now
			s.contacts[id] = c
		}
	}
	return nil
}

// SoftDelete tombstones a contact. The engine never deletes; this exists so
// tests can exercise tombstone exclusion.
func (s *Store) SoftDelete(ctx context.Context, contactID int64) error {
	defer s.acquire(ctx)()

	c, ok := s.contacts[contactID]
	if !ok {
		return sentinel.ErrNotFound
	}
	now := s.clock()
	c.DeletedAt = &now
	s.contacts[contactID] = c
	return nil
}

// Ping always succeeds; the memory store has no connection to lose.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func sortContacts(contacts []contact.Contact) {
	sort.Slice(contacts, func(i, j int) bool {
		if contacts[i].CreatedAt.Equal(contacts[j].CreatedAt) {
			return contacts[i].ID < contacts[j].ID
		}
		return contacts[i].CreatedAt.Before(contacts[j].CreatedAt)
	})
}
