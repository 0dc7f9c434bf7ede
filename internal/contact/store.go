package contact

import "context"

//go:generate mockgen -destination=service/mocks/mocks.go -package=mocks coalesce/internal/contact Store

// Store is the persistence contract consumed by the reconciliation engine.
// Stores are interface-driven to keep the domain logic testable and to allow
// swapping in-memory and PostgreSQL implementations without rewiring business
// code. Implementations return sentinel errors; services translate them into
// domain errors.
//
// All queries exclude soft-deleted contacts and order results by CreatedAt
// ascending with id as the tie-break, so callers see a deterministic sequence.
type Store interface {
	// QueryByAttributes returns live contacts whose email equals the given
	// email (if non-empty) or whose phone equals the given phone (if
	// non-empty). Exact-string matching only.
	QueryByAttributes(ctx context.Context, email, phone string) ([]Contact, error)

	// QueryByCluster returns the primary with the given id plus every live
	// contact whose LinkedTo equals it.
	QueryByCluster(ctx context.Context, primaryID int64) ([]Contact, error)

	// InsertPrimary creates a fresh primary contact carrying the given values.
	InsertPrimary(ctx context.Context, email, phone string) (Contact, error)

	// InsertSecondary creates a secondary contact linked to an existing
	// primary.
	InsertSecondary(ctx context.Context, email, phone string, linkedTo int64) (Contact, error)

	// Demote turns a primary into a secondary of linkedTo. Callers must pair
	// it with Repoint inside the same transaction so the one-hop link
	// invariant holds.
	Demote(ctx context.Context, contactID, linkedTo int64) error

	// Repoint re-targets every contact linked to fromPrimary onto toPrimary.
	Repoint(ctx context.Context, fromPrimary, toPrimary int64) error

	// RunInTx executes fn as one atomic unit. Mutations made inside fn become
	// visible to other callers only after RunInTx returns nil; on error the
	// unit is rolled back. A sentinel.ErrConflict return means a concurrent
	// unit invalidated this one and the caller should re-run from its first
	// read.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
