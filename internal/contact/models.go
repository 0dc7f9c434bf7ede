package contact

import "time"

// LinkPrecedence marks a contact as the canonical representative of its
// cluster or as an attached observation.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

// Contact is a single observed (email, phone) pair. Contacts sharing either
// value belong to the same identity cluster: one primary plus secondaries
// whose LinkedTo references it. Links are always exactly one hop deep.
type Contact struct {
	ID             int64
	Email          string
	Phone          string
	LinkPrecedence LinkPrecedence
	LinkedTo       *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// IsPrimary reports whether the contact is its cluster's canonical member.
func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// PrimaryID returns the id of the contact's cluster primary: its own id for a
// primary, the link target for a secondary.
func (c Contact) PrimaryID() int64 {
	if c.LinkedTo != nil {
		return *c.LinkedTo
	}
	return c.ID
}

// ConsolidatedView is the externally visible representation of a cluster.
// Value ordering is deterministic: the primary's own value first, then the
// remaining distinct values by owning contact age.
type ConsolidatedView struct {
	PrimaryContactID    int64
	Emails              []string
	PhoneNumbers        []string
	SecondaryContactIDs []int64
}
