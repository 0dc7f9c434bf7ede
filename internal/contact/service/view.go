package service

import (
	"errors"
	"sort"

	"coalesce/internal/contact"
	pstrings "coalesce/pkg/platform/strings"
)

// ErrEmptyCluster signals a resolved cluster with no members. The engine's
// contract makes this unreachable; seeing it means a resolver or store bug.
var ErrEmptyCluster = errors.New("cluster has no members")

var errNoPrimary = errors.New("cluster has no primary member")

// BuildView assembles the consolidated representation of a cluster. Values
// are deduplicated with the primary's own value first, followed by the
// remaining distinct values in creation order of the owning contact.
func BuildView(cluster []contact.Contact) (contact.ConsolidatedView, error) {
	if len(cluster) == 0 {
		return contact.ConsolidatedView{}, ErrEmptyCluster
	}

	ordered := make([]contact.Contact, len(cluster))
	copy(ordered, cluster)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var primary *contact.Contact
	for i := range ordered {
		if ordered[i].IsPrimary() {
			primary = &ordered[i]
			break
		}
	}
	if primary == nil {
		return contact.ConsolidatedView{}, errNoPrimary
	}

	emails := []string{primary.Email}
	phones := []string{primary.Phone}
	secondaryIDs := make([]int64, 0, len(ordered)-1)
	for _, c := range ordered {
		if c.ID == primary.ID {
			continue
		}
		emails = append(emails, c.Email)
		phones = append(phones, c.Phone)
		secondaryIDs = append(secondaryIDs, c.ID)
	}

	return contact.ConsolidatedView{
		PrimaryContactID:    primary.ID,
		Emails:              pstrings.DedupeAndTrim(emails),
		PhoneNumbers:        pstrings.DedupeAndTrim(phones),
		SecondaryContactIDs: secondaryIDs,
	}, nil
}
