package service

import (
	"sort"

	"coalesce/internal/contact"
)

// Resolution is the cluster resolver's verdict for one incoming observation:
// which primary survives, which primaries must be demoted beneath it, and
// whether the observation carries a value the matched clusters have not seen.
type Resolution struct {
	SurvivingPrimary contact.Contact
	Demote           []contact.Contact
	HasNewEmail      bool
	HasNewPhone      bool
}

// Resolve decides the surviving primary for a set of matched contacts.
// The oldest primary wins; on equal creation times the lower id wins, keeping
// the decision total and deterministic. Every other primary in the set is
// marked for demotion.
//
// Contacts must include the primaries of every cluster the match touched (the
// engine expands raw attribute matches to full clusters first), so the set
// always holds at least one primary.
func Resolve(contacts []contact.Contact, email, phone string) (Resolution, bool) {
	var primaries []contact.Contact
	for _, c := range contacts {
		if c.IsPrimary() {
			primaries = append(primaries, c)
		}
	}
	if len(primaries) == 0 {
		return Resolution{}, false
	}

	sort.Slice(primaries, func(i, j int) bool {
		if primaries[i].CreatedAt.Equal(primaries[j].CreatedAt) {
			return primaries[i].ID < primaries[j].ID
		}
		return primaries[i].CreatedAt.Before(primaries[j].CreatedAt)
	})

	res := Resolution{
		SurvivingPrimary: primaries[0],
		Demote:           primaries[1:],
		HasNewEmail:      email != "",
		HasNewPhone:      phone != "",
	}
	for _, c := range contacts {
		if email != "" && c.Email == email {
			res.HasNewEmail = false
		}
		if phone != "" && c.Phone == phone {
			res.HasNewPhone = false
		}
	}
	return res, true
}
