package audit

import "time"

// Action labels the identity events worth an audit trail.
type Action string

const (
	// ActionContactCreated: a fresh primary was created for an unseen identity.
	ActionContactCreated Action = "contact.created"
	// ActionObservationRecorded: a new secondary captured novel attributes.
	ActionObservationRecorded Action = "observation.recorded"
	// ActionClustersMerged: one or more primaries were demoted beneath a survivor.
	ActionClustersMerged Action = "clusters.merged"
)

// Event captures one identity reconciliation outcome.
type Event struct {
	ID               string    `json:"id"`
	Action           Action    `json:"action"`
	PrimaryContactID int64     `json:"primary_contact_id"`
	ContactID        int64     `json:"contact_id,omitempty"`
	DemotedIDs       []int64   `json:"demoted_ids,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
