package models

import "time"

// OccurrenceStatus is the publication state of an occurrence.
type OccurrenceStatus string

const (
	StatusDraft     OccurrenceStatus = "draft"
	StatusPublished OccurrenceStatus = "published"
)

// Visibility controls which channel an occurrence is served on.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Occurrence is one concrete, schedulable instance of an event. Occurrences
// created from the same recurrence request share the template fields but own
// disjoint time windows on their resource.
type Occurrence struct {
	ID                string           `db:"id" json:"id"`
	Title             string           `db:"title" json:"title"`
	Description       string           `db:"description" json:"description"`
	DetailHTML        string           `db:"detail_html" json:"detail_html,omitempty"`
	ResourceID        string           `db:"resource_id" json:"resource_id"`
	ResourceName      string           `db:"resource_name" json:"resource_name"`
	StartAt           time.Time        `db:"start_at" json:"start_at"`
	EndAt             time.Time        `db:"end_at" json:"end_at"`
	Status            OccurrenceStatus `db:"status" json:"status"`
	Visibility        Visibility       `db:"visibility" json:"visibility"`
	AllowRegistration bool             `db:"allow_registration" json:"allow_registration"`
	Capacity          *int             `db:"capacity" json:"capacity,omitempty"`
	Remaining         *int             `db:"remaining" json:"remaining,omitempty"`
	RegOpensAt        *time.Time       `db:"reg_opens_at" json:"reg_opens_at,omitempty"`
	RegClosesAt       *time.Time       `db:"reg_closes_at" json:"reg_closes_at,omitempty"`
	ColorTag          string           `db:"color_tag" json:"color_tag,omitempty"`
	BannerRef         string           `db:"banner_ref" json:"banner_ref,omitempty"`
	ReminderSentAt    *time.Time       `db:"reminder_sent_at" json:"-"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// OccurrenceFilter narrows down occurrence listings.
type OccurrenceFilter struct {
	Visibility Visibility
	Status     OccurrenceStatus
	ResourceID string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// MaterializeReport summarises the outcome of one recurrence request.
type MaterializeReport struct {
	Requested int                 `json:"requested"`
	Inserted  []Occurrence        `json:"inserted"`
	Skipped   []SkippedOccurrence `json:"skipped,omitempty"`
	// Degraded is set when at least one conflict check could not be
	// completed and the save proceeded without it.
	Degraded bool `json:"degraded,omitempty"`
}

// SkippedOccurrence records one candidate dropped by conflict detection,
// keeping generation order for deterministic reporting.
type SkippedOccurrence struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Reason  string    `json:"reason"`
}
