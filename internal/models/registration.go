package models

import (
	"strings"
	"time"
)

// RegistrationStatus is the lifecycle state of a registration record.
type RegistrationStatus string

// StatusRegistered is the only status the core ever writes; cancellation is
// handled outside this service.
const StatusRegistered RegistrationStatus = "registered"

// Registration is one attendee's claim on a seat in one occurrence. Its ID is
// the deterministic composite of occurrence id and normalized email, so a
// resubmission addresses the same record instead of creating a duplicate.
type Registration struct {
	ID            string             `db:"id" json:"id"`
	EventID       string             `db:"event_id" json:"event_id"`
	AttendeeEmail string             `db:"attendee_email" json:"attendee_email"`
	AttendeeName  string             `db:"attendee_name" json:"attendee_name"`
	Status        RegistrationStatus `db:"status" json:"status"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}

// NormalizeEmail lower-cases and trims an attendee email for keying.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegistrationKey builds the deterministic composite key for an
// (occurrence, email) pair.
func RegistrationKey(occurrenceID, email string) string {
	return occurrenceID + ":" + NormalizeEmail(email)
}
