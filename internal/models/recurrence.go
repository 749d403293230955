package models

import "time"

// Frequency enumerates supported recurrence frequencies.
type Frequency string

const (
	FreqNone    Frequency = "none"
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

// RecurrenceRule is the ephemeral input describing how a base occurrence
// repeats. It is never persisted; only the expanded occurrences are.
type RecurrenceRule struct {
	Frequency Frequency `json:"frequency"`
	// Interval is the step between occurrences in the frequency's unit.
	// Values below 1 are treated as 1.
	Interval int `json:"interval"`
	// Count and Until are the two end conditions; repeating frequencies
	// require at least one. Until is inclusive.
	Count int        `json:"count,omitempty"`
	Until *time.Time `json:"until,omitempty"`
	// Weekdays selects days for weekly frequency (time.Weekday numbering,
	// Sunday = 0). Empty falls back to the base start's own weekday.
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
}
