package model

import "time"

// Event represents a logical calendar event before recurrence expansion.
// Reminder logic operates on Occurrence; Event is the pre-expansion shape
// produced by the ICS parser layer.
type Event struct {
	SourceID string // calendar source ID (config feed ID)
	UID      string // iCalendar UID

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Original start/end in the event's own timezone.
	Start time.Time
	End   time.Time
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey distinguishes instances of a recurring event, derived
	// from the instance start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Key returns the identifier used for per-session reminder de-duplication.
// A plain UID is not enough once recurrences are expanded, so the instance
// key is folded in.
func (o Occurrence) Key() string {
	return o.UID + "/" + o.InstanceKey
}
