// Package event holds the lightweight calendar-event reference shared by the
// assistant's intent, confirmation, context, and executor packages.
package event

import (
	"fmt"
	"time"
)

// Ref is a lightweight reference to a calendar entry used for
// context-carrying and disambiguation. It is a value type; copy freely.
type Ref struct {
	// Title is the event title as spoken or as reported by the calendar.
	Title string

	// Date is the ISO date (YYYY-MM-DD).
	Date string

	// Time is the 24h start time (HH:MM), or empty for all-day events.
	Time string

	// ID is the external calendar id. Empty means the reference has not been
	// resolved to a concrete calendar entry yet.
	ID string
}

// Resolved reports whether the reference carries a concrete calendar id.
func (r Ref) Resolved() bool {
	return r.ID != ""
}

// Start returns the event's start instant in loc. All-day events start at
// midnight. Returns an error when Date is missing or malformed.
func (r Ref) Start(loc *time.Location) (time.Time, error) {
	if r.Date == "" {
		return time.Time{}, fmt.Errorf("event: ref %q has no date", r.Title)
	}
	layout := "2006-01-02"
	value := r.Date
	if r.Time != "" {
		layout = "2006-01-02 15:04"
		value = r.Date + " " + r.Time
	}
	t, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("event: parse start of %q: %w", r.Title, err)
	}
	return t, nil
}

// String renders the reference for conversation history and prompts.
func (r Ref) String() string {
	if r.Time == "" {
		return fmt.Sprintf("%s on %s", r.Title, r.Date)
	}
	return fmt.Sprintf("%s on %s at %s", r.Title, r.Date, r.Time)
}
