// Package calendar defines the Provider interface for external calendar
// services.
//
// A calendar provider wraps a Google-style calendar REST API and exposes the
// three primitives the assistant's executor needs: create, list, and delete.
// Authentication is handled outside this package; each call carries an access
// token supplied by a [token.Provider].
//
// Implementors must be safe for concurrent use.
package calendar

import "context"

// EventTime is either a timed instant ({DateTime, TimeZone}) or an all-day
// date ({Date}). Exactly one of DateTime and Date must be set.
type EventTime struct {
	// DateTime is an RFC 3339 timestamp for timed events.
	DateTime string `json:"dateTime,omitempty"`

	// TimeZone is the IANA time zone name accompanying DateTime.
	TimeZone string `json:"timeZone,omitempty"`

	// Date is an ISO date (YYYY-MM-DD) for all-day events.
	Date string `json:"date,omitempty"`
}

// Event is the wire shape of a calendar entry.
type Event struct {
	// ID is the service-assigned event identifier. Empty on create requests.
	ID string `json:"id,omitempty"`

	// Summary is the event title.
	Summary string `json:"summary"`

	// Description is optional free text.
	Description string `json:"description,omitempty"`

	Start EventTime `json:"start"`
	End   EventTime `json:"end"`

	// Recurrence holds RRULE strings for recurring series.
	Recurrence []string `json:"recurrence,omitempty"`
}

// ListQuery selects which events a List call returns.
type ListQuery struct {
	// TimeMin and TimeMax bound the window as RFC 3339 timestamps.
	TimeMin string
	TimeMax string

	// Text is an optional free-text search over event fields.
	Text string

	// MaxResults caps the number of returned events. Zero means the
	// provider default.
	MaxResults int
}

// Provider is the abstraction over an external calendar service.
//
// All methods take the caller's current access token; implementations must not
// cache or refresh tokens themselves.
type Provider interface {
	// CreateEvent inserts ev into the user's primary calendar and returns the
	// created event as reported by the service. The returned event's ID may be
	// empty when the service response omits it.
	CreateEvent(ctx context.Context, accessToken string, ev Event) (*Event, error)

	// ListEvents returns single (recurrence-expanded) events in the query
	// window, ordered by start time.
	ListEvents(ctx context.Context, accessToken string, q ListQuery) ([]Event, error)

	// DeleteEvent removes the event with the given id. Both a 2xx body and an
	// explicit 204 No Content count as success.
	DeleteEvent(ctx context.Context, accessToken string, id string) error
}
