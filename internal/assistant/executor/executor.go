// Package executor turns classified calendar intents into concrete calendar
// service calls: create, create-recurring, delete by id, delete by fuzzy
// lookup, and bulk delete by time range.
//
// The executor performs no automatic retries; retry is the caller's
// discretion. Bulk and specific deletions fan out concurrently per event and
// join on an all-complete barrier; a failed individual delete never aborts its
// siblings.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skald-ai/skald/internal/assistant/event"
	"github.com/skald-ai/skald/pkg/provider/calendar"
	"github.com/skald-ai/skald/pkg/provider/token"
)

// ErrNotFound is returned by fuzzy lookup when no candidate event matches.
var ErrNotFound = errors.New("executor: no matching event found")

// defaultDurationMinutes applies when a create intent names no duration.
const defaultDurationMinutes = 60

// lookupMaxResults caps fuzzy-lookup search pages.
const lookupMaxResults = 10

// Executor issues calendar operations with tokens from a token.Provider.
// It is safe for concurrent use.
type Executor struct {
	cal    calendar.Provider
	tokens token.Provider
}

// New creates an Executor.
func New(cal calendar.Provider, tokens token.Provider) *Executor {
	return &Executor{cal: cal, tokens: tokens}
}

// CreateSpec describes a single event to create.
type CreateSpec struct {
	Title string

	// Date is the ISO start date.
	Date string

	// Time is the 24h start (HH:MM); empty means all-day.
	Time string

	// DurationMinutes defaults to 60 when zero.
	DurationMinutes int

	// TimeZone is the caller's IANA zone name.
	TimeZone string
}

// Create builds a timed or all-day event and inserts it. The returned ref's
// ID is empty unless the service response carried one; ids are never
// fabricated.
func (e *Executor) Create(ctx context.Context, spec CreateSpec) (event.Ref, error) {
	tok, err := e.tokens.Token(ctx)
	if err != nil {
		return event.Ref{}, fmt.Errorf("executor: create %q: %w", spec.Title, err)
	}

	ev, err := buildEvent(spec)
	if err != nil {
		return event.Ref{}, err
	}

	created, err := e.cal.CreateEvent(ctx, tok, ev)
	if err != nil {
		return event.Ref{}, fmt.Errorf("executor: create %q: %w", spec.Title, err)
	}

	ref := event.Ref{Title: spec.Title, Date: spec.Date, Time: spec.Time}
	if created != nil {
		ref.ID = created.ID
	}
	return ref, nil
}

// DeleteByID removes one event directly.
func (e *Executor) DeleteByID(ctx context.Context, id string) error {
	tok, err := e.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("executor: delete %s: %w", id, err)
	}
	if err := e.cal.DeleteEvent(ctx, tok, id); err != nil {
		return fmt.Errorf("executor: delete %s: %w", id, err)
	}
	return nil
}

// DeleteByLookup resolves an event with no known id by searching the calendar
// within the given date (whole local day) using title as a free-text query,
// then deletes the first match. Multiple matches are not disambiguated; the
// first search result wins.
//
// Returns [ErrNotFound] when the search produces no candidates.
func (e *Executor) DeleteByLookup(ctx context.Context, title, date, timeZone string) error {
	tok, err := e.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("executor: lookup %q: %w", title, err)
	}

	timeMin, timeMax, err := dayBounds(date, timeZone)
	if err != nil {
		return err
	}

	matches, err := e.cal.ListEvents(ctx, tok, calendar.ListQuery{
		TimeMin:    timeMin,
		TimeMax:    timeMax,
		Text:       title,
		MaxResults: lookupMaxResults,
	})
	if err != nil {
		return fmt.Errorf("executor: lookup %q: %w", title, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: %q on %s", ErrNotFound, title, date)
	}

	// First result wins. Same-day events with similar titles are not
	// disambiguated.
	if err := e.cal.DeleteEvent(ctx, tok, matches[0].ID); err != nil {
		return fmt.Errorf("executor: delete %q: %w", title, err)
	}
	return nil
}

// BulkResult aggregates a fan-out deletion.
type BulkResult struct {
	// Attempted is how many events were found in the range.
	Attempted int

	// Deleted is how many individual deletes succeeded.
	Deleted int

	// Titles lists the titles of successfully deleted events, in range order.
	Titles []string
}

// BulkDelete lists every event in [timeMin, timeMax] and issues concurrent
// per-event deletes, joined before the aggregate is computed. Zero events in
// the range is a successful empty result, not an error.
func (e *Executor) BulkDelete(ctx context.Context, timeMin, timeMax string) (BulkResult, error) {
	tok, err := e.tokens.Token(ctx)
	if err != nil {
		return BulkResult{}, fmt.Errorf("executor: bulk delete: %w", err)
	}

	events, err := e.cal.ListEvents(ctx, tok, calendar.ListQuery{
		TimeMin: timeMin,
		TimeMax: timeMax,
	})
	if err != nil {
		return BulkResult{}, fmt.Errorf("executor: bulk delete list: %w", err)
	}
	if len(events) == 0 {
		return BulkResult{}, nil
	}

	refs := make([]event.Ref, len(events))
	for i, ev := range events {
		refs[i] = event.Ref{Title: ev.Summary, ID: ev.ID}
	}
	return e.deleteAll(ctx, tok, refs), nil
}

// DeleteSpecific fans out deletes for an enumerated event list. Events
// without a resolved id are looked up by title within their date first; a
// lookup miss counts as a failed attempt, not an error.
func (e *Executor) DeleteSpecific(ctx context.Context, events []event.Ref, timeZone string) (BulkResult, error) {
	tok, err := e.tokens.Token(ctx)
	if err != nil {
		return BulkResult{}, fmt.Errorf("executor: specific delete: %w", err)
	}

	resolved := make([]event.Ref, 0, len(events))
	for _, ev := range events {
		if ev.Resolved() {
			resolved = append(resolved, ev)
			continue
		}
		id, lookupErr := e.lookupID(ctx, tok, ev.Title, ev.Date, timeZone)
		if lookupErr != nil {
			// Unresolvable entry: counted as attempted-but-failed below by
			// keeping an empty id that the delete fan-out will skip.
			resolved = append(resolved, ev)
			continue
		}
		ev.ID = id
		resolved = append(resolved, ev)
	}

	return e.deleteAll(ctx, tok, resolved), nil
}

// deleteAll is the shared concurrent fan-out. Closures never return errors so
// the group never cancels siblings; the barrier is the group Wait.
func (e *Executor) deleteAll(ctx context.Context, tok string, refs []event.Ref) BulkResult {
	res := BulkResult{Attempted: len(refs)}

	var mu sync.Mutex
	deleted := make([]bool, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			if ref.ID == "" {
				return nil
			}
			if err := e.cal.DeleteEvent(gctx, tok, ref.ID); err != nil {
				return nil
			}
			mu.Lock()
			deleted[i] = true
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // all-complete barrier; closures never error

	for i, ok := range deleted {
		if ok {
			res.Deleted++
			res.Titles = append(res.Titles, refs[i].Title)
		}
	}
	return res
}

// lookupID finds the id of the first event matching title within date.
func (e *Executor) lookupID(ctx context.Context, tok, title, date, timeZone string) (string, error) {
	timeMin, timeMax, err := dayBounds(date, timeZone)
	if err != nil {
		return "", err
	}
	matches, err := e.cal.ListEvents(ctx, tok, calendar.ListQuery{
		TimeMin:    timeMin,
		TimeMax:    timeMax,
		Text:       title,
		MaxResults: lookupMaxResults,
	})
	if err != nil {
		return "", fmt.Errorf("executor: lookup %q: %w", title, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %q on %s", ErrNotFound, title, date)
	}
	return matches[0].ID, nil
}

// buildEvent converts a CreateSpec into the wire event. Timed events compute
// the end by adding the duration (hour/minute rollover handled by time.Add);
// all-day events use date-only start/end with an exclusive next-day end.
func buildEvent(spec CreateSpec) (calendar.Event, error) {
	loc, err := loadLocation(spec.TimeZone)
	if err != nil {
		return calendar.Event{}, err
	}

	if spec.Time == "" {
		start, parseErr := time.ParseInLocation("2006-01-02", spec.Date, loc)
		if parseErr != nil {
			return calendar.Event{}, fmt.Errorf("executor: parse date %q: %w", spec.Date, parseErr)
		}
		return calendar.Event{
			Summary: spec.Title,
			Start:   calendar.EventTime{Date: spec.Date},
			End:     calendar.EventTime{Date: start.AddDate(0, 0, 1).Format("2006-01-02")},
		}, nil
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", spec.Date+" "+spec.Time, loc)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("executor: parse start %q %q: %w", spec.Date, spec.Time, err)
	}
	dur := spec.DurationMinutes
	if dur <= 0 {
		dur = defaultDurationMinutes
	}
	end := start.Add(time.Duration(dur) * time.Minute)

	return calendar.Event{
		Summary: spec.Title,
		Start:   calendar.EventTime{DateTime: start.Format(time.RFC3339), TimeZone: spec.TimeZone},
		End:     calendar.EventTime{DateTime: end.Format(time.RFC3339), TimeZone: spec.TimeZone},
	}, nil
}

// dayBounds returns RFC 3339 bounds covering the whole local day of date.
// An empty date widens to the next 30 days from now.
func dayBounds(date, timeZone string) (string, string, error) {
	loc, err := loadLocation(timeZone)
	if err != nil {
		return "", "", err
	}
	if date == "" {
		now := time.Now().In(loc)
		return now.Format(time.RFC3339), now.AddDate(0, 0, 30).Format(time.RFC3339), nil
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return "", "", fmt.Errorf("executor: parse date %q: %w", date, err)
	}
	return day.Format(time.RFC3339), day.AddDate(0, 0, 1).Add(-time.Second).Format(time.RFC3339), nil
}

// loadLocation resolves an IANA zone name, defaulting to UTC when empty.
func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("executor: load time zone %q: %w", name, err)
	}
	return loc, nil
}
