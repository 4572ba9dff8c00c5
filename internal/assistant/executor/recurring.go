package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/skald-ai/skald/internal/assistant/event"
	"github.com/skald-ai/skald/pkg/provider/calendar"
)

// weekdayCodes maps lowercase English day names to RRULE BYDAY codes.
var weekdayCodes = map[string]rrule.Weekday{
	"monday":    rrule.MO,
	"tuesday":   rrule.TU,
	"wednesday": rrule.WE,
	"thursday":  rrule.TH,
	"friday":    rrule.FR,
	"saturday":  rrule.SA,
	"sunday":    rrule.SU,
}

// RecurringSpec describes a recurring series to create.
type RecurringSpec struct {
	Title string

	// Frequency is "DAILY", "WEEKLY", or "MONTHLY".
	Frequency string

	// DayOfWeek is the lowercase day name for weekly series; ignored otherwise.
	DayOfWeek string

	// Time is the 24h start (HH:MM); empty means all-day occurrences.
	Time string

	// Count is the explicit number of occurrences.
	Count int

	// StartDate is the ISO date of the earliest candidate occurrence. For a
	// weekly series the actual first occurrence advances to the next matching
	// weekday on or after this date.
	StartDate string

	// TimeZone is the caller's IANA zone name.
	TimeZone string
}

// CreateRecurring creates a recurring series and then re-queries the calendar
// by title within the series window to materialize concrete per-occurrence
// ids for context tracking. The re-query is best effort: when it returns
// fewer than Count occurrences, only the found ones are returned.
func (e *Executor) CreateRecurring(ctx context.Context, spec RecurringSpec) ([]event.Ref, error) {
	tok, err := e.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: recurring %q: %w", spec.Title, err)
	}

	loc, err := loadLocation(spec.TimeZone)
	if err != nil {
		return nil, err
	}

	firstDate, err := firstOccurrence(spec, loc)
	if err != nil {
		return nil, err
	}

	rule, err := buildRule(spec)
	if err != nil {
		return nil, err
	}

	ev, err := buildEvent(CreateSpec{
		Title:    spec.Title,
		Date:     firstDate,
		Time:     spec.Time,
		TimeZone: spec.TimeZone,
	})
	if err != nil {
		return nil, err
	}
	ev.Recurrence = []string{"RRULE:" + rule}

	if _, err := e.cal.CreateEvent(ctx, tok, ev); err != nil {
		return nil, fmt.Errorf("executor: recurring %q: %w", spec.Title, err)
	}

	return e.materializeOccurrences(ctx, tok, spec, firstDate, loc)
}

// buildRule renders the RRULE body (without the "RRULE:" prefix) for spec.
func buildRule(spec RecurringSpec) (string, error) {
	count := spec.Count
	if count <= 0 {
		count = 10
	}

	opt := rrule.ROption{Count: count}
	switch strings.ToUpper(spec.Frequency) {
	case "DAILY":
		opt.Freq = rrule.DAILY
	case "WEEKLY":
		opt.Freq = rrule.WEEKLY
		if spec.DayOfWeek != "" {
			wd, ok := weekdayCodes[strings.ToLower(spec.DayOfWeek)]
			if !ok {
				return "", fmt.Errorf("executor: unknown day of week %q", spec.DayOfWeek)
			}
			opt.Byweekday = []rrule.Weekday{wd}
		}
	case "MONTHLY":
		opt.Freq = rrule.MONTHLY
	default:
		return "", fmt.Errorf("executor: unknown recurrence frequency %q", spec.Frequency)
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("executor: build recurrence rule: %w", err)
	}
	return r.OrigOptions.RRuleString(), nil
}

// firstOccurrence resolves the date of the series' first occurrence. Weekly
// series advance StartDate to the next matching weekday (inclusive).
func firstOccurrence(spec RecurringSpec, loc *time.Location) (string, error) {
	start, err := time.ParseInLocation("2006-01-02", spec.StartDate, loc)
	if err != nil {
		return "", fmt.Errorf("executor: parse start date %q: %w", spec.StartDate, err)
	}

	if strings.ToUpper(spec.Frequency) == "WEEKLY" && spec.DayOfWeek != "" {
		wd, ok := weekdayCodes[strings.ToLower(spec.DayOfWeek)]
		if !ok {
			return "", fmt.Errorf("executor: unknown day of week %q", spec.DayOfWeek)
		}
		target := time.Weekday((wd.Day() + 1) % 7) // rrule weekdays start Monday=0
		for start.Weekday() != target {
			start = start.AddDate(0, 0, 1)
		}
	}
	return start.Format("2006-01-02"), nil
}

// materializeOccurrences re-queries the calendar by title across the series
// window and converts the matches to refs with concrete ids.
func (e *Executor) materializeOccurrences(ctx context.Context, tok string, spec RecurringSpec, firstDate string, loc *time.Location) ([]event.Ref, error) {
	start, err := time.ParseInLocation("2006-01-02", firstDate, loc)
	if err != nil {
		return nil, fmt.Errorf("executor: parse first occurrence %q: %w", firstDate, err)
	}

	count := spec.Count
	if count <= 0 {
		count = 10
	}

	// Window sized by frequency so every occurrence falls inside it.
	var window time.Duration
	switch strings.ToUpper(spec.Frequency) {
	case "DAILY":
		window = time.Duration(count+1) * 24 * time.Hour
	case "WEEKLY":
		window = time.Duration(count+1) * 7 * 24 * time.Hour
	default: // MONTHLY
		window = time.Duration(count+1) * 31 * 24 * time.Hour
	}

	matches, err := e.cal.ListEvents(ctx, tok, calendar.ListQuery{
		TimeMin:    start.Format(time.RFC3339),
		TimeMax:    start.Add(window).Format(time.RFC3339),
		Text:       spec.Title,
		MaxResults: count,
	})
	if err != nil {
		// Creation already succeeded; occurrence tracking is best effort.
		return nil, nil
	}

	refs := make([]event.Ref, 0, len(matches))
	for _, m := range matches {
		if len(refs) == count {
			break
		}
		refs = append(refs, occurrenceRef(m, spec))
	}
	return refs, nil
}

// occurrenceRef converts a listed occurrence to a ref, falling back to the
// spec's fields when the service omits start details.
func occurrenceRef(m calendar.Event, spec RecurringSpec) event.Ref {
	ref := event.Ref{Title: m.Summary, ID: m.ID, Time: spec.Time}
	if m.Summary == "" {
		ref.Title = spec.Title
	}
	switch {
	case m.Start.Date != "":
		ref.Date = m.Start.Date
	case m.Start.DateTime != "":
		if t, err := time.Parse(time.RFC3339, m.Start.DateTime); err == nil {
			ref.Date = t.Format("2006-01-02")
			ref.Time = t.Format("15:04")
		}
	}
	return ref
}
