// Package intent classifies utterances into calendar operations.
//
// The classifier sends a single strict-JSON-contract prompt to an
// llm.Provider and decodes the first balanced JSON object in the reply into a
// tagged [Intent] union. Any malformed reply degrades to [KindNone]; a parse
// failure is never surfaced to the user.
package intent

import (
	"encoding/json"
	"strings"

	"github.com/skald-ai/skald/internal/assistant/event"
)

// Kind tags the Intent union. Exactly one variant field is populated per Kind.
type Kind string

const (
	KindCreate         Kind = "CREATE"
	KindRecurring      Kind = "RECURRING"
	KindBulkDelete     Kind = "BULK_DELETE"
	KindSpecificDelete Kind = "SPECIFIC_DELETE"
	KindSingleDelete   Kind = "SINGLE_DELETE"
	KindNone           Kind = "NONE"
)

// Intent is the structured output of the classifier.
type Intent struct {
	Kind Kind

	Create         *Create
	Recurring      *Recurring
	BulkDelete     *BulkDelete
	SpecificDelete *SpecificDelete
	SingleDelete   *SingleDelete
}

// None is the degenerate intent returned for non-calendar utterances and for
// unparseable classifier output.
var None = Intent{Kind: KindNone}

// Create describes a single timed or all-day event to create.
type Create struct {
	Title string

	// Date is the resolved ISO date (YYYY-MM-DD).
	Date string

	// Time is the 24h start (HH:MM), or empty for an all-day event.
	Time string

	// DurationMinutes defaults to 60 when the utterance names no duration.
	DurationMinutes int
}

// Recurring describes a recurring series to create.
type Recurring struct {
	Title string

	// Frequency is one of "DAILY", "WEEKLY", "MONTHLY".
	Frequency string

	// DayOfWeek is the lowercase English day name for weekly series
	// (e.g. "tuesday"). Empty for daily/monthly.
	DayOfWeek string

	// Time is the 24h start (HH:MM), or empty for all-day occurrences.
	Time string

	// Count is the number of occurrences in the series.
	Count int

	// StartDate is the resolved ISO date of the first occurrence.
	StartDate string
}

// BulkDelete describes deletion of every event in a time range.
type BulkDelete struct {
	// TimeMin and TimeMax are RFC 3339 bounds.
	TimeMin string
	TimeMax string
}

// SpecificDelete describes deletion of an enumerated event list.
type SpecificDelete struct {
	Events []event.Ref
}

// SingleDelete describes deletion of one event, by id when the classifier
// resolved a tracked reference, otherwise by title.
type SingleDelete struct {
	EventID    string
	EventTitle string

	// Date scopes the fuzzy lookup when EventID is empty.
	Date string
}

// wireIntent is the JSON shape the classifier prompt demands from the model.
type wireIntent struct {
	Action          string `json:"action"`
	Title           string `json:"title"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Frequency       string `json:"frequency"`
	DayOfWeek       string `json:"day_of_week"`
	Count           int    `json:"count"`
	TimeMin         string `json:"time_min"`
	TimeMax         string `json:"time_max"`
	EventID         string `json:"event_id"`
	Events          []struct {
		Title string `json:"title"`
		Date  string `json:"date"`
		Time  string `json:"time"`
		ID    string `json:"id"`
	} `json:"events"`
}

// Decode parses raw model output into an Intent. localDate is the caller's
// current ISO date, used to resolve "today"/"tomorrow" literals the model may
// emit despite instructions. All failure modes return [None].
func Decode(raw string, localDate string) Intent {
	region := ExtractJSON(raw)
	if region == "" {
		return None
	}

	var w wireIntent
	if err := json.Unmarshal([]byte(region), &w); err != nil {
		return None
	}

	switch Kind(strings.ToUpper(strings.TrimSpace(w.Action))) {
	case KindCreate:
		if w.Title == "" || w.Date == "" {
			return None
		}
		dur := w.DurationMinutes
		if dur <= 0 {
			dur = 60
		}
		return Intent{Kind: KindCreate, Create: &Create{
			Title:           w.Title,
			Date:            resolveDateWord(w.Date, localDate),
			Time:            w.Time,
			DurationMinutes: dur,
		}}

	case KindRecurring:
		if w.Title == "" {
			return None
		}
		freq := strings.ToUpper(w.Frequency)
		switch freq {
		case "DAILY", "WEEKLY", "MONTHLY":
		default:
			return None
		}
		count := w.Count
		if count <= 0 {
			count = 10
		}
		return Intent{Kind: KindRecurring, Recurring: &Recurring{
			Title:     w.Title,
			Frequency: freq,
			DayOfWeek: strings.ToLower(w.DayOfWeek),
			Time:      w.Time,
			Count:     count,
			StartDate: resolveDateWord(w.Date, localDate),
		}}

	case KindBulkDelete:
		if w.TimeMin == "" || w.TimeMax == "" {
			return None
		}
		return Intent{Kind: KindBulkDelete, BulkDelete: &BulkDelete{
			TimeMin: w.TimeMin,
			TimeMax: w.TimeMax,
		}}

	case KindSpecificDelete:
		if len(w.Events) == 0 {
			return None
		}
		events := make([]event.Ref, 0, len(w.Events))
		for _, e := range w.Events {
			if e.Title == "" {
				continue
			}
			events = append(events, event.Ref{
				Title: e.Title,
				Date:  resolveDateWord(e.Date, localDate),
				Time:  e.Time,
				ID:    e.ID,
			})
		}
		if len(events) == 0 {
			return None
		}
		return Intent{Kind: KindSpecificDelete, SpecificDelete: &SpecificDelete{Events: events}}

	case KindSingleDelete:
		if w.EventID == "" && w.Title == "" {
			return None
		}
		return Intent{Kind: KindSingleDelete, SingleDelete: &SingleDelete{
			EventID:    w.EventID,
			EventTitle: w.Title,
			Date:       resolveDateWord(w.Date, localDate),
		}}

	case KindNone:
		return None
	}
	return None
}

// ExtractJSON returns the first balanced {...} region in raw, skipping any
// leading prose or code fences the model wrapped around it. Braces inside JSON
// string literals are ignored. Returns "" when no balanced region exists.
func ExtractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
