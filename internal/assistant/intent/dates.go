package intent

import (
	"fmt"
	"strings"
	"time"
)

// isoDate is the layout for caller-local calendar dates.
const isoDate = "2006-01-02"

// Tomorrow returns the ISO date one day after localDate, handling month and
// year rollover ("2024-01-31" → "2024-02-01", "2024-12-31" → "2025-01-01").
func Tomorrow(localDate string) (string, error) {
	t, err := time.Parse(isoDate, localDate)
	if err != nil {
		return "", fmt.Errorf("intent: parse local date %q: %w", localDate, err)
	}
	return t.AddDate(0, 0, 1).Format(isoDate), nil
}

// resolveDateWord maps "today"/"tomorrow" literals to concrete ISO dates
// relative to localDate. The classifier prompt already embeds the resolved
// dates, so this only catches models that echo the relative word anyway.
// Unrecognised values pass through unchanged.
func resolveDateWord(date, localDate string) string {
	switch strings.ToLower(strings.TrimSpace(date)) {
	case "today":
		return localDate
	case "tomorrow":
		if t, err := Tomorrow(localDate); err == nil {
			return t
		}
	}
	return date
}

// timeWords is the fixed phrase-to-24h-clock table embedded in the classifier
// prompt as guidance. The model remains responsible for combining these into
// the final HH:MM.
var timeWords = []struct{ phrase, clock string }{
	{"noon", "12:00"},
	{"midday", "12:00"},
	{"midnight", "00:00"},
	{"morning", "09:00"},
	{"afternoon", "14:00"},
	{"evening", "18:00"},
	{"1pm", "13:00"},
	{"2pm", "14:00"},
	{"3pm", "15:00"},
	{"4pm", "16:00"},
	{"5pm", "17:00"},
	{"6pm", "18:00"},
	{"7pm", "19:00"},
	{"8pm", "20:00"},
	{"9pm", "21:00"},
	{"10pm", "22:00"},
	{"11pm", "23:00"},
}

// timeWordGuidance renders the time-word table for the prompt.
func timeWordGuidance() string {
	var b strings.Builder
	for _, tw := range timeWords {
		b.WriteString("  ")
		b.WriteString(tw.phrase)
		b.WriteString(" = ")
		b.WriteString(tw.clock)
		b.WriteByte('\n')
	}
	return b.String()
}
