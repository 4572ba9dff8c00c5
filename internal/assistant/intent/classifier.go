package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/skald-ai/skald/internal/assistant/event"
	"github.com/skald-ai/skald/pkg/provider/llm"
)

const classifyTemperature = 0.0

// systemPrompt is the strict-contract instruction for the classifier call.
// The per-turn context block is appended at call time.
const systemPrompt = `You classify a user's utterance into exactly one calendar action.

Respond with ONLY one JSON object, no markdown, no prose. The object must have
an "action" field set to one of: CREATE, RECURRING, BULK_DELETE,
SPECIFIC_DELETE, SINGLE_DELETE, NONE.

Shapes per action:
  CREATE:          {"action":"CREATE","title":"...","date":"YYYY-MM-DD","time":"HH:MM or empty for all-day","duration_minutes":60}
  RECURRING:       {"action":"RECURRING","title":"...","frequency":"DAILY|WEEKLY|MONTHLY","day_of_week":"monday..sunday or empty","time":"HH:MM or empty","count":10,"date":"YYYY-MM-DD first occurrence"}
  BULK_DELETE:     {"action":"BULK_DELETE","time_min":"RFC3339","time_max":"RFC3339"}
  SPECIFIC_DELETE: {"action":"SPECIFIC_DELETE","events":[{"title":"...","date":"YYYY-MM-DD","time":"HH:MM or empty","id":"calendar id or empty"}]}
  SINGLE_DELETE:   {"action":"SINGLE_DELETE","event_id":"id or empty","title":"...","date":"YYYY-MM-DD or empty"}
  NONE:            {"action":"NONE"}

Rules:
- Use the pre-resolved dates below for "today" and "tomorrow"; never emit the words themselves.
- When the user says "that", "it", or "those", resolve against the tracked events below and carry their ids.
- "my last created events" / "those events" refers to the recently created list.
- Deleting everything in a day/week/range is BULK_DELETE with the range bounds.
- Questions and chit-chat that perform no calendar change are NONE.
- Time word guidance (combine into final HH:MM yourself):
%s`

// Context carries everything the classifier embeds into its prompt.
type Context struct {
	// Utterance is the current finalized user utterance.
	Utterance string

	// History is a human-readable log of recent turns, supplied by the
	// caller and consumed read-only.
	History string

	// LastMentioned is the most recently discussed event, if any.
	LastMentioned *event.Ref

	// LastCreated lists events created earlier in the session, oldest first.
	LastCreated []event.Ref

	// Visible is the user's visible calendar window.
	Visible []event.Ref

	// Date, Time, TimeZone describe the caller's local clock
	// ("2024-06-10", "14:05", "Europe/Berlin").
	Date     string
	Time     string
	TimeZone string
}

// HasOpenContext reports whether a follow-up reference ("delete that") could
// resolve against tracked state.
func (c Context) HasOpenContext() bool {
	return c.LastMentioned != nil || len(c.LastCreated) > 0
}

// Classifier turns utterances into [Intent] values via a single LLM call.
// It is safe for concurrent use.
type Classifier struct {
	llm llm.Provider
}

// NewClassifier creates a Classifier backed by the given provider.
func NewClassifier(provider llm.Provider) *Classifier {
	return &Classifier{llm: provider}
}

// Classify sends one completion request and decodes the reply. A transport
// failure is returned as an error; an unparseable reply decodes to [None]
// with a nil error.
func (c *Classifier) Classify(ctx context.Context, in Context) (Intent, error) {
	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPrompt, timeWordGuidance()),
		Temperature:  classifyTemperature,
		Messages: []llm.Message{
			{Role: "user", Content: buildUserMessage(in)},
		},
	})
	if err != nil {
		return None, fmt.Errorf("intent: classify: %w", err)
	}
	return Decode(resp.Content, in.Date), nil
}

// buildUserMessage renders the per-turn context block plus the utterance.
// Today and tomorrow are resolved host-side. The model is never trusted with
// date arithmetic.
func buildUserMessage(in Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current date: %s\nCurrent time: %s\nTime zone: %s\n", in.Date, in.Time, in.TimeZone)
	if tomorrow, err := Tomorrow(in.Date); err == nil {
		fmt.Fprintf(&b, "Resolved dates: today = %s, tomorrow = %s\n", in.Date, tomorrow)
	}

	if in.LastMentioned != nil {
		fmt.Fprintf(&b, "Last mentioned event: %s (id: %s)\n", in.LastMentioned.String(), orNone(in.LastMentioned.ID))
	}
	if len(in.LastCreated) > 0 {
		b.WriteString("Recently created events:\n")
		for _, ev := range in.LastCreated {
			fmt.Fprintf(&b, "  - %s (id: %s)\n", ev.String(), orNone(ev.ID))
		}
	}
	if len(in.Visible) > 0 {
		b.WriteString("Visible calendar events:\n")
		for _, ev := range in.Visible {
			fmt.Fprintf(&b, "  - %s (id: %s)\n", ev.String(), orNone(ev.ID))
		}
	}
	if in.History != "" {
		fmt.Fprintf(&b, "Recent conversation:\n%s\n", in.History)
	}

	fmt.Fprintf(&b, "\nUtterance: %s\n", in.Utterance)
	return b.String()
}

func orNone(id string) string {
	if id == "" {
		return "none"
	}
	return id
}
