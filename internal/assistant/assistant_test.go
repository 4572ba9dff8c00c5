package assistant_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/skald-ai/skald/internal/assistant"
	"github.com/skald-ai/skald/internal/assistant/answer"
	"github.com/skald-ai/skald/internal/assistant/answercache"
	"github.com/skald-ai/skald/internal/assistant/executor"
	"github.com/skald-ai/skald/internal/assistant/intent"
	"github.com/skald-ai/skald/pkg/provider/calendar"
	calmock "github.com/skald-ai/skald/pkg/provider/calendar/mock"
	"github.com/skald-ai/skald/pkg/provider/llm"
	llmmock "github.com/skald-ai/skald/pkg/provider/llm/mock"
	"github.com/skald-ai/skald/pkg/provider/token"
)

// newAssistant wires a full pipeline around mock providers. Both the
// classifier and the answer generator share the one LLM mock, so multi-step
// turns feed it queued responses in call order.
func newAssistant(p *llmmock.Provider, cal *calmock.Provider, tok token.Provider) *assistant.Assistant {
	return assistant.New(assistant.Config{
		Classifier: intent.NewClassifier(p),
		Answers:    answer.NewGenerator(p),
		Executor:   executor.New(cal, tok),
		Cache:      answercache.New(),
	})
}

func baseTurn(utterance string) assistant.Turn {
	return assistant.Turn{
		Utterance: utterance,
		Date:      "2024-06-10",
		Time:      "12:00",
		TimeZone:  "UTC",
		Now:       time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

func classifyJSON(body string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: body}
}

func TestHandleUtterance_Create(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: classifyJSON(`{"action":"CREATE","title":"dentist","date":"tomorrow","time":"15:00"}`),
	}
	cal := &calmock.Provider{}
	a := newAssistant(p, cal, &token.Static{AccessToken: "tok"})

	res := a.HandleUtterance(context.Background(), assistant.NewSession(), baseTurn("schedule dentist tomorrow at 3pm"))

	if res.Reply != "Added dentist." {
		t.Fatalf("Reply = %q, want %q", res.Reply, "Added dentist.")
	}
	if len(cal.CreateCalls) != 1 {
		t.Fatalf("CreateCalls = %d, want 1", len(cal.CreateCalls))
	}
	created := cal.CreateCalls[0]
	if created.Start.DateTime != "2024-06-11T15:00:00Z" {
		t.Errorf("Start.DateTime = %q, want %q", created.Start.DateTime, "2024-06-11T15:00:00Z")
	}
	// No duration mentioned, so the event spans one hour.
	if created.End.DateTime != "2024-06-11T16:00:00Z" {
		t.Errorf("End.DateTime = %q, want %q", created.End.DateTime, "2024-06-11T16:00:00Z")
	}
	if got := res.Session.Tracker.LastCreated(); len(got) != 1 || got[0].Title != "dentist" {
		t.Errorf("LastCreated = %v, want the new dentist event", got)
	}
}

func TestHandleUtterance_DeleteRequiresConfirmation(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: classifyJSON(`{"action":"SINGLE_DELETE","event_id":"ev1","title":"dentist"}`),
	}
	cal := &calmock.Provider{}
	a := newAssistant(p, cal, &token.Static{AccessToken: "tok"})

	res := a.HandleUtterance(context.Background(), assistant.NewSession(), baseTurn("delete my dentist appointment"))

	if res.Reply != "Delete dentist? Say yes to confirm." {
		t.Fatalf("Reply = %q, want confirmation prompt", res.Reply)
	}
	if res.Session.Pending == nil {
		t.Fatal("Pending = nil, want staged deletion")
	}
	if got := cal.Deleted(); len(got) != 0 {
		t.Fatalf("Deleted() = %v, want none before confirmation", got)
	}

	// "yes" executes the staged delete.
	res = a.HandleUtterance(context.Background(), res.Session, baseTurn("yes"))
	if res.Reply != "Deleted." {
		t.Fatalf("Reply = %q, want %q", res.Reply, "Deleted.")
	}
	if res.Session.Pending != nil {
		t.Errorf("Pending = %+v, want nil after execution", res.Session.Pending)
	}
	if got := cal.Deleted(); len(got) != 1 || got[0] != "ev1" {
		t.Errorf("Deleted() = %v, want [ev1]", got)
	}
}

func TestHandleUtterance_DenyCancelsPending(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: classifyJSON(`{"action":"SINGLE_DELETE","event_id":"ev1","title":"dentist"}`),
	}
	cal := &calmock.Provider{}
	a := newAssistant(p, cal, &token.Static{AccessToken: "tok"})

	res := a.HandleUtterance(context.Background(), assistant.NewSession(), baseTurn("delete my dentist appointment"))
	res = a.HandleUtterance(context.Background(), res.Session, baseTurn("never mind"))

	if res.Reply != "Okay, cancelled." {
		t.Fatalf("Reply = %q, want %q", res.Reply, "Okay, cancelled.")
	}
	if res.Session.Pending != nil {
		t.Errorf("Pending = %+v, want nil after deny", res.Session.Pending)
	}
	if got := cal.Deleted(); len(got) != 0 {
		t.Errorf("Deleted() = %v, want none", got)
	}
}

func TestHandleUtterance_AmbiguousTurnKeepsPendingStaged(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			classifyJSON(`{"action":"SINGLE_DELETE","event_id":"ev1","title":"dentist"}`),
			{Content: "Sunny."},
		},
	}
	cal := &calmock.Provider{}
	a := newAssistant(p, cal, &token.Static{AccessToken: "tok"})

	res := a.HandleUtterance(context.Background(), assistant.NewSession(), baseTurn("delete my dentist appointment"))

	// Neither yes nor no: answered as a fresh utterance while the staged
	// deletion stays pending and classification is withheld.
	res = a.HandleUtterance(context.Background(), res.Session, baseTurn("what's the weather like"))
	if res.Reply != "Sunny." {
		t.Fatalf("Reply = %q, want %q", res.Reply, "Sunny.")
	}
	if res.Session.Pending == nil {
		t.Fatal("Pending = nil, want deletion still staged")
	}
	if calls := p.Calls(); len(calls) != 2 {
		t.Errorf("LLM calls = %d, want 2 (classifier withheld on second turn)", len(calls))
	}
	if got := cal.Deleted(); len(got) != 0 {
		t.Errorf("Deleted() = %v, want none", got)
	}
}

func TestHandleUtterance_SafetyModeOffExecutesImmediately(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: classifyJSON(`{"action":"SINGLE_DELETE","event_id":"ev1","title":"dentist"}`),
	}
	cal := &calmock.Provider{}
	a := newAssistant(p, cal, &token.Static{AccessToken: "tok"})

	sess := assistant.NewSession()
	sess.SafetyMode = false

	res := a.HandleUtterance(context.Background(), sess, baseTurn("delete my dentist appointment"))
	if res.Reply != "Deleted." {
		t.Fatalf("Reply = %q, want %q", res.Reply, "Deleted.")
	}
	if got := cal.Deleted(); len(got) != 1 || got[0] != "ev1" {
		t.Errorf("Deleted() = %v, want [ev1]", got)
	}
}

func TestHandleUtterance_BulkDeleteEmptyRange(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: classifyJSON(`{"action":"BULK_DELETE","time_min":"2024-06-10T00:00:00Z","time_max":"2024-06-17T00:00:00Z"}`),
	}
	cal := &calmock.Provider{}
	a := newAssistant(p, cal, &token.Static{AccessToken: "tok"})

	res := a.HandleUtterance(context.Background(), assistant.NewSession(), baseTurn("clear my calendar this week"))
	if !strings.Contains(res.Reply, "Delete all events in that range?") {
		t.Fatalf("Reply = %q, want bulk confirmation prompt", res.Reply)
	}

	res = a.HandleUtterance(context.Background(), res.Session, baseTurn("yes"))
	if res.Reply != "No events found in that range." {
		t.Fatalf("Reply = %q, want empty-range reply", res.Reply)
	}
}

func TestHandleUtterance_CacheServesRepeatQuestion(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "4"},
	}
	cal := &calmock.Provider{}
	a := newAssistant(p, cal, &token.Static{AccessToken: "tok"})

	sess := assistant.NewSession()
	res := a.HandleUtterance(context.Background(), sess, baseTurn("What's 2+2?"))
	if res.Reply != "4" {
		t.Fatalf("Reply = %q, want %q", res.Reply, "4")
	}
	if calls := p.Calls(); len(calls) != 1 {
		t.Fatalf("LLM calls = %d, want 1", len(calls))
	}

	// Same question again: served from cache without another LLM call.
	res = a.HandleUtterance(context.Background(), res.Session, baseTurn("whats 2+2"))
	if res.Reply != "4" {
		t.Fatalf("cached Reply = %q, want %q", res.Reply, "4")
	}
	if calls := p.Calls(); len(calls) != 1 {
		t.Errorf("LLM calls = %d, want still 1 after cache hit", len(calls))
	}
}

func TestHandleUtterance_SilencePolicy(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "SILENT"},
	}
	a := newAssistant(p, &calmock.Provider{}, &token.Static{AccessToken: "tok"})

	res := a.HandleUtterance(context.Background(), assistant.NewSession(), baseTurn("who is my ex-girlfriend"))
	if res.Reply != "" {
		t.Fatalf("Reply = %q, want silence", res.Reply)
	}
	// Silent turns log the user line only.
	if got := res.Session.HistoryLog(); got != "User: who is my ex-girlfriend" {
		t.Errorf("HistoryLog() = %q", got)
	}
}

func TestHandleUtterance_LLMFailureFallsBack(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteErr: errors.New("connection refused")}
	a := newAssistant(p, &calmock.Provider{}, &token.Static{AccessToken: "tok"})

	res := a.HandleUtterance(context.Background(), assistant.NewSession(), baseTurn("schedule dentist tomorrow"))
	if res.Reply != "Sorry, I didn't catch that." {
		t.Fatalf("Reply = %q, want generic fallback", res.Reply)
	}
}

func TestHandleUtterance_NoTokenAsksToConnect(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: classifyJSON(`{"action":"CREATE","title":"dentist","date":"2024-06-11","time":"15:00"}`),
	}
	a := newAssistant(p, &calmock.Provider{}, &token.Static{})

	res := a.HandleUtterance(context.Background(), assistant.NewSession(), baseTurn("schedule dentist tomorrow at 3pm"))
	if res.Reply != "I couldn't do that. Please connect your calendar first." {
		t.Fatalf("Reply = %q, want connect-calendar reply", res.Reply)
	}
}

func TestHandleUtterance_SessionIsCopyOnWrite(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Paris"},
	}
	a := newAssistant(p, &calmock.Provider{}, &token.Static{AccessToken: "tok"})

	sess := assistant.NewSession()
	res := a.HandleUtterance(context.Background(), sess, baseTurn("what is the capital of France"))

	if res.Session == sess {
		t.Fatal("result session aliases the input session")
	}
	if len(sess.History) != 0 {
		t.Errorf("input session history mutated: %v", sess.History)
	}
	if len(res.Session.History) != 2 {
		t.Errorf("result history = %v, want user and assistant lines", res.Session.History)
	}
}

func TestHandleUtterance_PartialBulkFailureReportsCount(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: classifyJSON(`{"action":"BULK_DELETE","time_min":"2024-06-10T00:00:00Z","time_max":"2024-06-17T00:00:00Z"}`),
	}
	cal := &calmock.Provider{
		ListResult: []calendar.Event{
			{ID: "ev1", Summary: "standup"},
			{ID: "ev2", Summary: "lunch"},
		},
		DeleteErrs: map[string]error{"ev2": errors.New("boom")},
	}
	a := newAssistant(p, cal, &token.Static{AccessToken: "tok"})

	res := a.HandleUtterance(context.Background(), assistant.NewSession(), baseTurn("clear my calendar this week"))
	res = a.HandleUtterance(context.Background(), res.Session, baseTurn("yes"))

	if res.Reply != "Deleted 1 of 2 events." {
		t.Fatalf("Reply = %q, want partial-failure count", res.Reply)
	}
}
