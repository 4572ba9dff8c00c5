package executor_test

import (
	"context"
	"strings"
	"testing"

	"github.com/skald-ai/skald/internal/assistant/executor"
	"github.com/skald-ai/skald/pkg/provider/calendar"
	"github.com/skald-ai/skald/pkg/provider/calendar/mock"
	"github.com/skald-ai/skald/pkg/provider/token"
)

func TestCreateRecurring_Weekly(t *testing.T) {
	t.Parallel()

	cal := &mock.Provider{
		ListResult: []calendar.Event{
			{ID: "occ1", Summary: "yoga", Start: calendar.EventTime{DateTime: "2024-06-11T18:00:00Z"}},
			{ID: "occ2", Summary: "yoga", Start: calendar.EventTime{DateTime: "2024-06-18T18:00:00Z"}},
		},
	}
	ex := executor.New(cal, &token.Static{AccessToken: "tok"})

	// 2024-06-10 is a Monday; a Tuesday series starts the next day.
	refs, err := ex.CreateRecurring(context.Background(), executor.RecurringSpec{
		Title:     "yoga",
		Frequency: "WEEKLY",
		DayOfWeek: "tuesday",
		Time:      "18:00",
		Count:     2,
		StartDate: "2024-06-10",
		TimeZone:  "UTC",
	})
	if err != nil {
		t.Fatalf("CreateRecurring() error = %v", err)
	}

	if len(cal.CreateCalls) != 1 {
		t.Fatalf("CreateCalls = %d, want 1", len(cal.CreateCalls))
	}
	created := cal.CreateCalls[0]
	if created.Start.DateTime != "2024-06-11T18:00:00Z" {
		t.Errorf("Start.DateTime = %q, want %q", created.Start.DateTime, "2024-06-11T18:00:00Z")
	}
	if len(created.Recurrence) != 1 {
		t.Fatalf("Recurrence = %v, want one rule", created.Recurrence)
	}
	rule := created.Recurrence[0]
	if !strings.HasPrefix(rule, "RRULE:") {
		t.Errorf("rule %q lacks RRULE: prefix", rule)
	}
	for _, part := range []string{"FREQ=WEEKLY", "COUNT=2", "BYDAY=TU"} {
		if !strings.Contains(rule, part) {
			t.Errorf("rule %q missing %q", rule, part)
		}
	}

	if len(refs) != 2 {
		t.Fatalf("refs = %d, want 2", len(refs))
	}
	if refs[0].ID != "occ1" || refs[1].ID != "occ2" {
		t.Errorf("ref ids = %q, %q, want occ1, occ2", refs[0].ID, refs[1].ID)
	}
	if refs[0].Date != "2024-06-11" || refs[0].Time != "18:00" {
		t.Errorf("first ref = %+v, want 2024-06-11 18:00", refs[0])
	}
	if refs[1].Date != "2024-06-18" {
		t.Errorf("second ref date = %q, want 2024-06-18", refs[1].Date)
	}
}

func TestCreateRecurring_DefaultCount(t *testing.T) {
	t.Parallel()

	cal := &mock.Provider{}
	ex := executor.New(cal, &token.Static{AccessToken: "tok"})

	_, err := ex.CreateRecurring(context.Background(), executor.RecurringSpec{
		Title:     "journal",
		Frequency: "DAILY",
		StartDate: "2024-06-10",
	})
	if err != nil {
		t.Fatalf("CreateRecurring() error = %v", err)
	}
	if rule := cal.CreateCalls[0].Recurrence[0]; !strings.Contains(rule, "COUNT=10") {
		t.Errorf("rule %q missing default COUNT=10", rule)
	}
}

func TestCreateRecurring_UnknownFrequency(t *testing.T) {
	t.Parallel()

	cal := &mock.Provider{}
	ex := executor.New(cal, &token.Static{AccessToken: "tok"})

	_, err := ex.CreateRecurring(context.Background(), executor.RecurringSpec{
		Title:     "x",
		Frequency: "HOURLY",
		StartDate: "2024-06-10",
	})
	if err == nil {
		t.Fatal("CreateRecurring() error = nil, want unknown frequency error")
	}
	if len(cal.CreateCalls) != 0 {
		t.Errorf("CreateEvent called despite invalid frequency")
	}
}

func TestCreateRecurring_OccurrenceQueryBestEffort(t *testing.T) {
	t.Parallel()

	cal := &mock.Provider{ListErr: context.DeadlineExceeded}
	ex := executor.New(cal, &token.Static{AccessToken: "tok"})

	refs, err := ex.CreateRecurring(context.Background(), executor.RecurringSpec{
		Title:     "yoga",
		Frequency: "WEEKLY",
		DayOfWeek: "friday",
		Time:      "07:00",
		Count:     3,
		StartDate: "2024-06-10",
		TimeZone:  "UTC",
	})
	if err != nil {
		t.Fatalf("CreateRecurring() error = %v, want nil when only the re-query fails", err)
	}
	if refs != nil {
		t.Errorf("refs = %v, want nil", refs)
	}
	// The series itself was still created.
	if len(cal.CreateCalls) != 1 {
		t.Errorf("CreateCalls = %d, want 1", len(cal.CreateCalls))
	}
}
