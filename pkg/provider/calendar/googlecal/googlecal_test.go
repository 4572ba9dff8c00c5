package googlecal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skald-ai/skald/pkg/provider/calendar"
	"github.com/skald-ai/skald/pkg/provider/calendar/googlecal"
)

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPath string
	var gotBody calendar.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(calendar.Event{
			ID:      "ev42",
			Summary: gotBody.Summary,
			Start:   gotBody.Start,
			End:     gotBody.End,
		})
	}))
	defer srv.Close()

	p := googlecal.New(googlecal.WithBaseURL(srv.URL))
	created, err := p.CreateEvent(context.Background(), "tok-1", calendar.Event{
		Summary: "dentist",
		Start:   calendar.EventTime{DateTime: "2024-06-11T15:00:00Z", TimeZone: "UTC"},
		End:     calendar.EventTime{DateTime: "2024-06-11T16:00:00Z", TimeZone: "UTC"},
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotPath != "/calendars/primary/events" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.Summary != "dentist" {
		t.Errorf("request Summary = %q", gotBody.Summary)
	}
	if created.ID != "ev42" {
		t.Errorf("created.ID = %q, want ev42", created.ID)
	}
}

func TestCreateEvent_UnusableResponseBodyStillSucceeds(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	p := googlecal.New(googlecal.WithBaseURL(srv.URL))
	created, err := p.CreateEvent(context.Background(), "tok", calendar.Event{Summary: "dentist"})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v, want success without id", err)
	}
	if created.ID != "" || created.Summary != "dentist" {
		t.Errorf("created = %+v, want echoed event without id", created)
	}
}

func TestCreateEvent_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	p := googlecal.New(googlecal.WithBaseURL(srv.URL))
	_, err := p.CreateEvent(context.Background(), "tok", calendar.Event{Summary: "x"})
	if err == nil {
		t.Fatal("CreateEvent() error = nil, want status error")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error %q does not carry the status code", err)
	}
}

func TestListEvents(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("singleEvents") != "true" {
			t.Errorf("singleEvents = %q, want true", q.Get("singleEvents"))
		}
		if q.Get("orderBy") != "startTime" {
			t.Errorf("orderBy = %q, want startTime", q.Get("orderBy"))
		}
		if q.Get("timeMin") != "2024-06-10T00:00:00Z" || q.Get("timeMax") != "2024-06-11T00:00:00Z" {
			t.Errorf("window = %q..%q", q.Get("timeMin"), q.Get("timeMax"))
		}
		if q.Get("q") != "dentist" {
			t.Errorf("q = %q, want dentist", q.Get("q"))
		}
		if q.Get("maxResults") != "10" {
			t.Errorf("maxResults = %q, want 10", q.Get("maxResults"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"ev1","summary":"dentist"},{"id":"ev2","summary":"dentist checkup"}]}`))
	}))
	defer srv.Close()

	p := googlecal.New(googlecal.WithBaseURL(srv.URL))
	got, err := p.ListEvents(context.Background(), "tok", calendar.ListQuery{
		TimeMin:    "2024-06-10T00:00:00Z",
		TimeMax:    "2024-06-11T00:00:00Z",
		Text:       "dentist",
		MaxResults: 10,
	})
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "ev1" || got[1].ID != "ev2" {
		t.Errorf("events = %+v", got)
	}
}

func TestListEvents_EmptyQueryOmitsParams(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		for _, key := range []string{"timeMin", "timeMax", "q", "maxResults"} {
			if q.Has(key) {
				t.Errorf("unexpected query param %q = %q", key, q.Get(key))
			}
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	p := googlecal.New(googlecal.WithBaseURL(srv.URL))
	if _, err := p.ListEvents(context.Background(), "tok", calendar.ListQuery{}); err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
}

func TestDeleteEvent(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := googlecal.New(googlecal.WithBaseURL(srv.URL))
	if err := p.DeleteEvent(context.Background(), "tok", "ev1"); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", gotMethod)
	}
	if gotPath != "/calendars/primary/events/ev1" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestDeleteEvent_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := googlecal.New(googlecal.WithBaseURL(srv.URL))
	err := p.DeleteEvent(context.Background(), "tok", "missing")
	if err == nil {
		t.Fatal("DeleteEvent() error = nil, want status error")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error %q does not carry the status code", err)
	}
}
