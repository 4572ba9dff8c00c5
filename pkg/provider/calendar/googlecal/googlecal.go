// Package googlecal provides a calendar.Provider backed by the Google Calendar
// v3 REST API.
//
// All calls target the authenticated user's primary calendar. The provider
// performs no token management; each call carries the bearer token supplied
// by the caller.
//
// Typical usage:
//
//	p := googlecal.New(
//	    googlecal.WithTimeout(10*time.Second),
//	)
//	evs, err := p.ListEvents(ctx, token, calendar.ListQuery{TimeMin: min, TimeMax: max})
package googlecal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skald-ai/skald/pkg/provider/calendar"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	defaultTimeout = 15 * time.Second

	eventsPath = "/calendars/primary/events"
)

// Compile-time interface assertion.
var _ calendar.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the default API base URL. Intended for tests and
// API-compatible proxies.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = u
	}
}

// WithTimeout sets the per-request HTTP timeout. Default: 15s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements calendar.Provider against the Google Calendar v3 API.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Google Calendar provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// listResponse is the JSON envelope returned by the events list endpoint.
type listResponse struct {
	Items []calendar.Event `json:"items"`
}

// CreateEvent implements calendar.Provider.
func (p *Provider) CreateEvent(ctx context.Context, accessToken string, ev calendar.Event) (*calendar.Event, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("googlecal: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+eventsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("googlecal: build create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googlecal: create event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("create event", resp)
	}

	var created calendar.Event
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		// The event was created; only the response body was unusable. Report
		// success without an id rather than failing the operation.
		return &calendar.Event{Summary: ev.Summary, Start: ev.Start, End: ev.End}, nil
	}
	return &created, nil
}

// ListEvents implements calendar.Provider. Recurring series are expanded into
// single events ordered by start time.
func (p *Provider) ListEvents(ctx context.Context, accessToken string, q calendar.ListQuery) ([]calendar.Event, error) {
	params := url.Values{}
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	if q.TimeMin != "" {
		params.Set("timeMin", q.TimeMin)
	}
	if q.TimeMax != "" {
		params.Set("timeMax", q.TimeMax)
	}
	if q.Text != "" {
		params.Set("q", q.Text)
	}
	if q.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(q.MaxResults))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+eventsPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("googlecal: build list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googlecal: list events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("list events", resp)
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("googlecal: decode list response: %w", err)
	}
	return lr.Items, nil
}

// DeleteEvent implements calendar.Provider.
func (p *Provider) DeleteEvent(ctx context.Context, accessToken string, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.baseURL+eventsPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("googlecal: build delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("googlecal: delete event %s: %w", id, err)
	}
	defer resp.Body.Close()

	// Google answers deletes with 204 No Content; any 2xx counts as deleted.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("delete event", resp)
	}
	return nil
}

// statusError summarises a non-2xx response without leaking the upstream body
// beyond a short prefix (error bodies can contain user data).
func statusError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("googlecal: %s: unexpected status %d: %s", op, resp.StatusCode, bytes.TrimSpace(snippet))
}
