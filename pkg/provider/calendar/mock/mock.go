// Package mock provides a test double for the calendar.Provider interface.
//
// The mock records every call and serves canned responses. It is safe for
// concurrent use, which matters for the executor's fan-out deletes.
package mock

import (
	"context"
	"sync"

	"github.com/skald-ai/skald/pkg/provider/calendar"
)

// Provider is a mock implementation of calendar.Provider.
type Provider struct {
	mu sync.Mutex

	// CreateResult is returned by CreateEvent when CreateErr is nil.
	// When nil, CreateEvent echoes the request back without an ID.
	CreateResult *calendar.Event

	// CreateErr, if non-nil, is returned by CreateEvent.
	CreateErr error

	// ListResults is consumed one slice per ListEvents call. When exhausted
	// (or empty), ListResult is returned instead.
	ListResults [][]calendar.Event

	// ListResult is the fallback ListEvents response.
	ListResult []calendar.Event

	// ListErr, if non-nil, is returned by ListEvents.
	ListErr error

	// DeleteErrs maps event id → injected error for DeleteEvent.
	// IDs absent from the map delete successfully.
	DeleteErrs map[string]error

	// --- Recorded calls ---

	CreateCalls []calendar.Event
	ListCalls   []calendar.ListQuery
	DeleteCalls []string
	Tokens      []string
}

// Compile-time interface check.
var _ calendar.Provider = (*Provider)(nil)

// CreateEvent implements calendar.Provider.
func (p *Provider) CreateEvent(_ context.Context, accessToken string, ev calendar.Event) (*calendar.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CreateCalls = append(p.CreateCalls, ev)
	p.Tokens = append(p.Tokens, accessToken)

	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	if p.CreateResult != nil {
		res := *p.CreateResult
		return &res, nil
	}
	res := ev
	return &res, nil
}

// ListEvents implements calendar.Provider.
func (p *Provider) ListEvents(_ context.Context, accessToken string, q calendar.ListQuery) ([]calendar.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ListCalls = append(p.ListCalls, q)
	p.Tokens = append(p.Tokens, accessToken)

	if p.ListErr != nil {
		return nil, p.ListErr
	}
	if len(p.ListResults) > 0 {
		res := p.ListResults[0]
		p.ListResults = p.ListResults[1:]
		return res, nil
	}
	return p.ListResult, nil
}

// DeleteEvent implements calendar.Provider.
func (p *Provider) DeleteEvent(_ context.Context, accessToken string, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.DeleteCalls = append(p.DeleteCalls, id)
	p.Tokens = append(p.Tokens, accessToken)

	if err, ok := p.DeleteErrs[id]; ok {
		return err
	}
	return nil
}

// Deleted returns a snapshot of the ids passed to DeleteEvent.
func (p *Provider) Deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.DeleteCalls))
	copy(out, p.DeleteCalls)
	return out
}
