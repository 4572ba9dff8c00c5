package resilience

import (
	"errors"
	"testing"
	"time"
)

type backend struct {
	name  string
	err   error
	calls int
}

func (b *backend) call() (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return b.name, nil
}

func newGroup(primary *backend, fallbacks ...*backend) *FallbackGroup[*backend] {
	g := NewFallbackGroup(primary.name, primary, FallbackConfig{
		Breaker: BreakerConfig{Trip: 2, Cooldown: 30 * time.Second},
	})
	for _, fb := range fallbacks {
		g.Add(fb.name, fb)
	}
	return g
}

func TestDo_PrimarySuccess(t *testing.T) {
	primary := &backend{name: "primary"}
	secondary := &backend{name: "secondary"}
	g := newGroup(primary, secondary)

	got, err := Do(g, (*backend).call)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "primary" {
		t.Errorf("result = %q, want primary", got)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestDo_FailsOverToSecondary(t *testing.T) {
	primary := &backend{name: "primary", err: errors.New("timeout")}
	secondary := &backend{name: "secondary"}
	g := newGroup(primary, secondary)

	got, err := Do(g, (*backend).call)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "secondary" {
		t.Errorf("result = %q, want secondary", got)
	}
	if primary.calls != 1 {
		t.Errorf("primary called %d times, want 1", primary.calls)
	}
}

func TestDo_AllFail(t *testing.T) {
	primary := &backend{name: "primary", err: errors.New("down")}
	secondary := &backend{name: "secondary", err: errors.New("also down")}
	g := newGroup(primary, secondary)

	_, err := Do(g, (*backend).call)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("Do() error = %v, want ErrAllFailed", err)
	}
}

func TestDo_OpenBreakerSkipsEntry(t *testing.T) {
	primary := &backend{name: "primary", err: errors.New("down")}
	secondary := &backend{name: "secondary"}
	g := newGroup(primary, secondary)

	// Trip the primary's breaker.
	for i := 0; i < 2; i++ {
		if _, err := Do(g, (*backend).call); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}

	primaryCalls := primary.calls
	if _, err := Do(g, (*backend).call); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if primary.calls != primaryCalls {
		t.Errorf("primary called while its breaker was open")
	}
	if secondary.calls != 3 {
		t.Errorf("secondary calls = %d, want 3", secondary.calls)
	}
}

func TestFallbackGroup_PrimaryAndLen(t *testing.T) {
	primary := &backend{name: "primary"}
	g := newGroup(primary, &backend{name: "a"}, &backend{name: "b"})

	if g.Len() != 3 {
		t.Errorf("Len() = %d, want 3", g.Len())
	}
	if g.Primary() != primary {
		t.Error("Primary() did not return the first registered backend")
	}
}
