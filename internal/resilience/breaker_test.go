package resilience

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(clock *fakeClock) *Breaker {
	return NewBreaker(BreakerConfig{
		Name:     "test",
		Trip:     3,
		Cooldown: 30 * time.Second,
		Probes:   2,
		now:      clock.now,
	})
}

var errBackend = errors.New("backend down")

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	b := newTestBreaker(&fakeClock{t: time.Now()})

	for i := 0; i < 10; i++ {
		if err := b.Do(succeed); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}
	if got := b.State(); got != Closed {
		t.Errorf("State() = %v, want Closed", got)
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		if err := b.Do(fail); !errors.Is(err, errBackend) {
			t.Fatalf("Do() error = %v, want backend error", err)
		}
	}
	if got := b.State(); got != Open {
		t.Fatalf("State() = %v, want Open after trip threshold", got)
	}

	// While open, calls are rejected without reaching the backend.
	if err := b.Do(fail); !errors.Is(err, ErrOpen) {
		t.Errorf("Do() error = %v, want ErrOpen", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newTestBreaker(clock)

	b.Do(fail)
	b.Do(fail)
	b.Do(succeed)
	b.Do(fail)
	b.Do(fail)

	if got := b.State(); got != Closed {
		t.Errorf("State() = %v, want Closed (failures not consecutive)", got)
	}
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.Do(fail)
	}
	clock.advance(31 * time.Second)

	if got := b.State(); got != HalfOpen {
		t.Errorf("State() = %v, want HalfOpen after cooldown", got)
	}
}

func TestBreaker_ClosesAfterSuccessfulProbes(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.Do(fail)
	}
	clock.advance(31 * time.Second)

	// Two successful probes close the breaker.
	for i := 0; i < 2; i++ {
		if err := b.Do(succeed); err != nil {
			t.Fatalf("probe %d error = %v", i, err)
		}
	}
	if got := b.State(); got != Closed {
		t.Errorf("State() = %v, want Closed after successful probes", got)
	}
}

func TestBreaker_ReopensOnProbeFailure(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.Do(fail)
	}
	clock.advance(31 * time.Second)

	if err := b.Do(fail); !errors.Is(err, errBackend) {
		t.Fatalf("probe error = %v, want backend error", err)
	}
	if got := b.State(); got != Open {
		t.Errorf("State() = %v, want Open after failed probe", got)
	}
	// The fresh failure restarts the cooldown.
	if err := b.Do(succeed); !errors.Is(err, ErrOpen) {
		t.Errorf("Do() error = %v, want ErrOpen during new cooldown", err)
	}
}

func TestBreaker_Reset(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.Do(fail)
	}
	b.Reset()

	if got := b.State(); got != Closed {
		t.Errorf("State() = %v, want Closed after Reset", got)
	}
	if err := b.Do(succeed); err != nil {
		t.Errorf("Do() error = %v after Reset", err)
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "defaults"})

	// Default trip threshold is five consecutive failures.
	for i := 0; i < 4; i++ {
		b.Do(fail)
	}
	if got := b.State(); got != Closed {
		t.Fatalf("State() = %v, want Closed at four failures", got)
	}
	b.Do(fail)
	if got := b.State(); got != Open {
		t.Errorf("State() = %v, want Open at five failures", got)
	}
}
