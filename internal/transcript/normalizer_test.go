package transcript_test

import (
	"testing"
	"time"

	"github.com/skald-ai/skald/internal/transcript"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
}

func TestPush_FinalFlushesImmediately(t *testing.T) {
	t.Parallel()

	n := transcript.New()

	if _, ok := n.Push("schedule dentist", false); ok {
		t.Fatal("non-final fragment flushed")
	}
	got, ok := n.Push("tomorrow at 3pm", true)
	if !ok {
		t.Fatal("final fragment did not flush")
	}
	if got != "schedule dentist tomorrow at 3pm" {
		t.Errorf("utterance = %q", got)
	}

	// Buffer is empty afterwards.
	if _, ok := n.Flush(); ok {
		t.Error("buffer not cleared after flush")
	}
}

func TestPush_FragmentsAreTrimmed(t *testing.T) {
	t.Parallel()

	n := transcript.New()
	n.Push("  hello ", false)

	got, ok := n.Push("\tworld\n", true)
	if !ok {
		t.Fatal("final fragment did not flush")
	}
	if got != "hello world" {
		t.Errorf("utterance = %q, want %q", got, "hello world")
	}
}

func TestPush_ShortUtteranceRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{name: "too short", text: "ok"},
		{name: "whitespace only", text: "   "},
		{name: "empty", text: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			n := transcript.New()
			if got, ok := n.Push(tc.text, true); ok {
				t.Errorf("Push(%q, final) = %q, want rejection", tc.text, got)
			}
		})
	}
}

func TestFlushIfQuiescent(t *testing.T) {
	t.Parallel()

	clock := newClock()
	n := transcript.New(
		transcript.WithQuiescence(700*time.Millisecond),
		transcript.WithClock(clock.now),
	)

	n.Push("what's on my", false)

	// Inside the window: nothing flushes.
	clock.advance(300 * time.Millisecond)
	if got, ok := n.FlushIfQuiescent(); ok {
		t.Fatalf("FlushIfQuiescent() = %q inside window", got)
	}

	// A new fragment resets the window.
	n.Push("calendar today", false)
	clock.advance(500 * time.Millisecond)
	if got, ok := n.FlushIfQuiescent(); ok {
		t.Fatalf("FlushIfQuiescent() = %q after window reset", got)
	}

	clock.advance(300 * time.Millisecond)
	got, ok := n.FlushIfQuiescent()
	if !ok {
		t.Fatal("FlushIfQuiescent() did not flush after quiescence")
	}
	if got != "what's on my calendar today" {
		t.Errorf("utterance = %q", got)
	}
}

func TestFlushIfQuiescent_EmptyBuffer(t *testing.T) {
	t.Parallel()

	clock := newClock()
	n := transcript.New(transcript.WithClock(clock.now))

	clock.advance(time.Hour)
	if got, ok := n.FlushIfQuiescent(); ok {
		t.Errorf("FlushIfQuiescent() = %q on empty buffer", got)
	}
}

func TestFlush_ForcesPendingFragments(t *testing.T) {
	t.Parallel()

	n := transcript.New()
	n.Push("delete my last", false)

	got, ok := n.Flush()
	if !ok {
		t.Fatal("Flush() did not emit buffered fragments")
	}
	if got != "delete my last" {
		t.Errorf("utterance = %q", got)
	}
}
