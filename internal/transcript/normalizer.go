// Package transcript turns raw streaming transcript fragments into stable
// utterances ready for classification.
//
// Browsers stream interim and final speech-to-text fragments; the assistant
// core must only ever see finalized paragraphs. The [Normalizer] accumulates
// fragments and emits an utterance when the client marks a fragment final or
// when the stream is quiescent for the configured window. Utterances shorter
// than three characters after trimming are rejected here and never reach the
// classifier.
package transcript

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultQuiescence is the silence window after which buffered fragments
	// are flushed as a completed utterance.
	DefaultQuiescence = 700 * time.Millisecond

	// minUtteranceLen is the shortest utterance worth processing, in bytes
	// after trimming.
	minUtteranceLen = 3
)

// Normalizer accumulates transcript fragments into utterances. All methods
// are safe for concurrent use (the server's read loop and flush ticker race).
type Normalizer struct {
	quiescence time.Duration
	now        func() time.Time

	mu       sync.Mutex
	parts    []string
	lastPush time.Time
}

// Option configures a [Normalizer].
type Option func(*Normalizer)

// WithQuiescence overrides [DefaultQuiescence].
func WithQuiescence(d time.Duration) Option {
	return func(n *Normalizer) { n.quiescence = d }
}

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		quiescence: DefaultQuiescence,
		now:        time.Now,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Push adds a fragment. When final is true the buffered fragments plus this
// one are flushed immediately; the returned utterance is empty when nothing
// met the minimum length.
func (n *Normalizer) Push(text string, final bool) (utterance string, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		n.parts = append(n.parts, trimmed)
	}
	n.lastPush = n.now()

	if final {
		return n.flushLocked()
	}
	return "", false
}

// FlushIfQuiescent flushes the buffer when no fragment arrived within the
// quiescence window. The server calls this on a short ticker.
func (n *Normalizer) FlushIfQuiescent() (utterance string, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.parts) == 0 {
		return "", false
	}
	if n.now().Sub(n.lastPush) < n.quiescence {
		return "", false
	}
	return n.flushLocked()
}

// Flush force-flushes the buffer regardless of quiescence, e.g. on disconnect.
func (n *Normalizer) Flush() (utterance string, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.flushLocked()
}

// flushLocked joins and clears the buffer, enforcing the minimum length.
// Must be called with n.mu held.
func (n *Normalizer) flushLocked() (string, bool) {
	joined := strings.TrimSpace(strings.Join(n.parts, " "))
	n.parts = n.parts[:0]

	if len(joined) < minUtteranceLen {
		return "", false
	}
	return joined, true
}
