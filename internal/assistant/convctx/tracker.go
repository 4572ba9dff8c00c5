// Package convctx maintains the conversational context that lets pronouns and
// fuzzy references ("delete that", "those events") resolve to concrete
// calendar entries across turns.
//
// The tracker holds one "last mentioned" event and an ordered, append-only
// "last created" list. Both are cleared after any successful deletion or
// topic change. The tracker is scoped to a single conversation session.
package convctx

import (
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/skald-ai/skald/internal/assistant/event"
)

// tokenSimilarityFloor is the Jaro-Winkler score above which two tokens are
// considered the same word despite transcription noise.
const tokenSimilarityFloor = 0.92

// urgencyVocabulary marks utterances asking about the temporally nearest
// event, which triggers the nearest-upcoming scan.
var urgencyVocabulary = []string{"next", "upcoming", "soonest"}

// Tracker remembers which calendar event was last discussed or created.
// It is not safe for concurrent use; each conversation session owns one
// tracker and processes one utterance at a time.
type Tracker struct {
	lastMentioned *event.Ref
	lastCreated   []event.Ref
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// LastMentioned returns the most recently discussed event, or nil.
func (t *Tracker) LastMentioned() *event.Ref {
	return t.lastMentioned
}

// LastCreated returns the ordered list of events created this session.
func (t *Tracker) LastCreated() []event.Ref {
	return t.lastCreated
}

// RecordMentioned marks ev as the event under discussion.
func (t *Tracker) RecordMentioned(ev event.Ref) {
	copied := ev
	t.lastMentioned = &copied
}

// RecordCreated appends evs to the last-created list.
func (t *Tracker) RecordCreated(evs ...event.Ref) {
	t.lastCreated = append(t.lastCreated, evs...)
}

// Clear forgets all tracked context. Invoked after any successful deletion or
// topic change.
func (t *Tracker) Clear() {
	t.lastMentioned = nil
	t.lastCreated = nil
}

// HasContext reports whether any reference is being tracked.
func (t *Tracker) HasContext() bool {
	return t.lastMentioned != nil || len(t.lastCreated) > 0
}

// Clone returns a deep copy, supporting copy-on-write session snapshots.
func (t *Tracker) Clone() *Tracker {
	c := &Tracker{}
	if t.lastMentioned != nil {
		m := *t.lastMentioned
		c.lastMentioned = &m
	}
	if len(t.lastCreated) > 0 {
		c.lastCreated = make([]event.Ref, len(t.lastCreated))
		copy(c.lastCreated, t.lastCreated)
	}
	return c
}

// ResolveReference scans text (typically an answer just produced for the
// user) against the visible events and records a newly mentioned event when
// one resolves. Two paths run in order:
//
//  1. Textual overlap: substring match on the title, or overlap on tokens
//     longer than 2 characters (Jaro-Winkler against transcription noise).
//  2. Nearest upcoming: when text carries urgency vocabulary ("next",
//     "upcoming", "soonest"), the visible event with the smallest
//     non-negative time-until-start wins.
//
// The nearest-upcoming match runs second and is allowed to override the
// textual match. Returns the newly mentioned event, or nil when neither path
// resolved.
func (t *Tracker) ResolveReference(text string, visible []event.Ref, now time.Time, loc *time.Location) *event.Ref {
	var resolved *event.Ref

	if m := matchTextual(text, visible); m != nil {
		t.RecordMentioned(*m)
		resolved = t.lastMentioned
	}

	if hasUrgency(text) {
		if m := nearestUpcoming(visible, now, loc); m != nil {
			t.RecordMentioned(*m)
			resolved = t.lastMentioned
		}
	}

	return resolved
}

// matchTextual finds the first visible event whose title appears in text as a
// substring, or shares a >2-char token with it.
func matchTextual(text string, visible []event.Ref) *event.Ref {
	lower := strings.ToLower(text)
	textTokens := tokenize(lower)

	for i := range visible {
		title := strings.ToLower(visible[i].Title)
		if title == "" {
			continue
		}
		if strings.Contains(lower, title) {
			return &visible[i]
		}
		for _, tt := range tokenize(title) {
			for _, xt := range textTokens {
				if tokensMatch(tt, xt) {
					return &visible[i]
				}
			}
		}
	}
	return nil
}

// tokenize splits lowercased text into tokens longer than 2 characters.
func tokenize(lower string) []string {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// tokensMatch accepts exact equality or near-equality under Jaro-Winkler,
// which absorbs minor STT misspellings ("dentist" vs "dentists").
func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	return matchr.JaroWinkler(a, b, false) >= tokenSimilarityFloor
}

// hasUrgency reports whether text contains the urgency vocabulary.
func hasUrgency(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range urgencyVocabulary {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// nearestUpcoming returns the visible event with the minimum non-negative
// time until start, or nil when every event is in the past or unparseable.
func nearestUpcoming(visible []event.Ref, now time.Time, loc *time.Location) *event.Ref {
	var best *event.Ref
	var bestDelta time.Duration

	for i := range visible {
		start, err := visible[i].Start(loc)
		if err != nil {
			continue
		}
		delta := start.Sub(now)
		if delta < 0 {
			continue
		}
		if best == nil || delta < bestDelta {
			best = &visible[i]
			bestDelta = delta
		}
	}
	return best
}
