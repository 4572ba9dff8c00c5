// Package confirm implements the multi-turn confirmation state machine that
// guards destructive calendar operations.
//
// When safety mode is on, a classified deletion does not execute immediately.
// Instead the pending operation is staged and the very next utterance is
// tested against the confirm/deny grammars before any other processing. An
// utterance matching neither grammar leaves the pending operation in place and
// falls through to be handled as a fresh utterance in the same turn.
//
// At most one pending operation exists per conversation session at a time.
package confirm

import (
	"strings"

	"github.com/skald-ai/skald/internal/assistant/event"
)

// State is the confirmation machine state.
type State int

const (
	// Idle means no destructive operation is awaiting confirmation.
	Idle State = iota

	// AwaitingSingleDeleteConfirm stages a single-event deletion.
	AwaitingSingleDeleteConfirm

	// AwaitingSpecificDeleteConfirm stages a deletion of an enumerated list.
	AwaitingSpecificDeleteConfirm

	// AwaitingBulkDeleteConfirm stages a time-range bulk deletion.
	AwaitingBulkDeleteConfirm
)

// String returns a short label for logging.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingSingleDeleteConfirm:
		return "awaiting-single-delete"
	case AwaitingSpecificDeleteConfirm:
		return "awaiting-specific-delete"
	case AwaitingBulkDeleteConfirm:
		return "awaiting-bulk-delete"
	}
	return "unknown"
}

// Pending is a destructive action staged for user confirmation. Exactly one
// of the variant fields is populated, selected by Kind.
type Pending struct {
	// Kind is the awaiting state this operation belongs to. Never Idle.
	Kind State

	// Single is set when Kind is AwaitingSingleDeleteConfirm.
	Single *SingleDeletion

	// Specific is set when Kind is AwaitingSpecificDeleteConfirm.
	Specific *SpecificDeletion

	// Bulk is set when Kind is AwaitingBulkDeleteConfirm.
	Bulk *BulkDeletion
}

// SingleDeletion stages deletion of one event, by id when known, otherwise by
// title lookup.
type SingleDeletion struct {
	// EventID is the calendar id, or empty when only the title is known.
	EventID string

	// EventTitle names the event for the confirmation prompt and for fuzzy
	// lookup when EventID is empty.
	EventTitle string

	// EventDate scopes the fuzzy lookup (ISO date, may be empty).
	EventDate string
}

// SpecificDeletion stages deletion of an enumerated list of events.
type SpecificDeletion struct {
	// Events are the staged targets in the order they were named.
	Events []event.Ref
}

// BulkDeletion stages deletion of every event in a time range.
type BulkDeletion struct {
	// TimeMin and TimeMax bound the range as RFC 3339 timestamps.
	TimeMin string
	TimeMax string
}

// Decision is the outcome of testing an utterance against the grammars.
type Decision int

const (
	// DecisionNone means the utterance matched neither grammar; the pending
	// operation stays staged and the utterance falls through.
	DecisionNone Decision = iota

	// DecisionConfirm means the staged operation should execute now.
	DecisionConfirm

	// DecisionDeny means the staged operation is discarded.
	DecisionDeny
)

// confirmPrefixes and denyPrefixes are the literal grammar tables. An
// utterance is matched by lowercased, trimmed prefix so "yes, do it" and
// "yes please" both confirm.
var (
	confirmPrefixes = []string{"yes", "yeah", "yep", "sure", "confirm", "delete", "go ahead", "do it"}
	denyPrefixes    = []string{"no", "nope", "cancel", "never mind", "nevermind", "don't", "dont", "stop"}
)

// Classify tests utterance against the confirm and deny grammars. Deny wins
// over confirm for the shared-prefix edge ("no" vs "nope" are both deny;
// nothing in the confirm table prefixes a deny word).
func Classify(utterance string) Decision {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	for _, p := range denyPrefixes {
		if strings.HasPrefix(lower, p) {
			return DecisionDeny
		}
	}
	for _, p := range confirmPrefixes {
		if strings.HasPrefix(lower, p) {
			return DecisionConfirm
		}
	}
	return DecisionNone
}

// Prompt renders the confirmation question for a staged operation.
func (p *Pending) Prompt() string {
	switch p.Kind {
	case AwaitingSingleDeleteConfirm:
		return "Delete " + p.Single.EventTitle + "? Say yes to confirm."
	case AwaitingSpecificDeleteConfirm:
		titles := make([]string, len(p.Specific.Events))
		for i, ev := range p.Specific.Events {
			titles[i] = ev.Title
		}
		return "Delete " + strings.Join(titles, ", ") + "? Say yes to confirm."
	case AwaitingBulkDeleteConfirm:
		return "Delete all events in that range? Say yes to confirm."
	}
	return ""
}
