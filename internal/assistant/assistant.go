// Package assistant sequences the conversational intent pipeline for each
// incoming utterance: response-cache check, pending-confirmation check,
// calendar-intent classification, calendar execution or general answer,
// context update, reply.
//
// Every turn resolves to a reply string plus an updated [Session]; no error
// ever escapes to the transport layer. Failure modes map to conversational
// fallback replies per operation.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/skald-ai/skald/internal/assistant/answer"
	"github.com/skald-ai/skald/internal/assistant/answercache"
	"github.com/skald-ai/skald/internal/assistant/confirm"
	"github.com/skald-ai/skald/internal/assistant/event"
	"github.com/skald-ai/skald/internal/assistant/executor"
	"github.com/skald-ai/skald/internal/assistant/intent"
	"github.com/skald-ai/skald/internal/observe"
	"github.com/skald-ai/skald/pkg/provider/token"
)

// Conversational fallback strings. Upstream error bodies are never surfaced.
const (
	replyCancelled    = "Okay, cancelled."
	replyDeleted      = "Deleted."
	replyNotFound     = "I couldn't find that event."
	replyNoEvents     = "No events found in that range."
	replyConnect      = "I couldn't do that. Please connect your calendar first."
	replyGenericLLM   = "Sorry, I didn't catch that."
	replyGenericError = "Sorry, something went wrong."
)

// Turn carries the per-utterance inputs supplied by the client alongside the
// utterance itself: the caller's local clock and the visible calendar window.
type Turn struct {
	// Utterance is the finalized, non-empty user utterance.
	Utterance string

	// Date, Time, TimeZone describe the caller's local clock.
	Date     string
	Time     string
	TimeZone string

	// Visible is the user's visible calendar window.
	Visible []event.Ref

	// Now is the arrival instant; the zero value means time.Now().
	Now time.Time
}

// Result is the outcome of one turn.
type Result struct {
	// Reply is the assistant's response text. Empty means stay silent.
	Reply string

	// Session is the updated conversation state for the next turn.
	Session *Session
}

// Assistant is the per-utterance orchestrator. One Assistant serves many
// sessions; all per-conversation state lives in [Session].
type Assistant struct {
	classifier *intent.Classifier
	answers    *answer.Generator
	exec       *executor.Executor
	cache      *answercache.Cache
	metrics    *observe.Metrics
}

// Config holds the Assistant's collaborators. Metrics is optional; all other
// fields are required.
type Config struct {
	Classifier *intent.Classifier
	Answers    *answer.Generator
	Executor   *executor.Executor
	Cache      *answercache.Cache

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics
}

// New creates an Assistant.
func New(cfg Config) *Assistant {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Assistant{
		classifier: cfg.Classifier,
		answers:    cfg.Answers,
		exec:       cfg.Executor,
		cache:      cfg.Cache,
		metrics:    m,
	}
}

// HandleUtterance processes one utterance and returns the reply plus the
// updated session. sess is never mutated. The sequencing is fixed:
//
//	cache → confirmation → keyword gate → classify → execute | answer → context update
//
// A pending confirmation consumes the turn only when the utterance matches
// the confirm or deny grammar; otherwise the utterance falls through to
// general handling in the same turn, with the pending operation left staged
// and calendar classification withheld until it resolves.
func (a *Assistant) HandleUtterance(ctx context.Context, sess *Session, turn Turn) Result {
	next := sess.clone()
	if turn.Now.IsZero() {
		turn.Now = time.Now()
	}

	start := time.Now()
	reply := a.handle(ctx, next, turn)
	next.appendTurn(turn.Utterance, reply)

	a.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	status := "replied"
	if reply == "" {
		status = "silent"
	}
	a.metrics.RecordTurn(ctx, status)

	slog.Debug("turn handled",
		"utterance_len", len(turn.Utterance),
		"pending", describePending(next.Pending),
		"silent", reply == "",
	)
	return Result{Reply: reply, Session: next}
}

// handle runs the pipeline against the already-cloned session.
func (a *Assistant) handle(ctx context.Context, sess *Session, turn Turn) string {
	// 1. Response cache, only for simple factual questions.
	if answercache.Simple(turn.Utterance) {
		if cached, ok := a.cache.Get(turn.Utterance, len(turn.Visible)); ok {
			a.metrics.CacheHits.Add(ctx, 1)
			return cached
		}
		a.metrics.CacheMisses.Add(ctx, 1)
	}

	// 2. Pending confirmation: the very next utterance is tested against
	// the yes/no grammar before anything else.
	if sess.Pending != nil {
		switch confirm.Classify(turn.Utterance) {
		case confirm.DecisionConfirm:
			pending := sess.Pending
			sess.Pending = nil
			return a.executePending(ctx, sess, pending, turn)
		case confirm.DecisionDeny:
			sess.Pending = nil
			return replyCancelled
		case confirm.DecisionNone:
			// Ambiguous: fall through as a fresh utterance. The pending
			// operation stays staged and blocks calendar classification.
		}
	}

	// 3. Calendar-intent branch, gated on vocabulary or open context.
	openContext := sess.Tracker.HasContext()
	if sess.Pending == nil && intent.ShouldClassify(turn.Utterance, openContext) {
		start := time.Now()
		in, err := a.classifier.Classify(ctx, a.classifierContext(sess, turn))
		a.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			slog.Warn("intent classification failed", "err", err)
			a.metrics.RecordProviderError(ctx, "llm", "classify")
			in = intent.None
		}
		if in.Kind != intent.KindNone {
			return a.executeIntent(ctx, sess, in, turn)
		}
	}

	// 4. General answer branch.
	return a.generalAnswer(ctx, sess, turn)
}

// classifierContext assembles the prompt context from session and turn state.
func (a *Assistant) classifierContext(sess *Session, turn Turn) intent.Context {
	return intent.Context{
		Utterance:     turn.Utterance,
		History:       sess.HistoryLog(),
		LastMentioned: sess.Tracker.LastMentioned(),
		LastCreated:   sess.Tracker.LastCreated(),
		Visible:       turn.Visible,
		Date:          turn.Date,
		Time:          turn.Time,
		TimeZone:      turn.TimeZone,
	}
}

// executeIntent dispatches a non-NONE intent. Destructive intents stage a
// pending confirmation under safety mode instead of executing.
func (a *Assistant) executeIntent(ctx context.Context, sess *Session, in intent.Intent, turn Turn) string {
	switch in.Kind {
	case intent.KindCreate:
		return a.doCreate(ctx, sess, in.Create, turn)

	case intent.KindRecurring:
		return a.doRecurring(ctx, sess, in.Recurring, turn)

	case intent.KindSingleDelete:
		pending := &confirm.Pending{
			Kind: confirm.AwaitingSingleDeleteConfirm,
			Single: &confirm.SingleDeletion{
				EventID:    in.SingleDelete.EventID,
				EventTitle: in.SingleDelete.EventTitle,
				EventDate:  in.SingleDelete.Date,
			},
		}
		return a.stageOrExecute(ctx, sess, pending, turn)

	case intent.KindSpecificDelete:
		pending := &confirm.Pending{
			Kind:     confirm.AwaitingSpecificDeleteConfirm,
			Specific: &confirm.SpecificDeletion{Events: in.SpecificDelete.Events},
		}
		return a.stageOrExecute(ctx, sess, pending, turn)

	case intent.KindBulkDelete:
		pending := &confirm.Pending{
			Kind: confirm.AwaitingBulkDeleteConfirm,
			Bulk: &confirm.BulkDeletion{
				TimeMin: in.BulkDelete.TimeMin,
				TimeMax: in.BulkDelete.TimeMax,
			},
		}
		return a.stageOrExecute(ctx, sess, pending, turn)
	}
	return a.generalAnswer(ctx, sess, turn)
}

// stageOrExecute stages pending under safety mode, or executes it directly.
func (a *Assistant) stageOrExecute(ctx context.Context, sess *Session, pending *confirm.Pending, turn Turn) string {
	if sess.SafetyMode {
		sess.Pending = pending
		return pending.Prompt()
	}
	return a.executePending(ctx, sess, pending, turn)
}

// doCreate executes a CREATE intent and records the new event for follow-up
// references. The stored ref's id stays empty unless the calendar reported one.
func (a *Assistant) doCreate(ctx context.Context, sess *Session, c *intent.Create, turn Turn) string {
	start := time.Now()
	ref, err := a.exec.Create(ctx, executor.CreateSpec{
		Title:           c.Title,
		Date:            c.Date,
		Time:            c.Time,
		DurationMinutes: c.DurationMinutes,
		TimeZone:        turn.TimeZone,
	})
	a.metrics.RecordCalendarOp(ctx, "create", time.Since(start))
	if err != nil {
		return a.calendarFailure(ctx, "add that", err)
	}
	sess.Tracker.RecordCreated(ref)
	return fmt.Sprintf("Added %s.", c.Title)
}

// doRecurring executes a RECURRING intent and tracks whichever occurrences
// the post-create re-query materialized.
func (a *Assistant) doRecurring(ctx context.Context, sess *Session, r *intent.Recurring, turn Turn) string {
	startDate := r.StartDate
	if startDate == "" {
		startDate = turn.Date
	}
	start := time.Now()
	occurrences, err := a.exec.CreateRecurring(ctx, executor.RecurringSpec{
		Title:     r.Title,
		Frequency: r.Frequency,
		DayOfWeek: r.DayOfWeek,
		Time:      r.Time,
		Count:     r.Count,
		StartDate: startDate,
		TimeZone:  turn.TimeZone,
	})
	a.metrics.RecordCalendarOp(ctx, "create_recurring", time.Since(start))
	if err != nil {
		return a.calendarFailure(ctx, "set that up", err)
	}
	sess.Tracker.RecordCreated(occurrences...)
	return fmt.Sprintf("Added %s, %d times.", r.Title, r.Count)
}

// executePending runs a confirmed (or safety-off) destructive operation.
// Success clears tracked context; failure reports and returns to idle.
func (a *Assistant) executePending(ctx context.Context, sess *Session, pending *confirm.Pending, turn Turn) string {
	switch pending.Kind {
	case confirm.AwaitingSingleDeleteConfirm:
		s := pending.Single
		start := time.Now()
		var err error
		if s.EventID != "" {
			err = a.exec.DeleteByID(ctx, s.EventID)
		} else {
			err = a.exec.DeleteByLookup(ctx, s.EventTitle, s.EventDate, turn.TimeZone)
		}
		a.metrics.RecordCalendarOp(ctx, "delete", time.Since(start))
		if err != nil {
			if errors.Is(err, executor.ErrNotFound) {
				return replyNotFound
			}
			return a.calendarFailure(ctx, "delete that", err)
		}
		sess.Tracker.Clear()
		return replyDeleted

	case confirm.AwaitingSpecificDeleteConfirm:
		start := time.Now()
		res, err := a.exec.DeleteSpecific(ctx, pending.Specific.Events, turn.TimeZone)
		a.metrics.RecordCalendarOp(ctx, "delete_specific", time.Since(start))
		if err != nil {
			return a.calendarFailure(ctx, "delete those", err)
		}
		return a.finishBatch(sess, res)

	case confirm.AwaitingBulkDeleteConfirm:
		start := time.Now()
		res, err := a.exec.BulkDelete(ctx, pending.Bulk.TimeMin, pending.Bulk.TimeMax)
		a.metrics.RecordCalendarOp(ctx, "delete_bulk", time.Since(start))
		if err != nil {
			return a.calendarFailure(ctx, "clear that range", err)
		}
		return a.finishBatch(sess, res)
	}
	return replyGenericError
}

// finishBatch renders a fan-out result and clears context when anything was
// deleted. Partial failure is reported as a count, never as a hard failure.
func (a *Assistant) finishBatch(sess *Session, res executor.BulkResult) string {
	if res.Attempted == 0 {
		return replyNoEvents
	}
	if res.Deleted > 0 {
		sess.Tracker.Clear()
	}
	if res.Deleted == res.Attempted {
		return fmt.Sprintf("Deleted %s.", strings.Join(res.Titles, ", "))
	}
	return fmt.Sprintf("Deleted %d of %d events.", res.Deleted, res.Attempted)
}

// generalAnswer runs the non-calendar branch: LLM answer, silence policy,
// cache write-through, and mention resolution against the visible window.
func (a *Assistant) generalAnswer(ctx context.Context, sess *Session, turn Turn) string {
	start := time.Now()
	text, silent, err := a.answers.Answer(ctx, turn.Utterance, sess.HistoryLog())
	a.metrics.AnswerDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.Warn("answer generation failed", "err", err)
		a.metrics.RecordProviderError(ctx, "llm", "answer")
		return replyGenericLLM
	}
	if silent {
		return ""
	}

	if answercache.Simple(turn.Utterance) {
		a.cache.Put(turn.Utterance, len(turn.Visible), text)
	}

	loc := turnLocation(turn)
	sess.Tracker.ResolveReference(text+" "+turn.Utterance, turn.Visible, turn.Now, loc)
	return text
}

// calendarFailure maps executor errors to conversational fallbacks, logging
// internal details without exposing them.
func (a *Assistant) calendarFailure(ctx context.Context, what string, err error) string {
	if errors.Is(err, token.ErrUnavailable) {
		slog.Info("calendar operation blocked: no access token", "op", what)
		a.metrics.RecordProviderError(ctx, "token", what)
		return replyConnect
	}
	slog.Error("calendar operation failed", "op", what, "err", err)
	a.metrics.RecordProviderError(ctx, "calendar", what)
	return fmt.Sprintf("Sorry, I couldn't %s.", what)
}

// turnLocation resolves the turn's time zone, defaulting to UTC.
func turnLocation(turn Turn) *time.Location {
	if turn.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(turn.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
