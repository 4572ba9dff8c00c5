// Package notes generates structured hierarchical notes from recorded session
// transcripts and persists them through a [Store].
//
// Note generation is an offline concern. It runs when a session ends or when
// the client explicitly asks, never on the per-utterance path.
package notes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/skald-ai/skald/pkg/provider/llm"
)

const notesTemperature = 0.3

// notesPrompt is the behavioral contract for the note-generation call.
const notesPrompt = `You turn a conversation transcript into hierarchical notes.

Output markdown only:
- A "# " title line naming the overall topic.
- "## " section headings per distinct topic, in transcript order.
- Nested "-" bullet points under each section, at most two levels deep.
- Keep decisions, dates, names, and action items; drop filler and small talk.
- Do not invent content that is not in the transcript.`

// Note is a generated note document.
type Note struct {
	// ID is the store-assigned identifier. Empty before saving.
	ID string

	// SessionID names the conversation the note was generated from.
	SessionID string

	// Markdown is the hierarchical note body.
	Markdown string

	// CreatedAt is when the note was generated.
	CreatedAt time.Time
}

// Generator produces notes from transcripts via an LLM call.
// It is safe for concurrent use.
type Generator struct {
	llm llm.Provider
}

// NewGenerator creates a Generator backed by the given provider.
func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{llm: provider}
}

// Generate summarizes the transcript lines (oldest first) into a hierarchical
// markdown note. An empty transcript yields an empty note and no LLM call.
func (g *Generator) Generate(ctx context.Context, sessionID string, transcript []string) (*Note, error) {
	if len(transcript) == 0 {
		return &Note{SessionID: sessionID, CreatedAt: time.Now()}, nil
	}

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: notesPrompt,
		Temperature:  notesTemperature,
		Messages: []llm.Message{
			{Role: "user", Content: strings.Join(transcript, "\n")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notes: generate: %w", err)
	}

	return &Note{
		SessionID: sessionID,
		Markdown:  strings.TrimSpace(resp.Content),
		CreatedAt: time.Now(),
	}, nil
}
