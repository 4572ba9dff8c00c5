// Package answer produces short factual replies for utterances that are not
// calendar operations, applying a silence policy for questions about the
// user's private life.
//
// The model is instructed to emit a fixed sentinel word instead of answering
// personal questions. The sentinel comparison is normalized (strip non-letters,
// uppercase) so punctuation or formatting variance in the model's output never
// leaks a literal sentinel word to the user.
package answer

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/skald-ai/skald/pkg/provider/llm"
)

// Sentinel is the word the model emits to request silence.
const Sentinel = "SILENT"

const answerTemperature = 0.2

// systemPrompt is the behavioral contract for the general-answer call.
const systemPrompt = `You are a terse voice assistant. Rules:
- Answer public-knowledge, factual, and math questions in at most 4 words.
- Never restate the question. Never explain.
- For questions about the user's private life, relationships, feelings, or
  personal schedule (patterns like "who is my X", "tell me about my X",
  "what's my X's Y"), respond with exactly the single word SILENT.
- Public figures and general knowledge are fine to answer.
- If you do not know, say "I don't know."`

// Generator issues the general-answer LLM call. It is safe for concurrent use.
type Generator struct {
	llm llm.Provider
}

// NewGenerator creates a Generator backed by the given provider.
func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{llm: provider}
}

// Answer returns the model's reply and whether the assistant should stay
// silent. history is the human-readable recent-turn log; it may be empty.
// Transport failures are returned as errors for the orchestrator's generic
// fallback reply.
func (g *Generator) Answer(ctx context.Context, utterance, history string) (text string, silent bool, err error) {
	userMsg := utterance
	if history != "" {
		userMsg = fmt.Sprintf("Recent conversation:\n%s\n\nQuestion: %s", history, utterance)
	}

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  answerTemperature,
		Messages: []llm.Message{
			{Role: "user", Content: userMsg},
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("answer: complete: %w", err)
	}

	reply := strings.TrimSpace(resp.Content)
	if IsSilence(reply) {
		return "", true, nil
	}
	return reply, false, nil
}

// IsSilence reports whether text is the silence sentinel after normalization:
// every non-letter rune is stripped and the remainder upper-compared, so
// " S!i-l_e n t " suppresses output exactly as a bare "SILENT" would.
func IsSilence(text string) bool {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String() == Sentinel
}
