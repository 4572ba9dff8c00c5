package answer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skald-ai/skald/internal/assistant/answer"
	"github.com/skald-ai/skald/pkg/provider/llm"
	"github.com/skald-ai/skald/pkg/provider/llm/mock"
)

func TestAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reply      string
		wantText   string
		wantSilent bool
	}{
		{name: "factual reply", reply: "Paris", wantText: "Paris", wantSilent: false},
		{name: "reply trimmed", reply: "  4  \n", wantText: "4", wantSilent: false},
		{name: "bare sentinel", reply: "SILENT", wantText: "", wantSilent: true},
		{name: "decorated sentinel", reply: " S!i-l_e n t ", wantText: "", wantSilent: true},
		{name: "sentinel lowercase", reply: "silent.", wantText: "", wantSilent: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := &mock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: tc.reply},
			}
			g := answer.NewGenerator(p)

			text, silent, err := g.Answer(context.Background(), "what is the capital of France", "")
			if err != nil {
				t.Fatalf("Answer() error = %v", err)
			}
			if text != tc.wantText {
				t.Errorf("text = %q, want %q", text, tc.wantText)
			}
			if silent != tc.wantSilent {
				t.Errorf("silent = %v, want %v", silent, tc.wantSilent)
			}
		})
	}
}

func TestAnswer_PromptCarriesHistory(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "4"},
	}
	g := answer.NewGenerator(p)

	_, _, err := g.Answer(context.Background(), "and times two?", "User: what is 2?\nAssistant: 2.")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if len(req.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(req.Messages))
	}
	msg := req.Messages[0].Content
	if !strings.Contains(msg, "User: what is 2?") {
		t.Errorf("user message missing history: %q", msg)
	}
	if !strings.Contains(msg, "Question: and times two?") {
		t.Errorf("user message missing question: %q", msg)
	}
	if !strings.Contains(req.SystemPrompt, answer.Sentinel) {
		t.Errorf("system prompt does not mention the sentinel")
	}
}

func TestAnswer_TransportError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("connection reset")
	p := &mock.Provider{CompleteErr: wantErr}
	g := answer.NewGenerator(p)

	_, _, err := g.Answer(context.Background(), "what is 2+2", "")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Answer() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestIsSilence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{"SILENT", true},
		{"silent", true},
		{"Silent.", true},
		{" S!i-l_e n t ", true},
		{"SILENTLY", false},
		{"stay silent", false},
		{"", false},
		{"Paris", false},
	}

	for _, tc := range tests {
		if got := answer.IsSilence(tc.text); got != tc.want {
			t.Errorf("IsSilence(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
