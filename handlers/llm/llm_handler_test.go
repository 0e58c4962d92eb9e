package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"voiceagent/core"
)

type fakeLLM struct {
	name     string
	reply    string
	err      error
	calls    int
	messages []core.Message
}

func (f *fakeLLM) Name() string                   { return f.name }
func (f *fakeLLM) Init(ctx context.Context) error { return nil }
func (f *fakeLLM) Cleanup() error                 { return nil }

func (f *fakeLLM) Complete(ctx context.Context, messages []core.Message) (string, error) {
	f.calls++
	f.messages = messages
	return f.reply, f.err
}

func history(n int) []core.Turn {
	turns := make([]core.Turn, n)
	for i := range turns {
		turns[i] = core.NewTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), nil)
	}
	return turns
}

func TestBuildPromptKeepsLastThreeTurns(t *testing.T) {
	h := NewLLMHandler(&fakeLLM{name: "x"}, nil, DefaultConfig(), core.NewNopLogger())
	msgs := h.BuildPrompt(history(5), "now")

	if len(msgs) != 8 {
		t.Fatalf("len=%d", len(msgs))
	}
	if msgs[0].Role != core.MessageRoleSystem || msgs[0].Content != DEFAULT_SYSTEM_PROMPT {
		t.Fatalf("first=%+v", msgs[0])
	}
	if msgs[1].Content != "q2" || msgs[2].Content != "a2" || msgs[6].Content != "a4" {
		t.Fatalf("window=%+v", msgs[1:7])
	}
	if last := msgs[7]; last.Role != core.MessageRoleUser || last.Content != "now" {
		t.Fatalf("last=%+v", last)
	}
}

func TestGenerateRejectsBlankInput(t *testing.T) {
	svc := &fakeLLM{name: "x", reply: "hi"}
	h := NewLLMHandler(svc, nil, DefaultConfig(), core.NewNopLogger())

	_, err := h.Generate(context.Background(), nil, "   ")
	if core.KindOf(err) != core.KindEmptyInput {
		t.Fatalf("err=%v", err)
	}
	if svc.calls != 0 {
		t.Fatalf("generator called for blank input")
	}
}

func TestGenerateEmptyReplyIsUpstreamUnavailable(t *testing.T) {
	h := NewLLMHandler(&fakeLLM{name: "x", reply: " \n"}, nil, DefaultConfig(), core.NewNopLogger())
	_, err := h.Generate(context.Background(), nil, "hello")
	if core.KindOf(err) != core.KindUpstreamUnavailable || core.StageOf(err) != core.StageGenerate {
		t.Fatalf("err=%v", err)
	}
}

func TestGenerateFailsOverOnRateLimit(t *testing.T) {
	primary := &fakeLLM{name: "openai", err: core.NewStageError(core.StageGenerate, core.KindRateLimited, errors.New("429"))}
	backup := &fakeLLM{name: "gemini", reply: "Hello from Gemini"}
	h := NewLLMHandler(primary, []LLMService{backup}, DefaultConfig(), core.NewNopLogger())

	reply, err := h.Generate(context.Background(), history(1), "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply.Provider != "gemini" || reply.Text != "Hello from Gemini" {
		t.Fatalf("reply=%+v", reply)
	}
	if len(backup.messages) != 4 {
		t.Fatalf("backup got %d messages", len(backup.messages))
	}
}
