package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"voiceagent/core"
	"voiceagent/events/llm"
)

type LLMService interface {
	core.IService
	Complete(ctx context.Context, messages []core.Message) (string, error)
}

// Reply is the generated assistant text and the provider that produced it.
type Reply struct {
	Text     string
	Provider string
}

type LLMHandler struct {
	*core.BaseHandler[LLMService]
	config   LLMHandlerConfig
	observer core.EventObserver
	logger   *core.Logger
}

func NewLLMHandler(service LLMService, backupServices []LLMService, config LLMHandlerConfig, logger *core.Logger) *LLMHandler {
	if config.SystemPrompt == "" {
		config.SystemPrompt = DEFAULT_SYSTEM_PROMPT
	}
	if config.HistoryTurns < 0 {
		config.HistoryTurns = 0
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	logger = logger.With(map[string]any{"handler": "llm"})
	return &LLMHandler{
		BaseHandler: core.NewBaseHandler(service, backupServices, logger),
		config:      config,
		logger:      logger,
	}
}

func (h *LLMHandler) WithObserver(observer core.EventObserver) *LLMHandler {
	h.observer = observer
	return h
}

// BuildPrompt returns the system prompt, the trailing history window and the
// new user text, in that order.
func (h *LLMHandler) BuildPrompt(history []core.Turn, userText string) []core.Message {
	window := core.LastTurns(history, h.config.HistoryTurns)
	messages := make([]core.Message, 0, len(window)*2+2)
	messages = append(messages, core.Message{Role: core.MessageRoleSystem, Content: h.config.SystemPrompt})
	messages = append(messages, core.Messages(window)...)
	return append(messages, core.Message{Role: core.MessageRoleUser, Content: userText})
}

// Generate produces the assistant reply to userText given prior turns.
func (h *LLMHandler) Generate(ctx context.Context, history []core.Turn, userText string) (*Reply, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, core.NewStageError(core.StageGenerate, core.KindEmptyInput, errors.New("no user text"))
	}

	messages := h.BuildPrompt(history, userText)
	core.Publish(ctx, h.observer, &llm.GenerationStartedEvent{HistoryTurns: (len(messages) - 2) / 2}, "LLMHandler")

	var text string
	svc, err := h.Run(ctx, core.StageGenerate, func(s LLMService) error {
		attemptCtx, cancel := h.attemptContext(ctx)
		defer cancel()
		reply, err := s.Complete(attemptCtx, messages)
		if err != nil {
			return err
		}
		reply = strings.TrimSpace(reply)
		if reply == "" {
			return core.NewStageError(core.StageGenerate, core.KindUpstreamUnavailable, errors.New("empty reply")).WithProvider(s.Name())
		}
		text = reply
		return nil
	})
	if err != nil {
		return nil, err
	}

	core.LoggerFromContext(ctx, h.logger).Debug("generated reply", "provider", svc.Name(), "chars", len(text))
	core.Publish(ctx, h.observer, &llm.GenerationCompletedEvent{Text: text, Provider: svc.Name()}, "LLMHandler")
	return &Reply{Text: text, Provider: svc.Name()}, nil
}

func (h *LLMHandler) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.config.TimeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(h.config.TimeoutMs)*time.Millisecond)
}
