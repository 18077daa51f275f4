package planner

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hyperengineering/vision/internal/llm"
)

// DemoReply is returned by the advisor in degraded mode.
const DemoReply = "Estou operando em modo de demonstração (sem chave de API). Como posso ajudar com sua estratégia hoje?"

// Greeting is the advisor's opening message.
const Greeting = "Olá! Sou seu estrategista Vision. Estou pronto para analisar seus dados e definir os próximos passos para 2026. O que vamos conquistar hoje?"

// Advisor answers free-form strategy questions.
type Advisor struct {
	llm    llm.Completer
	cfg    Config
	logger *slog.Logger
}

// NewAdvisor creates an Advisor. A nil completer selects degraded mode.
func NewAdvisor(c llm.Completer, cfg Config, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{llm: c, cfg: cfg, logger: logger.With("component", "advisor")}
}

// Reply answers message given the prior conversation.
// Failures are returned as *AdvisorError.
func (a *Advisor) Reply(ctx context.Context, message string, history []llm.Message) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", &AdvisorError{Err: ErrEmptyMessage}
	}

	if a.llm == nil {
		a.logger.Warn("no LLM credential configured, returning demo reply",
			"action", "chat",
			"mode", "degraded",
		)
		if err := wait(ctx, a.cfg.ChatDelay); err != nil {
			return "", &AdvisorError{Err: err}
		}
		return DemoReply, nil
	}

	text, err := a.llm.Complete(ctx, llm.Request{
		Preamble:    advisorPreamble,
		Message:     message,
		History:     history,
		Temperature: a.cfg.ChatTemperature,
	})
	if err != nil {
		return "", &AdvisorError{Err: err}
	}
	return text, nil
}
