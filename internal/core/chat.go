package core

import (
	"context"

	"github.com/rs/zerolog"

	"pt-planner/internal/llm"
	"pt-planner/pkg"
)

// Token budgets used when the caller does not set one.
const (
	DefaultDiagnosisMaxTokens = 1024
	DefaultPlanMaxTokens      = 4096
)

// Assistant turns patient data into model requests and model replies into
// results the rest of the service can store.  It never touches the record
// store itself.
type Assistant struct {
	LLM                llm.Client
	DiagnosisMaxTokens int
	PlanMaxTokens      int
	logger             zerolog.Logger
}

// NewAssistant constructs an Assistant over the given client.
func NewAssistant(client llm.Client, logger zerolog.Logger) *Assistant {
	return &Assistant{
		LLM:                client,
		DiagnosisMaxTokens: DefaultDiagnosisMaxTokens,
		PlanMaxTokens:      DefaultPlanMaxTokens,
		logger:             logger.With().Str("component", "assistant").Logger(),
	}
}

// Enabled reports whether the model provider is configured.
func (a *Assistant) Enabled() bool {
	return a.LLM.Enabled()
}

// Chat streams the assistant's reply to the conversation.  The system
// prompt is always built server side; any system message sent by the
// client is dropped.
func (a *Assistant) Chat(ctx context.Context, injuries []pkg.Injury, plan pkg.WeeklySchedule, messages []pkg.ChatMessage) <-chan string {
	conv := make([]pkg.ChatMessage, 0, len(messages)+1)
	conv = append(conv, pkg.ChatMessage{Role: pkg.RoleSystem, Content: BuildChatSystemPrompt(injuries, plan)})
	for _, m := range messages {
		if m.Role == pkg.RoleSystem {
			continue
		}
		conv = append(conv, m)
	}
	return a.LLM.Stream(ctx, conv)
}
