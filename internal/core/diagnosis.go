package core

import (
	"context"

	"pt-planner/internal/apperr"
	"pt-planner/internal/llm"
	"pt-planner/pkg"
)

// RequestDiagnosis asks the model about one injury and returns its raw
// reply.
func (a *Assistant) RequestDiagnosis(ctx context.Context, inj pkg.Injury) (string, error) {
	return a.LLM.Complete(ctx, llm.Request{
		Purpose:   "diagnosis",
		System:    DiagnosisSystemPrompt,
		Prompt:    BuildDiagnosisPrompt(inj),
		MaxTokens: a.DiagnosisMaxTokens,
	})
}

// Diagnose produces a preliminary diagnosis.  Provider failures and
// unreadable replies degrade to a fallback outcome; only a missing or
// disabled AI configuration is returned as an error.
func (a *Assistant) Diagnose(ctx context.Context, inj pkg.Injury) (Outcome[pkg.DiagnosisResult], error) {
	raw, err := a.RequestDiagnosis(ctx, inj)
	if err != nil {
		if apperr.Is(err, apperr.KindUnavailable) {
			return Outcome[pkg.DiagnosisResult]{}, err
		}
		a.logger.Warn().Err(err).Str("body_part", inj.BodyPart).Msg("diagnosis request failed")
		return Fallback(DiagnosisErrorFallback(err), err.Error()), nil
	}

	out := ParseDiagnosis(raw)
	if out.Fallback {
		a.logger.Warn().Str("body_part", inj.BodyPart).Int("reply_len", len(raw)).Msg("could not parse diagnosis reply")
	}
	return out, nil
}
