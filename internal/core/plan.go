package core

import (
	"context"

	"pt-planner/internal/apperr"
	"pt-planner/internal/llm"
	"pt-planner/pkg"
)

// RequestRecoveryPlan asks the model for a weekly plan covering all
// injuries and returns its raw reply.
func (a *Assistant) RequestRecoveryPlan(ctx context.Context, profile pkg.PatientProfile, injuries []pkg.Injury) (string, error) {
	return a.LLM.Complete(ctx, llm.Request{
		Purpose:   "recovery_plan",
		System:    RecoveryPlanSystemPrompt,
		Prompt:    BuildRecoveryPlanPrompt(profile, injuries),
		MaxTokens: a.PlanMaxTokens,
	})
}

// RecoveryPlan produces a weekly schedule.  On a fallback outcome the
// returned map is the error object to report; the schedule must not be
// stored.
func (a *Assistant) RecoveryPlan(ctx context.Context, profile pkg.PatientProfile, injuries []pkg.Injury) (Outcome[pkg.WeeklySchedule], map[string]any, error) {
	if len(injuries) == 0 {
		return Outcome[pkg.WeeklySchedule]{}, nil, apperr.InvalidInput("No injuries recorded. Complete an injury questionnaire first.")
	}

	raw, err := a.RequestRecoveryPlan(ctx, profile, injuries)
	if err != nil {
		if apperr.Is(err, apperr.KindUnavailable) {
			return Outcome[pkg.WeeklySchedule]{}, nil, err
		}
		a.logger.Warn().Err(err).Int("injuries", len(injuries)).Msg("recovery plan request failed")
		msg := "API Error: " + err.Error()
		return Fallback(pkg.NewWeeklySchedule(), msg), RecoveryPlanFallback(msg), nil
	}

	out, parsed := ParseRecoveryPlan(raw)
	if out.Fallback {
		a.logger.Warn().Int("reply_len", len(raw)).Msg("could not parse recovery plan reply")
	}
	return out, parsed, nil
}

// RecommendExercises asks the model for a list of exercises targeting one
// injury.
func (a *Assistant) RecommendExercises(ctx context.Context, profile pkg.PatientProfile, req pkg.ExerciseRequest) (Outcome[[]pkg.Exercise], error) {
	raw, err := a.LLM.Complete(ctx, llm.Request{
		Purpose:   "exercises",
		System:    ExerciseSystemPrompt,
		Prompt:    BuildExercisePrompt(profile, req),
		MaxTokens: a.PlanMaxTokens,
	})
	if err != nil {
		if apperr.Is(err, apperr.KindUnavailable) {
			return Outcome[[]pkg.Exercise]{}, err
		}
		a.logger.Warn().Err(err).Str("injury_type", req.InjuryType).Msg("exercise request failed")
		return Fallback([]pkg.Exercise{}, "API Error: "+err.Error()), nil
	}
	return ParseExercises(raw), nil
}
