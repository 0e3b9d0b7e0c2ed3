package core

import (
	"fmt"
	"sort"
	"strings"

	"pt-planner/pkg"
)

// prompts.go renders patient and injury data into the text sent to the
// model.  Nothing here does I/O, so the output for a given input is fixed.

const (
	// DiagnosisSystemPrompt frames the diagnosis request.
	DiagnosisSystemPrompt = "You are an experienced physical therapist performing a preliminary musculoskeletal assessment. " +
		"You reply with a single JSON object and nothing else."

	// RecoveryPlanSystemPrompt instructs the model on the weekly plan shape.
	RecoveryPlanSystemPrompt = `You are an expert physical therapist creating personalized recovery plans.

For each day of the week, recommend appropriate exercises based on the patient's injuries and condition.
Format your response as a JSON object with the days of the week as keys (Monday through Sunday).
Each day should have an array of exercise objects with the following properties:
- name: The name of the exercise
- sets: Number of sets
- reps: Number of repetitions
- description: Brief instructions for performing the exercise
- purpose: What this exercise helps with

Include rest days as appropriate, using an empty array for a rest day. If certain days should focus on different body parts or aspects of recovery, organize them accordingly.`

	// ExerciseSystemPrompt frames the exercise recommendation request.
	ExerciseSystemPrompt = "You are an expert physical therapist recommending safe, progressive rehabilitation exercises. " +
		"You reply with a single JSON object and nothing else."

	// ChatPersona opens the chat system prompt.
	ChatPersona = "You are Kaizen, a friendly and knowledgeable physical therapy assistant. " +
		"You help patients understand their exercises, stay motivated and recover safely. " +
		"Keep answers short, practical and encouraging."

	// ChatDisclaimer closes the chat system prompt.
	ChatDisclaimer = "Important: you are not a doctor. Never state or confirm a diagnosis. " +
		"If the patient describes severe, worsening or unusual symptoms, or asks about anything serious, " +
		"recommend that they consult a qualified healthcare professional."

	defaultNumExercises = 5
)

// BuildDiagnosisPrompt renders an injury into the diagnosis request.
func BuildDiagnosisPrompt(inj pkg.Injury) string {
	var b strings.Builder
	b.WriteString("Analyze the following injury data and provide:\n")
	b.WriteString("1. A preliminary diagnosis\n2. Clinical reasoning\n3. Recommended next steps\n\n")
	b.WriteString("Patient Data:\n")
	fmt.Fprintf(&b, "Body Part: %s\n", inj.BodyPart)
	fmt.Fprintf(&b, "Description: %s\n", inj.HurtingDescription)
	fmt.Fprintf(&b, "Onset: %s\n", str(inj.DateOfOnset, "Unknown"))
	fmt.Fprintf(&b, "Aggravating Factors: %s\n", str(inj.AggravatingFactors, "None reported"))
	fmt.Fprintf(&b, "Easing Factors: %s\n", str(inj.EasingFactors, "None reported"))
	fmt.Fprintf(&b, "Mechanism: %s\n", str(inj.MechanismOfInjury, "Unknown"))
	fmt.Fprintf(&b, "Pain Levels: %s\n", painLevels(inj))
	fmt.Fprintf(&b, "Special Tests: %s\n", specialTests(inj.SpecializedData))
	b.WriteString(`
Format your response as a JSON object with exactly these three string fields:
{
  "diagnosis": "your diagnosis",
  "reasoning": "your reasoning",
  "recommendations": "your next steps"
}`)
	return b.String()
}

// BuildRecoveryPlanPrompt renders the profile and all injuries into the
// weekly plan request.  It is sent with RecoveryPlanSystemPrompt.
func BuildRecoveryPlanPrompt(profile pkg.PatientProfile, injuries []pkg.Injury) string {
	var b strings.Builder
	b.WriteString("Create a personalized weekly recovery plan for a patient with the following profile:\n\n")
	b.WriteString("Patient Information:\n")
	fmt.Fprintf(&b, "- Age: %s\n", num(profile.Age, "Unknown"))
	fmt.Fprintf(&b, "- Activity Level: %s\n", str(profile.ActivityLevel, "Unknown"))
	fmt.Fprintf(&b, "- Goals: %s\n\n", str(profile.Goals, "Recovery"))
	b.WriteString("Injuries:\n")
	b.WriteString(formatInjuries(injuries))
	b.WriteString("\nPlease create a structured weekly exercise schedule that addresses all injuries while allowing for proper recovery.\n")
	b.WriteString("Include a variety of exercises including stretching, strengthening, and mobility work as appropriate.\n")
	b.WriteString("Format the response as a JSON object.")
	return b.String()
}

// BuildExercisePrompt renders an exercise recommendation request.
func BuildExercisePrompt(profile pkg.PatientProfile, req pkg.ExerciseRequest) string {
	n := req.NumExercises
	if n <= 0 {
		n = defaultNumExercises
	}
	goals := req.Goals
	if goals == nil {
		goals = profile.Goals
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recommend %d rehabilitation exercises for the following patient.\n\n", n)
	fmt.Fprintf(&b, "- Injury: %s\n", req.InjuryType)
	fmt.Fprintf(&b, "- Current Pain Level (0-10): %d\n", req.PainLevel)
	fmt.Fprintf(&b, "- Age: %s\n", num(profile.Age, "Unknown"))
	fmt.Fprintf(&b, "- Mobility Status: %s\n", str(profile.MobilityStatus, "Unknown"))
	fmt.Fprintf(&b, "- Activity Level: %s\n", str(profile.ActivityLevel, "Unknown"))
	fmt.Fprintf(&b, "- Goals: %s\n", str(goals, "Recovery"))
	b.WriteString(`
Format your response as a JSON object:
{
  "exercises": [
    {"name": "...", "sets": 3, "reps": 10, "description": "...", "purpose": "..."}
  ]
}`)
	return b.String()
}

// BuildChatSystemPrompt composes the assistant persona with whatever is
// known about the patient.  Either argument may be empty.
func BuildChatSystemPrompt(injuries []pkg.Injury, plan pkg.WeeklySchedule) string {
	var b strings.Builder
	b.WriteString(ChatPersona)

	if len(injuries) > 0 {
		b.WriteString("\n\nThe patient has reported the following injuries:\n")
		for i, inj := range injuries {
			fmt.Fprintf(&b, "%d. %s: %s", i+1, inj.BodyPart, inj.HurtingDescription)
			if inj.Diagnosis != "" {
				fmt.Fprintf(&b, " (preliminary assessment: %s)", inj.Diagnosis)
			}
			b.WriteString("\n")
		}
	}

	if hasExercises(plan) {
		b.WriteString("\nTheir current weekly recovery plan:\n")
		for _, day := range pkg.Weekdays {
			names := make([]string, 0, len(plan[day]))
			for _, ex := range plan[day] {
				if n := ex.Name(); n != "" {
					names = append(names, n)
				}
			}
			if len(names) == 0 {
				fmt.Fprintf(&b, "%s: Rest\n", day)
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", day, strings.Join(names, ", "))
		}
	}

	b.WriteString("\n")
	b.WriteString(ChatDisclaimer)
	return b.String()
}

func formatInjuries(injuries []pkg.Injury) string {
	var b strings.Builder
	for i, inj := range injuries {
		fmt.Fprintf(&b, "\nInjury %d:\n", i+1)
		fmt.Fprintf(&b, "- Body Part: %s\n", inj.BodyPart)
		fmt.Fprintf(&b, "- Description: %s\n", inj.HurtingDescription)
		if inj.Diagnosis != "" {
			fmt.Fprintf(&b, "- Diagnosis: %s\n", inj.Diagnosis)
		}
		fmt.Fprintf(&b, "- Pain Levels: %s\n", painLevels(inj))
		fmt.Fprintf(&b, "- Stage: %s\n", str(inj.Stage, "Unknown"))
	}
	return b.String()
}

func painLevels(inj pkg.Injury) string {
	return fmt.Sprintf("Best=%s, Worst=%s, Daily Avg=%s",
		num(inj.SeverityBest, "N/A"), num(inj.SeverityWorst, "N/A"), num(inj.SeverityDailyAvg, "N/A"))
}

func specialTests(data map[string]any) string {
	raw, ok := data["special_tests"]
	if !ok || raw == nil {
		return "none"
	}
	tests, ok := raw.(map[string]any)
	if !ok {
		return fmt.Sprint(raw)
	}
	if len(tests) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(tests))
	for k := range tests {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, tests[k]))
	}
	return strings.Join(parts, ", ")
}

func hasExercises(plan pkg.WeeklySchedule) bool {
	for _, list := range plan {
		if len(list) > 0 {
			return true
		}
	}
	return false
}

func str(v *string, def string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def
	}
	return *v
}

func num(v *int, def string) string {
	if v == nil {
		return def
	}
	return fmt.Sprintf("%d", *v)
}
