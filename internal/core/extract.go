package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"pt-planner/pkg"
)

const (
	// ReasonUnparseable is the fallback reason when no JSON object could be
	// recovered from the model's reply.
	ReasonUnparseable = "Could not parse the AI response"

	recoveryPlanFailed = "Failed to generate recovery plan"
)

// Outcome is the result of an AI-backed operation.  A fallback outcome
// still carries a placeholder Value so it can be shown to the user, but
// callers must check Fallback before treating Value as a real answer.
type Outcome[T any] struct {
	Value    T
	Fallback bool
	Reason   string
}

// Ok wraps a successful result.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Fallback wraps a placeholder result together with the reason it was
// produced.
func Fallback[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Value: v, Fallback: true, Reason: reason}
}

// DiagnosisParseFallback is returned when the model replied but its answer
// held no usable diagnosis.
func DiagnosisParseFallback() pkg.DiagnosisResult {
	return pkg.DiagnosisResult{
		Diagnosis:       "Error parsing diagnosis",
		Reasoning:       "Could not generate reasoning",
		Recommendations: "Consult a healthcare provider",
	}
}

// DiagnosisErrorFallback is returned when the provider call itself failed.
func DiagnosisErrorFallback(err error) pkg.DiagnosisResult {
	return pkg.DiagnosisResult{
		Diagnosis:       "Error generating diagnosis",
		Reasoning:       "API Error: " + err.Error(),
		Recommendations: "Consult a healthcare provider",
	}
}

// RecoveryPlanFallback is the error object reported in place of a plan.
func RecoveryPlanFallback(message string) map[string]any {
	return map[string]any{
		"error":   recoveryPlanFailed,
		"message": message,
	}
}

// ExtractJSON finds the JSON object embedded in a model reply.  A reply
// wrapped in a markdown code fence is unwrapped first.  The outermost span from the first '{' to the last '}' is tried first; when
// that does not parse, each '{' is tried in turn with a balanced-brace scan.
// It reports false when no object can be recovered.
func ExtractJSON(text string) (map[string]any, bool) {
	text = stripFences(text)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	if m, ok := decodeObject(text[start : end+1]); ok {
		return m, true
	}

	for i := start; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		j := matchBrace(text, i)
		if j < 0 {
			continue
		}
		if m, ok := decodeObject(text[i : j+1]); ok {
			return m, true
		}
	}
	return nil, false
}

// stripFences removes a ```json or ``` fence surrounding the whole reply.
func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

func decodeObject(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// matchBrace returns the index of the '}' closing the '{' at open, skipping
// braces inside string literals, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ParseDiagnosis turns a model reply into a diagnosis outcome.
func ParseDiagnosis(text string) Outcome[pkg.DiagnosisResult] {
	m, ok := ExtractJSON(text)
	if !ok {
		return Fallback(DiagnosisParseFallback(), ReasonUnparseable)
	}
	if _, has := m["diagnosis"]; !has {
		return Fallback(DiagnosisParseFallback(), ReasonUnparseable)
	}
	return Ok(pkg.DiagnosisResult{
		Diagnosis:       flatten(m["diagnosis"]),
		Reasoning:       flatten(m["reasoning"]),
		Recommendations: flatten(m["recommendations"]),
	})
}

// ParseRecoveryPlan turns a model reply into a weekly schedule.  The raw
// parsed mapping is returned alongside for logging.
func ParseRecoveryPlan(text string) (Outcome[pkg.WeeklySchedule], map[string]any) {
	m, ok := ExtractJSON(text)
	if !ok {
		return Fallback(pkg.NewWeeklySchedule(), ReasonUnparseable), RecoveryPlanFallback(ReasonUnparseable)
	}
	plan, ok := NormalizeSchedule(m)
	if !ok {
		return Fallback(pkg.NewWeeklySchedule(), ReasonUnparseable), RecoveryPlanFallback(ReasonUnparseable)
	}
	return Ok(plan), m
}

// ParseExercises reads {"exercises": [...]} from a model reply.  A bare
// top-level array is not accepted since ExtractJSON only yields objects.
func ParseExercises(text string) Outcome[[]pkg.Exercise] {
	m, ok := ExtractJSON(text)
	if !ok {
		return Fallback([]pkg.Exercise{}, ReasonUnparseable)
	}
	list, ok := m["exercises"].([]any)
	if !ok {
		return Fallback([]pkg.Exercise{}, ReasonUnparseable)
	}
	out := toExercises(list)
	if len(out) == 0 {
		return Fallback([]pkg.Exercise{}, ReasonUnparseable)
	}
	return Ok(out)
}

// NormalizeSchedule maps a parsed plan onto the seven weekday keys.  Day
// keys match case-insensitively; values that are not arrays become rest
// days and unnamed entries are dropped.  It reports false when the mapping
// has no weekday key at all.
func NormalizeSchedule(m map[string]any) (pkg.WeeklySchedule, bool) {
	// Some replies nest the week under a single wrapper key.
	if len(m) == 1 {
		for _, v := range m {
			if inner, ok := v.(map[string]any); ok && hasWeekdayKey(inner) {
				m = inner
			}
		}
	}

	out := pkg.NewWeeklySchedule()
	found := false
	for key, v := range m {
		day, ok := canonicalDay(key)
		if !ok {
			continue
		}
		found = true
		list, ok := v.([]any)
		if !ok {
			continue
		}
		out[day] = append(out[day], toExercises(list)...)
	}
	return out, found
}

func toExercises(list []any) []pkg.Exercise {
	out := make([]pkg.Exercise, 0, len(list))
	for _, item := range list {
		switch e := item.(type) {
		case map[string]any:
			ex := pkg.Exercise(e)
			if ex.Name() != "" {
				out = append(out, ex)
			}
		case string:
			if s := strings.TrimSpace(e); s != "" {
				out = append(out, pkg.Exercise{"name": s})
			}
		}
	}
	return out
}

func hasWeekdayKey(m map[string]any) bool {
	for k := range m {
		if _, ok := canonicalDay(k); ok {
			return true
		}
	}
	return false
}

func canonicalDay(key string) (string, bool) {
	k := strings.TrimSpace(key)
	for _, d := range pkg.Weekdays {
		if strings.EqualFold(d, k) {
			return d, true
		}
	}
	return "", false
}

// flatten renders a loosely typed JSON value as display text.
func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, x := range t {
			parts = append(parts, flatten(x))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(t)
	}
}
