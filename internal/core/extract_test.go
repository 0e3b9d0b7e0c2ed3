package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pt-planner/pkg"
)

func TestExtractJSON_SurroundingProse(t *testing.T) {
	obj := `{"diagnosis":"Patellofemoral pain","reasoning":"anterior knee pain on stairs","recommendations":"quad strengthening","score":3,"tags":["knee"]}`
	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(obj), &want))

	cases := map[string]string{
		"bare":            obj,
		"prefix":          "Here is my assessment:\n" + obj,
		"suffix":          obj + "\nLet me know if you need more.",
		"both":            "Sure! " + obj + " Hope that helps.",
		"code fence":      "```json\n" + obj + "\n```",
		"stray open":      "Use the {format} you asked for: " + obj,
		"stray close":     obj + " (see notes} above)",
		"braces in value": `Result: {"diagnosis":"a {weird} one","reasoning":"x","recommendations":"y"} done`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := ExtractJSON(text)
			require.True(t, ok)
			if name == "braces in value" {
				assert.Equal(t, "a {weird} one", got["diagnosis"])
				return
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":   `{"a":1}`,
		"  ```\n{\"a\":1}\n```  \n": `{"a":1}`,
		`{"a":1}`:                   `{"a":1}`,
		"Here: ```{\"a\":1}```":     "Here: ```{\"a\":1}```",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripFences(in), in)
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	for _, text := range []string{
		"",
		"I cannot help with that.",
		"} backwards {",
		"{not json at all}",
		"{\"unterminated\": \"value\"",
		"[1, 2, 3]",
	} {
		got, ok := ExtractJSON(text)
		assert.False(t, ok, text)
		assert.Nil(t, got)
	}
}

func TestParseDiagnosis_Success(t *testing.T) {
	out := ParseDiagnosis(`Assessment: {"diagnosis":"Rotator cuff tendinopathy","reasoning":"painful arc","recommendations":["rest","isometrics"]}`)
	require.False(t, out.Fallback)
	assert.Equal(t, "Rotator cuff tendinopathy", out.Value.Diagnosis)
	assert.Equal(t, "painful arc", out.Value.Reasoning)
	assert.Equal(t, "rest; isometrics", out.Value.Recommendations)
}

func TestParseDiagnosis_Fallback(t *testing.T) {
	for _, text := range []string{"no json here", `{"something":"else"}`} {
		out := ParseDiagnosis(text)
		require.True(t, out.Fallback)
		assert.Equal(t, ReasonUnparseable, out.Reason)
		assert.Equal(t, pkg.DiagnosisResult{
			Diagnosis:       "Error parsing diagnosis",
			Reasoning:       "Could not generate reasoning",
			Recommendations: "Consult a healthcare provider",
		}, out.Value)
	}
}

func TestParseRecoveryPlan_Success(t *testing.T) {
	reply := `Here's the plan:
{
  "monday": [{"name":"Clamshells","sets":3,"reps":12,"description":"side lying","purpose":"glute med"}],
  "Tuesday": [],
  "Wednesday": "Rest",
  "Thursday": ["Walking"],
  "Notes": "progress slowly"
}`
	out, raw := ParseRecoveryPlan(reply)
	require.False(t, out.Fallback)
	require.NotNil(t, raw)

	plan := out.Value
	assert.Len(t, plan, 7)
	require.Len(t, plan["Monday"], 1)
	assert.Equal(t, "Clamshells", plan["Monday"][0].Name())
	assert.EqualValues(t, 3, plan["Monday"][0]["sets"])
	assert.Empty(t, plan["Tuesday"])
	assert.Empty(t, plan["Wednesday"])
	assert.Equal(t, pkg.Exercise{"name": "Walking"}, plan["Thursday"][0])
	_, hasNotes := plan["Notes"]
	assert.False(t, hasNotes)
}

func TestParseRecoveryPlan_WrappedWeek(t *testing.T) {
	out, _ := ParseRecoveryPlan(`{"weekly_plan":{"Friday":[{"name":"Bridge"}]}}`)
	require.False(t, out.Fallback)
	assert.Equal(t, "Bridge", out.Value["Friday"][0].Name())
}

func TestParseRecoveryPlan_Fallback(t *testing.T) {
	for _, text := range []string{"sorry, no plan", `{"plan":"rest a lot"}`} {
		out, raw := ParseRecoveryPlan(text)
		require.True(t, out.Fallback)
		assert.Equal(t, map[string]any{
			"error":   "Failed to generate recovery plan",
			"message": "Could not parse the AI response",
		}, raw)
	}
}

func TestParseExercises(t *testing.T) {
	out := ParseExercises(`{"exercises":[{"name":"Heel slides","sets":2},{"sets":1},"Quad sets"]}`)
	require.False(t, out.Fallback)
	require.Len(t, out.Value, 2)
	assert.Equal(t, "Heel slides", out.Value[0].Name())
	assert.Equal(t, "Quad sets", out.Value[1].Name())

	assert.True(t, ParseExercises(`{"exercises":[]}`).Fallback)
	assert.True(t, ParseExercises("none").Fallback)
}
