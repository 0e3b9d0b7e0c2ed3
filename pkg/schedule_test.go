package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWeeklySchedule_SevenEmptyDays(t *testing.T) {
	s := NewWeeklySchedule()
	require.Len(t, s, 7)
	for _, d := range Weekdays {
		list, ok := s[d]
		require.True(t, ok, "missing %s", d)
		assert.Empty(t, list)
	}
}

func TestAddExercise_KnownDay(t *testing.T) {
	s := NewWeeklySchedule()
	require.NoError(t, s.AddExercise("Monday", Exercise{"name": "Squat"}))
	require.NoError(t, s.AddExercise("Monday", Exercise{"name": "Bridge", "sets": 3}))

	require.Len(t, s["Monday"], 2)
	assert.Equal(t, "Bridge", s["Monday"][1].Name())
}

func TestAddExercise_UnknownDayDoesNotMutate(t *testing.T) {
	s := NewWeeklySchedule()
	err := s.AddExercise("Funday", Exercise{"name": "Squat"})
	require.ErrorIs(t, err, ErrUnknownDay)
	assert.Len(t, s, 7)
	_, ok := s["Funday"]
	assert.False(t, ok)

	err = s.AddExercise("monday", Exercise{"name": "Squat"})
	require.ErrorIs(t, err, ErrUnknownDay)
	assert.Empty(t, s["Monday"])
}

func TestAddExercise_RequiresName(t *testing.T) {
	s := NewWeeklySchedule()
	require.ErrorIs(t, s.AddExercise("Monday", Exercise{"sets": 3}), ErrExerciseName)
	require.ErrorIs(t, s.AddExercise("Monday", Exercise{"name": "   "}), ErrExerciseName)
	assert.Empty(t, s["Monday"])
}

func TestNormalize_RestoresShape(t *testing.T) {
	s := WeeklySchedule{
		"Monday":  {{"name": "Squat"}},
		"Someday": {{"name": "Plank"}},
	}
	n := s.Normalize()
	assert.Len(t, n, 7)
	assert.Len(t, n["Monday"], 1)
	assert.NotNil(t, n["Sunday"])
	_, ok := n["Someday"]
	assert.False(t, ok)
}

func TestAggregateSchedule_TwoPatients(t *testing.T) {
	alice := NewPatient("alice")
	require.NoError(t, alice.WeeklySchedule.AddExercise("Monday", Exercise{"name": "Squat"}))
	bob := NewPatient("bob")
	require.NoError(t, bob.WeeklySchedule.AddExercise("Monday", Exercise{"name": "Plank"}))

	agg := AggregateSchedule(map[string]*Patient{"bob": bob, "alice": alice})

	assert.Equal(t, []string{"alice: Squat", "bob: Plank"}, agg["Monday"])
	assert.Len(t, agg, 7)
	assert.Empty(t, agg["Tuesday"])
}

func TestPatientClone_Independent(t *testing.T) {
	age := 30
	p := NewPatient("alice")
	p.Age = &age
	p.Injuries = append(p.Injuries, Injury{BodyPart: "Knee", SpecializedData: map[string]any{"a": 1}})
	require.NoError(t, p.WeeklySchedule.AddExercise("Friday", Exercise{"name": "Lunge"}))

	cp := p.Clone()
	*cp.Age = 31
	cp.Injuries[0].SpecializedData["a"] = 2
	cp.WeeklySchedule["Friday"][0]["name"] = "Changed"

	assert.Equal(t, 30, *p.Age)
	assert.Equal(t, 1, p.Injuries[0].SpecializedData["a"])
	assert.Equal(t, "Lunge", p.WeeklySchedule["Friday"][0].Name())
}

func TestProfileApply_OnlyProvidedFields(t *testing.T) {
	goals := "run a 10k"
	level := "moderate"
	p := NewPatient("alice")
	p.ActivityLevel = &level

	PatientProfile{Goals: &goals}.Apply(p)

	require.NotNil(t, p.Goals)
	assert.Equal(t, goals, *p.Goals)
	require.NotNil(t, p.ActivityLevel)
	assert.Equal(t, level, *p.ActivityLevel)
}
