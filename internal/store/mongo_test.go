package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"pt-planner/pkg"
)

func TestToBSON_KeepsJSONFieldNames(t *testing.T) {
	p := pkg.NewPatient("mia")
	p.Age = ptr(29)
	p.Injuries = append(p.Injuries, pkg.Injury{
		BodyPart:           "Ankle",
		HurtingDescription: "rolled it",
		SeverityBest:       ptr(1),
		SpecializedData:    map[string]any{"special_tests": map[string]any{"anterior_drawer": true}},
	})
	require.NoError(t, p.WeeklySchedule.AddExercise("Monday", pkg.Exercise{"name": "Alphabet", "reps": 2}))

	raw, err := toBSON(p)
	require.NoError(t, err)

	assert.Equal(t, "mia", raw.Lookup("name").StringValue())
	assert.Equal(t, "Ankle", raw.Lookup("injuries", "0", "body_part").StringValue())

	ext, err := bson.MarshalExtJSON(raw, false, false)
	require.NoError(t, err)
	var back pkg.Patient
	require.NoError(t, json.Unmarshal(ext, &back))
	assert.Equal(t, 29, *back.Age)
	assert.Equal(t, 1, *back.Injuries[0].SeverityBest)
	assert.Equal(t, "Alphabet", back.WeeklySchedule["Monday"][0].Name())
	assert.EqualValues(t, 2, back.WeeklySchedule["Monday"][0]["reps"])
}

func TestDecodeMongoPatient(t *testing.T) {
	good, err := toBSON(pkg.NewPatient("nia"))
	require.NoError(t, err)

	doc, err := bson.Marshal(mongoPatient{ID: "nia", Data: good})
	require.NoError(t, err)
	id, p, err := decodeMongoPatient(doc)
	require.NoError(t, err)
	assert.Equal(t, "nia", id)
	assert.Equal(t, "nia", p.Name)

	wrongType, err := bson.Marshal(bson.D{{Key: "_id", Value: "omar"}, {Key: "data", Value: bson.D{{Key: "age", Value: "thirty"}}}})
	require.NoError(t, err)
	id, _, err = decodeMongoPatient(wrongType)
	assert.Error(t, err)
	assert.Equal(t, "omar", id)

	notADocument, err := bson.Marshal(bson.D{{Key: "_id", Value: "pia"}, {Key: "data", Value: "oops"}})
	require.NoError(t, err)
	id, _, err = decodeMongoPatient(notADocument)
	assert.Error(t, err)
	assert.Equal(t, "pia", id)

	numericID, err := bson.Marshal(bson.D{{Key: "_id", Value: 7}, {Key: "data", Value: good}})
	require.NoError(t, err)
	id, _, err = decodeMongoPatient(numericID)
	assert.Error(t, err)
	assert.Empty(t, id)
}

// Requires a scratch deployment, e.g.
// TEST_MONGO_URI=mongodb://localhost:27017
func testMongo(t *testing.T) *MongoSnapshotter {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	m, err := NewMongoSnapshotter(ctx, uri, "pt_planner_test", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.coll.Drop(context.Background())
		_ = m.Close(context.Background())
	})
	require.NoError(t, m.coll.Drop(ctx))
	return m
}

func TestMongoSnapshotter_SaveLoad(t *testing.T) {
	ctx := context.Background()
	m := testMongo(t)

	_, err := m.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	a := pkg.NewPatient("a@example.com")
	a.Injuries = append(a.Injuries, injury("Knee"))
	b := pkg.NewPatient("b@example.com")
	require.NoError(t, m.Save(ctx, map[string]*pkg.Patient{"a@example.com": a, "b@example.com": b}))

	got, err := m.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Knee", got["a@example.com"].Injuries[0].BodyPart)
	assert.Equal(t, 6, *got["a@example.com"].Injuries[0].SeverityWorst)

	require.NoError(t, m.Save(ctx, map[string]*pkg.Patient{"a@example.com": a}))
	got, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "a@example.com")
}

func TestMongoSnapshotter_KeepsUndecodableDocuments(t *testing.T) {
	ctx := context.Background()
	m := testMongo(t)

	good, err := toBSON(pkg.NewPatient("bob"))
	require.NoError(t, err)
	_, err = m.coll.InsertMany(ctx, []any{
		mongoPatient{ID: "bob", Data: good},
		bson.D{{Key: "_id", Value: "dave"}, {Key: "data", Value: bson.D{{Key: "age", Value: "thirty"}}}},
	})
	require.NoError(t, err)

	s := New(m, zerolog.Nop())
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, []string{"bob"}, s.List(ctx))

	_, err = s.AppendInjury(ctx, "eve", injury("Hip"))
	require.NoError(t, err)

	n, err := m.coll.CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, []string{"dave"}, m.unreadable.IDs())
}
