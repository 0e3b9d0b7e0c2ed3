package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pt-planner/pkg"
)

const mongoCollection = "patients"

type mongoPatient struct {
	ID        string    `bson:"_id"`
	Data      bson.Raw  `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoSnapshotter stores one document per patient.  The record body is
// kept under "data" using the same field names as the JSON snapshot.
type MongoSnapshotter struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger zerolog.Logger

	unreadable UnreadableRows
}

// NewMongoSnapshotter connects and pings the deployment.
func NewMongoSnapshotter(ctx context.Context, uri, database string, logger zerolog.Logger) (*MongoSnapshotter, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoSnapshotter{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
		logger: logger.With().Str("component", "mongo").Logger(),
	}, nil
}

// Close disconnects the client.
func (m *MongoSnapshotter) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Load reads every patient document.  Documents that cannot be decoded are
// logged and skipped, and later Saves leave them in place.  Cursor and
// network failures are returned as they are.
func (m *MongoSnapshotter) Load(ctx context.Context) (map[string]*pkg.Patient, error) {
	m.unreadable.Reset()
	cur, err := m.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find patients: %w", err)
	}
	defer cur.Close(ctx)

	patients := make(map[string]*pkg.Patient)
	for cur.Next(ctx) {
		id, p, err := decodeMongoPatient(cur.Current)
		if err != nil {
			m.logger.Error().Err(err).Str("patient", id).Msg("skipping undecodable patient document")
			if id != "" {
				m.unreadable.Add(id)
			}
			continue
		}
		patients[id] = p
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("read patients: %w", err)
	}
	if len(patients) == 0 {
		return nil, ErrNoSnapshot
	}
	return patients, nil
}

// decodeMongoPatient returns the document's identifier, when it has a
// string one, together with the decoded record.
func decodeMongoPatient(raw bson.Raw) (string, *pkg.Patient, error) {
	id, ok := raw.Lookup("_id").StringValueOK()
	if !ok {
		return "", nil, errors.New("_id is not a string")
	}
	var doc mongoPatient
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return id, nil, err
	}
	ext, err := bson.MarshalExtJSON(doc.Data, false, false)
	if err != nil {
		return id, nil, err
	}
	var p pkg.Patient
	if err := json.Unmarshal(ext, &p); err != nil {
		return id, nil, err
	}
	return id, &p, nil
}

// Save upserts every record and removes documents for deleted patients in
// one ordered bulk write.
func (m *MongoSnapshotter) Save(ctx context.Context, patients map[string]*pkg.Patient) error {
	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(patients)+1)

	for id, p := range patients {
		raw, err := toBSON(p)
		if err != nil {
			return fmt.Errorf("encode patient %q: %w", id, err)
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id}).
			SetReplacement(mongoPatient{ID: id, Data: raw, UpdatedAt: now}).
			SetUpsert(true))
	}
	// Documents without a string _id were never ours to delete.
	models = append(models, mongo.NewDeleteManyModel().
		SetFilter(bson.M{"_id": bson.M{"$type": "string", "$nin": m.unreadable.Keep(patients)}}))

	if _, err := m.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("write patients: %w", err)
	}
	m.unreadable.Saved(patients)
	return nil
}

func toBSON(p *pkg.Patient) (bson.Raw, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(b, false, &doc); err != nil {
		return nil, err
	}
	return bson.Marshal(doc)
}
