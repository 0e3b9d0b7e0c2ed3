package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"pt-planner/internal/store"
	"pt-planner/pkg"
)

// Repository keeps one row per patient in Postgres and implements
// store.Snapshotter.
type Repository struct {
	DB       *sql.DB
	Notifier *Notifier
	logger   zerolog.Logger

	unreadable store.UnreadableRows
}

// NewRepository constructs a Repository from an existing sql.DB.  The
// caller owns the connection.  notifier may be nil.
func NewRepository(db *sql.DB, notifier *Notifier, logger zerolog.Logger) *Repository {
	return &Repository{
		DB:       db,
		Notifier: notifier,
		logger:   logger.With().Str("component", "postgres").Logger(),
	}
}

// Load reads every patient row.  A row whose data cannot be decoded is
// logged and skipped; it is kept out of the delete in later Saves.
func (r *Repository) Load(ctx context.Context) (map[string]*pkg.Patient, error) {
	r.unreadable.Reset()
	rows, err := r.DB.QueryContext(ctx, `SELECT id, data FROM patients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select patients: %w", err)
	}
	defer rows.Close()

	patients := make(map[string]*pkg.Patient)
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var p pkg.Patient
		if err := json.Unmarshal(data, &p); err != nil {
			r.logger.Error().Err(err).Str("patient", id).Msg("skipping undecodable patient row")
			r.unreadable.Add(id)
			continue
		}
		patients[id] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(patients) == 0 {
		return nil, store.ErrNoSnapshot
	}
	return patients, nil
}

// Save writes the whole mapping in one transaction: changed rows are
// upserted and rows for deleted patients removed.  A NOTIFY carrying the
// revision follows a successful commit.
func (r *Repository) Save(ctx context.Context, patients map[string]*pkg.Patient) error {
	revision := uuid.New()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.PrepareContext(ctx,
		`INSERT INTO patients (id, data, revision)
         VALUES ($1, $2, $3)
         ON CONFLICT (id) DO UPDATE
         SET data = EXCLUDED.data, revision = EXCLUDED.revision, updated_at = NOW()
         WHERE patients.data IS DISTINCT FROM EXCLUDED.data`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer upsert.Close()

	for id, p := range patients {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode patient %q: %w", id, err)
		}
		if _, err := upsert.ExecContext(ctx, id, data, revision); err != nil {
			return fmt.Errorf("upsert patient %q: %w", id, err)
		}
	}

	keep := r.unreadable.Keep(patients)
	if _, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE NOT (id = ANY($1))`, pq.Array(keep)); err != nil {
		return fmt.Errorf("delete removed patients: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.unreadable.Saved(patients)

	if r.Notifier != nil {
		if err := r.Notifier.Notify(ctx, revision.String()); err != nil {
			r.logger.Warn().Err(err).Str("revision", revision.String()).Msg("notify failed")
		}
	}
	return nil
}
