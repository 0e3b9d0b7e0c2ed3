package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"pt-planner/internal/apperr"
	"pt-planner/pkg"
)

var (
	// ErrNoSnapshot is returned by a Snapshotter when nothing has been saved
	// yet.
	ErrNoSnapshot = errors.New("no snapshot found")
	// ErrCorrupt is returned by a Snapshotter when the saved data cannot be
	// decoded.
	ErrCorrupt = errors.New("snapshot is corrupt")
)

// Snapshotter persists the whole patient mapping.  Save always receives
// the complete mapping and replaces whatever was stored before.
type Snapshotter interface {
	Load(ctx context.Context) (map[string]*pkg.Patient, error)
	Save(ctx context.Context, patients map[string]*pkg.Patient) error
}

// Store is the system of record for patients.  Records are kept in memory
// and mirrored to a Snapshotter after every mutation.
//
// Stored records are never modified in place: a mutation clones the record,
// changes the clone and swaps it in.  Read-modify-write sequences hold the
// identifier's lock, so concurrent changes to one patient cannot lose
// updates, and snapshots are saved in commit order.
type Store struct {
	mu       sync.RWMutex
	patients map[string]*pkg.Patient
	version  uint64

	locks keyedMutex

	saveMu       sync.Mutex
	savedVersion uint64

	snap   Snapshotter
	logger zerolog.Logger
}

// New returns an empty store backed by snap.
func New(snap Snapshotter, logger zerolog.Logger) *Store {
	return &Store{
		patients: make(map[string]*pkg.Patient),
		snap:     snap,
		logger:   logger.With().Str("component", "store").Logger(),
	}
}

// Load replaces the in-memory mapping with the saved snapshot.  A missing
// or corrupt snapshot leaves the store empty; only errors reaching the
// backend itself are returned.
func (s *Store) Load(ctx context.Context) error {
	loaded, err := s.snap.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		s.logger.Info().Msg("no existing patient records found, starting fresh")
		loaded = nil
	case errors.Is(err, ErrCorrupt):
		s.logger.Error().Err(err).Msg("patient records could not be decoded, starting fresh")
		loaded = nil
	case err != nil:
		return apperr.Internal("failed to load patient records", err)
	}

	patients := make(map[string]*pkg.Patient, len(loaded))
	for id, p := range loaded {
		if p == nil {
			continue
		}
		if p.Name == "" {
			p.Name = id
		}
		if p.Injuries == nil {
			p.Injuries = []pkg.Injury{}
		}
		p.WeeklySchedule = p.WeeklySchedule.Normalize()
		patients[id] = p
	}

	s.mu.Lock()
	s.patients = patients
	s.version++
	s.savedVersion = s.version
	s.mu.Unlock()

	s.logger.Info().Int("patients", len(patients)).Msg("patient records loaded")
	return nil
}

// List returns every identifier in sorted order.
func (s *Store) List(_ context.Context) []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.patients))
	for id := range s.patients {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Get returns a copy of the patient record.
func (s *Store) Get(_ context.Context, id string) (*pkg.Patient, error) {
	s.mu.RLock()
	p, ok := s.patients[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound()
	}
	return p.Clone(), nil
}

// All returns a copy of every record, keyed by identifier.
func (s *Store) All(_ context.Context) map[string]*pkg.Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*pkg.Patient, len(s.patients))
	for id, p := range s.patients {
		out[id] = p.Clone()
	}
	return out
}

// Create adds a new record.  It fails if the identifier is taken.
func (s *Store) Create(ctx context.Context, id string, profile pkg.PatientProfile) (*pkg.Patient, error) {
	if id == "" {
		return nil, apperr.InvalidInput("patient name is required")
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.RLock()
	_, exists := s.patients[id]
	s.mu.RUnlock()
	if exists {
		return nil, apperr.AlreadyExists("Patient already exists")
	}

	p := pkg.NewPatient(id)
	profile.Apply(p)
	return s.commit(ctx, id, p)
}

// Update merges the provided profile fields into an existing record.
func (s *Store) Update(ctx context.Context, id string, profile pkg.PatientProfile) (*pkg.Patient, error) {
	return s.modify(ctx, id, false, func(p *pkg.Patient) error {
		profile.Apply(p)
		return nil
	})
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	if _, ok := s.patients[id]; !ok {
		s.mu.Unlock()
		return notFound()
	}
	delete(s.patients, id)
	s.version++
	v := s.version
	s.mu.Unlock()

	return s.persist(ctx, v)
}

// GetOrCreate returns the record, creating an empty one first if needed.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*pkg.Patient, error) {
	if p, err := s.Get(ctx, id); err == nil {
		return p, nil
	}
	return s.modify(ctx, id, true, func(*pkg.Patient) error { return nil })
}

// AppendInjury adds an injury to the record, creating the record if this
// is the patient's first questionnaire.
func (s *Store) AppendInjury(ctx context.Context, id string, inj pkg.Injury) (*pkg.Patient, error) {
	return s.modify(ctx, id, true, func(p *pkg.Patient) error {
		if inj.SpecializedData == nil {
			inj.SpecializedData = map[string]any{}
		}
		p.Injuries = append(p.Injuries, inj.Clone())
		return nil
	})
}

// RemoveInjuryAt removes and returns the injury at index.  Indexes outside
// [0, len) are NotFound and leave the record untouched.
func (s *Store) RemoveInjuryAt(ctx context.Context, id string, index int) (pkg.Injury, error) {
	var removed pkg.Injury
	_, err := s.modify(ctx, id, false, func(p *pkg.Patient) error {
		if index < 0 || index >= len(p.Injuries) {
			return apperr.NotFound("Injury index %d out of range", index)
		}
		removed = p.Injuries[index]
		p.Injuries = append(p.Injuries[:index], p.Injuries[index+1:]...)
		return nil
	})
	if err != nil {
		return pkg.Injury{}, err
	}
	return removed, nil
}

// ReplaceSchedule overwrites the weekly schedule.
func (s *Store) ReplaceSchedule(ctx context.Context, id string, schedule pkg.WeeklySchedule) (*pkg.Patient, error) {
	return s.modify(ctx, id, true, func(p *pkg.Patient) error {
		p.WeeklySchedule = schedule.Clone().Normalize()
		return nil
	})
}

// AddExercise appends an exercise to one day of the schedule.
func (s *Store) AddExercise(ctx context.Context, id, day string, ex pkg.Exercise) (*pkg.Patient, error) {
	return s.modify(ctx, id, true, func(p *pkg.Patient) error {
		if err := p.WeeklySchedule.AddExercise(day, ex); err != nil {
			return apperr.InvalidInput("%s", err.Error())
		}
		return nil
	})
}

// SetRecommendations stores the latest exercise recommendations.
func (s *Store) SetRecommendations(ctx context.Context, id string, exercises []pkg.Exercise) (*pkg.Patient, error) {
	return s.modify(ctx, id, true, func(p *pkg.Patient) error {
		p.Recommendations = exercises
		return nil
	})
}

// modify runs fn against a copy of the record under the identifier's lock
// and commits the copy if fn succeeds.
func (s *Store) modify(ctx context.Context, id string, create bool, fn func(*pkg.Patient) error) (*pkg.Patient, error) {
	if id == "" {
		return nil, apperr.InvalidInput("patient identifier is required")
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.RLock()
	cur, ok := s.patients[id]
	s.mu.RUnlock()

	var next *pkg.Patient
	switch {
	case ok:
		next = cur.Clone()
	case create:
		s.logger.Info().Str("patient", id).Msg("creating new patient record")
		next = pkg.NewPatient(id)
	default:
		return nil, notFound()
	}

	if err := fn(next); err != nil {
		return nil, err
	}
	return s.commit(ctx, id, next)
}

// commit swaps p in and persists.  The caller holds id's lock.  The
// in-memory change stands even if persisting fails.
func (s *Store) commit(ctx context.Context, id string, p *pkg.Patient) (*pkg.Patient, error) {
	s.mu.Lock()
	s.patients[id] = p
	s.version++
	v := s.version
	s.mu.Unlock()

	if err := s.persist(ctx, v); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// persist saves a snapshot that includes commit v.  Saves are serialised
// and skipped when a later snapshot has already been written.
func (s *Store) persist(ctx context.Context, v uint64) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.savedVersion >= v {
		return nil
	}

	s.mu.RLock()
	snapshot := make(map[string]*pkg.Patient, len(s.patients))
	for id, p := range s.patients {
		snapshot[id] = p
	}
	current := s.version
	s.mu.RUnlock()

	if err := s.snap.Save(ctx, snapshot); err != nil {
		s.logger.Error().Err(err).Uint64("version", current).Msg("failed to save patient records")
		return apperr.Internal("failed to save patient records", err)
	}
	s.savedVersion = current
	return nil
}

func notFound() error {
	return apperr.NotFound("Patient not found")
}
