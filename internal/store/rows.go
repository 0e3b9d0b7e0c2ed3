package store

import (
	"sort"
	"sync"

	"pt-planner/pkg"
)

// UnreadableRows tracks rows of a one-row-per-patient backend that could not
// be decoded on Load.  Such rows are left out of the loaded mapping but must
// survive the next Save: Keep adds them to the set of identifiers the
// backend may not delete.
type UnreadableRows struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// Reset forgets every recorded row.  Backends call it at the start of Load.
func (u *UnreadableRows) Reset() {
	u.mu.Lock()
	u.ids = nil
	u.mu.Unlock()
}

// Add records id as unreadable.
func (u *UnreadableRows) Add(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ids == nil {
		u.ids = make(map[string]struct{})
	}
	u.ids[id] = struct{}{}
}

// IDs returns the recorded identifiers in sorted order.
func (u *UnreadableRows) IDs() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.ids))
	for id := range u.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Keep returns the identifiers a Save of patients must not delete: every
// patient in the mapping plus each unreadable row.
func (u *UnreadableRows) Keep(patients map[string]*pkg.Patient) []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(patients)+len(u.ids))
	for id := range patients {
		out = append(out, id)
	}
	for id := range u.ids {
		if _, ok := patients[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Saved stops tracking rows that a committed Save of patients overwrote.
func (u *UnreadableRows) Saved(patients map[string]*pkg.Patient) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id := range u.ids {
		if _, ok := patients[id]; ok {
			delete(u.ids, id)
		}
	}
}
