package store

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by mutations that name an unknown record id.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for the coaster/wagon record store.
// All implementations must be thread-safe for concurrent access: local API
// writes and replicated peer writes land on the same store, so a mutation of
// one record must be atomic with respect to its read-modify-write cycle.
type Store interface {
	// ListCoasters returns all coasters. Order is by id for stable output.
	ListCoasters() []Coaster

	// GetCoaster retrieves a coaster by id.
	// The second return is false if the id is unknown.
	GetCoaster(id string) (Coaster, bool)

	// PutCoaster stores a coaster record, overwriting any existing record
	// with the same id.
	PutCoaster(c Coaster) error

	// UpdateCoaster applies a partial update to an existing coaster.
	// TrackLength is preserved regardless of caller input. The merged
	// record is validated before it is committed: an unknown id returns
	// ErrNotFound, an invalid result returns a *ValidationError, and in
	// both cases the stored record is unchanged.
	UpdateCoaster(id string, patch CoasterPatch) (Coaster, error)

	// ListWagons returns all wagons belonging to the given coaster.
	ListWagons(coasterID string) []Wagon

	// GetWagon retrieves one wagon of one coaster.
	GetWagon(coasterID, wagonID string) (Wagon, bool)

	// PutWagon stores a wagon record under its CoasterID.
	PutWagon(w Wagon) error

	// DeleteWagon removes one wagon. It returns false, leaving the store
	// untouched, when the (coasterID, wagonID) pair does not match an
	// existing wagon.
	DeleteWagon(coasterID, wagonID string) bool
}

// MemoryStore implements Store with in-memory maps.
// Uses sync.RWMutex for thread-safe concurrent access.
type MemoryStore struct {
	mu       sync.RWMutex
	coasters map[string]Coaster
	wagons   map[string]map[string]Wagon // coasterID -> wagonID -> Wagon
}

// NewMemoryStore creates a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		coasters: make(map[string]Coaster),
		wagons:   make(map[string]map[string]Wagon),
	}
}

// ListCoasters returns a copy of all coaster records, sorted by id.
func (m *MemoryStore) ListCoasters() []Coaster {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Coaster, 0, len(m.coasters))
	for _, c := range m.coasters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetCoaster retrieves a coaster by id.
// Records are value types, so the caller receives a copy.
func (m *MemoryStore) GetCoaster(id string) (Coaster, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.coasters[id]
	return c, ok
}

// PutCoaster stores a coaster record, overwriting any existing one.
func (m *MemoryStore) PutCoaster(c Coaster) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.coasters[c.ID] = c
	return nil
}

// UpdateCoaster applies the non-nil patch fields to an existing coaster.
// The read-merge-validate-write runs under the write lock, so a concurrent
// full rewrite cannot interleave with it. TrackLength always keeps its
// stored value, and an invalid merged record is rejected before anything
// is written.
func (m *MemoryStore) UpdateCoaster(id string, patch CoasterPatch) (Coaster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.coasters[id]
	if !ok {
		return Coaster{}, ErrNotFound
	}
	if patch.StaffCount != nil {
		c.StaffCount = *patch.StaffCount
	}
	if patch.ClientCount != nil {
		c.ClientCount = *patch.ClientCount
	}
	if patch.HoursFrom != nil {
		c.HoursFrom = *patch.HoursFrom
	}
	if patch.HoursTo != nil {
		c.HoursTo = *patch.HoursTo
	}
	if err := c.Validate(); err != nil {
		return Coaster{}, err
	}
	m.coasters[id] = c
	return c, nil
}

// ListWagons returns a copy of the coaster's wagons, sorted by id.
// Unknown coaster ids yield an empty slice, not an error.
func (m *MemoryStore) ListWagons(coasterID string) []Wagon {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fleet := m.wagons[coasterID]
	out := make([]Wagon, 0, len(fleet))
	for _, w := range fleet {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetWagon retrieves one wagon of one coaster.
func (m *MemoryStore) GetWagon(coasterID, wagonID string) (Wagon, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.wagons[coasterID][wagonID]
	return w, ok
}

// PutWagon stores a wagon record under its CoasterID.
func (m *MemoryStore) PutWagon(w Wagon) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fleet, ok := m.wagons[w.CoasterID]
	if !ok {
		fleet = make(map[string]Wagon)
		m.wagons[w.CoasterID] = fleet
	}
	fleet[w.ID] = w
	return nil
}

// DeleteWagon removes one wagon. A mismatched (coasterID, wagonID) pair
// returns false and leaves the wagon list unchanged.
func (m *MemoryStore) DeleteWagon(coasterID, wagonID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fleet, ok := m.wagons[coasterID]
	if !ok {
		return false
	}
	if _, ok := fleet[wagonID]; !ok {
		return false
	}
	delete(fleet, wagonID)
	return true
}
