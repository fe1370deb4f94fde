package displaystate

import (
	"sync"

	"pkt.systems/joblog/internal/persist"
	"pkt.systems/joblog/schema"
)

// Backend is durable storage for the persisted preference keys.
type Backend interface {
	Load() (map[schema.DisplayKey]bool, error)
	Save(values map[schema.DisplayKey]bool) error
}

// FileBackend stores one profile through persist.Store.
type FileBackend struct {
	store   *persist.Store
	profile string
}

// NewFileBackend returns a backend for profile.
func NewFileBackend(store *persist.Store, profile string) *FileBackend {
	return &FileBackend{store: store, profile: profile}
}

// Load implements Backend.
func (b *FileBackend) Load() (map[schema.DisplayKey]bool, error) {
	snapshot, ok, err := b.store.Load(b.profile)
	if err != nil || !ok {
		return nil, err
	}
	return snapshot.Values, nil
}

// Save implements Backend.
func (b *FileBackend) Save(values map[schema.DisplayKey]bool) error {
	return b.store.Save(b.profile, persist.DisplaySnapshot{Values: values})
}

// MemoryBackend keeps values in memory.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[schema.DisplayKey]bool
	saves  int
}

// NewMemoryBackend returns a backend seeded with values.
func NewMemoryBackend(values map[schema.DisplayKey]bool) *MemoryBackend {
	return &MemoryBackend{values: copyBools(values)}
}

// Load implements Backend.
func (b *MemoryBackend) Load() (map[schema.DisplayKey]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyBools(b.values), nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(values map[schema.DisplayKey]bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = copyBools(values)
	b.saves++
	return nil
}

// Saves returns how many times Save was called.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func copyBools(values map[schema.DisplayKey]bool) map[schema.DisplayKey]bool {
	if values == nil {
		return nil
	}
	out := make(map[schema.DisplayKey]bool, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
