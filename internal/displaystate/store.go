// Package displaystate holds the live display settings of a job view.
package displaystate

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

// Change is one key that changed value.
type Change struct {
	Key   schema.DisplayKey
	Value string
}

// WatchFunc is called with every key a Set or Reset changed.
type WatchFunc func(key schema.DisplayKey, value string)

// Snapshot is a typed copy of the store.
type Snapshot struct {
	Dark           bool
	Wrap           bool
	Sticky         bool
	Timestamps     bool
	Live           bool
	Fetching       schema.FetchStatus
	FailureMessage string
	TrimmedLogs    bool
	State          schema.JobState
}

// Store is a flat key/value map with write-through persistence of the
// preference keys. wrap and timestamps are coupled: wrap=false forces
// timestamps=false and timestamps=true forces wrap=true.
type Store struct {
	mu       sync.Mutex
	values   map[schema.DisplayKey]string
	backend  Backend
	watchers map[int]WatchFunc
	nextID   int
	log      pslog.Logger
}

// New returns a store initialized from backend. A failing backend leaves
// the defaults in place.
func New(backend Backend, logger pslog.Logger) *Store {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &Store{
		values:   schema.DefaultDisplayState(),
		backend:  backend,
		watchers: make(map[int]WatchFunc),
		log:      logger,
	}
	if backend == nil {
		return s
	}
	persisted, err := backend.Load()
	if err != nil {
		s.log.Warn("display state load failed", "err", err)
		return s
	}
	for key, value := range persisted {
		if !schema.IsPersistedDisplayKey(key) {
			continue
		}
		s.values[key] = strconv.FormatBool(value)
	}
	if s.values[schema.DisplayWrap] == "false" && s.values[schema.DisplayTimestamps] == "true" {
		s.values[schema.DisplayTimestamps] = "false"
	}
	s.log.Debug("display state loaded", "keys", len(persisted))
	return s
}

// Get returns the value of key.
func (s *Store) Get(key schema.DisplayKey) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

// String returns the value of key, empty when unknown.
func (s *Store) String(key schema.DisplayKey) string {
	value, _ := s.Get(key)
	return value
}

// Bool returns key as a boolean.
func (s *Store) Bool(key schema.DisplayKey) bool {
	return s.String(key) == "true"
}

// SetBool sets a boolean key.
func (s *Store) SetBool(key schema.DisplayKey, value bool) error {
	return s.Set(key, strconv.FormatBool(value))
}

// Set validates and stores value, applies the wrap/timestamps coupling,
// persists preference keys and notifies watchers of every changed key.
// The in-memory value stays set when persisting fails.
func (s *Store) Set(key schema.DisplayKey, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	s.mu.Lock()
	changes := s.assign(nil, key, value)
	switch {
	case key == schema.DisplayWrap && value == "false":
		changes = s.assign(changes, schema.DisplayTimestamps, "false")
	case key == schema.DisplayTimestamps && value == "true":
		changes = s.assign(changes, schema.DisplayWrap, "true")
	}
	err := s.persistLocked(changes)
	watchers := s.watchersLocked()
	s.mu.Unlock()

	notify(watchers, changes)
	if len(changes) > 0 {
		s.log.Debug("display state set", "key", string(key), "value", value, "changed", len(changes))
	}
	return err
}

// Reset restores every key to its default.
func (s *Store) Reset() error {
	s.mu.Lock()
	var changes []Change
	for _, key := range allKeys {
		changes = s.assign(changes, key, schema.DefaultDisplayState()[key])
	}
	err := s.persistLocked(changes)
	watchers := s.watchersLocked()
	s.mu.Unlock()

	notify(watchers, changes)
	s.log.Info("display state reset", "changed", len(changes))
	return err
}

// Watch registers fn and returns a function that removes it.
func (s *Store) Watch(fn WatchFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// Snapshot returns a typed copy of all keys.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Dark:           s.values[schema.DisplayDark] == "true",
		Wrap:           s.values[schema.DisplayWrap] == "true",
		Sticky:         s.values[schema.DisplaySticky] == "true",
		Timestamps:     s.values[schema.DisplayTimestamps] == "true",
		Live:           s.values[schema.DisplayLive] == "true",
		Fetching:       schema.FetchStatus(s.values[schema.DisplayFetching]),
		FailureMessage: s.values[schema.DisplayFailureMessage],
		TrimmedLogs:    s.values[schema.DisplayTrimmedLogs] == "true",
		State:          schema.JobState(s.values[schema.DisplayJobState]),
	}
}

// Preferences returns the persisted keys as booleans.
func (s *Store) Preferences() map[schema.DisplayKey]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferencesLocked()
}

func (s *Store) assign(changes []Change, key schema.DisplayKey, value string) []Change {
	if s.values[key] == value {
		return changes
	}
	s.values[key] = value
	return append(changes, Change{Key: key, Value: value})
}

func (s *Store) persistLocked(changes []Change) error {
	if s.backend == nil {
		return nil
	}
	dirty := false
	for _, change := range changes {
		if schema.IsPersistedDisplayKey(change.Key) {
			dirty = true
			break
		}
	}
	if !dirty {
		return nil
	}
	if err := s.backend.Save(s.preferencesLocked()); err != nil {
		s.log.Warn("display state save failed", "err", err)
		return fmt.Errorf("persist display state: %w", err)
	}
	return nil
}

func (s *Store) preferencesLocked() map[schema.DisplayKey]bool {
	out := make(map[schema.DisplayKey]bool, len(schema.PersistedDisplayKeys))
	for _, key := range schema.PersistedDisplayKeys {
		out[key] = s.values[key] == "true"
	}
	return out
}

func (s *Store) watchersLocked() []WatchFunc {
	if len(s.watchers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(s.watchers))
	for id := range s.watchers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]WatchFunc, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.watchers[id])
	}
	return out
}

func notify(watchers []WatchFunc, changes []Change) {
	for _, change := range changes {
		for _, fn := range watchers {
			fn(change.Key, change.Value)
		}
	}
}

var allKeys = []schema.DisplayKey{
	schema.DisplayDark,
	schema.DisplayWrap,
	schema.DisplaySticky,
	schema.DisplayTimestamps,
	schema.DisplayLive,
	schema.DisplayFetching,
	schema.DisplayFailureMessage,
	schema.DisplayTrimmedLogs,
	schema.DisplayJobState,
}

// ParseKey maps a key name to a DisplayKey.
func ParseKey(name string) (schema.DisplayKey, error) {
	key := schema.DisplayKey(name)
	if !slices.Contains(allKeys, key) {
		return "", fmt.Errorf("%w: %q", schema.ErrInvalidDisplayKey, name)
	}
	return key, nil
}

func validate(key schema.DisplayKey, value string) error {
	if _, err := ParseKey(string(key)); err != nil {
		return err
	}
	switch {
	case schema.IsBoolDisplayKey(key):
		if value != "true" && value != "false" {
			return fmt.Errorf("%w: %s=%q", schema.ErrInvalidDisplayValue, key, value)
		}
	case key == schema.DisplayFetching:
		if !schema.ValidFetchStatus(value) {
			return fmt.Errorf("%w: %s=%q", schema.ErrInvalidDisplayValue, key, value)
		}
	}
	return nil
}
