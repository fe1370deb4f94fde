package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

// DisplaySnapshot captures persisted display preferences for one profile.
type DisplaySnapshot struct {
	Profile string                     `json:"profile"`
	Values  map[schema.DisplayKey]bool `json:"values"`
}

// Store persists display snapshots to disk, one JSON file per profile.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads a display snapshot from disk.
func (s *Store) Load(profile string) (DisplaySnapshot, bool, error) {
	path := s.pathForProfile(profile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("display load miss", "profile", profile)
			return DisplaySnapshot{}, false, nil
		}
		s.warn("display load failed", "profile", profile, "err", err)
		return DisplaySnapshot{}, false, err
	}
	var snapshot DisplaySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.warn("display load failed", "profile", profile, "err", err)
		return DisplaySnapshot{}, false, err
	}
	s.debug("display load ok", "profile", profile, "keys", len(snapshot.Values))
	return snapshot, true, nil
}

// Save writes a display snapshot to disk through a temp file and rename.
func (s *Store) Save(profile string, snapshot DisplaySnapshot) error {
	path := s.pathForProfile(profile)
	snapshot.Profile = profile
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		s.warn("display save failed", "profile", profile, "err", err)
		return err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		s.warn("display save failed", "profile", profile, "err", err)
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "display-*.json")
	if err != nil {
		s.warn("display save failed", "profile", profile, "err", err)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warn("display save failed", "profile", profile, "err", err)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warn("display save failed", "profile", profile, "err", err)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("display save failed", "profile", profile, "err", err)
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("display save failed", "profile", profile, "err", err)
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		s.warn("display save failed", "profile", profile, "err", err)
		return err
	}
	if s.log != nil {
		s.log.Trace("display save ok", "profile", profile, "keys", len(snapshot.Values))
	}
	return nil
}

// Remove deletes the snapshot of a profile. Missing files are not an error.
func (s *Store) Remove(profile string) error {
	err := os.Remove(s.pathForProfile(profile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.warn("display remove failed", "profile", profile, "err", err)
		return err
	}
	return nil
}

func (s *Store) debug(msg string, kv ...any) {
	if s.log != nil {
		s.log.Debug(msg, kv...)
	}
}

func (s *Store) warn(msg string, kv ...any) {
	if s.log != nil {
		s.log.Warn(msg, kv...)
	}
}

func (s *Store) pathForProfile(profile string) string {
	name := sanitize(profile)
	if name == "" {
		name = "default"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
