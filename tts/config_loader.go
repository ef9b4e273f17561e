package tts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SettingsStore holds the speech settings and persists them to a YAML file.
type SettingsStore struct {
	mu        sync.RWMutex
	path      string
	persisted Settings
	overrides []func(*Settings)
}

// LoadSettings reads path and merges it over the defaults. A missing file
// yields the defaults. Environment variables override file values but are
// never written back.
func LoadSettings(path string) (*SettingsStore, error) {
	s := DefaultSettings()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("No speech settings file, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("unable to read speech settings: %w", err)
	default:
		if err := yaml.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("unable to parse speech settings %s: %w", path, err)
		}
	}

	fillDefaults(&s)

	return &SettingsStore{path: path, persisted: s}, nil
}

// NewSettingsStore returns an in-memory store holding s. Save is a no-op
// without a path.
func NewSettingsStore(s Settings) *SettingsStore {
	fillDefaults(&s)
	return &SettingsStore{persisted: s}
}

func fillDefaults(s *Settings) {
	d := DefaultSettings()
	if s.Region == "" {
		s.Region = d.Region
	}
	if s.CloudVoice == "" {
		s.CloudVoice = d.CloudVoice
	}
	if s.Backend == "" {
		s.Backend = d.Backend
	}
	if s.Rate == 0 {
		s.Rate = d.Rate
	}
	if s.Pitch == 0 {
		s.Pitch = d.Pitch
	}
}

// Path returns the file the store persists to.
func (st *SettingsStore) Path() string {
	return st.path
}

// Get returns the effective settings: the persisted record with the
// environment and any overrides applied.
func (st *SettingsStore) Get() Settings {
	st.mu.RLock()
	s := st.persisted
	overrides := st.overrides
	st.mu.RUnlock()

	if err := env.Parse(&s); err != nil {
		log.Warn("Ignoring speech settings from environment", "err", err)
	}
	for _, fn := range overrides {
		fn(&s)
	}
	return s
}

// Persisted returns the record as stored on disk.
func (st *SettingsStore) Persisted() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.persisted
}

// Override applies fn to every Get without persisting it.
func (st *SettingsStore) Override(fn func(*Settings)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.overrides = append(st.overrides, fn)
}

// Update mutates the persisted record and saves it.
func (st *SettingsStore) Update(fn func(*Settings)) error {
	st.mu.Lock()
	next := st.persisted
	fn(&next)
	if err := next.Validate(); err != nil {
		st.mu.Unlock()
		return err
	}
	st.persisted = next
	st.mu.Unlock()

	return st.Save()
}

// Save writes the persisted record to disk.
func (st *SettingsStore) Save() error {
	if st.path == "" {
		return nil
	}

	st.mu.RLock()
	b, err := yaml.Marshal(st.persisted)
	st.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("unable to encode speech settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return fmt.Errorf("unable to create directory: %w", err)
	}

	// the file holds a credential
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("unable to write speech settings: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("unable to write speech settings: %w", err)
	}
	log.Debug("Saved speech settings", "path", st.path)
	return nil
}

// OverridesFromViper returns the settings set for this run through flags or
// the main config file under the speech key.
func OverridesFromViper(v *viper.Viper) func(*Settings) {
	return func(s *Settings) {
		if v.IsSet("speech.backend") {
			if b, err := ParseBackend(v.GetString("speech.backend")); err == nil {
				s.Backend = b
			}
		}
		if v.IsSet("speech.region") {
			s.Region = v.GetString("speech.region")
		}
		if v.IsSet("speech.voice") {
			s.CloudVoice = v.GetString("speech.voice")
		}
		if v.IsSet("speech.local_voice") {
			s.LocalVoice = v.GetString("speech.local_voice")
		}
		if v.IsSet("speech.rate") {
			s.Rate = v.GetFloat64("speech.rate")
		}
		if v.IsSet("speech.pitch") {
			s.Pitch = v.GetFloat64("speech.pitch")
		}
	}
}
