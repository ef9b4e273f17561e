package tts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// TestDefaultSettings tests that default settings are valid.
func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if err := s.Validate(); err != nil {
		t.Errorf("Default settings should be valid: %v", err)
	}
	if s.Region != "eastasia" || s.CloudVoice != "zh-CN-XiaoxiaoNeural" {
		t.Errorf("Unexpected cloud defaults: %+v", s)
	}
	if s.Backend != BackendCloud {
		t.Errorf("Default backend should be cloud, got %s", s.Backend)
	}
	if s.CloudConfigured() {
		t.Error("Defaults carry no subscription key")
	}
	if !errors.Is(s.ValidateCloud(), ErrNotConfigured) {
		t.Error("Expected ErrNotConfigured without a key")
	}
}

// TestSettingsValidation tests settings validation.
func TestSettingsValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr bool
	}{
		{"valid", func(*Settings) {}, false},
		{"unknown backend", func(s *Settings) { s.Backend = "carrier-pigeon" }, true},
		{"rate too low", func(s *Settings) { s.Rate = 0.01 }, true},
		{"rate too high", func(s *Settings) { s.Rate = 11 }, true},
		{"pitch negative", func(s *Settings) { s.Pitch = -1 }, true},
		{"local backend", func(s *Settings) { s.Backend = BackendLocal }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLocale(t *testing.T) {
	tests := map[string]string{
		"zh-CN-XiaoxiaoNeural": "zh-CN",
		"en-US-JennyNeural":    "en-US",
		"fr":                   "fr",
	}
	for voice, want := range tests {
		if got := (Settings{CloudVoice: voice}).Locale(); got != want {
			t.Errorf("Locale(%q) = %q, want %q", voice, got, want)
		}
	}
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{"cloud": BackendCloud, "Azure": BackendCloud, " local ": BackendLocal, "system": BackendLocal} {
		got, err := ParseBackend(in)
		if err != nil || got != want {
			t.Errorf("ParseBackend(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseBackend("nope"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestCacheKey(t *testing.T) {
	s := DefaultSettings()
	a := CacheKey(s, "hello")
	if a != CacheKey(s, "hello") {
		t.Error("Expected stable keys")
	}
	s.CloudVoice = "en-US-JennyNeural"
	if a == CacheKey(s, "hello") {
		t.Error("Expected the voice to change the key")
	}
	if len(a) != 64 {
		t.Errorf("Expected a hex sha256, got %q", a)
	}
}

// TestLoadSettingsMergesDefaults tests that missing keys take defaults.
func TestLoadSettingsMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speech.yml")
	content := "subscription_key: abc123\nbackend: local\nrate: 1.25\nstrip_markdown: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	s := store.Persisted()

	if s.SubscriptionKey != "abc123" || s.Backend != BackendLocal || s.Rate != 1.25 {
		t.Errorf("File values not applied: %+v", s)
	}
	if s.Region != DefaultRegion || s.CloudVoice != DefaultCloudVoice || s.Pitch != DefaultPitch {
		t.Errorf("Defaults not merged: %+v", s)
	}
	if s.StripMarkdown {
		t.Error("Expected strip_markdown from the file to win")
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	store, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if store.Persisted() != DefaultSettings() {
		t.Errorf("Expected defaults, got %+v", store.Persisted())
	}
}

func TestLoadSettingsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speech.yml")
	_ = os.WriteFile(path, []byte("rate: [not a number"), 0o600)

	if _, err := LoadSettings(path); err == nil {
		t.Error("Expected a parse error")
	}
}

// TestUpdatePersists tests that updates survive a reload.
func TestUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "speech.yml")
	store, err := LoadSettings(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Update(func(s *Settings) {
		s.CloudVoice = "en-GB-SoniaNeural"
		s.SubscriptionKey = "k"
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Expected the file to exist: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected private permissions, got %v", info.Mode().Perm())
	}

	reloaded, err := LoadSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Persisted().CloudVoice != "en-GB-SoniaNeural" {
		t.Errorf("Update not persisted: %+v", reloaded.Persisted())
	}

	if err := store.Update(func(s *Settings) { s.Rate = 50 }); err == nil {
		t.Error("Expected invalid updates to be rejected")
	}
	if store.Persisted().Rate != DefaultRate {
		t.Error("Rejected update must not change the record")
	}
}

func TestEnvironmentOverridesWithoutPersisting(t *testing.T) {
	t.Setenv("READALOUD_SUBSCRIPTION_KEY", "from-env")
	t.Setenv("READALOUD_BACKEND", "local")

	path := filepath.Join(t.TempDir(), "speech.yml")
	store, _ := LoadSettings(path)

	s := store.Get()
	if s.SubscriptionKey != "from-env" || s.Backend != BackendLocal {
		t.Errorf("Environment not applied: %+v", s)
	}

	if err := store.Save(); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "from-env") {
		t.Error("Environment values must not be written back")
	}
}

func TestOverridesFromViper(t *testing.T) {
	v := viper.New()
	v.Set("speech.backend", "local")
	v.Set("speech.rate", 1.5)
	v.Set("speech.voice", "en-US-GuyNeural")

	store := NewSettingsStore(Settings{})
	store.Override(OverridesFromViper(v))
	s := store.Get()

	if s.Backend != BackendLocal || s.Rate != 1.5 || s.CloudVoice != "en-US-GuyNeural" {
		t.Errorf("Overrides not applied: %+v", s)
	}
	if store.Persisted().Backend != BackendCloud {
		t.Error("Overrides must not touch the persisted record")
	}
	if s.Region != DefaultRegion {
		t.Errorf("Unset keys should keep their value, got region %q", s.Region)
	}
}
