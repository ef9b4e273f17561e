package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Defaults for a fresh settings record.
const (
	DefaultRegion     = "eastasia"
	DefaultCloudVoice = "zh-CN-XiaoxiaoNeural"
	DefaultRate       = 1.0
	DefaultPitch      = 1.0
)

// Settings is the persisted speech configuration. It is a flat record;
// missing keys take their default on load.
type Settings struct {
	// Azure settings
	SubscriptionKey string `yaml:"subscription_key" env:"READALOUD_SUBSCRIPTION_KEY"`
	Region          string `yaml:"region" env:"READALOUD_REGION"`
	CloudVoice      string `yaml:"cloud_voice" env:"READALOUD_CLOUD_VOICE"`

	// Backend selection
	Backend Backend `yaml:"backend" env:"READALOUD_BACKEND"`

	// System engine settings
	LocalVoice string  `yaml:"local_voice" env:"READALOUD_LOCAL_VOICE"`
	Rate       float64 `yaml:"rate" env:"READALOUD_RATE"`
	Pitch      float64 `yaml:"pitch" env:"READALOUD_PITCH"`

	// Speak markdown as plain text
	StripMarkdown bool `yaml:"strip_markdown" env:"READALOUD_STRIP_MARKDOWN"`
}

// DefaultSettings returns Settings with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Region:        DefaultRegion,
		CloudVoice:    DefaultCloudVoice,
		Backend:       BackendCloud,
		Rate:          DefaultRate,
		Pitch:         DefaultPitch,
		StripMarkdown: true,
	}
}

// Locale returns the language prefix of the cloud voice, e.g. "zh-CN" for
// "zh-CN-XiaoxiaoNeural".
func (s Settings) Locale() string {
	if len(s.CloudVoice) < 5 {
		return s.CloudVoice
	}
	return s.CloudVoice[:5]
}

// CloudConfigured reports whether Azure can be called at all.
func (s Settings) CloudConfigured() bool {
	return strings.TrimSpace(s.SubscriptionKey) != "" && strings.TrimSpace(s.Region) != ""
}

// ValidateCloud returns ErrNotConfigured when the Azure settings are incomplete.
func (s Settings) ValidateCloud() error {
	if !s.CloudConfigured() {
		return NewTTSError(ErrNotConfigured, "settings", "validate")
	}
	if strings.TrimSpace(s.CloudVoice) == "" {
		return NewTTSError(ErrNotConfigured, "settings", "validate").WithContext("field", "cloud_voice")
	}
	return nil
}

// Validate checks the record for values no backend accepts.
func (s Settings) Validate() error {
	if _, err := ParseBackend(string(s.Backend)); err != nil {
		return fmt.Errorf("%w: backend must be cloud or local, got %q", ErrInvalidConfig, s.Backend)
	}
	if s.Rate < 0.1 || s.Rate > 10 {
		return fmt.Errorf("%w: rate must be between 0.1 and 10, got %.2f", ErrInvalidConfig, s.Rate)
	}
	if s.Pitch < 0 || s.Pitch > 2 {
		return fmt.Errorf("%w: pitch must be between 0 and 2, got %.2f", ErrInvalidConfig, s.Pitch)
	}
	return nil
}

// CacheKey identifies the audio Azure returns for text under s.
func CacheKey(s Settings, text string) string {
	h := sha256.New()
	for _, part := range []string{s.Region, s.CloudVoice, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
