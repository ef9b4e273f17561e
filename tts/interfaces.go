package tts

import (
	"context"
	"strings"
)

// Backend names a speech backend.
type Backend string

const (
	// BackendCloud synthesizes with Azure neural voices.
	BackendCloud Backend = "cloud"
	// BackendLocal speaks with the operating system speech engine.
	BackendLocal Backend = "local"
)

// ParseBackend parses a backend name, case-insensitively.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendCloud, "azure":
		return BackendCloud, nil
	case BackendLocal, "system":
		return BackendLocal, nil
	}
	return "", NewTTSError(ErrInvalidConfig, "settings", "parse backend").WithContext("backend", s)
}

// Voice describes a voice offered by a backend.
type Voice struct {
	ID          string // Identifier passed back to the backend
	DisplayName string // Human readable name
	Locale      string // Language tag, e.g. "en-US"
	Gender      string // "Female", "Male" or empty
}

// Synthesizer turns text into an encoded audio payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, s Settings) ([]byte, error)
}

// VoiceLister returns the voices a cloud backend offers.
type VoiceLister interface {
	Voices(ctx context.Context, s Settings) ([]Voice, error)
}

// Utterance is a single local speech request.
type Utterance struct {
	Text  string
	Voice string  // Empty selects the engine default
	Rate  float64 // 1.0 is normal speed
	Pitch float64 // 1.0 is normal pitch
}

// UtteranceHandlers receive engine notifications for one utterance.
type UtteranceHandlers struct {
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// UtteranceID identifies one utterance started on a SpeechEngine. The zero
// value never names a live utterance.
type UtteranceID uint64

// SpeechEngine is the host speech engine. It speaks one utterance at a time.
type SpeechEngine interface {
	// Available reports whether the engine can speak at all.
	Available() bool

	// Voices returns the voices enumerated so far. The list may be empty
	// until the catalog has been populated.
	Voices() []Voice

	// OnVoicesChanged registers fn to run when the catalog changes and
	// returns a function that unregisters it.
	OnVoicesChanged(fn func()) (unsubscribe func())

	// Speak cancels any utterance in progress and starts u.
	Speak(u Utterance, h UtteranceHandlers) (UtteranceID, error)

	Pause() error
	Resume() error

	// Cancel silences utterance id if it is still in progress. It does
	// nothing once a later utterance has replaced it. Handlers of a
	// cancelled utterance are not called.
	Cancel(id UtteranceID) error
}

// AudioHandlers receive player events for one audio asset.
type AudioHandlers struct {
	OnPlay  func()
	OnPause func()
	OnEnded func()
	OnError func(error)
}

// AudioHandle is a decoded, preloaded audio asset bound to a player.
type AudioHandle interface {
	// SetHandlers installs event handlers. Passing the zero value removes them.
	SetHandlers(h AudioHandlers)
	Play() error
	Pause() error
	// Close stops playback and releases the decoded audio. It is idempotent.
	Close() error
}

// AudioSink decodes an encoded payload into a playable handle.
type AudioSink interface {
	Load(data []byte) (AudioHandle, error)
}

// AudioCache stores synthesized payloads.
type AudioCache interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
}

// Editor is the document being read.
type Editor interface {
	// Text returns the full document text.
	Text() string
	// Selection returns the selected text, or "" when nothing is selected.
	Selection() string
	// CursorOffset returns the byte offset of the cursor in Text.
	CursorOffset() int
}
