package tts

import (
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// LocalBackend speaks through the system speech engine.
type LocalBackend struct {
	engine SpeechEngine
}

// NewLocalBackend wraps engine. A nil engine is never available.
func NewLocalBackend(engine SpeechEngine) *LocalBackend {
	return &LocalBackend{engine: engine}
}

// Available reports whether the engine can speak.
func (b *LocalBackend) Available() bool {
	return b != nil && b.engine != nil && b.engine.Available()
}

// Engine returns the wrapped engine.
func (b *LocalBackend) Engine() SpeechEngine {
	return b.engine
}

// Voices returns the voices the engine has enumerated so far.
func (b *LocalBackend) Voices() []Voice {
	if !b.Available() {
		return nil
	}
	return b.engine.Voices()
}

// ResolveVoice returns the engine's id for voice, or "" for the engine
// default when no enumerable voice matches.
func (b *LocalBackend) ResolveVoice(voice string) string {
	if voice == "" {
		return ""
	}
	for _, v := range b.Voices() {
		if v.ID == voice || strings.EqualFold(v.DisplayName, voice) {
			return v.ID
		}
	}
	log.Debug("Local voice not found, using engine default", "voice", voice)
	return ""
}

// Utterance builds the request for text under s.
func (b *LocalBackend) Utterance(text string, s Settings) Utterance {
	return Utterance{
		Text:  text,
		Voice: b.ResolveVoice(s.LocalVoice),
		Rate:  s.Rate,
		Pitch: s.Pitch,
	}
}

func (b *LocalBackend) playback(u Utterance, h UtteranceHandlers) *localPlayback {
	return &localPlayback{engine: b.engine, utterance: u, handlers: h}
}

// localPlayback drives one utterance. Pause and resume act on the engine,
// which only ever speaks one utterance. Stop cancels only the utterance this
// playback started, never a successor's.
type localPlayback struct {
	engine    SpeechEngine
	utterance Utterance
	handlers  UtteranceHandlers

	mu      sync.Mutex
	id      UtteranceID
	started bool
	stopped bool
}

func (p *localPlayback) Backend() Backend { return BackendLocal }

func (p *localPlayback) Play() error {
	p.mu.Lock()
	if p.stopped || p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	id, err := p.engine.Speak(p.utterance, p.handlers)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.id = id
	stopped := p.stopped
	p.mu.Unlock()

	// stopped while Speak was starting the utterance
	if stopped {
		return p.engine.Cancel(id)
	}
	return nil
}

func (p *localPlayback) Pause() error { return p.engine.Pause() }

func (p *localPlayback) Resume() error { return p.engine.Resume() }

func (p *localPlayback) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	id := p.id
	p.mu.Unlock()

	if id == 0 {
		return nil
	}
	return p.engine.Cancel(id)
}
