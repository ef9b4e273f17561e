package tts

import (
	"errors"
	"fmt"
	"sync"
)

// PlaybackState is the state of a session's audio.
type PlaybackState int

const (
	// Playing means audio is being produced.
	Playing PlaybackState = iota
	// Paused means playback is suspended in place.
	Paused
	// Stopped means the session has been disposed.
	Stopped
)

// String returns the string representation of the state.
func (s PlaybackState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Playback is the backend half of a session. Cloud and local backends share
// this contract.
type Playback interface {
	Backend() Backend
	Play() error
	Pause() error
	Resume() error
	// Stop silences the backend. It is idempotent.
	Stop() error
}

// Handle is a resource held by a session.
type Handle struct {
	Name    string
	Release func() error
}

// Session is one playback lifecycle.
type Session struct {
	ID         string
	Generation uint64
	Backend    Backend
	Text       string
	Fallback   bool // Local playback standing in for a failed cloud request

	mu       sync.Mutex
	state    PlaybackState
	playback Playback
	handles  []Handle
	disposed bool
}

func newSession(id string, generation uint64, backend Backend, text string) *Session {
	return &Session{
		ID:         id,
		Generation: generation,
		Backend:    backend,
		Text:       text,
		state:      Playing,
	}
}

// State returns the playback state.
func (s *Session) State() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state PlaybackState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.state == state {
		return false
	}
	s.state = state
	return true
}

// Held returns the number of handles not yet released.
func (s *Session) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Disposed reports whether the session has been torn down.
func (s *Session) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// acquire records h. On a disposed session h is released at once and
// acquire returns false.
func (s *Session) acquire(h Handle) bool {
	s.mu.Lock()
	if !s.disposed {
		s.handles = append(s.handles, h)
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	if h.Release != nil {
		_ = h.Release()
	}
	return false
}

// dispose releases every handle in reverse acquisition order. Only the
// first call does any work.
func (s *Session) dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.state = Stopped
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		h := handles[i]
		if h.Release == nil {
			continue
		}
		if err := h.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", h.Name, err))
		}
	}
	return errors.Join(errs...)
}
