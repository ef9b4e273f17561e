// Package audio decodes synthesized speech and plays it through the system
// audio output.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
)

const defaultPoll = 20 * time.Millisecond

// Player plays one PCM stream. *oto.Player satisfies it.
type Player interface {
	Play()
	Pause()
	IsPlaying() bool
	Err() error
	Close() error
}

// Device creates players for PCM streams at a fixed sample rate.
type Device interface {
	SampleRate() int
	NewPlayer(r io.Reader) Player
}

// Sink loads synthesized payloads into playable handles.
type Sink struct {
	open func(sampleRate int) (Device, error)
	poll time.Duration
}

// NewSink returns a sink that plays through the system output.
func NewSink() *Sink {
	return &Sink{open: openDevice, poll: defaultPoll}
}

// NewSinkWithDevice returns a sink that plays through d.
func NewSinkWithDevice(d Device, poll time.Duration) *Sink {
	if poll <= 0 {
		poll = defaultPoll
	}
	return &Sink{
		open: func(int) (Device, error) { return d, nil },
		poll: poll,
	}
}

// Load decodes data fully and binds it to a player.
func (s *Sink) Load(data []byte) (tts.AudioHandle, error) {
	clip, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return s.LoadClip(clip)
}

// LoadClip binds an already decoded clip to a player.
func (s *Sink) LoadClip(clip *Clip) (tts.AudioHandle, error) {
	dev, err := s.open(clip.SampleRate)
	if err != nil {
		return nil, tts.NewTTSError(fmt.Errorf("%w: %w", tts.ErrEngine, err), "audio", "open device")
	}
	if dev.SampleRate() != clip.SampleRate {
		return nil, tts.NewTTSError(
			fmt.Errorf("%w: sample rate %d does not match output %d", tts.ErrInvalidAudio, clip.SampleRate, dev.SampleRate()),
			"audio", "load",
		)
	}

	log.Debug("Audio loaded", "duration", clip.Duration(), "bytes", len(clip.PCM))
	return &Handle{dev: dev, clip: clip, poll: s.poll}, nil
}

// Handle is a preloaded clip bound to the output device. Events fire from the
// caller's goroutine for Play, Pause and Close, and from a monitor goroutine
// when playback reaches the end.
type Handle struct {
	dev  Device
	poll time.Duration

	mu       sync.Mutex
	clip     *Clip
	handlers tts.AudioHandlers
	player   Player
	done     chan struct{}
	paused   bool
	closed   bool
}

// SetHandlers installs event handlers. The zero value removes them.
func (h *Handle) SetHandlers(hs tts.AudioHandlers) {
	h.mu.Lock()
	h.handlers = hs
	h.mu.Unlock()
}

// Play starts playback, or resumes it when paused. Playing a clip that has
// ended starts it again from the beginning.
func (h *Handle) Play() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return tts.NewTTSError(tts.ErrAssetClosed, "audio", "play")
	}
	if h.player == nil {
		h.player = h.dev.NewPlayer(bytes.NewReader(h.clip.PCM))
		h.done = make(chan struct{})
		go h.monitor(h.player, h.done)
	}
	h.player.Play()
	h.paused = false
	onPlay := h.handlers.OnPlay
	h.mu.Unlock()

	if onPlay != nil {
		onPlay()
	}
	return nil
}

// Pause pauses playback. Pausing a clip that is not playing does nothing.
func (h *Handle) Pause() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return tts.NewTTSError(tts.ErrAssetClosed, "audio", "pause")
	}
	if h.player == nil || h.paused {
		h.mu.Unlock()
		return nil
	}
	h.player.Pause()
	h.paused = true
	onPause := h.handlers.OnPause
	h.mu.Unlock()

	if onPause != nil {
		onPause()
	}
	return nil
}

// Close stops playback and drops the decoded audio. It is idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true

	var err error
	wasPlaying := h.player != nil && !h.paused
	if h.player != nil {
		h.player.Pause()
		err = h.player.Close()
		h.player = nil
	}
	if h.done != nil {
		close(h.done)
		h.done = nil
	}
	h.clip = nil
	onPause := h.handlers.OnPause
	h.handlers = tts.AudioHandlers{}
	h.mu.Unlock()

	if wasPlaying && onPause != nil {
		onPause()
	}
	if err != nil {
		return fmt.Errorf("failed to close player: %w", err)
	}
	return nil
}

// Closed reports whether the handle has been released.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// monitor polls the player until it drains, fails, or the handle is closed.
func (h *Handle) monitor(p Player, done chan struct{}) {
	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		h.mu.Lock()
		if h.closed || h.player != p {
			h.mu.Unlock()
			return
		}

		if err := p.Err(); err != nil {
			h.release(p)
			onError := h.handlers.OnError
			h.mu.Unlock()
			if onError != nil {
				onError(tts.NewTTSError(fmt.Errorf("%w: %w", tts.ErrEngine, err), "audio", "play"))
			}
			return
		}

		if h.paused || p.IsPlaying() {
			h.mu.Unlock()
			continue
		}

		h.release(p)
		onEnded := h.handlers.OnEnded
		h.mu.Unlock()
		if onEnded != nil {
			onEnded()
		}
		return
	}
}

// release drops a finished player so the next Play starts over. h.mu is held.
func (h *Handle) release(p Player) {
	if err := p.Close(); err != nil {
		log.Debug("Closing finished player failed", "err", err)
	}
	h.player = nil
	h.done = nil
	h.paused = false
}
