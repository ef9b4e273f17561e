// Package system speaks through the speech engine that ships with the
// operating system: say on macOS, espeak-ng on Linux and System.Speech on
// Windows.
package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
)

const catalogTimeout = 10 * time.Second

// Driver builds the commands for one speech program.
type Driver interface {
	Name() string
	// Command returns an unstarted command that speaks u.
	Command(u tts.Utterance) *exec.Cmd
	// Voices enumerates the installed voices.
	Voices(ctx context.Context) ([]tts.Voice, error)
}

// run is one spawned utterance.
type run struct {
	id        tts.UtteranceID
	cmd       *exec.Cmd
	done      chan struct{}
	cancelled bool
}

// Engine implements tts.SpeechEngine on top of a Driver. It runs one speech
// process at a time.
type Engine struct {
	driver Driver

	mu        sync.Mutex
	current   *run
	lastRun   tts.UtteranceID
	paused    bool
	voices    []tts.Voice
	listeners map[int]func()
	nextID    int
}

// New returns an engine for d and starts enumerating its voices in the
// background. A nil driver yields an engine that is never available.
func New(d Driver) *Engine {
	e := &Engine{driver: d, listeners: make(map[int]func())}
	if d != nil {
		go e.loadVoices()
	}
	return e
}

// NewDefault detects the platform driver.
func NewDefault() *Engine {
	return New(Detect())
}

// Available reports whether a speech program was found.
func (e *Engine) Available() bool {
	return e.driver != nil
}

// Driver returns the active driver name, or "" when unavailable.
func (e *Engine) Driver() string {
	if e.driver == nil {
		return ""
	}
	return e.driver.Name()
}

// Voices returns the catalog enumerated so far.
func (e *Engine) Voices() []tts.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]tts.Voice(nil), e.voices...)
}

// OnVoicesChanged registers fn to run whenever the catalog is replaced.
func (e *Engine) OnVoicesChanged(fn func()) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Refresh enumerates the voices again.
func (e *Engine) Refresh() {
	if e.driver != nil {
		go e.loadVoices()
	}
}

func (e *Engine) loadVoices() {
	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()

	voices, err := e.driver.Voices(ctx)
	if err != nil {
		log.Warn("Could not enumerate system voices", "driver", e.driver.Name(), "err", err)
		return
	}
	log.Debug("System voices loaded", "driver", e.driver.Name(), "count", len(voices))

	e.mu.Lock()
	e.voices = voices
	fns := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Speak cancels any utterance in progress and speaks u. OnStart runs before
// Speak returns; OnEnd or OnError run later from a background goroutine
// unless the utterance is cancelled first.
func (e *Engine) Speak(u tts.Utterance, h tts.UtteranceHandlers) (tts.UtteranceID, error) {
	if e.driver == nil {
		return 0, tts.NewTTSError(tts.ErrUnsupported, "system", "speak")
	}
	if err := e.CancelAll(); err != nil {
		return 0, err
	}

	cmd := e.driver.Command(u)
	if err := cmd.Start(); err != nil {
		return 0, tts.NewTTSError(fmt.Errorf("%w: %w", tts.ErrEngine, err), "system", "speak").
			WithContext("driver", e.driver.Name())
	}

	e.mu.Lock()
	e.lastRun++
	r := &run{id: e.lastRun, cmd: cmd, done: make(chan struct{})}
	e.current = r
	e.paused = false
	e.mu.Unlock()
	log.Debug("Speaking", "driver", e.driver.Name(), "utterance", r.id, "pid", cmd.Process.Pid, "voice", u.Voice, "rate", u.Rate)

	if h.OnStart != nil {
		h.OnStart()
	}
	go e.wait(r, h)
	return r.id, nil
}

func (e *Engine) wait(r *run, h tts.UtteranceHandlers) {
	err := r.cmd.Wait()

	e.mu.Lock()
	cancelled := r.cancelled
	if e.current == r {
		e.current = nil
		e.paused = false
	}
	e.mu.Unlock()
	close(r.done)

	if cancelled {
		return
	}
	if err != nil {
		if h.OnError != nil {
			h.OnError(fmt.Errorf("%s: %w", e.driver.Name(), err))
		}
		return
	}
	if h.OnEnd != nil {
		h.OnEnd()
	}
}

// Pause suspends the speech process.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.paused {
		return nil
	}
	if err := suspend(e.current.cmd.Process); err != nil {
		return wrapSignalError(err, "pause")
	}
	e.paused = true
	return nil
}

// Resume continues a suspended speech process.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || !e.paused {
		return nil
	}
	if err := resume(e.current.cmd.Process); err != nil {
		return wrapSignalError(err, "resume")
	}
	e.paused = false
	return nil
}

// Paused reports whether the current utterance is suspended.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Speaking reports whether an utterance is in progress.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// Cancel stops utterance id and waits for its process to exit. It does
// nothing when another utterance has taken its place.
func (e *Engine) Cancel(id tts.UtteranceID) error {
	return e.cancel(func(r *run) bool { return r.id == id })
}

// CancelAll stops whatever utterance is in progress.
func (e *Engine) CancelAll() error {
	return e.cancel(func(*run) bool { return true })
}

func (e *Engine) cancel(match func(*run) bool) error {
	e.mu.Lock()
	r := e.current
	if r == nil || !match(r) {
		e.mu.Unlock()
		return nil
	}
	e.current = nil
	e.paused = false
	r.cancelled = true
	e.mu.Unlock()

	if err := r.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return tts.NewTTSError(fmt.Errorf("%w: %w", tts.ErrEngine, err), "system", "cancel")
	}
	<-r.done
	return nil
}

func wrapSignalError(err error, action string) error {
	if errors.Is(err, tts.ErrUnsupported) {
		return tts.NewTTSError(err, "system", action)
	}
	return tts.NewTTSError(fmt.Errorf("%w: %w", tts.ErrEngine, err), "system", action)
}
